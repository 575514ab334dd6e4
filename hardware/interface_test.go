package hardware

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GwnDaan/ISO11783-CAN-Stack/frame"
	"github.com/GwnDaan/ISO11783-CAN-Stack/transport"
)

type recordingReceiver struct {
	mu     sync.Mutex
	frames []frame.Frame
	ticks  int
}

func (r *recordingReceiver) Receive(f frame.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
}

func (r *recordingReceiver) Update() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks++
}

func (r *recordingReceiver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func (r *recordingReceiver) tickCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ticks
}

func TestInterfaceDeliversReceivedFrames(t *testing.T) {
	bus := transport.NewVirtualBus()
	a := bus.Connect()
	b := bus.Connect()

	iface := NewInterface(WithPeriodicInterval(5 * time.Millisecond))
	recv := &recordingReceiver{}
	if err := iface.Assign(0, a, recv); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if err := iface.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer iface.Stop()

	if err := b.Open(); err != nil {
		t.Fatalf("b.Open: %v", err)
	}
	defer b.Close()

	f, err := frame.New(frame.Identifier(0x0CFEF11C), []byte{1, 2, 3}, 0, frame.Outgoing)
	if err != nil {
		t.Fatalf("frame.New: %v", err)
	}
	if !b.WriteFrame(f) {
		t.Fatal("b.WriteFrame() = false")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if recv.count() > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if recv.count() != 1 {
		t.Fatalf("receiver got %d frames, want 1", recv.count())
	}
}

func TestInterfaceTicksPeriodically(t *testing.T) {
	bus := transport.NewVirtualBus()
	a := bus.Connect()

	iface := NewInterface(WithPeriodicInterval(5 * time.Millisecond))
	recv := &recordingReceiver{}
	if err := iface.Assign(0, a, recv); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if err := iface.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer iface.Stop()

	time.Sleep(100 * time.Millisecond)
	if recv.tickCount() == 0 {
		t.Fatal("expected at least one Update() call")
	}
}

func TestInterfaceTransmitWritesFrame(t *testing.T) {
	bus := transport.NewVirtualBus()
	a := bus.Connect()
	b := bus.Connect()
	if err := b.Open(); err != nil {
		t.Fatalf("b.Open: %v", err)
	}
	defer b.Close()

	iface := NewInterface(WithPeriodicInterval(5 * time.Millisecond))
	if err := iface.Assign(0, a, nil); err != nil {
		t.Fatalf("Assign: %v", err)
	}

	var transmitted atomic.Int32
	iface.OnFrameTransmitted(func(frame.Frame) {
		transmitted.Add(1)
	})

	if err := iface.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer iface.Stop()

	f, err := frame.New(frame.Identifier(0x18EE001C), []byte{1}, 0, frame.Outgoing)
	if err != nil {
		t.Fatalf("frame.New: %v", err)
	}
	if !iface.Transmit(0, f) {
		t.Fatal("Transmit() = false")
	}

	got, ok := b.ReadFrame()
	if !ok {
		t.Fatal("b never received the transmitted frame")
	}
	if got.ID != f.ID {
		t.Fatalf("got ID %#x, want %#x", uint32(got.ID), uint32(f.ID))
	}
	if transmitted.Load() == 0 {
		t.Fatal("OnFrameTransmitted callback never fired")
	}
}

func TestInterfaceAssignRejectsDuplicate(t *testing.T) {
	bus := transport.NewVirtualBus()
	a := bus.Connect()
	b := bus.Connect()

	iface := NewInterface()
	if err := iface.Assign(0, a, nil); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if err := iface.Assign(0, b, nil); err != ErrChannelExists {
		t.Fatalf("Assign duplicate = %v, want ErrChannelExists", err)
	}
}

// TestInterfaceAssignAndUnassignWhileRunning exercises spec §4.2's
// "safe to call whether or not the interface is running" contract for
// Assign/Unassign: assigning while running opens the transport and
// starts delivering frames without a Stop/Start cycle, and unassigning
// while running stops delivery and joins the channel's RX goroutine.
func TestInterfaceAssignAndUnassignWhileRunning(t *testing.T) {
	bus := transport.NewVirtualBus()
	a := bus.Connect()
	peer := bus.Connect()
	if err := peer.Open(); err != nil {
		t.Fatalf("peer.Open: %v", err)
	}
	defer peer.Close()

	iface := NewInterface(WithPeriodicInterval(5 * time.Millisecond))
	if err := iface.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer iface.Stop()

	recv := &recordingReceiver{}
	if err := iface.Assign(0, a, recv); err != nil {
		t.Fatalf("Assign while running: %v", err)
	}

	f, err := frame.New(frame.Identifier(0x0CFEF11C), []byte{1, 2, 3}, 0, frame.Outgoing)
	if err != nil {
		t.Fatalf("frame.New: %v", err)
	}
	if !peer.WriteFrame(f) {
		t.Fatal("peer.WriteFrame() = false")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && recv.count() == 0 {
		time.Sleep(10 * time.Millisecond)
	}
	if recv.count() != 1 {
		t.Fatalf("receiver got %d frames after Assign while running, want 1", recv.count())
	}

	if err := iface.Unassign(0); err != nil {
		t.Fatalf("Unassign while running: %v", err)
	}
	if iface.Transmit(0, f) {
		t.Fatal("Transmit() after Unassign should report false")
	}

	if !peer.WriteFrame(f) {
		t.Fatal("peer.WriteFrame() = false")
	}
	time.Sleep(50 * time.Millisecond)
	if recv.count() != 1 {
		t.Fatalf("receiver got %d frames after Unassign while running, want still 1", recv.count())
	}
}

func TestInterfaceStopIsIdempotentGuarded(t *testing.T) {
	iface := NewInterface()
	if err := iface.Stop(); err != ErrNotRunning {
		t.Fatalf("Stop before Start = %v, want ErrNotRunning", err)
	}
}
