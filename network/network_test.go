package network

import (
	"testing"
	"time"

	"github.com/GwnDaan/ISO11783-CAN-Stack/controlfunction"
	"github.com/GwnDaan/ISO11783-CAN-Stack/frame"
	"github.com/GwnDaan/ISO11783-CAN-Stack/hardware"
	"github.com/GwnDaan/ISO11783-CAN-Stack/name"
	"github.com/GwnDaan/ISO11783-CAN-Stack/protocol"
	"github.com/GwnDaan/ISO11783-CAN-Stack/transport"
)

func newTestManager(t *testing.T, v transport.FrameTransport) (*Manager, *hardware.Interface) {
	t.Helper()
	hw := hardware.NewInterface(hardware.WithPeriodicInterval(5 * time.Millisecond))
	mgr := NewManager(0, hw)
	if err := hw.Assign(0, v, mgr); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if err := hw.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { hw.Stop() })
	return mgr, hw
}

// TestSoloClaimIntegration exercises spec scenario S1 through the full
// hardware -> network -> controlfunction stack.
func TestSoloClaimIntegration(t *testing.T) {
	bus := transport.NewVirtualBus()
	mgr, _ := newTestManager(t, bus.Connect())

	cf := mgr.AddInternal(name.Name(1), 0x1C)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && cf.Address() != 0x1C {
		time.Sleep(10 * time.Millisecond)
	}
	if cf.Address() != 0x1C {
		t.Fatalf("address = %#x, want 0x1C", cf.Address())
	}
}

// TestTwoNetworksArbitration exercises spec scenario S2: two Internal CFs
// on separate networks sharing one virtual bus, both preferring 0x1C.
// NAME 0x01 should win the address; NAME 0x02, being arbitrary-address
// capable, should land on the first dynamic address.
func TestTwoNetworksArbitration(t *testing.T) {
	bus := transport.NewVirtualBus()
	mgrA, _ := newTestManager(t, bus.Connect())
	mgrB, _ := newTestManager(t, bus.Connect())

	winnerName := name.New(name.Fields{IdentityNumber: 1, ArbitraryAddressCapable: true})
	loserName := name.New(name.Fields{IdentityNumber: 2, ArbitraryAddressCapable: true})

	winner := mgrA.AddInternal(winnerName, 0x1C)
	loser := mgrB.AddInternal(loserName, 0x1C)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if winner.State() == controlfunction.AddressClaimed {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	time.Sleep(200 * time.Millisecond)

	if winner.Address() != 0x1C {
		t.Fatalf("winner address = %#x, want 0x1C", winner.Address())
	}
	if loser.Address() == 0x1C {
		t.Fatal("loser should not hold the contested address")
	}
	if loser.Address() < frame.DynamicAddressRangeStart {
		t.Fatalf("loser address = %#x, want a dynamic-range address", loser.Address())
	}
}

// TestPartnerBinding exercises spec scenario S4: an External CF is
// replaced in place by a matching Partner.
func TestPartnerBinding(t *testing.T) {
	mgr := NewManager(0, hardware.NewInterface())

	vtName := name.New(name.Fields{Function: 29})
	mgr.cfMu.Lock()
	mgr.table[0x26] = controlfunction.NewExternal(vtName, 0x26, mgr)
	mgr.cfMu.Unlock()

	partner := mgr.AddPartner(name.FilterSet{{Parameter: name.ParameterFunction, Value: 29}})

	mgr.cfMu.Lock()
	mgr.bindPartnersLocked()
	mgr.cfMu.Unlock()

	if !partner.Bound() {
		t.Fatal("partner did not bind")
	}
	if partner.Address() != 0x26 {
		t.Fatalf("partner address = %#x, want 0x26", partner.Address())
	}
	mgr.cfMu.Lock()
	_, holdsPartner := mgr.table[0x26].(interface{ Bound() bool })
	mgr.cfMu.Unlock()
	if !holdsPartner {
		t.Fatal("expected the table slot to hold the partner, not the external CF")
	}
}

// TestBusloadMonotonicAndBounded exercises invariant 6.
func TestBusloadMonotonicAndBounded(t *testing.T) {
	w := newBusloadWindow(time.Now())
	now := time.Now()
	prev := w.Percentage()
	for i := 0; i < 50; i++ {
		w.record(now, 8)
		pct := w.Percentage()
		if pct < prev {
			t.Fatalf("busload decreased from %.4f to %.4f after recording a frame", prev, pct)
		}
		if pct > 100 {
			t.Fatalf("busload %.4f exceeds 100", pct)
		}
		prev = pct
	}
}

// TestDuplicateCallbackRegistration exercises spec §7 "Duplicate
// registration".
func TestDuplicateCallbackRegistration(t *testing.T) {
	mgr := NewManager(0, hardware.NewInterface())
	ok, err := mgr.AddGlobalPGNCallback(frame.PGNRequest, func(*protocol.Message) {})
	if !ok || err != nil {
		t.Fatalf("first registration: ok=%v err=%v", ok, err)
	}
	ok, err = mgr.AddGlobalPGNCallback(frame.PGNRequest, func(*protocol.Message) {})
	if ok || err != ErrDuplicateCallback {
		t.Fatalf("duplicate registration: ok=%v err=%v, want false/ErrDuplicateCallback", ok, err)
	}
	if !mgr.RemoveGlobalPGNCallback(frame.PGNRequest) {
		t.Fatal("Remove of an existing callback should succeed")
	}
	if mgr.RemoveGlobalPGNCallback(frame.PGNRequest) {
		t.Fatal("Remove of an already-removed callback should fail")
	}
}

// TestCommandedAddressDispatch exercises spec scenario S5 at the network
// dispatch layer: a 9-byte PGN 0xFED8 frame naming our CF reclaims us at
// the commanded address.
func TestCommandedAddressDispatch(t *testing.T) {
	bus := transport.NewVirtualBus()
	mgr, _ := newTestManager(t, bus.Connect())
	observer := bus.Connect()
	if err := observer.Open(); err != nil {
		t.Fatalf("observer.Open: %v", err)
	}
	defer observer.Close()

	n := name.Name(7)
	cf := mgr.AddInternal(n, 0x1C)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && cf.Address() != 0x1C {
		time.Sleep(10 * time.Millisecond)
	}
	if cf.Address() != 0x1C {
		t.Fatalf("precondition: address = %#x, want 0x1C", cf.Address())
	}

	id, err := frame.Build(3, frame.PGNCommandedAddress, 0xF0, frame.AddressGlobal)
	if err != nil {
		t.Fatalf("frame.Build: %v", err)
	}
	b := n.Bytes()
	data := append(b[:], 0x40)
	f, err := frame.New(id, data, 0, frame.Outgoing)
	if err != nil {
		t.Fatalf("frame.New: %v", err)
	}
	if !observer.WriteFrame(f) {
		t.Fatal("WriteFrame() = false")
	}

	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && cf.Address() != 0x40 {
		time.Sleep(10 * time.Millisecond)
	}
	if cf.Address() != 0x40 {
		t.Fatalf("address after commanded address = %#x, want 0x40", cf.Address())
	}
}
