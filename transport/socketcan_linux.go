//go:build linux

package transport

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GwnDaan/ISO11783-CAN-Stack/frame"
	"go.einride.tech/can"
	"go.einride.tech/can/pkg/candevice"
	"go.einride.tech/can/pkg/socketcan"
)

// SocketCAN is a FrameTransport over a Linux SocketCAN network interface
// (e.g. can0, vcan0), using go.einride.tech/can for the device and raw
// socket plumbing.
type SocketCAN struct {
	ifaceName string
	bitrate   uint32

	mu     sync.Mutex
	valid  atomic.Bool
	conn   net.Conn
	device *candevice.Device
	tx     *socketcan.Transmitter
	rx     *socketcan.Receiver
	cancel context.CancelFunc
}

// NewSocketCAN creates a SocketCAN transport bound to the named interface
// (e.g. "can0"). Open applies a non-zero bitrate before bringing the
// interface up, whether or not the interface is already up, and fails if
// setting it fails; a bitrate of 0 leaves the interface's bitrate as it
// is.
func NewSocketCAN(iface string, bitrateBPS uint32) *SocketCAN {
	return &SocketCAN{ifaceName: iface, bitrate: bitrateBPS}
}

// Open brings the interface up (if needed) and dials a raw CAN socket. It
// is idempotent.
func (s *SocketCAN) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.valid.Load() {
		return nil
	}

	device, err := candevice.New(s.ifaceName)
	if err != nil {
		return err
	}
	if s.bitrate > 0 {
		if err := device.SetBitrate(s.bitrate); err != nil {
			return err
		}
	}
	if err := device.SetUp(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	conn, err := socketcan.DialContext(ctx, "can", s.ifaceName)
	if err != nil {
		cancel()
		return err
	}

	s.device = device
	s.conn = conn
	s.tx = socketcan.NewTransmitter(conn)
	s.rx = socketcan.NewReceiver(conn)
	s.cancel = cancel
	s.valid.Store(true)
	return nil
}

// Close tears down the socket and brings the interface back down.
func (s *SocketCAN) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.valid.Load() {
		return nil
	}
	s.valid.Store(false)
	if s.cancel != nil {
		s.cancel()
	}
	var err error
	if s.conn != nil {
		err = s.conn.Close()
	}
	if s.device != nil {
		_ = s.device.SetDown()
	}
	return err
}

// IsValid reports whether the socket is currently open.
func (s *SocketCAN) IsValid() bool {
	return s.valid.Load()
}

// ReadFrame blocks up to ~1s for an incoming frame.
func (s *SocketCAN) ReadFrame() (frame.Frame, bool) {
	if !s.valid.Load() {
		return frame.Frame{}, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan bool, 1)
	go func() {
		done <- s.rx.Receive()
	}()

	select {
	case ok := <-done:
		if !ok {
			s.valid.Store(false)
			return frame.Frame{}, false
		}
		raw := s.rx.Frame()
		f, err := frame.New(frame.Identifier(raw.ID), raw.Data[:raw.Length], 0, frame.Incoming)
		if err != nil {
			return frame.Frame{}, false
		}
		return f, true
	case <-ctx.Done():
		return frame.Frame{}, false
	}
}

// WriteFrame transmits f over the socket.
func (s *SocketCAN) WriteFrame(f frame.Frame) bool {
	if !s.valid.Load() {
		return false
	}
	raw := can.Frame{
		ID:         uint32(f.ID),
		IsExtended: f.ID.IsExtended(),
		Length:     uint8(f.Length()),
	}
	copy(raw.Data[:], f.Data)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.tx.TransmitFrame(ctx, raw); err != nil {
		s.valid.Store(false)
		return false
	}
	return true
}
