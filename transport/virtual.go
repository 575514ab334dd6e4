package transport

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/GwnDaan/ISO11783-CAN-Stack/frame"
)

// VirtualBus is an in-memory CAN bus shared by any number of Virtual
// transports: frames written by one endpoint are delivered to every other
// endpoint on the same bus. It exists for tests and for simulating two
// networks that arbitrate against each other on one physical bus (spec
// scenario S2).
type VirtualBus struct {
	mu        sync.Mutex
	endpoints map[*Virtual]struct{}
}

// NewVirtualBus creates an empty virtual bus.
func NewVirtualBus() *VirtualBus {
	return &VirtualBus{endpoints: make(map[*Virtual]struct{})}
}

// Connect creates a new FrameTransport endpoint for the bus. The endpoint
// joins the bus, and starts receiving frames, once it is opened.
func (b *VirtualBus) Connect() *Virtual {
	return &Virtual{
		bus:   b,
		inbox: make(chan frame.Frame, 256),
	}
}

func (b *VirtualBus) broadcast(from *Virtual, f frame.Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ep := range b.endpoints {
		if ep == from {
			continue
		}
		select {
		case ep.inbox <- f:
		default:
			atomic.AddUint64(&ep.dropped, 1)
		}
	}
}

// Virtual is a FrameTransport backed by a VirtualBus. It never fails once
// opened; it exists purely for deterministic tests.
type Virtual struct {
	bus   *VirtualBus
	inbox chan frame.Frame

	mu      sync.Mutex
	open    bool
	dropped uint64
}

// Open registers this endpoint on its bus.
func (v *Virtual) Open() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.open {
		return nil
	}
	v.bus.mu.Lock()
	v.bus.endpoints[v] = struct{}{}
	v.bus.mu.Unlock()
	v.open = true
	return nil
}

// Close detaches this endpoint from its bus.
func (v *Virtual) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.open {
		return nil
	}
	v.bus.mu.Lock()
	delete(v.bus.endpoints, v)
	v.bus.mu.Unlock()
	v.open = false
	return nil
}

// IsValid reports whether the endpoint is currently attached.
func (v *Virtual) IsValid() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.open
}

// ReadFrame blocks up to ~1s waiting for a frame broadcast by another
// endpoint on the same bus.
func (v *Virtual) ReadFrame() (frame.Frame, bool) {
	select {
	case f := <-v.inbox:
		return f, true
	case <-time.After(time.Second):
		return frame.Frame{}, false
	}
}

// WriteFrame broadcasts f to every other endpoint on the bus.
func (v *Virtual) WriteFrame(f frame.Frame) bool {
	if !v.IsValid() {
		return false
	}
	v.bus.broadcast(v, f)
	return true
}

// DroppedFrames returns the number of frames this endpoint failed to
// deliver because its inbox was full, for test observability.
func (v *Virtual) DroppedFrames() uint64 {
	return atomic.LoadUint64(&v.dropped)
}
