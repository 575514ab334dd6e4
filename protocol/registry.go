package protocol

import (
	"errors"
	"sync"
)

// ErrAlreadyRegistered is returned by Register when the same protocol
// instance is registered twice.
var ErrAlreadyRegistered = errors.New("protocol: already registered")

// Registry holds the protocols owned by one network, per spec §4.6:
// "Protocols are owned by their networks and dropped at network
// teardown."
type Registry struct {
	mu        sync.Mutex
	protocols []Protocol
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a protocol and calls its Initialize.
func (r *Registry) Register(p Protocol) error {
	r.mu.Lock()
	for _, existing := range r.protocols {
		if existing == p {
			r.mu.Unlock()
			return ErrAlreadyRegistered
		}
	}
	r.protocols = append(r.protocols, p)
	r.mu.Unlock()
	return p.Initialize()
}

// Unregister removes a protocol. It is a no-op if not registered.
func (r *Registry) Unregister(p Protocol) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.protocols {
		if existing == p {
			r.protocols = append(r.protocols[:i], r.protocols[i+1:]...)
			return
		}
	}
}

// Update calls Update on every registered protocol, once per network
// update tick.
func (r *Registry) Update() {
	r.mu.Lock()
	protocols := append([]Protocol{}, r.protocols...)
	r.mu.Unlock()
	for _, p := range protocols {
		p.Update()
	}
}

// TransmitMessage offers a send to each registered protocol in order; the
// first to accept it owns the message, per spec §4.5's TX path.
func (r *Registry) TransmitMessage(pgn uint32, data []byte, src, dst uint8, cb CompletionCallback) bool {
	r.mu.Lock()
	protocols := append([]Protocol{}, r.protocols...)
	r.mu.Unlock()
	for _, p := range protocols {
		if p.ProtocolTransmitMessage(pgn, data, src, dst, cb) {
			return true
		}
	}
	return false
}
