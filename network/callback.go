package network

import (
	"sync"

	"github.com/GwnDaan/ISO11783-CAN-Stack/controlfunction"
	"github.com/GwnDaan/ISO11783-CAN-Stack/protocol"
)

// callbackKey identifies one registration slot: a PGN, plus (for
// partner-scoped callbacks only) the owning partner. Non-partnered scopes
// always use a nil partner.
type callbackKey struct {
	pgn     uint32
	partner *controlfunction.PartneredControlFunction
}

// callbackRegistry is the one generic registry type behind all four PGN
// callback scopes named in spec §4.5 (global / any-CF / per-partner /
// protocol), replacing the original's four parallel, near-identical C++
// methods (spec §9, SPEC_FULL §4 supplemental operations). Duplicate
// registration is detected by (PGN, partner) identity rather than by
// comparing callback values, since Go funcs aren't comparable — an
// intentional simplification from the source's pointer-equality check,
// recorded in DESIGN.md.
type callbackRegistry struct {
	mu       sync.Mutex
	handlers map[callbackKey]func(*protocol.Message)
}

func newCallbackRegistry() *callbackRegistry {
	return &callbackRegistry{handlers: make(map[callbackKey]func(*protocol.Message))}
}

func (r *callbackRegistry) add(pgn uint32, partner *controlfunction.PartneredControlFunction, fn func(*protocol.Message)) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := callbackKey{pgn, partner}
	if _, exists := r.handlers[k]; exists {
		return false, ErrDuplicateCallback
	}
	r.handlers[k] = fn
	return true, nil
}

func (r *callbackRegistry) remove(pgn uint32, partner *controlfunction.PartneredControlFunction) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := callbackKey{pgn, partner}
	if _, exists := r.handlers[k]; !exists {
		return false
	}
	delete(r.handlers, k)
	return true
}

// fire invokes the callback for (pgn, partner) without holding the
// registry lock, per spec §5's callback discipline.
func (r *callbackRegistry) fire(pgn uint32, partner *controlfunction.PartneredControlFunction, msg *protocol.Message) {
	r.mu.Lock()
	fn := r.handlers[callbackKey{pgn, partner}]
	r.mu.Unlock()
	if fn != nil {
		fn(msg)
	}
}
