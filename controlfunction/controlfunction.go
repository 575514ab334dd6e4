package controlfunction

import (
	"sync"
	"sync/atomic"

	"github.com/GwnDaan/ISO11783-CAN-Stack/frame"
	"github.com/GwnDaan/ISO11783-CAN-Stack/name"
)

// Variant distinguishes the three control-function roles of spec §2:
// a CF we host and claim for, one we merely observe, and one we've bound
// to by NAME filter because we intend to talk to it.
type Variant int

const (
	Internal Variant = iota
	External
	Partnered
)

func (v Variant) String() string {
	switch v {
	case Internal:
		return "internal"
	case External:
		return "external"
	case Partnered:
		return "partnered"
	default:
		return "unknown"
	}
}

// Network is the minimal surface a ControlFunction's state machine needs
// from its owning network manager: enough to transmit address-claim
// traffic. It exists so this package never imports network, which owns
// ControlFunctions and would otherwise form an import cycle — the CF
// keeps only this weak, narrow back-reference (spec §3, §9).
type Network interface {
	Send(f frame.Frame) bool
	// Claimed notifies the network manager that cf just finalized an
	// address claim at addr, so its table can be updated without relying
	// on the bus echoing our own transmission back to us.
	Claimed(cf *InternalControlFunction, addr uint8)
}

// ControlFunction is a logical bus participant: a NAME plus a current
// address, tagged with its Variant and holding a weak back-reference to
// its network. InternalControlFunction and Partnered embed this.
type ControlFunction struct {
	Name    name.Name
	Variant Variant

	mu      sync.RWMutex
	address uint8

	network Network

	refCount atomic.Int32
}

func newBase(n name.Name, address uint8, variant Variant, network Network) ControlFunction {
	return ControlFunction{
		Name:    n,
		Variant: variant,
		address: address,
		network: network,
	}
}

// NAME returns the control function's NAME. It exists alongside the Name
// field so code holding a narrow interface (network's table entry) can
// still read the identity without depending on the concrete struct.
func (cf *ControlFunction) NAME() name.Name {
	return cf.Name
}

// Address returns the control function's current bus address.
func (cf *ControlFunction) Address() uint8 {
	cf.mu.RLock()
	defer cf.mu.RUnlock()
	return cf.address
}

// setAddress is the internal address setter used by a CF's own lifecycle
// (the address-claim state machine, or PartneredControlFunction.Bind).
func (cf *ControlFunction) setAddress(a uint8) {
	cf.mu.Lock()
	cf.address = a
	cf.mu.Unlock()
}

// Observe updates the control function's recorded address from network
// table bookkeeping. It is the setter external code (the NetworkManager)
// uses for External and Partnered CFs, whose address is learned purely
// from observed bus traffic rather than from an owned claim state
// machine.
func (cf *ControlFunction) Observe(a uint8) {
	cf.setAddress(a)
}

// AddressValid reports whether the control function currently holds a
// claimed address (neither null nor global).
func (cf *ControlFunction) AddressValid() bool {
	a := cf.Address()
	return a != frame.AddressNull && a != frame.AddressGlobal
}

// AddRef records one additional owner of this control function (e.g. a
// network-table slot or the inactive list). Destroy compares the count
// against its expectedRefCount argument.
func (cf *ControlFunction) AddRef() {
	cf.refCount.Add(1)
}

// Release drops one owner reference, the counterpart of AddRef.
func (cf *ControlFunction) Release() {
	cf.refCount.Add(-1)
}

// RefCount returns the current number of recorded owners.
func (cf *ControlFunction) RefCount() int {
	return int(cf.refCount.Load())
}

// Destroy tears the control function down once no more than
// expectedRefCount owners remain, mirroring can_control_function.hpp's
// destroy(): it sets the address to AddressNull and drops the network
// back-reference. It does not remove the control function from any
// network table or list. It returns false without effect if more owners
// than expected remain.
func (cf *ControlFunction) Destroy(expectedRefCount int) bool {
	if cf.RefCount() > expectedRefCount {
		return false
	}
	cf.mu.Lock()
	cf.address = frame.AddressNull
	cf.network = nil
	cf.mu.Unlock()
	return true
}

// ExternalControlFunction is an observed control function: NAME and
// address learned purely from address-claim traffic.
type ExternalControlFunction struct {
	ControlFunction
}

// NewExternal constructs an ExternalControlFunction, as the network
// manager does on first sighting an unrecognized NAME (spec §4.5 step 5).
func NewExternal(n name.Name, address uint8, network Network) *ExternalControlFunction {
	return &ExternalControlFunction{ControlFunction: newBase(n, address, External, network)}
}

// PartneredControlFunction is an external control function the
// application wants to address directly, bound lazily by NAME filter
// (spec §4.5 "Partner binding").
type PartneredControlFunction struct {
	ControlFunction
	Filters name.FilterSet

	mu    sync.Mutex
	bound bool
}

// NewPartnered constructs an unbound partner with the given filter set. It
// starts with AddressNull and no NAME until Bind succeeds.
func NewPartnered(filters name.FilterSet, network Network) *PartneredControlFunction {
	return &PartneredControlFunction{
		ControlFunction: newBase(0, frame.AddressNull, Partnered, network),
		Filters:         filters,
	}
}

// Bound reports whether this partner has been matched to an external CF.
func (p *PartneredControlFunction) Bound() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bound
}

// Bind replaces the partner's identity with the matched external CF's NAME
// and address, per spec §4.5: "the partner inherits NAME and address; the
// External CF is discarded." It fails if already bound.
func (p *PartneredControlFunction) Bind(matched *ExternalControlFunction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bound {
		return ErrAlreadyBound
	}
	p.Name = matched.Name
	p.setAddress(matched.Address())
	p.bound = true
	return nil
}

// Matches reports whether a NAME satisfies this partner's filter set.
func (p *PartneredControlFunction) Matches(n name.Name) bool {
	return p.Filters.Matches(n)
}
