package controlfunction

import (
	"sync"
	"time"

	"github.com/GwnDaan/ISO11783-CAN-Stack/frame"
	"github.com/GwnDaan/ISO11783-CAN-Stack/name"
)

// ClaimState enumerates the address-claim lifecycle of spec §4.4.
type ClaimState int

const (
	Idle ClaimState = iota
	WaitingForClaim
	Claiming
	AddressClaimed
	UnableToClaim
)

func (s ClaimState) String() string {
	switch s {
	case Idle:
		return "idle"
	case WaitingForClaim:
		return "waiting-for-claim"
	case Claiming:
		return "claiming"
	case AddressClaimed:
		return "address-claimed"
	case UnableToClaim:
		return "unable-to-claim"
	default:
		return "unknown"
	}
}

const (
	claimPriority = 6
	claimingWait  = 250 * time.Millisecond
	holdOffMax    = 154 // ms, spec §4.4: randomized hold-off of 0-153 ms
)

// holdOff derives the 0-153ms pre-claim delay deterministically from the
// NAME, per spec §9's open question: the source left the randomization
// unspecified, so this module picks a deterministic-per-NAME function of
// the NAME value rather than a seeded PRNG, satisfying "identical NAMEs
// would still desync" only to the extent two different NAMEs hash apart
// (NAMEs are required unique by spec, so this is sufficient).
func holdOff(n name.Name) time.Duration {
	return time.Duration(uint64(n)%holdOffMax) * time.Millisecond
}

// InternalControlFunction is a control function we host: it owns an
// AddressClaimStateMachine and is the only variant that may transmit
// address-claims (spec §3).
type InternalControlFunction struct {
	ControlFunction
	PreferredAddress uint8

	mu          sync.Mutex
	state       ClaimState
	deadline    time.Time
	claimedAt   time.Time
	nextDynamic uint8
	arbitrary   bool
}

// NewInternal constructs an Internal control function and immediately
// schedules its address-claim hold-off (Idle -> WaitingForClaim on
// construction, per spec §4.4).
func NewInternal(n name.Name, preferredAddress uint8, network Network) *InternalControlFunction {
	cf := &InternalControlFunction{
		ControlFunction:  newBase(n, frame.AddressNull, Internal, network),
		PreferredAddress: preferredAddress,
		arbitrary:        n.ArbitraryAddressCapable(),
		nextDynamic:      frame.DynamicAddressRangeStart,
	}
	cf.mu.Lock()
	cf.state = WaitingForClaim
	cf.deadline = time.Now().Add(holdOff(n))
	cf.mu.Unlock()
	return cf
}

// State returns the current claim state.
func (cf *InternalControlFunction) State() ClaimState {
	cf.mu.Lock()
	defer cf.mu.Unlock()
	return cf.state
}

// ClaimedAt returns the time the control function last completed an
// address claim. It is the zero time if it has never claimed.
func (cf *InternalControlFunction) ClaimedAt() time.Time {
	cf.mu.Lock()
	defer cf.mu.Unlock()
	return cf.claimedAt
}

// Tick advances the state machine's time-driven transitions: the
// hold-off expiring, and the 250ms claiming window expiring. It is called
// once per NetworkManager.Update(), which runs once per hardware tick.
func (cf *InternalControlFunction) Tick(now time.Time) {
	cf.mu.Lock()
	state, deadline, target := cf.state, cf.deadline, cf.PreferredAddress
	cf.mu.Unlock()

	switch state {
	case WaitingForClaim:
		if now.Before(deadline) {
			return
		}
		cf.beginClaiming(now, target)
	case Claiming:
		if now.Before(deadline) {
			return
		}
		cf.finalizeClaim(target)
	}
}

// beginClaiming transmits the request-for-address-claim frame and enters
// the 250ms listening window.
func (cf *InternalControlFunction) beginClaiming(now time.Time, target uint8) {
	req, err := frame.Build(claimPriority, frame.PGNRequest, frame.AddressNull, frame.AddressNull)
	if err == nil {
		pgn := uint32(frame.PGNAddressClaim)
		f, ferr := frame.New(req, []byte{
			byte(pgn), byte(pgn >> 8), byte(pgn >> 16),
		}, 0, frame.Outgoing)
		if ferr == nil {
			cf.network.Send(f)
		}
	}
	cf.mu.Lock()
	cf.state = Claiming
	cf.deadline = now.Add(claimingWait)
	cf.mu.Unlock()
}

// finalizeClaim transmits our address-claim at target and marks the CF
// claimed, unless a competing claim arrived during the window and already
// forced a state change (handled by NotifyConflict).
func (cf *InternalControlFunction) finalizeClaim(target uint8) {
	cf.mu.Lock()
	if cf.state != Claiming {
		cf.mu.Unlock()
		return
	}
	cf.mu.Unlock()

	cf.transmitClaim(target)

	cf.mu.Lock()
	cf.state = AddressClaimed
	cf.claimedAt = time.Now()
	cf.mu.Unlock()
	cf.setAddress(target)
	cf.network.Claimed(cf, target)
}

func (cf *InternalControlFunction) transmitClaim(src uint8) {
	id, err := frame.Build(claimPriority, frame.PGNAddressClaim, src, frame.AddressGlobal)
	if err != nil {
		return
	}
	b := cf.Name.Bytes()
	f, err := frame.New(id, b[:], 0, frame.Outgoing)
	if err != nil {
		return
	}
	cf.network.Send(f)
}

// transmitCannotClaim sends the "cannot claim" variant: an address-claim
// frame with source address null, per spec §4.4.
func (cf *InternalControlFunction) transmitCannotClaim() {
	cf.transmitClaim(frame.AddressNull)
}

// NotifyConflict is called by the network manager when it observes a
// competing address-claim for the address we currently hold or are
// claiming. It implements the AddressClaimed -> Claiming and
// Claiming -> {Claiming, UnableToClaim} transitions of spec §4.4.
func (cf *InternalControlFunction) NotifyConflict(competitor name.Name) {
	cf.mu.Lock()
	state := cf.state
	cf.mu.Unlock()

	if state != Claiming && state != AddressClaimed {
		return
	}
	if cf.Name.Less(competitor) {
		// Our full-NAME is lower: we keep the address, retransmit to
		// assert it.
		if state == AddressClaimed {
			cf.transmitClaim(cf.Address())
		}
		return
	}
	cf.mu.Lock()
	canMoveDynamic := cf.arbitrary && cf.nextDynamic <= frame.DynamicAddressRangeEnd
	cf.mu.Unlock()
	if canMoveDynamic {
		cf.mu.Lock()
		next := cf.nextDynamic
		cf.nextDynamic++
		cf.PreferredAddress = next
		cf.state = Claiming
		cf.deadline = time.Now().Add(claimingWait)
		cf.mu.Unlock()
		return
	}
	cf.transmitCannotClaim()
	cf.mu.Lock()
	cf.state = UnableToClaim
	cf.mu.Unlock()
	cf.setAddress(frame.AddressNull)
}

// Reclaim forces the state machine back into Claiming at the given
// address, used by the commanded-address sub-flow (spec §4.4 "Any ->
// Claiming on explicit reclaim() or commanded-address").
func (cf *InternalControlFunction) Reclaim(address uint8) {
	cf.mu.Lock()
	cf.PreferredAddress = address
	cf.state = Claiming
	cf.deadline = time.Now().Add(claimingWait)
	cf.mu.Unlock()
}

// HandleCommandedAddress checks whether a commanded-address message (PGN
// 0x00FED8) targets our NAME, and if so reclaims at the new address. It
// reports whether the message was ours.
func (cf *InternalControlFunction) HandleCommandedAddress(target name.Name, newAddress uint8) bool {
	if target != cf.Name {
		return false
	}
	cf.Reclaim(newAddress)
	return true
}
