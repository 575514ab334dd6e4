package network

import "errors"

var (
	// ErrDuplicateCallback is returned by an AddXPGNCallback method when
	// the same (PGN, scope) pair is already registered, per spec §7
	// "Duplicate registration".
	ErrDuplicateCallback = errors.New("network: callback already registered for this PGN")
	// ErrInvalidSend is returned by SendCANMessage for the invalid-send
	// conditions of spec §7: null source, unbound source address (outside
	// address-claim itself), oversize payload, or an unsupported
	// broadcast-PGN-with-destination combination.
	ErrInvalidSend = errors.New("network: invalid send")
	// ErrQueueOverflow signals that the RX queue dropped a frame because
	// it was full; observability only, not a hard failure.
	ErrQueueOverflow = errors.New("network: RX queue overflow")
)
