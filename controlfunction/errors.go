package controlfunction

import "errors"

var (
	// ErrNotInternal names an operation that requires an Internal control
	// function being applied to another variant. No function in this
	// package returns it: claiming and reclaiming are methods of
	// InternalControlFunction only.
	ErrNotInternal = errors.New("controlfunction: operation requires an internal control function")
	// ErrAlreadyBound is returned by Partnered.Bind when the partner is
	// already bound to an external control function.
	ErrAlreadyBound = errors.New("controlfunction: partner already bound")
)
