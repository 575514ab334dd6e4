package transport

import (
	"errors"

	"github.com/GwnDaan/ISO11783-CAN-Stack/frame"
)

// ErrNotValid names the state of a transport that has lost its underlying
// OS handle and needs to be reopened. The transports in this package
// report that state through IsValid and the ok/bool results of ReadFrame
// and WriteFrame; none of them returns ErrNotValid.
var ErrNotValid = errors.New("transport: not valid")

// FrameTransport is the plugin contract between the hardware interface and
// one physical or virtual CAN channel. Implementations never panic or
// return errors from the hot path; failures are surfaced by IsValid
// dropping to false, per spec §4.1.
type FrameTransport interface {
	// Open is best-effort and idempotent: calling it on an already-open
	// transport is a no-op.
	Open() error
	// Close releases OS handles. Safe to call when not open.
	Close() error
	// IsValid reports whether the transport believes it can currently
	// read and write frames.
	IsValid() bool
	// ReadFrame blocks up to a small timeout (~1s) to allow cooperative
	// shutdown. It returns ok=false on timeout or transient error.
	ReadFrame() (f frame.Frame, ok bool)
	// WriteFrame is synchronous and returns false on a hard error.
	WriteFrame(f frame.Frame) bool
}
