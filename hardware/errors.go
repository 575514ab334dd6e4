package hardware

import "errors"

var (
	// ErrNoChannel is returned by Unassign when no channel is assigned for
	// the given network. Transmit reports the same condition by returning
	// false.
	ErrNoChannel = errors.New("hardware: no channel assigned for network")
	// ErrChannelExists is returned by Assign when a channel is already
	// assigned for the given network.
	ErrChannelExists = errors.New("hardware: channel already assigned for network")
	// ErrAlreadyRunning / ErrNotRunning guard Start/Stop against misuse.
	ErrAlreadyRunning = errors.New("hardware: interface already running")
	ErrNotRunning     = errors.New("hardware: interface not running")
)
