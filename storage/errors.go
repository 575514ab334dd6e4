package storage

import "errors"

var (
	// ErrNotRunning is returned by RequestRead/RequestWrite when the
	// interface's worker goroutine has not been started.
	ErrNotRunning = errors.New("storage: interface not running")
	// ErrNotFound names a read of an id with no stored entry. Backend.Read
	// reports that case with ok=false; neither FileBackend nor Interface
	// returns ErrNotFound.
	ErrNotFound = errors.New("storage: entry not found")
)
