package hardware

import (
	"log"
	"time"
)

// defaultPeriodicInterval matches the 4ms tick the reference stack drives
// its control-function state machines at (spec §4.2).
const defaultPeriodicInterval = 4 * time.Millisecond

// Option configures an Interface at construction time.
type Option func(*Interface)

// WithPeriodicInterval overrides the tick goroutine's wakeup period.
func WithPeriodicInterval(d time.Duration) Option {
	return func(i *Interface) {
		i.periodicInterval = d
	}
}

// WithLogger attaches a logger for channel lifecycle and drop events. The
// default is a discard logger, matching roffe-gocan's opt-in logging.
func WithLogger(l *log.Logger) Option {
	return func(i *Interface) {
		i.logger = l
	}
}

// WithQueueSizes overrides the per-channel RX/TX queue capacities.
func WithQueueSizes(rx, tx int) Option {
	return func(i *Interface) {
		i.rxQueueSize = rx
		i.txQueueSize = tx
	}
}
