package network

import "log"

// Option configures a Manager at construction time, mirroring
// hardware.Option's functional-option pattern.
type Option func(*Manager)

// WithLogger attaches a logger for table and dispatch diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}
