// Package storage implements the persisted key-value pump described in
// spec §1/§5 as a sibling of the CAN hardware pump: a StorageBackend
// plugin contract, a file-backed default implementation, and an
// Interface pump that queues reads and writes onto a single worker
// goroutine, per SPEC_FULL §5's structural-subset specification.
package storage
