// Package network implements the per-network NetworkManager of spec §4.5:
// the address table, control-function registry, PGN callback dispatch,
// partner binding, busload estimate, and the send_can_message TX path.
package network
