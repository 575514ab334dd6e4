// Package protocol defines the transport-layer plug-in surface of spec
// §4.6: the Protocol capability interface and a Registry that the
// network manager offers messages to. It does not implement any
// transport-layer protocol body (BAM/CM/ETP/FP); those are out of scope
// per spec §1 — only the registration seam lives here.
package protocol
