// Package hardware implements the multi-channel frame pump described in
// spec §4.2: a hardware interface that drives N bus channels concurrently,
// each bound to a pluggable transport.FrameTransport, and exposes frame
// I/O as three event streams (frame received, frame transmitted, periodic
// tick).
package hardware
