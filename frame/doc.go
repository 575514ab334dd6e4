// Package frame implements the 29-bit extended CAN identifier used by
// ISO 11783 / J1939 (priority, PGN, source, destination) and the CAN data
// frame that carries up to 8 bytes of payload.
package frame
