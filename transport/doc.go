// Package transport defines the FrameTransport plugin contract (spec §4.1)
// and ships a handful of concrete transports: an in-memory virtual bus for
// tests, a Linux SocketCAN transport, and a serial-tunnel transport.
package transport
