// Package name implements the 64-bit ISO 11783 / J1939 NAME: the device
// identity used both for dynamic address-claim arbitration and for
// application-level device discovery.
package name
