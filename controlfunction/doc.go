// Package controlfunction implements the ISO 11783 control-function
// lifecycle of spec §4.4: the Internal/External/Partnered variants, and
// the per-Internal-CF address-claim state machine.
package controlfunction
