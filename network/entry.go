package network

import (
	"github.com/GwnDaan/ISO11783-CAN-Stack/name"
)

// cfEntry is the narrow view of a control function the address table and
// inactive list need: its NAME and current address. Every
// controlfunction variant satisfies it via the embedded
// controlfunction.ControlFunction's Address/NAME methods.
type cfEntry interface {
	Address() uint8
	NAME() name.Name
}
