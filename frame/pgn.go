package frame

// Well-known PGNs used by the address-claim protocol and commanded-address
// message, per spec §4.4, §4.5, §6.
const (
	PGNRequest           uint32 = 0x00EA00
	PGNAddressClaim      uint32 = 0x00EE00
	PGNCommandedAddress  uint32 = 0x00FED8
)
