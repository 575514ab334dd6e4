package name

import "encoding/binary"

// Name is the 64-bit packed ISO 11783 / J1939 device identity. The zero
// value is not a valid NAME; build one with New.
type Name uint64

// Field bit layout, LSB first. Widths sum to 64.
const (
	identityNumberBits         = 21
	manufacturerCodeBits       = 11
	ecuInstanceBits            = 3
	functionInstanceBits       = 5
	functionBits               = 8
	reservedBits               = 1
	deviceClassBits            = 7
	deviceClassInstanceBits    = 4
	industryGroupBits          = 3
	arbitraryAddressCapableBit = 1

	identityNumberOffset           = 0
	manufacturerCodeOffset         = identityNumberOffset + identityNumberBits
	ecuInstanceOffset              = manufacturerCodeOffset + manufacturerCodeBits
	functionInstanceOffset         = ecuInstanceOffset + ecuInstanceBits
	functionOffset                 = functionInstanceOffset + functionInstanceBits
	reservedOffset                 = functionOffset + functionBits
	deviceClassOffset              = reservedOffset + reservedBits
	deviceClassInstanceOffset      = deviceClassOffset + deviceClassBits
	industryGroupOffset            = deviceClassInstanceOffset + deviceClassInstanceBits
	arbitraryAddressCapableOffset  = industryGroupOffset + industryGroupBits
)

func mask(bits uint) uint64 {
	return (1 << bits) - 1
}

func field(n Name, offset, bits uint) uint64 {
	return (uint64(n) >> offset) & mask(bits)
}

func withField(n Name, offset, bits uint, value uint64) Name {
	cleared := uint64(n) &^ (mask(bits) << offset)
	return Name(cleared | ((value & mask(bits)) << offset))
}

// Fields is the plain-struct view of a NAME's packed contents, used both to
// build a Name and to inspect one.
type Fields struct {
	IdentityNumber          uint32 // 21 bits
	ManufacturerCode        uint16 // 11 bits
	ECUInstance             uint8  // 3 bits
	FunctionInstance        uint8  // 5 bits
	Function                uint8  // 8 bits
	DeviceClass             uint8  // 7 bits
	DeviceClassInstance     uint8  // 4 bits
	IndustryGroup           uint8  // 3 bits
	ArbitraryAddressCapable bool
}

// New packs Fields into a Name. The reserved bit is always zero.
func New(f Fields) Name {
	var n Name
	n = withField(n, identityNumberOffset, identityNumberBits, uint64(f.IdentityNumber))
	n = withField(n, manufacturerCodeOffset, manufacturerCodeBits, uint64(f.ManufacturerCode))
	n = withField(n, ecuInstanceOffset, ecuInstanceBits, uint64(f.ECUInstance))
	n = withField(n, functionInstanceOffset, functionInstanceBits, uint64(f.FunctionInstance))
	n = withField(n, functionOffset, functionBits, uint64(f.Function))
	n = withField(n, deviceClassOffset, deviceClassBits, uint64(f.DeviceClass))
	n = withField(n, deviceClassInstanceOffset, deviceClassInstanceBits, uint64(f.DeviceClassInstance))
	n = withField(n, industryGroupOffset, industryGroupBits, uint64(f.IndustryGroup))
	if f.ArbitraryAddressCapable {
		n = withField(n, arbitraryAddressCapableOffset, arbitraryAddressCapableBit, 1)
	}
	return n
}

// Fields unpacks a Name back into its components.
func (n Name) Fields() Fields {
	return Fields{
		IdentityNumber:          uint32(field(n, identityNumberOffset, identityNumberBits)),
		ManufacturerCode:        uint16(field(n, manufacturerCodeOffset, manufacturerCodeBits)),
		ECUInstance:             uint8(field(n, ecuInstanceOffset, ecuInstanceBits)),
		FunctionInstance:        uint8(field(n, functionInstanceOffset, functionInstanceBits)),
		Function:                uint8(field(n, functionOffset, functionBits)),
		DeviceClass:             uint8(field(n, deviceClassOffset, deviceClassBits)),
		DeviceClassInstance:     uint8(field(n, deviceClassInstanceOffset, deviceClassInstanceBits)),
		IndustryGroup:           uint8(field(n, industryGroupOffset, industryGroupBits)),
		ArbitraryAddressCapable: field(n, arbitraryAddressCapableOffset, arbitraryAddressCapableBit) != 0,
	}
}

func (n Name) IdentityNumber() uint32   { return uint32(field(n, identityNumberOffset, identityNumberBits)) }
func (n Name) ManufacturerCode() uint16 { return uint16(field(n, manufacturerCodeOffset, manufacturerCodeBits)) }
func (n Name) ECUInstance() uint8       { return uint8(field(n, ecuInstanceOffset, ecuInstanceBits)) }
func (n Name) FunctionInstance() uint8  { return uint8(field(n, functionInstanceOffset, functionInstanceBits)) }
func (n Name) Function() uint8          { return uint8(field(n, functionOffset, functionBits)) }
func (n Name) DeviceClass() uint8       { return uint8(field(n, deviceClassOffset, deviceClassBits)) }
func (n Name) DeviceClassInstance() uint8 {
	return uint8(field(n, deviceClassInstanceOffset, deviceClassInstanceBits))
}
func (n Name) IndustryGroup() uint8 { return uint8(field(n, industryGroupOffset, industryGroupBits)) }

// ArbitraryAddressCapable reports whether this device may move to another
// address in the dynamic range (128..247) when it loses arbitration.
func (n Name) ArbitraryAddressCapable() bool {
	return field(n, arbitraryAddressCapableOffset, arbitraryAddressCapableBit) != 0
}

// Less implements the J1939 arbitration rule: the lower full-NAME value
// wins the address.
func (n Name) Less(other Name) bool {
	return uint64(n) < uint64(other)
}

// Bytes encodes the NAME as its 8-byte little-endian wire representation
// (byte 0 = bits 0-7), per spec §6.
func (n Name) Bytes() [8]byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(n))
	return b
}

// Decode parses an 8-byte little-endian NAME payload.
func Decode(b []byte) Name {
	var buf [8]byte
	copy(buf[:], b)
	return Name(binary.LittleEndian.Uint64(buf[:]))
}
