package name

// Parameter identifies one field of a NAME that a Filter can compare
// against, mirroring the NAMEFilter comparison fields from the ISOBUS
// partner-binding rules.
type Parameter int

const (
	ParameterIdentityNumber Parameter = iota
	ParameterManufacturerCode
	ParameterECUInstance
	ParameterFunctionInstance
	ParameterFunction
	ParameterDeviceClass
	ParameterDeviceClassInstance
	ParameterIndustryGroup
	ParameterArbitraryAddressCapable
)

// Filter compares a single NAME field against a fixed value.
type Filter struct {
	Parameter Parameter
	Value     uint32
}

func (f Filter) matches(n Name) bool {
	switch f.Parameter {
	case ParameterIdentityNumber:
		return uint32(n.IdentityNumber()) == f.Value
	case ParameterManufacturerCode:
		return uint32(n.ManufacturerCode()) == f.Value
	case ParameterECUInstance:
		return uint32(n.ECUInstance()) == f.Value
	case ParameterFunctionInstance:
		return uint32(n.FunctionInstance()) == f.Value
	case ParameterFunction:
		return uint32(n.Function()) == f.Value
	case ParameterDeviceClass:
		return uint32(n.DeviceClass()) == f.Value
	case ParameterDeviceClassInstance:
		return uint32(n.DeviceClassInstance()) == f.Value
	case ParameterIndustryGroup:
		return uint32(n.IndustryGroup()) == f.Value
	case ParameterArbitraryAddressCapable:
		arbitrary := uint32(0)
		if n.ArbitraryAddressCapable() {
			arbitrary = 1
		}
		return arbitrary == f.Value
	default:
		return false
	}
}

// FilterSet is a conjunction of Filters: a NAME matches only if every
// filter in the set matches.
type FilterSet []Filter

// Matches reports whether n satisfies every filter in the set. An empty
// set matches nothing, since a partner with no filters could never be
// bound unambiguously.
func (fs FilterSet) Matches(n Name) bool {
	if len(fs) == 0 {
		return false
	}
	for _, f := range fs {
		if !f.matches(n) {
			return false
		}
	}
	return true
}
