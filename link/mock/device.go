package mock

import "gbalink/link"

type DeviceDescriptor struct {
	Faults Faults
}

func (m DeviceDescriptor) Equals(other link.DeviceDescriptor) bool {
	o, ok := other.(DeviceDescriptor)
	if !ok {
		return false
	}
	return o.Faults == m.Faults
}

func (m DeviceDescriptor) DisplayName() string {
	return "Mock"
}
