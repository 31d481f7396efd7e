package wsbridge

import "gbalink/link"

type DeviceDescriptor struct {
	URL string
}

func (m DeviceDescriptor) Equals(other link.DeviceDescriptor) bool {
	o, ok := other.(DeviceDescriptor)
	if !ok {
		return false
	}
	return o.URL == m.URL
}

func (m DeviceDescriptor) DisplayName() string {
	return m.URL
}
