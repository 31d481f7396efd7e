package udpbridge

import "gbalink/link"

type DeviceDescriptor struct {
	Addr string
}

func (m DeviceDescriptor) Equals(other link.DeviceDescriptor) bool {
	o, ok := other.(DeviceDescriptor)
	if !ok {
		return false
	}
	return o.Addr == m.Addr
}

func (m DeviceDescriptor) DisplayName() string {
	return "udp://" + m.Addr
}
