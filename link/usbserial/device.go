package usbserial

import (
	"fmt"

	"gbalink/link"
)

type DeviceDescriptor struct {
	Port         string
	Baud         *int
	VID          string
	PID          string
	SerialNumber string
}

func (d DeviceDescriptor) Equals(other link.DeviceDescriptor) bool {
	otherd, ok := other.(DeviceDescriptor)
	if !ok {
		return false
	}
	return d.Port == otherd.Port
}

func (d DeviceDescriptor) DisplayName() string {
	if d.VID == "" {
		return d.Port
	}
	if board, ok := knownVIDs[d.VID]; ok {
		return fmt.Sprintf("%s (%s:%s, %s)", d.Port, d.VID, d.PID, board)
	}
	return fmt.Sprintf("%s (%s:%s)", d.Port, d.VID, d.PID)
}
