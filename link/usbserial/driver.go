package usbserial

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"gbalink/link"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

const driverName = "serial"

var (
	baudRates = []int{
		921600, // first rate that works on Windows
		460800,
		256000,
		230400, // first rate that works on MacOS
		153600,
		128000,
		115200,
		57600,
		38400,
		19200,
		9600,
	}

	// USB vendor IDs of microcontroller boards commonly flashed as link cable adapters:
	knownVIDs = map[string]string{
		"2E8A": "Raspberry Pi RP2040",
		"239A": "Adafruit",
		"2341": "Arduino",
		"1B4F": "SparkFun",
		"16C0": "Teensy",
	}
)

type Driver struct{}

func (d *Driver) DisplayOrder() int {
	return 0
}

func (d *Driver) DisplayName() string {
	return "USB Link Adapter"
}

func (d *Driver) DisplayDescription() string {
	return "Connect to a link cable adapter over a USB serial port"
}

func (d *Driver) Detect() (devices []link.DeviceDescriptor, err error) {
	var ports []*enumerator.PortDetails

	ports, err = enumerator.GetDetailedPortsList()
	if err != nil {
		return
	}

	known := make([]link.DeviceDescriptor, 0, len(ports))
	unknown := make([]link.DeviceDescriptor, 0, len(ports))
	for _, port := range ports {
		if !port.IsUSB {
			continue
		}

		desc := DeviceDescriptor{
			Port:         port.Name,
			VID:          strings.ToUpper(port.VID),
			PID:          strings.ToUpper(port.PID),
			SerialNumber: port.SerialNumber,
		}
		if _, ok := knownVIDs[desc.VID]; ok {
			known = append(known, desc)
		} else {
			unknown = append(unknown, desc)
		}
	}

	// prefer adapters built on boards we recognize:
	devices = append(known, unknown...)
	return
}

// Descriptor accepts "PORT" or "PORT;BAUD".
func (d *Driver) Descriptor(name string) (link.DeviceDescriptor, error) {
	parts := strings.Split(name, ";")

	desc := DeviceDescriptor{Port: parts[0]}
	if desc.Port == "" {
		return nil, fmt.Errorf("serial: empty port name")
	}
	if len(parts) > 1 {
		n, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("serial: bad baud rate %q: %w", parts[1], err)
		}
		desc.Baud = &n
	}

	return desc, nil
}

func (d *Driver) Open(ddev link.DeviceDescriptor) (link.ByteLink, error) {
	desc, ok := ddev.(DeviceDescriptor)
	if !ok {
		return nil, fmt.Errorf("serial: unexpected device descriptor %T", ddev)
	}

	baudRequest := baudRates[0]
	if desc.Baud != nil {
		baudRequest = *desc.Baud
	}

	// Try all the common baud rates in descending order:
	var err error
	f := serial.Port(nil)
	for _, baud := range baudRates {
		if baud > baudRequest {
			continue
		}

		f, err = serial.Open(desc.Port, &serial.Mode{
			BaudRate: baud,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		})
		if err == nil {
			log.Printf("serial: %s: opened at %d baud\n", desc.Port, baud)
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("serial: failed to open serial port at any baud rate: %w", err)
	}

	// adapters only start clocking the link once DTR is set:
	if err = f.SetDTR(true); err != nil {
		f.Close()
		return nil, fmt.Errorf("serial: failed to set DTR: %w", err)
	}

	return &Link{f: f, port: desc.Port}, nil
}

func init() {
	link.Register(driverName, &Driver{})
}
