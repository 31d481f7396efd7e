package udpbridge

import (
	"fmt"
	"net"
	"strconv"

	"gbalink/link"
)

const (
	driverName  = "udpbridge"
	defaultPort = 27641
)

type Driver struct{}

func (d *Driver) DisplayOrder() int {
	return 2
}

func (d *Driver) DisplayName() string {
	return "UDP Bridge"
}

func (d *Driver) DisplayDescription() string {
	return "Connect to a network-attached link adapter over UDP"
}

// Detect finds nothing; network adapters must be named explicitly.
func (d *Driver) Detect() ([]link.DeviceDescriptor, error) {
	return nil, nil
}

// Descriptor accepts "host" or "host:port".
func (d *Driver) Descriptor(name string) (link.DeviceDescriptor, error) {
	if name == "" {
		return nil, fmt.Errorf("udpbridge: empty address")
	}

	host, port, err := net.SplitHostPort(name)
	if err != nil {
		host, port = name, strconv.Itoa(defaultPort)
	}
	if _, err = strconv.ParseUint(port, 10, 16); err != nil {
		return nil, fmt.Errorf("udpbridge: bad port in %q", name)
	}

	return DeviceDescriptor{Addr: net.JoinHostPort(host, port)}, nil
}

func (d *Driver) Open(ddev link.DeviceDescriptor) (link.ByteLink, error) {
	desc, ok := ddev.(DeviceDescriptor)
	if !ok {
		return nil, fmt.Errorf("udpbridge: unexpected device descriptor %T", ddev)
	}

	l := NewLink(driverName)
	if err := l.Connect(desc.Addr); err != nil {
		return nil, err
	}
	return l, nil
}

func init() {
	link.Register(driverName, &Driver{})
}
