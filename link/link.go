package link

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// ByteLink is a duplex byte channel to a console's link port.
// Writes are fire-and-forget. Reads never block past their timeout and
// return an empty slice when nothing arrived in time.
// A ByteLink has a single owner; see Claim.
type ByteLink interface {
	// Write sends p to the console. Returns ErrNotReady if the link is not open.
	Write(p []byte) error

	// Read returns up to max bytes received from the console; an empty result
	// means the timeout elapsed with no data.
	Read(max int, timeout time.Duration) ([]byte, error)

	// SetLinkVoltage selects the signalling level for the console family.
	// Links without voltage control accept any value.
	SetLinkVoltage(v Voltage) error

	Close() error
}

// Voltage is the electrical signalling level of the link cable.
type Voltage int

const (
	Voltage3V3 Voltage = iota // GBA
	Voltage5V                 // GB/GBC
)

func (v Voltage) String() string {
	switch v {
	case Voltage3V3:
		return "3v3"
	case Voltage5V:
		return "5v"
	default:
		return fmt.Sprintf("Voltage(%d)", int(v))
	}
}

func ParseVoltage(s string) (Voltage, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "3v3", "3.3", "3.3v", "gba":
		return Voltage3V3, nil
	case "5v", "5", "5.0v", "gb", "gbc":
		return Voltage5V, nil
	}
	return 0, fmt.Errorf("link: unknown voltage %q", s)
}

func (v Voltage) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *Voltage) UnmarshalText(b []byte) (err error) {
	*v, err = ParseVoltage(string(b))
	return
}

type DeviceDescriptor interface {
	Equals(other DeviceDescriptor) bool
	DisplayName() string
}

type Driver interface {
	DisplayOrder() int
	DisplayName() string
	DisplayDescription() string

	// Detect lists the devices this driver can currently reach.
	Detect() ([]DeviceDescriptor, error)

	// Descriptor parses a user-supplied device name (port, URL, address).
	Descriptor(name string) (DeviceDescriptor, error)

	Open(desc DeviceDescriptor) (ByteLink, error)
}

type NamedDriver struct {
	Name   string
	Driver Driver
}

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// Register makes a link driver available by the provided name.
// If Register is called twice with the same name or if driver is nil,
// it panics.
func Register(name string, driver Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if driver == nil {
		panic("link: Register driver is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("link: Register called twice for driver " + name)
	}
	drivers[name] = driver
}

func unregisterAllDrivers() {
	driversMu.Lock()
	defer driversMu.Unlock()
	// For tests.
	drivers = make(map[string]Driver)
}

// Drivers returns the registered drivers in display order.
func Drivers() []NamedDriver {
	driversMu.RLock()
	defer driversMu.RUnlock()
	list := make([]NamedDriver, 0, len(drivers))
	for name, d := range drivers {
		list = append(list, NamedDriver{Name: name, Driver: d})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Driver.DisplayOrder() != list[j].Driver.DisplayOrder() {
			return list[i].Driver.DisplayOrder() < list[j].Driver.DisplayOrder()
		}
		return list[i].Name < list[j].Name
	})
	return list
}

func DriverByName(name string) (Driver, bool) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	d, ok := drivers[name]
	return d, ok
}

// Open opens deviceName with the named driver. An empty deviceName picks the
// first device the driver detects.
func Open(driverName, deviceName string) (ByteLink, error) {
	d, ok := DriverByName(driverName)
	if !ok {
		return nil, fmt.Errorf("link: unknown driver %q (forgotten import?)", driverName)
	}

	var desc DeviceDescriptor
	if deviceName == "" {
		devices, err := d.Detect()
		if err != nil {
			return nil, fmt.Errorf("link: %s: detect: %w", driverName, err)
		}
		if len(devices) == 0 {
			return nil, fmt.Errorf("link: %s: %w", driverName, ErrNoDevice)
		}
		desc = devices[0]
	} else {
		var err error
		desc, err = d.Descriptor(deviceName)
		if err != nil {
			return nil, err
		}
	}

	return d.Open(desc)
}
