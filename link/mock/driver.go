package mock

import (
	"fmt"
	"strconv"
	"strings"

	"gbalink/link"
)

const driverName = "mock"

type Driver struct{}

func (d *Driver) DisplayOrder() int {
	return 1000
}

func (d *Driver) DisplayName() string {
	return "Emulated Console"
}

func (d *Driver) DisplayDescription() string {
	return "Send to an in-process emulated console for testing"
}

func (d *Driver) Detect() ([]link.DeviceDescriptor, error) {
	return []link.DeviceDescriptor{
		DeviceDescriptor{},
	}, nil
}

// Descriptor accepts a comma separated fault list, e.g. "sync=3,slow=2,badcrc".
func (d *Driver) Descriptor(name string) (link.DeviceDescriptor, error) {
	desc := DeviceDescriptor{}
	if name == "" || name == "default" {
		return desc, nil
	}

	for _, part := range strings.Split(name, ",") {
		key, value, _ := strings.Cut(strings.TrimSpace(part), "=")
		n := 0
		if value != "" {
			var err error
			if n, err = strconv.Atoi(value); err != nil {
				return nil, fmt.Errorf("mock: fault %q: %w", part, err)
			}
		}

		switch key {
		case "sync":
			desc.Faults.SyncAfter = n
		case "key":
			desc.Faults.KeyAfter = n
		case "verify":
			desc.Faults.VerifyPolls = n
		case "slow":
			desc.Faults.SlowPayload = n
		case "split":
			desc.Faults.SplitReplies = true
		case "silent":
			desc.Faults.SilentAfter = n
		case "badcrc":
			desc.Faults.WrongChecksum = true
		case "stale":
			desc.Faults.StaleHeaderReply = n
		default:
			return nil, fmt.Errorf("mock: unknown fault %q", key)
		}
	}

	return desc, nil
}

func (d *Driver) Open(ddev link.DeviceDescriptor) (link.ByteLink, error) {
	desc, ok := ddev.(DeviceDescriptor)
	if !ok {
		return nil, fmt.Errorf("mock: unexpected device descriptor %T", ddev)
	}

	c := NewConsole()
	c.Faults = desc.Faults
	return c, nil
}

func init() {
	link.Register(driverName, &Driver{})
}
