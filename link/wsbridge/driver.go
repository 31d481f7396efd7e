package wsbridge

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"time"

	"gbalink/link"

	"github.com/gobwas/ws"
)

const (
	driverName = "wsbridge"
	defaultURL = "ws://localhost:27640/link"
)

var dialTimeout = 2 * time.Second

type Driver struct{}

func (d *Driver) DisplayOrder() int {
	return 1
}

func (d *Driver) DisplayName() string {
	return "Websocket Bridge"
}

func (d *Driver) DisplayDescription() string {
	return "Connect to a link adapter shared over a websocket bridge"
}

// Detect reports the default bridge address if something answers there.
func (d *Driver) Detect() ([]link.DeviceDescriptor, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	conn, _, _, err := ws.Dial(ctx, defaultURL)
	if err != nil {
		// no bridge running is not an error:
		return nil, nil
	}
	_ = conn.Close()

	return []link.DeviceDescriptor{
		DeviceDescriptor{URL: defaultURL},
	}, nil
}

func (d *Driver) Descriptor(name string) (link.DeviceDescriptor, error) {
	u, err := url.Parse(name)
	if err != nil {
		return nil, fmt.Errorf("wsbridge: bad url %q: %w", name, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("wsbridge: url %q must use ws:// or wss://", name)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("wsbridge: url %q has no host", name)
	}
	return DeviceDescriptor{URL: u.String()}, nil
}

func (d *Driver) Open(ddev link.DeviceDescriptor) (link.ByteLink, error) {
	desc, ok := ddev.(DeviceDescriptor)
	if !ok {
		return nil, fmt.Errorf("wsbridge: unexpected device descriptor %T", ddev)
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	log.Printf("wsbridge: dial %s\n", desc.URL)
	conn, _, _, err := ws.Dial(ctx, desc.URL)
	if err != nil {
		return nil, fmt.Errorf("wsbridge: dial: %w", err)
	}

	return newLink(desc.URL, conn), nil
}

func init() {
	link.Register(driverName, &Driver{})
}
