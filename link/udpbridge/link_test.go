package udpbridge

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"gbalink/link"
	"gbalink/link/mock"
	"gbalink/multiboot"
)

// adapter answers datagrams from an emulated console until the test ends.
func adapter(t *testing.T) (addr string, c *mock.Console) {
	t.Helper()

	pc, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = pc.Close() })

	c = mock.NewConsole()
	go func() {
		b := make([]byte, 1500)
		for {
			n, from, err := pc.ReadFromUDP(b)
			if err != nil {
				return
			}
			if n == 0 {
				continue
			}

			switch b[0] {
			case kindControl:
				if n == 2 {
					_ = c.SetLinkVoltage(link.Voltage(b[1]))
				}
			case kindData:
				_ = c.Write(b[1:n])
				if reply, _ := c.Read(4, 0); len(reply) > 0 {
					_, _ = pc.WriteToUDP(reply, from)
				}
			}
		}
	}()

	return pc.LocalAddr().String(), c
}

func dial(t *testing.T, addr string) link.ByteLink {
	t.Helper()

	d := &Driver{}
	desc, err := d.Descriptor(addr)
	if err != nil {
		t.Fatal(err)
	}
	l, err := d.Open(desc)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestLink_Multiboot(t *testing.T) {
	addr, c := adapter(t)
	l := dial(t, addr)

	raw := make([]byte, 0x300)
	for i := range raw {
		raw[i] = byte(i * 13)
	}

	_, err := multiboot.Run(context.Background(), l, raw,
		multiboot.WithTimeout(time.Second),
		multiboot.WithVoltage(link.Voltage5V),
	)
	if err != nil {
		t.Fatal(err)
	}
	if !c.Booted() || !bytes.Equal(c.Image(), raw) {
		t.Error("console did not receive the image")
	}
	if c.Voltage() != link.Voltage5V {
		t.Errorf("voltage = %s", c.Voltage())
	}
}

func TestLink_Timeout(t *testing.T) {
	addr, _ := adapter(t)
	l := dial(t, addr)

	b, err := l.Read(4, 10*time.Millisecond)
	if err != nil || len(b) != 0 {
		t.Errorf("Read = %x, %v", b, err)
	}
}

func TestLink_Close(t *testing.T) {
	addr, _ := adapter(t)
	l := dial(t, addr)

	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	if err := l.Write([]byte{0, 0, 0x62, 0x02}); err != link.ErrNotReady {
		t.Errorf("Write after close = %v", err)
	}
	if _, err := l.Read(4, time.Second); !link.IsTerminal(err) {
		t.Errorf("Read after close = %v", err)
	}
	if l.(*Link).IsConnected() {
		t.Error("still connected")
	}
}

func TestLink_DisconnectReleasesBlockedWrite(t *testing.T) {
	pc, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	defer pc.Close()

	c, err := net.DialUDP("udp", nil, pc.LocalAddr().(*net.UDPAddr))
	if err != nil {
		t.Fatal(err)
	}

	// connected, but with no writer draining the queue:
	l := NewLink(driverName)
	l.c = c
	l.isConnected = true
	l.done = make(chan struct{})
	for i := 0; i < cap(l.write); i++ {
		l.write <- nil
	}

	errc := make(chan error, 1)
	go func() { errc <- l.Write([]byte{0, 0, 0x62, 0x02}) }()

	select {
	case err = <-errc:
		t.Fatalf("write on a full queue returned early: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	disconnected := make(chan struct{})
	go func() {
		l.disconnect()
		close(disconnected)
	}()

	select {
	case <-disconnected:
	case <-time.After(time.Second):
		t.Fatal("disconnect blocked behind a pending write")
	}
	select {
	case err = <-errc:
		if !errors.Is(err, link.ErrNotReady) {
			t.Errorf("got %v, expected ErrNotReady", err)
		}
	case <-time.After(time.Second):
		t.Fatal("write still blocked after disconnect")
	}
}

func TestDriver_Descriptor(t *testing.T) {
	tests := []struct {
		name string
		want string
		ok   bool
	}{
		{"adapter.local", "adapter.local:27641", true},
		{"10.0.0.5:9000", "10.0.0.5:9000", true},
		{"::1", "[::1]:27641", true},
		{"host:http", "", false},
		{"", "", false},
	}

	d := &Driver{}
	for _, tt := range tests {
		desc, err := d.Descriptor(tt.name)
		if (err == nil) != tt.ok {
			t.Errorf("%q: err = %v", tt.name, err)
			continue
		}
		if tt.ok && desc.(DeviceDescriptor).Addr != tt.want {
			t.Errorf("%q: addr = %s, want %s", tt.name, desc.(DeviceDescriptor).Addr, tt.want)
		}
	}
}
