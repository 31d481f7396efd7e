package usbserial

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"gbalink/link"

	"go.bug.st/serial"
)

// fakePort embeds serial.Port so only the methods Link uses need implementing.
type fakePort struct {
	serial.Port

	written      bytes.Buffer
	maxWrite     int
	rx           []byte
	timeouts     []time.Duration
	rts, dtr     bool
	resets       int
	closed       bool
	failNextRead error
}

func (p *fakePort) Write(b []byte) (int, error) {
	if p.maxWrite > 0 && len(b) > p.maxWrite {
		b = b[:p.maxWrite]
	}
	return p.written.Write(b)
}

func (p *fakePort) Read(b []byte) (int, error) {
	if p.failNextRead != nil {
		err := p.failNextRead
		p.failNextRead = nil
		return 0, err
	}
	n := copy(b, p.rx)
	p.rx = p.rx[n:]
	return n, nil
}

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.timeouts = append(p.timeouts, t)
	return nil
}

func (p *fakePort) SetRTS(v bool) error     { p.rts = v; return nil }
func (p *fakePort) SetDTR(v bool) error     { p.dtr = v; return nil }
func (p *fakePort) ResetInputBuffer() error { p.resets++; return nil }
func (p *fakePort) Close() error            { p.closed = true; return nil }

func TestLinkWriteIsComplete(t *testing.T) {
	p := &fakePort{maxWrite: 3}
	l := &Link{f: p, port: "test"}

	msg := []byte{0x00, 0x00, 0x62, 0x02, 0xAA, 0xBB, 0xCC}
	if err := l.Write(msg); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(p.written.Bytes(), msg) {
		t.Errorf("written = % x, expected % x", p.written.Bytes(), msg)
	}
}

func TestLinkRead(t *testing.T) {
	p := &fakePort{rx: []byte{0x72, 0x02, 0x00, 0x00, 0x01}}
	l := &Link{f: p, port: "test"}

	got, err := l.Read(4, 10*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte{0x72, 0x02, 0x00, 0x00}) {
		t.Errorf("Read = % x", got)
	}

	got, err = l.Read(4, 10*time.Millisecond)
	if err != nil || len(got) != 1 {
		t.Errorf("second Read = % x, %v", got, err)
	}

	// timeout: no data, no error
	got, err = l.Read(4, 20*time.Millisecond)
	if err != nil || len(got) != 0 {
		t.Errorf("timed-out Read = % x, %v", got, err)
	}

	if len(p.timeouts) != 2 {
		t.Errorf("SetReadTimeout called %d times, expected 2 (only on change)", len(p.timeouts))
	}

	p.failNextRead = errors.New("unplugged")
	if _, err = l.Read(4, 20*time.Millisecond); !link.IsTerminal(err) {
		t.Errorf("Read after port failure: %v, expected terminal error", err)
	}
}

func TestLinkVoltageAndClose(t *testing.T) {
	p := &fakePort{dtr: true}
	l := &Link{f: p, port: "test"}

	if err := l.SetLinkVoltage(link.Voltage5V); err != nil {
		t.Fatal(err)
	}
	if !p.rts || p.resets != 1 {
		t.Errorf("5V: rts=%v resets=%d", p.rts, p.resets)
	}
	if err := l.SetLinkVoltage(link.Voltage3V3); err != nil {
		t.Fatal(err)
	}
	if p.rts {
		t.Error("3V3 left RTS asserted")
	}

	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	if !p.closed || p.dtr {
		t.Errorf("Close: closed=%v dtr=%v", p.closed, p.dtr)
	}
	if err := l.Write([]byte{0}); !errors.Is(err, link.ErrNotReady) {
		t.Errorf("Write after Close: %v, expected ErrNotReady", err)
	}
}

func TestDescriptor(t *testing.T) {
	d := &Driver{}

	desc, err := d.Descriptor("/dev/ttyACM0;115200")
	if err != nil {
		t.Fatal(err)
	}
	dd := desc.(DeviceDescriptor)
	if dd.Port != "/dev/ttyACM0" || dd.Baud == nil || *dd.Baud != 115200 {
		t.Errorf("Descriptor = %+v", dd)
	}
	if !dd.Equals(DeviceDescriptor{Port: "/dev/ttyACM0"}) {
		t.Error("Equals should compare ports only")
	}

	if _, err = d.Descriptor("COM3;fast"); err == nil {
		t.Error("expected error for non-numeric baud")
	}

	named := DeviceDescriptor{Port: "COM4", VID: "2E8A", PID: "000A"}
	if got := named.DisplayName(); got != "COM4 (2E8A:000A, Raspberry Pi RP2040)" {
		t.Errorf("DisplayName = %q", got)
	}
}
