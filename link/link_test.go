package link

import (
	"errors"
	"testing"
	"time"
)

type nopLink struct{}

func (nopLink) Write(p []byte) error                           { return nil }
func (nopLink) Read(max int, _ time.Duration) ([]byte, error) { return nil, nil }
func (nopLink) SetLinkVoltage(v Voltage) error                 { return nil }
func (nopLink) Close() error                                   { return nil }

type testDescriptor string

func (d testDescriptor) Equals(other DeviceDescriptor) bool {
	o, ok := other.(testDescriptor)
	return ok && o == d
}
func (d testDescriptor) DisplayName() string { return string(d) }

type testDriver struct {
	order   int
	devices []DeviceDescriptor
	opened  DeviceDescriptor
}

func (d *testDriver) DisplayOrder() int          { return d.order }
func (d *testDriver) DisplayName() string        { return "test" }
func (d *testDriver) DisplayDescription() string { return "test driver" }
func (d *testDriver) Detect() ([]DeviceDescriptor, error) {
	return d.devices, nil
}
func (d *testDriver) Descriptor(name string) (DeviceDescriptor, error) {
	return testDescriptor(name), nil
}
func (d *testDriver) Open(desc DeviceDescriptor) (ByteLink, error) {
	d.opened = desc
	return &nopLink{}, nil
}

func TestRegistry(t *testing.T) {
	unregisterAllDrivers()
	defer unregisterAllDrivers()

	a := &testDriver{order: 2, devices: []DeviceDescriptor{testDescriptor("first"), testDescriptor("second")}}
	b := &testDriver{order: 1}
	Register("a", a)
	Register("b", b)

	list := Drivers()
	if len(list) != 2 || list[0].Name != "b" || list[1].Name != "a" {
		t.Fatalf("Drivers() not in display order: %+v", list)
	}

	if _, err := Open("a", ""); err != nil {
		t.Fatal(err)
	}
	if !a.opened.Equals(testDescriptor("first")) {
		t.Errorf("Open with empty name opened %v, expected first detected device", a.opened)
	}

	if _, err := Open("a", "explicit"); err != nil {
		t.Fatal(err)
	}
	if !a.opened.Equals(testDescriptor("explicit")) {
		t.Errorf("Open opened %v, expected explicit", a.opened)
	}

	if _, err := Open("b", ""); !errors.Is(err, ErrNoDevice) {
		t.Errorf("Open on driver without devices: got %v, expected ErrNoDevice", err)
	}
	if _, err := Open("missing", ""); err == nil {
		t.Error("Open on unknown driver succeeded")
	}
}

func TestRegisterTwicePanics(t *testing.T) {
	unregisterAllDrivers()
	defer unregisterAllDrivers()

	Register("dup", &testDriver{})
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate Register")
		}
	}()
	Register("dup", &testDriver{})
}

func TestClaim(t *testing.T) {
	l := &nopLink{}

	release, err := Claim(l)
	if err != nil {
		t.Fatal(err)
	}
	if _, err = Claim(l); !errors.Is(err, ErrLinkBusy) {
		t.Fatalf("second claim: got %v, expected ErrLinkBusy", err)
	}

	release()
	release()

	release2, err := Claim(l)
	if err != nil {
		t.Fatalf("claim after release: %v", err)
	}
	release2()
}

// valueLink holds a slice, so its values cannot be map keys.
type valueLink struct {
	nopLink
	buf []byte
}

func TestClaim_Refused(t *testing.T) {
	if _, err := Claim(valueLink{buf: []byte{1}}); err == nil {
		t.Error("claimed a link of a non-comparable type")
	}
	if _, err := Claim(nil); !errors.Is(err, ErrNotReady) {
		t.Errorf("claim of nil link: got %v, expected ErrNotReady", err)
	}
}

func TestParseVoltage(t *testing.T) {
	tests := []struct {
		in      string
		want    Voltage
		wantErr bool
	}{
		{"3v3", Voltage3V3, false},
		{"GBA", Voltage3V3, false},
		{"5v", Voltage5V, false},
		{" gbc ", Voltage5V, false},
		{"12v", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseVoltage(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseVoltage(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("ParseVoltage(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	var v Voltage
	if err := v.UnmarshalText([]byte("5v")); err != nil || v != Voltage5V {
		t.Errorf("UnmarshalText: %v %v", v, err)
	}
}
