package rom

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"reflect"
	"strings"
)

const (
	headerSize = 0xC0

	fixedValue = 0x96

	// bytes covered by the complement check:
	complementStart = 0xA0
	complementEnd   = 0xBD
)

type ROM struct {
	Contents []byte
	Header   Header
}

// $00
type Header struct {
	EntryPoint      uint32
	Logo            [156]byte
	Title           [12]byte
	GameCode        [4]byte
	MakerCode       [2]byte
	Fixed           byte
	UnitCode        byte
	DeviceType      byte
	Reserved1       [7]byte
	Version         byte
	ComplementCheck byte
	Reserved2       [2]byte
}

func NewROM(contents []byte) (r *ROM, err error) {
	if len(contents) < headerSize {
		return nil, fmt.Errorf("ROM file not big enough to contain GBA header")
	}

	r = &ROM{
		Contents: contents,
	}

	// Read GBA header:
	b := bytes.NewReader(contents[:headerSize])
	err = readBinaryStruct(b, &r.Header)
	if err != nil {
		return
	}

	return
}

func readBinaryStruct(b *bytes.Reader, into interface{}) (err error) {
	hv := reflect.ValueOf(into).Elem()
	for i := 0; i < hv.NumField(); i++ {
		f := hv.Field(i)
		if !f.CanAddr() {
			panic(fmt.Errorf("error handling struct field %s of type %s; cannot take address of field", hv.Type().Field(i).Name, hv.Type().Name()))
		}

		err = binary.Read(b, binary.LittleEndian, f.Addr().Interface())
		if err != nil {
			return fmt.Errorf("error reading struct field %s of type %s: %w", hv.Type().Field(i).Name, hv.Type().Name(), err)
		}
	}
	return
}

func trimField(b []byte) string {
	return strings.TrimRight(string(b), "\x00 ")
}

func (r *ROM) Title() string {
	return trimField(r.Header.Title[:])
}

func (r *ROM) GameCode() string {
	return trimField(r.Header.GameCode[:])
}

func (r *ROM) MakerCode() string {
	return trimField(r.Header.MakerCode[:])
}

// Complement computes the header complement byte the console checks.
func Complement(header []byte) byte {
	var sum byte
	for _, v := range header[complementStart:complementEnd] {
		sum += v
	}
	return -(sum + 0x19)
}

func (r *ROM) ComplementValid() bool {
	return Complement(r.Contents) == r.Header.ComplementCheck
}

func (r *ROM) FixedValid() bool {
	return r.Header.Fixed == fixedValue
}

// Problems lists the header defects that make the console reject the image.
func (r *ROM) Problems() (problems []string) {
	if !r.FixedValid() {
		problems = append(problems, fmt.Sprintf("fixed byte at $B2 is %02x, want %02x", r.Header.Fixed, fixedValue))
	}
	if !r.ComplementValid() {
		problems = append(problems, fmt.Sprintf("header complement is %02x, want %02x", r.Header.ComplementCheck, Complement(r.Contents)))
	}
	return
}

// FixHeader corrects the fixed byte and the complement in place.
func FixHeader(contents []byte) error {
	if len(contents) < headerSize {
		return fmt.Errorf("ROM file not big enough to contain GBA header")
	}
	contents[0xB2] = fixedValue
	contents[complementEnd] = Complement(contents)
	return nil
}

func (r *ROM) String() string {
	return fmt.Sprintf("%q [%s] maker %q v%d", r.Title(), r.GameCode(), r.MakerCode(), r.Header.Version)
}
