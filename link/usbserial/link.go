package usbserial

import (
	"fmt"
	"log"
	"time"

	"gbalink/link"

	"go.bug.st/serial"
)

// Link is a link cable adapter on a USB serial port. The adapter forwards
// every byte written to the console's link port and returns the console's
// shifted-out bytes.
type Link struct {
	// must only be accessed by the owning session
	f    serial.Port
	port string

	timeout time.Duration
	closed  bool
}

func sendSerial(f serial.Port, buf []byte) error {
	sent := 0
	for sent < len(buf) {
		n, e := f.Write(buf[sent:])
		if e != nil {
			return e
		}
		sent += n
	}
	return nil
}

func (l *Link) Write(p []byte) error {
	if l.closed {
		return link.ErrNotReady
	}
	if err := sendSerial(l.f, p); err != nil {
		return &link.TerminalError{Wrapped: fmt.Errorf("serial: %s: write: %w", l.port, err)}
	}
	return nil
}

func (l *Link) Read(max int, timeout time.Duration) ([]byte, error) {
	if l.closed {
		return nil, link.ErrNotReady
	}

	if timeout != l.timeout {
		if err := l.f.SetReadTimeout(timeout); err != nil {
			return nil, fmt.Errorf("serial: %s: set read timeout: %w", l.port, err)
		}
		l.timeout = timeout
	}

	rsp := make([]byte, max)
	// a zero-length read with no error is a timeout:
	n, err := l.f.Read(rsp)
	if err != nil {
		return nil, &link.TerminalError{Wrapped: fmt.Errorf("serial: %s: read: %w", l.port, err)}
	}

	return rsp[:n], nil
}

// SetLinkVoltage drives RTS; adapters switch their level shifter to 5V while
// RTS is asserted.
func (l *Link) SetLinkVoltage(v link.Voltage) error {
	if l.closed {
		return link.ErrNotReady
	}

	log.Printf("serial: %s: select %s link voltage\n", l.port, v)
	if err := l.f.SetRTS(v == link.Voltage5V); err != nil {
		return fmt.Errorf("serial: %s: set RTS: %w", l.port, err)
	}

	// drop anything the adapter echoed while switching:
	if err := l.f.ResetInputBuffer(); err != nil {
		return fmt.Errorf("serial: %s: reset input buffer: %w", l.port, err)
	}
	return nil
}

func (l *Link) Close() (err error) {
	if l.closed {
		return nil
	}
	l.closed = true

	// Clear DTR (ignore any errors since we're closing):
	log.Printf("serial: %s: clear DTR\n", l.port)
	_ = l.f.SetDTR(false)

	log.Printf("serial: %s: close port\n", l.port)
	err = l.f.Close()
	if err != nil {
		return fmt.Errorf("serial: could not close serial port: %w", err)
	}

	return
}
