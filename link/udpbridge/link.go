package udpbridge

import (
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"gbalink/link"
)

// datagram kinds, in the first byte of every datagram sent to the adapter:
const (
	kindData    byte = 0x00
	kindControl byte = 0xFF
)

// Link exchanges link bytes with a network-attached adapter. Writes are
// queued for a background writer; received datagrams are queued for Read.
type Link struct {
	name string

	c *net.UDPConn

	mu          sync.Mutex
	isConnected bool
	read        chan []byte
	write       chan []byte
	done        chan struct{} // closed by disconnect
	buf         []byte

	addr string
}

func NewLink(name string) *Link {
	return &Link{
		name:  name,
		read:  make(chan []byte, 64),
		write: make(chan []byte, 64),
	}
}

func (l *Link) Addr() string { return l.addr }

func (l *Link) IsConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.isConnected
}

func (l *Link) Connect(addr string) (err error) {
	log.Printf("%s: connect to adapter '%s'\n", l.name, addr)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.isConnected {
		return fmt.Errorf("%s: already connected", l.name)
	}

	l.addr = addr

	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("%s: resolve: %w", l.name, err)
	}

	l.c, err = net.DialUDP("udp", nil, raddr)
	if err != nil {
		return fmt.Errorf("%s: dial: %w", l.name, err)
	}

	l.isConnected = true
	l.done = make(chan struct{})
	log.Printf("%s: connected to adapter '%s'\n", l.name, addr)

	go l.readLoop(l.c)
	go l.writeLoop(l.c, l.done)

	return
}

func (l *Link) disconnect() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.isConnected {
		return
	}

	log.Printf("%s: disconnect from adapter '%s'\n", l.name, l.addr)
	l.isConnected = false

	err := l.c.SetReadDeadline(time.Now())
	if err != nil {
		log.Printf("%s: setreaddeadline: %v\n", l.name, err)
	}

	// signal a disconnect took place:
	close(l.read)
	close(l.done)

	// close the underlying connection:
	err = l.c.Close()
	if err != nil && !errors.Is(err, net.ErrClosed) {
		log.Printf("%s: close: %v\n", l.name, err)
	}

	log.Printf("%s: disconnected from adapter '%s'\n", l.name, l.addr)
}

// must run in a goroutine
func (l *Link) readLoop(c *net.UDPConn) {
	defer l.disconnect()

	// we only need a single receive buffer:
	b := make([]byte, 1500)

	for {
		// wait for a datagram from the adapter:
		n, _, err := c.ReadFromUDP(b)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) && !errors.Is(err, os.ErrDeadlineExceeded) {
				log.Printf("%s: read: %v\n", l.name, err)
			}
			return
		}

		// copy the envelope:
		envelope := make([]byte, n)
		copy(envelope, b[:n])

		l.mu.Lock()
		if !l.isConnected {
			l.mu.Unlock()
			return
		}
		select {
		case l.read <- envelope:
		default:
			log.Printf("%s: receive queue full; dropped %d bytes\n", l.name, n)
		}
		l.mu.Unlock()
	}
}

// must run in a goroutine
func (l *Link) writeLoop(c *net.UDPConn, done <-chan struct{}) {
	for {
		var w []byte
		select {
		case w = <-l.write:
		case <-done:
			return
		}

		if _, err := c.Write(w); err != nil {
			if !errors.Is(err, net.ErrClosed) {
				log.Printf("%s: write: %v\n", l.name, err)
			}
			go l.disconnect()
			return
		}
	}
}

func (l *Link) send(kind byte, p []byte) error {
	datagram := make([]byte, 1+len(p))
	datagram[0] = kind
	copy(datagram[1:], p)

	l.mu.Lock()
	if !l.isConnected {
		l.mu.Unlock()
		return link.ErrNotReady
	}
	done := l.done
	l.mu.Unlock()

	// the queue is never closed; a disconnect closes done instead:
	select {
	case l.write <- datagram:
		return nil
	case <-done:
		return link.ErrNotReady
	}
}

func (l *Link) Write(p []byte) error {
	return l.send(kindData, p)
}

func (l *Link) Read(max int, timeout time.Duration) ([]byte, error) {
	if len(l.buf) == 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()

		select {
		case data, ok := <-l.read:
			if !ok {
				return nil, &link.TerminalError{Wrapped: fmt.Errorf("%s: %w", l.name, link.ErrLinkClosed)}
			}
			l.buf = data
		case <-t.C:
			return nil, nil
		}
	}

	n := max
	if n > len(l.buf) {
		n = len(l.buf)
	}
	out := l.buf[:n]
	l.buf = l.buf[n:]
	return out, nil
}

func (l *Link) SetLinkVoltage(v link.Voltage) error {
	return l.send(kindControl, []byte{byte(v)})
}

func (l *Link) Close() error {
	l.disconnect()
	return nil
}
