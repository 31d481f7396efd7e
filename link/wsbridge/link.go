package wsbridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"gbalink/link"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// control is sent as a text frame; binary frames carry link bytes.
type control struct {
	Op    string       `json:"op"`
	Value link.Voltage `json:"value"`
}

// Link relays link bytes through a websocket bridge. Replies arrive on a
// background reader and are handed out by Read.
type Link struct {
	urlstr string
	conn   net.Conn

	wmu     sync.Mutex
	w       *wsutil.Writer
	encoder *json.Encoder

	rx   chan []byte
	buf  []byte
	done chan struct{}

	errMu sync.Mutex
	err   error

	closeOnce sync.Once
}

func newLink(urlstr string, conn net.Conn) *Link {
	l := &Link{
		urlstr: urlstr,
		conn:   conn,
		w:      wsutil.NewWriter(conn, ws.StateClientSide, ws.OpText),
		rx:     make(chan []byte, 64),
		done:   make(chan struct{}),
	}
	l.encoder = json.NewEncoder(l.w)

	go l.readLoop()
	return l
}

// must run in a goroutine
func (l *Link) readLoop() {
	defer close(l.rx)

	for {
		data, op, err := wsutil.ReadServerData(l.conn)
		if err != nil {
			select {
			case <-l.done:
			default:
				log.Printf("wsbridge: %s: read: %v\n", l.urlstr, err)
				l.setErr(err)
			}
			return
		}

		if op != ws.OpBinary {
			// bridges may send status text; nothing reads it yet
			continue
		}

		select {
		case l.rx <- data:
		case <-l.done:
			return
		}
	}
}

func (l *Link) setErr(err error) {
	l.errMu.Lock()
	defer l.errMu.Unlock()
	if l.err == nil {
		l.err = err
	}
}

func (l *Link) lastErr() error {
	l.errMu.Lock()
	defer l.errMu.Unlock()
	if l.err == nil {
		return link.ErrLinkClosed
	}
	return l.err
}

func (l *Link) closed() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

func (l *Link) Write(p []byte) error {
	if l.closed() {
		return link.ErrNotReady
	}

	l.wmu.Lock()
	defer l.wmu.Unlock()
	if err := wsutil.WriteClientMessage(l.conn, ws.OpBinary, p); err != nil {
		return &link.TerminalError{Wrapped: fmt.Errorf("wsbridge: write: %w", err)}
	}
	return nil
}

func (l *Link) Read(max int, timeout time.Duration) ([]byte, error) {
	if len(l.buf) == 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()

		select {
		case data, ok := <-l.rx:
			if !ok {
				return nil, &link.TerminalError{Wrapped: l.lastErr()}
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
	if l.closed() {
		return link.ErrNotReady
	}

	l.wmu.Lock()
	defer l.wmu.Unlock()

	err := l.encoder.Encode(control{Op: "voltage", Value: v})
	if err != nil {
		return fmt.Errorf("wsbridge: voltage command encode: %w", err)
	}
	err = l.w.Flush()
	if err != nil {
		return fmt.Errorf("wsbridge: voltage command flush: %w", err)
	}
	return nil
}

func (l *Link) Close() (err error) {
	l.closeOnce.Do(func() {
		log.Printf("wsbridge: %s: close websocket\n", l.urlstr)
		close(l.done)

		l.wmu.Lock()
		_ = wsutil.WriteClientMessage(l.conn, ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))
		l.wmu.Unlock()

		err = l.conn.Close()
		if errors.Is(err, net.ErrClosed) {
			err = nil
		}
	})
	return
}
