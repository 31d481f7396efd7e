package wsbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gbalink/link"
	"gbalink/link/mock"
	"gbalink/multiboot"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// bridge serves one emulated console per websocket connection.
func bridge(t *testing.T, consoles chan<- *mock.Console) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		c := mock.NewConsole()
		if consoles != nil {
			consoles <- c
		}

		for {
			msg, op, err := wsutil.ReadClientData(conn)
			if err != nil {
				return
			}

			switch op {
			case ws.OpText:
				var cmd control
				if err = json.Unmarshal(msg, &cmd); err != nil {
					t.Errorf("control frame %q: %v", msg, err)
					return
				}
				_ = c.SetLinkVoltage(cmd.Value)
			case ws.OpBinary:
				_ = c.Write(msg)
				reply, _ := c.Read(4, 0)
				if len(reply) == 0 {
					continue
				}
				if err = wsutil.WriteServerMessage(conn, ws.OpBinary, reply); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func open(t *testing.T, srv *httptest.Server) link.ByteLink {
	t.Helper()

	d := &Driver{}
	desc, err := d.Descriptor("ws" + strings.TrimPrefix(srv.URL, "http"))
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
	consoles := make(chan *mock.Console, 1)
	l := open(t, bridge(t, consoles))
	c := <-consoles

	raw := bytes.Repeat([]byte{0x12, 0x34, 0x56, 0x78, 0x9A}, 100)
	_, err := multiboot.Run(context.Background(), l, raw,
		multiboot.WithTimeout(2*time.Second),
		multiboot.WithVoltage(link.Voltage5V),
	)
	if err != nil {
		t.Fatal(err)
	}

	if !c.Booted() {
		t.Fatal("console did not boot")
	}
	if !bytes.Equal(c.Image()[:len(raw)], raw) {
		t.Error("console image differs")
	}
	if c.Voltage() != link.Voltage5V {
		t.Errorf("voltage = %s", c.Voltage())
	}
}

func TestLink_ReadTimeout(t *testing.T) {
	l := open(t, bridge(t, nil))

	start := time.Now()
	b, err := l.Read(4, 20*time.Millisecond)
	if err != nil || len(b) != 0 {
		t.Fatalf("Read = %x, %v", b, err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("Read returned before its timeout")
	}
}

func TestLink_PartialReads(t *testing.T) {
	l := open(t, bridge(t, nil))

	if err := l.Write([]byte{0, 0, 0x62, 0x02}); err != nil {
		t.Fatal(err)
	}
	var got []byte
	for len(got) < 4 {
		b, err := l.Read(1, time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if len(b) == 0 {
			t.Fatal("timed out waiting for reply")
		}
		got = append(got, b...)
	}
	if !bytes.Equal(got, []byte{0x72, 0x02, 0, 0}) {
		t.Errorf("reply = %x", got)
	}
}

func TestLink_Closed(t *testing.T) {
	l := open(t, bridge(t, nil))
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	if err := l.Write([]byte{1, 2, 3, 4}); err != link.ErrNotReady {
		t.Errorf("Write after close = %v", err)
	}
	if _, err := l.Read(4, time.Second); !link.IsTerminal(err) {
		t.Errorf("Read after close = %v", err)
	}
}

func TestDriver_Descriptor(t *testing.T) {
	d := &Driver{}
	for _, name := range []string{"http://localhost/", "localhost:27640", "ws://"} {
		if _, err := d.Descriptor(name); err == nil {
			t.Errorf("%q accepted", name)
		}
	}
	desc, err := d.Descriptor("wss://bridge.local:8443/link")
	if err != nil {
		t.Fatal(err)
	}
	if !desc.Equals(DeviceDescriptor{URL: "wss://bridge.local:8443/link"}) {
		t.Errorf("descriptor = %#v", desc)
	}
}
