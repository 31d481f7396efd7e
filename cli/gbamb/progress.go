package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gbalink/multiboot"

	"golang.org/x/term"
)

const (
	progressInterval = 0x400
	logTimeFormat    = "2006/01/02 15:04:05.000000"
)

// progress draws a payload progress bar when out is a terminal and stays
// silent otherwise; the log has the same information.
type progress struct {
	out   io.Writer
	width int
	drawn bool
}

func newProgress(out io.Writer) *progress {
	p := &progress{out: out}

	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return p
	}

	p.width = 40
	if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 40 {
		// leave room for the counters:
		p.width = w - 32
	}
	return p
}

func (p *progress) update(ev multiboot.Event) {
	if p.width == 0 || ev.Phase != multiboot.SendingPayload || ev.Total <= 0 {
		return
	}

	filled := p.width * ev.Sent / ev.Total
	fmt.Fprintf(p.out, "\r[%s%s] %3d%% %d/%d",
		strings.Repeat("#", filled),
		strings.Repeat(" ", p.width-filled),
		100*ev.Sent/ev.Total,
		ev.Sent,
		ev.Total,
	)
	p.drawn = true
}

func (p *progress) done() {
	if p.drawn {
		fmt.Fprintln(p.out)
		p.drawn = false
	}
}
