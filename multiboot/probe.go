package multiboot

import (
	"context"

	"gbalink/link"
)

// Probe checks whether a console on l is waiting in its multiboot loader
// without starting a transfer. It returns the number of sync words it took.
func Probe(ctx context.Context, l link.ByteLink, opts ...Option) (attempts int, report *Report, err error) {
	s := NewSession(l, nil, opts...)
	report = s.report

	release, err := link.Claim(l)
	if err != nil {
		err = s.fail(LinkError, err)
		return
	}
	defer release()

	if err = l.SetLinkVoltage(s.cfg.Voltage); err != nil {
		err = s.fail(LinkError, err)
		return
	}

	s.enter(Handshaking)
	attempts, err = s.sync(ctx)
	if err == nil {
		s.info("console is waiting for an image (%d sync attempt(s))", attempts)
	}
	return
}
