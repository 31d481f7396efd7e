package multiboot

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"gbalink/link"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("gbalink/multiboot")

// Session is one attempt at delivering an image. It is not reusable: after
// Run returns, construct a new Session to try again.
type Session struct {
	link link.ByteLink
	cfg  Config

	raw   []byte
	image []byte // padded copy

	state   State
	history []State
	err     *Error
	report  *Report

	keys Keystream
	crc  Checksum
	seed uint32
	hh   byte
	rr   byte

	// reply bytes received so far for the outstanding exchange:
	rx        []byte
	lastWrite time.Time

	sent       int
	exchanges  int
	roundTrips []time.Duration
}

// Result summarizes a finished session, successful or not.
type Result struct {
	State   State
	History []State
	Report  *Report

	ImageSize  int
	PaddedSize int
	BytesSent  int
	Exchanges  int
	Seed       uint32
	Checksum   uint16

	// RoundTrips holds the write-to-reply latency of every answered exchange.
	RoundTrips []time.Duration
	Duration   time.Duration
}

// NewSession prepares a session for image on l. The image is only borrowed;
// it is validated when Run starts.
func NewSession(l link.ByteLink, image []byte, opts ...Option) *Session {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.normalize()

	s := &Session{
		link:    l,
		cfg:     cfg,
		raw:     image,
		state:   Idle,
		history: []State{Idle},
		report:  NewReport(cfg.Sink),
	}
	s.crc.Reset()
	return s
}

// Run delivers image over l in a new session and returns its single outcome.
// The returned error, if any, is a *Error.
func Run(ctx context.Context, l link.ByteLink, image []byte, opts ...Option) (*Result, error) {
	return NewSession(l, image, opts...).Run(ctx)
}

func (s *Session) State() State { return s.state }

func (s *Session) Report() *Report { return s.report }

func (s *Session) Run(ctx context.Context) (*Result, error) {
	if s.state != Idle {
		return nil, fmt.Errorf("multiboot: session already ran (state %s)", s.state)
	}

	ctx, span := tracer.Start(ctx, "multiboot.Run", trace.WithAttributes(
		attribute.Int("image.size", len(s.raw)),
	))
	defer span.End()

	start := time.Now()
	err := s.run(ctx)

	res := &Result{
		State:      s.state,
		History:    append([]State(nil), s.history...),
		Report:     s.report,
		ImageSize:  len(s.raw),
		PaddedSize: len(s.image),
		BytesSent:  s.sent,
		Exchanges:  s.exchanges,
		Seed:       s.seed,
		Checksum:   s.crc.Value(),
		RoundTrips: s.roundTrips,
		Duration:   time.Since(start),
	}

	if err != nil {
		s.cfg.Metrics.transfer(s.err.Reason.String())
		span.RecordError(err)
		span.SetStatus(codes.Error, s.err.Reason.String())
		return res, err
	}

	s.cfg.Metrics.transfer("completed")
	span.SetAttributes(attribute.Int("bytes.sent", s.sent))
	return res, nil
}

type phase struct {
	state State
	run   func(ctx context.Context) error
}

func (s *Session) run(ctx context.Context) error {
	align, minSize := s.cfg.alignment()
	image, err := PadImage(s.raw, align, minSize)
	if err != nil {
		return s.fail(InvalidImage, err)
	}
	s.image = image

	release, err := link.Claim(s.link)
	if err != nil {
		return s.fail(LinkError, err)
	}
	defer release()

	if err = ctx.Err(); err != nil {
		return s.fail(Cancelled, err)
	}
	if err = s.link.SetLinkVoltage(s.cfg.Voltage); err != nil {
		return s.fail(LinkError, err)
	}

	s.info("sending %d byte image (%d after padding)", len(s.raw), len(s.image))

	phases := []phase{
		{Handshaking, s.handshake},
		{SendingHeader, s.sendHeader},
		{ExchangingKey, s.exchangeKey},
		{SendingPayload, s.sendPayload},
		{Finalizing, s.finalize},
	}
	for _, p := range phases {
		if err = ctx.Err(); err != nil {
			return s.fail(Cancelled, err)
		}

		s.enter(p.state)

		pctx, span := tracer.Start(ctx, "multiboot."+p.state.String())
		start := time.Now()
		err = p.run(pctx)
		s.cfg.Metrics.phase(p.state, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		if err != nil {
			return err
		}
	}

	s.enter(Completed)
	s.info("console accepted the image (%d bytes, checksum %04x)", s.sent, s.crc.Value())
	return nil
}

func (s *Session) enter(to State) {
	if !CanTransition(s.state, to) {
		panic(fmt.Errorf("multiboot: illegal transition %s -> %s", s.state, to))
	}
	s.state = to
	s.history = append(s.history, to)
	s.info("entered %s", to)
}

// fail moves the session to Failed and returns the *Error describing why.
func (s *Session) fail(reason Reason, err error) error {
	if s.err != nil {
		// already failed deeper in the call stack:
		return s.err
	}

	s.err = &Error{Reason: reason, Phase: s.state, Err: err}
	s.state = Failed
	s.history = append(s.history, Failed)
	s.event(SeverityError, s.err.Phase, "%s", s.err.Error())
	return s.err
}

func (s *Session) event(sev Severity, phase State, format string, args ...interface{}) {
	s.report.append(Event{
		Severity: sev,
		Phase:    phase,
		Message:  fmt.Sprintf(format, args...),
		Sent:     s.sent,
		Total:    len(s.image),
	})
}

func (s *Session) info(format string, args ...interface{}) {
	s.event(SeverityInfo, s.state, format, args...)
}

func (s *Session) retry(format string, args ...interface{}) {
	s.cfg.Metrics.retry(s.state)
	s.event(SeverityWarning, s.state, format, args...)
}

// checkCancel fails the session if ctx is done.
func (s *Session) checkCancel(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return s.fail(Cancelled, err)
	}
	return nil
}

// send writes one word, most significant byte first.
func (s *Session) send(ctx context.Context, w uint32) error {
	if err := s.checkCancel(ctx); err != nil {
		return err
	}

	// any partial reply belongs to the previous exchange:
	s.rx = s.rx[:0]

	var b [4]byte
	binary.BigEndian.PutUint32(b[:], w)
	if err := s.link.Write(b[:]); err != nil {
		return s.fail(LinkError, err)
	}

	s.lastWrite = time.Now()
	s.exchanges++
	s.cfg.Metrics.word()
	return nil
}

// receive reads one reply word. ok is false when the link timed out before a
// full word arrived; bytes already received are kept for the next call.
func (s *Session) receive(ctx context.Context) (w uint32, ok bool, err error) {
	if err = s.checkCancel(ctx); err != nil {
		return
	}

	for len(s.rx) < 4 {
		var b []byte
		b, err = s.link.Read(4-len(s.rx), s.cfg.Timeout)
		if err != nil {
			err = s.fail(LinkError, err)
			return
		}
		if len(b) == 0 {
			return
		}
		s.rx = append(s.rx, b...)
	}

	w = binary.BigEndian.Uint32(s.rx)
	s.rx = s.rx[:0]
	s.roundTrips = append(s.roundTrips, time.Since(s.lastWrite))
	return w, true, nil
}

// exchange sends w and reads its reply.
func (s *Session) exchange(ctx context.Context, w uint32) (uint32, bool, error) {
	if err := s.send(ctx, w); err != nil {
		return 0, false, err
	}
	return s.receive(ctx)
}

// await reads the reply to the word just sent, re-reading up to budget times
// in total. ok is false if no reply arrived within the budget.
func (s *Session) await(ctx context.Context, budget int, what string) (w uint32, ok bool, err error) {
	for attempt := 1; attempt <= budget; attempt++ {
		w, ok, err = s.receive(ctx)
		if err != nil || ok {
			return
		}
		if attempt < budget {
			s.retry("no reply to %s (read %d of %d)", what, attempt, budget)
		}
	}
	return
}

func (s *Session) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return s.checkCancel(ctx)
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return s.fail(Cancelled, ctx.Err())
	case <-t.C:
		return nil
	}
}
