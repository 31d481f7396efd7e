package multiboot

import (
	"fmt"
	"sync"
	"time"
)

type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

type Event struct {
	Time     time.Time
	Severity Severity
	Phase    State
	Message  string

	// progress at the time of the event:
	Sent  int
	Total int
}

func (e Event) String() string {
	return fmt.Sprintf("[%s] %s: %s", e.Severity, e.Phase, e.Message)
}

// Report is the append-only event log of one session.
type Report struct {
	mu     sync.Mutex
	events []Event
	sink   func(Event)
}

func NewReport(sink func(Event)) *Report {
	return &Report{sink: sink}
}

func (r *Report) append(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	r.mu.Lock()
	r.events = append(r.events, e)
	sink := r.sink
	r.mu.Unlock()

	if sink != nil {
		sink(e)
	}
}

// Events returns a snapshot of the events appended so far.
func (r *Report) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Report) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Count returns how many events have the given severity.
func (r *Report) Count(sev Severity) (n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.Severity == sev {
			n++
		}
	}
	return
}
