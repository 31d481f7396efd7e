package link

import (
	"errors"
	"fmt"
)

var (
	ErrNotReady   = errors.New("link: not ready")
	ErrNoDevice   = errors.New("no device found")
	ErrLinkBusy   = errors.New("link: already claimed by another session")
	ErrLinkClosed = errors.New("link: closed")
)

// TerminalError wraps an I/O error after which the link cannot be used again.
type TerminalError struct {
	Wrapped error
}

func (e *TerminalError) Unwrap() error { return e.Wrapped }
func (e *TerminalError) Error() string {
	if e.Wrapped == nil {
		return "link terminal error"
	}
	return fmt.Sprintf("link terminal error: %v", e.Wrapped)
}

func IsTerminal(err error) bool {
	var t *TerminalError
	return errors.As(err, &t)
}
