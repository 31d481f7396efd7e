package multiboot

import "fmt"

// Reason classifies why a session failed.
// A Reason is itself an error so callers can match with errors.Is.
type Reason int

const (
	HandshakeTimeout Reason = iota + 1
	HeaderTransferError
	KeyExchangeError
	PayloadTransferError
	ChecksumMismatch
	FinalizeTimeout
	Cancelled
	InvalidImage
	LinkError
)

func (r Reason) String() string {
	switch r {
	case HandshakeTimeout:
		return "handshake timeout"
	case HeaderTransferError:
		return "header transfer error"
	case KeyExchangeError:
		return "key exchange error"
	case PayloadTransferError:
		return "payload transfer error"
	case ChecksumMismatch:
		return "checksum mismatch"
	case FinalizeTimeout:
		return "finalize timeout"
	case Cancelled:
		return "cancelled"
	case InvalidImage:
		return "invalid image"
	case LinkError:
		return "link error"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

func (r Reason) Error() string {
	return "multiboot: " + r.String()
}

// Error is the terminal failure of a session.
type Error struct {
	Reason Reason
	// Phase is the state the session was in when it failed.
	Phase State
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("multiboot: %s during %s", e.Reason.String(), e.Phase.String())
	}
	return fmt.Sprintf("multiboot: %s during %s: %v", e.Reason.String(), e.Phase.String(), e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	r, ok := target.(Reason)
	return ok && r == e.Reason
}

// Retryable reports whether starting a fresh session may succeed where this one failed.
func (e *Error) Retryable() bool {
	switch e.Reason {
	case InvalidImage, Cancelled:
		return false
	}
	return true
}
