package multiboot

import (
	"errors"
	"fmt"
	"testing"
)

func TestCanTransition(t *testing.T) {
	order := []State{Idle, Handshaking, SendingHeader, ExchangingKey, SendingPayload, Finalizing, Completed}

	for i := 0; i+1 < len(order); i++ {
		if !CanTransition(order[i], order[i+1]) {
			t.Errorf("%s -> %s should be allowed", order[i], order[i+1])
		}
		if !CanTransition(order[i], Failed) {
			t.Errorf("%s -> failed should be allowed", order[i])
		}
	}

	// no skipping, no going back:
	for i, from := range order {
		for j, to := range order {
			if j == i+1 {
				continue
			}
			if CanTransition(from, to) {
				t.Errorf("%s -> %s should not be allowed", from, to)
			}
		}
	}

	for _, to := range append(order, Failed) {
		if CanTransition(Completed, to) || CanTransition(Failed, to) {
			t.Errorf("terminal state left for %s", to)
		}
	}
}

func TestError(t *testing.T) {
	cause := errors.New("cable pulled")
	var err error = &Error{Reason: LinkError, Phase: SendingPayload, Err: cause}

	if !errors.Is(err, LinkError) {
		t.Error("errors.Is(err, LinkError) = false")
	}
	if errors.Is(err, ChecksumMismatch) {
		t.Error("errors.Is(err, ChecksumMismatch) = true")
	}
	if !errors.Is(err, cause) {
		t.Error("cause not unwrapped")
	}

	var e *Error
	if !errors.As(fmt.Errorf("wrapped: %w", err), &e) || e.Phase != SendingPayload {
		t.Error("errors.As failed through wrapping")
	}
	if got, want := err.Error(), "multiboot: link error during sending payload: cable pulled"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if got, want := (&Error{Reason: ChecksumMismatch, Phase: Finalizing}).Error(), "multiboot: checksum mismatch during finalizing"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if (&Error{Reason: InvalidImage}).Retryable() {
		t.Error("invalid image reported retryable")
	}
}
