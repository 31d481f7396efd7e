package util

import (
	"strings"
	"testing"
)

// NewTestingLogger returns a CommitLogger that logs each committed line through tb.
func NewTestingLogger(tb testing.TB) *CommitLogger {
	return &CommitLogger{
		Committer: func(p []byte) {
			for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
				tb.Log(line)
			}
		},
	}
}
