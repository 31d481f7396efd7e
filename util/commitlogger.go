package util

import (
	"fmt"
	"sync"
)

// CommitLogger buffers log output and hands it to Committer in one piece, so
// the lines of one transfer stay together when several run at once.
type CommitLogger struct {
	Committer func(p []byte)

	mu  sync.Mutex
	buf []byte
}

func (l *CommitLogger) Reserve(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cap(l.buf) >= n {
		return
	}

	newbuf := make([]byte, len(l.buf), n)
	copy(newbuf, l.buf)
	l.buf = newbuf
}

func (l *CommitLogger) Write(p []byte) (n int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf = append(l.buf, p...)
	return len(p), nil
}

func (l *CommitLogger) Printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(l, format, args...)
}

func (l *CommitLogger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buf)
}

// Commit passes the buffered bytes to Committer, if any, and resets the buffer.
func (l *CommitLogger) Commit() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Committer != nil && len(l.buf) > 0 {
		l.Committer(l.buf)
	}
	l.buf = l.buf[:0]
}

func (l *CommitLogger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf = l.buf[:0]
}
