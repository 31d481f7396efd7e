package util

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

// PanicSafeLogger tees log output to a file that is synced before a panic
// takes the process down.
type PanicSafeLogger struct {
	Path string

	mu sync.Mutex
	f  *os.File
	mw io.Writer
}

var std *PanicSafeLogger

// LogPath names a fresh timestamped log file for app in the temp dir.
func LogPath(app string) string {
	ts := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	ts = strings.ReplaceAll(ts, ":", "-")
	ts = strings.ReplaceAll(ts, ".", "-")
	return filepath.Join(os.TempDir(), fmt.Sprintf("%s-%s.log", app, ts))
}

// NewPanicSafeLogger opens path and tees everything written to it and to out.
// The logger becomes the one flushed by FlushLogger.
func NewPanicSafeLogger(path string, out io.Writer) (*PanicSafeLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	std = &PanicSafeLogger{
		Path: path,
		f:    f,
		mw:   io.MultiWriter(out, f),
	}
	return std, nil
}

func (l *PanicSafeLogger) Write(p []byte) (n int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mw.Write(p)
}

func (l *PanicSafeLogger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Sync()
}

func (l *PanicSafeLogger) Close() error {
	_ = l.Flush()
	if std == l {
		std = nil
	}
	return l.f.Close()
}

func FlushLogger() error {
	if std == nil {
		return nil
	}
	return std.Flush()
}

// LogPanic logs a recovered panic value with its stack.
// Use as: defer func() { if err := recover(); err != nil { util.LogPanic(err) } }()
func LogPanic(err any) {
	log.Printf("paniced with %v\n%s\n", err, string(debug.Stack()))
	_ = FlushLogger()
}
