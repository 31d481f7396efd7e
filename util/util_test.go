package util

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCommitLogger(t *testing.T) {
	var commits []string
	l := &CommitLogger{Committer: func(p []byte) {
		commits = append(commits, string(p))
	}}

	l.Commit()
	if len(commits) != 0 {
		t.Fatal("empty buffer committed")
	}

	l.Reserve(64)
	l.Printf("sent %d of %d\n", 4, 8)
	_, _ = l.Write([]byte("done\n"))
	if l.Len() != len("sent 4 of 8\ndone\n") {
		t.Errorf("Len = %d", l.Len())
	}

	l.Commit()
	l.Printf("second\n")
	l.Reset()
	l.Commit()

	if len(commits) != 1 || commits[0] != "sent 4 of 8\ndone\n" {
		t.Errorf("commits = %q", commits)
	}
}

func TestPanicSafeLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gbamb.log")

	var out bytes.Buffer
	l, err := NewPanicSafeLogger(path, &out)
	if err != nil {
		t.Fatal(err)
	}

	logger := log.New(l, "", 0)
	func() {
		defer func() {
			if err := recover(); err != nil {
				logger.Printf("recovered: %v", err)
				LogPanic(err)
			}
		}()
		panic("cable unplugged")
	}()

	if err = l.Close(); err != nil {
		t.Fatal(err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "recovered: cable unplugged") {
		t.Errorf("log file = %q", b)
	}
	if out.String() != string(b) {
		t.Error("tee output differs from the file")
	}
	if FlushLogger() != nil {
		t.Error("FlushLogger after Close")
	}
}

func TestLogPath(t *testing.T) {
	p := LogPath("gbamb")
	if filepath.Dir(p) != filepath.Clean(os.TempDir()) {
		t.Errorf("not in temp dir: %s", p)
	}
	if base := filepath.Base(p); !strings.HasPrefix(base, "gbamb-") || strings.ContainsAny(base, ":") {
		t.Errorf("bad name %s", base)
	}
}

func TestNewTestingLogger(t *testing.T) {
	l := NewTestingLogger(t)
	l.Printf("line one\nline two\n")
	l.Commit()
}
