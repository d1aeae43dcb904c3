package process

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func shell(t *testing.T, script string) *exec.Cmd {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return exec.Command(sh, "-c", script)
}

func readAll(t *testing.T, s *Source) (string, error) {
	t.Helper()
	var out strings.Builder
	for {
		chunk, err := s.ReadChunk(context.Background())
		if err != nil {
			return out.String(), err
		}
		out.Write(chunk)
	}
}

func TestSourceStreamsStdout(t *testing.T) {
	s, err := Start(shell(t, "printf 'hello '; printf 'world'"), Options{ChunkSize: 4})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Close()

	out, err := readAll(t, s)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
	if out != "hello world" {
		t.Errorf("output = %q", out)
	}
	if _, ok := s.Usage()["exit_code"]; !ok {
		t.Error("expected exit code in usage after exit")
	}
}

func TestSourceNonZeroExitCarriesStderr(t *testing.T) {
	s, err := Start(shell(t, "printf partial; echo 'ERROR: Private video' >&2; exit 1"), Options{})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Close()

	out, err := readAll(t, s)
	if out != "partial" {
		t.Errorf("expected partial output, got %q", out)
	}
	if err == nil || errors.Is(err, io.EOF) {
		t.Fatalf("expected failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "Private video") {
		t.Errorf("stderr text missing from error: %v", err)
	}
}

func TestSourceCancelUnblocksRead(t *testing.T) {
	s, err := Start(shell(t, "exec sleep 30"), Options{StopTimeout: 500 * time.Millisecond})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.ReadChunk(context.Background())
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	s.Cancel()
	s.Cancel()

	select {
	case err := <-done:
		if !errors.Is(err, ErrStopped) {
			t.Errorf("expected ErrStopped, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Cancel did not unblock the read")
	}

	if err := s.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestSourceCancelStopsChildProcesses(t *testing.T) {
	// The backgrounded sleep inherits stdout, like ffmpeg under a merging yt-dlp.
	s, err := Start(shell(t, "printf x; sleep 20 & sleep 20; printf y"), Options{StopTimeout: 300 * time.Millisecond})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	chunk, err := s.ReadChunk(context.Background())
	if err != nil || string(chunk) != "x" {
		t.Fatalf("first chunk = %q, %v", chunk, err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.ReadChunk(context.Background())
		done <- err
	}()

	s.Cancel()

	select {
	case err := <-done:
		if !errors.Is(err, ErrStopped) {
			t.Errorf("expected ErrStopped, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("read still blocked after Cancel: a child kept the pipe open")
	}

	if err := s.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestSourceCloseStopsRunningGroup(t *testing.T) {
	s, err := Start(shell(t, "trap '' INT; sleep 20 & wait"), Options{StopTimeout: 200 * time.Millisecond})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	start := time.Now()
	if err := s.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Close took %s", elapsed)
	}
}

func TestTailBufferKeepsTail(t *testing.T) {
	b := &tailBuffer{max: 5}
	_, _ = b.Write([]byte("abc"))
	_, _ = b.Write([]byte("defgh"))
	if got := b.String(); got != "defgh" {
		t.Errorf("tail = %q, expected defgh", got)
	}
}
