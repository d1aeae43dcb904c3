// Package process exposes a subprocess's stdout as a chunked byte source.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	psprocess "github.com/shirou/gopsutil/v3/process"
	"github.com/sirupsen/logrus"

	"github.com/NikitaDmitryuk/media-relay/internal/logutils"
)

const (
	DefaultChunkSize   = 64 * 1024
	DefaultStopTimeout = 5 * time.Second
	forceKillTimeout   = 2 * time.Second
	maxStderrBytes     = 64 * 1024
	sampleEvery        = 128
)

// ErrStopped is returned by reads that end because the source was cancelled.
var ErrStopped = errors.New("process stopped")

type Options struct {
	ChunkSize   int
	StopTimeout time.Duration
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Write(p)
	if over := b.buf.Len() - b.max; over > 0 {
		b.buf.Next(over)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Source streams a started command's stdout. It owns the process exclusively.
type Source struct {
	cmd    *exec.Cmd
	name   string
	stdout io.ReadCloser
	stderr *tailBuffer
	buf    []byte

	stopTimeout time.Duration
	startedAt   time.Time

	stopped   atomic.Bool
	stopOnce  sync.Once
	closeOnce sync.Once
	waitOnce  sync.Once
	waitErr   error
	waitDone  chan struct{}

	proc    *psprocess.Process
	reads   int
	peakRSS atomic.Uint64
	cpuTime atomic.Int64
}

// Start launches cmd with stdout piped and stderr captured.
func Start(cmd *exec.Cmd, opts Options) (*Source, error) {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr := &tailBuffer{max: maxStderrBytes}
	cmd.Stderr = stderr
	cmd.WaitDelay = opts.StopTimeout
	setProcessGroup(cmd)

	name := filepath.Base(cmd.Path)
	logutils.Log.WithFields(logrus.Fields{
		"command": name,
		"args":    cmd.Args[1:],
	}).Debug("Starting provider process")

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}

	s := &Source{
		cmd:         cmd,
		name:        name,
		stdout:      stdout,
		stderr:      stderr,
		buf:         make([]byte, opts.ChunkSize),
		stopTimeout: opts.StopTimeout,
		startedAt:   time.Now(),
		waitDone:    make(chan struct{}),
	}

	if p, err := psprocess.NewProcess(int32(cmd.Process.Pid)); err == nil {
		s.proc = p
		s.sample()
	} else {
		logutils.Log.WithError(err).Debug("Process sampling unavailable")
	}
	return s, nil
}

func (s *Source) Pid() int {
	return s.cmd.Process.Pid
}

// Stderr returns the captured tail of the process's stderr.
func (s *Source) Stderr() string {
	return s.stderr.String()
}

// ReadChunk blocks until the process writes output, exits or is stopped.
// A non-zero exit surfaces as an error carrying the stderr text.
func (s *Source) ReadChunk(_ context.Context) ([]byte, error) {
	n, err := s.stdout.Read(s.buf)
	if n > 0 {
		s.reads++
		if s.reads%sampleEvery == 0 {
			s.sample()
		}
		chunk := make([]byte, n)
		copy(chunk, s.buf[:n])
		return chunk, nil
	}

	if err == nil {
		return nil, io.ErrNoProgress
	}
	if s.stopped.Load() {
		return nil, ErrStopped
	}
	if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
		return nil, fmt.Errorf("failed to read %s output: %w", s.name, err)
	}

	if waitErr := s.wait(); waitErr != nil {
		if s.stopped.Load() {
			return nil, ErrStopped
		}
		return nil, fmt.Errorf("%s failed (exit code: %w):\n%s", s.name, waitErr, strings.TrimSpace(s.Stderr()))
	}
	return nil, io.EOF
}

func (s *Source) wait() error {
	s.waitOnce.Do(func() {
		s.waitErr = s.cmd.Wait()
		close(s.waitDone)
	})
	return s.waitErr
}

func (s *Source) exited() bool {
	select {
	case <-s.waitDone:
		return true
	default:
		return false
	}
}

// Cancel interrupts the process group and force kills it if it outlives the stop timeout.
// A pending ReadChunk returns once every process in the group has closed stdout.
func (s *Source) Cancel() {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		if s.cmd.Process == nil {
			return
		}
		if s.exited() {
			// The leader is gone but helpers it started may still hold the pipe.
			_ = killGroup(s.cmd.Process)
			return
		}

		s.sample()
		logutils.Log.WithField("pid", s.Pid()).Info("Stopping provider process gracefully")
		if err := interruptGroup(s.cmd.Process); err != nil {
			logutils.Log.WithError(err).Debug("Failed to send interrupt signal, killing")
			s.forceKill()
			return
		}

		go func() {
			select {
			case <-s.waitDone:
				// Children may ignore the interrupt even after the leader exits.
				_ = killGroup(s.cmd.Process)
			case <-time.After(s.stopTimeout):
				logutils.Log.WithField("pid", s.Pid()).Warn("Provider process did not exit gracefully, force killing")
				s.forceKill()
			}
		}()
	})
}

func (s *Source) forceKill() {
	if err := killGroup(s.cmd.Process); err != nil {
		logutils.Log.WithError(err).Warn("Failed to force kill provider process group")
		_ = s.cmd.Process.Kill()
	}
}

// Close stops the process group if it is still running and reaps the leader.
func (s *Source) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if !s.exited() {
			s.Cancel()
		}
		_ = s.stdout.Close()

		done := make(chan error, 1)
		go func() { done <- s.wait() }()

		select {
		case <-done:
		case <-time.After(s.stopTimeout + forceKillTimeout):
			s.forceKill()
			err = fmt.Errorf("%s did not exit after stop", s.name)
		}
	})
	return err
}

func (s *Source) sample() {
	if s.proc == nil {
		return
	}
	if mem, err := s.proc.MemoryInfo(); err == nil {
		for {
			peak := s.peakRSS.Load()
			if mem.RSS <= peak || s.peakRSS.CompareAndSwap(peak, mem.RSS) {
				break
			}
		}
	}
	if times, err := s.proc.Times(); err == nil {
		s.cpuTime.Store(int64((times.User + times.System) * float64(time.Second)))
	}
}

// Usage describes the resources the process consumed, for the completion log.
func (s *Source) Usage() logrus.Fields {
	fields := logrus.Fields{
		"pid":          s.Pid(),
		"process_time": time.Since(s.startedAt).Round(time.Millisecond).String(),
	}
	if rss := s.peakRSS.Load(); rss > 0 {
		fields["peak_rss"] = humanize.IBytes(rss)
	}
	if cpu := s.cpuTime.Load(); cpu > 0 {
		fields["cpu_time"] = time.Duration(cpu).Round(time.Millisecond).String()
	}
	if s.exited() && s.cmd.ProcessState != nil {
		fields["exit_code"] = s.cmd.ProcessState.ExitCode()
	}
	return fields
}
