// Package transfer drives a provider byte source as a lazy chunk sequence with
// progress events and cooperative cancellation.
package transfer

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/NikitaDmitryuk/media-relay/internal/core/domain"
	tmserrors "github.com/NikitaDmitryuk/media-relay/internal/core/errors"
	"github.com/NikitaDmitryuk/media-relay/internal/logutils"
)

type Outcome string

const (
	OutcomeActive    Outcome = "active"
	OutcomeCompleted Outcome = "completed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

// usageReporter is implemented by sources that can describe the resources they consumed.
type usageReporter interface {
	Usage() logrus.Fields
}

// Session owns one byte source for the lifetime of a single fetch.
// Next must be called from one goroutine; Cancel is safe from any goroutine.
type Session struct {
	id     string
	url    string
	spec   domain.FetchSpec
	info   domain.StreamInfo
	source domain.ByteSource
	hook   domain.Hook

	registry  *Registry
	startedAt time.Time

	cancelled atomic.Bool
	received  atomic.Int64

	mu      sync.Mutex
	outcome Outcome
	err     error
	done    chan struct{}
}

func newSession(
	id, url string,
	spec domain.FetchSpec,
	info domain.StreamInfo,
	source domain.ByteSource,
	hook domain.Hook,
	registry *Registry,
) *Session {
	return &Session{
		id:        id,
		url:       url,
		spec:      spec,
		info:      info,
		source:    source,
		hook:      hook,
		registry:  registry,
		startedAt: time.Now(),
		outcome:   OutcomeActive,
		done:      make(chan struct{}),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Spec() domain.FetchSpec { return s.spec }

// ExpectedBytes is 0 when the provider did not report a total.
func (s *Session) ExpectedBytes() int64 { return s.info.ExpectedBytes }

func (s *Session) Received() int64 { return s.received.Load() }

// ContentType prefers the provider's override over the fetch spec.
func (s *Session) ContentType() string {
	if s.info.ContentType != "" {
		return s.info.ContentType
	}
	return s.spec.ContentType
}

func (s *Session) Ext() string {
	if s.info.Ext != "" {
		return s.info.Ext
	}
	return s.spec.Ext
}

// Done is closed once the session reaches a terminal outcome.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) Outcome() (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome, s.err
}

// Cancel requests termination. It is idempotent and returns immediately;
// the sequence ends at the next chunk boundary.
func (s *Session) Cancel() {
	if s.cancelled.CompareAndSwap(false, true) {
		logutils.Log.WithField("download_id", s.id).Info("Cancellation requested")
		s.source.Cancel()
	}
}

func (s *Session) stopRequested(ctx context.Context) bool {
	return s.cancelled.Load() || ctx.Err() != nil
}

// Next returns the next chunk. The sequence ends with io.EOF on completion, or with
// a cancelled or transfer-failed DomainError.
func (s *Session) Next(ctx context.Context) ([]byte, error) {
	if outcome, err := s.Outcome(); outcome != OutcomeActive {
		if outcome == OutcomeCompleted {
			return nil, io.EOF
		}
		return nil, err
	}

	if s.stopRequested(ctx) {
		return nil, s.finish(OutcomeCancelled, tmserrors.Cancelled())
	}

	chunk, err := s.source.ReadChunk(ctx)

	if s.stopRequested(ctx) {
		return nil, s.finish(OutcomeCancelled, tmserrors.Cancelled())
	}

	if err != nil {
		if errors.Is(err, io.EOF) {
			s.finish(OutcomeCompleted, nil)
			return nil, io.EOF
		}
		return nil, s.finish(OutcomeFailed, tmserrors.TransferFailed(err))
	}

	received := s.received.Add(int64(len(chunk)))
	s.emitProgress(received)
	return chunk, nil
}

func (s *Session) emitProgress(received int64) {
	e := domain.Event{
		Kind:      domain.EventProgress,
		SessionID: s.id,
		Bytes:     received,
		Total:     s.info.ExpectedBytes,
		Percent:   -1,
		Time:      time.Now(),
	}
	if s.info.ExpectedBytes > 0 {
		e.Percent = Percent(received, s.info.ExpectedBytes)
	} else {
		e.Human = humanize.IBytes(uint64(received))
	}
	s.hook.Emit(e)
}

// Percent rounds received/expected to a whole percentage in [0, 100].
func Percent(received, expected int64) int {
	if expected <= 0 || received <= 0 {
		return 0
	}
	p := int(math.Round(float64(received) / float64(expected) * 100))
	if p > 100 {
		return 100
	}
	return p
}

// finish records the terminal outcome once, releases the source and emits the terminal event.
func (s *Session) finish(outcome Outcome, err error) error {
	s.mu.Lock()
	if s.outcome != OutcomeActive {
		prev := s.err
		s.mu.Unlock()
		return prev
	}
	s.outcome = outcome
	s.err = err
	s.mu.Unlock()

	closeErr := s.source.Close()
	if s.registry != nil {
		s.registry.Remove(s.id)
	}

	received := s.received.Load()
	fields := logrus.Fields{
		"download_id": s.id,
		"outcome":     outcome,
		"bytes":       humanize.IBytes(uint64(received)),
		"elapsed":     time.Since(s.startedAt).Round(time.Millisecond).String(),
	}
	if r, ok := s.source.(usageReporter); ok {
		for k, v := range r.Usage() {
			fields[k] = v
		}
	}

	e := domain.Event{
		SessionID: s.id,
		Bytes:     received,
		Total:     s.info.ExpectedBytes,
		Percent:   -1,
		Time:      time.Now(),
	}

	switch outcome {
	case OutcomeCompleted:
		e.Kind = domain.EventCompleted
		e.Percent = 100
		e.Human = humanize.IBytes(uint64(received))
		logutils.Log.WithFields(fields).Info("Transfer completed")
	case OutcomeCancelled:
		e.Kind = domain.EventCancelled
		logutils.Log.WithFields(fields).Info("Transfer cancelled")
	default:
		e.Kind = domain.EventFailed
		e.Error = err.Error()
		logutils.Log.WithFields(fields).WithError(err).Error("Transfer failed")
	}
	if closeErr != nil {
		logutils.Log.WithError(closeErr).WithField("download_id", s.id).Warn("Failed to close byte source")
	}

	s.hook.Emit(e)
	close(s.done)
	return err
}

// Stream pumps the sequence into w, flushing after every chunk when w supports it.
// A write error is treated as the consumer going away.
func (s *Session) Stream(ctx context.Context, w io.Writer) (int64, error) {
	flusher, _ := w.(http.Flusher)
	var written int64

	for {
		chunk, err := s.Next(ctx)
		if errors.Is(err, io.EOF) {
			return written, nil
		}
		if err != nil {
			return written, err
		}

		n, werr := w.Write(chunk)
		written += int64(n)
		if werr != nil {
			s.Cancel()
			_ = s.finish(OutcomeCancelled, tmserrors.Cancelled())
			return written, werr
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// Abandon terminates a session whose consumer never started reading.
func (s *Session) Abandon() {
	s.Cancel()
	_ = s.finish(OutcomeCancelled, tmserrors.Cancelled())
}
