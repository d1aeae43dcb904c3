package shutdown

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/NikitaDmitryuk/media-relay/internal/core/domain"
	"github.com/NikitaDmitryuk/media-relay/internal/logutils"
	"github.com/NikitaDmitryuk/media-relay/internal/testutils"
	"github.com/NikitaDmitryuk/media-relay/internal/transfer"
)

func TestMain(m *testing.M) {
	logutils.InitLogger("error")
	os.Exit(m.Run())
}

type fakeService struct {
	name  string
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (f *fakeService) Name() string { return f.name }

func (f *fakeService) Shutdown(ctx context.Context) error {
	f.calls.Add(1)
	select {
	case <-time.After(f.delay):
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestShutdownCallsEveryService(t *testing.T) {
	m := NewManager(time.Second)
	a, b := &fakeService{name: "a"}, &fakeService{name: "b"}
	m.Register(a)
	m.Register(b)

	if err := m.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if a.calls.Load() != 1 || b.calls.Load() != 1 {
		t.Errorf("calls = %d, %d", a.calls.Load(), b.calls.Load())
	}
}

func TestShutdownJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	m := NewManager(time.Second)
	m.Register(&fakeService{name: "ok"})
	m.Register(&fakeService{name: "bad", err: boom})

	if err := m.Shutdown(); !errors.Is(err, boom) {
		t.Errorf("expected joined error to contain boom, got %v", err)
	}
}

func TestShutdownTimeout(t *testing.T) {
	m := NewManager(20 * time.Millisecond)
	m.Register(&fakeService{name: "slow", delay: time.Second})

	if err := m.Shutdown(); !errors.Is(err, ErrTimeout) && !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected timeout, got %v", err)
	}
}

func TestWaitForShutdownOnContext(t *testing.T) {
	m := NewManager(time.Second)
	svc := &fakeService{name: "a"}
	m.Register(svc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := m.WaitForShutdown(ctx); err != nil {
		t.Fatalf("WaitForShutdown failed: %v", err)
	}
	if svc.calls.Load() != 1 {
		t.Error("service was not shut down")
	}
}

func TestShutdownCancelsTransfers(t *testing.T) {
	source := testutils.NewFakeSource([]byte("x")).BlockAfterChunks()
	manager := transfer.NewManager(&testutils.FakeProvider{Source: source}, nil, nil)
	session, err := manager.Start(context.Background(), "", "https://youtu.be/abc123", domain.FetchSpec{}, domain.Credential{})
	if err != nil {
		t.Fatal(err)
	}

	go func() {
		for {
			if _, err := session.Next(context.Background()); err != nil {
				return
			}
		}
	}()

	m := NewManager(time.Second)
	m.Register(manager)
	if err := m.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if outcome, _ := session.Outcome(); outcome != transfer.OutcomeCancelled {
		t.Errorf("outcome = %s, expected cancelled", outcome)
	}
}
