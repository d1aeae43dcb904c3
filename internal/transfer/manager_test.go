package transfer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/NikitaDmitryuk/media-relay/internal/core/domain"
	tmserrors "github.com/NikitaDmitryuk/media-relay/internal/core/errors"
	"github.com/NikitaDmitryuk/media-relay/internal/testutils"
)

func TestManagerStartWithClientID(t *testing.T) {
	provider := &testutils.FakeProvider{Source: testutils.NewFakeSource().BlockAfterChunks()}
	m := NewManager(provider, nil, nil)

	s, err := m.Start(context.Background(), "dl_1", "https://youtu.be/abc123", domain.FetchSpec{}, domain.Credential{})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if s.ID() != "dl_1" {
		t.Errorf("ID = %q, expected dl_1", s.ID())
	}
	if got, ok := m.Registry().Get("dl_1"); !ok || got != s {
		t.Error("session not registered")
	}

	_, err = m.Start(context.Background(), "dl_1", "https://youtu.be/abc123", domain.FetchSpec{}, domain.Credential{})
	if !tmserrors.IsValidation(err) {
		t.Errorf("expected validation error for a duplicate id, got %v", err)
	}

	_, err = m.Start(context.Background(), "bad id!", "https://youtu.be/abc123", domain.FetchSpec{}, domain.Credential{})
	if !tmserrors.IsValidation(err) {
		t.Errorf("expected validation error for a malformed id, got %v", err)
	}

	s.Abandon()
	if m.Registry().Len() != 0 {
		t.Error("abandoned session must leave the registry")
	}
}

func TestManagerOpenFailure(t *testing.T) {
	hook := &testutils.RecordingHook{}
	provider := &testutils.FakeProvider{OpenErr: errors.New("exec: yt-dlp not found")}
	m := NewManager(provider, hook, nil)

	_, err := m.Start(context.Background(), "", "https://youtu.be/abc123", domain.FetchSpec{}, domain.Credential{})
	if !errors.Is(err, tmserrors.ErrTransferFailed) {
		t.Fatalf("expected transfer failed, got %v", err)
	}
	kinds := hook.Kinds()
	if len(kinds) != 1 || kinds[0] != domain.EventFailed {
		t.Errorf("unexpected events: %v", kinds)
	}

	provider.OpenErr = tmserrors.NewDomainError(tmserrors.ErrorTypeTransfer, tmserrors.CodeUnsupportedSelection, "no single stream")
	_, err = m.Start(context.Background(), "", "https://youtu.be/abc123", domain.FetchSpec{}, domain.Credential{})
	if !errors.Is(err, tmserrors.ErrUnsupportedSelection) {
		t.Errorf("typed provider errors must pass through, got %v", err)
	}
}

func TestManagerShutdownCancelsLiveSessions(t *testing.T) {
	source := testutils.NewFakeSource().BlockAfterChunks()
	provider := &testutils.FakeProvider{Source: source}
	m := NewManager(provider, nil, nil)

	s, err := m.Start(context.Background(), "", "https://youtu.be/abc123", domain.FetchSpec{}, domain.Credential{})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	go func() {
		_, _ = s.Next(context.Background())
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	outcome, _ := s.Outcome()
	if outcome != OutcomeCancelled {
		t.Errorf("outcome = %s, expected cancelled", outcome)
	}
	if m.Name() != "transfer_manager" {
		t.Errorf("Name = %q", m.Name())
	}
}
