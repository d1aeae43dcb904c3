package transfer

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/NikitaDmitryuk/media-relay/internal/core/domain"
	tmserrors "github.com/NikitaDmitryuk/media-relay/internal/core/errors"
	"github.com/NikitaDmitryuk/media-relay/internal/logutils"
)

const (
	CodeSessionExists    = "session_exists"
	CodeInvalidSessionID = "invalid_download_id"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidSessionID reports whether a client supplied id can be used as a session id.
func ValidSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

type noopHook struct{}

func (noopHook) Emit(domain.Event) {}

// Manager opens byte sources and tracks the resulting sessions.
type Manager struct {
	provider domain.StreamProvider
	hook     domain.Hook
	registry *Registry
}

func NewManager(provider domain.StreamProvider, hook domain.Hook, registry *Registry) *Manager {
	if hook == nil {
		hook = noopHook{}
	}
	if registry == nil {
		registry = NewRegistry()
	}
	return &Manager{provider: provider, hook: hook, registry: registry}
}

func (m *Manager) Registry() *Registry {
	return m.registry
}

// Start opens the provider stream for spec and registers a session under id,
// or under a fresh uuid when id is empty.
func (m *Manager) Start(
	ctx context.Context,
	id, url string,
	spec domain.FetchSpec,
	cred domain.Credential,
) (*Session, error) {
	if id == "" {
		id = uuid.NewString()
	} else if !ValidSessionID(id) {
		return nil, tmserrors.NewDomainError(tmserrors.ErrorTypeValidation, CodeInvalidSessionID, "invalid download id").
			WithUserMessage("Invalid download id")
	}
	if _, taken := m.registry.Get(id); taken {
		return nil, tmserrors.NewDomainError(tmserrors.ErrorTypeValidation, CodeSessionExists, "download id already in use").
			WithDetails(map[string]any{"download_id": id}).
			WithUserMessage("Download id already in use")
	}

	logger := logutils.Log.WithFields(logrus.Fields{
		"download_id": id,
		"url":         url,
		"container":   spec.Container,
		"token":       spec.Token,
	})

	source, info, err := m.provider.Open(ctx, url, spec, cred)
	if err != nil {
		var de *tmserrors.DomainError
		if !errors.As(err, &de) {
			err = tmserrors.TransferFailed(err)
		}
		logger.WithError(err).Error("Failed to open provider stream")
		m.hook.Emit(domain.Event{
			Kind:      domain.EventFailed,
			SessionID: id,
			URL:       url,
			Percent:   -1,
			Error:     err.Error(),
			Time:      time.Now(),
		})
		return nil, err
	}

	s := newSession(id, url, spec, info, source, m.hook, m.registry)
	if !m.registry.add(s) {
		_ = source.Close()
		return nil, tmserrors.NewDomainError(tmserrors.ErrorTypeValidation, CodeSessionExists, "download id already in use")
	}

	logger.WithField("expected_bytes", info.ExpectedBytes).Info("Transfer started")
	m.hook.Emit(domain.Event{
		Kind:      domain.EventFetchStarted,
		SessionID: id,
		URL:       url,
		Total:     info.ExpectedBytes,
		Percent:   0,
		Time:      time.Now(),
	})
	return s, nil
}

// Cancel cancels a live session by id.
func (m *Manager) Cancel(id string) bool {
	return m.registry.Cancel(id)
}

// Shutdown cancels every live session and waits for them to terminate or ctx to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	sessions := m.registry.Snapshot()
	logutils.Log.WithField("sessions", len(sessions)).Info("Cancelling live transfers")

	for _, s := range sessions {
		s.Cancel()
	}
	for _, s := range sessions {
		select {
		case <-s.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (*Manager) Name() string {
	return "transfer_manager"
}
