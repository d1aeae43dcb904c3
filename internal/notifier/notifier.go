// Package notifier fans transfer and resolve events out to logs and live subscribers.
package notifier

import (
	"github.com/sirupsen/logrus"

	"github.com/NikitaDmitryuk/media-relay/internal/core/domain"
	"github.com/NikitaDmitryuk/media-relay/internal/logutils"
)

// Noop is a hook that drops every event. Use it where nobody listens.
var Noop domain.Hook = noopHook{}

type noopHook struct{}

func (noopHook) Emit(domain.Event) {}

type multiHook []domain.Hook

// Multi delivers each event to every non-nil hook in order.
func Multi(hooks ...domain.Hook) domain.Hook {
	out := make(multiHook, 0, len(hooks))
	for _, h := range hooks {
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}

func (m multiHook) Emit(e domain.Event) {
	for _, h := range m {
		h.Emit(e)
	}
}

// LogHook writes events to the application logger. Progress goes to debug.
type LogHook struct{}

func (LogHook) Emit(e domain.Event) {
	fields := logrus.Fields{"event": e.Kind}
	if e.SessionID != "" {
		fields["download_id"] = e.SessionID
	}
	if e.URL != "" {
		fields["url"] = e.URL
	}
	entry := logutils.Log.WithFields(fields)

	switch e.Kind {
	case domain.EventProgress:
		if e.Percent >= 0 {
			entry = entry.WithField("progress", e.Percent)
		} else {
			entry = entry.WithField("downloaded", e.Human)
		}
		entry.Debug("Transfer progress")
	case domain.EventResolveFailed, domain.EventFailed:
		entry.WithField("error", e.Error).Warn("Operation failed")
	case domain.EventCompleted:
		entry.WithField("bytes", e.Bytes).Info("Transfer completed")
	default:
		entry.Info("Media event")
	}
}
