package domain

import (
	"context"
	"time"
)

// MetadataProvider returns the raw format list for a media URL.
type MetadataProvider interface {
	Metadata(ctx context.Context, url string, cred Credential) (*RawMetadata, error)
}

// StreamProvider starts a long-running byte producer for a fetch spec.
type StreamProvider interface {
	Open(ctx context.Context, url string, spec FetchSpec, cred Credential) (ByteSource, StreamInfo, error)
}

// Provider is implemented by backends that can do both.
type Provider interface {
	MetadataProvider
	StreamProvider
	Name() string
}

// ByteSource is owned by exactly one transfer session.
// ReadChunk returns io.EOF at end of stream. Cancel may be called from any goroutine
// and must unblock a pending ReadChunk. Close releases the underlying resource.
type ByteSource interface {
	ReadChunk(ctx context.Context) ([]byte, error)
	Cancel()
	Close() error
}

type EventKind string

const (
	EventResolveStarted   EventKind = "resolve_started"
	EventResolveCompleted EventKind = "resolve_completed"
	EventResolveFailed    EventKind = "resolve_failed"
	EventFetchStarted     EventKind = "fetch_started"
	EventProgress         EventKind = "progress"
	EventCompleted        EventKind = "completed"
	EventCancelled        EventKind = "cancelled"
	EventFailed           EventKind = "failed"
)

// Terminal reports whether no further events follow for the session.
func (k EventKind) Terminal() bool {
	switch k {
	case EventCompleted, EventCancelled, EventFailed:
		return true
	default:
		return false
	}
}

// Event is emitted on resolve and transfer milestones. Percent is -1 when the total is unknown.
type Event struct {
	Kind      EventKind `json:"type"`
	SessionID string    `json:"downloadId,omitempty"`
	URL       string    `json:"url,omitempty"`
	Percent   int       `json:"progress"`
	Bytes     int64     `json:"bytes"`
	Total     int64     `json:"total,omitempty"`
	Human     string    `json:"downloaded,omitempty"`
	Error     string    `json:"error,omitempty"`
	Time      time.Time `json:"time"`
}

// Hook receives events. Implementations must not block.
type Hook interface {
	Emit(Event)
}

// GracefulShutdownInterface is implemented by services stopped on exit.
type GracefulShutdownInterface interface {
	Shutdown(ctx context.Context) error
	Name() string
}
