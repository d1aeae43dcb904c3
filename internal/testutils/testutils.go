package testutils

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/NikitaDmitryuk/media-relay/internal/config"
	"github.com/NikitaDmitryuk/media-relay/internal/core/domain"
)

const testFileMode = 0600

// ErrSourceCancelled is returned by a blocked FakeSource read once Cancel is called.
var ErrSourceCancelled = errors.New("fake source cancelled")

// TestConfig creates a configuration suitable for testing
func TestConfig() *config.Config {
	return &config.Config{
		ListenAddr: "127.0.0.1:0",
		LogLevel:   "debug",
		ProviderSettings: config.ProviderConfig{
			Name:      config.ProviderYTDLP,
			YTDLPPath: "yt-dlp",
		},
		TransferSettings: config.TransferConfig{
			ChunkSize:   config.DefaultChunkSize,
			StopTimeout: config.DefaultStopTimeout,
		},
		RateLimit: config.RateLimitConfig{
			RequestsPerSecond: 1000,
			Burst:             1000,
		},
		ShutdownTimeout: config.DefaultShutdownTimeout,
	}
}

// TempDir creates a temporary directory for tests
func TempDir(t *testing.T) string {
	t.Helper()
	return t.TempDir()
}

// WriteFile writes content under dir and returns its path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), testFileMode); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

// FakeSource replays fixed chunks, then ends with io.EOF, a configured error,
// or blocks until cancelled.
type FakeSource struct {
	mu       sync.Mutex
	chunks   [][]byte
	err      error
	block    bool
	reads    int
	closed   int
	cancelCh chan struct{}
	once     sync.Once
}

func NewFakeSource(chunks ...[]byte) *FakeSource {
	return &FakeSource{chunks: chunks, cancelCh: make(chan struct{})}
}

// FailWith makes the source return err once its chunks are exhausted.
func (f *FakeSource) FailWith(err error) *FakeSource {
	f.err = err
	return f
}

// BlockAfterChunks makes the source block once its chunks are exhausted.
func (f *FakeSource) BlockAfterChunks() *FakeSource {
	f.block = true
	return f
}

func (f *FakeSource) ReadChunk(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	f.reads++
	if len(f.chunks) > 0 {
		chunk := f.chunks[0]
		f.chunks = f.chunks[1:]
		f.mu.Unlock()
		return chunk, nil
	}
	err, block := f.err, f.block
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if block {
		select {
		case <-f.cancelCh:
			return nil, ErrSourceCancelled
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, io.EOF
}

func (f *FakeSource) Cancel() {
	f.once.Do(func() { close(f.cancelCh) })
}

func (f *FakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *FakeSource) Closed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *FakeSource) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

func (f *FakeSource) Cancelled() bool {
	select {
	case <-f.cancelCh:
		return true
	default:
		return false
	}
}

// RecordingHook stores every emitted event.
type RecordingHook struct {
	mu     sync.Mutex
	events []domain.Event
}

func (h *RecordingHook) Emit(e domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, e)
}

func (h *RecordingHook) Events() []domain.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]domain.Event, len(h.events))
	copy(out, h.events)
	return out
}

func (h *RecordingHook) Kinds() []domain.EventKind {
	events := h.Events()
	kinds := make([]domain.EventKind, len(events))
	for i, e := range events {
		kinds[i] = e.Kind
	}
	return kinds
}

// FakeProvider serves canned metadata and byte sources.
type FakeProvider struct {
	mu sync.Mutex

	Meta        *domain.RawMetadata
	MetaErr     error
	Source      domain.ByteSource
	Info        domain.StreamInfo
	OpenErr     error
	MetaCalls   int
	OpenCalls   []domain.FetchSpec
	Credentials []domain.Credential
}

func (*FakeProvider) Name() string { return "fake" }

func (p *FakeProvider) Metadata(_ context.Context, _ string, cred domain.Credential) (*domain.RawMetadata, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.MetaCalls++
	p.Credentials = append(p.Credentials, cred)
	if p.MetaErr != nil {
		return nil, p.MetaErr
	}
	return p.Meta, nil
}

func (p *FakeProvider) Open(
	_ context.Context,
	_ string,
	spec domain.FetchSpec,
	cred domain.Credential,
) (domain.ByteSource, domain.StreamInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.OpenCalls = append(p.OpenCalls, spec)
	p.Credentials = append(p.Credentials, cred)
	if p.OpenErr != nil {
		return nil, domain.StreamInfo{}, p.OpenErr
	}
	return p.Source, p.Info, nil
}

// LastSpec returns the fetch spec of the most recent Open call.
func (p *FakeProvider) LastSpec() (domain.FetchSpec, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.OpenCalls) == 0 {
		return domain.FetchSpec{}, false
	}
	return p.OpenCalls[len(p.OpenCalls)-1], true
}

// SampleMetadata returns a realistic format list for a short clip.
func SampleMetadata() *domain.RawMetadata {
	s := func(v string) *string { return &v }
	i := func(v int) *int { return &v }
	n := func(v int64) *int64 { return &v }
	f := func(v float64) *float64 { return &v }

	return &domain.RawMetadata{
		Title:     "Sample: clip / test",
		Duration:  212.4,
		Thumbnail: "https://i.ytimg.com/vi/abc123/maxresdefault.jpg",
		Formats: []domain.RawTrack{
			{FormatID: s("sb0"), Ext: s("mhtml"), VCodec: s("none"), ACodec: s("none")},
			{FormatID: s("139"), Ext: s("m4a"), VCodec: s("none"), ACodec: s("mp4a.40.5"), Filesize: n(1_300_000)},
			{FormatID: s("140"), Ext: s("m4a"), VCodec: s("none"), ACodec: s("mp4a.40.2"), Filesize: n(3_400_000)},
			{FormatID: s("249"), Ext: s("webm"), VCodec: s("none"), ACodec: s("opus"), Filesize: n(1_200_000)},
			{FormatID: s("251"), Ext: s("webm"), VCodec: s("none"), ACodec: s("opus"), Filesize: n(3_900_000)},
			{FormatID: s("18"), Ext: s("mp4"), Height: i(360), Width: i(640), VCodec: s("avc1.42001E"),
				ACodec: s("mp4a.40.2"), FPS: f(30)},
			{FormatID: s("134"), Ext: s("mp4"), Height: i(360), VCodec: s("avc1.4d401e"), ACodec: s("none"),
				Filesize: n(5_000_000), FPS: f(30)},
			{FormatID: s("136"), Ext: s("mp4"), Height: i(720), VCodec: s("avc1.4d401f"), ACodec: s("none"),
				Filesize: n(20_000_000), FPS: f(30)},
			{FormatID: s("247"), Ext: s("webm"), Height: i(720), VCodec: s("vp9"), ACodec: s("none"),
				Filesize: n(25_000_000), FPS: f(30)},
			{FormatID: s("137"), Ext: s("mp4"), Height: i(1080), VCodec: s("avc1.640028"), ACodec: s("none"),
				Filesize: n(60_000_000), FPS: f(30)},
			{FormatID: s("399"), Ext: s("mp4"), Height: i(1080), VCodec: s("av01.0.08M.08"), ACodec: s("none"),
				FPS: f(30)},
		},
	}
}
