// Package direct fetches a media URL over HTTP as a chunked byte source.
package direct

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/NikitaDmitryuk/media-relay/internal/core/domain"
	"github.com/NikitaDmitryuk/media-relay/internal/logutils"
)

const (
	DefaultChunkSize = 64 * 1024
	userAgent        = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// ErrStopped is returned by reads that end because the source was cancelled.
var ErrStopped = errors.New("stream stopped")

var extByType = map[string]string{
	"video/mp4":  "mp4",
	"video/webm": "webm",
	"audio/mp4":  "m4a",
	"audio/webm": "webm",
	"audio/mpeg": "mp3",
}

// NewClient returns a resty client for media downloads. Timeouts are left to the caller's context.
func NewClient(jar http.CookieJar) *resty.Client {
	c := resty.New().
		SetHeader("User-Agent", userAgent).
		SetRetryCount(0).
		SetTimeout(0)
	if jar != nil {
		c.SetCookieJar(jar)
	}
	return c
}

// Source reads a response body or any other stream chunk by chunk.
type Source struct {
	body    io.ReadCloser
	buf     []byte
	cancel  context.CancelFunc
	stopped atomic.Bool
	once    sync.Once
}

// NewReaderSource wraps body; cancel aborts the request that produced it.
func NewReaderSource(body io.ReadCloser, cancel context.CancelFunc, chunkSize int) *Source {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if cancel == nil {
		cancel = func() {}
	}
	return &Source{body: body, buf: make([]byte, chunkSize), cancel: cancel}
}

// Open issues a GET for rawURL and returns the body as a byte source together with the
// advertised length and media type.
func Open(ctx context.Context, client *resty.Client, rawURL string, chunkSize int) (*Source, domain.StreamInfo, error) {
	ctx, cancel := context.WithCancel(ctx)

	started := time.Now()
	resp, err := client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(rawURL)
	if err != nil {
		cancel()
		return nil, domain.StreamInfo{}, fmt.Errorf("failed to request media stream: %w", err)
	}

	body := resp.RawBody()
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		if body != nil {
			_ = body.Close()
		}
		cancel()
		return nil, domain.StreamInfo{}, fmt.Errorf("media stream request failed: HTTP Error %d", resp.StatusCode())
	}

	info := domain.StreamInfo{}
	if resp.RawResponse != nil && resp.RawResponse.ContentLength > 0 {
		info.ExpectedBytes = resp.RawResponse.ContentLength
	}
	if mediaType, _, err := mime.ParseMediaType(resp.Header().Get("Content-Type")); err == nil {
		if ext, ok := extByType[strings.ToLower(mediaType)]; ok {
			info.ContentType = mediaType
			info.Ext = ext
		}
	}

	logutils.Log.WithFields(map[string]any{
		"status":         resp.StatusCode(),
		"content_length": info.ExpectedBytes,
		"content_type":   info.ContentType,
		"latency":        time.Since(started).Round(time.Millisecond).String(),
	}).Debug("Direct media stream opened")

	return NewReaderSource(body, cancel, chunkSize), info, nil
}

func (s *Source) ReadChunk(_ context.Context) ([]byte, error) {
	n, err := s.body.Read(s.buf)
	if n > 0 {
		chunk := make([]byte, n)
		copy(chunk, s.buf[:n])
		return chunk, nil
	}
	if s.stopped.Load() {
		return nil, ErrStopped
	}
	if err == nil {
		return nil, io.ErrNoProgress
	}
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	return nil, fmt.Errorf("failed to read media stream: %w", err)
}

// Cancel aborts the underlying request, unblocking a pending read.
func (s *Source) Cancel() {
	s.stopped.Store(true)
	s.cancel()
}

func (s *Source) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		err = s.body.Close()
	})
	return err
}
