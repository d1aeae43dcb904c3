// Package native resolves and streams YouTube media in-process with github.com/kkdai/youtube/v2.
// It cannot merge or transcode, so it serves only selections a single format satisfies.
package native

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/kkdai/youtube/v2"
	"github.com/sirupsen/logrus"

	"github.com/NikitaDmitryuk/media-relay/internal/cookies"
	"github.com/NikitaDmitryuk/media-relay/internal/core/domain"
	tmserrors "github.com/NikitaDmitryuk/media-relay/internal/core/errors"
	"github.com/NikitaDmitryuk/media-relay/internal/logutils"
	"github.com/NikitaDmitryuk/media-relay/internal/provider"
	"github.com/NikitaDmitryuk/media-relay/internal/provider/direct"
)

const Name = "native"

type videoClient interface {
	GetVideoContext(ctx context.Context, url string) (*youtube.Video, error)
	GetStreamContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (io.ReadCloser, int64, error)
}

type Options struct {
	ChunkSize int
}

type Provider struct {
	opts      Options
	newClient func(cred domain.Credential) (videoClient, error)
}

func New(opts Options) *Provider {
	return &Provider{opts: opts, newClient: defaultClient}
}

// defaultClient builds a youtube client over a resty transport carrying the credential's cookies.
func defaultClient(cred domain.Credential) (videoClient, error) {
	var jar http.CookieJar
	if cred.Present() {
		var err error
		if jar, err = cookies.Jar(cred); err != nil {
			logutils.Log.WithError(err).Warn("Failed to load cookies, continuing without them")
			jar = nil
		}
	}
	return &youtube.Client{HTTPClient: direct.NewClient(jar).GetClient()}, nil
}

func (*Provider) Name() string { return Name }

func (p *Provider) Metadata(ctx context.Context, url string, cred domain.Credential) (*domain.RawMetadata, error) {
	client, err := p.newClient(cred)
	if err != nil {
		return nil, provider.ResolutionError(err, "")
	}

	video, err := client.GetVideoContext(ctx, url)
	if err != nil {
		return nil, resolutionError(err)
	}
	return MapVideo(video), nil
}

// MapVideo converts a resolved video into the provider-neutral metadata document.
func MapVideo(video *youtube.Video) *domain.RawMetadata {
	meta := &domain.RawMetadata{
		Title:    video.Title,
		Duration: video.Duration.Seconds(),
		Formats:  make([]domain.RawTrack, 0, len(video.Formats)),
	}
	if n := len(video.Thumbnails); n > 0 {
		meta.Thumbnail = video.Thumbnails[n-1].URL
	}
	for i := range video.Formats {
		meta.Formats = append(meta.Formats, MapFormat(&video.Formats[i]))
	}
	return meta
}

func resolutionError(err error) *tmserrors.DomainError {
	var status *youtube.ErrPlayabiltyStatus
	switch {
	case errors.Is(err, youtube.ErrLoginRequired),
		errors.Is(err, youtube.ErrVideoPrivate),
		errors.Is(err, youtube.ErrNotPlayableInEmbed),
		errors.As(err, &status):
		return tmserrors.Resolution(err, tmserrors.CodeAccessDenied)
	case errors.Is(err, youtube.ErrInvalidCharactersInVideoID),
		errors.Is(err, youtube.ErrVideoIDMinLength):
		return tmserrors.Resolution(err, tmserrors.CodeNotFound)
	}
	return provider.ResolutionError(err, "")
}

// Open streams the first alternative a single format can serve.
func (p *Provider) Open(
	ctx context.Context,
	url string,
	spec domain.FetchSpec,
	cred domain.Credential,
) (domain.ByteSource, domain.StreamInfo, error) {
	client, err := p.newClient(cred)
	if err != nil {
		return nil, domain.StreamInfo{}, err
	}

	video, err := client.GetVideoContext(ctx, url)
	if err != nil {
		return nil, domain.StreamInfo{}, resolutionError(err)
	}

	format, alt := Pick(video.Formats, spec.Selection)
	if format == nil {
		return nil, domain.StreamInfo{}, provider.UnsupportedSelection(Name, "no single format matches")
	}

	streamCtx, cancel := context.WithCancel(ctx)
	body, size, err := client.GetStreamContext(streamCtx, video, format)
	if err != nil {
		cancel()
		return nil, domain.StreamInfo{}, fmt.Errorf("failed to open itag %d: %w", format.ItagNo, err)
	}

	contentType, ext := mediaTypeOf(format)
	info := domain.StreamInfo{ContentType: contentType, Ext: ext}
	if size > 0 {
		info.ExpectedBytes = size
	} else if format.ContentLength > 0 {
		info.ExpectedBytes = format.ContentLength
	}

	logutils.Log.WithFields(logrus.Fields{
		"itag":           format.ItagNo,
		"alternative":    alt,
		"expected_bytes": info.ExpectedBytes,
		"content_type":   info.ContentType,
	}).Info("Native stream started")

	return direct.NewReaderSource(body, cancel, p.opts.ChunkSize), info, nil
}
