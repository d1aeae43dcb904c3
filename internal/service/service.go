// Package service is the entry point used by transports: it resolves catalogs and starts transfers.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/NikitaDmitryuk/media-relay/internal/cookies"
	"github.com/NikitaDmitryuk/media-relay/internal/core/domain"
	tmserrors "github.com/NikitaDmitryuk/media-relay/internal/core/errors"
	"github.com/NikitaDmitryuk/media-relay/internal/logutils"
	"github.com/NikitaDmitryuk/media-relay/internal/notifier"
	"github.com/NikitaDmitryuk/media-relay/internal/pkg/validation"
	"github.com/NikitaDmitryuk/media-relay/internal/rendition"
	"github.com/NikitaDmitryuk/media-relay/internal/transfer"
)

const maxURLLength = 2048

// containerNames are the target formats ParseContainer accepts; empty means video.
var containerNames = []string{"mp4", "mp3", "video", "audio"}

// FetchRequest describes one download. Catalog and SessionID are optional.
type FetchRequest struct {
	URL       string
	Container string
	Quality   string
	Catalog   *domain.RenditionCatalog
	SessionID string
}

type MediaService struct {
	metadata    domain.MetadataProvider
	transfers   *transfer.Manager
	hook        domain.Hook
	cookiesPath string
}

func NewMediaService(
	metadata domain.MetadataProvider,
	transfers *transfer.Manager,
	hook domain.Hook,
	cookiesPath string,
) *MediaService {
	if hook == nil {
		hook = notifier.Noop
	}
	return &MediaService{
		metadata:    metadata,
		transfers:   transfers,
		hook:        hook,
		cookiesPath: cookiesPath,
	}
}

func (s *MediaService) Transfers() *transfer.Manager {
	return s.transfers
}

// Resolve validates url, fetches its metadata once and returns the ranked catalog.
func (s *MediaService) Resolve(ctx context.Context, url string) (*domain.RenditionCatalog, error) {
	if err := validation.ValidateVideoURL(url); err != nil {
		return nil, err
	}

	s.emit(domain.EventResolveStarted, url, "")
	started := time.Now()

	meta, err := s.metadata.Metadata(ctx, url, cookies.Detect(s.cookiesPath))
	if err != nil {
		if tmserrors.KindOf(err) != tmserrors.ErrorTypeResolution {
			err = tmserrors.Resolution(err, tmserrors.CodeTransient)
		}
		logutils.Log.WithError(err).WithField("url", url).Error("Failed to resolve media")
		s.emit(domain.EventResolveFailed, url, err.Error())
		return nil, err
	}

	catalog := rendition.BuildCatalog(meta)
	logutils.Log.WithFields(logrus.Fields{
		"url":     url,
		"title":   catalog.Title,
		"video":   len(catalog.Formats.Video),
		"audio":   len(catalog.Formats.Audio),
		"elapsed": time.Since(started).Round(time.Millisecond).String(),
	}).Info("Media resolved")
	s.emit(domain.EventResolveCompleted, url, "")
	return catalog, nil
}

// Fetch validates req, selects a fetch spec and starts the transfer. Nothing is opened
// when validation fails.
func (s *MediaService) Fetch(ctx context.Context, req FetchRequest) (*transfer.Session, error) {
	container, err := ValidateFetch(req)
	if err != nil {
		return nil, err
	}

	known := rendition.Known{}
	if req.Catalog != nil {
		known = rendition.KnownFromCatalog(req.Catalog)
	}
	spec, err := rendition.SelectSpec(container, req.Quality, known)
	if err != nil {
		return nil, err
	}

	return s.transfers.Start(ctx, req.SessionID, req.URL, spec, cookies.Detect(s.cookiesPath))
}

// ValidateFetch checks url, container and quality token without any I/O.
func ValidateFetch(req FetchRequest) (domain.Container, error) {
	name := strings.TrimSpace(req.Container)
	invalidContainer := func(string) error { return tmserrors.InvalidContainer(req.Container) }

	v := validation.NewValidator().
		ValidateVideoURL(req.URL).
		ValidateMaxLength(req.URL, "url", maxURLLength).
		ValidateOneOf(name, "format", containerNames, invalidContainer)
	if v.HasErrors() {
		return "", v.GetFirstError()
	}

	container, _ := domain.ParseContainer(name)
	v.ValidateCustom(func() error {
		if container == domain.ContainerVideo {
			return rendition.ValidateToken(req.Quality)
		}
		return nil
	}).ValidateCustom(func() error {
		if req.SessionID == "" || transfer.ValidSessionID(req.SessionID) {
			return nil
		}
		return tmserrors.NewDomainError(tmserrors.ErrorTypeValidation, transfer.CodeInvalidSessionID, "invalid download id").
			WithUserMessage("Invalid download id")
	})
	if v.HasErrors() {
		return "", v.GetFirstError()
	}
	return container, nil
}

func (s *MediaService) emit(kind domain.EventKind, url, errText string) {
	s.hook.Emit(domain.Event{
		Kind:    kind,
		URL:     url,
		Percent: -1,
		Error:   errText,
		Time:    time.Now(),
	})
}
