package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	tmserrors "github.com/NikitaDmitryuk/media-relay/internal/core/errors"
	"github.com/NikitaDmitryuk/media-relay/internal/logutils"
	"github.com/NikitaDmitryuk/media-relay/internal/service"
	"github.com/NikitaDmitryuk/media-relay/internal/transfer"
)

const (
	maxDownloadBodyBytes = 64 * 1024
	heartbeatInterval    = 15 * time.Second

	msgInvalidBody   = "Invalid request body"
	msgInfoFailed    = "Failed to get video info"
	msgFetchFailed   = "Failed to download video"
	msgNotFound      = "Download not found"
	fallbackFilename = "video"
)

var unsafeFilenameChars = regexp.MustCompile(`[^\w\s-]`)

// SafeFilename keeps word characters, whitespace and hyphens of a title.
func SafeFilename(title, ext string) string {
	name := strings.TrimSpace(unsafeFilenameChars.ReplaceAllString(title, ""))
	if name == "" {
		name = fallbackFilename
	}
	return name + "." + ext
}

func statusFor(err error) int {
	var de *tmserrors.DomainError
	if errors.As(err, &de) && de.Type == tmserrors.ErrorTypeValidation {
		if de.Code == transfer.CodeSessionExists {
			return http.StatusConflict
		}
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:          "ok",
		ActiveDownloads: s.svc.Transfers().Registry().Len(),
	})
}

// handleInfo handles GET /info?url=.
func (s *Server) handleInfo(c *gin.Context) {
	ctx := c.Request.Context()
	catalog, err := s.svc.Resolve(ctx, c.Query("url"))
	if err != nil {
		logutils.Log.WithError(err).WithField("request_id", RequestIDFromContext(ctx)).Debug("Info request failed")
		if status := statusFor(err); status != http.StatusInternalServerError {
			c.JSON(status, ErrorResponse{Error: tmserrors.UserMessage(err, msgInvalidBody)})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: msgInfoFailed})
		return
	}
	c.JSON(http.StatusOK, catalog)
}

// handleDownload handles POST /download and streams the media in the response body.
func (s *Server) handleDownload(c *gin.Context) {
	ctx := c.Request.Context()

	var req DownloadRequest
	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxDownloadBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "Request body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: msgInvalidBody})
		return
	}

	fetch := service.FetchRequest{
		URL:       strings.TrimSpace(req.URL),
		Container: req.Format,
		Quality:   req.Quality,
		SessionID: req.DownloadID,
	}
	if _, err := service.ValidateFetch(fetch); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: tmserrors.UserMessage(err, msgInvalidBody)})
		return
	}

	catalog, err := s.svc.Resolve(ctx, fetch.URL)
	if err != nil {
		logutils.Log.WithError(err).WithField("request_id", RequestIDFromContext(ctx)).Error("Download metadata lookup failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: msgFetchFailed})
		return
	}
	fetch.Catalog = catalog

	session, err := s.svc.Fetch(ctx, fetch)
	if err != nil {
		status := statusFor(err)
		msg := msgFetchFailed
		if status != http.StatusInternalServerError {
			msg = tmserrors.UserMessage(err, msgInvalidBody)
		}
		c.JSON(status, ErrorResponse{Error: msg})
		return
	}

	c.Header("Content-Type", session.ContentType())
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, SafeFilename(catalog.Title, session.Ext())))
	c.Header("X-Download-ID", session.ID())
	c.Header("Cache-Control", "no-store")
	c.Status(http.StatusOK)

	written, err := session.Stream(ctx, c.Writer)
	outcome, _ := session.Outcome()
	logger := logutils.Log.WithFields(logrus.Fields{
		"request_id":  RequestIDFromContext(ctx),
		"download_id": session.ID(),
		"bytes":       written,
		"outcome":     outcome,
	})
	if err == nil && outcome == transfer.OutcomeCompleted {
		logger.Debug("Download response finished")
		return
	}

	logger.WithError(err).Warn("Download response aborted")
	abortConnection(c)
}

// abortConnection drops the connection so the client sees a truncated body rather than a clean end.
func abortConnection(c *gin.Context) {
	// gin asserts http.Hijacker on the underlying writer and panics when it is missing.
	defer func() { _ = recover() }()

	conn, _, err := c.Writer.Hijack()
	if err != nil {
		return
	}
	_ = conn.Close()
}

// handleProgress handles GET /download-progress/:id as a server-sent event stream.
func (s *Server) handleProgress(c *gin.Context) {
	id := c.Param("id")
	if !transfer.ValidSessionID(id) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid download id"})
		return
	}

	events, unsubscribe := s.hub.Subscribe(id)
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	if err := writeSSE(c.Writer, connectedEvent{Type: "connected", DownloadID: id}); err != nil {
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := writeSSE(c.Writer, e); err != nil {
				return
			}
			if e.Kind.Terminal() {
				return
			}
		case <-heartbeat.C:
			if _, err := io.WriteString(c.Writer, ": ping\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		case <-ctx.Done():
			return
		}
	}
}

func writeSSE(w gin.ResponseWriter, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	w.Flush()
	return nil
}

// handleCancel handles DELETE /download/:id.
func (s *Server) handleCancel(c *gin.Context) {
	id := c.Param("id")
	if !s.svc.Transfers().Cancel(id) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: msgNotFound})
		return
	}
	logutils.Log.WithFields(logrus.Fields{
		"request_id":  RequestIDFromContext(c.Request.Context()),
		"download_id": id,
	}).Info("Download cancelled by client")
	c.Status(http.StatusNoContent)
}
