// Package api exposes catalog resolution and streaming downloads over HTTP.
package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/NikitaDmitryuk/media-relay/internal/logutils"
	"github.com/NikitaDmitryuk/media-relay/internal/notifier"
	"github.com/NikitaDmitryuk/media-relay/internal/ratelimit"
	"github.com/NikitaDmitryuk/media-relay/internal/service"
)

const (
	healthPath   = "/health"
	infoPath     = "/info"
	downloadPath = "/download"
	progressPath = "/download-progress/:id"
	cancelPath   = "/download/:id"

	requestIDHeader = "X-Request-ID"
)

type Options struct {
	ListenAddr string
	// APIKey, when set, is required as a Bearer token or X-API-Key header.
	APIKey  string
	Limiter ratelimit.Limiter
}

// Server runs the media-relay HTTP API.
type Server struct {
	svc     *service.MediaService
	hub     *notifier.Hub
	apiKey  string
	limiter ratelimit.Limiter
	engine  *gin.Engine
	srv     *http.Server
}

func NewServer(svc *service.MediaService, hub *notifier.Hub, opts Options) *Server {
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.NoOp{}
	}
	if hub == nil {
		hub = notifier.NewHub()
	}

	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		svc:     svc,
		hub:     hub,
		apiKey:  opts.APIKey,
		limiter: opts.Limiter,
		engine:  gin.New(),
	}

	s.engine.Use(gin.Recovery(), s.requestID(), s.logging())
	s.engine.GET(healthPath, s.handleHealth)

	protected := s.engine.Group("/", s.auth(), s.rateLimit())
	protected.GET(infoPath, s.handleInfo)
	protected.POST(downloadPath, s.handleDownload)
	protected.GET(progressPath, s.handleProgress)
	protected.DELETE(cancelPath, s.handleCancel)

	s.srv = &http.Server{
		Addr:              opts.ListenAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 15 * time.Second,
		// Downloads and progress streams stay open as long as the transfer runs.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the routed engine.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens and serves. Blocks until Shutdown is called.
func (s *Server) Start() error {
	logutils.Log.WithField("addr", s.srv.Addr).Info("media-relay API server starting")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (*Server) Name() string {
	return "http_server"
}

func (*Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Request = c.Request.WithContext(WithRequestID(c.Request.Context(), id))
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func (*Server) logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logutils.Log.WithFields(logrus.Fields{
			"request_id": RequestIDFromContext(c.Request.Context()),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency":    time.Since(start).Round(time.Millisecond).String(),
		}).Debug("API request")
	}
}

func (s *Server) auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.apiKey == "" {
			c.Next()
			return
		}
		token := ""
		if ah := c.GetHeader("Authorization"); strings.HasPrefix(ah, "Bearer ") {
			token = strings.TrimSpace(ah[len("Bearer "):])
		}
		if token == "" {
			token = c.GetHeader("X-API-Key")
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.apiKey)) != 1 {
			logutils.Log.WithFields(logrus.Fields{
				"request_id": RequestIDFromContext(c.Request.Context()),
				"path":       c.Request.URL.Path,
			}).Warn("API request unauthorized")
			abortWithError(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		c.Next()
	}
}

func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Allow(c.ClientIP()) {
			abortWithError(c, http.StatusTooManyRequests, "Too many requests")
			return
		}
		c.Next()
	}
}

func abortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: message})
}
