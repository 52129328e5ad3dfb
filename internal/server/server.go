// Package server exposes the verification service over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ppiankov/antihoax/internal/model"
	"github.com/ppiankov/antihoax/internal/ratelimit"
	"github.com/ppiankov/antihoax/internal/verify"
)

const maxBodyBytes = 1 << 20

// Verifier is the service behind the HTTP routes
type Verifier interface {
	Evaluate(ctx context.Context, req verify.Request) model.Envelope
	Status(ctx context.Context) model.ServiceStatus
}

// Limits configures per-client request windows. A zero count disables that limiter.
type Limits struct {
	GlobalRequests int
	GlobalWindow   time.Duration
	VerifyRequests int
	VerifyWindow   time.Duration
}

// Options configures the HTTP server
type Options struct {
	Addr            string
	Mode            string // gin mode: release, debug or test
	CORSOrigins     []string
	Limits          Limits
	ShutdownTimeout time.Duration
}

// Server is the HTTP front of the verification service
type Server struct {
	engine  *gin.Engine
	http    *http.Server
	service Verifier
	opts    Options
	logger  *zap.Logger
}

// New builds the router. A nil logger disables request logging.
func New(service Verifier, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http")

	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		engine:  gin.New(),
		service: service,
		opts:    opts,
		logger:  logger,
	}
	s.routes()

	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2 * time.Minute,
	}
	return s
}

// Handler returns the root handler, mostly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	r := s.engine
	r.Use(requestID(), requestLogger(s.logger), recovery(s.logger))
	r.Use(cors.New(corsConfig(s.opts.CORSOrigins)))

	api := r.Group("/api")
	if l := s.opts.Limits; l.GlobalRequests > 0 {
		api.Use(rateLimit(ratelimit.NewWindowLimiter(l.GlobalRequests, l.GlobalWindow),
			"Too many requests from this IP, please try again after "+humanWindow(l.GlobalWindow)+"."))
	}

	api.GET("/health", s.health)
	api.GET("/verify/status", s.status)

	verifyHandlers := []gin.HandlerFunc{limitBody(maxBodyBytes)}
	if l := s.opts.Limits; l.VerifyRequests > 0 {
		verifyHandlers = append(verifyHandlers, rateLimit(ratelimit.NewWindowLimiter(l.VerifyRequests, l.VerifyWindow),
			"Too many verification requests from this IP, please try again after "+humanWindow(l.VerifyWindow)+"."))
	}
	verifyHandlers = append(verifyHandlers, s.verify)
	api.POST("/verify", verifyHandlers...)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not Found"})
	})
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", "Retry-After", RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "UP",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, s.service.Status(c.Request.Context()))
}

// verifyBody mirrors verify.Request. Text is a string so non-string values fail binding.
type verifyBody struct {
	Text   string `json:"text"`
	Type   string `json:"type"`
	Source string `json:"source"`
}

func (s *Server) verify(c *gin.Context) {
	var body verifyBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": []gin.H{{"msg": bindMessage(err)}}})
		return
	}

	s.logger.Info("verification request",
		zap.String("request_id", c.GetString(requestIDKey)),
		zap.String("text", preview(body.Text, 100)),
		zap.String("type", body.Type),
		zap.String("source", body.Source),
	)

	env := s.service.Evaluate(c.Request.Context(), verify.Request{
		Text:   body.Text,
		Type:   body.Type,
		Source: body.Source,
	})
	c.JSON(env.TransportStatus(), env)
}

func bindMessage(err error) string {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return "Request body is too large."
	}
	return "Invalid JSON body: text must be a string."
}

func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

func humanWindow(d time.Duration) string {
	if m := int(d.Minutes()); m > 0 && d%time.Minute == 0 {
		if m == 1 {
			return "1 minute"
		}
		return strconv.Itoa(m) + " minutes"
	}
	return d.String()
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", s.opts.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return eris.Wrap(err, "listen")
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down", zap.Duration("timeout", s.opts.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "shutdown")
	}
	return nil
}
