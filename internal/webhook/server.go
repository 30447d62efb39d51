// Package webhook serves the HTTP surface: payment processor callbacks,
// Telegram updates in webhook mode, health and metrics.
package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/goblinua/medinispx/internal/config"
	"github.com/goblinua/medinispx/internal/service"
)

// SignatureHeader carries the IPN HMAC.
const SignatureHeader = "x-nowpayments-sig"

const (
	maxBodyBytes  = 1 << 20
	healthTimeout = 2 * time.Second
)

// IPNHandler processes signed processor callbacks.
type IPNHandler interface {
	HandlePaymentIPN(ctx context.Context, body []byte, signature string) error
	HandlePayoutIPN(ctx context.Context, body []byte, signature string) error
}

// Options selects the optional routes.
type Options struct {
	// Payments is nil when payments are disabled; the IPN routes then 404.
	Payments IPNHandler
	// Telegram receives updates on /telegram-webhook when set.
	Telegram http.Handler
	// Gatherer backs /metrics.
	Gatherer prometheus.Gatherer
	// Health is checked by /healthz when set.
	Health func(ctx context.Context) error
}

// Server is the gin HTTP server.
type Server struct {
	cfg    config.HTTPConfig
	router *gin.Engine
	srv    *http.Server
}

// NewServer builds the router.
func NewServer(cfg config.HTTPConfig, opts Options) *Server {
	if cfg.Release {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", healthz(opts.Health))
	if opts.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}
	if opts.Payments != nil {
		router.POST("/webhook", ipn(opts.Payments.HandlePaymentIPN, "payment"))
		router.POST("/payout_webhook", ipn(opts.Payments.HandlePayoutIPN, "payout"))
	}
	if opts.Telegram != nil {
		router.POST("/telegram-webhook", gin.WrapH(opts.Telegram))
	}

	return &Server{
		cfg:    cfg,
		router: router,
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           router,
			ReadHeaderTimeout: cfg.ReadTimeout,
			ReadTimeout:       cfg.ReadTimeout,
		},
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.Addr).Msg("HTTP server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func healthz(check func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if check != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
			defer cancel()
			if err := check(ctx); err != nil {
				log.Warn().Err(err).Msg("Health check failed")
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

type ipnFunc func(ctx context.Context, body []byte, signature string) error

// ipn reads the raw body, since the signature covers the exact bytes, and
// maps service errors to status codes. Only transient failures return 5xx
// so the processor retries them.
func ipn(handle ipnFunc, kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}

		err = handle(c.Request.Context(), body, c.GetHeader(SignatureHeader))
		switch {
		case err == nil:
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		case errors.Is(err, service.ErrInvalidSignature):
			log.Warn().Str("kind", kind).Str("ip", c.ClientIP()).Msg("Rejected IPN with bad signature")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		case errors.Is(err, service.ErrMalformedIPN):
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
		default:
			log.Error().Err(err).Str("kind", kind).Msg("IPN processing failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
	}
}

// requestLogger logs each request through zerolog.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("HTTP request")
	}
}
