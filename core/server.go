package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/rs/cors"
)

const readHeaderTimeout = 10 * time.Second

// Options configures the gateway. It is fixed for the life of the process.
type Options struct {
	Port            int
	CallbackBaseURL string
	// MetricsEnabled mounts GET /metrics.
	MetricsEnabled bool
	// ReportWebhookState adds the webhook registration state to /health.
	ReportWebhookState bool
}

// Server is the HTTP gateway in front of the bot. It owns the listening
// socket and forwards webhook deliveries and provider callbacks.
type Server struct {
	opts      Options
	bot       Bot
	callbacks http.Handler
	logger    *slog.Logger
	metrics   *Metrics
	now       func() time.Time

	state    atomic.Int32
	listener net.Listener
	srv      *http.Server
	wg       sync.WaitGroup
}

// NewServer creates a gateway. callbacks is mounted at /api/callback and may
// be nil.
func NewServer(opts Options, bot Bot, callbacks http.Handler, logger *slog.Logger) *Server {
	return &Server{
		opts:      opts,
		bot:       bot,
		callbacks: callbacks,
		logger:    logger,
		metrics:   NewMetrics(),
		now:       time.Now,
	}
}

// Handler returns the full middleware chain and routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.recoverErrors, s.parseBody, s.logRequests)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		Fail(w, r, fmt.Errorf("%w: %s %s", ErrNoRoute, r.Method, r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		Fail(w, r, fmt.Errorf("%w: %s %s", ErrNoRoute, r.Method, r.URL.Path))
	})

	r.Get("/health", s.handleHealth)
	r.Post("/webhook", s.handleWebhook)
	if s.callbacks != nil {
		r.Mount("/api/callback", s.callbacks)
	}
	if s.opts.MetricsEnabled {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	return cors.AllowAll().Handler(r)
}

// Start binds the port, begins serving and then runs the webhook setup.
// Connections are accepted while the setup runs.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.opts.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.listener = ln
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.logger.Info("server started", "port", s.opts.Port, "addr", ln.Addr().String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("serve failed", "error", err)
		}
	}()

	if s.SetupWebhook(ctx) == WebhookPolling {
		s.startPolling(ctx)
	}
	s.logger.Info("telegram bot initialized")
	return nil
}

// startPolling runs the bot's receiver, if it has one, until ctx ends.
func (s *Server) startPolling(ctx context.Context) {
	r, ok := s.bot.(Receiver)
	if !ok {
		return
	}
	go func() {
		if err := r.Start(ctx); err != nil {
			s.logger.Error("polling stopped", "error", err)
		}
	}()
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close stops the listener and drops open connections without draining.
func (s *Server) Close() error {
	if s.srv == nil {
		return nil
	}
	err := s.srv.Close()
	s.wg.Wait()
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Timestamp: timestamp(s.now())}
	if s.opts.ReportWebhookState {
		resp.Webhook = s.WebhookState().String()
	}
	render.JSON(w, r, resp)
}

// handleWebhook always acknowledges with 200. The platform redelivers on any
// other status, so processing failures are logged here and go no further.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	err := s.processUpdate(r)
	s.metrics.observeUpdate(err)
	if err != nil {
		s.logger.Error("error processing webhook update", "error", err)
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) processUpdate(r *http.Request) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("update processing panicked: %w", panicError(rec))
		}
	}()

	body, ok := BodyFrom(r.Context())
	if !ok {
		body = readBody(r)
	}
	if body.Err != nil {
		return body.Err
	}
	return s.bot.ProcessUpdate(r.Context(), json.RawMessage(body.Raw))
}
