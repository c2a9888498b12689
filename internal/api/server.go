package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"splitsheet/internal/config"
	"splitsheet/internal/logging"
	"splitsheet/internal/payments"
	"splitsheet/internal/workflow"
)

const defaultMaxBodyBytes = 1 << 20

// Options configures a Server.
type Options struct {
	Service *workflow.Service
	// Payments verifies provider webhooks. Nil disables the webhook route.
	Payments *payments.Verifier
	// Token, when set, is required as a bearer token on operator routes.
	Token string
	// PublicURL prefixes download links handed to callers.
	PublicURL    string
	MaxBodyBytes int64
	Clock        func() time.Time
	Logger       *slog.Logger
}

// Server exposes the workflow service over HTTP.
type Server struct {
	svc          *workflow.Service
	payments     *payments.Verifier
	token        string
	publicURL    string
	maxBodyBytes int64
	now          func() time.Time
	logger       *slog.Logger
	router       chi.Router
}

// NewServer builds the router.
func NewServer(opts Options) (*Server, error) {
	if opts.Service == nil {
		return nil, errors.New("api: workflow service required")
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	s := &Server{
		svc:          opts.Service,
		payments:     opts.Payments,
		token:        strings.TrimSpace(opts.Token),
		publicURL:    strings.TrimRight(opts.PublicURL, "/"),
		maxBodyBytes: opts.MaxBodyBytes,
		now:          opts.Clock,
		logger:       logging.NewComponentLogger(opts.Logger, "api"),
	}
	s.router = s.routes()
	return s, nil
}

// NewServerFromConfig builds a Server with settings taken from cfg.
func NewServerFromConfig(cfg *config.Config, svc *workflow.Service, logger *slog.Logger) (*Server, error) {
	var verifier *payments.Verifier
	if strings.TrimSpace(cfg.Payments.WebhookSecret) != "" {
		v, err := payments.NewVerifier(cfg.Payments.WebhookSecret, time.Duration(cfg.Payments.ToleranceSeconds)*time.Second)
		if err != nil {
			return nil, err
		}
		verifier = v
	} else {
		logging.WarnWithContext(logger, "payment webhook disabled", "payments_webhook_disabled",
			logging.String(logging.FieldErrorHint, "set payments.webhook_secret or SPLITSHEET_WEBHOOK_SECRET"),
			logging.String(logging.FieldImpact, "payments must be recorded manually"),
		)
	}
	return NewServer(Options{
		Service:   svc,
		Payments:  verifier,
		Token:     cfg.API.Token,
		PublicURL: cfg.API.PublicURL,
		Logger:    logger,
	})
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		// Signing tokens, download links and webhook signatures carry their
		// own credentials.
		r.Get("/sign/{token}", s.handleSigningView)
		r.Post("/sign/{token}", s.handleSignWithToken)
		r.Get("/downloads/{token}", s.handleDownload)
		r.Post("/webhooks/payments", s.handlePaymentWebhook)

		r.Group(func(r chi.Router) {
			r.Use(s.requireToken)
			r.Get("/status", s.handleStatus)

			r.Post("/splitsheets", s.handleSubmit)
			r.Get("/splitsheets", s.handleList)
			r.Route("/splitsheets/{id}", func(r chi.Router) {
				r.Get("/", s.handleGet)
				r.Post("/signatures", s.handleSignature)
				r.Post("/finalize", s.handleFinalize)
				r.Post("/payment", s.handlePayment)
				r.Get("/download-link", s.handleDownloadLink)
			})

			r.Post("/workcodes", s.handleAllocate)
			r.Post("/workcodes/validate", s.handleValidateWorkCode)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, http.StatusNotFound, "NOT_FOUND", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})
	return r
}

// Serve listens on bind until ctx is cancelled, then shuts down gracefully.
// ready, when non-nil, receives the bound address once listening.
func (s *Server) Serve(ctx context.Context, bind string, readTimeout, writeTimeout time.Duration, ready func(net.Addr)) error {
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	if readTimeout <= 0 {
		readTimeout = 15 * time.Second
	}
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	server := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()
	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	if ready != nil {
		ready(listener.Addr())
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	s.logger.Info("api server stopped")
	return nil
}
