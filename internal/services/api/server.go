// Package api exposes the monitor over a small JSON HTTP API.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/NordCoder/pingboard/internal/domain/notification"
	"github.com/NordCoder/pingboard/internal/domain/status"
	"github.com/NordCoder/pingboard/internal/domain/target"
	"github.com/NordCoder/pingboard/internal/services/monitor"
)

// Engine is the part of the monitor the API drives.
type Engine interface {
	target.Registry

	AddTarget(ctx context.Context, name, rawURL string, interval time.Duration) (target.Target, error)
	EditTarget(ctx context.Context, id string, p monitor.TargetPatch) (target.Target, error)
	RemoveTarget(ctx context.Context, id string) error
	Activate(ctx context.Context, id string) error
	Deactivate(ctx context.Context, id string) error
	Pause(id string) error
	Resume(id string) error
	Retest(id string) error
	SetGlobalInterval(ctx context.Context, d time.Duration) error
	SetTargetInterval(ctx context.Context, id string, d *time.Duration) error
	SetNotifications(ctx context.Context, enabled bool) (notification.Permission, error)
	HardRefresh(ctx context.Context) error

	Status(id string) (status.Record, bool)
	Statuses() []monitor.TargetStatus
	Permission() notification.Permission
	Notifications() []notification.Notification

	Export(ctx context.Context) ([]byte, error)
	Import(ctx context.Context, blob []byte) error
	Wipe(ctx context.Context) error
}

var _ Engine = (*monitor.Monitor)(nil)

type Options struct {
	AdminKeyHash string
	RateLimit    float64
	RateBurst    int
	CORSOrigins  []string
}

type Server struct {
	eng      Engine
	log      *zap.Logger
	validate *validator.Validate
	opts     Options
}

func NewServer(eng Engine, log *zap.Logger, opts Options) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		eng:      eng,
		log:      log.With(zap.String("component", "api")),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		opts:     opts,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	}))
	r.Use(requestLog(s.log))
	r.Use(RateLimit(s.opts.RateLimit, s.opts.RateBurst))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/targets", s.listTargets)
		r.Get("/targets/{id}", s.getTarget)
		r.Get("/status", s.listStatus)
		r.Get("/status/{id}", s.getStatus)
		r.Get("/config", s.getConfig)
		r.Get("/notifications", s.listNotifications)

		r.Group(func(r chi.Router) {
			r.Use(RequireAdmin(s.opts.AdminKeyHash))

			r.Post("/targets", s.createTarget)
			r.Patch("/targets/{id}", s.patchTarget)
			r.Delete("/targets/{id}", s.deleteTarget)
			r.Post("/targets/{id}/activate", s.targetAction(s.activate))
			r.Post("/targets/{id}/deactivate", s.targetAction(s.deactivate))
			r.Post("/targets/{id}/pause", s.targetAction(s.pause))
			r.Post("/targets/{id}/resume", s.targetAction(s.resume))
			r.Post("/targets/{id}/retest", s.retest)
			r.Put("/targets/{id}/interval", s.setTargetInterval)

			r.Put("/config/interval", s.setGlobalInterval)
			r.Put("/config/notifications", s.setNotifications)
			r.Post("/refresh", s.refresh)

			r.Get("/export", s.export)
			r.Post("/import", s.importSnapshot)
			r.Post("/wipe", s.wipe)
		})
	})

	return otelhttp.NewHandler(r, "pingboard.api")
}

func NewHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
