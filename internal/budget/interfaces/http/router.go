package budgethttp

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"grants-cloud/internal/audit"
	"grants-cloud/internal/auth"
	"grants-cloud/internal/budget/application"
)

// Config wires the HTTP surface.
type Config struct {
	Services *application.Services
	// Auth guards /api routes; nil disables authentication.
	Auth   *auth.Middleware
	Logger *zap.Logger
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

// NewRouter builds the chi router for the budget API.
func NewRouter(cfg Config) (http.Handler, error) {
	if cfg.Services == nil {
		return nil, errors.New("budget http: nil services")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http")
	h := &handlers{svc: cfg.Services, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(logger))
	r.Use(middleware.Recoverer)
	r.Use(audit.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Auth != nil {
			r.Use(cfg.Auth.Wrap)
		}
		r.Get("/me", h.me)

		r.Route("/grants", func(r chi.Router) {
			r.Get("/", h.listGrants)
			r.Post("/", h.createGrant)
			r.Route("/{grantID}", func(r chi.Router) {
				r.Get("/", h.getGrant)
				r.Put("/amount", h.updateGrantAmount)
				r.Put("/status", h.setGrantStatus)
				r.Post("/lines", h.addLine)
				r.Post("/lines/{lineID}/sublines", h.addSubLine)
				r.Put("/lines/{lineID}/amounts", h.updateLineAmounts)
				r.Get("/report", h.grantReport)
				r.Get("/report.pdf", h.exportGrantReport(application.FormatPDF))
				r.Get("/report.xlsx", h.exportGrantReport(application.FormatXLSX))
			})
		})

		r.Route("/engagements", func(r chi.Router) {
			r.Get("/", h.listEngagements)
			r.Post("/", h.createEngagement)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getEngagement)
				r.Patch("/", h.editEngagement)
				r.Post("/approvals/{slot}", h.signApproval)
				r.Put("/status", h.updateEngagementStatus)
				r.Get("/voucher.pdf", h.exportVoucher)
			})
		})

		r.Route("/payments", func(r chi.Router) {
			r.Get("/", h.listPayments)
			r.Post("/", h.recordPayment)
			r.Get("/{id}", h.getPayment)
			r.Put("/{id}/status", h.updatePaymentStatus)
		})
	})
	return r, nil
}

func accessLog(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
