package http

import (
	"log/slog"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/user"
	"github.com/cmlabs-hris/payroll-engine/internal/handler/http/middleware"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
	"github.com/ulule/limiter/v3"
)

type RouterOptions struct {
	Logger         *slog.Logger
	AllowedOrigins []string
	// RateLimiter is applied to /api/v1 when set.
	RateLimiter *limiter.Limiter
}

func NewRouter(jwtService jwt.Service, authorizer payroll.Authorizer, payrollHandler PayrollHandler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Retry-After", "X-RateLimit-Remaining"},
		MaxAge:           300,
	}))

	r.Use(chiMiddleware.RequestID)
	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelInfo,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.AllowContentEncoding("application/json"))
	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	r.Route("/api/v1", func(r chi.Router) {
		if opts.RateLimiter != nil {
			r.Use(middleware.RateLimit(opts.RateLimiter, logger))
		}

		// Requires authentication
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(jwtService.JWTAuth()))
			r.Use(middleware.AuthRequired)

			r.Route("/payroll", func(r chi.Router) {
				requireView := middleware.RequirePermission(authorizer, user.PermissionPayrollView)
				requirePrepare := middleware.RequirePermission(authorizer, user.PermissionPayrollCreateRun)
				requireApprove := middleware.RequirePermission(authorizer, user.PermissionPayrollApproveRun)
				requireMarkPaid := middleware.RequirePermission(authorizer, user.PermissionPayrollMarkPaid)
				requireReports := middleware.RequirePermission(authorizer, user.PermissionReportsView)

				r.Route("/runs", func(r chi.Router) {
					r.With(requireView).Get("/", payrollHandler.ListRuns)
					r.With(requirePrepare).Post("/", payrollHandler.CreateRun)

					r.Route("/{id}", func(r chi.Router) {
						r.With(requireView).Get("/", payrollHandler.GetRun)
						r.With(requireApprove).Post("/approve", payrollHandler.ApproveRun)
						r.With(requireApprove).Post("/void", payrollHandler.VoidRun)
						r.With(requireMarkPaid).Post("/mark-paid", payrollHandler.MarkRunPaid)
					})
				})

				r.Route("/items/{id}", func(r chi.Router) {
					r.With(requireView).Get("/", payrollHandler.GetItem)
					r.With(requirePrepare).Put("/", payrollHandler.UpdateItem)
				})

				r.With(requireReports).Get("/summary", payrollHandler.GetSummary)
				r.With(requireView).Get("/rate-table", payrollHandler.GetRateTable)
			})
		})
	})
	return r
}
