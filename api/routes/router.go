package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fieldworkbook/backend/api/controllers"
	"github.com/fieldworkbook/backend/api/middleware"
	"github.com/fieldworkbook/backend/internal/amountrequests"
	"github.com/fieldworkbook/backend/internal/auth"
	"github.com/fieldworkbook/backend/internal/expenses"
	"github.com/fieldworkbook/backend/internal/reports"
	"github.com/fieldworkbook/backend/internal/teams"
	"github.com/fieldworkbook/backend/internal/users"
	"github.com/fieldworkbook/backend/pkg/auth/session"
	"github.com/fieldworkbook/backend/pkg/config"
	"github.com/fieldworkbook/backend/pkg/enums"
	"github.com/fieldworkbook/backend/pkg/logger"
	"github.com/fieldworkbook/backend/pkg/metrics"
	pkgredis "github.com/fieldworkbook/backend/pkg/redis"
)

// maxJSONBodyBytes bounds what the idempotency layer buffers for JSON writes.
// Expense uploads add the attachment limit on top.
const maxJSONBodyBytes = 1 << 20

// Dependencies is everything the HTTP surface needs from cmd/api.
// Nil stores disable the middleware that uses them.
type Dependencies struct {
	Config         *config.Config
	Logger         *logger.Logger
	HTTPMetrics    *metrics.HTTPMetrics
	MetricsHandler http.Handler
	Readiness      map[string]controllers.Pinger

	Sessions    session.AccessSessionChecker
	Idempotency pkgredis.IdempotencyStore
	RateLimits  middleware.RateLimitStore

	Auth           auth.Service
	Teams          teams.Service
	Expenses       expenses.Service
	AmountRequests amountrequests.Service
	Users          users.Service
	Reports        reports.Service
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.HTTPMetrics),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginUsernameLimit,
	)
	idempotent := middleware.Idempotency(deps.Idempotency, cfg.Idempotency.TTL, maxJSONBodyBytes, logg)
	idempotentUpload := middleware.Idempotency(deps.Idempotency, cfg.Idempotency.TTL, cfg.Attachments.MaxUploadBytes()+maxJSONBodyBytes, logg)
	managers := middleware.RequireRoles(logg, enums.RoleAdmin, enums.RolePartner)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Readiness))
	})
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(loginPolicy, deps.RateLimits, logg)).Post("/login", controllers.AuthLogin(deps.Auth, logg))
			r.Post("/refresh", controllers.AuthRefresh(deps.Auth, logg))
			r.Post("/logout", controllers.AuthLogout(deps.Auth, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))

			r.Get("/me", controllers.Me(deps.Auth, logg))
			r.Get("/dashboard/stats", controllers.DashboardStats(deps.Teams, logg))

			r.Route("/teams", func(r chi.Router) {
				r.Get("/", controllers.TeamList(deps.Teams, logg))
				r.With(managers, idempotent).Post("/", controllers.TeamCreate(deps.Teams, logg))
				r.Route("/{teamId}", func(r chi.Router) {
					r.Get("/", controllers.TeamGet(deps.Teams, logg))
					r.With(managers).Put("/", controllers.TeamUpdate(deps.Teams, logg))
					r.With(managers).Delete("/", controllers.TeamDelete(deps.Teams, logg))
					r.Get("/ledger", controllers.TeamLedger(deps.Teams, logg))
				})
			})

			r.Route("/expenses", func(r chi.Router) {
				r.Get("/", controllers.ExpenseList(deps.Expenses, logg))
				r.With(idempotentUpload).Post("/", controllers.ExpenseCreate(deps.Expenses, cfg.Attachments.MaxUploadBytes(), logg))
				r.Get("/{expenseId}", controllers.ExpenseGet(deps.Expenses, logg))
				r.Get("/{expenseId}/attachment", controllers.ExpenseAttachment(deps.Expenses, logg))
			})

			r.Route("/amount-requests", func(r chi.Router) {
				r.Get("/", controllers.AmountRequestList(deps.AmountRequests, logg))
				r.With(middleware.RequireRoles(logg, enums.RoleFieldStaff), idempotent).Post("/", controllers.AmountRequestSubmit(deps.AmountRequests, logg))
				r.Get("/{requestId}", controllers.AmountRequestGet(deps.AmountRequests, logg))
				r.With(managers, idempotent).Put("/{requestId}/approve", controllers.AmountRequestApprove(deps.AmountRequests, logg))
				r.With(managers, idempotent).Put("/{requestId}/reject", controllers.AmountRequestReject(deps.AmountRequests, logg))
			})

			r.Route("/users", func(r chi.Router) {
				r.Use(managers)
				r.Get("/", controllers.UserList(deps.Users, logg))
				r.Post("/", controllers.UserCreate(deps.Users, logg))
				r.Get("/{userId}", controllers.UserGet(deps.Users, logg))
				r.Delete("/{userId}", controllers.UserDelete(deps.Users, logg))
				r.Put("/{userId}/team", controllers.UserAssignTeam(deps.Users, logg))
			})

			r.With(managers).Get("/reports/comparison", controllers.ReportComparison(deps.Reports, logg))

			r.Route("/admin/ledger", func(r chi.Router) {
				r.Use(middleware.RequireRoles(logg, enums.RoleAdmin))
				r.Get("/drift", controllers.LedgerDrift(deps.Teams, logg))
				r.With(idempotent).Post("/teams/{teamId}/recalculate", controllers.LedgerRecalculate(deps.Teams, logg))
			})
		})
	})

	return r
}
