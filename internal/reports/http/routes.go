package reporthttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/meridian-pos/meridian-pos/internal/platform/httpx"
	"github.com/meridian-pos/meridian-pos/internal/shared"
)

// MountRoutes registers the reporting endpoints. Every route sits behind
// the role allow-list so no aggregation query runs for rejected callers.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(30, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Fail(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many report requests")
		}),
	)

	r.Group(func(gr chi.Router) {
		gr.Use(RequireRoles(shared.ReportRoles()...))
		gr.Use(limiter)
		gr.Get("/reports/consolidated", h.handleConsolidated)
		gr.Get("/reports/consolidated-financial", h.handleConsolidatedFinancial)
		gr.Route("/reports/daily-sales-summary", func(dr chi.Router) {
			dr.Post("/", h.handleDailySummary)
			dr.Get("/", h.handleDispatchLogs)
		})
	})
}

// RequireRoles rejects unauthenticated callers with 401 and callers
// outside the allow-list with 403, before any handler logic runs.
func RequireRoles(allowed ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := shared.IdentityFromContext(r.Context())
			if !identity.Authenticated() {
				httpx.Fail(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "Authentication required")
				return
			}
			if !shared.RoleAllowed(identity.Role, allowed) {
				httpx.Fail(w, http.StatusForbidden, httpx.CodeForbidden, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rateLimitKey(r *http.Request) (string, error) {
	identity := shared.IdentityFromContext(r.Context())
	if identity.Authenticated() {
		return "user:" + identity.UserID, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
