package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/finedge/corebank/internal/session"
	"github.com/finedge/corebank/internal/store"
)

// NewRouter assembles the HTTP surface: cardholder channels, the ISO-8583
// acquirer endpoint, and the operator API behind session auth.
func NewRouter(channel *ChannelHandler, iso *ISOHandler, admin *AdminHandler,
	sessions *session.Manager, st *store.Store) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := st.DB().PingContext(req.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Terminal channels authenticate per request with card and PIN.
		r.Post("/withdraw", channel.Withdraw)
		r.Post("/deposit", channel.Deposit)
		r.Post("/transfer", channel.Transfer)
		r.Post("/bills/pay", channel.PayBill)
		r.Post("/balance", channel.Balance)
		r.Post("/statement", channel.MiniStatement)
		r.Post("/pin/change", channel.ChangePIN)

		r.Get("/upi/resolve", channel.ResolveVPA)
		r.Post("/upi/collect", channel.CreateCollectRequest)
		r.Post("/upi/pay", channel.PayCollect)

		// Acquirer traffic, hex-framed ISO-8583.
		r.Post("/iso8583", iso.Handle)

		r.Post("/admin/login", admin.Login)

		r.Group(func(r chi.Router) {
			r.Use(sessions.Middleware)

			r.Post("/admin/logout", admin.Logout)
			r.Post("/admin/reverse", admin.Reverse)
			r.Post("/admin/interest", admin.CreditInterest)
			r.Post("/admin/cards/block", admin.BlockCard)
			r.Post("/admin/cards/unblock", admin.UnblockCard)
			r.Post("/admin/cards/limits", admin.SetCardLimits)

			r.Get("/admin/customers/{customerID}", admin.Customer)
			r.Get("/admin/reports/daily", admin.DailyReport)
			r.Get("/admin/reports/card-usage", admin.CardUsageReport)
			r.Get("/admin/reports/account-status", admin.AccountStatusReport)

			r.Group(func(r chi.Router) {
				r.Use(session.RequireRole(session.RoleSupervisor))
				r.Post("/admin/maintenance", admin.SetMaintenance)
			})
		})
	})

	return r
}
