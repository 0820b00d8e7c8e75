package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/finedge/corebank/internal/bankerr"
	"github.com/finedge/corebank/internal/cards"
	"github.com/finedge/corebank/internal/config"
	"github.com/finedge/corebank/internal/credentials"
	"github.com/finedge/corebank/internal/engine"
	"github.com/finedge/corebank/internal/models"
	"github.com/finedge/corebank/internal/reports"
	"github.com/finedge/corebank/internal/session"
	"github.com/finedge/corebank/internal/store"
)

// AdminHandler serves the operator surface: sessions, card administration,
// reversals, interest credits, maintenance mode and reports.
type AdminHandler struct {
	engine    *engine.Engine
	cards     *cards.Service
	reports   *reports.Service
	sessions  *session.Manager
	store     *store.Store
	cfg       *config.Config
	validator *validator.Validate
	log       zerolog.Logger
}

// NewAdminHandler wires the operator surface.
func NewAdminHandler(eng *engine.Engine, cardSvc *cards.Service, reportSvc *reports.Service,
	sessions *session.Manager, st *store.Store, cfg *config.Config, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		engine:    eng,
		cards:     cardSvc,
		reports:   reportSvc,
		sessions:  sessions,
		store:     st,
		cfg:       cfg,
		validator: validator.New(),
		log:       log.With().Str("component", "admin").Logger(),
	}
}

// LoginRequest opens an operator session. Operator credentials live in the
// operators table with argon2id hashes, same scheme as card PINs.
type LoginRequest struct {
	OperatorID string `json:"operator_id" validate:"required,min=3,max=32"`
	Password   string `json:"password" validate:"required,min=8"`
}

func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	hash, role, err := h.store.GetOperatorCredentials(r.Context(), req.OperatorID)
	if err != nil {
		h.log.Warn().Str("operator", req.OperatorID).Msg("login for unknown operator")
		writeJSON(w, http.StatusUnauthorized, errorBody{Code: "UNAUTHORIZED", Message: "invalid credentials"})
		return
	}
	ok, err := credentials.VerifyPIN(req.Password, hash)
	if err != nil || !ok {
		h.log.Warn().Str("operator", req.OperatorID).Msg("login failed")
		writeJSON(w, http.StatusUnauthorized, errorBody{Code: "UNAUTHORIZED", Message: "invalid credentials"})
		return
	}

	token, err := h.sessions.Issue(req.OperatorID, role)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token, "role": role})
}

func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	if parts := strings.Split(authHeader, " "); len(parts) == 2 && parts[0] == "Bearer" {
		if err := h.sessions.Revoke(r.Context(), parts[1]); err != nil {
			h.log.Warn().Err(err).Msg("session revocation failed")
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// ReverseRequest posts the opposite-sign correction for a transaction.
type ReverseRequest struct {
	TransactionID string `json:"transaction_id" validate:"required,min=8,max=64"`
	Reason        string `json:"reason" validate:"required,min=4,max=120"`
}

func (h *AdminHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	var req ReverseRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	result, err := h.engine.Reverse(r.Context(), models.ChannelBranch, req.TransactionID, req.Reason)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, PostingResponse{TransactionID: result.TransactionID, NewBalance: result.NewBalance})
}

// InterestRequest credits accrued interest computed by back office.
type InterestRequest struct {
	AccountNumber string `json:"account_number" validate:"required,min=8,max=20"`
	Amount        int64  `json:"amount" validate:"required,gt=0"`
	Period        string `json:"period" validate:"required,len=7"` // YYYY-MM
}

func (h *AdminHandler) CreditInterest(w http.ResponseWriter, r *http.Request) {
	var req InterestRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	result, err := h.engine.Post(r.Context(), engine.Intent{
		RequestID:     uuid.New().String(),
		Kind:          engine.KindCredit,
		Channel:       models.ChannelBranch,
		Operation:     models.TxTypeInterestCredit,
		AccountNumber: req.AccountNumber,
		Amount:        req.Amount,
		Remarks:       "INTEREST " + req.Period,
		Deadline:      time.Now().Add(requestBudget),
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, PostingResponse{TransactionID: result.TransactionID, NewBalance: result.NewBalance})
}

// CardActionRequest targets one card for block or unblock.
type CardActionRequest struct {
	CardNumber string `json:"card_number" validate:"required,min=12,max=19,numeric"`
}

func (h *AdminHandler) BlockCard(w http.ResponseWriter, r *http.Request) {
	h.cardAction(w, r, h.cards.Block)
}

func (h *AdminHandler) UnblockCard(w http.ResponseWriter, r *http.Request) {
	h.cardAction(w, r, h.cards.Unblock)
}

func (h *AdminHandler) cardAction(w http.ResponseWriter, r *http.Request,
	action func(context.Context, string, string) error) {
	var req CardActionRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := action(r.Context(), req.CardNumber, h.operator(r)); err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// LimitsRequest replaces a card's per-channel daily limits.
type LimitsRequest struct {
	CardNumber  string `json:"card_number" validate:"required,min=12,max=19,numeric"`
	ATMLimit    int64  `json:"atm_limit" validate:"gte=0"`
	POSLimit    int64  `json:"pos_limit" validate:"gte=0"`
	OnlineLimit int64  `json:"online_limit" validate:"gte=0"`
}

func (h *AdminHandler) SetCardLimits(w http.ResponseWriter, r *http.Request) {
	var req LimitsRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := h.cards.SetLimits(r.Context(), req.CardNumber, h.operator(r),
		req.ATMLimit, req.POSLimit, req.OnlineLimit); err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// MaintenanceRequest flips maintenance mode.
type MaintenanceRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *AdminHandler) SetMaintenance(w http.ResponseWriter, r *http.Request) {
	var req MaintenanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	h.cfg.SetMaintenanceMode(req.Enabled)
	h.log.Warn().Bool("enabled", req.Enabled).Str("operator", h.operator(r)).Msg("maintenance mode changed")
	writeJSON(w, http.StatusOK, map[string]bool{"maintenance": req.Enabled})
}

// DailyReport renders the daily transaction summary for ?date=YYYY-MM-DD,
// defaulting to today.
func (h *AdminHandler) DailyReport(w http.ResponseWriter, r *http.Request) {
	date := time.Now()
	if q := r.URL.Query().Get("date"); q != "" {
		parsed, err := time.ParseInLocation("2006-01-02", q, time.Local)
		if err != nil {
			writeError(w, h.log, bankerr.New(bankerr.CodeFieldValueInvalid, "date must be YYYY-MM-DD"))
			return
		}
		date = parsed
	}
	h.renderReport(w, func() (string, error) {
		return h.reports.DailyTransactionReport(r.Context(), date)
	})
}

// CardUsageReport renders withdrawal activity for ?from=&to= (YYYY-MM-DD),
// defaulting to the last 7 days.
func (h *AdminHandler) CardUsageReport(w http.ResponseWriter, r *http.Request) {
	to := time.Now()
	from := to.AddDate(0, 0, -7)
	var err error
	if q := r.URL.Query().Get("from"); q != "" {
		if from, err = time.ParseInLocation("2006-01-02", q, time.Local); err != nil {
			writeError(w, h.log, bankerr.New(bankerr.CodeFieldValueInvalid, "from must be YYYY-MM-DD"))
			return
		}
	}
	if q := r.URL.Query().Get("to"); q != "" {
		if to, err = time.ParseInLocation("2006-01-02", q, time.Local); err != nil {
			writeError(w, h.log, bankerr.New(bankerr.CodeFieldValueInvalid, "to must be YYYY-MM-DD"))
			return
		}
	}
	h.renderReport(w, func() (string, error) {
		return h.reports.CardUsageReport(r.Context(), from, to)
	})
}

// Customer answers a back-office customer lookup by ID.
func (h *AdminHandler) Customer(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerID")
	if customerID == "" {
		writeError(w, h.log, bankerr.New(bankerr.CodeFieldValueInvalid, "customer id required"))
		return
	}
	customer, err := h.store.GetCustomer(r.Context(), customerID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

func (h *AdminHandler) AccountStatusReport(w http.ResponseWriter, r *http.Request) {
	h.renderReport(w, func() (string, error) {
		return h.reports.AccountStatusReport(r.Context())
	})
}

func (h *AdminHandler) renderReport(w http.ResponseWriter, render func() (string, error)) {
	report, err := render()
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(report))
}

// operator names the session owner for audit trails.
func (h *AdminHandler) operator(r *http.Request) string {
	if claims, ok := session.FromContext(r.Context()); ok {
		return claims.OperatorID
	}
	return "unknown"
}

func (h *AdminHandler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := decodeJSON(w, r, dst); err != nil {
		return err
	}
	if err := h.validator.Struct(dst); err != nil {
		return bankerr.Wrap(bankerr.CodeFieldValueInvalid, "validation failed", err)
	}
	return nil
}
