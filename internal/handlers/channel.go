package handlers

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/finedge/corebank/internal/bankerr"
	"github.com/finedge/corebank/internal/engine"
	"github.com/finedge/corebank/internal/models"
	"github.com/finedge/corebank/internal/settlement"
	"github.com/finedge/corebank/internal/upi"
)

// requestBudget bounds how long a posting may run before the engine aborts
// instead of committing.
const requestBudget = 10 * time.Second

// ChannelHandler serves cardholder operations over JSON.
type ChannelHandler struct {
	engine     *engine.Engine
	settlement *settlement.Service
	upi        *upi.Service
	validator  *validator.Validate
	log        zerolog.Logger
}

// NewChannelHandler wires the cardholder surface.
func NewChannelHandler(eng *engine.Engine, settle *settlement.Service, upiSvc *upi.Service, log zerolog.Logger) *ChannelHandler {
	return &ChannelHandler{
		engine:     eng,
		settlement: settle,
		upi:        upiSvc,
		validator:  validator.New(),
		log:        log.With().Str("component", "handlers").Logger(),
	}
}

// WithdrawRequest debits a card's account.
type WithdrawRequest struct {
	Channel    string `json:"channel" validate:"required,oneof=ATM POS ONLINE BRANCH"`
	CardNumber string `json:"card_number" validate:"required,min=12,max=19,numeric"`
	PIN        string `json:"pin" validate:"required,min=4,max=6,numeric"`
	Amount     int64  `json:"amount" validate:"required,gt=0"`
	Remarks    string `json:"remarks,omitempty" validate:"max=120"`
}

// PostingResponse reports a successful posting.
type PostingResponse struct {
	TransactionID string `json:"transaction_id"`
	TransferID    string `json:"transfer_id,omitempty"`
	NewBalance    int64  `json:"new_balance"`
}

func (h *ChannelHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req WithdrawRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	result, err := h.engine.Post(r.Context(), engine.Intent{
		RequestID:  uuid.New().String(),
		Kind:       engine.KindDebit,
		Channel:    req.Channel,
		Operation:  models.TxTypeWithdrawal,
		CardNumber: req.CardNumber,
		PIN:        req.PIN,
		Amount:     req.Amount,
		Remarks:    req.Remarks,
		Deadline:   time.Now().Add(requestBudget),
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, PostingResponse{TransactionID: result.TransactionID, NewBalance: result.NewBalance})
}

// DepositRequest credits an account. Deposits arrive over branch terminals
// and need no card.
type DepositRequest struct {
	Channel       string `json:"channel" validate:"required,oneof=ATM BRANCH"`
	AccountNumber string `json:"account_number" validate:"required,min=8,max=20"`
	Amount        int64  `json:"amount" validate:"required,gt=0"`
	Remarks       string `json:"remarks,omitempty" validate:"max=120"`
}

func (h *ChannelHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	result, err := h.engine.Post(r.Context(), engine.Intent{
		RequestID:     uuid.New().String(),
		Kind:          engine.KindCredit,
		Channel:       req.Channel,
		Operation:     models.TxTypeDeposit,
		AccountNumber: req.AccountNumber,
		Amount:        req.Amount,
		Remarks:       req.Remarks,
		Deadline:      time.Now().Add(requestBudget),
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, PostingResponse{TransactionID: result.TransactionID, NewBalance: result.NewBalance})
}

// TransferRequest moves funds from the card's account to a destination. A
// destination VPA resolves through the UPI registry; an external destination
// settles through clearing.
type TransferRequest struct {
	Channel            string `json:"channel" validate:"required,oneof=ATM POS ONLINE BRANCH UPI"`
	CardNumber         string `json:"card_number" validate:"required,min=12,max=19,numeric"`
	PIN                string `json:"pin" validate:"required,min=4,max=6,numeric"`
	DestinationAccount string `json:"destination_account,omitempty" validate:"omitempty,min=8,max=34"`
	DestinationVPA     string `json:"destination_vpa,omitempty" validate:"omitempty,max=64"`
	TransferType       string `json:"transfer_type" validate:"required,oneof=INTERNAL EXTERNAL"`
	Amount             int64  `json:"amount" validate:"required,gt=0"`
	Remarks            string `json:"remarks,omitempty" validate:"max=120"`
}

func (h *ChannelHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	destination := req.DestinationAccount
	if req.DestinationVPA != "" {
		resolved, err := h.upi.ResolveVPA(r.Context(), req.DestinationVPA)
		if err != nil {
			writeError(w, h.log, err)
			return
		}
		destination = resolved
	}
	if destination == "" {
		writeError(w, h.log, bankerr.New(bankerr.CodeAccountUnknown, "destination account required"))
		return
	}

	result, err := h.engine.Post(r.Context(), engine.Intent{
		RequestID:          uuid.New().String(),
		Kind:               engine.KindTransfer,
		Channel:            req.Channel,
		Operation:          models.TxTypeTransfer,
		CardNumber:         req.CardNumber,
		PIN:                req.PIN,
		DestinationAccount: destination,
		TransferType:       req.TransferType,
		Amount:             req.Amount,
		Remarks:            req.Remarks,
		Deadline:           time.Now().Add(requestBudget),
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	// External legs hand off to clearing after the debit commits.
	if req.TransferType == models.TransferTypeExternal {
		tr := &models.Transfer{
			TransferID:         result.TransferID,
			TransactionID:      result.TransactionID,
			SourceAccount:      result.SourceAccount,
			DestinationAccount: destination,
			TransferType:       req.TransferType,
			Amount:             req.Amount,
			TransferDate:       time.Now(),
			Status:             models.TxStatusSuccess,
		}
		if err := h.settlement.Enqueue(r.Context(), tr); err != nil {
			h.log.Error().Err(err).Str("transfer_id", result.TransferID).Msg("settlement handoff failed, dispatcher will reconcile")
		}
	}
	writeJSON(w, http.StatusOK, PostingResponse{
		TransactionID: result.TransactionID,
		TransferID:    result.TransferID,
		NewBalance:    result.NewBalance,
	})
}

// BillPaymentRequest debits the card's account against a biller reference.
type BillPaymentRequest struct {
	Channel       string `json:"channel" validate:"required,oneof=ATM ONLINE BRANCH UPI"`
	CardNumber    string `json:"card_number" validate:"required,min=12,max=19,numeric"`
	PIN           string `json:"pin" validate:"required,min=4,max=6,numeric"`
	BillType      string `json:"bill_type" validate:"required,oneof=ELECTRICITY WATER GAS TELECOM INSURANCE EMI"`
	BillReference string `json:"bill_reference" validate:"required,min=4,max=40"`
	Amount        int64  `json:"amount" validate:"required,gt=0"`
}

func (h *ChannelHandler) PayBill(w http.ResponseWriter, r *http.Request) {
	var req BillPaymentRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	result, err := h.engine.Post(r.Context(), engine.Intent{
		RequestID:  uuid.New().String(),
		Kind:       engine.KindDebit,
		Channel:    req.Channel,
		Operation:  models.TxTypeBillPayment,
		CardNumber: req.CardNumber,
		PIN:        req.PIN,
		Amount:     req.Amount,
		Remarks:    req.BillType + ":" + req.BillReference,
		Bill: &engine.BillDetails{
			BillType:      req.BillType,
			BillReference: req.BillReference,
		},
		Deadline: time.Now().Add(requestBudget),
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, PostingResponse{TransactionID: result.TransactionID, NewBalance: result.NewBalance})
}

// BalanceRequest asks for the card's account balance.
type BalanceRequest struct {
	Channel    string `json:"channel" validate:"required,oneof=ATM POS ONLINE BRANCH UPI"`
	CardNumber string `json:"card_number" validate:"required,min=12,max=19,numeric"`
	PIN        string `json:"pin" validate:"required,min=4,max=6,numeric"`
}

func (h *ChannelHandler) Balance(w http.ResponseWriter, r *http.Request) {
	var req BalanceRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	balance, accountNumber, err := h.engine.Balance(r.Context(), req.Channel, req.CardNumber, req.PIN)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account_number": accountNumber,
		"balance":        balance,
	})
}

// StatementRequest asks for the most recent transactions.
type StatementRequest struct {
	Channel    string `json:"channel" validate:"required,oneof=ATM ONLINE BRANCH UPI"`
	CardNumber string `json:"card_number" validate:"required,min=12,max=19,numeric"`
	PIN        string `json:"pin" validate:"required,min=4,max=6,numeric"`
	Limit      int    `json:"limit,omitempty" validate:"omitempty,gt=0,lte=50"`
}

func (h *ChannelHandler) MiniStatement(w http.ResponseWriter, r *http.Request) {
	var req StatementRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	txs, err := h.engine.MiniStatement(r.Context(), req.Channel, req.CardNumber, req.PIN, req.Limit)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

// ChangePINRequest rotates the card PIN after verifying the current one.
type ChangePINRequest struct {
	Channel    string `json:"channel" validate:"required,oneof=ATM ONLINE BRANCH"`
	CardNumber string `json:"card_number" validate:"required,min=12,max=19,numeric"`
	OldPIN     string `json:"old_pin" validate:"required,min=4,max=6,numeric"`
	NewPIN     string `json:"new_pin" validate:"required,min=4,max=6,numeric,nefield=OldPIN"`
}

func (h *ChannelHandler) ChangePIN(w http.ResponseWriter, r *http.Request) {
	var req ChangePINRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	if err := h.engine.ChangePIN(r.Context(), req.Channel, req.CardNumber, req.OldPIN, req.NewPIN); err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "pin changed"})
}

// decode parses and validates a request body.
func (h *ChannelHandler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := decodeJSON(w, r, dst); err != nil {
		return err
	}
	if err := h.validator.Struct(dst); err != nil {
		return bankerr.Wrap(bankerr.CodeFieldValueInvalid, "validation failed", err)
	}
	return nil
}
