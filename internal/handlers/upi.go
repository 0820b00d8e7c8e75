package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/finedge/corebank/internal/bankerr"
	"github.com/finedge/corebank/internal/engine"
	"github.com/finedge/corebank/internal/models"
	"github.com/finedge/corebank/internal/upi"
)

// ResolveVPA answers /upi/resolve?vpa=name@bank with the account number.
func (h *ChannelHandler) ResolveVPA(w http.ResponseWriter, r *http.Request) {
	vpa := r.URL.Query().Get("vpa")
	if vpa == "" {
		writeError(w, h.log, bankerr.New(bankerr.CodeFieldValueInvalid, "vpa parameter required"))
		return
	}
	accountNumber, err := h.upi.ResolveVPA(r.Context(), vpa)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"vpa": vpa, "account_number": accountNumber})
}

// CollectRequestRequest issues a payment request QR for a payee VPA.
type CollectRequestRequest struct {
	PayeeVPA string `json:"payee_vpa" validate:"required,max=64"`
	Amount   int64  `json:"amount" validate:"required,gt=0"`
	Remarks  string `json:"remarks,omitempty" validate:"max=120"`
}

func (h *ChannelHandler) CreateCollectRequest(w http.ResponseWriter, r *http.Request) {
	var req CollectRequestRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	token, qrImage, err := h.upi.CreateCollectRequest(r.Context(), req.PayeeVPA, req.Amount, req.Remarks)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token, "qr_png_base64": qrImage})
}

// PayCollectRequest settles a scanned collect request from the payer's card.
type PayCollectRequest struct {
	Token      string `json:"token" validate:"required"`
	CardNumber string `json:"card_number" validate:"required,min=12,max=19,numeric"`
	PIN        string `json:"pin" validate:"required,min=4,max=6,numeric"`
}

func (h *ChannelHandler) PayCollect(w http.ResponseWriter, r *http.Request) {
	var req PayCollectRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	collect, err := h.upi.ClaimCollectRequest(r.Context(), req.Token)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	destination, err := h.upi.ResolveVPA(r.Context(), collect.PayeeVPA)
	if err != nil {
		h.reinstateCollect(r, req.Token, collect)
		writeError(w, h.log, err)
		return
	}

	result, err := h.engine.Post(r.Context(), engine.Intent{
		RequestID:          uuid.New().String(),
		Kind:               engine.KindTransfer,
		Channel:            models.ChannelUPI,
		Operation:          models.TxTypeTransfer,
		CardNumber:         req.CardNumber,
		PIN:                req.PIN,
		DestinationAccount: destination,
		TransferType:       models.TransferTypeInternal,
		Amount:             collect.Amount,
		Remarks:            collect.Remarks,
		Deadline:           time.Now().Add(requestBudget),
	})
	if err != nil {
		// A rejected payment must not consume the payee's request.
		h.reinstateCollect(r, req.Token, collect)
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, PostingResponse{
		TransactionID: result.TransactionID,
		TransferID:    result.TransferID,
		NewBalance:    result.NewBalance,
	})
}

func (h *ChannelHandler) reinstateCollect(r *http.Request, token string, collect *upi.CollectRequest) {
	if err := h.upi.ReinstateCollectRequest(r.Context(), token, collect); err != nil {
		h.log.Warn().Err(err).Str("payee", collect.PayeeVPA).Msg("collect request reinstate failed")
	}
}
