package handlers

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/finedge/corebank/internal/bankerr"
	"github.com/finedge/corebank/internal/engine"
	"github.com/finedge/corebank/internal/iso8583"
	"github.com/finedge/corebank/internal/models"
)

// ISOHandler fronts ATM and POS acquirers: hex-framed ISO-8583 requests in,
// sealed responses out. Every decodable request gets a response message;
// only an unparseable frame falls back to a transport error.
type ISOHandler struct {
	engine *engine.Engine
	macKey []byte
	log    zerolog.Logger
}

// NewISOHandler wires the acquirer surface. An empty macKey disables MAC
// enforcement for terminals still being migrated.
func NewISOHandler(eng *engine.Engine, macKey string, log zerolog.Logger) *ISOHandler {
	return &ISOHandler{
		engine: eng,
		macKey: []byte(macKey),
		log:    log.With().Str("component", "iso8583").Logger(),
	}
}

// responseCode maps taxonomy codes onto field 39 action codes.
func responseCode(err error) string {
	switch bankerr.CodeOf(err) {
	case "":
		return "96"
	case bankerr.CodeCardUnknown:
		return "14"
	case bankerr.CodeCardBlocked:
		return "62"
	case bankerr.CodeCardExpired:
		return "54"
	case bankerr.CodePinInvalid:
		return "55"
	case bankerr.CodeAccountUnknown, bankerr.CodeNotFound:
		return "76"
	case bankerr.CodeAccountInactive:
		return "57"
	case bankerr.CodeAmountInvalid:
		return "13"
	case bankerr.CodeInsufficientFunds:
		return "51"
	case bankerr.CodeDailyLimitExceeded:
		return "65"
	case bankerr.CodePerTransactionLimitExceeded:
		return "61"
	case bankerr.CodeUnknownProcessingCode:
		return "12"
	case bankerr.CodeMtiInvalid, bankerr.CodeBitmapInconsistent, bankerr.CodeFieldLengthInvalid,
		bankerr.CodeFieldValueInvalid, bankerr.CodeMandatoryFieldMissing:
		return "30"
	case bankerr.CodeMacInvalid:
		return "A0"
	case bankerr.CodeTimeout:
		return "68"
	case bankerr.CodeStoreUnavailable, bankerr.CodeDeadlockDetected, bankerr.CodeSystemUnavailable:
		return "91"
	}
	return "96"
}

// Handle serves one request message.
func (h *ISOHandler) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		writeError(w, h.log, bankerr.Wrap(bankerr.CodeFieldValueInvalid, "unreadable request", err))
		return
	}
	wire, err := hex.DecodeString(strings.TrimSpace(string(body)))
	if err != nil {
		writeError(w, h.log, bankerr.New(bankerr.CodeFieldValueInvalid, "request is not hexadecimal"))
		return
	}

	msg, err := iso8583.Parse(wire)
	if err != nil {
		// Nothing to echo a response onto.
		writeError(w, h.log, err)
		return
	}

	resp := h.process(r.Context(), msg)
	if len(h.macKey) > 0 {
		if err := resp.Seal(h.macKey); err != nil {
			writeError(w, h.log, err)
			return
		}
	}
	out, err := resp.Build()
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte(hex.EncodeToString(out)))
}

// process validates and executes the request, always returning a response
// message carrying field 39.
func (h *ISOHandler) process(ctx context.Context, msg *iso8583.Message) *iso8583.Message {
	resp := responseSkeleton(msg)

	if len(h.macKey) > 0 {
		if err := msg.VerifyMAC(h.macKey); err != nil {
			h.log.Warn().Int("field", bankerr.FieldOf(err)).Msg("mac verification failed")
			resp.Set(iso8583.FieldResponseCode, responseCode(err))
			return resp
		}
	}
	if err := msg.Validate(); err != nil {
		resp.Set(iso8583.FieldResponseCode, responseCode(err))
		return resp
	}

	if msg.MTI[1] == '8' { // network management echo
		resp.Set(iso8583.FieldResponseCode, "00")
		return resp
	}

	if err := h.execute(ctx, msg, resp); err != nil {
		resp.Set(iso8583.FieldResponseCode, responseCode(err))
		return resp
	}
	resp.Set(iso8583.FieldResponseCode, "00")
	return resp
}

// execute runs the operation the processing code selects, enriching resp
// with operation-specific fields.
func (h *ISOHandler) execute(ctx context.Context, msg, resp *iso8583.Message) error {
	pan, _ := msg.Get(iso8583.FieldPAN)
	pc, _ := msg.Get(iso8583.FieldProcessingCode)
	pin := h.pinFromBlock(msg)

	switch pc {
	case iso8583.ProcBalanceInquiry:
		balance, _, err := h.engine.Balance(ctx, models.ChannelATM, pan, pin)
		if err != nil {
			return err
		}
		resp.Set(54, fmt.Sprintf("%012d", balance))
		return nil

	case iso8583.ProcPinVerification:
		// The outcome travels on field 39 alone; nothing is posted and no
		// data element is echoed back.
		return h.engine.VerifyPIN(ctx, models.ChannelATM, pan, pin)

	case iso8583.ProcPinChange:
		newPIN := h.newPINFromMessage(msg)
		return h.engine.ChangePIN(ctx, models.ChannelATM, pan, pin, newPIN)
	}

	amount, err := msg.Amount()
	if err != nil {
		return err
	}
	intent := engine.Intent{
		RequestID:  requestID(msg),
		CardNumber: pan,
		PIN:        pin,
		Amount:     amount,
		Deadline:   time.Now().Add(requestBudget),
	}

	switch pc {
	case iso8583.ProcPurchase:
		intent.Kind = engine.KindDebit
		intent.Channel = models.ChannelPOS
		intent.Operation = models.TxTypePayment
	case iso8583.ProcCashWithdrawal:
		intent.Kind = engine.KindDebit
		intent.Channel = models.ChannelATM
		intent.Operation = models.TxTypeWithdrawal
	case iso8583.ProcRefund:
		intent.Kind = engine.KindCredit
		intent.Channel = models.ChannelPOS
		intent.Operation = models.TxTypeDeposit
		intent.Remarks = "REFUND"
	case iso8583.ProcDeposit:
		intent.Kind = engine.KindCredit
		intent.Channel = models.ChannelATM
		intent.Operation = models.TxTypeDeposit
	case iso8583.ProcFundTransfer:
		destination, _ := msg.Get(iso8583.FieldAccountTo)
		intent.Kind = engine.KindTransfer
		intent.Channel = models.ChannelATM
		intent.Operation = models.TxTypeTransfer
		intent.DestinationAccount = destination
		intent.TransferType = models.TransferTypeInternal
	default:
		return bankerr.Proto(bankerr.CodeUnknownProcessingCode, iso8583.FieldProcessingCode, "unhandled processing code")
	}

	result, err := h.engine.Post(ctx, intent)
	if err != nil {
		return err
	}
	resp.Set(iso8583.FieldRRN, rrnFrom(result.TransactionID))
	return nil
}

// responseSkeleton echoes the request's identifying fields onto the response
// MTI.
func responseSkeleton(msg *iso8583.Message) *iso8583.Message {
	resp := iso8583.NewMessage(iso8583.ResponseMTI(msg.MTI))
	for _, f := range []int{
		iso8583.FieldPAN, iso8583.FieldProcessingCode, iso8583.FieldAmount,
		iso8583.FieldTransmissionTime, iso8583.FieldSTAN, iso8583.FieldTerminalID,
		iso8583.FieldCurrency, iso8583.FieldAccountFrom, iso8583.FieldAccountTo,
	} {
		if v, ok := msg.Get(f); ok {
			resp.Set(f, v)
		}
	}
	return resp
}

// pinFromBlock recovers the PIN digits from the field 52 block. Terminals on
// this dialect send the clear block under transport encryption.
func (h *ISOHandler) pinFromBlock(msg *iso8583.Message) string {
	block, ok := msg.Get(52)
	if !ok {
		return ""
	}
	raw, err := hex.DecodeString(block)
	if err != nil {
		return ""
	}
	return strings.TrimRight(string(raw), "\x00 ")
}

// newPINFromMessage reads the replacement PIN for a PIN change from field 48.
func (h *ISOHandler) newPINFromMessage(msg *iso8583.Message) string {
	v, _ := msg.Get(48)
	return strings.TrimSpace(v)
}

// requestID derives a stable request ID from STAN and transmission time so
// acquirer retries trace to the same attempt in the logs.
func requestID(msg *iso8583.Message) string {
	stan, _ := msg.Get(iso8583.FieldSTAN)
	ts, _ := msg.Get(iso8583.FieldTransmissionTime)
	if stan == "" {
		return uuid.New().String()
	}
	return "ISO-" + ts + "-" + stan
}

// rrnFrom shapes a transaction ID into the 12-character retrieval reference.
func rrnFrom(transactionID string) string {
	cleaned := strings.ReplaceAll(strings.TrimPrefix(transactionID, "TXN-"), "-", "")
	if len(cleaned) > 12 {
		cleaned = cleaned[:12]
	}
	return fmt.Sprintf("%012s", cleaned)
}
