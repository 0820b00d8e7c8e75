package handlers

import (
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/finedge/corebank/internal/audit"
	"github.com/finedge/corebank/internal/authz"
	"github.com/finedge/corebank/internal/bankerr"
	"github.com/finedge/corebank/internal/config"
	"github.com/finedge/corebank/internal/credentials"
	"github.com/finedge/corebank/internal/engine"
	"github.com/finedge/corebank/internal/iso8583"
	"github.com/finedge/corebank/internal/models"
	"github.com/finedge/corebank/internal/store"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		code bankerr.Code
		want int
	}{
		{bankerr.CodeCardUnknown, http.StatusNotFound},
		{bankerr.CodeAccountUnknown, http.StatusNotFound},
		{bankerr.CodeNotFound, http.StatusNotFound},
		{bankerr.CodePinInvalid, http.StatusUnauthorized},
		{bankerr.CodeCardBlocked, http.StatusForbidden},
		{bankerr.CodeCardExpired, http.StatusForbidden},
		{bankerr.CodeAccountInactive, http.StatusForbidden},
		{bankerr.CodeAmountInvalid, http.StatusBadRequest},
		{bankerr.CodeMacInvalid, http.StatusBadRequest},
		{bankerr.CodeMandatoryFieldMissing, http.StatusBadRequest},
		{bankerr.CodeInsufficientFunds, http.StatusUnprocessableEntity},
		{bankerr.CodeDailyLimitExceeded, http.StatusUnprocessableEntity},
		{bankerr.CodeUnknownProcessingCode, http.StatusUnprocessableEntity},
		{bankerr.CodeConstraintViolated, http.StatusUnprocessableEntity},
		{bankerr.CodeTimeout, http.StatusGatewayTimeout},
		{bankerr.CodeStoreUnavailable, http.StatusServiceUnavailable},
		{bankerr.CodeDeadlockDetected, http.StatusServiceUnavailable},
		{bankerr.Code("SOMETHING_NEW"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, httpStatus(tc.code), string(tc.code))
	}
}

func TestResponseCode(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{bankerr.New(bankerr.CodeCardUnknown, ""), "14"},
		{bankerr.New(bankerr.CodeCardBlocked, ""), "62"},
		{bankerr.New(bankerr.CodeCardExpired, ""), "54"},
		{bankerr.New(bankerr.CodePinInvalid, ""), "55"},
		{bankerr.New(bankerr.CodeAccountUnknown, ""), "76"},
		{bankerr.New(bankerr.CodeAccountInactive, ""), "57"},
		{bankerr.New(bankerr.CodeAmountInvalid, ""), "13"},
		{bankerr.New(bankerr.CodeInsufficientFunds, ""), "51"},
		{bankerr.New(bankerr.CodeDailyLimitExceeded, ""), "65"},
		{bankerr.New(bankerr.CodePerTransactionLimitExceeded, ""), "61"},
		{bankerr.New(bankerr.CodeUnknownProcessingCode, ""), "12"},
		{bankerr.Proto(bankerr.CodeMandatoryFieldMissing, 41, ""), "30"},
		{bankerr.Proto(bankerr.CodeMacInvalid, 128, ""), "A0"},
		{bankerr.New(bankerr.CodeTimeout, ""), "68"},
		{bankerr.New(bankerr.CodeStoreUnavailable, ""), "91"},
		{errors.New("plain failure"), "96"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, responseCode(tc.err))
	}
}

func TestRRNFrom(t *testing.T) {
	assert.Equal(t, "9f1c2ab4d871", rrnFrom("TXN-9f1c2ab4-d871-4e02-9c55-0123456789ab"))
	assert.Equal(t, "000000000042", rrnFrom("42"))
	assert.Len(t, rrnFrom("TXN-short"), 12)
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Amount int64 `json:"amount"`
	}

	decode := func(body string) error {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		var p payload
		return decodeJSON(httptest.NewRecorder(), req, &p)
	}

	t.Run("single object", func(t *testing.T) {
		assert.NoError(t, decode(`{"amount": 100}`))
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		err := decode(`{"amount": 100, "extra": true}`)
		assert.Equal(t, bankerr.CodeFieldValueInvalid, bankerr.CodeOf(err))
	})

	t.Run("trailing document rejected", func(t *testing.T) {
		err := decode(`{"amount": 100}{"amount": 200}`)
		assert.Equal(t, bankerr.CodeFieldValueInvalid, bankerr.CodeOf(err))
	})

	t.Run("malformed body rejected", func(t *testing.T) {
		err := decode(`{"amount":`)
		assert.Equal(t, bankerr.CodeFieldValueInvalid, bankerr.CodeOf(err))
	})
}

func TestWriteError(t *testing.T) {
	t.Run("taxonomy error carries its code", func(t *testing.T) {
		rec := httptest.NewRecorder()
		writeError(rec, zerolog.Nop(), bankerr.New(bankerr.CodeInsufficientFunds, "insufficient funds"))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), "INSUFFICIENT_FUNDS")
		assert.Contains(t, rec.Body.String(), "insufficient funds")
	})

	t.Run("unclassified error stays generic", func(t *testing.T) {
		rec := httptest.NewRecorder()
		writeError(rec, zerolog.Nop(), errors.New("pq: column secret_column does not exist"))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "secret_column")
		assert.Contains(t, rec.Body.String(), "INTERNAL")
	})
}

func TestISOHandlerTransport(t *testing.T) {
	h := NewISOHandler(nil, "", zerolog.Nop())

	t.Run("network management echo", func(t *testing.T) {
		wire, err := iso8583.NewMessage("0800").Build()
		assert.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/iso8583", strings.NewReader(hex.EncodeToString(wire)))
		rec := httptest.NewRecorder()
		h.Handle(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		raw, err := hex.DecodeString(rec.Body.String())
		assert.NoError(t, err)
		resp, err := iso8583.Parse(raw)
		assert.NoError(t, err)
		assert.Equal(t, "0810", resp.MTI)
		code, _ := resp.Get(iso8583.FieldResponseCode)
		assert.Equal(t, "00", code)
	})

	t.Run("non-hex frame is a transport error", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/iso8583", strings.NewReader("not-hex!"))
		rec := httptest.NewRecorder()
		h.Handle(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unparseable frame is a transport error", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/iso8583",
			strings.NewReader(hex.EncodeToString([]byte("0300deadbeef"))))
		rec := httptest.NewRecorder()
		h.Handle(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing mandatory field answered on field 39", func(t *testing.T) {
		m := iso8583.NewMessage("0200")
		m.Set(iso8583.FieldPAN, "4111111111111111")
		m.Set(iso8583.FieldProcessingCode, iso8583.ProcCashWithdrawal)
		m.Set(iso8583.FieldAmount, "000000010000")
		m.Set(iso8583.FieldTransmissionTime, "0901120000")
		m.Set(iso8583.FieldSTAN, "000001")
		// field 41 absent
		wire, err := m.Build()
		assert.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/iso8583", strings.NewReader(hex.EncodeToString(wire)))
		rec := httptest.NewRecorder()
		h.Handle(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		raw, err := hex.DecodeString(rec.Body.String())
		assert.NoError(t, err)
		resp, err := iso8583.Parse(raw)
		assert.NoError(t, err)
		assert.Equal(t, "0210", resp.MTI)
		code, _ := resp.Get(iso8583.FieldResponseCode)
		assert.Equal(t, "30", code)
	})

	t.Run("mac enforced when keyed", func(t *testing.T) {
		keyed := NewISOHandler(nil, "terminal-secret", zerolog.Nop())
		m := iso8583.NewMessage("0800")
		wire, err := m.Build() // unsealed
		assert.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/iso8583", strings.NewReader(hex.EncodeToString(wire)))
		rec := httptest.NewRecorder()
		keyed.Handle(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		raw, err := hex.DecodeString(rec.Body.String())
		assert.NoError(t, err)
		resp, err := iso8583.Parse(raw)
		assert.NoError(t, err)
		code, _ := resp.Get(iso8583.FieldResponseCode)
		assert.Equal(t, "A0", code)
	})
}

// testEngine wires a posting engine over sqlmock for handler flows that reach
// the store.
func testEngine(t *testing.T) (*engine.Engine, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	cfg := &config.Config{
		ATMWithdrawalLimit:    2_500_000,
		DailyTransactionLimit: 10_000_000,
		PostingRetryAttempts:  1,
		PostingRetryBackoff:   time.Millisecond,
		Argon2:                config.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLength: 32, SaltLength: 16},
	}
	st := store.New(db)
	auditLog := audit.NewLogger(st, zerolog.Nop())
	hasher := credentials.NewHasher(cfg.Argon2)
	az := authz.New(st, cfg, auditLog, zerolog.Nop())
	return engine.New(st, az, auditLog, hasher, cfg, zerolog.Nop()), mock, func() { db.Close() }
}

func TestISOPinVerification(t *testing.T) {
	const (
		pan = "4111111111111111"
		pin = "4921"
	)

	pinHash := func(t *testing.T) string {
		t.Helper()
		hasher := credentials.NewHasher(config.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLength: 32, SaltLength: 16})
		encoded, err := hasher.HashPIN(pin)
		assert.NoError(t, err)
		return encoded
	}

	expectCard := func(t *testing.T, mock sqlmock.Sqlmock) {
		mock.ExpectQuery("SELECT (.+) FROM cards").
			WithArgs(pan).
			WillReturnRows(sqlmock.NewRows([]string{
				"card_id", "card_number", "account_number", "card_type", "expiry_date", "pin_hash",
				"status", "daily_atm_limit", "daily_pos_limit", "daily_online_limit", "created_at",
			}).AddRow("CARD-1", pan, "ACC-100", "DEBIT", time.Now().AddDate(2, 0, 0), pinHash(t),
				models.CardStatusActive, 250_000, 500_000, 1_000_000, time.Now()))
	}

	request := func(pinDigits string) *iso8583.Message {
		m := iso8583.NewMessage("0100")
		m.Set(iso8583.FieldPAN, pan)
		m.Set(iso8583.FieldProcessingCode, iso8583.ProcPinVerification)
		m.Set(iso8583.FieldTransmissionTime, "0901120000")
		m.Set(iso8583.FieldSTAN, "000001")
		m.Set(52, hex.EncodeToString([]byte(pinDigits+"\x00\x00\x00\x00")))
		return m
	}

	respond := func(t *testing.T, h *ISOHandler, m *iso8583.Message) *iso8583.Message {
		t.Helper()
		wire, err := m.Build()
		assert.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/iso8583", strings.NewReader(hex.EncodeToString(wire)))
		rec := httptest.NewRecorder()
		h.Handle(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		raw, err := hex.DecodeString(rec.Body.String())
		assert.NoError(t, err)
		resp, err := iso8583.Parse(raw)
		assert.NoError(t, err)
		return resp
	}

	t.Run("correct pin answers on field 39 alone", func(t *testing.T) {
		eng, mock, done := testEngine(t)
		defer done()
		h := NewISOHandler(eng, "", zerolog.Nop())

		expectCard(t, mock)
		mock.ExpectQuery("SELECT (.+) FROM accounts").
			WithArgs("ACC-100").
			WillReturnRows(sqlmock.NewRows([]string{
				"account_number", "customer_id", "account_type", "balance", "status",
				"branch_code", "opened_at", "last_transaction_at",
			}).AddRow("ACC-100", "CUST-1", models.AccountTypeSavings, int64(500_000),
				models.AccountStatusActive, "BR001", time.Now(), nil))

		resp := respond(t, h, request(pin))
		assert.Equal(t, "0110", resp.MTI)
		code, _ := resp.Get(iso8583.FieldResponseCode)
		assert.Equal(t, "00", code)
		assert.False(t, resp.Has(48)) // no statement or balance data rides along
		assert.False(t, resp.Has(54))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wrong pin answers 55", func(t *testing.T) {
		eng, mock, done := testEngine(t)
		defer done()
		h := NewISOHandler(eng, "", zerolog.Nop())

		expectCard(t, mock)
		mock.ExpectExec("INSERT INTO audit_entries").
			WillReturnResult(sqlmock.NewResult(1, 1))

		resp := respond(t, h, request("0000"))
		code, _ := resp.Get(iso8583.FieldResponseCode)
		assert.Equal(t, "55", code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPinFromBlock(t *testing.T) {
	h := NewISOHandler(nil, "", zerolog.Nop())

	t.Run("digits recovered from padded block", func(t *testing.T) {
		m := iso8583.NewMessage("0200")
		m.Set(52, hex.EncodeToString([]byte("4921\x00\x00\x00\x00")))
		assert.Equal(t, "4921", h.pinFromBlock(m))
	})

	t.Run("absent block", func(t *testing.T) {
		assert.Equal(t, "", h.pinFromBlock(iso8583.NewMessage("0200")))
	})
}

func TestRequestID(t *testing.T) {
	m := iso8583.NewMessage("0200")
	m.Set(iso8583.FieldSTAN, "000001")
	m.Set(iso8583.FieldTransmissionTime, "0901120000")
	assert.Equal(t, "ISO-0901120000-000001", requestID(m))

	// without a STAN the ID is still unique
	assert.NotEmpty(t, requestID(iso8583.NewMessage("0200")))
}
