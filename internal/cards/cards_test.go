package cards

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/finedge/corebank/internal/audit"
	"github.com/finedge/corebank/internal/bankerr"
	"github.com/finedge/corebank/internal/models"
	"github.com/finedge/corebank/internal/store"
)

const testPAN = "4111111111111111"

func newService(t *testing.T) (*Service, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	st := store.New(db)
	svc := New(st, audit.NewLogger(st, zerolog.Nop()), zerolog.Nop())
	return svc, mock, func() { db.Close() }
}

func expectCard(mock sqlmock.Sqlmock, status string) {
	mock.ExpectQuery("SELECT (.+) FROM cards").
		WithArgs(testPAN).
		WillReturnRows(sqlmock.NewRows([]string{
			"card_id", "card_number", "account_number", "card_type", "expiry_date", "pin_hash",
			"status", "daily_atm_limit", "daily_pos_limit", "daily_online_limit", "created_at",
		}).AddRow("CARD-1", testPAN, "ACC-100", "DEBIT", time.Now().AddDate(2, 0, 0), "$argon2id$hash",
			status, 250_000, 500_000, 1_000_000, time.Now()))
}

func expectAudit(mock sqlmock.Sqlmock, action string) {
	mock.ExpectExec("INSERT INTO audit_entries").
		WithArgs(action, "CARD", "**** **** **** 1111", sqlmock.AnyArg(),
			models.AuditStatusSuccess, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
}

func TestBlock(t *testing.T) {
	ctx := context.Background()

	t.Run("blocks and audits", func(t *testing.T) {
		svc, mock, done := newService(t)
		defer done()

		expectCard(mock, models.CardStatusActive)
		mock.ExpectExec("UPDATE cards SET status").
			WithArgs(models.CardStatusBlocked, testPAN).
			WillReturnResult(sqlmock.NewResult(0, 1))
		expectAudit(mock, "CARD_BLOCK")

		assert.NoError(t, svc.Block(ctx, testPAN, "OP-001"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("re-block is a no-op but still audited", func(t *testing.T) {
		svc, mock, done := newService(t)
		defer done()

		expectCard(mock, models.CardStatusBlocked)
		mock.ExpectExec("UPDATE cards SET status").
			WithArgs(models.CardStatusBlocked, testPAN).
			WillReturnResult(sqlmock.NewResult(0, 1))
		expectAudit(mock, "CARD_BLOCK")

		assert.NoError(t, svc.Block(ctx, testPAN, "OP-001"))
	})

	t.Run("unknown card", func(t *testing.T) {
		svc, mock, done := newService(t)
		defer done()

		mock.ExpectQuery("SELECT (.+) FROM cards").
			WithArgs(testPAN).
			WillReturnRows(sqlmock.NewRows([]string{"card_id"}))

		err := svc.Block(ctx, testPAN, "OP-001")
		assert.Equal(t, bankerr.CodeCardUnknown, bankerr.CodeOf(err))
	})
}

func TestUnblock(t *testing.T) {
	ctx := context.Background()

	t.Run("returns a blocked card to service", func(t *testing.T) {
		svc, mock, done := newService(t)
		defer done()

		expectCard(mock, models.CardStatusBlocked)
		mock.ExpectExec("UPDATE cards SET status").
			WithArgs(models.CardStatusActive, testPAN).
			WillReturnResult(sqlmock.NewResult(0, 1))
		expectAudit(mock, "CARD_UNBLOCK")

		assert.NoError(t, svc.Unblock(ctx, testPAN, "OP-001"))
	})

	t.Run("expired card stays expired", func(t *testing.T) {
		svc, mock, done := newService(t)
		defer done()

		expectCard(mock, models.CardStatusExpired)

		err := svc.Unblock(ctx, testPAN, "OP-001")
		assert.Equal(t, bankerr.CodeCardExpired, bankerr.CodeOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSetLimits(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces per-channel limits", func(t *testing.T) {
		svc, mock, done := newService(t)
		defer done()

		expectCard(mock, models.CardStatusActive)
		mock.ExpectExec("UPDATE cards SET daily_atm_limit").
			WithArgs(int64(100_000), int64(200_000), int64(300_000), testPAN).
			WillReturnResult(sqlmock.NewResult(0, 1))
		expectAudit(mock, "CARD_LIMITS")

		assert.NoError(t, svc.SetLimits(ctx, testPAN, "OP-001", 100_000, 200_000, 300_000))
	})

	t.Run("negative limit rejected before any lookup", func(t *testing.T) {
		svc, mock, done := newService(t)
		defer done()

		err := svc.SetLimits(ctx, testPAN, "OP-001", -1, 0, 0)
		assert.Equal(t, bankerr.CodeAmountInvalid, bankerr.CodeOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
