package authz

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/finedge/corebank/internal/audit"
	"github.com/finedge/corebank/internal/bankerr"
	"github.com/finedge/corebank/internal/config"
	"github.com/finedge/corebank/internal/credentials"
	"github.com/finedge/corebank/internal/models"
	"github.com/finedge/corebank/internal/store"
)

const (
	testPAN = "4111111111111111"
	testPIN = "4921"
)

func testConfig() *config.Config {
	return &config.Config{
		ATMWithdrawalLimit:    2_500_000,
		DailyTransactionLimit: 10_000_000,
		Argon2:                config.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLength: 32, SaltLength: 16},
	}
}

func newAuthorizer(t *testing.T) (*Authorizer, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	st := store.New(db)
	auditLog := audit.NewLogger(st, zerolog.Nop())
	az := New(st, testConfig(), auditLog, zerolog.Nop())
	return az, mock, func() { db.Close() }
}

func pinHash(t *testing.T) string {
	t.Helper()
	hasher := credentials.NewHasher(testConfig().Argon2)
	encoded, err := hasher.HashPIN(testPIN)
	assert.NoError(t, err)
	return encoded
}

func cardRows(t *testing.T, status string, expiry time.Time, atmLimit int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"card_id", "card_number", "account_number", "card_type", "expiry_date", "pin_hash",
		"status", "daily_atm_limit", "daily_pos_limit", "daily_online_limit", "created_at",
	}).AddRow("CARD-1", testPAN, "ACC-100", "DEBIT", expiry, pinHash(t),
		status, atmLimit, 500_000, 1_000_000, time.Now())
}

func expectCard(t *testing.T, mock sqlmock.Sqlmock, status string, atmLimit int64) {
	mock.ExpectQuery("SELECT (.+) FROM cards").
		WithArgs(testPAN).
		WillReturnRows(cardRows(t, status, time.Now().AddDate(2, 0, 0), atmLimit))
}

func expectAccount(mock sqlmock.Sqlmock, balance int64, status string) {
	mock.ExpectQuery("SELECT (.+) FROM accounts").
		WithArgs("ACC-100").
		WillReturnRows(sqlmock.NewRows([]string{
			"account_number", "customer_id", "account_type", "balance", "status",
			"branch_code", "opened_at", "last_transaction_at",
		}).AddRow("ACC-100", "CUST-1", models.AccountTypeSavings, balance, status, "BR001", time.Now(), nil))
}

func expectDailySpend(mock sqlmock.Sqlmock, spent int64) {
	mock.ExpectQuery("SELECT COALESCE").
		WithArgs(testPAN, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(spent))
}

func withdrawal(amount int64) Intent {
	return Intent{
		Channel:    models.ChannelATM,
		CardNumber: testPAN,
		PIN:        testPIN,
		Operation:  models.TxTypeWithdrawal,
		Amount:     amount,
	}
}

func TestAuthorize(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		az, mock, done := newAuthorizer(t)
		defer done()

		expectCard(t, mock, models.CardStatusActive, 250_000)
		expectDailySpend(mock, 0)
		expectAccount(mock, 500_000, models.AccountStatusActive)

		result, err := az.Authorize(ctx, withdrawal(10_000))
		assert.NoError(t, err)
		assert.Equal(t, "ACC-100", result.AccountNumber)
		assert.Equal(t, int64(500_000), result.Balance)
		assert.NotNil(t, result.Card)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("luhn failure never reaches the store", func(t *testing.T) {
		az, mock, done := newAuthorizer(t)
		defer done()

		intent := withdrawal(10_000)
		intent.CardNumber = "4111111111111112"
		_, err := az.Authorize(ctx, intent)
		assert.Equal(t, bankerr.CodeCardUnknown, bankerr.CodeOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown card", func(t *testing.T) {
		az, mock, done := newAuthorizer(t)
		defer done()

		mock.ExpectQuery("SELECT (.+) FROM cards").
			WithArgs(testPAN).
			WillReturnRows(sqlmock.NewRows([]string{"card_id"}))

		_, err := az.Authorize(ctx, withdrawal(10_000))
		assert.Equal(t, bankerr.CodeCardUnknown, bankerr.CodeOf(err))
	})

	t.Run("blocked card", func(t *testing.T) {
		az, mock, done := newAuthorizer(t)
		defer done()

		expectCard(t, mock, models.CardStatusBlocked, 250_000)

		_, err := az.Authorize(ctx, withdrawal(10_000))
		assert.Equal(t, bankerr.CodeCardBlocked, bankerr.CodeOf(err))
	})

	t.Run("expired by date beats status", func(t *testing.T) {
		az, mock, done := newAuthorizer(t)
		defer done()

		mock.ExpectQuery("SELECT (.+) FROM cards").
			WithArgs(testPAN).
			WillReturnRows(cardRows(t, models.CardStatusActive, time.Now().AddDate(0, -1, 0), 250_000))

		_, err := az.Authorize(ctx, withdrawal(10_000))
		assert.Equal(t, bankerr.CodeCardExpired, bankerr.CodeOf(err))
	})

	t.Run("wrong pin audited and rejected", func(t *testing.T) {
		az, mock, done := newAuthorizer(t)
		defer done()

		expectCard(t, mock, models.CardStatusActive, 250_000)
		mock.ExpectExec("INSERT INTO audit_entries").
			WithArgs("PIN_VERIFY", "CARD", "**** **** **** 1111", sqlmock.AnyArg(),
				models.AuditStatusFailure, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		intent := withdrawal(10_000)
		intent.PIN = "0000"
		_, err := az.Authorize(ctx, intent)
		assert.Equal(t, bankerr.CodePinInvalid, bankerr.CodeOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero amount rejected", func(t *testing.T) {
		az, mock, done := newAuthorizer(t)
		defer done()

		expectCard(t, mock, models.CardStatusActive, 250_000)

		_, err := az.Authorize(ctx, withdrawal(0))
		assert.Equal(t, bankerr.CodeAmountInvalid, bankerr.CodeOf(err))
	})

	t.Run("per transaction cap", func(t *testing.T) {
		az, mock, done := newAuthorizer(t)
		defer done()

		expectCard(t, mock, models.CardStatusActive, 250_000)

		_, err := az.Authorize(ctx, withdrawal(2_500_001))
		assert.Equal(t, bankerr.CodePerTransactionLimitExceeded, bankerr.CodeOf(err))
	})

	t.Run("daily limit boundary admits an exact fit", func(t *testing.T) {
		az, mock, done := newAuthorizer(t)
		defer done()

		expectCard(t, mock, models.CardStatusActive, 250_000)
		expectDailySpend(mock, 240_000)
		expectAccount(mock, 500_000, models.AccountStatusActive)

		_, err := az.Authorize(ctx, withdrawal(10_000))
		assert.NoError(t, err)
	})

	t.Run("daily limit exceeded by one", func(t *testing.T) {
		az, mock, done := newAuthorizer(t)
		defer done()

		expectCard(t, mock, models.CardStatusActive, 250_000)
		expectDailySpend(mock, 240_001)

		_, err := az.Authorize(ctx, withdrawal(10_000))
		assert.Equal(t, bankerr.CodeDailyLimitExceeded, bankerr.CodeOf(err))
	})

	t.Run("inactive account", func(t *testing.T) {
		az, mock, done := newAuthorizer(t)
		defer done()

		expectCard(t, mock, models.CardStatusActive, 250_000)
		expectDailySpend(mock, 0)
		expectAccount(mock, 500_000, models.AccountStatusInactive)

		_, err := az.Authorize(ctx, withdrawal(10_000))
		assert.Equal(t, bankerr.CodeAccountInactive, bankerr.CodeOf(err))
	})

	t.Run("insufficient funds advisory", func(t *testing.T) {
		az, mock, done := newAuthorizer(t)
		defer done()

		expectCard(t, mock, models.CardStatusActive, 250_000)
		expectDailySpend(mock, 0)
		expectAccount(mock, 5_000, models.AccountStatusActive)

		_, err := az.Authorize(ctx, withdrawal(10_000))
		assert.Equal(t, bankerr.CodeInsufficientFunds, bankerr.CodeOf(err))
	})

	t.Run("maintenance mode blocks value movement", func(t *testing.T) {
		az, mock, done := newAuthorizer(t)
		defer done()
		az.cfg.SetMaintenanceMode(true)
		defer az.cfg.SetMaintenanceMode(false)

		_, err := az.Authorize(ctx, withdrawal(10_000))
		assert.Equal(t, bankerr.CodeSystemUnavailable, bankerr.CodeOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maintenance mode still serves the branch", func(t *testing.T) {
		az, mock, done := newAuthorizer(t)
		defer done()
		az.cfg.SetMaintenanceMode(true)
		defer az.cfg.SetMaintenanceMode(false)

		expectAccount(mock, 500_000, models.AccountStatusActive)

		_, err := az.Authorize(ctx, Intent{
			Channel:       models.ChannelBranch,
			AccountNumber: "ACC-100",
			Operation:     models.TxTypeDeposit,
			Amount:        10_000,
		})
		assert.NoError(t, err)
	})
}

func TestRecheckUnderLock(t *testing.T) {
	active := &models.Account{AccountNumber: "ACC-100", Balance: 10_000, Status: models.AccountStatusActive}

	t.Run("active with funds", func(t *testing.T) {
		assert.NoError(t, RecheckUnderLock(active, true, 10_000))
	})

	t.Run("funds shrank under contention", func(t *testing.T) {
		err := RecheckUnderLock(active, true, 10_001)
		assert.Equal(t, bankerr.CodeInsufficientFunds, bankerr.CodeOf(err))
	})

	t.Run("credits ignore balance", func(t *testing.T) {
		assert.NoError(t, RecheckUnderLock(active, false, 1_000_000))
	})

	t.Run("inactive account", func(t *testing.T) {
		closed := &models.Account{Status: models.AccountStatusClosed, Balance: 10_000}
		err := RecheckUnderLock(closed, true, 1)
		assert.Equal(t, bankerr.CodeAccountInactive, bankerr.CodeOf(err))
	})
}
