package reports

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/finedge/corebank/internal/models"
	"github.com/finedge/corebank/internal/store"
)

func tx(txType string, amount int64, status string) models.Transaction {
	return models.Transaction{
		TransactionType: txType,
		Amount:          amount,
		Status:          status,
	}
}

func TestSummarise(t *testing.T) {
	date := time.Date(2026, 9, 1, 0, 0, 0, 0, time.Local)

	t.Run("folds debits and credits separately", func(t *testing.T) {
		sum := Summarise(date, []models.Transaction{
			tx(models.TxTypeWithdrawal, 10_000, models.TxStatusSuccess),
			tx(models.TxTypeWithdrawal, 5_000, models.TxStatusSuccess),
			tx(models.TxTypeDeposit, 20_000, models.TxStatusSuccess),
			tx(models.TxTypeInterestCredit, 350, models.TxStatusSuccess),
			tx(models.TxTypePayment, 7_500, models.TxStatusSuccess),
		})
		assert.Equal(t, int64(22_500), sum.TotalDebits)
		assert.Equal(t, int64(20_350), sum.TotalCredits)
		assert.Equal(t, 2, sum.CountByType[models.TxTypeWithdrawal])
		assert.Equal(t, int64(15_000), sum.AmountByType[models.TxTypeWithdrawal])
		assert.Zero(t, sum.Failed)
	})

	t.Run("failures count but do not move totals", func(t *testing.T) {
		sum := Summarise(date, []models.Transaction{
			tx(models.TxTypeWithdrawal, 10_000, models.TxStatusSuccess),
			tx(models.TxTypeWithdrawal, 99_000, models.TxStatusFailed),
		})
		assert.Equal(t, int64(10_000), sum.TotalDebits)
		assert.Equal(t, 1, sum.Failed)
		assert.Equal(t, 2, sum.CountByType[models.TxTypeWithdrawal])
		assert.Equal(t, int64(10_000), sum.AmountByType[models.TxTypeWithdrawal])
	})

	t.Run("zero amount entries leave totals alone", func(t *testing.T) {
		sum := Summarise(date, []models.Transaction{
			tx(models.TxTypePinChange, 0, models.TxStatusSuccess),
		})
		assert.Zero(t, sum.TotalDebits)
		assert.Zero(t, sum.TotalCredits)
		assert.Equal(t, 1, sum.CountByType[models.TxTypePinChange])
	})

	t.Run("empty day", func(t *testing.T) {
		sum := Summarise(date, nil)
		assert.Empty(t, sum.CountByType)
		assert.Zero(t, sum.TotalDebits)
	})
}

func TestMinor(t *testing.T) {
	assert.Equal(t, "0.00", minor(0))
	assert.Equal(t, "0.05", minor(5))
	assert.Equal(t, "100.00", minor(10_000))
	assert.Equal(t, "2500.50", minor(250_050))
	assert.Equal(t, "-3.25", minor(-325))
}

func TestDailyTransactionReport(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	svc := New(store.New(db), zerolog.Nop())
	date := time.Date(2026, 9, 1, 0, 0, 0, 0, time.Local)

	mock.ExpectQuery("SELECT (.+) FROM transactions").
		WithArgs("2026-09-01").
		WillReturnRows(sqlmock.NewRows([]string{
			"transaction_id", "account_number", "transaction_type", "channel", "amount",
			"balance_before", "balance_after", "transaction_date", "value_date", "status", "remarks",
		}).AddRow("TXN-1", "ACC-100", models.TxTypeWithdrawal, models.ChannelATM, int64(10_000),
			int64(50_000), int64(40_000), date, date, models.TxStatusSuccess, "").
			AddRow("TXN-2", "ACC-200", models.TxTypeDeposit, models.ChannelBranch, int64(20_000),
				int64(0), int64(20_000), date, date, models.TxStatusSuccess, ""))

	report, err := svc.DailyTransactionReport(context.Background(), date)
	assert.NoError(t, err)
	assert.Contains(t, report, "DAILY TRANSACTION REPORT 2026-09-01")
	assert.Contains(t, report, models.TxTypeWithdrawal)
	assert.Contains(t, report, "TOTAL DEBITS")
	assert.Contains(t, report, "100.00")
	assert.Contains(t, report, "200.00")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCardUsageReport(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	svc := New(store.New(db), zerolog.Nop())
	from := time.Date(2026, 8, 25, 0, 0, 0, 0, time.Local)
	to := time.Date(2026, 9, 1, 0, 0, 0, 0, time.Local)

	t.Run("masks the pan", func(t *testing.T) {
		mock.ExpectQuery("SELECT card_number, COUNT").
			WithArgs("2026-08-25", "2026-09-01").
			WillReturnRows(sqlmock.NewRows([]string{"card_number", "count", "sum"}).
				AddRow("4111111111111111", 3, int64(45_000)))

		report, err := svc.CardUsageReport(context.Background(), from, to)
		assert.NoError(t, err)
		assert.Contains(t, report, "**** **** **** 1111")
		assert.NotContains(t, report, "4111111111111111")
	})

	t.Run("quiet range", func(t *testing.T) {
		mock.ExpectQuery("SELECT card_number, COUNT").
			WithArgs("2026-08-25", "2026-09-01").
			WillReturnRows(sqlmock.NewRows([]string{"card_number", "count", "sum"}))

		report, err := svc.CardUsageReport(context.Background(), from, to)
		assert.NoError(t, err)
		assert.Contains(t, report, "NO ACTIVITY")
	})
}

func TestAccountStatusReport(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	svc := New(store.New(db), zerolog.Nop())

	mock.ExpectQuery("SELECT status, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count", "sum"}).
			AddRow(models.AccountStatusActive, 42, int64(12_345_600)).
			AddRow(models.AccountStatusClosed, 3, int64(0)))

	report, err := svc.AccountStatusReport(context.Background())
	assert.NoError(t, err)
	assert.Contains(t, report, models.AccountStatusActive)
	assert.Contains(t, report, "123456.00")
	assert.NoError(t, mock.ExpectationsWereMet())
}
