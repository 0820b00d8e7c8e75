// Package store provides durable, transactional access to customers,
// accounts, cards, transactions, daily-withdrawal counters and audit entries.
// Every mutator runs under a caller-supplied *sql.Tx; every external input
// binds through a query parameter, never string concatenation.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/finedge/corebank/internal/models"
)

// Store wraps the pooled ledger database.
type Store struct {
	db *sql.DB
}

// New returns a Store over an initialised pool.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying pool for liveness probes.
func (s *Store) DB() *sql.DB { return s.db }

// Begin opens a transaction.
func (s *Store) Begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapError(err)
	}
	return tx, nil
}

// LockAccountForUpdate reads an account's balance row with a row-level lock.
// Until commit or rollback no other session can read-for-update the same row.
func (s *Store) LockAccountForUpdate(ctx context.Context, tx *sql.Tx, accountNumber string) (*models.Account, error) {
	var acct models.Account
	err := tx.QueryRowContext(ctx, `
		SELECT account_number, customer_id, account_type, balance, status, branch_code, opened_at, last_transaction_at
		FROM accounts
		WHERE account_number = $1
		FOR UPDATE`, accountNumber).
		Scan(&acct.AccountNumber, &acct.CustomerID, &acct.AccountType, &acct.Balance,
			&acct.Status, &acct.BranchCode, &acct.OpenedAt, &acct.LastTransactionAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &acct, nil
}

// UpdateBalance writes a new balance and stamps the last transaction time.
func (s *Store) UpdateBalance(ctx context.Context, tx *sql.Tx, accountNumber string, newBalance int64, now time.Time) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $1, last_transaction_at = $2
		WHERE account_number = $3`, newBalance, now, accountNumber)
	if err != nil {
		return mapError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if n == 0 {
		return mapError(sql.ErrNoRows)
	}
	return nil
}

// InsertTransaction appends one transaction leg.
func (s *Store) InsertTransaction(ctx context.Context, tx *sql.Tx, t *models.Transaction) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions
		(transaction_id, account_number, transaction_type, channel, amount,
		 balance_before, balance_after, transaction_date, value_date, status, remarks)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.TransactionID, t.AccountNumber, t.TransactionType, t.Channel, t.Amount,
		t.BalanceBefore, t.BalanceAfter, t.TransactionDate, t.ValueDate, t.Status, t.Remarks)
	return mapError(err)
}

// InsertTransfer appends the transfer correlation row.
func (s *Store) InsertTransfer(ctx context.Context, tx *sql.Tx, tr *models.Transfer) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transfers
		(transfer_id, transaction_id, source_account, destination_account, transfer_type, amount, transfer_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		tr.TransferID, tr.TransactionID, tr.SourceAccount, tr.DestinationAccount,
		tr.TransferType, tr.Amount, tr.TransferDate, tr.Status)
	return mapError(err)
}

// UpsertDailyWithdrawal inserts the counter row on the first withdrawal of a
// day and atomically increments it thereafter. The increment is refused when
// the new total would exceed limit; the refusal reports false with no row
// written. A concurrent increment blocks on the row lock, so the refused
// total is always the committed one.
func (s *Store) UpsertDailyWithdrawal(ctx context.Context, tx *sql.Tx, cardNumber string, date time.Time, delta, limit int64) (bool, error) {
	result, err := tx.ExecContext(ctx, `
		INSERT INTO daily_withdrawals (card_number, withdrawal_date, amount, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (card_number, withdrawal_date)
		DO UPDATE SET amount = daily_withdrawals.amount + EXCLUDED.amount, updated_at = NOW()
		WHERE daily_withdrawals.amount + EXCLUDED.amount <= $4`,
		cardNumber, date.Format("2006-01-02"), delta, limit)
	if err != nil {
		return false, mapError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, mapError(err)
	}
	return n > 0, nil
}

// InsertBillPayment appends the bill details behind a BILL_PAYMENT leg.
func (s *Store) InsertBillPayment(ctx context.Context, tx *sql.Tx, bp *models.BillPayment) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO bill_payments (transaction_id, bill_type, bill_reference, payment_date, card_number)
		VALUES ($1, $2, $3, $4, $5)`,
		bp.TransactionID, bp.BillType, bp.BillReference, bp.PaymentDate, bp.CardNumber)
	return mapError(err)
}

// InsertAudit appends an audit entry inside the caller's transaction.
func (s *Store) InsertAudit(ctx context.Context, tx *sql.Tx, e *models.AuditEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO audit_entries (action, entity_type, entity_id, details, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.Action, e.EntityType, e.EntityID, e.Details, e.Status, e.CreatedAt)
	return mapError(err)
}

// InsertAuditDirect appends an audit entry in its own short transaction,
// used to record failures after the business transaction rolled back.
func (s *Store) InsertAuditDirect(ctx context.Context, e *models.AuditEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_entries (action, entity_type, entity_id, details, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.Action, e.EntityType, e.EntityID, e.Details, e.Status, e.CreatedAt)
	return mapError(err)
}

// GetCardByNumber resolves a PAN to its card row.
func (s *Store) GetCardByNumber(ctx context.Context, cardNumber string) (*models.Card, error) {
	var c models.Card
	err := s.db.QueryRowContext(ctx, `
		SELECT card_id, card_number, account_number, card_type, expiry_date, pin_hash,
		       status, daily_atm_limit, daily_pos_limit, daily_online_limit, created_at
		FROM cards
		WHERE card_number = $1`, cardNumber).
		Scan(&c.CardID, &c.CardNumber, &c.AccountNumber, &c.CardType, &c.ExpiryDate,
			&c.PinHash, &c.Status, &c.DailyATMLimit, &c.DailyPOSLimit, &c.DailyOnlineLimit, &c.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &c, nil
}

// GetAccount reads an account without locking it.
func (s *Store) GetAccount(ctx context.Context, accountNumber string) (*models.Account, error) {
	var acct models.Account
	err := s.db.QueryRowContext(ctx, `
		SELECT account_number, customer_id, account_type, balance, status, branch_code, opened_at, last_transaction_at
		FROM accounts
		WHERE account_number = $1`, accountNumber).
		Scan(&acct.AccountNumber, &acct.CustomerID, &acct.AccountType, &acct.Balance,
			&acct.Status, &acct.BranchCode, &acct.OpenedAt, &acct.LastTransactionAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &acct, nil
}

// GetCustomer reads a customer row.
func (s *Store) GetCustomer(ctx context.Context, customerID string) (*models.Customer, error) {
	var cu models.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT customer_id, name, email, phone_number, address, status, kyc_status, created_at
		FROM customers
		WHERE customer_id = $1`, customerID).
		Scan(&cu.CustomerID, &cu.Name, &cu.Email, &cu.PhoneNumber, &cu.Address,
			&cu.Status, &cu.KYCStatus, &cu.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &cu, nil
}

// DailyWithdrawalAmount returns the cumulative spend for (card, date),
// zero when no counter row exists yet.
func (s *Store) DailyWithdrawalAmount(ctx context.Context, cardNumber string, date time.Time) (int64, error) {
	var amount int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM daily_withdrawals
		WHERE card_number = $1 AND withdrawal_date = $2`,
		cardNumber, date.Format("2006-01-02")).Scan(&amount)
	if err != nil {
		return 0, mapError(err)
	}
	return amount, nil
}

// GetTransaction reads one transaction row.
func (s *Store) GetTransaction(ctx context.Context, transactionID string) (*models.Transaction, error) {
	var t models.Transaction
	err := s.db.QueryRowContext(ctx, `
		SELECT transaction_id, account_number, transaction_type, channel, amount,
		       balance_before, balance_after, transaction_date, value_date, status, COALESCE(remarks, '')
		FROM transactions
		WHERE transaction_id = $1`, transactionID).
		Scan(&t.TransactionID, &t.AccountNumber, &t.TransactionType, &t.Channel, &t.Amount,
			&t.BalanceBefore, &t.BalanceAfter, &t.TransactionDate, &t.ValueDate, &t.Status, &t.Remarks)
	if err != nil {
		return nil, mapError(err)
	}
	return &t, nil
}

// RecentTransactions returns the newest transactions for an account,
// newest first.
func (s *Store) RecentTransactions(ctx context.Context, accountNumber string, limit int) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT transaction_id, account_number, transaction_type, channel, amount,
		       balance_before, balance_after, transaction_date, value_date, status, COALESCE(remarks, '')
		FROM transactions
		WHERE account_number = $1
		ORDER BY transaction_date DESC
		LIMIT $2`, accountNumber, limit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// TransactionsOn returns every transaction posted on one calendar day.
func (s *Store) TransactionsOn(ctx context.Context, date time.Time) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT transaction_id, account_number, transaction_type, channel, amount,
		       balance_before, balance_after, transaction_date, value_date, status, COALESCE(remarks, '')
		FROM transactions
		WHERE transaction_date::date = $1
		ORDER BY transaction_date`, date.Format("2006-01-02"))
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func scanTransactions(rows *sql.Rows) ([]models.Transaction, error) {
	txs := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.TransactionID, &t.AccountNumber, &t.TransactionType, &t.Channel,
			&t.Amount, &t.BalanceBefore, &t.BalanceAfter, &t.TransactionDate, &t.ValueDate,
			&t.Status, &t.Remarks); err != nil {
			return nil, mapError(err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return txs, nil
}

// UpdateCardStatus transitions a card's status. The caller records the audit
// entry for the transition.
func (s *Store) UpdateCardStatus(ctx context.Context, cardNumber, status string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE cards SET status = $1 WHERE card_number = $2`, status, cardNumber)
	if err != nil {
		return mapError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if n == 0 {
		return mapError(sql.ErrNoRows)
	}
	return nil
}

// UpdateCardPinHash stores a freshly hashed PIN inside the caller's
// transaction, so the rotation commits together with its record.
func (s *Store) UpdateCardPinHash(ctx context.Context, tx *sql.Tx, cardNumber, pinHash string) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE cards SET pin_hash = $1 WHERE card_number = $2`, pinHash, cardNumber)
	if err != nil {
		return mapError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if n == 0 {
		return mapError(sql.ErrNoRows)
	}
	return nil
}

// UpdateCardLimits replaces the per-channel daily limits.
func (s *Store) UpdateCardLimits(ctx context.Context, cardNumber string, atm, pos, online int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE cards
		SET daily_atm_limit = $1, daily_pos_limit = $2, daily_online_limit = $3
		WHERE card_number = $4`, atm, pos, online, cardNumber)
	if err != nil {
		return mapError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if n == 0 {
		return mapError(sql.ErrNoRows)
	}
	return nil
}

// GetOperatorCredentials reads an operator's password hash and role.
func (s *Store) GetOperatorCredentials(ctx context.Context, operatorID string) (hash, role string, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT password_hash, role FROM operators WHERE operator_id = $1`, operatorID).
		Scan(&hash, &role)
	if err != nil {
		return "", "", mapError(err)
	}
	return hash, role, nil
}

// ResolveVPA maps a virtual payment address to its account number.
func (s *Store) ResolveVPA(ctx context.Context, vpa string) (string, error) {
	var accountNumber string
	err := s.db.QueryRowContext(ctx, `
		SELECT account_number FROM vpa_aliases WHERE vpa = $1`, vpa).Scan(&accountNumber)
	if err != nil {
		return "", mapError(err)
	}
	return accountNumber, nil
}

// CardUsageRow is one line of the card usage report.
type CardUsageRow struct {
	CardNumber string
	TxCount    int64
	Total      int64
}

// CardUsage aggregates successful withdrawal activity per card over a range.
func (s *Store) CardUsage(ctx context.Context, from, to time.Time) ([]CardUsageRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT card_number, COUNT(*), COALESCE(SUM(amount), 0)
		FROM daily_withdrawals
		WHERE withdrawal_date BETWEEN $1 AND $2
		GROUP BY card_number
		ORDER BY card_number`, from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	usage := []CardUsageRow{}
	for rows.Next() {
		var r CardUsageRow
		if err := rows.Scan(&r.CardNumber, &r.TxCount, &r.Total); err != nil {
			return nil, mapError(err)
		}
		usage = append(usage, r)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return usage, nil
}

// AccountStatusRow is one line of the account status report.
type AccountStatusRow struct {
	Status string
	Count  int64
	Total  int64
}

// AccountStatusSummary groups accounts by status with balance totals.
func (s *Store) AccountStatusSummary(ctx context.Context) ([]AccountStatusRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(balance), 0)
		FROM accounts
		GROUP BY status
		ORDER BY status`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	summary := []AccountStatusRow{}
	for rows.Next() {
		var r AccountStatusRow
		if err := rows.Scan(&r.Status, &r.Count, &r.Total); err != nil {
			return nil, mapError(err)
		}
		summary = append(summary, r)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return summary, nil
}
