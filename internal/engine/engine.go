// Package engine posts debits, credits and transfers atomically against the
// store, emitting the transaction and audit records that describe each
// movement.
package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/finedge/corebank/internal/audit"
	"github.com/finedge/corebank/internal/authz"
	"github.com/finedge/corebank/internal/bankerr"
	"github.com/finedge/corebank/internal/config"
	"github.com/finedge/corebank/internal/credentials"
	"github.com/finedge/corebank/internal/models"
	"github.com/finedge/corebank/internal/store"
)

// Engine is the posting engine. One Post call is one atomic unit of work.
type Engine struct {
	store  *store.Store
	authz  *authz.Authorizer
	audit  *audit.Logger
	hasher *credentials.Hasher
	cfg    *config.Config
	retry  RetryPolicy
	log    zerolog.Logger
}

// New wires the engine with the retry policy from configuration.
func New(st *store.Store, az *authz.Authorizer, auditLog *audit.Logger, hasher *credentials.Hasher, cfg *config.Config, log zerolog.Logger) *Engine {
	return &Engine{
		store:  st,
		authz:  az,
		audit:  auditLog,
		hasher: hasher,
		cfg:    cfg,
		retry: RetryPolicy{
			MaxAttempts: cfg.PostingRetryAttempts,
			BaseBackoff: cfg.PostingRetryBackoff,
		},
		log: log.With().Str("component", "engine").Logger(),
	}
}

// auditedRejections are the business failures that produce a failure audit
// entry in their own short transaction.
var auditedRejections = map[bankerr.Code]bool{
	bankerr.CodeInsufficientFunds:  true,
	bankerr.CodeCardBlocked:        true,
	bankerr.CodeAccountInactive:    true,
	bankerr.CodeDailyLimitExceeded: true,
}

// Post validates and executes one posting intent. Transient store failures
// are retried with backoff; business rejections are reported with no state
// change beyond their failure audit entry.
func (e *Engine) Post(ctx context.Context, intent Intent) (*Result, error) {
	if !intent.Deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, intent.Deadline)
		defer cancel()
	}

	auth, err := e.authz.Authorize(ctx, authz.Intent{
		Channel:       intent.Channel,
		CardNumber:    intent.CardNumber,
		AccountNumber: intent.AccountNumber,
		PIN:           intent.PIN,
		Operation:     intent.Operation,
		Amount:        intent.Amount,
	})
	if err != nil {
		e.recordRejection(ctx, intent, err)
		return nil, err
	}

	var result *Result
	err = e.retry.Execute(ctx, func() error {
		var perr error
		result, perr = e.postOnce(ctx, intent, auth)
		return perr
	})
	if err != nil {
		e.recordRejection(ctx, intent, err)
		return nil, err
	}

	e.log.Info().
		Str("request_id", intent.RequestID).
		Str("transaction_id", result.TransactionID).
		Str("operation", intent.Operation).
		Str("channel", intent.Channel).
		Int64("amount", intent.Amount).
		Msg("posted")
	return result, nil
}

// postOnce runs the posting protocol inside a single store transaction.
func (e *Engine) postOnce(ctx context.Context, intent Intent, auth *authz.Result) (*Result, error) {
	now := time.Now()
	valueDate := day(now)

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	source := auth.AccountNumber
	internal := intent.Kind == KindTransfer && intent.TransferType == models.TransferTypeInternal

	// Accounts are locked in a fixed global order so concurrent transfers in
	// opposite directions cannot deadlock.
	lockOrder := []string{source}
	if internal {
		if intent.DestinationAccount == source {
			return nil, bankerr.New(bankerr.CodeAmountInvalid, "cannot transfer to the same account")
		}
		lockOrder = append(lockOrder, intent.DestinationAccount)
	}
	sort.Strings(lockOrder)

	locked := make(map[string]*models.Account, len(lockOrder))
	for _, num := range lockOrder {
		acct, lockErr := e.store.LockAccountForUpdate(ctx, tx, num)
		if lockErr != nil {
			if bankerr.CodeOf(lockErr) == bankerr.CodeNotFound {
				return nil, bankerr.New(bankerr.CodeAccountUnknown, "account not recognised")
			}
			return nil, lockErr
		}
		locked[num] = acct
	}

	src := locked[source]
	debit := intent.Kind != KindCredit
	if err := authz.RecheckUnderLock(src, debit, intent.Amount); err != nil {
		return nil, err
	}

	var dst *models.Account
	if internal {
		dst = locked[intent.DestinationAccount]
		if dst.Status != models.AccountStatusActive {
			return nil, bankerr.New(bankerr.CodeAccountInactive, "destination account is not active")
		}
	}

	srcBefore := src.Balance
	var srcAfter int64
	if debit {
		srcAfter = srcBefore - intent.Amount
	} else {
		srcAfter = srcBefore + intent.Amount
	}
	if err := e.assertLeg(intent, srcBefore, srcAfter, debit); err != nil {
		return nil, err
	}

	txID := "TXN-" + uuid.New().String()
	result := &Result{TransactionID: txID, SourceAccount: source, BalanceBefore: srcBefore, NewBalance: srcAfter}

	// Debit leg posts before the credit leg.
	if err := e.store.UpdateBalance(ctx, tx, source, srcAfter, now); err != nil {
		return nil, err
	}
	if err := e.store.InsertTransaction(ctx, tx, &models.Transaction{
		TransactionID:   txID,
		AccountNumber:   source,
		TransactionType: intent.Operation,
		Channel:         intent.Channel,
		Amount:          intent.Amount,
		BalanceBefore:   srcBefore,
		BalanceAfter:    srcAfter,
		TransactionDate: now,
		ValueDate:       valueDate,
		Status:          models.TxStatusSuccess,
		Remarks:         intent.Remarks,
	}); err != nil {
		return nil, err
	}

	if intent.Kind == KindTransfer {
		transferID := "TRF-" + uuid.New().String()
		result.TransferID = transferID

		if internal {
			dstBefore := dst.Balance
			dstAfter := dstBefore + intent.Amount
			if err := e.assertLeg(intent, dstBefore, dstAfter, false); err != nil {
				return nil, err
			}
			if err := e.store.UpdateBalance(ctx, tx, dst.AccountNumber, dstAfter, now); err != nil {
				return nil, err
			}
			if err := e.store.InsertTransaction(ctx, tx, &models.Transaction{
				TransactionID:   "TXN-" + uuid.New().String(),
				AccountNumber:   dst.AccountNumber,
				TransactionType: models.TxTypeDeposit,
				Channel:         intent.Channel,
				Amount:          intent.Amount,
				BalanceBefore:   dstBefore,
				BalanceAfter:    dstAfter,
				TransactionDate: now,
				ValueDate:       valueDate,
				Status:          models.TxStatusSuccess,
				Remarks:         "TRANSFER:" + transferID,
			}); err != nil {
				return nil, err
			}
		}

		if err := e.store.InsertTransfer(ctx, tx, &models.Transfer{
			TransferID:         transferID,
			TransactionID:      txID,
			SourceAccount:      source,
			DestinationAccount: intent.DestinationAccount,
			TransferType:       intent.TransferType,
			Amount:             intent.Amount,
			TransferDate:       now,
			Status:             models.TxStatusSuccess,
		}); err != nil {
			return nil, err
		}
	}

	if intent.Bill != nil {
		if err := e.store.InsertBillPayment(ctx, tx, &models.BillPayment{
			TransactionID: txID,
			BillType:      intent.Bill.BillType,
			BillReference: intent.Bill.BillReference,
			PaymentDate:   now,
			CardNumber:    intent.CardNumber,
		}); err != nil {
			return nil, err
		}
	}

	if auth.Card != nil && authz.CountsTowardDailyLimit(intent.Operation, intent.Channel) {
		// The pre-lock limit check is advisory; the conditional increment is
		// what enforces it against concurrent withdrawals on the same card.
		ok, err := e.store.UpsertDailyWithdrawal(ctx, tx, auth.Card.CardNumber, valueDate,
			intent.Amount, auth.Card.DailyLimit(intent.Channel))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, bankerr.New(bankerr.CodeDailyLimitExceeded, "daily limit exceeded")
		}
	}

	entity := source
	if auth.Card != nil {
		entity = credentials.MaskPAN(auth.Card.CardNumber)
	}
	if err := e.audit.Success(ctx, tx, intent.Operation, "ACCOUNT", entity,
		fmt.Sprintf("%s %d on %s via %s", intent.Operation, intent.Amount, source, intent.Channel)); err != nil {
		return nil, err
	}

	// A deadline that expires before commit rolls back; after commit the
	// posting stands.
	if err := ctx.Err(); err != nil {
		return nil, bankerr.Wrap(bankerr.CodeTimeout, "deadline expired before commit", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, bankerr.Wrap(bankerr.CodeStoreUnavailable, "commit failed", err)
	}
	committed = true
	return result, nil
}

// assertLeg checks the computed balances uphold the non-negative and
// delta invariants before anything is written. A violation is a fault in the
// engine itself, logged critical and never reported as a business outcome.
func (e *Engine) assertLeg(intent Intent, before, after int64, debit bool) error {
	violated := after < 0
	if debit {
		violated = violated || after != before-intent.Amount
	} else {
		violated = violated || after != before+intent.Amount || after < before
	}
	if violated {
		e.log.Error().
			Str("request_id", intent.RequestID).
			Int64("before", before).
			Int64("after", after).
			Int64("amount", intent.Amount).
			Msg("posting invariant violated, aborting request")
		return fmt.Errorf("posting invariant violated: before=%d after=%d amount=%d", before, after, intent.Amount)
	}
	return nil
}

// Reverse posts an opposite-sign transaction referencing the original in its
// remarks. The original row is never mutated, and a reversal cannot itself
// be reversed.
func (e *Engine) Reverse(ctx context.Context, channel, transactionID, reason string) (*Result, error) {
	orig, err := e.store.GetTransaction(ctx, transactionID)
	if err != nil {
		if bankerr.CodeOf(err) == bankerr.CodeNotFound {
			return nil, bankerr.New(bankerr.CodeNotFound, "original transaction not found")
		}
		return nil, err
	}
	if orig.Status != models.TxStatusSuccess {
		return nil, bankerr.New(bankerr.CodeConstraintViolated, "only successful transactions can be reversed")
	}
	if strings.HasPrefix(orig.Remarks, reversalPrefix) {
		return nil, bankerr.New(bankerr.CodeConstraintViolated, "a reversal cannot be reversed")
	}

	kind := KindCredit
	if oppositeType(orig.TransactionType) != models.TxTypeDeposit {
		kind = KindDebit
	}
	remarks := reversalPrefix + transactionID
	if reason != "" {
		remarks += " " + reason
	}
	return e.Post(ctx, Intent{
		RequestID:     "REV-" + transactionID,
		Kind:          kind,
		Channel:       channel,
		Operation:     oppositeType(orig.TransactionType),
		AccountNumber: orig.AccountNumber,
		Amount:        orig.Amount,
		Remarks:       remarks,
	})
}

// Balance answers a balance inquiry after full authorisation (card status,
// PIN). It posts no value.
func (e *Engine) Balance(ctx context.Context, channel, cardNumber, pin string) (int64, string, error) {
	auth, err := e.authz.Authorize(ctx, authz.Intent{
		Channel:    channel,
		CardNumber: cardNumber,
		PIN:        pin,
		Operation:  models.TxTypeBalanceInquiry,
	})
	if err != nil {
		return 0, "", err
	}
	return auth.Balance, auth.AccountNumber, nil
}

// VerifyPIN answers a standalone PIN verification. The full card chain runs
// (existence, status, expiry, PIN) and nothing is posted or returned beyond
// the outcome.
func (e *Engine) VerifyPIN(ctx context.Context, channel, cardNumber, pin string) error {
	_, err := e.authz.Authorize(ctx, authz.Intent{
		Channel:    channel,
		CardNumber: cardNumber,
		PIN:        pin,
		Operation:  models.TxTypePinVerification,
	})
	return err
}

// MiniStatement returns the newest transactions for the card's account.
func (e *Engine) MiniStatement(ctx context.Context, channel, cardNumber, pin string, limit int) ([]models.Transaction, error) {
	auth, err := e.authz.Authorize(ctx, authz.Intent{
		Channel:    channel,
		CardNumber: cardNumber,
		PIN:        pin,
		Operation:  models.TxTypeMiniStatement,
	})
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	return e.store.RecentTransactions(ctx, auth.AccountNumber, limit)
}

// ChangePIN verifies the current PIN, stores a fresh argon2id hash of the
// new one and records a zero-amount PIN_CHANGE transaction plus audit entry.
func (e *Engine) ChangePIN(ctx context.Context, channel, cardNumber, oldPIN, newPIN string) error {
	auth, err := e.authz.Authorize(ctx, authz.Intent{
		Channel:    channel,
		CardNumber: cardNumber,
		PIN:        oldPIN,
		Operation:  models.TxTypePinChange,
	})
	if err != nil {
		return err
	}
	if len(newPIN) < 4 {
		return bankerr.New(bankerr.CodeAmountInvalid, "new PIN too short")
	}

	hash, err := e.hasher.HashPIN(newPIN)
	if err != nil {
		return bankerr.Wrap(bankerr.CodeStoreUnavailable, "pin hashing failed", err)
	}

	// The hash rotation and its record commit or roll back together.
	now := time.Now()
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()
	if err := e.store.UpdateCardPinHash(ctx, tx, cardNumber, hash); err != nil {
		return err
	}
	if err := e.store.InsertTransaction(ctx, tx, &models.Transaction{
		TransactionID:   "TXN-" + uuid.New().String(),
		AccountNumber:   auth.AccountNumber,
		TransactionType: models.TxTypePinChange,
		Channel:         channel,
		Amount:          0,
		BalanceBefore:   auth.Balance,
		BalanceAfter:    auth.Balance,
		TransactionDate: now,
		ValueDate:       day(now),
		Status:          models.TxStatusSuccess,
	}); err != nil {
		return err
	}
	if err := e.audit.Success(ctx, tx, "PIN_CHANGE", "CARD", credentials.MaskPAN(cardNumber), "pin changed"); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return bankerr.Wrap(bankerr.CodeStoreUnavailable, "commit failed", err)
	}
	committed = true
	return nil
}

// recordRejection writes the failure audit entry the spec requires for
// business rejections. PIN failures are audited inside authorisation.
func (e *Engine) recordRejection(ctx context.Context, intent Intent, err error) {
	code := bankerr.CodeOf(err)
	if !auditedRejections[code] {
		return
	}
	entity := intent.AccountNumber
	if intent.CardNumber != "" {
		entity = credentials.MaskPAN(intent.CardNumber)
	}
	e.audit.Failure(ctx, intent.Operation, "ACCOUNT", entity,
		fmt.Sprintf("rejected %s: %s", intent.Operation, code))
}

// day truncates to local midnight, the daily-limit reset boundary.
func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
