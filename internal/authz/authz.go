// Package authz resolves a card-or-account identifier to its account and
// enforces card status, PIN, amount caps and daily limits ahead of posting.
package authz

import (
	"context"
	"time"

	"github.com/ShiraazMoollatjie/goluhn"
	"github.com/rs/zerolog"

	"github.com/finedge/corebank/internal/audit"
	"github.com/finedge/corebank/internal/bankerr"
	"github.com/finedge/corebank/internal/config"
	"github.com/finedge/corebank/internal/credentials"
	"github.com/finedge/corebank/internal/models"
	"github.com/finedge/corebank/internal/store"
)

// Intent is an authorisation request from a channel.
type Intent struct {
	Channel       string
	CardNumber    string
	AccountNumber string
	PIN           string
	Operation     string
	Amount        int64
}

// Result carries the resolved account and the advisory (pre-lock) balance.
type Result struct {
	AccountNumber string
	Balance       int64
	Card          *models.Card
}

// Authorizer runs the ordered check chain. The first failing check wins and
// later checks are not evaluated.
type Authorizer struct {
	store *store.Store
	cfg   *config.Config
	audit *audit.Logger
	log   zerolog.Logger
}

// New returns an Authorizer.
func New(st *store.Store, cfg *config.Config, auditLog *audit.Logger, log zerolog.Logger) *Authorizer {
	return &Authorizer{
		store: st,
		cfg:   cfg,
		audit: auditLog,
		log:   log.With().Str("component", "authz").Logger(),
	}
}

// debitOperations draw funds from the resolved account.
var debitOperations = map[string]bool{
	models.TxTypeWithdrawal:  true,
	models.TxTypePayment:     true,
	models.TxTypeBillPayment: true,
	models.TxTypeTransfer:    true,
}

// valueMoving operations mutate balances and are rejected in maintenance mode.
var valueMoving = map[string]bool{
	models.TxTypeWithdrawal:     true,
	models.TxTypeDeposit:        true,
	models.TxTypePayment:        true,
	models.TxTypeBillPayment:    true,
	models.TxTypeTransfer:       true,
	models.TxTypeInterestCredit: true,
}

// pinRequired operations must present the cardholder PIN when a card is the
// target identifier.
var pinRequired = map[string]bool{
	models.TxTypeWithdrawal:      true,
	models.TxTypePayment:         true,
	models.TxTypeBillPayment:     true,
	models.TxTypeTransfer:        true,
	models.TxTypeBalanceInquiry:  true,
	models.TxTypeMiniStatement:   true,
	models.TxTypePinVerification: true,
	models.TxTypePinChange:       true,
}

// withdrawalChannels count toward the per-card daily withdrawal counter.
var withdrawalChannels = map[string]bool{
	models.ChannelATM:    true,
	models.ChannelPOS:    true,
	models.ChannelOnline: true,
}

// CountsTowardDailyLimit reports whether a successful debit on this channel
// increments the daily withdrawal counter.
func CountsTowardDailyLimit(operation, channel string) bool {
	return debitOperations[operation] && withdrawalChannels[channel]
}

// IsDebit reports whether the operation draws funds.
func IsDebit(operation string) bool { return debitOperations[operation] }

// Authorize validates the intent. Balance and status results are advisory;
// the posting engine re-runs RecheckUnderLock once the row is locked.
func (a *Authorizer) Authorize(ctx context.Context, intent Intent) (*Result, error) {
	// 1. Maintenance mode gates every non-administrative channel.
	if a.cfg.MaintenanceMode() && intent.Channel != models.ChannelBranch && valueMoving[intent.Operation] {
		return nil, bankerr.New(bankerr.CodeSystemUnavailable, "service temporarily unavailable")
	}

	var card *models.Card
	accountNumber := intent.AccountNumber

	if intent.CardNumber != "" {
		// 2. Card existence. A PAN that fails its checksum can never match
		// a card row, so reject it before touching the store.
		if err := goluhn.Validate(intent.CardNumber); err != nil {
			return nil, bankerr.New(bankerr.CodeCardUnknown, "card not recognised")
		}
		var err error
		card, err = a.store.GetCardByNumber(ctx, intent.CardNumber)
		if err != nil {
			if bankerr.CodeOf(err) == bankerr.CodeNotFound {
				return nil, bankerr.New(bankerr.CodeCardUnknown, "card not recognised")
			}
			return nil, err
		}

		// 3. Card status.
		if err := checkCardStatus(card); err != nil {
			return nil, err
		}

		// 4. PIN.
		if pinRequired[intent.Operation] {
			ok, err := credentials.VerifyPIN(intent.PIN, card.PinHash)
			if err != nil || !ok {
				a.audit.Failure(ctx, "PIN_VERIFY", "CARD", credentials.MaskPAN(card.CardNumber), "pin verification failed")
				return nil, bankerr.New(bankerr.CodePinInvalid, "incorrect PIN")
			}
		}
		accountNumber = card.AccountNumber
	}

	if valueMoving[intent.Operation] {
		// 5. Amount sanity.
		if intent.Amount <= 0 {
			return nil, bankerr.New(bankerr.CodeAmountInvalid, "amount must be positive")
		}
		if cap := a.cfg.PerTransactionCap(intent.Channel); intent.Amount > cap {
			return nil, bankerr.New(bankerr.CodePerTransactionLimitExceeded, "amount exceeds channel limit")
		}

		// 6. Daily limit, tracked per channel per card. Advisory here; the
		// posting engine's conditional counter increment enforces it.
		if card != nil && CountsTowardDailyLimit(intent.Operation, intent.Channel) {
			spentToday, err := a.store.DailyWithdrawalAmount(ctx, card.CardNumber, today())
			if err != nil {
				return nil, err
			}
			if spentToday+intent.Amount > card.DailyLimit(intent.Channel) {
				return nil, bankerr.New(bankerr.CodeDailyLimitExceeded, "daily limit exceeded")
			}
		}
	}

	// 7. Account resolution.
	if accountNumber == "" {
		return nil, bankerr.New(bankerr.CodeAccountUnknown, "account not recognised")
	}
	acct, err := a.store.GetAccount(ctx, accountNumber)
	if err != nil {
		if bankerr.CodeOf(err) == bankerr.CodeNotFound {
			return nil, bankerr.New(bankerr.CodeAccountUnknown, "account not recognised")
		}
		return nil, err
	}
	if acct.Status != models.AccountStatusActive {
		return nil, bankerr.New(bankerr.CodeAccountInactive, "account is not active")
	}

	// 8. Sufficient funds, advisory until the posting engine holds the lock.
	if IsDebit(intent.Operation) && acct.Balance < intent.Amount {
		return nil, bankerr.New(bankerr.CodeInsufficientFunds, "insufficient funds")
	}

	return &Result{AccountNumber: acct.AccountNumber, Balance: acct.Balance, Card: card}, nil
}

// RecheckUnderLock re-runs the balance- and status-dependent checks against
// the locked row. Pre-lock results are advisory only.
func RecheckUnderLock(acct *models.Account, debit bool, amount int64) error {
	if acct.Status != models.AccountStatusActive {
		return bankerr.New(bankerr.CodeAccountInactive, "account is not active")
	}
	if debit && acct.Balance < amount {
		return bankerr.New(bankerr.CodeInsufficientFunds, "insufficient funds")
	}
	return nil
}

func checkCardStatus(card *models.Card) error {
	switch {
	case card.Status == models.CardStatusBlocked:
		return bankerr.New(bankerr.CodeCardBlocked, "card is blocked")
	case card.Status == models.CardStatusExpired, !card.ExpiryDate.IsZero() && card.ExpiryDate.Before(time.Now()):
		return bankerr.New(bankerr.CodeCardExpired, "card has expired")
	case card.Status != models.CardStatusActive:
		return bankerr.New(bankerr.CodeCardBlocked, "card is not active")
	}
	return nil
}

// today is the current calendar day at local midnight; daily limits reset
// on the local date boundary.
func today() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
