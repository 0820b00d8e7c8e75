package engine

import (
	"time"

	"github.com/finedge/corebank/internal/models"
)

// IntentKind tags the shape of a posting request.
type IntentKind int

const (
	// KindDebit draws amount from one account (withdrawal, payment, bill).
	KindDebit IntentKind = iota
	// KindCredit adds amount to one account (deposit, interest).
	KindCredit
	// KindTransfer moves amount from a source to a destination account.
	KindTransfer
)

// BillDetails carries bill metadata for BILL_PAYMENT debits.
type BillDetails struct {
	BillType      string
	BillReference string
}

// Intent is one posting request built by a channel. Amount is minor units.
// Either CardNumber or AccountNumber identifies the source; for transfers
// DestinationAccount names the credit side.
type Intent struct {
	RequestID          string
	Kind               IntentKind
	Channel            string
	Operation          string
	CardNumber         string
	PIN                string
	AccountNumber      string
	DestinationAccount string
	TransferType       string
	Amount             int64
	Remarks            string
	Bill               *BillDetails
	Deadline           time.Time
}

// Result is the outcome of a successful posting.
type Result struct {
	TransactionID string
	TransferID    string
	SourceAccount string
	BalanceBefore int64
	NewBalance    int64
}

// reversalPrefix marks a transaction row as the reversal of another; a row
// carrying it cannot itself be reversed.
const reversalPrefix = "REVERSAL:"

// creditOperation maps a debit transaction type to the type used for the
// opposite-sign reversal leg, and vice versa.
func oppositeType(txType string) string {
	switch txType {
	case models.TxTypeDeposit, models.TxTypeInterestCredit:
		return models.TxTypeWithdrawal
	default:
		return models.TxTypeDeposit
	}
}
