package models

import "time"

// Transaction types
const (
	TxTypeWithdrawal      = "WITHDRAWAL"
	TxTypeDeposit         = "DEPOSIT"
	TxTypeTransfer        = "TRANSFER"
	TxTypePayment         = "PAYMENT"
	TxTypeBalanceInquiry  = "BALANCE_INQUIRY"
	TxTypeMiniStatement   = "MINI_STATEMENT"
	TxTypePinVerification = "PIN_VERIFICATION"
	TxTypePinChange       = "PIN_CHANGE"
	TxTypeInterestCredit  = "INTEREST_CREDIT"
	TxTypeBillPayment     = "BILL_PAYMENT"
)

// Transaction status values
const (
	TxStatusSuccess  = "SUCCESS"
	TxStatusFailed   = "FAILED"
	TxStatusReversed = "REVERSED"
)

// Transfer types
const (
	TransferTypeInternal = "INTERNAL"
	TransferTypeExternal = "EXTERNAL"
)

// Transaction is one posted ledger movement on a single account. Amount,
// BalanceBefore and BalanceAfter are minor units. Rows with status SUCCESS
// are append-only; corrections are posted as new reversal rows.
type Transaction struct {
	TransactionID   string    `json:"transaction_id" db:"transaction_id"`
	AccountNumber   string    `json:"account_number" db:"account_number"`
	TransactionType string    `json:"transaction_type" db:"transaction_type"`
	Channel         string    `json:"channel" db:"channel"`
	Amount          int64     `json:"amount" db:"amount"`
	BalanceBefore   int64     `json:"balance_before" db:"balance_before"`
	BalanceAfter    int64     `json:"balance_after" db:"balance_after"`
	TransactionDate time.Time `json:"transaction_date" db:"transaction_date"`
	ValueDate       time.Time `json:"value_date" db:"value_date"`
	Status          string    `json:"status" db:"status"`
	Remarks         string    `json:"remarks,omitempty" db:"remarks"`
}

// Transfer correlates the two legs of an account-to-account movement.
// TransactionID references the debit leg.
type Transfer struct {
	TransferID         string    `json:"transfer_id" db:"transfer_id"`
	TransactionID      string    `json:"transaction_id" db:"transaction_id"`
	SourceAccount      string    `json:"source_account" db:"source_account"`
	DestinationAccount string    `json:"destination_account" db:"destination_account"`
	TransferType       string    `json:"transfer_type" db:"transfer_type"`
	Amount             int64     `json:"amount" db:"amount"`
	TransferDate       time.Time `json:"transfer_date" db:"transfer_date"`
	Status             string    `json:"status" db:"status"`
}

// BillPayment records the bill details behind a BILL_PAYMENT transaction.
type BillPayment struct {
	TransactionID string    `json:"transaction_id" db:"transaction_id"`
	BillType      string    `json:"bill_type" db:"bill_type"`
	BillReference string    `json:"bill_reference" db:"bill_reference"`
	PaymentDate   time.Time `json:"payment_date" db:"payment_date"`
	CardNumber    string    `json:"card_number" db:"card_number"`
}
