package models

import "time"

// Account types
const (
	AccountTypeSavings      = "SAVINGS"
	AccountTypeCurrent      = "CURRENT"
	AccountTypeFixedDeposit = "FIXED_DEPOSIT"
	AccountTypeSalary       = "SALARY"
)

// Account status values
const (
	AccountStatusActive   = "ACTIVE"
	AccountStatusInactive = "INACTIVE"
	AccountStatusClosed   = "CLOSED"
)

// Account represents a deposit account. Balance is held in minor units
// (paise/cents); floating point never touches balance arithmetic.
type Account struct {
	AccountNumber     string     `json:"account_number" db:"account_number"`
	CustomerID        string     `json:"customer_id" db:"customer_id"`
	AccountType       string     `json:"account_type" db:"account_type"`
	Balance           int64      `json:"balance" db:"balance"`
	Status            string     `json:"status" db:"status"`
	BranchCode        string     `json:"branch_code" db:"branch_code"`
	OpenedAt          time.Time  `json:"opened_at" db:"opened_at"`
	LastTransactionAt *time.Time `json:"last_transaction_at" db:"last_transaction_at"`
}
