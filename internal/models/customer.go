package models

import "time"

// CustomerStatus values
const (
	CustomerStatusActive    = "ACTIVE"
	CustomerStatusInactive  = "INACTIVE"
	CustomerStatusSuspended = "SUSPENDED"
)

// KYCStatus values
const (
	KYCStatusPending   = "PENDING"
	KYCStatusCompleted = "COMPLETED"
)

// Customer represents a bank customer who owns zero or more accounts
type Customer struct {
	CustomerID  string    `json:"customer_id" db:"customer_id"`
	Name        string    `json:"name" db:"name"`
	Email       string    `json:"email" db:"email"`
	PhoneNumber string    `json:"phone_number" db:"phone_number"`
	Address     string    `json:"address" db:"address"`
	Status      string    `json:"status" db:"status"`
	KYCStatus   string    `json:"kyc_status" db:"kyc_status"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
