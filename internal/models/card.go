package models

import "time"

// Card types
const (
	CardTypeDebit  = "DEBIT"
	CardTypeCredit = "CREDIT"
)

// Card status values
const (
	CardStatusActive  = "ACTIVE"
	CardStatusBlocked = "BLOCKED"
	CardStatusExpired = "EXPIRED"
)

// Channel identifiers used across transactions and daily limits
const (
	ChannelATM    = "ATM"
	ChannelPOS    = "POS"
	ChannelOnline = "ONLINE"
	ChannelBranch = "BRANCH"
	ChannelUPI    = "UPI"
)

// Card represents a payment card linked to an account. PinHash is the
// self-describing argon2id encoding; the raw PIN is never stored.
type Card struct {
	CardID           string    `json:"card_id" db:"card_id"`
	CardNumber       string    `json:"card_number" db:"card_number"`
	AccountNumber    string    `json:"account_number" db:"account_number"`
	CardType         string    `json:"card_type" db:"card_type"`
	ExpiryDate       time.Time `json:"expiry_date" db:"expiry_date"`
	PinHash          string    `json:"-" db:"pin_hash"`
	Status           string    `json:"status" db:"status"`
	DailyATMLimit    int64     `json:"daily_atm_limit" db:"daily_atm_limit"`
	DailyPOSLimit    int64     `json:"daily_pos_limit" db:"daily_pos_limit"`
	DailyOnlineLimit int64     `json:"daily_online_limit" db:"daily_online_limit"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// DailyLimit returns the per-channel daily spend cap for the card.
// Channels without a dedicated counter share the online limit.
func (c *Card) DailyLimit(channel string) int64 {
	switch channel {
	case ChannelATM:
		return c.DailyATMLimit
	case ChannelPOS:
		return c.DailyPOSLimit
	default:
		return c.DailyOnlineLimit
	}
}

// DailyWithdrawal is the cumulative withdrawal counter for one card on one
// calendar day. Keyed by (card_number, withdrawal_date).
type DailyWithdrawal struct {
	CardNumber     string    `json:"card_number" db:"card_number"`
	WithdrawalDate time.Time `json:"withdrawal_date" db:"withdrawal_date"`
	Amount         int64     `json:"amount" db:"amount"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}
