// Package reports renders the operational end-of-day reports: daily
// transaction summary, card usage and account status.
package reports

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/finedge/corebank/internal/credentials"
	"github.com/finedge/corebank/internal/models"
	"github.com/finedge/corebank/internal/store"
)

// Service renders reports as plain text for the branch printer surface.
type Service struct {
	store *store.Store
	log   zerolog.Logger
}

// New returns a report service.
func New(st *store.Store, log zerolog.Logger) *Service {
	return &Service{store: st, log: log.With().Str("component", "reports").Logger()}
}

// DailySummary aggregates one day's postings.
type DailySummary struct {
	Date         time.Time
	CountByType  map[string]int
	AmountByType map[string]int64
	TotalDebits  int64
	TotalCredits int64
	Failed       int
}

// creditTypes add funds to the posting account.
var creditTypes = map[string]bool{
	models.TxTypeDeposit:        true,
	models.TxTypeInterestCredit: true,
}

// Summarise folds a day's transactions into totals. Zero-amount entries
// (inquiries, PIN changes) count but do not move the totals.
func Summarise(date time.Time, txs []models.Transaction) *DailySummary {
	sum := &DailySummary{
		Date:         date,
		CountByType:  make(map[string]int),
		AmountByType: make(map[string]int64),
	}
	for _, t := range txs {
		sum.CountByType[t.TransactionType]++
		if t.Status != models.TxStatusSuccess {
			sum.Failed++
			continue
		}
		sum.AmountByType[t.TransactionType] += t.Amount
		if creditTypes[t.TransactionType] {
			sum.TotalCredits += t.Amount
		} else if t.Amount > 0 {
			sum.TotalDebits += t.Amount
		}
	}
	return sum
}

// DailyTransactionReport renders the summary for one calendar day.
func (s *Service) DailyTransactionReport(ctx context.Context, date time.Time) (string, error) {
	txs, err := s.store.TransactionsOn(ctx, date)
	if err != nil {
		return "", err
	}
	sum := Summarise(date, txs)

	var sb strings.Builder
	fmt.Fprintf(&sb, "DAILY TRANSACTION REPORT %s\n", date.Format("2006-01-02"))
	sb.WriteString(strings.Repeat("-", 48) + "\n")

	types := make([]string, 0, len(sum.CountByType))
	for t := range sum.CountByType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(&sb, "%-20s %6d %15s\n", t, sum.CountByType[t], minor(sum.AmountByType[t]))
	}
	sb.WriteString(strings.Repeat("-", 48) + "\n")
	fmt.Fprintf(&sb, "%-20s %22s\n", "TOTAL DEBITS", minor(sum.TotalDebits))
	fmt.Fprintf(&sb, "%-20s %22s\n", "TOTAL CREDITS", minor(sum.TotalCredits))
	fmt.Fprintf(&sb, "%-20s %22d\n", "FAILED", sum.Failed)
	return sb.String(), nil
}

// CardUsageReport renders per-card withdrawal activity over a date range,
// PANs masked.
func (s *Service) CardUsageReport(ctx context.Context, from, to time.Time) (string, error) {
	usage, err := s.store.CardUsage(ctx, from, to)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "CARD USAGE REPORT %s TO %s\n", from.Format("2006-01-02"), to.Format("2006-01-02"))
	sb.WriteString(strings.Repeat("-", 48) + "\n")
	for _, row := range usage {
		fmt.Fprintf(&sb, "%-20s %6d %15s\n", credentials.MaskPAN(row.CardNumber), row.TxCount, minor(row.Total))
	}
	if len(usage) == 0 {
		sb.WriteString("NO ACTIVITY\n")
	}
	return sb.String(), nil
}

// AccountStatusReport renders the account population grouped by status.
func (s *Service) AccountStatusReport(ctx context.Context) (string, error) {
	summary, err := s.store.AccountStatusSummary(ctx)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("ACCOUNT STATUS REPORT\n")
	sb.WriteString(strings.Repeat("-", 48) + "\n")
	for _, row := range summary {
		fmt.Fprintf(&sb, "%-12s %8d %20s\n", row.Status, row.Count, minor(row.Total))
	}
	return sb.String(), nil
}

// minor renders minor units as a fixed-point decimal string. Rendering only;
// balances never pass through here on their way to the ledger.
func minor(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}
