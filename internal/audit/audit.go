// Package audit records operational audit entries, both to the store and to
// the security log. Security records flush before the business operation
// returns.
package audit

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"github.com/finedge/corebank/internal/models"
	"github.com/finedge/corebank/internal/store"
)

// Logger writes audit entries.
type Logger struct {
	store *store.Store
	log   zerolog.Logger
}

// NewLogger returns an audit logger over the given store.
func NewLogger(st *store.Store, log zerolog.Logger) *Logger {
	return &Logger{store: st, log: log.With().Str("component", "audit").Logger()}
}

// Success records a successful action inside the caller's transaction so the
// entry commits atomically with the business mutation.
func (a *Logger) Success(ctx context.Context, tx *sql.Tx, action, entityType, entityID, details string) error {
	entry := &models.AuditEntry{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
		Status:     models.AuditStatusSuccess,
		CreatedAt:  time.Now(),
	}
	if err := a.store.InsertAudit(ctx, tx, entry); err != nil {
		return err
	}
	a.log.Info().Str("action", action).Str("entity", entityID).Str("status", entry.Status).Msg(details)
	return nil
}

// Record writes a successful action outside any business transaction, used
// by administrative commands that mutate via single statements.
func (a *Logger) Record(ctx context.Context, action, entityType, entityID, details string) {
	entry := &models.AuditEntry{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
		Status:     models.AuditStatusSuccess,
		CreatedAt:  time.Now(),
	}
	if err := a.store.InsertAuditDirect(ctx, entry); err != nil {
		a.log.Error().Err(err).Str("action", action).Str("entity", entityID).Msg("audit write failed")
		return
	}
	a.log.Info().Str("action", action).Str("entity", entityID).Str("status", entry.Status).Msg(details)
}

// Failure records a failed action in its own short transaction. The business
// transaction has already rolled back (or never began); the audit row must
// survive regardless.
func (a *Logger) Failure(ctx context.Context, action, entityType, entityID, details string) {
	entry := &models.AuditEntry{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
		Status:     models.AuditStatusFailure,
		CreatedAt:  time.Now(),
	}
	if err := a.store.InsertAuditDirect(ctx, entry); err != nil {
		a.log.Error().Err(err).Str("action", action).Str("entity", entityID).Msg("failure audit write failed")
		return
	}
	a.log.Warn().Str("action", action).Str("entity", entityID).Str("status", entry.Status).Msg(details)
}
