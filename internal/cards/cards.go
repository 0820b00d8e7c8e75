// Package cards owns card lifecycle administration: block, unblock and
// daily-limit changes, each recorded in the audit trail.
package cards

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/finedge/corebank/internal/audit"
	"github.com/finedge/corebank/internal/bankerr"
	"github.com/finedge/corebank/internal/credentials"
	"github.com/finedge/corebank/internal/models"
	"github.com/finedge/corebank/internal/store"
)

// Service applies card administration commands.
type Service struct {
	store *store.Store
	audit *audit.Logger
	log   zerolog.Logger
}

// New returns a card administration service.
func New(st *store.Store, auditLog *audit.Logger, log zerolog.Logger) *Service {
	return &Service{
		store: st,
		audit: auditLog,
		log:   log.With().Str("component", "cards").Logger(),
	}
}

// Block transitions a card to BLOCKED. Blocking an already blocked card is a
// no-op that still leaves an audit entry.
func (s *Service) Block(ctx context.Context, cardNumber, operatorID string) error {
	card, err := s.get(ctx, cardNumber)
	if err != nil {
		return err
	}
	if err := s.store.UpdateCardStatus(ctx, card.CardNumber, models.CardStatusBlocked); err != nil {
		return err
	}
	s.audit.Record(ctx, "CARD_BLOCK", "CARD", credentials.MaskPAN(card.CardNumber), "blocked by "+operatorID)
	return nil
}

// Unblock returns a blocked card to ACTIVE. Expired cards stay expired.
func (s *Service) Unblock(ctx context.Context, cardNumber, operatorID string) error {
	card, err := s.get(ctx, cardNumber)
	if err != nil {
		return err
	}
	if card.Status == models.CardStatusExpired {
		return bankerr.New(bankerr.CodeCardExpired, "expired card cannot be unblocked")
	}
	if err := s.store.UpdateCardStatus(ctx, card.CardNumber, models.CardStatusActive); err != nil {
		return err
	}
	s.audit.Record(ctx, "CARD_UNBLOCK", "CARD", credentials.MaskPAN(card.CardNumber), "unblocked by "+operatorID)
	return nil
}

// SetLimits replaces the per-channel daily limits. Limits are minor units
// and must be non-negative.
func (s *Service) SetLimits(ctx context.Context, cardNumber, operatorID string, atm, pos, online int64) error {
	if atm < 0 || pos < 0 || online < 0 {
		return bankerr.New(bankerr.CodeAmountInvalid, "limits must be non-negative")
	}
	card, err := s.get(ctx, cardNumber)
	if err != nil {
		return err
	}
	if err := s.store.UpdateCardLimits(ctx, card.CardNumber, atm, pos, online); err != nil {
		return err
	}
	s.audit.Record(ctx, "CARD_LIMITS", "CARD", credentials.MaskPAN(card.CardNumber), "limits changed by "+operatorID)
	return nil
}

func (s *Service) get(ctx context.Context, cardNumber string) (*models.Card, error) {
	card, err := s.store.GetCardByNumber(ctx, cardNumber)
	if err != nil {
		if bankerr.CodeOf(err) == bankerr.CodeNotFound {
			return nil, bankerr.New(bankerr.CodeCardUnknown, "card not recognised")
		}
		return nil, err
	}
	return card, nil
}
