// Package settlement hands external transfers off to the interbank clearing
// system as ISO-20022 pacs.008 credit transfer messages, queued in Redis for
// the settlement dispatcher.
package settlement

import (
	"context"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"
	"github.com/rs/zerolog"

	"github.com/finedge/corebank/internal/bankerr"
	"github.com/finedge/corebank/internal/models"
)

// queueKey is the Redis list the dispatcher drains.
const queueKey = "settlement_queue"

// Service builds and queues settlement messages. A nil Redis client logs the
// message and drops it, which keeps single-node deployments functional.
type Service struct {
	redis    *redis.Client
	log      zerolog.Logger
	bic      string
	currency string
}

// New returns a settlement service identifying this institution by bic.
func New(redisClient *redis.Client, bic, currency string, log zerolog.Logger) *Service {
	return &Service{
		redis:    redisClient,
		log:      log.With().Str("component", "settlement").Logger(),
		bic:      bic,
		currency: currency,
	}
}

// BuildPacs008 renders one external transfer as a pacs.008
// FIToFICustomerCreditTransfer. Amounts convert from minor units to the
// decimal major-unit rendering the wire format requires; ledger arithmetic
// never touches this value.
func (s *Service) BuildPacs008(tr *models.Transfer) *pacs_v08.FIToFICustomerCreditTransferV08 {
	now := time.Now()
	amount := float64(tr.Amount) / 100

	return &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:   common.Max35Text(uuid.New().String()),
			CreDtTm: common.ISODateTime(now),
			NbOfTxs: "1",
			TtlIntrBkSttlmAmt: &pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode(s.currency),
				Value: amount,
			},
			IntrBkSttlmDt: (*common.ISODate)(&now),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG",
			},
		},
		CdtTrfTxInf: []pacs_v08.CreditTransferTransaction39{
			{
				PmtId: pacs_v08.PaymentIdentification7{
					InstrId:    &[]common.Max35Text{common.Max35Text(tr.TransactionID)}[0],
					EndToEndId: common.Max35Text(tr.TransferID),
					TxId:       &[]common.Max35Text{common.Max35Text(tr.TransactionID)}[0],
				},
				IntrBkSttlmAmt: pacs_v08.ActiveCurrencyAndAmount{
					Ccy:   common.ActiveCurrencyCode(s.currency),
					Value: amount,
				},
				IntrBkSttlmDt: (*common.ISODate)(&now),
				ChrgBr:        "SLEV",
				DbtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						BICFI: &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier(s.bic)}[0],
					},
				},
				Dbtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(tr.SourceAccount)}[0],
				},
				CdtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						ClrSysMmbId: &pacs_v08.ClearingSystemMemberIdentification2{
							MmbId: common.Max35Text(externalBankCode(tr.DestinationAccount)),
						},
					},
				},
				Cdtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(tr.DestinationAccount)}[0],
				},
			},
		},
	}
}

// Enqueue renders the transfer and pushes the XML onto the settlement queue.
func (s *Service) Enqueue(ctx context.Context, tr *models.Transfer) error {
	doc := s.BuildPacs008(tr)
	payload, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return bankerr.Wrap(bankerr.CodeSystemUnavailable, "pacs.008 marshal failed", err)
	}
	wire := xml.Header + string(payload)

	if s.redis == nil {
		s.log.Warn().Str("transfer_id", tr.TransferID).Msg("settlement queue disabled, dropping message")
		return nil
	}
	if err := s.redis.RPush(ctx, queueKey, wire).Err(); err != nil {
		return bankerr.Wrap(bankerr.CodeSystemUnavailable, "settlement enqueue failed", err)
	}
	s.log.Info().Str("transfer_id", tr.TransferID).Int64("amount", tr.Amount).Msg("queued for settlement")
	return nil
}

// Dequeue pops the oldest queued message, redis.Nil mapped to NotFound.
func (s *Service) Dequeue(ctx context.Context) (string, error) {
	if s.redis == nil {
		return "", bankerr.New(bankerr.CodeNotFound, "settlement queue disabled")
	}
	wire, err := s.redis.LPop(ctx, queueKey).Result()
	if err == redis.Nil {
		return "", bankerr.New(bankerr.CodeNotFound, "settlement queue empty")
	}
	if err != nil {
		return "", bankerr.Wrap(bankerr.CodeSystemUnavailable, "settlement dequeue failed", err)
	}
	return wire, nil
}

// QueueDepth reports the number of messages waiting for dispatch.
func (s *Service) QueueDepth(ctx context.Context) (int64, error) {
	if s.redis == nil {
		return 0, nil
	}
	depth, err := s.redis.LLen(ctx, queueKey).Result()
	if err != nil {
		return 0, bankerr.Wrap(bankerr.CodeSystemUnavailable, "settlement queue inspect failed", err)
	}
	return depth, nil
}

// externalBankCode derives the clearing member ID from an external account
// reference of the form BANKCODE:ACCOUNT; a bare account keeps the whole
// reference.
func externalBankCode(destination string) string {
	for i := 0; i < len(destination); i++ {
		if destination[i] == ':' {
			return destination[:i]
		}
	}
	return destination
}

// Reference renders a human-readable settlement reference for reports.
func Reference(tr *models.Transfer) string {
	return fmt.Sprintf("%s/%s/%d", tr.TransferID, tr.TransferDate.Format("20060102"), tr.Amount)
}
