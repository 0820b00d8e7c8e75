// Package upi serves the UPI channel: virtual payment address resolution and
// single-use collect requests carried as QR codes.
package upi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"

	"github.com/finedge/corebank/internal/bankerr"
	"github.com/finedge/corebank/internal/credentials"
	"github.com/finedge/corebank/internal/store"
)

// requestTTL bounds how long a collect request stays claimable.
const requestTTL = 5 * time.Minute

// CollectRequest is the payload encoded into a UPI QR code. Amount is minor
// units; the nonce makes each request single-use.
type CollectRequest struct {
	PayeeVPA  string `json:"payee_vpa"`
	Amount    int64  `json:"amount"`
	Remarks   string `json:"remarks,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Nonce     string `json:"nonce"`
}

// Service resolves VPAs and issues collect requests.
type Service struct {
	store *store.Store
	redis *redis.Client
	log   zerolog.Logger
}

// New returns a UPI service. Redis is required for collect requests; VPA
// resolution works without it.
func New(st *store.Store, redisClient *redis.Client, log zerolog.Logger) *Service {
	return &Service{
		store: st,
		redis: redisClient,
		log:   log.With().Str("component", "upi").Logger(),
	}
}

// ResolveVPA maps name@bank to the underlying account number.
func (s *Service) ResolveVPA(ctx context.Context, vpa string) (string, error) {
	if !ValidVPA(vpa) {
		return "", bankerr.New(bankerr.CodeAccountUnknown, "malformed virtual payment address")
	}
	accountNumber, err := s.store.ResolveVPA(ctx, strings.ToLower(vpa))
	if err != nil {
		if bankerr.CodeOf(err) == bankerr.CodeNotFound {
			return "", bankerr.New(bankerr.CodeAccountUnknown, "virtual payment address not registered")
		}
		return "", err
	}
	return accountNumber, nil
}

// ValidVPA checks the name@bank shape without touching the store.
func ValidVPA(vpa string) bool {
	at := strings.IndexByte(vpa, '@')
	if at <= 0 || at == len(vpa)-1 {
		return false
	}
	if strings.IndexByte(vpa[at+1:], '@') >= 0 {
		return false
	}
	for _, r := range vpa {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.', r == '-', r == '_', r == '@':
		default:
			return false
		}
	}
	return true
}

// CreateCollectRequest registers a collect request against the payee VPA and
// renders it as a base64 PNG QR code. The returned token claims the request.
func (s *Service) CreateCollectRequest(ctx context.Context, payeeVPA string, amount int64, remarks string) (token, qrImage string, err error) {
	if _, err := s.ResolveVPA(ctx, payeeVPA); err != nil {
		return "", "", err
	}
	if amount <= 0 {
		return "", "", bankerr.New(bankerr.CodeAmountInvalid, "amount must be positive")
	}
	if s.redis == nil {
		return "", "", bankerr.New(bankerr.CodeSystemUnavailable, "collect requests unavailable")
	}

	nonce, err := credentials.RandomToken(16)
	if err != nil {
		return "", "", bankerr.Wrap(bankerr.CodeSystemUnavailable, "nonce generation failed", err)
	}
	req := CollectRequest{
		PayeeVPA:  strings.ToLower(payeeVPA),
		Amount:    amount,
		Remarks:   remarks,
		Timestamp: time.Now().Unix(),
		Nonce:     nonce,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", "", bankerr.Wrap(bankerr.CodeSystemUnavailable, "collect request marshal failed", err)
	}

	token = base64.URLEncoding.EncodeToString(payload)
	if err := s.redis.Set(ctx, requestKey(token), payload, requestTTL).Err(); err != nil {
		return "", "", bankerr.Wrap(bankerr.CodeSystemUnavailable, "collect request store failed", err)
	}

	qr, err := qrcode.New(token, qrcode.Medium)
	if err != nil {
		return "", "", bankerr.Wrap(bankerr.CodeSystemUnavailable, "qr render failed", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", "", bankerr.Wrap(bankerr.CodeSystemUnavailable, "qr encode failed", err)
	}

	s.log.Info().Str("payee", req.PayeeVPA).Int64("amount", amount).Msg("collect request issued")
	return token, base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ClaimCollectRequest consumes a collect request token. The read and delete
// are one GETDEL, so exactly one of two concurrent claims wins; expiry is
// enforced by the store TTL.
func (s *Service) ClaimCollectRequest(ctx context.Context, token string) (*CollectRequest, error) {
	if s.redis == nil {
		return nil, bankerr.New(bankerr.CodeSystemUnavailable, "collect requests unavailable")
	}
	payload, err := s.redis.GetDel(ctx, requestKey(token)).Bytes()
	if err == redis.Nil {
		return nil, bankerr.New(bankerr.CodeNotFound, "collect request expired or already claimed")
	}
	if err != nil {
		return nil, bankerr.Wrap(bankerr.CodeSystemUnavailable, "collect request read failed", err)
	}

	var req CollectRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, bankerr.Wrap(bankerr.CodeSystemUnavailable, "collect request decode failed", err)
	}
	return &req, nil
}

// ReinstateCollectRequest restores a claimed request whose payment did not
// post, keeping the expiry anchored at issue time. An already-expired request
// stays consumed.
func (s *Service) ReinstateCollectRequest(ctx context.Context, token string, req *CollectRequest) error {
	if s.redis == nil {
		return bankerr.New(bankerr.CodeSystemUnavailable, "collect requests unavailable")
	}
	remaining := time.Until(time.Unix(req.Timestamp, 0).Add(requestTTL))
	if remaining <= 0 {
		return nil
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return bankerr.Wrap(bankerr.CodeSystemUnavailable, "collect request marshal failed", err)
	}
	if err := s.redis.Set(ctx, requestKey(token), payload, remaining).Err(); err != nil {
		return bankerr.Wrap(bankerr.CodeSystemUnavailable, "collect request store failed", err)
	}
	return nil
}

func requestKey(token string) string { return fmt.Sprintf("upi_collect:%s", token) }
