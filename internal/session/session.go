// Package session issues and verifies operator sessions for the
// administrative surface: signed JWTs with a Redis revocation list so a
// logout takes effect before the token expires.
package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/finedge/corebank/internal/bankerr"
	"github.com/finedge/corebank/internal/config"
)

// Claims are the session claims carried in the token.
type Claims struct {
	OperatorID string `json:"operator_id"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

// Session verification failures.
var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrRevoked      = errors.New("session revoked")
)

// Operator roles.
const (
	RoleTeller     = "TELLER"
	RoleSupervisor = "SUPERVISOR"
)

// Manager signs, verifies and revokes session tokens. A nil Redis client
// disables the revocation list; tokens then live until expiry.
type Manager struct {
	secret []byte
	expiry time.Duration
	redis  *redis.Client
	log    zerolog.Logger
}

// NewManager builds a Manager from configuration.
func NewManager(cfg *config.Config, redisClient *redis.Client, log zerolog.Logger) *Manager {
	return &Manager{
		secret: []byte(cfg.JWTSecretKey),
		expiry: time.Duration(cfg.JWTExpiryHours) * time.Hour,
		redis:  redisClient,
		log:    log.With().Str("component", "session").Logger(),
	}
}

// Issue signs a fresh token for an operator.
func (m *Manager) Issue(operatorID, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		OperatorID: operatorID,
		Role:       role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", bankerr.Wrap(bankerr.CodeSystemUnavailable, "token signing failed", err)
	}
	return signed, nil
}

// Verify parses and validates a token, then checks the revocation list.
func (m *Manager) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	if m.redis != nil {
		revoked, err := m.redis.Exists(ctx, revocationKey(tokenString)).Result()
		if err != nil {
			m.log.Warn().Err(err).Msg("revocation check unavailable, rejecting token")
			return nil, bankerr.Wrap(bankerr.CodeSystemUnavailable, "session check unavailable", err)
		}
		if revoked > 0 {
			return nil, ErrRevoked
		}
	}
	return claims, nil
}

// Revoke blacklists a token for the remainder of its lifetime.
func (m *Manager) Revoke(ctx context.Context, tokenString string) error {
	if m.redis == nil {
		return nil
	}
	if err := m.redis.Set(ctx, revocationKey(tokenString), "1", m.expiry).Err(); err != nil {
		return bankerr.Wrap(bankerr.CodeSystemUnavailable, "revocation write failed", err)
	}
	return nil
}

func revocationKey(token string) string { return "session_revoked:" + token }

type contextKey struct{}

// FromContext returns the claims the middleware attached to the request.
func FromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(contextKey{}).(*Claims)
	return claims, ok
}

// Middleware authenticates requests with a Bearer token and attaches the
// claims to the request context.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
			return
		}

		claims, err := m.Verify(r.Context(), parts[1])
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, claims)))
	})
}

// RequireRole gates a route on operator role.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := FromContext(r.Context())
			if !ok || (claims.Role != role && claims.Role != RoleSupervisor) {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
