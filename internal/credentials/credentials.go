// Package credentials hashes and verifies PINs and passwords, and produces
// the random material (salts, reference tokens) used across the bank.
package credentials

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/finedge/corebank/internal/config"
)

var (
	// ErrHashMalformed reports a stored hash that cannot be parsed.
	ErrHashMalformed = errors.New("credential hash malformed")
	// ErrUnsupportedVersion reports an argon2 version this build cannot verify.
	ErrUnsupportedVersion = errors.New("unsupported argon2 version")
)

// Hasher hashes PINs with argon2id. The encoded form is self-describing
// (PHC string) so verification needs no external parameter knowledge.
type Hasher struct {
	params config.Argon2Params
}

// NewHasher returns a Hasher using the configured work factors.
func NewHasher(p config.Argon2Params) *Hasher {
	return &Hasher{params: p}
}

// HashPIN hashes a PIN with a fresh random salt.
func (h *Hasher) HashPIN(pin string) (string, error) {
	salt, err := RandomSalt(int(h.params.SaltLength))
	if err != nil {
		return "", err
	}
	return h.HashPINWithSalt(pin, salt)
}

// HashPINWithSalt hashes a PIN with the supplied salt. Exposed for
// deterministic key derivation; normal callers use HashPIN.
func (h *Hasher) HashPINWithSalt(pin string, salt []byte) (string, error) {
	if pin == "" {
		return "", errors.New("pin cannot be empty")
	}
	if len(salt) == 0 {
		return "", errors.New("salt cannot be empty")
	}
	key := argon2.IDKey([]byte(pin), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLength)
	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.params.Memory, h.params.Time, h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key))
	return encoded, nil
}

// VerifyPIN checks a PIN against its stored hash in constant time.
func VerifyPIN(pin, encoded string) (bool, error) {
	version, memory, time, threads, salt, key, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}
	if version != argon2.Version {
		return false, ErrUnsupportedVersion
	}
	computed := argon2.IDKey([]byte(pin), salt, time, memory, threads, uint32(len(key)))
	return subtle.ConstantTimeCompare(computed, key) == 1, nil
}

// NeedsRehash reports whether the stored hash was produced with weaker work
// factors than current policy, so callers can upgrade on the next successful
// verify.
func (h *Hasher) NeedsRehash(encoded string) bool {
	version, memory, time, threads, _, key, err := decodeHash(encoded)
	if err != nil {
		return true
	}
	return version != argon2.Version ||
		memory < h.params.Memory ||
		time < h.params.Time ||
		threads < h.params.Threads ||
		uint32(len(key)) < h.params.KeyLength
}

func decodeHash(encoded string) (version int, memory, time uint32, threads uint8, salt, key []byte, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		err = ErrHashMalformed
		return
	}
	if _, err = fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		err = ErrHashMalformed
		return
	}
	var p uint32
	if _, err = fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &p); err != nil {
		err = ErrHashMalformed
		return
	}
	threads = uint8(p)
	if salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		err = ErrHashMalformed
		return
	}
	if key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		err = ErrHashMalformed
		return
	}
	return
}

// RandomSalt returns n bytes from the cryptographic source. Entropy failure
// is an error, never a silent fallback.
func RandomSalt(n int) ([]byte, error) {
	if n <= 0 {
		return nil, errors.New("salt length must be positive")
	}
	salt := make([]byte, n)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("read entropy: %w", err)
	}
	return salt, nil
}

// RandomToken returns a hex reference token of n random bytes.
func RandomToken(n int) (string, error) {
	b, err := RandomSalt(n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// MaskPAN renders a card number as "**** **** **** 1234". Anything shorter
// than four digits is fully masked.
func MaskPAN(pan string) string {
	if len(pan) < 4 {
		return "****"
	}
	return "**** **** **** " + pan[len(pan)-4:]
}
