package iso8583

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/finedge/corebank/internal/bankerr"
)

// macLength is the truncation length, in bytes, of the HMAC-SHA256 tag
// carried in field 128.
const macLength = 8

// computeMAC builds the message without field 128 and tags the result.
func computeMAC(m *Message, key []byte) ([]byte, error) {
	unsealed := &Message{MTI: m.MTI, Fields: make(map[int]string, len(m.Fields))}
	for f, v := range m.Fields {
		if f == FieldMAC {
			continue
		}
		unsealed.Fields[f] = v
	}
	wire, err := unsealed.Build()
	if err != nil {
		return nil, err
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(wire)
	return mac.Sum(nil)[:macLength], nil
}

// Seal computes the MAC over the message and stores it in field 128.
func (m *Message) Seal(key []byte) error {
	tag, err := computeMAC(m, key)
	if err != nil {
		return err
	}
	m.Set(FieldMAC, hex.EncodeToString(tag))
	return nil
}

// VerifyMAC recomputes the tag and compares in constant time. A message
// without field 128 fails verification.
func (m *Message) VerifyMAC(key []byte) error {
	carried, ok := m.Get(FieldMAC)
	if !ok {
		return bankerr.Proto(bankerr.CodeMacInvalid, FieldMAC, "message carries no MAC")
	}
	carriedTag, err := hex.DecodeString(carried)
	if err != nil || len(carriedTag) != macLength {
		return bankerr.Proto(bankerr.CodeMacInvalid, FieldMAC, "malformed MAC")
	}
	want, err := computeMAC(m, key)
	if err != nil {
		return err
	}
	if !hmac.Equal(carriedTag, want) {
		return bankerr.Proto(bankerr.CodeMacInvalid, FieldMAC, "MAC verification failed")
	}
	return nil
}
