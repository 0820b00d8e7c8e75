package iso8583

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/finedge/corebank/internal/bankerr"
)

// Message is one decoded ISO-8583 message. Fields maps data element number to
// its value; Binary elements are held hex-encoded (lower case). Field 1, the
// secondary bitmap indicator, is derived and never stored.
type Message struct {
	MTI    string
	Fields map[int]string
}

// NewMessage returns an empty message with the given MTI.
func NewMessage(mti string) *Message {
	return &Message{MTI: mti, Fields: make(map[int]string)}
}

// Set assigns a field value.
func (m *Message) Set(field int, value string) { m.Fields[field] = value }

// Get returns the field value and whether it is present.
func (m *Message) Get(field int) (string, bool) {
	v, ok := m.Fields[field]
	return v, ok
}

// Has reports field presence.
func (m *Message) Has(field int) bool {
	_, ok := m.Fields[field]
	return ok
}

// mtiPattern admits version 0 authorisation (01xx), financial (02xx),
// reversal (04xx) and network management (08xx) requests and responses.
var mtiPattern = regexp.MustCompile(`^0[1248][01]0$`)

// ValidMTI reports whether mti is one the codec handles.
func ValidMTI(mti string) bool { return mtiPattern.MatchString(mti) }

// ResponseMTI derives the response MTI for a request (0100 -> 0110).
func ResponseMTI(requestMTI string) string {
	if len(requestMTI) != 4 {
		return requestMTI
	}
	return requestMTI[:2] + "1" + requestMTI[3:]
}

// Parse decodes a wire message: 4-byte MTI, 16 hex characters of primary
// bitmap, an optional 16-character secondary bitmap when bit 1 is set, then
// each present data element in ascending field order. Bitmap hex is accepted
// in either case; Build always re-emits the canonical upper-case form, so a
// lower-case input canonicalises on rebuild.
func Parse(data []byte) (*Message, error) {
	raw := string(data)
	if len(raw) < 4+16 {
		return nil, bankerr.Proto(bankerr.CodeMtiInvalid, 0, "message shorter than MTI and primary bitmap")
	}

	mti := raw[:4]
	if !ValidMTI(mti) {
		return nil, bankerr.Proto(bankerr.CodeMtiInvalid, 0, fmt.Sprintf("unsupported MTI %q", mti))
	}
	cursor := 4

	primary, err := parseBitmap(raw, cursor)
	if err != nil {
		return nil, err
	}
	cursor += 16

	var secondary uint64
	if primary&(1<<63) != 0 { // bit 1: secondary bitmap follows
		secondary, err = parseBitmap(raw, cursor)
		if err != nil {
			return nil, err
		}
		cursor += 16
	}

	m := &Message{MTI: mti, Fields: make(map[int]string)}
	cursor, err = decodeFields(m, raw, cursor, primary, secondary)
	if err != nil {
		return nil, err
	}
	if cursor != len(raw) {
		return nil, bankerr.Proto(bankerr.CodeBitmapInconsistent, 0,
			fmt.Sprintf("%d trailing bytes after last field", len(raw)-cursor))
	}
	return m, nil
}

func parseBitmap(raw string, at int) (uint64, error) {
	if at+16 > len(raw) {
		return 0, bankerr.Proto(bankerr.CodeBitmapInconsistent, 0, "bitmap truncated")
	}
	b, err := hex.DecodeString(raw[at : at+16])
	if err != nil {
		return 0, bankerr.Proto(bankerr.CodeBitmapInconsistent, 0, "bitmap is not hexadecimal")
	}
	var v uint64
	for _, by := range b {
		v = v<<8 | uint64(by)
	}
	return v, nil
}

// bitSet reports whether the given field's bit is on. Field 1 lives in the
// primary map's high bit; fields 65-128 live in the secondary map.
func bitSet(primary, secondary uint64, field int) bool {
	if field <= 64 {
		return primary&(1<<(64-field)) != 0
	}
	return secondary&(1<<(128-field)) != 0
}

func decodeFields(m *Message, raw string, cursor int, primary, secondary uint64) (int, error) {
	for field := 2; field <= 128; field++ {
		if !bitSet(primary, secondary, field) {
			continue
		}
		if field > 64 && secondary == 0 {
			return 0, bankerr.Proto(bankerr.CodeBitmapInconsistent, field, "secondary field set without secondary bitmap")
		}
		fs, ok := Spec(field)
		if !ok {
			return 0, bankerr.Proto(bankerr.CodeBitmapInconsistent, field, "unknown field number")
		}
		value, next, err := decodeField(raw, cursor, field, fs)
		if err != nil {
			return 0, err
		}
		m.Fields[field] = value
		cursor = next
	}
	return cursor, nil
}

func decodeField(raw string, cursor, field int, fs FieldSpec) (string, int, error) {
	width := fs.Len
	if fs.Kind != Fixed {
		prefix := 2
		if fs.Kind == LLLVar {
			prefix = 3
		}
		if cursor+prefix > len(raw) {
			return "", 0, bankerr.Proto(bankerr.CodeFieldLengthInvalid, field, "length prefix truncated")
		}
		n, err := strconv.Atoi(raw[cursor : cursor+prefix])
		if err != nil {
			return "", 0, bankerr.Proto(bankerr.CodeFieldLengthInvalid, field, "length prefix is not numeric")
		}
		if n > fs.Len {
			return "", 0, bankerr.Proto(bankerr.CodeFieldLengthInvalid, field,
				fmt.Sprintf("declared length %d exceeds maximum %d", n, fs.Len))
		}
		cursor += prefix
		width = n
	}
	if fs.Syntax == Binary {
		width *= 2 // binary bytes travel hex-encoded
	}
	if cursor+width > len(raw) {
		return "", 0, bankerr.Proto(bankerr.CodeFieldLengthInvalid, field, "field value truncated")
	}
	value := raw[cursor : cursor+width]
	if err := checkSyntax(field, fs, value); err != nil {
		return "", 0, err
	}
	return value, cursor + width, nil
}

func checkSyntax(field int, fs FieldSpec, value string) error {
	switch fs.Syntax {
	case Numeric:
		for _, r := range value {
			if r < '0' || r > '9' {
				return bankerr.Proto(bankerr.CodeFieldValueInvalid, field, "numeric field holds non-digit")
			}
		}
	case Alpha:
		for _, r := range value {
			if r != ' ' && (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
				return bankerr.Proto(bankerr.CodeFieldValueInvalid, field, "alpha field holds non-letter")
			}
		}
	case AlphaNumeric:
		for _, r := range value {
			if r < 0x20 || r > 0x7e {
				return bankerr.Proto(bankerr.CodeFieldValueInvalid, field, "field holds non-printable byte")
			}
		}
	case Binary:
		if len(value)%2 != 0 {
			return bankerr.Proto(bankerr.CodeFieldValueInvalid, field, "odd hex length for binary field")
		}
		if _, err := hex.DecodeString(value); err != nil {
			return bankerr.Proto(bankerr.CodeFieldValueInvalid, field, "binary field is not hexadecimal")
		}
	}
	return nil
}

// Build encodes the message. Fixed numeric values shorter than their width
// are zero-padded on the left, fixed text values space-padded on the right;
// everything else must already fit its specification.
func (m *Message) Build() ([]byte, error) {
	if !ValidMTI(m.MTI) {
		return nil, bankerr.Proto(bankerr.CodeMtiInvalid, 0, fmt.Sprintf("unsupported MTI %q", m.MTI))
	}

	fields := make([]int, 0, len(m.Fields))
	var primary, secondary uint64
	for field := range m.Fields {
		if field < 2 || field > 128 {
			return nil, bankerr.Proto(bankerr.CodeBitmapInconsistent, field, "field number out of range")
		}
		fields = append(fields, field)
		if field <= 64 {
			primary |= 1 << (64 - field)
		} else {
			secondary |= 1 << (128 - field)
		}
	}
	sort.Ints(fields)
	if secondary != 0 {
		primary |= 1 << 63
	}

	var sb strings.Builder
	sb.WriteString(m.MTI)
	sb.WriteString(fmt.Sprintf("%016X", primary))
	if secondary != 0 {
		sb.WriteString(fmt.Sprintf("%016X", secondary))
	}

	for _, field := range fields {
		fs, ok := Spec(field)
		if !ok {
			return nil, bankerr.Proto(bankerr.CodeBitmapInconsistent, field, "unknown field number")
		}
		encoded, err := encodeField(field, fs, m.Fields[field])
		if err != nil {
			return nil, err
		}
		sb.WriteString(encoded)
	}
	return []byte(sb.String()), nil
}

func encodeField(field int, fs FieldSpec, value string) (string, error) {
	if fs.Kind == Fixed {
		width := fs.Len
		if fs.Syntax == Binary {
			width *= 2
		}
		if len(value) < width {
			switch fs.Syntax {
			case Numeric:
				value = strings.Repeat("0", width-len(value)) + value
			case Binary:
				return "", bankerr.Proto(bankerr.CodeFieldLengthInvalid, field, "binary field shorter than specification")
			default:
				value = value + strings.Repeat(" ", width-len(value))
			}
		}
		if len(value) != width {
			return "", bankerr.Proto(bankerr.CodeFieldLengthInvalid, field,
				fmt.Sprintf("value length %d, field width %d", len(value), width))
		}
		if err := checkSyntax(field, fs, value); err != nil {
			return "", err
		}
		return value, nil
	}

	if len(value) > fs.Len {
		return "", bankerr.Proto(bankerr.CodeFieldLengthInvalid, field,
			fmt.Sprintf("value length %d exceeds maximum %d", len(value), fs.Len))
	}
	if err := checkSyntax(field, fs, value); err != nil {
		return "", err
	}
	if fs.Kind == LLVar {
		if len(value) > 99 {
			return "", bankerr.Proto(bankerr.CodeFieldLengthInvalid, field, "value too long for LLVAR prefix")
		}
		return fmt.Sprintf("%02d%s", len(value), value), nil
	}
	return fmt.Sprintf("%03d%s", len(value), value), nil
}
