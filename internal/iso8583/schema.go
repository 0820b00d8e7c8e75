// Package iso8583 implements an ASCII ISO-8583 message codec: schema-driven
// parsing and building, structural validation and MAC sealing for the card
// authorisation and financial message flows.
package iso8583

// Syntax constrains the character class a field accepts.
type Syntax int

const (
	// Numeric fields hold ASCII digits only.
	Numeric Syntax = iota
	// Alpha fields hold ASCII letters and spaces.
	Alpha
	// AlphaNumeric fields hold printable ASCII.
	AlphaNumeric
	// Binary fields carry raw bytes, held hex-encoded in Message.Fields.
	Binary
)

// LenKind selects fixed-width or length-prefixed variable encoding.
type LenKind int

const (
	// Fixed fields occupy exactly Len positions on the wire.
	Fixed LenKind = iota
	// LLVar fields carry a 2-digit length prefix, up to Len positions.
	LLVar
	// LLLVar fields carry a 3-digit length prefix, up to Len positions.
	LLLVar
)

// FieldSpec describes one data element. Len is characters for text syntaxes
// and bytes for Binary.
type FieldSpec struct {
	Name   string
	Syntax Syntax
	Kind   LenKind
	Len    int
}

// Named field numbers used directly by the authorisation flow.
const (
	FieldPAN              = 2
	FieldProcessingCode   = 3
	FieldAmount           = 4
	FieldTransmissionTime = 7
	FieldSTAN             = 11
	FieldRRN              = 37
	FieldResponseCode     = 39
	FieldTerminalID       = 41
	FieldCurrency         = 49
	FieldAccountFrom      = 102
	FieldAccountTo        = 103
	FieldMAC              = 128
)

// spec is the 1987-edition field table in its ASCII rendering. Field 1 is
// the secondary bitmap and never appears here.
var spec = map[int]FieldSpec{
	2:   {"Primary Account Number", Numeric, LLVar, 19},
	3:   {"Processing Code", Numeric, Fixed, 6},
	4:   {"Amount, Transaction", Numeric, Fixed, 12},
	5:   {"Amount, Settlement", Numeric, Fixed, 12},
	6:   {"Amount, Cardholder Billing", Numeric, Fixed, 12},
	7:   {"Transmission Date and Time", Numeric, Fixed, 10},
	8:   {"Amount, Cardholder Billing Fee", Numeric, Fixed, 8},
	9:   {"Conversion Rate, Settlement", Numeric, Fixed, 8},
	10:  {"Conversion Rate, Cardholder Billing", Numeric, Fixed, 8},
	11:  {"System Trace Audit Number", Numeric, Fixed, 6},
	12:  {"Time, Local Transaction", Numeric, Fixed, 6},
	13:  {"Date, Local Transaction", Numeric, Fixed, 4},
	14:  {"Date, Expiration", Numeric, Fixed, 4},
	15:  {"Date, Settlement", Numeric, Fixed, 4},
	16:  {"Date, Conversion", Numeric, Fixed, 4},
	17:  {"Date, Capture", Numeric, Fixed, 4},
	18:  {"Merchant Category Code", Numeric, Fixed, 4},
	19:  {"Acquiring Institution Country Code", Numeric, Fixed, 3},
	20:  {"PAN Extended Country Code", Numeric, Fixed, 3},
	21:  {"Forwarding Institution Country Code", Numeric, Fixed, 3},
	22:  {"Point of Service Entry Mode", Numeric, Fixed, 3},
	23:  {"Card Sequence Number", Numeric, Fixed, 3},
	24:  {"Network International Identifier", Numeric, Fixed, 3},
	25:  {"Point of Service Condition Code", Numeric, Fixed, 2},
	26:  {"Point of Service PIN Capture Code", Numeric, Fixed, 2},
	27:  {"Authorisation ID Response Length", Numeric, Fixed, 1},
	28:  {"Amount, Transaction Fee", AlphaNumeric, Fixed, 9},
	29:  {"Amount, Settlement Fee", AlphaNumeric, Fixed, 9},
	30:  {"Amount, Transaction Processing Fee", AlphaNumeric, Fixed, 9},
	31:  {"Amount, Settlement Processing Fee", AlphaNumeric, Fixed, 9},
	32:  {"Acquiring Institution ID", Numeric, LLVar, 11},
	33:  {"Forwarding Institution ID", Numeric, LLVar, 11},
	34:  {"Primary Account Number, Extended", AlphaNumeric, LLVar, 28},
	35:  {"Track 2 Data", AlphaNumeric, LLVar, 37},
	36:  {"Track 3 Data", Numeric, LLLVar, 104},
	37:  {"Retrieval Reference Number", AlphaNumeric, Fixed, 12},
	38:  {"Authorisation ID Response", AlphaNumeric, Fixed, 6},
	39:  {"Response Code", AlphaNumeric, Fixed, 2},
	40:  {"Service Restriction Code", AlphaNumeric, Fixed, 3},
	41:  {"Card Acceptor Terminal ID", AlphaNumeric, Fixed, 8},
	42:  {"Card Acceptor ID", AlphaNumeric, Fixed, 15},
	43:  {"Card Acceptor Name and Location", AlphaNumeric, Fixed, 40},
	44:  {"Additional Response Data", AlphaNumeric, LLVar, 25},
	45:  {"Track 1 Data", AlphaNumeric, LLVar, 76},
	46:  {"Additional Data, ISO", AlphaNumeric, LLLVar, 999},
	47:  {"Additional Data, National", AlphaNumeric, LLLVar, 999},
	48:  {"Additional Data, Private", AlphaNumeric, LLLVar, 999},
	49:  {"Currency Code, Transaction", Numeric, Fixed, 3},
	50:  {"Currency Code, Settlement", Numeric, Fixed, 3},
	51:  {"Currency Code, Cardholder Billing", Numeric, Fixed, 3},
	52:  {"PIN Block", Binary, Fixed, 8},
	53:  {"Security Related Control Information", Numeric, Fixed, 16},
	54:  {"Additional Amounts", AlphaNumeric, LLLVar, 120},
	55:  {"ICC Data", AlphaNumeric, LLLVar, 999},
	56:  {"Reserved ISO", AlphaNumeric, LLLVar, 999},
	57:  {"Reserved National", AlphaNumeric, LLLVar, 999},
	58:  {"Reserved National", AlphaNumeric, LLLVar, 999},
	59:  {"Reserved National", AlphaNumeric, LLLVar, 999},
	60:  {"Reserved Private", AlphaNumeric, LLLVar, 999},
	61:  {"Reserved Private", AlphaNumeric, LLLVar, 999},
	62:  {"Reserved Private", AlphaNumeric, LLLVar, 999},
	63:  {"Reserved Private", AlphaNumeric, LLLVar, 999},
	64:  {"Message Authentication Code", Binary, Fixed, 8},
	65:  {"Bitmap, Extended", Binary, Fixed, 8},
	66:  {"Settlement Code", Numeric, Fixed, 1},
	67:  {"Extended Payment Code", Numeric, Fixed, 2},
	68:  {"Receiving Institution Country Code", Numeric, Fixed, 3},
	69:  {"Settlement Institution Country Code", Numeric, Fixed, 3},
	70:  {"Network Management Information Code", Numeric, Fixed, 3},
	71:  {"Message Number", Numeric, Fixed, 4},
	72:  {"Message Number, Last", Numeric, Fixed, 4},
	73:  {"Date, Action", Numeric, Fixed, 6},
	74:  {"Credits, Number", Numeric, Fixed, 10},
	75:  {"Credits, Reversal Number", Numeric, Fixed, 10},
	76:  {"Debits, Number", Numeric, Fixed, 10},
	77:  {"Debits, Reversal Number", Numeric, Fixed, 10},
	78:  {"Transfers, Number", Numeric, Fixed, 10},
	79:  {"Transfers, Reversal Number", Numeric, Fixed, 10},
	80:  {"Inquiries, Number", Numeric, Fixed, 10},
	81:  {"Authorisations, Number", Numeric, Fixed, 10},
	82:  {"Credits, Processing Fee Amount", Numeric, Fixed, 12},
	83:  {"Credits, Transaction Fee Amount", Numeric, Fixed, 12},
	84:  {"Debits, Processing Fee Amount", Numeric, Fixed, 12},
	85:  {"Debits, Transaction Fee Amount", Numeric, Fixed, 12},
	86:  {"Credits, Amount", Numeric, Fixed, 16},
	87:  {"Credits, Reversal Amount", Numeric, Fixed, 16},
	88:  {"Debits, Amount", Numeric, Fixed, 16},
	89:  {"Debits, Reversal Amount", Numeric, Fixed, 16},
	90:  {"Original Data Elements", Numeric, Fixed, 42},
	91:  {"File Update Code", AlphaNumeric, Fixed, 1},
	92:  {"File Security Code", AlphaNumeric, Fixed, 2},
	93:  {"Response Indicator", AlphaNumeric, Fixed, 5},
	94:  {"Service Indicator", AlphaNumeric, Fixed, 7},
	95:  {"Replacement Amounts", AlphaNumeric, Fixed, 42},
	96:  {"Message Security Code", Binary, Fixed, 8},
	97:  {"Amount, Net Settlement", AlphaNumeric, Fixed, 17},
	98:  {"Payee", AlphaNumeric, Fixed, 25},
	99:  {"Settlement Institution ID", Numeric, LLVar, 11},
	100: {"Receiving Institution ID", Numeric, LLVar, 11},
	101: {"File Name", AlphaNumeric, LLVar, 17},
	102: {"Account Identification 1", AlphaNumeric, LLVar, 28},
	103: {"Account Identification 2", AlphaNumeric, LLVar, 28},
	104: {"Transaction Description", AlphaNumeric, LLLVar, 100},
	105: {"Reserved ISO", AlphaNumeric, LLLVar, 999},
	106: {"Reserved ISO", AlphaNumeric, LLLVar, 999},
	107: {"Reserved ISO", AlphaNumeric, LLLVar, 999},
	108: {"Reserved ISO", AlphaNumeric, LLLVar, 999},
	109: {"Reserved ISO", AlphaNumeric, LLLVar, 999},
	110: {"Reserved ISO", AlphaNumeric, LLLVar, 999},
	111: {"Reserved ISO", AlphaNumeric, LLLVar, 999},
	112: {"Reserved National", AlphaNumeric, LLLVar, 999},
	113: {"Reserved National", AlphaNumeric, LLLVar, 999},
	114: {"Reserved National", AlphaNumeric, LLLVar, 999},
	115: {"Reserved National", AlphaNumeric, LLLVar, 999},
	116: {"Reserved National", AlphaNumeric, LLLVar, 999},
	117: {"Reserved National", AlphaNumeric, LLLVar, 999},
	118: {"Reserved National", AlphaNumeric, LLLVar, 999},
	119: {"Reserved National", AlphaNumeric, LLLVar, 999},
	120: {"Reserved Private", AlphaNumeric, LLLVar, 999},
	121: {"Reserved Private", AlphaNumeric, LLLVar, 999},
	122: {"Reserved Private", AlphaNumeric, LLLVar, 999},
	123: {"Reserved Private", AlphaNumeric, LLLVar, 999},
	124: {"Reserved Private", AlphaNumeric, LLLVar, 999},
	125: {"Reserved Private", AlphaNumeric, LLLVar, 999},
	126: {"Reserved Private", AlphaNumeric, LLLVar, 999},
	127: {"Reserved Private", AlphaNumeric, LLLVar, 999},
	128: {"Message Authentication Code", Binary, Fixed, 8},
}

// Spec returns the field specification, ok=false for field 1 and out-of-range
// numbers.
func Spec(field int) (FieldSpec, bool) {
	fs, ok := spec[field]
	return fs, ok
}
