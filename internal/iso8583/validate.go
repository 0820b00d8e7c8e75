package iso8583

import (
	"fmt"
	"strconv"

	"github.com/finedge/corebank/internal/bankerr"
)

// Processing codes accepted on requests. The first two digits select the
// operation; the closed set below is the whole dialect.
const (
	ProcPurchase        = "000000"
	ProcCashWithdrawal  = "010000"
	ProcRefund          = "200000"
	ProcDeposit         = "210000"
	ProcBalanceInquiry  = "300000"
	ProcFundTransfer    = "400000"
	ProcPinChange       = "920000"
	ProcPinVerification = "940000"
)

var knownProcessingCodes = map[string]bool{
	ProcPurchase:        true,
	ProcCashWithdrawal:  true,
	ProcRefund:          true,
	ProcDeposit:         true,
	ProcBalanceInquiry:  true,
	ProcFundTransfer:    true,
	ProcPinChange:       true,
	ProcPinVerification: true,
}

// financialProcessingCodes move value and therefore require an amount.
var financialProcessingCodes = map[string]bool{
	ProcPurchase:       true,
	ProcCashWithdrawal: true,
	ProcRefund:         true,
	ProcDeposit:        true,
	ProcFundTransfer:   true,
}

// mandatoryFields lists the data elements every message of an MTI must carry.
var mandatoryFields = map[string][]int{
	"0100": {FieldPAN, FieldProcessingCode, FieldTransmissionTime, FieldSTAN},
	"0110": {FieldPAN, FieldProcessingCode, FieldTransmissionTime, FieldSTAN},
	"0200": {FieldPAN, FieldProcessingCode, FieldAmount, FieldTransmissionTime, FieldSTAN, FieldTerminalID},
	"0210": {FieldPAN, FieldProcessingCode, FieldAmount, FieldTransmissionTime, FieldSTAN, FieldTerminalID},
	"0400": {FieldPAN, FieldProcessingCode, FieldAmount, FieldTransmissionTime, FieldSTAN},
	"0410": {FieldPAN, FieldProcessingCode, FieldAmount, FieldTransmissionTime, FieldSTAN},
}

// Validate checks the message beyond schema shape: mandatory fields for its
// MTI, the processing-code dialect, date sanity on field 7 and the cross-field
// requirements of transfers. Parse already enforced per-field syntax.
func (m *Message) Validate() error {
	required, ok := mandatoryFields[m.MTI]
	if !ok && m.MTI[1] != '8' { // network management carries no data elements here
		return bankerr.Proto(bankerr.CodeMtiInvalid, 0, fmt.Sprintf("no profile for MTI %q", m.MTI))
	}
	for _, field := range required {
		if !m.Has(field) {
			return bankerr.Proto(bankerr.CodeMandatoryFieldMissing, field,
				fmt.Sprintf("field %d is mandatory for MTI %s", field, m.MTI))
		}
	}

	pc, hasPC := m.Get(FieldProcessingCode)
	if hasPC {
		if !knownProcessingCodes[pc] {
			return bankerr.Proto(bankerr.CodeUnknownProcessingCode, FieldProcessingCode,
				fmt.Sprintf("processing code %q is not in the dialect", pc))
		}
		if financialProcessingCodes[pc] && !m.Has(FieldAmount) {
			return bankerr.Proto(bankerr.CodeMandatoryFieldMissing, FieldAmount,
				"financial processing code requires an amount")
		}
		if pc == ProcFundTransfer {
			if !m.Has(FieldAccountFrom) {
				return bankerr.Proto(bankerr.CodeMandatoryFieldMissing, FieldAccountFrom,
					"fund transfer requires the source account")
			}
			if !m.Has(FieldAccountTo) {
				return bankerr.Proto(bankerr.CodeMandatoryFieldMissing, FieldAccountTo,
					"fund transfer requires the destination account")
			}
		}
	}

	if ts, ok := m.Get(FieldTransmissionTime); ok {
		if err := checkTransmissionTime(ts); err != nil {
			return err
		}
	}
	return nil
}

// checkTransmissionTime validates field 7's MMDDhhmmss rendering.
func checkTransmissionTime(v string) error {
	if len(v) != 10 {
		return bankerr.Proto(bankerr.CodeFieldLengthInvalid, FieldTransmissionTime, "transmission time must be MMDDhhmmss")
	}
	month, _ := strconv.Atoi(v[0:2])
	dayOfMonth, _ := strconv.Atoi(v[2:4])
	hour, _ := strconv.Atoi(v[4:6])
	minute, _ := strconv.Atoi(v[6:8])
	second, _ := strconv.Atoi(v[8:10])
	if month < 1 || month > 12 || dayOfMonth < 1 || dayOfMonth > 31 ||
		hour > 23 || minute > 59 || second > 59 {
		return bankerr.Proto(bankerr.CodeFieldValueInvalid, FieldTransmissionTime, "transmission time out of range")
	}
	return nil
}

// Amount reads field 4 as minor units.
func (m *Message) Amount() (int64, error) {
	v, ok := m.Get(FieldAmount)
	if !ok {
		return 0, bankerr.Proto(bankerr.CodeMandatoryFieldMissing, FieldAmount, "amount absent")
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, bankerr.Proto(bankerr.CodeFieldValueInvalid, FieldAmount, "amount is not numeric")
	}
	return n, nil
}
