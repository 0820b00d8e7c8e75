package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/finedge/corebank/internal/bankerr"
	"github.com/finedge/corebank/internal/models"
)

func externalTransfer() *models.Transfer {
	return &models.Transfer{
		TransferID:         "TRF-9f1c",
		TransactionID:      "TXN-9f1c",
		SourceAccount:      "ACC-100",
		DestinationAccount: "HDFC0001:9988776655",
		TransferType:       models.TransferTypeExternal,
		Amount:             125_050,
		TransferDate:       time.Date(2026, 9, 1, 10, 30, 0, 0, time.Local),
		Status:             models.TxStatusSuccess,
	}
}

func TestBuildPacs008(t *testing.T) {
	svc := New(nil, "FINEDGEB", "356", zerolog.Nop())
	doc := svc.BuildPacs008(externalTransfer())

	assert.Equal(t, "1", string(doc.GrpHdr.NbOfTxs))
	assert.NotEmpty(t, doc.GrpHdr.MsgId)
	assert.Equal(t, "CLRG", string(doc.GrpHdr.SttlmInf.SttlmMtd))

	assert.Len(t, doc.CdtTrfTxInf, 1)
	cdt := doc.CdtTrfTxInf[0]
	assert.Equal(t, "TRF-9f1c", string(cdt.PmtId.EndToEndId))
	assert.Equal(t, "TXN-9f1c", string(*cdt.PmtId.TxId))
	assert.Equal(t, "356", string(cdt.IntrBkSttlmAmt.Ccy))
	assert.InDelta(t, 1250.50, cdt.IntrBkSttlmAmt.Value, 0.001)
	assert.Equal(t, "SLEV", string(cdt.ChrgBr))
	assert.Equal(t, "FINEDGEB", string(*cdt.DbtrAgt.FinInstnId.BICFI))
	assert.Equal(t, "HDFC0001", string(cdt.CdtrAgt.FinInstnId.ClrSysMmbId.MmbId))
	assert.Equal(t, "ACC-100", string(*cdt.Dbtr.Nm))
}

func TestEnqueueDequeue(t *testing.T) {
	ctx := context.Background()

	t.Run("enqueue pushes xml onto the queue", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		svc := New(client, "FINEDGEB", "356", zerolog.Nop())

		mock.Regexp().ExpectRPush(queueKey, `(?s)<\?xml.+FINEDGEB.+`).SetVal(1)

		assert.NoError(t, svc.Enqueue(ctx, externalTransfer()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nil redis drops without error", func(t *testing.T) {
		svc := New(nil, "FINEDGEB", "356", zerolog.Nop())
		assert.NoError(t, svc.Enqueue(ctx, externalTransfer()))
	})

	t.Run("dequeue pops the oldest message", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		svc := New(client, "FINEDGEB", "356", zerolog.Nop())

		mock.ExpectLPop(queueKey).SetVal("<xml-payload>")
		wire, err := svc.Dequeue(ctx)
		assert.NoError(t, err)
		assert.Equal(t, "<xml-payload>", wire)
	})

	t.Run("empty queue maps to NotFound", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		svc := New(client, "FINEDGEB", "356", zerolog.Nop())

		mock.ExpectLPop(queueKey).RedisNil()
		_, err := svc.Dequeue(ctx)
		assert.Equal(t, bankerr.CodeNotFound, bankerr.CodeOf(err))
	})

	t.Run("queue depth", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		svc := New(client, "FINEDGEB", "356", zerolog.Nop())

		mock.ExpectLLen(queueKey).SetVal(4)
		depth, err := svc.QueueDepth(ctx)
		assert.NoError(t, err)
		assert.Equal(t, int64(4), depth)
	})
}

func TestExternalBankCode(t *testing.T) {
	assert.Equal(t, "HDFC0001", externalBankCode("HDFC0001:9988776655"))
	assert.Equal(t, "9988776655", externalBankCode("9988776655"))
}

func TestReference(t *testing.T) {
	assert.Equal(t, "TRF-9f1c/20260901/125050", Reference(externalTransfer()))
}
