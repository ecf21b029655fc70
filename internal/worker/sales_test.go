package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/pos-loyalty/internal/domain"
	"github.com/josh-kwaku/pos-loyalty/internal/service/loyalty"
)

type fakeAccruer struct {
	calls []loyalty.PurchaseAccrualRequest
	entry *domain.LedgerEntry
	err   error
}

func (f *fakeAccruer) AccruePurchase(_ context.Context, req loyalty.PurchaseAccrualRequest) (*domain.LedgerEntry, error) {
	f.calls = append(f.calls, req)
	return f.entry, f.err
}

type fakeSubscriber struct {
	subject, queue string
	cb             nats.MsgHandler
}

func (f *fakeSubscriber) QueueSubscribe(subject, queue string, cb nats.MsgHandler) (*nats.Subscription, error) {
	f.subject, f.queue, f.cb = subject, queue, cb
	return nil, errors.New("not connected")
}

func newConsumer(acc *fakeAccruer) *SalesConsumer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewSalesConsumer(acc, &fakeSubscriber{}, "pos.sales.completed", "loyalty", logger)
}

func TestHandle_Accrues(t *testing.T) {
	customerID := uuid.New()
	acc := &fakeAccruer{entry: &domain.LedgerEntry{PointsEarned: 20}}

	ack, err := newConsumer(acc).handle(context.Background(), []byte(
		`{"sale_ref":" S-1 ","customer_id":"`+customerID.String()+`","amount":"250.00","tax_amount":"40.00"}`))
	require.NoError(t, err)

	assert.Equal(t, saleAck{SaleRef: "S-1", Points: 20, Status: "accrued"}, ack)
	require.Len(t, acc.calls, 1)
	assert.Equal(t, customerID, acc.calls[0].CustomerID)
	assert.Equal(t, "S-1", acc.calls[0].SaleRef)
	assert.True(t, acc.calls[0].Amount.Equal(decimal.NewFromInt(250)))
	assert.True(t, acc.calls[0].TaxAmount.Equal(decimal.NewFromInt(40)))
	assert.Nil(t, acc.calls[0].ActorID)
}

func TestHandle_Outcomes(t *testing.T) {
	customer := `"customer_id":"` + uuid.NewString() + `",`

	tests := []struct {
		name     string
		body     string
		accruer  *fakeAccruer
		status   string
		wantErr  bool
		wantCall bool
	}{
		{name: "walk-in sale", body: `{"sale_ref":"S-2","amount":"10"}`, accruer: &fakeAccruer{}, status: "skipped"},
		{name: "no points earned", body: `{` + customer + `"sale_ref":"S-3","amount":"1"}`, accruer: &fakeAccruer{}, status: "no_points", wantCall: true},
		{name: "redelivery", body: `{` + customer + `"sale_ref":"S-4","amount":"500"}`, accruer: &fakeAccruer{err: domain.ErrDuplicateAccrual}, status: "duplicate", wantCall: true},
		{name: "ceiling reached", body: `{` + customer + `"sale_ref":"S-5","amount":"500"}`, accruer: &fakeAccruer{err: domain.ErrCapacityExceeded}, status: "rejected", wantCall: true},
		{name: "sale too large to score", body: `{` + customer + `"sale_ref":"S-6","amount":"1e18"}`, accruer: &fakeAccruer{err: domain.ErrInvalidAmount}, status: "rejected", wantCall: true},
		{name: "database down", body: `{` + customer + `"sale_ref":"S-6","amount":"500"}`, accruer: &fakeAccruer{err: errors.New("conn reset")}, wantErr: true, wantCall: true},
		{name: "malformed payload", body: `{"sale_ref":`, accruer: &fakeAccruer{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack, err := newConsumer(tt.accruer).handle(context.Background(), []byte(tt.body))
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.status, ack.Status)
			}
			assert.Equal(t, tt.wantCall, len(tt.accruer.calls) == 1)
		})
	}
}

func TestStart_SubscribeError(t *testing.T) {
	sub := &fakeSubscriber{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewSalesConsumer(&fakeAccruer{}, sub, "pos.sales.completed", "loyalty", logger)

	err := c.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, "pos.sales.completed", sub.subject)
	assert.Equal(t, "loyalty", sub.queue)
}

func TestOnMessage_NoReply(t *testing.T) {
	acc := &fakeAccruer{entry: &domain.LedgerEntry{PointsEarned: 5}}
	c := newConsumer(acc)

	c.onMessage(context.Background(), &nats.Msg{
		Subject: "pos.sales.completed",
		Data:    []byte(`{"sale_ref":"S-7","customer_id":"` + uuid.NewString() + `","amount":"50"}`),
	})
	assert.Len(t, acc.calls, 1)
}
