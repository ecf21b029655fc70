// Package worker consumes POS sale completions and turns them into loyalty accruals.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/pos-loyalty/internal/domain"
	"github.com/josh-kwaku/pos-loyalty/internal/logging"
	"github.com/josh-kwaku/pos-loyalty/internal/service/loyalty"
)

type purchaseAccruer interface {
	AccruePurchase(ctx context.Context, req loyalty.PurchaseAccrualRequest) (*domain.LedgerEntry, error)
}

type queueSubscriber interface {
	QueueSubscribe(subject, queue string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// SaleCompleted is published by the till once a sale is paid. Walk-in sales carry no customer.
type SaleCompleted struct {
	SaleRef    string          `json:"sale_ref"`
	CustomerID *uuid.UUID      `json:"customer_id"`
	Amount     decimal.Decimal `json:"amount"`
	TaxAmount  decimal.Decimal `json:"tax_amount"`
}

type saleAck struct {
	SaleRef string `json:"sale_ref"`
	Points  int64  `json:"points"`
	Status  string `json:"status"`
}

type SalesConsumer struct {
	accruer purchaseAccruer
	conn    queueSubscriber
	subject string
	queue   string
	logger  *slog.Logger
}

func NewSalesConsumer(accruer purchaseAccruer, conn queueSubscriber, subject, queue string, logger *slog.Logger) *SalesConsumer {
	return &SalesConsumer{
		accruer: accruer,
		conn:    conn,
		subject: subject,
		queue:   queue,
		logger:  logger,
	}
}

// Start joins the queue group so each sale is handled by one replica, and blocks until ctx is done.
func (c *SalesConsumer) Start(ctx context.Context) error {
	sub, err := c.conn.QueueSubscribe(c.subject, c.queue, func(m *nats.Msg) {
		c.onMessage(ctx, m)
	})
	if err != nil {
		return fmt.Errorf("SalesConsumer.Start: %w", err)
	}
	c.logger.Info("sales consumer started", "subject", c.subject, "queue", c.queue)

	<-ctx.Done()
	c.logger.Info("sales consumer draining")
	if err := sub.Drain(); err != nil {
		c.logger.Warn("sales consumer drain failed", "error", err)
	}
	return nil
}

func (c *SalesConsumer) onMessage(ctx context.Context, m *nats.Msg) {
	ack, err := c.handle(ctx, m.Data)
	if err != nil {
		c.logger.Error("sale accrual failed", "subject", m.Subject, "error", err)
		ack = saleAck{Status: "error"}
	}

	if m.Reply == "" {
		return
	}
	body, _ := json.Marshal(ack)
	if err := m.Respond(body); err != nil {
		c.logger.Warn("failed to ack sale", "error", err)
	}
}

// handle returns an error only for failures worth alerting on. Redeliveries and walk-in sales are not errors.
func (c *SalesConsumer) handle(ctx context.Context, data []byte) (saleAck, error) {
	var sale SaleCompleted
	if err := json.Unmarshal(data, &sale); err != nil {
		return saleAck{}, fmt.Errorf("decode sale: %w", err)
	}
	sale.SaleRef = strings.TrimSpace(sale.SaleRef)

	log := c.logger.With("sale_ref", sale.SaleRef)
	ctx = logging.WithLogger(ctx, log)

	if sale.CustomerID == nil || *sale.CustomerID == uuid.Nil {
		log.Debug("sale has no customer, skipping")
		return saleAck{SaleRef: sale.SaleRef, Status: "skipped"}, nil
	}

	entry, err := c.accruer.AccruePurchase(ctx, loyalty.PurchaseAccrualRequest{
		CustomerID: *sale.CustomerID,
		SaleRef:    sale.SaleRef,
		Amount:     sale.Amount,
		TaxAmount:  sale.TaxAmount,
	})
	switch {
	case errors.Is(err, domain.ErrDuplicateAccrual):
		log.Info("sale already accrued")
		return saleAck{SaleRef: sale.SaleRef, Status: "duplicate"}, nil
	case errors.Is(err, domain.ErrCapacityExceeded), errors.Is(err, domain.ErrCustomerNotFound),
		errors.Is(err, domain.ErrInvalidAmount):
		log.Warn("sale not accrued", "customer_id", *sale.CustomerID, "reason", err)
		return saleAck{SaleRef: sale.SaleRef, Status: "rejected"}, nil
	case err != nil:
		return saleAck{}, fmt.Errorf("accrue %s: %w", sale.SaleRef, err)
	}

	if entry == nil {
		return saleAck{SaleRef: sale.SaleRef, Status: "no_points"}, nil
	}
	return saleAck{SaleRef: sale.SaleRef, Points: entry.PointsEarned, Status: "accrued"}, nil
}
