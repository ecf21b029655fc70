// Package events publishes ledger changes for downstream consumers (receipts, CRM sync).
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/pos-loyalty/internal/domain"
)

// EntryEvent is the payload published for every committed ledger change.
type EntryEvent struct {
	Type            domain.EntryEventType  `json:"type"`
	EntryID         uuid.UUID              `json:"entry_id"`
	CustomerID      uuid.UUID              `json:"customer_id"`
	TransactionType domain.TransactionType `json:"transaction_type"`
	Points          int64                  `json:"points"`
	Source          domain.PointsSource    `json:"source"`
	ApprovalStatus  domain.ApprovalStatus  `json:"approval_status"`
	ActorID         *uuid.UUID             `json:"actor_id,omitempty"`
	OccurredAt      time.Time              `json:"occurred_at"`
}

func NewEntryEvent(eventType domain.EntryEventType, e *domain.LedgerEntry, actor *uuid.UUID, at time.Time) EntryEvent {
	points := e.PointsEarned
	if e.TransactionType == domain.TransactionTypeRedeemed {
		points = e.PointsRedeemed
	}
	return EntryEvent{
		Type:            eventType,
		EntryID:         e.ID,
		CustomerID:      e.CustomerID,
		TransactionType: e.TransactionType,
		Points:          points,
		Source:          e.Source,
		ApprovalStatus:  e.ApprovalStatus,
		ActorID:         actor,
		OccurredAt:      at,
	}
}
