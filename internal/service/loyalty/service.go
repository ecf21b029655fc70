package loyalty

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/pos-loyalty/internal/domain"
	"github.com/josh-kwaku/pos-loyalty/internal/events"
	"github.com/josh-kwaku/pos-loyalty/internal/logging"
)

type customerRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Customer, error)
}

type ledgerRepo interface {
	Create(ctx context.Context, tx *sql.Tx, entry *domain.LedgerEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.LedgerEntry, error)
	ApprovedBalance(ctx context.Context, tx *sql.Tx, customerID uuid.UUID) (int64, error)
	Balances(ctx context.Context, customerID uuid.UUID) (int64, int64, error)
	UpdateApproval(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.ApprovalStatus, approvedBy uuid.UUID, approvedAt time.Time, rejectionReason *string) error
	List(ctx context.Context, filter domain.TransactionFilter) ([]domain.LedgerEntry, int, error)
}

type settingsProvider interface {
	Load(ctx context.Context) (domain.LoyaltySettings, error)
}

// Service owns the points ledger. Callers are expected to have authorised the operator already.
type Service struct {
	customers customerRepo
	ledger    ledgerRepo
	settings  settingsProvider
	publisher events.Publisher
	db        *sql.DB
}

func NewService(
	customers customerRepo,
	ledger ledgerRepo,
	settings settingsProvider,
	publisher events.Publisher,
	db *sql.DB,
) *Service {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Service{
		customers: customers,
		ledger:    ledger,
		settings:  settings,
		publisher: publisher,
		db:        db,
	}
}

// publish runs after commit; a lost event never undoes a ledger write.
func (s *Service) publish(ctx context.Context, eventType domain.EntryEventType, entry *domain.LedgerEntry, actor *uuid.UUID) {
	event := events.NewEntryEvent(eventType, entry, actor, time.Now().UTC())
	if err := s.publisher.PublishEntry(ctx, event); err != nil {
		logging.FromContext(ctx).Warn("failed to publish ledger event",
			"event_type", eventType,
			"entry_id", entry.ID,
			"error", err,
		)
	}
}
