package loyalty

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/pos-loyalty/internal/domain"
	"github.com/josh-kwaku/pos-loyalty/internal/logging"
)

// GetBalance recomputes the spendable balance from approved entries. A negative result is
// reported as an anomaly rather than clamped.
func (s *Service) GetBalance(ctx context.Context, customerID uuid.UUID) (*domain.Balance, error) {
	if _, err := s.customers.GetByID(ctx, customerID); err != nil {
		return nil, fmt.Errorf("GetBalance: %w", err)
	}

	approved, pending, err := s.ledger.Balances(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("GetBalance: %w", err)
	}

	b := &domain.Balance{
		CustomerID: customerID,
		Points:     approved,
		Pending:    pending,
		Anomaly:    approved < 0,
	}
	if b.Anomaly {
		logging.FromContext(ctx).Warn("negative loyalty balance",
			"customer_id", customerID,
			"balance", approved,
		)
	}
	return b, nil
}

func (s *Service) ListTransactions(ctx context.Context, filter domain.TransactionFilter) (*domain.TransactionPage, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, fmt.Errorf("ListTransactions: status %q: %w", filter.Status, domain.ErrInvalidRequest)
	}
	if filter.Type != "" && !filter.Type.IsValid() {
		return nil, fmt.Errorf("ListTransactions: type %q: %w", filter.Type, domain.ErrInvalidRequest)
	}
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateTo.Before(*filter.DateFrom) {
		return nil, fmt.Errorf("ListTransactions: date range: %w", domain.ErrInvalidRequest)
	}

	filter = filter.Normalize()
	entries, total, err := s.ledger.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}

	return &domain.TransactionPage{
		Entries: entries,
		Total:   total,
		Page:    filter.Page,
		PerPage: filter.PerPage,
	}, nil
}
