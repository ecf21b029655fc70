package loyalty

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/pos-loyalty/internal/domain"
	"github.com/josh-kwaku/pos-loyalty/internal/logging"
	"github.com/josh-kwaku/pos-loyalty/internal/repository"
)

type ApproveRequest struct {
	EntryID    uuid.UUID
	ApproverID uuid.UUID
}

type RejectRequest struct {
	EntryID    uuid.UUID
	ApproverID uuid.UUID
	Reason     string
}

// ApproveEntry moves a pending entry to approved so it starts counting toward the balance.
// An earn entry that would now breach the points ceiling is refused.
func (s *Service) ApproveEntry(ctx context.Context, req ApproveRequest) (*domain.LedgerEntry, error) {
	log := logging.FromContext(ctx)

	settings, err := s.settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("ApproveEntry: %w", err)
	}

	entry, err := s.transition(ctx, req.EntryID, func(tx *sql.Tx, entry *domain.LedgerEntry, now time.Time) error {
		if entry.TransactionType == domain.TransactionTypeEarned && settings.MaxPointsEnabled {
			balance, err := s.ledger.ApprovedBalance(ctx, tx, entry.CustomerID)
			if err != nil {
				return err
			}
			if settings.ExceedsCeiling(balance, entry.Delta()) {
				return fmt.Errorf("balance %d + %d above %d: %w", balance, entry.Delta(), settings.MaxPoints, domain.ErrCapacityExceeded)
			}
		}

		if err := s.ledger.UpdateApproval(ctx, tx, entry.ID, domain.ApprovalApproved, req.ApproverID, now, nil); err != nil {
			return err
		}
		entry.ApprovalStatus = domain.ApprovalApproved
		entry.ApprovedBy = &req.ApproverID
		entry.ApprovedAt = &now
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ApproveEntry: %w", err)
	}

	log.Info("points entry approved",
		"entry_id", entry.ID,
		"customer_id", entry.CustomerID,
		"approved_by", req.ApproverID,
	)
	s.publish(ctx, domain.EntryEventApproved, entry, &req.ApproverID)

	return entry, nil
}

// RejectEntry closes a pending entry without it ever affecting the balance.
func (s *Service) RejectEntry(ctx context.Context, req RejectRequest) (*domain.LedgerEntry, error) {
	log := logging.FromContext(ctx)

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = domain.DefaultRejectionReason
	}

	entry, err := s.transition(ctx, req.EntryID, func(tx *sql.Tx, entry *domain.LedgerEntry, now time.Time) error {
		if err := s.ledger.UpdateApproval(ctx, tx, entry.ID, domain.ApprovalRejected, req.ApproverID, now, &reason); err != nil {
			return err
		}
		entry.ApprovalStatus = domain.ApprovalRejected
		entry.ApprovedBy = &req.ApproverID
		entry.ApprovedAt = &now
		entry.RejectionReason = &reason
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("RejectEntry: %w", err)
	}

	log.Info("points entry rejected",
		"entry_id", entry.ID,
		"customer_id", entry.CustomerID,
		"rejected_by", req.ApproverID,
		"reason", reason,
	)
	s.publish(ctx, domain.EntryEventRejected, entry, &req.ApproverID)

	return entry, nil
}

// transition locks the customer, then the entry (the same order AddPoints uses), and hands
// a still-pending entry to apply. Missing and already-processed entries look the same to callers.
func (s *Service) transition(ctx context.Context, entryID uuid.UUID, apply func(tx *sql.Tx, entry *domain.LedgerEntry, now time.Time) error) (*domain.LedgerEntry, error) {
	current, err := s.ledger.GetByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("transition: %w", domain.ErrEntryNotPending)
		}
		return nil, fmt.Errorf("transition: %w", err)
	}
	if current.ApprovalStatus != domain.ApprovalPending {
		return nil, fmt.Errorf("transition: %s: %w", current.ApprovalStatus, domain.ErrEntryNotPending)
	}

	var locked *domain.LedgerEntry
	err = repository.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := s.customers.GetForUpdate(ctx, tx, current.CustomerID); err != nil {
			return err
		}

		entry, err := s.ledger.GetForUpdate(ctx, tx, entryID)
		if err != nil {
			return err
		}
		if entry.ApprovalStatus != domain.ApprovalPending {
			return fmt.Errorf("%s: %w", entry.ApprovalStatus, domain.ErrEntryNotPending)
		}

		if err := apply(tx, entry, time.Now().UTC()); err != nil {
			return err
		}
		locked = entry
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("transition: %w", err)
	}
	return locked, nil
}
