package loyalty

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/pos-loyalty/internal/domain"
	"github.com/josh-kwaku/pos-loyalty/internal/logging"
	"github.com/josh-kwaku/pos-loyalty/internal/points"
	"github.com/josh-kwaku/pos-loyalty/internal/repository"
)

type AddPointsRequest struct {
	CustomerID  uuid.UUID
	Points      int64
	Description string
	Source      domain.PointsSource
	Reference   *string
	// ActorID is the operator behind the request; nil for automated accruals.
	ActorID *uuid.UUID
}

type RedeemPointsRequest struct {
	CustomerID  uuid.UUID
	Points      int64
	Description string
	ActorID     *uuid.UUID
}

type PurchaseAccrualRequest struct {
	CustomerID uuid.UUID
	SaleRef    string
	Amount     decimal.Decimal
	TaxAmount  decimal.Decimal
	ActorID    *uuid.UUID
}

func validateAdd(req AddPointsRequest) error {
	if req.Points <= 0 || req.Points > domain.MaxEntryPoints {
		return fmt.Errorf("validateAdd: %d: %w", req.Points, domain.ErrInvalidAmount)
	}
	if !req.Source.IsValid() || req.Source == domain.SourceRedemption {
		return fmt.Errorf("validateAdd: %q: %w", req.Source, domain.ErrInvalidSource)
	}
	return nil
}

func validateRedeem(req RedeemPointsRequest) error {
	if req.Points <= 0 || req.Points > domain.MaxEntryPoints {
		return fmt.Errorf("validateRedeem: %d: %w", req.Points, domain.ErrInvalidAmount)
	}
	return nil
}

func validatePurchase(req PurchaseAccrualRequest) error {
	if strings.TrimSpace(req.SaleRef) == "" {
		return fmt.Errorf("validatePurchase: sale reference required: %w", domain.ErrInvalidRequest)
	}
	if req.Amount.IsNegative() || req.TaxAmount.IsNegative() {
		return fmt.Errorf("validatePurchase: %w", domain.ErrInvalidAmount)
	}
	return nil
}

// AddPoints appends an earn entry. Manual entries wait for approval; every other source
// counts toward the balance immediately.
func (s *Service) AddPoints(ctx context.Context, req AddPointsRequest) (*domain.LedgerEntry, error) {
	if req.Source == "" {
		req.Source = domain.SourceManual
	}
	if err := validateAdd(req); err != nil {
		return nil, fmt.Errorf("AddPoints: %w", err)
	}

	settings, err := s.settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("AddPoints: %w", err)
	}

	entry, err := s.addPoints(ctx, settings, req)
	if err != nil {
		return nil, fmt.Errorf("AddPoints: %w", err)
	}
	return entry, nil
}

func (s *Service) addPoints(ctx context.Context, settings domain.LoyaltySettings, req AddPointsRequest) (*domain.LedgerEntry, error) {
	log := logging.FromContext(ctx)

	now := time.Now().UTC()
	entry := &domain.LedgerEntry{
		ID:              uuid.New(),
		CustomerID:      req.CustomerID,
		TransactionType: domain.TransactionTypeEarned,
		PointsEarned:    req.Points,
		Description:     strings.TrimSpace(req.Description),
		Source:          req.Source,
		Reference:       req.Reference,
		ApprovalStatus:  domain.ApprovalPending,
		CreatedBy:       req.ActorID,
		CreatedAt:       now,
	}
	if !req.Source.RequiresApproval() {
		approver := actorOrSystem(req.ActorID)
		entry.ApprovalStatus = domain.ApprovalApproved
		entry.ApprovedBy = &approver
		entry.ApprovedAt = &now
	}

	err := repository.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := s.customers.GetForUpdate(ctx, tx, req.CustomerID); err != nil {
			return err
		}

		balance, err := s.ledger.ApprovedBalance(ctx, tx, req.CustomerID)
		if err != nil {
			return err
		}
		if settings.ExceedsCeiling(balance, req.Points) {
			return fmt.Errorf("balance %d + %d above %d: %w", balance, req.Points, settings.MaxPoints, domain.ErrCapacityExceeded)
		}

		entry.PointsBalance = balance + req.Points
		return s.ledger.Create(ctx, tx, entry)
	})
	if err != nil {
		return nil, fmt.Errorf("addPoints: %w", err)
	}

	log.Info("points added",
		"entry_id", entry.ID,
		"customer_id", entry.CustomerID,
		"points", entry.PointsEarned,
		"source", entry.Source,
		"approval_status", entry.ApprovalStatus,
	)
	s.publish(ctx, domain.EntryEventCreated, entry, req.ActorID)

	return entry, nil
}

// RedeemPoints spends approved points. Redemptions skip the approval workflow.
func (s *Service) RedeemPoints(ctx context.Context, req RedeemPointsRequest) (*domain.LedgerEntry, error) {
	log := logging.FromContext(ctx)

	if err := validateRedeem(req); err != nil {
		return nil, fmt.Errorf("RedeemPoints: %w", err)
	}

	now := time.Now().UTC()
	approver := actorOrSystem(req.ActorID)
	entry := &domain.LedgerEntry{
		ID:              uuid.New(),
		CustomerID:      req.CustomerID,
		TransactionType: domain.TransactionTypeRedeemed,
		PointsRedeemed:  req.Points,
		Description:     strings.TrimSpace(req.Description),
		Source:          domain.SourceRedemption,
		ApprovalStatus:  domain.ApprovalApproved,
		ApprovedBy:      &approver,
		ApprovedAt:      &now,
		CreatedBy:       req.ActorID,
		CreatedAt:       now,
	}

	err := repository.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := s.customers.GetForUpdate(ctx, tx, req.CustomerID); err != nil {
			return err
		}

		balance, err := s.ledger.ApprovedBalance(ctx, tx, req.CustomerID)
		if err != nil {
			return err
		}
		if req.Points > balance {
			return fmt.Errorf("requested %d, available %d: %w", req.Points, balance, domain.ErrInsufficientBalance)
		}

		entry.PointsBalance = balance - req.Points
		return s.ledger.Create(ctx, tx, entry)
	})
	if err != nil {
		return nil, fmt.Errorf("RedeemPoints: %w", err)
	}

	log.Info("points redeemed",
		"entry_id", entry.ID,
		"customer_id", entry.CustomerID,
		"points", entry.PointsRedeemed,
		"balance_after", entry.PointsBalance,
	)
	s.publish(ctx, domain.EntryEventCreated, entry, req.ActorID)

	return entry, nil
}

// AccruePurchase converts a completed sale into points using the current settings.
// A sale that earns nothing returns a nil entry. Each sale reference accrues once.
func (s *Service) AccruePurchase(ctx context.Context, req PurchaseAccrualRequest) (*domain.LedgerEntry, error) {
	if err := validatePurchase(req); err != nil {
		return nil, fmt.Errorf("AccruePurchase: %w", err)
	}

	settings, err := s.settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("AccruePurchase: %w", err)
	}

	earned, err := points.Calculate(req.Amount, req.TaxAmount, settings)
	if err != nil {
		return nil, fmt.Errorf("AccruePurchase: %w", err)
	}
	if earned == 0 {
		logging.FromContext(ctx).Debug("sale earned no points", "customer_id", req.CustomerID, "sale_ref", req.SaleRef)
		return nil, nil
	}

	ref := strings.TrimSpace(req.SaleRef)
	entry, err := s.addPoints(ctx, settings, AddPointsRequest{
		CustomerID:  req.CustomerID,
		Points:      earned,
		Description: fmt.Sprintf("Purchase %s (%s)", ref, req.Amount.StringFixed(2)),
		Source:      domain.SourcePurchase,
		Reference:   &ref,
		ActorID:     req.ActorID,
	})
	if err != nil {
		return nil, fmt.Errorf("AccruePurchase: %w", err)
	}
	return entry, nil
}

// AwardWelcomeBonus grants the configured sign-up bonus, at most once per customer.
func (s *Service) AwardWelcomeBonus(ctx context.Context, customerID uuid.UUID, actor *uuid.UUID) (*domain.LedgerEntry, error) {
	settings, err := s.settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("AwardWelcomeBonus: %w", err)
	}
	if !settings.WelcomeBonusEnabled || settings.WelcomeBonusPoints <= 0 {
		return nil, fmt.Errorf("AwardWelcomeBonus: %w", domain.ErrFeatureDisabled)
	}

	entry, err := s.addPoints(ctx, settings, AddPointsRequest{
		CustomerID:  customerID,
		Points:      settings.WelcomeBonusPoints,
		Description: "Welcome bonus",
		Source:      domain.SourceWelcome,
		ActorID:     actor,
	})
	if err != nil {
		return nil, fmt.Errorf("AwardWelcomeBonus: %w", err)
	}
	return entry, nil
}

// PreviewPoints runs the calculator against the stored settings without writing anything.
func (s *Service) PreviewPoints(ctx context.Context, amount, taxAmount decimal.Decimal) (points.Breakdown, error) {
	settings, err := s.settings.Load(ctx)
	if err != nil {
		return points.Breakdown{}, fmt.Errorf("PreviewPoints: %w", err)
	}
	b, err := points.Explain(amount, taxAmount, settings)
	if err != nil {
		return points.Breakdown{}, fmt.Errorf("PreviewPoints: %w", err)
	}
	return b, nil
}

func actorOrSystem(actor *uuid.UUID) uuid.UUID {
	if actor != nil && *actor != uuid.Nil {
		return *actor
	}
	return domain.SystemUserID
}
