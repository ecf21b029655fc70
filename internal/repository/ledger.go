package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/pos-loyalty/internal/domain"
)

const ledgerColumns = `t.id, t.customer_id, t.transaction_type, t.points_earned, t.points_redeemed,
	t.points_balance, t.description, t.source, t.reference, t.approval_status,
	t.approved_by, t.approved_at, t.rejection_reason, t.created_by, t.created_at`

type LedgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) Create(ctx context.Context, tx *sql.Tx, entry *domain.LedgerEntry) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO loyalty_transactions (
			id, customer_id, transaction_type, points_earned, points_redeemed,
			points_balance, description, source, reference, approval_status,
			approved_by, approved_at, rejection_reason, created_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		entry.ID, entry.CustomerID, entry.TransactionType, entry.PointsEarned, entry.PointsRedeemed,
		entry.PointsBalance, entry.Description, entry.Source, entry.Reference, entry.ApprovalStatus,
		entry.ApprovedBy, entry.ApprovedAt, entry.RejectionReason, entry.CreatedBy, entry.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("Create: %w", domain.ErrDuplicateAccrual)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *LedgerRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+ledgerColumns+` FROM loyalty_transactions t WHERE t.id = $1`, id,
	)
	e, err := scanLedgerEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return e, nil
}

func (r *LedgerRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.LedgerEntry, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+ledgerColumns+` FROM loyalty_transactions t WHERE t.id = $1 FOR UPDATE`, id,
	)
	e, err := scanLedgerEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return e, nil
}

// ApprovedBalance sums approved entries. Run it inside the transaction holding the customer lock
// when the result gates a write.
func (r *LedgerRepository) ApprovedBalance(ctx context.Context, tx *sql.Tx, customerID uuid.UUID) (int64, error) {
	approved, _, err := balances(ctx, tx, customerID)
	if err != nil {
		return 0, fmt.Errorf("ApprovedBalance: %w", err)
	}
	return approved, nil
}

// Balances returns the approved balance and the net points still awaiting approval.
func (r *LedgerRepository) Balances(ctx context.Context, customerID uuid.UUID) (int64, int64, error) {
	approved, pending, err := balances(ctx, r.db, customerID)
	if err != nil {
		return 0, 0, fmt.Errorf("Balances: %w", err)
	}
	return approved, pending, nil
}

func balances(ctx context.Context, q queryer, customerID uuid.UUID) (int64, int64, error) {
	var approved, pending int64
	err := q.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(points_earned - points_redeemed) FILTER (WHERE approval_status = 'approved'), 0),
			COALESCE(SUM(points_earned - points_redeemed) FILTER (WHERE approval_status = 'pending'), 0)
		FROM loyalty_transactions WHERE customer_id = $1`,
		customerID,
	).Scan(&approved, &pending)
	if err != nil {
		return 0, 0, err
	}
	return approved, pending, nil
}

// UpdateApproval moves a pending entry to a terminal state. Anything not pending is left untouched.
func (r *LedgerRepository) UpdateApproval(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.ApprovalStatus, approvedBy uuid.UUID, approvedAt time.Time, rejectionReason *string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE loyalty_transactions
		SET approval_status = $1, approved_by = $2, approved_at = $3, rejection_reason = $4
		WHERE id = $5 AND approval_status = 'pending'`,
		status, approvedBy, approvedAt, rejectionReason, id,
	)
	if err != nil {
		return fmt.Errorf("UpdateApproval: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateApproval: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateApproval: %w", domain.ErrEntryNotPending)
	}
	return nil
}

func (r *LedgerRepository) List(ctx context.Context, filter domain.TransactionFilter) ([]domain.LedgerEntry, int, error) {
	filter = filter.Normalize()
	where, args := ledgerWhere(filter)

	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM loyalty_transactions t
		JOIN customers c ON c.id = t.customer_id`+where, args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("List: count: %w", err)
	}

	args = append(args, filter.PerPage, filter.Offset())
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ledgerColumns+`, c.name FROM loyalty_transactions t
		JOIN customers c ON c.id = t.customer_id`+where+
			fmt.Sprintf(` ORDER BY t.created_at DESC, t.id LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("List: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.LedgerEntry, 0, filter.PerPage)
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(append(ledgerDest(&e), &e.CustomerName)...); err != nil {
			return nil, 0, fmt.Errorf("List: scan: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("List: rows: %w", err)
	}
	return entries, total, nil
}

func ledgerWhere(f domain.TransactionFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+escapeLike(s)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			`(c.name ILIKE $%[1]d OR COALESCE(c.email, '') ILIKE $%[1]d OR t.description ILIKE $%[1]d)`, n))
	}
	if f.Status != "" {
		add(`t.approval_status = $%d`, f.Status)
	}
	if f.Type != "" {
		add(`t.transaction_type = $%d`, f.Type)
	}
	if f.DateFrom != nil {
		add(`t.created_at >= $%d`, startOfDay(*f.DateFrom))
	}
	if f.DateTo != nil {
		add(`t.created_at < $%d`, startOfDay(*f.DateTo).AddDate(0, 0, 1))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func ledgerDest(e *domain.LedgerEntry) []any {
	return []any{
		&e.ID, &e.CustomerID, &e.TransactionType, &e.PointsEarned, &e.PointsRedeemed,
		&e.PointsBalance, &e.Description, &e.Source, &e.Reference, &e.ApprovalStatus,
		&e.ApprovedBy, &e.ApprovedAt, &e.RejectionReason, &e.CreatedBy, &e.CreatedAt,
	}
}

func scanLedgerEntry(s scanner) (*domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	if err := s.Scan(ledgerDest(&e)...); err != nil {
		return nil, err
	}
	return &e, nil
}
