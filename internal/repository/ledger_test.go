package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/josh-kwaku/pos-loyalty/internal/domain"
)

func TestLedgerWhere_Empty(t *testing.T) {
	where, args := ledgerWhere(domain.TransactionFilter{})
	assert.Empty(t, where)
	assert.Empty(t, args)
}

func TestLedgerWhere_AllFilters(t *testing.T) {
	from := time.Date(2026, 3, 1, 15, 4, 5, 0, time.UTC)
	to := time.Date(2026, 3, 31, 9, 0, 0, 0, time.UTC)

	where, args := ledgerWhere(domain.TransactionFilter{
		Search:   "50%_off",
		Status:   domain.ApprovalPending,
		Type:     domain.TransactionTypeEarned,
		DateFrom: &from,
		DateTo:   &to,
	})

	assert.Equal(t,
		` WHERE (c.name ILIKE $1 OR COALESCE(c.email, '') ILIKE $1 OR t.description ILIKE $1)`+
			` AND t.approval_status = $2 AND t.transaction_type = $3`+
			` AND t.created_at >= $4 AND t.created_at < $5`,
		where)
	assert.Equal(t, []any{
		`%50\%\_off%`,
		domain.ApprovalPending,
		domain.TransactionTypeEarned,
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}, args)
}

func TestLedgerWhere_StatusOnly(t *testing.T) {
	where, args := ledgerWhere(domain.TransactionFilter{Status: domain.ApprovalRejected})
	assert.Equal(t, ` WHERE t.approval_status = $1`, where)
	assert.Equal(t, []any{domain.ApprovalRejected}, args)
}
