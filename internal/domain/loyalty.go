package domain

import (
	"time"

	"github.com/google/uuid"
)

// SystemUserID attributes automatic approvals that no operator performed.
var SystemUserID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

const DefaultRejectionReason = "no reason provided"

// MaxEntryPoints bounds a single ledger entry so running balances stay far from int64 limits.
const MaxEntryPoints int64 = 1_000_000_000

type TransactionType string

const (
	TransactionTypeEarned   TransactionType = "earned"
	TransactionTypeRedeemed TransactionType = "redeemed"
)

func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeEarned, TransactionTypeRedeemed:
		return true
	}
	return false
}

type PointsSource string

const (
	SourceManual     PointsSource = "manual"
	SourceWelcome    PointsSource = "welcome"
	SourceBonus      PointsSource = "bonus"
	SourceAdjustment PointsSource = "adjustment"
	SourcePurchase   PointsSource = "purchase"
	SourceRedemption PointsSource = "redemption"
)

func (s PointsSource) IsValid() bool {
	switch s {
	case SourceManual, SourceWelcome, SourceBonus, SourceAdjustment, SourcePurchase, SourceRedemption:
		return true
	}
	return false
}

// RequiresApproval reports whether entries from this source start out pending.
func (s PointsSource) RequiresApproval() bool {
	return s == SourceManual
}

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

func (s ApprovalStatus) IsValid() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
		return true
	}
	return false
}

// LedgerEntry is one earn or redemption event. Only the approval fields change after insert.
type LedgerEntry struct {
	ID              uuid.UUID
	CustomerID      uuid.UUID
	TransactionType TransactionType
	PointsEarned    int64
	PointsRedeemed  int64
	// PointsBalance is the approved balance snapshot taken at insert time. Display only.
	PointsBalance   int64
	Description     string
	Source          PointsSource
	Reference       *string
	ApprovalStatus  ApprovalStatus
	ApprovedBy      *uuid.UUID
	ApprovedAt      *time.Time
	RejectionReason *string
	CreatedBy       *uuid.UUID
	CreatedAt       time.Time

	// Populated by listings only.
	CustomerName string
}

// Delta is the signed effect of the entry on the approved balance once approved.
func (e *LedgerEntry) Delta() int64 {
	return e.PointsEarned - e.PointsRedeemed
}

type Balance struct {
	CustomerID uuid.UUID
	Points     int64
	Pending    int64
	// Anomaly is set when the ledger implies a negative balance.
	Anomaly bool
}

type TransactionFilter struct {
	Search   string
	Status   ApprovalStatus
	Type     TransactionType
	DateFrom *time.Time
	DateTo   *time.Time
	Page     int
	PerPage  int
}

const (
	DefaultPerPage = 25
	MaxPerPage     = 100
)

// Normalize clamps paging to sane bounds.
func (f TransactionFilter) Normalize() TransactionFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = DefaultPerPage
	}
	if f.PerPage > MaxPerPage {
		f.PerPage = MaxPerPage
	}
	return f
}

func (f TransactionFilter) Offset() int {
	return (f.Page - 1) * f.PerPage
}

type TransactionPage struct {
	Entries []LedgerEntry
	Total   int
	Page    int
	PerPage int
}

type EntryEventType string

const (
	EntryEventCreated  EntryEventType = "loyalty.entry.created"
	EntryEventApproved EntryEventType = "loyalty.entry.approved"
	EntryEventRejected EntryEventType = "loyalty.entry.rejected"
)
