package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/pos-loyalty/internal/domain"
	"github.com/josh-kwaku/pos-loyalty/internal/logging"
	"github.com/josh-kwaku/pos-loyalty/internal/points"
	"github.com/josh-kwaku/pos-loyalty/internal/service/loyalty"
)

type loyaltyService interface {
	GetBalance(ctx context.Context, customerID uuid.UUID) (*domain.Balance, error)
	AddPoints(ctx context.Context, req loyalty.AddPointsRequest) (*domain.LedgerEntry, error)
	RedeemPoints(ctx context.Context, req loyalty.RedeemPointsRequest) (*domain.LedgerEntry, error)
	AccruePurchase(ctx context.Context, req loyalty.PurchaseAccrualRequest) (*domain.LedgerEntry, error)
	AwardWelcomeBonus(ctx context.Context, customerID uuid.UUID, actor *uuid.UUID) (*domain.LedgerEntry, error)
	ApproveEntry(ctx context.Context, req loyalty.ApproveRequest) (*domain.LedgerEntry, error)
	RejectEntry(ctx context.Context, req loyalty.RejectRequest) (*domain.LedgerEntry, error)
	ListTransactions(ctx context.Context, filter domain.TransactionFilter) (*domain.TransactionPage, error)
	PreviewPoints(ctx context.Context, amount, taxAmount decimal.Decimal) (points.Breakdown, error)
}

type LoyaltyHandler struct {
	loyalty loyaltyService
}

func NewLoyaltyHandler(svc loyaltyService) *LoyaltyHandler {
	return &LoyaltyHandler{loyalty: svc}
}

type addPointsRequest struct {
	Points      int64   `json:"points"`
	Description string  `json:"description"`
	Source      string  `json:"source"`
	Reference   *string `json:"reference"`
}

func (r addPointsRequest) Validate() []FieldError {
	var errs []FieldError
	if fe, bad := pointsOutOfRange(r.Points); bad {
		errs = append(errs, fe)
	}
	if r.Source != "" {
		src := domain.PointsSource(r.Source)
		if !src.IsValid() || src == domain.SourceRedemption {
			errs = append(errs, FieldError{Field: "source", Message: "must be manual, welcome, bonus, adjustment, or purchase"})
		}
	}
	return errs
}

func pointsOutOfRange(points int64) (FieldError, bool) {
	if points <= 0 || points > domain.MaxEntryPoints {
		return FieldError{Field: "points", Message: fmt.Sprintf("must be between 1 and %d", domain.MaxEntryPoints)}, true
	}
	return FieldError{}, false
}

type redeemPointsRequest struct {
	Points      int64  `json:"points"`
	Description string `json:"description"`
}

func (r redeemPointsRequest) Validate() []FieldError {
	var errs []FieldError
	if fe, bad := pointsOutOfRange(r.Points); bad {
		errs = append(errs, fe)
	}
	return errs
}

type purchaseRequest struct {
	SaleRef   string          `json:"sale_ref"`
	Amount    decimal.Decimal `json:"amount"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
}

func (r purchaseRequest) Validate() []FieldError {
	var errs []FieldError
	if strings.TrimSpace(r.SaleRef) == "" {
		errs = append(errs, FieldError{Field: "sale_ref", Message: "required"})
	}
	if r.Amount.IsNegative() {
		errs = append(errs, FieldError{Field: "amount", Message: "must not be negative"})
	}
	if r.TaxAmount.IsNegative() {
		errs = append(errs, FieldError{Field: "tax_amount", Message: "must not be negative"})
	}
	return errs
}

type calculateRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type balanceDTO struct {
	CustomerID    uuid.UUID `json:"customer_id"`
	Points        int64     `json:"points"`
	PendingPoints int64     `json:"pending_points"`
	Anomaly       bool      `json:"anomaly"`
}

type entryDTO struct {
	ID              uuid.UUID  `json:"id"`
	CustomerID      uuid.UUID  `json:"customer_id"`
	CustomerName    string     `json:"customer_name,omitempty"`
	TransactionType string     `json:"transaction_type"`
	PointsEarned    int64      `json:"points_earned"`
	PointsRedeemed  int64      `json:"points_redeemed"`
	PointsBalance   int64      `json:"points_balance"`
	Description     string     `json:"description"`
	Source          string     `json:"source"`
	Reference       *string    `json:"reference,omitempty"`
	ApprovalStatus  string     `json:"approval_status"`
	ApprovedBy      *uuid.UUID `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func toEntryDTO(e *domain.LedgerEntry) entryDTO {
	return entryDTO{
		ID:              e.ID,
		CustomerID:      e.CustomerID,
		CustomerName:    e.CustomerName,
		TransactionType: string(e.TransactionType),
		PointsEarned:    e.PointsEarned,
		PointsRedeemed:  e.PointsRedeemed,
		PointsBalance:   e.PointsBalance,
		Description:     e.Description,
		Source:          string(e.Source),
		Reference:       e.Reference,
		ApprovalStatus:  string(e.ApprovalStatus),
		ApprovedBy:      e.ApprovedBy,
		ApprovedAt:      e.ApprovedAt,
		RejectionReason: e.RejectionReason,
		CreatedAt:       e.CreatedAt,
	}
}

type transactionPageDTO struct {
	Transactions []entryDTO `json:"transactions"`
	Total        int        `json:"total"`
	Page         int        `json:"page"`
	PerPage      int        `json:"per_page"`
}

type breakdownDTO struct {
	CalculationAmount decimal.Decimal `json:"calculation_amount"`
	MethodPoints      decimal.Decimal `json:"method_points"`
	CurrencyPoints    decimal.Decimal `json:"currency_points"`
	Points            int64           `json:"points"`
}

func (h *LoyaltyHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	customerID, appErr := idFromPath(r, ErrCustomerNotFound)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	b, err := h.loyalty.GetBalance(r.Context(), customerID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, balanceDTO{
		CustomerID:    b.CustomerID,
		Points:        b.Points,
		PendingPoints: b.Pending,
		Anomaly:       b.Anomaly,
	})
}

func (h *LoyaltyHandler) AddPoints(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	actor, appErr := actorFromContext(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	customerID, appErr := idFromPath(r, ErrCustomerNotFound)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req addPointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	entry, err := h.loyalty.AddPoints(r.Context(), loyalty.AddPointsRequest{
		CustomerID:  customerID,
		Points:      req.Points,
		Description: req.Description,
		Source:      domain.PointsSource(req.Source),
		Reference:   req.Reference,
		ActorID:     &actor,
	})
	if err != nil {
		log.Warn("add points failed", "customer_id", customerID, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, toEntryDTO(entry))
}

func (h *LoyaltyHandler) RedeemPoints(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	actor, appErr := actorFromContext(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	customerID, appErr := idFromPath(r, ErrCustomerNotFound)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req redeemPointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	entry, err := h.loyalty.RedeemPoints(r.Context(), loyalty.RedeemPointsRequest{
		CustomerID:  customerID,
		Points:      req.Points,
		Description: req.Description,
		ActorID:     &actor,
	})
	if err != nil {
		log.Warn("redeem points failed", "customer_id", customerID, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, toEntryDTO(entry))
}

func (h *LoyaltyHandler) AwardWelcomeBonus(w http.ResponseWriter, r *http.Request) {
	actor, appErr := actorFromContext(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	customerID, appErr := idFromPath(r, ErrCustomerNotFound)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	entry, err := h.loyalty.AwardWelcomeBonus(r.Context(), customerID, &actor)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, toEntryDTO(entry))
}

// AccruePurchase answers 200 with null data when the sale earns nothing.
func (h *LoyaltyHandler) AccruePurchase(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	actor, appErr := actorFromContext(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	customerID, appErr := idFromPath(r, ErrCustomerNotFound)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	entry, err := h.loyalty.AccruePurchase(r.Context(), loyalty.PurchaseAccrualRequest{
		CustomerID: customerID,
		SaleRef:    req.SaleRef,
		Amount:     req.Amount,
		TaxAmount:  req.TaxAmount,
		ActorID:    &actor,
	})
	if err != nil {
		log.Warn("purchase accrual failed", "customer_id", customerID, "sale_ref", req.SaleRef, "error", err)
		RespondDomainError(w, err)
		return
	}
	if entry == nil {
		RespondSuccess(w, http.StatusOK, nil)
		return
	}

	RespondSuccess(w, http.StatusCreated, toEntryDTO(entry))
}

func (h *LoyaltyHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	b, err := h.loyalty.PreviewPoints(r.Context(), req.Amount, req.TaxAmount)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, breakdownDTO{
		CalculationAmount: b.CalculationAmount,
		MethodPoints:      b.MethodPoints,
		CurrencyPoints:    b.CurrencyPoints,
		Points:            b.Total,
	})
}

func (h *LoyaltyHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, fields := parseTransactionFilter(r)
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	page, err := h.loyalty.ListTransactions(r.Context(), filter)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	dtos := make([]entryDTO, len(page.Entries))
	for i := range page.Entries {
		dtos[i] = toEntryDTO(&page.Entries[i])
	}

	RespondSuccess(w, http.StatusOK, transactionPageDTO{
		Transactions: dtos,
		Total:        page.Total,
		Page:         page.Page,
		PerPage:      page.PerPage,
	})
}

func (h *LoyaltyHandler) Approve(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	approver, appErr := actorFromContext(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	entryID, appErr := idFromPath(r, ErrEntryNotPending)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	entry, err := h.loyalty.ApproveEntry(r.Context(), loyalty.ApproveRequest{EntryID: entryID, ApproverID: approver})
	if err != nil {
		log.Warn("approve entry failed", "entry_id", entryID, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toEntryDTO(entry))
}

func (h *LoyaltyHandler) Reject(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	approver, appErr := actorFromContext(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	entryID, appErr := idFromPath(r, ErrEntryNotPending)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	// The body is optional; an empty one means no reason was given.
	var req rejectRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			RespondAppError(w, ErrInvalidRequest, nil)
			return
		}
	}

	entry, err := h.loyalty.RejectEntry(r.Context(), loyalty.RejectRequest{
		EntryID:    entryID,
		ApproverID: approver,
		Reason:     req.Reason,
	})
	if err != nil {
		log.Warn("reject entry failed", "entry_id", entryID, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toEntryDTO(entry))
}

const dateLayout = "2006-01-02"

func parseTransactionFilter(r *http.Request) (domain.TransactionFilter, []FieldError) {
	q := r.URL.Query()
	f := domain.TransactionFilter{
		Search: strings.TrimSpace(q.Get("search")),
		Status: domain.ApprovalStatus(q.Get("status")),
		Type:   domain.TransactionType(q.Get("type")),
	}

	var errs []FieldError
	if f.Status != "" && !f.Status.IsValid() {
		errs = append(errs, FieldError{Field: "status", Message: "must be pending, approved, or rejected"})
	}
	if f.Type != "" && !f.Type.IsValid() {
		errs = append(errs, FieldError{Field: "type", Message: "must be earned or redeemed"})
	}

	for _, d := range []struct {
		field string
		dst   **time.Time
	}{{"date_from", &f.DateFrom}, {"date_to", &f.DateTo}} {
		raw := q.Get(d.field)
		if raw == "" {
			continue
		}
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			errs = append(errs, FieldError{Field: d.field, Message: "must be YYYY-MM-DD"})
			continue
		}
		*d.dst = &t
	}

	for _, p := range []struct {
		field string
		dst   *int
	}{{"page", &f.Page}, {"per_page", &f.PerPage}} {
		raw := q.Get(p.field)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			errs = append(errs, FieldError{Field: p.field, Message: "must be a positive integer"})
			continue
		}
		*p.dst = n
	}

	return f, errs
}
