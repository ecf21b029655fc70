// Package points converts spend into loyalty points. Nothing here touches storage,
// so it is safe for previews.
package points

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/pos-loyalty/internal/domain"
)

var (
	hundred  = decimal.NewFromInt(100)
	maxTotal = decimal.NewFromInt(domain.MaxEntryPoints)
)

// Breakdown explains how a point total was reached.
type Breakdown struct {
	CalculationAmount decimal.Decimal
	MethodPoints      decimal.Decimal
	CurrencyPoints    decimal.Decimal
	Total             int64
}

// Calculate returns the points earned for a spend. Fractions are truncated.
func Calculate(amount, taxAmount decimal.Decimal, settings domain.LoyaltySettings) (int64, error) {
	b, err := Explain(amount, taxAmount, settings)
	if err != nil {
		return 0, err
	}
	return b.Total, nil
}

// Explain computes the same total as Calculate along with the parts it was built from.
func Explain(amount, taxAmount decimal.Decimal, settings domain.LoyaltySettings) (Breakdown, error) {
	if amount.IsNegative() || taxAmount.IsNegative() {
		return Breakdown{}, fmt.Errorf("Calculate: %w", domain.ErrInvalidAmount)
	}
	if !settings.SpendingPointsEnabled {
		return Breakdown{CalculationAmount: decimal.Zero, MethodPoints: decimal.Zero, CurrencyPoints: decimal.Zero}, nil
	}

	calc := amount
	if !settings.IncludeTax {
		calc = decimal.Max(amount.Sub(taxAmount), decimal.Zero)
	}

	var methodPoints decimal.Decimal
	switch settings.Method {
	case domain.MethodThreshold:
		methodPoints = steps(calc, settings.ThresholdAmount).Mul(settings.PointsPerThreshold)
	case domain.MethodPercentage:
		methodPoints = calc.Mul(settings.Percentage).Div(hundred)
	case domain.MethodFixedRate:
		methodPoints = steps(calc, settings.FixedSpendingAmount).Mul(settings.FixedPointsAmount)
	default:
		return Breakdown{}, fmt.Errorf("Calculate: method %q: %w", settings.Method, domain.ErrInvalidSettings)
	}

	currencyPoints := decimal.Zero
	if !settings.PointsPerCurrency.IsZero() {
		currencyPoints = calc.Mul(settings.PointsPerCurrency)
	}

	total := methodPoints.Add(currencyPoints).Floor()
	if total.IsNegative() {
		total = decimal.Zero
	}
	if total.GreaterThan(maxTotal) {
		return Breakdown{}, fmt.Errorf("Calculate: %s points above entry limit: %w", total, domain.ErrInvalidAmount)
	}

	return Breakdown{
		CalculationAmount: calc,
		MethodPoints:      methodPoints,
		CurrencyPoints:    currencyPoints,
		Total:             total.IntPart(),
	}, nil
}

// steps counts whole multiples of unit in amount. A non-positive unit yields zero.
func steps(amount, unit decimal.Decimal) decimal.Decimal {
	if !unit.IsPositive() {
		return decimal.Zero
	}
	return amount.Div(unit).Floor()
}
