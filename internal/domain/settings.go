package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

type CalculationMethod string

const (
	MethodThreshold  CalculationMethod = "threshold"
	MethodPercentage CalculationMethod = "percentage"
	MethodFixedRate  CalculationMethod = "fixed_rate"
)

func (m CalculationMethod) IsValid() bool {
	switch m {
	case MethodThreshold, MethodPercentage, MethodFixedRate:
		return true
	}
	return false
}

// Keys of the loyalty_settings table.
const (
	SettingSpendingPointsEnabled = "spending_points_enabled"
	SettingCalculationMethod     = "calculation_method"
	SettingThresholdAmount       = "threshold_amount"
	SettingPointsPerThreshold    = "points_per_threshold"
	SettingPointsPercentage      = "points_percentage"
	SettingFixedSpendingAmount   = "fixed_spending_amount"
	SettingFixedPointsAmount     = "fixed_points_amount"
	SettingPointsPerCurrency     = "points_per_currency"
	SettingIncludeTax            = "include_tax"
	SettingMaxPointsEnabled      = "max_points_enabled"
	SettingMaxPoints             = "max_points"
	SettingWelcomeBonusEnabled   = "welcome_bonus_enabled"
	SettingWelcomeBonusPoints    = "welcome_bonus_points"
)

// LoyaltySettings is the typed view of the flat loyalty_settings key/value table.
type LoyaltySettings struct {
	SpendingPointsEnabled bool
	Method                CalculationMethod
	ThresholdAmount       decimal.Decimal
	PointsPerThreshold    decimal.Decimal
	Percentage            decimal.Decimal
	FixedSpendingAmount   decimal.Decimal
	FixedPointsAmount     decimal.Decimal
	PointsPerCurrency     decimal.Decimal
	IncludeTax            bool
	MaxPointsEnabled      bool
	MaxPoints             int64
	WelcomeBonusEnabled   bool
	WelcomeBonusPoints    int64
}

func DefaultLoyaltySettings() LoyaltySettings {
	return LoyaltySettings{
		SpendingPointsEnabled: true,
		Method:                MethodThreshold,
		ThresholdAmount:       decimal.NewFromInt(100),
		PointsPerThreshold:    decimal.NewFromInt(10),
		Percentage:            decimal.Zero,
		FixedSpendingAmount:   decimal.NewFromInt(1),
		FixedPointsAmount:     decimal.Zero,
		PointsPerCurrency:     decimal.Zero,
	}
}

// ExceedsCeiling reports whether adding delta to balance would break the max-points policy.
// A sum that does not fit in int64 always exceeds it.
func (s LoyaltySettings) ExceedsCeiling(balance, delta int64) bool {
	if !s.MaxPointsEnabled {
		return false
	}
	if delta > 0 && balance > math.MaxInt64-delta {
		return true
	}
	return balance+delta > s.MaxPoints
}

// ParseLoyaltySettings overlays raw values onto the defaults. Keys it does not know are ignored.
func ParseLoyaltySettings(raw map[string]string) (LoyaltySettings, error) {
	s := DefaultLoyaltySettings()
	p := settingsParser{raw: raw}

	p.boolean(SettingSpendingPointsEnabled, &s.SpendingPointsEnabled)
	p.boolean(SettingIncludeTax, &s.IncludeTax)
	p.boolean(SettingMaxPointsEnabled, &s.MaxPointsEnabled)
	p.boolean(SettingWelcomeBonusEnabled, &s.WelcomeBonusEnabled)

	if v, ok := p.value(SettingCalculationMethod); ok {
		s.Method = CalculationMethod(strings.ToLower(v))
		if !s.Method.IsValid() {
			p.fail(SettingCalculationMethod, "must be threshold, percentage, or fixed_rate")
		}
	}

	p.positive(SettingThresholdAmount, &s.ThresholdAmount)
	p.nonNegative(SettingPointsPerThreshold, &s.PointsPerThreshold)
	p.nonNegative(SettingPointsPercentage, &s.Percentage)
	p.positive(SettingFixedSpendingAmount, &s.FixedSpendingAmount)
	p.nonNegative(SettingFixedPointsAmount, &s.FixedPointsAmount)
	p.nonNegative(SettingPointsPerCurrency, &s.PointsPerCurrency)
	p.integer(SettingMaxPoints, &s.MaxPoints)
	p.integer(SettingWelcomeBonusPoints, &s.WelcomeBonusPoints)

	if p.err != nil {
		return LoyaltySettings{}, p.err
	}
	return s, nil
}

// Values renders the settings back to the key/value form they are stored in.
func (s LoyaltySettings) Values() map[string]string {
	return map[string]string{
		SettingSpendingPointsEnabled: strconv.FormatBool(s.SpendingPointsEnabled),
		SettingCalculationMethod:     string(s.Method),
		SettingThresholdAmount:       s.ThresholdAmount.String(),
		SettingPointsPerThreshold:    s.PointsPerThreshold.String(),
		SettingPointsPercentage:      s.Percentage.String(),
		SettingFixedSpendingAmount:   s.FixedSpendingAmount.String(),
		SettingFixedPointsAmount:     s.FixedPointsAmount.String(),
		SettingPointsPerCurrency:     s.PointsPerCurrency.String(),
		SettingIncludeTax:            strconv.FormatBool(s.IncludeTax),
		SettingMaxPointsEnabled:      strconv.FormatBool(s.MaxPointsEnabled),
		SettingMaxPoints:             strconv.FormatInt(s.MaxPoints, 10),
		SettingWelcomeBonusEnabled:   strconv.FormatBool(s.WelcomeBonusEnabled),
		SettingWelcomeBonusPoints:    strconv.FormatInt(s.WelcomeBonusPoints, 10),
	}
}

// IsKnownSetting reports whether key is one of the loyalty_settings keys.
func IsKnownSetting(key string) bool {
	_, ok := DefaultLoyaltySettings().Values()[key]
	return ok
}

type settingsParser struct {
	raw map[string]string
	err error
}

func (p *settingsParser) value(key string) (string, bool) {
	v, ok := p.raw[key]
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (p *settingsParser) fail(key, msg string) {
	if p.err == nil {
		p.err = fmt.Errorf("%s: %s: %w", key, msg, ErrInvalidSettings)
	}
}

func (p *settingsParser) boolean(key string, dst *bool) {
	v, ok := p.value(key)
	if !ok {
		return
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		*dst = true
	case "0", "false", "no", "off":
		*dst = false
	default:
		p.fail(key, "must be a boolean")
	}
}

func (p *settingsParser) decimal(key string) (decimal.Decimal, bool) {
	v, ok := p.value(key)
	if !ok {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		p.fail(key, "must be a number")
		return decimal.Zero, false
	}
	return d, true
}

func (p *settingsParser) nonNegative(key string, dst *decimal.Decimal) {
	d, ok := p.decimal(key)
	if !ok {
		return
	}
	if d.IsNegative() {
		p.fail(key, "must not be negative")
		return
	}
	*dst = d
}

func (p *settingsParser) positive(key string, dst *decimal.Decimal) {
	d, ok := p.decimal(key)
	if !ok {
		return
	}
	if !d.IsPositive() {
		p.fail(key, "must be greater than zero")
		return
	}
	*dst = d
}

func (p *settingsParser) integer(key string, dst *int64) {
	v, ok := p.value(key)
	if !ok {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		p.fail(key, "must be a non-negative integer")
		return
	}
	*dst = n
}
