package domain

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLoyaltySettings_Defaults(t *testing.T) {
	s, err := ParseLoyaltySettings(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultLoyaltySettings(), s)
	assert.True(t, s.SpendingPointsEnabled)
	assert.Equal(t, MethodThreshold, s.Method)
}

func TestParseLoyaltySettings_Values(t *testing.T) {
	s, err := ParseLoyaltySettings(map[string]string{
		SettingCalculationMethod:   "Percentage",
		SettingPointsPercentage:    "2.5",
		SettingPointsPerCurrency:   "1",
		SettingIncludeTax:          "yes",
		SettingMaxPointsEnabled:    "1",
		SettingMaxPoints:           "5000",
		SettingWelcomeBonusEnabled: "true",
		SettingWelcomeBonusPoints:  "100",
		"unrelated_key":            "ignored",
	})
	require.NoError(t, err)

	assert.Equal(t, MethodPercentage, s.Method)
	assert.True(t, s.Percentage.Equal(decimal.RequireFromString("2.5")))
	assert.True(t, s.PointsPerCurrency.Equal(decimal.NewFromInt(1)))
	assert.True(t, s.IncludeTax)
	assert.True(t, s.MaxPointsEnabled)
	assert.Equal(t, int64(5000), s.MaxPoints)
	assert.True(t, s.WelcomeBonusEnabled)
	assert.Equal(t, int64(100), s.WelcomeBonusPoints)
}

func TestParseLoyaltySettings_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]string
	}{
		{name: "unknown method", raw: map[string]string{SettingCalculationMethod: "tiered"}},
		{name: "zero threshold", raw: map[string]string{SettingThresholdAmount: "0"}},
		{name: "negative rate", raw: map[string]string{SettingPointsPerCurrency: "-1"}},
		{name: "not a number", raw: map[string]string{SettingPointsPerThreshold: "ten"}},
		{name: "bad bool", raw: map[string]string{SettingIncludeTax: "maybe"}},
		{name: "negative ceiling", raw: map[string]string{SettingMaxPoints: "-5"}},
		{name: "fractional ceiling", raw: map[string]string{SettingMaxPoints: "10.5"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseLoyaltySettings(tc.raw)
			require.ErrorIs(t, err, ErrInvalidSettings)
		})
	}
}

func TestLoyaltySettings_RoundTripThroughValues(t *testing.T) {
	s := DefaultLoyaltySettings()
	s.Method = MethodFixedRate
	s.FixedSpendingAmount = decimal.RequireFromString("12.50")
	s.FixedPointsAmount = decimal.NewFromInt(3)
	s.MaxPointsEnabled = true
	s.MaxPoints = 900

	parsed, err := ParseLoyaltySettings(s.Values())
	require.NoError(t, err)
	assert.Equal(t, s.Method, parsed.Method)
	assert.True(t, parsed.FixedSpendingAmount.Equal(s.FixedSpendingAmount))
	assert.Equal(t, s.MaxPoints, parsed.MaxPoints)
	assert.True(t, parsed.MaxPointsEnabled)
}

func TestLoyaltySettings_ExceedsCeiling(t *testing.T) {
	s := DefaultLoyaltySettings()
	assert.False(t, s.ExceedsCeiling(1_000_000, 1), "ceiling disabled")

	s.MaxPointsEnabled = true
	s.MaxPoints = 500
	assert.False(t, s.ExceedsCeiling(400, 100))
	assert.True(t, s.ExceedsCeiling(400, 101))

	assert.True(t, s.ExceedsCeiling(100, math.MaxInt64), "sum past int64 must not wrap under the ceiling")
	assert.True(t, s.ExceedsCeiling(math.MaxInt64, 1))
	assert.False(t, s.ExceedsCeiling(-50, 550), "negative balance still counts")
}

func TestTransactionFilter_Normalize(t *testing.T) {
	f := TransactionFilter{}.Normalize()
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, DefaultPerPage, f.PerPage)
	assert.Equal(t, 0, f.Offset())

	f = TransactionFilter{Page: 3, PerPage: 500}.Normalize()
	assert.Equal(t, MaxPerPage, f.PerPage)
	assert.Equal(t, 200, f.Offset())
}

func TestPointsSource_RequiresApproval(t *testing.T) {
	assert.True(t, SourceManual.RequiresApproval())
	for _, s := range []PointsSource{SourceWelcome, SourceBonus, SourceAdjustment, SourcePurchase} {
		assert.False(t, s.RequiresApproval(), s)
	}
	assert.False(t, PointsSource("gift").IsValid())
}
