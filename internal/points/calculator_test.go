package points

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/pos-loyalty/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func thresholdSettings() domain.LoyaltySettings {
	s := domain.DefaultLoyaltySettings()
	s.Method = domain.MethodThreshold
	s.ThresholdAmount = dec("100")
	s.PointsPerThreshold = dec("10")
	s.PointsPerCurrency = dec("1")
	s.IncludeTax = true
	return s
}

func TestCalculate(t *testing.T) {
	percentage := domain.DefaultLoyaltySettings()
	percentage.Method = domain.MethodPercentage
	percentage.Percentage = dec("5")

	fixed := domain.DefaultLoyaltySettings()
	fixed.Method = domain.MethodFixedRate
	fixed.FixedSpendingAmount = dec("20")
	fixed.FixedPointsAmount = dec("3")

	excludeTax := thresholdSettings()
	excludeTax.IncludeTax = false

	disabled := thresholdSettings()
	disabled.SpendingPointsEnabled = false

	fractionalRate := domain.DefaultLoyaltySettings()
	fractionalRate.Method = domain.MethodPercentage
	fractionalRate.Percentage = decimal.Zero
	fractionalRate.PointsPerCurrency = dec("0.5")

	tests := []struct {
		name     string
		amount   string
		tax      string
		settings domain.LoyaltySettings
		want     int64
	}{
		{name: "threshold with tax included", amount: "250", tax: "40", settings: thresholdSettings(), want: 270},
		{name: "threshold excluding tax", amount: "250", tax: "40", settings: excludeTax, want: 230},
		{name: "below one threshold", amount: "99.99", tax: "0", settings: thresholdSettings(), want: 99},
		{name: "percentage truncates", amount: "199", tax: "0", settings: percentage, want: 9},
		{name: "fixed rate", amount: "65", tax: "5", settings: fixed, want: 9},
		{name: "fractional currency rate", amount: "15", tax: "0", settings: fractionalRate, want: 7},
		{name: "spending disabled", amount: "1000", tax: "0", settings: disabled, want: 0},
		{name: "tax above amount floors at zero", amount: "10", tax: "25", settings: excludeTax, want: 0},
		{name: "zero amount", amount: "0", tax: "0", settings: thresholdSettings(), want: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Calculate(dec(tc.amount), dec(tc.tax), tc.settings)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExplain_ThresholdScenario(t *testing.T) {
	b, err := Explain(dec("250"), dec("40"), thresholdSettings())
	require.NoError(t, err)

	assert.True(t, b.CalculationAmount.Equal(dec("250")))
	assert.True(t, b.MethodPoints.Equal(dec("20")))
	assert.True(t, b.CurrencyPoints.Equal(dec("250")))
	assert.Equal(t, int64(270), b.Total)
}

func TestCalculate_ThresholdFormula(t *testing.T) {
	s := thresholdSettings()
	s.ThresholdAmount = dec("37")
	s.PointsPerThreshold = dec("4")
	s.PointsPerCurrency = dec("0.3")

	for _, amount := range []string{"0", "1", "36.99", "37", "74", "123.45", "1000", "9999.99"} {
		a := dec(amount)
		want := a.Div(dec("37")).Floor().Mul(dec("4")).IntPart() + a.Mul(dec("0.3")).Floor().IntPart()

		got, err := Calculate(a, decimal.Zero, s)
		require.NoError(t, err)
		assert.Equal(t, want, got, amount)
	}
}

func TestCalculate_RejectsNegativeInput(t *testing.T) {
	_, err := Calculate(dec("-1"), decimal.Zero, thresholdSettings())
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = Calculate(dec("10"), dec("-1"), thresholdSettings())
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestCalculate_UnknownMethod(t *testing.T) {
	s := thresholdSettings()
	s.Method = "tiered"
	_, err := Calculate(dec("10"), decimal.Zero, s)
	require.ErrorIs(t, err, domain.ErrInvalidSettings)
}

func TestCalculate_TotalsPastEntryLimit(t *testing.T) {
	s := thresholdSettings()
	s.ThresholdAmount = dec("1")
	s.PointsPerThreshold = dec("10")
	s.PointsPerCurrency = decimal.Zero

	for _, amount := range []string{"1e18", "922337203685477580.8", "100000001"} {
		got, err := Calculate(dec(amount), decimal.Zero, s)
		require.ErrorIs(t, err, domain.ErrInvalidAmount, amount)
		assert.Zero(t, got, amount)
	}

	s.PointsPerThreshold = dec("1")
	got, err := Calculate(decimal.NewFromInt(domain.MaxEntryPoints), decimal.Zero, s)
	require.NoError(t, err)
	assert.Equal(t, domain.MaxEntryPoints, got)

	pct := domain.DefaultLoyaltySettings()
	pct.Method = domain.MethodPercentage
	pct.Percentage = dec("100")
	pct.IncludeTax = true
	_, err = Calculate(dec("1e30"), decimal.Zero, pct)
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
}
