package money

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "10", want: 1000},
		{in: "10.5", want: 1050},
		{in: "10.50", want: 1050},
		{in: "0.01", want: 1},
		{in: " 9.99 ", want: 999},
		{in: "0", wantErr: true},
		{in: "0.00", wantErr: true},
		{in: "", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "10.999", wantErr: true},
		{in: "-5", wantErr: true},
		{in: "1,50", wantErr: true},
		{in: "10.", wantErr: true},
		{in: ".50", wantErr: true},
		{in: "92233720368547758.07", wantErr: true},
		{in: "99999999999999999999", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	for _, in := range []string{"1", "1.05", "29.99", "1000.10"} {
		minor, err := ParseAmount(in)
		require.NoError(t, err)
		formatted := FormatAmount(minor)
		back, err := ParseAmount(formatted[len("£"):])
		require.NoError(t, err)
		require.Equal(t, minor, back)
	}
}

func TestEnabledPlans(t *testing.T) {
	prices := map[string]any{
		"one_time": float64(1500),
		"monthly":  float64(0),
		"annual":   "9900",
		"lifetime": float64(25000),
	}

	enabled := EnabledPlans(prices)
	require.Equal(t, []PlanKey{PlanOneTime, PlanAnnual, PlanLifetime}, enabled)

	require.Empty(t, EnabledPlans(nil))
	require.Empty(t, EnabledPlans(map[string]any{"monthly": float64(-1)}))
}

// datatypes.JSONMap scans with decoder.UseNumber, so prices read back from
// the database arrive as json.Number rather than float64.
func TestPriceForScannedNumbers(t *testing.T) {
	prices := map[string]any{
		"one_time": json.Number("nope"),
		"monthly":  json.Number("999"),
		"annual":   json.Number("0"),
		"lifetime": json.Number("19900"),
	}

	require.Equal(t, int64(999), PriceFor(prices, PlanMonthly))
	require.Equal(t, int64(19900), PriceFor(prices, PlanLifetime))
	require.Zero(t, PriceFor(prices, PlanAnnual))
	require.Zero(t, PriceFor(prices, PlanOneTime))
	require.Equal(t, []PlanKey{PlanMonthly, PlanLifetime}, EnabledPlans(prices))
}

func TestPlanInterval(t *testing.T) {
	require.True(t, PlanMonthly.Recurring())
	require.True(t, PlanAnnual.Recurring())
	require.False(t, PlanOneTime.Recurring())
	require.False(t, PlanLifetime.Recurring())
	require.Equal(t, "month", PlanMonthly.Interval())
	require.Equal(t, "year", PlanAnnual.Interval())
	require.Equal(t, "", PlanLifetime.Interval())
}
