// Package money converts user-entered decimal amounts to integer minor
// currency units and enumerates the plans enabled on a product.
package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

type PlanKey string

const (
	PlanOneTime  PlanKey = "one_time"
	PlanMonthly  PlanKey = "monthly"
	PlanAnnual   PlanKey = "annual"
	PlanLifetime PlanKey = "lifetime"
)

// PlanOrder is the canonical display and iteration order.
var PlanOrder = []PlanKey{PlanOneTime, PlanMonthly, PlanAnnual, PlanLifetime}

var (
	ErrInvalidAmount = errors.New("invalid_amount")
	ErrInvalidPlan   = errors.New("invalid_plan")
)

// amountPattern accepts an unsigned decimal with at most two fractional
// digits. Anything else is rejected, never coerced.
var amountPattern = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)

// ParseAmount converts text like "9.99" into minor units (999). Zero and
// negative results are rejected.
func ParseAmount(text string) (int64, error) {
	trimmed := strings.TrimSpace(text)
	if !amountPattern.MatchString(trimmed) {
		return 0, ErrInvalidAmount
	}

	whole := trimmed
	frac := ""
	if idx := strings.IndexByte(trimmed, '.'); idx >= 0 {
		whole = trimmed[:idx]
		frac = trimmed[idx+1:]
	}
	for len(frac) < 2 {
		frac += "0"
	}

	major, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || major > math.MaxInt64/100-1 {
		return 0, ErrInvalidAmount
	}
	minor, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}

	total := major*100 + minor
	if total <= 0 {
		return 0, ErrInvalidAmount
	}
	return total, nil
}

// FormatAmount renders minor units with a fixed two-decimal currency prefix.
func FormatAmount(minor int64) string {
	return fmt.Sprintf("£%d.%02d", minor/100, minor%100)
}

func ValidPlan(key PlanKey) bool {
	switch key {
	case PlanOneTime, PlanMonthly, PlanAnnual, PlanLifetime:
		return true
	}
	return false
}

// Recurring reports whether a plan bills on an interval.
func (k PlanKey) Recurring() bool {
	return k == PlanMonthly || k == PlanAnnual
}

// Interval returns the processor billing interval for recurring plans.
func (k PlanKey) Interval() string {
	switch k {
	case PlanMonthly:
		return "month"
	case PlanAnnual:
		return "year"
	}
	return ""
}

// EnabledPlans walks the canonical plan order and returns the keys whose
// price is a positive integer amount of minor units.
func EnabledPlans(prices map[string]any) []PlanKey {
	enabled := make([]PlanKey, 0, len(PlanOrder))
	for _, key := range PlanOrder {
		if PriceFor(prices, key) > 0 {
			enabled = append(enabled, key)
		}
	}
	return enabled
}

// PriceFor reads the minor-unit amount a product charges for a plan, or 0
// when the plan is not enabled. JSON decoding may hand back json.Number
// (datatypes.JSONMap scans with UseNumber), floats or strings depending on
// the driver.
func PriceFor(prices map[string]any, key PlanKey) int64 {
	if prices == nil {
		return 0
	}
	value, ok := prices[string(key)]
	if !ok {
		return 0
	}
	switch cast := value.(type) {
	case int64:
		if cast > 0 {
			return cast
		}
	case json.Number:
		parsed, err := cast.Int64()
		if err == nil && parsed > 0 {
			return parsed
		}
	case int:
		if cast > 0 {
			return int64(cast)
		}
	case float64:
		if cast > 0 && cast == float64(int64(cast)) {
			return int64(cast)
		}
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(cast), 10, 64)
		if err == nil && parsed > 0 {
			return parsed
		}
	}
	return 0
}
