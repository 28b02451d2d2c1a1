/*
Package statutory provides the government-mandated arithmetic of the payroll engine.

PURPOSE:
  This package contains the leaf calculators that every payroll path shares:
  the progressive PAYE band table, the capped statutory deductions (NSSF,
  SHIF, Affordable Housing Levy) and the personal/insurance reliefs.
  Nothing here knows about employees, runs or certificates.

KEY CONCEPTS IN THIS FILE (money.go):
  - Currency values are decimal.Decimal, never float64
  - Rounding is to whole currency units, half away from zero
  - Every statutory figure is rounded on its own before it is summed

DESIGN PRINCIPLES:
  1. Purity: every calculator is a value type with no mutable state
  2. Precision: decimal.Decimal end to end, floats only at the API edge
  3. One table: bands, rates and caps live in a versioned Schedule that
     both the monthly payroll path and the annual P9 path consume

USAGE:
  sched := statutory.Default()
  tax := sched.TaxBands().Tax(decimal.NewFromInt(120000))   // 30783
  ded := sched.Deductions().Compute(decimal.NewFromInt(120000))
  paye := sched.Reliefs().Compute(decimal.Zero).Apply(tax)    // 28383

SEE ALSO:
  - schedule.go: Versioned band table, rates, caps and the Registry
  - bands.go: TaxBandCalculator
  - deductions.go: StatutoryDeductionCalculator
  - relief.go: ReliefCalculator
*/
package statutory

import "github.com/shopspring/decimal"

// =============================================================================
// ROUNDING AND CLAMPING
// =============================================================================

// Round rounds d to whole currency units, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(0)
}

// Percent returns base*rate rounded to whole currency units.
func Percent(base, rate decimal.Decimal) decimal.Decimal {
	return Round(base.Mul(rate))
}

// FloorZero returns d, or zero when d is negative.
func FloorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Clamp limits a contribution to the statutory cap. Negative input counts as zero.
// Exceeding the cap is expected input, not an error.
func Clamp(d, limit decimal.Decimal) decimal.Decimal {
	return decimal.Min(FloorZero(d), limit)
}

// Sum adds values together.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// MustParse parses a decimal literal and panics on malformed input.
// Only used for compiled-in constants.
func MustParse(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
