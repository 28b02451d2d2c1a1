package statutory

import "github.com/shopspring/decimal"

// =============================================================================
// TAX BAND CALCULATOR
// =============================================================================

// TaxBandCalculator applies a progressive band table to monthly chargeable pay.
//
// Each band taxes only the slice of pay that falls inside it, so the result
// is continuous at every boundary and never decreases as pay grows.
type TaxBandCalculator struct {
	Bands BandTable
}

// BandSlice is the part of chargeable pay taxed in one band.
type BandSlice struct {
	Band    Band
	Taxable decimal.Decimal
	Tax     decimal.Decimal // unrounded
}

// Tax returns the pre-relief liability for chargeablePay, rounded to whole units.
// Non-positive pay yields zero.
func (c TaxBandCalculator) Tax(chargeablePay decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, s := range c.Breakdown(chargeablePay) {
		total = total.Add(s.Tax)
	}
	return Round(total)
}

// Breakdown splits chargeablePay across the bands it reaches.
// Rounding happens once, on the sum, in Tax.
func (c TaxBandCalculator) Breakdown(chargeablePay decimal.Decimal) []BandSlice {
	if !chargeablePay.IsPositive() {
		return nil
	}

	var slices []BandSlice
	lower := decimal.Zero
	for _, b := range c.Bands {
		top := chargeablePay
		last := true
		if b.UpTo.Valid && chargeablePay.GreaterThan(b.UpTo.Decimal) {
			top = b.UpTo.Decimal
			last = false
		}

		taxable := top.Sub(lower)
		slices = append(slices, BandSlice{Band: b, Taxable: taxable, Tax: taxable.Mul(b.Rate)})
		if last {
			break
		}
		lower = top
	}
	return slices
}
