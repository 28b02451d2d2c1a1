package statutory

import "github.com/shopspring/decimal"

// Reliefs are the monthly amounts subtracted from raw PAYE.
type Reliefs struct {
	Personal  decimal.Decimal
	Insurance decimal.Decimal
}

// Total is the combined relief.
func (r Reliefs) Total() decimal.Decimal {
	return r.Personal.Add(r.Insurance)
}

// Apply subtracts the reliefs from tax. The result never goes below zero.
func (r Reliefs) Apply(tax decimal.Decimal) decimal.Decimal {
	return FloorZero(tax.Sub(r.Total()))
}

// ReliefCalculator grants personal relief unconditionally and insurance
// relief as a capped share of the monthly premium.
type ReliefCalculator struct {
	PersonalRelief decimal.Decimal
	InsuranceRate  decimal.Decimal
	InsuranceCap   decimal.Decimal
}

// Compute returns the reliefs for a monthly insurance premium (zero when none).
func (c ReliefCalculator) Compute(insurancePremium decimal.Decimal) Reliefs {
	return Reliefs{
		Personal:  c.PersonalRelief,
		Insurance: Round(decimal.Min(FloorZero(insurancePremium).Mul(c.InsuranceRate), c.InsuranceCap)),
	}
}
