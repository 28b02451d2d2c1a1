package statutory

import "github.com/shopspring/decimal"

// Deductions are the three statutory deductions taken from gross pay.
type Deductions struct {
	NSSF        decimal.Decimal
	SHIF        decimal.Decimal
	HousingLevy decimal.Decimal
}

// Total sums the already-rounded deductions.
func (d Deductions) Total() decimal.Decimal {
	return Sum(d.NSSF, d.SHIF, d.HousingLevy)
}

// DeductionCalculator computes NSSF, SHIF and the Affordable Housing Levy.
// NSSF is capped; SHIF and the levy are not.
type DeductionCalculator struct {
	NSSFRate        decimal.Decimal
	NSSFCap         decimal.Decimal
	SHIFRate        decimal.Decimal
	HousingLevyRate decimal.Decimal
}

// Compute derives each deduction from grossSalary and rounds it independently.
func (c DeductionCalculator) Compute(grossSalary decimal.Decimal) Deductions {
	gross := FloorZero(grossSalary)
	return Deductions{
		NSSF:        Round(decimal.Min(gross.Mul(c.NSSFRate), c.NSSFCap)),
		SHIF:        Percent(gross, c.SHIFRate),
		HousingLevy: Percent(gross, c.HousingLevyRate),
	}
}
