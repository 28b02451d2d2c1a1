/*
schedule.go - Versioned statutory schedule shared by every payroll path

PURPOSE:
  A Schedule bundles every number the law sets: PAYE bands, deduction
  rates, deduction caps, relief amounts and the P9 contribution caps.
  Both the monthly payroll path and the annual certificate path resolve
  their numbers from the same Schedule, so the two can never drift apart.

VERSIONING:
  Schedules are keyed by the first tax year they apply to. The Registry
  picks the latest schedule whose EffectiveFrom is on or before the
  requested year. A year earlier than every registered schedule fails
  with ErrNoSchedule.

CANONICAL MONTHLY BANDS (Default):
  0       - 24,000    10%
  24,001  - 32,333    25%
  32,334  - 500,000   30%
  500,001 - 800,000   32.5%
  above 800,000       35%

SEE ALSO:
  - bands.go: Applies Bands to chargeable pay
  - factory/schedule.go: Loads schedules from TOML/JSON files
*/
package statutory

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BAND TABLE
// =============================================================================

// Band is one marginal bracket. UpTo is the inclusive upper bound of the
// bracket; an invalid UpTo marks the open top bracket.
type Band struct {
	UpTo decimal.NullDecimal
	Rate decimal.Decimal
}

// BandTable is an ascending list of bands. Only the last band may be open.
type BandTable []Band

// Validate checks bounds ascend, rates are within [0, 1] and only the last band is open.
func (t BandTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("band table is empty")
	}
	prev := decimal.Zero
	for i, b := range t {
		if b.Rate.IsNegative() || b.Rate.GreaterThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("band %d: rate %s outside [0, 1]", i, b.Rate)
		}
		if !b.UpTo.Valid {
			if i != len(t)-1 {
				return fmt.Errorf("band %d: only the last band may be open", i)
			}
			continue
		}
		if !b.UpTo.Decimal.GreaterThan(prev) {
			return fmt.Errorf("band %d: upper bound %s not above %s", i, b.UpTo.Decimal, prev)
		}
		prev = b.UpTo.Decimal
	}
	return nil
}

// Bounded returns a band closed at upTo.
func Bounded(upTo int64, rate string) Band {
	return Band{UpTo: decimal.NewNullDecimal(decimal.NewFromInt(upTo)), Rate: MustParse(rate)}
}

// Open returns the open top band.
func Open(rate string) Band {
	return Band{Rate: MustParse(rate)}
}

// =============================================================================
// SCHEDULE
// =============================================================================

// Schedule holds every statutory constant for the tax years it covers.
// All amounts are monthly.
type Schedule struct {
	Version       string
	EffectiveFrom int // first tax year the schedule applies to

	Bands BandTable

	NSSFRate        decimal.Decimal
	NSSFCap         decimal.Decimal
	SHIFRate        decimal.Decimal
	HousingLevyRate decimal.Decimal

	PersonalRelief      decimal.Decimal
	InsuranceReliefRate decimal.Decimal
	InsuranceReliefCap  decimal.Decimal

	PRMFCap             decimal.Decimal
	PensionCap          decimal.Decimal
	MortgageInterestCap decimal.Decimal
	QuartersRate        decimal.Decimal // value-of-quarters share of basic salary
}

// Default returns the built-in schedule. It applies from tax year 2023,
// when the 32.5% and 35% brackets came into force.
func Default() Schedule {
	return Schedule{
		Version:       "KE-2023.07",
		EffectiveFrom: 2023,
		Bands: BandTable{
			Bounded(24000, "0.10"),
			Bounded(32333, "0.25"),
			Bounded(500000, "0.30"),
			Bounded(800000, "0.325"),
			Open("0.35"),
		},
		NSSFRate:            MustParse("0.06"),
		NSSFCap:             decimal.NewFromInt(2160),
		SHIFRate:            MustParse("0.0275"),
		HousingLevyRate:     MustParse("0.015"),
		PersonalRelief:      decimal.NewFromInt(2400),
		InsuranceReliefRate: MustParse("0.15"),
		InsuranceReliefCap:  decimal.NewFromInt(5000),
		PRMFCap:             decimal.NewFromInt(15000),
		PensionCap:          decimal.NewFromInt(30000),
		MortgageInterestCap: decimal.NewFromInt(30000),
		QuartersRate:        MustParse("0.30"),
	}
}

// Validate rejects schedules that would produce nonsense figures.
func (s Schedule) Validate() error {
	if s.Version == "" {
		return &ScheduleError{Version: s.Version, Reason: "version is required"}
	}
	if s.EffectiveFrom <= 0 {
		return &ScheduleError{Version: s.Version, Reason: "effective_from must be a tax year"}
	}
	if err := s.Bands.Validate(); err != nil {
		return &ScheduleError{Version: s.Version, Reason: err.Error()}
	}
	nonNegative := map[string]decimal.Decimal{
		"nssf_rate":             s.NSSFRate,
		"nssf_cap":              s.NSSFCap,
		"shif_rate":             s.SHIFRate,
		"housing_levy_rate":     s.HousingLevyRate,
		"personal_relief":       s.PersonalRelief,
		"insurance_relief_rate": s.InsuranceReliefRate,
		"insurance_relief_cap":  s.InsuranceReliefCap,
		"prmf_cap":              s.PRMFCap,
		"pension_cap":           s.PensionCap,
		"mortgage_interest_cap": s.MortgageInterestCap,
		"quarters_rate":         s.QuartersRate,
	}
	names := make([]string, 0, len(nonNegative))
	for name := range nonNegative {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if nonNegative[name].IsNegative() {
			return &ScheduleError{Version: s.Version, Reason: name + " must not be negative"}
		}
	}
	return nil
}

// TaxBands returns the PAYE calculator for this schedule.
func (s Schedule) TaxBands() TaxBandCalculator {
	return TaxBandCalculator{Bands: s.Bands}
}

// Deductions returns the statutory deduction calculator for this schedule.
func (s Schedule) Deductions() DeductionCalculator {
	return DeductionCalculator{
		NSSFRate:        s.NSSFRate,
		NSSFCap:         s.NSSFCap,
		SHIFRate:        s.SHIFRate,
		HousingLevyRate: s.HousingLevyRate,
	}
}

// Reliefs returns the relief calculator for this schedule.
func (s Schedule) Reliefs() ReliefCalculator {
	return ReliefCalculator{
		PersonalRelief: s.PersonalRelief,
		InsuranceRate:  s.InsuranceReliefRate,
		InsuranceCap:   s.InsuranceReliefCap,
	}
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry resolves the schedule in force for a tax year.
// It is immutable once built and safe for concurrent use.
type Registry struct {
	schedules []Schedule // ascending by EffectiveFrom
}

// NewRegistry validates and orders the given schedules.
// Two schedules may not share an EffectiveFrom year.
func NewRegistry(schedules ...Schedule) (*Registry, error) {
	sorted := make([]Schedule, len(schedules))
	copy(sorted, schedules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EffectiveFrom < sorted[j].EffectiveFrom
	})

	for i, s := range sorted {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if i > 0 && sorted[i-1].EffectiveFrom == s.EffectiveFrom {
			return nil, &ScheduleError{
				Version: s.Version,
				Reason:  fmt.Sprintf("tax year %d already covered by %q", s.EffectiveFrom, sorted[i-1].Version),
			}
		}
	}
	return &Registry{schedules: sorted}, nil
}

// DefaultRegistry returns a registry holding only Default().
func DefaultRegistry() *Registry {
	return &Registry{schedules: []Schedule{Default()}}
}

// ForYear returns the latest schedule effective on or before year.
func (r *Registry) ForYear(year int) (Schedule, error) {
	for i := len(r.schedules) - 1; i >= 0; i-- {
		if r.schedules[i].EffectiveFrom <= year {
			return r.schedules[i], nil
		}
	}
	return Schedule{}, &NoScheduleError{Year: year}
}

// Schedules returns every registered schedule, oldest first.
func (r *Registry) Schedules() []Schedule {
	out := make([]Schedule, len(r.schedules))
	copy(out, r.schedules)
	return out
}
