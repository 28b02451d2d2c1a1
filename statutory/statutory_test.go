package statutory_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/statutory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func kes(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func assertAmount(t *testing.T, want int64, got decimal.Decimal, context ...any) {
	t.Helper()
	if !got.Equal(kes(want)) {
		t.Errorf("want %d, got %s %v", want, got, context)
	}
}

// =============================================================================
// TAX BAND TESTS
// =============================================================================

func TestTaxBands_CanonicalTable(t *testing.T) {
	bands := statutory.Default().TaxBands()

	tests := []struct {
		name       string
		chargeable int64
		want       int64
	}{
		{"zero", 0, 0},
		{"first band", 20000, 2000},
		{"first band upper edge", 24000, 2400},
		{"one unit into second band", 24001, 2400},
		{"half unit rounds away from zero", 24002, 2401},
		{"second band upper edge", 32333, 4483},
		{"third band", 120000, 30783},
		{"third band upper edge", 500000, 144783},
		{"fourth band upper edge", 800000, 242283},
		{"top band", 1000000, 312283},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertAmount(t, tt.want, bands.Tax(kes(tt.chargeable)))
		})
	}
}

func TestTaxBands_NegativeChargeablePayIsZero(t *testing.T) {
	bands := statutory.Default().TaxBands()
	assert.True(t, bands.Tax(kes(-5000)).IsZero())
	assert.Empty(t, bands.Breakdown(kes(-5000)))
}

func TestTaxBands_ContinuousAtBoundaries(t *testing.T) {
	// GIVEN: Unrounded band slices
	// WHEN: Crossing each boundary by one unit
	// THEN: The liability grows by exactly the next band's rate
	bands := statutory.Default().TaxBands()
	unrounded := func(pay int64) decimal.Decimal {
		total := decimal.Zero
		for _, s := range bands.Breakdown(kes(pay)) {
			total = total.Add(s.Tax)
		}
		return total
	}

	boundaries := []struct {
		edge int64
		rate string
	}{
		{24000, "0.25"},
		{32333, "0.30"},
		{500000, "0.325"},
		{800000, "0.35"},
	}
	for _, b := range boundaries {
		step := unrounded(b.edge + 1).Sub(unrounded(b.edge))
		assert.True(t, step.Equal(statutory.MustParse(b.rate)), "edge %d: step %s", b.edge, step)
	}

	assert.True(t, unrounded(24000).Equal(kes(2400)))
	assert.True(t, unrounded(24001).Equal(statutory.MustParse("2400.25")))
}

func TestTaxBands_Monotonic(t *testing.T) {
	bands := statutory.Default().TaxBands()
	prev := decimal.Zero
	for pay := int64(0); pay <= 1_000_000; pay += 997 {
		tax := bands.Tax(kes(pay))
		require.False(t, tax.LessThan(prev), "tax decreased at %d: %s < %s", pay, tax, prev)
		prev = tax
	}
}

func TestTaxBands_BreakdownCoversPay(t *testing.T) {
	bands := statutory.Default().TaxBands()
	slices := bands.Breakdown(kes(600000))
	require.Len(t, slices, 4)

	covered := decimal.Zero
	for _, s := range slices {
		covered = covered.Add(s.Taxable)
	}
	assertAmount(t, 600000, covered)
	assertAmount(t, 100000, slices[3].Taxable)
}

// =============================================================================
// STATUTORY DEDUCTION TESTS
// =============================================================================

func TestDeductions_GrossAboveNSSFCap(t *testing.T) {
	// GIVEN: Gross salary of 120,000 (basic 80,000 + 40,000 allowances)
	// THEN: NSSF is capped, SHIF and levy are plain percentages
	d := statutory.Default().Deductions().Compute(kes(120000))

	assertAmount(t, 2160, d.NSSF)
	assertAmount(t, 3300, d.SHIF)
	assertAmount(t, 1800, d.HousingLevy)
	assertAmount(t, 7260, d.Total())
}

func TestDeductions_GrossBelowNSSFCap(t *testing.T) {
	d := statutory.Default().Deductions().Compute(kes(20000))

	assertAmount(t, 1200, d.NSSF)
	assertAmount(t, 550, d.SHIF)
	assertAmount(t, 300, d.HousingLevy)
}

func TestDeductions_NSSFCapBindsAt36000(t *testing.T) {
	calc := statutory.Default().Deductions()

	assertAmount(t, 2160, calc.Compute(kes(36000)).NSSF)
	assertAmount(t, 2159, calc.Compute(kes(35990)).NSSF)
	for _, gross := range []int64{36001, 100000, 5_000_000, 900_000_000} {
		assertAmount(t, 2160, calc.Compute(kes(gross)).NSSF, "gross %d", gross)
	}
}

func TestDeductions_RoundedIndependently(t *testing.T) {
	// 33,333 * 2.75% = 916.6575 -> 917 ; * 1.5% = 499.995 -> 500 ; * 6% = 1999.98 -> 2000
	d := statutory.Default().Deductions().Compute(kes(33333))

	assertAmount(t, 2000, d.NSSF)
	assertAmount(t, 917, d.SHIF)
	assertAmount(t, 500, d.HousingLevy)
}

// =============================================================================
// RELIEF TESTS
// =============================================================================

func TestReliefs_PersonalReliefFloorsAtZero(t *testing.T) {
	// GIVEN: Pre-relief PAYE of 2,000 (gross 20,000)
	// WHEN: Personal relief of 2,400 is applied
	// THEN: PAYE is zero, never negative
	reliefs := statutory.Default().Reliefs().Compute(decimal.Zero)

	assertAmount(t, 2400, reliefs.Personal)
	assert.True(t, reliefs.Insurance.IsZero())
	assert.True(t, reliefs.Apply(kes(2000)).IsZero())
	assertAmount(t, 28383, reliefs.Apply(kes(30783)))
}

func TestReliefs_InsuranceReliefCapped(t *testing.T) {
	calc := statutory.Default().Reliefs()

	assertAmount(t, 1500, calc.Compute(kes(10000)).Insurance)
	assertAmount(t, 5000, calc.Compute(kes(33334)).Insurance)
	assertAmount(t, 5000, calc.Compute(kes(1_000_000)).Insurance)
	assert.True(t, calc.Compute(kes(-100)).Insurance.IsZero())
}

// =============================================================================
// SCHEDULE & REGISTRY TESTS
// =============================================================================

func TestDefaultSchedule_Valid(t *testing.T) {
	require.NoError(t, statutory.Default().Validate())
}

func TestSchedule_RejectsOpenBandBeforeLast(t *testing.T) {
	s := statutory.Default()
	s.Bands = statutory.BandTable{statutory.Open("0.1"), statutory.Bounded(24000, "0.25")}

	err := s.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, statutory.ErrInvalidSchedule)
}

func TestSchedule_RejectsDescendingBounds(t *testing.T) {
	s := statutory.Default()
	s.Bands = statutory.BandTable{statutory.Bounded(32333, "0.1"), statutory.Bounded(24000, "0.25"), statutory.Open("0.3")}

	var schedErr *statutory.ScheduleError
	require.True(t, errors.As(s.Validate(), &schedErr))
	assert.Equal(t, s.Version, schedErr.Version)
}

func TestSchedule_RejectsNegativeCap(t *testing.T) {
	s := statutory.Default()
	s.PensionCap = kes(-1)
	assert.ErrorIs(t, s.Validate(), statutory.ErrInvalidSchedule)
}

func TestRegistry_ForYearPicksLatestEffective(t *testing.T) {
	old := statutory.Default()
	newer := statutory.Default()
	newer.Version = "KE-2026"
	newer.EffectiveFrom = 2026
	newer.PensionCap = kes(35000)

	reg, err := statutory.NewRegistry(newer, old)
	require.NoError(t, err)

	s, err := reg.ForYear(2025)
	require.NoError(t, err)
	assert.Equal(t, old.Version, s.Version)

	s, err = reg.ForYear(2027)
	require.NoError(t, err)
	assert.Equal(t, "KE-2026", s.Version)

	_, err = reg.ForYear(2019)
	assert.ErrorIs(t, err, statutory.ErrNoSchedule)

	versions := reg.Schedules()
	require.Len(t, versions, 2)
	assert.Equal(t, old.Version, versions[0].Version)
}

func TestRegistry_RejectsDuplicateYear(t *testing.T) {
	dup := statutory.Default()
	dup.Version = "KE-dup"

	_, err := statutory.NewRegistry(statutory.Default(), dup)
	assert.ErrorIs(t, err, statutory.ErrInvalidSchedule)
}

// =============================================================================
// MONEY HELPER TESTS
// =============================================================================

func TestRound_HalfAwayFromZero(t *testing.T) {
	assertAmount(t, 3, statutory.Round(statutory.MustParse("2.5")))
	assertAmount(t, -3, statutory.Round(statutory.MustParse("-2.5")))
	assertAmount(t, 2, statutory.Round(statutory.MustParse("2.4999")))
}

func TestClamp(t *testing.T) {
	assertAmount(t, 30000, statutory.Clamp(kes(50000), kes(30000)))
	assertAmount(t, 12000, statutory.Clamp(kes(12000), kes(30000)))
	assertAmount(t, 0, statutory.Clamp(kes(-10), kes(30000)))
}
