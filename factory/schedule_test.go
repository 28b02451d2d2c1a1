package factory_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/statutory"
)

const schedule2025 = `
version        = "KE-2025.02"
effective_from = 2025

nssf_rate             = "0.06"
nssf_cap              = "4320"
shif_rate             = "0.0275"
housing_levy_rate     = "0.015"
personal_relief       = "2400"
insurance_relief_rate = "0.15"
insurance_relief_cap  = "5000"
prmf_cap              = "15000"
pension_cap           = "30000"
mortgage_interest_cap = "30000"
quarters_rate         = "0.30"

[[bands]]
up_to = "24000"
rate  = "0.10"

[[bands]]
up_to = "32333"
rate  = "0.25"

[[bands]]
up_to = "500000"
rate  = "0.30"

[[bands]]
up_to = "800000"
rate  = "0.325"

[[bands]]
rate  = "0.35"
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseSchedule_TOML(t *testing.T) {
	s, err := factory.ParseSchedule([]byte(schedule2025), factory.FormatTOML)
	require.NoError(t, err)

	assert.Equal(t, "KE-2025.02", s.Version)
	assert.Equal(t, 2025, s.EffectiveFrom)
	assert.True(t, s.NSSFCap.Equal(decimal.NewFromInt(4320)))
	require.Len(t, s.Bands, 5)
	assert.False(t, s.Bands[4].UpTo.Valid)
	assert.True(t, s.TaxBands().Tax(decimal.NewFromInt(120000)).Equal(decimal.NewFromInt(30783)))
}

func TestParseSchedule_JSONRoundTripOfDefault(t *testing.T) {
	// GIVEN: The built-in schedule written out as JSON
	data, err := json.Marshal(factory.ToDoc(statutory.Default()))
	require.NoError(t, err)

	// WHEN: It is parsed back
	s, err := factory.ParseSchedule(data, factory.FormatJSON)
	require.NoError(t, err)

	// THEN: Every figure survives
	def := statutory.Default()
	assert.Equal(t, def.Version, s.Version)
	assert.True(t, def.SHIFRate.Equal(s.SHIFRate))
	assert.True(t, def.MortgageInterestCap.Equal(s.MortgageInterestCap))
	require.Len(t, s.Bands, len(def.Bands))
	for i := range def.Bands {
		assert.True(t, def.Bands[i].Rate.Equal(s.Bands[i].Rate), "band %d", i)
		assert.Equal(t, def.Bands[i].UpTo.Valid, s.Bands[i].UpTo.Valid, "band %d", i)
	}
}

func TestParseSchedule_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format factory.Format
	}{
		{"bad decimal", `{"version":"x","effective_from":2025,"nssf_rate":"six percent"}`, factory.FormatJSON},
		{"missing field", `version = "x"` + "\neffective_from = 2025\n", factory.FormatTOML},
		{"unknown json field", `{"version":"x","bogus":1}`, factory.FormatJSON},
		{"unknown toml key", schedule2025 + "\nbogus = 1\n", factory.FormatTOML},
		{"unsupported format", schedule2025, factory.Format("yaml")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := factory.ParseSchedule([]byte(tt.data), tt.format)
			require.Error(t, err)
		})
	}
}

func TestParseSchedule_InvalidBandsAreScheduleErrors(t *testing.T) {
	doc := factory.ToDoc(statutory.Default())
	doc.Bands[1].UpTo = "1000" // below the first band

	_, err := factory.FromDoc(doc)
	assert.ErrorIs(t, err, statutory.ErrInvalidSchedule)
}

func TestBuildRegistry(t *testing.T) {
	// GIVEN: A 2025 schedule on disk
	path := writeFile(t, "2025.toml", schedule2025)

	// WHEN: The registry is built
	reg, err := factory.BuildRegistry([]string{path}, 0)
	require.NoError(t, err)

	// THEN: 2024 resolves to the default, 2026 to the file
	s2024, err := reg.ForYear(2024)
	require.NoError(t, err)
	assert.Equal(t, "KE-2023.07", s2024.Version)

	s2026, err := reg.ForYear(2026)
	require.NoError(t, err)
	assert.Equal(t, "KE-2025.02", s2026.Version)

	assert.Len(t, reg.Schedules(), 2)
}

func TestBuildRegistry_FloorYearBackfills(t *testing.T) {
	// GIVEN: No floor year
	reg, err := factory.BuildRegistry(nil, 0)
	require.NoError(t, err)

	// THEN: Years before the default have no schedule
	_, err = reg.ForYear(2021)
	assert.ErrorIs(t, err, statutory.ErrNoSchedule)

	// WHEN: The floor is 2020
	reg, err = factory.BuildRegistry(nil, 2020)
	require.NoError(t, err)

	// THEN: 2020 to 2022 resolve to a re-dated copy of the earliest schedule
	s2021, err := reg.ForYear(2021)
	require.NoError(t, err)
	assert.Equal(t, "KE-2023.07+from-2020", s2021.Version)
	assert.Equal(t, 2020, s2021.EffectiveFrom)
	assert.Equal(t, statutory.Default().Bands, s2021.Bands)
	assert.True(t, statutory.Default().PersonalRelief.Equal(s2021.PersonalRelief))

	s2024, err := reg.ForYear(2024)
	require.NoError(t, err)
	assert.Equal(t, "KE-2023.07", s2024.Version)

	_, err = reg.ForYear(2019)
	assert.ErrorIs(t, err, statutory.ErrNoSchedule)
	assert.Len(t, reg.Schedules(), 2)
}

func TestBuildRegistry_FloorYearAlreadyCovered(t *testing.T) {
	path := writeFile(t, "2025.toml", schedule2025)

	for _, floor := range []int{2023, 2024} {
		reg, err := factory.BuildRegistry([]string{path}, floor)
		require.NoError(t, err)
		assert.Len(t, reg.Schedules(), 2, "floor %d", floor)
	}
}

func TestBuildRegistry_FloorYearInvalid(t *testing.T) {
	for _, floor := range []int{-1, 99, 20200} {
		_, err := factory.BuildRegistry(nil, floor)
		assert.ErrorIs(t, err, statutory.ErrInvalidSchedule, "floor %d", floor)
	}
}

func TestBuildRegistry_Errors(t *testing.T) {
	a := writeFile(t, "a.toml", schedule2025)
	b := writeFile(t, "b.toml", schedule2025)

	_, err := factory.BuildRegistry([]string{a, b}, 0)
	assert.ErrorIs(t, err, statutory.ErrInvalidSchedule)

	_, err = factory.BuildRegistry([]string{writeFile(t, "s.yaml", "x: 1")}, 0)
	assert.Error(t, err)

	_, err = factory.BuildRegistry([]string{filepath.Join(t.TempDir(), "missing.toml")}, 0)
	assert.Error(t, err)
}
