/*
Package factory provides file to Go statutory schedule conversion.

PURPOSE:
  Converts TOML or JSON schedule definitions into statutory.Schedule
  values. When the law changes, operations publish a new schedule file;
  no code change or redeploy of the engine is needed.

WHY STRINGS FOR AMOUNTS?
  Rates like 0.0275 are not exact in binary floating point. Every amount
  and rate is written as a decimal string and parsed with shopspring/decimal.

TOML SCHEMA:
  version        = "KE-2025.01"
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

  [[bands]]          # no up_to: open top band
  rate  = "0.35"

  JSON uses the same field names.

USAGE:
  registry, err := factory.BuildRegistry([]string{"schedules/2025.toml"}, 0)
  schedule, err := registry.ForYear(2025)

SEE ALSO:
  - statutory/schedule.go: Schedule and Registry
  - config: Lists the schedule files to load
*/
package factory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/statutory"
)

// =============================================================================
// FILE SCHEMA TYPES
// =============================================================================

// ScheduleDoc is the file representation of a schedule.
type ScheduleDoc struct {
	Version       string    `toml:"version" json:"version"`
	EffectiveFrom int       `toml:"effective_from" json:"effective_from"`
	Bands         []BandDoc `toml:"bands" json:"bands"`

	NSSFRate            string `toml:"nssf_rate" json:"nssf_rate"`
	NSSFCap             string `toml:"nssf_cap" json:"nssf_cap"`
	SHIFRate            string `toml:"shif_rate" json:"shif_rate"`
	HousingLevyRate     string `toml:"housing_levy_rate" json:"housing_levy_rate"`
	PersonalRelief      string `toml:"personal_relief" json:"personal_relief"`
	InsuranceReliefRate string `toml:"insurance_relief_rate" json:"insurance_relief_rate"`
	InsuranceReliefCap  string `toml:"insurance_relief_cap" json:"insurance_relief_cap"`
	PRMFCap             string `toml:"prmf_cap" json:"prmf_cap"`
	PensionCap          string `toml:"pension_cap" json:"pension_cap"`
	MortgageInterestCap string `toml:"mortgage_interest_cap" json:"mortgage_interest_cap"`
	QuartersRate        string `toml:"quarters_rate" json:"quarters_rate"`
}

// BandDoc is one PAYE bracket. An empty UpTo marks the open top band.
type BandDoc struct {
	UpTo string `toml:"up_to,omitempty" json:"up_to,omitempty"`
	Rate string `toml:"rate" json:"rate"`
}

// Format selects the decoder for a schedule document.
type Format string

const (
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// =============================================================================
// PARSING
// =============================================================================

// ParseSchedule decodes and validates a schedule document.
func ParseSchedule(data []byte, format Format) (statutory.Schedule, error) {
	var doc ScheduleDoc
	switch format {
	case FormatTOML:
		md, err := toml.Decode(string(data), &doc)
		if err != nil {
			return statutory.Schedule{}, fmt.Errorf("failed to parse schedule TOML: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return statutory.Schedule{}, &statutory.ScheduleError{
				Version: doc.Version,
				Reason:  fmt.Sprintf("unknown key %q", undecoded[0].String()),
			}
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return statutory.Schedule{}, fmt.Errorf("failed to parse schedule JSON: %w", err)
		}
	default:
		return statutory.Schedule{}, fmt.Errorf("unsupported schedule format %q", format)
	}
	return FromDoc(doc)
}

// LoadScheduleFile reads a schedule, picking the decoder from the extension.
func LoadScheduleFile(path string) (statutory.Schedule, error) {
	var format Format
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		format = FormatTOML
	case ".json":
		format = FormatJSON
	default:
		return statutory.Schedule{}, fmt.Errorf("schedule %s: want .toml or .json", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return statutory.Schedule{}, fmt.Errorf("failed to read schedule: %w", err)
	}
	s, err := ParseSchedule(data, format)
	if err != nil {
		return statutory.Schedule{}, fmt.Errorf("schedule %s: %w", path, err)
	}
	return s, nil
}

// BuildRegistry loads every file and registers it alongside the built-in
// default. A file sharing the default's effective year replaces it.
//
// floorYear backfills history. When it is positive and earlier than every
// registered schedule, the earliest schedule is also registered from
// floorYear under the version "<version>+from-<floorYear>". Zero disables
// backfill.
func BuildRegistry(paths []string, floorYear int) (*statutory.Registry, error) {
	byYear := map[int]statutory.Schedule{}
	def := statutory.Default()
	byYear[def.EffectiveFrom] = def

	fromFile := map[int]string{}
	for _, path := range paths {
		s, err := LoadScheduleFile(path)
		if err != nil {
			return nil, err
		}
		if prev, ok := fromFile[s.EffectiveFrom]; ok {
			return nil, &statutory.ScheduleError{
				Version: s.Version,
				Reason:  fmt.Sprintf("tax year %d also defined in %s", s.EffectiveFrom, prev),
			}
		}
		fromFile[s.EffectiveFrom] = path
		byYear[s.EffectiveFrom] = s
	}

	if floorYear != 0 {
		back, err := backfill(byYear, floorYear)
		if err != nil {
			return nil, err
		}
		if back != nil {
			byYear[floorYear] = *back
		}
	}

	schedules := make([]statutory.Schedule, 0, len(byYear))
	for _, s := range byYear {
		schedules = append(schedules, s)
	}
	return statutory.NewRegistry(schedules...)
}

// backfill returns the earliest schedule re-dated to floorYear, or nil
// when floorYear is already covered.
func backfill(byYear map[int]statutory.Schedule, floorYear int) (*statutory.Schedule, error) {
	if floorYear < 1000 || floorYear > 9999 {
		return nil, &statutory.ScheduleError{Reason: fmt.Sprintf("floor year %d is not a four-digit year", floorYear)}
	}

	var earliest statutory.Schedule
	first := true
	for year, s := range byYear {
		if first || year < earliest.EffectiveFrom {
			earliest, first = s, false
		}
	}
	if first || floorYear >= earliest.EffectiveFrom {
		return nil, nil
	}

	back := earliest
	back.Bands = append(statutory.BandTable(nil), earliest.Bands...)
	back.EffectiveFrom = floorYear
	back.Version = fmt.Sprintf("%s+from-%d", earliest.Version, floorYear)
	return &back, nil
}

// FromDoc converts a ScheduleDoc into a validated statutory.Schedule.
func FromDoc(doc ScheduleDoc) (statutory.Schedule, error) {
	p := parser{version: doc.Version}

	s := statutory.Schedule{
		Version:             doc.Version,
		EffectiveFrom:       doc.EffectiveFrom,
		NSSFRate:            p.amount("nssf_rate", doc.NSSFRate),
		NSSFCap:             p.amount("nssf_cap", doc.NSSFCap),
		SHIFRate:            p.amount("shif_rate", doc.SHIFRate),
		HousingLevyRate:     p.amount("housing_levy_rate", doc.HousingLevyRate),
		PersonalRelief:      p.amount("personal_relief", doc.PersonalRelief),
		InsuranceReliefRate: p.amount("insurance_relief_rate", doc.InsuranceReliefRate),
		InsuranceReliefCap:  p.amount("insurance_relief_cap", doc.InsuranceReliefCap),
		PRMFCap:             p.amount("prmf_cap", doc.PRMFCap),
		PensionCap:          p.amount("pension_cap", doc.PensionCap),
		MortgageInterestCap: p.amount("mortgage_interest_cap", doc.MortgageInterestCap),
		QuartersRate:        p.amount("quarters_rate", doc.QuartersRate),
	}
	for i, b := range doc.Bands {
		band := statutory.Band{Rate: p.amount(fmt.Sprintf("bands[%d].rate", i), b.Rate)}
		if b.UpTo != "" {
			band.UpTo = decimal.NewNullDecimal(p.amount(fmt.Sprintf("bands[%d].up_to", i), b.UpTo))
		}
		s.Bands = append(s.Bands, band)
	}
	if p.err != nil {
		return statutory.Schedule{}, p.err
	}

	if err := s.Validate(); err != nil {
		return statutory.Schedule{}, err
	}
	return s, nil
}

// ToDoc converts a Schedule back to its file representation.
func ToDoc(s statutory.Schedule) ScheduleDoc {
	doc := ScheduleDoc{
		Version:             s.Version,
		EffectiveFrom:       s.EffectiveFrom,
		NSSFRate:            s.NSSFRate.String(),
		NSSFCap:             s.NSSFCap.String(),
		SHIFRate:            s.SHIFRate.String(),
		HousingLevyRate:     s.HousingLevyRate.String(),
		PersonalRelief:      s.PersonalRelief.String(),
		InsuranceReliefRate: s.InsuranceReliefRate.String(),
		InsuranceReliefCap:  s.InsuranceReliefCap.String(),
		PRMFCap:             s.PRMFCap.String(),
		PensionCap:          s.PensionCap.String(),
		MortgageInterestCap: s.MortgageInterestCap.String(),
		QuartersRate:        s.QuartersRate.String(),
	}
	for _, b := range s.Bands {
		bd := BandDoc{Rate: b.Rate.String()}
		if b.UpTo.Valid {
			bd.UpTo = b.UpTo.Decimal.String()
		}
		doc.Bands = append(doc.Bands, bd)
	}
	return doc
}

// parser keeps the first field error so FromDoc reads as a flat list.
type parser struct {
	version string
	err     error
}

func (p *parser) amount(field, value string) decimal.Decimal {
	if p.err != nil {
		return decimal.Zero
	}
	if value == "" {
		p.err = &statutory.ScheduleError{Version: p.version, Reason: field + " is required"}
		return decimal.Zero
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		p.err = &statutory.ScheduleError{Version: p.version, Reason: fmt.Sprintf("%s: %q is not a decimal", field, value)}
		return decimal.Zero
	}
	return d
}
