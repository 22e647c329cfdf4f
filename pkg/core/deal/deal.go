// Package deal loads CLO deal descriptions from YAML, HJSON or JSON.
//
// Amounts and rates are read as text and converted with decimal.NewFromString,
// so "0.0130" in a file is exactly 0.0130 in the engine.
package deal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"corp_finance/pkg/core/scenario"
	"corp_finance/pkg/core/waterfall"

	"github.com/hjson/hjson-go/v4"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

// Format of a deal document.
type Format string

const (
	FormatYAML  Format = "yaml"
	FormatHJSON Format = "hjson"
	FormatJSON  Format = "json"
)

// ErrUnknownFormat is returned for file extensions Load does not handle.
var ErrUnknownFormat = errors.New("unknown deal file format")

// Amount is a decimal kept as its source text. It accepts both quoted and
// bare numbers in JSON.
type Amount string

func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*a = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*a = Amount(str)
		return nil
	}
	*a = Amount(s)
	return nil
}

// =============================================================================
// FILE SCHEMA
// =============================================================================

// TrancheSpec is a tranche as written in a deal file.
type TrancheSpec struct {
	Name     string `yaml:"name" json:"name"`
	Rating   string `yaml:"rating" json:"rating"`
	Notional Amount `yaml:"notional" json:"notional"`
	Spread   Amount `yaml:"spread" json:"spread"`
	IsEquity bool   `yaml:"is_equity" json:"is_equity"`
}

// AssumptionSpec is the run assumptions block.
type AssumptionSpec struct {
	CDR               Amount `yaml:"cdr" json:"cdr"`
	CPR               Amount `yaml:"cpr" json:"cpr"`
	RecoveryRate      Amount `yaml:"recovery_rate" json:"recovery_rate"`
	RecoveryLag       int    `yaml:"recovery_lag" json:"recovery_lag"`
	ReferenceRate     Amount `yaml:"reference_rate" json:"reference_rate"`
	WeightedAvgSpread Amount `yaml:"weighted_avg_spread" json:"weighted_avg_spread"`
	SeniorFeeBps      Amount `yaml:"senior_fee_bps" json:"senior_fee_bps"`
	PeriodDays        int    `yaml:"period_days" json:"period_days"`
	NumPeriods        int    `yaml:"num_periods" json:"num_periods"`
}

// ScenarioSpec is one stress scenario.
type ScenarioSpec struct {
	Name         string `yaml:"name" json:"name"`
	Probability  Amount `yaml:"probability" json:"probability"`
	CDR          Amount `yaml:"cdr" json:"cdr"`
	CPR          Amount `yaml:"cpr" json:"cpr"`
	RecoveryRate Amount `yaml:"recovery_rate" json:"recovery_rate"`
}

// File is the on-disk (and over-the-wire) deal document.
type File struct {
	Name        string         `yaml:"name" json:"name"`
	PoolBalance Amount         `yaml:"pool_balance" json:"pool_balance"`
	Tranches    []TrancheSpec  `yaml:"tranches" json:"tranches"`
	Assumptions AssumptionSpec `yaml:"assumptions" json:"assumptions"`
	Scenarios   []ScenarioSpec `yaml:"scenarios" json:"scenarios"`
}

// Deal is a parsed deal ready for the engines.
type Deal struct {
	Name      string
	Input     waterfall.Input
	Scenarios []scenario.Scenario
}

// ScenarioInput builds the scenario runner input. The built-in stress set is
// used when the deal names no scenarios.
func (d *Deal) ScenarioInput() scenario.Input {
	scs := d.Scenarios
	if len(scs) == 0 {
		scs = scenario.DefaultScenarios()
	}
	return scenario.Input{
		Structure:   d.Input.Structure,
		PoolBalance: d.Input.PoolBalance,
		PeriodDays:  d.Input.Assumptions.PeriodDays,
		NumPeriods:  d.Input.Assumptions.NumPeriods,
		Scenarios:   scs,
	}
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads a deal file, picking the decoder from the extension.
func Load(path string) (*Deal, error) {
	f, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return f.Deal()
}

// LoadFile reads a deal document without converting it.
func LoadFile(path string) (*File, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read deal file: %w", err)
	}
	return ParseFile(data, format)
}

// FormatOf maps a file extension to its Format.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".hjson":
		return FormatHJSON, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

// Parse decodes a deal document and converts it.
func Parse(data []byte, format Format) (*Deal, error) {
	f, err := ParseFile(data, format)
	if err != nil {
		return nil, err
	}
	return f.Deal()
}

// ParseFile decodes a deal document.
func ParseFile(data []byte, format Format) (*File, error) {
	var f File
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse deal yaml: %w", err)
		}
	case FormatHJSON:
		if err := hjson.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse deal hjson: %w", err)
		}
	case FormatJSON:
		// bare JSON numbers reach Amount as their literal text
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse deal json: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
	return &f, nil
}

// Deal converts the file schema into engine types. A malformed number is
// reported as a validation error on the offending field.
func (f *File) Deal() (*Deal, error) {
	p := parser{}

	in := waterfall.Input{
		PoolBalance: p.amount("pool_balance", f.PoolBalance),
		Assumptions: waterfall.Assumptions{
			CDR:               p.amount("assumptions.cdr", f.Assumptions.CDR),
			CPR:               p.amount("assumptions.cpr", f.Assumptions.CPR),
			RecoveryRate:      p.amount("assumptions.recovery_rate", f.Assumptions.RecoveryRate),
			RecoveryLag:       f.Assumptions.RecoveryLag,
			ReferenceRate:     p.amount("assumptions.reference_rate", f.Assumptions.ReferenceRate),
			WeightedAvgSpread: p.amount("assumptions.weighted_avg_spread", f.Assumptions.WeightedAvgSpread),
			SeniorFeeBps:      p.amount("assumptions.senior_fee_bps", f.Assumptions.SeniorFeeBps),
			PeriodDays:        f.Assumptions.PeriodDays,
			NumPeriods:        f.Assumptions.NumPeriods,
		},
	}

	in.Structure.Tranches = make([]waterfall.Tranche, 0, len(f.Tranches))
	for i, t := range f.Tranches {
		in.Structure.Tranches = append(in.Structure.Tranches, waterfall.Tranche{
			Name:     t.Name,
			Rating:   t.Rating,
			Notional: p.amount(fmt.Sprintf("tranches[%d].notional", i), t.Notional),
			Spread:   p.amount(fmt.Sprintf("tranches[%d].spread", i), t.Spread),
			IsEquity: t.IsEquity,
		})
	}

	scs := make([]scenario.Scenario, 0, len(f.Scenarios))
	for i, s := range f.Scenarios {
		scs = append(scs, scenario.Scenario{
			Name:         s.Name,
			Probability:  p.amount(fmt.Sprintf("scenarios[%d].probability", i), s.Probability),
			CDR:          p.amount(fmt.Sprintf("scenarios[%d].cdr", i), s.CDR),
			CPR:          p.amount(fmt.Sprintf("scenarios[%d].cpr", i), s.CPR),
			RecoveryRate: p.amount(fmt.Sprintf("scenarios[%d].recovery_rate", i), s.RecoveryRate),
		})
	}

	if p.err != nil {
		return nil, p.err
	}
	return &Deal{Name: f.Name, Input: in, Scenarios: scs}, nil
}

// parser remembers the first conversion failure.
type parser struct {
	err error
}

// amount parses a decimal field; blank means zero.
func (p *parser) amount(field string, a Amount) decimal.Decimal {
	s := strings.TrimSpace(string(a))
	if s == "" {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		if p.err == nil {
			p.err = &waterfall.ValidationError{Field: field, Reason: fmt.Sprintf("not a decimal number: %q", s)}
		}
		return decimal.Zero
	}
	return v
}
