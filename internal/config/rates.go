package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed default_rates.yaml
var defaultRates []byte

// Amounts are kept as strings so decimals never pass through float64.
type rateTableFile struct {
	Version                string             `yaml:"version"`
	DefaultWithholdingRate string             `yaml:"default_withholding_rate"`
	DefaultScale           int32              `yaml:"default_scale"`
	Jurisdictions          []jurisdictionFile `yaml:"jurisdictions"`
}

type jurisdictionFile struct {
	Currency            string     `yaml:"currency"`
	Scheme              string     `yaml:"scheme"`
	ContributionRate    string     `yaml:"contribution_rate"`
	ContributionCeiling string     `yaml:"contribution_ceiling"`
	Scale               int32      `yaml:"scale"`
	Bands               []bandFile `yaml:"bands"`
}

type bandFile struct {
	Threshold string `yaml:"threshold"`
	Rate      string `yaml:"rate"`
}

// LoadRateTable reads and validates the rate table at path. An empty path
// loads the embedded default table.
func LoadRateTable(path string) (payroll.RateTable, error) {
	if path == "" {
		return ParseRateTable(defaultRates)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return payroll.RateTable{}, fmt.Errorf("failed to read rate table %s: %w", path, err)
	}
	return ParseRateTable(data)
}

// ParseRateTable decodes a YAML rate table and validates it.
func ParseRateTable(data []byte) (payroll.RateTable, error) {
	var file rateTableFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return payroll.RateTable{}, fmt.Errorf("failed to decode rate table: %w", err)
	}

	table := payroll.RateTable{
		Version:       file.Version,
		DefaultScale:  file.DefaultScale,
		Jurisdictions: make(map[string]payroll.Jurisdiction, len(file.Jurisdictions)),
	}

	var err error
	if table.DefaultWithholdingRate, err = parseAmount("default_withholding_rate", file.DefaultWithholdingRate); err != nil {
		return payroll.RateTable{}, err
	}

	for _, jf := range file.Jurisdictions {
		code := strings.ToUpper(strings.TrimSpace(jf.Currency))
		if _, dup := table.Jurisdictions[code]; dup {
			return payroll.RateTable{}, fmt.Errorf("rate table: duplicate jurisdiction %s", code)
		}

		j := payroll.Jurisdiction{
			Currency: code,
			Scheme:   payroll.ContributionScheme(strings.ToUpper(jf.Scheme)),
			Scale:    jf.Scale,
			Bands:    make([]payroll.Band, 0, len(jf.Bands)),
		}
		if j.ContributionRate, err = parseAmount(code+".contribution_rate", jf.ContributionRate); err != nil {
			return payroll.RateTable{}, err
		}
		if j.ContributionCeiling, err = parseAmount(code+".contribution_ceiling", jf.ContributionCeiling); err != nil {
			return payroll.RateTable{}, err
		}
		for i, bf := range jf.Bands {
			threshold, err := parseAmount(fmt.Sprintf("%s.bands[%d].threshold", code, i), bf.Threshold)
			if err != nil {
				return payroll.RateTable{}, err
			}
			rate, err := parseAmount(fmt.Sprintf("%s.bands[%d].rate", code, i), bf.Rate)
			if err != nil {
				return payroll.RateTable{}, err
			}
			j.Bands = append(j.Bands, payroll.Band{Threshold: threshold, Rate: rate})
		}
		table.Jurisdictions[code] = j
	}

	if err := table.Validate(); err != nil {
		return payroll.RateTable{}, err
	}
	return table, nil
}

func parseAmount(field, value string) (decimal.Decimal, error) {
	if strings.TrimSpace(value) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, fmt.Errorf("rate table: invalid %s %q: %w", field, value, err)
	}
	return d, nil
}
