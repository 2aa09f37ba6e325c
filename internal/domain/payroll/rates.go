package payroll

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Band is one marginal tax band. Income above Threshold, up to the next band's
// threshold, is taxed at Rate.
type Band struct {
	Threshold decimal.Decimal
	Rate      decimal.Decimal
}

// Jurisdiction holds the graduated tax table and the flat statutory contribution
// for one currency.
type Jurisdiction struct {
	Currency            string
	Scheme              ContributionScheme
	Bands               []Band
	ContributionRate    decimal.Decimal
	ContributionCeiling decimal.Decimal // zero means uncapped
	Scale               int32
}

// RateTable is the injected, versioned deduction configuration.
type RateTable struct {
	Version                string
	DefaultWithholdingRate decimal.Decimal
	DefaultScale           int32
	Jurisdictions          map[string]Jurisdiction
}

// Jurisdiction returns the table for currency, if one is configured.
func (t RateTable) Jurisdiction(currency string) (Jurisdiction, bool) {
	j, ok := t.Jurisdictions[strings.ToUpper(currency)]
	return j, ok
}

var one = decimal.NewFromInt(1)

func validRate(r decimal.Decimal) bool {
	return !r.IsNegative() && r.LessThanOrEqual(one)
}

// Validate checks the table once at load so computation never has to fail.
func (t RateTable) Validate() error {
	if strings.TrimSpace(t.Version) == "" {
		return fmt.Errorf("rate table: version is required")
	}
	if !validRate(t.DefaultWithholdingRate) {
		return fmt.Errorf("rate table %s: default withholding rate must be within [0,1]", t.Version)
	}
	if t.DefaultScale < 0 {
		return fmt.Errorf("rate table %s: default scale must be non-negative", t.Version)
	}
	for code, j := range t.Jurisdictions {
		if code != strings.ToUpper(code) || code != j.Currency {
			return fmt.Errorf("rate table %s: jurisdiction key %q must be the upper-case currency code", t.Version, code)
		}
		if len(j.Bands) == 0 {
			return fmt.Errorf("rate table %s: %s has no tax bands", t.Version, code)
		}
		if !j.Bands[0].Threshold.IsZero() {
			return fmt.Errorf("rate table %s: %s first band threshold must be 0", t.Version, code)
		}
		for i, b := range j.Bands {
			if !validRate(b.Rate) {
				return fmt.Errorf("rate table %s: %s band %d rate must be within [0,1]", t.Version, code, i)
			}
			if i > 0 && !b.Threshold.GreaterThan(j.Bands[i-1].Threshold) {
				return fmt.Errorf("rate table %s: %s band thresholds must be strictly ascending", t.Version, code)
			}
		}
		if !validRate(j.ContributionRate) {
			return fmt.Errorf("rate table %s: %s contribution rate must be within [0,1]", t.Version, code)
		}
		if j.ContributionCeiling.IsNegative() {
			return fmt.Errorf("rate table %s: %s contribution ceiling must be non-negative", t.Version, code)
		}
		if j.Scale < 0 {
			return fmt.Errorf("rate table %s: %s scale must be non-negative", t.Version, code)
		}
		switch j.Scheme {
		case SchemeSSNIT, SchemeCNSS, SchemeNone:
		default:
			return fmt.Errorf("rate table %s: %s has unknown contribution scheme %q", t.Version, code, j.Scheme)
		}
	}
	return nil
}
