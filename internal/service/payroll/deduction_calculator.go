package payroll

import (
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/shopspring/decimal"
)

// DeductionCalculator computes statutory deductions from a validated rate table.
// It holds no other state, so results depend only on (gross, currency, table version).
type DeductionCalculator struct {
	rates payroll.RateTable
}

func NewDeductionCalculator(rates payroll.RateTable) *DeductionCalculator {
	return &DeductionCalculator{rates: rates}
}

// Version reports the rate table version stamped on runs.
func (c *DeductionCalculator) Version() string {
	return c.rates.Version
}

// Rates returns the active rate table.
func (c *DeductionCalculator) Rates() payroll.RateTable {
	return c.rates
}

// Compute returns tax and statutory contribution for gross in currency.
// gross <= 0 yields zero for both.
func (c *DeductionCalculator) Compute(gross decimal.Decimal, currency string) payroll.Deductions {
	j, ok := c.rates.Jurisdiction(currency)
	if !ok {
		return c.flatWithholding(gross)
	}

	if !gross.IsPositive() {
		return payroll.Deductions{Tax: decimal.Zero, Statutory: decimal.Zero, Scheme: j.Scheme}
	}

	return payroll.Deductions{
		Tax:       graduatedTax(gross, j.Bands).Round(j.Scale),
		Statutory: contribution(gross, j).Round(j.Scale),
		Scheme:    j.Scheme,
	}
}

func (c *DeductionCalculator) flatWithholding(gross decimal.Decimal) payroll.Deductions {
	if !gross.IsPositive() {
		return payroll.Deductions{Tax: decimal.Zero, Statutory: decimal.Zero, Scheme: payroll.SchemeNone}
	}
	return payroll.Deductions{
		Tax:       gross.Mul(c.rates.DefaultWithholdingRate).Round(c.rates.DefaultScale),
		Statutory: decimal.Zero,
		Scheme:    payroll.SchemeNone,
	}
}

// graduatedTax applies marginal bands. Each band covers (threshold, next threshold].
func graduatedTax(gross decimal.Decimal, bands []payroll.Band) decimal.Decimal {
	tax := decimal.Zero
	for i, b := range bands {
		if gross.LessThanOrEqual(b.Threshold) {
			break
		}
		upper := gross
		if i+1 < len(bands) && bands[i+1].Threshold.LessThan(gross) {
			upper = bands[i+1].Threshold
		}
		tax = tax.Add(upper.Sub(b.Threshold).Mul(b.Rate))
	}
	return tax
}

func contribution(gross decimal.Decimal, j payroll.Jurisdiction) decimal.Decimal {
	base := gross
	if j.ContributionCeiling.IsPositive() && base.GreaterThan(j.ContributionCeiling) {
		base = j.ContributionCeiling
	}
	return base.Mul(j.ContributionRate)
}
