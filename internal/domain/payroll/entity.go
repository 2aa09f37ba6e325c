package payroll

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/user"
	"github.com/shopspring/decimal"
)

// RunStatus enum
type RunStatus string

const (
	RunStatusDraft     RunStatus = "DRAFT"
	RunStatusApproved  RunStatus = "APPROVED"
	RunStatusPaid      RunStatus = "PAID"
	RunStatusCancelled RunStatus = "CANCELLED"
)

var runTransitions = map[RunStatus][]RunStatus{
	RunStatusDraft:    {RunStatusApproved, RunStatusCancelled},
	RunStatusApproved: {RunStatusPaid},
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
// PAID and CANCELLED are terminal.
func (s RunStatus) CanTransitionTo(next RunStatus) bool {
	for _, allowed := range runTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusDraft, RunStatusApproved, RunStatusPaid, RunStatusCancelled:
		return true
	}
	return false
}

// ContributionScheme names the statutory contribution applied to an item.
type ContributionScheme string

const (
	SchemeSSNIT ContributionScheme = "SSNIT"
	SchemeCNSS  ContributionScheme = "CNSS"
	SchemeNone  ContributionScheme = "NONE"
)

// Actor is the verified caller of an engine operation.
type Actor struct {
	UserID    string
	CompanyID string
	Role      user.Role
}

// Run - one payroll disbursement cycle for a company and month/year
type Run struct {
	ID               string
	CompanyID        string
	Month            int
	Year             int
	Status           RunStatus
	TotalGross       decimal.Decimal
	TotalNet         decimal.Decimal
	ItemCount        int
	RateTableVersion string
	CreatedBy        string
	ApprovedBy       *string
	CreatedAt        time.Time
	ApprovedAt       *time.Time
	PaidAt           *time.Time
	CancelledAt      *time.Time
	UpdatedAt        time.Time
}

// PeriodLabel renders the run period, e.g. "January 2025".
func (r Run) PeriodLabel() string {
	if r.Month < 1 || r.Month > 12 {
		return fmt.Sprintf("%02d/%d", r.Month, r.Year)
	}
	return fmt.Sprintf("%s %d", time.Month(r.Month).String(), r.Year)
}

// Money columns are NUMERIC(19,4): at most four decimal places and fifteen integer digits.
const AmountScale int32 = 4

var MaxAmount = decimal.New(1, 15)

// StorableAmount reports whether d fits a money column without rounding or overflow.
func StorableAmount(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(AmountScale)) && d.Abs().LessThan(MaxAmount)
}

// Item - one employee's computed pay record within a run
type Item struct {
	ID                    string
	RunID                 string
	CompanyID             string
	EmployeeID            string
	EmployeeName          string
	Currency              string
	BaseSalary            decimal.Decimal
	Overtime              decimal.Decimal
	Bonus                 decimal.Decimal
	Allowances            decimal.Decimal
	Tax                   decimal.Decimal
	StatutoryContribution decimal.Decimal
	ContributionScheme    ContributionScheme
	OtherDeductions       decimal.Decimal
	GrossPay              decimal.Decimal
	NetPay                decimal.Decimal
	Notes                 *string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Gross is base salary plus every employer-entered addition.
func (i Item) Gross() decimal.Decimal {
	return i.BaseSalary.Add(i.Overtime).Add(i.Bonus).Add(i.Allowances)
}

// ApplyDeductions sets gross, tax, statutory contribution and net pay from d.
func (i *Item) ApplyDeductions(d Deductions) {
	i.GrossPay = i.Gross()
	i.Tax = d.Tax
	i.StatutoryContribution = d.Statutory
	i.ContributionScheme = d.Scheme
	i.NetPay = i.GrossPay.Sub(i.Tax).Sub(i.StatutoryContribution).Sub(i.OtherDeductions)
}

// Deductions is the output of the statutory calculator for one gross amount.
type Deductions struct {
	Tax       decimal.Decimal
	Statutory decimal.Decimal
	Scheme    ContributionScheme
}

// CurrencyTotals aggregates items of a single currency. Never blended across currencies.
type CurrencyTotals struct {
	Currency  string          `json:"currency"`
	Gross     decimal.Decimal `json:"gross"`
	Tax       decimal.Decimal `json:"tax"`
	Statutory decimal.Decimal `json:"ssnit"`
	Net       decimal.Decimal `json:"net"`
	Count     int             `json:"count"`
}

// Add folds one item into the bucket.
func (t *CurrencyTotals) Add(i Item) {
	t.Gross = t.Gross.Add(i.GrossPay)
	t.Tax = t.Tax.Add(i.Tax)
	t.Statutory = t.Statutory.Add(i.StatutoryContribution)
	t.Net = t.Net.Add(i.NetPay)
	t.Count++
}

// TotalsByCurrency groups items into per-currency buckets.
func TotalsByCurrency(items []Item) map[string]CurrencyTotals {
	out := make(map[string]CurrencyTotals)
	for _, it := range items {
		t, ok := out[it.Currency]
		if !ok {
			t = CurrencyTotals{
				Currency:  it.Currency,
				Gross:     decimal.Zero,
				Tax:       decimal.Zero,
				Statutory: decimal.Zero,
				Net:       decimal.Zero,
			}
		}
		t.Add(it)
		out[it.Currency] = t
	}
	return out
}

// YearlySummary is derived on demand and never persisted.
type YearlySummary struct {
	Year       int
	ByCurrency map[string]CurrencyTotals
}
