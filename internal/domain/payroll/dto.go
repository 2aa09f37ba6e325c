package payroll

import (
	"fmt"

	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

// ========== RUN DTOs ==========

type CreateRunRequest struct {
	Month int `json:"month" validate:"min=1,max=12"`
	Year  int `json:"year" validate:"min=1000,max=9999"`
}

func (r *CreateRunRequest) Validate() error {
	if errs := validator.StructErrors(r); len(errs) > 0 {
		return errs
	}
	return nil
}

type RunFilter struct {
	Year   *int    `json:"year,omitempty"`
	Status *string `json:"status,omitempty"`
	Page   int     `json:"page"`
	Limit  int     `json:"limit"`
}

func (f *RunFilter) Validate() error {
	var errs validator.ValidationErrors

	if f.Year != nil && (*f.Year < 1000 || *f.Year > 9999) {
		errs = append(errs, validator.ValidationError{Field: "year", Message: "must be a 4-digit year"})
	}
	if f.Status != nil && !RunStatus(*f.Status).IsValid() {
		errs = append(errs, validator.ValidationError{Field: "status", Message: "must be one of DRAFT, APPROVED, PAID, CANCELLED"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type RunResponse struct {
	ID               string          `json:"id"`
	Month            int             `json:"month"`
	Year             int             `json:"year"`
	Period           string          `json:"period"`
	Status           string          `json:"status"`
	TotalGross       decimal.Decimal `json:"total_gross"`
	TotalNet         decimal.Decimal `json:"total_net"`
	ItemCount        int             `json:"item_count"`
	RateTableVersion string          `json:"rate_table_version"`
	CreatedBy        string          `json:"created_by"`
	ApprovedBy       *string         `json:"approved_by,omitempty"`
	CreatedAt        string          `json:"created_at"`
	ApprovedAt       *string         `json:"approved_at,omitempty"`
	PaidAt           *string         `json:"paid_at,omitempty"`
	CancelledAt      *string         `json:"cancelled_at,omitempty"`
}

type RunDetailResponse struct {
	RunResponse
	Items          []ItemResponse   `json:"items"`
	CurrencyTotals []CurrencyTotals `json:"currency_totals"`
	Warnings       []string         `json:"warnings,omitempty"`
}

type ListRunResponse struct {
	Data       []RunResponse `json:"data"`
	TotalCount int64         `json:"total_count"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
}

// ========== ITEM DTOs ==========

type UpdateItemRequest struct {
	ID              string           `json:"-" validate:"required"`
	Overtime        *decimal.Decimal `json:"overtime,omitempty"`
	Bonus           *decimal.Decimal `json:"bonus,omitempty"`
	Allowances      *decimal.Decimal `json:"allowances,omitempty"`
	OtherDeductions *decimal.Decimal `json:"other_deductions,omitempty"`
	Notes           *string          `json:"notes,omitempty" validate:"omitempty,max=500"`
}

func (r *UpdateItemRequest) Validate() error {
	errs := validator.StructErrors(r)

	amounts := []struct {
		field string
		value *decimal.Decimal
	}{
		{"overtime", r.Overtime},
		{"bonus", r.Bonus},
		{"allowances", r.Allowances},
		{"other_deductions", r.OtherDeductions},
	}
	for _, a := range amounts {
		switch {
		case a.value == nil:
		case a.value.IsNegative():
			errs = append(errs, validator.ValidationError{Field: a.field, Message: "must be non-negative"})
		case !a.value.Equal(a.value.Truncate(AmountScale)):
			errs = append(errs, validator.ValidationError{Field: a.field, Message: fmt.Sprintf("must have at most %d decimal places", AmountScale)})
		case !a.value.LessThan(MaxAmount):
			errs = append(errs, validator.ValidationError{Field: a.field, Message: "must be less than " + MaxAmount.String()})
		}
	}
	if r.Overtime == nil && r.Bonus == nil && r.Allowances == nil && r.OtherDeductions == nil && r.Notes == nil {
		errs = append(errs, validator.ValidationError{Field: "body", Message: "at least one field must be provided"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type ItemResponse struct {
	ID                    string          `json:"id"`
	RunID                 string          `json:"run_id"`
	EmployeeID            string          `json:"employee_id"`
	EmployeeName          string          `json:"employee_name"`
	Currency              string          `json:"currency"`
	BaseSalary            decimal.Decimal `json:"base_salary"`
	Overtime              decimal.Decimal `json:"overtime"`
	Bonus                 decimal.Decimal `json:"bonus"`
	Allowances            decimal.Decimal `json:"allowances"`
	GrossPay              decimal.Decimal `json:"gross_pay"`
	Tax                   decimal.Decimal `json:"tax"`
	StatutoryContribution decimal.Decimal `json:"statutory_contribution"`
	ContributionScheme    string          `json:"contribution_scheme"`
	OtherDeductions       decimal.Decimal `json:"other_deductions"`
	NetPay                decimal.Decimal `json:"net_pay"`
	Notes                 *string         `json:"notes,omitempty"`
	UpdatedAt             string          `json:"updated_at"`
}

// ========== SUMMARY DTOs ==========

type YearlySummaryResponse struct {
	Year       int                       `json:"year"`
	ByCurrency map[string]CurrencyTotals `json:"by_currency"`
}

type BandResponse struct {
	Threshold decimal.Decimal `json:"threshold"`
	Rate      decimal.Decimal `json:"rate"`
}

type JurisdictionResponse struct {
	Currency            string          `json:"currency"`
	Scheme              string          `json:"scheme"`
	Bands               []BandResponse  `json:"bands"`
	ContributionRate    decimal.Decimal `json:"contribution_rate"`
	ContributionCeiling decimal.Decimal `json:"contribution_ceiling"`
	Scale               int32           `json:"scale"`
}

type RateTableResponse struct {
	Version                string                 `json:"version"`
	DefaultWithholdingRate decimal.Decimal        `json:"default_withholding_rate"`
	Jurisdictions          []JurisdictionResponse `json:"jurisdictions"`
}
