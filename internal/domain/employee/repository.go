package employee

import "context"

type EmployeeRepository interface {
	// ListActiveEmployees returns active employees with a configured base salary,
	// ordered by name.
	ListActiveEmployees(ctx context.Context, companyID string) ([]Employee, error)
}
