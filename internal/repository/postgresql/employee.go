package postgresql

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
)

type employeeRepositoryImpl struct {
	db *database.DB
}

func NewEmployeeRepository(db *database.DB) employee.EmployeeRepository {
	return &employeeRepositoryImpl{db: db}
}

// ListActiveEmployees returns active, non-deleted employees that have a salary on file.
func (e *employeeRepositoryImpl) ListActiveEmployees(ctx context.Context, companyID string) ([]employee.Employee, error) {
	q := GetQuerier(ctx, e.db)

	query := `
		SELECT id, company_id, employee_code, full_name, employment_status,
			   base_salary, UPPER(currency), hire_date
		FROM employees
		WHERE company_id = $1
		  AND employment_status = 'active'
		  AND deleted_at IS NULL
		  AND base_salary IS NOT NULL
		ORDER BY full_name, id
	`

	rows, err := q.Query(ctx, query, companyID)
	if err != nil {
		return nil, classifyError("list active employees", err)
	}
	defer rows.Close()

	employees := make([]employee.Employee, 0)
	for rows.Next() {
		var emp employee.Employee
		if err := rows.Scan(
			&emp.ID, &emp.CompanyID, &emp.EmployeeCode, &emp.FullName, &emp.EmploymentStatus,
			&emp.BaseSalary, &emp.Currency, &emp.HireDate,
		); err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		employees = append(employees, emp)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError("list active employees", err)
	}

	return employees, nil
}
