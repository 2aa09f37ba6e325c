package postgresql

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation = "23505"

	constraintRunPeriod = "uk_payroll_runs_period"
)

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func pgConstraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

// classifyError maps a driver error onto the payroll error taxonomy.
// Integrity violations are programming errors and are returned wrapped as-is;
// everything else is the store being unavailable.
func classifyError(op string, err error) error {
	if err == nil {
		return nil
	}

	code := pgErrorCode(err)
	switch {
	case code == pgUniqueViolation && pgConstraintName(err) == constraintRunPeriod:
		return payroll.ErrDuplicateRun
	case strings.HasPrefix(code, "23"), strings.HasPrefix(code, "22"):
		return fmt.Errorf("failed to %s: %w", op, err)
	default:
		return payroll.NewPersistenceError(op, err)
	}
}
