package audit

import "time"

// Entry is one audit record. FromStatus/ToStatus are empty for non-transition actions.
type Entry struct {
	ID         string
	CompanyID  string
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	FromStatus string
	ToStatus   string
	Details    map[string]any
	CreatedAt  time.Time
}

const (
	ActionRunCreated   = "payroll_run.created"
	ActionRunApproved  = "payroll_run.approved"
	ActionRunCancelled = "payroll_run.cancelled"
	ActionRunPaid      = "payroll_run.paid"
	ActionItemUpdated  = "payroll_item.updated"

	EntityPayrollRun  = "payroll_run"
	EntityPayrollItem = "payroll_item"
)
