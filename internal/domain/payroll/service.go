package payroll

import (
	"context"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/audit"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/user"
)

type PayrollService interface {
	// Runs
	CreateRun(ctx context.Context, actor Actor, req CreateRunRequest) (RunDetailResponse, error)
	ListRuns(ctx context.Context, actor Actor, filter RunFilter) (ListRunResponse, error)
	GetRun(ctx context.Context, actor Actor, id string) (RunDetailResponse, error)

	// Lifecycle
	ApproveRun(ctx context.Context, actor Actor, id string) (RunResponse, error)
	VoidRun(ctx context.Context, actor Actor, id string) (RunResponse, error)
	MarkRunPaid(ctx context.Context, actor Actor, id string) (RunResponse, error)

	// Items
	GetItem(ctx context.Context, actor Actor, id string) (ItemResponse, error)
	UpdateItem(ctx context.Context, actor Actor, req UpdateItemRequest) (ItemResponse, error)

	// Summary
	Summarize(ctx context.Context, actor Actor, year int) (YearlySummaryResponse, error)
	RateTable(ctx context.Context, actor Actor) (RateTableResponse, error)
}

// EmployeeDirectory supplies the active employees a run is generated for.
type EmployeeDirectory interface {
	ListActiveEmployees(ctx context.Context, companyID string) ([]employee.Employee, error)
}

// Authorizer decides whether actor holds capability.
type Authorizer interface {
	HasCapability(actor Actor, capability user.Permission) bool
}

// AuditRecorder records lifecycle changes. It runs inside the caller's transaction.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry) error
}
