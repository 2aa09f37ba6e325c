package payroll

import (
	"context"
	"time"
)

// PayrollRepository defines data access methods for payroll runs and items.
// All lookups take companyID to keep tenants isolated.
type PayrollRepository interface {
	// Runs
	CreateRun(ctx context.Context, run Run) (Run, error)
	GetRunByID(ctx context.Context, id string, companyID string) (Run, error)
	// GetRunForUpdate locks the run row until the surrounding transaction ends.
	GetRunForUpdate(ctx context.Context, id string, companyID string) (Run, error)
	ListRuns(ctx context.Context, companyID string, filter RunFilter) ([]Run, int64, error)
	UpdateRunStatus(ctx context.Context, run Run) (Run, error)
	// RefreshRunTotals re-sums committed items into the run's totals and stamps updatedAt.
	RefreshRunTotals(ctx context.Context, runID string, updatedAt time.Time) (Run, error)

	// Items
	CreateItems(ctx context.Context, items []Item) error
	GetItemByID(ctx context.Context, id string, companyID string) (Item, error)
	// GetItemForUpdate locks the item row until the surrounding transaction ends.
	GetItemForUpdate(ctx context.Context, id string, companyID string) (Item, error)
	ListItemsByRun(ctx context.Context, runID string) ([]Item, error)
	UpdateItem(ctx context.Context, item Item) (Item, error)

	// Aggregations
	SummarizeYear(ctx context.Context, companyID string, year int) ([]CurrencyTotals, error)
}

// Transactor runs fn in a single transaction carried by the context passed to fn.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
