package payroll

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/audit"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/user"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory stand-in for the postgres layer. A transaction holds
// the store mutex until it ends and restores a snapshot on error, so it behaves
// like a serializable database with a period uniqueness constraint.
type memStore struct {
	mu        sync.Mutex
	runs      map[string]payroll.Run
	items     map[string]payroll.Item
	audits    []audit.Entry
	employees map[string][]employee.Employee
	failOn    map[string]error
}

type memTxKey struct{}

func newMemStore() *memStore {
	return &memStore{
		runs:      make(map[string]payroll.Run),
		items:     make(map[string]payroll.Item),
		employees: make(map[string][]employee.Employee),
		failOn:    make(map[string]error),
	}
}

type memSnapshot struct {
	runs   map[string]payroll.Run
	items  map[string]payroll.Item
	audits []audit.Entry
}

func (m *memStore) snapshot() memSnapshot {
	s := memSnapshot{
		runs:   make(map[string]payroll.Run, len(m.runs)),
		items:  make(map[string]payroll.Item, len(m.items)),
		audits: append([]audit.Entry(nil), m.audits...),
	}
	for k, v := range m.runs {
		s.runs[k] = v
	}
	for k, v := range m.items {
		s.items[k] = v
	}
	return s
}

func (m *memStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		m.runs, m.items, m.audits = snap.runs, snap.items, snap.audits
		return err
	}
	return nil
}

func (m *memStore) enter(ctx context.Context, op string) (func(), error) {
	release := func() {}
	if ctx.Value(memTxKey{}) == nil {
		m.mu.Lock()
		release = m.mu.Unlock
	}
	if err := m.failOn[op]; err != nil {
		release()
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		release()
		return nil, payroll.NewPersistenceError(op, err)
	}
	return release, nil
}

// ---- PayrollRepository ----

func (m *memStore) CreateRun(ctx context.Context, run payroll.Run) (payroll.Run, error) {
	release, err := m.enter(ctx, "CreateRun")
	if err != nil {
		return payroll.Run{}, err
	}
	defer release()

	for _, r := range m.runs {
		if r.CompanyID == run.CompanyID && r.Month == run.Month && r.Year == run.Year && r.Status != payroll.RunStatusCancelled {
			return payroll.Run{}, payroll.ErrDuplicateRun
		}
	}
	m.runs[run.ID] = run
	return run, nil
}

func (m *memStore) GetRunByID(ctx context.Context, id string, companyID string) (payroll.Run, error) {
	release, err := m.enter(ctx, "GetRunByID")
	if err != nil {
		return payroll.Run{}, err
	}
	defer release()

	r, ok := m.runs[id]
	if !ok || r.CompanyID != companyID {
		return payroll.Run{}, payroll.ErrRunNotFound
	}
	return r, nil
}

func (m *memStore) GetRunForUpdate(ctx context.Context, id string, companyID string) (payroll.Run, error) {
	return m.GetRunByID(ctx, id, companyID)
}

func (m *memStore) ListRuns(ctx context.Context, companyID string, filter payroll.RunFilter) ([]payroll.Run, int64, error) {
	release, err := m.enter(ctx, "ListRuns")
	if err != nil {
		return nil, 0, err
	}
	defer release()

	var matched []payroll.Run
	for _, r := range m.runs {
		if r.CompanyID != companyID {
			continue
		}
		if filter.Year != nil && r.Year != *filter.Year {
			continue
		}
		if filter.Status != nil && string(r.Status) != *filter.Status {
			continue
		}
		matched = append(matched, r)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Year != matched[j].Year {
			return matched[i].Year > matched[j].Year
		}
		if matched[i].Month != matched[j].Month {
			return matched[i].Month > matched[j].Month
		}
		return matched[i].ID > matched[j].ID
	})

	total := int64(len(matched))
	start := (filter.Page - 1) * filter.Limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (m *memStore) UpdateRunStatus(ctx context.Context, run payroll.Run) (payroll.Run, error) {
	release, err := m.enter(ctx, "UpdateRunStatus")
	if err != nil {
		return payroll.Run{}, err
	}
	defer release()

	if _, ok := m.runs[run.ID]; !ok {
		return payroll.Run{}, payroll.ErrRunNotFound
	}
	m.runs[run.ID] = run
	return run, nil
}

func (m *memStore) RefreshRunTotals(ctx context.Context, runID string, updatedAt time.Time) (payroll.Run, error) {
	release, err := m.enter(ctx, "RefreshRunTotals")
	if err != nil {
		return payroll.Run{}, err
	}
	defer release()

	run, ok := m.runs[runID]
	if !ok {
		return payroll.Run{}, payroll.ErrRunNotFound
	}
	run.TotalGross, run.TotalNet, run.ItemCount = decimal.Zero, decimal.Zero, 0
	for _, it := range m.items {
		if it.RunID != runID {
			continue
		}
		run.TotalGross = run.TotalGross.Add(it.GrossPay)
		run.TotalNet = run.TotalNet.Add(it.NetPay)
		run.ItemCount++
	}
	run.UpdatedAt = updatedAt
	m.runs[runID] = run
	return run, nil
}

func (m *memStore) CreateItems(ctx context.Context, items []payroll.Item) error {
	release, err := m.enter(ctx, "CreateItems")
	if err != nil {
		return err
	}
	defer release()

	for _, it := range items {
		m.items[it.ID] = it
	}
	return nil
}

func (m *memStore) GetItemByID(ctx context.Context, id string, companyID string) (payroll.Item, error) {
	release, err := m.enter(ctx, "GetItemByID")
	if err != nil {
		return payroll.Item{}, err
	}
	defer release()

	it, ok := m.items[id]
	if !ok || it.CompanyID != companyID {
		return payroll.Item{}, payroll.ErrItemNotFound
	}
	return it, nil
}

func (m *memStore) GetItemForUpdate(ctx context.Context, id string, companyID string) (payroll.Item, error) {
	return m.GetItemByID(ctx, id, companyID)
}

func (m *memStore) ListItemsByRun(ctx context.Context, runID string) ([]payroll.Item, error) {
	release, err := m.enter(ctx, "ListItemsByRun")
	if err != nil {
		return nil, err
	}
	defer release()

	var out []payroll.Item
	for _, it := range m.items {
		if it.RunID == runID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeName < out[j].EmployeeName })
	return out, nil
}

func (m *memStore) UpdateItem(ctx context.Context, item payroll.Item) (payroll.Item, error) {
	release, err := m.enter(ctx, "UpdateItem")
	if err != nil {
		return payroll.Item{}, err
	}
	defer release()

	if _, ok := m.items[item.ID]; !ok {
		return payroll.Item{}, payroll.ErrItemNotFound
	}
	m.items[item.ID] = item
	return item, nil
}

func (m *memStore) SummarizeYear(ctx context.Context, companyID string, year int) ([]payroll.CurrencyTotals, error) {
	release, err := m.enter(ctx, "SummarizeYear")
	if err != nil {
		return nil, err
	}
	defer release()

	var items []payroll.Item
	for _, it := range m.items {
		run := m.runs[it.RunID]
		if run.CompanyID != companyID || run.Year != year || run.Status == payroll.RunStatusCancelled {
			continue
		}
		items = append(items, it)
	}
	out := make([]payroll.CurrencyTotals, 0)
	for _, t := range payroll.TotalsByCurrency(items) {
		out = append(out, t)
	}
	return out, nil
}

// ---- EmployeeDirectory ----

func (m *memStore) ListActiveEmployees(ctx context.Context, companyID string) ([]employee.Employee, error) {
	release, err := m.enter(ctx, "ListActiveEmployees")
	if err != nil {
		return nil, err
	}
	defer release()

	var out []employee.Employee
	for _, e := range m.employees[companyID] {
		if e.IsActive() {
			out = append(out, e)
		}
	}
	return out, nil
}

// ---- AuditRecorder ----

func (m *memStore) Record(ctx context.Context, entry audit.Entry) error {
	release, err := m.enter(ctx, "Record")
	if err != nil {
		return err
	}
	defer release()

	m.audits = append(m.audits, entry)
	return nil
}

// ---- helpers for assertions ----

func (m *memStore) runCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runs)
}

func (m *memStore) itemCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *memStore) auditEntries() []audit.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]audit.Entry(nil), m.audits...)
}

// roleAuthorizer grants capabilities straight from the static role table.
type roleAuthorizer struct{}

func (roleAuthorizer) HasCapability(actor payroll.Actor, capability user.Permission) bool {
	return user.HasPermission(actor.Role, capability)
}

func testRates() payroll.RateTable {
	d := decimal.RequireFromString
	return payroll.RateTable{
		Version:                "test-2024.1",
		DefaultWithholdingRate: d("0.20"),
		DefaultScale:           2,
		Jurisdictions: map[string]payroll.Jurisdiction{
			"GHS": {
				Currency: "GHS",
				Scheme:   payroll.SchemeSSNIT,
				Bands: []payroll.Band{
					{Threshold: d("0"), Rate: d("0")},
					{Threshold: d("490"), Rate: d("0.05")},
					{Threshold: d("600"), Rate: d("0.10")},
					{Threshold: d("730"), Rate: d("0.175")},
					{Threshold: d("3896.67"), Rate: d("0.25")},
					{Threshold: d("19896.67"), Rate: d("0.30")},
					{Threshold: d("50416.67"), Rate: d("0.35")},
				},
				ContributionRate:    d("0.055"),
				ContributionCeiling: d("61000"),
				Scale:               2,
			},
			"GNF": {
				Currency: "GNF",
				Scheme:   payroll.SchemeCNSS,
				Bands: []payroll.Band{
					{Threshold: d("0"), Rate: d("0")},
					{Threshold: d("1000000"), Rate: d("0.05")},
					{Threshold: d("3000000"), Rate: d("0.08")},
					{Threshold: d("5000000"), Rate: d("0.10")},
					{Threshold: d("10000000"), Rate: d("0.15")},
					{Threshold: d("20000000"), Rate: d("0.20")},
				},
				ContributionRate:    d("0.05"),
				ContributionCeiling: d("2500000"),
				Scale:               0,
			},
		},
	}
}
