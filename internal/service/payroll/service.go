package payroll

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/audit"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/user"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
)

type PayrollServiceImpl struct {
	tx          payroll.Transactor
	payrollRepo payroll.PayrollRepository
	directory   payroll.EmployeeDirectory
	authorizer  payroll.Authorizer
	auditLog    payroll.AuditRecorder
	calculator  *DeductionCalculator
	clock       clockwork.Clock
	logger      *slog.Logger
}

func NewPayrollService(
	tx payroll.Transactor,
	payrollRepo payroll.PayrollRepository,
	directory payroll.EmployeeDirectory,
	authorizer payroll.Authorizer,
	auditLog payroll.AuditRecorder,
	calculator *DeductionCalculator,
	clock clockwork.Clock,
	logger *slog.Logger,
) payroll.PayrollService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PayrollServiceImpl{
		tx:          tx,
		payrollRepo: payrollRepo,
		directory:   directory,
		authorizer:  authorizer,
		auditLog:    auditLog,
		calculator:  calculator,
		clock:       clock,
		logger:      logger.With("component", "payroll"),
	}
}

func (s *PayrollServiceImpl) authorize(actor payroll.Actor, capability user.Permission) error {
	if actor.CompanyID == "" {
		return fmt.Errorf("%w: %w", payroll.ErrUnauthorized, user.ErrCompanyIDRequired)
	}
	if !s.authorizer.HasCapability(actor, capability) {
		return fmt.Errorf("%w: role %q lacks %s", payroll.ErrUnauthorized, actor.Role, capability)
	}
	return nil
}

func (s *PayrollServiceImpl) now() time.Time {
	return s.clock.Now().UTC()
}

func requireID(field, id string) error {
	if validator.IsEmpty(id) {
		return validator.ValidationErrors{{Field: field, Message: "is required"}}
	}
	return nil
}

// ========== RUNS ==========

func (s *PayrollServiceImpl) CreateRun(ctx context.Context, actor payroll.Actor, req payroll.CreateRunRequest) (payroll.RunDetailResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.RunDetailResponse{}, err
	}
	if err := s.authorize(actor, user.PermissionPayrollCreateRun); err != nil {
		return payroll.RunDetailResponse{}, err
	}

	var (
		run   payroll.Run
		items []payroll.Item
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		now := s.now()
		runID, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate run id: %w", err)
		}

		run, err = s.payrollRepo.CreateRun(ctx, payroll.Run{
			ID:               runID.String(),
			CompanyID:        actor.CompanyID,
			Month:            req.Month,
			Year:             req.Year,
			Status:           payroll.RunStatusDraft,
			TotalGross:       decimal.Zero,
			TotalNet:         decimal.Zero,
			RateTableVersion: s.calculator.Version(),
			CreatedBy:        actor.UserID,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
		if err != nil {
			return err
		}

		employees, err := s.directory.ListActiveEmployees(ctx, actor.CompanyID)
		if err != nil {
			return err
		}

		items = make([]payroll.Item, 0, len(employees))
		for _, emp := range employees {
			if !emp.IsActive() {
				continue
			}
			item, err := s.newItem(run, emp, now)
			if err != nil {
				return err
			}
			items = append(items, item)
		}

		if len(items) > 0 {
			if err := s.payrollRepo.CreateItems(ctx, items); err != nil {
				return err
			}
		}

		run, err = s.payrollRepo.RefreshRunTotals(ctx, run.ID, now)
		if err != nil {
			return err
		}

		return s.record(ctx, actor, audit.Entry{
			Action:     audit.ActionRunCreated,
			EntityType: audit.EntityPayrollRun,
			EntityID:   run.ID,
			ToStatus:   string(payroll.RunStatusDraft),
			Details: map[string]any{
				"month":              run.Month,
				"year":               run.Year,
				"item_count":         len(items),
				"rate_table_version": run.RateTableVersion,
			},
		})
	})
	if err != nil {
		return payroll.RunDetailResponse{}, err
	}

	s.logger.InfoContext(ctx, "payroll run created",
		slog.String("run_id", run.ID),
		slog.String("company_id", run.CompanyID),
		slog.String("period", run.PeriodLabel()),
		slog.Int("item_count", len(items)),
		slog.String("actor", actor.UserID),
	)

	return buildRunDetail(run, items), nil
}

func (s *PayrollServiceImpl) newItem(run payroll.Run, emp employee.Employee, now time.Time) (payroll.Item, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return payroll.Item{}, fmt.Errorf("failed to generate item id: %w", err)
	}
	item := payroll.Item{
		ID:              id.String(),
		RunID:           run.ID,
		CompanyID:       run.CompanyID,
		EmployeeID:      emp.ID,
		EmployeeName:    emp.FullName,
		Currency:        strings.ToUpper(emp.Currency),
		BaseSalary:      emp.BaseSalary,
		Overtime:        decimal.Zero,
		Bonus:           decimal.Zero,
		Allowances:      decimal.Zero,
		OtherDeductions: decimal.Zero,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	item.ApplyDeductions(s.calculator.Compute(item.Gross(), item.Currency))
	return item, nil
}

func (s *PayrollServiceImpl) ListRuns(ctx context.Context, actor payroll.Actor, filter payroll.RunFilter) (payroll.ListRunResponse, error) {
	if err := s.authorize(actor, user.PermissionPayrollView); err != nil {
		return payroll.ListRunResponse{}, err
	}
	if err := filter.Validate(); err != nil {
		return payroll.ListRunResponse{}, err
	}

	if filter.Page < 1 {
		filter.Page = defaultPage
	}
	if filter.Limit < 1 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}

	runs, total, err := s.payrollRepo.ListRuns(ctx, actor.CompanyID, filter)
	if err != nil {
		return payroll.ListRunResponse{}, err
	}

	data := make([]payroll.RunResponse, 0, len(runs))
	for _, r := range runs {
		data = append(data, mapToRunResponse(r))
	}

	return payroll.ListRunResponse{
		Data:       data,
		TotalCount: total,
		Page:       filter.Page,
		Limit:      filter.Limit,
	}, nil
}

func (s *PayrollServiceImpl) GetRun(ctx context.Context, actor payroll.Actor, id string) (payroll.RunDetailResponse, error) {
	if err := s.authorize(actor, user.PermissionPayrollView); err != nil {
		return payroll.RunDetailResponse{}, err
	}
	if err := requireID("id", id); err != nil {
		return payroll.RunDetailResponse{}, err
	}

	run, err := s.payrollRepo.GetRunByID(ctx, id, actor.CompanyID)
	if err != nil {
		return payroll.RunDetailResponse{}, err
	}
	items, err := s.payrollRepo.ListItemsByRun(ctx, run.ID)
	if err != nil {
		return payroll.RunDetailResponse{}, err
	}

	return buildRunDetail(run, items), nil
}

// ========== LIFECYCLE ==========

func (s *PayrollServiceImpl) ApproveRun(ctx context.Context, actor payroll.Actor, id string) (payroll.RunResponse, error) {
	return s.transition(ctx, actor, id, user.PermissionPayrollApproveRun, payroll.RunStatusApproved, audit.ActionRunApproved)
}

func (s *PayrollServiceImpl) VoidRun(ctx context.Context, actor payroll.Actor, id string) (payroll.RunResponse, error) {
	return s.transition(ctx, actor, id, user.PermissionPayrollApproveRun, payroll.RunStatusCancelled, audit.ActionRunCancelled)
}

func (s *PayrollServiceImpl) MarkRunPaid(ctx context.Context, actor payroll.Actor, id string) (payroll.RunResponse, error) {
	return s.transition(ctx, actor, id, user.PermissionPayrollMarkPaid, payroll.RunStatusPaid, audit.ActionRunPaid)
}

// transition moves a locked run to target and audits it in the same transaction.
func (s *PayrollServiceImpl) transition(
	ctx context.Context,
	actor payroll.Actor,
	id string,
	capability user.Permission,
	target payroll.RunStatus,
	action string,
) (payroll.RunResponse, error) {
	if err := s.authorize(actor, capability); err != nil {
		return payroll.RunResponse{}, err
	}
	if err := requireID("id", id); err != nil {
		return payroll.RunResponse{}, err
	}

	var (
		run  payroll.Run
		from payroll.RunStatus
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		current, err := s.payrollRepo.GetRunForUpdate(ctx, id, actor.CompanyID)
		if err != nil {
			return err
		}
		from = current.Status
		if !from.CanTransitionTo(target) {
			return &payroll.TransitionError{From: from, To: target}
		}

		now := s.now()
		current.Status = target
		current.UpdatedAt = now
		switch target {
		case payroll.RunStatusApproved:
			approvedBy := actor.UserID
			current.ApprovedAt = &now
			current.ApprovedBy = &approvedBy
		case payroll.RunStatusPaid:
			current.PaidAt = &now
		case payroll.RunStatusCancelled:
			current.CancelledAt = &now
		}

		run, err = s.payrollRepo.UpdateRunStatus(ctx, current)
		if err != nil {
			return err
		}

		return s.record(ctx, actor, audit.Entry{
			Action:     action,
			EntityType: audit.EntityPayrollRun,
			EntityID:   run.ID,
			FromStatus: string(from),
			ToStatus:   string(target),
			Details: map[string]any{
				"period":     run.PeriodLabel(),
				"total_net":  run.TotalNet.String(),
				"item_count": run.ItemCount,
			},
		})
	})
	if err != nil {
		return payroll.RunResponse{}, err
	}

	s.logger.InfoContext(ctx, "payroll run "+strings.ToLower(string(target)),
		slog.String("run_id", run.ID),
		slog.String("company_id", run.CompanyID),
		slog.String("from", string(from)),
		slog.String("actor", actor.UserID),
	)

	return mapToRunResponse(run), nil
}

// ========== ITEMS ==========

func (s *PayrollServiceImpl) GetItem(ctx context.Context, actor payroll.Actor, id string) (payroll.ItemResponse, error) {
	if err := s.authorize(actor, user.PermissionPayrollView); err != nil {
		return payroll.ItemResponse{}, err
	}
	if err := requireID("id", id); err != nil {
		return payroll.ItemResponse{}, err
	}

	item, err := s.payrollRepo.GetItemByID(ctx, id, actor.CompanyID)
	if err != nil {
		return payroll.ItemResponse{}, err
	}
	return mapToItemResponse(item), nil
}

func (s *PayrollServiceImpl) UpdateItem(ctx context.Context, actor payroll.Actor, req payroll.UpdateItemRequest) (payroll.ItemResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.ItemResponse{}, err
	}
	if err := s.authorize(actor, user.PermissionPayrollCreateRun); err != nil {
		return payroll.ItemResponse{}, err
	}

	var item payroll.Item
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		ref, err := s.payrollRepo.GetItemByID(ctx, req.ID, actor.CompanyID)
		if err != nil {
			return err
		}

		// Run row first, then item row. Every writer takes locks in this order.
		run, err := s.payrollRepo.GetRunForUpdate(ctx, ref.RunID, actor.CompanyID)
		if err != nil {
			return err
		}
		if run.Status != payroll.RunStatusDraft {
			return fmt.Errorf("%w: run %s is %s", payroll.ErrRunLocked, run.ID, run.Status)
		}

		current, err := s.payrollRepo.GetItemForUpdate(ctx, req.ID, actor.CompanyID)
		if err != nil {
			return err
		}
		before := current.NetPay

		applyItemChanges(&current, req)
		if gross := current.Gross(); !payroll.StorableAmount(gross) {
			return validator.ValidationErrors{{Field: "gross_pay", Message: "must be less than " + payroll.MaxAmount.String()}}
		}
		current.ApplyDeductions(s.calculator.Compute(current.Gross(), current.Currency))
		current.UpdatedAt = s.now()

		item, err = s.payrollRepo.UpdateItem(ctx, current)
		if err != nil {
			return err
		}
		if _, err := s.payrollRepo.RefreshRunTotals(ctx, run.ID, current.UpdatedAt); err != nil {
			return err
		}

		return s.record(ctx, actor, audit.Entry{
			Action:     audit.ActionItemUpdated,
			EntityType: audit.EntityPayrollItem,
			EntityID:   item.ID,
			Details: map[string]any{
				"run_id":         run.ID,
				"employee_id":    item.EmployeeID,
				"net_pay_before": before.String(),
				"net_pay_after":  item.NetPay.String(),
			},
		})
	})
	if err != nil {
		return payroll.ItemResponse{}, err
	}

	s.logger.InfoContext(ctx, "payroll item updated",
		slog.String("item_id", item.ID),
		slog.String("run_id", item.RunID),
		slog.String("company_id", item.CompanyID),
		slog.String("actor", actor.UserID),
	)

	return mapToItemResponse(item), nil
}

func applyItemChanges(item *payroll.Item, req payroll.UpdateItemRequest) {
	if req.Overtime != nil {
		item.Overtime = *req.Overtime
	}
	if req.Bonus != nil {
		item.Bonus = *req.Bonus
	}
	if req.Allowances != nil {
		item.Allowances = *req.Allowances
	}
	if req.OtherDeductions != nil {
		item.OtherDeductions = *req.OtherDeductions
	}
	if req.Notes != nil {
		notes := strings.TrimSpace(*req.Notes)
		if notes == "" {
			item.Notes = nil
		} else {
			item.Notes = &notes
		}
	}
}

// ========== SUMMARY ==========

func (s *PayrollServiceImpl) Summarize(ctx context.Context, actor payroll.Actor, year int) (payroll.YearlySummaryResponse, error) {
	if err := s.authorize(actor, user.PermissionReportsView); err != nil {
		return payroll.YearlySummaryResponse{}, err
	}
	if year < 1000 || year > 9999 {
		return payroll.YearlySummaryResponse{}, validator.ValidationErrors{{Field: "year", Message: "must be a 4-digit year"}}
	}

	buckets, err := s.payrollRepo.SummarizeYear(ctx, actor.CompanyID, year)
	if err != nil {
		return payroll.YearlySummaryResponse{}, err
	}

	summary := payroll.YearlySummary{Year: year, ByCurrency: make(map[string]payroll.CurrencyTotals, len(buckets))}
	for _, b := range buckets {
		summary.ByCurrency[b.Currency] = b
	}

	return mapToSummaryResponse(summary), nil
}

func (s *PayrollServiceImpl) RateTable(ctx context.Context, actor payroll.Actor) (payroll.RateTableResponse, error) {
	if err := s.authorize(actor, user.PermissionPayrollView); err != nil {
		return payroll.RateTableResponse{}, err
	}
	return mapToRateTableResponse(s.calculator.Rates()), nil
}

// ========== HELPERS ==========

func (s *PayrollServiceImpl) record(ctx context.Context, actor payroll.Actor, entry audit.Entry) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate audit id: %w", err)
	}
	entry.ID = id.String()
	entry.CompanyID = actor.CompanyID
	entry.ActorID = actor.UserID
	entry.CreatedAt = s.now()
	return s.auditLog.Record(ctx, entry)
}

func buildRunDetail(run payroll.Run, items []payroll.Item) payroll.RunDetailResponse {
	detail := payroll.RunDetailResponse{
		RunResponse:    mapToRunResponse(run),
		Items:          make([]payroll.ItemResponse, 0, len(items)),
		CurrencyTotals: sortedTotals(items),
	}
	for _, it := range items {
		detail.Items = append(detail.Items, mapToItemResponse(it))
	}
	if len(items) == 0 {
		detail.Warnings = []string{payroll.ErrNoEligibleEmployees.Error()}
	}
	return detail
}

func sortedTotals(items []payroll.Item) []payroll.CurrencyTotals {
	byCurrency := payroll.TotalsByCurrency(items)
	out := make([]payroll.CurrencyTotals, 0, len(byCurrency))
	for _, t := range byCurrency {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	str := t.Format(time.RFC3339)
	return &str
}

func mapToRunResponse(r payroll.Run) payroll.RunResponse {
	return payroll.RunResponse{
		ID:               r.ID,
		Month:            r.Month,
		Year:             r.Year,
		Period:           r.PeriodLabel(),
		Status:           string(r.Status),
		TotalGross:       r.TotalGross,
		TotalNet:         r.TotalNet,
		ItemCount:        r.ItemCount,
		RateTableVersion: r.RateTableVersion,
		CreatedBy:        r.CreatedBy,
		ApprovedBy:       r.ApprovedBy,
		CreatedAt:        r.CreatedAt.Format(time.RFC3339),
		ApprovedAt:       formatTime(r.ApprovedAt),
		PaidAt:           formatTime(r.PaidAt),
		CancelledAt:      formatTime(r.CancelledAt),
	}
}

func mapToItemResponse(i payroll.Item) payroll.ItemResponse {
	return payroll.ItemResponse{
		ID:                    i.ID,
		RunID:                 i.RunID,
		EmployeeID:            i.EmployeeID,
		EmployeeName:          i.EmployeeName,
		Currency:              i.Currency,
		BaseSalary:            i.BaseSalary,
		Overtime:              i.Overtime,
		Bonus:                 i.Bonus,
		Allowances:            i.Allowances,
		GrossPay:              i.GrossPay,
		Tax:                   i.Tax,
		StatutoryContribution: i.StatutoryContribution,
		ContributionScheme:    string(i.ContributionScheme),
		OtherDeductions:       i.OtherDeductions,
		NetPay:                i.NetPay,
		Notes:                 i.Notes,
		UpdatedAt:             i.UpdatedAt.Format(time.RFC3339),
	}
}

func mapToSummaryResponse(y payroll.YearlySummary) payroll.YearlySummaryResponse {
	return payroll.YearlySummaryResponse{Year: y.Year, ByCurrency: y.ByCurrency}
}

func mapToRateTableResponse(t payroll.RateTable) payroll.RateTableResponse {
	resp := payroll.RateTableResponse{
		Version:                t.Version,
		DefaultWithholdingRate: t.DefaultWithholdingRate,
		Jurisdictions:          make([]payroll.JurisdictionResponse, 0, len(t.Jurisdictions)),
	}
	for _, j := range t.Jurisdictions {
		bands := make([]payroll.BandResponse, 0, len(j.Bands))
		for _, b := range j.Bands {
			bands = append(bands, payroll.BandResponse{Threshold: b.Threshold, Rate: b.Rate})
		}
		resp.Jurisdictions = append(resp.Jurisdictions, payroll.JurisdictionResponse{
			Currency:            j.Currency,
			Scheme:              string(j.Scheme),
			Bands:               bands,
			ContributionRate:    j.ContributionRate,
			ContributionCeiling: j.ContributionCeiling,
			Scale:               j.Scale,
		})
	}
	sort.Slice(resp.Jurisdictions, func(i, j int) bool {
		return resp.Jurisdictions[i].Currency < resp.Jurisdictions[j].Currency
	})
	return resp
}
