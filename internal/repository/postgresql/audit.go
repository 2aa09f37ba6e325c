package postgresql

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/audit"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
)

type AuditRepository struct {
	db *database.DB
}

func NewAuditRepository(db *database.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Record writes the entry with whatever transaction the context carries.
func (r *AuditRepository) Record(ctx context.Context, entry audit.Entry) error {
	q := GetQuerier(ctx, r.db)

	details := entry.Details
	if details == nil {
		details = map[string]any{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to marshal audit details: %w", err)
	}

	query := `
		INSERT INTO audit_logs (
			id, company_id, actor_id, action, entity_type, entity_id,
			from_status, to_status, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9, $10)
	`

	if _, err := q.Exec(ctx, query,
		entry.ID, entry.CompanyID, entry.ActorID, entry.Action, entry.EntityType, entry.EntityID,
		entry.FromStatus, entry.ToStatus, detailsJSON, entry.CreatedAt,
	); err != nil {
		return classifyError("record audit entry", err)
	}
	return nil
}
