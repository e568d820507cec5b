package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"project-service/internal/domain"
)

// postgresAuditRepository only inserts and reads; audit rows are never updated.
type postgresAuditRepository struct {
	db *sql.DB
}

func NewPostgresAuditRepository(db *sql.DB) *postgresAuditRepository {
	return &postgresAuditRepository{db: db}
}

const auditColumns = `id, tenant_id, project_id, actor_id, action, target_kind, target_id, target_label, changed_fields, occurred_at`

func (r *postgresAuditRepository) AppendAudit(ctx context.Context, entry *domain.AuditLogEntry) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var changes sql.NullString
	if len(entry.ChangedFields) > 0 {
		encoded, err := json.Marshal(entry.ChangedFields)
		if err != nil {
			return fmt.Errorf("failed to encode changed fields: %w", err)
		}
		changes = sql.NullString{String: string(encoded), Valid: true}
	}

	query := `
		INSERT INTO audit_log (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.TenantID, nullEmpty(entry.ProjectID), entry.ActorID, entry.Action,
		entry.TargetKind, entry.TargetID, entry.TargetLabel, changes, entry.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", mapPQError(err))
	}
	return nil
}

func (r *postgresAuditRepository) ListAudit(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditLogEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	where := []string{"tenant_id = $1"}
	args := []interface{}{filter.TenantID}
	argIndex := 2

	if filter.ProjectID != "" {
		where = append(where, fmt.Sprintf("project_id = $%d", argIndex))
		args = append(args, filter.ProjectID)
		argIndex++
	}
	if filter.TargetKind != "" {
		where = append(where, fmt.Sprintf("target_kind = $%d", argIndex))
		args = append(args, filter.TargetKind)
		argIndex++
	}
	if filter.TargetID != "" {
		where = append(where, fmt.Sprintf("target_id = $%d", argIndex))
		args = append(args, filter.TargetID)
		argIndex++
	}

	query := fmt.Sprintf(
		"SELECT %s FROM audit_log WHERE %s ORDER BY id DESC LIMIT $%d OFFSET $%d",
		auditColumns, strings.Join(where, " AND "), argIndex, argIndex+1,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditLogEntry
	for rows.Next() {
		var (
			e         domain.AuditLogEntry
			projectID sql.NullString
			changes   []byte
		)
		if err := rows.Scan(&e.ID, &e.TenantID, &projectID, &e.ActorID, &e.Action,
			&e.TargetKind, &e.TargetID, &e.TargetLabel, &changes, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.ProjectID = projectID.String
		if len(changes) > 0 {
			if err := json.Unmarshal(changes, &e.ChangedFields); err != nil {
				return nil, fmt.Errorf("failed to decode changed fields of %s: %w", e.ID, err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
