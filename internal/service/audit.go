package service

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"project-service/internal/domain"
	"project-service/internal/ids"
	"project-service/internal/obs"
)

const (
	auditServiceName  = "project-service"
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

type AuditStore interface {
	AppendAudit(ctx context.Context, entry *domain.AuditLogEntry) error
	ListAudit(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditLogEntry, error)
}

type AuditPublisher interface {
	Publish(ctx context.Context, event domain.AuditEvent) error
}

// AuditService is the append-only recorder of the audit trail.
type AuditService struct {
	store     AuditStore
	publisher AuditPublisher
}

func NewAuditService(store AuditStore, publisher AuditPublisher) *AuditService {
	return &AuditService{store: store, publisher: publisher}
}

// Append durably writes one entry. Any failure is reported as ErrAuditWriteFailure;
// the entry is either fully stored or not at all.
func (s *AuditService) Append(ctx context.Context, entry domain.AuditLogEntry) error {
	if err := entry.Validate(); err != nil {
		obs.RecordAuditAppend(entry.Action, err)
		return fmt.Errorf("%w: %w", domain.ErrAuditWriteFailure, err)
	}
	if err := ctx.Err(); err != nil {
		obs.RecordAuditAppend(entry.Action, err)
		return fmt.Errorf("%w: %w", domain.ErrAuditWriteFailure, err)
	}

	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}

	err := s.store.AppendAudit(ctx, &entry)
	obs.RecordAuditAppend(entry.Action, err)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"target_kind": entry.TargetKind,
			"target_id":   entry.TargetID,
			"action":      entry.Action,
		}).Error("Failed to append audit entry")
		return fmt.Errorf("%w: %w", domain.ErrAuditWriteFailure, err)
	}

	log.WithFields(log.Fields{
		"audit_id":    entry.ID,
		"target_kind": entry.TargetKind,
		"target_id":   entry.TargetID,
		"action":      entry.Action,
		"actor_id":    entry.ActorID,
	}).Info("Audit entry appended")

	s.publish(ctx, entry)
	return nil
}

// publish fans the stored entry out to subscribers. The database row is the record,
// so a publish failure is only logged.
func (s *AuditService) publish(ctx context.Context, entry domain.AuditLogEntry) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, domain.NewAuditEvent(auditServiceName, entry)); err != nil {
		log.WithError(err).WithField("audit_id", entry.ID).Warn("Failed to publish audit event")
	}
}

func (s *AuditService) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditLogEntry, error) {
	if filter.TenantID == "" {
		return nil, fmt.Errorf("%w: tenant is required", domain.ErrInvalidInput)
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultAuditLimit
	}
	if filter.Limit > maxAuditLimit {
		filter.Limit = maxAuditLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	entries, err := s.store.ListAudit(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, nil
}
