// Package tracker turns lifecycle events of tracked entities into audit entries.
package tracker

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"project-service/internal/actor"
	"project-service/internal/domain"
)

type Recorder interface {
	Append(ctx context.Context, entry domain.AuditLogEntry) error
}

type OwnerResolver interface {
	Resolve(ctx context.Context, kind, id string) (domain.Owner, error)
}

type Tracker struct {
	recorder Recorder
	resolver OwnerResolver
	now      func() time.Time
}

func New(recorder Recorder, resolver OwnerResolver) *Tracker {
	return &Tracker{
		recorder: recorder,
		resolver: resolver,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Install registers the tracker for every kind in one place.
func (t *Tracker) Install(registry domain.HookRegistry, kinds ...string) {
	for _, kind := range kinds {
		registry.Register(kind, t)
	}
	log.WithField("kinds", kinds).Info("Change tracking installed")
}

func (t *Tracker) AfterCreate(ctx context.Context, created domain.Tracked) error {
	entry := t.capture(ctx, created)
	entry.Action = domain.AuditCreated
	entry.ActorID = attribute(ctx, created)
	return t.recorder.Append(ctx, entry)
}

// BeforeUpdate snapshots the persisted state; the returned func diffs it against the
// committed state and writes nothing when no field changed.
func (t *Tracker) BeforeUpdate(ctx context.Context, current domain.Tracked) (domain.AfterFunc, error) {
	before := current.Snapshot()
	entry := t.capture(ctx, current)

	return func(ctx context.Context, after domain.Tracked) error {
		if after == nil {
			return nil
		}
		changes := Diff(before, after.Snapshot())
		if len(changes) == 0 {
			log.WithFields(log.Fields{
				"kind": after.TrackedKind(),
				"id":   after.TrackedID(),
			}).Debug("Update changed nothing, audit skipped")
			return nil
		}
		entry.Action = domain.AuditUpdated
		entry.TargetLabel = after.DisplayLabel()
		entry.ChangedFields = changes
		entry.ActorID = attribute(ctx, after)
		return t.recorder.Append(ctx, entry)
	}, nil
}

// BeforeDelete captures label and owner while the entity is still readable.
func (t *Tracker) BeforeDelete(ctx context.Context, current domain.Tracked) (domain.AfterFunc, error) {
	entry := t.capture(ctx, current)
	entry.Action = domain.AuditDeleted
	entry.ActorID = attribute(ctx, current)

	return func(ctx context.Context, _ domain.Tracked) error {
		return t.recorder.Append(ctx, entry)
	}, nil
}

func (t *Tracker) capture(ctx context.Context, e domain.Tracked) domain.AuditLogEntry {
	entry := domain.AuditLogEntry{
		TenantID:    e.TrackedTenant(),
		TargetKind:  e.TrackedKind(),
		TargetID:    e.TrackedID(),
		TargetLabel: e.DisplayLabel(),
		OccurredAt:  t.now(),
	}
	if t.resolver == nil {
		return entry
	}
	owner, err := t.resolver.Resolve(ctx, e.TrackedKind(), e.TrackedID())
	if err != nil {
		level := log.WarnLevel
		if errors.Is(err, domain.ErrUnsupportedKind) {
			level = log.DebugLevel
		}
		log.WithError(err).WithFields(log.Fields{
			"kind": e.TrackedKind(),
			"id":   e.TrackedID(),
		}).Log(level, "Audit entry recorded without project")
		return entry
	}
	entry.ProjectID = owner.ProjectID
	if owner.TenantID != "" {
		entry.TenantID = owner.TenantID
	}
	return entry
}

// attribute never fails: scope actor, then updated-by, then created-by, then system.
func attribute(ctx context.Context, e domain.Tracked) string {
	if a, ok := actor.Current(ctx); ok {
		return a.ID
	}
	updatedBy, createdBy := e.Authors()
	switch {
	case updatedBy != "":
		return updatedBy
	case createdBy != "":
		return createdBy
	default:
		return domain.SystemActorID
	}
}
