package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Audit actions
const (
	AuditCreated = "created"
	AuditUpdated = "updated"
	AuditDeleted = "deleted"
)

// AuditLogEntry is one immutable row of the audit trail.
type AuditLogEntry struct {
	ID            string        `json:"id"`
	TenantID      string        `json:"tenant_id"`
	ProjectID     string        `json:"project_id,omitempty"`
	ActorID       string        `json:"actor_id"`
	Action        string        `json:"action"`
	TargetKind    string        `json:"target_kind"`
	TargetID      string        `json:"target_id"`
	TargetLabel   string        `json:"target_label"`
	ChangedFields ChangedFields `json:"changed_fields,omitempty"`
	OccurredAt    time.Time     `json:"occurred_at"`
}

func (e AuditLogEntry) Validate() error {
	if e.TargetKind == "" || e.TargetID == "" || e.ActorID == "" {
		return fmt.Errorf("%w: audit entry target and actor are required", ErrInvalidInput)
	}
	switch e.Action {
	case AuditUpdated:
		if len(e.ChangedFields) == 0 {
			return fmt.Errorf("%w: updated entry without changed fields", ErrInvalidInput)
		}
	case AuditCreated, AuditDeleted:
		if len(e.ChangedFields) != 0 {
			return fmt.Errorf("%w: %s entry carries changed fields", ErrInvalidInput, e.Action)
		}
	default:
		return fmt.Errorf("%w: unknown audit action %q", ErrInvalidInput, e.Action)
	}
	return nil
}

type FieldChange struct {
	Field string
	Old   any
	New   any
}

// ChangedFields keeps field order stable; it encodes as a JSON object of
// {"field": {"old": ..., "new": ...}} in slice order.
type ChangedFields []FieldChange

func (c ChangedFields) Get(field string) (FieldChange, bool) {
	for _, fc := range c {
		if fc.Field == field {
			return fc, true
		}
	}
	return FieldChange{}, false
}

func (c ChangedFields) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, fc := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(fc.Field)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(struct {
			Old any `json:"old"`
			New any `json:"new"`
		}{fc.Old, fc.New})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal change of %s: %w", fc.Field, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (c *ChangedFields) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*c = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("changed fields: expected object, got %v", tok)
	}
	out := ChangedFields{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		field, ok := tok.(string)
		if !ok {
			return fmt.Errorf("changed fields: expected key, got %v", tok)
		}
		var pair struct {
			Old any `json:"old"`
			New any `json:"new"`
		}
		if err := dec.Decode(&pair); err != nil {
			return fmt.Errorf("changed fields: %s: %w", field, err)
		}
		out = append(out, FieldChange{Field: field, Old: pair.Old, New: pair.New})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*c = out
	return nil
}

type AuditFilter struct {
	TenantID   string
	ProjectID  string
	TargetKind string
	TargetID   string
	Limit      int
	Offset     int
}

// AuditEvent is the message published to the audit topic.
type AuditEvent struct {
	Service    string                 `json:"service"`
	EventType  string                 `json:"event_type"`
	EntityID   string                 `json:"entity_id"`
	Actor      string                 `json:"actor,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
	Payload    map[string]interface{} `json:"payload"`
}

func NewAuditEvent(service string, entry AuditLogEntry) AuditEvent {
	payload := map[string]interface{}{
		"audit_id":     entry.ID,
		"tenant_id":    entry.TenantID,
		"target_kind":  entry.TargetKind,
		"target_label": entry.TargetLabel,
	}
	if entry.ProjectID != "" {
		payload["project_id"] = entry.ProjectID
	}
	if len(entry.ChangedFields) > 0 {
		payload["changes"] = entry.ChangedFields
	}
	return AuditEvent{
		Service:    service,
		EventType:  entry.TargetKind + "_" + entry.Action,
		EntityID:   entry.TargetID,
		Actor:      entry.ActorID,
		OccurredAt: entry.OccurredAt,
		Payload:    payload,
	}
}
