package domain

import (
	"context"
	"unicode/utf8"
)

const maxLabelLength = 255

// Tracked is implemented by every entity whose mutations land in the audit trail.
type Tracked interface {
	TrackedKind() string
	TrackedID() string
	TrackedTenant() string
	DisplayLabel() string
	Snapshot() Snapshot
	// Authors returns the updated-by and created-by actor ids, empty when unknown.
	Authors() (updatedBy, createdBy string)
}

type FieldValue struct {
	Name  string
	Value any
}

// Snapshot is the ordered field state of an entity at one point in time.
type Snapshot []FieldValue

func (s Snapshot) Get(name string) (any, bool) {
	for _, f := range s {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// AfterFunc completes a hook once the mutation has been committed. It receives the
// post-mutation state, or nil for deletes.
type AfterFunc func(ctx context.Context, after Tracked) error

// LifecycleHook observes create, update and delete of tracked entities.
type LifecycleHook interface {
	AfterCreate(ctx context.Context, created Tracked) error
	BeforeUpdate(ctx context.Context, current Tracked) (AfterFunc, error)
	BeforeDelete(ctx context.Context, current Tracked) (AfterFunc, error)
}

// HookRegistry accepts lifecycle hooks per tracked kind.
type HookRegistry interface {
	Register(kind string, hook LifecycleHook)
}

// Label picks the first non-empty candidate, in title, name, goal, content order, and
// truncates it to the audit label width.
func Label(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return truncateRunes(c, maxLabelLength)
		}
	}
	return ""
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
