// Package resolver maps a (kind, id) reference to the tenant and project owning it.
package resolver

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/samber/lo"

	"project-service/internal/domain"
)

// LookupFunc loads the owner of an entity that carries its project directly.
type LookupFunc func(ctx context.Context, id string) (domain.Owner, error)

// ParentFunc returns the id of the parent entity an entity is resolved through.
type ParentFunc func(ctx context.Context, id string) (string, error)

type entry struct {
	lookup     LookupFunc
	parentKind string
	parent     ParentFunc
}

func (e entry) direct() bool {
	return e.lookup != nil
}

type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func New() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a kind whose rows reference their project directly.
func (r *Registry) Register(kind string, lookup LookupFunc) error {
	if kind == "" || lookup == nil {
		return fmt.Errorf("%w: register %q without lookup", domain.ErrInvalidInput, kind)
	}
	return r.add(kind, entry{lookup: lookup})
}

// RegisterVia adds a kind resolved through its parent, one level deep.
func (r *Registry) RegisterVia(kind, parentKind string, parent ParentFunc) error {
	if kind == "" || parentKind == "" || parent == nil {
		return fmt.Errorf("%w: register %q via %q", domain.ErrInvalidInput, kind, parentKind)
	}
	if kind == parentKind {
		return fmt.Errorf("%w: %q cannot resolve through itself", domain.ErrInvalidInput, kind)
	}
	return r.add(kind, entry{parentKind: parentKind, parent: parent})
}

func (r *Registry) add(kind string, e entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[kind]; exists {
		return fmt.Errorf("%w: resolver for %q", domain.ErrAlreadyExists, kind)
	}
	r.entries[kind] = e
	return nil
}

// Validate reports via-registrations whose parent is missing or not direct.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, kind := range r.sortedKinds() {
		e := r.entries[kind]
		if e.direct() {
			continue
		}
		parent, ok := r.entries[e.parentKind]
		if !ok {
			return fmt.Errorf("%w: %q resolves through unregistered %q", domain.ErrUnsupportedKind, kind, e.parentKind)
		}
		if !parent.direct() {
			return fmt.Errorf("%w: %q resolves through indirect %q", domain.ErrUnsupportedKind, kind, e.parentKind)
		}
	}
	return nil
}

// Kinds lists the registered kinds in lexical order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedKinds()
}

func (r *Registry) sortedKinds() []string {
	kinds := lo.Keys(r.entries)
	slices.Sort(kinds)
	return kinds
}

// Resolve returns the owner of (kind, id). It has no side effects.
func (r *Registry) Resolve(ctx context.Context, kind, id string) (domain.Owner, error) {
	r.mu.RLock()
	e, ok := r.entries[kind]
	var parent entry
	if ok && !e.direct() {
		parent, ok = r.entries[e.parentKind]
		ok = ok && parent.direct()
	}
	r.mu.RUnlock()

	if !ok {
		return domain.Owner{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedKind, kind)
	}
	if id == "" {
		return domain.Owner{}, fmt.Errorf("%w: empty %s id", domain.ErrBadRequest, kind)
	}

	if e.direct() {
		owner, err := e.lookup(ctx, id)
		if err != nil {
			return domain.Owner{}, fmt.Errorf("resolve %s %s: %w", kind, id, err)
		}
		return owner, nil
	}

	parentID, err := e.parent(ctx, id)
	if err != nil {
		return domain.Owner{}, fmt.Errorf("resolve %s %s: %w", kind, id, err)
	}
	owner, err := parent.lookup(ctx, parentID)
	if err != nil {
		return domain.Owner{}, fmt.Errorf("resolve %s %s via %s %s: %w", kind, id, e.parentKind, parentID, err)
	}
	return owner, nil
}
