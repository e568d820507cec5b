// Package actor carries the acting principal of one unit of work on its context.
package actor

import (
	"context"
	"fmt"
	"sync/atomic"

	"project-service/internal/domain"
)

type scopeKey struct{}

type scope struct {
	actor  domain.Actor
	closed atomic.Bool
}

// EndFunc closes a scope opened by Begin. It is safe to call more than once.
type EndFunc func()

func noopEnd() {}

// Begin opens an actor scope on ctx. Opening a scope for the actor that already owns
// the open scope is a no-op; a different actor yields ErrContextConflict.
func Begin(ctx context.Context, a domain.Actor) (context.Context, EndFunc, error) {
	if a.ID == "" {
		return ctx, noopEnd, fmt.Errorf("%w: empty actor id", domain.ErrInvalidInput)
	}
	if open := openScope(ctx); open != nil {
		if open.actor.ID != a.ID {
			return ctx, noopEnd, fmt.Errorf("%w: scope already bound to %s", domain.ErrContextConflict, open.actor.ID)
		}
		return ctx, noopEnd, nil
	}
	s := &scope{actor: a}
	return context.WithValue(ctx, scopeKey{}, s), func() { s.closed.Store(true) }, nil
}

// Current returns the actor of the open scope on ctx.
func Current(ctx context.Context) (domain.Actor, bool) {
	s := openScope(ctx)
	if s == nil {
		return domain.Actor{}, false
	}
	return s.actor, true
}

// Run executes fn inside a scope for a and closes the scope when fn returns or panics.
func Run(ctx context.Context, a domain.Actor, fn func(ctx context.Context) error) error {
	ctx, end, err := Begin(ctx, a)
	if err != nil {
		return err
	}
	defer end()
	return fn(ctx)
}

// System opens a scope for background work that has no human actor.
func System(ctx context.Context) (context.Context, EndFunc, error) {
	return Begin(ctx, domain.Actor{ID: domain.SystemActorID})
}

func openScope(ctx context.Context) *scope {
	s, ok := ctx.Value(scopeKey{}).(*scope)
	if !ok || s == nil || s.closed.Load() {
		return nil
	}
	return s
}
