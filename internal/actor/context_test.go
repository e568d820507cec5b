package actor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"project-service/internal/domain"
)

func TestBeginCurrentEnd(t *testing.T) {
	ctx, end, err := Begin(context.Background(), domain.Actor{ID: "alice", TenantID: "t1"})
	require.NoError(t, err)

	got, ok := Current(ctx)
	require.True(t, ok)
	assert.Equal(t, "alice", got.ID)
	assert.Equal(t, "t1", got.TenantID)

	end()
	_, ok = Current(ctx)
	assert.False(t, ok, "actor must not be visible after end")

	end()
}

func TestCurrentWithoutScope(t *testing.T) {
	got, ok := Current(context.Background())
	assert.False(t, ok)
	assert.Empty(t, got.ID)
}

func TestBeginConflict(t *testing.T) {
	ctx, end, err := Begin(context.Background(), domain.Actor{ID: "alice"})
	require.NoError(t, err)
	defer end()

	_, _, err = Begin(ctx, domain.Actor{ID: "bob"})
	require.ErrorIs(t, err, domain.ErrContextConflict)

	got, _ := Current(ctx)
	assert.Equal(t, "alice", got.ID)
}

func TestBeginSameActorNested(t *testing.T) {
	ctx, end, err := Begin(context.Background(), domain.Actor{ID: "alice"})
	require.NoError(t, err)

	inner, innerEnd, err := Begin(ctx, domain.Actor{ID: "alice"})
	require.NoError(t, err)
	innerEnd()

	_, ok := Current(inner)
	assert.True(t, ok, "nested end must not close the outer scope")

	end()
	_, ok = Current(inner)
	assert.False(t, ok)
}

func TestBeginAfterEndAllowsNewActor(t *testing.T) {
	ctx, end, err := Begin(context.Background(), domain.Actor{ID: "alice"})
	require.NoError(t, err)
	end()

	ctx, end, err = Begin(ctx, domain.Actor{ID: "bob"})
	require.NoError(t, err)
	defer end()

	got, ok := Current(ctx)
	require.True(t, ok)
	assert.Equal(t, "bob", got.ID)
}

func TestBeginRejectsEmptyActor(t *testing.T) {
	_, _, err := Begin(context.Background(), domain.Actor{})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRunReleasesOnError(t *testing.T) {
	var captured context.Context
	boom := errors.New("boom")

	err := Run(context.Background(), domain.Actor{ID: "alice"}, func(ctx context.Context) error {
		captured = ctx
		got, ok := Current(ctx)
		require.True(t, ok)
		assert.Equal(t, "alice", got.ID)
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, ok := Current(captured)
	assert.False(t, ok)
}

func TestRunReleasesOnPanic(t *testing.T) {
	var captured context.Context

	assert.Panics(t, func() {
		_ = Run(context.Background(), domain.Actor{ID: "alice"}, func(ctx context.Context) error {
			captured = ctx
			panic("handler exploded")
		})
	})

	_, ok := Current(captured)
	assert.False(t, ok)
}

func TestSystemScope(t *testing.T) {
	ctx, end, err := System(context.Background())
	require.NoError(t, err)
	defer end()

	got, ok := Current(ctx)
	require.True(t, ok)
	assert.True(t, got.IsSystem())
}

func TestConcurrentScopesAreIsolated(t *testing.T) {
	const workers = 32
	g, gctx := errgroup.WithContext(context.Background())
	start := make(chan struct{})

	for i := 0; i < workers; i++ {
		id := fmt.Sprintf("actor-%d", i)
		g.Go(func() error {
			<-start
			return Run(gctx, domain.Actor{ID: id}, func(ctx context.Context) error {
				for j := 0; j < 50; j++ {
					got, ok := Current(ctx)
					if !ok || got.ID != id {
						return fmt.Errorf("worker %s observed %q", id, got.ID)
					}
					if j%10 == 0 {
						time.Sleep(time.Microsecond)
					}
				}
				return nil
			})
		})
	}

	close(start)
	require.NoError(t, g.Wait())

	_, ok := Current(gctx)
	assert.False(t, ok, "the parent context never carries an actor")
}
