package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	log "github.com/sirupsen/logrus"

	"project-service/internal/domain"
)

const queryTimeout = 5 * time.Second

// Hooks holds the lifecycle hooks per tracked kind. It is populated once at startup.
type Hooks struct {
	mu     sync.RWMutex
	byKind map[string][]domain.LifecycleHook
}

func NewHooks() *Hooks {
	return &Hooks{byKind: make(map[string][]domain.LifecycleHook)}
}

func (h *Hooks) Register(kind string, hook domain.LifecycleHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.byKind[kind] = append(h.byKind[kind], hook)
}

func (h *Hooks) forKind(kind string) []domain.LifecycleHook {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.byKind[kind]
}

func (h *Hooks) afterCreate(ctx context.Context, e domain.Tracked) error {
	var errs []error
	for _, hook := range h.forKind(e.TrackedKind()) {
		errs = append(errs, hook.AfterCreate(ctx, e))
	}
	return errors.Join(errs...)
}

func (h *Hooks) before(ctx context.Context, e domain.Tracked, deleting bool) (domain.AfterFunc, error) {
	var finishers []domain.AfterFunc
	for _, hook := range h.forKind(e.TrackedKind()) {
		var (
			fn  domain.AfterFunc
			err error
		)
		if deleting {
			fn, err = hook.BeforeDelete(ctx, e)
		} else {
			fn, err = hook.BeforeUpdate(ctx, e)
		}
		if err != nil {
			return nil, err
		}
		if fn != nil {
			finishers = append(finishers, fn)
		}
	}
	return func(ctx context.Context, after domain.Tracked) error {
		var errs []error
		for _, fn := range finishers {
			errs = append(errs, fn(ctx, after))
		}
		return errors.Join(errs...)
	}, nil
}

type txKey struct{}

// withTx exposes the open transaction to lookups made by hooks, so they read through
// the connection already holding the row locks instead of waiting on the pool.
func withTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// querierFor returns the transaction carried by ctx, or db when there is none.
func querierFor(ctx context.Context, db *sql.DB) rowQuerier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return db
}

func inTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.WithError(rbErr).Warn("Failed to roll back transaction")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// createTracked inserts inside a transaction and runs the create hooks once committed.
// A hook error is returned next to the committed row.
func createTracked[T domain.Tracked](ctx context.Context, db *sql.DB, hooks *Hooks, insert func(ctx context.Context, tx *sql.Tx) (T, error)) (T, error) {
	var created T
	err := inTx(ctx, db, func(tx *sql.Tx) error {
		var err error
		created, err = insert(ctx, tx)
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return created, hooks.afterCreate(ctx, created)
}

// updateTracked locks and loads the row, hands it to the before-update hooks, applies
// the change and commits; the after hooks then see the committed state.
func updateTracked[T domain.Tracked](ctx context.Context, db *sql.DB, hooks *Hooks, load func(ctx context.Context, tx *sql.Tx) (T, error), apply func(ctx context.Context, tx *sql.Tx, current T) (T, error)) (T, error) {
	var (
		after  T
		finish domain.AfterFunc
	)
	err := inTx(ctx, db, func(tx *sql.Tx) error {
		txCtx := withTx(ctx, tx)
		current, err := load(txCtx, tx)
		if err != nil {
			return err
		}
		if finish, err = hooks.before(txCtx, current, false); err != nil {
			return err
		}
		after, err = apply(txCtx, tx, current)
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return after, finish(ctx, after)
}

// deleteTracked works like updateTracked. remove may return the finishers of dependent
// rows it deleted with cascadeDelete; they run before the parent's.
func deleteTracked[T domain.Tracked](ctx context.Context, db *sql.DB, hooks *Hooks, load func(ctx context.Context, tx *sql.Tx) (T, error), remove func(ctx context.Context, tx *sql.Tx, current T) ([]domain.AfterFunc, error)) error {
	var finishers []domain.AfterFunc
	err := inTx(ctx, db, func(tx *sql.Tx) error {
		txCtx := withTx(ctx, tx)
		current, err := load(txCtx, tx)
		if err != nil {
			return err
		}
		finish, err := hooks.before(txCtx, current, true)
		if err != nil {
			return err
		}
		dependents, err := remove(txCtx, tx, current)
		if err != nil {
			return err
		}
		finishers = append(dependents, finish)
		return nil
	})
	if err != nil {
		return err
	}
	var errs []error
	for _, fn := range finishers {
		errs = append(errs, fn(ctx, nil))
	}
	return errors.Join(errs...)
}

// cascadeDelete runs the before-delete hooks of dependent rows about to be removed in
// the same transaction.
func cascadeDelete[T domain.Tracked](ctx context.Context, hooks *Hooks, dependents []T) ([]domain.AfterFunc, error) {
	finishers := make([]domain.AfterFunc, 0, len(dependents))
	for _, d := range dependents {
		fn, err := hooks.before(ctx, d, true)
		if err != nil {
			return nil, err
		}
		finishers = append(finishers, fn)
	}
	return finishers, nil
}

// mapPQError turns constraint violations into domain errors. The client-facing text is
// fixed; the PostgreSQL detail only goes to the log.
func mapPQError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	var mapped error
	switch pqErr.Code {
	case "23505":
		mapped = fmt.Errorf("%w: duplicate value", domain.ErrAlreadyExists)
	case "23503":
		mapped = fmt.Errorf("%w: referenced record does not exist", domain.ErrInvalidInput)
	case "23514":
		mapped = fmt.Errorf("%w: value out of range", domain.ErrInvalidInput)
	case "22P02":
		mapped = fmt.Errorf("%w: malformed value", domain.ErrInvalidInput)
	default:
		return err
	}
	logConstraint(pqErr)
	return mapped
}

// mapDeleteError reports rows still referenced by restricting foreign keys as conflicts.
func mapDeleteError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23503" {
		logConstraint(pqErr)
		return fmt.Errorf("%w: still referenced by other records", domain.ErrConflict)
	}
	return mapPQError(err)
}

func logConstraint(pqErr *pq.Error) {
	log.WithFields(log.Fields{
		"code":       string(pqErr.Code),
		"table":      pqErr.Table,
		"constraint": pqErr.Constraint,
		"detail":     pqErr.Detail,
	}).Warn(pqErr.Message)
}

func expectOneRow(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not determine rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

type rowScanner interface {
	Scan(dest ...any) error
}
