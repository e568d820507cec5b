package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"project-service/internal/domain"
	"project-service/internal/resolver"
	"project-service/internal/tracker"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// recordingHook logs every lifecycle call as "<event>:<kind>:<id>[:<label>]".
type recordingHook struct {
	events []string
}

func (h *recordingHook) AfterCreate(_ context.Context, e domain.Tracked) error {
	h.events = append(h.events, "create:"+e.TrackedKind()+":"+e.TrackedID())
	return nil
}

func (h *recordingHook) BeforeUpdate(_ context.Context, current domain.Tracked) (domain.AfterFunc, error) {
	h.events = append(h.events, "before-update:"+current.TrackedID()+":"+current.DisplayLabel())
	return func(_ context.Context, after domain.Tracked) error {
		h.events = append(h.events, "after-update:"+after.TrackedID()+":"+after.DisplayLabel())
		return nil
	}, nil
}

func (h *recordingHook) BeforeDelete(_ context.Context, current domain.Tracked) (domain.AfterFunc, error) {
	kind, id := current.TrackedKind(), current.TrackedID()
	h.events = append(h.events, "before-delete:"+kind+":"+id)
	return func(_ context.Context, after domain.Tracked) error {
		h.events = append(h.events, "after-delete:"+kind+":"+id)
		return nil
	}, nil
}

func newMock(t *testing.T, kinds ...string) (*sql.DB, sqlmock.Sqlmock, *Hooks, *recordingHook) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	hooks := NewHooks()
	hook := &recordingHook{}
	for _, kind := range kinds {
		hooks.Register(kind, hook)
	}
	return db, mock, hooks, hook
}

var taskCols = []string{
	"id", "tenant_id", "project_id", "board_id", "sprint_id", "title", "description", "task_type", "status", "priority",
	"assignee_id", "story_points", "due_date", "created_by", "updated_by", "created_at", "updated_at",
}

func taskRows(id, title string) *sqlmock.Rows {
	return sqlmock.NewRows(taskCols).AddRow(
		id, "tenant-a", "p1", "b1", nil, title, "", "task", "todo", "medium",
		nil, nil, nil, "alice", "", now, now,
	)
}

var commentCols = []string{"id", "tenant_id", "task_id", "author_id", "content", "is_edited", "created_at", "updated_at"}

var membershipCols = []string{"id", "tenant_id", "project_id", "actor_id", "role_id", "assigned_by", "created_at", "updated_at"}

func TestTaskUpdateRunsHooksAroundCommit(t *testing.T) {
	db, mock, hooks, hook := newMock(t, domain.KindTask)
	repo := NewPostgresTaskRepository(db, hooks)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM tasks WHERE id = \$1 FOR UPDATE`).WithArgs("t1").WillReturnRows(taskRows("t1", "Old"))
	mock.ExpectQuery(`UPDATE tasks SET`).WillReturnRows(taskRows("t1", "New"))
	mock.ExpectCommit()

	updated, err := repo.Update(context.Background(), "t1", func(t *domain.Task) error {
		t.Title = "New"
		t.UpdatedBy = "bob"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Title)
	assert.Equal(t, []string{"before-update:t1:Old", "after-update:t1:New"}, hook.events)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskUpdateRollsBackWithoutAfterHook(t *testing.T) {
	db, mock, hooks, hook := newMock(t, domain.KindTask)
	repo := NewPostgresTaskRepository(db, hooks)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM tasks WHERE id = \$1 FOR UPDATE`).WithArgs("t1").WillReturnRows(taskRows("t1", "Old"))
	mock.ExpectRollback()

	_, err := repo.Update(context.Background(), "t1", func(*domain.Task) error {
		return domain.ErrInvalidInput
	})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, []string{"before-update:t1:Old"}, hook.events)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskUpdateNotFound(t *testing.T) {
	db, mock, hooks, hook := newMock(t, domain.KindTask)
	repo := NewPostgresTaskRepository(db, hooks)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM tasks WHERE id = \$1 FOR UPDATE`).WithArgs("gone").WillReturnRows(sqlmock.NewRows(taskCols))
	mock.ExpectRollback()

	_, err := repo.Update(context.Background(), "gone", func(*domain.Task) error { return nil })
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, hook.events)
}

func TestTaskDeleteCascadesComments(t *testing.T) {
	db, mock, hooks, hook := newMock(t, domain.KindTask, domain.KindComment)
	repo := NewPostgresTaskRepository(db, hooks)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM tasks WHERE id = \$1 FOR UPDATE`).WithArgs("t1").WillReturnRows(taskRows("t1", "Doomed"))
	mock.ExpectQuery(`SELECT .+ FROM comments WHERE task_id = \$1 ORDER BY created_at FOR UPDATE`).WithArgs("t1").
		WillReturnRows(sqlmock.NewRows(commentCols).
			AddRow("c1", "tenant-a", "t1", "alice", "first", false, now, now).
			AddRow("c2", "tenant-a", "t1", "bob", "second", false, now, now))
	mock.ExpectExec(`DELETE FROM comments WHERE task_id = \$1`).WithArgs("t1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM tasks WHERE id = \$1`).WithArgs("t1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "t1"))
	assert.Equal(t, []string{
		"before-delete:task:t1",
		"before-delete:comment:c1",
		"before-delete:comment:c2",
		"after-delete:comment:c1",
		"after-delete:comment:c2",
		"after-delete:task:t1",
	}, hook.events)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBoardDeleteRefusedWhileReferenced(t *testing.T) {
	db, mock, hooks, hook := newMock(t, domain.KindBoard)
	repo := NewPostgresBoardRepository(db, hooks)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM boards WHERE id = \$1 FOR UPDATE`).WithArgs("b1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "project_id", "name", "created_by", "created_at", "updated_at"}).
			AddRow("b1", "tenant-a", "p1", "Main", "alice", now, now))
	mock.ExpectExec(`DELETE FROM boards WHERE id = \$1`).WithArgs("b1").
		WillReturnError(&pq.Error{Code: "23503", Table: "tasks"})
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "b1")
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, []string{"before-delete:board:b1"}, hook.events, "no audit for a rolled back delete")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMembershipAssignCreatesWhenMissing(t *testing.T) {
	db, mock, hooks, hook := newMock(t, domain.KindMembership)
	repo := NewPostgresMembershipRepository(db, hooks)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM project_memberships WHERE project_id = \$1 AND actor_id = \$2 FOR UPDATE`).
		WithArgs("p1", "bob").WillReturnRows(sqlmock.NewRows(membershipCols))
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO project_memberships`).
		WithArgs("m1", "tenant-a", "p1", "bob", "r1", "alice").
		WillReturnRows(sqlmock.NewRows(membershipCols).AddRow("m1", "tenant-a", "p1", "bob", "r1", "alice", now, now))
	mock.ExpectCommit()

	m, created, err := repo.Assign(context.Background(), &domain.Membership{
		ID: "m1", TenantID: "tenant-a", ProjectID: "p1", ActorID: "bob", RoleID: "r1", AssignedBy: "alice",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "r1", m.RoleID)
	assert.Equal(t, []string{"create:membership:m1"}, hook.events)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMembershipAssignReplacesRole(t *testing.T) {
	db, mock, hooks, hook := newMock(t, domain.KindMembership)
	repo := NewPostgresMembershipRepository(db, hooks)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM project_memberships WHERE project_id = \$1 AND actor_id = \$2 FOR UPDATE`).
		WithArgs("p1", "bob").
		WillReturnRows(sqlmock.NewRows(membershipCols).AddRow("m1", "tenant-a", "p1", "bob", "viewer", "alice", now, now))
	mock.ExpectQuery(`UPDATE project_memberships SET role_id = \$1`).
		WithArgs("editor", "alice", "m1").
		WillReturnRows(sqlmock.NewRows(membershipCols).AddRow("m1", "tenant-a", "p1", "bob", "editor", "alice", now, now))
	mock.ExpectCommit()

	m, created, err := repo.Assign(context.Background(), &domain.Membership{
		ID: "ignored", TenantID: "tenant-a", ProjectID: "p1", ActorID: "bob", RoleID: "editor", AssignedBy: "alice",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "m1", m.ID)
	assert.Equal(t, []string{"before-update:m1:bob as viewer", "after-update:m1:bob as editor"}, hook.events)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMembershipAssignLosesInsertRace(t *testing.T) {
	db, mock, hooks, hook := newMock(t, domain.KindMembership)
	repo := NewPostgresMembershipRepository(db, hooks)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(sqlmock.NewRows(membershipCols))
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO project_memberships`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "project_memberships_project_actor_key"})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM project_memberships WHERE project_id = \$1 AND actor_id = \$2 FOR UPDATE`).
		WithArgs("p1", "bob").
		WillReturnRows(sqlmock.NewRows(membershipCols).AddRow("m0", "tenant-a", "p1", "bob", "viewer", "carol", now, now))
	mock.ExpectQuery(`UPDATE project_memberships SET role_id = \$1`).
		WithArgs("r1", "alice", "m0").
		WillReturnRows(sqlmock.NewRows(membershipCols).AddRow("m0", "tenant-a", "p1", "bob", "r1", "alice", now, now))
	mock.ExpectCommit()

	m, created, err := repo.Assign(context.Background(), &domain.Membership{
		ID: "m1", TenantID: "tenant-a", ProjectID: "p1", ActorID: "bob", RoleID: "r1", AssignedBy: "alice",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "m0", m.ID)
	assert.Equal(t, "r1", m.RoleID, "the winner's row carries this role")
	assert.Equal(t, []string{"before-update:m0:bob as viewer", "after-update:m0:bob as r1"}, hook.events)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConstraintErrorsHidePostgresDetail(t *testing.T) {
	db, mock, hooks, _ := newMock(t)
	repo := NewPostgresBoardRepository(db, hooks)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO boards`).WillReturnError(&pq.Error{
		Code:       "23503",
		Message:    `insert or update on table "boards" violates foreign key constraint "boards_project_id_fkey"`,
		Table:      "boards",
		Constraint: "boards_project_id_fkey",
	})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM boards WHERE id = \$1 FOR UPDATE`).WithArgs("b1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "project_id", "name", "created_by", "created_at", "updated_at"}).
			AddRow("b1", "tenant-a", "p1", "Main", "alice", now, now))
	mock.ExpectExec(`DELETE FROM boards WHERE id = \$1`).WithArgs("b1").
		WillReturnError(&pq.Error{Code: "23503", Table: "sprints", Constraint: "sprints_board_id_fkey"})
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), &domain.Board{ID: "b9", TenantID: "tenant-a", ProjectID: "nope", Name: "X"})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.NotContains(t, err.Error(), "boards_project_id_fkey")
	assert.NotContains(t, err.Error(), "violates")

	err = repo.Delete(context.Background(), "b1")
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.NotContains(t, err.Error(), "sprints")
	require.NoError(t, mock.ExpectationsWereMet())
}

type captureRecorder struct {
	entries []domain.AuditLogEntry
}

func (r *captureRecorder) Append(_ context.Context, entry domain.AuditLogEntry) error {
	r.entries = append(r.entries, entry)
	return nil
}

func TestTrackedUpdateResolvesOwnerOnItsTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)

	registry := resolver.New()
	owners := NewPostgresOwnerRepository(db)
	require.NoError(t, registry.Register(domain.KindTask, owners.TaskOwner))
	recorder := &captureRecorder{}
	hooks := NewHooks()
	tracker.New(recorder, registry).Install(hooks, domain.KindTask)
	repo := NewPostgresTaskRepository(db, hooks)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM tasks WHERE id = \$1 FOR UPDATE`).WithArgs("t1").WillReturnRows(taskRows("t1", "Old"))
	mock.ExpectQuery(`SELECT tenant_id, project_id FROM tasks WHERE id = \$1`).WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id", "project_id"}).AddRow("tenant-a", "p1"))
	mock.ExpectQuery(`UPDATE tasks SET`).WillReturnRows(taskRows("t1", "New"))
	mock.ExpectCommit()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	updated, err := repo.Update(ctx, "t1", func(t *domain.Task) error {
		t.Title = "New"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Title)

	require.Len(t, recorder.entries, 1)
	entry := recorder.entries[0]
	assert.Equal(t, domain.AuditUpdated, entry.Action)
	assert.Equal(t, "p1", entry.ProjectID)
	change, ok := entry.ChangedFields.Get("title")
	require.True(t, ok)
	assert.Equal(t, "Old", change.Old)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLabelDeleteRecordsItsProject(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)

	registry := resolver.New()
	owners := NewPostgresOwnerRepository(db)
	require.NoError(t, registry.Register(domain.KindLabel, owners.LabelOwner))
	recorder := &captureRecorder{}
	hooks := NewHooks()
	tracker.New(recorder, registry).Install(hooks, domain.KindLabel)
	repo := NewPostgresLabelRepository(db, hooks)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM labels WHERE id = \$1 FOR UPDATE`).WithArgs("l1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "project_id", "name", "color", "created_by", "created_at", "updated_at"}).
			AddRow("l1", "tenant-a", "p1", "bug", "#FF0000", "alice", now, now))
	mock.ExpectQuery(`SELECT tenant_id, project_id FROM labels WHERE id = \$1`).WithArgs("l1").
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id", "project_id"}).AddRow("tenant-a", "p1"))
	mock.ExpectExec(`DELETE FROM labels WHERE id = \$1`).WithArgs("l1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, repo.Delete(ctx, "l1"))

	require.Len(t, recorder.entries, 1)
	entry := recorder.entries[0]
	assert.Equal(t, domain.AuditDeleted, entry.Action)
	assert.Equal(t, domain.KindLabel, entry.TargetKind)
	assert.Equal(t, "p1", entry.ProjectID)
	assert.Equal(t, "bug", entry.TargetLabel)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetGrantUpserts(t *testing.T) {
	db, mock, _, _ := newMock(t)
	repo := NewPostgresRoleRepository(db)

	mock.ExpectExec(`INSERT INTO role_permissions .+ ON CONFLICT \(role_id, resource, action\) DO UPDATE`).
		WithArgs("r1", "task", "change", false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetGrant(context.Background(), domain.PermissionGrant{
		RoleID: "r1", Resource: "task", Action: "change", Allowed: false,
	}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindGrantAbsent(t *testing.T) {
	db, mock, _, _ := newMock(t)
	repo := NewPostgresRoleRepository(db)

	mock.ExpectQuery(`FROM role_permissions`).WithArgs("r1", "task", "delete").
		WillReturnRows(sqlmock.NewRows([]string{"role_id", "resource", "action", "is_allowed"}))

	_, err := repo.FindGrant(context.Background(), "r1", "task", "delete")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

// changesArg matches the encoded changed fields of an audit insert.
type changesArg struct {
	want domain.ChangedFields
}

func (a changesArg) Match(v driver.Value) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	var got domain.ChangedFields
	if err := json.Unmarshal([]byte(s), &got); err != nil {
		return false
	}
	if len(got) != len(a.want) {
		return false
	}
	for i := range got {
		if got[i].Field != a.want[i].Field || got[i].Old != a.want[i].Old || got[i].New != a.want[i].New {
			return false
		}
	}
	return true
}

func TestAppendAudit(t *testing.T) {
	db, mock, _, _ := newMock(t)
	repo := NewPostgresAuditRepository(db)
	changes := domain.ChangedFields{
		{Field: "title", Old: "Old", New: "New"},
		{Field: "priority", Old: "low", New: "high"},
	}

	mock.ExpectExec(`INSERT INTO audit_log`).
		WithArgs("01A", "tenant-a", "p1", "alice", domain.AuditUpdated, domain.KindTask, "t1", "New", changesArg{changes}, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO audit_log`).
		WithArgs("01B", "tenant-a", nil, "alice", domain.AuditCreated, domain.KindProject, "p9", "Apollo", nil, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.AppendAudit(context.Background(), &domain.AuditLogEntry{
		ID: "01A", TenantID: "tenant-a", ProjectID: "p1", ActorID: "alice", Action: domain.AuditUpdated,
		TargetKind: domain.KindTask, TargetID: "t1", TargetLabel: "New", ChangedFields: changes, OccurredAt: now,
	}))
	require.NoError(t, repo.AppendAudit(context.Background(), &domain.AuditLogEntry{
		ID: "01B", TenantID: "tenant-a", ActorID: "alice", Action: domain.AuditCreated,
		TargetKind: domain.KindProject, TargetID: "p9", TargetLabel: "Apollo", OccurredAt: now,
	}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListAuditDecodesChanges(t *testing.T) {
	db, mock, _, _ := newMock(t)
	repo := NewPostgresAuditRepository(db)

	cols := []string{"id", "tenant_id", "project_id", "actor_id", "action", "target_kind", "target_id", "target_label", "changed_fields", "occurred_at"}
	mock.ExpectQuery(`FROM audit_log WHERE tenant_id = \$1 AND project_id = \$2 AND target_kind = \$3 ORDER BY id DESC LIMIT \$4 OFFSET \$5`).
		WithArgs("tenant-a", "p1", domain.KindTask, 50, 0).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("01B", "tenant-a", "p1", "alice", "updated", "task", "t1", "New",
				[]byte(`{"title":{"old":"Old","new":"New"},"priority":{"old":"low","new":"high"}}`), now).
			AddRow("01A", "tenant-a", "p1", "alice", "created", "task", "t1", "Old", nil, now))

	entries, err := repo.ListAudit(context.Background(), domain.AuditFilter{
		TenantID: "tenant-a", ProjectID: "p1", TargetKind: domain.KindTask, Limit: 50,
	})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.Len(t, entries[0].ChangedFields, 2)
	assert.Equal(t, "title", entries[0].ChangedFields[0].Field)
	assert.Equal(t, "priority", entries[0].ChangedFields[1].Field)
	assert.Equal(t, "New", entries[0].ChangedFields[0].New)
	assert.Nil(t, entries[1].ChangedFields)
}

func TestOwnerLookups(t *testing.T) {
	db, mock, _, _ := newMock(t)
	repo := NewPostgresOwnerRepository(db)

	mock.ExpectQuery(`SELECT tenant_id, project_id FROM tasks WHERE id = \$1`).WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id", "project_id"}).AddRow("tenant-a", "p1"))
	mock.ExpectQuery(`SELECT task_id FROM comments WHERE id = \$1`).WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"task_id"}).AddRow("t1"))
	mock.ExpectQuery(`SELECT tenant_id, id FROM projects WHERE id = \$1`).WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id", "id"}))

	owner, err := repo.TaskOwner(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.Owner{TenantID: "tenant-a", ProjectID: "p1"}, owner)

	parent, err := repo.CommentTask(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "t1", parent)

	_, err = repo.ProjectOwner(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
