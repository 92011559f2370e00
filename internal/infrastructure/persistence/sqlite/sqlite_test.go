package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crestline-erp/approvalflow/internal/application/port"
	"github.com/crestline-erp/approvalflow/internal/domain/approval"
	"github.com/crestline-erp/approvalflow/internal/domain/entity"
	"github.com/crestline-erp/approvalflow/pkg/database"
)

// setupDB opens a throwaway database and applies the real migrations.
func setupDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{
		Path:            filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	migrator := database.NewMigrator(db, logger)
	require.NoError(t, migrator.RunMigrations("../../../../migrations"))

	return db
}

func seedWorkflow(t *testing.T, db *database.DB, id string, partitioned bool, levels []entity.LevelDef) {
	t.Helper()
	part := 0
	if partitioned {
		part = 1
	}
	_, err := db.Exec(`INSERT INTO workflows (id, entity_type, partitioned) VALUES (?, ?, ?)`,
		id, "test entity", part)
	require.NoError(t, err)

	for _, d := range levels {
		_, err := db.Exec(`
			INSERT INTO workflow_levels (workflow_id, level, role, partition_value, approval_limit)
			VALUES (?, ?, ?, ?, ?)
		`, id, d.Level, d.Role, d.Partition, d.ApprovalLimit)
		require.NoError(t, err)
	}
}

func newRecord(id, workflowID string) *entity.Record {
	now := time.Now().UTC().Truncate(time.Second)
	return &entity.Record{
		ID:         id,
		WorkflowID: workflowID,
		EntityRef:  "entity-" + id,
		Status:     entity.StatusVerification,
		Level:      1,
		CreatedBy:  "tester",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestRecordStore(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	seedWorkflow(t, db, "wf-1", false, []entity.LevelDef{{Level: 1, Role: "lead"}, {Level: 2, Role: "cfo"}})
	store := NewRecordStore(db.DB, zap.NewNop())

	t.Run("create and get", func(t *testing.T) {
		rec := newRecord("r-1", "wf-1")
		rec.BatchKey = "batch-a"
		require.NoError(t, store.Create(ctx, rec))

		got, err := store.GetByID(ctx, "r-1")
		require.NoError(t, err)
		assert.Equal(t, rec.EntityRef, got.EntityRef)
		assert.Equal(t, entity.StatusVerification, got.Status)
		assert.Equal(t, 1, got.Level)
		assert.Equal(t, "batch-a", got.BatchKey)
	})

	t.Run("get unknown id", func(t *testing.T) {
		_, err := store.GetByID(ctx, "nope")
		assert.ErrorIs(t, err, approval.ErrRecordNotFound)
	})

	t.Run("move level is a compare-and-swap", func(t *testing.T) {
		rec := newRecord("r-2", "wf-1")
		require.NoError(t, store.Create(ctx, rec))

		require.NoError(t, store.MoveLevel(ctx, "r-2", 1, 2))

		got, err := store.GetByID(ctx, "r-2")
		require.NoError(t, err)
		assert.Equal(t, 2, got.Level)

		// Second mover with the stale level loses.
		err = store.MoveLevel(ctx, "r-2", 1, 2)
		assert.ErrorIs(t, err, approval.ErrConflict)
	})

	t.Run("set terminal refuses a second writer", func(t *testing.T) {
		rec := newRecord("r-3", "wf-1")
		require.NoError(t, store.Create(ctx, rec))

		require.NoError(t, store.SetTerminal(ctx, "r-3", entity.StatusApproved))

		err := store.SetTerminal(ctx, "r-3", entity.StatusRejected)
		assert.ErrorIs(t, err, approval.ErrConflict)

		// Terminal records can no longer move.
		err = store.MoveLevel(ctx, "r-3", 1, 2)
		assert.ErrorIs(t, err, approval.ErrConflict)
	})

	t.Run("set terminal requires a terminal status", func(t *testing.T) {
		err := store.SetTerminal(ctx, "r-1", entity.StatusVerification)
		assert.Error(t, err)
	})

	t.Run("rejection mirrors into the mirror column", func(t *testing.T) {
		rec := newRecord("r-4", "wf-1")
		rec.MirrorField = "docstatus"
		require.NoError(t, store.Create(ctx, rec))
		require.NoError(t, store.SetTerminal(ctx, "r-4", entity.StatusRejected))

		var mirror string
		require.NoError(t, db.QueryRow(
			`SELECT mirror_status FROM approval_records WHERE id = ?`, "r-4").Scan(&mirror))
		assert.Equal(t, "Rejected", mirror)
	})

	t.Run("list by batch key", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			rec := newRecord(fmt.Sprintf("rb-%d", i), "wf-1")
			rec.BatchKey = "batch-b"
			require.NoError(t, store.Create(ctx, rec))
		}

		recs, err := store.ListByBatchKey(ctx, "wf-1", "batch-b")
		require.NoError(t, err)
		assert.Len(t, recs, 2)

		recs, err = store.ListByBatchKey(ctx, "wf-1", "no-such-batch")
		require.NoError(t, err)
		assert.Empty(t, recs)
	})
}

func TestAuditStore(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	seedWorkflow(t, db, "wf-1", false, []entity.LevelDef{{Level: 1, Role: "lead"}})
	records := NewRecordStore(db.DB, zap.NewNop())
	store := NewAuditStore(db.DB, zap.NewNop())

	require.NoError(t, records.Create(ctx, newRecord("r-1", "wf-1")))

	t.Run("append assigns ids and list preserves level order", func(t *testing.T) {
		for level, role := range map[int]string{0: "submitter", 1: "lead", 2: "cfo"} {
			e := &entity.AuditEntry{
				RecordID:  "r-1",
				Role:      role,
				Level:     level,
				Remarks:   "step",
				ActorID:   "u1",
				CreatedAt: time.Now().UTC(),
			}
			require.NoError(t, store.Append(ctx, e))
			assert.NotZero(t, e.ID)
		}

		entries, err := store.ListByRecordID(ctx, "r-1")
		require.NoError(t, err)
		require.Len(t, entries, 3)
		for i := 0; i < len(entries)-1; i++ {
			assert.LessOrEqual(t, entries[i].Level, entries[i+1].Level)
		}
	})

	t.Run("exists for level and role", func(t *testing.T) {
		exists, err := store.ExistsForLevelRole(ctx, "r-1", 1, "lead")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = store.ExistsForLevelRole(ctx, "r-1", 1, "cfo")
		require.NoError(t, err)
		assert.False(t, exists)

		exists, err = store.ExistsForLevelRole(ctx, "other", 1, "lead")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestNotificationStore(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	seedWorkflow(t, db, "wf-1", false, []entity.LevelDef{{Level: 1, Role: "lead"}})
	records := NewRecordStore(db.DB, zap.NewNop())
	store := NewNotificationStore(db.DB, zap.NewNop())

	newNotif := func(id, recordID, role string, level int) *entity.Notification {
		now := time.Now().UTC().Truncate(time.Second)
		return &entity.Notification{
			ID:         id,
			RecordID:   recordID,
			WorkflowID: "wf-1",
			Role:       role,
			Level:      level,
			Status:     entity.NotificationPending,
			Message:    "pending",
			Version:    1,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	}

	require.NoError(t, records.Create(ctx, newRecord("r-1", "wf-1")))
	require.NoError(t, records.Create(ctx, newRecord("r-2", "wf-1")))

	t.Run("create and get", func(t *testing.T) {
		require.NoError(t, store.Create(ctx, newNotif("n-1", "r-1", "lead", 1)))

		got, err := store.GetByRecordID(ctx, "r-1")
		require.NoError(t, err)
		assert.Equal(t, "lead", got.Role)
		assert.Equal(t, int64(1), got.Version)
	})

	t.Run("one live row per record", func(t *testing.T) {
		err := store.Create(ctx, newNotif("n-dup", "r-1", "lead", 1))
		assert.Error(t, err)
	})

	t.Run("update bumps version and rejects stale writers", func(t *testing.T) {
		n, err := store.GetByRecordID(ctx, "r-1")
		require.NoError(t, err)

		stale := *n
		n.Role = "cfo"
		n.Level = 2
		require.NoError(t, store.Update(ctx, n))
		assert.Equal(t, int64(2), n.Version)

		stale.Role = "lead"
		err = store.Update(ctx, &stale)
		assert.ErrorIs(t, err, approval.ErrConflict)
	})

	t.Run("list pending filters on level and status", func(t *testing.T) {
		require.NoError(t, store.Create(ctx, newNotif("n-2", "r-2", "cfo", 2)))

		notifs, err := store.ListPending(ctx, port.PendingQuery{
			WorkflowID: "wf-1",
			Role:       "cfo",
			Levels:     []int{2},
		})
		require.NoError(t, err)
		require.Len(t, notifs, 2) // r-1 was repointed to cfo level 2 above

		// No levels means nothing to match.
		notifs, err = store.ListPending(ctx, port.PendingQuery{WorkflowID: "wf-1", Role: "cfo"})
		require.NoError(t, err)
		assert.Empty(t, notifs)

		// Terminal notifications drop out of the pending list.
		n, err := store.GetByRecordID(ctx, "r-2")
		require.NoError(t, err)
		n.Status = entity.NotificationRejected
		require.NoError(t, store.Update(ctx, n))

		notifs, err = store.ListPending(ctx, port.PendingQuery{
			WorkflowID: "wf-1",
			Role:       "cfo",
			Levels:     []int{2},
		})
		require.NoError(t, err)
		assert.Len(t, notifs, 1)
	})
}

func TestWorkflowStore(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	store := NewWorkflowStore(db.DB, zap.NewNop())

	seedWorkflow(t, db, "wf-part", true, []entity.LevelDef{
		{Level: 1, Role: "hw", Partition: "hardware", ApprovalLimit: 1000},
		{Level: 1, Role: "sw", Partition: "software"},
		{Level: 2, Role: "cfo", Partition: "hardware"},
		{Level: 2, Role: "cfo", Partition: "software"},
	})

	t.Run("loads the full level chain", func(t *testing.T) {
		wf, err := store.GetByID(ctx, "wf-part")
		require.NoError(t, err)
		assert.True(t, wf.Partitioned)
		assert.Len(t, wf.Levels, 4)
		assert.Equal(t, 2, wf.MaxLevel())
		assert.NoError(t, wf.Validate())
	})

	t.Run("unknown workflow", func(t *testing.T) {
		_, err := store.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, approval.ErrWorkflowNotFound)
	})
}

func TestAssignmentStore(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	store := NewAssignmentStore(db.DB, zap.NewNop())

	_, err := db.Exec(`INSERT INTO role_scopes (role, partition_scoped) VALUES ('buyer', 1), ('cfo', 0)`)
	require.NoError(t, err)
	_, err = db.Exec(`
		INSERT INTO role_partition_assignments (role, actor_id, partition_value)
		VALUES ('buyer', 'u1', 'hardware'), ('buyer', 'u1', 'software'), ('buyer', 'u2', 'hardware')
	`)
	require.NoError(t, err)

	t.Run("scoped role returns its partitions", func(t *testing.T) {
		scoped, partitions, err := store.RolePartitions(ctx, "buyer", "u1")
		require.NoError(t, err)
		assert.True(t, scoped)
		assert.Equal(t, []string{"hardware", "software"}, partitions)
	})

	t.Run("scoped role with no assignments", func(t *testing.T) {
		scoped, partitions, err := store.RolePartitions(ctx, "buyer", "u3")
		require.NoError(t, err)
		assert.True(t, scoped)
		assert.Empty(t, partitions)
	})

	t.Run("unscoped role acts workflow-wide", func(t *testing.T) {
		scoped, _, err := store.RolePartitions(ctx, "cfo", "u1")
		require.NoError(t, err)
		assert.False(t, scoped)
	})

	t.Run("unknown role acts workflow-wide", func(t *testing.T) {
		scoped, _, err := store.RolePartitions(ctx, "nobody", "u1")
		require.NoError(t, err)
		assert.False(t, scoped)
	})
}

func TestDB_WithTransaction(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	seedWorkflow(t, db, "wf-1", false, []entity.LevelDef{{Level: 1, Role: "lead"}})

	txMgr := NewDB(db.DB, zap.NewNop())
	records := NewRecordStore(db.DB, zap.NewNop())

	t.Run("rolls back every write on error", func(t *testing.T) {
		err := txMgr.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := records.Create(txCtx, newRecord("r-tx", "wf-1")); err != nil {
				return err
			}
			return fmt.Errorf("boom")
		})
		require.Error(t, err)

		_, err = records.GetByID(ctx, "r-tx")
		assert.ErrorIs(t, err, approval.ErrRecordNotFound)
	})

	t.Run("commits on success and nested calls share the transaction", func(t *testing.T) {
		err := txMgr.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := records.Create(txCtx, newRecord("r-tx2", "wf-1")); err != nil {
				return err
			}
			// Nested call must see the uncommitted row.
			return txMgr.WithTransaction(txCtx, func(innerCtx context.Context) error {
				_, err := records.GetByID(innerCtx, "r-tx2")
				return err
			})
		})
		require.NoError(t, err)

		got, err := records.GetByID(ctx, "r-tx2")
		require.NoError(t, err)
		assert.Equal(t, "r-tx2", got.ID)
	})
}
