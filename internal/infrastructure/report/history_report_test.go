package report

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/crestline-erp/approvalflow/internal/domain/entity"
)

type stubRecordStore struct {
	records []*entity.Record
	err     error
}

func (s *stubRecordStore) Create(context.Context, *entity.Record) error { return nil }
func (s *stubRecordStore) GetByID(context.Context, string) (*entity.Record, error) {
	return nil, nil
}
func (s *stubRecordStore) ListByBatchKey(context.Context, string, string) ([]*entity.Record, error) {
	return nil, nil
}
func (s *stubRecordStore) ListByWorkflowID(context.Context, string) ([]*entity.Record, error) {
	return s.records, s.err
}
func (s *stubRecordStore) MoveLevel(context.Context, string, int, int) error { return nil }
func (s *stubRecordStore) SetTerminal(context.Context, string, entity.Status) error {
	return nil
}

type stubAuditStore struct {
	byRecord map[string][]*entity.AuditEntry
	err      error
}

func (s *stubAuditStore) Append(context.Context, *entity.AuditEntry) error { return nil }
func (s *stubAuditStore) ListByRecordID(_ context.Context, recordID string) ([]*entity.AuditEntry, error) {
	return s.byRecord[recordID], s.err
}
func (s *stubAuditStore) ExistsForLevelRole(context.Context, string, int, string) (bool, error) {
	return false, nil
}

func TestGenerator_WriteWorkflowHistory(t *testing.T) {
	ctx := context.Background()
	acted := time.Date(2026, 8, 20, 10, 30, 0, 0, time.UTC)

	records := &stubRecordStore{records: []*entity.Record{
		{
			ID:         "r-1",
			WorkflowID: "wf-1",
			EntityRef:  "claim-1",
			Status:     entity.StatusApproved,
			Level:      2,
		},
	}}
	audit := &stubAuditStore{byRecord: map[string][]*entity.AuditEntry{
		"r-1": {
			{RecordID: "r-1", Role: "submitter", Level: 0, Remarks: "submit", ActorName: "Alice", CreatedAt: acted},
			{RecordID: "r-1", Role: "lead", Level: 1, Remarks: "ok", ActorName: "Bob", CreatedAt: acted},
		},
	}}

	t.Run("writes one row per audit entry", func(t *testing.T) {
		g := NewGenerator(records, audit, "History", zap.NewNop())

		var buf bytes.Buffer
		require.NoError(t, g.WriteWorkflowHistory(ctx, "wf-1", &buf))

		f, err := excelize.OpenReader(&buf)
		require.NoError(t, err)
		defer f.Close()

		rows, err := f.GetRows("History")
		require.NoError(t, err)
		require.Len(t, rows, 3) // header + two entries

		assert.Equal(t, "Record ID", rows[0][0])
		assert.Equal(t, "r-1", rows[1][0])
		assert.Equal(t, "submitter", rows[1][6])
		assert.Equal(t, "Bob", rows[2][7])
		assert.Equal(t, "APPROVED", rows[1][3])
	})

	t.Run("empty workflow yields header only", func(t *testing.T) {
		g := NewGenerator(&stubRecordStore{}, audit, "", zap.NewNop())

		var buf bytes.Buffer
		require.NoError(t, g.WriteWorkflowHistory(ctx, "wf-empty", &buf))

		f, err := excelize.OpenReader(&buf)
		require.NoError(t, err)
		defer f.Close()

		rows, err := f.GetRows("Approval History")
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})

	t.Run("store failure propagates", func(t *testing.T) {
		g := NewGenerator(&stubRecordStore{err: fmt.Errorf("db down")}, audit, "", zap.NewNop())
		var buf bytes.Buffer
		assert.Error(t, g.WriteWorkflowHistory(ctx, "wf-1", &buf))
	})
}
