// Package report renders approval history as xlsx workbooks.
package report

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/crestline-erp/approvalflow/internal/application/port"
	"github.com/crestline-erp/approvalflow/internal/domain/entity"
)

// Generator writes workflow history reports. One row per audit entry,
// grouped by record in creation order.
type Generator struct {
	records   port.RecordStore
	audit     port.AuditStore
	sheetName string
	logger    *zap.Logger
}

// NewGenerator creates a new report generator
func NewGenerator(records port.RecordStore, audit port.AuditStore, sheetName string, logger *zap.Logger) *Generator {
	if sheetName == "" {
		sheetName = "Approval History"
	}
	return &Generator{
		records:   records,
		audit:     audit,
		sheetName: sheetName,
		logger:    logger,
	}
}

var historyHeader = []string{
	"Record ID", "Entity Ref", "Partition", "Status", "Current Level",
	"Acted Level", "Role", "Actor", "Remarks", "Acted At",
}

// WriteWorkflowHistory renders the full history of every record in the
// workflow to w as an xlsx workbook.
func (g *Generator) WriteWorkflowHistory(ctx context.Context, workflowID string, w io.Writer) error {
	records, err := g.records.ListByWorkflowID(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to load records: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if err := f.SetSheetName(sheet, g.sheetName); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	sheet = g.sheetName

	if err := g.setRow(f, sheet, 1, headerCells()); err != nil {
		return err
	}

	row := 2
	for _, rec := range records {
		entries, err := g.audit.ListByRecordID(ctx, rec.ID)
		if err != nil {
			return fmt.Errorf("failed to load history for %s: %w", rec.ID, err)
		}
		for _, e := range entries {
			if err := g.setRow(f, sheet, row, entryCells(rec, e)); err != nil {
				return err
			}
			row++
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	g.logger.Info("History report generated",
		zap.String("workflow_id", workflowID),
		zap.Int("records", len(records)),
		zap.Int("rows", row-2))

	return nil
}

func headerCells() []interface{} {
	cells := make([]interface{}, len(historyHeader))
	for i, h := range historyHeader {
		cells[i] = h
	}
	return cells
}

func entryCells(rec *entity.Record, e *entity.AuditEntry) []interface{} {
	return []interface{}{
		rec.ID,
		rec.EntityRef,
		rec.Partition,
		rec.Status.String(),
		rec.Level,
		e.Level,
		e.Role,
		e.ActorName,
		e.Remarks,
		e.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func (g *Generator) setRow(f *excelize.File, sheet string, row int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("failed to set row %d: %w", row, err)
	}
	return nil
}
