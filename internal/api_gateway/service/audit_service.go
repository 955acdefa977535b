package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/virtupay-ledger/internal/domain/audit"
	"github.com/virtupay-ledger/internal/domain/org"
	"github.com/virtupay-ledger/internal/domain/shared"
	"github.com/xuri/excelize/v2"
)

// ExportFormat selects the audit export encoding
type ExportFormat string

const (
	ExportCSV  ExportFormat = "csv"
	ExportXLSX ExportFormat = "xlsx"
)

const (
	exportPageSize = 500
	maxExportRows  = 10000
	exportSheet    = "Audit"
)

// ErrUnsupportedFormat rejects an export format other than csv or xlsx
var ErrUnsupportedFormat = errors.New("unsupported export format")

var exportHeader = []string{
	"Event ID", "Time", "Action", "Resource", "Resource ID", "Actor", "Status", "Error", "Correlation ID", "Changes",
}

// AuditServiceImpl implements the AuditService interface
type AuditServiceImpl struct {
	events audit.Repository
	logger *slog.Logger
}

// NewAuditService creates a new audit service
func NewAuditService(logger *slog.Logger, events audit.Repository) AuditService {
	return &AuditServiceImpl{
		events: events,
		logger: logger,
	}
}

// List returns one page of the organization's audit trail
func (s *AuditServiceImpl) List(ctx context.Context, actor org.Actor, filter audit.Filter) ([]*audit.Event, int64, error) {
	if !actor.HasRole(org.RoleAuditor) {
		return nil, 0, shared.ErrUnauthorized
	}
	filter.OrganizationID = actor.OrganizationID
	return s.events.List(ctx, filter)
}

// Export writes up to maxExportRows matching events to w, newest first
func (s *AuditServiceImpl) Export(ctx context.Context, actor org.Actor, filter audit.Filter, format ExportFormat, w io.Writer) error {
	if !actor.HasRole(org.RoleAuditor) {
		return shared.ErrUnauthorized
	}
	var write func(io.Writer, [][]string) error
	switch format {
	case ExportCSV:
		write = writeCSV
	case ExportXLSX:
		write = writeXLSX
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	filter.OrganizationID = actor.OrganizationID

	rows, err := s.collect(ctx, filter)
	if err != nil {
		return err
	}
	if err := write(w, rows); err != nil {
		s.logger.Error("Failed to write audit export", "format", string(format), "error", err)
		return err
	}
	s.logger.Info("Audit trail exported",
		"organization_id", actor.OrganizationID.String(),
		"format", string(format),
		"rows", len(rows),
	)
	return nil
}

func (s *AuditServiceImpl) collect(ctx context.Context, filter audit.Filter) ([][]string, error) {
	var rows [][]string
	filter.Limit = exportPageSize
	for filter.Offset = 0; filter.Offset < maxExportRows; filter.Offset += exportPageSize {
		events, _, err := s.events.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		for _, e := range events {
			rows = append(rows, exportRow(e))
		}
		if len(events) < exportPageSize {
			break
		}
	}
	return rows, nil
}

func exportRow(e *audit.Event) []string {
	actor := ""
	if e.ActorMembershipID != nil {
		actor = e.ActorMembershipID.String()
	}
	changes := ""
	if len(e.Changes) > 0 {
		if raw, err := json.Marshal(e.Changes); err == nil {
			changes = string(raw)
		}
	}
	return []string{
		e.ID.String(),
		e.CreatedAt.UTC().Format(time.RFC3339),
		string(e.Action),
		string(e.Resource),
		e.ResourceID.String(),
		actor,
		string(e.Status),
		e.ErrorMessage,
		e.CorrelationID,
		changes,
	}
}

func writeCSV(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func writeXLSX(w io.Writer, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(exportSheet, "A", "A", 38); err != nil {
		return err
	}
	if err := f.SetColWidth(exportSheet, "B", "D", 24); err != nil {
		return err
	}
	if err := f.SetColWidth(exportSheet, "J", "J", 60); err != nil {
		return err
	}
	return f.Write(w)
}
