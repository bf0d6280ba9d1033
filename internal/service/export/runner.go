package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"govreport/internal/blob"
	"govreport/internal/domain"
	"govreport/internal/queue"
	"govreport/internal/service/preview"
)

const maxSheetName = 31

// HandleTask runs one delivery of an export task. Only the delivery that
// moves the export from pending to in_progress does any work, so redelivered
// tasks are harmless. Failures of the export itself are recorded on the export
// row; the returned error is reserved for metastore failures worth retrying.
func (s *Service) HandleTask(ctx context.Context, t *queue.Task) error {
	var args domain.ExportTaskArgs
	if err := t.Decode(&args); err != nil {
		return err
	}
	logger := s.logger.With("export_id", args.ExportID, "report_id", args.ReportID)

	won, err := s.exports.MarkInProgress(ctx, args.ExportID)
	if err != nil {
		return fmt.Errorf("claim export %d: %w", args.ExportID, err)
	}
	if !won {
		logger.Info("export already claimed, skipping")
		return nil
	}
	s.metrics.ExportTransition(string(domain.ExportStatusInProgress))
	logger.Info("export started")

	jobCtx, cancel := context.WithTimeout(ctx, s.cfg.JobTimeout)
	defer cancel()
	handle, err := s.render(jobCtx, args)

	// Terminal transitions must land even when the job context has expired.
	finishCtx := context.WithoutCancel(ctx)
	if err != nil {
		msg := failureMessage(jobCtx, err)
		logger.Error("export failed", "message", msg, "error", err)
		if ferr := s.exports.MarkFailed(finishCtx, args.ExportID, msg); ferr != nil {
			return fmt.Errorf("fail export %d: %w", args.ExportID, ferr)
		}
		s.metrics.ExportTransition(string(domain.ExportStatusFailed))
		return nil
	}
	if err := s.exports.MarkCompleted(finishCtx, args.ExportID, handle); err != nil {
		return fmt.Errorf("complete export %d: %w", args.ExportID, err)
	}
	s.metrics.ExportTransition(string(domain.ExportStatusCompleted))
	logger.Info("export completed", "handle", handle)
	return nil
}

// failureMessage turns an export error into text safe to store and show.
func failureMessage(jobCtx context.Context, err error) string {
	if errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
		return domain.ExportTimeoutMessage
	}
	var internal *domain.InternalError
	if errors.As(err, &internal) {
		return internal.Message
	}
	if domain.KindOf(err) != domain.KindInternal {
		return err.Error()
	}
	return "export failed"
}

// render writes the workbook and uploads it, returning the blob handle.
func (s *Service) render(ctx context.Context, args domain.ExportTaskArgs) (handle string, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("export panicked", "export_id", args.ExportID, "panic", r)
			err = domain.ErrInternal("export failed", fmt.Errorf("panic: %v", r))
		}
	}()

	rep, err := s.reports.GetByID(ctx, args.ReportID)
	if err != nil {
		return "", err
	}

	wb := excelize.NewFile()
	defer wb.Close()

	names := sheetNames(rep.SubReports)
	for i, sub := range rep.SubReports {
		if i == 0 {
			if err := wb.SetSheetName(wb.GetSheetName(0), names[i]); err != nil {
				return "", domain.ErrInternal("create worksheet", err)
			}
		} else if _, err := wb.NewSheet(names[i]); err != nil {
			return "", domain.ErrInternal("create worksheet", err)
		}
		if err := s.writeSheet(ctx, wb, names[i], rep.ID, sub); err != nil {
			return "", err
		}
	}

	tmp, err := os.CreateTemp("", "export-*.xlsx")
	if err != nil {
		return "", domain.ErrInternal("create export file", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()
	if _, err := wb.WriteTo(tmp); err != nil {
		return "", domain.ErrInternal("write workbook", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return "", domain.ErrInternal("rewind export file", err)
	}

	handle, err = s.blobs.Put(ctx, blob.ExportKey(args.ReportID, args.ExportID), tmp, blob.XLSXContentType)
	if err != nil {
		return "", domain.ErrInternal("upload export", err)
	}
	return handle, nil
}

// writeSheet streams every row of a sub-report into its worksheet, one
// warehouse page at a time.
func (s *Service) writeSheet(ctx context.Context, wb *excelize.File, sheet string, reportID int64, sub domain.SubReport) error {
	a, compiled, err := s.sql.Compile(ctx, reportID, sub.ID, sub.Config)
	if err != nil {
		return err
	}
	sw, err := wb.NewStreamWriter(sheet)
	if err != nil {
		return domain.ErrInternal("open worksheet stream", err)
	}

	header := make([]any, len(compiled.Columns))
	for i, id := range compiled.Columns {
		header[i] = id
		if f, ok := a.Field(id); ok && f.Spec.Label != "" {
			header[i] = f.Spec.Label
		}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return domain.ErrInternal("write worksheet header", err)
	}

	line := 2
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		rs, err := s.warehouse.Query(ctx, compiled.DataSQL, compiled.PageArgs(page, s.cfg.PageSize))
		if err != nil {
			return err
		}
		for _, row := range preview.Rows(compiled, rs) {
			values := make([]any, len(compiled.Columns))
			for i, id := range compiled.Columns {
				values[i] = row[id]
			}
			cell, err := excelize.CoordinatesToCellName(1, line)
			if err != nil {
				return domain.ErrInternal("address worksheet row", err)
			}
			if err := sw.SetRow(cell, values); err != nil {
				return domain.ErrInternal("write worksheet row", err)
			}
			line++
		}
		if len(rs.Rows) < s.cfg.PageSize {
			break
		}
	}
	if err := sw.Flush(); err != nil {
		return domain.ErrInternal("flush worksheet", err)
	}
	s.logger.Debug("sheet written", "report_id", reportID, "sub_report_id", sub.ID, "rows", line-2)
	return nil
}

// sheetNames derives unique worksheet names from sub-report names within the
// spreadsheet limits.
func sheetNames(subs []domain.SubReport) []string {
	names := make([]string, len(subs))
	seen := make(map[string]bool, len(subs))
	for i, sub := range subs {
		base := strings.Map(func(r rune) rune {
			if strings.ContainsRune(`[]:*?/\`, r) {
				return '_'
			}
			return r
		}, strings.TrimSpace(sub.Name))
		base = strings.Trim(base, "'")
		if base == "" {
			base = fmt.Sprintf("Sheet %d", i+1)
		}
		name := truncate(base, maxSheetName)
		for n := 2; seen[strings.ToLower(name)]; n++ {
			suffix := fmt.Sprintf(" (%d)", n)
			name = truncate(base, maxSheetName-len(suffix)) + suffix
		}
		seen[strings.ToLower(name)] = true
		names[i] = name
	}
	return names
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
