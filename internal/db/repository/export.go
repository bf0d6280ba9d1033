package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"govreport/internal/domain"
)

var _ domain.ExportRepository = (*ExportRepo)(nil)

// ExportRepo stores the append-only export history of reports.
type ExportRepo struct {
	db *sql.DB
}

// NewExportRepo creates a new ExportRepo.
func NewExportRepo(db *sql.DB) *ExportRepo {
	return &ExportRepo{db: db}
}

const exportColumns = `id, report_id, status, file_handle, error_message, created_by,
	created_at, started_at, completed_at, stale_at, updated_at`

// CreateIfIdle inserts a pending export unless the report already has an
// active export younger than window. Older active exports are failed as
// abandoned first. The check and the insert share one transaction.
func (r *ExportRepo) CreateIfIdle(ctx context.Context, e *domain.Export, window time.Duration, now time.Time) (*domain.Export, error) {
	now = now.UTC()
	var id int64
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id, created_at FROM exports
			WHERE report_id = ? AND status IN ('pending', 'in_progress')
			ORDER BY id DESC`, e.ReportID)
		if err != nil {
			return mapDBError(err)
		}
		type active struct {
			id        int64
			createdAt time.Time
		}
		var actives []active
		for rows.Next() {
			var a active
			if err := rows.Scan(&a.id, &a.createdAt); err != nil {
				rows.Close()
				return mapDBError(err)
			}
			actives = append(actives, a)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return mapDBError(err)
		}

		for _, a := range actives {
			if now.Sub(a.createdAt) < window {
				return &domain.AlreadyRunningError{ReportID: e.ReportID, ExportID: a.id}
			}
			_, err := tx.ExecContext(ctx, `
				UPDATE exports
				SET status = 'failed', error_message = ?, completed_at = ?, updated_at = ?
				WHERE id = ?`, domain.ExportAbandonedMessage, now, now, a.id)
			if err != nil {
				return mapDBError(err)
			}
		}

		id, err = insertPending(ctx, tx, e, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// insertPending inserts the pending row. Another process may have inserted an
// active export since the window check; the partial unique index on active
// exports rejects the insert and the caller gets AlreadyRunning for that row.
func insertPending(ctx context.Context, tx *sql.Tx, e *domain.Export, now time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO exports (report_id, status, created_by, created_at, updated_at)
		VALUES (?, 'pending', ?, ?, ?)`, e.ReportID, e.CreatedBy, now, now)
	switch {
	case isForeignKeyError(err):
		return 0, domain.ErrNotFound("report %d not found", e.ReportID)
	case isUniqueError(err):
		running := &domain.AlreadyRunningError{ReportID: e.ReportID}
		if err := tx.QueryRowContext(ctx, `
			SELECT id FROM exports
			WHERE report_id = ? AND status IN ('pending', 'in_progress')
			ORDER BY id DESC LIMIT 1`, e.ReportID).Scan(&running.ExportID); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return 0, mapDBError(err)
		}
		return 0, running
	case err != nil:
		return 0, mapDBError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// GetByID returns an export by ID.
func (r *ExportRepo) GetByID(ctx context.Context, id int64) (*domain.Export, error) {
	e, err := scanExport(r.db.QueryRowContext(ctx, `SELECT `+exportColumns+` FROM exports WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound("export %d not found", id)
		}
		return nil, mapDBError(err)
	}
	return e, nil
}

// Latest returns the most recent export of a report.
func (r *ExportRepo) Latest(ctx context.Context, reportID int64) (*domain.Export, error) {
	e, err := scanExport(r.db.QueryRowContext(ctx, `
		SELECT `+exportColumns+` FROM exports
		WHERE report_id = ? ORDER BY id DESC LIMIT 1`, reportID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound("report %d has no exports", reportID)
		}
		return nil, mapDBError(err)
	}
	return e, nil
}

// ListByReport returns the export history of a report, newest first.
func (r *ExportRepo) ListByReport(ctx context.Context, reportID int64, page domain.PageRequest) ([]domain.Export, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exports WHERE report_id = ?`, reportID).Scan(&total); err != nil {
		return nil, 0, mapDBError(err)
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+exportColumns+` FROM exports
		WHERE report_id = ? ORDER BY id DESC LIMIT ? OFFSET ?`, reportID, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, mapDBError(err)
	}
	defer rows.Close()

	var out []domain.Export
	for rows.Next() {
		e, err := scanExport(rows)
		if err != nil {
			return nil, 0, mapDBError(err)
		}
		out = append(out, *e)
	}
	return out, total, rows.Err()
}

// MarkInProgress moves a pending export to in_progress. It reports false when
// another worker already claimed the row or the row is no longer pending.
func (r *ExportRepo) MarkInProgress(ctx context.Context, id int64) (bool, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE exports SET status = 'in_progress', started_at = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'`, now, now, id)
	if err != nil {
		return false, mapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// MarkCompleted records the artifact handle of an in-progress export.
func (r *ExportRepo) MarkCompleted(ctx context.Context, id int64, fileHandle string) error {
	if fileHandle == "" {
		return domain.ErrValidation("completed export requires a file handle")
	}
	now := time.Now().UTC()
	return r.finish(ctx, id, `
		UPDATE exports
		SET status = 'completed', file_handle = ?, error_message = NULL, completed_at = ?, updated_at = ?
		WHERE id = ? AND status = 'in_progress'`, fileHandle, now, now, id)
}

// MarkFailed records a failure on an export that has not reached a terminal state.
func (r *ExportRepo) MarkFailed(ctx context.Context, id int64, message string) error {
	if message == "" {
		message = "export failed"
	}
	now := time.Now().UTC()
	return r.finish(ctx, id, `
		UPDATE exports
		SET status = 'failed', error_message = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND status IN ('pending', 'in_progress')`, message, now, now, id)
}

// MarkStale stamps stale_at on the latest completed export of a report. An
// export that is already stale keeps its first stale time.
func (r *ExportRepo) MarkStale(ctx context.Context, reportID int64, at time.Time) error {
	at = at.UTC()
	_, err := r.db.ExecContext(ctx, `
		UPDATE exports SET stale_at = COALESCE(stale_at, ?), updated_at = ?
		WHERE id = (
			SELECT id FROM exports
			WHERE report_id = ? AND status = 'completed'
			ORDER BY id DESC LIMIT 1
		)`, at, at, reportID)
	return mapDBError(err)
}

func (r *ExportRepo) finish(ctx context.Context, id int64, stmt string, args ...any) error {
	res, err := r.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return mapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return domain.ErrConflict("export %d is already terminal", id)
	}
	return nil
}

func scanExport(row rowScanner) (*domain.Export, error) {
	var (
		e                               domain.Export
		status                          string
		fileHandle, errorMessage        sql.NullString
		startedAt, completedAt, staleAt sql.NullTime
	)
	err := row.Scan(&e.ID, &e.ReportID, &status, &fileHandle, &errorMessage, &e.CreatedBy,
		&e.CreatedAt, &startedAt, &completedAt, &staleAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.Status = domain.ExportStatus(status)
	e.FileHandle = stringPtr(fileHandle)
	e.ErrorMessage = stringPtr(errorMessage)
	e.StartedAt = timePtr(startedAt)
	e.CompletedAt = timePtr(completedAt)
	e.StaleAt = timePtr(staleAt)
	return &e, nil
}
