package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"govreport/internal/domain"
)

var _ domain.SubReportRepository = (*SubReportRepo)(nil)

// SubReportRepo stores sub-reports and their JSON configuration.
type SubReportRepo struct {
	db *sql.DB
}

// NewSubReportRepo creates a new SubReportRepo.
func NewSubReportRepo(db *sql.DB) *SubReportRepo {
	return &SubReportRepo{db: db}
}

const subReportColumns = `id, report_id, name, position, config, created_at, updated_at`

// Create appends a sub-report after the report's existing sub-reports.
func (r *SubReportRepo) Create(ctx context.Context, s *domain.SubReport) (*domain.SubReport, error) {
	var id int64
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var next int
		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(position) + 1, 0) FROM sub_reports WHERE report_id = ?`, s.ReportID).Scan(&next)
		if err != nil {
			return mapDBError(err)
		}
		sr := *s
		sr.Position = next
		id, err = insertSubReport(ctx, tx, &sr)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// GetByID returns a sub-report by ID.
func (r *SubReportRepo) GetByID(ctx context.Context, id int64) (*domain.SubReport, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+subReportColumns+` FROM sub_reports WHERE id = ?`, id)
	s, err := scanSubReport(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound("sub-report %d not found", id)
		}
		return nil, mapDBError(err)
	}
	return s, nil
}

// Update replaces the name and configuration of a sub-report.
func (r *SubReportRepo) Update(ctx context.Context, s *domain.SubReport) (*domain.SubReport, error) {
	cfg, err := marshalConfig(s.Config)
	if err != nil {
		return nil, err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE sub_reports SET name = ?, config = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, s.Name, cfg, s.ID)
	if err != nil {
		return nil, mapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, domain.ErrNotFound("sub-report %d not found", s.ID)
	}
	return r.GetByID(ctx, s.ID)
}

// Delete removes a sub-report.
func (r *SubReportRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sub_reports WHERE id = ?`, id)
	if err != nil {
		return mapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound("sub-report %d not found", id)
	}
	return nil
}

// ListByReport returns the sub-reports of a report in position order.
func (r *SubReportRepo) ListByReport(ctx context.Context, reportID int64) ([]domain.SubReport, error) {
	return listSubReports(ctx, r.db, reportID)
}

func insertSubReport(ctx context.Context, tx *sql.Tx, s *domain.SubReport) (int64, error) {
	cfg, err := marshalConfig(s.Config)
	if err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO sub_reports (report_id, name, position, config)
		VALUES (?, ?, ?, ?)`, s.ReportID, s.Name, s.Position, cfg)
	if err != nil {
		if isForeignKeyError(err) {
			return 0, domain.ErrNotFound("report %d not found", s.ReportID)
		}
		return 0, mapDBError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

func listSubReports(ctx context.Context, q querier, reportID int64) ([]domain.SubReport, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+subReportColumns+` FROM sub_reports
		WHERE report_id = ? ORDER BY position, id`, reportID)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer rows.Close()

	subs := []domain.SubReport{}
	for rows.Next() {
		s, err := scanSubReport(rows)
		if err != nil {
			return nil, mapDBError(err)
		}
		subs = append(subs, *s)
	}
	return subs, rows.Err()
}

func scanSubReport(row rowScanner) (*domain.SubReport, error) {
	var (
		s   domain.SubReport
		cfg string
	)
	if err := row.Scan(&s.ID, &s.ReportID, &s.Name, &s.Position, &cfg, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(cfg), &s.Config); err != nil {
		return nil, fmt.Errorf("unmarshal sub-report %d config: %w", s.ID, err)
	}
	return &s, nil
}
