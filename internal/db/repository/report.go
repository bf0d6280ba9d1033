package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"govreport/internal/domain"
)

var _ domain.ReportRepository = (*ReportRepo)(nil)

// ReportRepo stores reports, their tag links and their sub-reports.
type ReportRepo struct {
	db *sql.DB
}

// NewReportRepo creates a new ReportRepo.
func NewReportRepo(db *sql.DB) *ReportRepo {
	return &ReportRepo{db: db}
}

const reportColumns = `id, name, description, rerun_cadence, template_id, conversation_key, created_by, created_at, updated_at`

// Create inserts a report with its tag links and sub-reports in one transaction.
func (r *ReportRepo) Create(ctx context.Context, rep *domain.Report) (*domain.Report, error) {
	if rep == nil {
		return nil, domain.ErrValidation("report is required")
	}

	var id int64
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var cadence sql.NullString
		if rep.RerunCadence != nil {
			cadence = sql.NullString{String: string(*rep.RerunCadence), Valid: true}
		}
		var templateID sql.NullInt64
		if rep.TemplateID != nil {
			templateID = sql.NullInt64{Int64: *rep.TemplateID, Valid: true}
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO reports (name, description, rerun_cadence, template_id, conversation_key, created_by)
			VALUES (?, ?, ?, ?, ?, ?)
		`, rep.Name, rep.Description, cadence, templateID, nullString(rep.ConversationKey), rep.CreatedBy)
		if err != nil {
			return nameConflict(err, "report", rep.Name)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		if err := replaceTagLinks(ctx, tx, "report_tags", "report_id", id, rep.Tags); err != nil {
			return err
		}
		for i := range rep.SubReports {
			sr := rep.SubReports[i]
			sr.ReportID = id
			sr.Position = i
			if _, err := insertSubReport(ctx, tx, &sr); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// GetByID returns a report with its tags and ordered sub-reports.
func (r *ReportRepo) GetByID(ctx context.Context, id int64) (*domain.Report, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id)
	rep, err := scanReport(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound("report %d not found", id)
		}
		return nil, mapDBError(err)
	}
	if err := r.hydrate(ctx, []*domain.Report{rep}, true); err != nil {
		return nil, err
	}
	return rep, nil
}

// Update applies a partial update and, when Tags is set, replaces the tag
// links. Both happen in one transaction.
func (r *ReportRepo) Update(ctx context.Context, id int64, req domain.UpdateReportRequest) (*domain.Report, error) {
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		sets := []string{"updated_at = CURRENT_TIMESTAMP"}
		var args []any
		if req.Name != nil {
			sets = append(sets, "name = ?")
			args = append(args, *req.Name)
		}
		if req.Description != nil {
			sets = append(sets, "description = ?")
			args = append(args, *req.Description)
		}
		switch {
		case req.ClearCadence:
			sets = append(sets, "rerun_cadence = NULL")
		case req.RerunCadence != nil:
			sets = append(sets, "rerun_cadence = ?")
			args = append(args, string(*req.RerunCadence))
		}
		if req.ConversationKey != nil {
			sets = append(sets, "conversation_key = ?")
			args = append(args, *req.ConversationKey)
		}
		args = append(args, id)

		res, err := tx.ExecContext(ctx, `UPDATE reports SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
		if err != nil {
			name := ""
			if req.Name != nil {
				name = *req.Name
			}
			return nameConflict(err, "report", name)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return domain.ErrNotFound("report %d not found", id)
		}
		if req.Tags != nil {
			return replaceTagLinks(ctx, tx, "report_tags", "report_id", id, *req.Tags)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// Touch bumps updated_at after a sub-report edit.
func (r *ReportRepo) Touch(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE reports SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	return mapDBError(err)
}

// Delete removes a report. Sub-reports, tag links and exports cascade.
func (r *ReportRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id)
	if err != nil {
		return mapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound("report %d not found", id)
	}
	return nil
}

// List returns reports matching the filter, newest first. Search matches name
// or description; Tags matches reports carrying any of the named tags. Listed
// reports carry their tags but not their sub-reports.
func (r *ReportRepo) List(ctx context.Context, filter domain.ReportFilter, page domain.PageRequest) ([]domain.Report, int64, error) {
	var (
		where []string
		args  []any
	)
	if s := strings.TrimSpace(filter.Search); s != "" {
		where = append(where, `(r.name LIKE ? ESCAPE '\' OR r.description LIKE ? ESCAPE '\')`)
		pattern := "%" + escapeLike(s) + "%"
		args = append(args, pattern, pattern)
	}
	if len(filter.Tags) > 0 {
		where = append(where, `r.id IN (
			SELECT rt.report_id FROM report_tags rt JOIN tags t ON t.id = rt.tag_id
			WHERE t.name IN (`+placeholders(len(filter.Tags))+`))`)
		for _, t := range filter.Tags {
			args = append(args, t)
		}
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports r`+clause, args...).Scan(&total); err != nil {
		return nil, 0, mapDBError(err)
	}

	pageArgs := append(append([]any(nil), args...), page.Limit(), page.Offset())
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.id, r.name, r.description, r.rerun_cadence, r.template_id, r.conversation_key,
		       r.created_by, r.created_at, r.updated_at
		FROM reports r`+clause+`
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT ? OFFSET ?`, pageArgs...)
	if err != nil {
		return nil, 0, mapDBError(err)
	}
	reports, err := collectReports(rows)
	if err != nil {
		return nil, 0, err
	}

	ptrs := make([]*domain.Report, len(reports))
	for i := range reports {
		ptrs[i] = &reports[i]
	}
	if err := r.hydrate(ctx, ptrs, false); err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

// ListScheduled returns every report with a rerun cadence.
func (r *ReportRepo) ListScheduled(ctx context.Context) ([]domain.Report, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+reportColumns+` FROM reports
		WHERE rerun_cadence IS NOT NULL
		ORDER BY id`)
	if err != nil {
		return nil, mapDBError(err)
	}
	return collectReports(rows)
}

func (r *ReportRepo) hydrate(ctx context.Context, reports []*domain.Report, withSubReports bool) error {
	for _, rep := range reports {
		tags, err := linkedTags(ctx, r.db, "report_tags", "report_id", rep.ID)
		if err != nil {
			return err
		}
		rep.Tags = tags
		if withSubReports {
			subs, err := listSubReports(ctx, r.db, rep.ID)
			if err != nil {
				return err
			}
			rep.SubReports = subs
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*domain.Report, error) {
	var (
		rep             domain.Report
		cadence         sql.NullString
		templateID      sql.NullInt64
		conversationKey sql.NullString
	)
	err := row.Scan(&rep.ID, &rep.Name, &rep.Description, &cadence, &templateID, &conversationKey,
		&rep.CreatedBy, &rep.CreatedAt, &rep.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if cadence.Valid {
		c := domain.Cadence(cadence.String)
		rep.RerunCadence = &c
	}
	if templateID.Valid {
		id := templateID.Int64
		rep.TemplateID = &id
	}
	rep.ConversationKey = stringPtr(conversationKey)
	return &rep, nil
}

func collectReports(rows *sql.Rows) ([]domain.Report, error) {
	defer rows.Close()
	var out []domain.Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, mapDBError(err)
		}
		out = append(out, *rep)
	}
	if err := rows.Err(); err != nil {
		return nil, mapDBError(err)
	}
	return out, nil
}

// nameConflict turns a unique violation into a ConflictError naming the entity.
func nameConflict(err error, entity, name string) error {
	mapped := mapDBError(err)
	var conflict *domain.ConflictError
	if errors.As(mapped, &conflict) {
		return domain.ErrConflict("%s name %q already exists", entity, name)
	}
	return mapped
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func marshalConfig(cfg domain.SubReportConfig) (string, error) {
	b, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal sub-report config: %w", err)
	}
	return string(b), nil
}
