package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"govreport/internal/domain"
)

var _ domain.TemplateRepository = (*TemplateRepo)(nil)

// TemplateRepo stores report templates. Sub-report blueprints are kept as a
// JSON array on the template row.
type TemplateRepo struct {
	db *sql.DB
}

// NewTemplateRepo creates a new TemplateRepo.
func NewTemplateRepo(db *sql.DB) *TemplateRepo {
	return &TemplateRepo{db: db}
}

const templateColumns = `id, name, description, is_predefined, sub_reports, created_by, created_at, updated_at`

// Create inserts a template together with its tag links.
func (r *TemplateRepo) Create(ctx context.Context, t *domain.Template) (*domain.Template, error) {
	subs := t.SubReports
	if subs == nil {
		subs = []domain.TemplateSubReport{}
	}
	body, err := json.Marshal(subs)
	if err != nil {
		return nil, fmt.Errorf("marshal template sub-reports: %w", err)
	}

	var id int64
	err = withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO templates (name, description, is_predefined, sub_reports, created_by)
			VALUES (?, ?, ?, ?, ?)`, t.Name, t.Description, boolToInt(t.IsPredefined), string(body), t.CreatedBy)
		if err != nil {
			return nameConflict(err, "template", t.Name)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		return replaceTagLinks(ctx, tx, "template_tags", "template_id", id, t.Tags)
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// GetByID returns a template by ID.
func (r *TemplateRepo) GetByID(ctx context.Context, id int64) (*domain.Template, error) {
	t, err := r.getOne(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTemplateNotFound(id)
	}
	return t, mapDBError(err)
}

// GetByName returns a template by its unique name.
func (r *TemplateRepo) GetByName(ctx context.Context, name string) (*domain.Template, error) {
	t, err := r.getOne(ctx, `SELECT `+templateColumns+` FROM templates WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound("template %q not found", name)
	}
	return t, mapDBError(err)
}

// List returns templates ordered by name.
func (r *TemplateRepo) List(ctx context.Context, page domain.PageRequest) ([]domain.Template, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM templates`).Scan(&total); err != nil {
		return nil, 0, mapDBError(err)
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+templateColumns+` FROM templates
		ORDER BY name LIMIT ? OFFSET ?`, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, mapDBError(err)
	}
	var templates []domain.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			rows.Close()
			return nil, 0, mapDBError(err)
		}
		templates = append(templates, *t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, mapDBError(err)
	}

	for i := range templates {
		tags, err := linkedTags(ctx, r.db, "template_tags", "template_id", templates[i].ID)
		if err != nil {
			return nil, 0, err
		}
		templates[i].Tags = tags
	}
	return templates, total, nil
}

// Delete removes a template. Reports cloned from it keep their sub-reports.
func (r *TemplateRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, id)
	if err != nil {
		return mapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrTemplateNotFound(id)
	}
	return nil
}

func (r *TemplateRepo) getOne(ctx context.Context, stmt string, args ...any) (*domain.Template, error) {
	t, err := scanTemplate(r.db.QueryRowContext(ctx, stmt, args...))
	if err != nil {
		return nil, err
	}
	tags, err := linkedTags(ctx, r.db, "template_tags", "template_id", t.ID)
	if err != nil {
		return nil, err
	}
	t.Tags = tags
	return t, nil
}

func scanTemplate(row rowScanner) (*domain.Template, error) {
	var (
		t          domain.Template
		predefined int64
		subs       string
	)
	err := row.Scan(&t.ID, &t.Name, &t.Description, &predefined, &subs, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.IsPredefined = predefined != 0
	if err := json.Unmarshal([]byte(subs), &t.SubReports); err != nil {
		return nil, fmt.Errorf("unmarshal template %d sub-reports: %w", t.ID, err)
	}
	return &t, nil
}
