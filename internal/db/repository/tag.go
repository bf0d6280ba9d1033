package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"govreport/internal/domain"
)

var _ domain.TagRepository = (*TagRepo)(nil)

// TagRepo stores tag definitions.
type TagRepo struct {
	db *sql.DB
}

// NewTagRepo creates a new TagRepo.
func NewTagRepo(db *sql.DB) *TagRepo {
	return &TagRepo{db: db}
}

// Create inserts a tag. Tag names are unique.
func (r *TagRepo) Create(ctx context.Context, t *domain.Tag) (*domain.Tag, error) {
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return nil, domain.ErrValidation("tag name is required")
	}
	res, err := r.db.ExecContext(ctx, `INSERT INTO tags (name, created_by) VALUES (?, ?)`, name, t.CreatedBy)
	if err != nil {
		return nil, nameConflict(err, "tag", name)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	var out domain.Tag
	err = r.db.QueryRowContext(ctx, `SELECT id, name, created_by, created_at FROM tags WHERE id = ?`, id).
		Scan(&out.ID, &out.Name, &out.CreatedBy, &out.CreatedAt)
	if err != nil {
		return nil, mapDBError(err)
	}
	return &out, nil
}

// List returns tags ordered by name.
func (r *TagRepo) List(ctx context.Context, page domain.PageRequest) ([]domain.Tag, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tags`).Scan(&total); err != nil {
		return nil, 0, mapDBError(err)
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, created_by, created_at FROM tags
		ORDER BY name LIMIT ? OFFSET ?`, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, mapDBError(err)
	}
	defer rows.Close()

	var tags []domain.Tag
	for rows.Next() {
		var t domain.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, 0, mapDBError(err)
		}
		tags = append(tags, t)
	}
	return tags, total, rows.Err()
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// replaceTagLinks swaps the tag set linked to owner for names. Unknown names
// fail the whole replacement with TagsNotFound.
func replaceTagLinks(ctx context.Context, tx *sql.Tx, table, ownerCol string, owner int64, names []string) error {
	names = uniqueNames(names)
	ids := make([]int64, 0, len(names))
	if len(names) > 0 {
		args := make([]any, len(names))
		for i, n := range names {
			args[i] = n
		}
		rows, err := tx.QueryContext(ctx, `SELECT id, name FROM tags WHERE name IN (`+placeholders(len(names))+`)`, args...)
		if err != nil {
			return mapDBError(err)
		}
		found := make(map[string]bool, len(names))
		for rows.Next() {
			var (
				id   int64
				name string
			)
			if err := rows.Scan(&id, &name); err != nil {
				rows.Close()
				return mapDBError(err)
			}
			found[name] = true
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return mapDBError(err)
		}
		var missing []string
		for _, n := range names {
			if !found[n] {
				missing = append(missing, n)
			}
		}
		if len(missing) > 0 {
			return domain.ErrTagsNotFound(missing)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE `+ownerCol+` = ?`, owner); err != nil {
		return mapDBError(err)
	}
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `INSERT INTO `+table+` (`+ownerCol+`, tag_id) VALUES (?, ?)`, owner, id); err != nil {
			return mapDBError(err)
		}
	}
	return nil
}

func linkedTags(ctx context.Context, q querier, table, ownerCol string, owner int64) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT t.name FROM `+table+` l JOIN tags t ON t.id = l.tag_id
		WHERE l.`+ownerCol+` = ? ORDER BY t.name`, owner)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, mapDBError(err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func uniqueNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
