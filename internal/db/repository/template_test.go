package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govreport/internal/db"
	"govreport/internal/domain"
	"govreport/internal/testutil"
)

func TestTemplateRepo_CRUD(t *testing.T) {
	t.Parallel()
	metaDB := db.OpenTestSQLite(t)
	ctx := context.Background()
	seedTags(t, NewTagRepo(metaDB), "finance")
	repo := NewTemplateRepo(metaDB)

	created, err := repo.Create(ctx, &domain.Template{
		Name:         "Spend",
		Description:  "grouped spend",
		IsPredefined: true,
		Tags:         []string{"finance"},
		CreatedBy:    domain.SystemPrincipal,
		SubReports: []domain.TemplateSubReport{
			{Name: "by project", Config: testutil.GroupedSpendConfig()},
		},
	})
	require.NoError(t, err)
	assert.True(t, created.IsPredefined)
	assert.Equal(t, []string{"finance"}, created.Tags)
	require.Len(t, created.SubReports, 1)
	assert.Equal(t, testutil.GroupedSpendConfig(), created.SubReports[0].Config)

	byName, err := repo.GetByName(ctx, "Spend")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)

	_, err = repo.Create(ctx, &domain.Template{Name: "Spend", CreatedBy: "bob"})
	assert.Equal(t, domain.KindNameConflict, domain.KindOf(err))

	_, err = repo.Create(ctx, &domain.Template{Name: "Empty", CreatedBy: "bob"})
	require.NoError(t, err)

	list, total, err := repo.List(ctx, domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, list, 2)
	assert.Equal(t, "Empty", list[0].Name)
	assert.Empty(t, list[0].SubReports)
	assert.Equal(t, []string{"finance"}, list[1].Tags)

	require.NoError(t, repo.Delete(ctx, created.ID))
	_, err = repo.GetByID(ctx, created.ID)
	assert.Equal(t, domain.KindTemplateNotFound, domain.KindOf(err))
	_, err = repo.GetByName(ctx, "Spend")
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestTemplateRepo_DeleteKeepsClonedReports(t *testing.T) {
	t.Parallel()
	metaDB := db.OpenTestSQLite(t)
	ctx := context.Background()
	templates := NewTemplateRepo(metaDB)
	reports := NewReportRepo(metaDB)

	tmpl, err := templates.Create(ctx, &domain.Template{Name: "t", CreatedBy: "alice"})
	require.NoError(t, err)
	rep, err := reports.Create(ctx, &domain.Report{Name: "from t", CreatedBy: "alice", TemplateID: &tmpl.ID})
	require.NoError(t, err)

	require.NoError(t, templates.Delete(ctx, tmpl.ID))
	loaded, err := reports.GetByID(ctx, rep.ID)
	require.NoError(t, err)
	assert.Nil(t, loaded.TemplateID)
}
