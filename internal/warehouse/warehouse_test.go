package warehouse

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govreport/internal/domain"
)

func newMock(t *testing.T) (*Executor, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewExecutor(db, slog.New(slog.NewTextHandler(io.Discard, nil))), mock
}

func TestExecutor_Query(t *testing.T) {
	e, mock := newMock(t)
	query := `SELECT "project"."number" AS "a" FROM "project" ORDER BY "project"."id" ASC OFFSET $1 ROWS FETCH NEXT $2 ROWS ONLY`

	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs(int64(0), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"a"}).AddRow([]byte("P-1")).AddRow(nil))

	rs, err := e.Query(context.Background(), query, []any{int64(0), int64(2)})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, rs.Columns)
	assert.Equal(t, [][]any{{"P-1"}, {nil}}, rs.Rows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutor_QueryError(t *testing.T) {
	e, mock := newMock(t)
	mock.ExpectQuery("SELECT").WillReturnError(assert.AnError)

	_, err := e.Query(context.Background(), "SELECT 1", nil)
	require.Error(t, err)
	assert.Equal(t, domain.KindInternal, domain.KindOf(err))
	assert.ErrorIs(t, err, assert.AnError)
}

func TestExecutor_Count(t *testing.T) {
	e, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM (SELECT 1) AS t")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(2000)))

	n, err := e.Count(context.Background(), "SELECT COUNT(*) FROM (SELECT 1) AS t", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), n)
}

func TestNormalize(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		in   any
		typ  domain.SemanticType
		want any
	}{
		{"12.50", domain.TypeNumber, 12.5},
		{int64(7), domain.TypeNumber, 7.0},
		{"abc", domain.TypeNumber, "abc"},
		{"true", domain.TypeBoolean, true},
		{"2024-03-01", domain.TypeDate, day},
		{day, domain.TypeDate, day},
		{nil, domain.TypeString, nil},
		{"x", domain.TypeString, "x"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Normalize(tc.in, tc.typ), "%v as %s", tc.in, tc.typ)
	}
}
