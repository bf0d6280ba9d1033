package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"govreport/internal/blob"
	"govreport/internal/cache"
	"govreport/internal/db"
	"govreport/internal/db/repository"
	"govreport/internal/domain"
	"govreport/internal/queue"
	"govreport/internal/schema"
	"govreport/internal/service/preview"
	"govreport/internal/sqlgen"
	tu "govreport/internal/testutil"
	"govreport/internal/validate"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

var fixedNow = time.Date(2026, 6, 1, 8, 30, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	exports  *repository.ExportRepo
	wh       *tu.FakeWarehouse
	blobs    *tu.FakeBlobStore
	queue    *tu.FakeQueue
	reportID int64
}

func newFixture(t *testing.T, wh domain.Warehouse, cfg Config, subs ...domain.SubReport) *fixture {
	t.Helper()
	metaDB := db.OpenTestSQLite(t)
	ctx := context.Background()
	reports := repository.NewReportRepo(metaDB)
	rep, err := reports.Create(ctx, &domain.Report{Name: "spend", CreatedBy: "alice", SubReports: subs})
	require.NoError(t, err)

	fake := &tu.FakeWarehouse{Columns: []string{tu.FieldTxDate, tu.FieldAmount, tu.FieldAgency}}
	for i := 0; i < 5; i++ {
		fake.Rows = append(fake.Rows, []any{"2025-01-0" + string(rune('1'+i)), int64(i * 10), "Agency " + string(rune('A'+i))})
	}
	if wh == nil {
		wh = fake
	}

	reg := schema.Master()
	execCache := cache.New(cache.NewMemoryStore(), time.Hour, nil, discard)
	sql := preview.New(repository.NewSubReportRepo(metaDB), validate.New(reg), sqlgen.New(reg), execCache, wh, nil, discard)

	f := &fixture{
		exports:  repository.NewExportRepo(metaDB),
		wh:       fake,
		blobs:    tu.NewFakeBlobStore(),
		queue:    &tu.FakeQueue{},
		reportID: rep.ID,
	}
	f.svc = New(Deps{
		Reports:   reports,
		Exports:   f.exports,
		Queue:     f.queue,
		Blobs:     f.blobs,
		SQL:       sql,
		Warehouse: wh,
		Logger:    discard,
	}, cfg)
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func detail(name string) domain.SubReport {
	return domain.SubReport{Name: name, Config: tu.DetailConfig()}
}

func (f *fixture) task(t *testing.T, i int) *queue.Task {
	t.Helper()
	require.Greater(t, f.queue.Len(), i)
	raw, err := json.Marshal(f.queue.Tasks[i].Args)
	require.NoError(t, err)
	return &queue.Task{ID: "task", Name: f.queue.Tasks[i].Name, Args: raw}
}

func TestExport_SingleFlight(t *testing.T) {
	f := newFixture(t, nil, Config{}, detail("Detail"))
	ctx := context.Background()

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Export(ctx, "alice", f.reportID)
		}(i)
	}
	wg.Wait()

	var accepted, running int
	for _, err := range errs {
		switch domain.KindOf(err) {
		case domain.KindAlreadyRunning:
			running++
		default:
			require.NoError(t, err)
			accepted++
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, running)
	require.Equal(t, 1, f.queue.Len())
	assert.Equal(t, domain.ExportTaskName, f.queue.Tasks[0].Name)

	// At-least-once delivery: the same task arrives twice at once.
	task := f.task(t, 0)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.svc.HandleTask(ctx, task)
		}(i)
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	history, total, err := f.svc.List(ctx, f.reportID, domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, domain.ExportStatusCompleted, history[0].Status)
	assert.Len(t, f.blobs.Blobs, 1)
}

func TestHandleTask_WritesWorkbook(t *testing.T) {
	f := newFixture(t, nil, Config{PageSize: 2, URLTTL: 2 * time.Hour}, detail("Detail: 2025"), detail("Detail: 2025"))
	ctx := context.Background()

	exp, err := f.svc.Export(ctx, "alice", f.reportID)
	require.NoError(t, err)
	require.NoError(t, f.svc.HandleTask(ctx, f.task(t, 0)))
	assert.Equal(t, 6, f.wh.QueryCount(), "three pages per sheet")

	key := blob.ExportKey(f.reportID, exp.ID)
	raw, ok := f.blobs.Blob(key)
	require.True(t, ok)
	assert.Equal(t, blob.XLSXContentType, f.blobs.Types[key])

	wb, err := excelize.OpenReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer wb.Close()
	assert.Equal(t, []string{"Detail_ 2025", "Detail_ 2025 (2)"}, wb.GetSheetList())
	for _, sheet := range wb.GetSheetList() {
		rows, err := wb.GetRows(sheet)
		require.NoError(t, err)
		require.Len(t, rows, 6)
		assert.Equal(t, []string{"Date", "Amount", "Agency"}, rows[0])
		assert.Equal(t, "Agency A", rows[1][2])
		assert.Equal(t, "40", rows[5][1])
	}

	view, err := f.svc.Status(ctx, f.reportID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExportStatusCompleted, view.Export.Status)
	require.NotNil(t, view.URL)
	assert.Contains(t, *view.URL, key)
	assert.Equal(t, time.Hour, f.blobs.Expiry, "url lifetime is capped")
	require.NotNil(t, view.URLExpiresAt)
	assert.Equal(t, fixedNow.Add(time.Hour), *view.URLExpiresAt)
}

func TestHandleTask_WarehouseFailure(t *testing.T) {
	f := newFixture(t, nil, Config{}, detail("Detail"))
	ctx := context.Background()
	f.wh.Err = domain.ErrInternal("warehouse query failed", errors.New("connection reset by peer"))

	_, err := f.svc.Export(ctx, "alice", f.reportID)
	require.NoError(t, err)
	require.NoError(t, f.svc.HandleTask(ctx, f.task(t, 0)), "export failures are not retried")

	view, err := f.svc.Status(ctx, f.reportID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExportStatusFailed, view.Export.Status)
	require.NotNil(t, view.Export.ErrorMessage)
	assert.Equal(t, "warehouse query failed", *view.Export.ErrorMessage, "driver detail is not exposed")
	assert.Nil(t, view.URL)
	assert.Empty(t, f.blobs.Blobs)

	_, err = f.svc.Export(ctx, "alice", f.reportID)
	require.NoError(t, err, "a failed export does not block the next one")
}

type blockingWarehouse struct{}

func (blockingWarehouse) Query(ctx context.Context, _ string, _ []any) (*domain.RowSet, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingWarehouse) Count(ctx context.Context, _ string, _ []any) (int64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestHandleTask_Timeout(t *testing.T) {
	f := newFixture(t, blockingWarehouse{}, Config{JobTimeout: 50 * time.Millisecond}, detail("Detail"))
	ctx := context.Background()

	_, err := f.svc.Export(ctx, "alice", f.reportID)
	require.NoError(t, err)
	require.NoError(t, f.svc.HandleTask(ctx, f.task(t, 0)))

	latest, err := f.exports.Latest(ctx, f.reportID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExportStatusFailed, latest.Status)
	require.NotNil(t, latest.ErrorMessage)
	assert.Equal(t, domain.ExportTimeoutMessage, *latest.ErrorMessage)
}

func TestHandleTask_BadArgs(t *testing.T) {
	f := newFixture(t, nil, Config{})
	err := f.svc.HandleTask(context.Background(), &queue.Task{Name: domain.ExportTaskName, Args: json.RawMessage(`{`)})
	require.Error(t, err)
}

func TestExport_Errors(t *testing.T) {
	f := newFixture(t, nil, Config{}, detail("Detail"))
	ctx := context.Background()

	_, err := f.svc.Export(ctx, "alice", 999)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))

	f.queue.Err = errors.New("queue unavailable")
	_, err = f.svc.Export(ctx, "alice", f.reportID)
	assert.Equal(t, domain.KindInternal, domain.KindOf(err))
	latest, err := f.exports.Latest(ctx, f.reportID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExportStatusFailed, latest.Status, "unqueued export does not hold the slot")

	f.queue.Err = nil
	_, err = f.svc.Export(ctx, "alice", f.reportID)
	require.NoError(t, err)
}

func TestStatus_Errors(t *testing.T) {
	f := newFixture(t, nil, Config{}, detail("Detail"))
	ctx := context.Background()

	_, err := f.svc.Status(ctx, 999)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
	_, err = f.svc.Status(ctx, f.reportID)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err), "no exports yet")

	_, err = f.svc.Export(ctx, "alice", f.reportID)
	require.NoError(t, err)
	view, err := f.svc.Status(ctx, f.reportID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExportStatusPending, view.Export.Status)
	assert.Nil(t, view.URL)

	require.NoError(t, f.svc.HandleTask(ctx, f.task(t, 0)))
	f.blobs.SignErr = errors.New("credentials expired")
	_, err = f.svc.Status(ctx, f.reportID)
	assert.Equal(t, domain.KindInternal, domain.KindOf(err))
}

func TestStatus_Stale(t *testing.T) {
	f := newFixture(t, nil, Config{}, detail("Detail"))
	ctx := context.Background()

	_, err := f.svc.Export(ctx, "alice", f.reportID)
	require.NoError(t, err)
	require.NoError(t, f.svc.HandleTask(ctx, f.task(t, 0)))

	editedAt := fixedNow.Add(10 * time.Minute)
	require.NoError(t, f.exports.MarkStale(ctx, f.reportID, editedAt))

	view, err := f.svc.Status(ctx, f.reportID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExportStatusCompleted, view.Export.Status)
	require.NotNil(t, view.Export.StaleAt)
	assert.True(t, view.Export.StaleAt.Equal(editedAt))
	assert.NotNil(t, view.URL)
}

func TestSheetNames(t *testing.T) {
	subs := []domain.SubReport{
		{Name: "Spend"},
		{Name: "spend"},
		{Name: "  "},
		{Name: "'Quoted'"},
		{Name: "a/b[c]:d*e?f\\g"},
		{Name: "An extremely long sub-report name that overflows"},
		{Name: "An extremely long sub-report name that overflows"},
	}
	assert.Equal(t, []string{
		"Spend",
		"spend (2)",
		"Sheet 3",
		"Quoted",
		"a_b_c__d_e_f_g",
		"An extremely long sub-report na",
		"An extremely long sub-repor (2)",
	}, sheetNames(subs))
}
