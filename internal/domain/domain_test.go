package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindAndStatusOf(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   Kind
		status Status
	}{
		{"not found", ErrNotFound("report %d not found", 1), KindNotFound, StatusNotFound},
		{"template", ErrTemplateNotFound(7), KindTemplateNotFound, StatusNotFound},
		{"tags", ErrTagsNotFound([]string{"b", "a"}), KindTagsNotFound, StatusNotFound},
		{"validation", ErrValidation("bad"), KindValidationFailed, StatusBadRequest},
		{"conflict", ErrConflict("dup"), KindNameConflict, StatusConflict},
		{"running", &AlreadyRunningError{ReportID: 1, ExportID: 2}, KindAlreadyRunning, StatusConflict},
		{"denied", ErrAccessDenied("no"), KindAccessDenied, StatusForbidden},
		{"join", &JoinError{JoinKind: KindDisconnected, Message: "x"}, KindDisconnected, StatusBadRequest},
		{"internal", ErrInternal("boom", errors.New("driver")), KindInternal, StatusInternal},
		{"wrapped", fmt.Errorf("load: %w", ErrNotFound("x")), KindNotFound, StatusNotFound},
		{"unclassified", errors.New("plain"), KindInternal, StatusInternal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.kind, KindOf(tc.err))
			assert.Equal(t, tc.status, StatusOf(tc.err))
		})
	}
}

func TestErrTagsNotFound_SortsNames(t *testing.T) {
	names := []string{"ops", "finance"}
	err := ErrTagsNotFound(names)
	assert.Equal(t, "tags not found: finance, ops", err.Error())
	assert.Equal(t, []string{"ops", "finance"}, names, "input is not reordered")
}

func TestInternalError_Unwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := ErrInternal("warehouse query failed", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "warehouse query failed", err.Message)
}

func TestPageRequest(t *testing.T) {
	tests := []struct {
		name   string
		page   PageRequest
		offset int
		limit  int
		valid  bool
	}{
		{"defaults", PageRequest{}, 0, DefaultListSize, true},
		{"clamped", PageRequest{MaxResults: 5000}, 0, MaxListSize, true},
		{"token", PageRequest{MaxResults: 10, PageToken: EncodePageToken(20)}, 20, 10, true},
		{"garbage token", PageRequest{PageToken: "%%%"}, 0, DefaultListSize, false},
		{"foreign token", PageRequest{PageToken: "MjA"}, 0, DefaultListSize, false},
		{"negative size", PageRequest{MaxResults: -1}, 0, DefaultListSize, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.offset, tc.page.Offset())
			assert.Equal(t, tc.limit, tc.page.Limit())
			if tc.valid {
				assert.NoError(t, tc.page.Validate())
			} else {
				assert.Equal(t, KindValidationFailed, KindOf(tc.page.Validate()))
			}
		})
	}

	assert.Empty(t, PageRequest{MaxResults: 10}.Next(10))
	next := PageRequest{MaxResults: 10}.Next(11)
	require.NotEmpty(t, next)
	assert.Equal(t, 10, PageRequest{PageToken: next}.Offset())
	assert.Empty(t, PageRequest{MaxResults: 10, PageToken: next}.Next(11))
}

func TestNewSearchOptions(t *testing.T) {
	assert.Equal(t, int64(0), NewSearchOptions(1, 100, 0).TotalPages)
	assert.Equal(t, int64(1), NewSearchOptions(1, 100, 100).TotalPages)
	assert.Equal(t, int64(20), NewSearchOptions(1, 100, 1999).TotalPages)
}

func TestCadenceValid(t *testing.T) {
	for _, c := range []Cadence{CadenceDaily, CadenceWeekly, CadenceMonthly, CadenceQuarterly, CadenceYearly} {
		assert.True(t, c.Valid(), c)
	}
	assert.False(t, Cadence("hourly").Valid())
}

func TestAggregateAcceptsType(t *testing.T) {
	assert.True(t, AggregateSum.AcceptsType(TypeNumber))
	assert.False(t, AggregateAvg.AcceptsType(TypeString))
	assert.True(t, AggregateMax.AcceptsType(TypeDate))
	assert.True(t, AggregateCount.AcceptsType(TypeBoolean))
	assert.False(t, Aggregate("median").Valid())
}

func TestFilterTreeWalk(t *testing.T) {
	tree := And(
		Leaf("a", OpEquals, 1),
		Or(Leaf("b", OpEquals, 2), Leaf("c", OpEquals, 3)),
	)
	var seen []string
	tree.Walk(func(leaf FilterTree) { seen = append(seen, leaf.Field) })
	assert.Equal(t, []string{"a", "b", "c"}, seen)
	assert.True(t, tree.IsBranch())
}

func TestWithFiltersLeavesOriginal(t *testing.T) {
	leaf := Leaf("a", OpEquals, 1)
	cfg := SubReportConfig{Filters: &leaf}
	replaced := cfg.WithFilters(nil)
	assert.Nil(t, replaced.Filters)
	assert.NotNil(t, cfg.Filters)
}

func TestCreateReportRequestValidate(t *testing.T) {
	bad := Cadence("hourly")
	tests := []struct {
		name string
		req  CreateReportRequest
		ok   bool
	}{
		{"ok", CreateReportRequest{Name: "Spend"}, true},
		{"blank name", CreateReportRequest{Name: "  "}, false},
		{"bad cadence", CreateReportRequest{Name: "Spend", RerunCadence: &bad}, false},
		{"blank sub-report", CreateReportRequest{Name: "Spend", SubReports: []CreateSubReportRequest{{Name: ""}}}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, KindValidationFailed, KindOf(err))
		})
	}
}

func TestExportStatusActive(t *testing.T) {
	assert.True(t, ExportStatusPending.Active())
	assert.True(t, ExportStatusInProgress.Active())
	assert.False(t, ExportStatusCompleted.Active())
	assert.False(t, ExportStatusFailed.Active())
}

func TestIDs(t *testing.T) {
	assert.True(t, IsFieldID(NewID()))
	assert.False(t, IsFieldID("not-a-uuid"))
	id, err := ParseID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	_, err = ParseID("0")
	assert.Equal(t, KindValidationFailed, KindOf(err))
}
