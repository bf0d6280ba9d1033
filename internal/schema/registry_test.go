package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govreport/internal/domain"
)

func TestMaster(t *testing.T) {
	reg := Master()

	assert.Equal(t, "agency", reg.Tables()[0])
	assert.True(t, reg.HasTable("transaction"))

	typ, err := reg.Resolve("transaction", "transaction_amount")
	require.NoError(t, err)
	assert.Equal(t, domain.TypeNumber, typ)

	typ, err = reg.Resolve("project", "number")
	require.NoError(t, err)
	assert.Equal(t, domain.TypeString, typ)

	edges := reg.JoinEdges()
	for i := 1; i < len(edges); i++ {
		assert.True(t, edges[i-1].Less(edges[i]), "edges must be sorted: %s before %s", edges[i-1], edges[i])
	}
}

func TestResolveUnknown(t *testing.T) {
	reg := Master()

	_, err := reg.Resolve("project", "nope")
	var ufe *UnknownFieldError
	require.ErrorAs(t, err, &ufe)
	assert.Equal(t, "project", ufe.Table)
	assert.Equal(t, "nope", ufe.Column)

	_, err = reg.Resolve("ghost", "id")
	require.ErrorAs(t, err, &ufe)

	_, err = reg.Columns("ghost")
	require.Error(t, err)
}

func TestColumnsKeepDeclarationOrder(t *testing.T) {
	reg := Master()
	cs, err := reg.Columns("vendor")
	require.NoError(t, err)
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"id", "name", "registration_number", "country", "is_small_business"}, names)
}

func TestNewRejectsInvalidDeclarations(t *testing.T) {
	tests := []struct {
		name   string
		tables []Table
		edges  []JoinEdge
		errMsg string
	}{
		{
			name:   "missing_key",
			tables: []Table{{Name: "a", Columns: []Column{{Name: "x", Type: domain.TypeString}}}},
			errMsg: "numeric \"id\"",
		},
		{
			name: "duplicate_table",
			tables: []Table{
				{Name: "a", Columns: []Column{{Name: "id", Type: domain.TypeNumber}}},
				{Name: "a", Columns: []Column{{Name: "id", Type: domain.TypeNumber}}},
			},
			errMsg: "duplicate table",
		},
		{
			name:   "bad_type",
			tables: []Table{{Name: "a", Columns: []Column{{Name: "id", Type: domain.TypeNumber}, {Name: "x", Type: "blob"}}}},
			errMsg: "unknown type",
		},
		{
			name:   "unsafe_table_name",
			tables: []Table{{Name: "a;b", Columns: []Column{{Name: "id", Type: domain.TypeNumber}}}},
			errMsg: "must match",
		},
		{
			name:   "unsafe_column_name",
			tables: []Table{{Name: "a", Columns: []Column{{Name: "id", Type: domain.TypeNumber}, {Name: "x y", Type: domain.TypeString}}}},
			errMsg: "column of a",
		},
		{
			name:   "dangling_edge",
			tables: []Table{{Name: "a", Columns: []Column{{Name: "id", Type: domain.TypeNumber}}}},
			edges:  []JoinEdge{{ChildTable: "a", ChildColumn: "b_id", ParentTable: "b", ParentColumn: "id"}},
			errMsg: "join edge",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.tables, tc.edges)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}
