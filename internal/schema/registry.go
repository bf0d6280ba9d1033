// Package schema declares the fixed relational surface that report authors can
// reference: master tables, their typed columns, and the join edges between them.
package schema

import (
	"fmt"
	"sort"

	"govreport/internal/domain"
	"govreport/internal/sqlident"
)

// KeyColumn is the surrogate key every master table exposes.
const KeyColumn = "id"

// Column is a typed column of a master table.
type Column struct {
	Name string
	Type domain.SemanticType
}

// Table is a master table with its columns in declaration order.
type Table struct {
	Name    string
	Columns []Column
}

// JoinEdge is a directed foreign-key edge from a child column to a parent column.
type JoinEdge struct {
	ChildTable   string `json:"child_table"`
	ChildColumn  string `json:"child_column"`
	ParentTable  string `json:"parent_table"`
	ParentColumn string `json:"parent_column"`
}

func (e JoinEdge) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s", e.ChildTable, e.ChildColumn, e.ParentTable, e.ParentColumn)
}

// Less orders edges lexicographically by (child table, child column, parent table, parent column).
func (e JoinEdge) Less(o JoinEdge) bool {
	if e.ChildTable != o.ChildTable {
		return e.ChildTable < o.ChildTable
	}
	if e.ChildColumn != o.ChildColumn {
		return e.ChildColumn < o.ChildColumn
	}
	if e.ParentTable != o.ParentTable {
		return e.ParentTable < o.ParentTable
	}
	return e.ParentColumn < o.ParentColumn
}

// UnknownFieldError is returned by Resolve when a table or column is not declared.
type UnknownFieldError struct {
	Table  string
	Column string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %s.%s", e.Table, e.Column)
}

// Registry is an immutable view over the declared tables and join edges.
type Registry struct {
	tables  []Table
	order   map[string]int
	columns map[string]map[string]domain.SemanticType
	edges   []JoinEdge
}

// New builds a registry, rejecting unsafe or duplicate names, tables without a numeric
// key column, unknown column types and edges that reference undeclared columns.
func New(tables []Table, edges []JoinEdge) (*Registry, error) {
	r := &Registry{
		order:   make(map[string]int, len(tables)),
		columns: make(map[string]map[string]domain.SemanticType, len(tables)),
	}
	for i, t := range tables {
		if err := sqlident.Validate(t.Name); err != nil {
			return nil, fmt.Errorf("table: %w", err)
		}
		if _, dup := r.order[t.Name]; dup {
			return nil, fmt.Errorf("duplicate table %q", t.Name)
		}
		cols := make(map[string]domain.SemanticType, len(t.Columns))
		for _, c := range t.Columns {
			if err := sqlident.Validate(c.Name); err != nil {
				return nil, fmt.Errorf("column of %s: %w", t.Name, err)
			}
			if _, dup := cols[c.Name]; dup {
				return nil, fmt.Errorf("duplicate column %s.%s", t.Name, c.Name)
			}
			if !c.Type.Valid() {
				return nil, fmt.Errorf("column %s.%s has unknown type %q", t.Name, c.Name, c.Type)
			}
			cols[c.Name] = c.Type
		}
		if cols[KeyColumn] != domain.TypeNumber {
			return nil, fmt.Errorf("table %q must declare a numeric %q column", t.Name, KeyColumn)
		}
		r.order[t.Name] = i
		r.columns[t.Name] = cols
		r.tables = append(r.tables, Table{Name: t.Name, Columns: append([]Column(nil), t.Columns...)})
	}
	for _, e := range edges {
		if _, err := r.Resolve(e.ChildTable, e.ChildColumn); err != nil {
			return nil, fmt.Errorf("join edge %s: %w", e, err)
		}
		if _, err := r.Resolve(e.ParentTable, e.ParentColumn); err != nil {
			return nil, fmt.Errorf("join edge %s: %w", e, err)
		}
		r.edges = append(r.edges, e)
	}
	sort.SliceStable(r.edges, func(i, j int) bool { return r.edges[i].Less(r.edges[j]) })
	return r, nil
}

// MustNew is New that panics on error. Use only for statically declared schemas.
func MustNew(tables []Table, edges []JoinEdge) *Registry {
	r, err := New(tables, edges)
	if err != nil {
		panic(err)
	}
	return r
}

// Tables returns the table names in declaration order.
func (r *Registry) Tables() []string {
	names := make([]string, len(r.tables))
	for i, t := range r.tables {
		names[i] = t.Name
	}
	return names
}

// HasTable reports whether the table is declared.
func (r *Registry) HasTable(table string) bool {
	_, ok := r.order[table]
	return ok
}

// Columns returns the columns of table in declaration order.
func (r *Registry) Columns(table string) ([]Column, error) {
	idx, ok := r.order[table]
	if !ok {
		return nil, &UnknownFieldError{Table: table}
	}
	return append([]Column(nil), r.tables[idx].Columns...), nil
}

// JoinEdges returns every join edge, sorted lexicographically.
func (r *Registry) JoinEdges() []JoinEdge {
	return append([]JoinEdge(nil), r.edges...)
}

// Resolve returns the semantic type of table.column.
func (r *Registry) Resolve(table, column string) (domain.SemanticType, error) {
	cols, ok := r.columns[table]
	if !ok {
		return "", &UnknownFieldError{Table: table, Column: column}
	}
	t, ok := cols[column]
	if !ok {
		return "", &UnknownFieldError{Table: table, Column: column}
	}
	return t, nil
}

// DeclarationIndex returns the position of table in declaration order, or -1.
func (r *Registry) DeclarationIndex(table string) int {
	if idx, ok := r.order[table]; ok {
		return idx
	}
	return -1
}
