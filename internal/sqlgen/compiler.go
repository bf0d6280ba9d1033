// Package sqlgen compiles validated sub-report configurations into
// parameterized PostgreSQL queries.
package sqlgen

import (
	"fmt"
	"strconv"
	"strings"

	"govreport/internal/domain"
	"govreport/internal/formula"
	"govreport/internal/planner"
	"govreport/internal/schema"
	"govreport/internal/validate"
)

// Compiled is the output of the compiler. DataSQL ends with OFFSET and FETCH
// placeholders numbered after Args; use PageArgs to bind a page.
type Compiled struct {
	DataSQL  string `json:"data_sql"`
	CountSQL string `json:"count_sql"`
	Args     []any  `json:"args"`
	// FieldTypes maps each field id to the semantic type of its projected value.
	FieldTypes map[string]domain.SemanticType `json:"field_types"`
	// Columns lists field ids in projection order.
	Columns []string `json:"columns"`
	// Expressions maps each field id to its unaggregated SQL expression.
	Expressions map[string]string `json:"expressions"`
	Plan        *planner.Plan     `json:"plan"`
}

// PageArgs returns the arguments for DataSQL restricted to the given 1-based page.
func (c *Compiled) PageArgs(page, pageSize int) []any {
	if page < 1 {
		page = 1
	}
	args := make([]any, 0, len(c.Args)+2)
	args = append(args, c.Args...)
	return append(args, int64(page-1)*int64(pageSize), int64(pageSize))
}

// Compiler lowers analyses to SQL.
type Compiler struct {
	planner *planner.Planner
}

// New creates a Compiler over the schema registry.
func New(reg *schema.Registry) *Compiler {
	return &Compiler{planner: planner.New(reg)}
}

type build struct {
	analysis *validate.Analysis
	params   *params
	fields   map[string]fieldSQL
}

func (b *build) scalar(f *validate.Field) string {
	sql := b.fields[f.Spec.ID]
	if sql.compound {
		return "(" + sql.expr + ")"
	}
	return sql.expr
}

// Compile plans joins for a and renders its data and count queries.
func (c *Compiler) Compile(a *validate.Analysis) (*Compiled, error) {
	plan, err := c.planner.Plan(a.TableReferences())
	if err != nil {
		return nil, err
	}

	b := &build{analysis: a, params: &params{}, fields: make(map[string]fieldSQL, len(a.Fields))}
	for _, id := range a.Order {
		f, ok := a.Field(id)
		if !ok || f.Root == nil {
			return nil, domain.ErrInternal("compile sub-report", fmt.Errorf("field %s was not analysed", id))
		}
		l := &lowerer{params: b.params, info: f.Info, fields: b.fields}
		expr, err := l.lower(f.Root)
		if err != nil {
			return nil, domain.ErrInternal("compile sub-report", fmt.Errorf("field %s: %w", id, err))
		}
		_, compound := f.Root.(*formula.Binary)
		b.fields[id] = fieldSQL{expr: expr, compound: compound}
	}

	cfg := a.Config
	grouped := cfg.Grouped()
	out := &Compiled{
		FieldTypes:  make(map[string]domain.SemanticType, len(a.Fields)),
		Expressions: make(map[string]string, len(a.Fields)),
		Plan:        plan,
	}

	projections := make([]string, 0, len(a.Fields))
	for _, f := range a.Fields {
		id := f.Spec.ID
		expr := b.fields[id].expr
		typ := f.Type
		if grouped && !f.Grouped && f.Spec.GroupByAggregate != nil {
			agg := *f.Spec.GroupByAggregate
			expr = aggregateSQL[agg] + "(" + expr + ")"
			if agg == domain.AggregateCount || agg == domain.AggregateAvg {
				typ = domain.TypeNumber
			}
		}
		projections = append(projections, expr+" AS "+quoteIdent(id))
		out.Columns = append(out.Columns, id)
		out.FieldTypes[id] = typ
		out.Expressions[id] = b.fields[id].expr
	}

	var from strings.Builder
	from.WriteString(" FROM ")
	from.WriteString(quoteIdent(plan.Base))
	for _, j := range plan.Joins {
		e := j.Edge
		fmt.Fprintf(&from, " INNER JOIN %s ON %s = %s",
			quoteIdent(j.Table), qualified(e.ChildTable, e.ChildColumn), qualified(e.ParentTable, e.ParentColumn))
	}

	inner := "SELECT " + strings.Join(projections, ", ") + from.String()
	if cfg.Filters != nil {
		where, err := b.filter(*cfg.Filters)
		if err != nil {
			return nil, domain.ErrInternal("compile sub-report filters", err)
		}
		inner += " WHERE " + where
	}

	var groupExprs []string
	if grouped {
		for _, id := range cfg.GroupBy {
			groupExprs = append(groupExprs, b.fields[id].expr)
		}
		inner += " GROUP BY " + strings.Join(groupExprs, ", ")
	}

	out.Args = b.params.args
	if out.Args == nil {
		out.Args = []any{}
	}
	n := len(out.Args)
	out.DataSQL = fmt.Sprintf("%s ORDER BY %s OFFSET $%s ROWS FETCH NEXT $%s ROWS ONLY",
		inner, strings.Join(orderBy(cfg, plan, groupExprs), ", "), strconv.Itoa(n+1), strconv.Itoa(n+2))
	out.CountSQL = "SELECT COUNT(*) FROM (" + inner + ") AS t"
	return out, nil
}

// orderBy puts user sort keys first, then a total default order: the key of
// every joined table when ungrouped, or the smallest base key of each group
// followed by the group expressions.
func orderBy(cfg domain.SubReportConfig, plan *planner.Plan, groupExprs []string) []string {
	keys := make([]string, 0, len(cfg.Sort)+len(plan.Joins)+1)
	for _, s := range cfg.Sort {
		dir := " ASC"
		if s.Descending {
			dir = " DESC"
		}
		keys = append(keys, quoteIdent(s.Field)+dir)
	}
	base := qualified(plan.Base, schema.KeyColumn)
	if len(groupExprs) == 0 {
		keys = append(keys, base+" ASC")
		for _, j := range plan.Joins {
			keys = append(keys, qualified(j.Table, schema.KeyColumn)+" ASC")
		}
		return keys
	}
	keys = append(keys, "MIN("+base+") ASC")
	for _, g := range groupExprs {
		keys = append(keys, g+" ASC")
	}
	return keys
}
