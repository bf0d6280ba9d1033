package sqlgen

import (
	"strconv"

	"govreport/internal/domain"
	"govreport/internal/sqlident"
)

func quoteIdent(name string) string { return sqlident.Quote(name) }

func qualified(table, column string) string { return sqlident.Qualified(table, column) }

// params collects bound arguments in placeholder order.
type params struct {
	args []any
}

// bind appends v and returns its $n placeholder.
func (p *params) bind(v any) string {
	p.args = append(p.args, v)
	return "$" + strconv.Itoa(len(p.args))
}

// bindTyped binds v and casts the placeholder to the SQL type of t, so that
// untyped string arguments compare correctly against dates.
func (p *params) bindTyped(v any, t domain.SemanticType) string {
	ph := p.bind(v)
	switch t {
	case domain.TypeDate:
		return "CAST(" + ph + " AS TIMESTAMP)"
	case domain.TypeString:
		return "CAST(" + ph + " AS TEXT)"
	}
	return ph
}

var aggregateSQL = map[domain.Aggregate]string{
	domain.AggregateSum:   "SUM",
	domain.AggregateAvg:   "AVG",
	domain.AggregateMin:   "MIN",
	domain.AggregateMax:   "MAX",
	domain.AggregateCount: "COUNT",
}
