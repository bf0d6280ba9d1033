// Package planner computes the join chain that connects every table a
// sub-report references to a single base table.
package planner

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"govreport/internal/domain"
	"govreport/internal/formula"
	"govreport/internal/schema"
)

// Join is one INNER JOIN of the plan: Table is joined to an already joined
// table through Edge.
type Join struct {
	Table string          `json:"table"`
	Edge  schema.JoinEdge `json:"edge"`
}

// Plan is a join plan rooted at Base. Joins are ordered so that the table on
// the other side of each edge is already in scope.
type Plan struct {
	Base   string   `json:"base"`
	Tables []string `json:"tables"`
	Joins  []Join   `json:"joins"`
}

// Planner builds join plans over a schema registry.
type Planner struct {
	schema *schema.Registry
}

// New creates a Planner.
func New(reg *schema.Registry) *Planner {
	return &Planner{schema: reg}
}

// Plan picks the most referenced table as base (ties go to the table declared
// first) and joins every other referenced table to it. With no column
// references the first declared table is used.
func (p *Planner) Plan(refs []formula.ColumnRef) (*Plan, error) {
	counts := map[string]int{}
	var tables []string
	for _, ref := range refs {
		if !p.schema.HasTable(ref.Table) {
			return nil, disconnected(fmt.Sprintf("table %q is not part of the schema", ref.Table), ref.Table)
		}
		if counts[ref.Table] == 0 {
			tables = append(tables, ref.Table)
		}
		counts[ref.Table]++
	}
	if len(tables) == 0 {
		all := p.schema.Tables()
		if len(all) == 0 {
			return nil, disconnected("schema declares no tables")
		}
		return &Plan{Base: all[0], Tables: []string{all[0]}}, nil
	}

	sort.SliceStable(tables, func(i, j int) bool {
		if counts[tables[i]] != counts[tables[j]] {
			return counts[tables[i]] > counts[tables[j]]
		}
		return p.schema.DeclarationIndex(tables[i]) < p.schema.DeclarationIndex(tables[j])
	})
	return p.PlanFrom(tables[0], tables)
}

type step struct {
	from string
	edge schema.JoinEdge
	// parallel holds every edge linking from and the stepped-to table; more
	// than one means the join column is ambiguous.
	parallel []schema.JoinEdge
}

// PlanFrom plans joins from base to each of tables.
func (p *Planner) PlanFrom(base string, tables []string) (*Plan, error) {
	if !p.schema.HasTable(base) {
		return nil, disconnected(fmt.Sprintf("table %q is not part of the schema", base), base)
	}

	adj := map[string][]schema.JoinEdge{}
	for _, e := range p.schema.JoinEdges() {
		if e.ChildTable == e.ParentTable {
			continue
		}
		adj[e.ChildTable] = append(adj[e.ChildTable], e)
		adj[e.ParentTable] = append(adj[e.ParentTable], e)
	}

	dist := map[string]int{base: 0}
	parent := map[string]step{}
	visited := []string{base}
	queue := []string{base}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range adj[cur] {
			next := e.ParentTable
			if next == cur {
				next = e.ChildTable
			}
			nd := dist[cur] + 1
			cd, ok := dist[next]
			if !ok {
				cd = math.MaxInt
			}

			if nd < cd {
				dist[next] = nd
				parent[next] = step{from: cur, edge: e, parallel: []schema.JoinEdge{e}}
				queue = append(queue, next)
				visited = append(visited, next)
			} else if nd == cd && parent[next].from == cur {
				st := parent[next]
				st.parallel = append(st.parallel, e)
				parent[next] = st
			}
		}
	}

	needed := map[string]bool{base: true}
	for _, t := range tables {
		if _, ok := dist[t]; !ok {
			return nil, disconnected(fmt.Sprintf("no join path from %q to %q", base, t), base, t)
		}
		for cur := t; !needed[cur]; cur = parent[cur].from {
			st := parent[cur]
			if len(st.parallel) > 1 {
				return nil, ambiguous(st.from, cur, st.parallel)
			}
			needed[cur] = true
		}
	}

	plan := &Plan{Base: base, Tables: dedupe(tables)}
	for _, t := range visited[1:] {
		if needed[t] {
			plan.Joins = append(plan.Joins, Join{Table: t, Edge: parent[t].edge})
		}
	}
	return plan, nil
}

func dedupe(tables []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(tables))
	for _, t := range tables {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func disconnected(msg string, tables ...string) error {
	return &domain.JoinError{JoinKind: domain.KindDisconnected, Message: msg, Tables: tables}
}

func ambiguous(from, to string, edges []schema.JoinEdge) error {
	names := make([]string, len(edges))
	for i, e := range edges {
		names[i] = e.String()
	}
	return &domain.JoinError{
		JoinKind: domain.KindAmbiguousJoin,
		Message:  fmt.Sprintf("ambiguous join between %q and %q: %s", from, to, strings.Join(names, ", ")),
		Tables:   []string{from, to},
	}
}
