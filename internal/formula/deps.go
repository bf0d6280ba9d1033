package formula

// References returns the sibling field UUIDs referenced by n, in order of first
// appearance.
func References(n Node) []string {
	var out []string
	seen := map[string]bool{}
	Walk(n, func(x Node) bool {
		if ref, ok := x.(*FieldRef); ok && !ref.IsColumn() && !seen[ref.UUID] {
			seen[ref.UUID] = true
			out = append(out, ref.UUID)
		}
		return true
	})
	return out
}

// ColumnRef is a schema column referenced directly by a formula.
type ColumnRef struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

// Columns returns the schema columns referenced by n, in order of first appearance.
func Columns(n Node) []ColumnRef {
	var out []ColumnRef
	seen := map[ColumnRef]bool{}
	Walk(n, func(x Node) bool {
		if ref, ok := x.(*FieldRef); ok && ref.IsColumn() {
			c := ColumnRef{Table: ref.Table, Column: ref.Column}
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
		return true
	})
	return out
}

// Graph is a dependency graph over field ids. Edges point from a field to the
// fields it references. Order fixes the traversal order so results are
// deterministic.
type Graph struct {
	Order []string
	Edges map[string][]string
}

const (
	white = iota
	gray
	black
)

// FindCycle runs a three-color depth-first search and returns the first cycle
// found as a closed path (first element repeated at the end), or nil.
func (g Graph) FindCycle() []string {
	color := make(map[string]int, len(g.Order))
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		color[id] = gray
		stack = append(stack, id)
		for _, next := range g.Edges[id] {
			switch color[next] {
			case gray:
				for i, s := range stack {
					if s == next {
						cycle := append([]string(nil), stack[i:]...)
						return append(cycle, next)
					}
				}
			case white:
				if cycle := visit(next); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return nil
	}

	for _, id := range g.Order {
		if color[id] == white {
			if cycle := visit(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// TopoOrder returns the ids so that every field follows the fields it
// references. Ids on a cycle, ids referencing unknown fields, and ids that
// depend on either are omitted.
func (g Graph) TopoOrder() []string {
	state := make(map[string]int, len(g.Order))
	ok := make(map[string]bool, len(g.Order))
	known := make(map[string]bool, len(g.Order))
	for _, id := range g.Order {
		known[id] = true
	}
	var out []string

	var visit func(id string) bool
	visit = func(id string) bool {
		if !known[id] {
			return false
		}
		switch state[id] {
		case gray:
			return false
		case black:
			return ok[id]
		}
		state[id] = gray
		good := true
		for _, next := range g.Edges[id] {
			if !visit(next) {
				good = false
			}
		}
		state[id] = black
		ok[id] = good
		if good {
			out = append(out, id)
		}
		return good
	}

	for _, id := range g.Order {
		visit(id)
	}
	return out
}
