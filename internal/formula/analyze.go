package formula

// Result is a parsed and type-checked formula.
type Result struct {
	Root       Node
	Info       *Info
	References []string
	Columns    []ColumnRef
	Canonical  string
}

// Analyze parses and type-checks src against env.
func Analyze(src string, env Env) (*Result, error) {
	root, err := Parse(src)
	if err != nil {
		return nil, err
	}
	info, err := Check(root, env)
	if err != nil {
		return nil, err
	}
	return &Result{
		Root:       root,
		Info:       info,
		References: References(root),
		Columns:    Columns(root),
		Canonical:  Format(root),
	}, nil
}
