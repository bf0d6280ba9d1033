package formula

import "sort"

// Variadic marks a function without an upper arity bound.
const Variadic = -1

// Function describes a registered formula function. Args lists the accepted
// type set per position; when MaxArgs is Variadic the last entry repeats.
type Function struct {
	Name    string
	MinArgs int
	MaxArgs int
	Args    []TypeSet
	// DatePartArg is the index of an argument that must be a date part string
	// literal, or -1.
	DatePartArg int
	// Returns computes the result type from the inferred argument types.
	Returns func(args []Type) Type
}

func returns(t Type) func([]Type) Type {
	return func([]Type) Type { return t }
}

// argSet returns the accepted set for argument i.
func (f *Function) argSet(i int) TypeSet {
	if i < len(f.Args) {
		return f.Args[i]
	}
	return f.Args[len(f.Args)-1]
}

func numeric(name string, arity int) *Function {
	args := make([]TypeSet, arity)
	for i := range args {
		args[i] = SetNumber
	}
	return &Function{Name: name, MinArgs: arity, MaxArgs: arity, Args: args, DatePartArg: -1, Returns: returns(TypeNumber)}
}

func variadicNumeric(name string) *Function {
	return &Function{Name: name, MinArgs: 1, MaxArgs: Variadic, Args: []TypeSet{SetNumber}, DatePartArg: -1, Returns: returns(TypeNumber)}
}

var functions = map[string]*Function{
	"SUM":     variadicNumeric("SUM"),
	"AVERAGE": variadicNumeric("AVERAGE"),
	"MAX":     variadicNumeric("MAX"),
	"MIN":     variadicNumeric("MIN"),
	"MOD":     numeric("MOD", 2),
	"POWER":   numeric("POWER", 2),
	"ROUND":   numeric("ROUND", 2),
	"CEIL":    numeric("CEIL", 1),
	"FLOOR":   numeric("FLOOR", 1),
	"LOG":     numeric("LOG", 1),
	"SQRT":    numeric("SQRT", 1),
	"ABS":     numeric("ABS", 1),
	"DATEDIFF": {
		Name: "DATEDIFF", MinArgs: 3, MaxArgs: 3,
		Args:        []TypeSet{SetString, SetDate, SetDate},
		DatePartArg: 0,
		Returns:     returns(TypeNumber),
	},
	"DATEPART": {
		Name: "DATEPART", MinArgs: 2, MaxArgs: 2,
		Args:        []TypeSet{SetString, SetDate},
		DatePartArg: 0,
		Returns:     returns(TypeNumber),
	},
	"DATEADD": {
		Name: "DATEADD", MinArgs: 3, MaxArgs: 3,
		Args:        []TypeSet{SetString, SetNumber, SetDate},
		DatePartArg: 0,
		Returns:     returns(TypeDate),
	},
	"TODAY": {
		Name: "TODAY", MinArgs: 0, MaxArgs: 0,
		DatePartArg: -1,
		Returns:     returns(TypeDate),
	},
	"IF": {
		Name: "IF", MinArgs: 3, MaxArgs: 3,
		Args:        []TypeSet{SetBoolean, SetAny, SetAny},
		DatePartArg: -1,
		Returns: func(args []Type) Type {
			return unify(args[1], args[2])
		},
	},
}

// LookupFunction returns the registered function with the given upper-case name.
func LookupFunction(name string) (*Function, bool) {
	f, ok := functions[name]
	return f, ok
}

// FunctionNames returns the registered function names in sorted order.
func FunctionNames() []string {
	names := make([]string, 0, len(functions))
	for name := range functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
