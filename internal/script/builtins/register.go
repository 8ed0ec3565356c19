package builtins

import "github.com/rc1405/fiddler-sub000/internal/script"

// All merges every builtin table (core, math, strings, collections, time)
// into the single map an Interpreter is constructed with.
func All() map[string]script.Builtin {
	out := make(map[string]script.Builtin)
	for _, table := range []map[string]script.Builtin{Core(), Math(), Strings(), Collections(), Time()} {
		for name, fn := range table {
			out[name] = fn
		}
	}
	return out
}
