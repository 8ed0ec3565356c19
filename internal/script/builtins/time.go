package builtins

import (
	"time"

	"github.com/rc1405/fiddler-sub000/internal/script"
)

// Time returns the clock built-in function table: timestamp (seconds),
// timestamp_millis, timestamp_micros, timestamp_iso8601, and the epoch
// alias for timestamp. Not grounded on original_source (its lexer/
// builtins modules never retrieved a time.rs), so this is a supplemented
// addition following the rest of the builtin tables' arity/error-handling
// shape.
func Time() map[string]script.Builtin {
	now := func() time.Time { return time.Now() }
	return map[string]script.Builtin{
		"timestamp": func(_ *script.Interpreter, args []script.Value) (script.Value, error) {
			if err := arity("timestamp", args, 0); err != nil {
				return script.Value{}, err
			}
			return script.Int(now().Unix()), nil
		},
		"epoch": func(_ *script.Interpreter, args []script.Value) (script.Value, error) {
			if err := arity("epoch", args, 0); err != nil {
				return script.Value{}, err
			}
			return script.Int(now().Unix()), nil
		},
		"timestamp_millis": func(_ *script.Interpreter, args []script.Value) (script.Value, error) {
			if err := arity("timestamp_millis", args, 0); err != nil {
				return script.Value{}, err
			}
			return script.Int(now().UnixMilli()), nil
		},
		"timestamp_micros": func(_ *script.Interpreter, args []script.Value) (script.Value, error) {
			if err := arity("timestamp_micros", args, 0); err != nil {
				return script.Value{}, err
			}
			return script.Int(now().UnixMicro()), nil
		},
		"timestamp_iso8601": func(_ *script.Interpreter, args []script.Value) (script.Value, error) {
			if err := arity("timestamp_iso8601", args, 0); err != nil {
				return script.Value{}, err
			}
			return script.Str(now().UTC().Format(time.RFC3339)), nil
		},
	}
}
