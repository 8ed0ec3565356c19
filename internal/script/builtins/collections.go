package builtins

import (
	"github.com/rc1405/fiddler-sub000/internal/script"
)

func builtinArray(_ *script.Interpreter, args []script.Value) (script.Value, error) {
	out := make([]script.Value, len(args))
	copy(out, args)
	return script.Array(out), nil
}

func builtinPush(_ *script.Interpreter, args []script.Value) (script.Value, error) {
	if err := arity("push", args, 2); err != nil {
		return script.Value{}, err
	}
	if args[0].Kind != script.KindArray {
		return script.Value{}, script.ErrInvalidArgument("push() requires an array as first argument")
	}
	out := make([]script.Value, len(args[0].Array)+1)
	copy(out, args[0].Array)
	out[len(args[0].Array)] = args[1]
	return script.Array(out), nil
}

func builtinGet(_ *script.Interpreter, args []script.Value) (script.Value, error) {
	if err := arity("get", args, 2); err != nil {
		return script.Value{}, err
	}
	switch {
	case args[0].Kind == script.KindArray && args[1].Kind == script.KindInteger:
		idx := args[1].Int
		if idx < 0 {
			return script.Value{}, script.ErrInvalidArgument("array index cannot be negative")
		}
		if idx >= int64(len(args[0].Array)) {
			return script.Null(), nil
		}
		return args[0].Array[idx], nil
	case args[0].Kind == script.KindString && args[1].Kind == script.KindInteger:
		idx := args[1].Int
		if idx < 0 {
			return script.Value{}, script.ErrInvalidArgument("string index cannot be negative")
		}
		runes := []rune(args[0].Str)
		if idx >= int64(len(runes)) {
			return script.Null(), nil
		}
		return script.Str(string(runes[idx])), nil
	case args[0].Kind == script.KindDictionary && args[1].Kind == script.KindString:
		v, ok := args[0].Dict.Get(args[1].Str)
		if !ok {
			return script.Null(), nil
		}
		return *v, nil
	case args[0].Kind == script.KindArray || args[0].Kind == script.KindString:
		return script.Value{}, script.ErrInvalidArgument("array/string index must be an integer")
	case args[0].Kind == script.KindDictionary:
		return script.Value{}, script.ErrInvalidArgument("dictionary key must be a string")
	default:
		return script.Value{}, script.ErrInvalidArgument("get() requires an array, dictionary, or string as first argument")
	}
}

func builtinSet(_ *script.Interpreter, args []script.Value) (script.Value, error) {
	if err := arity("set", args, 3); err != nil {
		return script.Value{}, err
	}
	switch {
	case args[0].Kind == script.KindArray && args[1].Kind == script.KindInteger:
		idx := args[1].Int
		if idx < 0 {
			return script.Value{}, script.ErrInvalidArgument("array index cannot be negative")
		}
		out := make([]script.Value, len(args[0].Array))
		copy(out, args[0].Array)
		for int64(len(out)) <= idx {
			out = append(out, script.Null())
		}
		out[idx] = args[2]
		return script.Array(out), nil
	case args[0].Kind == script.KindDictionary && args[1].Kind == script.KindString:
		d := args[0].Dict.Clone()
		v := args[2]
		d.Set(args[1].Str, &v)
		return script.Dict(d), nil
	case args[0].Kind == script.KindArray:
		return script.Value{}, script.ErrInvalidArgument("array index must be an integer")
	case args[0].Kind == script.KindDictionary:
		return script.Value{}, script.ErrInvalidArgument("dictionary key must be a string")
	default:
		return script.Value{}, script.ErrInvalidArgument("set() requires an array or dictionary as first argument")
	}
}

func builtinDict(_ *script.Interpreter, _ []script.Value) (script.Value, error) {
	return script.Dict(script.NewOrderedDict()), nil
}

func builtinKeys(_ *script.Interpreter, args []script.Value) (script.Value, error) {
	if err := arity("keys", args, 1); err != nil {
		return script.Value{}, err
	}
	if args[0].Kind != script.KindDictionary {
		return script.Value{}, script.ErrInvalidArgument("keys() requires a dictionary argument")
	}
	ks := args[0].Dict.Keys()
	out := make([]script.Value, len(ks))
	for i, k := range ks {
		out[i] = script.Str(k)
	}
	return script.Array(out), nil
}

func builtinIsArray(_ *script.Interpreter, args []script.Value) (script.Value, error) {
	if err := arity("is_array", args, 1); err != nil {
		return script.Value{}, err
	}
	return script.Bool(args[0].Kind == script.KindArray), nil
}

func builtinIsDict(_ *script.Interpreter, args []script.Value) (script.Value, error) {
	if err := arity("is_dict", args, 1); err != nil {
		return script.Value{}, err
	}
	return script.Bool(args[0].Kind == script.KindDictionary), nil
}

func builtinDelete(_ *script.Interpreter, args []script.Value) (script.Value, error) {
	if err := arity("delete", args, 2); err != nil {
		return script.Value{}, err
	}
	switch {
	case args[0].Kind == script.KindDictionary && args[1].Kind == script.KindString:
		d := args[0].Dict.Clone()
		d.Delete(args[1].Str)
		return script.Dict(d), nil
	case args[0].Kind == script.KindArray && args[1].Kind == script.KindInteger:
		idx := args[1].Int
		if idx < 0 {
			return script.Value{}, script.ErrInvalidArgument("array index cannot be negative")
		}
		if idx >= int64(len(args[0].Array)) {
			return args[0], nil
		}
		out := make([]script.Value, 0, len(args[0].Array)-1)
		out = append(out, args[0].Array[:idx]...)
		out = append(out, args[0].Array[idx+1:]...)
		return script.Array(out), nil
	default:
		return script.Value{}, script.ErrInvalidArgument("delete() requires a dictionary and string key, or array and integer index")
	}
}

func builtinContains(_ *script.Interpreter, args []script.Value) (script.Value, error) {
	if err := arity("contains", args, 2); err != nil {
		return script.Value{}, err
	}
	switch args[0].Kind {
	case script.KindArray:
		for _, v := range args[0].Array {
			if script.Equal(v, args[1]) {
				return script.Bool(true), nil
			}
		}
		return script.Bool(false), nil
	case script.KindDictionary:
		if args[1].Kind != script.KindString {
			return script.Value{}, script.ErrInvalidArgument("dictionary contains() requires a string key as second argument")
		}
		_, ok := args[0].Dict.Get(args[1].Str)
		return script.Bool(ok), nil
	default:
		return script.Value{}, script.ErrInvalidArgument("contains() requires an array or dictionary as first argument")
	}
}

// Collections returns the array/dictionary built-in function table.
func Collections() map[string]script.Builtin {
	return map[string]script.Builtin{
		"array":    builtinArray,
		"push":     builtinPush,
		"get":      builtinGet,
		"set":      builtinSet,
		"dict":     builtinDict,
		"keys":     builtinKeys,
		"is_array": builtinIsArray,
		"is_dict":  builtinIsDict,
		"delete":   builtinDelete,
		"contains": builtinContains,
	}
}
