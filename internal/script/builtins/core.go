// Package builtins supplies the interpreter's native function table,
// grouped the way original_source/fiddler-script splits core, math,
// strings, and collections concerns across builtins/*.rs.
package builtins

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/rc1405/fiddler-sub000/internal/script"
)

func arity(name string, args []script.Value, n int) error {
	if len(args) != n {
		return script.ErrWrongArgumentCount(n, len(args))
	}
	return nil
}

func builtinPrint(interp *script.Interpreter, args []script.Value) (script.Value, error) {
	out := ""
	for i, a := range args {
		if i > 0 {
			out += " "
		}
		out += a.Display()
	}
	interp.Emit(out)
	return script.Null(), nil
}

func builtinLen(_ *script.Interpreter, args []script.Value) (script.Value, error) {
	if err := arity("len", args, 1); err != nil {
		return script.Value{}, err
	}
	switch args[0].Kind {
	case script.KindString:
		return script.Int(int64(len(args[0].Str))), nil
	case script.KindBytes:
		return script.Int(int64(len(args[0].Bytes))), nil
	case script.KindArray:
		return script.Int(int64(len(args[0].Array))), nil
	case script.KindDictionary:
		return script.Int(int64(args[0].Dict.Len())), nil
	default:
		return script.Value{}, script.ErrInvalidArgument("len() requires a string, bytes, array, or dictionary argument")
	}
}

func builtinStr(_ *script.Interpreter, args []script.Value) (script.Value, error) {
	if err := arity("str", args, 1); err != nil {
		return script.Value{}, err
	}
	return script.Str(args[0].Display()), nil
}

func builtinInt(_ *script.Interpreter, args []script.Value) (script.Value, error) {
	if err := arity("int", args, 1); err != nil {
		return script.Value{}, err
	}
	v := args[0]
	switch v.Kind {
	case script.KindString:
		n, err := strconv.ParseInt(v.Str, 10, 64)
		if err != nil {
			return script.Value{}, script.ErrInvalidArgument("cannot convert '" + v.Str + "' to integer")
		}
		return script.Int(n), nil
	case script.KindInteger:
		return v, nil
	case script.KindFloat:
		return script.Int(int64(v.Float)), nil
	case script.KindBoolean:
		if v.Bool {
			return script.Int(1), nil
		}
		return script.Int(0), nil
	case script.KindBytes:
		n, err := strconv.ParseInt(string(v.Bytes), 10, 64)
		if err != nil {
			return script.Value{}, script.ErrInvalidArgument("cannot convert bytes to integer")
		}
		return script.Int(n), nil
	case script.KindArray:
		return script.Int(int64(len(v.Array))), nil
	case script.KindDictionary:
		return script.Int(int64(v.Dict.Len())), nil
	case script.KindNull:
		return script.Int(0), nil
	default:
		return script.Value{}, script.ErrInvalidArgument("cannot convert value to integer")
	}
}

func builtinFloat(_ *script.Interpreter, args []script.Value) (script.Value, error) {
	if err := arity("float", args, 1); err != nil {
		return script.Value{}, err
	}
	v := args[0]
	switch v.Kind {
	case script.KindFloat:
		return v, nil
	case script.KindInteger:
		return script.Float(float64(v.Int)), nil
	case script.KindBoolean:
		if v.Bool {
			return script.Float(1), nil
		}
		return script.Float(0), nil
	case script.KindString:
		f, err := strconv.ParseFloat(v.Str, 64)
		if err != nil {
			return script.Value{}, script.ErrInvalidArgument("cannot convert '" + v.Str + "' to float")
		}
		return script.Float(f), nil
	case script.KindBytes:
		f, err := strconv.ParseFloat(string(v.Bytes), 64)
		if err != nil {
			return script.Value{}, script.ErrInvalidArgument("cannot convert bytes to float")
		}
		return script.Float(f), nil
	default:
		return script.Value{}, script.ErrInvalidArgument("cannot convert value to float")
	}
}

func builtinGetenv(_ *script.Interpreter, args []script.Value) (script.Value, error) {
	if err := arity("getenv", args, 1); err != nil {
		return script.Value{}, err
	}
	if args[0].Kind != script.KindString {
		return script.Value{}, script.ErrInvalidArgument("getenv() requires a string argument")
	}
	v, ok := os.LookupEnv(args[0].Str)
	if !ok {
		return script.Null(), nil
	}
	return script.Str(v), nil
}

func builtinParseJSON(_ *script.Interpreter, args []script.Value) (script.Value, error) {
	if err := arity("parse_json", args, 1); err != nil {
		return script.Value{}, err
	}
	var raw []byte
	switch args[0].Kind {
	case script.KindBytes:
		raw = args[0].Bytes
	case script.KindString:
		raw = []byte(args[0].Str)
	default:
		return script.Value{}, script.ErrInvalidArgument("parse_json() requires bytes or string argument")
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return script.Value{}, script.ErrInvalidArgument("invalid JSON: " + err.Error())
	}
	return jsonToValue(decoded), nil
}

func jsonToValue(v any) script.Value {
	switch t := v.(type) {
	case nil:
		return script.Null()
	case bool:
		return script.Bool(t)
	case float64:
		if t == float64(int64(t)) {
			return script.Int(int64(t))
		}
		return script.Float(t)
	case string:
		return script.Str(t)
	case []any:
		arr := make([]script.Value, len(t))
		for i, e := range t {
			arr[i] = jsonToValue(e)
		}
		return script.Array(arr)
	case map[string]any:
		d := script.NewOrderedDict()
		for k, e := range t {
			val := jsonToValue(e)
			d.Set(k, &val)
		}
		return script.Dict(d)
	default:
		return script.Null()
	}
}

func builtinBytesToString(_ *script.Interpreter, args []script.Value) (script.Value, error) {
	if err := arity("bytes_to_string", args, 1); err != nil {
		return script.Value{}, err
	}
	switch args[0].Kind {
	case script.KindBytes:
		return script.Str(string(args[0].Bytes)), nil
	case script.KindString:
		return args[0], nil
	default:
		return script.Value{}, script.ErrInvalidArgument("bytes_to_string() requires bytes or string argument")
	}
}

func builtinBytes(_ *script.Interpreter, args []script.Value) (script.Value, error) {
	if err := arity("bytes", args, 1); err != nil {
		return script.Value{}, err
	}
	switch args[0].Kind {
	case script.KindBytes:
		return args[0], nil
	case script.KindString:
		return script.Bytes([]byte(args[0].Str)), nil
	default:
		return script.Bytes([]byte(args[0].Display())), nil
	}
}

// Core returns the core built-in function table: print/len/str/int/
// float/getenv/parse_json/bytes/bytes_to_string.
func Core() map[string]script.Builtin {
	return map[string]script.Builtin{
		"print":           builtinPrint,
		"len":             builtinLen,
		"str":             builtinStr,
		"int":             builtinInt,
		"float":           builtinFloat,
		"getenv":          builtinGetenv,
		"parse_json":      builtinParseJSON,
		"bytes_to_string": builtinBytesToString,
		"bytes":           builtinBytes,
	}
}
