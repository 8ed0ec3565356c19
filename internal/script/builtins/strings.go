package builtins

import (
	"strings"
	"unicode/utf8"

	"github.com/rc1405/fiddler-sub000/internal/script"
)

func stringOrBytes(v script.Value) (string, bool) {
	switch v.Kind {
	case script.KindString:
		return v.Str, true
	case script.KindBytes:
		return string(v.Bytes), true
	default:
		return "", false
	}
}

func builtinLines(_ *script.Interpreter, args []script.Value) (script.Value, error) {
	if err := arity("lines", args, 1); err != nil {
		return script.Value{}, err
	}
	s, ok := stringOrBytes(args[0])
	if !ok {
		return script.Value{}, script.ErrInvalidArgument("lines() requires a string or bytes argument")
	}
	parts := strings.Split(s, "\n")
	out := make([]script.Value, len(parts))
	for i, p := range parts {
		out[i] = script.Str(p)
	}
	return script.Array(out), nil
}

func builtinCapitalize(_ *script.Interpreter, args []script.Value) (script.Value, error) {
	if err := arity("capitalize", args, 1); err != nil {
		return script.Value{}, err
	}
	s, ok := stringOrBytes(args[0])
	if !ok {
		return script.Value{}, script.ErrInvalidArgument("capitalize() requires a string argument")
	}
	if s == "" {
		return script.Str(""), nil
	}
	r, size := utf8.DecodeRuneInString(s)
	return script.Str(strings.ToUpper(string(r)) + s[size:]), nil
}

func builtinLowercase(_ *script.Interpreter, args []script.Value) (script.Value, error) {
	if err := arity("lowercase", args, 1); err != nil {
		return script.Value{}, err
	}
	s, ok := stringOrBytes(args[0])
	if !ok {
		return script.Value{}, script.ErrInvalidArgument("lowercase() requires a string argument")
	}
	return script.Str(strings.ToLower(s)), nil
}

func builtinUppercase(_ *script.Interpreter, args []script.Value) (script.Value, error) {
	if err := arity("uppercase", args, 1); err != nil {
		return script.Value{}, err
	}
	s, ok := stringOrBytes(args[0])
	if !ok {
		return script.Value{}, script.ErrInvalidArgument("uppercase() requires a string argument")
	}
	return script.Str(strings.ToUpper(s)), nil
}

func builtinTrim(_ *script.Interpreter, args []script.Value) (script.Value, error) {
	if err := arity("trim", args, 1); err != nil {
		return script.Value{}, err
	}
	s, ok := stringOrBytes(args[0])
	if !ok {
		return script.Value{}, script.ErrInvalidArgument("trim() requires a string argument")
	}
	return script.Str(strings.TrimSpace(s)), nil
}

func builtinTrimPrefix(_ *script.Interpreter, args []script.Value) (script.Value, error) {
	if err := arity("trim_prefix", args, 2); err != nil {
		return script.Value{}, err
	}
	s, ok := stringOrBytes(args[0])
	if !ok {
		return script.Value{}, script.ErrInvalidArgument("trim_prefix() requires a string as first argument")
	}
	if args[1].Kind != script.KindString {
		return script.Value{}, script.ErrInvalidArgument("trim_prefix() requires a string as second argument")
	}
	return script.Str(strings.TrimPrefix(s, args[1].Str)), nil
}

func builtinTrimSuffix(_ *script.Interpreter, args []script.Value) (script.Value, error) {
	if err := arity("trim_suffix", args, 2); err != nil {
		return script.Value{}, err
	}
	s, ok := stringOrBytes(args[0])
	if !ok {
		return script.Value{}, script.ErrInvalidArgument("trim_suffix() requires a string as first argument")
	}
	if args[1].Kind != script.KindString {
		return script.Value{}, script.ErrInvalidArgument("trim_suffix() requires a string as second argument")
	}
	return script.Str(strings.TrimSuffix(s, args[1].Str)), nil
}

func builtinHasPrefix(_ *script.Interpreter, args []script.Value) (script.Value, error) {
	if err := arity("has_prefix", args, 2); err != nil {
		return script.Value{}, err
	}
	s, ok := stringOrBytes(args[0])
	if !ok {
		return script.Value{}, script.ErrInvalidArgument("has_prefix() requires a string as first argument")
	}
	if args[1].Kind != script.KindString {
		return script.Value{}, script.ErrInvalidArgument("has_prefix() requires a string as second argument")
	}
	return script.Bool(strings.HasPrefix(s, args[1].Str)), nil
}

func builtinHasSuffix(_ *script.Interpreter, args []script.Value) (script.Value, error) {
	if err := arity("has_suffix", args, 2); err != nil {
		return script.Value{}, err
	}
	s, ok := stringOrBytes(args[0])
	if !ok {
		return script.Value{}, script.ErrInvalidArgument("has_suffix() requires a string as first argument")
	}
	if args[1].Kind != script.KindString {
		return script.Value{}, script.ErrInvalidArgument("has_suffix() requires a string as second argument")
	}
	return script.Bool(strings.HasSuffix(s, args[1].Str)), nil
}

func builtinSplit(_ *script.Interpreter, args []script.Value) (script.Value, error) {
	if err := arity("split", args, 2); err != nil {
		return script.Value{}, err
	}
	s, ok := stringOrBytes(args[0])
	if !ok {
		return script.Value{}, script.ErrInvalidArgument("split() requires a string as first argument")
	}
	if args[1].Kind != script.KindString {
		return script.Value{}, script.ErrInvalidArgument("split() requires a string as second argument")
	}
	parts := strings.Split(s, args[1].Str)
	out := make([]script.Value, len(parts))
	for i, p := range parts {
		out[i] = script.Str(p)
	}
	return script.Array(out), nil
}

func builtinReverse(_ *script.Interpreter, args []script.Value) (script.Value, error) {
	if err := arity("reverse", args, 1); err != nil {
		return script.Value{}, err
	}
	switch args[0].Kind {
	case script.KindString:
		runes := []rune(args[0].Str)
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return script.Str(string(runes)), nil
	case script.KindArray:
		src := args[0].Array
		out := make([]script.Value, len(src))
		for i, v := range src {
			out[len(src)-1-i] = v
		}
		return script.Array(out), nil
	case script.KindBytes:
		src := args[0].Bytes
		out := make([]byte, len(src))
		for i, b := range src {
			out[len(src)-1-i] = b
		}
		return script.Bytes(out), nil
	default:
		return script.Value{}, script.ErrInvalidArgument("reverse() requires a string, array, or bytes argument")
	}
}

// Strings returns the string-manipulation built-in function table.
func Strings() map[string]script.Builtin {
	return map[string]script.Builtin{
		"lines":        builtinLines,
		"capitalize":   builtinCapitalize,
		"lowercase":    builtinLowercase,
		"uppercase":    builtinUppercase,
		"trim":         builtinTrim,
		"trim_prefix":  builtinTrimPrefix,
		"trim_suffix":  builtinTrimSuffix,
		"has_prefix":   builtinHasPrefix,
		"has_suffix":   builtinHasSuffix,
		"split":        builtinSplit,
		"reverse":      builtinReverse,
	}
}
