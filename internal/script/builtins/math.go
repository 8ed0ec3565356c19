package builtins

import (
	"math"

	"github.com/rc1405/fiddler-sub000/internal/script"
)

func builtinAbs(_ *script.Interpreter, args []script.Value) (script.Value, error) {
	if err := arity("abs", args, 1); err != nil {
		return script.Value{}, err
	}
	switch args[0].Kind {
	case script.KindInteger:
		n := args[0].Int
		if n == math.MinInt64 {
			return script.Int(math.MaxInt64), nil
		}
		if n < 0 {
			n = -n
		}
		return script.Int(n), nil
	case script.KindFloat:
		return script.Float(math.Abs(args[0].Float)), nil
	default:
		return script.Value{}, script.ErrInvalidArgument("abs() requires a numeric argument")
	}
}

func builtinCeil(_ *script.Interpreter, args []script.Value) (script.Value, error) {
	if err := arity("ceil", args, 1); err != nil {
		return script.Value{}, err
	}
	switch args[0].Kind {
	case script.KindInteger:
		return args[0], nil
	case script.KindFloat:
		return script.Int(int64(math.Ceil(args[0].Float))), nil
	default:
		return script.Value{}, script.ErrInvalidArgument("ceil() requires a numeric argument")
	}
}

func builtinFloor(_ *script.Interpreter, args []script.Value) (script.Value, error) {
	if err := arity("floor", args, 1); err != nil {
		return script.Value{}, err
	}
	switch args[0].Kind {
	case script.KindInteger:
		return args[0], nil
	case script.KindFloat:
		return script.Int(int64(math.Floor(args[0].Float))), nil
	default:
		return script.Value{}, script.ErrInvalidArgument("floor() requires a numeric argument")
	}
}

func builtinRound(_ *script.Interpreter, args []script.Value) (script.Value, error) {
	if err := arity("round", args, 1); err != nil {
		return script.Value{}, err
	}
	switch args[0].Kind {
	case script.KindInteger:
		return args[0], nil
	case script.KindFloat:
		return script.Int(int64(math.Round(args[0].Float))), nil
	default:
		return script.Value{}, script.ErrInvalidArgument("round() requires a numeric argument")
	}
}

// Math returns the abs/ceil/floor/round built-in function table.
func Math() map[string]script.Builtin {
	return map[string]script.Builtin{
		"abs":   builtinAbs,
		"ceil":  builtinCeil,
		"floor": builtinFloor,
		"round": builtinRound,
	}
}
