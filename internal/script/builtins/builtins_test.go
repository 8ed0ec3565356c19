package builtins_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rc1405/fiddler-sub000/internal/script"
	"github.com/rc1405/fiddler-sub000/internal/script/builtins"
)

func call(t *testing.T, name string, args ...script.Value) (script.Value, error) {
	t.Helper()
	fn, ok := builtins.All()[name]
	require.True(t, ok, "builtin %q not registered", name)
	interp := script.NewInterpreter(builtins.All())
	return fn(interp, args)
}

func TestLen(t *testing.T) {
	v, err := call(t, "len", script.Str("hello"))
	require.NoError(t, err)
	assert.Equal(t, script.Int(5), v)

	v, err = call(t, "len", script.Str(""))
	require.NoError(t, err)
	assert.Equal(t, script.Int(0), v)

	_, err = call(t, "len", script.Int(42))
	require.Error(t, err)

	_, err = call(t, "len")
	require.Error(t, err)
}

func TestStrAndInt(t *testing.T) {
	v, err := call(t, "str", script.Int(42))
	require.NoError(t, err)
	assert.Equal(t, script.Str("42"), v)

	v, err = call(t, "int", script.Str("42"))
	require.NoError(t, err)
	assert.Equal(t, script.Int(42), v)

	v, err = call(t, "int", script.Bool(true))
	require.NoError(t, err)
	assert.Equal(t, script.Int(1), v)

	_, err = call(t, "int", script.Str("not a number"))
	require.Error(t, err)
}

func TestGetenv(t *testing.T) {
	t.Setenv("FIDDLER_TEST_VAR", "test_value")
	v, err := call(t, "getenv", script.Str("FIDDLER_TEST_VAR"))
	require.NoError(t, err)
	assert.Equal(t, script.Str("test_value"), v)

	v, err = call(t, "getenv", script.Str("NONEXISTENT_VAR_12345"))
	require.NoError(t, err)
	assert.Equal(t, script.Null(), v)
}

func TestAbs(t *testing.T) {
	v, err := call(t, "abs", script.Int(-42))
	require.NoError(t, err)
	assert.Equal(t, script.Int(42), v)

	v, err = call(t, "abs", script.Float(-3.14))
	require.NoError(t, err)
	assert.Equal(t, script.Float(3.14), v)
}

func TestCeilFloorRound(t *testing.T) {
	v, _ := call(t, "ceil", script.Float(3.14))
	assert.Equal(t, script.Int(4), v)

	v, _ = call(t, "floor", script.Float(-3.14))
	assert.Equal(t, script.Int(-4), v)

	v, _ = call(t, "round", script.Float(3.5))
	assert.Equal(t, script.Int(4), v)

	v, _ = call(t, "round", script.Float(-3.5))
	assert.Equal(t, script.Int(-4), v)
}

func TestLinesAndSplit(t *testing.T) {
	v, err := call(t, "lines", script.Str("a\nb\nc"))
	require.NoError(t, err)
	assert.Equal(t, script.Array([]script.Value{script.Str("a"), script.Str("b"), script.Str("c")}), v)

	v, err = call(t, "split", script.Str("a,b,c"), script.Str(","))
	require.NoError(t, err)
	assert.Equal(t, script.Array([]script.Value{script.Str("a"), script.Str("b"), script.Str("c")}), v)
}

func TestTrimAndAffixes(t *testing.T) {
	v, _ := call(t, "trim", script.Str("  hello  "))
	assert.Equal(t, script.Str("hello"), v)

	v, _ = call(t, "trim_prefix", script.Str("hello world"), script.Str("hello "))
	assert.Equal(t, script.Str("world"), v)

	v, _ = call(t, "trim_suffix", script.Str("hello.txt"), script.Str(".txt"))
	assert.Equal(t, script.Str("hello"), v)

	v, _ = call(t, "has_prefix", script.Str("hello world"), script.Str("hello"))
	assert.Equal(t, script.Bool(true), v)

	v, _ = call(t, "has_suffix", script.Str("hello.txt"), script.Str(".txt"))
	assert.Equal(t, script.Bool(true), v)
}

func TestReverse(t *testing.T) {
	v, _ := call(t, "reverse", script.Str("hello"))
	assert.Equal(t, script.Str("olleh"), v)

	v, _ = call(t, "reverse", script.Array([]script.Value{script.Int(1), script.Int(2), script.Int(3)}))
	assert.Equal(t, script.Array([]script.Value{script.Int(3), script.Int(2), script.Int(1)}), v)
}

func TestArrayPushGetSet(t *testing.T) {
	arr := script.Array([]script.Value{script.Int(1), script.Int(2), script.Int(3)})

	v, err := call(t, "push", arr, script.Int(4))
	require.NoError(t, err)
	assert.Equal(t, script.Array([]script.Value{script.Int(1), script.Int(2), script.Int(3), script.Int(4)}), v)

	v, err = call(t, "get", arr, script.Int(1))
	require.NoError(t, err)
	assert.Equal(t, script.Int(2), v)

	v, err = call(t, "set", arr, script.Int(5), script.Int(99))
	require.NoError(t, err)
	assert.Equal(t, script.Array([]script.Value{
		script.Int(1), script.Int(2), script.Int(3), script.Null(), script.Null(), script.Int(99),
	}), v)
}

func TestDictOps(t *testing.T) {
	d, err := call(t, "dict")
	require.NoError(t, err)

	d, err = call(t, "set", d, script.Str("name"), script.Str("Alice"))
	require.NoError(t, err)

	v, err := call(t, "get", d, script.Str("name"))
	require.NoError(t, err)
	assert.Equal(t, script.Str("Alice"), v)

	keys, err := call(t, "keys", d)
	require.NoError(t, err)
	assert.Equal(t, script.Array([]script.Value{script.Str("name")}), keys)

	has, err := call(t, "contains", d, script.Str("name"))
	require.NoError(t, err)
	assert.Equal(t, script.Bool(true), has)

	d2, err := call(t, "delete", d, script.Str("name"))
	require.NoError(t, err)
	keys2, _ := call(t, "keys", d2)
	assert.Equal(t, script.Array([]script.Value{}), keys2)
}

func TestIsArrayIsDict(t *testing.T) {
	v, _ := call(t, "is_array", script.Array(nil))
	assert.Equal(t, script.Bool(true), v)

	v, _ = call(t, "is_dict", script.Array(nil))
	assert.Equal(t, script.Bool(false), v)
}

func TestParseJSON(t *testing.T) {
	v, err := call(t, "parse_json", script.Str(`{"key": "value"}`))
	require.NoError(t, err)
	require.Equal(t, script.KindDictionary, v.Kind)
	got, ok := v.Dict.Get("key")
	require.True(t, ok)
	assert.Equal(t, script.Str("value"), *got)

	_, err = call(t, "parse_json", script.Bytes([]byte("not valid json")))
	require.Error(t, err)
}
