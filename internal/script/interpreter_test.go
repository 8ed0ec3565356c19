package script_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rc1405/fiddler-sub000/internal/script"
	"github.com/rc1405/fiddler-sub000/internal/script/builtins"
)

func run(t *testing.T, source string) script.Value {
	t.Helper()
	lex := script.NewLexer(source)
	tokens, err := lex.Tokenize()
	require.NoError(t, err)
	parser := script.NewParser(tokens)
	prog, err := parser.Parse()
	require.NoError(t, err)
	interp := script.NewInterpreter(builtins.All())
	v, err := interp.Run(prog)
	require.NoError(t, err)
	return v
}

func runErr(t *testing.T, source string) error {
	t.Helper()
	lex := script.NewLexer(source)
	tokens, err := lex.Tokenize()
	require.NoError(t, err)
	parser := script.NewParser(tokens)
	prog, err := parser.Parse()
	require.NoError(t, err)
	interp := script.NewInterpreter(builtins.All())
	_, err = interp.Run(prog)
	return err
}

func TestIntegerLiteral(t *testing.T) {
	assert.Equal(t, script.Int(42), run(t, "42;"))
}

func TestStringConcatenation(t *testing.T) {
	assert.Equal(t, script.Str("ab"), run(t, `"a" + "b";`))
}

func TestArithmetic(t *testing.T) {
	assert.Equal(t, script.Int(8), run(t, "5 + 3;"))
	assert.Equal(t, script.Int(2), run(t, "5 - 3;"))
	assert.Equal(t, script.Int(15), run(t, "5 * 3;"))
	assert.Equal(t, script.Int(3), run(t, "6 / 2;"))
	assert.Equal(t, script.Int(1), run(t, "7 % 3;"))
}

func TestComparison(t *testing.T) {
	assert.Equal(t, script.Bool(true), run(t, "5 > 3;"))
	assert.Equal(t, script.Bool(false), run(t, "5 < 3;"))
	assert.Equal(t, script.Bool(true), run(t, "5 == 5;"))
	assert.Equal(t, script.Bool(true), run(t, "5 != 3;"))
}

func TestLogical(t *testing.T) {
	assert.Equal(t, script.Bool(true), run(t, "true && true;"))
	assert.Equal(t, script.Bool(false), run(t, "true && false;"))
	assert.Equal(t, script.Bool(true), run(t, "true || false;"))
	assert.Equal(t, script.Bool(false), run(t, "!true;"))
}

func TestVariableAssignment(t *testing.T) {
	assert.Equal(t, script.Int(20), run(t, "let x = 10; x = 20; x;"))
}

func TestIfElse(t *testing.T) {
	assert.Equal(t, script.Int(1), run(t, "let x = 0; if (true) { x = 1; } x;"))
	assert.Equal(t, script.Int(2), run(t, "let x = 0; if (false) { x = 1; } else { x = 2; } x;"))
}

func TestForLoop(t *testing.T) {
	assert.Equal(t, script.Int(10), run(t, "let sum = 0; for (let i = 0; i < 5; i = i + 1) { sum = sum + i; } sum;"))
}

func TestFunctionCall(t *testing.T) {
	assert.Equal(t, script.Int(5), run(t, "fn add(a, b) { return a + b; } add(2, 3);"))
}

func TestRecursion(t *testing.T) {
	src := `
		fn fact(n) {
			if (n <= 1) { return 1; }
			return n * fact(n - 1);
		}
		fact(5);
	`
	assert.Equal(t, script.Int(120), run(t, src))
}

func TestStackOverflow(t *testing.T) {
	src := `fn loop_forever(n) { return loop_forever(n + 1); } loop_forever(0);`
	err := runErr(t, src)
	require.Error(t, err)
}

func TestDivisionByZero(t *testing.T) {
	require.Error(t, runErr(t, "5 / 0;"))
}

func TestDivisionByZeroFloatIsInf(t *testing.T) {
	v := run(t, "float(1) / float(0);")
	assert.Equal(t, script.KindFloat, v.Kind)
	assert.True(t, math.IsInf(v.Float, 1))

	v = run(t, "1 / float(0);")
	assert.Equal(t, script.KindFloat, v.Kind)
	assert.True(t, math.IsInf(v.Float, 1))
}

func TestUndefinedVariable(t *testing.T) {
	require.Error(t, runErr(t, "x;"))
}

func TestUndefinedFunction(t *testing.T) {
	require.Error(t, runErr(t, "foo();"))
}

func TestWrongArgumentCount(t *testing.T) {
	require.Error(t, runErr(t, "fn add(a, b) { return a + b; } add(1);"))
}

func TestMethodCallSugar(t *testing.T) {
	assert.Equal(t, script.Int(5), run(t, `"hello".len();`))
	assert.Equal(t, script.Str("HELLO"), run(t, `"hello".uppercase();`))
}

func TestMethodCallChaining(t *testing.T) {
	assert.Equal(t, script.Str("OLLEH"), run(t, `"hello".reverse().uppercase();`))
}

func TestArrayAndDictLiterals(t *testing.T) {
	assert.Equal(t, script.Int(3), run(t, `len([1, 2, 3]);`))
	assert.Equal(t, script.Str("bob"), run(t, `get({"name": "bob"}, "name");`))
}
