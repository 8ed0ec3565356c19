package script_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rc1405/fiddler-sub000/internal/script"
)

func parse(t *testing.T, src string) *script.Program {
	t.Helper()
	toks, err := script.NewLexer(src).Tokenize()
	require.NoError(t, err)
	prog, err := script.NewParser(toks).Parse()
	require.NoError(t, err)
	return prog
}

func TestParseLetStatement(t *testing.T) {
	prog := parse(t, "let x = 10;")
	require.Len(t, prog.Statements, 1)
	let, ok := prog.Statements[0].(script.LetStatement)
	require.True(t, ok)
	assert.Equal(t, "x", let.Name)
}

func TestParseIfRequiresParens(t *testing.T) {
	_, err := script.NewParser(mustTokenize(t, "if true { }")).Parse()
	require.Error(t, err)
}

func TestParseForStatement(t *testing.T) {
	prog := parse(t, "for (let i = 0; i < 10; i = i + 1) { print(i); }")
	require.Len(t, prog.Statements, 1)
	_, ok := prog.Statements[0].(script.ForStatement)
	require.True(t, ok)
}

func TestParseFunctionDefinition(t *testing.T) {
	prog := parse(t, "fn add(a, b) { return a + b; }")
	fn, ok := prog.Statements[0].(script.FunctionDecl)
	require.True(t, ok)
	assert.Equal(t, "add", fn.Name)
	assert.Equal(t, []string{"a", "b"}, fn.Params)
}

func TestParseBinaryPrecedence(t *testing.T) {
	prog := parse(t, "1 + 2 * 3;")
	stmt, ok := prog.Statements[0].(script.ExpressionStatement)
	require.True(t, ok)
	bin, ok := stmt.Expr.(script.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, script.OpAdd, bin.Op)
	_, rightIsMul := bin.Right.(script.BinaryExpr)
	assert.True(t, rightIsMul)
}

func TestParseMethodCallSugar(t *testing.T) {
	prog := parse(t, `"hello".len();`)
	stmt := prog.Statements[0].(script.ExpressionStatement)
	mc, ok := stmt.Expr.(script.MethodCallExpr)
	require.True(t, ok)
	assert.Equal(t, "len", mc.Name)
}

func mustTokenize(t *testing.T, src string) []script.Token {
	t.Helper()
	toks, err := script.NewLexer(src).Tokenize()
	require.NoError(t, err)
	return toks
}
