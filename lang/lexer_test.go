package lang

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLexAssignment(t *testing.T) {
	l := NewLexer("x = 12\n")
	require.Equal(t, TokIdent, l.Next().Kind)
	require.Equal(t, TokEqual, l.Next().Kind)
	tok := l.Next()
	require.Equal(t, TokInt, tok.Kind)
	require.EqualValues(t, 12, tok.Int)
	require.Equal(t, TokNewline, l.Next().Kind)
	require.Equal(t, TokEOF, l.Next().Kind)
}

func TestLexPrintCallWithString(t *testing.T) {
	l := NewLexer(`print("hi")`)
	require.Equal(t, TokIdent, l.Next().Kind)
	require.Equal(t, TokLParen, l.Next().Kind)
	s := l.Next()
	require.Equal(t, TokStr, s.Kind)
	require.Equal(t, "hi", s.Text)
	require.Equal(t, TokRParen, l.Next().Kind)
}

func TestLexInterpolatedString(t *testing.T) {
	l := NewLexer(`print(f"{x}")`)
	require.Equal(t, TokIdent, l.Next().Kind)
	require.Equal(t, TokLParen, l.Next().Kind)
	tok := l.Next()
	require.Equal(t, TokInterpolatedString, tok.Kind)
	require.Len(t, tok.Parts, 1)
	require.Equal(t, PartExpr, tok.Parts[0].Kind)
	require.Equal(t, "x", tok.Parts[0].Expr)
}
