package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func lexAll(t *testing.T, src string) []Token {
	t.Helper()
	l := New(src)
	var toks []Token
	for {
		tok, err := l.Next()
		require.NoError(t, err)
		toks = append(toks, tok)
		if tok.Kind == EOF {
			break
		}
	}
	return toks
}

func kinds(toks []Token) []Kind {
	out := make([]Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func texts(toks []Token) []string {
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = t.Text
	}
	return out
}

func TestLexKeywordsAreCaseInsensitive(t *testing.T) {
	toks := lexAll(t, "match Match MATCH")
	require.Equal(t, []Kind{Keyword, Keyword, Keyword, EOF}, kinds(toks))
	require.Equal(t, []string{"match", "Match", "MATCH"}, texts(toks)[:3])
}

func TestLexIdentVsKeyword(t *testing.T) {
	toks := lexAll(t, "matches")
	require.Equal(t, Ident, toks[0].Kind)
	require.Equal(t, "matches", toks[0].Text)
}

func TestLexNumbers(t *testing.T) {
	tests := []struct {
		src  string
		kind Kind
	}{
		{"42", Int},
		{"3.14", Float},
		{"1e10", Float},
		{"1.5e-3", Float},
		{"2e", Int}, // trailing bare "e" is not a valid exponent, so it's not consumed
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			toks := lexAll(t, tt.src)
			require.Equal(t, tt.kind, toks[0].Kind)
		})
	}
}

func TestLexStringEscapes(t *testing.T) {
	toks := lexAll(t, `"a\nb\tc\\d"`)
	require.Equal(t, String, toks[0].Kind)
	require.Equal(t, "a\nb\tc\\d", toks[0].Text)
}

func TestLexUnterminatedStringErrors(t *testing.T) {
	l := New(`"unterminated`)
	_, err := l.Next()
	require.Error(t, err)
}

func TestLexBacktickIdent(t *testing.T) {
	toks := lexAll(t, "`weird name`")
	require.Equal(t, Ident, toks[0].Kind)
	require.Equal(t, "weird name", toks[0].Text)
}

func TestLexOperatorsLongestMatch(t *testing.T) {
	toks := lexAll(t, "<= < <> = -> <- -")
	require.Equal(t, []string{"<=", "<", "<>", "=", "->", "<-", "-"}, texts(toks)[:7])
}

func TestLexSymbols(t *testing.T) {
	toks := lexAll(t, "(){}[],:.|")
	want := []string{"(", ")", "{", "}", "[", "]", ",", ":", ".", "|"}
	require.Equal(t, want, texts(toks)[:len(want)])
	for _, tok := range toks[:len(want)] {
		require.Equal(t, Symbol, tok.Kind)
	}
}

func TestLexRangeDotsVsSingleDot(t *testing.T) {
	toks := lexAll(t, "a.b 1..5")
	require.Equal(t, ".", toks[1].Text)
	require.Equal(t, "..", toks[4].Text)
}

func TestLexBlockComment(t *testing.T) {
	toks := lexAll(t, "1 /* skip me */ 2")
	require.Equal(t, []Kind{Int, Int, EOF}, kinds(toks))
}

func TestLexPositionsTrackLineAndColumn(t *testing.T) {
	toks := lexAll(t, "a\nb")
	require.Equal(t, Position{Line: 1, Col: 1, Offset: 0}, toks[0].Pos)
	require.Equal(t, Position{Line: 2, Col: 1, Offset: 2}, toks[1].Pos)
}

func TestLexFString(t *testing.T) {
	toks := lexAll(t, `f"hello {name}!"`)
	require.Equal(t, []Kind{FStringLiteral, FStringExprStart, Ident, FStringExprEnd, FStringLiteral, EOF}, kinds(toks))
	require.Equal(t, "hello ", toks[0].Text)
	require.False(t, toks[0].Final)
	require.Equal(t, "name", toks[2].Text)
	require.Equal(t, "!", toks[4].Text)
	require.True(t, toks[4].Final)
}

func TestLexFStringBraceEscapes(t *testing.T) {
	toks := lexAll(t, `f"{{literal braces}}"`)
	require.Equal(t, FStringLiteral, toks[0].Kind)
	require.Equal(t, "{literal braces}", toks[0].Text)
	require.True(t, toks[0].Final)
}

func TestLexFStringNestedBraceExpr(t *testing.T) {
	toks := lexAll(t, `f"{ {a: 1}.a }"`)
	// the embedded expression is itself a map literal, so the lexer must
	// track brace depth rather than closing on the first '}'.
	kindsGot := kinds(toks)
	require.Contains(t, kindsGot, FStringExprStart)
	require.Contains(t, kindsGot, FStringExprEnd)
	var exprEndCount int
	for _, k := range kindsGot {
		if k == FStringExprEnd {
			exprEndCount++
		}
	}
	require.Equal(t, 1, exprEndCount)
}

func TestLexUnexpectedCharacterErrors(t *testing.T) {
	l := New("@")
	_, err := l.Next()
	require.Error(t, err)
}

func TestLexEOFIsStableAtEnd(t *testing.T) {
	l := New("")
	tok, err := l.Next()
	require.NoError(t, err)
	require.Equal(t, EOF, tok.Kind)
	// a further call past EOF keeps returning EOF rather than panicking,
	// since Next() checks eof() before reading any byte.
	tok2, err := l.Next()
	require.NoError(t, err)
	require.Equal(t, EOF, tok2.Kind)
}
