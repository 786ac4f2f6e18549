// Package token implements the tokenizer described in spec.md §4.A: a
// trie-backed longest-match scanner over FlowQuery's keywords, operators,
// symbols, identifiers, numbers, strings, f-strings, and comments.
package token

import "fmt"

// Kind classifies a lexed Token.
type Kind int

const (
	EOF Kind = iota
	Keyword
	Operator
	Symbol
	Ident
	Int
	Float
	String
	FStringLiteral   // one literal segment of an f-string; Token.Final marks the last
	FStringExprStart // the `{` opening an embedded expression inside an f-string
	FStringExprEnd   // the `}` closing that embedded expression
	Comment
)

func (k Kind) String() string {
	switch k {
	case EOF:
		return "EOF"
	case Keyword:
		return "keyword"
	case Operator:
		return "operator"
	case Symbol:
		return "symbol"
	case Ident:
		return "identifier"
	case Int:
		return "int"
	case Float:
		return "float"
	case String:
		return "string"
	case FStringLiteral:
		return "f-string segment"
	case FStringExprStart:
		return "f-string expr start"
	case FStringExprEnd:
		return "f-string expr end"
	case Comment:
		return "comment"
	default:
		return "unknown"
	}
}

// Position is a 1-based line/column plus a 0-based byte offset into the
// source query text.
type Position struct {
	Line, Col, Offset int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Token is one lexeme produced by the Lexer.
type Token struct {
	Kind Kind
	// Text is the lexeme's source text for Keyword/Operator/Symbol/Ident,
	// the decoded string content for String/FString* segments, and the
	// literal digit text for Int/Float.
	Text string
	Pos  Position
	// Final marks the terminal literal segment of an f-string (the one
	// immediately followed by the closing quote), for Kind == FStringLiteral.
	Final bool
}

// Keywords is the case-insensitive keyword set. Matching is case-folded;
// Token.Text preserves the source casing of the input.
var Keywords = []string{
	"WITH", "UNWIND", "AS", "LOAD", "JSON", "FROM", "POST", "HEADERS",
	"MATCH", "OPTIONAL", "WHERE", "CALL", "YIELD",
	"CREATE", "VIRTUAL", "DELETE", "RELATIONSHIP", "NODE",
	"RETURN", "UNION", "ALL", "DISTINCT", "ORDER", "BY", "ASC", "DESC",
	"LIMIT", "SKIP",
	"AND", "OR", "NOT", "XOR", "IN", "IS", "NULL", "TRUE", "FALSE",
	"CONTAINS", "STARTS", "ENDS",
	"CASE", "WHEN", "THEN", "ELSE", "END",
}

// Operators is the multi-character and single-character operator set,
// ordered longest-first so a naive linear scan would also find the
// longest match; the trie makes the ordering immaterial but it documents
// intent.
var Operators = []string{
	"<>", "<=", ">=", "=", "<", ">",
	"+", "-", "*", "/", "%", "^",
}

// Symbols are structural punctuation: brackets, separators, path binder,
// and relationship arrows. A bare "-" is lexed as an Operator (it doubles
// as subtraction and as the undirected relationship dash; the parser
// disambiguates by context, per spec.md §4.A).
var Symbols = []string{
	"(", ")", "[", "]", "{", "}", ",", ":", ".", "..", "|", "->", "<-",
}
