// Package lang implements the toy expression language's front end: a
// lexer, a recursive-descent parser, and a code generator that lowers the
// resulting AST to bytecode against the asm/constpool/hostfn contracts.
// Grounded on original_source/src/lexer (token shape) and
// original_source/src/codegen (AST shape and lowering rules) — this repo's
// own implementation, not a translation of the Rust source.
package lang

import (
	"strings"
)

// TokenKind enumerates the toy language's lexical categories.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokIdent
	TokInt
	TokStr
	TokInterpolatedString
	TokEqual
	TokPlus
	TokLParen
	TokRParen
	TokNewline
)

// StringPartKind distinguishes literal text from an embedded expression
// inside an interpolated string.
type StringPartKind int

const (
	PartText StringPartKind = iota
	PartExpr
)

// StringPart is one chunk of an interpolated string literal.
type StringPart struct {
	Kind StringPartKind
	Text string // valid when Kind == PartText
	Expr string // valid when Kind == PartExpr: the raw identifier text
}

// Token is one lexical token.
type Token struct {
	Kind  TokenKind
	Text  string       // raw text for Ident/Int/Str
	Int   int64        // parsed value for TokInt
	Parts []StringPart // populated for TokInterpolatedString
}

// Lexer scans a toy-language source string into a Token stream.
type Lexer struct {
	src []rune
	pos int
}

func NewLexer(src string) *Lexer {
	return &Lexer{src: []rune(src)}
}

func (l *Lexer) peek() (rune, bool) {
	if l.pos >= len(l.src) {
		return 0, false
	}
	return l.src[l.pos], true
}

func (l *Lexer) advance() rune {
	r := l.src[l.pos]
	l.pos++
	return r
}

// Next returns the next token, or a TokEOF token once the source is
// exhausted.
func (l *Lexer) Next() Token {
	for {
		r, ok := l.peek()
		if !ok {
			return Token{Kind: TokEOF}
		}
		switch {
		case r == '\n':
			l.advance()
			return Token{Kind: TokNewline}
		case r == ' ' || r == '\t' || r == '\r':
			l.advance()
			continue
		case r == '=':
			l.advance()
			return Token{Kind: TokEqual}
		case r == '+':
			l.advance()
			return Token{Kind: TokPlus}
		case r == '(':
			l.advance()
			return Token{Kind: TokLParen}
		case r == ')':
			l.advance()
			return Token{Kind: TokRParen}
		case r == '"':
			return l.lexString()
		case r == 'f' && l.lookaheadIsInterpolated():
			return l.lexInterpolatedString()
		case isDigit(r):
			return l.lexInt()
		case isIdentStart(r):
			return l.lexIdent()
		default:
			// An unrecognized rune is skipped rather than surfaced: the
			// front end is a toy collaborator, not a validating parser
			// for arbitrary input.
			l.advance()
			continue
		}
	}
}

func (l *Lexer) lookaheadIsInterpolated() bool {
	return l.pos+1 < len(l.src) && l.src[l.pos+1] == '"'
}

func (l *Lexer) lexString() Token {
	l.advance() // opening quote
	var sb strings.Builder
	for {
		r, ok := l.peek()
		if !ok || r == '"' {
			if ok {
				l.advance()
			}
			break
		}
		sb.WriteRune(l.advance())
	}
	return Token{Kind: TokStr, Text: sb.String()}
}

func (l *Lexer) lexInterpolatedString() Token {
	l.advance() // 'f'
	l.advance() // opening quote
	var parts []StringPart
	var text strings.Builder
	for {
		r, ok := l.peek()
		if !ok || r == '"' {
			if ok {
				l.advance()
			}
			break
		}
		if r == '{' {
			if text.Len() > 0 {
				parts = append(parts, StringPart{Kind: PartText, Text: text.String()})
				text.Reset()
			}
			l.advance()
			var expr strings.Builder
			for {
				r2, ok2 := l.peek()
				if !ok2 || r2 == '}' {
					if ok2 {
						l.advance()
					}
					break
				}
				expr.WriteRune(l.advance())
			}
			parts = append(parts, StringPart{Kind: PartExpr, Expr: expr.String()})
			continue
		}
		text.WriteRune(l.advance())
	}
	if text.Len() > 0 {
		parts = append(parts, StringPart{Kind: PartText, Text: text.String()})
	}
	return Token{Kind: TokInterpolatedString, Parts: parts}
}

func (l *Lexer) lexInt() Token {
	var sb strings.Builder
	for {
		r, ok := l.peek()
		if !ok || !isDigit(r) {
			break
		}
		sb.WriteRune(l.advance())
	}
	var v int64
	for _, c := range sb.String() {
		v = v*10 + int64(c-'0')
	}
	return Token{Kind: TokInt, Text: sb.String(), Int: v}
}

func (l *Lexer) lexIdent() Token {
	var sb strings.Builder
	for {
		r, ok := l.peek()
		if !ok || !(isIdentStart(r) || isDigit(r)) {
			break
		}
		sb.WriteRune(l.advance())
	}
	return Token{Kind: TokIdent, Text: sb.String()}
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }
func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
