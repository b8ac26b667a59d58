package lang

import "github.com/pkg/errors"

// Parser is a small recursive-descent parser over the toy language's
// statement grammar: a newline-separated sequence of assignments and
// expression statements.
type Parser struct {
	lex *Lexer
	tok Token
}

func NewParser(src string) *Parser {
	p := &Parser{lex: NewLexer(src)}
	p.advance()
	return p
}

func (p *Parser) advance() { p.tok = p.lex.Next() }

// ParseProgram parses every statement until EOF.
func (p *Parser) ParseProgram() ([]Stmt, error) {
	var stmts []Stmt
	for p.tok.Kind != TokEOF {
		if p.tok.Kind == TokNewline {
			p.advance()
			continue
		}
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

func (p *Parser) parseStmt() (Stmt, error) {
	if p.tok.Kind == TokIdent {
		name := p.tok.Text
		save := p.tok
		p.advance()
		if p.tok.Kind == TokEqual {
			p.advance()
			expr, err := p.parseExpr()
			if err != nil {
				return Stmt{}, err
			}
			return Stmt{Kind: StmtAssign, Ident: name, Expr: expr}, nil
		}
		// Not an assignment after all: reparse as an expression
		// statement starting from the identifier we already consumed.
		expr, err := p.parseExprFromIdent(save)
		if err != nil {
			return Stmt{}, err
		}
		return Stmt{Kind: StmtExpr, Expr: expr}, nil
	}
	expr, err := p.parseExpr()
	if err != nil {
		return Stmt{}, err
	}
	return Stmt{Kind: StmtExpr, Expr: expr}, nil
}

func (p *Parser) parseExpr() (Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return Expr{}, err
	}
	for p.tok.Kind == TokPlus {
		p.advance()
		right, err := p.parsePrimary()
		if err != nil {
			return Expr{}, err
		}
		l, r := left, right
		left = Expr{Kind: ExprBinaryAdd, Left: &l, Right: &r}
	}
	return left, nil
}

func (p *Parser) parseExprFromIdent(identTok Token) (Expr, error) {
	if p.tok.Kind == TokLParen {
		return p.parseCall(identTok.Text)
	}
	return Expr{Kind: ExprIdent, Ident: identTok.Text}, nil
}

func (p *Parser) parsePrimary() (Expr, error) {
	switch p.tok.Kind {
	case TokInt:
		v := p.tok.Int
		p.advance()
		return Expr{Kind: ExprInt, IntVal: v}, nil
	case TokStr:
		s := p.tok.Text
		p.advance()
		return Expr{Kind: ExprStr, StrVal: s}, nil
	case TokInterpolatedString:
		parts := p.tok.Parts
		p.advance()
		return Expr{Kind: ExprInterp, Parts: parts}, nil
	case TokIdent:
		name := p.tok.Text
		p.advance()
		if p.tok.Kind == TokLParen {
			return p.parseCall(name)
		}
		return Expr{Kind: ExprIdent, Ident: name}, nil
	default:
		return Expr{}, errors.Errorf("lang: unexpected token kind %d while parsing expression", p.tok.Kind)
	}
}

func (p *Parser) parseCall(name string) (Expr, error) {
	p.advance() // consume '('
	var args []Expr
	for p.tok.Kind != TokRParen {
		if p.tok.Kind == TokEOF {
			return Expr{}, errors.Errorf("lang: unterminated call to %q", name)
		}
		arg, err := p.parseExpr()
		if err != nil {
			return Expr{}, err
		}
		args = append(args, arg)
	}
	p.advance() // consume ')'
	return Expr{Kind: ExprCall, CallName: name, CallArgs: args}, nil
}
