// Package parser implements a recursive-descent parser for BUSY build
// descriptions, turning lexer.Lexer token streams into an *ast.File.
package parser

import (
	"fmt"
	"strconv"

	"github.com/busybuild/busy/internal/ast"
	"github.com/busybuild/busy/internal/lexer"
	"github.com/busybuild/busy/internal/token"
)

// SyntaxError is a structured parse failure with file/row/col, the BUSY
// analogue of the teacher's ParserError.
type SyntaxError struct {
	Pos     token.Position
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("ParseError at %s: %s", e.Pos, e.Message)
}

// Parser consumes a token stream and builds an *ast.File.
type Parser struct {
	l         *lexer.Lexer
	curToken  token.Token
	peekToken token.Token
	errors    []error
}

// New creates a Parser reading from l.
func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}
	p.next()
	p.next()
	return p
}

// Errors returns every SyntaxError accumulated during Parse.
func (p *Parser) Errors() []error { return p.errors }

func (p *Parser) next() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) addError(msg string) {
	p.errors = append(p.errors, &SyntaxError{Pos: p.curToken.Pos, Message: msg})
}

func (p *Parser) expect(t token.Type) bool {
	if p.curToken.Type != t {
		p.addError(fmt.Sprintf("expected %s, got %s %q", t, p.curToken.Type, p.curToken.Literal))
		return false
	}
	p.next()
	return true
}

// Parse reads every declaration until EOF, accumulating errors rather than
// stopping at the first one (so a single malformed declaration doesn't hide
// the rest of the file's errors).
func (p *Parser) Parse(path string) *ast.File {
	file := &ast.File{Path: path}
	for p.curToken.Type != token.EOF {
		start := p.curToken
		decl := p.parseDecl()
		if decl != nil {
			file.Decls = append(file.Decls, decl)
		}
		if p.curToken == start {
			// parseDecl made no progress; force advance to avoid looping.
			p.next()
		}
	}
	return file
}

func (p *Parser) parseDecl() ast.Decl {
	switch p.curToken.Type {
	case token.LET:
		// A failed parse returns a nil pointer; return a nil interface so
		// Parse's nil check drops it instead of keeping a typed nil.
		if vd := p.parseVarDecl(); vd != nil {
			return vd
		}
		return nil
	case token.SUBMOD:
		if sd := p.parseSubmodDecl(); sd != nil {
			return sd
		}
		return nil
	default:
		p.addError(fmt.Sprintf("expected 'let' or 'submod', got %s %q", p.curToken.Type, p.curToken.Literal))
		return nil
	}
}

// parseVarDecl parses `let NAME [!] : TYPE { fields... }`.
func (p *Parser) parseVarDecl() *ast.VarDecl {
	pos := p.curToken.Pos
	p.next() // consume 'let'

	if p.curToken.Type != token.IDENT {
		p.addError(fmt.Sprintf("expected identifier after 'let', got %q", p.curToken.Literal))
		return nil
	}
	name := p.curToken.Literal
	p.next()

	exported := false
	if p.curToken.Type == token.BANG {
		exported = true
		p.next()
	}

	if !p.expect(token.COLON) {
		return nil
	}

	if p.curToken.Type != token.IDENT {
		p.addError(fmt.Sprintf("expected type name, got %q", p.curToken.Literal))
		return nil
	}
	typeName := p.curToken.Literal
	p.next()

	decl := &ast.VarDecl{Name: name, Exported: exported, Type: typeName, Position: pos}

	if !p.expect(token.LBRACE) {
		return decl
	}
	for p.curToken.Type != token.RBRACE && p.curToken.Type != token.EOF {
		fa := p.parseFieldAssign()
		if fa != nil {
			decl.Fields = append(decl.Fields, *fa)
		}
		if p.curToken.Type == token.SEMI {
			p.next()
		}
	}
	p.expect(token.RBRACE)
	return decl
}

// parseSubmodDecl parses `submod NAME = ./dir`.
func (p *Parser) parseSubmodDecl() *ast.SubmodDecl {
	pos := p.curToken.Pos
	p.next() // consume 'submod'

	if p.curToken.Type != token.IDENT {
		p.addError(fmt.Sprintf("expected identifier after 'submod', got %q", p.curToken.Literal))
		return nil
	}
	name := p.curToken.Literal
	p.next()

	if !p.expect(token.ASSIGN) {
		return nil
	}

	if p.curToken.Type != token.PATH && p.curToken.Type != token.IDENT {
		p.addError(fmt.Sprintf("expected a path after '=', got %q", p.curToken.Literal))
		return nil
	}
	dir := p.curToken.Literal
	p.next()
	if p.curToken.Type == token.SEMI {
		p.next()
	}
	return &ast.SubmodDecl{Name: name, Dir: dir, Position: pos}
}

// parseFieldAssign parses `.field = value, value, ...` or `.field += ...`.
func (p *Parser) parseFieldAssign() *ast.FieldAssign {
	if p.curToken.Type != token.DOT {
		p.addError(fmt.Sprintf("expected '.field', got %q", p.curToken.Literal))
		p.next()
		return nil
	}
	p.next() // consume '.'

	if p.curToken.Type != token.IDENT {
		p.addError(fmt.Sprintf("expected field name, got %q", p.curToken.Literal))
		return nil
	}
	fa := &ast.FieldAssign{Field: p.curToken.Literal, Position: p.curToken.Pos}
	p.next()

	switch p.curToken.Type {
	case token.ASSIGN:
		fa.Append = false
	case token.PLUSEQ:
		fa.Append = true
	default:
		p.addError(fmt.Sprintf("expected '=' or '+=', got %q", p.curToken.Literal))
		return fa
	}
	p.next()

	fa.Values = append(fa.Values, p.parseValue())
	for p.curToken.Type == token.COMMA {
		p.next()
		fa.Values = append(fa.Values, p.parseValue())
	}
	return fa
}

func (p *Parser) parseValue() ast.Value {
	tok := p.curToken
	defer p.next()

	switch tok.Type {
	case token.STRING:
		return ast.Value{Kind: ast.ValString, Str: tok.Literal}
	case token.PATH:
		return ast.Value{Kind: ast.ValPath, Str: tok.Literal}
	case token.SYMBOL:
		return ast.Value{Kind: ast.ValSymbol, Str: tok.Literal}
	case token.TRUE:
		return ast.Value{Kind: ast.ValBool, Bool: true}
	case token.FALSE:
		return ast.Value{Kind: ast.ValBool, Bool: false}
	case token.INT:
		n, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			p.addError(fmt.Sprintf("invalid integer literal %q", tok.Literal))
		}
		return ast.Value{Kind: ast.ValInt, Int: n}
	case token.REAL:
		f, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			p.addError(fmt.Sprintf("invalid real literal %q", tok.Literal))
		}
		return ast.Value{Kind: ast.ValReal, Real: f}
	case token.IDENT:
		return ast.Value{Kind: ast.ValRef, Str: tok.Literal}
	default:
		p.addError(fmt.Sprintf("expected a value, got %s %q", tok.Type, tok.Literal))
		return ast.Value{Kind: ast.ValString, Str: tok.Literal}
	}
}
