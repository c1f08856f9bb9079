package lexer

import (
	"testing"

	"github.com/busybuild/busy/internal/token"
)

func TestNextTokenBasicDecl(t *testing.T) {
	input := `let hello ! : Executable {
		.sources += ./main.cpp
		.defines += "X=1"
	}`

	want := []token.Type{
		token.LET, token.IDENT, token.BANG, token.COLON, token.IDENT, token.LBRACE,
		token.DOT, token.IDENT, token.PLUSEQ, token.PATH,
		token.DOT, token.IDENT, token.PLUSEQ, token.STRING,
		token.RBRACE, token.EOF,
	}

	l := New(input, "BUSY")
	for i, wt := range want {
		tok := l.NextToken()
		if tok.Type != wt {
			t.Fatalf("token %d: want %s, got %s (%q)", i, wt, tok.Type, tok.Literal)
		}
	}
}

func TestNestedBlockComments(t *testing.T) {
	input := `/* outer /* inner */ still-outer */ let`
	l := New(input, "BUSY")
	tok := l.NextToken()
	if tok.Type != token.LET {
		t.Fatalf("want LET after nested block comment, got %s %q", tok.Type, tok.Literal)
	}
}

func TestLineComment(t *testing.T) {
	input := "# a comment\nlet"
	l := New(input, "BUSY")
	tok := l.NextToken()
	if tok.Type != token.LET {
		t.Fatalf("want LET after line comment, got %s", tok.Type)
	}
}

func TestSubmodAndPaths(t *testing.T) {
	input := `submod lib = ./lib`
	l := New(input, "BUSY")
	want := []token.Type{token.SUBMOD, token.IDENT, token.ASSIGN, token.PATH, token.EOF}
	for i, wt := range want {
		tok := l.NextToken()
		if tok.Type != wt {
			t.Fatalf("token %d: want %s got %s %q", i, wt, tok.Type, tok.Literal)
		}
	}
}

func TestSymbol(t *testing.T) {
	l := New("`Target", "BUSY")
	tok := l.NextToken()
	if tok.Type != token.SYMBOL || tok.Literal != "Target" {
		t.Fatalf("want SYMBOL(Target), got %s %q", tok.Type, tok.Literal)
	}
}
