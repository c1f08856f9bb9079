package parser

import (
	"testing"

	"github.com/busybuild/busy/internal/ast"
	"github.com/busybuild/busy/internal/lexer"
)

func parse(t *testing.T, src string) *ast.File {
	t.Helper()
	p := New(lexer.New(src, "BUSY"))
	file := p.Parse("BUSY")
	if len(p.Errors()) != 0 {
		t.Fatalf("unexpected parse errors: %v", p.Errors())
	}
	return file
}

func TestParseHelloExecutable(t *testing.T) {
	src := `let hello ! : Executable {
		.sources += ./main.cpp
	}`
	file := parse(t, src)
	if len(file.Decls) != 1 {
		t.Fatalf("want 1 decl, got %d", len(file.Decls))
	}
	vd, ok := file.Decls[0].(*ast.VarDecl)
	if !ok {
		t.Fatalf("want *ast.VarDecl, got %T", file.Decls[0])
	}
	if vd.Name != "hello" || !vd.Exported || vd.Type != "Executable" {
		t.Fatalf("unexpected decl: %+v", vd)
	}
	if len(vd.Fields) != 1 || vd.Fields[0].Field != "sources" || !vd.Fields[0].Append {
		t.Fatalf("unexpected fields: %+v", vd.Fields)
	}
	if len(vd.Fields[0].Values) != 1 || vd.Fields[0].Values[0].Kind != ast.ValPath || vd.Fields[0].Values[0].Str != "./main.cpp" {
		t.Fatalf("unexpected value: %+v", vd.Fields[0].Values)
	}
}

func TestParseSubmod(t *testing.T) {
	file := parse(t, `submod lib = ./lib`)
	sd, ok := file.Decls[0].(*ast.SubmodDecl)
	if !ok {
		t.Fatalf("want *ast.SubmodDecl, got %T", file.Decls[0])
	}
	if sd.Name != "lib" || sd.Dir != "./lib" {
		t.Fatalf("unexpected submod: %+v", sd)
	}
}

func TestParseConfigMergeDeps(t *testing.T) {
	src := `let a : Config {
		.defines += "X=1"
	}
	let b ! : Executable {
		.sources += ./b.cpp
		.deps += a
	}`
	file := parse(t, src)
	if len(file.Decls) != 2 {
		t.Fatalf("want 2 decls, got %d", len(file.Decls))
	}
	b := file.Decls[1].(*ast.VarDecl)
	var depsField *ast.FieldAssign
	for i := range b.Fields {
		if b.Fields[i].Field == "deps" {
			depsField = &b.Fields[i]
		}
	}
	if depsField == nil {
		t.Fatalf("expected a deps field")
	}
	if depsField.Values[0].Kind != ast.ValRef || depsField.Values[0].Str != "a" {
		t.Fatalf("unexpected deps value: %+v", depsField.Values[0])
	}
}

func TestParseErrorRecoversAcrossDecls(t *testing.T) {
	src := `let broken ??? bad
	let ok : Library {
		.sources += ./ok.cpp
	}`
	p := New(lexer.New(src, "BUSY"))
	file := p.Parse("BUSY")
	if len(p.Errors()) == 0 {
		t.Fatalf("expected at least one error")
	}
	found := false
	for _, d := range file.Decls {
		if vd, ok := d.(*ast.VarDecl); ok && vd.Name == "ok" {
			found = true
		}
	}
	if !found {
		t.Fatalf("parser should recover and still parse the well-formed decl")
	}
}
