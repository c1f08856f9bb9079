// Package ast defines the untyped parse tree produced by the BUSY parser.
package ast

import "github.com/busybuild/busy/internal/token"

// File is a single parsed BUSY (or BUSY.busy) file.
type File struct {
	Path  string // absolute path to the file on disk
	Decls []Decl
}

// Decl is any top-level declaration: a `let` var-decl or a `submod`
// directive.
type Decl interface {
	declNode()
	Pos() token.Position
}

// VarDecl is `let NAME [!] : TYPE { fields... }`.
type VarDecl struct {
	Name     string
	Exported bool // trailing "!"
	Type     string
	Fields   []FieldAssign
	Position token.Position
}

func (*VarDecl) declNode()             {}
func (d *VarDecl) Pos() token.Position { return d.Position }

// SubmodDecl is `submod NAME = ./dir`.
type SubmodDecl struct {
	Name     string
	Dir      string
	Position token.Position
}

func (*SubmodDecl) declNode()             {}
func (d *SubmodDecl) Pos() token.Position { return d.Position }

// FieldAssign is one `.field = value...` or `.field += value...` inside a
// VarDecl body.
type FieldAssign struct {
	Field    string
	Append   bool // true for "+=", false for "="
	Values   []Value
	Position token.Position
}

// ValueKind tags the literal kind of a Value.
type ValueKind int

const (
	ValString ValueKind = iota
	ValPath
	ValSymbol
	ValInt
	ValReal
	ValBool
	ValRef // bare identifier referring to another declaration (a dep or Config)
)

// Value is a literal or reference appearing on the right-hand side of a
// field assignment.
type Value struct {
	Kind ValueKind
	Str  string  // STRING, PATH, SYMBOL, and ValRef literal text
	Int  int64   // ValInt
	Real float64 // ValReal
	Bool bool    // ValBool
}
