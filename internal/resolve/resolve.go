// Package resolve implements the BUSY Module Resolver (spec §4.3): given a
// root directory it locates the module's BUSY file, parses it, registers it
// in the Reference Table, and recursively resolves submod declarations.
// Declaration names are NFC-normalized before registration so two BUSY
// files written with differently-composed Unicode for the same visible
// identifier never silently alias two distinct Reference Table entries.
package resolve

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/busybuild/busy/internal/ast"
	"github.com/busybuild/busy/internal/lexer"
	"github.com/busybuild/busy/internal/parser"
	"github.com/busybuild/busy/internal/reftable"
	"github.com/busybuild/busy/internal/reperrors"
)

// ModulePayload is the reftable.Record payload for kind=Module.
type ModulePayload struct {
	Dir     string              // absolute directory
	File    string              // the BUSY file loaded from
	RelPath string              // relative to the build root
	Decls   []reftable.Reference // VarDecl children, in source order
	Submods []reftable.Reference // Module children, in source order
}

// CyclicModuleError is reported (spec §4.3) when a module is its own
// transitive parent; the offending submod edge is dropped rather than
// aborting resolution of the rest of the tree.
type CyclicModuleError struct {
	From, To string
}

func (e *CyclicModuleError) Error() string {
	return fmt.Sprintf("CyclicModules: %s -> %s would close a cycle", e.From, e.To)
}

// Resolver walks a BUSY module tree into the Reference Table.
type Resolver struct {
	Table    *reftable.Table
	Errors   reperrors.List
	rootDir  string // canonicalized once, the build root for RelPath
	byPath   map[string]reftable.Reference // canonical dir -> Module ref (idempotent re-resolution)
	inPath   map[string]bool               // cycle detection: ancestors on the current DFS path
}

// New creates a Resolver that writes into table.
func New(table *reftable.Table) *Resolver {
	return &Resolver{
		Table:  table,
		byPath: make(map[string]reftable.Reference),
		inPath: make(map[string]bool),
	}
}

// candidateNames are tried, in order, inside a module directory.
var candidateNames = []string{"BUSY", "BUSY.busy"}

// findModuleFile locates BUSY or BUSY.busy inside dir.
func findModuleFile(dir string) (string, error) {
	for _, name := range candidateNames {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("no BUSY or BUSY.busy file found in %s", dir)
}

func canonicalize(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return abs, nil
		}
		return "", err
	}
	return resolved, nil
}

// ResolveRoot resolves the root module at dir and everything it transitively
// references, returning the root Module's Reference.
func (r *Resolver) ResolveRoot(dir string) (reftable.Reference, error) {
	canon, err := canonicalize(dir)
	if err != nil {
		return 0, err
	}
	r.rootDir = canon
	return r.resolveModule(canon, 0)
}

// resolveModule loads (or returns the cached registration of) the module at
// canonDir, owned by parentRef (0 for the root).
func (r *Resolver) resolveModule(canonDir string, parentRef reftable.Reference) (reftable.Reference, error) {
	if ref, ok := r.byPath[canonDir]; ok {
		return ref, nil // idempotent: already registered
	}

	file, err := findModuleFile(canonDir)
	if err != nil {
		e := reperrors.New(reperrors.ResolveMissingSubmod, err.Error())
		r.Errors.Add(e)
		return 0, e
	}

	src, err := os.ReadFile(file)
	if err != nil {
		e := reperrors.New(reperrors.FileMissingSource, err.Error())
		r.Errors.Add(e)
		return 0, e
	}

	l := lexer.New(string(src), file)
	p := parser.New(l)
	astFile := p.Parse(file)
	for _, perr := range p.Errors() {
		r.Errors.Add(perr)
	}

	relPath, _ := filepath.Rel(r.rootDir, canonDir)
	relPath = filepath.ToSlash(relPath)

	payload := &ModulePayload{Dir: canonDir, File: file, RelPath: relPath}
	ref, err := r.Table.Register(reftable.Record{
		Kind:    reftable.KindModule,
		Name:    filepath.Base(canonDir),
		Owner:   parentRef,
		Payload: payload,
	})
	if err != nil {
		r.Errors.Add(err)
		return 0, err
	}
	r.byPath[canonDir] = ref

	r.inPath[canonDir] = true
	defer delete(r.inPath, canonDir)

	for _, decl := range astFile.Decls {
		switch d := decl.(type) {
		case *ast.VarDecl:
			vref, verr := r.Table.Register(reftable.Record{
				Kind:    reftable.KindVarDecl,
				Name:    norm.NFC.String(d.Name),
				Owner:   ref,
				Pos:     d.Position,
				Payload: d,
			})
			if verr != nil {
				r.Errors.Add(verr)
				continue
			}
			payload.Decls = append(payload.Decls, vref)
		case *ast.SubmodDecl:
			subDir := d.Dir
			if !filepath.IsAbs(subDir) {
				subDir = filepath.Join(canonDir, subDir)
			}
			subCanon, cerr := canonicalize(subDir)
			if cerr != nil {
				r.Errors.Add(reperrors.New(reperrors.ResolveMissingSubmod, cerr.Error()).At(d.Position))
				continue
			}
			if r.inPath[subCanon] {
				r.Errors.Add(reperrors.New(reperrors.ResolveCyclicModules,
					(&CyclicModuleError{From: canonDir, To: subCanon}).Error()).At(d.Position))
				continue // drop the offending edge, keep resolving siblings
			}
			subRef, serr := r.resolveModule(subCanon, ref)
			if serr != nil {
				continue
			}
			payload.Submods = append(payload.Submods, subRef)
		}
	}

	return ref, nil
}

// AddPath combines base (a directory) with a relative path rel, normalizing
// separators and ".." segments (spec §4.1 add_path primitive).
func AddPath(base, rel string) string {
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Clean(filepath.Join(base, rel))
}

// DenormalizePath produces a platform-native display form of s (spec §4.1
// denormalize_path primitive).
func DenormalizePath(s string) string {
	if filepath.Separator == '/' {
		return s
	}
	return strings.ReplaceAll(s, "/", string(filepath.Separator))
}
