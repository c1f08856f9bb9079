// Package merge implements the Config Merger (spec §4.5): for each product
// declaration it computes a merged Instance by seeding with the
// declaration's own body, layering in referenced Config objects, then
// layering in the exported subset of each dependency's own merged instance.
package merge

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/busybuild/busy/internal/ast"
	"github.com/busybuild/busy/internal/product"
	"github.com/busybuild/busy/internal/reftable"
	"github.com/busybuild/busy/internal/reperrors"
	"github.com/busybuild/busy/internal/resolve"
	"github.com/busybuild/busy/internal/typing"
)

// Merger walks the Reference Table produced by resolve.Resolver and
// produces one merged product.Instance per VarDecl whose type is a Product
// subtype or Config.
type Merger struct {
	Table  *reftable.Table
	Errors reperrors.List

	drafts     map[reftable.Reference]*product.Instance
	draftOrder []reftable.Reference // registration order, for deterministic MergeAll iteration
	order      []reftable.Reference // topological, dependencies first
	inPath     map[reftable.Reference]bool
	done       map[reftable.Reference]bool
}

// New creates a Merger over table.
func New(table *reftable.Table) *Merger {
	return &Merger{
		Table:  table,
		drafts: make(map[reftable.Reference]*product.Instance),
		inPath: make(map[reftable.Reference]bool),
		done:   make(map[reftable.Reference]bool),
	}
}

// MergeAll seeds every product/Config declaration and returns the merged
// instances keyed by Reference, in the stable dependency order spec §4.5
// requires (depth-first across dependency edges, source order within a
// file, declaration order across files).
func (m *Merger) MergeAll() (map[reftable.Reference]*product.Instance, []reftable.Reference, error) {
	if err := m.seedDrafts(); err != nil {
		return nil, nil, err
	}
	// Iterate draftOrder, not the drafts map directly: Go map iteration
	// order is randomized, and ranging over m.drafts here would make the
	// resulting m.order (and so the operation list the generator later
	// produces) vary from run to run among independent, same-tier products.
	for _, ref := range m.draftOrder {
		if err := m.mergeOne(ref); err != nil {
			m.Errors.Add(err)
		}
	}
	if m.Errors.HasErrors() {
		return m.drafts, m.order, &m.Errors
	}
	return m.drafts, m.order, nil
}

// seedDrafts walks every registered module and VarDecl, creating a draft
// Instance (own fields only — step 1 of spec §4.5) for each Product/Config
// declaration.
func (m *Merger) seedDrafts() error {
	for _, ref := range m.Table.All() {
		rec := m.Table.Resolve(ref)
		if rec.Kind != reftable.KindVarDecl {
			continue
		}
		vd, ok := rec.Payload.(*ast.VarDecl)
		if !ok {
			continue
		}
		class := typing.Class(vd.Type)
		if !typing.IsBuiltin(class) {
			continue // not a built-in class: such declarations are not merged, and no caller maps user subclasses to a built-in ancestor
		}
		moduleRec := m.Table.Resolve(rec.Owner)
		moduleDir := ""
		if moduleRec != nil {
			if mp, ok := moduleRec.Payload.(*resolve.ModulePayload); ok {
				moduleDir = mp.Dir
			}
		}
		inst := &product.Instance{Ref: ref, Name: rec.Name, Class: class, Exported: vd.Exported, PublicExported: true}
		for _, fa := range vd.Fields {
			if err := m.applyField(inst, fa, rec.Owner, moduleDir); err != nil {
				m.Errors.Add(err)
			}
		}
		m.drafts[ref] = inst
		m.draftOrder = append(m.draftOrder, ref)
	}
	return nil
}

// applyField resolves one field assignment into inst, looking up ValRef
// values as sibling declarations of owner.
func (m *Merger) applyField(inst *product.Instance, fa ast.FieldAssign, owner reftable.Reference, moduleDir string) error {
	resolveRef := func(name string) (reftable.Reference, error) {
		ref, ok := m.Table.Field(owner, name)
		if !ok {
			return 0, reperrors.New(reperrors.ResolveUnknownIdent,
				fmt.Sprintf("unknown identifier %q", name)).At(fa.Position)
		}
		return ref, nil
	}

	switch fa.Field {
	case "sources":
		for _, v := range fa.Values {
			// A bare file name without '/' (e.g. main.cpp) lexes as an
			// identifier, so ValRef is accepted here as a path too.
			if v.Kind != ast.ValPath && v.Kind != ast.ValString && v.Kind != ast.ValRef {
				return reperrors.New(reperrors.TypeUndeclaredField, "sources requires a path value").At(fa.Position)
			}
			abs := resolve.AddPath(moduleDir, v.Str)
			dedupAppendString(&inst.Sources, abs)
		}
	case "deps":
		for _, v := range fa.Values {
			if v.Kind != ast.ValRef {
				return reperrors.New(reperrors.TypeUndeclaredField, "deps requires a reference value").At(fa.Position)
			}
			ref, err := resolveRef(v.Str)
			if err != nil {
				return err
			}
			dedupAppendRef(&inst.Deps, ref)
		}
	case "configs", "use_deps":
		for _, v := range fa.Values {
			if v.Kind != ast.ValRef {
				return reperrors.New(reperrors.TypeUndeclaredField, fa.Field+" requires a reference value").At(fa.Position)
			}
			ref, err := resolveRef(v.Str)
			if err != nil {
				return err
			}
			if fa.Field == "configs" {
				dedupAppendRef(&inst.ConfigRefs, ref)
			} else {
				dedupAppendRef(&inst.Deps, ref)
			}
		}
	case "include_paths", "includes":
		for _, v := range fa.Values {
			inst.IncludePaths = appendOrResetString(inst.IncludePaths, fa.Append, resolve.AddPath(moduleDir, v.Str))
		}
	case "defines":
		for _, v := range fa.Values {
			inst.Defines = appendOrResetString(inst.Defines, fa.Append, v.Str)
		}
	case "cflags":
		for _, v := range fa.Values {
			inst.CFlags = appendOrResetString(inst.CFlags, fa.Append, v.Str)
		}
	case "cxxflags":
		for _, v := range fa.Values {
			inst.CxxFlags = appendOrResetString(inst.CxxFlags, fa.Append, v.Str)
		}
	case "ldflags":
		for _, v := range fa.Values {
			inst.LdFlags = appendOrResetString(inst.LdFlags, fa.Append, v.Str)
		}
	case "lib_dirs":
		for _, v := range fa.Values {
			inst.LibDirs = appendOrResetString(inst.LibDirs, fa.Append, resolve.AddPath(moduleDir, v.Str))
		}
	case "lib_names":
		for _, v := range fa.Values {
			inst.LibNames = appendOrResetString(inst.LibNames, fa.Append, v.Str)
		}
	case "lib_files":
		for _, v := range fa.Values {
			inst.LibFiles = appendOrResetString(inst.LibFiles, fa.Append, resolve.AddPath(moduleDir, v.Str))
		}
	case "frameworks":
		for _, v := range fa.Values {
			inst.Frameworks = appendOrResetString(inst.Frameworks, fa.Append, v.Str)
		}
	case "def_file":
		if len(fa.Values) > 0 {
			inst.DefFile = resolve.AddPath(moduleDir, fa.Values[0].Str) // scalar: overridden, not appended
		}
	case "dest_dir":
		if len(fa.Values) > 0 {
			inst.DestDir = resolve.AddPath(moduleDir, fa.Values[0].Str)
		}
	case "args":
		for _, v := range fa.Values {
			inst.Args = appendOrResetString(inst.Args, fa.Append, v.Str)
		}
	default:
		return reperrors.New(reperrors.TypeUndeclaredField,
			fmt.Sprintf("assignment into undeclared field %q", fa.Field)).At(fa.Position)
	}
	return nil
}

// mergeOne performs steps 2 and 3 of spec §4.5 for ref, recursing into its
// dependencies first (depth-first dependency traversal, as the ordering
// rule requires) and detecting cycles the way resolve.Resolver detects
// module cycles.
func (m *Merger) mergeOne(ref reftable.Reference) error {
	if m.done[ref] {
		return nil
	}
	if m.inPath[ref] {
		return reperrors.New(reperrors.ResolveCyclicDeps, fmt.Sprintf("dependency cycle through reference %d", ref))
	}
	inst, ok := m.drafts[ref]
	if !ok {
		return nil // not a Product/Config declaration
	}
	m.inPath[ref] = true
	defer delete(m.inPath, ref)

	// Step 2: layer in referenced Config objects, source order, de-duped.
	for _, cref := range inst.ConfigRefs {
		if _, ok := m.drafts[cref]; !ok {
			continue
		}
		if err := m.mergeOne(cref); err != nil {
			return err
		}
		mergeLayer(inst, m.drafts[cref])
	}

	// Step 3: layer in the exported subset of each dependency's merged
	// instance, depth-first.
	for _, dref := range inst.Deps {
		if err := m.mergeOne(dref); err != nil {
			return err
		}
		dep, ok := m.drafts[dref]
		if !ok {
			continue
		}
		mergeLayer(inst, dep)
	}

	if inst.Class != typing.Config {
		m.validateSources(inst)
	}

	m.done[ref] = true
	m.order = append(m.order, ref)
	return nil
}

// mergeLayer appends from's set-valued fields into into, preserving first
// occurrence, the way §4.5 describes both the Config layer and the
// dependency-export layer. It copies every set-valued field of from, not a
// per-field export subset: BUSY has no per-assignment export flag in its
// field-assignment syntax (only the trailing "!" on a whole declaration,
// which product.Instance.Exported already models), so every set-valued
// field reached through a declared dependency or config is treated as
// exported by default (see product.Instance.PublicExported and
// DESIGN.md's merge entry for the recorded decision).
func mergeLayer(into, from *product.Instance) {
	if !from.PublicExported {
		return
	}
	for _, s := range from.IncludePaths {
		dedupAppendString(&into.IncludePaths, s)
	}
	for _, s := range from.Defines {
		dedupAppendString(&into.Defines, s)
	}
	for _, s := range from.CFlags {
		dedupAppendString(&into.CFlags, s)
	}
	for _, s := range from.CxxFlags {
		dedupAppendString(&into.CxxFlags, s)
	}
	for _, s := range from.LdFlags {
		dedupAppendString(&into.LdFlags, s)
	}
	for _, s := range from.LibDirs {
		dedupAppendString(&into.LibDirs, s)
	}
	for _, s := range from.LibNames {
		dedupAppendString(&into.LibNames, s)
	}
	for _, s := range from.LibFiles {
		dedupAppendString(&into.LibFiles, s)
	}
	for _, s := range from.Frameworks {
		dedupAppendString(&into.Frameworks, s)
	}
	if into.DefFile == "" && from.DefFile != "" {
		into.DefFile = from.DefFile
	}
}

// validateSources enforces the spec §3 invariant that every source is a
// regular file present on disk at evaluation time.
func (m *Merger) validateSources(inst *product.Instance) {
	for _, src := range inst.Sources {
		info, err := os.Stat(src)
		if err != nil || info.IsDir() {
			inst.Errored = true
			m.Errors.Add(reperrors.New(reperrors.FileMissingSource,
				fmt.Sprintf("source file missing or unreadable: %s", filepath.ToSlash(src))))
		}
	}
}

func appendOrResetString(cur []string, isAppend bool, v string) []string {
	if !isAppend {
		cur = nil
	}
	dedupAppendString(&cur, v)
	return cur
}

func dedupAppendString(into *[]string, v string) {
	for _, e := range *into {
		if e == v {
			return
		}
	}
	*into = append(*into, v)
}

func dedupAppendRef(into *[]reftable.Reference, v reftable.Reference) {
	for _, e := range *into {
		if e == v {
			return
		}
	}
	*into = append(*into, v)
}
