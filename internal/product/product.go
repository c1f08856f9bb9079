// Package product models the resolved Product and Config instances of
// spec §3: the merged field set a build product carries after the Config
// Merger has run, plus the raw (pre-merge) declaration shape.
package product

import (
	"github.com/busybuild/busy/internal/reftable"
	"github.com/busybuild/busy/internal/typing"
)

// Instance is a fully merged product (or Config) record: the same field set
// for both, since a Config is "a bag of the same field set as a product
// instance" (spec §3).
type Instance struct {
	Ref   reftable.Reference
	Name  string
	Class typing.Class

	Exported bool // trailing "!" in source

	Sources      []string             // ordered, unique absolute paths
	Deps         []reftable.Reference // ordered references to other product decls
	IncludePaths []string
	Defines      []string
	CFlags       []string
	CxxFlags     []string
	LdFlags      []string
	LibDirs      []string
	LibNames     []string
	LibFiles     []string
	Frameworks   []string
	DefFile      string
	ConfigRefs   []reftable.Reference // referenced Config objects, in source order

	DestDir string   // Copy: destination directory for each source
	Args    []string // Script: arguments passed to the interpreter

	// PublicExported marks that every set-valued field of this instance
	// (.defines, .include_paths, ...) propagates to dependents via
	// use_deps/deps (spec §4.5 step 3): BUSY has no per-field export flag
	// in its field-assignment syntax, so merge.mergeLayer treats the whole
	// set-valued field set as the exported subset, matching
	// original_source's busybuildstep.cpp "export" propagation at
	// declaration granularity rather than per-field.
	PublicExported bool

	Errored bool // set when sources are missing at evaluation time (spec §3 invariant)
}

// IsRunnable reports whether the instance is a Product kind that produces a
// runnable/linkable artifact (spec §3: "an Executable or Library with no
// sources and no use_deps is not considered runnable but is still valid").
func (in *Instance) IsRunnable() bool {
	if in.Class != typing.Executable && in.Class != typing.Library && in.Class != typing.Dll {
		return false
	}
	return len(in.Sources) > 0 || len(in.Deps) > 0
}
