package merge

import (
	"strings"

	"github.com/busybuild/busy/internal/product"
	"github.com/busybuild/busy/internal/session"
)

// ApplyParameters overrides merged instances with the build-session's
// parameter-file mini-language (spec §6: "used to override config from the
// IDE"). A parameter's designator is "<product name>.<field>"; it replaces
// that field's merged value outright rather than appending to it, since
// "override" is the IDE's term for replacing a specific build's config, not
// layering onto it the way deps/configs do. Call after MergeAll so
// parameter overrides win over both the product's own fields and anything
// layered in from deps/configs.
//
// An unknown product name or field is ignored: a parameter file may name
// targets that don't exist in the tree currently being built (e.g. a
// per-IDE-workspace file shared across checkouts), and that's not an error
// the build runner should fail on.
func (m *Merger) ApplyParameters(params []session.Parameter) {
	if len(params) == 0 {
		return
	}
	byName := make(map[string]*product.Instance, len(m.drafts))
	for _, ref := range m.draftOrder {
		inst := m.drafts[ref]
		byName[inst.Name] = inst
	}
	for _, p := range params {
		if !p.HasValue {
			continue
		}
		dot := strings.LastIndex(p.Designator, ".")
		if dot < 0 {
			continue
		}
		inst, ok := byName[p.Designator[:dot]]
		if !ok {
			continue
		}
		applyParameterOverride(inst, p.Designator[dot+1:], p)
	}
}

// applyParameterOverride sets a single merged field of inst from a
// parameter's parsed literal. Path/string/symbol-valued parameters
// overriding a set-valued field replace it with a single-element slice;
// spec's mini-language carries one value per designator, so repeating a
// designator (e.g. "hello.defines=A" followed by "hello.defines=B" later in
// the same file) is last-write-wins, matching ParseParameterFile's
// left-to-right parse order and how later assignments win in the BUSY field
// syntax itself (§4.1).
func applyParameterOverride(inst *product.Instance, field string, p session.Parameter) {
	switch field {
	case "defines":
		inst.Defines = []string{p.Str}
	case "include_paths", "includes":
		inst.IncludePaths = []string{p.Str}
	case "cflags":
		inst.CFlags = []string{p.Str}
	case "cxxflags":
		inst.CxxFlags = []string{p.Str}
	case "ldflags":
		inst.LdFlags = []string{p.Str}
	case "lib_dirs":
		inst.LibDirs = []string{p.Str}
	case "lib_names":
		inst.LibNames = []string{p.Str}
	case "lib_files":
		inst.LibFiles = []string{p.Str}
	case "frameworks":
		inst.Frameworks = []string{p.Str}
	case "def_file":
		inst.DefFile = p.Str
	case "dest_dir":
		inst.DestDir = p.Str
	case "args":
		inst.Args = []string{p.Str}
	}
}
