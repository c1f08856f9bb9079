// Package codegen implements the Command Generator (spec §4.6): it walks
// the merged product graph in dependency order and emits an ordered list of
// build Operations with platform-specific literal arguments resolved.
//
// Group numbering. Spec §4.6 step 1 assigns each product a group equal to
// one plus the maximum group of its dependencies. A product's own
// generator (moc/rcc/uic), compile, link, and (when a session sets an
// install prefix) install-copy steps are themselves causally ordered — a
// compile of a moc-generated .cpp must happen after that moc run, and an
// install copy must happen after the link it copies — so this generator
// refines the single per-product group into four per-product "tiers"
// (generate, compile, link, install) multiplied into the group space:
// group = productTier*4 + phase. This keeps groups non-decreasing across
// the whole list (testable property §8.2) while still guaranteeing every
// infile is either a source file or the outfile of a strictly-smaller-group
// operation (§8.3), including within a single product.
package codegen

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/busybuild/busy/internal/product"
	"github.com/busybuild/busy/internal/reftable"
	"github.com/busybuild/busy/internal/reperrors"
	"github.com/busybuild/busy/internal/resolve"
	"github.com/busybuild/busy/internal/toolchain"
	"github.com/busybuild/busy/internal/typing"
)

// Op tags the kind of build operation.
type Op int

const (
	Compile Op = iota
	LinkExe
	LinkDll
	LinkLib
	RunMoc
	RunRcc
	RunUic
	RunLua
	Copy
	EnteringProduct
)

func (o Op) String() string {
	switch o {
	case Compile:
		return "Compile"
	case LinkExe:
		return "LinkExe"
	case LinkDll:
		return "LinkDll"
	case LinkLib:
		return "LinkLib"
	case RunMoc:
		return "RunMoc"
	case RunRcc:
		return "RunRcc"
	case RunUic:
		return "RunUic"
	case RunLua:
		return "RunLua"
	case Copy:
		return "Copy"
	case EnteringProduct:
		return "EnteringProduct"
	default:
		return "Unknown"
	}
}

// ParamKind tags one argument slot of an Operation.
type ParamKind int

const (
	ParamInfile ParamKind = iota
	ParamOutfile
	ParamIncludeDir
	ParamLibDir
	ParamLibName
	ParamLibFile
	ParamFramework
	ParamDefine
	ParamCflag
	ParamLdflag
	ParamArg
	ParamName
	ParamDefFile
)

// Param is one (kind, value) pair of an Operation's parameter list.
type Param struct {
	Kind  ParamKind
	Value string
}

// Operation is the generator's output record (spec §3 "Operation").
type Operation struct {
	OpKind    Op
	Toolchain toolchain.Toolchain
	OS        toolchain.OS
	Group     int32
	Cmd       string // display name, used for EnteringProduct labels
	Params    []Param
}

// Infiles returns every ParamInfile value, in order.
func (op Operation) Infiles() []string {
	var out []string
	for _, p := range op.Params {
		if p.Kind == ParamInfile {
			out = append(out, p.Value)
		}
	}
	return out
}

// Outfile returns the single ParamOutfile value, or "" if the operation has
// none (markers only).
func (op Operation) Outfile() string {
	for _, p := range op.Params {
		if p.Kind == ParamOutfile {
			return p.Value
		}
	}
	return ""
}

// Generator walks a merged product graph and emits an Operation list.
type Generator struct {
	Instances map[reftable.Reference]*product.Instance
	Order     []reftable.Reference // dependency order, from merge.Merger
	Table     RecordLookup
	BuildRoot string
	Toolchain toolchain.Toolchain
	OS        toolchain.OS

	// InstallPrefix, when non-empty, makes generateProduct append a
	// post-link Copy operation for every exported Executable/Dll (spec §3
	// supplemented Install step).
	InstallPrefix string

	tier map[reftable.Reference]int32
}

// RecordLookup is the subset of *reftable.Table the generator needs: module
// relative-path lookup for a product's owner.
type RecordLookup interface {
	Resolve(reftable.Reference) *reftable.Record
}

// Generate produces the full operation list, or an error if the requested
// toolchain/OS combination is unsupported (spec §7 ConfigError).
func (g *Generator) Generate() ([]Operation, error) {
	if !toolchain.IsSupported(g.Toolchain, g.OS) {
		return nil, reperrors.New(reperrors.ConfigUnsupportedToolchainOS,
			fmt.Sprintf("unsupported combination: toolchain=%s os=%s", g.Toolchain, g.OS))
	}
	g.computeTiers()

	var ops []Operation
	for _, ref := range g.Order {
		inst := g.Instances[ref]
		if inst == nil || inst.Class == typing.Config || inst.Errored {
			continue
		}
		productOps, err := g.generateProduct(ref, inst)
		if err != nil {
			return ops, err
		}
		ops = append(ops, productOps...)
	}
	return ops, nil
}

// computeTiers assigns each product a dependency tier: one plus the
// maximum tier of its dependencies (spec §4.6 step 1), 0 for roots.
func (g *Generator) computeTiers() {
	g.tier = make(map[reftable.Reference]int32)
	for _, ref := range g.Order {
		inst := g.Instances[ref]
		if inst == nil {
			continue
		}
		var maxDep int32 = -1
		for _, dep := range inst.Deps {
			if t, ok := g.tier[dep]; ok && t > maxDep {
				maxDep = t
			}
		}
		g.tier[ref] = maxDep + 1
	}
}

func (g *Generator) productPath(ref reftable.Reference, inst *product.Instance) string {
	rec := g.Table.Resolve(ref)
	modPath := ""
	if rec != nil {
		if modRec := g.Table.Resolve(rec.Owner); modRec != nil {
			if mp, ok := modRec.Payload.(*resolve.ModulePayload); ok {
				modPath = mp.RelPath
			}
		}
	}
	if modPath == "" || modPath == "." {
		return inst.Name
	}
	return filepath.ToSlash(filepath.Join(modPath, inst.Name))
}

func (g *Generator) generateProduct(ref reftable.Reference, inst *product.Instance) ([]Operation, error) {
	tier := g.tier[ref]
	productPath := g.productPath(ref, inst)
	// outDir nests every generated artifact, including the final link
	// output, under a directory named after the product itself. For a
	// root-level product this means the link output's basename collides
	// with its own parent directory's name (e.g. ".../hello/hello") rather
	// than the output living directly in BuildRoot; kept this way so every
	// product - root-level or nested - gets a stable, collision-free
	// directory to put its objects and generated sources in, without a
	// special case for the no-submodule-path root scenario.
	outDir := filepath.Join(g.BuildRoot, filepath.FromSlash(productPath))

	var ops []Operation
	ops = append(ops, Operation{
		OpKind: EnteringProduct,
		Group:  tier * 4,
		Cmd:    productPath,
	})

	switch inst.Class {
	case typing.Copy:
		for _, src := range inst.Sources {
			dst := filepath.Join(inst.DestDir, filepath.Base(src))
			ops = append(ops, Operation{
				OpKind: Copy,
				Group:  tier*4 + 2,
				Cmd:    productPath,
				Params: []Param{
					{Kind: ParamInfile, Value: src},
					{Kind: ParamOutfile, Value: dst},
				},
			})
		}
		return ops, nil

	case typing.Script:
		if len(inst.Sources) == 0 {
			return ops, nil
		}
		params := []Param{{Kind: ParamInfile, Value: inst.Sources[0]}}
		for _, a := range inst.Args {
			params = append(params, Param{Kind: ParamArg, Value: a})
		}
		params = append(params, Param{Kind: ParamOutfile, Value: inst.Sources[0]})
		ops = append(ops, Operation{OpKind: RunLua, Group: tier*4 + 2, Cmd: productPath, Params: params})
		return ops, nil
	}

	// Executable / Library / Dll: generator steps, then compiles, then link,
	// then (if installable) an install copy.
	genGroup := tier * 4
	compileGroup := tier*4 + 1
	linkGroup := tier*4 + 2
	installGroup := tier*4 + 3

	var objs []string
	compileSrc := func(src string, group int32) {
		out := g.objectPath(outDir, src)
		ops = append(ops, Operation{
			OpKind:    Compile,
			Toolchain: g.Toolchain,
			OS:        g.OS,
			Group:     group,
			Cmd:       productPath,
			Params:    g.compileParams(inst, src, out),
		})
		objs = append(objs, out)
	}

	for _, src := range inst.Sources {
		switch classifySource(src) {
		case sourceUic:
			out := filepath.Join(outDir, "ui_"+stem(src)+".h")
			ops = append(ops, Operation{OpKind: RunUic, Toolchain: g.Toolchain, OS: g.OS, Group: genGroup, Cmd: productPath,
				Params: []Param{{Kind: ParamInfile, Value: src}, {Kind: ParamOutfile, Value: out}}})
		case sourceRcc:
			out := filepath.Join(outDir, "qrc_"+stem(src)+".cpp")
			ops = append(ops, Operation{OpKind: RunRcc, Toolchain: g.Toolchain, OS: g.OS, Group: genGroup, Cmd: productPath,
				Params: []Param{{Kind: ParamInfile, Value: src}, {Kind: ParamOutfile, Value: out}}})
			compileSrc(out, compileGroup)
		case sourceMocHeader:
			out := filepath.Join(outDir, "moc_"+stem(src)+".cpp")
			ops = append(ops, Operation{OpKind: RunMoc, Toolchain: g.Toolchain, OS: g.OS, Group: genGroup, Cmd: productPath,
				Params: []Param{{Kind: ParamInfile, Value: src}, {Kind: ParamOutfile, Value: out}}})
			compileSrc(out, compileGroup)
		case sourceCompilable:
			compileSrc(src, compileGroup)
		}
	}

	var linkOut string
	installable := false
	switch inst.Class {
	case typing.Executable:
		linkOut = filepath.Join(outDir, inst.Name)
		ops = append(ops, Operation{OpKind: LinkExe, Toolchain: g.Toolchain, OS: g.OS, Group: linkGroup, Cmd: productPath,
			Params: g.linkParams(inst, objs, linkOut)})
		installable = true
	case typing.Dll:
		linkOut = filepath.Join(outDir, toolchain.SharedLibName(g.Toolchain, g.OS, inst.Name))
		ops = append(ops, Operation{OpKind: LinkDll, Toolchain: g.Toolchain, OS: g.OS, Group: linkGroup, Cmd: productPath,
			Params: g.linkParams(inst, objs, linkOut)})
		installable = true
	case typing.Library:
		linkOut = filepath.Join(outDir, toolchain.StaticLibName(g.Toolchain, inst.Name))
		params := make([]Param, 0, len(objs)+1)
		for _, o := range objs {
			params = append(params, Param{Kind: ParamInfile, Value: o})
		}
		params = append(params, Param{Kind: ParamOutfile, Value: linkOut})
		ops = append(ops, Operation{OpKind: LinkLib, Toolchain: g.Toolchain, OS: g.OS, Group: linkGroup, Cmd: productPath, Params: params})
	}

	// Install step (spec §3 supplemented feature): only Executable/Dll
	// outputs are installable (a static Library has no standalone runtime
	// artifact to place on a user's PATH/libpath), and only when the
	// product is exported to the root build set and a session set an
	// install prefix.
	if installable && inst.Exported && g.InstallPrefix != "" {
		dst := filepath.Join(g.InstallPrefix, filepath.Base(linkOut))
		ops = append(ops, Operation{
			OpKind: Copy,
			Group:  installGroup,
			Cmd:    productPath,
			Params: []Param{
				{Kind: ParamInfile, Value: linkOut},
				{Kind: ParamOutfile, Value: dst},
			},
		})
	}

	return ops, nil
}

func (g *Generator) compileParams(inst *product.Instance, src, out string) []Param {
	var params []Param
	for _, d := range inst.IncludePaths {
		params = append(params, Param{Kind: ParamIncludeDir, Value: d})
	}
	for _, d := range inst.Defines {
		params = append(params, Param{Kind: ParamDefine, Value: d})
	}
	flags := inst.CFlags
	if isCxx(src) {
		flags = append(append([]string{}, inst.CFlags...), inst.CxxFlags...)
	}
	for _, f := range flags {
		params = append(params, Param{Kind: ParamCflag, Value: f})
	}
	params = append(params, Param{Kind: ParamInfile, Value: src})
	params = append(params, Param{Kind: ParamOutfile, Value: out})
	return params
}

func (g *Generator) linkParams(inst *product.Instance, objs []string, out string) []Param {
	var params []Param
	for _, o := range objs {
		params = append(params, Param{Kind: ParamInfile, Value: o})
	}
	for _, d := range inst.LibDirs {
		params = append(params, Param{Kind: ParamLibDir, Value: d})
	}
	for _, n := range inst.LibNames {
		params = append(params, Param{Kind: ParamLibName, Value: n})
	}
	for _, f := range inst.LibFiles {
		params = append(params, Param{Kind: ParamLibFile, Value: f})
	}
	for _, fw := range inst.Frameworks {
		params = append(params, Param{Kind: ParamFramework, Value: fw})
	}
	if inst.DefFile != "" {
		params = append(params, Param{Kind: ParamDefFile, Value: inst.DefFile})
	}
	for _, l := range inst.LdFlags {
		params = append(params, Param{Kind: ParamLdflag, Value: l})
	}
	params = append(params, Param{Kind: ParamOutfile, Value: out})
	return params
}

func (g *Generator) objectPath(outDir, src string) string {
	return filepath.Join(outDir, stem(src)+toolchain.ObjectSuffix(g.Toolchain))
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

type sourceKind int

const (
	sourceCompilable sourceKind = iota
	sourceUic
	sourceRcc
	sourceMocHeader
	sourceIgnored
)

func classifySource(path string) sourceKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ui":
		return sourceUic
	case ".qrc":
		return sourceRcc
	case ".c", ".cpp", ".cc", ".cxx":
		return sourceCompilable
	case ".h", ".hpp", ".hh":
		if hasMocMarker(path) {
			return sourceMocHeader
		}
		return sourceIgnored
	default:
		return sourceIgnored
	}
}

// hasMocMarker reports whether a header needs moc processing: it contains
// the Q_OBJECT marker (spec §4.6 step 2). A missing/unreadable file is
// treated as not needing moc rather than an error here — freshness/merge
// already validated source existence.
func hasMocMarker(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return strings.Contains(string(data), "Q_OBJECT")
}

// CleanTargets derives the clean-list from an already-generated operation
// list (spec §3 supplemented Clean operation mode, grounded on
// busyprojectmanager/busycleanstep.cpp): every operation's Outfile(), plus
// its .rsp response-file sibling for a win32 Link operation, in the same
// order the build would have produced them. EnteringProduct markers carry
// no outfile and are skipped.
//
// An operation whose declared outfile is also one of its own infiles (the
// Script/RunLua case, whose "outfile" is its own source file, since a
// script product has no generated artifact of its own) is skipped too:
// clean must never delete a BUSY file's source.
func CleanTargets(ops []Operation, targetOS toolchain.OS) []string {
	var targets []string
	seen := make(map[string]bool)
	add := func(p string) {
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		targets = append(targets, p)
	}
	for _, op := range ops {
		if op.OpKind == EnteringProduct {
			continue
		}
		out := op.Outfile()
		if out == "" {
			continue
		}
		isOwnInput := false
		for _, in := range op.Infiles() {
			if in == out {
				isOwnInput = true
				break
			}
		}
		if isOwnInput {
			continue
		}
		add(out)
		if targetOS == toolchain.Win32 && (op.OpKind == LinkExe || op.OpKind == LinkDll || op.OpKind == LinkLib) {
			add(responseFilePath(out))
		}
	}
	return targets
}

// responseFilePath mirrors procadapter's naming: the .rsp file sits next to
// the output it was collapsed for, named after the output's stem.
func responseFilePath(outfile string) string {
	dir := filepath.Dir(outfile)
	stem := strings.TrimSuffix(filepath.Base(outfile), filepath.Ext(outfile))
	return filepath.Join(dir, stem+".rsp")
}

func isCxx(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cpp", ".cc", ".cxx":
		return true
	default:
		return false
	}
}
