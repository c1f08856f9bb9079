// Package session models the Build-session inputs of spec §6: the root
// source/build directories, build mode, target toolchain/OS/CPU, and the
// two small input languages (parameter-file, target-list) an IDE uses to
// override config and select what to build.
package session

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/busybuild/busy/internal/toolchain"
)

// Mode is the build mode (spec §6).
type Mode string

const (
	Debug        Mode = "debug"
	Optimized    Mode = "optimized"
	NonOptimized Mode = "nonoptimized"
)

// Session holds every input spec §6 lists for one build invocation.
type Session struct {
	RootSourceDir     string
	RootBuildDir      string
	Mode              Mode
	Toolchain         toolchain.Toolchain
	ToolchainPath     string
	ToolchainPrefix   string
	TargetOS          toolchain.OS
	TargetCPU         string
	TargetWordSize    int
	Parameters        []Parameter
	Targets           []string
	StopOnError       bool
	Workers           int

	// InstallPrefix, when non-empty, makes the Command Generator append a
	// post-link Copy operation for every exported Executable/Dll product,
	// copying its link output into this directory (spec §3 supplemented
	// Install step, grounded on original_source's busyinstallstep.cpp).
	InstallPrefix string
}

// Option configures a Session at construction time, the way
// resolve.New/merge.New take constructor args rather than a mutable
// builder — kept a flat functional-options form since §6 lists a fixed
// set of inputs with sensible defaults.
type Option func(*Session)

func WithMode(m Mode) Option                   { return func(s *Session) { s.Mode = m } }
func WithToolchain(tc toolchain.Toolchain) Option { return func(s *Session) { s.Toolchain = tc } }
func WithTargetOS(os toolchain.OS) Option      { return func(s *Session) { s.TargetOS = os } }
func WithTargetCPU(cpu string) Option          { return func(s *Session) { s.TargetCPU = cpu } }
func WithWordSize(bits int) Option             { return func(s *Session) { s.TargetWordSize = bits } }
func WithToolchainPath(p string) Option        { return func(s *Session) { s.ToolchainPath = p } }
func WithToolchainPrefix(p string) Option      { return func(s *Session) { s.ToolchainPrefix = p } }
func WithWorkers(n int) Option                 { return func(s *Session) { s.Workers = n } }
func WithStopOnError(v bool) Option            { return func(s *Session) { s.StopOnError = v } }
func WithTargets(names ...string) Option       { return func(s *Session) { s.Targets = names } }
func WithParameters(p ...Parameter) Option      { return func(s *Session) { s.Parameters = append(s.Parameters, p...) } }
func WithInstallPrefix(dir string) Option       { return func(s *Session) { s.InstallPrefix = dir } }

// New builds a Session for sourceDir/buildDir with defaults (debug mode,
// gcc/linux, word size 64, one worker per available core is the caller's
// responsibility to supply via WithWorkers since runtime.NumCPU belongs
// at the call site, not in this package).
func New(sourceDir, buildDir string, opts ...Option) *Session {
	s := &Session{
		RootSourceDir:  sourceDir,
		RootBuildDir:   buildDir,
		Mode:           Debug,
		Toolchain:      toolchain.GCC,
		TargetOS:       toolchain.Linux,
		TargetWordSize: 64,
		Workers:        1,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ValueKind tags the literal type of a Parameter's value (spec §6:
// "string, integer, real, path, symbol, true/false").
type ValueKind int

const (
	ValString ValueKind = iota
	ValInt
	ValReal
	ValPath
	ValSymbol
	ValBool
)

// Parameter is one `desig [= value]` pair from the parameter-file
// mini-language.
type Parameter struct {
	Designator string // dotted identifier, e.g. "hello.defines"
	HasValue   bool
	Kind       ValueKind
	Str        string
	Int        int64
	Real       float64
	Bool       bool
}

// ParseParameterFile parses the whitespace-separated `desig [= value] [;]`
// mini-language of spec §6.
func ParseParameterFile(src string) ([]Parameter, error) {
	toks := tokenize(src)
	var params []Parameter
	i := 0
	for i < len(toks) {
		if toks[i] == ";" {
			i++
			continue
		}
		desig := toks[i]
		if !isDottedIdent(desig) {
			return nil, fmt.Errorf("invalid designator %q", desig)
		}
		i++
		p := Parameter{Designator: desig}
		if i < len(toks) && toks[i] == "=" {
			i++
			if i >= len(toks) {
				return nil, fmt.Errorf("missing value after %q=", desig)
			}
			val, kind, err := parseLiteral(toks[i])
			if err != nil {
				return nil, err
			}
			p.HasValue = true
			p.Kind = kind
			switch kind {
			case ValInt:
				p.Int, _ = strconv.ParseInt(val, 10, 64)
			case ValReal:
				p.Real, _ = strconv.ParseFloat(val, 64)
			case ValBool:
				p.Bool = val == "true"
			default:
				p.Str = val
			}
			i++
		}
		if i < len(toks) && toks[i] == ";" {
			i++
		}
		params = append(params, p)
	}
	return params, nil
}

func parseLiteral(tok string) (value string, kind ValueKind, err error) {
	switch {
	case tok == "true":
		return tok, ValBool, nil
	case tok == "false":
		return tok, ValBool, nil
	case strings.HasPrefix(tok, "`"):
		return strings.TrimPrefix(tok, "`"), ValSymbol, nil
	case strings.HasPrefix(tok, `"`) && strings.HasSuffix(tok, `"`) && len(tok) >= 2:
		return tok[1 : len(tok)-1], ValString, nil
	case strings.ContainsRune(tok, '/'):
		return tok, ValPath, nil
	case isIntLiteral(tok):
		return tok, ValInt, nil
	case isRealLiteral(tok):
		return tok, ValReal, nil
	default:
		return tok, ValString, nil
	}
}

func isIntLiteral(s string) bool {
	if s == "" {
		return false
	}
	start := 0
	if s[0] == '-' {
		start = 1
	}
	if start == len(s) {
		return false
	}
	for _, c := range s[start:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isRealLiteral(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil && strings.ContainsRune(s, '.')
}

func isDottedIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, part := range strings.Split(s, ".") {
		if part == "" {
			return false
		}
		for i, c := range part {
			if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
				continue
			}
			if i > 0 && c >= '0' && c <= '9' {
				continue
			}
			return false
		}
	}
	return true
}

// tokenize splits src on whitespace, treating "=" and ";" as their own
// tokens even when not surrounded by spaces (e.g. "hello.mode=debug;").
func tokenize(src string) []string {
	var toks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	inString := false
	for _, r := range src {
		switch {
		case r == '"':
			inString = !inString
			cur.WriteRune(r)
		case inString:
			cur.WriteRune(r)
		case r == '=' || r == ';':
			flush()
			toks = append(toks, string(r))
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return toks
}

// ParseTargetList parses the target-list mini-language of spec §6:
// whitespace-separated identifiers.
func ParseTargetList(src string) []string {
	return strings.Fields(src)
}
