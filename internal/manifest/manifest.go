// Package manifest provides an optional on-disk YAML form of a build
// session (spec §6 inputs), for CI/batch usage where typing the
// parameter-file and target-list mini-languages by hand is inconvenient.
// Structurally grounded on the teacher's internal/manifest.Load/Save/
// Validate shape, retargeted from example-file bookkeeping to BUSY session
// config and serialized with gopkg.in/yaml.v3 instead of JSON.
package manifest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/busybuild/busy/internal/session"
	"github.com/busybuild/busy/internal/toolchain"
)

// SchemaVersion tags the manifest format, mirroring the teacher's
// Schema/SchemaVersion pair so a future incompatible format change is
// detectable rather than silently misparsed.
const SchemaVersion = "busy.manifest/v1"

// ParameterEntry is the YAML-friendly form of session.Parameter: a plain
// scalar value rather than the tagged union the mini-language parser
// produces, since YAML already carries a type per node.
type ParameterEntry struct {
	Designator string `yaml:"designator"`
	Value      string `yaml:"value"`
}

// Manifest is the on-disk session description.
type Manifest struct {
	Schema          string            `yaml:"schema"`
	RootSourceDir   string            `yaml:"root_source_dir"`
	RootBuildDir    string            `yaml:"root_build_dir"`
	Mode            string            `yaml:"mode"`
	Toolchain       string            `yaml:"toolchain"`
	ToolchainPath   string            `yaml:"toolchain_path,omitempty"`
	ToolchainPrefix string            `yaml:"toolchain_prefix,omitempty"`
	TargetOS        string            `yaml:"target_os"`
	TargetCPU       string            `yaml:"target_cpu,omitempty"`
	TargetWordSize  int               `yaml:"target_word_size"`
	Workers         int               `yaml:"workers,omitempty"`
	StopOnError     bool              `yaml:"stop_on_error,omitempty"`
	Targets         []string          `yaml:"targets,omitempty"`
	Parameters      []ParameterEntry  `yaml:"parameters,omitempty"`
	InstallPrefix   string            `yaml:"install_prefix,omitempty"`
}

// FromSession converts a live session.Session into its serializable form.
func FromSession(s *session.Session) *Manifest {
	m := &Manifest{
		Schema:          SchemaVersion,
		RootSourceDir:   s.RootSourceDir,
		RootBuildDir:    s.RootBuildDir,
		Mode:            string(s.Mode),
		Toolchain:       string(s.Toolchain),
		ToolchainPath:   s.ToolchainPath,
		ToolchainPrefix: s.ToolchainPrefix,
		TargetOS:        string(s.TargetOS),
		TargetCPU:       s.TargetCPU,
		TargetWordSize:  s.TargetWordSize,
		Workers:         s.Workers,
		StopOnError:     s.StopOnError,
		Targets:         s.Targets,
		InstallPrefix:   s.InstallPrefix,
	}
	for _, p := range s.Parameters {
		m.Parameters = append(m.Parameters, ParameterEntry{Designator: p.Designator, Value: p.Str})
	}
	return m
}

// ToSession builds a session.Session from a parsed Manifest.
func (m *Manifest) ToSession() (*session.Session, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	var params []session.Parameter
	for _, p := range m.Parameters {
		params = append(params, session.Parameter{Designator: p.Designator, HasValue: true, Kind: session.ValString, Str: p.Value})
	}
	mode := session.Mode(m.Mode)
	if mode == "" {
		mode = session.Debug
	}
	tc := toolchain.Toolchain(m.Toolchain)
	if tc == "" {
		tc = toolchain.GCC
	}
	s := session.New(m.RootSourceDir, m.RootBuildDir,
		session.WithMode(mode),
		session.WithToolchain(tc),
		session.WithTargetOS(toolchain.OS(m.TargetOS)),
		session.WithTargetCPU(m.TargetCPU),
		session.WithWordSize(m.TargetWordSize),
		session.WithToolchainPath(m.ToolchainPath),
		session.WithToolchainPrefix(m.ToolchainPrefix),
		session.WithWorkers(m.Workers),
		session.WithStopOnError(m.StopOnError),
		session.WithTargets(m.Targets...),
		session.WithParameters(params...),
		session.WithInstallPrefix(m.InstallPrefix),
	)
	return s, nil
}

// Load reads and validates a manifest from path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("manifest validation failed: %w", err)
	}
	return &m, nil
}

// Save writes m to path as YAML.
func (m *Manifest) Save(path string) error {
	if m.Schema == "" {
		m.Schema = SchemaVersion
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks a loaded manifest for the fields a Session requires.
func (m *Manifest) Validate() error {
	if m.Schema != "" && m.Schema != SchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected %s)", m.Schema, SchemaVersion)
	}
	if m.RootSourceDir == "" {
		return fmt.Errorf("missing root_source_dir")
	}
	if m.RootBuildDir == "" {
		return fmt.Errorf("missing root_build_dir")
	}
	switch session.Mode(m.Mode) {
	case session.Debug, session.Optimized, session.NonOptimized, "":
	default:
		return fmt.Errorf("invalid mode: %s", m.Mode)
	}
	switch toolchain.Toolchain(m.Toolchain) {
	case toolchain.GCC, toolchain.Clang, toolchain.MSVC, "":
	default:
		return fmt.Errorf("invalid toolchain: %s", m.Toolchain)
	}
	return nil
}
