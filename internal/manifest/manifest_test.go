package manifest

import (
	"path/filepath"
	"testing"

	"github.com/busybuild/busy/internal/session"
	"github.com/busybuild/busy/internal/toolchain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "busy.yaml")

	s := session.New("/src", "/build",
		session.WithMode(session.Optimized),
		session.WithToolchain(toolchain.Clang),
		session.WithTargetOS(toolchain.MacOS),
		session.WithTargets("hello"),
	)
	m := FromSession(s)
	require.NoError(t, m.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/src", loaded.RootSourceDir)
	assert.Equal(t, "optimized", loaded.Mode)
	assert.Equal(t, "clang", loaded.Toolchain)
	assert.Equal(t, []string{"hello"}, loaded.Targets)

	s2, err := loaded.ToSession()
	require.NoError(t, err)
	assert.Equal(t, session.Optimized, s2.Mode)
	assert.Equal(t, toolchain.Clang, s2.Toolchain)
}

func TestValidate_RejectsUnknownSchema(t *testing.T) {
	m := &Manifest{Schema: "other/v9", RootSourceDir: "/src", RootBuildDir: "/build"}
	assert.Error(t, m.Validate())
}

func TestValidate_RequiresDirs(t *testing.T) {
	m := &Manifest{}
	assert.Error(t, m.Validate())
}

func TestValidate_RejectsBadMode(t *testing.T) {
	m := &Manifest{RootSourceDir: "/src", RootBuildDir: "/build", Mode: "turbo"}
	assert.Error(t, m.Validate())
}
