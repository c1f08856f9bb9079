package session

import (
	"testing"

	"github.com/busybuild/busy/internal/toolchain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	s := New("/src", "/build")
	assert.Equal(t, Debug, s.Mode)
	assert.Equal(t, toolchain.GCC, s.Toolchain)
	assert.Equal(t, toolchain.Linux, s.TargetOS)
	assert.Equal(t, 64, s.TargetWordSize)
}

func TestWithOptions(t *testing.T) {
	s := New("/src", "/build",
		WithMode(Optimized),
		WithToolchain(toolchain.MSVC),
		WithTargetOS(toolchain.Win32),
		WithWorkers(8),
		WithStopOnError(true),
		WithTargets("hello", "world"),
		WithInstallPrefix("/usr/local"),
	)
	assert.Equal(t, Optimized, s.Mode)
	assert.Equal(t, toolchain.MSVC, s.Toolchain)
	assert.Equal(t, toolchain.Win32, s.TargetOS)
	assert.Equal(t, 8, s.Workers)
	assert.True(t, s.StopOnError)
	assert.Equal(t, []string{"hello", "world"}, s.Targets)
	assert.Equal(t, "/usr/local", s.InstallPrefix)
}

func TestParseParameterFile(t *testing.T) {
	params, err := ParseParameterFile(`hello.mode = debug; hello.workers = 4; hello.enabled = true`)
	require.NoError(t, err)
	require.Len(t, params, 3)

	assert.Equal(t, "hello.mode", params[0].Designator)
	assert.Equal(t, ValString, params[0].Kind)
	assert.Equal(t, "debug", params[0].Str)

	assert.Equal(t, "hello.workers", params[1].Designator)
	assert.Equal(t, ValInt, params[1].Kind)
	assert.EqualValues(t, 4, params[1].Int)

	assert.Equal(t, "hello.enabled", params[2].Designator)
	assert.Equal(t, ValBool, params[2].Kind)
	assert.True(t, params[2].Bool)
}

func TestParseParameterFile_PathAndSymbolAndString(t *testing.T) {
	params, err := ParseParameterFile(`a.src = ./main.cpp b.tag = ` + "`release" + ` c.name = "hello world"`)
	require.NoError(t, err)
	require.Len(t, params, 3)
	assert.Equal(t, ValPath, params[0].Kind)
	assert.Equal(t, "./main.cpp", params[0].Str)
	assert.Equal(t, ValSymbol, params[1].Kind)
	assert.Equal(t, "release", params[1].Str)
	assert.Equal(t, ValString, params[2].Kind)
	assert.Equal(t, "hello world", params[2].Str)
}

func TestParseParameterFile_NoValue(t *testing.T) {
	params, err := ParseParameterFile(`hello.verbose`)
	require.NoError(t, err)
	require.Len(t, params, 1)
	assert.False(t, params[0].HasValue)
}

func TestParseParameterFile_RejectsBadDesignator(t *testing.T) {
	_, err := ParseParameterFile(`1bad = debug`)
	assert.Error(t, err)
}

func TestParseTargetList(t *testing.T) {
	assert.Equal(t, []string{"hello", "world"}, ParseTargetList("  hello   world  "))
}
