package procadapter

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/busybuild/busy/internal/codegen"
	"github.com/busybuild/busy/internal/toolchain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildArgv_CompileGcc(t *testing.T) {
	a := &Adapter{Toolchain: toolchain.GCC, OS: toolchain.Linux}
	op := codegen.Operation{
		OpKind: codegen.Compile,
		Params: []codegen.Param{
			{Kind: codegen.ParamIncludeDir, Value: "/inc"},
			{Kind: codegen.ParamDefine, Value: "X=1"},
			{Kind: codegen.ParamInfile, Value: "/src/main.c"},
			{Kind: codegen.ParamOutfile, Value: "/build/main.o"},
		},
	}
	cmd, err := a.BuildArgv(op)
	require.NoError(t, err)
	assert.Equal(t, "cc", cmd.Program)
	assert.Equal(t, []string{"-I/inc", "-DX=1", "-c", "-o", "/build/main.o", "/src/main.c"}, cmd.Args)
	assert.Empty(t, cmd.RspPath)
}

func TestBuildArgv_LinkExeWin32AlwaysUsesRsp(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "hello.exe")
	a := &Adapter{Toolchain: toolchain.MSVC, OS: toolchain.Win32}
	op := codegen.Operation{
		OpKind: codegen.LinkExe,
		Params: []codegen.Param{
			{Kind: codegen.ParamInfile, Value: filepath.Join(dir, "main.obj")},
			{Kind: codegen.ParamOutfile, Value: out},
		},
	}
	cmd, err := a.BuildArgv(op)
	require.NoError(t, err)
	require.NotEmpty(t, cmd.RspPath)
	assert.True(t, strings.HasPrefix(filepath.Base(cmd.RspPath), "hello"))

	data, err := os.ReadFile(cmd.RspPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "main.obj"), string(data))

	found := false
	for _, arg := range cmd.Args {
		if arg == "@"+cmd.RspPath {
			found = true
		}
	}
	assert.True(t, found)
}

func TestBuildArgv_CompileNeverUsesRsp(t *testing.T) {
	a := &Adapter{Toolchain: toolchain.MSVC, OS: toolchain.Win32}
	op := codegen.Operation{
		OpKind: codegen.Compile,
		Params: []codegen.Param{
			{Kind: codegen.ParamInfile, Value: `C:\src\main.cpp`},
			{Kind: codegen.ParamOutfile, Value: `C:\build\main.obj`},
		},
	}
	cmd, err := a.BuildArgv(op)
	require.NoError(t, err)
	assert.Empty(t, cmd.RspPath)
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "out", "dst.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))

	require.NoError(t, CopyFile(src, dst))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestRun_SuccessAndFailure(t *testing.T) {
	ok := Run(context.Background(), Command{Program: "true"})
	assert.True(t, ok.Success)
	assert.Equal(t, 0, ok.ExitCode)

	fail := Run(context.Background(), Command{Program: "false"})
	assert.False(t, fail.Success)
	assert.NotEqual(t, 0, fail.ExitCode)
}

func TestDescribeCommandQuotesSpaces(t *testing.T) {
	a := &Adapter{Toolchain: toolchain.GCC, OS: toolchain.Linux}
	line := a.DescribeCommand(Command{Program: "cc", Args: []string{"-o", "out file.o"}})
	assert.Contains(t, line, "'out file.o'")
}
