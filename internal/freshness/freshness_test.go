package freshness

import (
	"testing"
	"time"

	"github.com/busybuild/busy/internal/codegen"
	"github.com/stretchr/testify/assert"
)

type fakeStat map[string]time.Time

func (f fakeStat) ModTime(path string) (time.Time, bool) {
	t, ok := f[path]
	return t, ok
}

func compileOp(in, out string) codegen.Operation {
	return codegen.Operation{
		OpKind: codegen.Compile,
		Params: []codegen.Param{
			{Kind: codegen.ParamInfile, Value: in},
			{Kind: codegen.ParamOutfile, Value: out},
		},
	}
}

func TestIsDue_MissingOutput(t *testing.T) {
	o := &Oracle{Stat: fakeStat{"/a/main.c": time.Unix(100, 0)}}
	assert.True(t, o.IsDue(compileOp("/a/main.c", "/a/main.o")))
}

func TestIsDue_InputNewerThanOutput(t *testing.T) {
	o := &Oracle{Stat: fakeStat{
		"/a/main.c": time.Unix(200, 0),
		"/a/main.o": time.Unix(100, 0),
	}}
	assert.True(t, o.IsDue(compileOp("/a/main.c", "/a/main.o")))
}

func TestIsDue_UpToDate(t *testing.T) {
	o := &Oracle{Stat: fakeStat{
		"/a/main.c": time.Unix(100, 0),
		"/a/main.o": time.Unix(200, 0),
	}}
	assert.False(t, o.IsDue(compileOp("/a/main.c", "/a/main.o")))
}

func TestIsDue_MissingInput(t *testing.T) {
	o := &Oracle{Stat: fakeStat{"/a/main.o": time.Unix(200, 0)}}
	assert.True(t, o.IsDue(compileOp("/a/main.c", "/a/main.o")))
}

func TestIsDue_RunLuaAlwaysDue(t *testing.T) {
	o := &Oracle{Stat: fakeStat{}}
	op := codegen.Operation{OpKind: codegen.RunLua}
	assert.True(t, o.IsDue(op))
}

func TestIsDue_EnteringProductNeverDue(t *testing.T) {
	o := &Oracle{Stat: fakeStat{}}
	op := codegen.Operation{OpKind: codegen.EnteringProduct}
	assert.False(t, o.IsDue(op))
}

func TestIsDue_HeaderTrackingOptIn(t *testing.T) {
	o := &Oracle{
		Stat: fakeStat{
			"/a/main.c": time.Unix(100, 0),
			"/a/main.o": time.Unix(200, 0),
			"/a/widget.h": time.Unix(300, 0),
		},
		HeaderDeps: map[string][]string{"/a/main.c": {"/a/widget.h"}},
	}
	assert.True(t, o.IsDue(compileOp("/a/main.c", "/a/main.o")))
}

func TestIsDue_HeaderTrackingDisabledIgnoresHeader(t *testing.T) {
	o := &Oracle{
		Stat: fakeStat{
			"/a/main.c": time.Unix(100, 0),
			"/a/main.o": time.Unix(200, 0),
		},
	}
	assert.False(t, o.IsDue(compileOp("/a/main.c", "/a/main.o")))
}
