package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/busybuild/busy/internal/codegen"
	"github.com/busybuild/busy/internal/freshness"
	"github.com/busybuild/busy/internal/procadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStat map[string]time.Time

func (f fakeStat) ModTime(path string) (time.Time, bool) {
	t, ok := f[path]
	return t, ok
}

type fakeRunner struct {
	mu     sync.Mutex
	ran    []codegen.Operation
	fail   map[int]bool // index into ran -> force failure
	count  int32
	delay  time.Duration
}

func (f *fakeRunner) Run(ctx context.Context, op codegen.Operation) procadapter.Result {
	n := int(atomic.AddInt32(&f.count, 1)) - 1
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	f.ran = append(f.ran, op)
	shouldFail := f.fail != nil && f.fail[n]
	f.mu.Unlock()
	if shouldFail {
		return procadapter.Result{Success: false, ExitCode: 1}
	}
	return procadapter.Result{Success: true, ExitCode: 0}
}

func op(kind codegen.Op, group int32, out string) codegen.Operation {
	return codegen.Operation{OpKind: kind, Group: group, Params: []codegen.Param{{Kind: codegen.ParamOutfile, Value: out}}}
}

func TestDispatcher_RunsAllOperationsInGroupOrder(t *testing.T) {
	runner := &fakeRunner{}
	events := make(chan Event, 64)
	d := &Dispatcher{Workers: 2, Runner: runner, Events: events}

	ops := []codegen.Operation{
		op(codegen.Compile, 0, "/a.o"),
		op(codegen.Compile, 0, "/b.o"),
		op(codegen.LinkExe, 1, "/out"),
	}
	ok := d.Run(context.Background(), ops)
	assert.True(t, ok)
	assert.Len(t, runner.ran, 3)

	var finished bool
	for len(events) > 0 {
		ev := <-events
		if ev.Kind == TaskFinished {
			finished = true
			assert.True(t, ev.Success)
		}
	}
	assert.True(t, finished)
}

func TestDispatcher_StopOnErrorDrainsAndFails(t *testing.T) {
	runner := &fakeRunner{fail: map[int]bool{0: true}}
	d := &Dispatcher{Workers: 1, Runner: runner, StopOnError: true}

	ops := []codegen.Operation{
		op(codegen.Compile, 0, "/a.o"),
		op(codegen.Compile, 1, "/b.o"),
		op(codegen.LinkExe, 2, "/out"),
	}
	ok := d.Run(context.Background(), ops)
	assert.False(t, ok)
	assert.Len(t, runner.ran, 1, "draining must prevent later groups from dispatching")
}

func TestDispatcher_CancellationStopsNewWork(t *testing.T) {
	runner := &fakeRunner{delay: 20 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())

	ops := []codegen.Operation{
		op(codegen.Compile, 0, "/a.o"),
		op(codegen.Compile, 1, "/b.o"),
	}
	d := &Dispatcher{Workers: 1, Runner: runner}

	cancel() // cancel before Run starts, so no group is dispatched at all
	ok := d.Run(ctx, ops)
	assert.False(t, ok)
}

func TestDispatcher_SkipsOperationsNotDue(t *testing.T) {
	runner := &fakeRunner{}
	oracle := &freshness.Oracle{Stat: fakeStat{"/a.o": time.Unix(1, 0)}}
	d := &Dispatcher{Workers: 1, Runner: runner, Oracle: oracle}

	ops := []codegen.Operation{op(codegen.Compile, 0, "/a.o")}
	ok := d.Run(context.Background(), ops)
	require.True(t, ok)
	assert.Empty(t, runner.ran)
}
