// Package dispatch implements the Worker Pool & Dispatcher (spec §4.8): a
// single dispatcher goroutine drains a group-ordered Operation list across
// W worker goroutines, advancing the group barrier only once every
// in-flight operation of the current group has completed.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/busybuild/busy/internal/codegen"
	"github.com/busybuild/busy/internal/freshness"
	"github.com/busybuild/busy/internal/procadapter"
)

// EventKind tags a progress event delivered to the Reporter (spec §6).
type EventKind int

const (
	TaskStarted EventKind = iota
	TaskProgress
	TaskFinished
	ProcessResultEvent
)

// Event is one typed progress/result notification.
type Event struct {
	Kind      EventKind
	Operation codegen.Operation
	Result    procadapter.Result
	Success   bool // meaningful only for TaskFinished
}

// Runner abstracts "do the operation", so tests can substitute a fake
// without spawning real processes. Copy bypasses procadapter.Run entirely
// (spec §4.9); everything else goes through the external-process adapter.
type Runner interface {
	Run(ctx context.Context, op codegen.Operation) procadapter.Result
}

// AdapterRunner is the production Runner backed by procadapter.
type AdapterRunner struct {
	Adapter *procadapter.Adapter
}

func (r AdapterRunner) Run(ctx context.Context, op codegen.Operation) procadapter.Result {
	if op.OpKind == codegen.Copy {
		in := op.Infiles()
		out := op.Outfile()
		src := ""
		if len(in) > 0 {
			src = in[0]
		}
		if err := procadapter.CopyFile(src, out); err != nil {
			return procadapter.Result{Success: false, Program: "copy", ExitCode: -1, Stderr: []string{err.Error()}}
		}
		return procadapter.Result{Success: true, Program: "copy", ExitCode: 0}
	}

	cmd, err := r.Adapter.BuildArgv(op)
	if err != nil {
		return procadapter.Result{Success: false, ExitCode: -1, Stderr: []string{err.Error()}}
	}
	return procadapter.Run(ctx, cmd)
}

// Dispatcher runs a single build session's operation list (spec §4.8).
type Dispatcher struct {
	Workers     int
	Runner      Runner
	Oracle      *freshness.Oracle
	StopOnError bool
	Events      chan<- Event // caller-owned; Dispatcher never closes it
}

// Run drains ops honoring group barriers (dispatch rules 1–2), dispatches
// onto at most Workers concurrent goroutines (bounded by a weighted
// semaphore — golang.org/x/sync, matching the pack's pool-sizing idiom),
// and reports success=false on the first failure when StopOnError is set
// or on ctx cancellation (dispatch rules 3–4).
func (d *Dispatcher) Run(ctx context.Context, ops []codegen.Operation) bool {
	sem := semaphore.NewWeighted(int64(maxInt(1, d.Workers)))
	var wg sync.WaitGroup
	var mu sync.Mutex
	failed := false
	draining := false

	emit := func(ev Event) {
		if d.Events != nil {
			d.Events <- ev
		}
	}

	i := 0
	for i < len(ops) {
		mu.Lock()
		stop := draining || ctx.Err() != nil
		mu.Unlock()
		if stop {
			break
		}

		group := ops[i].Group
		var groupOps []codegen.Operation
		for i < len(ops) && ops[i].Group == group {
			groupOps = append(groupOps, ops[i])
			i++
		}

		for _, op := range groupOps {
			mu.Lock()
			stop := draining || ctx.Err() != nil
			mu.Unlock()
			if stop {
				break
			}

			if op.OpKind == codegen.EnteringProduct {
				emit(Event{Kind: TaskStarted, Operation: op})
				continue
			}
			if d.Oracle != nil && !d.Oracle.IsDue(op) {
				continue
			}

			if err := sem.Acquire(ctx, 1); err != nil {
				mu.Lock()
				failed = true
				mu.Unlock()
				break
			}
			wg.Add(1)
			op := op
			go func() {
				defer wg.Done()
				defer sem.Release(1)

				result := d.Runner.Run(ctx, op)
				emit(Event{Kind: ProcessResultEvent, Operation: op, Result: result})
				emit(Event{Kind: TaskProgress, Operation: op, Success: result.Success})

				if !result.Success {
					mu.Lock()
					failed = true
					if d.StopOnError {
						draining = true
					}
					mu.Unlock()
				}
			}()
		}

		// Group barrier: wait for the in-flight pool to drain before
		// advancing to the next group (dispatch rule 2).
		wg.Wait()
	}

	wg.Wait()

	mu.Lock()
	success := !failed && ctx.Err() == nil
	mu.Unlock()

	emit(Event{Kind: TaskFinished, Success: success})
	return success
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// DescribeTimeout renders a human-readable note for a timed-out operation:
// the "process timeout" text procadapter.Run appends to stderr, followed by
// the duration.
func DescribeTimeout(d time.Duration) string {
	return fmt.Sprintf("process timeout after %s", d)
}
