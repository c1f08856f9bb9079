// Package freshness implements the Freshness Oracle (spec §4.7): decides
// whether a generated Operation's output is stale with respect to its
// inputs, so the dispatcher only re-runs work the filesystem actually
// requires (testable property §8.4, idempotence).
package freshness

import (
	"os"
	"time"

	"github.com/busybuild/busy/internal/codegen"
)

// Stat abstracts filesystem metadata lookup so tests can fake mtimes
// without touching disk.
type Stat interface {
	ModTime(path string) (t time.Time, exists bool)
}

// OSStat is the production Stat backed by os.Stat, following symlinks the
// way the spec's default (non-explicit) mode requires.
type OSStat struct{}

func (OSStat) ModTime(path string) (time.Time, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

// Oracle decides operation due-ness against a Stat source and an optional
// header-dependency snapshot (spec §4.7's "IDE-supplied dependency
// snapshot", opt-in per SPEC_FULL.md §5 decision).
type Oracle struct {
	Stat       Stat
	HeaderDeps map[string][]string // infile -> transitive headers, opt-in
}

// New creates an Oracle backed by the real filesystem with no header
// tracking enabled.
func New() *Oracle {
	return &Oracle{Stat: OSStat{}}
}

// IsDue reports whether op must run (spec §4.7).
func (o *Oracle) IsDue(op codegen.Operation) bool {
	if op.OpKind == codegen.EnteringProduct {
		return false
	}
	if op.OpKind == codegen.RunLua {
		return true
	}

	out := op.Outfile()
	if out == "" {
		return true // marker-less operation with no output tracked: always run
	}
	outTime, outExists := o.Stat.ModTime(out)
	if !outExists {
		return true
	}

	for _, in := range op.Infiles() {
		inTime, inExists := o.Stat.ModTime(in)
		if !inExists {
			return true
		}
		if inTime.After(outTime) {
			return true
		}
	}

	if op.OpKind == codegen.Compile {
		for _, in := range op.Infiles() {
			for _, hdr := range o.HeaderDeps[in] {
				hdrTime, exists := o.Stat.ModTime(hdr)
				if !exists || hdrTime.After(outTime) {
					return true
				}
			}
		}
	}

	return false
}

// Filter returns the subset of ops that are due, plus every EnteringProduct
// marker (kept for its label although IsDue never reports it due),
// preserving order. A
// product's own generator/compile/link chain only matters transitively:
// if an earlier operation in the same product is due, the spec's group
// barriers already ensure the producer reruns before its consumer is
// evaluated for freshness — but freshness.Oracle itself only answers the
// question for one operation at a time, matching §4.7's per-operation
// definition; dispatch.Dispatcher is responsible for re-evaluating
// due-ness of a downstream operation once its own inputs (now newly
// written by a rerun producer) change mtime.
func (o *Oracle) Filter(ops []codegen.Operation) []codegen.Operation {
	due := make([]codegen.Operation, 0, len(ops))
	for _, op := range ops {
		if op.OpKind == codegen.EnteringProduct || o.IsDue(op) {
			due = append(due, op)
		}
	}
	return due
}
