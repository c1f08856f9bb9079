// Package reftable implements BUSY's Reference Table (spec §4.2): the sole
// authority mapping a stable integer Reference to a Record. Once assigned a
// Reference never changes and never refers to a different record.
package reftable

import (
	"fmt"
	"sync"

	"github.com/busybuild/busy/internal/token"
)

// Reference is a stable non-zero integer identifying a Record. The zero
// value is reserved and never resolves to a record.
type Reference int64

// Kind tags the variant of a Record.
type Kind int

const (
	KindModule Kind = iota
	KindClassDecl
	KindVarDecl
	KindField
)

func (k Kind) String() string {
	switch k {
	case KindModule:
		return "Module"
	case KindClassDecl:
		return "ClassDecl"
	case KindVarDecl:
		return "VarDecl"
	case KindField:
		return "Field"
	default:
		return "Unknown"
	}
}

// Record is the tagged-variant payload every reference resolves to. Payload
// is kind-specific (e.g. *resolve.ModulePayload, *product.Instance) and is
// type-asserted by callers that already know the Kind they registered.
type Record struct {
	Kind    Kind
	Name    string
	Owner   Reference // enclosing module, or 0 for the root
	Pos     token.Position
	Payload interface{}
}

// ErrDuplicateName is returned by Register when the enclosing module already
// has a declaration of that name (spec §4.2).
type ErrDuplicateName struct {
	Owner Reference
	Name  string
}

func (e *ErrDuplicateName) Error() string {
	return fmt.Sprintf("DuplicateName: %q already declared in module %d", e.Name, e.Owner)
}

// Table owns every Record for the duration of one evaluate-build session.
// All mutation happens during evaluation; it is treated as frozen
// thereafter — reads are safe without synchronization once evaluation
// completes, but Register/fields remain guarded for callers that build the
// graph concurrently (e.g. parallel sub-module loads).
type Table struct {
	mu       sync.Mutex
	records  map[Reference]*Record
	children map[Reference][]Reference
	byName   map[Reference]map[string]Reference // owner -> name -> ref
	next     int64
}

// New creates an empty Table. Reference 0 is reserved and never registered.
func New() *Table {
	return &Table{
		records:  make(map[Reference]*Record),
		children: make(map[Reference][]Reference),
		byName:   make(map[Reference]map[string]Reference),
		next:     1,
	}
}

// Register assigns the next free Reference to rec and inserts it, failing
// with *ErrDuplicateName if rec.Owner already has a child of that name.
func (t *Table) Register(rec Record) (Reference, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if rec.Name != "" {
		if names, ok := t.byName[rec.Owner]; ok {
			if _, dup := names[rec.Name]; dup {
				return 0, &ErrDuplicateName{Owner: rec.Owner, Name: rec.Name}
			}
		}
	}

	ref := Reference(t.next)
	t.next++

	stored := rec
	t.records[ref] = &stored
	t.children[rec.Owner] = append(t.children[rec.Owner], ref)
	if t.byName[rec.Owner] == nil {
		t.byName[rec.Owner] = make(map[string]Reference)
	}
	if rec.Name != "" {
		t.byName[rec.Owner][rec.Name] = ref
	}
	return ref, nil
}

// Resolve returns the Record for ref, or nil if ref is the reserved zero
// reference or unknown. Per spec §4.2 an unknown non-zero reference in a
// well-formed session is an internal error; callers that expect ref to be
// valid should treat a nil result as such.
func (t *Table) Resolve(ref Reference) *Record {
	if ref == 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.records[ref]
}

// MustResolve is Resolve but panics on a stale/zero reference — used in
// contexts downstream of evaluation where every reference is guaranteed
// well-formed (spec §4.2: "should never happen in a well-formed session").
func (t *Table) MustResolve(ref Reference) *Record {
	rec := t.Resolve(ref)
	if rec == nil {
		panic(fmt.Sprintf("InternalError: stale or zero reference %d", ref))
	}
	return rec
}

// Owner returns the owning Reference of ref (0 if ref is the root or
// unknown).
func (t *Table) Owner(ref Reference) Reference {
	rec := t.Resolve(ref)
	if rec == nil {
		return 0
	}
	return rec.Owner
}

// Children returns the references registered with owner ref, in
// registration (source) order.
func (t *Table) Children(ref Reference) []Reference {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Reference, len(t.children[ref]))
	copy(out, t.children[ref])
	return out
}

// All returns every registered Reference in registration order. Used by
// phases that need to walk the whole graph once evaluation has finished
// (e.g. the Config Merger scanning for product declarations).
func (t *Table) All() []Reference {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Reference, 0, len(t.records))
	for ref := Reference(1); int64(ref) < t.next; ref++ {
		if _, ok := t.records[ref]; ok {
			out = append(out, ref)
		}
	}
	return out
}

// Field looks up a named child of owner ref.
func (t *Table) Field(ref Reference, name string) (Reference, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	names, ok := t.byName[ref]
	if !ok {
		return 0, false
	}
	child, ok := names[name]
	return child, ok
}
