package loader

import (
	"sync"

	"github.com/forgepipe/anvil/pkg/idset"
)

// IndirectHandle refers to a name/path whose binding to an artifact id may
// change over time (file moves, renames).
type IndirectHandle struct {
	Name string
}

// IndirectionTable maps indirect handles to the direct load handle they
// currently resolve to. Rebinding increments the new target's refcount
// before decrementing the old target's, so a consumer never observes a
// gap where neither target is referenced.
type IndirectionTable struct {
	mu       sync.RWMutex
	bindings map[string]*Handle
	loader   *Loader
}

// NewIndirectionTable returns an empty table bound to loader.
func NewIndirectionTable(loader *Loader) *IndirectionTable {
	return &IndirectionTable{bindings: make(map[string]*Handle), loader: loader}
}

// Resolve returns the current direct handle for name, if bound.
func (t *IndirectionTable) Resolve(name string) (*Handle, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.bindings[name]
	return h, ok
}

// Bind establishes or rebinds name to target. The new target's Strong ref
// is acquired before the old one is dropped. The returned handle's token
// carries the indirect bit (see Handle.IsIndirect), marking it as reached
// through this table's name binding rather than a direct AddRef.
func (t *IndirectionTable) Bind(name string, target idset.ArtifactId) *Handle {
	newHandle := t.loader.AddRef(target, Strong)
	newHandle.token |= indirectTokenBit

	t.mu.Lock()
	old, hadOld := t.bindings[name]
	t.bindings[name] = newHandle
	t.mu.Unlock()

	if hadOld {
		old.Drop()
	}
	return newHandle
}

// Unbind removes name's binding entirely, dropping its Strong ref.
func (t *IndirectionTable) Unbind(name string) {
	t.mu.Lock()
	old, ok := t.bindings[name]
	delete(t.bindings, name)
	t.mu.Unlock()

	if ok {
		old.Drop()
	}
}
