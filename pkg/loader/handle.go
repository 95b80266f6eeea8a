package loader

import "github.com/forgepipe/anvil/pkg/idset"

// RefKind is the kind of reference a Handle holds. A Strong handle
// decrements the refcount on drop; Weak does not; Internal handles
// (created while deserializing an artifact's own embedded references) do
// not decrement on drop but upgrade to Strong when cloned.
type RefKind int

const (
	Strong RefKind = iota
	Weak
	Internal
)

// Handle is a live reference to an artifact's load state, returned by
// Loader.AddRef. Each handle also carries an opaque, monotonically
// allocated token (see Token) distinct from the Go pointer identity, so
// code that needs a comparable, serializable handle identity — logging,
// wire protocols, a side table — doesn't need to smuggle a *Handle out of
// the loader's lifetime.
type Handle struct {
	id     idset.ArtifactId
	kind   RefKind
	loader *Loader
	token  uint64
}

// ArtifactID returns the artifact this handle refers to.
func (h *Handle) ArtifactID() idset.ArtifactId { return h.id }

// Kind returns the handle's current ref kind.
func (h *Handle) Kind() RefKind { return h.kind }

// Token returns the handle's opaque 64-bit identity, allocated
// monotonically by the owning Loader. The high bit is set when the handle
// was bound indirectly (through IndirectionTable.Bind) rather than
// acquired directly via AddRef; see IsIndirect.
func (h *Handle) Token() uint64 { return h.token }

// IsIndirect reports whether this handle's token was issued through an
// IndirectionTable.Bind.
func (h *Handle) IsIndirect() bool { return h.token&indirectTokenBit != 0 }

// State returns the current load state of the referenced artifact.
func (h *Handle) State() State {
	return h.loader.State(h.id)
}

// Clone returns a new handle to the same artifact. Cloning an Internal
// handle upgrades both the clone and (for refcounting purposes) adds a
// genuine Strong reference.
func (h *Handle) Clone() *Handle {
	kind := h.kind
	if kind == Internal {
		kind = Strong
	}
	return h.loader.AddRef(h.id, kind)
}

// Drop releases the handle. A Strong handle decrements the artifact's
// strong refcount, possibly returning it to Unloaded; a Weak handle
// decrements only the weak count; Internal handles are no-ops.
func (h *Handle) Drop() {
	if h.kind == Strong {
		h.loader.removeRef(h.id, Strong)
	} else if h.kind == Weak {
		h.loader.removeRef(h.id, Weak)
	}
}
