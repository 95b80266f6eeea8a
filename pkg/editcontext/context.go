// Package editcontext wraps a Data Set with change tracking and
// snapshot-based undo/redo.
package editcontext

import (
	"errors"
	"fmt"

	"github.com/forgepipe/anvil/pkg/dataset"
	"github.com/forgepipe/anvil/pkg/idset"
)

var ErrNoPendingChange = errors.New("editcontext: no pending change to commit or cancel")

// pendingGroup accumulates the before-snapshots of one undoable mutation
// batch; the matching after-snapshots are taken when CommitPending closes
// it. A pending group is either committed or cancelled.
type pendingGroup struct {
	before map[idset.AssetId]*dataset.Asset
}

// Context is one Edit Context: a Data Set view plus change tracking and the
// currently-open pending undo group, if any.
type Context struct {
	name    string
	store   *dataset.Store
	session *Session
	tracker *ChangeTracker
	pending *pendingGroup
}

// Store returns the underlying Data Set. Callers should route mutations
// through Mutate so they participate in undo tracking; reads may use Store
// directly.
func (c *Context) Store() *dataset.Store { return c.store }

// Tracker returns this context's change tracker.
func (c *Context) Tracker() *ChangeTracker { return c.tracker }

// Mutate runs fn against the context's store, first snapshotting assetID's
// pre-mutation state into the (lazily opened) pending group if this is the
// first time assetID is touched within it. On success assetID is marked
// modified in the change tracker.
func (c *Context) Mutate(assetID idset.AssetId, fn func(*dataset.Store) error) error {
	if c.pending == nil {
		c.pending = &pendingGroup{before: make(map[idset.AssetId]*dataset.Asset)}
	}
	if _, already := c.pending.before[assetID]; !already {
		snap, _ := c.store.Snapshot(assetID) // nil if assetID does not exist yet
		c.pending.before[assetID] = snap
	}

	if err := fn(c.store); err != nil {
		return err
	}
	c.tracker.markAsset(assetID)
	if a, ok := c.store.Get(assetID); ok {
		c.tracker.markLocation(a.Location.ParentPathNode)
	}
	return nil
}

// HasPending reports whether a mutation batch is open.
func (c *Context) HasPending() bool { return c.pending != nil }

// CommitPending pushes the open pending group onto the shared undo stack as
// one entry and closes it. A no-op error if nothing is pending.
func (c *Context) CommitPending() error {
	if c.pending == nil {
		return ErrNoPendingChange
	}
	after := make(map[idset.AssetId]*dataset.Asset, len(c.pending.before))
	for id := range c.pending.before {
		snap, _ := c.store.Snapshot(id)
		after[id] = snap
	}
	c.session.pushUndo(&undoEntry{context: c, before: c.pending.before, after: after})
	c.pending = nil
	return nil
}

// CancelPending rolls back every asset touched in the open pending group to
// its pre-mutation snapshot and closes it.
func (c *Context) CancelPending() error {
	if c.pending == nil {
		return ErrNoPendingChange
	}
	for id, snap := range c.pending.before {
		c.store.Restore(id, snap)
	}
	c.pending = nil
	return nil
}

// Save flushes (commits) the pending context's save
// invariant.
func (c *Context) Save() error {
	if c.pending == nil {
		return nil
	}
	return c.CommitPending()
}

// Revert cancels the pending context's revert invariant.
func (c *Context) Revert() error {
	if c.pending == nil {
		return nil
	}
	return c.CancelPending()
}

// String identifies the context for logging.
func (c *Context) String() string {
	return fmt.Sprintf("editcontext(%s)", c.name)
}
