package editcontext

import (
	"errors"
	"fmt"
	"sync"

	"github.com/forgepipe/anvil/pkg/dataset"
	"github.com/forgepipe/anvil/pkg/idset"
	"github.com/forgepipe/anvil/pkg/schema"
)

var (
	ErrNothingToUndo  = errors.New("editcontext: nothing to undo")
	ErrNothingToRedo  = errors.New("editcontext: nothing to redo")
	ErrUnknownContext = errors.New("editcontext: unknown context")
)

// undoEntry is one committed pending group: the asset snapshots from before
// and after the batch of mutations it covers.
type undoEntry struct {
	context *Context
	before  map[idset.AssetId]*dataset.Asset
	after   map[idset.AssetId]*dataset.Asset
}

// Session owns the root Edit Context, any open scratch contexts, and the
// undo stack shared across all of them: "Multiple
// contexts can coexist; one is designated root ... The undo stack is shared
// across edit contexts."
type Session struct {
	mu        sync.Mutex
	schema    *schema.Set
	root      *Context
	scratches map[string]*Context
	undoStack []*undoEntry
	redoStack []*undoEntry
}

// NewSession creates a root Edit Context over a fresh Data Set bound to
// schemaSet.
func NewSession(schemaSet *schema.Set) *Session {
	s := &Session{schema: schemaSet, scratches: make(map[string]*Context)}
	s.root = &Context{name: "root", store: dataset.NewStore(schemaSet), session: s, tracker: newChangeTracker()}
	return s
}

// Root returns the session's root Edit Context.
func (s *Session) Root() *Context { return s.root }

func (s *Session) pushUndo(entry *undoEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.undoStack = append(s.undoStack, entry)
	s.redoStack = nil
}

// Undo pops the most recent undo entry and restores its context's store to
// the before-snapshots, pushing the entry onto the redo stack.
func (s *Session) Undo() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.undoStack) == 0 {
		return ErrNothingToUndo
	}
	entry := s.undoStack[len(s.undoStack)-1]
	s.undoStack = s.undoStack[:len(s.undoStack)-1]

	for id, snap := range entry.before {
		entry.context.store.Restore(id, snap)
	}
	s.redoStack = append(s.redoStack, entry)
	return nil
}

// Redo re-applies the most recently undone entry's after-snapshots.
func (s *Session) Redo() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.redoStack) == 0 {
		return ErrNothingToRedo
	}
	entry := s.redoStack[len(s.redoStack)-1]
	s.redoStack = s.redoStack[:len(s.redoStack)-1]

	for id, snap := range entry.after {
		entry.context.store.Restore(id, snap)
	}
	s.undoStack = append(s.undoStack, entry)
	return nil
}

// OpenScratch creates a new non-root Edit Context, copying the named assets
// from root into it: "Opening a scratch edit context
// copies named assets from the root."
func (s *Session) OpenScratch(name string, assetIDs []idset.AssetId) (*Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.scratches[name]; exists {
		return nil, fmt.Errorf("editcontext: scratch context %q already open", name)
	}

	scratch := &Context{
		name:    name,
		store:   dataset.NewStore(s.schema),
		session: s,
		tracker: newChangeTracker(),
	}
	for _, id := range assetIDs {
		a, ok := s.root.store.Snapshot(id)
		if !ok {
			return nil, fmt.Errorf("editcontext: %w: root has no asset %s", ErrUnknownContext, id)
		}
		scratch.store.Install(a)
	}
	s.scratches[name] = scratch
	return scratch, nil
}

// FlushScratch copies every asset the scratch context's tracker marked
// modified back into root: "flushing a scratch context
// copies modified assets back into root."
func (s *Session) FlushScratch(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	scratch, ok := s.scratches[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownContext, name)
	}

	for _, id := range scratch.tracker.ModifiedAssets() {
		snap, ok := scratch.store.Snapshot(id)
		if !ok {
			continue
		}
		if err := s.root.store.CopyFrom(snap, id); err != nil {
			return err
		}
		s.root.tracker.markAsset(id)
	}
	scratch.tracker.Clear()
	delete(s.scratches, name)
	return nil
}
