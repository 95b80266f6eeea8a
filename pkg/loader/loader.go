// Package loader implements the Loader and Handle state machine:
// Unloaded → WaitingForMetadata → WaitingForDependencies → WaitingForData →
// Loading → Loaded → Committed, driven by reference counts and recursive
// dependency resolution.
package loader

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/forgepipe/anvil/pkg/artifactstore"
	"github.com/forgepipe/anvil/pkg/events"
	"github.com/forgepipe/anvil/pkg/idset"
	"github.com/forgepipe/anvil/pkg/serdescope"
	"github.com/rs/zerolog"
)

// State is one stage of a handle's life.
type State int

const (
	Unloaded State = iota
	WaitingForMetadata
	WaitingForDependencies
	WaitingForData
	Loading
	Loaded
	Committed
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "Unloaded"
	case WaitingForMetadata:
		return "WaitingForMetadata"
	case WaitingForDependencies:
		return "WaitingForDependencies"
	case WaitingForData:
		return "WaitingForData"
	case Loading:
		return "Loading"
	case Loaded:
		return "Loaded"
	case Committed:
		return "Committed"
	default:
		return "Unknown"
	}
}

// LoadError surfaces a failed load: "AssetLoadOp::error(e)
// surfaces a typed LoadError."
type LoadError struct {
	ArtifactID idset.ArtifactId
	Cause      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loader: %s failed to load: %v", e.ArtifactID, e.Cause)
}

func (e *LoadError) Unwrap() error { return e.Cause }

// AssetStorage is the type-erased per-type store interface the loader
// drives. pkg/assetstorage implements this.
type AssetStorage interface {
	UpdateAsset(assetType idset.AssetTypeId, id idset.ArtifactId, version uint64, payload []byte, op *LoadOp) error
	CommitAssetVersion(assetType idset.AssetTypeId, id idset.ArtifactId, version uint64) error
	Free(assetType idset.AssetTypeId, id idset.ArtifactId, version uint64) error
}

type entry struct {
	mu           sync.Mutex
	id           idset.ArtifactId
	state        State
	strongCount  int
	weakCount    int
	version      uint64
	assetType    idset.AssetTypeId
	dependencies []idset.ArtifactId
	pendingDeps  map[idset.ArtifactId]struct{}
	depHandles   []*Handle
	payload      []byte
	lastErr      error
	reloadGroup  *reloadGroup
}

// reloadGroup batches commits across every artifact hot-reloading together:
// it defers commit until every concurrently-reloading artifact reaches
// Loaded, then commits them as a group.
type reloadGroup struct {
	mu      sync.Mutex
	pending map[idset.ArtifactId]struct{}
	ready   map[idset.ArtifactId]struct{}
}

// Loader owns the load state of every artifact referenced through it.
// State transitions for a given artifact happen on the single driver
// goroutine, except that TriggerReload moves each of its ids to
// WaitingForMetadata on the calling goroutine before enqueuing it;
// add_ref/remove_ref touch the concurrent entries map directly from any
// goroutine.
type Loader struct {
	mu      sync.Mutex
	entries map[idset.ArtifactId]*entry

	artifacts *artifactstore.Store
	storage   AssetStorage
	broker    *events.Broker
	logger    zerolog.Logger

	work chan idset.ArtifactId
	stop chan struct{}
	done chan struct{}

	nextToken uint64
}

// indirectTokenBit marks a Handle's token as issued through
// IndirectionTable.Bind rather than a direct AddRef. Tokens are otherwise
// opaque and monotonically increasing; callers should not rely on ordering
// across a restart.
const indirectTokenBit = uint64(1) << 63

// allocateToken hands out the next monotonic handle token. Tokens never
// repeat for the lifetime of a Loader.
func (l *Loader) allocateToken() uint64 {
	return atomic.AddUint64(&l.nextToken, 1)
}

// New returns a Loader reading artifacts from artifacts and delivering
// decoded payloads to storage.
func New(artifacts *artifactstore.Store, storage AssetStorage, broker *events.Broker, logger zerolog.Logger) *Loader {
	l := &Loader{
		entries:   make(map[idset.ArtifactId]*entry),
		artifacts: artifacts,
		storage:   storage,
		broker:    broker,
		logger:    logger,
		work:      make(chan idset.ArtifactId, 256),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go l.driveLoop()
	return l
}

// Close stops the driver goroutine.
func (l *Loader) Close() {
	close(l.stop)
	<-l.done
}

func (l *Loader) driveLoop() {
	defer close(l.done)
	for {
		select {
		case id := <-l.work:
			l.advance(id)
		case <-l.stop:
			return
		}
	}
}

func (l *Loader) getOrCreateEntry(id idset.ArtifactId) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[id]
	if !ok {
		e = &entry{id: id, state: Unloaded}
		l.entries[id] = e
	}
	return e
}

func (l *Loader) enqueue(id idset.ArtifactId) {
	select {
	case l.work <- id:
	default:
		go func() { l.work <- id }()
	}
}

// AddRef returns a new handle to id with the given ref kind. A Strong ref
// moves Unloaded artifacts toward WaitingForMetadata.
func (l *Loader) AddRef(id idset.ArtifactId, kind RefKind) *Handle {
	e := l.getOrCreateEntry(id)

	e.mu.Lock()
	switch kind {
	case Strong:
		e.strongCount++
	case Weak:
		e.weakCount++
	case Internal:
		// Internal handles do not hold a counted reference until cloned.
	}
	shouldKick := kind == Strong && e.state == Unloaded
	e.mu.Unlock()

	if shouldKick {
		l.enqueue(id)
	}
	return &Handle{id: id, kind: kind, loader: l, token: l.allocateToken()}
}

// removeRef is called when a Strong or Weak handle is dropped and
// decrements the matching count. Returning the
// refcount to zero tears down the entry's load — any state reverts to
// Unloaded once the last strong reference is gone.
func (l *Loader) removeRef(id idset.ArtifactId, kind RefKind) {
	l.mu.Lock()
	e, ok := l.entries[id]
	l.mu.Unlock()
	if !ok {
		return
	}

	e.mu.Lock()
	switch kind {
	case Strong:
		if e.strongCount > 0 {
			e.strongCount--
		}
	case Weak:
		if e.weakCount > 0 {
			e.weakCount--
		}
	}
	empty := e.strongCount == 0
	e.mu.Unlock()

	if empty {
		l.enqueue(id)
	}
}

// State returns the current load state of id.
func (l *Loader) State(id idset.ArtifactId) State {
	l.mu.Lock()
	e, ok := l.entries[id]
	l.mu.Unlock()
	if !ok {
		return Unloaded
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// LoadHandle implements serdescope.HandleResolver: decoding an embedded
// handle reference during deserialization calls this to obtain an Internal
// reference and add it to the in-progress dependency set. The loader calls
// add_ref recursively for each dependency id — cycles are permitted for ref
// counting purposes; only terminal-state dependencies unblock the parent.
func (l *Loader) LoadHandle(id idset.ArtifactId) (any, error) {
	return l.AddRef(id, Internal), nil
}

var _ serdescope.HandleResolver = (*Loader)(nil)

// advance drives id's entry forward by at most one meaningful transition,
// re-enqueuing itself if more progress is immediately possible. Apart from
// TriggerReload, only advance and the helpers it calls mutate entry.state;
// advance always runs on the driver goroutine.
func (l *Loader) advance(id idset.ArtifactId) {
	e := l.getOrCreateEntry(id)

	e.mu.Lock()
	state := e.state
	strong := e.strongCount
	e.mu.Unlock()

	switch {
	case strong == 0 && state != Unloaded:
		l.teardown(e)
	case state == Unloaded && strong > 0:
		l.enterWaitingForMetadata(e)
	case state == WaitingForMetadata:
		l.fetchMetadata(e)
	case state == WaitingForDependencies:
		l.checkDependencies(e)
	case state == WaitingForData:
		l.loadData(e)
	}
}

func (l *Loader) enterWaitingForMetadata(e *entry) {
	e.mu.Lock()
	e.state = WaitingForMetadata
	e.lastErr = nil
	e.mu.Unlock()
	l.enqueue(e.id)
}

func (l *Loader) fetchMetadata(e *entry) {
	meta, payload, err := l.artifacts.Get(e.id)
	if err != nil {
		l.fail(e, err)
		return
	}

	e.mu.Lock()
	e.assetType = meta.AssetType
	e.dependencies = meta.Dependencies
	e.pendingDeps = make(map[idset.ArtifactId]struct{}, len(meta.Dependencies))
	for _, dep := range meta.Dependencies {
		e.pendingDeps[dep] = struct{}{}
	}
	e.depHandles = make([]*Handle, 0, len(meta.Dependencies))
	e.state = WaitingForDependencies
	e.mu.Unlock()

	for _, dep := range meta.Dependencies {
		h := l.AddRef(dep, Internal)
		e.mu.Lock()
		e.depHandles = append(e.depHandles, h)
		e.mu.Unlock()
	}

	// Stash the payload for loadData once dependencies clear; storing it on
	// the entry keeps fetchMetadata idempotent if re-invoked.
	e.mu.Lock()
	e.payload = payload
	e.mu.Unlock()

	l.enqueue(e.id)
}

func (l *Loader) checkDependencies(e *entry) {
	e.mu.Lock()
	deps := make([]idset.ArtifactId, 0, len(e.pendingDeps))
	for dep := range e.pendingDeps {
		deps = append(deps, dep)
	}
	e.mu.Unlock()

	allLoaded := true
	for _, dep := range deps {
		if dep == e.id {
			continue // a self-cycle cannot block on its own terminal state
		}
		if l.State(dep) < Loaded {
			allLoaded = false
			break
		}
	}

	if allLoaded {
		e.mu.Lock()
		e.state = WaitingForData
		e.mu.Unlock()
		l.enqueue(e.id)
	}
}

func (l *Loader) loadData(e *entry) {
	e.mu.Lock()
	e.state = Loading
	e.version++
	version := e.version
	payload := e.payload
	assetType := e.assetType
	e.mu.Unlock()

	op := newLoadOp()
	scope := serdescope.NewLoadScope(l)
	_ = scope // not passed on: UpdateAsset receives neither the scope nor a context, so storage decodes without it.

	if err := l.storage.UpdateAsset(assetType, e.id, version, payload, op); err != nil {
		l.fail(e, err)
		return
	}

	if err := op.wait(); err != nil {
		l.fail(e, err)
		return
	}

	e.mu.Lock()
	e.state = Loaded
	e.mu.Unlock()

	l.commit(e)
}

// commit moves e to Committed, batching with any concurrently-reloading
// artifacts in the same reload group.
func (l *Loader) commit(e *entry) {
	e.mu.Lock()
	group := e.reloadGroup
	e.mu.Unlock()

	if group == nil {
		e.mu.Lock()
		e.state = Committed
		assetType := e.assetType
		version := e.version
		e.mu.Unlock()
		_ = l.storage.CommitAssetVersion(assetType, e.id, version)
		l.publish(events.TypeArtifactCommitted, e.id)
		return
	}

	group.mu.Lock()
	delete(group.pending, e.id)
	group.ready[e.id] = struct{}{}
	done := len(group.pending) == 0
	group.mu.Unlock()

	if !done {
		return
	}

	l.mu.Lock()
	for id := range group.ready {
		if ge, ok := l.entries[id]; ok {
			ge.mu.Lock()
			ge.state = Committed
			at, v := ge.assetType, ge.version
			ge.mu.Unlock()
			_ = l.storage.CommitAssetVersion(at, id, v)
		}
	}
	l.mu.Unlock()

	l.publish(events.TypeHotReload, e.id)
}

func (l *Loader) fail(e *entry, err error) {
	e.mu.Lock()
	e.state = Unloaded
	e.lastErr = &LoadError{ArtifactID: e.id, Cause: err}
	e.mu.Unlock()
	l.publish(events.TypeImportFailed, e.id)
}

func (l *Loader) teardown(e *entry) {
	e.mu.Lock()
	deps := e.depHandles
	e.depHandles = nil
	e.state = Unloaded
	e.payload = nil
	assetType, version := e.assetType, e.version
	e.mu.Unlock()

	for _, dep := range deps {
		dep.Drop()
	}
	if l.storage != nil {
		_ = l.storage.Free(assetType, e.id, version)
	}
}

func (l *Loader) publish(t events.Type, id idset.ArtifactId) {
	if l.broker == nil {
		return
	}
	l.broker.Publish(&events.Event{Type: t, ArtifactID: id})
}

// TriggerReload starts a new, parallel load for every id in ids under a
// bumped version, batching their commits into one reload group: commit is
// deferred until every concurrently-reloading artifact reaches Loaded, then
// they commit together. Every id must already be Committed.
func (l *Loader) TriggerReload(ids []idset.ArtifactId) {
	group := &reloadGroup{
		pending: make(map[idset.ArtifactId]struct{}, len(ids)),
		ready:   make(map[idset.ArtifactId]struct{}, len(ids)),
	}
	for _, id := range ids {
		group.pending[id] = struct{}{}
	}

	for _, id := range ids {
		e := l.getOrCreateEntry(id)
		e.mu.Lock()
		e.reloadGroup = group
		e.state = WaitingForMetadata
		e.mu.Unlock()
		l.enqueue(id)
	}
}

// LastError returns the most recent load error for id, if its last attempt
// failed. Missing artifact metadata is fatal for that handle only.
func (l *Loader) LastError(id idset.ArtifactId) error {
	l.mu.Lock()
	e, ok := l.entries[id]
	l.mu.Unlock()
	if !ok {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

var errLoadOpAlreadySignalled = errors.New("loader: AssetLoadOp signalled twice")
