// Package dataset implements the Property Data Set: a schema-driven,
// prototype-inheriting, override-aware store of assets.
package dataset

import (
	"errors"
	"fmt"
	"sync"

	"github.com/forgepipe/anvil/pkg/idset"
	"github.com/forgepipe/anvil/pkg/schema"
)

var (
	ErrSchemaMismatch   = errors.New("dataset: schema mismatch")
	ErrUnresolvablePath = errors.New("dataset: unresolvable path")
	ErrUnknownAsset     = errors.New("dataset: unknown asset")
	ErrPrototypeSchema  = errors.New("dataset: prototype schema mismatch")
)

// Store holds AssetId -> Asset, backed by a Schema Set that is shared and
// immutable for the lifetime of the store.
type Store struct {
	mu     sync.RWMutex
	schema *schema.Set
	assets map[idset.AssetId]*Asset
}

// NewStore returns an empty Data Set bound to schemaSet.
func NewStore(schemaSet *schema.Set) *Store {
	return &Store{
		schema: schemaSet,
		assets: make(map[idset.AssetId]*Asset),
	}
}

// Count returns the number of live (non-tombstoned) assets.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.assets {
		if !a.Tombstoned {
			n++
		}
	}
	return n
}

// Get returns the asset for id, or false if unknown or tombstoned.
func (s *Store) Get(id idset.AssetId) (*Asset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assets[id]
	if !ok || a.Tombstoned {
		return nil, false
	}
	return a, true
}

// CreateAsset mints a new asset id and installs an asset with the given
// record schema, optional prototype, name, and location. The prototype (if
// any) must carry the same schema invariant 2.
func (s *Store) CreateAsset(schemaFp idset.SchemaFingerprint, prototype idset.AssetId, name string, loc Location) (idset.AssetId, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !prototype.IsNil() {
		proto, ok := s.assets[prototype]
		if !ok || proto.Tombstoned {
			return idset.Nil, fmt.Errorf("%w: prototype %s not found", ErrUnknownAsset, prototype)
		}
		if proto.Schema != schemaFp {
			return idset.Nil, fmt.Errorf("%w: prototype %s has schema %s, want %s", ErrPrototypeSchema, prototype, proto.Schema, schemaFp)
		}
	}

	id := idset.New()
	s.assets[id] = newAsset(id, schemaFp, name, loc, prototype)
	return id, nil
}

// Install inserts an already-constructed asset as-is, used by Data Sources
// loading a Data Set from disk.
func (s *Store) Install(a *Asset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[a.ID] = a
}

// Snapshot returns a deep copy of id's current asset state, or false if id
// is not installed. A tombstoned asset is still installed, so its snapshot
// is returned with Tombstoned set. A snapshot taken before a fresh
// CreateAsset is "absent", which Restore turns back into a hard delete.
// Used by pkg/editcontext to build undo/redo entries.
func (s *Store) Snapshot(id idset.AssetId) (*Asset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assets[id]
	if !ok {
		return nil, false
	}
	return a.clone(), true
}

// Restore installs snapshot as id's asset state, or hard-deletes id (no
// tombstone, no cascade) if snapshot is nil — the undo of a creation.
func (s *Store) Restore(id idset.AssetId, snapshot *Asset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snapshot == nil {
		delete(s.assets, id)
		return
	}
	s.assets[id] = snapshot.clone()
}

// Delete tombstones id and cascades to every descendant in the location
// tree (assets whose ParentPathNode chain passes through id), using a
// worklist rather than recursion so a corrupt (cyclic) location tree cannot
// blow the stack.
func (s *Store) Delete(id idset.AssetId) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	root, ok := s.assets[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, id)
	}

	childrenOf := make(map[idset.AssetId][]idset.AssetId)
	for _, a := range s.assets {
		if a.Tombstoned {
			continue
		}
		childrenOf[a.Location.ParentPathNode] = append(childrenOf[a.Location.ParentPathNode], a.ID)
	}

	visited := map[idset.AssetId]bool{}
	worklist := []idset.AssetId{root.ID}
	for len(worklist) > 0 {
		cur := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		if a, ok := s.assets[cur]; ok {
			a.Tombstoned = true
		}
		worklist = append(worklist, childrenOf[cur]...)
	}
	return nil
}

// resolvedAsset bundles an asset with its record schema, since every
// resolution routine needs both.
type resolvedAsset struct {
	asset  *Asset
	record *schema.NamedType
}

func (s *Store) lookup(id idset.AssetId) (resolvedAsset, error) {
	a, ok := s.assets[id]
	if !ok || a.Tombstoned {
		return resolvedAsset{}, fmt.Errorf("%w: %s", ErrUnknownAsset, id)
	}
	record, err := s.schema.FindByFingerprint(a.Schema)
	if err != nil {
		return resolvedAsset{}, err
	}
	return resolvedAsset{asset: a, record: record}, nil
}

func (s *Store) parsePath(record *schema.NamedType, pathText string) (schema.Path, *schema.Resolution, error) {
	path, err := s.schema.ParsePropertyPath(record, pathText)
	if err != nil {
		return nil, nil, err
	}
	res, err := s.schema.ResolvePropertySchema(record, path)
	if err != nil {
		return nil, nil, err
	}
	return path, res, nil
}

// checkAncestors enforces two liveness preconditions on a resolved path:
// every nullable ancestor must resolve is_null == false, and every accessed
// dynamic-array UUID must be present in the resolved entry list.
func (s *Store) checkAncestors(id idset.AssetId, res *schema.Resolution) error {
	for _, ancestor := range res.NullableAncestors {
		isNull, err := s.resolveIsNull(id, ancestor.String())
		if err != nil {
			return err
		}
		if isNull {
			return fmt.Errorf("%w: %s is null", ErrUnresolvablePath, ancestor)
		}
	}
	for _, access := range res.DynamicArrayAccesses {
		var ancestors []string
		for _, anc := range res.ReplaceModeAncestors {
			if anc.IsPrefixOf(access.Path) {
				ancestors = append(ancestors, anc.String())
			}
		}
		entries, err := s.resolveDynamicArray(id, access.Path.String(), ancestors)
		if err != nil {
			return err
		}
		if !containsID(entries, access.Key) {
			return fmt.Errorf("%w: %s has no entry %s", ErrUnresolvablePath, access.Path, access.Key)
		}
	}
	return nil
}

func containsID(list []idset.ID, target idset.ID) bool {
	for _, id := range list {
		if id == target {
			return true
		}
	}
	return false
}

// ResolveProperty runs the field-resolution query: walk from the asset up
// its prototype chain for the first override at the path, falling back to
// the schema default.
func (s *Store) ResolveProperty(id idset.AssetId, pathText string) (Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ra, err := s.lookup(id)
	if err != nil {
		return Value{}, err
	}
	path, res, err := s.parsePath(ra.record, pathText)
	if err != nil {
		return Value{}, err
	}
	if err := s.checkAncestors(id, res); err != nil {
		return Value{}, err
	}
	return s.resolveValueAlongChain(id, path.String())
}

// resolveValueAlongChain walks the prototype chain starting at id, cycle
// safe, returning the first override found or the schema default.
func (s *Store) resolveValueAlongChain(id idset.AssetId, key string) (Value, error) {
	visited := map[idset.AssetId]bool{}
	var terminalKind schema.Kind
	cur := id
	for !cur.IsNil() {
		if visited[cur] {
			break
		}
		visited[cur] = true
		a, ok := s.assets[cur]
		if !ok {
			break
		}
		if v, ok := a.ValueOverrides[key]; ok {
			return v, nil
		}
		if terminalKind == 0 {
			record, err := s.schema.FindByFingerprint(a.Schema)
			if err == nil {
				if path, err := s.schema.ParsePropertyPath(record, key); err == nil {
					if res, err := s.schema.ResolvePropertySchema(record, path); err == nil {
						terminalKind = res.Terminal.Kind
					}
				}
			}
		}
		cur = a.Prototype
	}
	return ZeroValue(terminalKind), nil
}

// resolveIsNull walks the prototype chain stopping at the first
// SetNull/SetNonNull override; default is SetNull.
func (s *Store) resolveIsNull(id idset.AssetId, pathText string) (bool, error) {
	visited := map[idset.AssetId]bool{}
	cur := id
	for !cur.IsNil() {
		if visited[cur] {
			break
		}
		visited[cur] = true
		a, ok := s.assets[cur]
		if !ok {
			break
		}
		if state, ok := a.NullOverrides[pathText]; ok {
			return state == SetNull, nil
		}
		cur = a.Prototype
	}
	return true, nil
}

// ResolveIsNull is the exported, lock-acquiring form of resolveIsNull used
// outside checkAncestors (e.g. by editcontext and datasource).
func (s *Store) ResolveIsNull(id idset.AssetId, pathText string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ra, err := s.lookup(id)
	if err != nil {
		return false, err
	}
	_, _, err = s.parsePath(ra.record, pathText)
	if err != nil {
		return false, err
	}
	return s.resolveIsNull(id, pathText)
}

// resolveDynamicArray performs recursive, merge-aware dynamic-array/map
// resolution across the prototype chain. ancestorPaths holds the dotted
// form of every dynamic-array/map container that is an ancestor of
// pathText; replace-mode on any of them suppresses inheritance the same way
// replace-mode on pathText itself does, since replacing a container also
// replaces everything nested under it.
func (s *Store) resolveDynamicArray(id idset.AssetId, pathText string, ancestorPaths []string) ([]idset.ID, error) {
	return s.resolveDynamicArrayVisited(id, pathText, ancestorPaths, map[idset.AssetId]bool{})
}

func (s *Store) resolveDynamicArrayVisited(id idset.AssetId, pathText string, ancestorPaths []string, visited map[idset.AssetId]bool) ([]idset.ID, error) {
	if visited[id] {
		return nil, nil
	}
	visited[id] = true

	a, ok := s.assets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, id)
	}

	inReplaceMode := inReplaceModeChain(a, pathText, ancestorPaths)

	var result []idset.ID
	if !inReplaceMode && !a.Prototype.IsNil() {
		inherited, err := s.resolveDynamicArrayVisited(a.Prototype, pathText, ancestorPaths, visited)
		if err != nil {
			return nil, err
		}
		result = append(result, inherited...)
	}
	result = append(result, a.DynamicArrayEntries[pathText]...)
	return result, nil
}

// inReplaceModeChain reports whether a's replace-mode set contains pathText
// or any of its container ancestors.
func inReplaceModeChain(a *Asset, pathText string, ancestorPaths []string) bool {
	if _, ok := a.ReplaceMode[pathText]; ok {
		return true
	}
	for _, ancestor := range ancestorPaths {
		if _, ok := a.ReplaceMode[ancestor]; ok {
			return true
		}
	}
	return false
}

// ResolveDynamicArray is the exported, lock-acquiring, schema-validating
// form: prototype entries always precede an asset's own appended entries.
func (s *Store) ResolveDynamicArray(id idset.AssetId, pathText string) ([]idset.ID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ra, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	path, res, err := s.parsePath(ra.record, pathText)
	if err != nil {
		return nil, err
	}
	if res.Terminal.Kind != schema.KindDynamicArray {
		return nil, fmt.Errorf("%w: %s is not a dynamic array", ErrSchemaMismatch, pathText)
	}
	var ancestors []string
	for _, anc := range res.ReplaceModeAncestors {
		if anc.IsPrefixOf(path) {
			ancestors = append(ancestors, anc.String())
		}
	}
	return s.resolveDynamicArray(id, path.String(), ancestors)
}
