package dataset

import (
	"fmt"

	"github.com/forgepipe/anvil/pkg/idset"
	"github.com/forgepipe/anvil/pkg/schema"
)

// SetPropertyOverride sets a value override at pathText on id. Writes
// validate schema match and ancestor liveness before mutating: on mismatch
// it returns SchemaMismatch or UnresolvablePath without mutating.
func (s *Store) SetPropertyOverride(id idset.AssetId, pathText string, v Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ra, err := s.lookup(id)
	if err != nil {
		return err
	}
	path, res, err := s.parsePath(ra.record, pathText)
	if err != nil {
		return err
	}
	if !v.matchesKind(res.Terminal.Kind) {
		return fmt.Errorf("%w: %s expects %v, got %v", ErrSchemaMismatch, pathText, res.Terminal.Kind, v.Kind)
	}
	if err := s.checkAncestors(id, res); err != nil {
		return err
	}

	ra.asset.ValueOverrides[path.String()] = v
	return nil
}

// RemovePropertyOverride removes a value override, leaving prototype
// inheritance or the schema default in effect.
func (s *Store) RemovePropertyOverride(id idset.AssetId, pathText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ra, err := s.lookup(id)
	if err != nil {
		return err
	}
	path, _, err := s.parsePath(ra.record, pathText)
	if err != nil {
		return err
	}
	delete(ra.asset.ValueOverrides, path.String())
	return nil
}

// SetNullOverride sets SetNull/SetNonNull at pathText, which must resolve
// to a Nullable field (or to a nullable ancestor of the path).
func (s *Store) SetNullOverride(id idset.AssetId, pathText string, state NullState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ra, err := s.lookup(id)
	if err != nil {
		return err
	}
	path, res, err := s.parsePath(ra.record, pathText)
	if err != nil {
		return err
	}
	if res.Terminal.Kind != schema.KindNullable {
		return fmt.Errorf("%w: %s is not nullable", ErrSchemaMismatch, pathText)
	}
	ra.asset.NullOverrides[path.String()] = state
	return nil
}

// AddDynamicArrayOverride appends a new UUID-keyed entry to the
// dynamic-array (or map) at pathText on id's local overrides, and returns
// the freshly minted UUID.
func (s *Store) AddDynamicArrayOverride(id idset.AssetId, pathText string) (idset.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ra, err := s.lookup(id)
	if err != nil {
		return idset.Nil, err
	}
	path, res, err := s.parsePath(ra.record, pathText)
	if err != nil {
		return idset.Nil, err
	}
	if res.Terminal.Kind != schema.KindDynamicArray && res.Terminal.Kind != schema.KindMap {
		return idset.Nil, fmt.Errorf("%w: %s is not a dynamic array or map", ErrSchemaMismatch, pathText)
	}

	key := path.String()
	newID := idset.New()
	ra.asset.DynamicArrayEntries[key] = append(ra.asset.DynamicArrayEntries[key], newID)
	return newID, nil
}

// RemoveDynamicArrayOverride removes one local entry at pathText.
func (s *Store) RemoveDynamicArrayOverride(id idset.AssetId, pathText string, entry idset.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ra, err := s.lookup(id)
	if err != nil {
		return err
	}
	path, _, err := s.parsePath(ra.record, pathText)
	if err != nil {
		return err
	}

	key := path.String()
	entries := ra.asset.DynamicArrayEntries[key]
	for i, e := range entries {
		if e == entry {
			ra.asset.DynamicArrayEntries[key] = append(entries[:i], entries[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s has no local entry %s", ErrUnresolvablePath, pathText, entry)
}

// SetOverrideBehavior toggles Append/Replace merge behavior at pathText.
// Replace mode affects only dynamic arrays and maps.
func (s *Store) SetOverrideBehavior(id idset.AssetId, pathText string, mode OverrideMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ra, err := s.lookup(id)
	if err != nil {
		return err
	}
	path, res, err := s.parsePath(ra.record, pathText)
	if err != nil {
		return err
	}
	if res.Terminal.Kind != schema.KindDynamicArray && res.Terminal.Kind != schema.KindMap {
		return fmt.Errorf("%w: %s is not a dynamic array or map", ErrSchemaMismatch, pathText)
	}

	key := path.String()
	if mode == Replace {
		ra.asset.ReplaceMode[key] = struct{}{}
	} else {
		delete(ra.asset.ReplaceMode, key)
	}
	return nil
}

// ApplyPropertyOverrideToPrototype moves id's local override at pathText up
// one level onto id's prototype, removing it locally.
func (s *Store) ApplyPropertyOverrideToPrototype(id idset.AssetId, pathText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ra, err := s.lookup(id)
	if err != nil {
		return err
	}
	if ra.asset.Prototype.IsNil() {
		return fmt.Errorf("%w: %s has no prototype", ErrUnresolvablePath, id)
	}
	proto, ok := s.assets[ra.asset.Prototype]
	if !ok || proto.Tombstoned {
		return fmt.Errorf("%w: prototype %s not found", ErrUnknownAsset, ra.asset.Prototype)
	}

	path, _, err := s.parsePath(ra.record, pathText)
	if err != nil {
		return err
	}
	key := path.String()

	v, ok := ra.asset.ValueOverrides[key]
	if !ok {
		return fmt.Errorf("%w: %s has no local override at %s", ErrUnresolvablePath, id, pathText)
	}
	proto.ValueOverrides[key] = v
	delete(ra.asset.ValueOverrides, key)
	return nil
}

// CopyFrom deep-copies other's overrides onto a new (or existing) asset
// identified by assetID, keeping assetID's own id.
func (s *Store) CopyFrom(other *Asset, assetID idset.AssetId) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := other.clone()
	clone.ID = assetID
	s.assets[assetID] = clone
	return nil
}
