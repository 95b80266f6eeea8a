// Package assetstorage implements the Asset Storage registry: a
// type-erased collection of per-asset-type stores, each holding the live,
// decoded in-memory representation of its type's committed artifacts.
package assetstorage

import (
	"fmt"
	"sync"

	"github.com/forgepipe/anvil/pkg/idset"
	"github.com/forgepipe/anvil/pkg/loader"
)

// Decoder turns a raw artifact payload into a typed value T. It receives
// only the payload bytes.
type Decoder[T any] func(payload []byte) (T, error)

type versioned[T any] struct {
	value   T
	version uint64
}

// TypedStore is the per-type store: versioned storage for one decoded
// asset type, keyed by artifact id. A staged
// ("pending") version becomes visible to Get only once CommitAssetVersion
// confirms it, so readers never observe a half-loaded value.
type TypedStore[T any] struct {
	mu      sync.RWMutex
	decode  Decoder[T]
	current map[idset.ArtifactId]versioned[T]
	pending map[idset.ArtifactId]versioned[T]
}

// NewTypedStore returns an empty store that decodes payloads with decode.
func NewTypedStore[T any](decode Decoder[T]) *TypedStore[T] {
	return &TypedStore[T]{
		decode:  decode,
		current: make(map[idset.ArtifactId]versioned[T]),
		pending: make(map[idset.ArtifactId]versioned[T]),
	}
}

// UpdateAsset decodes payload and stages it as the pending version for id.
func (s *TypedStore[T]) UpdateAsset(id idset.ArtifactId, version uint64, payload []byte, op *loader.LoadOp) error {
	value, err := s.decode(payload)
	if err != nil {
		op.Error(err)
		return err
	}

	s.mu.Lock()
	s.pending[id] = versioned[T]{value: value, version: version}
	s.mu.Unlock()

	op.Complete()
	return nil
}

// CommitAssetVersion makes the staged version for id visible to Get.
func (s *TypedStore[T]) CommitAssetVersion(id idset.ArtifactId, version uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.pending[id]
	if !ok || v.version != version {
		return fmt.Errorf("assetstorage: no pending version %d for %s", version, id)
	}
	s.current[id] = v
	delete(s.pending, id)
	return nil
}

// Free discards both the current and any pending value for id.
func (s *TypedStore[T]) Free(id idset.ArtifactId, version uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.current, id)
	delete(s.pending, id)
	return nil
}

// Get returns the committed value for id.
func (s *TypedStore[T]) Get(id idset.ArtifactId) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.current[id]
	return v.value, ok
}

// GetVersion returns the committed version number for id.
func (s *TypedStore[T]) GetVersion(id idset.ArtifactId) (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.current[id]
	return v.version, ok
}

// GetWithVersion returns both the committed value and its version.
func (s *TypedStore[T]) GetWithVersion(id idset.ArtifactId) (T, uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.current[id]
	return v.value, v.version, ok
}
