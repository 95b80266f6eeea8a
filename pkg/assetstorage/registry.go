package assetstorage

import (
	"fmt"
	"sync"

	"github.com/forgepipe/anvil/pkg/idset"
	"github.com/forgepipe/anvil/pkg/loader"
)

// store is the type-erased shape every TypedStore satisfies, so Registry
// can dispatch to the right one without knowing T.
type store interface {
	updateAsset(id idset.ArtifactId, version uint64, payload []byte, op *loader.LoadOp) error
	commitAssetVersion(id idset.ArtifactId, version uint64) error
	free(id idset.ArtifactId, version uint64) error
}

func (s *TypedStore[T]) updateAsset(id idset.ArtifactId, version uint64, payload []byte, op *loader.LoadOp) error {
	return s.UpdateAsset(id, version, payload, op)
}
func (s *TypedStore[T]) commitAssetVersion(id idset.ArtifactId, version uint64) error {
	return s.CommitAssetVersion(id, version)
}
func (s *TypedStore[T]) free(id idset.ArtifactId, version uint64) error {
	return s.Free(id, version)
}

// Registry is the type-erased registry of per-type stores, dispatching the
// loader's calls to whichever TypedStore is registered for an artifact's
// asset type.
type Registry struct {
	mu     sync.RWMutex
	stores map[idset.AssetTypeId]store
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{stores: make(map[idset.AssetTypeId]store)}
}

// Register wires typedStore to handle every artifact of assetType. It is
// a generic free function (not a method) because Go methods cannot carry
// their own type parameters.
func Register[T any](r *Registry, assetType idset.AssetTypeId, typedStore *TypedStore[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[assetType] = typedStore
}

func (r *Registry) lookup(assetType idset.AssetTypeId) (store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stores[assetType]
	if !ok {
		return nil, fmt.Errorf("assetstorage: no store registered for asset type %s", assetType)
	}
	return s, nil
}

// UpdateAsset implements loader.AssetStorage.
func (r *Registry) UpdateAsset(assetType idset.AssetTypeId, id idset.ArtifactId, version uint64, payload []byte, op *loader.LoadOp) error {
	s, err := r.lookup(assetType)
	if err != nil {
		op.Error(err)
		return err
	}
	return s.updateAsset(id, version, payload, op)
}

// CommitAssetVersion implements loader.AssetStorage.
func (r *Registry) CommitAssetVersion(assetType idset.AssetTypeId, id idset.ArtifactId, version uint64) error {
	s, err := r.lookup(assetType)
	if err != nil {
		return err
	}
	return s.commitAssetVersion(id, version)
}

// Free implements loader.AssetStorage.
func (r *Registry) Free(assetType idset.AssetTypeId, id idset.ArtifactId, version uint64) error {
	s, err := r.lookup(assetType)
	if err != nil {
		return nil // nothing was ever committed for an unknown type
	}
	return s.free(id, version)
}

var _ loader.AssetStorage = (*Registry)(nil)
