// Package pipeline implements the Build/Job System: two programmable unit
// kinds (Builder, keyed by target asset schema; Job, keyed by a job type id)
// scheduled through a content-addressed cache and writing their output
// through the Artifact Store (pkg/artifactstore).
package pipeline

import (
	"context"
	"fmt"

	"github.com/forgepipe/anvil/pkg/artifactstore"
	"github.com/forgepipe/anvil/pkg/dataset"
	"github.com/forgepipe/anvil/pkg/idset"
	"github.com/forgepipe/anvil/pkg/schema"
	"github.com/forgepipe/anvil/pkg/serdescope"
)

// Builder produces one or more artifacts for assets of a particular schema.
type Builder interface {
	// SchemaName is the named-type this builder targets; the registry keys
	// builders by this name.
	SchemaName() string

	// Version changes whenever the builder's output for identical inputs
	// would change; it participates in the dependency signature.
	Version() uint32

	// EnumerateDependencies declares the import-data this builder will read
	// for asset, so the scheduler can hash it into the dependency signature
	// before invoking Build.
	EnumerateDependencies(assetID idset.AssetId, data *dataset.Store, schemaSet *schema.Set) ([]idset.AssetId, error)

	// Build runs the builder against asset and writes its artifacts through
	// rc. dependencyData holds the import-data blobs EnumerateDependencies
	// requested, keyed by asset id.
	Build(ctx context.Context, assetID idset.AssetId, data *dataset.Store, schemaSet *schema.Set, dependencyData map[idset.AssetId][]byte, rc *RunContext) error
}

// JobDependencies is what a Job declares it needs before it can run.
type JobDependencies struct {
	ImportData   []idset.AssetId
	UpstreamJobs []idset.ID
}

// Job is a programmable unit keyed by a job type id rather than an asset
// schema. Its input and output are opaque, caller-supplied byte encodings,
// gob-encoded by convention.
type Job interface {
	JobType() idset.JobTypeId
	Version() uint32
	EnumerateDependencies(encodedInput []byte) (JobDependencies, error)
	Run(ctx context.Context, encodedInput []byte, upstream map[idset.ID][]byte, rc *RunContext) ([]byte, error)
}

// ProducedArtifact records one artifact a builder or job run emitted, as
// collected by RunContext for dependency-signature and cache bookkeeping.
type ProducedArtifact struct {
	ID           idset.ArtifactId
	AssetType    idset.AssetTypeId
	Dependencies []idset.ArtifactId
}

// RunContext is handed to a Builder.Build or Job.Run call. It mediates
// every artifact write.
type RunContext struct {
	store     *artifactstore.Store
	produced  []ProducedArtifact
	deps      map[idset.ArtifactId]struct{}
	sourceSet bool
}

func newRunContext(store *artifactstore.Store) *RunContext {
	return &RunContext{store: store, deps: map[idset.ArtifactId]struct{}{}}
}

// RecordDependency implements serdescope.DependencyRecorder: every handle
// encoded into an artifact's payload during this run is added to that
// artifact's dependency list.
func (rc *RunContext) RecordDependency(id idset.ArtifactId) {
	rc.deps[id] = struct{}{}
}

// ProduceArtifact writes payload under the asset's default artifact id
// (asset_id itself invariant 4) and records it.
func (rc *RunContext) ProduceArtifact(assetID idset.AssetId, assetType idset.AssetTypeId, payload []byte) (idset.ArtifactId, error) {
	return rc.produce(idset.DefaultArtifactId(assetID), assetType, payload)
}

// ProduceArtifactWithHandles is ProduceArtifact for a keyed (non-default)
// artifact, e.g. a thumbnail or secondary output of an asset. The artifact
// id is hash128(asset_id, key).
func (rc *RunContext) ProduceArtifactWithHandles(assetID idset.AssetId, key string, assetType idset.AssetTypeId, payload []byte) (idset.ArtifactId, error) {
	return rc.produce(idset.KeyedArtifactId(assetID, key), assetType, payload)
}

func (rc *RunContext) produce(id idset.ArtifactId, assetType idset.AssetTypeId, payload []byte) (idset.ArtifactId, error) {
	var deps []idset.ArtifactId
	for d := range rc.deps {
		deps = append(deps, d)
	}
	meta := artifactstore.Metadata{Dependencies: deps, AssetType: assetType}
	if err := rc.store.Put(id, meta, payload); err != nil {
		return idset.Nil, fmt.Errorf("pipeline: producing artifact %s: %w", id, err)
	}
	rc.produced = append(rc.produced, ProducedArtifact{ID: id, AssetType: assetType, Dependencies: deps})
	rc.deps = map[idset.ArtifactId]struct{}{}
	return id, nil
}

// Scope returns a serdescope.Scope that records every handle encoded during
// this run as a dependency of whichever artifact is produced next.
func (rc *RunContext) Scope() *serdescope.Scope {
	return serdescope.NewBuildScope(rc)
}

// Produced returns every artifact written so far during this run.
func (rc *RunContext) Produced() []ProducedArtifact {
	return append([]ProducedArtifact(nil), rc.produced...)
}
