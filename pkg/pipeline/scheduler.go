package pipeline

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"

	"github.com/forgepipe/anvil/pkg/artifactstore"
	"github.com/forgepipe/anvil/pkg/dataset"
	"github.com/forgepipe/anvil/pkg/idset"
	"github.com/forgepipe/anvil/pkg/importer"
	"github.com/forgepipe/anvil/pkg/schema"
)

// Scheduler runs builders and jobs against the job cache: identical (job
// id, dependency signature) pairs reuse the prior run's artifacts instead
// of re-invoking Build/Run.
type Scheduler struct {
	builders   *BuilderRegistry
	jobs       *JobRegistry
	cache      *JobCache
	artifacts  *artifactstore.Store
	importData *importer.ImportDataStore
}

// NewScheduler wires a Scheduler from its five collaborators.
func NewScheduler(builders *BuilderRegistry, jobs *JobRegistry, cache *JobCache, artifacts *artifactstore.Store, importData *importer.ImportDataStore) *Scheduler {
	return &Scheduler{builders: builders, jobs: jobs, cache: cache, artifacts: artifacts, importData: importData}
}

// builderJobType synthesizes a stable job-type id for a builder so builder
// runs can share the same job id / dependency-signature cache keying scheme
// jobs use, rather than needing a second cache shape.
func builderJobType(schemaName string) idset.JobTypeId {
	return idset.Hash128([]byte("builder:" + schemaName))
}

// RunBuilder runs the builder registered for asset's schema, reusing a
// cached result if the dependency signature is unchanged.
func (s *Scheduler) RunBuilder(ctx context.Context, assetID idset.AssetId, data *dataset.Store, schemaSet *schema.Set) ([]ProducedArtifact, error) {
	asset, ok := data.Get(assetID)
	if !ok {
		return nil, fmt.Errorf("pipeline: asset %s not found", assetID)
	}
	named, err := schemaSet.FindByFingerprint(asset.Schema)
	if err != nil {
		return nil, fmt.Errorf("pipeline: resolving schema for %s: %w", assetID, err)
	}
	builder, ok := s.builders.ForSchema(named.Name)
	if !ok {
		return nil, fmt.Errorf("pipeline: no builder registered for schema %q", named.Name)
	}

	deps, err := builder.EnumerateDependencies(assetID, data, schemaSet)
	if err != nil {
		return nil, fmt.Errorf("pipeline: enumerating dependencies for %s: %w", assetID, err)
	}

	jobType := builderJobType(named.Name)
	jobID := idset.JobId(jobType, assetID[:])

	importHashes, dependencyData, err := s.loadImportData(deps)
	if err != nil {
		return nil, err
	}
	signature := dependencySignature(assetID[:], builder.Version(), nil, importHashes)

	if entry, hit, err := s.cache.Lookup(jobID); err != nil {
		return nil, err
	} else if hit && bytes.Equal(entry.Signature, signature) {
		return entry.Artifacts, nil
	}

	rc := newRunContext(s.artifacts)
	if err := builder.Build(ctx, assetID, data, schemaSet, dependencyData, rc); err != nil {
		return nil, fmt.Errorf("pipeline: building %s: %w", assetID, err)
	}

	produced := rc.Produced()
	if err := s.cache.Store(jobID, CacheEntry{Signature: signature, Artifacts: produced}); err != nil {
		return nil, err
	}
	return produced, nil
}

// RunJob runs job with encodedInput, reusing a cached result when the job
// id and dependency signature are unchanged.
func (s *Scheduler) RunJob(ctx context.Context, job Job, encodedInput []byte) ([]ProducedArtifact, error) {
	jobID := idset.JobId(job.JobType(), encodedInput)

	deps, err := job.EnumerateDependencies(encodedInput)
	if err != nil {
		return nil, fmt.Errorf("pipeline: enumerating dependencies for job %s: %w", jobID, err)
	}

	importHashes, _, err := s.loadImportData(deps.ImportData)
	if err != nil {
		return nil, err
	}
	signature := dependencySignature(encodedInput, job.Version(), deps.UpstreamJobs, importHashes)

	if entry, hit, err := s.cache.Lookup(jobID); err != nil {
		return nil, err
	} else if hit && bytes.Equal(entry.Signature, signature) {
		return entry.Artifacts, nil
	}

	upstream, err := s.loadUpstreamJobs(deps.UpstreamJobs)
	if err != nil {
		return nil, err
	}

	rc := newRunContext(s.artifacts)
	if _, err := job.Run(ctx, encodedInput, upstream, rc); err != nil {
		return nil, fmt.Errorf("pipeline: running job %s: %w", jobID, err)
	}

	produced := rc.Produced()
	if err := s.cache.Store(jobID, CacheEntry{Signature: signature, Artifacts: produced}); err != nil {
		return nil, err
	}
	return produced, nil
}

// loadImportData reads the import-data blob for each declared dependency
// asset, returning both the ordered content hashes (for the dependency
// signature) and the blobs themselves (for Build/Run).
func (s *Scheduler) loadImportData(assetIDs []idset.AssetId) ([]uint64, map[idset.AssetId][]byte, error) {
	hashes := make([]uint64, 0, len(assetIDs))
	blobs := make(map[idset.AssetId][]byte, len(assetIDs))
	for _, id := range assetIDs {
		meta, record, err := s.importData.Read(id)
		if err != nil {
			return nil, nil, fmt.Errorf("pipeline: reading import data for %s: %w", id, err)
		}
		hashes = append(hashes, meta.ImportDataContentsHash)
		blobs[id] = record
	}
	return hashes, blobs, nil
}

// loadUpstreamJobs looks up each upstream job id's cached artifacts; an
// upstream job with no cache entry is treated as not yet built.
func (s *Scheduler) loadUpstreamJobs(jobIDs []idset.ID) (map[idset.ID][]byte, error) {
	out := make(map[idset.ID][]byte, len(jobIDs))
	for _, id := range jobIDs {
		entry, hit, err := s.cache.Lookup(id)
		if err != nil {
			return nil, err
		}
		if !hit || len(entry.Artifacts) == 0 {
			continue
		}
		_, payload, err := s.artifacts.Get(entry.Artifacts[0].ID)
		if err != nil {
			return nil, fmt.Errorf("pipeline: reading upstream job %s artifact: %w", id, err)
		}
		out[id] = payload
	}
	return out, nil
}

// dependencySignature hashes (input, version, ordered upstream job ids,
// ordered import-data content hashes): "Any change
// invalidates the cache entry."
func dependencySignature(input []byte, version uint32, upstream []idset.ID, importHashes []uint64) []byte {
	var buf bytes.Buffer
	buf.Write(input)
	var versionBytes [4]byte
	binary.BigEndian.PutUint32(versionBytes[:], version)
	buf.Write(versionBytes[:])
	for _, id := range upstream {
		buf.Write(id[:])
	}
	for _, h := range importHashes {
		var hashBytes [8]byte
		binary.BigEndian.PutUint64(hashBytes[:], h)
		buf.Write(hashBytes[:])
	}
	sig := idset.Hash128(buf.Bytes())
	return sig[:]
}
