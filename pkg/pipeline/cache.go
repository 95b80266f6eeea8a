package pipeline

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/forgepipe/anvil/pkg/idset"
	"github.com/forgepipe/anvil/pkg/storage"
)

const cacheBucket = "pipeline_jobs"

// CacheEntry is what the job cache stores per job id: the dependency
// signature that produced it and the artifacts that resulted, so a later
// run with an unchanged signature can be skipped entirely.
type CacheEntry struct {
	Signature []byte
	Artifacts []ProducedArtifact
}

// JobCache persists CacheEntry records keyed by job id in a bbolt bucket,
// via the generic pkg/storage helper.
type JobCache struct {
	store *storage.Store
}

// NewJobCache wraps store, ensuring the pipeline's bucket exists.
func NewJobCache(store *storage.Store) (*JobCache, error) {
	if err := store.EnsureBucket(cacheBucket); err != nil {
		return nil, fmt.Errorf("pipeline: preparing job cache: %w", err)
	}
	return &JobCache{store: store}, nil
}

// Lookup returns the cached entry for jobID, if one exists.
func (c *JobCache) Lookup(jobID idset.ID) (CacheEntry, bool, error) {
	raw, err := c.store.Get(cacheBucket, jobID.Hex())
	if err != nil {
		if err == storage.ErrNotFound {
			return CacheEntry{}, false, nil
		}
		return CacheEntry{}, false, fmt.Errorf("pipeline: reading cache entry %s: %w", jobID, err)
	}
	var entry CacheEntry
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&entry); err != nil {
		return CacheEntry{}, false, fmt.Errorf("pipeline: decoding cache entry %s: %w", jobID, err)
	}
	return entry, true, nil
}

// Store writes entry for jobID, replacing any prior entry.
func (c *JobCache) Store(jobID idset.ID, entry CacheEntry) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry); err != nil {
		return fmt.Errorf("pipeline: encoding cache entry %s: %w", jobID, err)
	}
	if err := c.store.Put(cacheBucket, jobID.Hex(), buf.Bytes()); err != nil {
		return fmt.Errorf("pipeline: writing cache entry %s: %w", jobID, err)
	}
	return nil
}

// Invalidate removes any cached entry for jobID.
func (c *JobCache) Invalidate(jobID idset.ID) error {
	return c.store.Delete(cacheBucket, jobID.Hex())
}
