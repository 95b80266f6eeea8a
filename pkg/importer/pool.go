package importer

import (
	"fmt"
	"os"
	"sync"

	"github.com/forgepipe/anvil/pkg/idset"
	"github.com/forgepipe/anvil/pkg/log"
	"github.com/rs/zerolog"
)

// Pool is the bounded worker pool that runs import requests: a fixed-size
// worker pool consumes requests, and requests routed to the same lane are
// processed in the order they were submitted. Each lane is a single
// goroutine draining a buffered channel (see Submit for how a request's
// lane is chosen), while a shared semaphore caps total in-flight work
// across all lanes at maxInFlight —
// bounded goroutines over a channel, generalized to many independent FIFO
// lanes instead of one.
type Pool struct {
	registry  *Registry
	dataStore *ImportDataStore
	results   chan ImportThreadOutcome
	sem       chan struct{}
	logger    zerolog.Logger

	mu     sync.Mutex
	lanes  map[idset.AssetId]chan ImportToQueue
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewPool returns a pool bounded to maxInFlight concurrent import_file
// calls, writing import data through dataStore.
func NewPool(registry *Registry, dataStore *ImportDataStore, maxInFlight int) *Pool {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	return &Pool{
		registry:  registry,
		dataStore: dataStore,
		results:   make(chan ImportThreadOutcome, 256),
		sem:       make(chan struct{}, maxInFlight),
		logger:    log.WithComponent("importer"),
		lanes:     make(map[idset.AssetId]chan ImportToQueue),
		stopCh:    make(chan struct{}),
	}
}

// Results returns the channel outcomes are published on.
func (p *Pool) Results() <-chan ImportThreadOutcome { return p.results }

// Stop signals every lane to drain and exit, then waits for them.
func (p *Pool) Stop() {
	close(p.stopCh)
	p.wg.Wait()
}

// Submit enqueues req onto its lane. The lane is keyed by the smallest of
// req's pre-assigned asset ids, so requests with the same smallest id are
// processed in submission order; two requests that share some asset id but
// differ in their smallest id run on different lanes, with no ordering
// between them. Requests with no pre-assigned id share a default lane
// keyed by idset.Nil.
func (p *Pool) Submit(req ImportToQueue) {
	key := laneKey(req)

	p.mu.Lock()
	lane, ok := p.lanes[key]
	if !ok {
		lane = make(chan ImportToQueue, 64)
		p.lanes[key] = lane
		p.wg.Add(1)
		go p.runLane(lane)
	}
	p.mu.Unlock()

	select {
	case lane <- req:
	case <-p.stopCh:
	}
}

func laneKey(req ImportToQueue) idset.AssetId {
	var chosen idset.AssetId
	found := false
	for _, id := range req.PreAssignedAssetIDs {
		if !found || lessID(id, chosen) {
			chosen, found = id, true
		}
	}
	if !found {
		return idset.Nil
	}
	return chosen
}

func lessID(a, b idset.ID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func (p *Pool) runLane(lane chan ImportToQueue) {
	defer p.wg.Done()
	for {
		select {
		case req := <-lane:
			p.process(req)
		case <-p.stopCh:
			return
		}
	}
}

// process runs one request: stat the source file, skip it when its import
// data is fresh (ImportIfImportDataStale), import, write each result's
// import data, and emit the outcome.
func (p *Pool) process(req ImportToQueue) {
	select {
	case p.sem <- struct{}{}:
		defer func() { <-p.sem }()
	case <-p.stopCh:
		return
	}

	imp, ok := p.registry.ForID(req.ImporterID)
	if !ok {
		p.emit(ImportThreadOutcome{
			Request:  req,
			Failures: map[string]error{"": fmt.Errorf("%w: %s", ErrUnknownImporter, req.ImporterID)},
		})
		return
	}

	info, err := os.Stat(req.SourceFilePath)
	if err != nil {
		p.emit(ImportThreadOutcome{
			Request:  req,
			Failures: map[string]error{"": fmt.Errorf("importer: stat %s: %w", req.SourceFilePath, err)},
		})
		return
	}
	size := uint64(info.Size())
	modified := uint64(info.ModTime().Unix())

	if req.ImportType == ImportIfImportDataStale && !p.anyStale(req, size, modified) {
		p.emit(ImportThreadOutcome{Request: req, Skipped: true})
		return
	}

	results, err := imp.ImportFile(ImportContext{SourcePath: req.SourceFilePath, RequestedImportables: req.RequestedImportables})
	if err != nil {
		p.emit(ImportThreadOutcome{
			Request:  req,
			Failures: map[string]error{"": fmt.Errorf("importer: import_file: %w", err)},
		})
		return
	}

	outcome := ImportThreadOutcome{
		Request:  req,
		Results:  make(map[string]ImportOutcomeResult, len(results)),
		Failures: make(map[string]error),
	}

	for name, r := range results {
		assetID, ok := req.PreAssignedAssetIDs[name]
		if !ok {
			outcome.Failures[name] = fmt.Errorf("importer: %q has no pre-assigned asset id", name)
			continue
		}

		var contentsHash uint64
		if r.ImportData != nil {
			meta := ImportDataMetadata{
				SourceFileModifiedTimestamp: modified,
				SourceFileSize:              size,
			}
			meta.ImportDataContentsHash = idset.Hash64(r.ImportData)
			contentsHash = meta.ImportDataContentsHash
			if _, err := p.dataStore.WriteIfChanged(assetID, meta, r.ImportData); err != nil {
				outcome.Failures[name] = fmt.Errorf("importer: writing import data for %q: %w", name, err)
				continue
			}
		}

		outcome.Results[name] = ImportOutcomeResult{
			DefaultAsset: r.DefaultAsset,
			Info: ImportInfo{
				ImporterID:                  req.ImporterID,
				CanonicalSourcePath:         req.SourceFilePath,
				ImportableName:              name,
				ReferencedPaths:             r.ReferencedPaths,
				SourceFileSize:              size,
				SourceFileModifiedTimestamp: modified,
				ImportDataContentsHash:      contentsHash,
			},
		}
	}

	if len(outcome.Failures) == 0 {
		outcome.Failures = nil
	}
	p.emit(outcome)
}

// anyStale reports whether any requested importable's import data needs
// refreshing.
func (p *Pool) anyStale(req ImportToQueue, size, modified uint64) bool {
	for _, name := range req.RequestedImportables {
		assetID, ok := req.PreAssignedAssetIDs[name]
		if !ok {
			return true
		}
		if p.dataStore.IsStale(assetID, size, modified) {
			return true
		}
	}
	return false
}

func (p *Pool) emit(outcome ImportThreadOutcome) {
	select {
	case p.results <- outcome:
	case <-p.stopCh:
	}
}
