package main

import (
	"fmt"
	"path/filepath"

	"github.com/forgepipe/anvil/pkg/artifactstore"
	"github.com/forgepipe/anvil/pkg/datasource"
	"github.com/forgepipe/anvil/pkg/demoplugins"
	"github.com/forgepipe/anvil/pkg/importer"
	"github.com/forgepipe/anvil/pkg/pipeline"
	"github.com/forgepipe/anvil/pkg/schema"
	"github.com/forgepipe/anvil/pkg/storage"
)

// environment wires every collaborator a CLI subcommand needs against
// cfg.DataRoot, laid out the same way across every subcommand so a single
// --data-root always describes one consistent pipeline instance:
//
//	<data-root>/assets      the ID-based Data Source
//	<data-root>/import-data the .if import-data store
//	<data-root>/artifacts   the .bf artifact store
//	<data-root>/cache.db    the bbolt-backed job cache
type environment struct {
	schema     *schema.Set
	idSource   *datasource.IDSource
	importData *importer.ImportDataStore
	artifacts  *artifactstore.Store
	importers  *importer.Registry
	builders   *pipeline.BuilderRegistry
	jobs       *pipeline.JobRegistry
	cache      *pipeline.JobCache
	scheduler  *pipeline.Scheduler

	transformSchema *schema.NamedType
}

func openEnvironment(dataRoot string) (*environment, error) {
	set := schema.NewSet()
	transform, err := demoplugins.RegisterSchemas(set)
	if err != nil {
		return nil, fmt.Errorf("registering schemas: %w", err)
	}

	idSource, err := datasource.OpenIDSource(filepath.Join(dataRoot, "assets"))
	if err != nil {
		return nil, err
	}
	importData, err := importer.NewImportDataStore(filepath.Join(dataRoot, "import-data"))
	if err != nil {
		return nil, err
	}
	artifacts, err := artifactstore.Open(filepath.Join(dataRoot, "artifacts"))
	if err != nil {
		return nil, err
	}
	boltStore, err := storage.Open(filepath.Join(dataRoot, "cache.db"))
	if err != nil {
		return nil, err
	}
	cache, err := pipeline.NewJobCache(boltStore)
	if err != nil {
		return nil, err
	}

	importers := importer.NewRegistry()
	if err := importers.Register(demoplugins.NewTransformImporter(transform.Fingerprint)); err != nil {
		return nil, err
	}

	builders := pipeline.NewBuilderRegistry()
	if err := builders.Register(demoplugins.TransformBuilder{}); err != nil {
		return nil, err
	}
	jobs := pipeline.NewJobRegistry()

	scheduler := pipeline.NewScheduler(builders, jobs, cache, artifacts, importData)

	return &environment{
		schema:          set,
		idSource:        idSource,
		importData:      importData,
		artifacts:       artifacts,
		importers:       importers,
		builders:        builders,
		jobs:            jobs,
		cache:           cache,
		scheduler:       scheduler,
		transformSchema: transform,
	}, nil
}
