package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/forgepipe/anvil/pkg/artifactstore"
	"github.com/forgepipe/anvil/pkg/dataset"
	"github.com/forgepipe/anvil/pkg/idset"
	"github.com/forgepipe/anvil/pkg/importer"
	"github.com/forgepipe/anvil/pkg/schema"
	"github.com/forgepipe/anvil/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingBuilder struct {
	schemaName string
	calls      int
}

func (b *countingBuilder) SchemaName() string { return b.schemaName }
func (b *countingBuilder) Version() uint32    { return 1 }

func (b *countingBuilder) EnumerateDependencies(idset.AssetId, *dataset.Store, *schema.Set) ([]idset.AssetId, error) {
	return nil, nil
}

func (b *countingBuilder) Build(_ context.Context, assetID idset.AssetId, _ *dataset.Store, _ *schema.Set, _ map[idset.AssetId][]byte, rc *RunContext) error {
	b.calls++
	_, err := rc.ProduceArtifact(assetID, idset.New(), []byte("built"))
	return err
}

func newTestScheduler(t *testing.T) (*Scheduler, *dataset.Store, *schema.Set) {
	t.Helper()
	schemaSet := schema.NewSet()
	named, err := schemaSet.AddRecord("Widget", []schema.Field{{Name: "value", Type: schema.I32}})
	require.NoError(t, err)

	data := dataset.NewStore(schemaSet)

	artifacts, err := artifactstore.Open(t.TempDir())
	require.NoError(t, err)

	boltStore, err := storage.Open(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = boltStore.Close() })

	cache, err := NewJobCache(boltStore)
	require.NoError(t, err)

	importData, err := importer.NewImportDataStore(t.TempDir())
	require.NoError(t, err)

	builders := NewBuilderRegistry()
	builder := &countingBuilder{schemaName: "Widget"}
	require.NoError(t, builders.Register(builder))

	jobs := NewJobRegistry()
	sched := NewScheduler(builders, jobs, cache, artifacts, importData)
	_ = named
	return sched, data, schemaSet
}

func TestRunBuilderWritesArtifactAndCaches(t *testing.T) {
	sched, data, schemaSet := newTestScheduler(t)
	named, err := schemaSet.FindNamedType("Widget")
	require.NoError(t, err)

	assetID, err := data.CreateAsset(named.Fingerprint, idset.Nil, "widget-1", dataset.Location{})
	require.NoError(t, err)

	produced, err := sched.RunBuilder(context.Background(), assetID, data, schemaSet)
	require.NoError(t, err)
	require.Len(t, produced, 1)
	assert.Equal(t, idset.DefaultArtifactId(assetID), produced[0].ID)

	builder, _ := sched.builders.ForSchema("Widget")
	counting := builder.(*countingBuilder)
	assert.Equal(t, 1, counting.calls)

	produced2, err := sched.RunBuilder(context.Background(), assetID, data, schemaSet)
	require.NoError(t, err)
	assert.Equal(t, produced, produced2)
	assert.Equal(t, 1, counting.calls, "unchanged dependency signature must reuse the cached run")
}

func TestDependencySignatureChangesInvalidateCache(t *testing.T) {
	sig1 := dependencySignature([]byte("a"), 1, nil, []uint64{1, 2})
	sig2 := dependencySignature([]byte("a"), 2, nil, []uint64{1, 2})
	sig3 := dependencySignature([]byte("a"), 1, nil, []uint64{1, 3})
	assert.NotEqual(t, sig1, sig2)
	assert.NotEqual(t, sig1, sig3)

	sigRepeat := dependencySignature([]byte("a"), 1, nil, []uint64{1, 2})
	assert.Equal(t, sig1, sigRepeat)
}
