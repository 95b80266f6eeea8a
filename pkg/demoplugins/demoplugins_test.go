package demoplugins

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/forgepipe/anvil/pkg/artifactstore"
	"github.com/forgepipe/anvil/pkg/assetstorage"
	"github.com/forgepipe/anvil/pkg/dataset"
	"github.com/forgepipe/anvil/pkg/events"
	"github.com/forgepipe/anvil/pkg/idset"
	"github.com/forgepipe/anvil/pkg/importer"
	"github.com/forgepipe/anvil/pkg/loader"
	"github.com/forgepipe/anvil/pkg/pipeline"
	"github.com/forgepipe/anvil/pkg/schema"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformImporterParsesWhitespaceSeparatedFloats(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lamp.transform")
	require.NoError(t, writeFile(path, "1 2 3\n0 0 0 1\n1 1 1\n"))

	set := schema.NewSet()
	transform, err := RegisterSchemas(set)
	require.NoError(t, err)

	imp := NewTransformImporter(transform.Fingerprint)
	results, err := imp.ImportFile(importer.ImportContext{SourcePath: path})
	require.NoError(t, err)

	result := results[""]
	assert.Equal(t, transform.Fingerprint, result.DefaultAsset.Schema)
	assert.Equal(t, float32(2), result.DefaultAsset.Properties["position.y"].F32)
	assert.Equal(t, float32(1), result.DefaultAsset.Properties["rotation.w"].F32)
}

func TestTransformBuildAndLoadRoundTrip(t *testing.T) {
	set := schema.NewSet()
	transform, err := RegisterSchemas(set)
	require.NoError(t, err)

	store := dataset.NewStore(set)
	assetID, err := store.CreateAsset(transform.Fingerprint, idset.Nil, "lamp", dataset.Location{})
	require.NoError(t, err)

	overrides := map[string]float32{
		"position.x": 1, "position.y": 2, "position.z": 3,
		"rotation.x": 0, "rotation.y": 0, "rotation.z": 0, "rotation.w": 1,
		"scale.x": 1, "scale.y": 1, "scale.z": 1,
	}
	for path, v := range overrides {
		require.NoError(t, store.SetPropertyOverride(assetID, path, dataset.F32Value(v)))
	}

	artifacts, err := artifactstore.Open(t.TempDir())
	require.NoError(t, err)
	importData, err := importer.NewImportDataStore(t.TempDir())
	require.NoError(t, err)

	builders := pipeline.NewBuilderRegistry()
	require.NoError(t, builders.Register(TransformBuilder{}))
	jobs := pipeline.NewJobRegistry()
	cache, err := pipeline.NewJobCache(mustOpenBoltStore(t))
	require.NoError(t, err)

	scheduler := pipeline.NewScheduler(builders, jobs, cache, artifacts, importData)
	produced, err := scheduler.RunBuilder(context.Background(), assetID, store, set)
	require.NoError(t, err)
	require.Len(t, produced, 1)
	assert.Equal(t, idset.DefaultArtifactId(assetID), produced[0].ID)
	assert.Equal(t, TransformAssetType, produced[0].AssetType)

	typed := assetstorage.NewTypedStore(DecodeTransform)
	registry := assetstorage.NewRegistry()
	assetstorage.Register(registry, TransformAssetType, typed)

	l := loader.New(artifacts, registry, events.NewBroker(), zerolog.Nop())
	defer l.Close()

	l.AddRef(produced[0].ID, loader.Strong)
	waitForCommitted(t, l, produced[0].ID)

	got, ok := typed.Get(produced[0].ID)
	require.True(t, ok)
	assert.Equal(t, Vec3{1, 2, 3}, got.Position)
	assert.Equal(t, Quat{0, 0, 0, 1}, got.Rotation)
	assert.Equal(t, Vec3{1, 1, 1}, got.Scale)
}

func waitForCommitted(t *testing.T, l *loader.Loader, id idset.ArtifactId) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if l.State(id) == loader.Committed {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("artifact %s never committed", id)
}
