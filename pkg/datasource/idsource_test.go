package datasource

import (
	"testing"

	"github.com/forgepipe/anvil/pkg/dataset"
	"github.com/forgepipe/anvil/pkg/idset"
	"github.com/forgepipe/anvil/pkg/schema"
	"github.com/stretchr/testify/require"
)

func testSchemaSet(t *testing.T) (*schema.Set, idset.SchemaFingerprint) {
	t.Helper()
	set := schema.NewSet()
	named, err := set.AddRecord("widget", []schema.Field{
		{Name: "label", Type: schema.String},
	})
	require.NoError(t, err)
	return set, named.Fingerprint
}

func TestIDSourceRoundTrip(t *testing.T) {
	set, fp := testSchemaSet(t)
	store := dataset.NewStore(set)

	id, err := store.CreateAsset(fp, idset.Nil, "lamp", dataset.Location{})
	require.NoError(t, err)
	require.NoError(t, store.SetPropertyOverride(id, "label", dataset.StringValue("bright")))

	src, err := OpenIDSource(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, src.FlushToStorage(store, []idset.AssetId{id}))

	loaded, err := src.LoadFromStorage(set)
	require.NoError(t, err)

	got, ok := loaded.Get(id)
	require.True(t, ok)
	require.Equal(t, "lamp", got.Name)
	require.Equal(t, fp, got.Schema)
	require.Equal(t, "bright", got.ValueOverrides["label"].Str)
}

func TestIDSourceFlushRemovesDeletedAssets(t *testing.T) {
	set, fp := testSchemaSet(t)
	store := dataset.NewStore(set)
	id, err := store.CreateAsset(fp, idset.Nil, "lamp", dataset.Location{})
	require.NoError(t, err)

	src, err := OpenIDSource(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, src.FlushToStorage(store, []idset.AssetId{id}))

	require.NoError(t, store.Delete(id))
	require.NoError(t, src.FlushToStorage(store, []idset.AssetId{id}))

	loaded, err := src.LoadFromStorage(set)
	require.NoError(t, err)
	_, ok := loaded.Get(id)
	require.False(t, ok)
}
