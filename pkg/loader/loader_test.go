package loader

import (
	"testing"
	"time"

	"github.com/forgepipe/anvil/pkg/artifactstore"
	"github.com/forgepipe/anvil/pkg/events"
	"github.com/forgepipe/anvil/pkg/idset"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStorage struct {
	updates int
	commits int
	frees   int
}

func (f *fakeStorage) UpdateAsset(assetType idset.AssetTypeId, id idset.ArtifactId, version uint64, payload []byte, op *LoadOp) error {
	f.updates++
	op.Complete()
	return nil
}

func (f *fakeStorage) CommitAssetVersion(assetType idset.AssetTypeId, id idset.ArtifactId, version uint64) error {
	f.commits++
	return nil
}

func (f *fakeStorage) Free(assetType idset.AssetTypeId, id idset.ArtifactId, version uint64) error {
	f.frees++
	return nil
}

func waitForState(t *testing.T, l *Loader, id idset.ArtifactId, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if l.State(id) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("artifact %s never reached state %s (stuck at %s)", id, want, l.State(id))
}

func newTestLoader(t *testing.T) (*Loader, *artifactstore.Store, *fakeStorage) {
	t.Helper()
	store, err := artifactstore.Open(t.TempDir())
	require.NoError(t, err)
	storage := &fakeStorage{}
	l := New(store, storage, events.NewBroker(), zerolog.Nop())
	t.Cleanup(l.Close)
	return l, store, storage
}

func TestAddRefDrivesToCommitted(t *testing.T) {
	l, store, storage := newTestLoader(t)

	id := idset.New()
	require.NoError(t, store.Put(id, artifactstore.Metadata{AssetType: idset.New()}, []byte("payload")))

	h := l.AddRef(id, Strong)
	waitForState(t, l, id, Committed)
	assert.Equal(t, 1, storage.updates)
	assert.Equal(t, 1, storage.commits)

	h.Drop()
	waitForState(t, l, id, Unloaded)
	assert.Equal(t, 1, storage.frees)
}

func TestDependencyChainWaitsForUpstream(t *testing.T) {
	l, store, _ := newTestLoader(t)

	dep := idset.New()
	require.NoError(t, store.Put(dep, artifactstore.Metadata{AssetType: idset.New()}, []byte("dep")))

	parent := idset.New()
	require.NoError(t, store.Put(parent, artifactstore.Metadata{Dependencies: []idset.ArtifactId{dep}, AssetType: idset.New()}, []byte("parent")))

	l.AddRef(parent, Strong)
	waitForState(t, l, parent, Committed)
	waitForState(t, l, dep, Committed)
}

func TestMissingMetadataFailsThatHandleOnly(t *testing.T) {
	l, _, _ := newTestLoader(t)

	missing := idset.New()
	l.AddRef(missing, Strong)

	deadline := time.Now().Add(time.Second)
	var lastErr error
	for time.Now().Before(deadline) {
		if lastErr = l.LastError(missing); lastErr != nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Error(t, lastErr)
}

func TestIndirectionRebindSwapsTarget(t *testing.T) {
	l, store, _ := newTestLoader(t)
	table := NewIndirectionTable(l)

	a := idset.New()
	b := idset.New()
	require.NoError(t, store.Put(a, artifactstore.Metadata{AssetType: idset.New()}, []byte("a")))
	require.NoError(t, store.Put(b, artifactstore.Metadata{AssetType: idset.New()}, []byte("b")))

	table.Bind("level1", a)
	h, ok := table.Resolve("level1")
	require.True(t, ok)
	assert.Equal(t, a, h.ArtifactID())

	table.Bind("level1", b)
	h2, ok := table.Resolve("level1")
	require.True(t, ok)
	assert.Equal(t, b, h2.ArtifactID())
}
