package artifactstore

import (
	"testing"

	"github.com/forgepipe/anvil/pkg/idset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	id := idset.New()
	dep := idset.New()
	assetType := idset.New()
	require.NoError(t, s.Put(id, Metadata{Dependencies: []idset.ArtifactId{dep}, AssetType: assetType}, []byte("payload")))

	meta, payload, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), payload)
	assert.Equal(t, assetType, meta.AssetType)
	require.Len(t, meta.Dependencies, 1)
	assert.Equal(t, dep, meta.Dependencies[0])
	assert.True(t, s.Exists(id))
}

func TestSweepRemovesOrphans(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	live := idset.New()
	orphan := idset.New()
	require.NoError(t, s.Put(live, Metadata{}, []byte("a")))
	require.NoError(t, s.Put(orphan, Metadata{}, []byte("b")))

	removed, err := s.Sweep([]idset.ArtifactId{live})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.True(t, s.Exists(live))
	assert.False(t, s.Exists(orphan))
}

func TestDeleteMissingIsNotError(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Delete(idset.New()))
}

func TestCount(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, s.Put(idset.New(), Metadata{}, []byte("a")))
	require.NoError(t, s.Put(idset.New(), Metadata{}, []byte("b")))

	n, err = s.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
