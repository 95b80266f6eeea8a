package editcontext

import (
	"testing"

	"github.com/forgepipe/anvil/pkg/dataset"
	"github.com/forgepipe/anvil/pkg/idset"
	"github.com/forgepipe/anvil/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSchema(t *testing.T) (*schema.Set, *schema.NamedType) {
	t.Helper()
	s := schema.NewSet()
	nt, err := s.AddRecord("T", []schema.Field{{Name: "x", Type: schema.I32}})
	require.NoError(t, err)
	return s, nt
}

func TestUndoRedoRestoresPriorValue(t *testing.T) {
	schemaSet, nt := newTestSchema(t)
	session := NewSession(schemaSet)
	root := session.Root()

	id, err := root.Store().CreateAsset(nt.Fingerprint, idset.Nil, "A", dataset.Location{})
	require.NoError(t, err)
	require.NoError(t, root.Mutate(id, func(store *dataset.Store) error {
		return store.SetPropertyOverride(id, "x", dataset.I32Value(1))
	}))
	require.NoError(t, root.CommitPending())

	require.NoError(t, root.Mutate(id, func(store *dataset.Store) error {
		return store.SetPropertyOverride(id, "x", dataset.I32Value(2))
	}))
	require.NoError(t, root.CommitPending())

	v, err := root.Store().ResolveProperty(id, "x")
	require.NoError(t, err)
	assert.Equal(t, int32(2), v.I32)

	require.NoError(t, session.Undo())
	v, err = root.Store().ResolveProperty(id, "x")
	require.NoError(t, err)
	assert.Equal(t, int32(1), v.I32)

	require.NoError(t, session.Redo())
	v, err = root.Store().ResolveProperty(id, "x")
	require.NoError(t, err)
	assert.Equal(t, int32(2), v.I32)
}

func TestCancelPendingRollsBackCreation(t *testing.T) {
	schemaSet, nt := newTestSchema(t)
	session := NewSession(schemaSet)
	root := session.Root()

	id := idset.New()
	require.NoError(t, root.Mutate(id, func(store *dataset.Store) error {
		return store.CopyFrom(&dataset.Asset{Schema: nt.Fingerprint, Name: "A"}, id)
	}))

	require.NoError(t, root.Mutate(id, func(store *dataset.Store) error {
		return store.SetPropertyOverride(id, "x", dataset.I32Value(9))
	}))
	require.NoError(t, root.CancelPending())

	_, ok := root.Store().Get(id)
	assert.False(t, ok, "cancelling the pending group that created the asset must undo the creation too")
}

func TestScratchContextRoundTrip(t *testing.T) {
	schemaSet, nt := newTestSchema(t)
	session := NewSession(schemaSet)
	root := session.Root()

	id, err := root.Store().CreateAsset(nt.Fingerprint, idset.Nil, "A", dataset.Location{})
	require.NoError(t, err)
	require.NoError(t, root.Mutate(id, func(store *dataset.Store) error {
		return store.SetPropertyOverride(id, "x", dataset.I32Value(1))
	}))
	require.NoError(t, root.CommitPending())

	scratch, err := session.OpenScratch("preview", []idset.AssetId{id})
	require.NoError(t, err)

	require.NoError(t, scratch.Mutate(id, func(store *dataset.Store) error {
		return store.SetPropertyOverride(id, "x", dataset.I32Value(100))
	}))
	require.NoError(t, scratch.CommitPending())

	v, err := root.Store().ResolveProperty(id, "x")
	require.NoError(t, err)
	assert.Equal(t, int32(1), v.I32, "scratch edits must not leak into root before flush")

	require.NoError(t, session.FlushScratch("preview"))

	v, err = root.Store().ResolveProperty(id, "x")
	require.NoError(t, err)
	assert.Equal(t, int32(100), v.I32)
}
