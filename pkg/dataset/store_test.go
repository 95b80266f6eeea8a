package dataset

import (
	"testing"

	"github.com/forgepipe/anvil/pkg/idset"
	"github.com/forgepipe/anvil/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIntSchema(t *testing.T) (*schema.Set, *schema.NamedType) {
	t.Helper()
	s := schema.NewSet()
	nt, err := s.AddRecord("T", []schema.Field{{Name: "x", Type: schema.I32}})
	require.NoError(t, err)
	return s, nt
}

func TestPrototypeOverrideScenario(t *testing.T) {
	schemaSet, nt := newIntSchema(t)
	store := NewStore(schemaSet)

	proto, err := store.CreateAsset(nt.Fingerprint, idset.Nil, "P", Location{})
	require.NoError(t, err)
	require.NoError(t, store.SetPropertyOverride(proto, "x", I32Value(5)))

	child, err := store.CreateAsset(nt.Fingerprint, proto, "C", Location{})
	require.NoError(t, err)

	v, err := store.ResolveProperty(child, "x")
	require.NoError(t, err)
	assert.Equal(t, int32(5), v.I32)

	require.NoError(t, store.SetPropertyOverride(child, "x", I32Value(7)))
	v, err = store.ResolveProperty(child, "x")
	require.NoError(t, err)
	assert.Equal(t, int32(7), v.I32)

	v, err = store.ResolveProperty(proto, "x")
	require.NoError(t, err)
	assert.Equal(t, int32(5), v.I32, "prototype's own value must be unaffected by child override")

	require.NoError(t, store.ApplyPropertyOverrideToPrototype(child, "x"))

	v, err = store.ResolveProperty(proto, "x")
	require.NoError(t, err)
	assert.Equal(t, int32(7), v.I32)

	protoAsset, ok := store.Get(proto)
	require.True(t, ok)
	childAsset, ok := store.Get(child)
	require.True(t, ok)
	_ = protoAsset
	assert.NotContains(t, childAsset.ValueOverrides, "x")
}

func TestNullableScenario(t *testing.T) {
	s := schema.NewSet()
	nt, err := s.AddRecord("T", []schema.Field{{Name: "n", Type: schema.NullableOf(schema.I32)}})
	require.NoError(t, err)

	store := NewStore(s)
	a, err := store.CreateAsset(nt.Fingerprint, idset.Nil, "A", Location{})
	require.NoError(t, err)

	_, err = store.ResolveProperty(a, "n.value")
	require.ErrorIs(t, err, ErrUnresolvablePath)

	isNull, err := store.ResolveIsNull(a, "n")
	require.NoError(t, err)
	assert.True(t, isNull, "default state is SetNull")

	require.NoError(t, store.SetNullOverride(a, "n", SetNonNull))
	require.NoError(t, store.SetPropertyOverride(a, "n.value", I32Value(42)))

	v, err := store.ResolveProperty(a, "n.value")
	require.NoError(t, err)
	assert.Equal(t, int32(42), v.I32)
}

func TestDynamicArrayMergeScenario(t *testing.T) {
	s := schema.NewSet()
	nt, err := s.AddRecord("T", []schema.Field{{Name: "xs", Type: schema.DynamicArrayOf(schema.I32)}})
	require.NoError(t, err)

	store := NewStore(s)
	proto, err := store.CreateAsset(nt.Fingerprint, idset.Nil, "P", Location{})
	require.NoError(t, err)

	u1, err := store.AddDynamicArrayOverride(proto, "xs")
	require.NoError(t, err)
	require.NoError(t, store.SetPropertyOverride(proto, "xs."+u1.String(), I32Value(1)))
	u2, err := store.AddDynamicArrayOverride(proto, "xs")
	require.NoError(t, err)
	require.NoError(t, store.SetPropertyOverride(proto, "xs."+u2.String(), I32Value(2)))

	child, err := store.CreateAsset(nt.Fingerprint, proto, "C", Location{})
	require.NoError(t, err)
	u3, err := store.AddDynamicArrayOverride(child, "xs")
	require.NoError(t, err)
	require.NoError(t, store.SetPropertyOverride(child, "xs."+u3.String(), I32Value(3)))

	entries, err := store.ResolveDynamicArray(child, "xs")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []idset.ID{u1, u2, u3}, entries)

	require.NoError(t, store.SetOverrideBehavior(child, "xs", Replace))
	entries, err = store.ResolveDynamicArray(child, "xs")
	require.NoError(t, err)
	assert.Equal(t, []idset.ID{u3}, entries)
}

func TestCreateAssetRejectsMismatchedPrototypeSchema(t *testing.T) {
	s := schema.NewSet()
	nt1, err := s.AddRecord("A", []schema.Field{{Name: "x", Type: schema.I32}})
	require.NoError(t, err)
	nt2, err := s.AddRecord("B", []schema.Field{{Name: "y", Type: schema.I32}})
	require.NoError(t, err)

	store := NewStore(s)
	proto, err := store.CreateAsset(nt1.Fingerprint, idset.Nil, "P", Location{})
	require.NoError(t, err)

	_, err = store.CreateAsset(nt2.Fingerprint, proto, "C", Location{})
	require.ErrorIs(t, err, ErrPrototypeSchema)
}

func TestDeleteCascadesToLocationDescendants(t *testing.T) {
	s, nt := newIntSchema(t)
	store := NewStore(s)

	dir, err := store.CreateAsset(nt.Fingerprint, idset.Nil, "dir", Location{})
	require.NoError(t, err)
	child, err := store.CreateAsset(nt.Fingerprint, idset.Nil, "child", Location{ParentPathNode: dir})
	require.NoError(t, err)

	require.NoError(t, store.Delete(dir))

	_, ok := store.Get(dir)
	assert.False(t, ok)
	_, ok = store.Get(child)
	assert.False(t, ok, "descendants must be tombstoned along with their parent")
}

func TestCountExcludesTombstonedAssets(t *testing.T) {
	s, nt := newIntSchema(t)
	store := NewStore(s)

	a, err := store.CreateAsset(nt.Fingerprint, idset.Nil, "a", Location{})
	require.NoError(t, err)
	_, err = store.CreateAsset(nt.Fingerprint, idset.Nil, "b", Location{})
	require.NoError(t, err)
	assert.Equal(t, 2, store.Count())

	require.NoError(t, store.Delete(a))
	assert.Equal(t, 1, store.Count())
}
