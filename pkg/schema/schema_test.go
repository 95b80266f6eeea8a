package schema

import (
	"testing"

	"github.com/forgepipe/anvil/pkg/idset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustAddRecord(t *testing.T, s *Set, name string, fields []Field) *NamedType {
	t.Helper()
	nt, err := s.AddRecord(name, fields)
	require.NoError(t, err)
	return nt
}

func TestFingerprintIsStableAcrossIndependentSets(t *testing.T) {
	build := func() *NamedType {
		s := NewSet()
		return mustAddRecord(t, s, "Transform", []Field{
			{Name: "x", Type: F32},
			{Name: "y", Type: F32},
			{Name: "tags", Type: DynamicArrayOf(String)},
		})
	}

	a := build()
	b := build()
	assert.Equal(t, a.Fingerprint, b.Fingerprint, "identical structure must yield identical fingerprints")
}

func TestFingerprintDiffersOnFieldNameChange(t *testing.T) {
	s1 := NewSet()
	a := mustAddRecord(t, s1, "T", []Field{{Name: "x", Type: I32}})

	s2 := NewSet()
	b := mustAddRecord(t, s2, "T", []Field{{Name: "y", Type: I32}})

	assert.NotEqual(t, a.Fingerprint, b.Fingerprint)
}

func TestSelfReferentialRecord(t *testing.T) {
	s := NewSet()
	nt, err := s.AddRecord("Node", []Field{
		{Name: "value", Type: I32},
		{Name: "children", Type: DynamicArrayOf(NamedOf("Node"))},
	})
	require.NoError(t, err)
	assert.False(t, nt.Fingerprint.IsNil())

	childrenField, ok := nt.FieldByName("children")
	require.True(t, ok)
	assert.Equal(t, nt.Fingerprint, childrenField.Type.Elem.NamedFingerprint,
		"self-reference must resolve to the enclosing record's own fingerprint")
}

func TestFindNamedTypeUnknown(t *testing.T) {
	s := NewSet()
	_, err := s.FindNamedType("Missing")
	require.ErrorIs(t, err, ErrUnknownType)
}

func TestAddRecordRejectsDuplicateName(t *testing.T) {
	s := NewSet()
	mustAddRecord(t, s, "T", []Field{{Name: "x", Type: I32}})
	_, err := s.AddRecord("T", []Field{{Name: "y", Type: I32}})
	require.ErrorIs(t, err, ErrTypeAlreadyExists)
}

func TestResolvePropertySchemaSimpleField(t *testing.T) {
	s := NewSet()
	root := mustAddRecord(t, s, "T", []Field{{Name: "x", Type: I32}})

	res, err := s.ResolvePropertySchema(root, Path{FieldSeg("x")})
	require.NoError(t, err)
	assert.Equal(t, KindI32, res.Terminal.Kind)
	assert.Empty(t, res.NullableAncestors)
	assert.Empty(t, res.ReplaceModeAncestors)
}

func TestResolvePropertySchemaNullable(t *testing.T) {
	s := NewSet()
	root := mustAddRecord(t, s, "T", []Field{{Name: "n", Type: NullableOf(I32)}})

	res, err := s.ResolvePropertySchema(root, Path{FieldSeg("n"), NullableValueSeg()})
	require.NoError(t, err)
	assert.Equal(t, KindI32, res.Terminal.Kind)
	require.Len(t, res.NullableAncestors, 1)
	assert.Equal(t, "n", res.NullableAncestors[0].String())
}

func TestResolvePropertySchemaNullableWithoutValueSegmentIsAncestorItself(t *testing.T) {
	s := NewSet()
	root := mustAddRecord(t, s, "T", []Field{{Name: "n", Type: NullableOf(I32)}})

	res, err := s.ResolvePropertySchema(root, Path{FieldSeg("n")})
	require.NoError(t, err)
	assert.Equal(t, KindNullable, res.Terminal.Kind)
	require.Len(t, res.NullableAncestors, 1)
}

func TestResolvePropertySchemaDynamicArray(t *testing.T) {
	s := NewSet()
	root := mustAddRecord(t, s, "T", []Field{{Name: "xs", Type: DynamicArrayOf(I32)}})

	key := idset.New()
	res, err := s.ResolvePropertySchema(root, Path{FieldSeg("xs"), DynamicKeySeg(key)})
	require.NoError(t, err)
	assert.Equal(t, KindI32, res.Terminal.Kind)
	require.Len(t, res.ReplaceModeAncestors, 1)
	require.Len(t, res.DynamicArrayAccesses, 1)
	assert.Equal(t, key, res.DynamicArrayAccesses[0].Key)
}

func TestResolvePropertySchemaStaticArrayBounds(t *testing.T) {
	s := NewSet()
	root := mustAddRecord(t, s, "T", []Field{{Name: "xs", Type: StaticArrayOf(I32, 3)}})

	_, err := s.ResolvePropertySchema(root, Path{FieldSeg("xs"), StaticIndexSeg(5)})
	require.ErrorIs(t, err, ErrUnresolvablePath)
}

func TestResolvePropertySchemaNestedRecord(t *testing.T) {
	s := NewSet()
	inner := mustAddRecord(t, s, "Inner", []Field{{Name: "v", Type: I32}})
	_ = inner
	outer := mustAddRecord(t, s, "Outer", []Field{{Name: "inner", Type: NamedOf("Inner")}})

	res, err := s.ResolvePropertySchema(outer, Path{FieldSeg("inner"), FieldSeg("v")})
	require.NoError(t, err)
	assert.Equal(t, KindI32, res.Terminal.Kind)
}

func TestParsePropertyPathRoundTrips(t *testing.T) {
	s := NewSet()
	root := mustAddRecord(t, s, "T", []Field{{Name: "n", Type: NullableOf(I32)}})

	path, err := s.ParsePropertyPath(root, "n.value")
	require.NoError(t, err)
	assert.Equal(t, "n.value", path.String())
}

func TestParsePropertyPathUnknownField(t *testing.T) {
	s := NewSet()
	root := mustAddRecord(t, s, "T", []Field{{Name: "x", Type: I32}})

	_, err := s.ParsePropertyPath(root, "missing")
	require.ErrorIs(t, err, ErrUnknownField)
}
