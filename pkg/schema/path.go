package schema

import (
	"strconv"
	"strings"

	"github.com/forgepipe/anvil/pkg/idset"
)

// SegmentKind discriminates the structured property-path tokens: a field
// name, a static array index, a dynamic-array element key, a map key, or a
// nullable descent. Segment keeps these structured rather than falling back
// to raw dotted strings internally, since disambiguating a textual segment
// needs the schema anyway.
type SegmentKind int

const (
	SegField SegmentKind = iota
	SegStaticIndex
	SegDynamicKey
	SegMapKey
	SegNullableValue
)

// Segment is one token of a property path.
type Segment struct {
	Kind        SegmentKind
	Field       string   // SegField
	StaticIndex uint32   // SegStaticIndex
	DynamicKey  idset.ID // SegDynamicKey
	MapKey      string   // SegMapKey
}

func FieldSeg(name string) Segment      { return Segment{Kind: SegField, Field: name} }
func StaticIndexSeg(i uint32) Segment   { return Segment{Kind: SegStaticIndex, StaticIndex: i} }
func DynamicKeySeg(id idset.ID) Segment { return Segment{Kind: SegDynamicKey, DynamicKey: id} }
func MapKeySeg(key string) Segment      { return Segment{Kind: SegMapKey, MapKey: key} }
func NullableValueSeg() Segment         { return Segment{Kind: SegNullableValue} }

// Path is an ordered sequence of property-path segments, rooted at a record.
type Path []Segment

// With returns a new Path with seg appended, never mutating p's backing
// array (Path values are shared across resolution branches).
func (p Path) With(seg Segment) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = seg
	return out
}

// IsPrefixOf reports whether p is a leading sub-path of other (p == other
// counts as a prefix).
func (p Path) IsPrefixOf(other Path) bool {
	if len(p) > len(other) {
		return false
	}
	for i, seg := range p {
		if seg != other[i] {
			return false
		}
	}
	return true
}

// String renders the canonical dotted form: dot separated field names,
// decimal static indices, the literal "value" for nullable descent, and the
// string forms of dynamic-array/map keys.
func (p Path) String() string {
	var b strings.Builder
	for i, seg := range p {
		if i > 0 {
			b.WriteByte('.')
		}
		switch seg.Kind {
		case SegField:
			b.WriteString(seg.Field)
		case SegStaticIndex:
			b.WriteString(strconv.FormatUint(uint64(seg.StaticIndex), 10))
		case SegDynamicKey:
			b.WriteString(seg.DynamicKey.String())
		case SegMapKey:
			b.WriteString(seg.MapKey)
		case SegNullableValue:
			b.WriteString("value")
		}
	}
	return b.String()
}

// splitDotted splits the raw textual form into its dot-separated parts
// without yet knowing how to interpret each one — that requires walking the
// schema, since the same textual shape (a bare word) means a field name at
// a record, a map key at a map, or an index at an array. See
// Set.ParsePropertyPath in schema.go.
func splitDotted(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(text, ".")
}
