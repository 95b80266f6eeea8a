package dataset

import (
	"github.com/forgepipe/anvil/pkg/idset"
	"github.com/forgepipe/anvil/pkg/schema"
)

// Value is a concrete property value. Its Kind must agree with the
// schema.Kind at the resolved path: a value override's concrete variant
// always matches the schema at its path.
type Value struct {
	Kind schema.Kind

	Bool     bool
	I32      int32
	I64      int64
	U32      uint32
	U64      uint64
	F32      float32
	F64      float64
	Bytes    []byte
	Str      string
	AssetRef idset.AssetId
}

func BoolValue(v bool) Value           { return Value{Kind: schema.KindBool, Bool: v} }
func I32Value(v int32) Value           { return Value{Kind: schema.KindI32, I32: v} }
func I64Value(v int64) Value           { return Value{Kind: schema.KindI64, I64: v} }
func U32Value(v uint32) Value          { return Value{Kind: schema.KindU32, U32: v} }
func U64Value(v uint64) Value          { return Value{Kind: schema.KindU64, U64: v} }
func F32Value(v float32) Value         { return Value{Kind: schema.KindF32, F32: v} }
func F64Value(v float64) Value         { return Value{Kind: schema.KindF64, F64: v} }
func BytesValue(v []byte) Value        { return Value{Kind: schema.KindBytes, Bytes: v} }
func BufferValue(v []byte) Value       { return Value{Kind: schema.KindBuffer, Bytes: v} }
func StringValue(v string) Value       { return Value{Kind: schema.KindString, Str: v} }
func AssetRefValue(id idset.AssetId) Value { return Value{Kind: schema.KindAssetRef, AssetRef: id} }

// ZeroValue returns the schema default for a terminal type's kind, used
// when resolution falls through to no override at any level.
func ZeroValue(kind schema.Kind) Value {
	return Value{Kind: kind}
}

// matchesKind reports whether v can be stored at a property whose terminal
// type has the given kind.
func (v Value) matchesKind(kind schema.Kind) bool {
	return v.Kind == kind
}
