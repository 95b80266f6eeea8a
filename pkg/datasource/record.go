package datasource

import (
	"fmt"

	"github.com/forgepipe/anvil/pkg/dataset"
	"github.com/forgepipe/anvil/pkg/idset"
	"github.com/forgepipe/anvil/pkg/schema"
)

// record is the on-disk shape of a dataset.Asset. Field names are the
// stable, hand-editable vocabulary of the text document; dataset.Asset's Go
// field names are free to change without breaking saved files as long as
// this mapping is kept current.
type record struct {
	Schema    idset.SchemaFingerprint `yaml:"schema"`
	Name      string                  `yaml:"name"`
	Location  locationRecord          `yaml:"location"`
	Prototype idset.AssetId           `yaml:"prototype,omitempty"`

	ValueOverrides      map[string]valueRecord    `yaml:"value_overrides,omitempty"`
	NullOverrides       map[string]string         `yaml:"null_overrides,omitempty"`
	ReplaceMode         []string                  `yaml:"replace_mode,omitempty"`
	DynamicArrayEntries map[string][]idset.ID     `yaml:"dynamic_array_entries,omitempty"`
}

type locationRecord struct {
	SourceID       idset.ID      `yaml:"source_id"`
	ParentPathNode idset.AssetId `yaml:"parent_path_node,omitempty"`
}

type valueRecord struct {
	Kind     string        `yaml:"kind"`
	Bool     bool          `yaml:"bool,omitempty"`
	I32      int32         `yaml:"i32,omitempty"`
	I64      int64         `yaml:"i64,omitempty"`
	U32      uint32        `yaml:"u32,omitempty"`
	U64      uint64        `yaml:"u64,omitempty"`
	F32      float32       `yaml:"f32,omitempty"`
	F64      float64       `yaml:"f64,omitempty"`
	Bytes    []byte        `yaml:"bytes,omitempty"`
	Str      string        `yaml:"str,omitempty"`
	AssetRef idset.AssetId `yaml:"asset_ref,omitempty"`
}

const (
	kindNameBool         = "bool"
	kindNameI32          = "i32"
	kindNameI64          = "i64"
	kindNameU32          = "u32"
	kindNameU64          = "u64"
	kindNameF32          = "f32"
	kindNameF64          = "f64"
	kindNameBytes        = "bytes"
	kindNameBuffer       = "buffer"
	kindNameString       = "string"
	kindNameAssetRef     = "asset_ref"
)

func encodeValue(v dataset.Value) (valueRecord, error) {
	switch v.Kind {
	case schema.KindBool:
		return valueRecord{Kind: kindNameBool, Bool: v.Bool}, nil
	case schema.KindI32:
		return valueRecord{Kind: kindNameI32, I32: v.I32}, nil
	case schema.KindI64:
		return valueRecord{Kind: kindNameI64, I64: v.I64}, nil
	case schema.KindU32:
		return valueRecord{Kind: kindNameU32, U32: v.U32}, nil
	case schema.KindU64:
		return valueRecord{Kind: kindNameU64, U64: v.U64}, nil
	case schema.KindF32:
		return valueRecord{Kind: kindNameF32, F32: v.F32}, nil
	case schema.KindF64:
		return valueRecord{Kind: kindNameF64, F64: v.F64}, nil
	case schema.KindBytes:
		return valueRecord{Kind: kindNameBytes, Bytes: v.Bytes}, nil
	case schema.KindBuffer:
		return valueRecord{Kind: kindNameBuffer, Bytes: v.Bytes}, nil
	case schema.KindString:
		return valueRecord{Kind: kindNameString, Str: v.Str}, nil
	case schema.KindAssetRef:
		return valueRecord{Kind: kindNameAssetRef, AssetRef: v.AssetRef}, nil
	default:
		return valueRecord{}, fmt.Errorf("datasource: value kind %d has no on-disk representation", v.Kind)
	}
}

func decodeValue(r valueRecord) (dataset.Value, error) {
	switch r.Kind {
	case kindNameBool:
		return dataset.BoolValue(r.Bool), nil
	case kindNameI32:
		return dataset.I32Value(r.I32), nil
	case kindNameI64:
		return dataset.I64Value(r.I64), nil
	case kindNameU32:
		return dataset.U32Value(r.U32), nil
	case kindNameU64:
		return dataset.U64Value(r.U64), nil
	case kindNameF32:
		return dataset.F32Value(r.F32), nil
	case kindNameF64:
		return dataset.F64Value(r.F64), nil
	case kindNameBytes:
		return dataset.BytesValue(r.Bytes), nil
	case kindNameBuffer:
		return dataset.BufferValue(r.Bytes), nil
	case kindNameString:
		return dataset.StringValue(r.Str), nil
	case kindNameAssetRef:
		return dataset.AssetRefValue(r.AssetRef), nil
	default:
		return dataset.Value{}, fmt.Errorf("datasource: unknown value kind %q", r.Kind)
	}
}

const (
	nullStateNull    = "null"
	nullStateNonNull = "non_null"
)

func encodeToRecord(a *dataset.Asset) (record, error) {
	rec := record{
		Schema: a.Schema,
		Name:   a.Name,
		Location: locationRecord{
			SourceID:       a.Location.SourceID,
			ParentPathNode: a.Location.ParentPathNode,
		},
		Prototype: a.Prototype,
	}

	if len(a.ValueOverrides) > 0 {
		rec.ValueOverrides = make(map[string]valueRecord, len(a.ValueOverrides))
		for path, v := range a.ValueOverrides {
			enc, err := encodeValue(v)
			if err != nil {
				return record{}, fmt.Errorf("datasource: encoding %s at %q: %w", a.ID, path, err)
			}
			rec.ValueOverrides[path] = enc
		}
	}

	if len(a.NullOverrides) > 0 {
		rec.NullOverrides = make(map[string]string, len(a.NullOverrides))
		for path, n := range a.NullOverrides {
			if n == dataset.SetNull {
				rec.NullOverrides[path] = nullStateNull
			} else {
				rec.NullOverrides[path] = nullStateNonNull
			}
		}
	}

	for path := range a.ReplaceMode {
		rec.ReplaceMode = append(rec.ReplaceMode, path)
	}

	if len(a.DynamicArrayEntries) > 0 {
		rec.DynamicArrayEntries = make(map[string][]idset.ID, len(a.DynamicArrayEntries))
		for path, entries := range a.DynamicArrayEntries {
			cp := make([]idset.ID, len(entries))
			copy(cp, entries)
			rec.DynamicArrayEntries[path] = cp
		}
	}

	return rec, nil
}

func decodeFromRecord(id idset.AssetId, rec record) (*dataset.Asset, error) {
	a := &dataset.Asset{
		ID:     id,
		Schema: rec.Schema,
		Name:   rec.Name,
		Location: dataset.Location{
			SourceID:       rec.Location.SourceID,
			ParentPathNode: rec.Location.ParentPathNode,
		},
		Prototype:           rec.Prototype,
		ValueOverrides:       make(map[string]dataset.Value),
		NullOverrides:        make(map[string]dataset.NullState),
		ReplaceMode:          make(map[string]struct{}),
		DynamicArrayEntries:  make(map[string][]idset.ID),
	}

	for path, vr := range rec.ValueOverrides {
		v, err := decodeValue(vr)
		if err != nil {
			return nil, fmt.Errorf("datasource: decoding %s at %q: %w", id, path, err)
		}
		a.ValueOverrides[path] = v
	}

	for path, n := range rec.NullOverrides {
		switch n {
		case nullStateNull:
			a.NullOverrides[path] = dataset.SetNull
		case nullStateNonNull:
			a.NullOverrides[path] = dataset.SetNonNull
		default:
			return nil, fmt.Errorf("datasource: %s: unknown null state %q at %q", id, n, path)
		}
	}

	for _, path := range rec.ReplaceMode {
		a.ReplaceMode[path] = struct{}{}
	}

	for path, entries := range rec.DynamicArrayEntries {
		cp := make([]idset.ID, len(entries))
		copy(cp, entries)
		a.DynamicArrayEntries[path] = cp
	}

	return a, nil
}
