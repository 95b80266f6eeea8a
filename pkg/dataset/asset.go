package dataset

import "github.com/forgepipe/anvil/pkg/idset"

// NullState records whether a nullable field has been forced null or
// non-null by an override.
type NullState int

const (
	SetNull NullState = iota
	SetNonNull
)

// OverrideMode selects how a dynamic-array/map override merges with the
// prototype chain's entries.
type OverrideMode int

const (
	Append OverrideMode = iota
	Replace
)

// Location places an asset in the editor's directory-like tree of
// path-node assets.
type Location struct {
	SourceID       idset.ID
	ParentPathNode idset.AssetId
}

// Asset is one authored record: schema, name, location, optional prototype,
// and four override maps keyed by canonical dotted property path.
type Asset struct {
	ID        idset.AssetId
	Schema    idset.SchemaFingerprint
	Name      string
	Location  Location
	Prototype idset.AssetId // idset.Nil when the asset has no prototype

	Tombstoned bool

	ValueOverrides      map[string]Value
	NullOverrides       map[string]NullState
	ReplaceMode         map[string]struct{}
	DynamicArrayEntries map[string][]idset.ID // path -> ordered local entry UUIDs
}

func newAsset(id idset.AssetId, schemaFp idset.SchemaFingerprint, name string, loc Location, prototype idset.AssetId) *Asset {
	return &Asset{
		ID:                  id,
		Schema:              schemaFp,
		Name:                name,
		Location:            loc,
		Prototype:           prototype,
		ValueOverrides:      make(map[string]Value),
		NullOverrides:       make(map[string]NullState),
		ReplaceMode:         make(map[string]struct{}),
		DynamicArrayEntries: make(map[string][]idset.ID),
	}
}

// clone returns a deep copy of a, used by Store.CopyFrom.
func (a *Asset) clone() *Asset {
	c := newAsset(a.ID, a.Schema, a.Name, a.Location, a.Prototype)
	c.Tombstoned = a.Tombstoned
	for k, v := range a.ValueOverrides {
		c.ValueOverrides[k] = v
	}
	for k, v := range a.NullOverrides {
		c.NullOverrides[k] = v
	}
	for k := range a.ReplaceMode {
		c.ReplaceMode[k] = struct{}{}
	}
	for k, v := range a.DynamicArrayEntries {
		entries := make([]idset.ID, len(v))
		copy(entries, v)
		c.DynamicArrayEntries[k] = entries
	}
	return c
}
