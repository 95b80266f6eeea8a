package editcontext

import "github.com/forgepipe/anvil/pkg/idset"

// ChangeTracker accumulates modified asset and location ids since the last
// Clear: "a change tracker (modified asset ids + modified
// location ids since last clear)."
type ChangeTracker struct {
	assets    map[idset.AssetId]struct{}
	locations map[idset.ID]struct{}
}

func newChangeTracker() *ChangeTracker {
	return &ChangeTracker{
		assets:    make(map[idset.AssetId]struct{}),
		locations: make(map[idset.ID]struct{}),
	}
}

func (c *ChangeTracker) markAsset(id idset.AssetId)  { c.assets[id] = struct{}{} }
func (c *ChangeTracker) markLocation(id idset.ID)     { c.locations[id] = struct{}{} }

// ModifiedAssets returns the set of asset ids touched since the last Clear.
func (c *ChangeTracker) ModifiedAssets() []idset.AssetId {
	out := make([]idset.AssetId, 0, len(c.assets))
	for id := range c.assets {
		out = append(out, id)
	}
	return out
}

// ModifiedLocations returns the set of location ids touched since the last
// Clear.
func (c *ChangeTracker) ModifiedLocations() []idset.ID {
	out := make([]idset.ID, 0, len(c.locations))
	for id := range c.locations {
		out = append(out, id)
	}
	return out
}

// Clear empties the tracker.
func (c *ChangeTracker) Clear() {
	c.assets = make(map[idset.AssetId]struct{})
	c.locations = make(map[idset.ID]struct{})
}
