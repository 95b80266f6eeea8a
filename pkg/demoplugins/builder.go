package demoplugins

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"

	"github.com/forgepipe/anvil/pkg/dataset"
	"github.com/forgepipe/anvil/pkg/idset"
	"github.com/forgepipe/anvil/pkg/pipeline"
	"github.com/forgepipe/anvil/pkg/schema"
)

// TransformAssetType is the Asset Storage type id the built Transform
// artifact is tagged with, so pkg/loader routes it to the right
// assetstorage.TypedStore.
var TransformAssetType = idset.AssetTypeId(idset.Hash128([]byte("demoplugins.transform")))

// Vec3 and Quat are the runtime (post-build) counterparts of the vec3/quat
// schema records.
type Vec3 struct{ X, Y, Z float32 }
type Quat struct{ X, Y, Z, W float32 }

// TransformData is the runtime artifact TransformBuilder produces: the
// fully-resolved property values baked into a plain struct, ready for
// gob decoding by DecodeTransform.
type TransformData struct {
	Position Vec3
	Rotation Quat
	Scale    Vec3
}

// TransformBuilder reads a transform asset's resolved properties straight
// out of the Data Set (no import data is involved) and produces one
// TransformData artifact per asset.
type TransformBuilder struct{}

func (TransformBuilder) SchemaName() string { return SchemaNameTransform }
func (TransformBuilder) Version() uint32    { return 1 }

func (TransformBuilder) EnumerateDependencies(assetID idset.AssetId, data *dataset.Store, schemaSet *schema.Set) ([]idset.AssetId, error) {
	return nil, nil // every value comes from resolved properties, not import data
}

func (TransformBuilder) Build(ctx context.Context, assetID idset.AssetId, data *dataset.Store, schemaSet *schema.Set, dependencyData map[idset.AssetId][]byte, rc *pipeline.RunContext) error {
	f32 := func(path string) (float32, error) {
		v, err := data.ResolveProperty(assetID, path)
		if err != nil {
			return 0, fmt.Errorf("demoplugins: resolving %s on %s: %w", path, assetID, err)
		}
		return v.F32, nil
	}

	var t TransformData
	var err error
	if t.Position.X, err = f32("position.x"); err != nil {
		return err
	}
	if t.Position.Y, err = f32("position.y"); err != nil {
		return err
	}
	if t.Position.Z, err = f32("position.z"); err != nil {
		return err
	}
	if t.Rotation.X, err = f32("rotation.x"); err != nil {
		return err
	}
	if t.Rotation.Y, err = f32("rotation.y"); err != nil {
		return err
	}
	if t.Rotation.Z, err = f32("rotation.z"); err != nil {
		return err
	}
	if t.Rotation.W, err = f32("rotation.w"); err != nil {
		return err
	}
	if t.Scale.X, err = f32("scale.x"); err != nil {
		return err
	}
	if t.Scale.Y, err = f32("scale.y"); err != nil {
		return err
	}
	if t.Scale.Z, err = f32("scale.z"); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(t); err != nil {
		return fmt.Errorf("demoplugins: encoding transform for %s: %w", assetID, err)
	}

	_, err = rc.ProduceArtifact(assetID, TransformAssetType, buf.Bytes())
	return err
}

// DecodeTransform is the assetstorage.Decoder for TransformData artifacts.
func DecodeTransform(payload []byte) (TransformData, error) {
	var t TransformData
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&t); err != nil {
		return TransformData{}, fmt.Errorf("demoplugins: decoding transform: %w", err)
	}
	return t, nil
}

var _ pipeline.Builder = TransformBuilder{}
