package demoplugins

import "github.com/forgepipe/anvil/pkg/schema"

const (
	SchemaNameVec3      = "vec3"
	SchemaNameQuat      = "quat"
	SchemaNameTransform = "transform"
)

// RegisterSchemas installs the vec3/quat/transform named types into set and
// returns the transform record's named type, whose Fingerprint is the fixed
// point every importer, builder, and runtime artifact in this package keys
// off.
func RegisterSchemas(set *schema.Set) (transform *schema.NamedType, err error) {
	if _, err = set.AddRecord(SchemaNameVec3, []schema.Field{
		{Name: "x", Type: schema.F32},
		{Name: "y", Type: schema.F32},
		{Name: "z", Type: schema.F32},
	}); err != nil {
		return nil, err
	}

	if _, err = set.AddRecord(SchemaNameQuat, []schema.Field{
		{Name: "x", Type: schema.F32},
		{Name: "y", Type: schema.F32},
		{Name: "z", Type: schema.F32},
		{Name: "w", Type: schema.F32},
	}); err != nil {
		return nil, err
	}

	transform, err = set.AddRecord(SchemaNameTransform, []schema.Field{
		{Name: "position", Type: schema.NamedOf(SchemaNameVec3)},
		{Name: "rotation", Type: schema.NamedOf(SchemaNameQuat)},
		{Name: "scale", Type: schema.NamedOf(SchemaNameVec3)},
	})
	if err != nil {
		return nil, err
	}

	return transform, nil
}
