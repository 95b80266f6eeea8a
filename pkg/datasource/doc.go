// Package datasource implements the two on-disk layouts the Data Set can
// be loaded from and flushed to: an ID-based layout, where every asset is a
// standalone file named by its uuid, and a path-based layout, where every
// asset is a file placed at its location in the editor's directory-like
// tree and named after the asset itself.
//
// Both layouts serialize an asset as a small YAML document — schema
// fingerprint, name, location, optional prototype, and the four override
// maps dataset.Asset carries — rather than any binary format, since these
// files are meant to be hand-editable and diff-friendly.
package datasource
