// Package demoplugins wires a small worked example through every layer of
// the pipeline: a "transform" schema, a file importer that reads a plain
// text transform file straight into Data Set properties, and a builder
// that turns those properties into a runtime Transform artifact the
// Asset Storage registry can hold.
//
// It exists to exercise pkg/importer, pkg/pipeline, and pkg/assetstorage
// together against a schema simple enough to read at a glance, the way a
// getting-started example does.
package demoplugins
