// Package importer implements the Importer Registry and the Import Job
// worker pool: plug-ins that turn a source file into a scanned set of
// importables, and a bounded pool that runs them.
package importer

import (
	"errors"

	"github.com/forgepipe/anvil/pkg/dataset"
	"github.com/forgepipe/anvil/pkg/idset"
)

var (
	ErrUnknownImporter   = errors.New("importer: unknown importer id")
	ErrUnknownExtension  = errors.New("importer: no importer registered for extension")
	ErrImporterExists    = errors.New("importer: importer already registered")
)

// ReferencedPath names a source file an importable references, along with
// the importer expected to import it.
type ReferencedPath struct {
	Path       string
	ImporterID idset.ImporterId
}

// Importable is one unit scan_file enumerates from a source file.
type Importable struct {
	Name              string // optional
	SchemaFingerprint idset.SchemaFingerprint
	ReferencedPaths   []ReferencedPath
}

// DefaultAssetRecord is the initial asset shape import_file proposes for an
// importable: its schema, name, and the property values to set at creation.
type DefaultAssetRecord struct {
	Schema     idset.SchemaFingerprint
	Name       string
	Properties map[string]dataset.Value
}

// ImportResult is what import_file produces for one importable: a default
// asset record, an optional import-data record, and referenced paths.
type ImportResult struct {
	DefaultAsset    DefaultAssetRecord
	ImportData      []byte // nil if this importable has no import-data record
	ReferencedPaths []ReferencedPath
}

// ScanContext carries what scan_file needs to cheaply enumerate
// importables.
type ScanContext struct {
	SourcePath string
}

// ImportContext carries what import_file needs to actually produce records.
type ImportContext struct {
	SourcePath          string
	RequestedImportables []string
}

// Importer is a registered plug-in identified by an importer id, the file
// extensions it handles, and its scan/import entry points.
type Importer interface {
	ID() idset.ImporterId
	FileExtensions() []string
	ScanFile(ctx ScanContext) ([]Importable, error)
	ImportFile(ctx ImportContext) (map[string]ImportResult, error)
}

// ImportType selects how aggressively a request re-invokes import_file.
type ImportType int

const (
	// ImportIfImportDataStale only re-imports when the source file or
	// stored import data has changed.
	ImportIfImportDataStale ImportType = iota
	// ImportAlways unconditionally re-invokes import_file.
	ImportAlways
)

// ImportToQueue is one request submitted to the worker pool: a source file
// path, an importer id, the requested importable names, and an import
// type. PreAssignedAssetIDs carries the ids the editor minted up front for
// each requested importable name, so the main loop can merge results back
// under those pre-assigned asset ids once the worker finishes.
type ImportToQueue struct {
	SourceFilePath        string
	ImporterID            idset.ImporterId
	RequestedImportables  []string
	ImportType            ImportType
	PreAssignedAssetIDs   map[string]idset.AssetId
}

// ImportOutcomeResult is one successfully-imported importable's result.
type ImportOutcomeResult struct {
	DefaultAsset DefaultAssetRecord
	Info         ImportInfo
}

// ImportInfo carries the importer id, canonical source path with
// importable name, referenced paths, and the staleness-check fields.
type ImportInfo struct {
	ImporterID                  idset.ImporterId
	CanonicalSourcePath         string
	ImportableName              string
	ReferencedPaths             []ReferencedPath
	SourceFileSize              uint64
	SourceFileModifiedTimestamp uint64
	ImportDataContentsHash      uint64
}

// ImportThreadOutcome is what one worker emits after processing a request:
// the original request plus a map of importable name to (default asset,
// import info). Per-importable failures are carried in Failures rather
// than aborting the whole outcome — any step returning an error terminates
// that importable only.
type ImportThreadOutcome struct {
	Request  ImportToQueue
	Results  map[string]ImportOutcomeResult
	Failures map[string]error
	Skipped  bool // true when every requested importable's import data was already fresh
}
