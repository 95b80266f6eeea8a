package demoplugins

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/forgepipe/anvil/pkg/dataset"
	"github.com/forgepipe/anvil/pkg/idset"
	"github.com/forgepipe/anvil/pkg/importer"
)

// TransformImporterID is stable across runs: it is derived, not random, so
// import-data records referencing it stay valid across process restarts.
var TransformImporterID = idset.ImporterId(idset.Hash128([]byte("demoplugins.transform-importer")))

// TransformImporter reads a ".transform" text file, ten whitespace-
// separated floats (position xyz, rotation xyzw, scale xyz, in that
// order), directly into transform asset properties. It carries no
// import-data record: every value it reads becomes a property override on
// the imported asset immediately, with nothing left for a builder to parse
// from raw bytes.
type TransformImporter struct {
	transformSchema idset.SchemaFingerprint
}

// NewTransformImporter returns an importer that creates assets of
// transformSchema (normally the fingerprint RegisterSchemas returned).
func NewTransformImporter(transformSchema idset.SchemaFingerprint) *TransformImporter {
	return &TransformImporter{transformSchema: transformSchema}
}

func (t *TransformImporter) ID() idset.ImporterId     { return TransformImporterID }
func (t *TransformImporter) FileExtensions() []string { return []string{".transform"} }

func (t *TransformImporter) ScanFile(ctx importer.ScanContext) ([]importer.Importable, error) {
	return []importer.Importable{
		{SchemaFingerprint: t.transformSchema},
	}, nil
}

func (t *TransformImporter) ImportFile(ctx importer.ImportContext) (map[string]importer.ImportResult, error) {
	f, err := os.Open(ctx.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("demoplugins: opening %s: %w", ctx.SourcePath, err)
	}
	defer f.Close()

	values, err := parseTransformFile(f)
	if err != nil {
		return nil, fmt.Errorf("demoplugins: parsing %s: %w", ctx.SourcePath, err)
	}

	return map[string]importer.ImportResult{
		"": {
			DefaultAsset: importer.DefaultAssetRecord{
				Schema:     t.transformSchema,
				Properties: values,
			},
		},
	}, nil
}

var transformFieldOrder = []string{
	"position.x", "position.y", "position.z",
	"rotation.x", "rotation.y", "rotation.z", "rotation.w",
	"scale.x", "scale.y", "scale.z",
}

func parseTransformFile(r *os.File) (map[string]dataset.Value, error) {
	scanner := bufio.NewScanner(r)
	var tokens []string
	for scanner.Scan() {
		tokens = append(tokens, strings.Fields(scanner.Text())...)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(tokens) != len(transformFieldOrder) {
		return nil, fmt.Errorf("expected %d floats, found %d", len(transformFieldOrder), len(tokens))
	}

	values := make(map[string]dataset.Value, len(tokens))
	for i, tok := range tokens {
		f, err := strconv.ParseFloat(tok, 32)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", transformFieldOrder[i], err)
		}
		values[transformFieldOrder[i]] = dataset.F32Value(float32(f))
	}
	return values, nil
}
