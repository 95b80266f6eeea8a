package importer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/forgepipe/anvil/pkg/idset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeImporter struct {
	id    idset.ImporterId
	calls int
}

func (f *fakeImporter) ID() idset.ImporterId        { return f.id }
func (f *fakeImporter) FileExtensions() []string    { return []string{".txt"} }
func (f *fakeImporter) ScanFile(ctx ScanContext) ([]Importable, error) {
	return []Importable{{Name: "main", SchemaFingerprint: idset.New()}}, nil
}

func (f *fakeImporter) ImportFile(ctx ImportContext) (map[string]ImportResult, error) {
	f.calls++
	return map[string]ImportResult{
		"main": {
			DefaultAsset: DefaultAssetRecord{Name: "main"},
			ImportData:   []byte("content"),
		},
	}, nil
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	reg := NewRegistry()
	imp := &fakeImporter{id: idset.New()}
	require.NoError(t, reg.Register(imp))

	found, ok := reg.ForExtension(".txt")
	require.True(t, ok)
	assert.Equal(t, imp.ID(), found.ID())

	found, ok = reg.ForID(imp.ID())
	require.True(t, ok)
	assert.Equal(t, imp.ID(), found.ID())
}

func TestPoolProcessesImportRequestAndSkipsWhenFresh(t *testing.T) {
	dir := t.TempDir()
	dataStore, err := NewImportDataStore(filepath.Join(dir, "import-data"))
	require.NoError(t, err)

	reg := NewRegistry()
	imp := &fakeImporter{id: idset.New()}
	require.NoError(t, reg.Register(imp))

	srcPath := filepath.Join(dir, "source.txt")
	require.NoError(t, os.WriteFile(srcPath, []byte("hello"), 0o644))

	pool := NewPool(reg, dataStore, 2)
	defer pool.Stop()

	assetID := idset.New()
	req := ImportToQueue{
		SourceFilePath:        srcPath,
		ImporterID:            imp.ID(),
		RequestedImportables:  []string{"main"},
		ImportType:            ImportIfImportDataStale,
		PreAssignedAssetIDs:   map[string]idset.AssetId{"main": assetID},
	}

	pool.Submit(req)
	outcome := waitForOutcome(t, pool)
	require.Empty(t, outcome.Failures)
	require.Contains(t, outcome.Results, "main")
	assert.Equal(t, 1, imp.calls)

	// Touch nothing: a second ImportIfImportDataStale request must be
	// skipped without invoking import_file again.
	pool.Submit(req)
	outcome = waitForOutcome(t, pool)
	assert.True(t, outcome.Skipped)
	assert.Equal(t, 1, imp.calls, "import_file must not be re-invoked when import data is fresh")
}

func waitForOutcome(t *testing.T, p *Pool) ImportThreadOutcome {
	t.Helper()
	select {
	case o := <-p.Results():
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for import outcome")
		return ImportThreadOutcome{}
	}
}
