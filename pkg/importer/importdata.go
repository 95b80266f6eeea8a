package importer

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/forgepipe/anvil/pkg/b3f"
	"github.com/forgepipe/anvil/pkg/idset"
)

// ImportDataMetadata is the small first block of a .if file: staleness-check
// fields compared against the live source file.
type ImportDataMetadata struct {
	SourceFileModifiedTimestamp uint64
	SourceFileSize              uint64
	ImportDataContentsHash      uint64
}

// ImportDataStore persists per-asset import data records as .if files
// under root, one file per asset id.
type ImportDataStore struct {
	root string
}

// NewImportDataStore returns a store rooted at root, creating it if needed.
func NewImportDataStore(root string) (*ImportDataStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("importer: creating import-data root: %w", err)
	}
	return &ImportDataStore{root: root}, nil
}

func (s *ImportDataStore) path(assetID idset.AssetId) string {
	return filepath.Join(s.root, assetID.Hex()+".if")
}

// Read loads the metadata and record bytes for assetID. Returns
// os.ErrNotExist (wrapped) if no .if file exists yet.
func (s *ImportDataStore) Read(assetID idset.AssetId) (ImportDataMetadata, []byte, error) {
	raw, err := os.ReadFile(s.path(assetID))
	if err != nil {
		return ImportDataMetadata{}, nil, err
	}
	blocks, err := b3f.Decode(raw)
	if err != nil {
		return ImportDataMetadata{}, nil, fmt.Errorf("importer: decoding %s: %w", s.path(assetID), err)
	}
	if len(blocks) != 2 {
		return ImportDataMetadata{}, nil, fmt.Errorf("importer: %s has %d blocks, want 2", s.path(assetID), len(blocks))
	}
	var meta ImportDataMetadata
	if err := gob.NewDecoder(bytes.NewReader(blocks[0])).Decode(&meta); err != nil {
		return ImportDataMetadata{}, nil, fmt.Errorf("importer: decoding metadata: %w", err)
	}
	return meta, blocks[1], nil
}

// WriteIfChanged writes a .if file for assetID only if its contents would
// differ from what is already on disk, to avoid perturbing mtimes and
// triggering cascading rebuilds. It writes atomically via temp file +
// rename. Reports whether it wrote.
func (s *ImportDataStore) WriteIfChanged(assetID idset.AssetId, meta ImportDataMetadata, record []byte) (bool, error) {
	if existingMeta, _, err := s.Read(assetID); err == nil {
		if existingMeta == meta {
			return false, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, err
	}

	var metaBuf bytes.Buffer
	if err := gob.NewEncoder(&metaBuf).Encode(meta); err != nil {
		return false, fmt.Errorf("importer: encoding metadata: %w", err)
	}
	container := b3f.Encode(metaBuf.Bytes(), record)

	dst := s.path(assetID)
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, container, 0o644); err != nil {
		return false, fmt.Errorf("importer: writing temp import data: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		return false, fmt.Errorf("importer: renaming import data into place: %w", err)
	}
	return true, nil
}

// IsStale reports whether the stored metadata for assetID (if any) differs
// from the live source's size/mtime. A missing .if file is always stale.
func (s *ImportDataStore) IsStale(assetID idset.AssetId, sourceSize, sourceModified uint64) bool {
	meta, _, err := s.Read(assetID)
	if err != nil {
		return true
	}
	return meta.SourceFileSize != sourceSize || meta.SourceFileModifiedTimestamp != sourceModified
}
