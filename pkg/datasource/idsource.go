package datasource

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/forgepipe/anvil/pkg/dataset"
	"github.com/forgepipe/anvil/pkg/idset"
	"github.com/forgepipe/anvil/pkg/schema"
	"gopkg.in/yaml.v3"
)

const assetFileExt = ".af"

// IDSource is the ID-based Data Source: every asset is a standalone file
// named <uuid>.af directly under root, regardless of where the asset sits
// in the location tree. The location tree lives only in each file's
// location fields; no directories are created for path-node assets.
type IDSource struct {
	root string
}

// OpenIDSource returns an ID-based Data Source rooted at dir, creating dir
// if it does not already exist.
func OpenIDSource(dir string) (*IDSource, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("datasource: creating %s: %w", dir, err)
	}
	return &IDSource{root: dir}, nil
}

// LoadFromStorage reads every *.af file under root and installs the assets
// it decodes into a fresh Data Set bound to schemaSet.
func (s *IDSource) LoadFromStorage(schemaSet *schema.Set) (*dataset.Store, error) {
	store := dataset.NewStore(schemaSet)

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("datasource: reading %s: %w", s.root, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), assetFileExt) {
			continue
		}

		idHex := strings.TrimSuffix(entry.Name(), assetFileExt)
		id, err := idset.FromHex(idHex)
		if err != nil {
			return nil, fmt.Errorf("datasource: %s: invalid asset filename: %w", entry.Name(), err)
		}

		raw, err := os.ReadFile(filepath.Join(s.root, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("datasource: reading %s: %w", entry.Name(), err)
		}

		var rec record
		if err := yaml.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("datasource: parsing %s: %w", entry.Name(), err)
		}

		asset, err := decodeFromRecord(id, rec)
		if err != nil {
			return nil, err
		}
		store.Install(asset)
	}

	return store, nil
}

// FlushToStorage writes one <uuid>.af file for every id in ids that is live
// in store. It writes no directories, path-node assets included. For every
// id in ids that is tombstoned or unknown, its .af file is removed; .af
// files of ids not passed in ids are left untouched.
func (s *IDSource) FlushToStorage(store *dataset.Store, ids []idset.AssetId) error {
	live := make(map[idset.AssetId]struct{}, len(ids))

	for _, id := range ids {
		asset, ok := store.Get(id)
		if !ok {
			continue // tombstoned or unknown: falls out of the on-disk set below
		}
		live[id] = struct{}{}

		rec, err := encodeToRecord(asset)
		if err != nil {
			return err
		}
		raw, err := yaml.Marshal(rec)
		if err != nil {
			return fmt.Errorf("datasource: encoding %s: %w", id, err)
		}
		if err := writeFileAtomic(filepath.Join(s.root, id.Hex()+assetFileExt), raw); err != nil {
			return err
		}
	}

	for _, id := range ids {
		if _, ok := live[id]; ok {
			continue
		}
		path := filepath.Join(s.root, id.Hex()+assetFileExt)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("datasource: removing %s: %w", path, err)
		}
	}

	return nil
}

// writeFileAtomic writes data to path via a temp-file-plus-rename, so a
// crash mid-write never leaves a half-written asset file on disk.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("datasource: writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("datasource: renaming %s to %s: %w", tmp, path, err)
	}
	return nil
}
