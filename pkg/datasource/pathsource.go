package datasource

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/forgepipe/anvil/pkg/dataset"
	"github.com/forgepipe/anvil/pkg/idset"
	"github.com/forgepipe/anvil/pkg/schema"
	"gopkg.in/yaml.v3"
)

// ExtensionResolver maps a schema's name to the file extension its
// path-based files are written with, mirroring how an importer declares
// the extensions it handles.
type ExtensionResolver interface {
	ExtensionForSchema(schemaName string) (string, bool)
}

// StaticExtensions is the simplest ExtensionResolver: a fixed schema-name
// to extension table, set up once at startup from the registered importers.
type StaticExtensions map[string]string

// ExtensionForSchema implements ExtensionResolver.
func (m StaticExtensions) ExtensionForSchema(schemaName string) (string, bool) {
	ext, ok := m[schemaName]
	return ext, ok
}

// PathSource is the path-based Data Source: every asset materializes as a
// file at its location in the directory tree, named <asset-name><ext>. Only
// assets whose Location.SourceID equals sourceID belong to this source, so
// several path-based sources (and an ID-based one) can share one Data Set.
//
// Generated (derived) assets are never written to disk unless
// PersistGeneratedAsset is called for them first, per the distinction
// between authored content and content manufactured by an importer.
type PathSource struct {
	root      string
	sourceID  idset.ID
	ext       ExtensionResolver

	mu        sync.Mutex
	generated map[idset.AssetId]struct{}
}

// OpenPathSource returns a path-based Data Source rooted at dir, tagged
// with sourceID, using ext to choose each asset's file extension.
func OpenPathSource(dir string, sourceID idset.ID, ext ExtensionResolver) (*PathSource, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("datasource: creating %s: %w", dir, err)
	}
	return &PathSource{
		root:      dir,
		sourceID:  sourceID,
		ext:       ext,
		generated: make(map[idset.AssetId]struct{}),
	}, nil
}

// MarkGenerated flags id as manufactured content: FlushToStorage will skip
// it until PersistGeneratedAsset is called.
func (s *PathSource) MarkGenerated(id idset.AssetId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generated[id] = struct{}{}
}

// IsGeneratedAsset reports whether id is currently flagged as generated.
func (s *PathSource) IsGeneratedAsset(id idset.AssetId) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.generated[id]
	return ok
}

// PersistGeneratedAsset clears id's generated flag, so the next
// FlushToStorage call writes it like any authored asset.
func (s *PathSource) PersistGeneratedAsset(id idset.AssetId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.generated, id)
}

// extensionFor resolves the file extension a schema's path-based files are
// written with.
func (s *PathSource) extensionFor(schemaSet *schema.Set, schemaFp idset.SchemaFingerprint) (string, error) {
	named, err := schemaSet.FindByFingerprint(schemaFp)
	if err != nil {
		return "", err
	}
	ext, ok := s.ext.ExtensionForSchema(named.Name)
	if !ok {
		return "", fmt.Errorf("datasource: no file extension registered for schema %q", named.Name)
	}
	return ext, nil
}

// LoadFromStorage walks root and installs one asset per file found, with
// directories becoming path-node assets and their children nested beneath.
func (s *PathSource) LoadFromStorage(schemaSet *schema.Set, pathNodeSchema idset.SchemaFingerprint) (*dataset.Store, error) {
	store := dataset.NewStore(schemaSet)
	if err := s.loadDir(store, schemaSet, s.root, idset.Nil, pathNodeSchema); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *PathSource) loadDir(store *dataset.Store, schemaSet *schema.Set, dir string, parent idset.AssetId, pathNodeSchema idset.SchemaFingerprint) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("datasource: reading %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			id := idset.Hash128([]byte("pathnode:"), s.sourceID[:], []byte(filepath.Join(dir, entry.Name())))
			store.Install(&dataset.Asset{
				ID:        id,
				Schema:    pathNodeSchema,
				Name:      entry.Name(),
				Location:  dataset.Location{SourceID: s.sourceID, ParentPathNode: parent},
				Prototype: idset.Nil,
			})
			if err := s.loadDir(store, schemaSet, filepath.Join(dir, entry.Name()), id, pathNodeSchema); err != nil {
				return err
			}
			continue
		}

		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("datasource: reading %s: %w", entry.Name(), err)
		}

		var onDisk pathRecord
		if err := yaml.Unmarshal(raw, &onDisk); err != nil {
			return fmt.Errorf("datasource: parsing %s: %w", entry.Name(), err)
		}

		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		asset, err := decodeFromRecord(onDisk.ID, onDisk.record)
		if err != nil {
			return err
		}
		asset.Name = name
		asset.Location = dataset.Location{SourceID: s.sourceID, ParentPathNode: parent}
		store.Install(asset)
	}

	return nil
}

// pathRecord adds the fields the path-based layout needs beyond record
// itself: since the filename carries the asset's name, the id that the
// ID-based layout gets for free from its filename has to travel inside the
// document instead.
type pathRecord struct {
	ID idset.AssetId `yaml:"id"`
	record `yaml:",inline"`
}

// FlushToStorage writes a file for every live, non-generated asset in ids
// whose Location.SourceID matches this source, mirroring the location tree
// as nested directories. Path-node assets themselves are materialized as
// plain directories and carry no file of their own.
func (s *PathSource) FlushToStorage(store *dataset.Store, schemaSet *schema.Set, ids []idset.AssetId, isPathNode func(idset.AssetId) bool) error {
	for _, id := range ids {
		asset, ok := store.Get(id)
		if !ok || asset.Location.SourceID != s.sourceID {
			continue
		}
		if s.IsGeneratedAsset(id) {
			continue
		}
		if isPathNode != nil && isPathNode(id) {
			dir, err := s.dirFor(store, asset)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Join(dir, asset.Name), 0o755); err != nil {
				return fmt.Errorf("datasource: creating %s: %w", asset.Name, err)
			}
			continue
		}

		dir, err := s.dirFor(store, asset)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("datasource: creating %s: %w", dir, err)
		}

		ext, err := s.extensionFor(schemaSet, asset.Schema)
		if err != nil {
			return err
		}

		rec, err := encodeToRecord(asset)
		if err != nil {
			return err
		}
		raw, err := yaml.Marshal(pathRecord{ID: id, record: rec})
		if err != nil {
			return fmt.Errorf("datasource: encoding %s: %w", id, err)
		}

		fileName := asset.Name + ext
		if err := writeFileAtomic(filepath.Join(dir, fileName), raw); err != nil {
			return err
		}
	}
	return nil
}

// dirFor returns the absolute directory an asset's file belongs in, by
// walking its ParentPathNode chain back to the source root.
func (s *PathSource) dirFor(store *dataset.Store, asset *dataset.Asset) (string, error) {
	var segments []string
	cur := asset.Location.ParentPathNode
	seen := map[idset.AssetId]bool{}
	for !cur.IsNil() {
		if seen[cur] {
			return "", fmt.Errorf("datasource: cyclic location tree at %s", cur)
		}
		seen[cur] = true
		node, ok := store.Get(cur)
		if !ok {
			return "", fmt.Errorf("datasource: %w: path node %s", dataset.ErrUnknownAsset, cur)
		}
		segments = append([]string{node.Name}, segments...)
		cur = node.Location.ParentPathNode
	}
	return filepath.Join(append([]string{s.root}, segments...)...), nil
}
