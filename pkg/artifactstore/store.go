// Package artifactstore implements the on-disk content-addressed artifact
// directory: one file per artifact id, a small metadata header followed by
// an opaque payload, written atomically.
package artifactstore

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/forgepipe/anvil/pkg/b3f"
	"github.com/forgepipe/anvil/pkg/idset"
)

// Metadata is the small header stored alongside every artifact's payload:
// the artifact ids it depends on and the asset type it was built for.
type Metadata struct {
	Dependencies []idset.ArtifactId
	AssetType    idset.AssetTypeId
}

// Store is a content-addressed directory of artifacts keyed by artifact id.
type Store struct {
	root string
}

// Open returns a Store rooted at root, creating the directory if needed.
func Open(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("artifactstore: creating root: %w", err)
	}
	return &Store{root: root}, nil
}

func (s *Store) path(id idset.ArtifactId) string {
	return filepath.Join(s.root, id.Hex()+".bf")
}

// Put writes an artifact's metadata and payload atomically (temp file +
// rename), so a build always updates an entry in one visible step.
func (s *Store) Put(id idset.ArtifactId, meta Metadata, payload []byte) error {
	var metaBuf bytes.Buffer
	if err := gob.NewEncoder(&metaBuf).Encode(meta); err != nil {
		return fmt.Errorf("artifactstore: encoding metadata for %s: %w", id, err)
	}
	container := b3f.Encode(metaBuf.Bytes(), payload)

	dst := s.path(id)
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, container, 0o644); err != nil {
		return fmt.Errorf("artifactstore: writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("artifactstore: renaming %s into place: %w", dst, err)
	}
	return nil
}

// Get reads an artifact's metadata and payload.
func (s *Store) Get(id idset.ArtifactId) (Metadata, []byte, error) {
	raw, err := os.ReadFile(s.path(id))
	if err != nil {
		return Metadata{}, nil, err
	}
	blocks, err := b3f.Decode(raw)
	if err != nil {
		return Metadata{}, nil, fmt.Errorf("artifactstore: decoding %s: %w", id, err)
	}
	if len(blocks) != 2 {
		return Metadata{}, nil, fmt.Errorf("artifactstore: %s has %d blocks, want 2", id, len(blocks))
	}
	var meta Metadata
	if err := gob.NewDecoder(bytes.NewReader(blocks[0])).Decode(&meta); err != nil {
		return Metadata{}, nil, fmt.Errorf("artifactstore: decoding metadata for %s: %w", id, err)
	}
	return meta, blocks[1], nil
}

// Exists reports whether an artifact is present.
func (s *Store) Exists(id idset.ArtifactId) bool {
	_, err := os.Stat(s.path(id))
	return err == nil
}

// Delete removes an artifact explicitly; nothing removes an artifact file
// as a side effect of another operation.
func (s *Store) Delete(id idset.ArtifactId) error {
	err := os.Remove(s.path(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("artifactstore: deleting %s: %w", id, err)
	}
	return nil
}

// Count returns the number of artifacts currently on disk.
func (s *Store) Count() (int, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return 0, fmt.Errorf("artifactstore: reading %s: %w", s.root, err)
	}
	n := 0
	for _, entry := range entries {
		if _, ok := trimBfExt(entry.Name()); ok {
			n++
		}
	}
	return n, nil
}

// Sweep removes every artifact on disk whose id is not in live, and returns
// the count removed. Callers run this as an opt-in orphan sweep, typically
// at session end, rather than on every write.
func (s *Store) Sweep(live []idset.ArtifactId) (int, error) {
	keep := make(map[idset.ArtifactId]bool, len(live))
	for _, id := range live {
		keep[id] = true
	}

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return 0, fmt.Errorf("artifactstore: reading %s: %w", s.root, err)
	}

	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		hex, ok := trimBfExt(name)
		if !ok {
			continue
		}
		id, err := idset.FromHex(hex)
		if err != nil {
			continue
		}
		if keep[id] {
			continue
		}
		if err := os.Remove(filepath.Join(s.root, name)); err != nil {
			return removed, fmt.Errorf("artifactstore: removing orphan %s: %w", name, err)
		}
		removed++
	}
	return removed, nil
}

func trimBfExt(name string) (string, bool) {
	const ext = ".bf"
	if len(name) <= len(ext) || name[len(name)-len(ext):] != ext {
		return "", false
	}
	return name[:len(name)-len(ext)], true
}
