package importer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/forgepipe/anvil/pkg/idset"
)

// Registry maps file extensions to importer plug-ins.
type Registry struct {
	mu          sync.RWMutex
	byExtension map[string]Importer
	byID        map[idset.ImporterId]Importer
}

// NewRegistry returns an empty importer registry.
func NewRegistry() *Registry {
	return &Registry{
		byExtension: make(map[string]Importer),
		byID:        make(map[idset.ImporterId]Importer),
	}
}

// Register adds imp, indexed by its declared file extensions and id.
func (r *Registry) Register(imp Importer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[imp.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrImporterExists, imp.ID())
	}
	for _, ext := range imp.FileExtensions() {
		ext = normalizeExt(ext)
		if _, exists := r.byExtension[ext]; exists {
			return fmt.Errorf("%w: extension %q", ErrImporterExists, ext)
		}
	}
	for _, ext := range imp.FileExtensions() {
		r.byExtension[normalizeExt(ext)] = imp
	}
	r.byID[imp.ID()] = imp
	return nil
}

// ForExtension returns the importer registered for a file extension
// (matched case-insensitively, leading dot optional).
func (r *Registry) ForExtension(ext string) (Importer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	imp, ok := r.byExtension[normalizeExt(ext)]
	return imp, ok
}

// ForID returns the importer registered under id.
func (r *Registry) ForID(id idset.ImporterId) (Importer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	imp, ok := r.byID[id]
	return imp, ok
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
