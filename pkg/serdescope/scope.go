// Package serdescope implements the Serde Scope Context: the mediator that
// lets serialization of embedded handles consult the active Loader. Go has
// no implicit thread-locals, so the scope is carried explicitly — through a
// context.Context value during loading, and as an explicit parameter
// wherever a builder or job serializes artifact payloads during a build.
package serdescope

import (
	"context"
	"errors"
	"fmt"

	"github.com/forgepipe/anvil/pkg/idset"
)

// ErrNoActiveScope is returned when a handle reference is encountered
// during deserialization with no active Scope: an absent scope is treated
// as a fatal deserialization error rather than silently dropping the
// reference.
var ErrNoActiveScope = errors.New("serdescope: no active scope")

// DependencyRecorder is notified of every artifact id referenced by a
// handle encoded while a build-time Scope is active, so RunContext can
// collect embedded handle dependencies as a side effect of encoding.
type DependencyRecorder interface {
	RecordDependency(id idset.ArtifactId)
}

// HandleResolver is the loader-side half of the scope: decoding a handle
// reference calls LoadHandle on the active Loader. The
// returned value is opaque here (an any) so this package does not import
// pkg/loader; callers type-assert it back to *loader.Handle.
type HandleResolver interface {
	LoadHandle(id idset.ArtifactId) (any, error)
}

// Scope carries whichever of {DependencyRecorder, HandleResolver} is active
// for the current serialization or deserialization pass. A build-time
// scope has only a recorder; a load-time scope has only a resolver.
type Scope struct {
	recorder DependencyRecorder
	resolver HandleResolver
}

// NewBuildScope returns a scope for encoding artifact payloads during a
// build: every handle reference encoded is recorded as a dependency.
func NewBuildScope(recorder DependencyRecorder) *Scope {
	return &Scope{recorder: recorder}
}

// NewLoadScope returns a scope for decoding artifact payloads at load time:
// every handle reference decoded resolves through the Loader.
func NewLoadScope(resolver HandleResolver) *Scope {
	return &Scope{resolver: resolver}
}

// EncodeHandleRef renders artifactID as its 16 raw id bytes, recording it
// as a dependency if a recorder is active.
func (s *Scope) EncodeHandleRef(artifactID idset.ArtifactId) []byte {
	if s != nil && s.recorder != nil {
		s.recorder.RecordDependency(artifactID)
	}
	out := make([]byte, 16)
	copy(out, artifactID[:])
	return out
}

// DecodeHandleRef turns 16 raw bytes back into a live handle by asking the
// active Loader (via HandleResolver) to load it.
func (s *Scope) DecodeHandleRef(raw []byte) (any, error) {
	if s == nil || s.resolver == nil {
		return nil, ErrNoActiveScope
	}
	if len(raw) != 16 {
		return nil, fmt.Errorf("serdescope: handle reference must be 16 bytes, got %d", len(raw))
	}
	var id idset.ID
	copy(id[:], raw)
	return s.resolver.LoadHandle(id)
}

type scopeContextKey struct{}

// WithScope installs scope into ctx, for the span of a single
// deserialization call.
func WithScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, scope)
}

// FromContext retrieves the active Scope installed by WithScope.
func FromContext(ctx context.Context) (*Scope, bool) {
	scope, ok := ctx.Value(scopeContextKey{}).(*Scope)
	return scope, ok
}
