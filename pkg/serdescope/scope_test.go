package serdescope

import (
	"context"
	"testing"

	"github.com/forgepipe/anvil/pkg/idset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRecorder struct {
	seen []idset.ArtifactId
}

func (r *recordingRecorder) RecordDependency(id idset.ArtifactId) {
	r.seen = append(r.seen, id)
}

type fixedResolver struct {
	id     idset.ArtifactId
	handle any
	err    error
}

func (f *fixedResolver) LoadHandle(id idset.ArtifactId) (any, error) {
	if id != f.id {
		return nil, errNotExpected
	}
	return f.handle, f.err
}

var errNotExpected = assertUnreachableErr{}

type assertUnreachableErr struct{}

func (assertUnreachableErr) Error() string { return "serdescope: unexpected id" }

func TestEncodeHandleRefRecordsDependency(t *testing.T) {
	rec := &recordingRecorder{}
	scope := NewBuildScope(rec)

	id := idset.New()
	raw := scope.EncodeHandleRef(id)

	require.Len(t, raw, 16)
	assert.Equal(t, id[:], raw)
	require.Len(t, rec.seen, 1)
	assert.Equal(t, id, rec.seen[0])
}

func TestEncodeHandleRefWithoutRecorderStillEncodes(t *testing.T) {
	scope := NewBuildScope(nil)
	id := idset.New()
	raw := scope.EncodeHandleRef(id)
	assert.Equal(t, id[:], raw)
}

func TestDecodeHandleRefResolvesThroughLoader(t *testing.T) {
	id := idset.New()
	resolver := &fixedResolver{id: id, handle: "a-handle"}
	scope := NewLoadScope(resolver)

	got, err := scope.DecodeHandleRef(id[:])
	require.NoError(t, err)
	assert.Equal(t, "a-handle", got)
}

func TestDecodeHandleRefWithoutScopeIsFatal(t *testing.T) {
	var scope *Scope
	_, err := scope.DecodeHandleRef(make([]byte, 16))
	assert.ErrorIs(t, err, ErrNoActiveScope)
}

func TestDecodeHandleRefRejectsWrongLength(t *testing.T) {
	scope := NewLoadScope(&fixedResolver{})
	_, err := scope.DecodeHandleRef([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestContextRoundTrip(t *testing.T) {
	scope := NewBuildScope(&recordingRecorder{})
	ctx := WithScope(context.Background(), scope)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, scope, got)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}
