package idset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsNotNil(t *testing.T) {
	id := New()
	assert.False(t, id.IsNil())
}

func TestHexRoundTrip(t *testing.T) {
	id := New()
	parsed, err := FromHex(id.Hex())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestDefaultArtifactIdIsAssetId(t *testing.T) {
	asset := New()
	assert.Equal(t, ArtifactId(asset), DefaultArtifactId(asset))
}

func TestKeyedArtifactIdIsPure(t *testing.T) {
	asset := New()

	a := KeyedArtifactId(asset, "thumbnail")
	b := KeyedArtifactId(asset, "thumbnail")
	assert.Equal(t, a, b, "equal keys must derive equal artifact ids")

	c := KeyedArtifactId(asset, "preview")
	assert.NotEqual(t, a, c, "different keys must derive different artifact ids")
}

func TestJobIdIsPureOverInput(t *testing.T) {
	jobType := New()
	a := JobId(jobType, []byte("input-1"))
	b := JobId(jobType, []byte("input-1"))
	c := JobId(jobType, []byte("input-2"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestHash64OfNonEmptyInputIsNonZero(t *testing.T) {
	h64 := Hash64([]byte("hello"))
	assert.NotZero(t, h64)
}
