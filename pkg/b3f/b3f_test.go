package b3f

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	container := Encode([]byte("metadata"), []byte("payload bytes go here"))

	blocks, err := Decode(container)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, []byte("metadata"), blocks[0])
	assert.Equal(t, []byte("payload bytes go here"), blocks[1])
}

func TestEncodeDecodeEmptyBlocks(t *testing.T) {
	container := Encode([]byte{}, []byte("x"))
	blocks, err := Decode(container)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Empty(t, blocks[0])
	assert.Equal(t, []byte("x"), blocks[1])
}

func TestBlockExtractsOne(t *testing.T) {
	container := Encode([]byte("a"), []byte("bb"), []byte("ccc"))
	b, err := Block(container, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("bb"), b)
}

func TestBlockIndexOutOfRange(t *testing.T) {
	container := Encode([]byte("a"))
	_, err := Block(container, 5)
	require.ErrorIs(t, err, ErrBlockIndex)
}

func TestDecodeTruncatedContainer(t *testing.T) {
	_, err := Decode([]byte{0, 0, 0, 1, 0, 0})
	require.Error(t, err)
}
