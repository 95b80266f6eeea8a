package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetDelete(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put("jobs", "a", []byte("1")))
	v, err := s.Get("jobs", "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)

	require.NoError(t, s.Delete("jobs", "a"))
	_, err = s.Get("jobs", "a")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetMissingBucket(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Get("missing", "a")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestForEach(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put("jobs", "a", []byte("1")))
	require.NoError(t, s.Put("jobs", "b", []byte("2")))

	seen := map[string]string{}
	require.NoError(t, s.ForEach("jobs", func(k, v []byte) error {
		seen[string(k)] = string(v)
		return nil
	}))
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, seen)
}
