package assetstorage

import (
	"errors"
	"testing"
	"time"

	"github.com/forgepipe/anvil/pkg/artifactstore"
	"github.com/forgepipe/anvil/pkg/events"
	"github.com/forgepipe/anvil/pkg/idset"
	"github.com/forgepipe/anvil/pkg/loader"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeString(payload []byte) (string, error) {
	if len(payload) == 0 {
		return "", errors.New("empty payload")
	}
	return string(payload), nil
}

func waitForCommitted(t *testing.T, l *loader.Loader, id idset.ArtifactId) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if l.State(id) == loader.Committed {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("artifact %s never committed", id)
}

func TestRegistryDrivenByLoaderCommitsTypedValue(t *testing.T) {
	s := NewTypedStore(decodeString)
	reg := NewRegistry()
	assetType := idset.New()
	Register(reg, assetType, s)

	artifacts, err := artifactstore.Open(t.TempDir())
	require.NoError(t, err)

	id := idset.New()
	require.NoError(t, artifacts.Put(id, artifactstore.Metadata{AssetType: assetType}, []byte("hello")))

	l := loader.New(artifacts, reg, events.NewBroker(), zerolog.Nop())
	defer l.Close()

	l.AddRef(id, loader.Strong)
	waitForCommitted(t, l, id)

	value, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, "hello", value)
}

func TestRegistryUnknownAssetTypeErrors(t *testing.T) {
	reg := NewRegistry()
	err := reg.CommitAssetVersion(idset.New(), idset.New(), 1)
	assert.Error(t, err)
}

func TestTypedStoreFreeClearsValue(t *testing.T) {
	s := NewTypedStore(decodeString)
	reg := NewRegistry()
	assetType := idset.New()
	Register(reg, assetType, s)

	artifacts, err := artifactstore.Open(t.TempDir())
	require.NoError(t, err)

	id := idset.New()
	require.NoError(t, artifacts.Put(id, artifactstore.Metadata{AssetType: assetType}, []byte("hello")))

	l := loader.New(artifacts, reg, events.NewBroker(), zerolog.Nop())
	defer l.Close()

	h := l.AddRef(id, loader.Strong)
	waitForCommitted(t, l, id)

	h.Drop()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := s.Get(id); !ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("freed value still visible")
}
