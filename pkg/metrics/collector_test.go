package metrics

import (
	"testing"
	"time"

	"github.com/forgepipe/anvil/pkg/artifactstore"
	"github.com/forgepipe/anvil/pkg/dataset"
	"github.com/forgepipe/anvil/pkg/idset"
	"github.com/forgepipe/anvil/pkg/schema"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorSamplesCounts(t *testing.T) {
	schemaSet := schema.NewSet()
	nt, err := schemaSet.AddRecord("Widget", []schema.Field{{Name: "x", Type: schema.I32}})
	require.NoError(t, err)

	data := dataset.NewStore(schemaSet)
	_, err = data.CreateAsset(nt.Fingerprint, idset.Nil, "w", dataset.Location{})
	require.NoError(t, err)

	artifacts, err := artifactstore.Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, artifacts.Put(idset.New(), artifactstore.Metadata{}, []byte("x")))

	c := NewCollector(data, artifacts, time.Hour, zerolog.Nop())
	require.NoError(t, c.collect())

	assert.Equal(t, float64(1), testutil.ToFloat64(AssetsTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(ArtifactsTotal))
}
