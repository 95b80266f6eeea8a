package metrics

import (
	"time"

	"github.com/forgepipe/anvil/pkg/artifactstore"
	"github.com/forgepipe/anvil/pkg/dataset"
	"github.com/forgepipe/anvil/pkg/periodic"
	"github.com/rs/zerolog"
)

// Collector periodically samples gauge-style metrics off the Data Set and
// artifact store, since those packages have no listener hooks of their own.
type Collector struct {
	data      *dataset.Store
	artifacts *artifactstore.Store
	loop      *periodic.Loop
}

// NewCollector returns a Collector sampling data and artifacts every
// interval.
func NewCollector(data *dataset.Store, artifacts *artifactstore.Store, interval time.Duration, logger zerolog.Logger) *Collector {
	c := &Collector{data: data, artifacts: artifacts}
	c.loop = periodic.New("metrics-collector", interval, c.collect, logger)
	return c
}

// Start begins sampling on its own goroutine.
func (c *Collector) Start() {
	_ = c.loop.RunOnce()
	c.loop.Start()
}

// Stop stops sampling.
func (c *Collector) Stop() {
	c.loop.Stop()
}

func (c *Collector) collect() error {
	AssetsTotal.Set(float64(c.data.Count()))

	count, err := c.artifacts.Count()
	if err != nil {
		return err
	}
	ArtifactsTotal.Set(float64(count))
	return nil
}
