package pipeline

import (
	"fmt"
	"sync"

	"github.com/forgepipe/anvil/pkg/idset"
)

// BuilderRegistry maps an asset schema name to the Builder that targets it.
type BuilderRegistry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

func NewBuilderRegistry() *BuilderRegistry {
	return &BuilderRegistry{builders: make(map[string]Builder)}
}

// Register adds builder under its own SchemaName, rejecting a second
// builder for the same schema.
func (r *BuilderRegistry) Register(builder Builder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := builder.SchemaName()
	if _, exists := r.builders[name]; exists {
		return fmt.Errorf("pipeline: builder already registered for schema %q", name)
	}
	r.builders[name] = builder
	return nil
}

// ForSchema returns the builder registered for schemaName, if any.
func (r *BuilderRegistry) ForSchema(schemaName string) (Builder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.builders[schemaName]
	return b, ok
}

// JobRegistry maps a job type id to its Job implementation.
type JobRegistry struct {
	mu   sync.RWMutex
	jobs map[idset.JobTypeId]Job
}

func NewJobRegistry() *JobRegistry {
	return &JobRegistry{jobs: make(map[idset.JobTypeId]Job)}
}

// Register adds job under its own JobType, rejecting a second job with the
// same type id.
func (r *JobRegistry) Register(job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	jobType := job.JobType()
	if _, exists := r.jobs[jobType]; exists {
		return fmt.Errorf("pipeline: job type %s already registered", jobType)
	}
	r.jobs[jobType] = job
	return nil
}

// ForType returns the job registered for jobType, if any.
func (r *JobRegistry) ForType(jobType idset.JobTypeId) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[jobType]
	return j, ok
}
