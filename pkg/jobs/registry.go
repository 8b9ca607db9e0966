package jobs

import (
	"fmt"
	"slices"

	"github.com/nemanja-m/diskmr/pkg/combine"
	"github.com/nemanja-m/diskmr/pkg/core"
)

// Job bundles the routines of a named job. Params are the job's default
// parameters; callers may override them per run.
type Job struct {
	Description string
	Setup       core.SetupFunc
	Map         core.MapFunc
	Reduce      *combine.Combiner
	Params      core.Params
}

var registry = make(map[string]Job)

func Register(name string, job Job) error {
	if _, exists := registry[name]; exists {
		return fmt.Errorf("job already registered: %s", name)
	}
	if job.Map == nil {
		return fmt.Errorf("job %s has no map function", name)
	}
	registry[name] = job
	return nil
}

func Get(name string) (Job, error) {
	job, exists := registry[name]
	if !exists {
		return Job{}, fmt.Errorf("job not found: %s", name)
	}
	return job, nil
}

func List() []string {
	var names []string
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
