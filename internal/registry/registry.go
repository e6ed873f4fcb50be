// Package registry maps task names to Task implementations. The set of
// tasks is closed and built once at startup; lookups are read-only after
// that.
package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/scrapekit/browserjobs/internal/scrape"
)

// Registry is a pure lookup table from task name to implementation.
type Registry struct {
	tasks map[string]scrape.Task
}

// New builds a registry from the given tasks. Duplicate names are a
// programming error and fail construction.
func New(tasks ...scrape.Task) (*Registry, error) {
	r := &Registry{tasks: make(map[string]scrape.Task, len(tasks))}
	for _, t := range tasks {
		name := Normalise(t.Name())
		if _, exists := r.tasks[name]; exists {
			return nil, fmt.Errorf("duplicate task name %q", name)
		}
		r.tasks[name] = t
	}
	return r, nil
}

// Resolve returns the task registered for name, after normalisation.
func (r *Registry) Resolve(name string) (scrape.Task, error) {
	task, ok := r.tasks[Normalise(name)]
	if !ok {
		return nil, fmt.Errorf("task %q: %w", name, scrape.ErrUnknownTask)
	}
	return task, nil
}

// Names returns the registered task names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Normalise canonicalises a task name: lowercase, underscores folded to
// hyphens. Clients historically used both "booking_hotels" and
// "booking-hotels".
func Normalise(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
}
