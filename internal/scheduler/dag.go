package scheduler

import (
	"sort"

	"github.com/gammazero/toposort"
)

// Batch is one scheduling wave: every task in batch k has all of its
// dependencies in batches 0..k-1. Batches are an ephemeral artifact of
// resolution, not persisted.
type Batch []*Task

// graph is the validated dependency index built by Resolve.
type graph struct {
	tasks      map[string]*Task
	order      []string            // input order, for deterministic iteration
	dependents map[string][]string // taskID -> tasks that depend on it
}

// Resolve validates a task set and partitions it into an ordered sequence
// of batches. This is the fail-fast gate: any configuration problem
// (duplicate id, unknown or self dependency, cycle) is reported before a
// single task runs, aggregated so a caller sees every offending task at once.
//
// An empty task set resolves to zero batches without error.
func Resolve(tasks []*Task) ([]Batch, error) {
	if len(tasks) == 0 {
		return nil, nil
	}

	g, err := buildGraph(tasks)
	if err != nil {
		return nil, err
	}

	if err := g.checkAcyclic(); err != nil {
		return nil, err
	}

	return g.partition()
}

// buildGraph indexes tasks by id and validates references. All problems
// are collected into a single ValidationError.
func buildGraph(tasks []*Task) (*graph, error) {
	g := &graph{
		tasks:      make(map[string]*Task, len(tasks)),
		dependents: make(map[string][]string),
	}

	var issues []Issue
	for _, t := range tasks {
		if t.ID == "" {
			issues = append(issues, Issue{TaskID: t.ID, Err: ErrEmptyID})
			continue
		}
		if _, exists := g.tasks[t.ID]; exists {
			issues = append(issues, Issue{TaskID: t.ID, Err: ErrDuplicateID})
			continue
		}
		g.tasks[t.ID] = t.Clone()
		g.order = append(g.order, t.ID)
	}

	for _, id := range g.order {
		t := g.tasks[id]
		for _, depID := range t.DependsOn {
			if depID == t.ID {
				issues = append(issues, Issue{TaskID: t.ID, Err: ErrCycle, Detail: "depends on itself"})
				continue
			}
			if _, exists := g.tasks[depID]; !exists {
				issues = append(issues, Issue{TaskID: t.ID, Err: ErrUnknownDep, Detail: "missing " + depID})
				continue
			}
			g.dependents[depID] = append(g.dependents[depID], t.ID)
		}
	}

	if len(issues) > 0 {
		return nil, &ValidationError{Issues: issues}
	}
	return g, nil
}

// checkAcyclic runs a topological sort over the dependency edges.
// On failure it names the cycle participants: exactly the tasks that the
// leveling pass cannot place in any batch.
func (g *graph) checkAcyclic() error {
	var edges []toposort.Edge
	for _, id := range g.order {
		t := g.tasks[id]
		if len(t.DependsOn) == 0 {
			// No incoming edge; anchor so the sort still includes it.
			edges = append(edges, toposort.Edge{nil, id})
			continue
		}
		for _, depID := range t.DependsOn {
			edges = append(edges, toposort.Edge{depID, id})
		}
	}

	if _, err := toposort.Toposort(edges); err != nil {
		return &CycleError{Remaining: g.unleveled()}
	}
	return nil
}

// partition implements the leveling pass: batch k collects every task
// whose dependencies all lie in batches < k. A pass that places nothing
// while tasks remain means a cycle; checkAcyclic makes that unreachable,
// but the guard stays so partition never loops forever on a bad graph.
func (g *graph) partition() ([]Batch, error) {
	placed := make(map[string]bool, len(g.tasks))
	var batches []Batch

	for len(placed) < len(g.tasks) {
		var batch Batch
		for _, id := range g.order {
			if placed[id] {
				continue
			}
			t := g.tasks[id]
			ready := true
			for _, depID := range t.DependsOn {
				if !placed[depID] {
					ready = false
					break
				}
			}
			if ready {
				batch = append(batch, t)
			}
		}

		if len(batch) == 0 {
			return nil, &CycleError{Remaining: g.remaining(placed)}
		}

		// Advisory ordering only: priority never moves a task across batches.
		sort.SliceStable(batch, func(i, j int) bool {
			if batch[i].Priority != batch[j].Priority {
				return batch[i].Priority > batch[j].Priority
			}
			return batch[i].ID < batch[j].ID
		})

		for _, t := range batch {
			placed[t.ID] = true
		}
		batches = append(batches, batch)
	}

	return batches, nil
}

// unleveled returns the ids that the leveling pass cannot place,
// i.e. the cycle participants and everything downstream of them.
func (g *graph) unleveled() []string {
	placed := make(map[string]bool, len(g.tasks))
	for {
		progressed := false
		for _, id := range g.order {
			if placed[id] {
				continue
			}
			ready := true
			for _, depID := range g.tasks[id].DependsOn {
				if !placed[depID] {
					ready = false
					break
				}
			}
			if ready {
				placed[id] = true
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
	return g.remaining(placed)
}

func (g *graph) remaining(placed map[string]bool) []string {
	var out []string
	for _, id := range g.order {
		if !placed[id] {
			out = append(out, id)
		}
	}
	return out
}
