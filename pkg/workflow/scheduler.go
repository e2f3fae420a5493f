package workflow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tombee/quill/pkg/errors"
	"github.com/tombee/quill/pkg/model"
)

// Scheduler decides the order in which a workflow's steps run.
// Implementations must not modify the input slice.
type Scheduler interface {
	Schedule(steps []model.Step) ([]model.Step, error)
}

// OrderScheduler runs steps in ascending metadata order. Steps with equal
// order keep their declaration order.
type OrderScheduler struct{}

// Schedule implements Scheduler.
func (OrderScheduler) Schedule(steps []model.Step) ([]model.Step, error) {
	ordered := make([]model.Step, len(steps))
	copy(ordered, steps)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Metadata.Order < ordered[j].Metadata.Order
	})
	return ordered, nil
}

// GraphScheduler orders steps topologically using dependsOn and nextSteps
// edges. Among steps that are ready at the same time, the lower metadata
// order runs first, then declaration order. Unknown references and cycles
// are rejected before anything runs.
type GraphScheduler struct{}

// Schedule implements Scheduler.
func (GraphScheduler) Schedule(steps []model.Step) ([]model.Step, error) {
	index := make(map[string]int, len(steps))
	for i, s := range steps {
		if _, dup := index[s.ID]; dup {
			return nil, &errors.ValidationError{
				Field:   "steps",
				Message: fmt.Sprintf("duplicate step id: %s", s.ID),
			}
		}
		index[s.ID] = i
	}

	// edges[i] lists steps that must wait for step i.
	edges := make([][]int, len(steps))
	indegree := make([]int, len(steps))
	var unknown []string

	addEdge := func(from, to int) {
		edges[from] = append(edges[from], to)
		indegree[to]++
	}

	for i, s := range steps {
		for _, dep := range s.DependsOn {
			j, ok := index[dep]
			if !ok {
				unknown = append(unknown, fmt.Sprintf("%s dependsOn %s", s.ID, dep))
				continue
			}
			addEdge(j, i)
		}
		for _, next := range s.NextSteps {
			j, ok := index[next]
			if !ok {
				unknown = append(unknown, fmt.Sprintf("%s nextSteps %s", s.ID, next))
				continue
			}
			addEdge(i, j)
		}
	}

	if len(unknown) > 0 {
		return nil, &errors.ValidationError{
			Field:      "steps",
			Message:    "unknown step reference(s): " + strings.Join(unknown, ", "),
			Suggestion: "dependsOn and nextSteps must name step ids declared in the same workflow",
		}
	}

	less := func(a, b int) bool {
		if steps[a].Metadata.Order != steps[b].Metadata.Order {
			return steps[a].Metadata.Order < steps[b].Metadata.Order
		}
		return a < b
	}

	var ready []int
	for i := range steps {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	ordered := make([]model.Step, 0, len(steps))
	for len(ready) > 0 {
		sort.Slice(ready, func(x, y int) bool { return less(ready[x], ready[y]) })
		next := ready[0]
		ready = ready[1:]
		ordered = append(ordered, steps[next])

		for _, to := range edges[next] {
			indegree[to]--
			if indegree[to] == 0 {
				ready = append(ready, to)
			}
		}
	}

	if len(ordered) != len(steps) {
		var stuck []string
		for i, s := range steps {
			if indegree[i] > 0 {
				stuck = append(stuck, s.ID)
			}
		}
		return nil, &errors.ValidationError{
			Field:   "steps",
			Message: "dependency cycle among steps: " + strings.Join(stuck, ", "),
		}
	}

	return ordered, nil
}
