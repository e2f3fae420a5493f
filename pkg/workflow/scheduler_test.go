package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/quill/pkg/model"
)

func ids(steps []model.Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.ID
	}
	return out
}

func TestOrderScheduler(t *testing.T) {
	steps := []model.Step{step("c", 3, ""), step("a", 1, ""), step("b1", 2, ""), step("b2", 2, "")}

	got, err := OrderScheduler{}.Schedule(steps)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b1", "b2", "c"}, ids(got))
	assert.Equal(t, "c", steps[0].ID, "input must not be reordered")
}

func TestGraphScheduler(t *testing.T) {
	tests := []struct {
		name    string
		steps   func() []model.Step
		want    []string
		wantErr string
	}{
		{
			name: "dependsOn overrides order",
			steps: func() []model.Step {
				a := step("a", 1, "")
				a.DependsOn = []string{"b"}
				return []model.Step{a, step("b", 2, "")}
			},
			want: []string{"b", "a"},
		},
		{
			name: "nextSteps edge",
			steps: func() []model.Step {
				x := step("x", 5, "")
				x.NextSteps = []string{"y"}
				return []model.Step{step("y", 1, ""), x}
			},
			want: []string{"x", "y"},
		},
		{
			name: "independent steps use order then declaration",
			steps: func() []model.Step {
				return []model.Step{step("p", 2, ""), step("q", 1, ""), step("r", 1, "")}
			},
			want: []string{"q", "r", "p"},
		},
		{
			name: "diamond",
			steps: func() []model.Step {
				b := step("b", 0, "")
				b.DependsOn = []string{"a"}
				c := step("c", 0, "")
				c.DependsOn = []string{"a"}
				d := step("d", 0, "")
				d.DependsOn = []string{"b", "c"}
				return []model.Step{d, c, b, step("a", 0, "")}
			},
			want: []string{"a", "c", "b", "d"},
		},
		{
			name: "unknown reference",
			steps: func() []model.Step {
				a := step("a", 1, "")
				a.DependsOn = []string{"ghost"}
				return []model.Step{a}
			},
			wantErr: "unknown step reference(s): a dependsOn ghost",
		},
		{
			name: "duplicate id",
			steps: func() []model.Step {
				return []model.Step{step("a", 1, ""), step("a", 2, "")}
			},
			wantErr: "duplicate step id: a",
		},
		{
			name: "cycle",
			steps: func() []model.Step {
				a := step("a", 1, "")
				a.NextSteps = []string{"b"}
				b := step("b", 2, "")
				b.NextSteps = []string{"a"}
				return []model.Step{a, b, step("free", 0, "")}
			},
			wantErr: "dependency cycle among steps: a, b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GraphScheduler{}.Schedule(tt.steps())
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestActionRegistry(t *testing.T) {
	r := NewActionRegistry()
	noop := func(context.Context, map[string]any, map[string]any) (map[string]any, error) { return nil, nil }

	require.NoError(t, r.Register("b", noop))
	require.NoError(t, r.Register("a", noop))

	assert.ErrorContains(t, r.Register("a", noop), "already registered")
	assert.Error(t, r.Register("", noop))
	assert.Error(t, r.Register("c", nil))
	assert.Equal(t, []string{"a", "b"}, r.Names())

	_, ok := r.Get("a")
	assert.True(t, ok)

	r.Unregister("a")
	_, ok = r.Get("a")
	assert.False(t, ok)

	assert.Panics(t, func() { r.MustRegister("b", noop) })
}
