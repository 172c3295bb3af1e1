package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShapeChange/ShapeChange-sub001/pkg/config"
)

func TestBuildPlanArrangesTree(t *testing.T) {
	cfg := &config.Configuration{
		Input: config.Input{ID: "INPUT"},
		Transformers: []config.Transformer{
			transformer("T2", "T1", config.ModeEnabled, nil),
			transformer("T1", "INPUT", config.ModeEnabled, nil),
			transformer("T3", "INPUT", config.ModeDisabled, nil),
		},
		Targets: []config.Target{
			target("a", "listing", "INPUT", "T2"),
			target("b", "listing", "T1", "T1"),
		},
	}

	p, err := BuildPlan(cfg)
	require.NoError(t, err)

	var order []string
	p.Walk(func(idx, depth int) {
		order = append(order, p.Nodes[idx].ID)
	})
	assert.Equal(t, []string{"INPUT", "T1", "T2", "T3"}, order)

	t1, ok := p.Node("T1")
	require.True(t, ok)
	assert.Equal(t, Root, p.Nodes[t1].Parent)
	assert.Len(t, p.TargetsOf(t1), 1, "duplicate inputs bind a target once")
	assert.Equal(t, "a", p.TargetsOf(Root)[0].ID)

	t2, _ := p.Node("T2")
	assert.Equal(t, "a", p.TargetsOf(t2)[0].ID)
}

func TestBuildPlanRejectsInvalidTrees(t *testing.T) {
	cases := map[string]*config.Configuration{
		"self input": {
			Input:        config.Input{ID: "INPUT"},
			Transformers: []config.Transformer{transformer("T1", "T1", config.ModeEnabled, nil)},
		},
		"input cycle": {
			Input: config.Input{ID: "INPUT"},
			Transformers: []config.Transformer{
				transformer("T1", "T2", config.ModeEnabled, nil),
				transformer("T2", "T1", config.ModeEnabled, nil),
			},
		},
		"unknown transformer input": {
			Input:        config.Input{ID: "INPUT"},
			Transformers: []config.Transformer{transformer("T1", "NOPE", config.ModeEnabled, nil)},
		},
		"duplicate id": {
			Input: config.Input{ID: "INPUT"},
			Transformers: []config.Transformer{
				transformer("T1", "INPUT", config.ModeEnabled, nil),
				transformer("T1", "INPUT", config.ModeEnabled, nil),
			},
		},
		"target without inputs": {
			Input:   config.Input{ID: "INPUT"},
			Targets: []config.Target{target("a", "listing")},
		},
		"unknown target input": {
			Input:   config.Input{ID: "INPUT"},
			Targets: []config.Target{target("a", "listing", "T9")},
		},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := BuildPlan(cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidPlan))
		})
	}
}
