package pipeline

import (
	"fmt"

	"github.com/ShapeChange/ShapeChange-sub001/pkg/config"
	"github.com/ShapeChange/ShapeChange-sub001/pkg/graphcycle"
)

// Root is the index of the input model node in a Plan.
const Root = 0

// Node is one model provider of the process tree: the input model or a
// transformer.
type Node struct {
	ID string
	// Transformer is the zero value for the root node.
	Transformer config.Transformer
	Parent      int
	// Children are the node indices of the transformers fed by this node,
	// in declaration order.
	Children []int
	// Targets are indices into Plan.Targets, in declaration order.
	Targets []int
}

// Plan is the process tree of a configuration stored as an arena.
type Plan struct {
	Nodes   []Node
	Targets []config.Target
	index   map[string]int
}

// BuildPlan arranges the transformers and targets of cfg into a tree rooted
// at the input model. Transformers that cannot be reached from the input,
// for example because their inputs form a cycle, are rejected.
func BuildPlan(cfg *config.Configuration) (*Plan, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: configuration is nil", ErrInvalidPlan)
	}
	if err := checkTransformerInputs(cfg); err != nil {
		return nil, err
	}

	p := &Plan{
		Targets: cfg.Targets,
		index:   map[string]int{},
	}
	p.add(Node{ID: cfg.Input.ID, Parent: -1})

	for queue := []int{Root}; len(queue) > 0; queue = queue[1:] {
		idx := queue[0]
		for _, t := range cfg.TransformersFed(p.Nodes[idx].ID) {
			child := p.add(Node{ID: t.ID, Transformer: t, Parent: idx})
			p.Nodes[idx].Children = append(p.Nodes[idx].Children, child)
			queue = append(queue, child)
		}
	}

	for _, t := range cfg.Transformers {
		if _, ok := p.index[t.ID]; !ok {
			return nil, fmt.Errorf("%w: transformer %s is not reachable from input %s", ErrInvalidPlan, t.ID, cfg.Input.ID)
		}
	}

	for ti, t := range cfg.Targets {
		if len(t.Inputs) == 0 {
			return nil, fmt.Errorf("%w: target %s has no inputs", ErrInvalidPlan, targetLabel(t))
		}
		for _, in := range t.Inputs {
			idx, ok := p.index[in]
			if !ok {
				return nil, fmt.Errorf("%w: target %s references unknown input %s", ErrInvalidPlan, targetLabel(t), in)
			}
			p.Nodes[idx].Targets = appendUnique(p.Nodes[idx].Targets, ti)
		}
	}
	return p, nil
}

func checkTransformerInputs(cfg *config.Configuration) error {
	seen := map[string]bool{cfg.Input.ID: true}
	for _, t := range cfg.Transformers {
		if t.ID == "" {
			return fmt.Errorf("%w: transformer of class %s has no id", ErrInvalidPlan, t.Class)
		}
		if seen[t.ID] {
			return fmt.Errorf("%w: duplicate provider id %s", ErrInvalidPlan, t.ID)
		}
		seen[t.ID] = true
		if t.Input == t.ID {
			return fmt.Errorf("%w: transformer %s uses itself as input", ErrInvalidPlan, t.ID)
		}
	}

	starts := make([]string, 0, len(cfg.Transformers))
	for _, t := range cfg.Transformers {
		starts = append(starts, t.ID)
	}
	err := graphcycle.Detect(starts, func(id string) []string {
		t, ok := cfg.Transformer(id)
		if !ok {
			return nil
		}
		return []string{t.Input}
	})
	if err != nil {
		return fmt.Errorf("%w: transformer inputs: %v", ErrInvalidPlan, err)
	}
	return nil
}

func (p *Plan) add(n Node) int {
	p.Nodes = append(p.Nodes, n)
	idx := len(p.Nodes) - 1
	p.index[n.ID] = idx
	return idx
}

// Node returns the index of the provider with id.
func (p *Plan) Node(id string) (int, bool) {
	idx, ok := p.index[id]
	return idx, ok
}

// TargetsOf returns the targets fed by the node at idx.
func (p *Plan) TargetsOf(idx int) []config.Target {
	out := make([]config.Target, 0, len(p.Nodes[idx].Targets))
	for _, ti := range p.Nodes[idx].Targets {
		out = append(out, p.Targets[ti])
	}
	return out
}

// Walk visits the nodes depth-first in pre-order.
func (p *Plan) Walk(visit func(idx, depth int)) {
	var walk func(idx, depth int)
	walk = func(idx, depth int) {
		visit(idx, depth)
		for _, child := range p.Nodes[idx].Children {
			walk(child, depth+1)
		}
	}
	walk(Root, 0)
}

func targetLabel(t config.Target) string {
	if t.ID != "" {
		return t.ID
	}
	return t.Class
}

func appendUnique(items []int, v int) []int {
	for _, existing := range items {
		if existing == v {
			return items
		}
	}
	return append(items, v)
}
