package graphcycle

import (
	"errors"
	"testing"
)

func TestDetectCycle(t *testing.T) {
	graph := map[string][]string{
		"a": {"b"},
		"b": {"c"},
		"c": {"a"},
	}
	err := Detect([]string{"a"}, func(n string) []string { return graph[n] })
	if err == nil {
		t.Fatalf("Detect() expected cycle error")
	}
	var cycle CycleError[string]
	if !errors.As(err, &cycle) {
		t.Fatalf("Detect() error = %T, want CycleError[string]", err)
	}
	if cycle.Key != "a" {
		t.Fatalf("expected cycle closed at a, got %q", cycle.Key)
	}
	if len(cycle.Path) != 4 {
		t.Fatalf("expected path a->b->c->a, got %v", cycle.Path)
	}
}

func TestDetectAcyclic(t *testing.T) {
	graph := map[int][]int{1: {2, 3}, 2: {3}, 3: nil}
	if err := Detect([]int{1, 2}, func(n int) []int { return graph[n] }); err != nil {
		t.Fatalf("Detect() unexpected error: %v", err)
	}
}

func TestDetectSelfLoop(t *testing.T) {
	err := Detect([]int{7}, func(n int) []int { return []int{n} })
	if err == nil {
		t.Fatalf("expected self loop to be reported")
	}
}

func TestDetectNilNext(t *testing.T) {
	if err := Detect[int]([]int{1}, nil); err == nil {
		t.Fatalf("expected error for nil next function")
	}
}
