package graphcycle

import "fmt"

type visitState uint8

const (
	stateVisiting visitState = iota + 1
	stateDone
)

// CycleError reports the node at which a cycle was closed.
type CycleError[K comparable] struct {
	Key  K
	Path []K
}

// Error returns the error string.
func (e CycleError[K]) Error() string {
	return fmt.Sprintf("cycle detected at %v (path %v)", e.Key, e.Path)
}

// Detect walks the directed edges returned by next from every start node and
// reports the first cycle found. Nodes without outgoing edges end a path.
func Detect[K comparable](starts []K, next func(K) []K) error {
	if next == nil {
		return fmt.Errorf("cycle detect: next function is nil")
	}
	states := make(map[K]visitState, len(starts))
	var path []K

	var visit func(key K) error
	visit = func(key K) error {
		switch states[key] {
		case stateVisiting:
			return CycleError[K]{Key: key, Path: append(append([]K(nil), path...), key)}
		case stateDone:
			return nil
		}
		states[key] = stateVisiting
		path = append(path, key)
		for _, n := range next(key) {
			if err := visit(n); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		states[key] = stateDone
		return nil
	}

	for _, start := range starts {
		if err := visit(start); err != nil {
			return err
		}
	}
	return nil
}
