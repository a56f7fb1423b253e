package routing

// invalidationIndex maps dependency names (projects and capabilities)
// to the cache keys that referenced them. The cache owns the index and
// mutates it under its own lock.
type invalidationIndex struct {
	byDependency map[string]map[string]struct{}
}

func newInvalidationIndex() *invalidationIndex {
	return &invalidationIndex{
		byDependency: make(map[string]map[string]struct{}),
	}
}

func (idx *invalidationIndex) register(key string, deps map[string]struct{}) {
	for dep := range deps {
		keys, exists := idx.byDependency[dep]
		if !exists {
			keys = make(map[string]struct{})
			idx.byDependency[dep] = keys
		}
		keys[key] = struct{}{}
	}
}

func (idx *invalidationIndex) unregister(key string, deps map[string]struct{}) {
	for dep := range deps {
		if keys, exists := idx.byDependency[dep]; exists {
			delete(keys, key)
			if len(keys) == 0 {
				delete(idx.byDependency, dep)
			}
		}
	}
}

func (idx *invalidationIndex) keysFor(dep string) []string {
	keys := make([]string, 0, len(idx.byDependency[dep]))
	for key := range idx.byDependency[dep] {
		keys = append(keys, key)
	}
	return keys
}
