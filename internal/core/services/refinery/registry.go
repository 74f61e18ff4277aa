package refinery

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a refinery from optional overrides
type Factory func(overrides map[string]interface{}) BaseRefinery

var (
	registryMu sync.RWMutex
	factories  = map[string]Factory{}
	aliases    = map[string]string{}
)

// Register makes a refinery available under id and any aliases
func Register(id string, factory Factory, alias ...string) {
	registryMu.Lock()
	defer registryMu.Unlock()

	factories[id] = factory
	for _, a := range alias {
		aliases[a] = id
	}
}

// Create builds the refinery registered under id or one of its aliases
func Create(id string, overrides map[string]interface{}) (BaseRefinery, error) {
	registryMu.RLock()
	if target, ok := aliases[id]; ok {
		id = target
	}
	factory, ok := factories[id]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("refinery %q not found", id)
	}
	return factory(overrides), nil
}

// Available lists registered refinery ids in order
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	ids := make([]string, 0, len(factories))
	for id := range factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func init() {
	Register("review-text", func(o map[string]interface{}) BaseRefinery { return NewReviewTextRefinery(o) }, "content", "llm")
	Register("keyword", func(o map[string]interface{}) BaseRefinery { return NewKeywordRefinery(o) }, "normalized")
}
