package solidity

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xab-mack/contractscan/internal/cache"
	"github.com/xab-mack/contractscan/internal/model"
)

const cacheTag = "sol-model-v1"

// Loader reads Solidity files and parses them, caching the contract model by
// file content.
type Loader struct {
	store *cache.Store
}

// NewLoader returns a Loader backed by store; store may be nil.
func NewLoader(store *cache.Store) *Loader {
	return &Loader{store: store}
}

func (l *Loader) ParseFile(path string) (*model.ParsedContract, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return l.ParseSource(string(b)), nil
}

func (l *Loader) ParseSource(source string) *model.ParsedContract {
	key := cache.Key(cacheTag, source)
	if b, ok := l.store.Load(key); ok {
		var pc model.ParsedContract
		if err := json.Unmarshal(b, &pc); err == nil && pc.Source == source {
			return &pc
		}
	}
	pc := Parse(source)
	if data, err := json.Marshal(pc); err == nil {
		_ = l.store.Store(key, data)
	}
	return pc
}
