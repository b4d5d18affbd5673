package wikitrivia

import (
	"context"
	"log"
	"sync"
)

// EntityPool maintains the working set of knowledge-graph entities for
// one category. Entities are fetched in batches and consumed in order;
// already-fetched entities stay available as distractor material even
// after being consumed.
type EntityPool struct {
	client     GraphClient
	entityType string
	languages  []string
	batchSize  int
	maxGrowths int

	mu       sync.Mutex
	entities []Entity
	cursor   int
	growths  int
	offset   int
	seen     map[string]bool
}

// NewEntityPool creates an empty pool for one category. The first call to
// Grow performs the initial fetch.
func NewEntityPool(client GraphClient, entityType string, languages []string, batchSize, maxGrowths int) *EntityPool {
	return &EntityPool{
		client:     client,
		entityType: entityType,
		languages:  languages,
		batchSize:  batchSize,
		maxGrowths: maxGrowths,
		seen:       make(map[string]bool),
	}
}

// Next returns the next unconsumed entity, or false when the pool is
// momentarily empty and needs to be grown.
func (p *EntityPool) Next() (Entity, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cursor >= len(p.entities) {
		return Entity{}, false
	}
	entity := p.entities[p.cursor]
	p.cursor++
	return entity, true
}

// Grow fetches another batch of entities from the knowledge graph.
// Returns false once the growth cap is reached or a fetch yields nothing
// new, which declares the pool exhausted. Graph errors degrade to an
// empty fetch: a missing external answer is not category-fatal.
func (p *EntityPool) Grow(ctx context.Context) bool {
	p.mu.Lock()
	if p.growths >= p.maxGrowths {
		p.mu.Unlock()
		return false
	}
	p.growths++
	offset := p.offset
	p.offset += p.batchSize
	p.mu.Unlock()

	fetched, err := p.client.EntitiesByType(ctx, p.entityType, p.batchSize, offset, p.languages)
	if err != nil {
		log.Printf("Entity fetch failed for type %s: %v", p.entityType, err)
		fetched = nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	added := 0
	for _, entity := range fetched {
		// Entities with no human label are unusable: the label service
		// echoes the bare id back when nothing better exists.
		if entity.Label == "" || entity.Label == entity.ID || IsBareID(entity.Label) {
			continue
		}
		if p.seen[entity.ID] {
			continue
		}
		p.seen[entity.ID] = true
		p.entities = append(p.entities, entity)
		added++
	}

	VerboseLog("Pool for type %s grew by %d entities (total %d, growth %d/%d)",
		p.entityType, added, len(p.entities), p.growths, p.maxGrowths)
	return added > 0
}

// Snapshot returns a copy of every fetched entity, consumed or not. Used
// for distractor scans over sibling entities.
func (p *EntityPool) Snapshot() []Entity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Entity(nil), p.entities...)
}

// Size returns the number of entities fetched so far.
func (p *EntityPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entities)
}

// Remaining returns the number of unconsumed entities.
func (p *EntityPool) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entities) - p.cursor
}
