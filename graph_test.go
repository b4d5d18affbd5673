package wikitrivia

import (
	"context"
	"fmt"
	"sync"
)

// fakeGraph is an in-memory GraphClient scripted per test.
type fakeGraph struct {
	mu        sync.Mutex
	entities  map[string][]Entity                       // entity type → entities
	values    map[string]map[string]map[string][]string // entity → property → lang → values
	labels    map[string]string                         // property → label
	images    map[string]map[string][]string            // entity → property → urls
	entityErr error
	queries   int
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		entities: make(map[string][]Entity),
		values:   make(map[string]map[string]map[string][]string),
		labels:   make(map[string]string),
		images:   make(map[string]map[string][]string),
	}
}

func (g *fakeGraph) addEntity(entityType, id, label string) {
	g.entities[entityType] = append(g.entities[entityType], Entity{ID: id, Label: label})
}

func (g *fakeGraph) setValue(entityID, property, lang string, values ...string) {
	if g.values[entityID] == nil {
		g.values[entityID] = make(map[string]map[string][]string)
	}
	if g.values[entityID][property] == nil {
		g.values[entityID][property] = make(map[string][]string)
	}
	g.values[entityID][property][lang] = values
}

func (g *fakeGraph) setLabel(property, label string) {
	g.labels[property] = label
}

func (g *fakeGraph) setImage(entityID, property string, urls ...string) {
	if g.images[entityID] == nil {
		g.images[entityID] = make(map[string][]string)
	}
	g.images[entityID][property] = urls
}

func (g *fakeGraph) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.queries
}

func (g *fakeGraph) EntitiesByType(ctx context.Context, entityType string, limit, offset int, languages []string) ([]Entity, error) {
	g.mu.Lock()
	g.queries++
	g.mu.Unlock()
	if g.entityErr != nil {
		return nil, g.entityErr
	}
	all := g.entities[entityType]
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return append([]Entity(nil), all[offset:end]...), nil
}

func (g *fakeGraph) PropertyValues(ctx context.Context, entityID, property, lang string) ([]string, error) {
	g.mu.Lock()
	g.queries++
	g.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g.values[entityID][property][lang], nil
}

func (g *fakeGraph) PropertyLabel(ctx context.Context, property, lang string) (string, error) {
	g.mu.Lock()
	g.queries++
	g.mu.Unlock()
	if label, ok := g.labels[property]; ok {
		return label, nil
	}
	return property, nil
}

func (g *fakeGraph) ImageURLs(ctx context.Context, entityID, property string) ([]string, error) {
	g.mu.Lock()
	g.queries++
	g.mu.Unlock()
	return g.images[entityID][property], nil
}

// countryRow is one fully populated test country.
type countryRow struct {
	id, label, capEn, capEs, headEn, headEs string
}

var testCountries = []countryRow{
	{"Q142", "France", "Paris", "Paris", "Emmanuel Macron", "Emmanuel Macron"},
	{"Q183", "Germany", "Berlin", "Berlín", "Frank-Walter Steinmeier", "Frank-Walter Steinmeier"},
	{"Q29", "Spain", "Madrid", "Madrid", "Felipe VI", "Felipe VI"},
	{"Q38", "Italy", "Rome", "Roma", "Sergio Mattarella", "Sergio Mattarella"},
	{"Q45", "Portugal", "Lisbon", "Lisboa", "Marcelo Rebelo de Sousa", "Marcelo Rebelo de Sousa"},
	{"Q20", "Norway", "Oslo", "Oslo", "Harald V", "Harald V"},
}

// populateCountries scripts n fully usable countries: capital and head of
// state in both languages plus a flag image.
func populateCountries(g *fakeGraph, n int) {
	for i, c := range testCountries {
		if i >= n {
			break
		}
		g.addEntity("Q6256", c.id, c.label)
		g.setValue(c.id, "P36", "en", c.capEn)
		g.setValue(c.id, "P36", "es", c.capEs)
		g.setValue(c.id, "P35", "en", c.headEn)
		g.setValue(c.id, "P35", "es", c.headEs)
		g.setImage(c.id, "P41", fmt.Sprintf("https://commons.example/flag-%s.svg", c.id))
	}
}

// countriesCategory is the two-attribute category used across tests.
func countriesCategory() CategoryDefinition {
	return CategoryDefinition{
		Name:       "countries",
		EntityType: "Q6256",
		Attributes: []Attribute{
			{
				Property: "P36",
				Kind:     KindText,
				Templates: map[string]string{
					"en": "What is the capital of %?",
					"es": "¿Cuál es la capital de %?",
				},
			},
			{
				Property: "P35",
				Kind:     KindText,
				Templates: map[string]string{
					"en": "Who is the head of state of %?",
					"es": "¿Quién es el jefe de estado de %?",
				},
			},
		},
		ImageAttributes: []string{"P41"},
	}
}

var testLanguages = []string{"en", "es"}
