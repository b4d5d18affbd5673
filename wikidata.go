package wikitrivia

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultEndpoint is the public Wikidata SPARQL endpoint.
const DefaultEndpoint = "https://query.wikidata.org/sparql"

const userAgent = "wikitrivia/1.0 (quiz question generator)"

// GraphClient is the knowledge-graph query boundary. Implementations may
// be slow and may return empty results on failure; callers never assume a
// query succeeds.
type GraphClient interface {
	// EntitiesByType lists entities of the given type with a display
	// label resolved in the preference order of languages. Offset allows
	// fetching past previously seen entities.
	EntitiesByType(ctx context.Context, entityType string, limit, offset int, languages []string) ([]Entity, error)

	// PropertyValues returns the resolved labels of a property's values
	// for one entity in one language.
	PropertyValues(ctx context.Context, entityID, property, lang string) ([]string, error)

	// PropertyLabel resolves the human-readable name of a property in
	// one language.
	PropertyLabel(ctx context.Context, property, lang string) (string, error)

	// ImageURLs returns the image file URLs an entity holds under the
	// given property.
	ImageURLs(ctx context.Context, entityID, property string) ([]string, error)
}

// WikidataClient executes SPARQL queries over HTTP GET. A single shared
// rate limiter caps the query rate across all concurrent category
// workers, since the endpoint is a rate-limited shared resource.
type WikidataClient struct {
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewWikidataClient creates a client for the given SPARQL endpoint capped
// at queriesPerSecond across all callers.
func NewWikidataClient(endpoint string, queriesPerSecond float64) *WikidataClient {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if queriesPerSecond <= 0 {
		queriesPerSecond = 5
	}
	return &WikidataClient{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(queriesPerSecond), 1),
	}
}

type sparqlValue struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sparqlResponse struct {
	Results struct {
		Bindings []map[string]sparqlValue `json:"bindings"`
	} `json:"results"`
}

func (c *WikidataClient) query(ctx context.Context, sparql string) (*sparqlResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	metricSparqlQueries.Inc()

	params := url.Values{}
	params.Set("query", sparql)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build query request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/sparql-results+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metricSparqlErrors.Inc()
		return nil, fmt.Errorf("sparql query failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metricSparqlErrors.Inc()
		return nil, fmt.Errorf("sparql query returned status %d", resp.StatusCode)
	}

	var result sparqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		metricSparqlErrors.Inc()
		return nil, fmt.Errorf("failed to decode sparql response: %w", err)
	}
	return &result, nil
}

// EntitiesByType lists entities of one type with labels resolved in the
// given language preference order. Labels that could not be resolved come
// back as the bare entity id; filtering those out is the pool's job.
func (c *WikidataClient) EntitiesByType(ctx context.Context, entityType string, limit, offset int, languages []string) ([]Entity, error) {
	sparql := fmt.Sprintf(`
		SELECT ?entity ?entityLabel WHERE {
			?entity wdt:P31 wd:%s.
			SERVICE wikibase:label { bd:serviceParam wikibase:language "%s". }
		}
		LIMIT %d OFFSET %d`, entityType, strings.Join(languages, ","), limit, offset)

	result, err := c.query(ctx, sparql)
	if err != nil {
		return nil, err
	}

	entities := make([]Entity, 0, len(result.Results.Bindings))
	for _, binding := range result.Results.Bindings {
		uri, ok := binding["entity"]
		if !ok {
			continue
		}
		parts := strings.Split(uri.Value, "/")
		id := parts[len(parts)-1]
		entities = append(entities, Entity{ID: id, Label: binding["entityLabel"].Value})
	}
	return entities, nil
}

// PropertyValues returns the labels of an entity's values for one
// property in one language. Values without a label in that language come
// back as the bare id.
func (c *WikidataClient) PropertyValues(ctx context.Context, entityID, property, lang string) ([]string, error) {
	sparql := fmt.Sprintf(`
		SELECT ?valueLabel WHERE {
			wd:%s wdt:%s ?value.
			SERVICE wikibase:label { bd:serviceParam wikibase:language "%s". }
		}`, entityID, property, lang)

	result, err := c.query(ctx, sparql)
	if err != nil {
		return nil, err
	}

	values := make([]string, 0, len(result.Results.Bindings))
	for _, binding := range result.Results.Bindings {
		if v, ok := binding["valueLabel"]; ok && v.Value != "" {
			values = append(values, v.Value)
		}
	}
	return values, nil
}

// PropertyLabel resolves a property's display name. When no label exists
// in the requested language the property id itself is returned, matching
// the best-effort behavior of the rest of the lookups.
func (c *WikidataClient) PropertyLabel(ctx context.Context, property, lang string) (string, error) {
	sparql := fmt.Sprintf(`
		SELECT ?propertyLabel WHERE {
			wd:%s rdfs:label ?propertyLabel.
			FILTER(LANG(?propertyLabel) = "%s")
		}`, property, lang)

	result, err := c.query(ctx, sparql)
	if err != nil {
		return "", err
	}
	for _, binding := range result.Results.Bindings {
		if v, ok := binding["propertyLabel"]; ok && v.Value != "" {
			return v.Value, nil
		}
	}
	return property, nil
}

// ImageURLs returns the image file URLs an entity holds under one
// property. No label service here: the values are Commons URLs.
func (c *WikidataClient) ImageURLs(ctx context.Context, entityID, property string) ([]string, error) {
	sparql := fmt.Sprintf(`
		SELECT ?image WHERE {
			wd:%s wdt:%s ?image.
		}`, entityID, property)

	result, err := c.query(ctx, sparql)
	if err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(result.Results.Bindings))
	for _, binding := range result.Results.Bindings {
		if v, ok := binding["image"]; ok && v.Value != "" {
			urls = append(urls, v.Value)
		}
	}
	return urls, nil
}
