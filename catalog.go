package wikitrivia

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
)

// WildcardTopic selects every catalog category.
const WildcardTopic = "all"

// CategoryCatalog holds the static category configuration loaded once at
// startup. The catalog also fixes the supported language set; the first
// listed language is the reference language used for entity labels and
// description facts.
type CategoryCatalog struct {
	languages  []string
	categories map[string]CategoryDefinition
}

type catalogFile struct {
	Languages  []string                      `json:"languages"`
	Categories map[string]CategoryDefinition `json:"categories"`
}

// LoadCatalog reads and validates a category catalog from a JSON file.
func LoadCatalog(path string) (*CategoryCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog builds a catalog from raw JSON. Incomplete categories are
// skipped with a warning rather than failing the whole load; the catalog
// is only rejected when no usable category remains.
func ParseCatalog(data []byte) (*CategoryCatalog, error) {
	var file catalogFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(file.Languages) == 0 {
		return nil, fmt.Errorf("catalog declares no languages")
	}

	catalog := &CategoryCatalog{
		languages:  file.Languages,
		categories: make(map[string]CategoryDefinition),
	}

	for name, def := range file.Categories {
		def.Name = name
		if err := validateCategory(def, file.Languages); err != nil {
			log.Printf("Skipping incomplete category %q: %v", name, err)
			continue
		}
		catalog.categories[name] = def
	}

	if len(catalog.categories) == 0 {
		return nil, fmt.Errorf("catalog contains no usable categories")
	}
	return catalog, nil
}

func validateCategory(def CategoryDefinition, languages []string) error {
	if def.EntityType == "" {
		return fmt.Errorf("missing entity type")
	}
	if len(def.Attributes) < 2 {
		// One attribute becomes the answer slot; at least one other must
		// remain as hint material or no entity can ever qualify.
		return fmt.Errorf("need at least two attributes")
	}
	if len(def.ImageAttributes) == 0 {
		return fmt.Errorf("no image attributes")
	}
	for i, attr := range def.Attributes {
		if attr.Property == "" {
			return fmt.Errorf("attribute %d has no property", i)
		}
		switch attr.Kind {
		case KindDate, KindNumber, KindText:
		case "":
			return fmt.Errorf("attribute %s has no value kind", attr.Property)
		default:
			return fmt.Errorf("attribute %s has unknown value kind %q", attr.Property, attr.Kind)
		}
		for _, lang := range languages {
			tmpl, ok := attr.Templates[lang]
			if !ok {
				return fmt.Errorf("attribute %s has no template for language %q", attr.Property, lang)
			}
			if strings.Count(tmpl, "%") != 1 {
				return fmt.Errorf("attribute %s template for %q must contain exactly one %% placeholder", attr.Property, lang)
			}
		}
	}
	return nil
}

// Languages returns the supported languages; the first one is the
// reference language.
func (c *CategoryCatalog) Languages() []string {
	return append([]string(nil), c.languages...)
}

// ReferenceLanguage returns the language entity labels and facts are
// resolved in.
func (c *CategoryCatalog) ReferenceLanguage() string {
	return c.languages[0]
}

// Category returns one category definition by name.
func (c *CategoryCatalog) Category(name string) (CategoryDefinition, bool) {
	def, ok := c.categories[name]
	return def, ok
}

// Names returns all category names in sorted order.
func (c *CategoryCatalog) Names() []string {
	names := make([]string, 0, len(c.categories))
	for name := range c.categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select resolves a topic list into category definitions. The wildcard
// "all" (or an empty list) selects every category; unknown topics are an
// error so a typo does not silently generate nothing.
func (c *CategoryCatalog) Select(topics []string) ([]CategoryDefinition, error) {
	wildcard := len(topics) == 0
	for _, topic := range topics {
		if topic == WildcardTopic {
			wildcard = true
			break
		}
	}

	var names []string
	if wildcard {
		names = c.Names()
	} else {
		for _, topic := range topics {
			if _, ok := c.categories[topic]; !ok {
				return nil, fmt.Errorf("unknown category: %s", topic)
			}
			names = append(names, topic)
		}
		sort.Strings(names)
	}

	defs := make([]CategoryDefinition, 0, len(names))
	for _, name := range names {
		defs = append(defs, c.categories[name])
	}
	return defs, nil
}
