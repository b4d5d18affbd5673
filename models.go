package wikitrivia

import (
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ValueKind tags how a raw knowledge-graph value is rendered for display.
type ValueKind string

const (
	KindDate   ValueKind = "date"
	KindNumber ValueKind = "number"
	KindText   ValueKind = "text"
)

// Render converts a raw SPARQL binding value into display form according
// to the kind. Values that cannot be parsed are returned unchanged so a
// formatting gap never loses data.
func (k ValueKind) Render(raw string) string {
	switch k {
	case KindDate:
		// Wikidata encodes point-in-time values as ISO timestamps.
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t.Format("2 January 2006")
		}
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			return t.Format("2 January 2006")
		}
		return raw
	case KindNumber:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return raw
	default:
		return raw
	}
}

// Attribute is one typed fact slot of a category. Each attribute carries
// its own question template per language, since the question wording
// depends on which fact is being asked about.
type Attribute struct {
	Property  string            `json:"property"`
	Kind      ValueKind         `json:"kind"`
	Templates map[string]string `json:"templates"`
}

// CategoryDefinition describes one question category: the knowledge-graph
// entity type it draws from, the attributes usable as answers or hints,
// and the image attributes tried in order for an illustration.
type CategoryDefinition struct {
	Name            string      `json:"-"`
	EntityType      string      `json:"entity"`
	Attributes      []Attribute `json:"attributes"`
	ImageAttributes []string    `json:"images"`
}

// Entity is a knowledge-graph entity with its resolved display label in
// the reference language. Entities are owned by the pool that fetched
// them and are never mutated after creation.
type Entity struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Fact is one hint item attached to a question: a human-readable property
// name and its rendered value, both in the reference language.
type Fact struct {
	PropertyLabel string `json:"property_label"`
	Value         string `json:"value"`
}

// GeneratedQuestion is a finished multi-language quiz question. It is
// immutable once constructed; batches are replaced wholesale.
type GeneratedQuestion struct {
	ID               string              `json:"id"`
	Category         string              `json:"category"`
	Question         map[string]string   `json:"question"`
	CorrectAnswer    map[string]string   `json:"correct_answer"`
	IncorrectAnswers map[string][]string `json:"incorrect_answers"`
	Facts            []Fact              `json:"description_facts"`
	Images           []string            `json:"images"`
	CreatedAt        time.Time           `json:"created_at"`
}

// bareIDPattern matches unresolved Wikidata identifiers (Q42, P36). The
// label service hands the raw id back when no label exists in any of the
// requested languages, and those must never reach a player.
var bareIDPattern = regexp.MustCompile(`^[PQ]\d+$`)

// IsBareID reports whether s looks like an unresolved graph identifier.
func IsBareID(s string) bool {
	return bareIDPattern.MatchString(strings.TrimSpace(s))
}

// Validate checks the invariants every persisted question must satisfy:
// all languages covered, exactly three distractors per language, answer
// sets pairwise distinct, no unresolved identifiers, and non-empty hint
// facts and images.
func (q *GeneratedQuestion) Validate(languages []string) error {
	if q.Category == "" {
		return fmt.Errorf("question %s: empty category", q.ID)
	}
	for _, lang := range languages {
		text, ok := q.Question[lang]
		if !ok || text == "" {
			return fmt.Errorf("question %s: no question text for language %q", q.ID, lang)
		}
		correct, ok := q.CorrectAnswer[lang]
		if !ok || correct == "" {
			return fmt.Errorf("question %s: no correct answer for language %q", q.ID, lang)
		}
		if IsBareID(correct) {
			return fmt.Errorf("question %s: correct answer %q is an unresolved identifier", q.ID, correct)
		}
		incorrect, ok := q.IncorrectAnswers[lang]
		if !ok || len(incorrect) != 3 {
			return fmt.Errorf("question %s: want 3 incorrect answers for language %q, got %d", q.ID, lang, len(incorrect))
		}
		seen := map[string]bool{correct: true}
		for _, ans := range incorrect {
			if ans == "" {
				return fmt.Errorf("question %s: empty incorrect answer for language %q", q.ID, lang)
			}
			if IsBareID(ans) {
				return fmt.Errorf("question %s: incorrect answer %q is an unresolved identifier", q.ID, ans)
			}
			if seen[ans] {
				return fmt.Errorf("question %s: duplicate answer option %q for language %q", q.ID, ans, lang)
			}
			seen[ans] = true
		}
	}
	if len(q.Facts) == 0 {
		return fmt.Errorf("question %s: no description facts", q.ID)
	}
	for _, f := range q.Facts {
		if IsBareID(f.Value) {
			return fmt.Errorf("question %s: fact value %q is an unresolved identifier", q.ID, f.Value)
		}
	}
	if len(q.Images) == 0 {
		return fmt.Errorf("question %s: no images", q.ID)
	}
	return nil
}

// Options returns the four answer options for one language in shuffled
// order, along with the index of the correct answer.
func (q *GeneratedQuestion) Options(lang string, rng *rand.Rand) ([]string, int) {
	options := make([]string, 0, 4)
	options = append(options, q.CorrectAnswer[lang])
	options = append(options, q.IncorrectAnswers[lang]...)
	for i := len(options) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		options[i], options[j] = options[j], options[i]
	}
	for i, opt := range options {
		if opt == q.CorrectAnswer[lang] {
			return options, i
		}
	}
	return options, 0
}

// ForLanguage returns a copy of the question trimmed to a single
// language. The facts stay as-is since they are reference-language only.
func (q *GeneratedQuestion) ForLanguage(lang string) GeneratedQuestion {
	trimmed := *q
	trimmed.Question = map[string]string{lang: q.Question[lang]}
	trimmed.CorrectAnswer = map[string]string{lang: q.CorrectAnswer[lang]}
	trimmed.IncorrectAnswers = map[string][]string{lang: append([]string(nil), q.IncorrectAnswers[lang]...)}
	return trimmed
}
