package wikitrivia

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RejectionError signals that an entity cannot yield a valid question.
// Rejections are expected and non-fatal: the runner skips the entity and
// moves on.
type RejectionError struct {
	EntityID string
	Stage    string
	Reason   string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("entity %s rejected at %s: %s", e.EntityID, e.Stage, e.Reason)
}

// IsRejection reports whether err is an entity rejection rather than a
// real failure.
func IsRejection(err error) bool {
	var rejection *RejectionError
	return errors.As(err, &rejection)
}

func reject(entityID, stage, format string, v ...interface{}) error {
	return &RejectionError{EntityID: entityID, Stage: stage, Reason: fmt.Sprintf(format, v...)}
}

// QuestionSynthesizer turns one entity into a validated multi-language
// question, or rejects it. It performs network reads only; no shared
// state is written.
type QuestionSynthesizer struct {
	client    GraphClient
	category  CategoryDefinition
	languages []string
	rng       *rand.Rand

	// pickSlot selects the answer-slot attribute index. Overridable so
	// tests can pin the slot.
	pickSlot func(n int) int

	// Property labels are stable within a run; one lookup per property.
	labelCache map[string]string
}

// NewQuestionSynthesizer creates a synthesizer for one category. The
// first language is the reference language.
func NewQuestionSynthesizer(client GraphClient, category CategoryDefinition, languages []string, rng *rand.Rand) *QuestionSynthesizer {
	s := &QuestionSynthesizer{
		client:     client,
		category:   category,
		languages:  languages,
		rng:        rng,
		labelCache: make(map[string]string),
	}
	s.pickSlot = rng.Intn
	return s
}

// Synthesize attempts to build one question about the given entity, using
// siblings as distractor material. Returns a RejectionError when the
// entity cannot produce a valid question.
func (s *QuestionSynthesizer) Synthesize(ctx context.Context, entity Entity, siblings []Entity) (*GeneratedQuestion, error) {
	ref := s.languages[0]

	// The answer slot is one attribute index, shared across every
	// language so the question asks about the same fact everywhere.
	slot := s.pickSlot(len(s.category.Attributes))
	slotAttr := s.category.Attributes[slot]

	facts, err := s.gatherFacts(ctx, entity, slot, ref)
	if err != nil {
		return nil, err
	}
	if len(facts) == 0 {
		return nil, reject(entity.ID, "facts", "no usable description facts")
	}

	correct, ownValues, err := s.resolveAnswers(ctx, entity, slotAttr)
	if err != nil {
		return nil, err
	}

	incorrect, err := s.findDistractors(ctx, entity, slotAttr, ownValues, siblings)
	if err != nil {
		return nil, err
	}

	images := s.resolveImages(ctx, entity)
	if len(images) == 0 {
		return nil, reject(entity.ID, "image", "no image attribute yielded a value")
	}

	question := &GeneratedQuestion{
		ID:               uuid.NewString(),
		Category:         s.category.Name,
		Question:         make(map[string]string, len(s.languages)),
		CorrectAnswer:    correct,
		IncorrectAnswers: incorrect,
		Facts:            facts,
		Images:           images,
		CreatedAt:        time.Now().UTC(),
	}
	for _, lang := range s.languages {
		// The entity label is resolved once in the reference language
		// and substituted verbatim; proper nouns rarely vary by language.
		question.Question[lang] = strings.Replace(slotAttr.Templates[lang], "%", entity.Label, 1)
	}

	if err := question.Validate(s.languages); err != nil {
		return nil, reject(entity.ID, "validate", "%v", err)
	}
	return question, nil
}

// gatherFacts collects hint material from every attribute except the
// answer slot, in the reference language. Facts with missing or
// unresolved values are silently dropped.
func (s *QuestionSynthesizer) gatherFacts(ctx context.Context, entity Entity, slot int, ref string) ([]Fact, error) {
	var facts []Fact
	for i, attr := range s.category.Attributes {
		if i == slot {
			continue
		}
		values, err := s.client.PropertyValues(ctx, entity.ID, attr.Property, ref)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			VerboseLog("Fact lookup %s/%s failed: %v", entity.ID, attr.Property, err)
			continue
		}
		if len(values) == 0 || IsBareID(values[0]) {
			continue
		}
		facts = append(facts, Fact{
			PropertyLabel: s.propertyLabel(ctx, attr.Property, ref),
			Value:         attr.Kind.Render(values[0]),
		})
	}
	return facts, nil
}

// resolveAnswers fetches the answer-slot values in every supported
// language. The first value becomes the correct answer; the full rendered
// list is returned as well, since for a multi-valued property every one
// of the entity's own values is a true answer and none may be served as a
// distractor. Any gap or unresolved identifier rejects the entity:
// cross-language consistency is mandatory.
func (s *QuestionSynthesizer) resolveAnswers(ctx context.Context, entity Entity, attr Attribute) (map[string]string, map[string][]string, error) {
	correct := make(map[string]string, len(s.languages))
	ownValues := make(map[string][]string, len(s.languages))
	for _, lang := range s.languages {
		values, err := s.client.PropertyValues(ctx, entity.ID, attr.Property, lang)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			return nil, nil, reject(entity.ID, "answer", "lookup of %s failed for %q: %v", attr.Property, lang, err)
		}
		if len(values) == 0 {
			return nil, nil, reject(entity.ID, "answer", "no value for %s in %q", attr.Property, lang)
		}
		if IsBareID(values[0]) {
			return nil, nil, reject(entity.ID, "answer", "value %q for %s is unresolved", values[0], attr.Property)
		}
		correct[lang] = attr.Kind.Render(values[0])
		rendered := make([]string, 0, len(values))
		for _, raw := range values {
			if IsBareID(raw) {
				continue
			}
			rendered = append(rendered, attr.Kind.Render(raw))
		}
		ownValues[lang] = rendered
	}
	return correct, ownValues, nil
}

// findDistractors scans sibling entities for values of the answer-slot
// attribute, collecting exactly three per language that are not among the
// entity's own values and differ from each other.
func (s *QuestionSynthesizer) findDistractors(ctx context.Context, entity Entity, attr Attribute, ownValues map[string][]string, siblings []Entity) (map[string][]string, error) {
	incorrect := make(map[string][]string, len(s.languages))
	for _, lang := range s.languages {
		chosen := make([]string, 0, 3)
		used := make(map[string]bool, len(ownValues[lang]))
		for _, value := range ownValues[lang] {
			used[value] = true
		}

		for _, sibling := range siblings {
			if sibling.ID == entity.ID {
				continue
			}
			values, err := s.client.PropertyValues(ctx, sibling.ID, attr.Property, lang)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				continue
			}
			for _, raw := range values {
				if IsBareID(raw) {
					continue
				}
				value := attr.Kind.Render(raw)
				if used[value] {
					continue
				}
				used[value] = true
				chosen = append(chosen, value)
				if len(chosen) == 3 {
					break
				}
			}
			if len(chosen) == 3 {
				break
			}
		}

		if len(chosen) != 3 {
			return nil, reject(entity.ID, "distractors", "found %d distinct distractors for %q, need 3", len(chosen), lang)
		}
		incorrect[lang] = chosen
	}
	return incorrect, nil
}

// resolveImages tries each configured image attribute in order and
// returns the URLs of the first one that yields anything.
func (s *QuestionSynthesizer) resolveImages(ctx context.Context, entity Entity) []string {
	for _, property := range s.category.ImageAttributes {
		urls, err := s.client.ImageURLs(ctx, entity.ID, property)
		if err != nil {
			VerboseLog("Image lookup %s/%s failed: %v", entity.ID, property, err)
			continue
		}
		if len(urls) > 0 {
			return urls
		}
	}
	return nil
}

func (s *QuestionSynthesizer) propertyLabel(ctx context.Context, property, lang string) string {
	if label, ok := s.labelCache[property]; ok {
		return label
	}
	label, err := s.client.PropertyLabel(ctx, property, lang)
	if err != nil || label == "" {
		label = property
	}
	s.labelCache[property] = label
	return label
}
