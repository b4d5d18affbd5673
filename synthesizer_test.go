package wikitrivia

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestSynthesizer pins the answer slot so scenarios are deterministic.
func newTestSynthesizer(g *fakeGraph, category CategoryDefinition, slot int) *QuestionSynthesizer {
	s := NewQuestionSynthesizer(g, category, testLanguages, rand.New(rand.NewSource(1)))
	s.pickSlot = func(int) int { return slot }
	return s
}

func requireRejection(t *testing.T, err error, stage string) {
	t.Helper()
	require.Error(t, err)
	var rejection *RejectionError
	require.True(t, errors.As(err, &rejection), "expected a rejection, got: %v", err)
	assert.Equal(t, stage, rejection.Stage)
}

func TestSynthesizeCapitalQuestion(t *testing.T) {
	g := newFakeGraph()
	populateCountries(g, 4) // France plus Berlin/Madrid/Rome siblings
	g.setLabel("P35", "head of state")

	s := newTestSynthesizer(g, countriesCategory(), 0)
	france := Entity{ID: "Q142", Label: "France"}

	q, err := s.Synthesize(context.Background(), france, g.entities["Q6256"])
	require.NoError(t, err)

	assert.Equal(t, "countries", q.Category)
	assert.NotEmpty(t, q.ID)
	assert.Equal(t, "What is the capital of France?", q.Question["en"])
	assert.Equal(t, "¿Cuál es la capital de France?", q.Question["es"])
	assert.Equal(t, map[string]string{"en": "Paris", "es": "Paris"}, q.CorrectAnswer)
	assert.ElementsMatch(t, []string{"Berlin", "Madrid", "Rome"}, q.IncorrectAnswers["en"])
	assert.ElementsMatch(t, []string{"Berlín", "Madrid", "Roma"}, q.IncorrectAnswers["es"])
	require.Len(t, q.Facts, 1)
	assert.Equal(t, Fact{PropertyLabel: "head of state", Value: "Emmanuel Macron"}, q.Facts[0])
	assert.Equal(t, []string{"https://commons.example/flag-Q142.svg"}, q.Images)

	require.NoError(t, q.Validate(testLanguages))
}

func TestSynthesizeRejectsOnMissingLanguage(t *testing.T) {
	g := newFakeGraph()
	populateCountries(g, 4)
	// Capital resolves in English but not Spanish: cross-language
	// consistency is mandatory, so the entity must be rejected outright.
	g.setValue("Q142", "P36", "es")

	s := newTestSynthesizer(g, countriesCategory(), 0)
	_, err := s.Synthesize(context.Background(), Entity{ID: "Q142", Label: "France"}, g.entities["Q6256"])
	requireRejection(t, err, "answer")
}

func TestSynthesizeRejectsUnresolvedAnswer(t *testing.T) {
	g := newFakeGraph()
	populateCountries(g, 4)
	g.setValue("Q142", "P36", "en", "Q90")

	s := newTestSynthesizer(g, countriesCategory(), 0)
	_, err := s.Synthesize(context.Background(), Entity{ID: "Q142", Label: "France"}, g.entities["Q6256"])
	requireRejection(t, err, "answer")
}

func TestSynthesizeRejectsWithTooFewDistractors(t *testing.T) {
	g := newFakeGraph()
	populateCountries(g, 3) // only two siblings, two distractors

	s := newTestSynthesizer(g, countriesCategory(), 0)
	_, err := s.Synthesize(context.Background(), Entity{ID: "Q142", Label: "France"}, g.entities["Q6256"])
	requireRejection(t, err, "distractors")
}

func TestSynthesizeRejectsWithoutFacts(t *testing.T) {
	g := newFakeGraph()
	populateCountries(g, 4)
	// Answer slot is the capital; wiping the head of state removes the
	// only other attribute, leaving no hint material.
	g.setValue("Q142", "P35", "en")

	s := newTestSynthesizer(g, countriesCategory(), 0)
	_, err := s.Synthesize(context.Background(), Entity{ID: "Q142", Label: "France"}, g.entities["Q6256"])
	requireRejection(t, err, "facts")
}

func TestSynthesizeRejectsWithoutImage(t *testing.T) {
	g := newFakeGraph()
	populateCountries(g, 4)
	g.images["Q142"] = nil

	s := newTestSynthesizer(g, countriesCategory(), 0)
	_, err := s.Synthesize(context.Background(), Entity{ID: "Q142", Label: "France"}, g.entities["Q6256"])
	requireRejection(t, err, "image")
}

func TestSynthesizeTriesImageAttributesInOrder(t *testing.T) {
	g := newFakeGraph()
	populateCountries(g, 4)
	g.images["Q142"] = nil
	g.setImage("Q142", "P18", "https://commons.example/france.jpg")

	category := countriesCategory()
	category.ImageAttributes = []string{"P41", "P18"}

	s := newTestSynthesizer(g, category, 0)
	q, err := s.Synthesize(context.Background(), Entity{ID: "Q142", Label: "France"}, g.entities["Q6256"])
	require.NoError(t, err)
	assert.Equal(t, []string{"https://commons.example/france.jpg"}, q.Images)
}

func TestSynthesizeDropsUnresolvedFactsSilently(t *testing.T) {
	g := newFakeGraph()
	populateCountries(g, 4)
	g.setLabel("P35", "head of state")
	g.setLabel("P37", "official language")

	category := countriesCategory()
	category.Attributes = append(category.Attributes, Attribute{
		Property: "P37",
		Kind:     KindText,
		Templates: map[string]string{
			"en": "What is one of the official languages of %?",
			"es": "¿Cuál es uno de los idiomas oficiales de %?",
		},
	})
	// The official-language value never got a label; that one fact is
	// dropped but the question still goes through on the remaining fact.
	g.setValue("Q142", "P37", "en", "Q150")

	s := newTestSynthesizer(g, category, 0)
	q, err := s.Synthesize(context.Background(), Entity{ID: "Q142", Label: "France"}, g.entities["Q6256"])
	require.NoError(t, err)
	require.Len(t, q.Facts, 1)
	assert.Equal(t, "head of state", q.Facts[0].PropertyLabel)
}

func TestSynthesizeSkipsUnresolvedDistractorValues(t *testing.T) {
	g := newFakeGraph()
	populateCountries(g, 5)
	// Germany's capital comes back unresolved in English; the scan must
	// skip it and reach three distractors from the remaining siblings.
	g.setValue("Q183", "P36", "en", "Q64")

	s := newTestSynthesizer(g, countriesCategory(), 0)
	q, err := s.Synthesize(context.Background(), Entity{ID: "Q142", Label: "France"}, g.entities["Q6256"])
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Madrid", "Rome", "Lisbon"}, q.IncorrectAnswers["en"])
}

func TestSynthesizeExcludesAllOwnValuesFromDistractors(t *testing.T) {
	g := newFakeGraph()
	category := CategoryDefinition{
		Name:       "countries",
		EntityType: "Q6256",
		Attributes: []Attribute{
			{Property: "P47", Kind: KindText, Templates: map[string]string{
				"en": "Which country borders %?", "es": "¿Qué país limita con %?"}},
			{Property: "P36", Kind: KindText, Templates: map[string]string{
				"en": "What is the capital of %?", "es": "¿Cuál es la capital de %?"}},
		},
		ImageAttributes: []string{"P41"},
	}

	// France borders both Spain and Germany. Germany also shows up as one
	// of Spain's border values, so the scan would hand it out as an
	// incorrect option unless every own value is excluded, not just the
	// first.
	for _, c := range []struct {
		id, label string
		en, es    []string
	}{
		{"Q142", "France", []string{"Spain", "Germany"}, []string{"España", "Alemania"}},
		{"Q29", "Spain", []string{"Germany", "Portugal"}, []string{"Alemania", "Portugal"}},
		{"Q183", "Germany", []string{"Poland"}, []string{"Polonia"}},
		{"Q38", "Italy", []string{"Switzerland"}, []string{"Suiza"}},
	} {
		g.addEntity("Q6256", c.id, c.label)
		g.setValue(c.id, "P47", "en", c.en...)
		g.setValue(c.id, "P47", "es", c.es...)
	}
	g.setValue("Q142", "P36", "en", "Paris")
	g.setImage("Q142", "P41", "https://commons.example/flag-Q142.svg")

	s := newTestSynthesizer(g, category, 0)
	q, err := s.Synthesize(context.Background(), Entity{ID: "Q142", Label: "France"}, g.entities["Q6256"])
	require.NoError(t, err)

	assert.Equal(t, "Spain", q.CorrectAnswer["en"])
	assert.NotContains(t, q.IncorrectAnswers["en"], "Germany")
	assert.NotContains(t, q.IncorrectAnswers["en"], "Spain")
	assert.ElementsMatch(t, []string{"Portugal", "Poland", "Switzerland"}, q.IncorrectAnswers["en"])
	assert.NotContains(t, q.IncorrectAnswers["es"], "Alemania")
	assert.ElementsMatch(t, []string{"Portugal", "Polonia", "Suiza"}, q.IncorrectAnswers["es"])
}

func TestSynthesizeAnswerSlotSharedAcrossLanguages(t *testing.T) {
	g := newFakeGraph()
	populateCountries(g, 4)
	g.setLabel("P36", "capital")

	// Slot 1 asks about the head of state in both languages.
	s := newTestSynthesizer(g, countriesCategory(), 1)
	q, err := s.Synthesize(context.Background(), Entity{ID: "Q142", Label: "France"}, g.entities["Q6256"])
	require.NoError(t, err)

	assert.Equal(t, "Who is the head of state of France?", q.Question["en"])
	assert.Equal(t, "¿Quién es el jefe de estado de France?", q.Question["es"])
	assert.Equal(t, "Emmanuel Macron", q.CorrectAnswer["en"])
	assert.Equal(t, "Emmanuel Macron", q.CorrectAnswer["es"])
	require.Len(t, q.Facts, 1)
	assert.Equal(t, "capital", q.Facts[0].PropertyLabel)
	assert.Equal(t, "Paris", q.Facts[0].Value)
}

func TestSynthesizeRendersValueKinds(t *testing.T) {
	g := newFakeGraph()
	g.addEntity("Q11424", "Q1392744", "Some Film")
	g.addEntity("Q11424", "Q190525", "Other Film")
	g.addEntity("Q11424", "Q200000", "Third Film")
	g.addEntity("Q11424", "Q300000", "Fourth Film")

	category := CategoryDefinition{
		Name:       "films",
		EntityType: "Q11424",
		Attributes: []Attribute{
			{Property: "P577", Kind: KindDate, Templates: map[string]string{
				"en": "When was % released?", "es": "¿Cuándo se estrenó %?"}},
			{Property: "P57", Kind: KindText, Templates: map[string]string{
				"en": "Who directed %?", "es": "¿Quién dirigió %?"}},
		},
		ImageAttributes: []string{"P18"},
	}

	for i, film := range []string{"Q1392744", "Q190525", "Q200000", "Q300000"} {
		date := []string{"1972-03-24T00:00:00Z", "1977-05-25T00:00:00Z", "1994-09-23T00:00:00Z", "1999-03-31T00:00:00Z"}[i]
		g.setValue(film, "P577", "en", date)
		g.setValue(film, "P577", "es", date)
		g.setValue(film, "P57", "en", "Director "+film)
		g.setValue(film, "P57", "es", "Director "+film)
		g.setImage(film, "P18", "https://commons.example/"+film+".jpg")
	}
	g.setLabel("P57", "director")

	s := newTestSynthesizer(g, category, 0)
	q, err := s.Synthesize(context.Background(), Entity{ID: "Q1392744", Label: "Some Film"}, g.entities["Q11424"])
	require.NoError(t, err)

	assert.Equal(t, "24 March 1972", q.CorrectAnswer["en"])
	assert.ElementsMatch(t,
		[]string{"25 May 1977", "23 September 1994", "31 March 1999"},
		q.IncorrectAnswers["en"])
}
