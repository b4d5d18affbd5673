package wikitrivia

import (
	"context"
	"errors"
	"log"
	"math/rand"
)

// RunnerState is the lifecycle state of a category runner.
type RunnerState string

const (
	// StateFilling means the runner is still working toward its quota.
	StateFilling RunnerState = "filling"
	// StateSatisfied means the quota was reached.
	StateSatisfied RunnerState = "satisfied"
	// StateExhausted means the pool ran dry before the quota was met.
	// Partial fulfillment is an accepted outcome, not an error.
	StateExhausted RunnerState = "exhausted"
)

// CategoryRunner drives the synthesizer across one category's entity pool
// until its quota is reached or the pool is exhausted. Each runner owns
// its pool and result list exclusively; runners share nothing but the
// graph client.
type CategoryRunner struct {
	category CategoryDefinition
	pool     *EntityPool
	synth    *QuestionSynthesizer
	quota    int
	state    RunnerState
}

// NewCategoryRunner wires a pool and synthesizer for one category.
func NewCategoryRunner(client GraphClient, category CategoryDefinition, languages []string, quota int, cfg Config, rng *rand.Rand) *CategoryRunner {
	return &CategoryRunner{
		category: category,
		pool:     NewEntityPool(client, category.EntityType, languages, cfg.BatchSize, cfg.MaxPoolGrowths),
		synth:    NewQuestionSynthesizer(client, category, languages, rng),
		quota:    quota,
		state:    StateFilling,
	}
}

// State returns the runner's final state after Run.
func (r *CategoryRunner) State() RunnerState {
	return r.state
}

// Run loops over the pool until the quota is met or no further entities
// can be obtained. A rejected entity or a failed lookup never aborts the
// run; rejected entities are not retried.
func (r *CategoryRunner) Run(ctx context.Context) []GeneratedQuestion {
	questions := make([]GeneratedQuestion, 0, r.quota)

	for len(questions) < r.quota {
		if ctx.Err() != nil {
			r.state = StateExhausted
			log.Printf("Category %q stopped early: %v (%d/%d questions)",
				r.category.Name, ctx.Err(), len(questions), r.quota)
			return questions
		}

		entity, ok := r.pool.Next()
		if !ok {
			if !r.pool.Grow(ctx) {
				r.state = StateExhausted
				log.Printf("Category %q exhausted with %d/%d questions",
					r.category.Name, len(questions), r.quota)
				return questions
			}
			continue
		}

		question, err := r.synth.Synthesize(ctx, entity, r.pool.Snapshot())
		if err != nil {
			var rejection *RejectionError
			if errors.As(err, &rejection) {
				metricEntitiesRejected.WithLabelValues(r.category.Name, rejection.Stage).Inc()
				VerboseLog("Category %q: %v", r.category.Name, rejection)
				continue
			}
			// Context cancellation surfaces here; anything else is a
			// transient data gap and the next entity gets its chance.
			VerboseLog("Category %q: synthesis error for %s: %v", r.category.Name, entity.ID, err)
			continue
		}

		questions = append(questions, *question)
		metricQuestionsGenerated.WithLabelValues(r.category.Name).Inc()
		VerboseLog("Category %q: question %d/%d from entity %s",
			r.category.Name, len(questions), r.quota, entity.ID)
	}

	r.state = StateSatisfied
	return questions
}
