package wikitrivia

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"
)

// Config holds the generation tunables.
type Config struct {
	// BatchSize is the number of entities fetched per pool growth.
	BatchSize int
	// MaxPoolGrowths caps how many times a category's pool may grow, so
	// a category that cannot reach quota still terminates.
	MaxPoolGrowths int
	// CategoryTimeout bounds each category's wall-clock time.
	CategoryTimeout time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:       30,
		MaxPoolGrowths:  4,
		CategoryTimeout: 5 * time.Minute,
	}
}

// QuestionBatchManager fans category runners out concurrently and
// collects their output into a shuffled batch.
type QuestionBatchManager struct {
	client  GraphClient
	catalog *CategoryCatalog
	cfg     Config
}

// NewQuestionBatchManager creates a manager over one catalog and graph
// client.
func NewQuestionBatchManager(client GraphClient, catalog *CategoryCatalog, cfg Config) *QuestionBatchManager {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.MaxPoolGrowths <= 0 {
		cfg.MaxPoolGrowths = DefaultConfig().MaxPoolGrowths
	}
	if cfg.CategoryTimeout <= 0 {
		cfg.CategoryTimeout = DefaultConfig().CategoryTimeout
	}
	return &QuestionBatchManager{client: client, catalog: catalog, cfg: cfg}
}

// Generate produces a shuffled batch of up to total questions drawn from
// the selected topics ("all" or empty selects every category). Individual
// category shortfalls reduce the batch silently; an error is returned
// only when every category produced nothing.
func (m *QuestionBatchManager) Generate(ctx context.Context, topics []string, total int) ([]GeneratedQuestion, error) {
	if total <= 0 {
		return nil, fmt.Errorf("requested question count must be positive, got %d", total)
	}
	categories, err := m.catalog.Select(topics)
	if err != nil {
		return nil, err
	}

	quotas := splitQuota(total, len(categories))
	languages := m.catalog.Languages()
	results := make([][]GeneratedQuestion, len(categories))

	log.Printf("Starting batch generation: %d questions across %d categories", total, len(categories))

	g, gctx := errgroup.WithContext(ctx)
	for i, category := range categories {
		if quotas[i] == 0 {
			continue
		}
		i, category := i, category
		g.Go(func() error {
			runCtx, cancel := context.WithTimeout(gctx, m.cfg.CategoryTimeout)
			defer cancel()

			rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(i)))
			runner := NewCategoryRunner(m.client, category, languages, quotas[i], m.cfg, rng)
			results[i] = runner.Run(runCtx)
			log.Printf("Category %q finished %s with %d/%d questions",
				category.Name, runner.State(), len(results[i]), quotas[i])
			// Shortfalls are not errors; returning one would cancel the
			// sibling categories.
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var batch []GeneratedQuestion
	for _, questions := range results {
		batch = append(batch, questions...)
	}
	if len(batch) == 0 {
		return nil, fmt.Errorf("no category produced any questions")
	}

	shuffleQuestions(batch, rand.New(rand.NewSource(time.Now().UnixNano())))
	metricBatchSize.Set(float64(len(batch)))
	log.Printf("Batch generation complete: %d questions", len(batch))
	return batch, nil
}

// splitQuota divides total evenly across n categories, handing the
// remainder out one by one so small totals are not silently
// under-delivered.
func splitQuota(total, n int) []int {
	quotas := make([]int, n)
	base := total / n
	remainder := total % n
	for i := range quotas {
		quotas[i] = base
		if i < remainder {
			quotas[i]++
		}
	}
	return quotas
}

// shuffleQuestions applies a Fisher-Yates shuffle in place.
func shuffleQuestions(questions []GeneratedQuestion, rng *rand.Rand) {
	for i := len(questions) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		questions[i], questions[j] = questions[j], questions[i]
	}
}
