package search

import (
	"context"

	"github.com/kailas-cloud/prestadores/internal/domain"
	"github.com/kailas-cloud/prestadores/internal/usecase/collector"
	"github.com/kailas-cloud/prestadores/internal/usecase/indexing"
	"github.com/kailas-cloud/prestadores/internal/usecase/planner"
	"github.com/kailas-cloud/prestadores/internal/usecase/synthesizer"
)

// Indexer prepares the vector index.
type Indexer interface {
	Setup(ctx context.Context, source, collection string, forceReload bool) (*indexing.Index, error)
	Load(ctx context.Context, collection string) (*indexing.Index, error)
}

// Planner resolves raw queries into variants.
type Planner interface {
	Plan(raw any) planner.Plan
}

// Collector gathers candidates for a list of variants.
type Collector interface {
	Collect(ctx context.Context, variants []string) collector.Candidates
}

// Synthesizer writes the answer from candidates.
type Synthesizer interface {
	Synthesize(ctx context.Context, question string, candidates []domain.Document) (synthesizer.Answer, error)
}
