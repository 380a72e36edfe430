package expstore

import (
	"context"
	"sort"
	"sync"

	"github.com/configurable-agents/engine/internal/stats"
)

// MemoryStore is an in-process Store, useful for local runs and tests
// where no external tracking service is configured.
type MemoryStore struct {
	mu   sync.RWMutex
	runs []ExperimentRun
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) LogRun(_ context.Context, run ExperimentRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

func (s *MemoryStore) ListExperiments(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var names []string
	for _, r := range s.runs {
		if !seen[r.ExperimentName] {
			seen[r.ExperimentName] = true
			names = append(names, r.ExperimentName)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryStore) ListRuns(_ context.Context, experimentName string, filter Filter) ([]ExperimentRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ExperimentRun
	for _, r := range s.runs {
		if r.ExperimentName != experimentName {
			continue
		}
		if filter.VariantName != "" && r.VariantName != filter.VariantName {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *MemoryStore) GetAggregate(ctx context.Context, experimentName, metric string) (Aggregate, error) {
	runs, err := s.ListRuns(ctx, experimentName, Filter{})
	if err != nil {
		return Aggregate{}, err
	}
	return aggregate(runs, metric), nil
}

func aggregate(runs []ExperimentRun, metric string) Aggregate {
	var values []float64
	for _, r := range runs {
		if v, ok := r.Metrics[metric]; ok {
			values = append(values, v)
		}
	}
	sort.Float64s(values)
	return Aggregate{
		Mean:  stats.Mean(values),
		P50:   stats.Percentile(values, 50),
		P90:   stats.Percentile(values, 90),
		P95:   stats.Percentile(values, 95),
		P99:   stats.Percentile(values, 99),
		Count: len(values),
	}
}
