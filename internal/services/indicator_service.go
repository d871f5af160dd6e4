package services

import (
	"fmt"
	"sort"
	"sync"

	"github.com/fxviews/fx-views-go/internal/features"
	"github.com/fxviews/fx-views-go/internal/models"
)

// IndicatorService keeps the dashboard indicator series in memory and
// serves percentile/trend summaries on demand. Series updates replace the
// whole value, so readers never observe a partially loaded series.
type IndicatorService struct {
	mu     sync.RWMutex
	series map[string]models.Series
}

func NewIndicatorService() *IndicatorService {
	return &IndicatorService{series: make(map[string]models.Series)}
}

// Update stores or replaces one series.
func (s *IndicatorService) Update(series models.Series) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series[series.Name] = series
}

// Names returns the loaded series names, sorted.
func (s *IndicatorService) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.series))
	for name := range s.series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Summary computes the percentile/trend summary for one series.
func (s *IndicatorService) Summary(name string) (models.IndicatorSummary, error) {
	s.mu.RLock()
	series, ok := s.series[name]
	s.mu.RUnlock()
	if !ok {
		return models.IndicatorSummary{}, fmt.Errorf("unknown indicator series %q", name)
	}
	return features.Summarize(series)
}
