// Package plan groups assessed queries into migration waves: easy scripts
// first, manual-review stragglers at the back of each wave.
package plan

import (
	"sort"

	"sqlbridge/internal/domain"
)

// Band is one score bucket, bounded by an inclusive upper score.
type Band struct {
	Name string  `yaml:"name" json:"name"`
	Max  float64 `yaml:"max" json:"max"`
}

// Config is the wave layout. Bands must be in ascending Max order and the
// last band must cover the top of the score range.
type Config struct {
	Bands []Band `yaml:"bands"`
}

// DefaultConfig returns the standard three-wave layout.
func DefaultConfig() Config {
	return Config{Bands: []Band{
		{Name: "low", Max: 6.0},
		{Name: "medium", Max: 8.0},
		{Name: "high", Max: 10.0},
	}}
}

// Validate checks the band layout.
func (c Config) Validate() error {
	if len(c.Bands) == 0 {
		return domain.ErrConfig("wave plan has no bands")
	}
	prev := 0.0
	for i, b := range c.Bands {
		if b.Name == "" {
			return domain.ErrConfig("band %d has no name", i)
		}
		if i > 0 && b.Max <= prev {
			return domain.ErrConfig("band %q upper bound %.2f does not increase", b.Name, b.Max)
		}
		prev = b.Max
	}
	if c.Bands[len(c.Bands)-1].Max < 10.0 {
		return domain.ErrConfig("last band tops out at %.2f, below the score ceiling", prev)
	}
	return nil
}

// Build partitions assessments into waves. Every input lands in exactly one
// wave: the first band whose upper bound covers its score. Within a wave,
// fully-automated rewrites come first in ascending score order, then the
// manual-review queries, also ascending.
func Build(cfg Config, items []*domain.Assessment) ([]domain.MigrationWave, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	waves := make([]domain.MigrationWave, len(cfg.Bands))
	lower := 0.0
	for i, b := range cfg.Bands {
		waves[i] = domain.MigrationWave{Name: b.Name, MinScore: lower, MaxScore: b.Max}
		lower = b.Max
	}
	return Assign(waves, items), nil
}

// Assign distributes items into empty waves by their score bounds and
// recomputes ordering and totals. It is also used to refill waves loaded
// from the run store, where only the band layout is persisted.
func Assign(waves []domain.MigrationWave, items []*domain.Assessment) []domain.MigrationWave {
	for i := range waves {
		waves[i].Items = nil
		waves[i].TotalHours = 0
	}
	for _, a := range items {
		i := len(waves) - 1
		for j := range waves {
			if a.Score.Value <= waves[j].MaxScore {
				i = j
				break
			}
		}
		waves[i].Items = append(waves[i].Items, a)
	}
	for i := range waves {
		sortWave(&waves[i])
		for _, a := range waves[i].Items {
			waves[i].TotalHours += a.Score.EstimatedHours
		}
	}
	return waves
}

// TotalHours sums the estimated effort across all waves.
func TotalHours(waves []domain.MigrationWave) float64 {
	total := 0.0
	for _, w := range waves {
		total += w.TotalHours
	}
	return total
}

func sortWave(w *domain.MigrationWave) {
	sort.SliceStable(w.Items, func(i, j int) bool {
		ri := w.Items[i].Rewrite.RequiresManualReview
		rj := w.Items[j].Rewrite.RequiresManualReview
		if ri != rj {
			return !ri
		}
		return w.Items[i].Score.Value < w.Items[j].Score.Value
	})
}
