// -----------------------------------------------------------------------
// Scraper Registry - catalog of concrete scrapers by name and category
// -----------------------------------------------------------------------

package scrapers

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/rmarinho/garimpo/internal/interfaces"
)

// Registry holds the registered scrapers. Registration happens at wiring
// time; lookups afterwards are lock-free reads in practice but the map is
// guarded anyway.
type Registry struct {
	mu       sync.RWMutex
	scrapers map[string]interfaces.Scraper
	logger   arbor.ILogger
}

var _ interfaces.ScraperRegistry = (*Registry)(nil)

// NewRegistry creates an empty registry.
func NewRegistry(logger arbor.ILogger) *Registry {
	return &Registry{
		scrapers: make(map[string]interfaces.Scraper),
		logger:   logger,
	}
}

// Register adds a scraper under its descriptor name. Duplicate names are an
// error.
func (r *Registry) Register(scraper interfaces.Scraper) error {
	if scraper == nil {
		return fmt.Errorf("scraper is nil")
	}
	name := scraper.Descriptor().Name
	if name == "" {
		return fmt.Errorf("scraper has empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.scrapers[name]; exists {
		return fmt.Errorf("scraper %q already registered", name)
	}
	r.scrapers[name] = scraper

	r.logger.Debug().
		Str("scraper", name).
		Str("category", string(scraper.Descriptor().Category)).
		Msg("Scraper registered")
	return nil
}

// Get resolves a scraper by name.
func (r *Registry) Get(name string) (interfaces.Scraper, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	scraper, ok := r.scrapers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrScraperUnknown, name)
	}
	return scraper, nil
}

// All returns every registered scraper, ordered by name.
func (r *Registry) All() []interfaces.Scraper {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.scrapers))
	for name := range r.scrapers {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]interfaces.Scraper, 0, len(names))
	for _, name := range names {
		out = append(out, r.scrapers[name])
	}
	return out
}

// ByCategory returns the scrapers of one category, ordered by name.
func (r *Registry) ByCategory(category interfaces.ScraperCategory) []interfaces.Scraper {
	var out []interfaces.Scraper
	for _, scraper := range r.All() {
		if scraper.Descriptor().Category == category {
			out = append(out, scraper)
		}
	}
	return out
}

// Names returns the registered scraper names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.scrapers))
	for name := range r.scrapers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HealthCheckAll probes every scraper and returns the per-name outcome.
// Unreachable sources are logged, never fatal.
func (r *Registry) HealthCheckAll(ctx context.Context) map[string]bool {
	results := make(map[string]bool)
	for _, scraper := range r.All() {
		name := scraper.Descriptor().Name
		healthy := scraper.HealthCheck(ctx)
		results[name] = healthy
		if !healthy {
			r.logger.Warn().Str("scraper", name).Msg("Scraper source unreachable")
		}
	}
	return results
}

// CleanupAll releases every scraper's resources.
func (r *Registry) CleanupAll() {
	for _, scraper := range r.All() {
		if err := scraper.Cleanup(); err != nil {
			r.logger.Warn().
				Err(err).
				Str("scraper", scraper.Descriptor().Name).
				Msg("Scraper cleanup failed")
		}
	}
}
