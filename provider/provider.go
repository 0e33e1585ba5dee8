// Package provider defines the track-metadata source contract and the
// priority aggregator that polls sources in a fixed order.
package provider

import (
	"sync"

	"go.uber.org/zap"

	"github.com/eternalrp/eternalrp/log"
	"github.com/eternalrp/eternalrp/metrics"
	"github.com/eternalrp/eternalrp/types"
)

// Provider is a single now-playing source. Implementations are constructed
// once at startup and held for the process's life; per-call failures are
// returned, never cached, and must stay within a bounded timeout.
type Provider interface {
	// Name identifies the source for display and logging.
	Name() string
	// IsAvailable reports whether the source currently responds at all.
	IsAvailable() bool
	// GetNowPlaying returns the current track, (nil, nil) when nothing is
	// playing, or an error when the source failed this call.
	GetNowPlaying() (*types.TrackSnapshot, error)
}

// Aggregator polls an ordered provider list. Priority is list order, fixed
// at construction; every poll re-queries from the top with no caching.
type Aggregator struct {
	providers []Provider
	logger    *log.Logger
	mc        *metrics.Collector

	mu     sync.Mutex
	active string
}

// NewAggregator builds the aggregator over the given priority order.
func NewAggregator(providers []Provider, mc *metrics.Collector) *Aggregator {
	return &Aggregator{
		providers: providers,
		logger:    log.NewLogger("provider.aggregator"),
		mc:        mc,
	}
}

// Poll walks the providers in order and returns the first non-nil snapshot.
// The winning provider becomes "active" for reporting purposes. A provider
// error counts as "no result from this provider" and the walk continues.
// All empty means nil and the active provider is unset.
func (a *Aggregator) Poll() *types.TrackSnapshot {
	a.mc.IncPolls()

	for _, p := range a.providers {
		snap, err := p.GetNowPlaying()
		if err != nil {
			a.mc.IncProviderFails()
			a.logger.Debug("provider failed",
				zap.String("provider", p.Name()), zap.Error(err))
			continue
		}
		if snap == nil {
			continue
		}
		a.setActive(p.Name())
		return snap
	}

	a.setActive("")
	a.mc.IncEmptyPolls()
	return nil
}

// Active returns the provider that yielded the most recent snapshot, or ""
// when the last poll came up empty.
func (a *Aggregator) Active() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

func (a *Aggregator) setActive(name string) {
	a.mu.Lock()
	changed := a.active != name
	a.active = name
	a.mu.Unlock()
	if changed {
		a.mc.SetActiveProvider(name)
		if name != "" {
			a.logger.Info("active provider changed", zap.String("provider", name))
		}
	}
}
