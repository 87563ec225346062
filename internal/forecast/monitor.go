// Package forecast maintains the facility demand projection. A background
// loop refreshes it from the forecast oracle on a fixed interval; the
// shortage summary is recomputed from the held projection on every request,
// never cached.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dhruthiaithal/Microlabs-Triage/internal/models"
)

// ErrForecastUnavailable means the oracle could not be reached, or no
// projection has been fetched yet. A previously fetched projection is never
// discarded because of a failed refresh.
var ErrForecastUnavailable = errors.New("forecast unavailable")

type Oracle interface {
	Fetch(ctx context.Context, hours int) ([]models.ForecastPoint, error)
}

type Monitor struct {
	oracle   Oracle
	interval time.Duration
	horizon  int // hours requested per refresh
	window   int // look-ahead hours for the shortage summary
	now      func() time.Time

	// onRefresh, when set before Start, is invoked after every successful
	// replacement of the projection.
	onRefresh func(models.Forecast)

	mu      sync.RWMutex
	current models.Forecast

	wg sync.WaitGroup
}

func NewMonitor(o Oracle, interval time.Duration, horizonHours, windowHours int) *Monitor {
	return &Monitor{
		oracle:   o,
		interval: interval,
		horizon:  horizonHours,
		window:   windowHours,
		now:      time.Now,
	}
}

// OnRefresh registers a hook called after each successful refresh. Must be
// set before Start.
func (m *Monitor) OnRefresh(fn func(models.Forecast)) {
	m.onRefresh = fn
}

func (m *Monitor) Start(ctx context.Context) {
	m.wg.Add(1)
	go m.run(ctx)
}

func (m *Monitor) run(ctx context.Context) {
	defer m.wg.Done()
	slog.Info("starting forecast monitor", "interval", m.interval, "horizon_hours", m.horizon)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	// Initial refresh
	if _, err := m.Refresh(ctx); err != nil {
		slog.Error("initial forecast refresh failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("forecast monitor shutting down")
			return
		case <-ticker.C:
			// A failed refresh never stops the schedule; the next tick is
			// the retry.
			if _, err := m.Refresh(ctx); err != nil {
				slog.Error("forecast refresh failed", "error", err)
			}
		}
	}
}

func (m *Monitor) Stop() {
	m.wg.Wait()
	slog.Info("forecast monitor stopped")
}

// Refresh fetches a new projection and replaces the held one wholesale. On
// failure the previous projection stays intact.
func (m *Monitor) Refresh(ctx context.Context) (models.Forecast, error) {
	points, err := m.oracle.Fetch(ctx, m.horizon)
	if err != nil {
		return models.Forecast{}, fmt.Errorf("%w: %v", ErrForecastUnavailable, err)
	}

	fc := models.Forecast{Points: points, FetchedAt: m.now()}

	m.mu.Lock()
	m.current = fc
	m.mu.Unlock()

	slog.Debug("forecast refreshed", "points", len(points))

	if m.onRefresh != nil {
		m.onRefresh(fc)
	}
	return fc, nil
}

// Current returns the held projection and whether one has been fetched.
func (m *Monitor) Current() (models.Forecast, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current, !m.current.FetchedAt.IsZero()
}

// Summary computes the shortage summary against the given facility from the
// held projection.
func (m *Monitor) Summary(f models.Facility) (models.ShortageSummary, error) {
	cur, ok := m.Current()
	if !ok {
		return models.ShortageSummary{}, fmt.Errorf("%w: no projection fetched yet", ErrForecastUnavailable)
	}
	return ComputeSummary(cur, f, m.window), nil
}

// ComputeSummary is a pure function of (forecast, facility, window): mean
// demand over the first windowHours hourly points compared against facility
// capacity.
func ComputeSummary(fc models.Forecast, f models.Facility, windowHours int) models.ShortageSummary {
	s := models.ShortageSummary{
		WindowHours:       windowHours,
		ForecastFetchedAt: fc.FetchedAt,
	}

	n := windowHours
	if n > len(fc.Points) {
		n = len(fc.Points)
	}
	if n == 0 {
		return s
	}

	for _, p := range fc.Points[:n] {
		s.MeanICUDemand += p.ICUDemand
		s.MeanVentilatorDemand += p.VentilatorDemand
		s.MeanOxygenDemand += p.OxygenDemand
	}
	s.MeanICUDemand /= float64(n)
	s.MeanVentilatorDemand /= float64(n)
	s.MeanOxygenDemand /= float64(n)

	s.ICUShortage = s.MeanICUDemand > float64(f.ICUBeds)
	s.VentilatorShortage = s.MeanVentilatorDemand > float64(f.Ventilators)
	s.OxygenShortage = s.MeanOxygenDemand > f.OxygenSupply

	return s
}
