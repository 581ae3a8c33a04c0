// Package cost implements budget tracking and usage accounting, recording
// per-request spend for the proxy and backing the in-process default for
// the /stats endpoint.
//
// Grounded on internal/llm/cost_tracker.go (budget bookkeeping, daily/
// monthly reset) and internal/llm/cost_analytics.go (snapshot history). The
// hardcoded CalculateCost pricing table from cost_tracker.go is replaced:
// spec.md §3 makes the Model Registry the source of truth for
// input/output prices, so pricing here is always registry-sourced.
package cost

import (
	"sync"
	"time"

	"github.com/outpost-run/tiermesh/internal/registry"
)

// Calculate prices a request using the registry entry for modelID. Unknown
// models price at zero — the proxy only calls this after a successful
// registry lookup.
func Calculate(m registry.Model, promptTokens, completionTokens int) float64 {
	inputCost := float64(promptTokens) / 1_000_000 * m.InputPrice
	outputCost := float64(completionTokens) / 1_000_000 * m.OutputPrice
	return inputCost + outputCost
}

// TrackerConfig configures a Tracker's budgets. Zero means "no limit".
type TrackerConfig struct {
	DailyBudgetUSD   float64
	MonthlyBudgetUSD float64
}

// Status is a point-in-time read of the tracker's spend state.
type Status struct {
	DailySpend, DailyBudget, DailyRemaining, DailyPercent       float64
	MonthlySpend, MonthlyBudget, MonthlyRemaining, MonthlyPercent float64
	TotalSpend   float64
	RequestCount int64
	TokenCount   int64
}

// Tracker accumulates spend against optional daily/monthly budgets.
type Tracker struct {
	mu sync.RWMutex

	dailyBudget   float64
	monthlyBudget float64

	dailySpend   float64
	monthlySpend float64
	totalSpend   float64

	lastDayReset   time.Time
	lastMonthReset time.Time

	requestCount int64
	tokenCount   int64

	now func() time.Time
}

// NewTracker builds a Tracker from cfg.
func NewTracker(cfg TrackerConfig) *Tracker {
	now := time.Now()
	return &Tracker{
		dailyBudget:    cfg.DailyBudgetUSD,
		monthlyBudget:  cfg.MonthlyBudgetUSD,
		lastDayReset:   now,
		lastMonthReset: now,
		now:            time.Now,
	}
}

// Track records a completed request's usage and returns its cost.
func (t *Tracker) Track(m registry.Model, promptTokens, completionTokens int) float64 {
	c := Calculate(m, promptTokens, completionTokens)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.maybeResetPeriodsLocked()

	t.dailySpend += c
	t.monthlySpend += c
	t.totalSpend += c
	t.requestCount++
	t.tokenCount += int64(promptTokens + completionTokens)

	return c
}

// CheckBudget reports whether adding estimatedCost would exceed either
// configured budget.
func (t *Tracker) CheckBudget(estimatedCost float64) (allowed bool, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.maybeResetPeriodsLocked()

	if t.dailyBudget > 0 && t.dailySpend+estimatedCost > t.dailyBudget {
		return false, "daily budget exceeded"
	}
	if t.monthlyBudget > 0 && t.monthlySpend+estimatedCost > t.monthlyBudget {
		return false, "monthly budget exceeded"
	}
	return true, ""
}

// Status returns a snapshot of current spend.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.maybeResetPeriodsLocked()

	return Status{
		DailySpend: t.dailySpend, DailyBudget: t.dailyBudget,
		DailyRemaining: nonNegative(t.dailyBudget - t.dailySpend),
		DailyPercent:   safePercent(t.dailySpend, t.dailyBudget),

		MonthlySpend: t.monthlySpend, MonthlyBudget: t.monthlyBudget,
		MonthlyRemaining: nonNegative(t.monthlyBudget - t.monthlySpend),
		MonthlyPercent:   safePercent(t.monthlySpend, t.monthlyBudget),

		TotalSpend:   t.totalSpend,
		RequestCount: t.requestCount,
		TokenCount:   t.tokenCount,
	}
}

func (t *Tracker) maybeResetPeriodsLocked() {
	now := t.now()
	if now.YearDay() != t.lastDayReset.YearDay() || now.Year() != t.lastDayReset.Year() {
		t.dailySpend = 0
		t.lastDayReset = now
	}
	if now.Month() != t.lastMonthReset.Month() || now.Year() != t.lastMonthReset.Year() {
		t.monthlySpend = 0
		t.lastMonthReset = now
	}
}

func safePercent(spend, budget float64) float64 {
	if budget <= 0 {
		return 0
	}
	return (spend / budget) * 100
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// Snapshot is a point-in-time spend record, the unit of history /stats
// replays (spec.md's "statistics storage" is an external collaborator; this
// is only the in-process default).
type Snapshot struct {
	Timestamp    time.Time `json:"timestamp"`
	DailySpend   float64   `json:"daily_spend"`
	MonthlySpend float64   `json:"monthly_spend"`
	TotalSpend   float64   `json:"total_spend"`
	RequestCount int64     `json:"request_count"`
	TokenCount   int64     `json:"token_count"`
}

// History keeps a bounded, time-ordered log of Tracker snapshots.
type History struct {
	tracker *Tracker

	mu               sync.RWMutex
	snapshots        []Snapshot
	maxSize          int
	snapshotInterval time.Duration
	lastSnapshot     time.Time
	now              func() time.Time
}

// HistoryConfig configures a History. Zero values fall back to 1440
// snapshots at a 1-minute interval (24h of 1-minute resolution), matching
// the teacher's defaults.
type HistoryConfig struct {
	Tracker          *Tracker
	MaxSize          int
	SnapshotInterval time.Duration
}

// NewHistory builds a History wrapping cfg.Tracker.
func NewHistory(cfg HistoryConfig) *History {
	if cfg.MaxSize == 0 {
		cfg.MaxSize = 1440
	}
	if cfg.SnapshotInterval == 0 {
		cfg.SnapshotInterval = time.Minute
	}
	return &History{
		tracker:          cfg.Tracker,
		snapshots:        make([]Snapshot, 0, cfg.MaxSize),
		maxSize:          cfg.MaxSize,
		snapshotInterval: cfg.SnapshotInterval,
		now:              time.Now,
	}
}

// RecordSnapshot appends the tracker's current status as a snapshot, unless
// one was already taken within SnapshotInterval.
func (h *History) RecordSnapshot() {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	if now.Sub(h.lastSnapshot) < h.snapshotInterval {
		return
	}

	status := h.tracker.Status()
	h.snapshots = append(h.snapshots, Snapshot{
		Timestamp:    now,
		DailySpend:   status.DailySpend,
		MonthlySpend: status.MonthlySpend,
		TotalSpend:   status.TotalSpend,
		RequestCount: status.RequestCount,
		TokenCount:   status.TokenCount,
	})
	h.lastSnapshot = now

	if len(h.snapshots) > h.maxSize {
		h.snapshots = h.snapshots[len(h.snapshots)-h.maxSize:]
	}
}

// Since returns every snapshot at or after t.
func (h *History) Since(t time.Time) []Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Snapshot, 0)
	for _, s := range h.snapshots {
		if !s.Timestamp.Before(t) {
			out = append(out, s)
		}
	}
	return out
}
