package recognition

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ErrBudgetExceeded is returned when the daily or monthly spend limit is reached.
var ErrBudgetExceeded = errors.New("budget exceeded")

// DefaultIdentifier is the budget bucket used when a caller has none.
const DefaultIdentifier = "default"

// Approximate cost per call in USD.
var modelCosts = map[string]float64{
	"gpt-4-vision-preview":   0.03,
	"claude-3-opus-20240229": 0.025,
	"fallback":               0.01,
}

const defaultModelCost = 0.02

// ModelCost returns the estimated cost of one call to model.
func ModelCost(model string) float64 {
	if c, ok := modelCosts[model]; ok {
		return c
	}
	return defaultModelCost
}

// UsageStats reports spend for one identifier.
type UsageStats struct {
	DailyCost        float64 `json:"daily_cost"`
	MonthlyCost      float64 `json:"monthly_cost"`
	DailyRequests    int     `json:"daily_requests"`
	EstimatedMonthly float64 `json:"estimated_monthly"`
	DailyLimit       float64 `json:"daily_limit"`
	MonthlyLimit     float64 `json:"monthly_limit"`
}

type usage struct {
	cost     float64
	requests int
}

// CostTracker accumulates estimated model spend per identifier per day and
// per month, in memory.
type CostTracker struct {
	mu           sync.Mutex
	daily        map[string]usage
	monthly      map[string]usage
	dailyLimit   float64
	monthlyLimit float64
	logger       *slog.Logger
	now          func() time.Time
}

// NewCostTracker creates a tracker with the given USD limits.
func NewCostTracker(dailyLimit, monthlyLimit float64, logger *slog.Logger) *CostTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &CostTracker{
		daily:        make(map[string]usage),
		monthly:      make(map[string]usage),
		dailyLimit:   dailyLimit,
		monthlyLimit: monthlyLimit,
		logger:       logger,
		now:          time.Now,
	}
}

func (t *CostTracker) keys(identifier string) (day, month string) {
	if identifier == "" {
		identifier = DefaultIdentifier
	}
	now := t.now()
	return identifier + ":" + now.Format(time.DateOnly), identifier + ":" + now.Format("2006-01")
}

// Record adds one call to model and returns its estimated cost.
func (t *CostTracker) Record(model, identifier string) float64 {
	cost := ModelCost(model)
	day, month := t.keys(identifier)

	t.mu.Lock()
	d := t.daily[day]
	d.cost += cost
	d.requests++
	t.daily[day] = d
	m := t.monthly[month]
	m.cost += cost
	m.requests++
	t.monthly[month] = m
	t.mu.Unlock()

	t.logger.Info("API usage recorded",
		slog.String("model", model),
		slog.Float64("cost_usd", cost))
	return cost
}

// Usage returns today's and this month's spend for identifier.
func (t *CostTracker) Usage(identifier string) UsageStats {
	day, month := t.keys(identifier)

	t.mu.Lock()
	d, m := t.daily[day], t.monthly[month]
	t.mu.Unlock()

	return UsageStats{
		DailyCost:        d.cost,
		MonthlyCost:      m.cost,
		DailyRequests:    d.requests,
		EstimatedMonthly: d.cost * 30,
		DailyLimit:       t.dailyLimit,
		MonthlyLimit:     t.monthlyLimit,
	}
}

// CheckBudget returns ErrBudgetExceeded once spend reaches either limit.
// A non-positive limit disables that check.
func (t *CostTracker) CheckBudget(identifier string) error {
	stats := t.Usage(identifier)
	if t.dailyLimit > 0 && stats.DailyCost >= t.dailyLimit {
		return fmt.Errorf("%w: daily limit of $%.2f exceeded", ErrBudgetExceeded, t.dailyLimit)
	}
	if t.monthlyLimit > 0 && stats.MonthlyCost >= t.monthlyLimit {
		return fmt.Errorf("%w: monthly limit of $%.2f exceeded", ErrBudgetExceeded, t.monthlyLimit)
	}
	return nil
}

// Prune drops entries for past days and months.
func (t *CostTracker) Prune() {
	day, month := t.keys("")
	daySuffix := day[len(DefaultIdentifier):]
	monthSuffix := month[len(DefaultIdentifier):]

	t.mu.Lock()
	defer t.mu.Unlock()
	for k := range t.daily {
		if !strings.HasSuffix(k, daySuffix) {
			delete(t.daily, k)
		}
	}
	for k := range t.monthly {
		if !strings.HasSuffix(k, monthSuffix) {
			delete(t.monthly, k)
		}
	}
}
