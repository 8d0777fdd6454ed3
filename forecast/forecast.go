// Package forecast implements cost prediction and trend analysis over
// historical trace data, grounded field-for-field on cost_forecasting.py.
package forecast

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/nodeai/flowengine/observability"
)

// TraceLister is the read seam the forecaster needs from the observability
// layer; observability.Manager satisfies it.
type TraceLister interface {
	ListTraces(workflowID string, limit int) []*observability.Trace
}

// Forecaster predicts and analyzes costs from historical trace data.
type Forecaster struct {
	traces TraceLister
	clock  func() time.Time
}

// New constructs a Forecaster reading from traces.
func New(traces TraceLister) *Forecaster {
	return &Forecaster{traces: traces, clock: time.Now}
}

// CostRange holds the p25/p50/p75 forecast bounds.
type CostRange struct {
	P25 float64
	P50 float64
	P75 float64
}

// CostForecast is the result of ForecastCost.
type CostForecast struct {
	WorkflowID            string
	ExpectedQueries       int
	ForecastPeriodDays    int
	AvgCostPerQuery       float64
	MedianCostPerQuery    float64
	MinCostPerQuery       float64
	MaxCostPerQuery       float64
	StdDev                float64
	ForecastedTotalCost   float64
	ForecastedDailyCost   float64
	ForecastedMonthlyCost float64
	ForecastRange         CostRange
	Confidence            string
	SampleSize            int
	Message               string
}

// ForecastCost projects cost for expectedQueries over days, using up to
// 1000 historical traces for workflowID within the last 90 days, matching
// the original's default lookback window. user scopes the forecast to one
// caller's traces in a future multi-tenant lookup; the original accepts the
// same parameter on all three forecaster methods without ever forwarding it
// to its trace query, and this port carries the same unused-for-now contract
// rather than dropping the parameter.
func (f *Forecaster) ForecastCost(workflowID string, expectedQueries, days int, user string) CostForecast {
	_ = user
	traces := f.historicalTraces(workflowID, 90)
	base := CostForecast{WorkflowID: workflowID, ExpectedQueries: expectedQueries, ForecastPeriodDays: days}
	if len(traces) == 0 {
		base.Confidence = "none"
		base.Message = "no historical data available"
		return base
	}

	var costs []float64
	for _, t := range traces {
		if t.TotalCost > 0 {
			costs = append(costs, t.TotalCost)
		}
	}
	if len(costs) == 0 {
		base.Confidence = "none"
		base.SampleSize = len(traces)
		base.Message = "no cost data in historical traces"
		return base
	}

	avg := mean(costs)
	median := percentileSorted(sortedCopy(costs), 0.5)
	min, max := minMax(costs)
	std := stdev(costs)

	forecastedTotal := avg * float64(expectedQueries)
	var forecastedDaily float64
	if days > 0 {
		forecastedDaily = forecastedTotal / float64(days)
	}

	sorted := sortedCopy(costs)
	p25, p75 := median, median
	if len(sorted) >= 4 {
		p25 = sorted[len(sorted)/4]
		p75 = sorted[3*len(sorted)/4]
	}

	return CostForecast{
		WorkflowID:            workflowID,
		ExpectedQueries:       expectedQueries,
		ForecastPeriodDays:    days,
		AvgCostPerQuery:       avg,
		MedianCostPerQuery:    median,
		MinCostPerQuery:       min,
		MaxCostPerQuery:       max,
		StdDev:                std,
		ForecastedTotalCost:   forecastedTotal,
		ForecastedDailyCost:   forecastedDaily,
		ForecastedMonthlyCost: forecastedDaily * 30,
		ForecastRange: CostRange{
			P25: p25 * float64(expectedQueries),
			P50: median * float64(expectedQueries),
			P75: p75 * float64(expectedQueries),
		},
		Confidence: confidence(len(costs), std, avg),
		SampleSize: len(costs),
	}
}

// confidence classifies forecast reliability by sample size and the
// coefficient of variation (std/avg), matching _calculate_confidence.
func confidence(sampleSize int, stdDev, avgCost float64) string {
	switch {
	case sampleSize < 10:
		return "low"
	case sampleSize < 50:
		return "medium"
	case sampleSize < 100:
		if cv(stdDev, avgCost) > 0.5 {
			return "medium"
		}
		return "high"
	default:
		if cv(stdDev, avgCost) > 0.3 {
			return "medium"
		}
		return "high"
	}
}

func cv(stdDev, avgCost float64) float64 {
	if avgCost <= 0 {
		return math.Inf(1)
	}
	return stdDev / avgCost
}

// DailyCost is one day's aggregate in a trend analysis.
type DailyCost struct {
	Date       string
	AvgCost    float64
	QueryCount int
}

// WeeklyCost is one week's aggregate in a trend analysis.
type WeeklyCost struct {
	Week    string
	AvgCost float64
}

// CostTrend is the result of AnalyzeCostTrends.
type CostTrend struct {
	WorkflowID  string
	PeriodDays  int
	DailyCosts  []DailyCost
	WeeklyCosts []WeeklyCost
	Trend       string
	TotalQuer   int
	TotalCost   float64
	Message     string
}

// AnalyzeCostTrends buckets historical traces by day and week and
// classifies the trend by comparing the most recent 7 days against the
// preceding 7, matching analyze_cost_trends; fewer than 14 days of data
// yields "insufficient_data". user carries the same
// accepted-but-unforwarded scoping parameter as ForecastCost.
func (f *Forecaster) AnalyzeCostTrends(workflowID string, days int, user string) CostTrend {
	_ = user
	traces := f.historicalTraces(workflowID, days)
	if len(traces) == 0 {
		return CostTrend{WorkflowID: workflowID, PeriodDays: days, Trend: "insufficient_data", Message: "no historical data available"}
	}

	dailyCosts := make(map[string][]float64)
	var totalCost float64
	for _, t := range traces {
		totalCost += t.TotalCost
		if t.StartedAt.IsZero() || t.TotalCost <= 0 {
			continue
		}
		date := t.StartedAt.Format("2006-01-02")
		dailyCosts[date] = append(dailyCosts[date], t.TotalCost)
	}

	dailyAvg := make(map[string]float64, len(dailyCosts))
	for date, costs := range dailyCosts {
		dailyAvg[date] = mean(costs)
	}

	weeklyCosts := make(map[string][]float64)
	for date, avg := range dailyAvg {
		d, err := time.Parse("2006-01-02", date)
		if err != nil {
			continue
		}
		weekStart := d.AddDate(0, 0, -int(weekday(d)))
		year, week := weekStart.ISOWeek()
		key := isoWeekKey(year, week)
		weeklyCosts[key] = append(weeklyCosts[key], avg)
	}
	weeklyAvg := make(map[string]float64, len(weeklyCosts))
	for week, costs := range weeklyCosts {
		weeklyAvg[week] = mean(costs)
	}

	trend := "insufficient_data"
	dates := sortedKeys(dailyAvg)
	if len(dates) >= 14 {
		recent := dates[len(dates)-7:]
		older := dates[len(dates)-14 : len(dates)-7]
		recentAvg := meanOf(dailyAvg, recent)
		olderAvg := meanOf(dailyAvg, older)
		switch {
		case recentAvg > olderAvg*1.1:
			trend = "increasing"
		case recentAvg < olderAvg*0.9:
			trend = "decreasing"
		default:
			trend = "stable"
		}
	}

	result := CostTrend{
		WorkflowID: workflowID,
		PeriodDays: days,
		Trend:      trend,
		TotalQuer:  len(traces),
		TotalCost:  totalCost,
	}
	for _, date := range dates {
		result.DailyCosts = append(result.DailyCosts, DailyCost{Date: date, AvgCost: dailyAvg[date], QueryCount: len(dailyCosts[date])})
	}
	for _, week := range sortedKeys(weeklyAvg) {
		result.WeeklyCosts = append(result.WeeklyCosts, WeeklyCost{Week: week, AvgCost: weeklyAvg[week]})
	}
	return result
}

// SpanTypeBreakdown is one span type's share of cost in a breakdown.
type SpanTypeBreakdown struct {
	SpanType   string
	TotalCost  float64
	AvgCost    float64
	Count      int
	Percentage float64
}

// CostBreakdown is the result of GetCostBreakdown.
type CostBreakdown struct {
	WorkflowID  string
	PeriodDays  int
	Breakdown   map[string]SpanTypeBreakdown
	TotalCost   float64
	TotalQuer   int
}

// GetCostBreakdown aggregates cost by span type across historical traces,
// matching get_cost_breakdown. user carries the same accepted-but-unforwarded
// scoping parameter as ForecastCost.
func (f *Forecaster) GetCostBreakdown(workflowID string, days int, user string) CostBreakdown {
	_ = user
	traces := f.historicalTraces(workflowID, days)
	result := CostBreakdown{WorkflowID: workflowID, PeriodDays: days, Breakdown: map[string]SpanTypeBreakdown{}}
	if len(traces) == 0 {
		return result
	}

	spanCosts := make(map[string][]float64)
	var totalCost float64
	for _, t := range traces {
		totalCost += t.TotalCost
		for _, s := range t.Spans {
			if s.Cost > 0 {
				spanCosts[string(s.Type)] = append(spanCosts[string(s.Type)], s.Cost)
			}
		}
	}

	breakdown := make(map[string]SpanTypeBreakdown, len(spanCosts))
	for spanType, costs := range spanCosts {
		sum := sumOf(costs)
		pct := 0.0
		if totalCost > 0 {
			pct = sum / totalCost * 100
		}
		breakdown[spanType] = SpanTypeBreakdown{
			SpanType:   spanType,
			TotalCost:  sum,
			AvgCost:    mean(costs),
			Count:      len(costs),
			Percentage: pct,
		}
	}

	result.Breakdown = breakdown
	result.TotalCost = totalCost
	result.TotalQuer = len(traces)
	return result
}

// historicalTraces returns traces for workflowID started within the last
// days (0 means unbounded), capped at 1000 as in _get_historical_traces.
func (f *Forecaster) historicalTraces(workflowID string, days int) []*observability.Trace {
	traces := f.traces.ListTraces(workflowID, 1000)
	if days <= 0 {
		return traces
	}
	cutoff := f.clock().AddDate(0, 0, -days)
	out := traces[:0:0]
	for _, t := range traces {
		if !t.StartedAt.IsZero() && !t.StartedAt.Before(cutoff) {
			out = append(out, t)
		}
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return sumOf(xs) / float64(len(xs))
}

func sumOf(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum
}

func minMax(xs []float64) (min, max float64) {
	min, max = xs[0], xs[0]
	for _, x := range xs[1:] {
		if x < min {
			min = x
		}
		if x > max {
			max = x
		}
	}
	return min, max
}

// stdev computes the sample standard deviation (n-1 denominator), matching
// Python's statistics.stdev.
func stdev(xs []float64) float64 {
	if len(xs) <= 1 {
		return 0
	}
	m := mean(xs)
	var sumSq float64
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)-1))
}

func sortedCopy(xs []float64) []float64 {
	out := append([]float64(nil), xs...)
	sort.Float64s(out)
	return out
}

func percentileSorted(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	if len(sorted)%2 == 0 && p == 0.5 {
		mid := len(sorted) / 2
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[idx]
}

func weekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 6 // Sunday -> ISO weekday 7, offset 6 from Monday
	}
	return wd - 1
}

func isoWeekKey(year, week int) string {
	return strconv.Itoa(year) + "-W" + pad2(week)
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

func sortedKeys[M ~map[string]float64](m M) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func meanOf(m map[string]float64, keys []string) float64 {
	if len(keys) == 0 {
		return 0
	}
	var sum float64
	for _, k := range keys {
		sum += m[k]
	}
	return sum / float64(len(keys))
}
