// Package eval implements the span evaluator: a pure, stateless function
// dispatched on span type that scores a completed span's quality and
// performance. Grounded field-for-field on span_evaluator.py.
package eval

import (
	"github.com/nodeai/flowengine/observability"
)

// Evaluate dispatches on span.Type and returns an evaluation map. The
// caller typically calls observability.Manager.AddSpanEvaluation with the
// result before CompleteTrace.
func Evaluate(span *observability.Span) map[string]any {
	switch span.Type {
	case observability.SpanEmbedding:
		return evaluateEmbedding(span)
	case observability.SpanVectorSearch:
		return evaluateVectorSearch(span)
	case observability.SpanReranking:
		return evaluateReranking(span)
	case observability.SpanLLM:
		return evaluateLLM(span)
	case observability.SpanChunking:
		return evaluateChunking(span)
	default:
		return evaluateDefault(span)
	}
}

func durationSeconds(span *observability.Span) float64 {
	if span.DurationMs <= 0 {
		return 0
	}
	return float64(span.DurationMs) / 1000.0
}

func withWarnings(result map[string]any, warnings []string) map[string]any {
	if len(warnings) > 0 {
		result["warnings"] = warnings
	}
	return result
}

func evaluateEmbedding(span *observability.Span) map[string]any {
	count := countFromOutputs(span, "count")
	var embeddingsPerSecond float64
	if d := durationSeconds(span); d > 0 && count > 0 {
		embeddingsPerSecond = float64(count) / d
	}
	var costPerEmbedding float64
	if count > 0 {
		costPerEmbedding = span.Cost / float64(count)
	}

	result := map[string]any{
		"embeddings_per_second": embeddingsPerSecond,
		"cost_per_embedding":    costPerEmbedding,
	}
	var warnings []string
	if span.DurationMs > 1000 {
		warnings = append(warnings, "duration exceeds 1000ms")
	}
	if costPerEmbedding > 0.001 {
		warnings = append(warnings, "cost per embedding exceeds 0.001")
	}
	return withWarnings(result, warnings)
}

func evaluateVectorSearch(span *observability.Span) map[string]any {
	scores := scoresFromOutputs(span)
	var avg, min, max float64
	resultsCount := len(scores)
	if resultsCount > 0 {
		min, max = scores[0], scores[0]
		var sum float64
		for _, s := range scores {
			sum += s
			if s < min {
				min = s
			}
			if s > max {
				max = s
			}
		}
		avg = sum / float64(resultsCount)
	}

	result := map[string]any{
		"avg_score":     avg,
		"min_score":     min,
		"max_score":     max,
		"results_count": resultsCount,
	}
	var warnings []string
	if avg < 0.5 {
		warnings = append(warnings, "average score below 0.5")
	}
	if resultsCount == 0 {
		warnings = append(warnings, "no results returned")
	}
	if span.DurationMs > 500 {
		warnings = append(warnings, "duration exceeds 500ms")
	}
	return withWarnings(result, warnings)
}

func evaluateReranking(span *observability.Span) map[string]any {
	original := floatFromOutputs(span, "avg_original_score")
	reranked := floatFromOutputs(span, "avg_rerank_score")
	improvement := reranked - original
	var improvementPct float64
	if original != 0 {
		improvementPct = improvement / original * 100
	}

	result := map[string]any{
		"avg_original_score":     original,
		"avg_rerank_score":       reranked,
		"improvement":            improvement,
		"improvement_percentage": improvementPct,
	}
	var warnings []string
	if improvement < 0 {
		warnings = append(warnings, "reranking decreased average score")
	}
	if span.DurationMs > 1000 {
		warnings = append(warnings, "duration exceeds 1000ms")
	}
	return withWarnings(result, warnings)
}

func evaluateLLM(span *observability.Span) map[string]any {
	d := durationSeconds(span)
	var tokensPerSecond float64
	if d > 0 {
		tokensPerSecond = float64(span.Tokens.Total) / d
	}
	var costPerToken, costPerInputToken, costPerOutputToken float64
	if span.Tokens.Total > 0 {
		costPerToken = span.Cost / float64(span.Tokens.Total)
	}
	if span.Tokens.Input > 0 {
		costPerInputToken = span.Cost / float64(span.Tokens.Input)
	}
	if span.Tokens.Output > 0 {
		costPerOutputToken = span.Cost / float64(span.Tokens.Output)
	}

	result := map[string]any{
		"tokens_per_second":     tokensPerSecond,
		"cost_per_token":        costPerToken,
		"cost_per_input_token":  costPerInputToken,
		"cost_per_output_token": costPerOutputToken,
	}
	var warnings []string
	if span.DurationMs > 5000 {
		warnings = append(warnings, "duration exceeds 5000ms")
	}
	if tokensPerSecond < 10 {
		warnings = append(warnings, "tokens per second below 10")
	}
	if span.Cost > 0.01 {
		warnings = append(warnings, "cost exceeds 0.01")
	}
	if remaining, ok := span.APILimits["remaining"]; ok {
		if n, ok := toFloat(remaining); ok && n < 100 {
			warnings = append(warnings, "api rate limit remaining below 100")
		}
	}
	return withWarnings(result, warnings)
}

func evaluateChunking(span *observability.Span) map[string]any {
	chunkSize := intFromOutputs(span, "chunk_size")
	overlap := intFromOutputs(span, "overlap")
	var overlapPct float64
	if chunkSize > 0 {
		overlapPct = float64(overlap) / float64(chunkSize) * 100
	}

	result := map[string]any{"overlap_percentage": overlapPct}
	var warnings []string
	if chunkSize < 256 {
		warnings = append(warnings, "chunk size below 256")
	}
	if chunkSize > 2048 {
		warnings = append(warnings, "chunk size above 2048")
	}
	if overlap == 0 && chunkSize >= 512 {
		warnings = append(warnings, "no overlap for chunk size >= 512")
	}
	return withWarnings(result, warnings)
}

func evaluateDefault(span *observability.Span) map[string]any {
	return map[string]any{
		"span_type":   string(span.Type),
		"status":      string(span.Status),
		"duration_ms": span.DurationMs,
		"cost":        span.Cost,
	}
}

func countFromOutputs(span *observability.Span, key string) int {
	return intFromOutputs(span, key)
}

func intFromOutputs(span *observability.Span, key string) int {
	if span.Outputs == nil {
		return 0
	}
	n, _ := toFloat(span.Outputs[key])
	return int(n)
}

func floatFromOutputs(span *observability.Span, key string) float64 {
	if span.Outputs == nil {
		return 0
	}
	n, _ := toFloat(span.Outputs[key])
	return n
}

func scoresFromOutputs(span *observability.Span) []float64 {
	if span.Outputs == nil {
		return nil
	}
	raw, ok := span.Outputs["scores"].([]any)
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(raw))
	for _, v := range raw {
		if n, ok := toFloat(v); ok {
			out = append(out, n)
		}
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
