package eval_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nodeai/flowengine/eval"
	"github.com/nodeai/flowengine/observability"
)

func TestEvaluate_Embedding(t *testing.T) {
	s := &observability.Span{
		Type:       observability.SpanEmbedding,
		DurationMs: 200,
		Cost:       0.0004,
		Outputs:    map[string]any{"count": 10},
	}
	result := eval.Evaluate(s)
	assert.InDelta(t, 50.0, result["embeddings_per_second"], 0.001)
	assert.InDelta(t, 0.00004, result["cost_per_embedding"], 1e-9)
	assert.NotContains(t, result, "warnings")
}

func TestEvaluate_Embedding_WarnsOnSlowAndExpensive(t *testing.T) {
	s := &observability.Span{
		Type:       observability.SpanEmbedding,
		DurationMs: 2000,
		Cost:       0.1,
		Outputs:    map[string]any{"count": 1},
	}
	result := eval.Evaluate(s)
	assert.Contains(t, result, "warnings")
	warnings := result["warnings"].([]string)
	assert.Len(t, warnings, 2)
}

func TestEvaluate_VectorSearch(t *testing.T) {
	s := &observability.Span{
		Type:       observability.SpanVectorSearch,
		DurationMs: 100,
		Outputs:    map[string]any{"scores": []any{0.9, 0.8, 0.95}},
	}
	result := eval.Evaluate(s)
	assert.InDelta(t, 0.883, result["avg_score"], 0.01)
	assert.Equal(t, 0.8, result["min_score"])
	assert.Equal(t, 0.95, result["max_score"])
	assert.Equal(t, 3, result["results_count"])
	assert.NotContains(t, result, "warnings")
}

func TestEvaluate_VectorSearch_WarnsOnNoResults(t *testing.T) {
	s := &observability.Span{Type: observability.SpanVectorSearch, Outputs: map[string]any{}}
	result := eval.Evaluate(s)
	warnings := result["warnings"].([]string)
	assert.Contains(t, warnings, "no results returned")
	assert.Contains(t, warnings, "average score below 0.5")
}

func TestEvaluate_Reranking_WarnsOnNegativeImprovement(t *testing.T) {
	s := &observability.Span{
		Type:       observability.SpanReranking,
		DurationMs: 100,
		Outputs:    map[string]any{"avg_original_score": 0.8, "avg_rerank_score": 0.6},
	}
	result := eval.Evaluate(s)
	assert.InDelta(t, -0.2, result["improvement"], 0.001)
	warnings := result["warnings"].([]string)
	assert.Contains(t, warnings, "reranking decreased average score")
}

func TestEvaluate_LLM(t *testing.T) {
	s := &observability.Span{
		Type:       observability.SpanLLM,
		DurationMs: 2000,
		Cost:       0.005,
		Tokens:     observability.TokenUsage{Input: 100, Output: 100, Total: 200},
		APILimits:  map[string]any{"remaining": 50},
	}
	result := eval.Evaluate(s)
	assert.InDelta(t, 100.0, result["tokens_per_second"], 0.001)
	warnings := result["warnings"].([]string)
	assert.Contains(t, warnings, "api rate limit remaining below 100")
}

func TestEvaluate_Chunking(t *testing.T) {
	s := &observability.Span{
		Type:    observability.SpanChunking,
		Outputs: map[string]any{"chunk_size": 512, "overlap": 0},
	}
	result := eval.Evaluate(s)
	assert.Equal(t, 0.0, result["overlap_percentage"])
	warnings := result["warnings"].([]string)
	assert.Contains(t, warnings, "no overlap for chunk size >= 512")
}

func TestEvaluate_Default(t *testing.T) {
	s := &observability.Span{Type: observability.SpanQueryInput, Status: observability.SpanCompleted, DurationMs: 5}
	result := eval.Evaluate(s)
	assert.Equal(t, "query_input", result["span_type"])
	assert.Equal(t, "completed", result["status"])
}
