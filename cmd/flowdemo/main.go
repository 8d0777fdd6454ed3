// Command flowdemo wires two node types into a two-step graph and runs it
// through the in-memory Executor, printing the resulting trace and node
// outputs. It exercises registry registration, observability span
// lifecycle, pricing-backed cost estimation, and stream event delivery
// end to end without any external provider credentials.
package main

import (
	"context"
	"fmt"

	"github.com/nodeai/flowengine/engine"
	"github.com/nodeai/flowengine/node"
	"github.com/nodeai/flowengine/observability"
	"github.com/nodeai/flowengine/pricing"
	"github.com/nodeai/flowengine/retry"
	"github.com/nodeai/flowengine/stream"
)

// queryInputNode passes its configured query straight through as output,
// standing in for the graph's entry point.
type queryInputNode struct {
	node.Base
}

func (queryInputNode) Type() string { return "query_input" }

func (queryInputNode) DescribeSchema() node.Schema {
	return node.Schema{
		Properties: map[string]node.PropertySchema{
			"query": {Type: "string", Description: "the user's query"},
		},
		Required: []string{"query"},
	}
}

func (queryInputNode) Metadata() node.Metadata {
	return node.Metadata{Type: "query_input", Name: "Query Input", Category: "io"}
}

func (queryInputNode) Execute(_ context.Context, _, config map[string]any) (map[string]any, error) {
	return map[string]any{"query": config["query"]}, nil
}

// echoLLMNode simulates a completion by echoing its input query, reporting
// a fixed token count so cost estimation has something to multiply against.
type echoLLMNode struct {
	node.Base
	catalog *pricing.Catalog
}

func (echoLLMNode) Type() string { return "echo_llm" }

func (echoLLMNode) DescribeSchema() node.Schema {
	return node.Schema{
		Properties: map[string]node.PropertySchema{
			"provider": {Type: "string", Default: "anthropic"},
			"model":    {Type: "string", Default: "claude-haiku-4"},
		},
	}
}

func (echoLLMNode) Metadata() node.Metadata {
	return node.Metadata{Type: "echo_llm", Name: "Echo LLM", Category: "llm"}
}

func (n echoLLMNode) Execute(_ context.Context, inputs, config map[string]any) (map[string]any, error) {
	query, _ := inputs["query"].(string)
	return map[string]any{
		"response":      fmt.Sprintf("you said: %s", query),
		"input_tokens":  len(query),
		"output_tokens": len(query) + 10,
	}, nil
}

func (n echoLLMNode) EstimateCost(_ map[string]any, config map[string]any) float64 {
	provider, _ := config["provider"].(string)
	model, _ := config["model"].(string)
	cost, err := n.catalog.EstimateCost(provider, model, 100, 50)
	if err != nil {
		return 0
	}
	return cost
}

func main() {
	ctx := context.Background()

	catalog := pricing.NewDefaultCatalog()
	registry := node.NewRegistry(nil)
	registry.Register("query_input", func() node.Node { return queryInputNode{} }, queryInputNode{}.Metadata())
	registry.Register("echo_llm", func() node.Node { return echoLLMNode{catalog: catalog} }, echoLLMNode{}.Metadata())

	obs := observability.NewManager(observability.WithMaxTraces(100))
	sink := stream.NewMemorySink()
	defer sink.Close(ctx)

	exec := engine.NewExecutor(registry, obs, sink, nil, retry.DefaultPolicy())

	graph := engine.Graph{Nodes: []engine.NodeInvocation{
		{ID: "input", NodeType: "query_input", Config: map[string]any{"query": "what is flowengine?"}, SpanType: observability.SpanQueryInput},
		{ID: "llm", NodeType: "echo_llm", DependsOn: []string{"input"}, Config: map[string]any{"provider": "anthropic", "model": "claude-haiku-4"}, SpanType: observability.SpanLLM},
	}}

	result, err := exec.Run(ctx, engine.RunRequest{
		WorkflowID:  "flowdemo",
		ExecutionID: "flowdemo-run-1",
		Query:       "what is flowengine?",
		Graph:       graph,
	})
	if err != nil {
		panic(err)
	}

	fmt.Println("trace:", result.TraceID)
	fmt.Println("response:", result.Outputs["llm"]["response"])

	trace, _ := obs.GetTrace(result.TraceID)
	fmt.Println("trace status:", trace.Status)
	fmt.Printf("total cost: $%.6f\n", trace.TotalCost)
}
