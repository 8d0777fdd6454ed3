// Package openai adapts the OpenAI Chat Completions API to the
// providers.Provider contract, using the official github.com/openai/openai-go
// SDK per this module's go.mod (the teacher's own openai adapter imports the
// unofficial sashabaranov/go-openai despite declaring openai-go as a
// dependency; this adapter follows the declared dependency instead).
package openai

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/nodeai/flowengine/errs"
	"github.com/nodeai/flowengine/providers"
	"github.com/nodeai/flowengine/retry"
)

// ChatClient captures the subset of the OpenAI SDK used by the adapter.
type ChatClient interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Client implements providers.Provider over OpenAI Chat Completions.
type Client struct {
	chat ChatClient
}

// New builds a Client over an existing ChatClient, typically
// &openai.NewClient(...).Chat.Completions.
func New(chat ChatClient) (*Client, error) {
	if chat == nil {
		return nil, errors.New("openai: chat client is required")
	}
	return &Client{chat: chat}, nil
}

// NewFromAPIKey constructs a Client using the SDK's default HTTP transport.
func NewFromAPIKey(apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	c := openai.NewClient(option.WithAPIKey(apiKey))
	return New(&c.Chat.Completions)
}

var _ providers.Provider = (*Client)(nil)

// Invoke issues a Chat Completions call and classifies any SDK error
// through the retryable/non-retryable taxonomy.
func (c *Client) Invoke(ctx context.Context, model string, messages []providers.Message, temperature float64, maxTokens int) (providers.Result, error) {
	if model == "" {
		return providers.Result{}, &errs.NonRetryableError{Cause: errors.New("openai: model is required")}
	}
	if len(messages) == 0 {
		return providers.Result{}, &errs.NonRetryableError{Cause: errors.New("openai: messages are required")}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: encodeMessages(messages),
	}
	if temperature > 0 {
		params.Temperature = openai.Float(temperature)
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}

	resp, err := c.chat.New(ctx, params)
	if err != nil {
		return providers.Result{}, classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return providers.Result{}, &errs.NonRetryableError{Cause: errors.New("openai: response had no choices")}
	}

	choice := resp.Choices[0]
	return providers.Result{
		Content:      choice.Message.Content,
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
		FinishReason: string(choice.FinishReason),
	}, nil
}

func encodeMessages(messages []providers.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case providers.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case providers.RoleUser:
			out = append(out, openai.UserMessage(m.Content))
		case providers.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		}
	}
	return out
}

func classifyError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return retry.ClassifyHTTPStatus(apiErr.StatusCode, err)
	}
	return retry.ClassifyProviderMessage(err.Error(), err)
}
