// Package anthropic adapts the Anthropic Claude Messages API to the
// providers.Provider contract. Grounded on
// features/model/anthropic/client.go's SDK-call idiom (MessagesClient
// seam, option.WithAPIKey construction), narrowed to this engine's single
// Invoke contract rather than the teacher's full tool-use/streaming surface.
package anthropic

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/nodeai/flowengine/errs"
	"github.com/nodeai/flowengine/providers"
	"github.com/nodeai/flowengine/retry"
)

// MessagesClient captures the subset of the Anthropic SDK used by the
// adapter, so tests can substitute a fake without a live API key.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Client implements providers.Provider over the Anthropic Messages API.
type Client struct {
	msg MessagesClient
}

// New builds a Client over an existing MessagesClient, typically
// &sdk.NewClient(...).Messages.
func New(msg MessagesClient) (*Client, error) {
	if msg == nil {
		return nil, errors.New("anthropic: messages client is required")
	}
	return &Client{msg: msg}, nil
}

// NewFromAPIKey constructs a Client using the SDK's default HTTP transport.
func NewFromAPIKey(apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&c.Messages)
}

var _ providers.Provider = (*Client)(nil)

// Invoke issues a non-streaming Messages.New call and classifies any SDK
// error through the retryable/non-retryable taxonomy.
func (c *Client) Invoke(ctx context.Context, model string, messages []providers.Message, temperature float64, maxTokens int) (providers.Result, error) {
	if model == "" {
		return providers.Result{}, &errs.NonRetryableError{Cause: errors.New("anthropic: model is required")}
	}
	if len(messages) == 0 {
		return providers.Result{}, &errs.NonRetryableError{Cause: errors.New("anthropic: messages are required")}
	}
	if maxTokens <= 0 {
		return providers.Result{}, &errs.NonRetryableError{Cause: errors.New("anthropic: max_tokens must be positive")}
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(model),
		MaxTokens: int64(maxTokens),
	}
	if temperature > 0 {
		params.Temperature = sdk.Float(temperature)
	}

	var system []sdk.TextBlockParam
	var conversation []sdk.MessageParam
	for _, m := range messages {
		switch m.Role {
		case providers.RoleSystem:
			system = append(system, sdk.TextBlockParam{Text: m.Content})
		case providers.RoleUser:
			conversation = append(conversation, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		case providers.RoleAssistant:
			conversation = append(conversation, sdk.NewAssistantMessage(sdk.NewTextBlock(m.Content)))
		default:
			return providers.Result{}, &errs.NonRetryableError{Cause: fmt.Errorf("anthropic: unsupported message role %q", m.Role)}
		}
	}
	if len(system) > 0 {
		params.System = system
	}
	params.Messages = conversation

	msg, err := c.msg.New(ctx, params)
	if err != nil {
		return providers.Result{}, classifyError(err)
	}

	var content string
	for _, block := range msg.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	return providers.Result{
		Content:      content,
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
		FinishReason: string(msg.StopReason),
	}, nil
}

func classifyError(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return retry.ClassifyHTTPStatus(apiErr.StatusCode, err)
	}
	return retry.ClassifyProviderMessage(err.Error(), err)
}
