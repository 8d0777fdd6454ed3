// Package bedrock adapts the AWS Bedrock Converse API to the
// providers.Provider contract. Grounded on features/model/bedrock/client.go's
// RuntimeClient seam and system/conversational message split, narrowed to
// this engine's single Invoke contract rather than the teacher's full
// tool-use/streaming/ledger-replay surface.
package bedrock

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"

	"github.com/nodeai/flowengine/errs"
	"github.com/nodeai/flowengine/providers"
	"github.com/nodeai/flowengine/retry"
)

// RuntimeClient mirrors the subset of the AWS Bedrock runtime client this
// adapter needs, so callers can pass either the real client or a fake.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Client implements providers.Provider over the Bedrock Converse API.
type Client struct {
	runtime RuntimeClient
}

// New builds a Client over an existing RuntimeClient.
func New(runtime RuntimeClient) (*Client, error) {
	if runtime == nil {
		return nil, errors.New("bedrock: runtime client is required")
	}
	return &Client{runtime: runtime}, nil
}

var _ providers.Provider = (*Client)(nil)

// Invoke issues a Converse call and classifies any SDK error through the
// retryable/non-retryable taxonomy.
func (c *Client) Invoke(ctx context.Context, model string, messages []providers.Message, temperature float64, maxTokens int) (providers.Result, error) {
	if model == "" {
		return providers.Result{}, &errs.NonRetryableError{Cause: errors.New("bedrock: model is required")}
	}
	if len(messages) == 0 {
		return providers.Result{}, &errs.NonRetryableError{Cause: errors.New("bedrock: messages are required")}
	}

	var system []brtypes.SystemContentBlock
	var conversation []brtypes.Message
	for _, m := range messages {
		switch m.Role {
		case providers.RoleSystem:
			system = append(system, &brtypes.SystemContentBlockMemberText{Value: m.Content})
		case providers.RoleUser:
			conversation = append(conversation, brtypes.Message{
				Role:    brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: m.Content}},
			})
		case providers.RoleAssistant:
			conversation = append(conversation, brtypes.Message{
				Role:    brtypes.ConversationRoleAssistant,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: m.Content}},
			})
		default:
			return providers.Result{}, &errs.NonRetryableError{Cause: errors.New("bedrock: unsupported message role")}
		}
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(model),
		Messages: conversation,
		System:   system,
	}
	cfg := &brtypes.InferenceConfiguration{}
	if temperature > 0 {
		t := float32(temperature)
		cfg.Temperature = &t
	}
	if maxTokens > 0 {
		mt := int32(maxTokens)
		cfg.MaxTokens = &mt
	}
	input.InferenceConfig = cfg

	out, err := c.runtime.Converse(ctx, input)
	if err != nil {
		return providers.Result{}, classifyError(err)
	}

	var content string
	if msgOutput, ok := out.Output.(*brtypes.ConverseOutputMemberMessage); ok {
		for _, block := range msgOutput.Value.Content {
			if textBlock, ok := block.(*brtypes.ContentBlockMemberText); ok {
				content += textBlock.Value
			}
		}
	}

	result := providers.Result{Content: content, FinishReason: string(out.StopReason)}
	if out.Usage != nil {
		if out.Usage.InputTokens != nil {
			result.InputTokens = int(*out.Usage.InputTokens)
		}
		if out.Usage.OutputTokens != nil {
			result.OutputTokens = int(*out.Usage.OutputTokens)
		}
	}
	return result, nil
}

func classifyError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "ServiceUnavailableException", "InternalServerException", "ModelTimeoutException":
			return &errs.RetryableError{Cause: err}
		case "ValidationException", "AccessDeniedException", "ResourceNotFoundException":
			return &errs.NonRetryableError{Cause: err}
		}
	}
	return retry.ClassifyProviderMessage(err.Error(), err)
}
