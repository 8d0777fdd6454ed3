package bedrock_test

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeai/flowengine/errs"
	"github.com/nodeai/flowengine/providers"
	"github.com/nodeai/flowengine/providers/bedrock"
)

type fakeRuntime struct {
	out *bedrockruntime.ConverseOutput
	err error
}

func (f fakeRuntime) Converse(context.Context, *bedrockruntime.ConverseInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	return f.out, f.err
}

func TestInvoke_ReturnsContentAndUsage(t *testing.T) {
	inputTokens := int32(20)
	outputTokens := int32(8)
	out := &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{
			Value: brtypes.Message{Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: "hi there"}}},
		},
		Usage:      &brtypes.TokenUsage{InputTokens: &inputTokens, OutputTokens: &outputTokens},
		StopReason: brtypes.StopReasonEndTurn,
	}
	c, err := bedrock.New(fakeRuntime{out: out})
	require.NoError(t, err)

	result, err := c.Invoke(context.Background(), "anthropic.claude-3-5-sonnet", []providers.Message{
		{Role: providers.RoleUser, Content: "hi"},
	}, 0.2, 100)
	require.NoError(t, err)
	assert.Equal(t, "hi there", result.Content)
	assert.Equal(t, 20, result.InputTokens)
	assert.Equal(t, 8, result.OutputTokens)
}

func TestInvoke_RejectsEmptyMessages(t *testing.T) {
	c, err := bedrock.New(fakeRuntime{})
	require.NoError(t, err)

	_, err = c.Invoke(context.Background(), "anthropic.claude-3-5-sonnet", nil, 0, 100)
	require.Error(t, err)
	var nonRetryable *errs.NonRetryableError
	require.ErrorAs(t, err, &nonRetryable)
}
