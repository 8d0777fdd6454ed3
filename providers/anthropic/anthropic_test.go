package anthropic_test

import (
	"context"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeai/flowengine/errs"
	"github.com/nodeai/flowengine/providers"
	"github.com/nodeai/flowengine/providers/anthropic"
)

type fakeMessages struct {
	resp *sdk.Message
	err  error
}

func (f fakeMessages) New(context.Context, sdk.MessageNewParams, ...option.RequestOption) (*sdk.Message, error) {
	return f.resp, f.err
}

func TestInvoke_ReturnsContentAndUsage(t *testing.T) {
	resp := &sdk.Message{
		Content: []sdk.ContentBlockUnion{{Type: "text", Text: "hello"}},
		Usage:   sdk.Usage{InputTokens: 10, OutputTokens: 5},
	}
	c, err := anthropic.New(fakeMessages{resp: resp})
	require.NoError(t, err)

	result, err := c.Invoke(context.Background(), "claude-sonnet-4", []providers.Message{
		{Role: providers.RoleUser, Content: "hi"},
	}, 0.5, 100)
	require.NoError(t, err)
	assert.Equal(t, "hello", result.Content)
	assert.Equal(t, 10, result.InputTokens)
	assert.Equal(t, 5, result.OutputTokens)
}

func TestInvoke_RejectsEmptyMessages(t *testing.T) {
	c, err := anthropic.New(fakeMessages{})
	require.NoError(t, err)

	_, err = c.Invoke(context.Background(), "claude-sonnet-4", nil, 0, 100)
	require.Error(t, err)
	var nonRetryable *errs.NonRetryableError
	require.ErrorAs(t, err, &nonRetryable)
}
