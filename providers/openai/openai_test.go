package openai_test

import (
	"context"
	"testing"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeai/flowengine/errs"
	"github.com/nodeai/flowengine/providers"
	"github.com/nodeai/flowengine/providers/openai"
)

type fakeChat struct {
	resp *oai.ChatCompletion
	err  error
}

func (f fakeChat) New(context.Context, oai.ChatCompletionNewParams, ...option.RequestOption) (*oai.ChatCompletion, error) {
	return f.resp, f.err
}

func TestInvoke_ReturnsContentAndUsage(t *testing.T) {
	resp := &oai.ChatCompletion{
		Choices: []oai.ChatCompletionChoice{
			{Message: oai.ChatCompletionMessage{Content: "hello"}, FinishReason: "stop"},
		},
		Usage: oai.CompletionUsage{PromptTokens: 12, CompletionTokens: 4},
	}
	c, err := openai.New(fakeChat{resp: resp})
	require.NoError(t, err)

	result, err := c.Invoke(context.Background(), "gpt-4o", []providers.Message{
		{Role: providers.RoleUser, Content: "hi"},
	}, 0.7, 200)
	require.NoError(t, err)
	assert.Equal(t, "hello", result.Content)
	assert.Equal(t, 12, result.InputTokens)
	assert.Equal(t, 4, result.OutputTokens)
}

func TestInvoke_RejectsEmptyModel(t *testing.T) {
	c, err := openai.New(fakeChat{})
	require.NoError(t, err)

	_, err = c.Invoke(context.Background(), "", []providers.Message{{Role: providers.RoleUser, Content: "hi"}}, 0, 100)
	require.Error(t, err)
	var nonRetryable *errs.NonRetryableError
	require.ErrorAs(t, err, &nonRetryable)
}
