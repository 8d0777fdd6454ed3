package ratelimit_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeai/flowengine/errs"
	"github.com/nodeai/flowengine/providers"
	"github.com/nodeai/flowengine/providers/ratelimit"
)

type fakeProvider struct {
	calls int
	err   error
}

func (f *fakeProvider) Invoke(_ context.Context, _ string, _ []providers.Message, _ float64, _ int) (providers.Result, error) {
	f.calls++
	return providers.Result{Content: "ok"}, f.err
}

func TestLimiter_WrapDelegatesAndCountsCalls(t *testing.T) {
	limiter := ratelimit.New(context.Background(), nil, "", 600000, 600000)
	fake := &fakeProvider{}
	wrapped := limiter.Wrap(fake)

	result, err := wrapped.Invoke(context.Background(), "claude-haiku-4", []providers.Message{{Role: providers.RoleUser, Content: "hi"}}, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Content)
	assert.Equal(t, 1, fake.calls)
}

func TestLimiter_ObservesRetryableErrorAsBackoffSignal(t *testing.T) {
	limiter := ratelimit.New(context.Background(), nil, "", 1000, 1000)
	fake := &fakeProvider{err: &errs.RetryableError{Cause: assert.AnError}}
	wrapped := limiter.Wrap(fake)

	_, err := wrapped.Invoke(context.Background(), "claude-haiku-4", []providers.Message{{Role: providers.RoleUser, Content: "hi"}}, 0, 100)
	require.Error(t, err)
	assert.Equal(t, 1, fake.calls)

	// The retryable error halved the budget to 500 tokens per minute, so a
	// second call estimated at 501 tokens exceeds the burst and is rejected
	// before it reaches the provider.
	_, err = wrapped.Invoke(context.Background(), "claude-haiku-4", []providers.Message{{Role: providers.RoleUser, Content: "hi"}}, 0, 100)
	require.Error(t, err)
	assert.Equal(t, 1, fake.calls)
}
