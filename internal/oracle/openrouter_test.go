package oracle

import (
	"context"
	"errors"
	"testing"

	"github.com/revrost/go-openrouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCompleter struct {
	reply    string
	err      error
	noChoice bool
	requests []openrouter.ChatCompletionRequest
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, req openrouter.ChatCompletionRequest) (openrouter.ChatCompletionResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return openrouter.ChatCompletionResponse{}, f.err
	}
	if f.noChoice {
		return openrouter.ChatCompletionResponse{}, nil
	}
	return openrouter.ChatCompletionResponse{
		Choices: []openrouter.ChatCompletionChoice{{
			Message: openrouter.ChatCompletionMessage{
				Content: openrouter.Content{Text: f.reply},
			},
		}},
	}, nil
}

func TestOpenRouterExtractTriples(t *testing.T) {
	t.Parallel()

	fake := &fakeCompleter{reply: `{"triples":[{"head":"MIT","relation":"OFFERS","tail":"CS","confidence":0.93}]}`}
	o := newOpenRouter(fake, OpenRouterConfig{Model: "test/model"}, zap.NewNop())

	got, err := o.ExtractTriples(context.Background(), "MIT offers CS.", "MIT", "https://mit.edu/programs")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "CS", got[0].Tail)

	require.Len(t, fake.requests, 1)
	req := fake.requests[0]
	assert.Equal(t, "test/model", req.Model)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, openrouter.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.Contains(t, req.Messages[1].Content.Text, "School context: MIT")
	require.NotNil(t, req.ResponseFormat)
	assert.Equal(t, openrouter.ChatCompletionResponseFormatTypeJSONObject, req.ResponseFormat.Type)
}

func TestOpenRouterErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	failing := newOpenRouter(&fakeCompleter{err: errors.New("boom")}, OpenRouterConfig{}, nil)
	_, err := failing.ExtractTriples(ctx, "text", "", "")
	require.ErrorContains(t, err, "boom")

	empty := newOpenRouter(&fakeCompleter{noChoice: true}, OpenRouterConfig{}, nil)
	_, err = empty.ExtractTriples(ctx, "text", "", "")
	require.ErrorContains(t, err, "no choices")

	garbled := newOpenRouter(&fakeCompleter{reply: "sorry, no JSON today"}, OpenRouterConfig{}, nil)
	_, err = garbled.ExtractTriples(ctx, "text", "", "")
	require.Error(t, err)
}

func TestOpenRouterSkipsBlankText(t *testing.T) {
	t.Parallel()

	fake := &fakeCompleter{}
	o := newOpenRouter(fake, OpenRouterConfig{}, nil)
	got, err := o.ExtractTriples(context.Background(), " \n", "", "")
	require.NoError(t, err)
	require.Empty(t, got)
	require.Empty(t, fake.requests)
	require.Equal(t, DefaultModel, o.Model())
}

func TestNewOpenRouterRequiresKey(t *testing.T) {
	t.Parallel()

	_, err := NewOpenRouter(OpenRouterConfig{}, nil)
	require.ErrorIs(t, err, ErrMissingAPIKey)

	o, err := NewOpenRouter(OpenRouterConfig{APIKey: "sk-test"}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, o)
}
