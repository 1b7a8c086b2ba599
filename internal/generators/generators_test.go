package generators

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"Viral-Card/server/internal/config"
	"Viral-Card/server/internal/interfaces"
)

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
		want    interfaces.Story
	}{
		{name: "plain", input: `{"title":"T","story":"S"}`, want: interfaces.Story{Title: "T", Story: "S"}},
		{name: "fenced", input: "```json\n{\"title\":\"T\",\"story\":\"S\"}\n```", want: interfaces.Story{Title: "T", Story: "S"}},
		{name: "empty", input: "  ", wantErr: ErrEmptyResponse},
		{name: "garbage", input: "not json", wantErr: ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got interfaces.Story
			err := decodeJSON(tt.input, &got)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.Canceled, false},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), false},
		{errors.New("dial tcp: connection refused"), true},
		{errors.New("Error 429, RESOURCE_EXHAUSTED"), true},
		{errors.New("invalid argument"), false},
		{&openai.APIError{HTTPStatusCode: 503}, true},
		{&openai.APIError{HTTPStatusCode: 400}, false},
		{&openai.RequestError{HTTPStatusCode: 429}, true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, isRetryableError(tt.err), "%v", tt.err)
	}
}

func TestWithRetry(t *testing.T) {
	p := retryPolicy{attempts: 3, delay: time.Millisecond}
	log := zap.NewNop()

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		out, err := withRetry(context.Background(), p, log, "op", func(context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, errors.New("timeout")
			}
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, out)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on permanent error", func(t *testing.T) {
		calls := 0
		_, err := withRetry(context.Background(), p, log, "op", func(context.Context) (int, error) {
			calls++
			return 0, errors.New("bad request")
		})
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after attempts", func(t *testing.T) {
		calls := 0
		_, err := withRetry(context.Background(), p, log, "op", func(context.Context) (int, error) {
			calls++
			return 0, errors.New("rate limit")
		})
		assert.ErrorContains(t, err, "failed after 3 attempts")
		assert.Equal(t, 3, calls)
	})

	t.Run("honors cancellation between attempts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		_, err := withRetry(ctx, retryPolicy{attempts: 3, delay: time.Hour}, log, "op", func(context.Context) (int, error) {
			cancel()
			return 0, errors.New("timeout")
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestNoAudioError(t *testing.T) {
	err := fmt.Errorf("speech: %w", &NoAudioError{Text: "I cannot read that"})
	assert.ErrorIs(t, err, ErrNoAudio)
	assert.Contains(t, err.Error(), "I cannot read that")
}

func TestNewWithoutCredential(t *testing.T) {
	for _, provider := range []string{config.ProviderGemini, config.ProviderOpenAI} {
		t.Run(provider, func(t *testing.T) {
			gen, err := New(config.AIConfig{Provider: provider}, zap.NewNop())
			require.NoError(t, err)
			assert.False(t, gen.Configured())

			_, err = gen.GenerateStory(context.Background(), &interfaces.StoryRequest{Topic: "x"})
			assert.ErrorIs(t, err, ErrNotConfigured)
			_, err = gen.SynthesizeSpeech(context.Background(), &interfaces.SpeechRequest{Text: "x"})
			assert.ErrorIs(t, err, ErrNotConfigured)
		})
	}

	_, err := New(config.AIConfig{Provider: "other"}, zap.NewNop())
	assert.Error(t, err)
}
