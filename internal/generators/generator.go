package generators

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"Viral-Card/server/internal/config"
	"Viral-Card/server/internal/interfaces"
	"Viral-Card/server/internal/models"
	"Viral-Card/server/internal/prompts"
)

var (
	// ErrNoAudio means the speech call succeeded but carried no audio part
	ErrNoAudio = errors.New("no audio produced")
	// ErrEmptyResponse means the service answered with nothing usable
	ErrEmptyResponse = errors.New("empty response")
	// ErrMalformedResponse means the structured answer could not be decoded
	ErrMalformedResponse = errors.New("malformed response")
	// ErrNotConfigured is returned by every call of a client without credential
	ErrNotConfigured = errors.New("generator not configured")
)

// NoAudioError carries the text the service returned instead of audio
type NoAudioError struct {
	Text string
}

func (e *NoAudioError) Error() string {
	return fmt.Sprintf("%s: model returned text instead: %q", ErrNoAudio, e.Text)
}

func (e *NoAudioError) Is(target error) bool {
	return target == ErrNoAudio
}

// New builds the generator selected by cfg.Provider. A missing credential
// yields a client whose Configured reports false.
func New(cfg config.AIConfig, log *zap.Logger) (interfaces.Generator, error) {
	if log == nil {
		log = zap.NewNop()
	}
	tmpl := prompts.NewTemplateEngine()
	retry := retryPolicy{attempts: cfg.MaxRetries, delay: cfg.RetryDelay}

	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg, tmpl, retry, log), nil
	case config.ProviderGemini, "":
		return NewGeminiClient(cfg, tmpl, retry, log)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func speechText(tmpl *prompts.TemplateEngine, text string) string {
	return tmpl.MustRender(prompts.Speech, prompts.Vars{"text": text})
}

func directorVars(req *interfaces.DirectorRequest) prompts.Vars {
	return prompts.Vars{
		"username": req.Snapshot.Username,
		"content":  req.Snapshot.Content,
		"theme":    string(req.Snapshot.Theme),
		"message":  req.Message,
	}
}

func storyVars(req *interfaces.StoryRequest) prompts.Vars {
	return prompts.Vars{
		"topic":  req.Topic,
		"length": prompts.LengthHint(req.Length),
	}
}

func postTopic(topic string) string {
	if topic == "" {
		return "drama"
	}
	return topic
}

// voiceOrDefault guards against an empty voice on direct calls
func voiceOrDefault(v models.Voice) models.Voice {
	if v == "" {
		return models.DefaultVoice
	}
	return v
}
