package generators

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"Viral-Card/server/internal/config"
	"Viral-Card/server/internal/interfaces"
	"Viral-Card/server/internal/models"
	"Viral-Card/server/internal/prompts"
	"Viral-Card/server/internal/wav"
)

// openAIVoices maps the prebuilt narrator voices to the closest OpenAI voices
var openAIVoices = map[models.Voice]openai.SpeechVoice{
	models.VoicePuck:   openai.VoiceEcho,
	models.VoiceCharon: openai.VoiceOnyx,
	models.VoiceKore:   openai.VoiceNova,
	models.VoiceFenrir: openai.SpeechVoice("ash"),
	models.VoiceZephyr: openai.VoiceShimmer,
}

// OpenAIClient implements interfaces.Generator on an OpenAI-compatible API
type OpenAIClient struct {
	client      *openai.Client
	textModel   string
	imageModel  string
	speechModel string
	tmpl        *prompts.TemplateEngine
	retry       retryPolicy
	log         *zap.Logger
}

// NewOpenAIClient creates the client. BaseURL points it at compatible gateways.
func NewOpenAIClient(cfg config.AIConfig, tmpl *prompts.TemplateEngine, retry retryPolicy, log *zap.Logger) *OpenAIClient {
	c := &OpenAIClient{
		textModel:   cfg.TextModel,
		imageModel:  cfg.ImageModel,
		speechModel: cfg.SpeechModel,
		tmpl:        tmpl,
		retry:       retry,
		log:         log.With(zap.String("backend", config.ProviderOpenAI)),
	}
	if cfg.APIKey == "" {
		c.log.Warn("no API key configured, generation disabled")
		return c
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	c.client = openai.NewClientWithConfig(clientCfg)
	return c
}

func (c *OpenAIClient) Configured() bool {
	return c.client != nil
}

func (c *OpenAIClient) GeneratePostContent(ctx context.Context, req *interfaces.PostContentRequest) (*interfaces.PostContent, error) {
	prompt := c.tmpl.MustRender(prompts.PostContent, prompts.Vars{"topic": postTopic(req.Topic)})

	var out interfaces.PostContent
	if err := c.chatJSON(ctx, "post_content", []openai.ChatCompletionMessage{userMessage(prompt)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *OpenAIClient) GenerateIdentity(ctx context.Context, req *interfaces.IdentityRequest) (*interfaces.Identity, error) {
	prompt := c.tmpl.MustRender(prompts.Identity, prompts.Vars{"gender": prompts.GenderHint(req.Gender)})

	var out interfaces.Identity
	if err := c.chatJSON(ctx, "identity", []openai.ChatCompletionMessage{userMessage(prompt)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *OpenAIClient) GenerateAvatar(ctx context.Context, req *interfaces.AvatarRequest) (*interfaces.Image, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	prompt := c.tmpl.MustRender(prompts.Avatar, prompts.Vars{
		"description": req.Description,
		"gender":      prompts.GenderHint(req.Gender),
	})

	resp, err := withRetry(ctx, c.retry, c.log, "avatar", func(ctx context.Context) (openai.ImageResponse, error) {
		return c.client.CreateImage(ctx, openai.ImageRequest{
			Prompt:         prompt,
			Model:          c.imageModel,
			N:              1,
			Size:           openai.CreateImageSize1024x1024,
			ResponseFormat: openai.CreateImageResponseFormatB64JSON,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("avatar: %w", err)
	}

	for _, d := range resp.Data {
		if d.B64JSON == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(d.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("avatar: %w: %v", ErrMalformedResponse, err)
		}
		return &interfaces.Image{Data: data, MIMEType: "image/png"}, nil
	}
	return nil, nil
}

func (c *OpenAIClient) GenerateStory(ctx context.Context, req *interfaces.StoryRequest) (*interfaces.Story, error) {
	prompt := c.tmpl.MustRender(prompts.Story, storyVars(req))

	var out interfaces.Story
	if err := c.chatJSON(ctx, "story", []openai.ChatCompletionMessage{userMessage(prompt)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SynthesizeSpeech requests raw pcm, which OpenAI emits as 24kHz s16le mono
func (c *OpenAIClient) SynthesizeSpeech(ctx context.Context, req *interfaces.SpeechRequest) (*interfaces.Speech, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	voice, ok := openAIVoices[voiceOrDefault(req.Voice)]
	if !ok {
		voice = openai.VoiceNova
	}

	pcm, err := withRetry(ctx, c.retry, c.log, "speech", func(ctx context.Context) ([]byte, error) {
		raw, err := c.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
			Model:          openai.SpeechModel(c.speechModel),
			Input:          req.Text,
			Voice:          voice,
			ResponseFormat: openai.SpeechResponseFormatPcm,
		})
		if err != nil {
			return nil, err
		}
		defer raw.Close()
		return io.ReadAll(raw)
	})
	if err != nil {
		return nil, fmt.Errorf("speech: %w", err)
	}
	if len(pcm) == 0 {
		return nil, ErrNoAudio
	}
	if len(pcm)%2 != 0 {
		pcm = pcm[:len(pcm)-1]
	}
	return &interfaces.Speech{PCM: pcm, SampleRate: wav.DefaultSampleRate}, nil
}

func (c *OpenAIClient) GenerateYouTubeMetadata(ctx context.Context, req *interfaces.MetadataRequest) (*models.YouTubeMetadata, error) {
	prompt := c.tmpl.MustRender(prompts.YouTubeMetadata, prompts.Vars{"story": req.StoryText})

	var out models.YouTubeMetadata
	if err := c.chatJSON(ctx, "youtube_metadata", []openai.ChatCompletionMessage{userMessage(prompt)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *OpenAIClient) ChatWithDirector(ctx context.Context, req *interfaces.DirectorRequest) (*interfaces.DirectorReply, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: c.tmpl.MustRender(prompts.DirectorSystem, directorVars(req)),
	})
	for _, m := range req.History {
		role := openai.ChatMessageRoleUser
		if m.Role == models.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Text})
	}
	messages = append(messages, userMessage(req.Message))

	var out interfaces.DirectorReply
	if err := c.chatJSON(ctx, "director", messages, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *OpenAIClient) chatJSON(ctx context.Context, op string, messages []openai.ChatCompletionMessage, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	resp, err := withRetry(ctx, c.retry, c.log, op, func(ctx context.Context) (openai.ChatCompletionResponse, error) {
		return c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    c.textModel,
			Messages: messages,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		})
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("%s: %w", op, ErrEmptyResponse)
	}
	if err := decodeJSON(resp.Choices[0].Message.Content, out); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func userMessage(content string) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: content}
}
