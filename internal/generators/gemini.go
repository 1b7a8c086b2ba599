package generators

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"Viral-Card/server/internal/config"
	"Viral-Card/server/internal/interfaces"
	"Viral-Card/server/internal/models"
	"Viral-Card/server/internal/prompts"
	"Viral-Card/server/internal/wav"
)

// GeminiClient implements interfaces.Generator on the Gemini API
type GeminiClient struct {
	client      *genai.Client
	textModel   string
	imageModel  string
	speechModel string
	tmpl        *prompts.TemplateEngine
	retry       retryPolicy
	log         *zap.Logger
}

// NewGeminiClient creates the client. Without an API key it returns an
// unconfigured client instead of failing.
func NewGeminiClient(cfg config.AIConfig, tmpl *prompts.TemplateEngine, retry retryPolicy, log *zap.Logger) (*GeminiClient, error) {
	c := &GeminiClient{
		textModel:   cfg.TextModel,
		imageModel:  cfg.ImageModel,
		speechModel: cfg.SpeechModel,
		tmpl:        tmpl,
		retry:       retry,
		log:         log.With(zap.String("backend", config.ProviderGemini)),
	}
	if cfg.APIKey == "" {
		c.log.Warn("no API key configured, generation disabled")
		return c, nil
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	c.client = client
	return c, nil
}

func (c *GeminiClient) Configured() bool {
	return c.client != nil
}

func (c *GeminiClient) GeneratePostContent(ctx context.Context, req *interfaces.PostContentRequest) (*interfaces.PostContent, error) {
	prompt := c.tmpl.MustRender(prompts.PostContent, prompts.Vars{"topic": postTopic(req.Topic)})
	schema := objectSchema(
		[]string{"handle", "content", "viewCount", "likeCount", "commentCount"},
		"handle", "content", "viewCount", "likeCount", "commentCount",
	)

	var out interfaces.PostContent
	if err := c.generateJSON(ctx, "post_content", genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *GeminiClient) GenerateIdentity(ctx context.Context, req *interfaces.IdentityRequest) (*interfaces.Identity, error) {
	prompt := c.tmpl.MustRender(prompts.Identity, prompts.Vars{"gender": prompts.GenderHint(req.Gender)})
	schema := objectSchema(
		[]string{"username", "handle", "avatarDescription"},
		"username", "handle", "avatarDescription",
	)

	var out interfaces.Identity
	if err := c.generateJSON(ctx, "identity", genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *GeminiClient) GenerateAvatar(ctx context.Context, req *interfaces.AvatarRequest) (*interfaces.Image, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	prompt := c.tmpl.MustRender(prompts.Avatar, prompts.Vars{
		"description": req.Description,
		"gender":      prompts.GenderHint(req.Gender),
	})

	resp, err := withRetry(ctx, c.retry, c.log, "avatar", func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		return c.client.Models.GenerateContent(ctx, c.imageModel, genai.Text(prompt), nil)
	})
	if err != nil {
		return nil, fmt.Errorf("avatar: %w", err)
	}

	for _, part := range firstParts(resp) {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return &interfaces.Image{Data: part.InlineData.Data, MIMEType: part.InlineData.MIMEType}, nil
		}
	}
	return nil, nil
}

func (c *GeminiClient) GenerateStory(ctx context.Context, req *interfaces.StoryRequest) (*interfaces.Story, error) {
	prompt := c.tmpl.MustRender(prompts.Story, storyVars(req))
	schema := objectSchema([]string{"title", "story"}, "title", "story")

	var out interfaces.Story
	if err := c.generateJSON(ctx, "story", genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *GeminiClient) SynthesizeSpeech(ctx context.Context, req *interfaces.SpeechRequest) (*interfaces.Speech, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: string(voiceOrDefault(req.Voice))},
			},
		},
	}
	contents := genai.Text(speechText(c.tmpl, req.Text))

	resp, err := withRetry(ctx, c.retry, c.log, "speech", func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		return c.client.Models.GenerateContent(ctx, c.speechModel, contents, cfg)
	})
	if err != nil {
		return nil, fmt.Errorf("speech: %w", err)
	}

	parts := firstParts(resp)
	if len(parts) == 0 {
		return nil, ErrNoAudio
	}
	for _, part := range parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			rate := wav.SampleRateFromMIME(part.InlineData.MIMEType, wav.DefaultSampleRate)
			c.log.Debug("speech synthesized",
				zap.String("voice", string(req.Voice)),
				zap.Duration("duration", wav.Duration(len(part.InlineData.Data), rate)))
			return &interfaces.Speech{PCM: part.InlineData.Data, SampleRate: rate}, nil
		}
	}
	if parts[0].Text != "" {
		return nil, &NoAudioError{Text: parts[0].Text}
	}
	return nil, ErrNoAudio
}

func (c *GeminiClient) GenerateYouTubeMetadata(ctx context.Context, req *interfaces.MetadataRequest) (*models.YouTubeMetadata, error) {
	prompt := c.tmpl.MustRender(prompts.YouTubeMetadata, prompts.Vars{"story": req.StoryText})
	schema := objectSchema([]string{"title", "description"}, "title", "description")

	var out models.YouTubeMetadata
	if err := c.generateJSON(ctx, "youtube_metadata", genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *GeminiClient) ChatWithDirector(ctx context.Context, req *interfaces.DirectorRequest) (*interfaces.DirectorReply, error) {
	system := c.tmpl.MustRender(prompts.DirectorSystem, directorVars(req))

	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, m := range req.History {
		var role genai.Role = genai.RoleUser
		if m.Role == models.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Text, role))
	}
	contents = append(contents, genai.NewContentFromText(req.Message, genai.RoleUser))

	updates := objectSchema(nil,
		"username", "handle", "content", "storyText", "theme",
		"accentColor", "viewCount", "likeCount", "commentCount",
	)
	updates.Properties["isVerified"] = &genai.Schema{Type: genai.TypeBoolean}

	schema := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"message":             {Type: genai.TypeString},
			"updates":             updates,
			"shouldGenerateAudio": {Type: genai.TypeBoolean},
		},
		Required: []string{"message"},
	}

	var out interfaces.DirectorReply
	if err := c.generateJSON(ctx, "director", contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    schema,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *GeminiClient) generateJSON(ctx context.Context, op string, contents []*genai.Content, cfg *genai.GenerateContentConfig, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	resp, err := withRetry(ctx, c.retry, c.log, op, func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		return c.client.Models.GenerateContent(ctx, c.textModel, contents, cfg)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := decodeJSON(resp.Text(), out); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// objectSchema builds an object schema of string properties
func objectSchema(required []string, props ...string) *genai.Schema {
	s := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(props)),
		Required:   required,
	}
	for _, p := range props {
		s.Properties[p] = &genai.Schema{Type: genai.TypeString}
	}
	return s
}

func firstParts(resp *genai.GenerateContentResponse) []*genai.Part {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	return resp.Candidates[0].Content.Parts
}
