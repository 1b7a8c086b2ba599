package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"Viral-Card/server/internal/assets"
	"Viral-Card/server/internal/generators"
	"Viral-Card/server/internal/interfaces"
	"Viral-Card/server/internal/models"
	"Viral-Card/server/internal/prompts"
	"Viral-Card/server/internal/wav"
)

// Topics are the post-content topic contexts, one picked per generation
var Topics = []string{
	"A shocking relationship update",
	"A funny programming joke",
	"A controversial food opinion",
	"A wholesome pet story",
	"An unexpected life hack",
	"A hot take on a trending movie",
	"An embarrassing workplace moment",
}

const reasonGeneration = "generation failed"

var previewTemplates = prompts.NewTemplateEngine()

func (e *CardEngine) randomTopic() string {
	return Topics[e.intn(len(Topics))]
}

// GeneratePostContent merges a generated handle, title and metrics
func (e *CardEngine) GeneratePostContent(ctx context.Context) FlowResult {
	return e.runFlow(ctx, FlowContent, func(ctx context.Context, log *zap.Logger) (models.Patch, string) {
		topic := e.pickTopic()
		out, err := e.gen.GeneratePostContent(ctx, &interfaces.PostContentRequest{Topic: topic})
		if err != nil {
			log.Warn("post content generation failed", zap.String("topic", topic), zap.Error(err))
			return models.Patch{}, reasonGeneration
		}
		if out == nil || out.Handle == "" || out.Content == "" || out.ViewCount == "" || out.LikeCount == "" || out.CommentCount == "" {
			log.Warn("incomplete post content", zap.Any("response", out))
			return models.Patch{}, "incomplete response"
		}
		return models.Patch{
			Handle:       models.String(out.Handle),
			Content:      models.String(out.Content),
			ViewCount:    models.String(out.ViewCount),
			LikeCount:    models.String(out.LikeCount),
			CommentCount: models.String(out.CommentCount),
		}, ""
	})
}

// GenerateIdentity merges a new username and handle, and the avatar only
// when an image came back
func (e *CardEngine) GenerateIdentity(ctx context.Context, gender models.Gender) FlowResult {
	return e.runFlow(ctx, FlowIdentity, func(ctx context.Context, log *zap.Logger) (models.Patch, string) {
		id, err := e.gen.GenerateIdentity(ctx, &interfaces.IdentityRequest{Gender: gender})
		if err != nil {
			log.Warn("identity generation failed", zap.Error(err))
			return models.Patch{}, reasonGeneration
		}
		if id == nil || id.Username == "" || id.Handle == "" {
			log.Warn("incomplete identity", zap.Any("response", id))
			return models.Patch{}, "incomplete response"
		}

		patch := models.Patch{
			Username: models.String(id.Username),
			Handle:   models.String(id.Handle),
		}

		img, err := e.gen.GenerateAvatar(ctx, &interfaces.AvatarRequest{Description: id.AvatarDescription, Gender: gender})
		switch {
		case err != nil:
			log.Warn("avatar generation failed, keeping previous avatar", zap.Error(err))
		case img == nil || len(img.Data) == 0:
			log.Info("no avatar image returned, keeping previous avatar")
		default:
			asset := e.store.Register(img.Data, img.MIMEType, imageExtension(img.MIMEType))
			patch.AvatarURL = models.String(asset.Handle)
		}
		return patch, ""
	})
}

// GenerateStory replaces the title and narrative and, in the same merge,
// invalidates both audio handles and the video metadata
func (e *CardEngine) GenerateStory(ctx context.Context, topic string, length models.StoryLength) FlowResult {
	if length == "" {
		length = models.DefaultStoryLength
	}
	return e.runFlow(ctx, FlowStory, func(ctx context.Context, log *zap.Logger) (models.Patch, string) {
		out, err := e.gen.GenerateStory(ctx, &interfaces.StoryRequest{Topic: topic, Length: length})
		if err != nil {
			log.Warn("story generation failed", zap.Error(err))
			return models.Patch{}, reasonGeneration
		}
		if out == nil || out.Title == "" || out.Story == "" {
			log.Warn("incomplete story", zap.Any("response", out))
			return models.Patch{}, "incomplete response"
		}

		patch := models.InvalidateDerived()
		patch.Content = models.String(out.Title)
		patch.StoryText = models.String(out.Title + "\n\n" + out.Story)
		return patch, ""
	})
}

// GenerateSpeech narrates the title and the narrative concurrently. Either
// half may fail without blocking the other; whatever succeeded is merged.
func (e *CardEngine) GenerateSpeech(ctx context.Context, voice models.Voice) FlowResult {
	if voice == "" {
		voice = e.Voice()
	}

	return e.runFlow(ctx, FlowSpeech, func(ctx context.Context, log *zap.Logger) (models.Patch, string) {
		e.SelectVoice(voice)
		card := e.Card()
		log = log.With(zap.String("voice", string(voice)))

		var intro, main string
		g, gctx := errgroup.WithContext(ctx)
		if card.Content != "" {
			g.Go(func() error {
				intro = e.synthesize(gctx, log.With(zap.String("part", "intro")), card.Content, voice)
				return nil
			})
		}
		if card.StoryText != "" {
			g.Go(func() error {
				main = e.synthesize(gctx, log.With(zap.String("part", "main")), card.StoryText, voice)
				return nil
			})
		}
		_ = g.Wait()

		if intro == "" && main == "" {
			return models.Patch{}, "no audio produced"
		}
		patch := models.Patch{ShowAudioBadge: models.Bool(true)}
		if intro != "" {
			patch.IntroAudioURL = models.Present(intro)
		}
		if main != "" {
			patch.MainAudioURL = models.Present(main)
		}
		return patch, ""
	})
}

// synthesize runs one speech request through the codec and registers the
// container. It returns "" when no audio was produced.
func (e *CardEngine) synthesize(ctx context.Context, log *zap.Logger, text string, voice models.Voice) string {
	speech, err := e.gen.SynthesizeSpeech(ctx, &interfaces.SpeechRequest{Text: text, Voice: voice})
	if err != nil {
		var noAudio *generators.NoAudioError
		if errors.As(err, &noAudio) {
			log.Warn("model returned text instead of audio", zap.String("text", noAudio.Text))
		} else {
			log.Warn("speech synthesis failed", zap.Error(err))
		}
		return ""
	}
	asset, err := e.registerAudio(speech)
	if err != nil {
		log.Warn("audio encoding failed", zap.Error(err))
		return ""
	}
	log.Debug("audio registered", zap.String("asset", asset.ID), zap.Int("bytes", asset.Size))
	return asset.Handle
}

func (e *CardEngine) registerAudio(speech *interfaces.Speech) (assets.Asset, error) {
	if speech == nil || len(speech.PCM) == 0 {
		return assets.Asset{}, generators.ErrNoAudio
	}
	rate := speech.SampleRate
	if rate == 0 {
		rate = wav.DefaultSampleRate
	}
	container, err := wav.Encode(speech.PCM, rate)
	if err != nil {
		return assets.Asset{}, err
	}
	return e.store.Register(container, wav.MIMEType, wav.Extension), nil
}

// GenerateYouTubeMetadata requires a narrative; without one it resolves
// without a remote call
func (e *CardEngine) GenerateYouTubeMetadata(ctx context.Context) FlowResult {
	return e.runFlow(ctx, FlowMetadata, func(ctx context.Context, log *zap.Logger) (models.Patch, string) {
		story := e.Card().StoryText
		if strings.TrimSpace(story) == "" {
			return models.Patch{}, "narrative is empty"
		}
		md, err := e.gen.GenerateYouTubeMetadata(ctx, &interfaces.MetadataRequest{StoryText: story})
		if err != nil {
			log.Warn("metadata generation failed", zap.Error(err))
			return models.Patch{}, reasonGeneration
		}
		if md == nil || md.Title == "" {
			log.Warn("incomplete metadata", zap.Any("response", md))
			return models.Patch{}, "incomplete response"
		}
		return models.Patch{YouTubeMetadata: models.Present(*md)}, ""
	})
}

// PreviewVoice synthesizes a short greeting in voice and returns the
// playable asset. It never touches the card and has no busy flag.
func (e *CardEngine) PreviewVoice(ctx context.Context, voice models.Voice) (assets.Asset, error) {
	if voice == "" {
		voice = e.Voice()
	}
	if !e.gen.Configured() {
		return assets.Asset{}, generators.ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	text := previewTemplates.MustRender(prompts.VoicePreview, prompts.Vars{"voice": string(voice)})
	speech, err := e.gen.SynthesizeSpeech(ctx, &interfaces.SpeechRequest{Text: text, Voice: voice})
	if err != nil {
		e.log.Warn("voice preview failed", zap.String("voice", string(voice)), zap.Error(err))
		return assets.Asset{}, err
	}
	return e.registerAudio(speech)
}

// RandomizeMetrics merges plausible engagement numbers as a direct edit:
// likes are 5-10% of views and comments 2-6% of likes
func (e *CardEngine) RandomizeMetrics() (models.Card, error) {
	views := e.intn(900000) + 100000
	likes := int(float64(views) * (0.05 + e.randFloat()*0.05))
	comments := int(float64(likes) * (0.02 + e.randFloat()*0.04))

	return e.Merge(models.Patch{
		ViewCount:    models.String(FormatCount(views)),
		LikeCount:    models.String(FormatCount(likes)),
		CommentCount: models.String(FormatCount(comments)),
	})
}

// FormatCount renders n with one decimal and a K or M suffix
func FormatCount(n int) string {
	switch {
	case n >= 1000000:
		return fmt.Sprintf("%.1fM", float64(n)/1000000)
	case n >= 1000:
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

func imageExtension(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}
