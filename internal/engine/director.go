package engine

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"Viral-Card/server/internal/interfaces"
	"Viral-Card/server/internal/models"
)

// SendDirectorMessage runs one conversational turn. The user message and
// the director's answer (or the fallback apology) are appended to the
// transcript, the returned updates are merged as one patch, and speech is
// regenerated afterwards when the director asks for it.
func (e *CardEngine) SendDirectorMessage(ctx context.Context, text string) FlowResult {
	text = strings.TrimSpace(text)
	if text == "" {
		return FlowResult{Flow: FlowDirector, Outcome: OutcomeNoop, Reason: "empty message"}
	}

	var wantAudio bool
	result := e.runFlow(ctx, FlowDirector, func(ctx context.Context, log *zap.Logger) (models.Patch, string) {
		history := e.Transcript()
		card := e.Card()
		e.appendMessage(models.RoleUser, text)

		reply, err := e.gen.ChatWithDirector(ctx, &interfaces.DirectorRequest{
			History: history,
			Message: text,
			Snapshot: interfaces.DirectorSnapshot{
				Username: card.Username,
				Content:  card.Content,
				Theme:    card.Theme,
			},
		})
		if err != nil || reply == nil || strings.TrimSpace(reply.Message) == "" {
			log.Warn("director turn failed", zap.Error(err))
			e.appendMessage(models.RoleAssistant, models.DirectorFallback)
			return models.Patch{}, reasonGeneration
		}

		e.appendMessage(models.RoleAssistant, reply.Message)
		wantAudio = reply.ShouldGenerateAudio
		return sanitizeDirectorPatch(reply.Updates, log), ""
	})

	if result.Outcome == OutcomeUpdated && wantAudio {
		voice := e.Voice()
		jobCtx := context.WithoutCancel(ctx)
		e.log.Info("director requested narration", zap.String("voice", string(voice)))
		e.dispatcher.Dispatch(func() {
			res := e.GenerateSpeech(jobCtx, voice)
			e.log.Debug("director narration finished", zap.String("outcome", string(res.Outcome)))
		})
	}
	return result
}

// sanitizeDirectorPatch keeps what the director may change directly. Audio
// handles and video metadata can only be cleared, never set, and an unknown
// theme is dropped instead of failing the whole turn.
func sanitizeDirectorPatch(p models.Patch, log *zap.Logger) models.Patch {
	if p.IntroAudioURL.Set && p.IntroAudioURL.Valid {
		log.Warn("dropping director introAudioUrl value")
		p.IntroAudioURL = models.Absent[string]()
	}
	if p.MainAudioURL.Set && p.MainAudioURL.Valid {
		log.Warn("dropping director mainAudioUrl value")
		p.MainAudioURL = models.Absent[string]()
	}
	if p.YouTubeMetadata.Set && p.YouTubeMetadata.Valid {
		log.Warn("dropping director youtubeMetadata value")
		p.YouTubeMetadata = models.Absent[models.YouTubeMetadata]()
	}
	if p.Theme != nil && !p.Theme.Valid() {
		log.Warn("dropping invalid director theme", zap.String("theme", string(*p.Theme)))
		p.Theme = nil
	}
	return p
}
