package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"Viral-Card/server/internal/assets"
	"Viral-Card/server/internal/models"
	"Viral-Card/server/internal/wav"
)

var (
	// ErrNothingToExport means the card has no narrative audio yet
	ErrNothingToExport = errors.New("no narrative audio to export")
	// ErrInvalidImage means the rendered card was not a decodable PNG
	ErrInvalidImage = errors.New("could not download image")
)

// ImageExportNotice is shown to the user when image export fails
const ImageExportNotice = "Could not download image. Please try again."

const (
	audioExportPrefix = "story-audio"
	imageExportPrefix = "social-post"
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// Recorder persists export events
type Recorder interface {
	Record(ctx context.Context, rec *models.ExportRecord) error
}

// WithRecorder enables the export ledger
func WithRecorder(r Recorder) Option {
	return func(e *CardEngine) { e.recorder = r }
}

// Export describes a downloadable artifact
type Export struct {
	Filename string       `json:"filename"`
	Asset    assets.Asset `json:"asset"`
}

// ExportAudio prepares the narrative audio as a download named
// story-audio-<ms>.wav
func (e *CardEngine) ExportAudio(ctx context.Context) (Export, error) {
	handle := e.Card().MainAudioURL
	if handle == nil || *handle == "" {
		return Export{}, ErrNothingToExport
	}
	asset, _, err := e.store.Lookup(*handle)
	if err != nil {
		return Export{}, fmt.Errorf("failed to resolve narrative audio: %w", err)
	}

	exp := Export{Filename: assets.DownloadName(audioExportPrefix, wav.Extension, e.now()), Asset: asset}
	e.record(ctx, models.ExportAudio, exp)
	return exp, nil
}

// ExportImage registers a rasterized card as social-post-<ms>.png. Anything
// that is not a decodable PNG is rejected with ErrInvalidImage.
func (e *CardEngine) ExportImage(ctx context.Context, data []byte) (Export, error) {
	if !bytes.HasPrefix(data, pngSignature) {
		return Export{}, ErrInvalidImage
	}
	if _, err := png.DecodeConfig(bytes.NewReader(data)); err != nil {
		e.log.Warn("rejected rendered image", zap.Error(err))
		return Export{}, ErrInvalidImage
	}

	asset := e.store.Register(data, "image/png", ".png")
	exp := Export{Filename: assets.DownloadName(imageExportPrefix, ".png", e.now()), Asset: asset}
	e.record(ctx, models.ExportImage, exp)
	return exp, nil
}

func (e *CardEngine) record(ctx context.Context, kind models.ExportKind, exp Export) {
	if e.recorder == nil {
		return
	}
	rec := &models.ExportRecord{
		ID:        uuid.NewString(),
		SessionID: e.sessionID,
		Kind:      kind,
		Filename:  exp.Filename,
		Handle:    exp.Asset.Handle,
		Bytes:     int64(exp.Asset.Size),
		CreatedAt: e.now(),
	}
	if err := e.recorder.Record(ctx, rec); err != nil {
		e.log.Warn("failed to record export", zap.String("kind", string(kind)), zap.Error(err))
	}
}
