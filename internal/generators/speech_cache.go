package generators

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"Viral-Card/server/internal/interfaces"
	"Viral-Card/server/internal/models"
	"Viral-Card/server/internal/storage"
	"Viral-Card/server/internal/wav"
)

const speechKeyPrefix = "speech:"

// BytesCache is the subset of storage.RedisStore the speech cache needs
type BytesCache interface {
	GetBytes(ctx context.Context, key string) ([]byte, error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// SpeechCacheStats holds cache counters
type SpeechCacheStats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Errors  int64   `json:"errors"`
	HitRate float64 `json:"hit_rate"`
}

// CachedSpeech wraps a Generator and caches synthesized speech. Cache
// failures are logged and fall through to the wrapped generator.
type CachedSpeech struct {
	interfaces.Generator

	cache  BytesCache
	ttl    time.Duration
	log    *zap.Logger
	hits   atomic.Int64
	misses atomic.Int64
	errs   atomic.Int64
}

func NewCachedSpeech(gen interfaces.Generator, cache BytesCache, ttl time.Duration, log *zap.Logger) *CachedSpeech {
	return &CachedSpeech{
		Generator: gen,
		cache:     cache,
		ttl:       ttl,
		log:       log.With(zap.String("component", "speech_cache")),
	}
}

// SpeechCacheKey is md5(voice|text), so identical narrations share an entry
func SpeechCacheKey(voice models.Voice, text string) string {
	sum := md5.Sum([]byte(string(voice) + "|" + text))
	return speechKeyPrefix + hex.EncodeToString(sum[:])
}

func (c *CachedSpeech) SynthesizeSpeech(ctx context.Context, req *interfaces.SpeechRequest) (*interfaces.Speech, error) {
	if !c.Configured() {
		return c.Generator.SynthesizeSpeech(ctx, req)
	}
	key := SpeechCacheKey(voiceOrDefault(req.Voice), req.Text)

	data, err := c.cache.GetBytes(ctx, key)
	switch {
	case err == nil:
		speech, derr := decodeCachedSpeech(data)
		if derr == nil {
			c.hits.Inc()
			return speech, nil
		}
		c.errs.Inc()
		c.log.Warn("ignoring corrupt cache entry", zap.String("key", key), zap.Error(derr))
	case errors.Is(err, storage.ErrCacheMiss):
	default:
		c.errs.Inc()
		c.log.Warn("speech cache read failed", zap.Error(err))
	}
	c.misses.Inc()

	speech, err := c.Generator.SynthesizeSpeech(ctx, req)
	if err != nil {
		return nil, err
	}

	// stored as a wav container so the sample rate travels with the samples
	encoded, err := wav.Encode(speech.PCM, speech.SampleRate)
	if err != nil {
		return speech, nil
	}
	if err := c.cache.SetBytes(ctx, key, encoded, c.ttl); err != nil {
		c.errs.Inc()
		c.log.Warn("speech cache write failed", zap.Error(err))
	}
	return speech, nil
}

// Stats returns a snapshot of the counters
func (c *CachedSpeech) Stats() SpeechCacheStats {
	s := SpeechCacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Errors: c.errs.Load(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

func decodeCachedSpeech(data []byte) (*interfaces.Speech, error) {
	h, err := wav.DecodeHeader(data)
	if err != nil {
		return nil, err
	}
	pcm := make([]byte, len(data)-wav.HeaderSize)
	copy(pcm, data[wav.HeaderSize:])
	return &interfaces.Speech{PCM: pcm, SampleRate: int(h.SampleRate)}, nil
}
