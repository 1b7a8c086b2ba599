// Package generatortest provides a scriptable interfaces.Generator for tests.
package generatortest

import (
	"context"
	"sync"

	"Viral-Card/server/internal/interfaces"
	"Viral-Card/server/internal/models"
)

// Fake answers every call with the configured function, or an empty
// success when none is set. Calls are counted per operation.
type Fake struct {
	NoCredential bool

	PostContentFn func(ctx context.Context, req *interfaces.PostContentRequest) (*interfaces.PostContent, error)
	IdentityFn    func(ctx context.Context, req *interfaces.IdentityRequest) (*interfaces.Identity, error)
	AvatarFn      func(ctx context.Context, req *interfaces.AvatarRequest) (*interfaces.Image, error)
	StoryFn       func(ctx context.Context, req *interfaces.StoryRequest) (*interfaces.Story, error)
	SpeechFn      func(ctx context.Context, req *interfaces.SpeechRequest) (*interfaces.Speech, error)
	MetadataFn    func(ctx context.Context, req *interfaces.MetadataRequest) (*models.YouTubeMetadata, error)
	DirectorFn    func(ctx context.Context, req *interfaces.DirectorRequest) (*interfaces.DirectorReply, error)

	mu       sync.Mutex
	calls    map[string]int
	speeches []interfaces.SpeechRequest
	director []interfaces.DirectorRequest
}

func (f *Fake) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[op]++
}

// Calls returns how often op was invoked
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// TotalCalls sums every operation
func (f *Fake) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// SpeechRequests returns the speech requests seen so far
func (f *Fake) SpeechRequests() []interfaces.SpeechRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]interfaces.SpeechRequest(nil), f.speeches...)
}

// DirectorRequests returns the director requests seen so far
func (f *Fake) DirectorRequests() []interfaces.DirectorRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]interfaces.DirectorRequest(nil), f.director...)
}

func (f *Fake) Configured() bool { return !f.NoCredential }

func (f *Fake) GeneratePostContent(ctx context.Context, req *interfaces.PostContentRequest) (*interfaces.PostContent, error) {
	f.record("post_content")
	if f.PostContentFn == nil {
		return &interfaces.PostContent{}, nil
	}
	return f.PostContentFn(ctx, req)
}

func (f *Fake) GenerateIdentity(ctx context.Context, req *interfaces.IdentityRequest) (*interfaces.Identity, error) {
	f.record("identity")
	if f.IdentityFn == nil {
		return &interfaces.Identity{}, nil
	}
	return f.IdentityFn(ctx, req)
}

func (f *Fake) GenerateAvatar(ctx context.Context, req *interfaces.AvatarRequest) (*interfaces.Image, error) {
	f.record("avatar")
	if f.AvatarFn == nil {
		return nil, nil
	}
	return f.AvatarFn(ctx, req)
}

func (f *Fake) GenerateStory(ctx context.Context, req *interfaces.StoryRequest) (*interfaces.Story, error) {
	f.record("story")
	if f.StoryFn == nil {
		return &interfaces.Story{}, nil
	}
	return f.StoryFn(ctx, req)
}

func (f *Fake) SynthesizeSpeech(ctx context.Context, req *interfaces.SpeechRequest) (*interfaces.Speech, error) {
	f.record("speech")
	f.mu.Lock()
	f.speeches = append(f.speeches, *req)
	f.mu.Unlock()
	if f.SpeechFn == nil {
		return &interfaces.Speech{PCM: []byte{0, 0, 1, 0}, SampleRate: 24000}, nil
	}
	return f.SpeechFn(ctx, req)
}

func (f *Fake) GenerateYouTubeMetadata(ctx context.Context, req *interfaces.MetadataRequest) (*models.YouTubeMetadata, error) {
	f.record("youtube_metadata")
	if f.MetadataFn == nil {
		return &models.YouTubeMetadata{}, nil
	}
	return f.MetadataFn(ctx, req)
}

func (f *Fake) ChatWithDirector(ctx context.Context, req *interfaces.DirectorRequest) (*interfaces.DirectorReply, error) {
	f.record("director")
	f.mu.Lock()
	f.director = append(f.director, *req)
	f.mu.Unlock()
	if f.DirectorFn == nil {
		return &interfaces.DirectorReply{}, nil
	}
	return f.DirectorFn(ctx, req)
}

var _ interfaces.Generator = (*Fake)(nil)
