package interfaces

import (
	"context"

	"Viral-Card/server/internal/models"
)

// PostContentRequest asks for a viral post about a topic context
type PostContentRequest struct {
	Topic string
}

// PostContent is the structured post-content result
type PostContent struct {
	Handle       string `json:"handle"`
	Content      string `json:"content"`
	ViewCount    string `json:"viewCount"`
	LikeCount    string `json:"likeCount"`
	CommentCount string `json:"commentCount"`
}

// IdentityRequest asks for a fictional poster
type IdentityRequest struct {
	Gender models.Gender
}

// Identity is the structured identity result
type Identity struct {
	Username          string `json:"username"`
	Handle            string `json:"handle"`
	AvatarDescription string `json:"avatarDescription"`
}

// AvatarRequest asks for a headshot matching a description
type AvatarRequest struct {
	Description string
	Gender      models.Gender
}

// Image is raw encoded image bytes
type Image struct {
	Data     []byte
	MIMEType string
}

// StoryRequest asks for a first-person narrative
type StoryRequest struct {
	Topic  string
	Length models.StoryLength
}

// Story is the structured story result
type Story struct {
	Title string `json:"title"`
	Story string `json:"story"`
}

// SpeechRequest asks for a narration of Text in Voice
type SpeechRequest struct {
	Text  string
	Voice models.Voice
}

// Speech is raw signed 16-bit little-endian mono PCM
type Speech struct {
	PCM        []byte
	SampleRate int
}

// MetadataRequest asks for video metadata derived from a narrative
type MetadataRequest struct {
	StoryText string
}

// DirectorSnapshot is the slice of the card the director sees
type DirectorSnapshot struct {
	Username string
	Content  string
	Theme    models.Theme
}

// DirectorRequest is one conversational turn
type DirectorRequest struct {
	History  []models.ChatMessage
	Message  string
	Snapshot DirectorSnapshot
}

// DirectorReply is the director's structured answer
type DirectorReply struct {
	Message             string       `json:"message"`
	Updates             models.Patch `json:"updates"`
	ShouldGenerateAudio bool         `json:"shouldGenerateAudio"`
}

// Generator is the remote generation service. Implementations return
// errors for transport failures and for empty or malformed responses.
type Generator interface {
	// Configured reports whether a credential is present
	Configured() bool

	GeneratePostContent(ctx context.Context, req *PostContentRequest) (*PostContent, error)
	GenerateIdentity(ctx context.Context, req *IdentityRequest) (*Identity, error)
	// GenerateAvatar returns a nil image when the service produced none
	GenerateAvatar(ctx context.Context, req *AvatarRequest) (*Image, error)
	GenerateStory(ctx context.Context, req *StoryRequest) (*Story, error)
	SynthesizeSpeech(ctx context.Context, req *SpeechRequest) (*Speech, error)
	GenerateYouTubeMetadata(ctx context.Context, req *MetadataRequest) (*models.YouTubeMetadata, error)
	ChatWithDirector(ctx context.Context, req *DirectorRequest) (*DirectorReply, error)
}
