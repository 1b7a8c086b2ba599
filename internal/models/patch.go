package models

import (
	"encoding/json"
	"fmt"
)

// Patch is a partial set of card fields. A nil pointer or an absent Optional
// leaves the field unchanged when applied.
type Patch struct {
	AvatarURL    *string `json:"avatarUrl,omitempty"`
	Username     *string `json:"username,omitempty"`
	Handle       *string `json:"handle,omitempty"`
	IsVerified   *bool   `json:"isVerified,omitempty"`
	ViewCount    *string `json:"viewCount,omitempty"`
	Timestamp    *string `json:"timestamp,omitempty"`
	Content      *string `json:"content,omitempty"`
	StoryText    *string `json:"storyText,omitempty"`
	LikeCount    *string `json:"likeCount,omitempty"`
	CommentCount *string `json:"commentCount,omitempty"`

	ShowAudioBadge *bool   `json:"showAudioBadge,omitempty"`
	Theme          *Theme  `json:"theme,omitempty"`
	AccentColor    *string `json:"accentColor,omitempty"`

	IntroAudioURL   Optional[string]          `json:"introAudioUrl"`
	MainAudioURL    Optional[string]          `json:"mainAudioUrl"`
	YouTubeMetadata Optional[YouTubeMetadata] `json:"youtubeMetadata"`
}

// IsEmpty reports whether applying p would change nothing
func (p Patch) IsEmpty() bool {
	return p.AvatarURL == nil && p.Username == nil && p.Handle == nil &&
		p.IsVerified == nil && p.ViewCount == nil && p.Timestamp == nil &&
		p.Content == nil && p.StoryText == nil && p.LikeCount == nil &&
		p.CommentCount == nil && p.ShowAudioBadge == nil && p.Theme == nil &&
		p.AccentColor == nil && !p.IntroAudioURL.Set && !p.MainAudioURL.Set &&
		!p.YouTubeMetadata.Set
}

// Validate checks enumerated fields
func (p Patch) Validate() error {
	if p.Theme != nil && !p.Theme.Valid() {
		return fmt.Errorf("invalid theme %q: want %q or %q", *p.Theme, ThemeLight, ThemeDark)
	}
	return nil
}

// Fields lists the JSON names of the fields p sets, for logging
func (p Patch) Fields() []string {
	var f []string
	add := func(set bool, name string) {
		if set {
			f = append(f, name)
		}
	}
	add(p.AvatarURL != nil, "avatarUrl")
	add(p.Username != nil, "username")
	add(p.Handle != nil, "handle")
	add(p.IsVerified != nil, "isVerified")
	add(p.ViewCount != nil, "viewCount")
	add(p.Timestamp != nil, "timestamp")
	add(p.Content != nil, "content")
	add(p.StoryText != nil, "storyText")
	add(p.LikeCount != nil, "likeCount")
	add(p.CommentCount != nil, "commentCount")
	add(p.ShowAudioBadge != nil, "showAudioBadge")
	add(p.Theme != nil, "theme")
	add(p.AccentColor != nil, "accentColor")
	add(p.IntroAudioURL.Set, "introAudioUrl")
	add(p.MainAudioURL.Set, "mainAudioUrl")
	add(p.YouTubeMetadata.Set, "youtubeMetadata")
	return f
}

// MarshalJSON drops absent Optional fields so the encoding round-trips
func (p Patch) MarshalJSON() ([]byte, error) {
	type plain Patch
	raw, err := json.Marshal(plain(p))
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if !p.IntroAudioURL.Set {
		delete(m, "introAudioUrl")
	}
	if !p.MainAudioURL.Set {
		delete(m, "mainAudioUrl")
	}
	if !p.YouTubeMetadata.Set {
		delete(m, "youtubeMetadata")
	}
	return json.Marshal(m)
}

// InvalidateDerived clears every field derived from the narrative
func InvalidateDerived() Patch {
	return Patch{
		IntroAudioURL:   Null[string](),
		MainAudioURL:    Null[string](),
		YouTubeMetadata: Null[YouTubeMetadata](),
	}
}

// String and Bool build patch values inline
func String(s string) *string { return &s }

func Bool(b bool) *bool { return &b }

func ThemePtr(t Theme) *Theme { return &t }
