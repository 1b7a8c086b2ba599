package models

// Theme is the binary light/dark presentation of a card
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Valid reports whether t is one of the two supported themes
func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark
}

// YouTubeMetadata is the video title and description derived from the story
type YouTubeMetadata struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Card is the single document composed in an editing session.
// Metric counts are display strings and are never parsed back.
type Card struct {
	AvatarURL    string `json:"avatarUrl"`
	Username     string `json:"username"`
	Handle       string `json:"handle"`
	IsVerified   bool   `json:"isVerified"`
	ViewCount    string `json:"viewCount"`
	Timestamp    string `json:"timestamp"`
	Content      string `json:"content"`   // intro text, shown as the card title
	StoryText    string `json:"storyText"` // main narrative read by the narrator
	LikeCount    string `json:"likeCount"`
	CommentCount string `json:"commentCount"`

	ShowAudioBadge bool   `json:"showAudioBadge"`
	Theme          Theme  `json:"theme"`
	AccentColor    string `json:"accentColor"`

	// nil means not yet synthesized or invalidated
	IntroAudioURL   *string          `json:"introAudioUrl"`
	MainAudioURL    *string          `json:"mainAudioUrl"`
	YouTubeMetadata *YouTubeMetadata `json:"youtubeMetadata"`
}

// SeedCard returns the card every session starts from
func SeedCard() Card {
	return Card{
		AvatarURL:      "",
		Username:       "Dani",
		Handle:         "Dani030231",
		IsVerified:     true,
		ViewCount:      "599,299",
		Timestamp:      "2h ago",
		Content:        "AITA for not taking my ex back after she left me and regretted it once I got my life together?",
		StoryText:      "I (26M) started dating my ex (25F) in college. We were together for 3 years before she suddenly left...",
		LikeCount:      "612+",
		CommentCount:   "121+",
		ShowAudioBadge: true,
		Theme:          ThemeLight,
		AccentColor:    "#ff4500",
	}
}

// Clone returns a copy that shares no pointers with c
func (c Card) Clone() Card {
	out := c
	out.IntroAudioURL = cloneString(c.IntroAudioURL)
	out.MainAudioURL = cloneString(c.MainAudioURL)
	if c.YouTubeMetadata != nil {
		md := *c.YouTubeMetadata
		out.YouTubeMetadata = &md
	}
	return out
}

// Apply returns a new card where every field present in p replaces the
// corresponding field of c. Fields are replaced wholesale, never merged.
func (c Card) Apply(p Patch) Card {
	out := c.Clone()

	if p.AvatarURL != nil {
		out.AvatarURL = *p.AvatarURL
	}
	if p.Username != nil {
		out.Username = *p.Username
	}
	if p.Handle != nil {
		out.Handle = *p.Handle
	}
	if p.IsVerified != nil {
		out.IsVerified = *p.IsVerified
	}
	if p.ViewCount != nil {
		out.ViewCount = *p.ViewCount
	}
	if p.Timestamp != nil {
		out.Timestamp = *p.Timestamp
	}
	if p.Content != nil {
		out.Content = *p.Content
	}
	if p.StoryText != nil {
		out.StoryText = *p.StoryText
	}
	if p.LikeCount != nil {
		out.LikeCount = *p.LikeCount
	}
	if p.CommentCount != nil {
		out.CommentCount = *p.CommentCount
	}
	if p.ShowAudioBadge != nil {
		out.ShowAudioBadge = *p.ShowAudioBadge
	}
	if p.Theme != nil {
		out.Theme = *p.Theme
	}
	if p.AccentColor != nil {
		out.AccentColor = *p.AccentColor
	}
	if p.IntroAudioURL.Set {
		out.IntroAudioURL = p.IntroAudioURL.Ptr()
	}
	if p.MainAudioURL.Set {
		out.MainAudioURL = p.MainAudioURL.Ptr()
	}
	if p.YouTubeMetadata.Set {
		out.YouTubeMetadata = p.YouTubeMetadata.Ptr()
	}
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
