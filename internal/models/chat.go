package models

import "time"

// ChatRole identifies the author of a transcript message
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage is one entry of the director transcript
type ChatMessage struct {
	Role      ChatRole  `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	DirectorGreeting = "🎬 Hi! I'm your AI Director. Tell me what kind of post you want to make. " +
		"I can write stories, change visuals, and set up everything for you. " +
		"Try 'Make a scary story' or 'Change the theme to pink'."
	DirectorFallback = "Sorry, I had trouble processing that request. Could you try again?"
)
