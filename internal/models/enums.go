package models

import (
	"fmt"
	"strings"
)

// Voice is a prebuilt narrator voice
type Voice string

const (
	VoicePuck   Voice = "Puck"
	VoiceCharon Voice = "Charon"
	VoiceKore   Voice = "Kore"
	VoiceFenrir Voice = "Fenrir"
	VoiceZephyr Voice = "Zephyr"

	DefaultVoice = VoiceKore
)

// VoiceInfo describes a voice for the picker
type VoiceInfo struct {
	Name   Voice  `json:"name"`
	Gender string `json:"gender"`
	Style  string `json:"style"`
}

// Voices is the voice catalogue in display order
var Voices = []VoiceInfo{
	{Name: VoicePuck, Gender: "Male", Style: "Energetic"},
	{Name: VoiceCharon, Gender: "Male", Style: "Deep/Narrator"},
	{Name: VoiceKore, Gender: "Female", Style: "Calm/Soothing"},
	{Name: VoiceFenrir, Gender: "Male", Style: "Intense"},
	{Name: VoiceZephyr, Gender: "Female", Style: "Soft"},
}

// ParseVoice accepts a catalogue name case-insensitively; empty selects the default
func ParseVoice(s string) (Voice, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultVoice, nil
	}
	for _, v := range Voices {
		if strings.EqualFold(string(v.Name), s) {
			return v.Name, nil
		}
	}
	return "", fmt.Errorf("unknown voice %q", s)
}

// Gender is the identity generation preference
type Gender string

const (
	GenderRandom Gender = "Random"
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
)

// ParseGender accepts Random/Male/Female; empty means Random
func ParseGender(s string) (Gender, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "random", "unspecified":
		return GenderRandom, nil
	case "male":
		return GenderMale, nil
	case "female":
		return GenderFemale, nil
	}
	return "", fmt.Errorf("unknown gender %q", s)
}

// StoryLength is a target length category, used only as a prompt hint
type StoryLength string

const (
	LengthShort     StoryLength = "Short"
	LengthMedium    StoryLength = "Medium"
	LengthLong      StoryLength = "Long"
	LengthExtraLong StoryLength = "Extra Long"

	DefaultStoryLength = LengthLong
)

// TargetWords is the approximate word count hinted to the model
func (l StoryLength) TargetWords() int {
	switch l {
	case LengthShort:
		return 100
	case LengthLong:
		return 300
	case LengthExtraLong:
		return 450
	default:
		return 200
	}
}

// ParseStoryLength accepts the four categories; empty selects the default
func ParseStoryLength(s string) (StoryLength, error) {
	norm := strings.ToLower(strings.NewReplacer("_", " ", "-", " ").Replace(strings.TrimSpace(s)))
	switch norm {
	case "":
		return DefaultStoryLength, nil
	case "short":
		return LengthShort, nil
	case "medium":
		return LengthMedium, nil
	case "long":
		return LengthLong, nil
	case "extra long", "extralong":
		return LengthExtraLong, nil
	}
	return "", fmt.Errorf("unknown story length %q", s)
}
