package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyEmptyPatchKeepsCard(t *testing.T) {
	c := SeedCard()
	c.IntroAudioURL = String("blob:intro")

	got := c.Apply(Patch{})
	assert.Equal(t, c, got)
	assert.True(t, Patch{}.IsEmpty())
}

func TestApplyIsIdempotent(t *testing.T) {
	p := Patch{
		Content:       String("new title"),
		Theme:         ThemePtr(ThemeDark),
		MainAudioURL:  Present("blob:main"),
		IntroAudioURL: Null[string](),
	}
	once := SeedCard().Apply(p)
	twice := once.Apply(p)
	assert.Equal(t, once, twice)
}

func TestApplyLastWriteWins(t *testing.T) {
	c := SeedCard().
		Apply(Patch{Username: String("first"), Handle: String("h1")}).
		Apply(Patch{Username: String("second")})

	assert.Equal(t, "second", c.Username)
	assert.Equal(t, "h1", c.Handle)
}

func TestApplyReplacesMetadataWholesale(t *testing.T) {
	c := SeedCard().Apply(Patch{YouTubeMetadata: Present(YouTubeMetadata{Title: "t", Description: "d"})})
	c = c.Apply(Patch{YouTubeMetadata: Present(YouTubeMetadata{Title: "only"})})

	require.NotNil(t, c.YouTubeMetadata)
	assert.Equal(t, "only", c.YouTubeMetadata.Title)
	assert.Empty(t, c.YouTubeMetadata.Description)
}

func TestApplyDoesNotAlias(t *testing.T) {
	c := SeedCard().Apply(Patch{MainAudioURL: Present("blob:a")})
	next := c.Apply(Patch{})
	*next.MainAudioURL = "mutated"
	assert.Equal(t, "blob:a", *c.MainAudioURL)
}

func TestInvalidateDerived(t *testing.T) {
	c := SeedCard().Apply(Patch{
		IntroAudioURL:   Present("blob:i"),
		MainAudioURL:    Present("blob:m"),
		YouTubeMetadata: Present(YouTubeMetadata{Title: "x"}),
	})
	c = c.Apply(InvalidateDerived())

	assert.Nil(t, c.IntroAudioURL)
	assert.Nil(t, c.MainAudioURL)
	assert.Nil(t, c.YouTubeMetadata)
	assert.Equal(t, "Dani", c.Username)
}

func TestPatchJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, p Patch)
	}{
		{
			name:  "absent fields stay absent",
			input: `{"username":"bob"}`,
			check: func(t *testing.T, p Patch) {
				require.NotNil(t, p.Username)
				assert.Equal(t, "bob", *p.Username)
				assert.False(t, p.MainAudioURL.Set)
				assert.Equal(t, []string{"username"}, p.Fields())
			},
		},
		{
			name:  "explicit null clears",
			input: `{"mainAudioUrl":null}`,
			check: func(t *testing.T, p Patch) {
				assert.True(t, p.MainAudioURL.Set)
				assert.False(t, p.MainAudioURL.Valid)
				assert.False(t, p.IsEmpty())
			},
		},
		{
			name:  "metadata value",
			input: `{"youtubeMetadata":{"title":"T","description":"D"}}`,
			check: func(t *testing.T, p Patch) {
				require.True(t, p.YouTubeMetadata.Valid)
				assert.Equal(t, "T", p.YouTubeMetadata.Value.Title)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Patch
			require.NoError(t, json.Unmarshal([]byte(tt.input), &p))
			tt.check(t, p)
		})
	}
}

func TestPatchMarshalOmitsAbsent(t *testing.T) {
	out, err := json.Marshal(Patch{Content: String("c"), IntroAudioURL: Null[string]()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"content":"c","introAudioUrl":null}`, string(out))
}

func TestPatchValidate(t *testing.T) {
	assert.NoError(t, Patch{Theme: ThemePtr(ThemeDark)}.Validate())
	assert.Error(t, Patch{Theme: ThemePtr("pink")}.Validate())
}

func TestParseEnums(t *testing.T) {
	v, err := ParseVoice("")
	require.NoError(t, err)
	assert.Equal(t, VoiceKore, v)

	v, err = ParseVoice("fenrir")
	require.NoError(t, err)
	assert.Equal(t, VoiceFenrir, v)

	_, err = ParseVoice("Alloy")
	assert.Error(t, err)

	g, err := ParseGender("")
	require.NoError(t, err)
	assert.Equal(t, GenderRandom, g)

	l, err := ParseStoryLength("extra_long")
	require.NoError(t, err)
	assert.Equal(t, LengthExtraLong, l)
	assert.Equal(t, 450, l.TargetWords())

	l, err = ParseStoryLength("")
	require.NoError(t, err)
	assert.Equal(t, LengthLong, l)
}
