package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Viral-Card/server/internal/models"
)

func TestDefaultTemplatesRegistered(t *testing.T) {
	e := NewTemplateEngine()

	want := map[string][]string{
		PostContent:     {"topic"},
		Identity:        {"gender"},
		Avatar:          {"description", "gender"},
		Story:           {"length", "topic"},
		Speech:          {"text"},
		YouTubeMetadata: {"story"},
		DirectorSystem:  {"content", "message", "theme", "username"},
		VoicePreview:    {"voice"},
	}
	for name, vars := range want {
		tmpl, err := e.GetTemplate(name)
		require.NoError(t, err, name)
		assert.Equal(t, vars, tmpl.Variables, name)
	}
}

func TestRender(t *testing.T) {
	e := NewTemplateEngine()

	out, err := e.Render(Speech, Vars{"text": "hello there"})
	require.NoError(t, err)
	assert.Equal(t, `Read the following text aloud exactly as written: """hello there"""`, out)

	out = e.MustRender(VoicePreview, Vars{"voice": "Puck"})
	assert.Equal(t, "Hi, I'm Puck. This is how I sound.", out)
}

func TestRenderKeepsUnknownPlaceholders(t *testing.T) {
	e := NewTemplateEngine()
	e.RegisterTemplate(&Template{Name: "t", Content: "{{a}} and {{b}}"})

	out, err := e.Render("t", Vars{"a": "x"})
	require.NoError(t, err)
	assert.Equal(t, "x and {{b}}", out)
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, err := NewTemplateEngine().Render("missing", nil)
	assert.Error(t, err)
	assert.Panics(t, func() { NewTemplateEngine().MustRender("missing", nil) })
}

func TestParseTemplateVariables(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, ParseTemplateVariables("{{b}} {{a}} {{b}}"))
	assert.Empty(t, ParseTemplateVariables("no vars"))
}

func TestHints(t *testing.T) {
	assert.Contains(t, LengthHint(models.LengthShort), "100 words")
	assert.Contains(t, LengthHint(models.LengthMedium), "200 words")
	assert.Contains(t, LengthHint(models.LengthLong), "300 words")
	assert.Contains(t, LengthHint(models.LengthExtraLong), "450 words")

	assert.Equal(t, "random gender", GenderHint(models.GenderRandom))
	assert.Equal(t, "random gender", GenderHint(""))
	assert.Equal(t, "Female", GenderHint(models.GenderFemale))
}
