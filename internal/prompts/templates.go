package prompts

import (
	"fmt"
	"regexp"
	"sort"
	"sync"

	"Viral-Card/server/internal/models"
)

// Template names
const (
	PostContent     = "post_content"
	Identity        = "identity"
	Avatar          = "avatar"
	Story           = "story"
	Speech          = "speech"
	YouTubeMetadata = "youtube_metadata"
	DirectorSystem  = "director_system"
	VoicePreview    = "voice_preview"
)

var varRegex = regexp.MustCompile(`\{\{(\w+)\}\}`)

// TemplateEngine manages prompt templates
type TemplateEngine struct {
	templates map[string]*Template
	mu        sync.RWMutex
}

// Template represents a prompt template with variables
type Template struct {
	Name        string   `json:"name"`
	Content     string   `json:"content"`
	Variables   []string `json:"variables"`
	Description string   `json:"description"`
}

// Vars holds variables for template rendering
type Vars map[string]string

// NewTemplateEngine creates a template engine preloaded with the default templates
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[string]*Template),
	}
	for _, tmpl := range defaultTemplates() {
		e.RegisterTemplate(tmpl)
	}
	return e
}

// RegisterTemplate registers or replaces a template
func (e *TemplateEngine) RegisterTemplate(tmpl *Template) {
	if len(tmpl.Variables) == 0 {
		tmpl.Variables = ParseTemplateVariables(tmpl.Content)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[tmpl.Name] = tmpl
}

// GetTemplate retrieves a template by name
func (e *TemplateEngine) GetTemplate(name string) (*Template, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	tmpl, ok := e.templates[name]
	if !ok {
		return nil, fmt.Errorf("template not found: %s", name)
	}
	return tmpl, nil
}

// Render substitutes {{variable}} placeholders. Unknown placeholders are kept.
func (e *TemplateEngine) Render(name string, vars Vars) (string, error) {
	tmpl, err := e.GetTemplate(name)
	if err != nil {
		return "", err
	}

	return varRegex.ReplaceAllStringFunc(tmpl.Content, func(match string) string {
		key := varRegex.FindStringSubmatch(match)[1]
		if v, ok := vars[key]; ok {
			return v
		}
		return match
	}), nil
}

// MustRender is Render for the built-in templates
func (e *TemplateEngine) MustRender(name string, vars Vars) string {
	out, err := e.Render(name, vars)
	if err != nil {
		panic(err)
	}
	return out
}

// ParseTemplateVariables extracts the sorted unique variables of a template
func ParseTemplateVariables(content string) []string {
	matches := varRegex.FindAllStringSubmatch(content, -1)

	unique := make(map[string]bool)
	for _, m := range matches {
		if len(m) > 1 {
			unique[m[1]] = true
		}
	}

	vars := make([]string, 0, len(unique))
	for v := range unique {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	return vars
}

// LengthHint is the prompt wording for a story length category
func LengthHint(l models.StoryLength) string {
	switch l {
	case models.LengthShort:
		return "Short, about 100 words."
	case models.LengthLong:
		return "Long, DETAILED, at least 300 words (aim for 2 minutes speaking time)."
	case models.LengthExtraLong:
		return "Very Long, DETAILED, at least 450 words (aim for 3 minutes speaking time)."
	default:
		return "Medium length, about 200 words."
	}
}

// GenderHint is the prompt wording for a gender preference
func GenderHint(g models.Gender) string {
	if g == "" || g == models.GenderRandom {
		return "random gender"
	}
	return string(g)
}

func defaultTemplates() []*Template {
	return []*Template{
		{
			Name:        PostContent,
			Description: "Viral post with realistic engagement numbers",
			Content: `Generate a realistic viral social media post.
Topic: {{topic}}.

CRITICAL RULE: Numbers must look legitimate and mathematically realistic.
- Views: High (e.g., 1.2M, 500K)
- Likes: ~3-8% of views (e.g., if 100K views, ~5K likes)
- Comments: ~2-5% of likes (e.g., if 5K likes, ~150 comments)
- Handle: No @ symbol.

Return JSON with keys handle, content, viewCount, likeCount, commentCount.`,
		},
		{
			Name:        Identity,
			Description: "Fictional poster identity",
			Content:     `Generate a realistic {{gender}} social media user. Return JSON: username, handle, avatarDescription.`,
		},
		{
			Name:        Avatar,
			Description: "Headshot image prompt",
			Content:     `Headshot avatar, {{description}}, high quality, realistic, {{gender}}, professional photography`,
		},
		{
			Name:        Story,
			Description: "First-person dramatic narrative",
			Content: `Write a viral, dramatic, first-person social media story.
Focus themes: Cheating, winning the lottery, getting revenge, finding a secret safe, workplace scandals, or family betrayal.
Topic context: "{{topic}}".

Requirements:
1. 'title': Clickbait style, max 15 words. (e.g., "AITA for divorcing my wife after she won the lottery?")
2. 'story': The script. First person "I". Conversational, dramatic, slightly messy, sounds like a real person venting.
IMPORTANT: Keep the story dramatic but SAFE FOR WORK. Avoid explicit violence, hate speech, or sexually explicit descriptions to ensure audio generation is permitted.

LENGTH REQUIREMENT: {{length}}

Return JSON with keys title and story.`,
		},
		{
			Name:        Speech,
			Description: "Verbatim narration instruction",
			Content:     `Read the following text aloud exactly as written: """{{text}}"""`,
		},
		{
			Name:        YouTubeMetadata,
			Description: "Clickbait video title and description",
			Content: `Generate viral YouTube Video Metadata for the following story.

STORY: "{{story}}"

REQUIREMENTS:
1. TITLE: Extremely clickbait, HIGH EMOJI USAGE, Capitalize KEY WORDS for emphasis. Style: "💔📹 I CAUGHT My Wife... | AITA?".
2. DESCRIPTION: Dramatic summary with paragraphs. Use Emojis in the description too. End with "👇 You decide.".
3. TAGS: Include 10-15 viral hashtags at the bottom of the description.

Return JSON with keys title and description.`,
		},
		{
			Name:        DirectorSystem,
			Description: "Conversational director system instruction",
			Content: `You are the AI Director for a "Viral Social Media Post Creator" app.
Your job is to assist the user in creating a social media image/story.

You have full control over the post card. You can update any of its fields.

CURRENT STATE CONTEXT:
- Username: {{username}}
- Story Title: {{content}}
- Theme: {{theme}}

USER REQUEST: "{{message}}"

INSTRUCTIONS:
1. Analyze the user's request.
2. If they ask to write a story, generate a title (content) and the full story (storyText).
3. If they ask to change colors, theme, or visuals, update the relevant fields (accentColor, theme, etc.).
4. If they ask to change the identity, update username/handle.

OUTPUT FORMAT (JSON):
{
  "message": "A friendly response to the user explaining what you did.",
  "updates": { ... any card fields to update ... },
  "shouldGenerateAudio": boolean (true if you changed the storyText and think audio should be regenerated)
}

Theme must be "light" or "dark".`,
		},
		{
			Name:        VoicePreview,
			Description: "Short voice sample",
			Content:     `Hi, I'm {{voice}}. This is how I sound.`,
		},
	}
}
