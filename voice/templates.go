package voice

import (
	"context"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hirevox/hirevox/errors"
)

// Template is one call script with {param} placeholders.
type Template struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Text        string `yaml:"text"`
}

// builtinTemplates are the stock recruiting scripts. Placeholders use
// {param} form; params not supplied expand to the empty string.
var builtinTemplates = []Template{
	{
		Name:        "initial_contact",
		Description: "初次联系候选人",
		Text: "您好，这里是{company}的招聘团队。" +
			"我们在{platform}上看到了您的简历，觉得您的背景很符合我们{position}岗位的要求。" +
			"请问您现在方便简单聊几句吗？",
	},
	{
		Name:        "intention_survey",
		Description: "意向调查",
		Text: "您好，我是{company}的HR{name}。" +
			"想跟您确认一下，您目前是否有换工作的意向呢？" +
			"如果有的话，请按1；暂时不考虑请按2。",
	},
	{
		Name:        "interview_invite",
		Description: "面试邀请",
		Text: "您好，恭喜您通过了{company}{position}岗位的简历筛选。" +
			"我们想邀请您参加面试，时间初定在{time}。" +
			"如果方便请按1确认，需要改期请按2。",
	},
}

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// Library holds the available call scripts, built-ins plus any loaded
// user templates. User templates shadow built-ins with the same name.
type Library struct {
	templates map[string]Template
}

// NewLibrary returns a library seeded with the built-in scripts.
func NewLibrary() *Library {
	l := &Library{templates: make(map[string]Template)}
	for _, t := range builtinTemplates {
		l.templates[t.Name] = t
	}
	return l
}

// LoadFile merges user templates from a YAML file (a list of name/text
// entries).
func (l *Library) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read template file %s", path)
	}

	var loaded []Template
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return errors.Wrapf(err, "parse template file %s", path)
	}
	for _, t := range loaded {
		if t.Name == "" || t.Text == "" {
			return errors.NewConfigurationError("template file %s: entries need name and text", path)
		}
		l.templates[t.Name] = t
	}
	return nil
}

// Names lists template names, sorted.
func (l *Library) Names() []string {
	names := make([]string, 0, len(l.templates))
	for name := range l.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns a template by name.
func (l *Library) Get(name string) (Template, error) {
	t, ok := l.templates[name]
	if !ok {
		return Template{}, errors.NewConfigurationError(
			"unknown template %q (available: %s)", name, strings.Join(l.Names(), ", "))
	}
	return t, nil
}

// Expand renders a template with the given params. Missing params expand
// empty, matching how the scripts were written to degrade.
func (l *Library) Expand(name string, params map[string]string) (string, error) {
	t, err := l.Get(name)
	if err != nil {
		return "", err
	}
	text := placeholderRe.ReplaceAllStringFunc(t.Text, func(m string) string {
		key := m[1 : len(m)-1]
		return params[key]
	})
	return strings.TrimSpace(text), nil
}

// TemplateRenderer renders scripts to plain text for providers that do
// their own speech synthesis (the rendered params travel with the audio
// for provider-side TTS templates). An empty request is valid: the
// provider falls back to its own configured script, fed with the params.
type TemplateRenderer struct {
	library *Library
}

// NewTemplateRenderer wraps a library as a Renderer.
func NewTemplateRenderer(library *Library) *TemplateRenderer {
	return &TemplateRenderer{library: library}
}

// Render implements Renderer.
func (r *TemplateRenderer) Render(_ context.Context, req RenderRequest) (Audio, error) {
	if req.Template == "" {
		return Audio{Text: req.Text, Params: req.Params}, nil
	}

	text, err := r.library.Expand(req.Template, req.Params)
	if err != nil {
		return Audio{}, err
	}
	return Audio{Text: text, Params: req.Params}, nil
}
