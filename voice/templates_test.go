package voice

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirevox/hirevox/errors"
)

func TestLibraryExpand(t *testing.T) {
	l := NewLibrary()

	text, err := l.Expand("initial_contact", map[string]string{
		"company":  "星辰科技",
		"platform": "BOSS直聘",
		"position": "Go后端工程师",
	})
	require.NoError(t, err)
	assert.Contains(t, text, "星辰科技")
	assert.Contains(t, text, "BOSS直聘")
	assert.Contains(t, text, "Go后端工程师")
	assert.NotContains(t, text, "{")
}

func TestLibraryExpandMissingParamsEmpty(t *testing.T) {
	l := NewLibrary()
	text, err := l.Expand("intention_survey", nil)
	require.NoError(t, err)
	assert.NotContains(t, text, "{company}")
	assert.NotContains(t, text, "{name}")
}

func TestLibraryUnknownTemplate(t *testing.T) {
	l := NewLibrary()
	_, err := l.Expand("no_such_script", nil)
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}

func TestLibraryNames(t *testing.T) {
	l := NewLibrary()
	assert.Equal(t, []string{"initial_contact", "intention_survey", "interview_invite"}, l.Names())
}

func TestLibraryLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- name: callback_followup
  description: 回访
  text: "您好{name}，关于之前聊过的{position}岗位，想跟您再确认一下进展。"
- name: initial_contact
  text: "自定义开场白：{company}。"
`), 0o644))

	l := NewLibrary()
	require.NoError(t, l.LoadFile(path))

	text, err := l.Expand("callback_followup", map[string]string{"name": "王五", "position": "测试"})
	require.NoError(t, err)
	assert.Contains(t, text, "王五")

	// User templates shadow built-ins with the same name.
	text, err = l.Expand("initial_contact", map[string]string{"company": "星辰"})
	require.NoError(t, err)
	assert.Equal(t, "自定义开场白：星辰。", text)
}

func TestLibraryLoadFileRejectsIncompleteEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- name: broken\n"), 0o644))

	l := NewLibrary()
	err := l.LoadFile(path)
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}

func TestTemplateRenderer(t *testing.T) {
	r := NewTemplateRenderer(NewLibrary())

	audio, err := r.Render(context.Background(), RenderRequest{
		Template: "interview_invite",
		Params:   map[string]string{"company": "星辰科技", "position": "Go后端", "time": "周三下午三点"},
	})
	require.NoError(t, err)
	assert.Contains(t, audio.Text, "周三下午三点")
	assert.Empty(t, audio.Handle)
	assert.Equal(t, "星辰科技", audio.Params["company"])

	// Literal text passes through untouched.
	audio, err = r.Render(context.Background(), RenderRequest{Text: "您好，测试一下。"})
	require.NoError(t, err)
	assert.Equal(t, "您好，测试一下。", audio.Text)

	// An empty request is the provider-side-script case: no text, but the
	// params still travel for the provider's own template.
	audio, err = r.Render(context.Background(), RenderRequest{Params: map[string]string{"company": "星辰"}})
	require.NoError(t, err)
	assert.Empty(t, audio.Text)
	assert.Equal(t, "星辰", audio.Params["company"])
}
