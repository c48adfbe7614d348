package voice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirevox/hirevox/am"
	"github.com/hirevox/hirevox/errors"
)

func testRenderer(t *testing.T, handler http.HandlerFunc) *HTTPRenderer {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	r, err := NewHTTPRenderer(NewLibrary(), am.TTSConfig{
		BaseURL:        srv.URL,
		Voice:          "zh-CN-XiaoxiaoNeural",
		OutputDir:      t.TempDir(),
		TimeoutSeconds: 5,
	})
	require.NoError(t, err)
	return r
}

func TestHTTPRendererRequiresBaseURL(t *testing.T) {
	_, err := NewHTTPRenderer(NewLibrary(), am.TTSConfig{})
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}

func TestHTTPRendererWritesAudioFile(t *testing.T) {
	var req synthesizeRequest
	r := testRenderer(t, func(w http.ResponseWriter, hr *http.Request) {
		require.NoError(t, json.NewDecoder(hr.Body).Decode(&req))
		w.Write([]byte("fake-mp3-bytes"))
	})

	audio, err := r.Render(context.Background(), RenderRequest{
		Template: "initial_contact",
		Params:   map[string]string{"company": "星辰科技"},
	})
	require.NoError(t, err)
	assert.Contains(t, req.Text, "星辰科技")
	assert.Equal(t, "zh-CN-XiaoxiaoNeural", req.Voice)

	data, err := os.ReadFile(audio.Handle)
	require.NoError(t, err)
	assert.Equal(t, "fake-mp3-bytes", string(data))
}

func TestHTTPRendererUnknownTemplateNeverHitsService(t *testing.T) {
	r := testRenderer(t, func(w http.ResponseWriter, hr *http.Request) {
		t.Fatal("tts service must not be contacted")
	})

	_, err := r.Render(context.Background(), RenderRequest{Template: "no_such_script"})
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}

func TestHTTPRendererStatusClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{"server error", http.StatusInternalServerError, true},
		{"overloaded", http.StatusTooManyRequests, true},
		{"rejected", http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testRenderer(t, func(w http.ResponseWriter, hr *http.Request) {
				w.WriteHeader(tt.status)
			})

			_, err := r.Render(context.Background(), RenderRequest{Text: "您好"})
			require.Error(t, err)
			assert.Equal(t, tt.transient, errors.IsTransient(err))
		})
	}
}

func TestHTTPRendererEmptyAudioIsTerminal(t *testing.T) {
	r := testRenderer(t, func(w http.ResponseWriter, hr *http.Request) {})

	_, err := r.Render(context.Background(), RenderRequest{Text: "您好"})
	require.Error(t, err)
	assert.True(t, errors.IsTerminal(err))
}
