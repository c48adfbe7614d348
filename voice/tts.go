package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/hirevox/hirevox/am"
	"github.com/hirevox/hirevox/errors"
	"github.com/hirevox/hirevox/internal/httpclient"
	"github.com/hirevox/hirevox/logger"
)

// HTTPRenderer synthesizes call audio through an HTTP TTS service (an
// edge-tts wrapper or compatible: POST /synthesize with text and voice,
// audio bytes back). Rendered files land in the configured output
// directory and the file path becomes the audio handle.
type HTTPRenderer struct {
	library   *Library
	client    *httpclient.Client
	baseURL   string
	voice     string
	outputDir string
}

// NewHTTPRenderer wires a renderer from config. The base URL must be set;
// templates expand locally before synthesis.
func NewHTTPRenderer(library *Library, cfg am.TTSConfig) (*HTTPRenderer, error) {
	if cfg.BaseURL == "" {
		return nil, errors.NewConfigurationError("tts.base_url is not set")
	}
	return &HTTPRenderer{
		library:   library,
		client:    httpclient.New(time.Duration(cfg.TimeoutSeconds) * time.Second),
		baseURL:   cfg.BaseURL,
		voice:     cfg.Voice,
		outputDir: cfg.OutputDir,
	}, nil
}

type synthesizeRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

// Render implements Renderer. Service unavailability is transient; a
// rejected request (bad voice, empty text) is terminal.
func (r *HTTPRenderer) Render(ctx context.Context, req RenderRequest) (Audio, error) {
	text := req.Text
	if req.Template != "" {
		expanded, err := r.library.Expand(req.Template, req.Params)
		if err != nil {
			return Audio{}, err
		}
		text = expanded
	}
	if text == "" {
		return Audio{}, errors.NewConfigurationError("render request needs text or a template name")
	}

	body, err := json.Marshal(synthesizeRequest{Text: text, Voice: r.voice})
	if err != nil {
		return Audio{}, errors.Wrap(err, "marshal synthesize request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.baseURL+"/synthesize", bytes.NewReader(body))
	if err != nil {
		return Audio{}, errors.Wrap(err, "build synthesize request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return Audio{}, errors.Wrap(errors.ErrTransient, err.Error())
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to read audio
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return Audio{}, errors.Wrapf(errors.ErrTransient, "tts service returned %d", resp.StatusCode)
	default:
		return Audio{}, errors.Wrapf(errors.ErrTerminal, "tts service rejected request with %d", resp.StatusCode)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return Audio{}, errors.Wrap(errors.ErrTransient, err.Error())
	}
	if len(audio) == 0 {
		return Audio{}, errors.Wrap(errors.ErrTerminal, "tts service returned empty audio")
	}

	path := filepath.Join(r.outputDir, uuid.New().String()+".mp3")
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return Audio{}, errors.Wrapf(err, "write audio file %s", path)
	}

	logger.Debugw("audio rendered", "path", path, "bytes", len(audio), "voice", r.voice)
	return Audio{Text: text, Handle: path, Params: req.Params}, nil
}
