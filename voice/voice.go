// Package voice holds the provider collaborators for outbound calling:
// text-to-speech rendering and the dialing API. Both are interfaces so the
// scheduler can run against stubs in tests and against real providers in
// production.
package voice

import (
	"context"
)

// Audio is the result of rendering a call script.
type Audio struct {
	Text   string            `json:"text"`             // fully rendered script
	Handle string            `json:"handle,omitempty"` // local artifact path when rendered to a file
	Params map[string]string `json:"params,omitempty"` // named params for provider-side TTS templates
}

// RenderRequest asks for either literal text or a named template expanded
// with params. Exactly one of Text or Template should be set.
type RenderRequest struct {
	Text     string
	Template string
	Params   map[string]string
}

// Renderer turns a call script into dialable audio. An unknown template
// name is a configuration error, not a provider failure.
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) (Audio, error)
}

// CallResult is the provider's acknowledgement of an initiated call.
type CallResult struct {
	CallID string `json:"call_id"`
}

// Caller places a single outbound call. Implementations classify provider
// failures as transient or terminal via the errors package sentinels so
// the retry controller can decide what to do.
type Caller interface {
	Call(ctx context.Context, phone string, audio Audio) (CallResult, error)
}
