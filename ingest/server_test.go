package ingest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirevox/hirevox/am"
	"github.com/hirevox/hirevox/roster"
)

func testIngestConfig() am.IngestConfig {
	return am.IngestConfig{
		Port:            8790,
		MaxPayloadBytes: 64 * 1024,
		EventsPerSecond: 1000,
		EventBurst:      1000,
	}
}

func newTestServer(t *testing.T) (*Server, *httptest.Server, *roster.Store) {
	t.Helper()
	store := roster.NewStore()
	s := NewServer(store, testIngestConfig())
	ts := httptest.NewServer(s.httpServer.Handler)
	t.Cleanup(ts.Close)
	return s, ts, store
}

func postJSON(t *testing.T, url string, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestCandidateAccepted(t *testing.T) {
	_, ts, store := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/candidates",
		`{"name":"张三","phone":"138-0013-8000","salary":"15-20K"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body candidateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Accepted)
	assert.Equal(t, "+8613800138000", body.Phone)
	assert.Equal(t, 1, body.Revision)

	rec, err := store.Get("+8613800138000")
	require.NoError(t, err)
	assert.Equal(t, "张三", rec.Name)
}

func TestCandidateMalformedKeepsServing(t *testing.T) {
	_, ts, _ := newTestServer(t)

	// Broken JSON.
	resp := postJSON(t, ts.URL+"/api/candidates", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Unparseable phone.
	resp = postJSON(t, ts.URL+"/api/candidates", `{"name":"张三","phone":"not-a-phone"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// The endpoint still accepts valid events afterwards.
	resp = postJSON(t, ts.URL+"/api/candidates", `{"name":"李四","phone":"13912345678"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCandidatePayloadTooLarge(t *testing.T) {
	store := roster.NewStore()
	cfg := testIngestConfig()
	cfg.MaxPayloadBytes = 128
	s := NewServer(store, cfg)
	ts := httptest.NewServer(s.httpServer.Handler)
	t.Cleanup(ts.Close)

	big := `{"name":"` + strings.Repeat("x", 1024) + `","phone":"13800138000"}`
	resp := postJSON(t, ts.URL+"/api/candidates", big)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCandidateRateLimited(t *testing.T) {
	store := roster.NewStore()
	cfg := testIngestConfig()
	cfg.EventsPerSecond = 1
	cfg.EventBurst = 1
	s := NewServer(store, cfg)
	ts := httptest.NewServer(s.httpServer.Handler)
	t.Cleanup(ts.Close)

	resp := postJSON(t, ts.URL+"/api/candidates", `{"phone":"13800138000"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = postJSON(t, ts.URL+"/api/candidates", `{"phone":"13800138001"}`)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestCandidateMethodNotAllowed(t *testing.T) {
	_, ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/candidates")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestReceiptObserver(t *testing.T) {
	s, ts, _ := newTestServer(t)

	var got []Receipt
	s.OnReceipt(func(r Receipt) { got = append(got, r) })

	postJSON(t, ts.URL+"/api/candidates", `{"name":"张三","phone":"13800138000"}`)
	postJSON(t, ts.URL+"/api/candidates", `{"name":"张三","phone":"13800138000"}`)

	require.Len(t, got, 2)
	assert.True(t, got[0].Created)
	assert.False(t, got[1].Created)
	assert.Equal(t, "+8613800138000", got[0].Phone)
	assert.Equal(t, 2, got[1].Revision)
}

func TestSessionEndpoints(t *testing.T) {
	_, ts, _ := newTestServer(t)

	// No session yet.
	resp, err := http.Get(ts.URL + "/api/session")
	require.NoError(t, err)
	var status struct {
		Active bool `json:"active"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()
	assert.False(t, status.Active)

	// Start.
	resp = postJSON(t, ts.URL+"/api/session/start", `{"label":"boss直聘"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sess roster.Session
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sess))
	assert.NotEmpty(t, sess.ID)

	// Double start conflicts.
	resp = postJSON(t, ts.URL+"/api/session/start", `{}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Ingest one event, end, count comes back.
	postJSON(t, ts.URL+"/api/candidates", `{"phone":"13800138000"}`)
	resp = postJSON(t, ts.URL+"/api/session/end", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ended roster.Session
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ended))
	assert.Equal(t, 1, ended.Records)

	// Ending again is a 404.
	resp = postJSON(t, ts.URL+"/api/session/end", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	_, ts, store := newTestServer(t)
	e, err := roster.ValidateEvent(roster.CandidateEvent{Phone: "13800138000"})
	require.NoError(t, err)
	_, err = store.Upsert(e)
	require.NoError(t, err)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status  string `json:"status"`
		Records int    `json:"records"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 1, body.Records)
}

func TestReceiptWebSocketStream(t *testing.T) {
	s, ts, _ := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/receipts"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.hub.ClientCount() == 1 },
		time.Second, 5*time.Millisecond)

	postJSON(t, ts.URL+"/api/candidates", `{"name":"张三","phone":"13800138000"}`)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var receipt Receipt
	require.NoError(t, conn.ReadJSON(&receipt))
	assert.Equal(t, "receipt", receipt.Type)
	assert.Equal(t, "+8613800138000", receipt.Phone)
	assert.True(t, receipt.Created)
}

func TestWriteJSONHelpers(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, writeJSON(rec, http.StatusTeapot, map[string]int{"n": 1}))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"n":1}`, rec.Body.String())

	rec = httptest.NewRecorder()
	writeError(rec, http.StatusBadRequest, "nope")
	assert.JSONEq(t, `{"error":"nope"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/x", bytes.NewBufferString("{bad"))
	var v map[string]string
	require.Error(t, readJSON(rec, req, &v))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
