package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ara/internal/render"
	"ara/internal/store"
)

// helpers
func doJSON(t *testing.T, h http.Handler, method, path, ip string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if ip != "" {
		req.Header.Set("X-Forwarded-For", ip)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body=%s", w.Body.String())
	return out
}

func newTestServer(t *testing.T) (http.Handler, *store.Store) {
	t.Helper()
	st, err := store.Open(store.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	env, err := render.New(20)
	require.NoError(t, err)
	return New(st, env), st
}

func TestHealthz(t *testing.T) {
	h, _ := newTestServer(t)
	w := doJSON(t, h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestIndex_Empty(t *testing.T) {
	h, _ := newTestServer(t)
	w := doJSON(t, h, http.MethodGet, "/", "10.0.0.1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "No playbooks recorded yet.")
}

func TestIndex_UnknownPath(t *testing.T) {
	h, _ := newTestServer(t)
	w := doJSON(t, h, http.MethodGet, "/nope", "10.0.0.1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIndex_MethodNotAllowed(t *testing.T) {
	h, _ := newTestServer(t)
	w := doJSON(t, h, http.MethodPost, "/playbooks", "10.0.0.1", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "method_not_allowed", decode(t, w)["message"])
}

func TestPlaybookLifecycle(t *testing.T) {
	h, _ := newTestServer(t)
	ip := "10.0.0.2"

	w := doJSON(t, h, http.MethodPost, "/api/playbooks", ip, map[string]string{"path": "/this/is_definitely/a/very/long/path.yml"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	pb, ok := decode(t, w)["playbook"].(map[string]any)
	require.True(t, ok)
	id, _ := pb["id"].(string)
	require.NotEmpty(t, id)

	w = doJSON(t, h, http.MethodPost, "/api/results", ip, map[string]any{
		"playbook_id": id,
		"host":        "web1",
		"task":        "ping",
		"path":        "/roles/common/tasks/main.yml",
		"lineno":      4,
		"status":      "changed",
		"result":      map[string]any{"key": "value"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(t, h, http.MethodPost, "/api/playbooks/complete", ip, map[string]string{"id": id})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, h, http.MethodGet, "/api/playbooks", ip, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list, ok := decode(t, w)["playbooks"].([]any)
	require.True(t, ok)
	require.Len(t, list, 1)
	assert.Equal(t, true, list[0].(map[string]any)["complete"])
	assert.EqualValues(t, 1, list[0].(map[string]any)["results"])

	w = doJSON(t, h, http.MethodGet, "/api/results?playbook_id="+id, ip, nil)
	require.Equal(t, http.StatusOK, w.Code)
	results, ok := decode(t, w)["results"].([]any)
	require.True(t, ok)
	require.Len(t, results, 1)
	assert.Equal(t, map[string]any{"key": "value"}, results[0].(map[string]any)["result"])

	w = doJSON(t, h, http.MethodGet, "/", ip, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), ".../long/path.yml</a>")

	w = doJSON(t, h, http.MethodGet, "/playbook/"+id, ip, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, ".../tasks/main.yml:4")
	assert.Contains(t, body, "{\n    &#34;key&#34;: &#34;value&#34;\n}")
}

func TestPlaybookPage_NotFound(t *testing.T) {
	h, _ := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, doJSON(t, h, http.MethodGet, "/playbook/missing", "10.0.0.3", nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, h, http.MethodGet, "/playbook/", "10.0.0.3", nil).Code)
}

func TestCreatePlaybook_BadRequests(t *testing.T) {
	h, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/playbooks", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request", decode(t, w)["message"])

	w = doJSON(t, h, http.MethodPost, "/api/playbooks", "10.0.0.4", map[string]string{"path": " "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "empty_path", decode(t, w)["message"])
}

func TestCompletePlaybook_NotFound(t *testing.T) {
	h, _ := newTestServer(t)
	w := doJSON(t, h, http.MethodPost, "/api/playbooks/complete", "10.0.0.5", map[string]string{"id": "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decode(t, w)["message"])
}

func TestAddResult_Errors(t *testing.T) {
	h, st := newTestServer(t)
	p, err := st.CreatePlaybook(context.Background(), "/site.yml")
	require.NoError(t, err)

	tests := []struct {
		name string
		body map[string]any
		code int
		msg  string
	}{
		{"missing playbook id", map[string]any{"path": "/t.yml"}, http.StatusBadRequest, "invalid_request"},
		{"unknown playbook", map[string]any{"playbook_id": "missing", "path": "/t.yml"}, http.StatusNotFound, "not_found"},
		{"bad status", map[string]any{"playbook_id": p.ID, "path": "/t.yml", "status": "exploded"}, http.StatusBadRequest, "invalid_status"},
		{"empty path", map[string]any{"playbook_id": p.ID}, http.StatusBadRequest, "empty_path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, h, http.MethodPost, "/api/results", "10.0.0.6", tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
			assert.Equal(t, tt.msg, decode(t, w)["message"])
		})
	}
}

func TestListResults_MissingID(t *testing.T) {
	h, _ := newTestServer(t)
	w := doJSON(t, h, http.MethodGet, "/api/results", "10.0.0.7", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "missing_playbook_id", decode(t, w)["message"])
}

type failingStore struct{ reportStore }

func (failingStore) ListPlaybooks(context.Context) ([]store.Playbook, error) {
	return nil, errors.New("disk on fire")
}

func TestIndex_StoreError(t *testing.T) {
	env, err := render.New(30)
	require.NoError(t, err)
	h := New(failingStore{}, env)

	w := doJSON(t, h, http.MethodGet, "/api/playbooks", "10.0.0.8", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal_error", decode(t, w)["message"])
}

type payloadRejectingStore struct{ reportStore }

func (payloadRejectingStore) AddResult(context.Context, store.NewResult) (int64, error) {
	return 0, fmt.Errorf("add: %w", store.ErrInvalidPayload)
}

func TestAddResult_InvalidPayload(t *testing.T) {
	env, err := render.New(30)
	require.NoError(t, err)
	h := New(payloadRejectingStore{}, env)

	w := doJSON(t, h, http.MethodPost, "/api/results", "10.0.0.9", map[string]any{
		"playbook_id": "p1", "path": "/t.yml", "result": map[string]any{"changed": true},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_payload", decode(t, w)["message"])
}

type panickingStore struct{ reportStore }

func (panickingStore) ListPlaybooks(context.Context) ([]store.Playbook, error) {
	panic("boom")
}

func TestRecoverer(t *testing.T) {
	env, err := render.New(30)
	require.NoError(t, err)
	h := New(panickingStore{}, env)

	w := doJSON(t, h, http.MethodGet, "/", "10.0.0.9", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

type brokenPages struct{}

func (brokenPages) RenderPage(io.Writer, string, any) error { return errors.New("bad template") }

func TestIndex_RenderError(t *testing.T) {
	st, err := store.Open(store.MemoryPath)
	require.NoError(t, err)
	defer st.Close()

	w := doJSON(t, New(st, brokenPages{}), http.MethodGet, "/", "10.0.0.10", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "render error", w.Body.String())
}

func TestRateLimited(t *testing.T) {
	h, _ := newTestServer(t)
	var last *httptest.ResponseRecorder
	for i := 0; i < 121; i++ {
		last = doJSON(t, h, http.MethodGet, "/api/playbooks", "10.9.9.9", nil)
	}
	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.Equal(t, "rate_limited", decode(t, last)["message"])
}
