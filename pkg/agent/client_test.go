package agent

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"longevity-chat-be/internal/pkg/apperror"
	"longevity-chat-be/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, baseURL string, timeout time.Duration) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL:          baseURL,
		Timeout:          timeout,
		OutputPathPrefix: "/outputs",
	}, logger.NewNopLogger())
	require.NoError(t, err)
	return c
}

func TestSendTurnSuccess(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"output":     "Here is the survival analysis.",
			"session_id": gotReq.SessionId,
			"artifacts": []map[string]interface{}{
				{
					"id":    "km-1",
					"label": "KM Plot",
					"path":  "/srv/agent/outputs/km_plot.png",
					"type":  "image/png",
					"size":  4096,
				},
			},
			"tools_used": []string{"run_survival_analysis"},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 2*time.Second)

	result, err := c.SendTurn(context.Background(), "Plot survival by cohort", "abc-123")
	require.NoError(t, err)

	assert.Equal(t, "chat-abc-123", gotReq.SessionId)
	assert.Equal(t, "Here is the survival analysis.", result.Output)
	assert.Equal(t, []string{"run_survival_analysis"}, result.ToolsUsed)

	require.Len(t, result.Artifacts, 1)
	art := result.Artifacts[0]
	assert.Equal(t, "km-1", art.Id)
	assert.Equal(t, "KM Plot", art.Name)

	// The filesystem path is exposed through the output namespace, then
	// rewritten to the same-origin proxy.
	assert.True(t, strings.HasPrefix(art.Url, "/api/agent/artifact?u="), art.Url)
	original, err := url.QueryUnescape(strings.TrimPrefix(art.Url, "/api/agent/artifact?u="))
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/outputs/km_plot.png", original)
}

func TestSendTurnEmptyMessage(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:8000", time.Second)

	_, err := c.SendTurn(context.Background(), "   ", "abc")
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidArgument))
}

func TestSendTurnUpstreamErrorTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(strings.Repeat("x", 5000)))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 2*time.Second)

	_, err := c.SendTurn(context.Background(), "hello", "abc")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeBadGateway))

	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Len(t, appErr.Detail, 1000)
}

func TestSendTurnTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 50*time.Millisecond)

	_, err := c.SendTurn(context.Background(), "hello", "abc")
	assert.True(t, apperror.IsCode(err, apperror.CodeTimeout), "got %v", err)
}

func TestRewriteArtifactURL(t *testing.T) {
	c := newTestClient(t, "http://agent.internal:8000", time.Second)

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "agent output URL is rewritten",
			raw:  "http://agent.internal:8000/outputs/plot.png",
			want: "/api/agent/artifact?u=" + url.QueryEscape("http://agent.internal:8000/outputs/plot.png"),
		},
		{
			name: "foreign host passes through",
			raw:  "http://evil.example.com/outputs/plot.png",
			want: "http://evil.example.com/outputs/plot.png",
		},
		{
			name: "agent host outside output namespace passes through",
			raw:  "http://agent.internal:8000/etc/passwd",
			want: "http://agent.internal:8000/etc/passwd",
		},
		{
			name: "relative URL passes through",
			raw:  "/outputs/plot.png",
			want: "/outputs/plot.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.RewriteArtifactURL(tt.raw))
		})
	}
}

func TestRewriteArtifactURLIdempotent(t *testing.T) {
	c := newTestClient(t, "http://agent.internal:8000", time.Second)

	once := c.RewriteArtifactURL("http://agent.internal:8000/outputs/plot.png")
	assert.Equal(t, once, c.RewriteArtifactURL(once))
}

func TestFetchArtifactSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/outputs/plot.png", r.URL.Path)
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("PNG-BYTES"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, time.Second)

	content, err := c.FetchArtifact(context.Background(), srv.URL+"/outputs/plot.png")
	require.NoError(t, err)
	defer content.Body.Close()

	assert.Equal(t, http.StatusOK, content.StatusCode)
	assert.Equal(t, "image/png", content.ContentType)

	body, err := io.ReadAll(content.Body)
	require.NoError(t, err)
	assert.Equal(t, "PNG-BYTES", string(body))
}

func TestFetchArtifactDefaultsContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Suppress Go's content sniffing so the header is truly absent.
		w.Header()["Content-Type"] = nil
		w.Write([]byte{0x00, 0x01})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, time.Second)

	content, err := c.FetchArtifact(context.Background(), srv.URL+"/outputs/blob.bin")
	require.NoError(t, err)
	defer content.Body.Close()

	assert.Equal(t, "application/octet-stream", content.ContentType)
}

func TestFetchArtifactPropagatesUpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, time.Second)

	content, err := c.FetchArtifact(context.Background(), srv.URL+"/outputs/gone.png")
	require.NoError(t, err)
	defer content.Body.Close()

	assert.Equal(t, http.StatusNotFound, content.StatusCode)
}

func TestFetchArtifactRejectsOutsideBoundary(t *testing.T) {
	c := newTestClient(t, "http://agent.internal:8000", time.Second)

	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "relative", raw: "/outputs/plot.png"},
		{name: "foreign host", raw: "http://evil.example.com/outputs/plot.png"},
		{name: "agent host outside namespace", raw: "http://agent.internal:8000/internal/secrets"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.FetchArtifact(context.Background(), tt.raw)
			assert.True(t, apperror.IsCode(err, apperror.CodeInvalidArgument), "got %v", err)
		})
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, time.Second)
	assert.NoError(t, c.Health(context.Background()))
}
