package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"longevity-chat-be/internal/entity"
	"longevity-chat-be/internal/pkg/apperror"
	"longevity-chat-be/internal/pkg/logger"
)

const (
	// sessionKeyPrefix derives the agent-side session key from the local
	// session id so the agent keeps its own per-session context regardless
	// of the local id format.
	sessionKeyPrefix = "chat-"

	maxUpstreamErrorBytes = 1000

	defaultContentType = "application/octet-stream"
)

type Config struct {
	BaseURL string
	Timeout time.Duration
	// OutputPathPrefix is the agent's output namespace; only URLs under it
	// are proxied.
	OutputPathPrefix string
	// ProxyPath is the local path artifact URLs are rewritten to.
	ProxyPath string
}

// Client is the gateway to the external agent process. It is stateless
// between calls; session continuity is the agent's responsibility.
type Client struct {
	cfg        Config
	baseURL    string
	agentHost  string
	httpClient *http.Client
	log        logger.ILogger
}

func NewClient(cfg Config, log logger.ILogger) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	parsed, err := url.Parse(base)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("invalid agent base URL %q", cfg.BaseURL)
	}
	if cfg.ProxyPath == "" {
		cfg.ProxyPath = "/api/agent/artifact"
	}
	if cfg.OutputPathPrefix == "" {
		cfg.OutputPathPrefix = "/outputs"
	}
	return &Client{
		cfg:       cfg,
		baseURL:   base,
		agentHost: parsed.Host,
		// Timeouts are applied per call via context so artifact streaming
		// is not bounded by the chat deadline.
		httpClient: &http.Client{},
		log:        log,
	}, nil
}

type TurnResult struct {
	Output    string
	Artifacts []entity.Artifact
	ToolsUsed []string
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionId string `json:"session_id"`
}

type wireArtifact struct {
	Id    string `json:"id"`
	Label string `json:"label,omitempty"`
	Name  string `json:"name,omitempty"`
	Path  string `json:"path,omitempty"`
	Type  string `json:"type,omitempty"`
	Size  int64  `json:"size,omitempty"`
	Url   string `json:"url,omitempty"`
}

type chatResponse struct {
	Output    string         `json:"output"`
	SessionId string         `json:"session_id"`
	Artifacts []wireArtifact `json:"artifacts"`
	ToolsUsed []string       `json:"tools_used"`
}

// SendTurn forwards one chat turn to the agent and translates the response
// for client consumption.
func (c *Client) SendTurn(ctx context.Context, message, sessionID string) (*TurnResult, error) {
	if strings.TrimSpace(message) == "" {
		return nil, apperror.InvalidArgument("message must not be empty")
	}

	body, err := json.Marshal(chatRequest{
		Message:   message,
		SessionId: sessionKeyPrefix + sessionID,
	})
	if err != nil {
		return nil, apperror.Internal(err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return nil, apperror.Internal(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			c.log.Warn("agent", "Agent call timed out", map[string]interface{}{
				"timeout_ms": c.cfg.Timeout.Milliseconds(),
			})
			return nil, apperror.Timeout("agent call timed out")
		}
		return nil, apperror.Wrap(apperror.CodeBadGateway, "agent unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := truncate(readBodyBestEffort(resp.Body), maxUpstreamErrorBytes)
		c.log.Warn("agent", "Agent returned non-success status", map[string]interface{}{
			"status": resp.StatusCode,
		})
		return nil, apperror.BadGateway("agent returned an error", detail)
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, apperror.Wrap(apperror.CodeBadGateway, "agent returned malformed response", err)
	}

	result := &TurnResult{
		Output:    decoded.Output,
		Artifacts: make([]entity.Artifact, 0, len(decoded.Artifacts)),
		ToolsUsed: decoded.ToolsUsed,
	}
	if result.ToolsUsed == nil {
		result.ToolsUsed = []string{}
	}
	for _, a := range decoded.Artifacts {
		result.Artifacts = append(result.Artifacts, c.toArtifact(a))
	}
	return result, nil
}

// Health probes the agent's /health endpoint.
func (c *Client) Health(ctx context.Context) error {
	callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return apperror.Internal(err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return apperror.Timeout("agent health check timed out")
		}
		return apperror.Wrap(apperror.CodeBadGateway, "agent unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apperror.BadGateway("agent unhealthy", "")
	}
	return nil
}

func (c *Client) toArtifact(a wireArtifact) entity.Artifact {
	rawURL := a.Url
	if rawURL == "" && a.Path != "" {
		// The agent registry reports filesystem paths; expose the portion
		// under the output namespace through the agent's HTTP surface.
		if idx := strings.Index(a.Path, c.cfg.OutputPathPrefix+"/"); idx >= 0 {
			rawURL = c.baseURL + a.Path[idx:]
		}
	}

	name := a.Name
	if name == "" {
		name = a.Label
	}
	if name == "" && a.Path != "" {
		name = path.Base(a.Path)
	}

	return entity.Artifact{
		Id:   a.Id,
		Name: name,
		Type: a.Type,
		Size: a.Size,
		Url:  c.RewriteArtifactURL(rawURL),
	}
}

// RewriteArtifactURL replaces URLs pointing into the agent's output
// namespace with a same-origin proxy URL carrying the original as a query
// parameter. Anything else passes through unchanged, which also makes the
// rewrite idempotent: proxy URLs never match the agent host/prefix pattern.
func (c *Client) RewriteArtifactURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || !parsed.IsAbs() {
		return raw
	}
	if parsed.Host != c.agentHost {
		return raw
	}
	if !strings.HasPrefix(parsed.Path, c.cfg.OutputPathPrefix) {
		return raw
	}
	return c.cfg.ProxyPath + "?u=" + url.QueryEscape(raw)
}

// ArtifactContent is the outcome of an artifact fetch. A non-2xx upstream
// status is not an error; the caller propagates it verbatim.
type ArtifactContent struct {
	StatusCode    int
	ContentType   string
	ContentLength int64 // -1 when unknown
	Body          io.ReadCloser
}

// FetchArtifact streams a previously generated file from the agent's
// output directory. The URL must target the agent host and its output
// namespace; the check keeps the proxy from becoming an open relay.
func (c *Client) FetchArtifact(ctx context.Context, rawURL string) (*ArtifactContent, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, apperror.InvalidArgument("artifact url is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || !parsed.IsAbs() {
		return nil, apperror.InvalidArgument("artifact url must be absolute")
	}
	if parsed.Host != c.agentHost {
		return nil, apperror.InvalidArgument("artifact url host is not the configured agent")
	}
	if !strings.HasPrefix(parsed.Path, c.cfg.OutputPathPrefix) {
		return nil, apperror.InvalidArgument("artifact url is outside the agent output namespace")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperror.Wrap(apperror.CodeBadGateway, "agent unreachable", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultContentType
	}

	content := &ArtifactContent{
		StatusCode:    resp.StatusCode,
		ContentType:   contentType,
		ContentLength: resp.ContentLength,
		Body:          resp.Body,
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Buffer error bodies so the upstream connection is released;
		// read failures degrade to an empty body.
		body := readBodyBestEffort(resp.Body)
		resp.Body.Close()
		content.Body = io.NopCloser(strings.NewReader(body))
		content.ContentLength = int64(len(body))
	}

	return content, nil
}

func readBodyBestEffort(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 64*1024))
	if err != nil {
		return ""
	}
	return string(data)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
