// Package genai calls the hosted text-generation model behind the "@ai"
// room bot.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/coderoom/internal/common"
	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Generator turns a prompt into a single, non-streamed completion.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeminiClient talks to the Gemini generateContent endpoint.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	model      string
	system     string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
}

type Option func(*GeminiClient)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *GeminiClient) { g.httpClient = c }
}

// WithRequestsPerMinute limits outbound calls; n <= 0 disables the limit.
func WithRequestsPerMinute(n int) Option {
	return func(g *GeminiClient) {
		if n <= 0 {
			g.limiter = nil
			return
		}
		g.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), n)
	}
}

// WithTimeout bounds each call; 0 means no deadline beyond the caller's.
func WithTimeout(d time.Duration) Option {
	return func(g *GeminiClient) { g.timeout = d }
}

// WithSystemInstruction overrides SystemInstruction.
func WithSystemInstruction(s string) Option {
	return func(g *GeminiClient) { g.system = s }
}

func NewGeminiClient(apiKey, model, baseURL string, opts ...Option) *GeminiClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	g := &GeminiClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		system:     SystemInstruction,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Generate returns the concatenated text parts of the first candidate.
// Transport failures, non-200 replies and empty candidate lists all wrap
// common.ErrUpstream.
func (g *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	payload := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
	}
	if g.system != "" {
		payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: g.system}}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, url.PathEscape(g.model), url.QueryEscape(g.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrUpstream, redact(err, g.apiKey))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: gemini request failed: %s: %s", common.ErrUpstream, resp.Status, strings.TrimSpace(string(snippet)))
	}

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decoding gemini response: %v", common.ErrUpstream, err)
	}
	if len(out.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates returned", common.ErrUpstream)
	}

	parts := make([]string, 0, len(out.Candidates[0].Content.Parts))
	for _, p := range out.Candidates[0].Content.Parts {
		parts = append(parts, p.Text)
	}
	return strings.Join(parts, ""), nil
}

// redact keeps the API key out of error strings; url.Error embeds the URL.
func redact(err error, key string) string {
	msg := err.Error()
	if key == "" {
		return msg
	}
	return strings.ReplaceAll(msg, url.QueryEscape(key), "REDACTED")
}
