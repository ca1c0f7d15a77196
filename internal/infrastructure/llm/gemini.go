package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"TenderScanner/internal/config"
	"TenderScanner/internal/domain"
	"TenderScanner/internal/logging"
	"TenderScanner/internal/ports"
)

// GeminiAnalyzer implements ports.Analyzer against the generateContent REST API.
type GeminiAnalyzer struct {
	baseURL      string
	model        string
	apiKey       string
	systemPrompt string
	httpClient   *http.Client
	logger       *slog.Logger
}

var _ ports.Analyzer = (*GeminiAnalyzer)(nil)

// NewGeminiAnalyzer builds an analyzer; cfg.Endpoint is the API base, e.g. https://generativelanguage.googleapis.com/v1beta.
func NewGeminiAnalyzer(cfg config.LLMConfig, log *slog.Logger) *GeminiAnalyzer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if log == nil {
		log = logging.Discard()
	}
	return &GeminiAnalyzer{
		baseURL:      strings.TrimRight(cfg.Endpoint, "/"),
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: instructions(cfg.SystemPrompt),
		httpClient:   &http.Client{Timeout: timeout},
		logger:       log,
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction geminiContent   `json:"systemInstruction"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  map[string]any  `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Ready fails when no API key is configured.
func (g *GeminiAnalyzer) Ready() error {
	if g == nil || g.apiKey == "" {
		return domain.ErrMissingCredential
	}
	return nil
}

// Analyze requests application/json output validated by the provider against responseSchema.
func (g *GeminiAnalyzer) Analyze(ctx context.Context, text string) (domain.Extraction, error) {
	if err := g.Ready(); err != nil {
		return domain.Extraction{}, err
	}
	if g.baseURL == "" || g.model == "" {
		return domain.Extraction{}, fmt.Errorf("%w: gemini analyzer misconfigured", domain.ErrAnalysis)
	}

	body, err := json.Marshal(geminiRequest{
		SystemInstruction: geminiContent{Parts: []geminiPart{{Text: g.systemPrompt}}},
		Contents:          []geminiContent{{Role: "user", Parts: []geminiPart{{Text: text}}}},
		GenerationConfig: map[string]any{
			"responseMimeType": "application/json",
			"responseSchema":   geminiSchema(),
			"temperature":      0,
		},
	})
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("%w: marshal gemini payload: %w", domain.ErrAnalysis, err)
	}

	endpoint := g.baseURL + "/models/" + url.PathEscape(g.model) + ":generateContent"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("%w: new request: %w", domain.ErrAnalysis, err)
	}
	req.Header.Set("x-goog-api-key", g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("%w: send gemini request: %w", domain.ErrAnalysis, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return domain.Extraction{}, fmt.Errorf("%w: gemini error %s: %s", domain.ErrAnalysis, resp.Status, readErrorBody(resp))
	}

	var decoded geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.Extraction{}, fmt.Errorf("%w: decode gemini envelope: %w", domain.ErrAnalysis, err)
	}
	if reason := decoded.PromptFeedback.BlockReason; reason != "" {
		return domain.Extraction{}, fmt.Errorf("%w: prompt blocked: %s", domain.ErrAnalysis, reason)
	}
	if len(decoded.Candidates) == 0 {
		return domain.Extraction{}, fmt.Errorf("%w: gemini returned no candidates", domain.ErrAnalysis)
	}

	candidate := decoded.Candidates[0]
	if candidate.FinishReason == "MAX_TOKENS" {
		return domain.Extraction{}, fmt.Errorf("%w: gemini response truncated", domain.ErrAnalysis)
	}

	var out strings.Builder
	for _, part := range candidate.Content.Parts {
		out.WriteString(part.Text)
	}

	g.logger.Debug("gemini analysis done", "model", g.model, "duration", time.Since(started))
	return decodeExtraction([]byte(strings.TrimSpace(out.String())))
}
