package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"TenderScanner/internal/config"
	"TenderScanner/internal/domain"
	"TenderScanner/internal/logging"
	"TenderScanner/internal/ports"
)

// ChatGPTAnalyzer implements ports.Analyzer backed by OpenAI-compatible APIs.
type ChatGPTAnalyzer struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	httpClient   *http.Client
	logger       *slog.Logger
}

var _ ports.Analyzer = (*ChatGPTAnalyzer)(nil)

// NewChatGPTAnalyzer builds an analyzer from configuration.
func NewChatGPTAnalyzer(cfg config.LLMConfig, log *slog.Logger) *ChatGPTAnalyzer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if log == nil {
		log = logging.Discard()
	}
	return &ChatGPTAnalyzer{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: instructions(cfg.SystemPrompt),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: log,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	ResponseFormat map[string]any `json:"response_format"`
	Temperature    float64        `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		FinishReason string `json:"finish_reason"`
		Message      struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
	} `json:"choices"`
}

// Ready fails when no API key is configured.
func (c *ChatGPTAnalyzer) Ready() error {
	if c == nil || c.apiKey == "" {
		return domain.ErrMissingCredential
	}
	return nil
}

// Analyze asks the model for a response constrained by the extraction schema.
func (c *ChatGPTAnalyzer) Analyze(ctx context.Context, text string) (domain.Extraction, error) {
	if err := c.Ready(); err != nil {
		return domain.Extraction{}, err
	}
	if c.endpoint == "" || c.model == "" {
		return domain.Extraction{}, fmt.Errorf("%w: chatgpt analyzer misconfigured", domain.ErrAnalysis)
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: c.systemPrompt},
			{Role: "user", Content: text},
		},
		ResponseFormat: map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "tender_extraction",
				"strict": true,
				"schema": jsonSchema(),
			},
		},
	})
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("%w: marshal chatgpt payload: %w", domain.ErrAnalysis, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("%w: new request: %w", domain.ErrAnalysis, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("%w: send chatgpt request: %w", domain.ErrAnalysis, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return domain.Extraction{}, fmt.Errorf("%w: chatgpt error %s: %s", domain.ErrAnalysis, resp.Status, readErrorBody(resp))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.Extraction{}, fmt.Errorf("%w: decode chatgpt envelope: %w", domain.ErrAnalysis, err)
	}
	if len(decoded.Choices) == 0 {
		return domain.Extraction{}, fmt.Errorf("%w: chatgpt returned no choices", domain.ErrAnalysis)
	}

	choice := decoded.Choices[0]
	if choice.Message.Refusal != "" {
		return domain.Extraction{}, fmt.Errorf("%w: model refused: %s", domain.ErrAnalysis, choice.Message.Refusal)
	}
	if choice.FinishReason == "length" {
		return domain.Extraction{}, fmt.Errorf("%w: chatgpt response truncated", domain.ErrAnalysis)
	}

	c.logger.Debug("chatgpt analysis done", "model", c.model, "duration", time.Since(started))
	return decodeExtraction([]byte(strings.TrimSpace(choice.Message.Content)))
}
