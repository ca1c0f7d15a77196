package llm

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"TenderScanner/internal/config"
	"TenderScanner/internal/ports"
)

const errorBodyLimit = 1024

// New picks the analyzer implementation for the configured provider.
func New(cfg config.LLMConfig, log *slog.Logger) (ports.Analyzer, error) {
	switch strings.ToLower(cfg.Provider) {
	case config.ProviderOpenAI:
		return NewChatGPTAnalyzer(cfg, log), nil
	case config.ProviderGemini:
		return NewGeminiAnalyzer(cfg, log), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

func readErrorBody(resp *http.Response) string {
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	return strings.TrimSpace(string(payload))
}
