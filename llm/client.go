package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"product-pulse/config"
)

// Client ist die schmale Schnittstelle zum externen Completion-Service.
// Die Pipeline besitzt die Validierung der Antworten, nicht deren Erzeugung.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// OpenAIClient implementiert Client über die Chat-Completions-API.
type OpenAIClient struct {
	Logger *zap.Logger

	api     *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIClient erstellt einen Client aus der Konfiguration.
// Der Timeout (AI_TIMEOUT, Default 30s) gilt pro Completion-Aufruf;
// die Pipeline hat kein eigenes Retry/Backoff.
func NewOpenAIClient(cfg *config.Config, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY ist für die Content-Verarbeitung erforderlich")
	}

	apiCfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		apiCfg.BaseURL = cfg.OpenAIBaseURL
	}

	return &OpenAIClient{
		Logger:  logger,
		api:     openai.NewClientWithConfig(apiCfg),
		model:   cfg.OpenAIModel,
		timeout: cfg.CompletionWindow,
	}, nil
}

// Complete schickt einen Prompt und gibt den Antworttext zurück.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		Temperature: 0.7,
		MaxTokens:   1500,
	})
	if err != nil {
		return "", fmt.Errorf("completion fehlgeschlagen: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("completion-service lieferte eine leere Antwort")
	}

	c.Logger.Debug("Completion erhalten",
		zap.String("model", c.model),
		zap.Duration("took", time.Since(start)))
	return resp.Choices[0].Message.Content, nil
}
