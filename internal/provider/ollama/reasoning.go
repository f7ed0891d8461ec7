// Package ollama - self-hosted reasoning провайдер через нативный API Ollama.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"campaign-server/internal/provider"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"
)

// Config - параметры подключения к Ollama.
type Config struct {
	BaseURL     string // Например http://ollama:11434, без суффикса /v1
	Model       string
	Timeout     time.Duration
	Temperature float64
}

type Reasoning struct {
	client *api.Client
	cfg    Config
	logger *zap.Logger
}

func NewReasoning(cfg Config, logger *zap.Logger) (*Reasoning, error) {
	baseURL := strings.TrimSuffix(strings.TrimSuffix(cfg.BaseURL, "/"), "/v1")
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse ollama base url %q: %w", baseURL, err)
	}
	client := api.NewClient(parsedURL, &http.Client{Timeout: cfg.Timeout})
	return &Reasoning{client: client, cfg: cfg, logger: logger.Named("OllamaReasoning")}, nil
}

func (r *Reasoning) Name() string { return "ollama" }

func (r *Reasoning) Complete(ctx context.Context, req provider.ReasoningRequest) (provider.ReasoningResponse, error) {
	messages := []api.Message{{Role: "system", Content: req.SystemPrompt}}
	if req.UserInput != "" {
		messages = append(messages, api.Message{Role: "user", Content: req.UserInput})
	}

	stream := false
	chatReq := &api.ChatRequest{
		Model:    r.cfg.Model,
		Messages: messages,
		Stream:   &stream,
		Format:   req.Schema,
		Options:  map[string]interface{}{"temperature": r.cfg.Temperature},
	}

	start := time.Now()
	var resp api.ChatResponse
	err := r.client.Chat(ctx, chatReq, func(cr api.ChatResponse) error {
		resp = cr
		return nil
	})
	if err != nil {
		r.logger.Error("Ollama chat failed", zap.String("model", r.cfg.Model), zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		var statusErr api.StatusError
		if errors.As(err, &statusErr) {
			return provider.ReasoningResponse{}, provider.FromHTTPStatus(r.Name(), statusErr.StatusCode, []byte(statusErr.ErrorMessage))
		}
		return provider.ReasoningResponse{}, err
	}
	if resp.Message.Content == "" {
		return provider.ReasoningResponse{}, provider.NewError(r.Name(), provider.ClassTransient, 0, provider.ErrEmptyPayload)
	}

	return provider.ReasoningResponse{
		Text: resp.Message.Content,
		Usage: provider.Usage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
			TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
		},
	}, nil
}

var _ provider.ReasoningProvider = (*Reasoning)(nil)
