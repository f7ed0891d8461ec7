package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"campaign-server/internal/provider"

	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Reasoning - провайдер структурированного анализа через chat completions с JSON schema.
type Reasoning struct {
	client *openaigo.Client
	model  string
	logger *zap.Logger
}

func NewReasoning(client *openaigo.Client, model string, logger *zap.Logger) *Reasoning {
	return &Reasoning{client: client, model: model, logger: logger.Named("OpenAIReasoning")}
}

func (r *Reasoning) Name() string { return "openai" }

func (r *Reasoning) Complete(ctx context.Context, req provider.ReasoningRequest) (provider.ReasoningResponse, error) {
	if strings.TrimSpace(req.SystemPrompt) == "" {
		return provider.ReasoningResponse{}, provider.NewError(r.Name(), provider.ClassPermanent, 0,
			fmt.Errorf("system prompt is empty"))
	}

	messages := []openaigo.ChatCompletionMessage{
		{Role: openaigo.ChatMessageRoleSystem, Content: req.SystemPrompt},
	}
	if req.UserInput != "" {
		messages = append(messages, openaigo.ChatCompletionMessage{Role: openaigo.ChatMessageRoleUser, Content: req.UserInput})
	}

	chatReq := openaigo.ChatCompletionRequest{
		Model:    r.model,
		Messages: messages,
		User:     req.AccountID,
	}
	if len(req.Schema) > 0 {
		chatReq.ResponseFormat = &openaigo.ChatCompletionResponseFormat{
			Type: openaigo.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openaigo.ChatCompletionResponseFormatJSONSchema{
				Name:   req.SchemaName,
				Schema: req.Schema,
			},
		}
	}

	start := time.Now()
	resp, err := r.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		r.logger.Error("Chat completion failed", zap.String("model", r.model), zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return provider.ReasoningResponse{}, wrapError(r.Name(), err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return provider.ReasoningResponse{}, provider.NewError(r.Name(), provider.ClassTransient, 0, provider.ErrEmptyPayload)
	}

	r.logger.Debug("Chat completion received",
		zap.String("model", r.model),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return provider.ReasoningResponse{
		Text: resp.Choices[0].Message.Content,
		Usage: provider.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

var _ provider.ReasoningProvider = (*Reasoning)(nil)
