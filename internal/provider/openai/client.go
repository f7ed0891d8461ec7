// Package openai реализует reasoning, image и speech провайдеров поверх OpenAI-совместимого API.
package openai

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"campaign-server/internal/provider"

	openaigo "github.com/sashabaranov/go-openai"
)

// Config - параметры подключения к OpenAI-совместимому API.
type Config struct {
	APIKey  string
	BaseURL string // Пусто - официальный API
	Timeout time.Duration
}

// NewClient создает клиента go-openai с собственным HTTP-таймаутом.
func NewClient(cfg Config) *openaigo.Client {
	clientCfg := openaigo.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return openaigo.NewClientWithConfig(clientCfg)
}

// wrapError переводит ошибки go-openai в provider.Error с классом по HTTP-статусу.
// Сетевые ошибки без статуса возвращаются как есть, их классифицирует provider.Classify.
func wrapError(name string, err error) error {
	var apiErr *openaigo.APIError
	if errors.As(err, &apiErr) {
		body := fmt.Sprintf("%v %s %s", apiErr.Code, apiErr.Type, apiErr.Message)
		return provider.NewError(name, provider.ClassifyHTTPStatus(apiErr.HTTPStatusCode, []byte(body)), apiErr.HTTPStatusCode, err)
	}
	var reqErr *openaigo.RequestError
	if errors.As(err, &reqErr) {
		return provider.NewError(name, provider.ClassifyHTTPStatus(reqErr.HTTPStatusCode, nil), reqErr.HTTPStatusCode, err)
	}
	return err
}
