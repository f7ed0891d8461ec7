// Package registry собирает провайдеров из каталога конфигурации.
package registry

import (
	"fmt"
	"strings"

	"campaign-server/internal/config"
	"campaign-server/internal/provider"
	"campaign-server/internal/provider/ollama"
	"campaign-server/internal/provider/openai"
	"campaign-server/internal/provider/sana"

	"go.uber.org/zap"
)

// TokenCounter - оценка размера промпта, доступна только для OpenAI-моделей.
type TokenCounter interface {
	Count(text string) int
}

// Providers - набор провайдеров одного воркера.
type Providers struct {
	Reasoning provider.ReasoningProvider
	Visual    []provider.VisualProvider // Порядок цепочки фоллбэка
	Speech    provider.SpeechProvider
	Tokens    TokenCounter // Может быть nil
}

// Build создает провайдеров по каталогу. apiKey используется всеми OpenAI-совместимыми клиентами.
func Build(catalog *config.ProviderCatalog, apiKey string, logger *zap.Logger) (*Providers, error) {
	log := logger.Named("ProviderRegistry")
	out := &Providers{}

	switch strings.ToLower(catalog.Reasoning.Type) {
	case "openai":
		client := openai.NewClient(openai.Config{APIKey: apiKey, BaseURL: catalog.Reasoning.BaseURL, Timeout: catalog.Reasoning.Timeout})
		out.Reasoning = openai.NewReasoning(client, catalog.Reasoning.Model, logger)
		if tc, err := openai.NewTokenCounter(catalog.Reasoning.Model); err != nil {
			log.Warn("Token counter unavailable, prompt sizes will not be logged", zap.Error(err))
		} else {
			out.Tokens = tc
		}
	case "ollama":
		r, err := ollama.NewReasoning(ollama.Config{
			BaseURL: catalog.Reasoning.BaseURL,
			Model:   catalog.Reasoning.Model,
			Timeout: catalog.Reasoning.Timeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		out.Reasoning = r
	default:
		return nil, fmt.Errorf("unknown reasoning provider type %q", catalog.Reasoning.Type)
	}
	log.Info("Reasoning provider configured", zap.String("type", catalog.Reasoning.Type), zap.String("model", catalog.Reasoning.Model))

	for _, v := range catalog.Visual {
		switch strings.ToLower(v.Type) {
		case "openai":
			client := openai.NewClient(openai.Config{APIKey: apiKey, BaseURL: v.BaseURL, Timeout: v.Timeout})
			out.Visual = append(out.Visual, openai.NewImages(client, v.Model, v.Name, logger))
		case "sana":
			out.Visual = append(out.Visual, sana.New(sana.Config{
				Name:        v.Name,
				BaseURL:     v.BaseURL,
				Timeout:     v.Timeout,
				StyleSuffix: v.StyleSuffix,
			}, logger))
		default:
			return nil, fmt.Errorf("visual provider %q: unknown type %q", v.Name, v.Type)
		}
	}
	if len(out.Visual) == 0 {
		return nil, fmt.Errorf("visual provider chain is empty")
	}
	log.Info("Visual provider chain configured", zap.Strings("chain", Names(out.Visual)))

	speechClient := openai.NewClient(openai.Config{APIKey: apiKey, BaseURL: catalog.Speech.BaseURL, Timeout: catalog.Speech.Timeout})
	out.Speech = openai.NewSpeech(speechClient, catalog.Speech.Model, catalog.Speech.Voice, logger)

	return out, nil
}

// Names возвращает имена провайдеров цепочки по порядку.
func Names(chain []provider.VisualProvider) []string {
	names := make([]string, 0, len(chain))
	for _, p := range chain {
		names = append(names, p.Name())
	}
	return names
}
