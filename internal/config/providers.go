package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// ProviderCatalog описывает провайдеров: reasoning, цепочку визуальных провайдеров по порядку и TTS.
type ProviderCatalog struct {
	Reasoning ReasoningProviderConfig `yaml:"reasoning"`
	Visual    []VisualProviderConfig  `yaml:"visual"`
	Speech    SpeechProviderConfig    `yaml:"speech"`
}

type ReasoningProviderConfig struct {
	Type    string        `yaml:"type" env:"REASONING_PROVIDER" env-default:"openai"` // openai или ollama
	Model   string        `yaml:"model" env:"REASONING_MODEL" env-default:"gpt-4o-mini"`
	BaseURL string        `yaml:"base_url" env:"REASONING_BASE_URL"`
	Timeout time.Duration `yaml:"timeout" env:"REASONING_HTTP_TIMEOUT" env-default:"180s"`
}

// VisualProviderConfig - один элемент цепочки. Name должен быть уникален внутри цепочки.
type VisualProviderConfig struct {
	Name        string        `yaml:"name"`
	Type        string        `yaml:"type"` // openai или sana
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	StyleSuffix string        `yaml:"style_suffix"`
}

type SpeechProviderConfig struct {
	Model   string        `yaml:"model" env:"SPEECH_MODEL" env-default:"tts-1"`
	Voice   string        `yaml:"voice" env:"SPEECH_VOICE" env-default:"alloy"`
	BaseURL string        `yaml:"base_url" env:"SPEECH_BASE_URL"`
	Timeout time.Duration `yaml:"timeout" env:"SPEECH_HTTP_TIMEOUT" env-default:"120s"`
}

var defaultVisualChain = []VisualProviderConfig{
	{Name: "openai-images", Type: "openai", Model: "dall-e-3", Timeout: 180 * time.Second},
}

// LoadProviderCatalog читает YAML-каталог. Если файла нет, каталог собирается из окружения
// с цепочкой по умолчанию из одного провайдера.
func LoadProviderCatalog(path string) (*ProviderCatalog, error) {
	var catalog ProviderCatalog
	if _, statErr := os.Stat(path); statErr == nil {
		if err := cleanenv.ReadConfig(path, &catalog); err != nil {
			return nil, fmt.Errorf("failed to read provider catalog %s: %w", path, err)
		}
	} else if errors.Is(statErr, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(&catalog); err != nil {
			return nil, fmt.Errorf("failed to read provider catalog from env: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat provider catalog %s: %w", path, statErr)
	}

	if len(catalog.Visual) == 0 {
		catalog.Visual = append([]VisualProviderConfig(nil), defaultVisualChain...)
	}
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	return &catalog, nil
}

// Validate проверяет типы провайдеров и уникальность имен в цепочке.
func (c *ProviderCatalog) Validate() error {
	switch c.Reasoning.Type {
	case "openai", "ollama":
	default:
		return fmt.Errorf("unknown reasoning provider type %q", c.Reasoning.Type)
	}
	seen := make(map[string]bool, len(c.Visual))
	for i := range c.Visual {
		v := &c.Visual[i]
		if v.Name == "" {
			v.Name = v.Type
		}
		if seen[v.Name] {
			return fmt.Errorf("duplicate visual provider name %q", v.Name)
		}
		seen[v.Name] = true
		switch v.Type {
		case "openai":
		case "sana":
			if v.BaseURL == "" {
				return fmt.Errorf("visual provider %q: base_url is required for sana", v.Name)
			}
		default:
			return fmt.Errorf("visual provider %q: unknown type %q", v.Name, v.Type)
		}
		if v.Timeout <= 0 {
			v.Timeout = 180 * time.Second
		}
	}
	return nil
}
