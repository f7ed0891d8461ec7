// Package sana - визуальный провайдер поверх HTTP-сервера генерации изображений SANA.
package sana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"campaign-server/internal/domain"
	"campaign-server/internal/provider"

	"go.uber.org/zap"
)

// Config - параметры SANA сервера.
type Config struct {
	Name        string // Имя в цепочке фоллбэка, по умолчанию "sana"
	BaseURL     string
	Timeout     time.Duration
	StyleSuffix string // Дописывается к каждому промпту
}

type generateRequest struct {
	Prompt string `json:"prompt"`
	Ratio  string `json:"ratio"`
	Seed   int64  `json:"seed,omitempty"`
}

type Provider struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Provider {
	if cfg.Name == "" {
		cfg.Name = "sana"
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.Named("SanaProvider").With(zap.String("api_url", cfg.BaseURL)),
	}
}

func (p *Provider) Name() string { return p.cfg.Name }

// Generate вызывает POST /generate и возвращает изображение из тела ответа.
// Статусы ответа классифицируются provider.ClassifyHTTPStatus (503 пока модель грузится - transient).
func (p *Provider) Generate(ctx context.Context, req provider.VisualRequest) (domain.Media, error) {
	body, err := json.Marshal(generateRequest{
		Prompt: req.Prompt + p.cfg.StyleSuffix,
		Ratio:  req.AspectRatio,
		Seed:   req.Seed,
	})
	if err != nil {
		return domain.Media{}, provider.NewError(p.Name(), provider.ClassPermanent, 0, fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return domain.Media{}, provider.NewError(p.Name(), provider.ClassPermanent, 0, fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "image/*")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		p.logger.Warn("SANA request failed", zap.Error(err))
		return domain.Media{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	data, readErr := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		p.logger.Warn("SANA returned non-OK status", zap.Int("status_code", resp.StatusCode), zap.Int("body_len", len(data)))
		return domain.Media{}, provider.FromHTTPStatus(p.Name(), resp.StatusCode, data)
	}
	if readErr != nil {
		return domain.Media{}, provider.NewError(p.Name(), provider.ClassTransient, resp.StatusCode, fmt.Errorf("read response body: %w", readErr))
	}
	if len(data) == 0 {
		return domain.Media{}, provider.NewError(p.Name(), provider.ClassTransient, resp.StatusCode, provider.ErrEmptyPayload)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" || !strings.Contains(mimeType, "/") {
		mimeType = http.DetectContentType(data)
	}
	p.logger.Debug("SANA image received", zap.Int("bytes", len(data)), zap.String("mime_type", mimeType))
	return domain.Media{Data: data, MimeType: mimeType}, nil
}

var _ provider.VisualProvider = (*Provider)(nil)
