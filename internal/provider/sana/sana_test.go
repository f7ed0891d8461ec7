package sana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"campaign-server/internal/provider"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL + "/", Timeout: time.Second, StyleSuffix: ", cinematic"}, zap.NewNop())
}

func TestGenerate_Success(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate", r.URL.Path)
		var body generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a crowd at dusk, cinematic", body.Prompt)
		assert.Equal(t, "9:16", body.Ratio)
		assert.EqualValues(t, 7, body.Seed)

		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg-bytes"))
	})

	media, err := p.Generate(context.Background(), provider.VisualRequest{Prompt: "a crowd at dusk", AspectRatio: "9:16", Seed: 7})

	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), media.Data)
	assert.Equal(t, "image/jpeg", media.MimeType)
	assert.Equal(t, "sana", p.Name())
}

func TestGenerate_StatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   provider.ErrorClass
	}{
		{"model loading", http.StatusServiceUnavailable, "model is loading", provider.ClassTransient},
		{"quota", http.StatusTooManyRequests, `{"error":"monthly quota exceeded"}`, provider.ClassQuotaExhausted},
		{"rate limited", http.StatusTooManyRequests, "slow down", provider.ClassTransient},
		{"rejected prompt", http.StatusBadRequest, "nsfw prompt", provider.ClassPermanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := p.Generate(context.Background(), provider.VisualRequest{Prompt: "x", AspectRatio: "1:1"})

			require.Error(t, err)
			assert.Equal(t, tt.want, provider.Classify(err))
			var pErr *provider.Error
			require.ErrorAs(t, err, &pErr)
			assert.Equal(t, tt.status, pErr.StatusCode)
			assert.Equal(t, "sana", pErr.Provider)
		})
	}
}

func TestGenerate_EmptyBodyIsTransient(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	_, err := p.Generate(context.Background(), provider.VisualRequest{Prompt: "x"})

	assert.ErrorIs(t, err, provider.ErrEmptyPayload)
	assert.Equal(t, provider.ClassTransient, provider.Classify(err))
}

func TestGenerate_TimeoutIsTransient(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Generate(ctx, provider.VisualRequest{Prompt: "x"})

	require.Error(t, err)
	assert.Equal(t, provider.ClassTransient, provider.Classify(err))
}
