package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"campaign-server/shared/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWorkerConfig_DefaultsAndSecrets(t *testing.T) {
	dir := t.TempDir()
	prev := utils.SecretsDir
	utils.SecretsDir = dir
	t.Cleanup(func() { utils.SecretsDir = prev })
	require.NoError(t, os.WriteFile(filepath.Join(dir, "db_password"), []byte("pg-pass"), 0o600))
	t.Setenv("AI_API_KEY", "sk-test")
	t.Setenv("PIPELINE_SCENE_COUNT", "6")
	t.Setenv("SUBJECT_URL_HOSTS", "eventbrite.com,ra.co")

	cfg, err := LoadWorkerConfig()

	require.NoError(t, err)
	assert.Equal(t, 6, cfg.SceneCount)
	assert.Equal(t, []string{"eventbrite.com", "ra.co"}, cfg.SubjectURLHosts)
	assert.EqualValues(t, 10, cfg.CampaignCost)
	assert.Equal(t, 1, cfg.SegmentConcurrency)
	assert.Equal(t, 2*time.Second, cfg.TransientBackoff)
	assert.Equal(t, "pg-pass", cfg.DBPassword)
	assert.Equal(t, "sk-test", cfg.AIAPIKey)
	assert.Contains(t, cfg.Postgres().DSN(), "postgres:pg-pass@localhost:5432/campaign_db")
}

func TestLoadWorkerConfig_RejectsZeroScenes(t *testing.T) {
	prev := utils.SecretsDir
	utils.SecretsDir = t.TempDir()
	t.Cleanup(func() { utils.SecretsDir = prev })
	t.Setenv("DB_PASSWORD", "x")
	t.Setenv("AI_API_KEY", "x")
	t.Setenv("PIPELINE_SCENE_COUNT", "0")

	_, err := LoadWorkerConfig()
	assert.Error(t, err)
}

func TestLoadProviderCatalog_FromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
reasoning:
  type: ollama
  model: llama3.1
  base_url: http://ollama:11434
visual:
  - name: sana-local
    type: sana
    base_url: http://sana:8000
    timeout: 90s
  - type: openai
    model: dall-e-3
speech:
  voice: nova
`), 0o600))

	catalog, err := LoadProviderCatalog(path)

	require.NoError(t, err)
	assert.Equal(t, "ollama", catalog.Reasoning.Type)
	require.Len(t, catalog.Visual, 2)
	assert.Equal(t, "sana-local", catalog.Visual[0].Name)
	assert.Equal(t, 90*time.Second, catalog.Visual[0].Timeout)
	assert.Equal(t, "openai", catalog.Visual[1].Name)
	assert.Equal(t, "nova", catalog.Speech.Voice)
}

func TestLoadProviderCatalog_MissingFileUsesDefaults(t *testing.T) {
	catalog, err := LoadProviderCatalog(filepath.Join(t.TempDir(), "absent.yml"))

	require.NoError(t, err)
	assert.Equal(t, "openai", catalog.Reasoning.Type)
	require.Len(t, catalog.Visual, 1)
	assert.Equal(t, "openai-images", catalog.Visual[0].Name)
}

func TestProviderCatalog_Validate(t *testing.T) {
	tests := []struct {
		name    string
		catalog ProviderCatalog
	}{
		{"unknown reasoning", ProviderCatalog{Reasoning: ReasoningProviderConfig{Type: "gemini"}}},
		{"duplicate names", ProviderCatalog{
			Reasoning: ReasoningProviderConfig{Type: "openai"},
			Visual:    []VisualProviderConfig{{Name: "a", Type: "openai"}, {Name: "a", Type: "openai"}},
		}},
		{"sana without url", ProviderCatalog{
			Reasoning: ReasoningProviderConfig{Type: "openai"},
			Visual:    []VisualProviderConfig{{Type: "sana"}},
		}},
		{"unknown visual", ProviderCatalog{
			Reasoning: ReasoningProviderConfig{Type: "openai"},
			Visual:    []VisualProviderConfig{{Type: "midjourney"}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.catalog.Validate())
		})
	}
}
