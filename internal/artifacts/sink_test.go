package artifacts

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"campaign-server/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testCampaign() *domain.AssembledCampaign {
	return &domain.AssembledCampaign{
		Video: domain.Media{Data: []byte("mp4-bytes"), MimeType: "video/mp4"},
		Narration: domain.NarrationAsset{
			Media:    domain.Media{Data: []byte("mp3-bytes"), MimeType: "audio/mpeg"},
			Duration: 9 * time.Second,
		},
		Analysis: domain.NarrativeAnalysis{Essence: "jazz under the stars", Script: "Come along."},
		Scenes: []domain.SceneAsset{
			{Ordinal: 1, Status: domain.SceneStatusSucceeded, Provider: "sana", Media: domain.Media{MimeType: "image/png"}},
			{Ordinal: 3, Status: domain.SceneStatusSucceeded, Provider: "openai-images", Media: domain.Media{MimeType: "image/png"}},
		},
		FailedSegmentCount: 1,
	}
}

func TestDiskSink_Store(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewDiskSink(dir, "cdn.example.com/campaigns/", zap.NewNop())
	require.NoError(t, err)

	stored, err := sink.Store(context.Background(), "task-1", testCampaign())
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.com/campaigns/task-1.mp4", stored.VideoURL)
	assert.Equal(t, "https://cdn.example.com/campaigns/task-1-narration.mp3", stored.NarrationURL)
	assert.Equal(t, "https://cdn.example.com/campaigns/task-1.json", stored.ManifestURL)

	video, err := os.ReadFile(filepath.Join(dir, "task-1.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "mp4-bytes", string(video))

	raw, err := os.ReadFile(filepath.Join(dir, "task-1.json"))
	require.NoError(t, err)
	var m manifest
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, 1, m.FailedSegmentCount)
	assert.Equal(t, 9.0, m.NarrationDuration)
	require.Len(t, m.Scenes, 2)
	assert.Equal(t, 3, m.Scenes[1].Ordinal)

	leftovers, err := filepath.Glob(filepath.Join(dir, ".tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestDiskSink_RejectsUnsafeTaskID(t *testing.T) {
	sink, err := NewDiskSink(t.TempDir(), "http://localhost/files", zap.NewNop())
	require.NoError(t, err)

	for _, id := range []string{"", "../etc", "a/b", `a\b`, ".hidden"} {
		_, err := sink.Store(context.Background(), id, testCampaign())
		assert.ErrorIs(t, err, ErrInvalidTaskID, id)
	}
}

func TestNewDiskSink_RequiresConfig(t *testing.T) {
	_, err := NewDiskSink("", "http://x", zap.NewNop())
	assert.Error(t, err)
	_, err = NewDiskSink(t.TempDir(), "", zap.NewNop())
	assert.Error(t, err)
}

func TestExtension(t *testing.T) {
	assert.Equal(t, ".mp4", Extension("video/mp4", ".bin"))
	assert.Equal(t, ".mp3", Extension("audio/mpeg; charset=binary", ".bin"))
	assert.Equal(t, ".bin", Extension("", ".bin"))
}
