package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/archeo/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/archeo/internal/core/domain"
)

func TestSettingsService_Get_ReturnsDefaults(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore())

	settings, err := service.Get()

	require.NoError(t, err)
	assert.Equal(t, domain.DefaultEngineSettings(), *settings)
}

func TestSettingsService_Get_ReturnsStoredValues(t *testing.T) {
	store := memory.NewConfigStore()
	_ = store.Set("dedup.window", "30s")
	_ = store.Set("ingest.workers", int64(2))
	_ = store.Set("burst.threshold", 3)
	_ = store.Set("identity.self", []any{"me@example.com", "name:me"})
	_ = store.Set("identity.fold_gmail", false)
	_ = store.Set("charset.fallbacks", "koi8-r, windows-1251")
	_ = store.Set("ingest.default_channel", "search")

	settings, err := NewSettingsService(store).Get()

	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, settings.DedupWindow)
	assert.Equal(t, 2, settings.Ingest.Workers)
	assert.Equal(t, 3.0, settings.Burst.Threshold)
	assert.Equal(t, []string{"me@example.com", "name:me"}, settings.Identity.Self)
	assert.False(t, settings.Identity.FoldGmail)
	assert.Equal(t, []string{"koi8-r", "windows-1251"}, settings.Charset.Fallbacks)
	assert.Equal(t, domain.ChannelSearch, settings.Ingest.DefaultChannel)
}

func TestSettingsService_Get_InvalidValuesReturnDefaults(t *testing.T) {
	store := memory.NewConfigStore()
	_ = store.Set("dedup.window", "soon")
	_ = store.Set("ingest.default_channel", "fax")

	settings, err := NewSettingsService(store).Get()

	require.NoError(t, err)
	defaults := domain.DefaultEngineSettings()
	assert.Equal(t, defaults.DedupWindow, settings.DedupWindow)
	assert.Equal(t, defaults.Ingest.DefaultChannel, settings.Ingest.DefaultChannel)
}

func TestSettingsService_Get_RejectsUnworkableValues(t *testing.T) {
	store := memory.NewConfigStore()
	_ = store.Set("ingest.workers", 0)

	_, err := NewSettingsService(store).Get()

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSettingsService_Set(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store)

	require.NoError(t, service.Set("segment.max_gap", "2h"))
	require.NoError(t, service.Set("relationship.group_weight", "0.5"))
	require.NoError(t, service.Set("cache.enabled", "false"))
	require.NoError(t, service.Set("ingest.include", "*.mbox, *.json"))

	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, settings.Segment.MaxGap)
	assert.Equal(t, 0.5, settings.GroupWeight)
	assert.False(t, settings.Ingest.CacheEnabled)
	assert.Equal(t, []string{"*.mbox", "*.json"}, settings.Ingest.Include)
}

func TestSettingsService_Set_Errors(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore())

	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown key", "search.mode", "hybrid"},
		{"bad int", "ingest.workers", "many"},
		{"bad float", "burst.threshold", "high"},
		{"bad bool", "cache.enabled", "perhaps"},
		{"bad duration", "dedup.window", "10 parsecs"},
		{"out of range", "segment.min_similarity", "1.5"},
		{"bad glob", "ingest.include", "[a-"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := service.Set(tt.key, tt.value)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestSettingsService_Keys(t *testing.T) {
	keys := NewSettingsService(memory.NewConfigStore()).Keys()

	assert.Contains(t, keys, "dedup.window")
	assert.Contains(t, keys, "relationship.core_min")
	assert.IsIncreasing(t, keys)
}

func TestSettingsService_Validate(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore())

	ok := service.GetDefaults()
	require.NoError(t, service.Validate(&ok))

	tiers := service.GetDefaults()
	tiers.Tiers.Recurring = 200
	assert.ErrorIs(t, service.Validate(&tiers), domain.ErrInvalidInput)

	gap := service.GetDefaults()
	gap.Segment.MaxGap = -time.Minute
	assert.ErrorIs(t, service.Validate(&gap), domain.ErrInvalidInput)
}

func TestSettingsService_Set_RejectedValueIsNotKept(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store)
	require.NoError(t, service.Set("segment.min_similarity", "0.3"))

	require.Error(t, service.Set("segment.min_similarity", "4"))
	require.Error(t, service.Set("ingest.workers", "0"))

	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, 0.3, settings.Segment.MinSimilarity)
	assert.Equal(t, domain.DefaultEngineSettings().Ingest.Workers, settings.Ingest.Workers)
}

func TestSettingsService_SetEmptyRestoresDefault(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore())
	require.NoError(t, service.Set("burst.min_count", "9"))

	require.NoError(t, service.Set("burst.min_count", ""))

	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultEngineSettings().Burst.MinCount, settings.Burst.MinCount)
}
