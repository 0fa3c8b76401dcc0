package services

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"github.com/custodia-labs/archeo/internal/core/domain"
	"github.com/custodia-labs/archeo/internal/core/ports/driven"
	"github.com/custodia-labs/archeo/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
const (
	keyIngestWorkers      = "ingest.workers"
	keyIngestInclude      = "ingest.include"
	keyIngestMaxMessage   = "ingest.max_message_bytes"
	keyIngestChannel      = "ingest.default_channel"
	keyIngestSystemRoles  = "ingest.include_system_roles"
	keyCacheEnabled       = "cache.enabled"
	keyIdentitySelf       = "identity.self"
	keyIdentityFoldGmail  = "identity.fold_gmail"
	keyIdentityPrefixes   = "identity.automated_prefixes"
	keyIdentityDomains    = "identity.automated_domains"
	keyCharsetFallbacks   = "charset.fallbacks"
	keyDedupWindow        = "dedup.window"
	keyGroupWeight        = "relationship.group_weight"
	keyCoreMin            = "relationship.core_min"
	keyRecurringMin       = "relationship.recurring_min"
	keyBurstThreshold     = "burst.threshold"
	keyBurstWindow        = "burst.window"
	keyBurstMinHistory    = "burst.min_history"
	keyBurstMinCount      = "burst.min_count"
	keySegmentMaxGap      = "segment.max_gap"
	keySegmentSimilarity  = "segment.min_similarity"
	keySegmentRepSize     = "segment.representative_size"
	keySegmentKeywords    = "segment.keywords_per_segment"
)

type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindFloat
	kindBool
	kindDuration
	kindList
)

// settingKinds maps every recognised key to how its value is parsed.
var settingKinds = map[string]valueKind{
	keyIngestWorkers:     kindInt,
	keyIngestInclude:     kindList,
	keyIngestMaxMessage:  kindInt,
	keyIngestChannel:     kindString,
	keyIngestSystemRoles: kindBool,
	keyCacheEnabled:      kindBool,
	keyIdentitySelf:      kindList,
	keyIdentityFoldGmail: kindBool,
	keyIdentityPrefixes:  kindList,
	keyIdentityDomains:   kindList,
	keyCharsetFallbacks:  kindList,
	keyDedupWindow:       kindDuration,
	keyGroupWeight:       kindFloat,
	keyCoreMin:           kindFloat,
	keyRecurringMin:      kindFloat,
	keyBurstThreshold:    kindFloat,
	keyBurstWindow:       kindInt,
	keyBurstMinHistory:   kindInt,
	keyBurstMinCount:     kindInt,
	keySegmentMaxGap:     kindDuration,
	keySegmentSimilarity: kindFloat,
	keySegmentRepSize:    kindInt,
	keySegmentKeywords:   kindInt,
}

// SettingsService maps configuration keys onto engine settings.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// Get retrieves current engine settings. Missing or unparsable keys fall
// back to their defaults.
func (s *SettingsService) Get() (*domain.EngineSettings, error) {
	d := domain.DefaultEngineSettings()

	settings := &domain.EngineSettings{
		Ingest: domain.IngestSettings{
			Workers:            s.getInt(keyIngestWorkers, d.Ingest.Workers),
			Include:            s.getList(keyIngestInclude, d.Ingest.Include),
			MaxMessageBytes:    int64(s.getInt(keyIngestMaxMessage, int(d.Ingest.MaxMessageBytes))),
			CacheEnabled:       s.getBool(keyCacheEnabled, d.Ingest.CacheEnabled),
			DefaultChannel:     s.getChannel(keyIngestChannel, d.Ingest.DefaultChannel),
			IncludeSystemRoles: s.getBool(keyIngestSystemRoles, d.Ingest.IncludeSystemRoles),
		},
		Identity: domain.IdentitySettings{
			Self:              s.getList(keyIdentitySelf, d.Identity.Self),
			FoldGmail:         s.getBool(keyIdentityFoldGmail, d.Identity.FoldGmail),
			AutomatedPrefixes: s.getList(keyIdentityPrefixes, d.Identity.AutomatedPrefixes),
			AutomatedDomains:  s.getList(keyIdentityDomains, d.Identity.AutomatedDomains),
		},
		Charset: domain.CharsetSettings{
			Fallbacks: s.getList(keyCharsetFallbacks, d.Charset.Fallbacks),
		},
		DedupWindow: s.getDuration(keyDedupWindow, d.DedupWindow),
		GroupWeight: s.getFloat(keyGroupWeight, d.GroupWeight),
		Tiers: domain.TierThresholds{
			Core:      s.getFloat(keyCoreMin, d.Tiers.Core),
			Recurring: s.getFloat(keyRecurringMin, d.Tiers.Recurring),
		},
		Burst: domain.BurstParams{
			Threshold:  s.getFloat(keyBurstThreshold, d.Burst.Threshold),
			Window:     s.getInt(keyBurstWindow, d.Burst.Window),
			MinHistory: s.getInt(keyBurstMinHistory, d.Burst.MinHistory),
			MinCount:   s.getInt(keyBurstMinCount, d.Burst.MinCount),
		},
		Segment: domain.SegmentParams{
			MaxGap:             s.getDuration(keySegmentMaxGap, d.Segment.MaxGap),
			MinSimilarity:      s.getFloat(keySegmentSimilarity, d.Segment.MinSimilarity),
			RepresentativeSize: s.getInt(keySegmentRepSize, d.Segment.RepresentativeSize),
			KeywordsPerSegment: s.getInt(keySegmentKeywords, d.Segment.KeywordsPerSegment),
		},
	}

	if err := s.Validate(settings); err != nil {
		return nil, fmt.Errorf("load settings from %s: %w", s.configStore.Path(), err)
	}
	return settings, nil
}

// Set parses value for key, stores it and persists the configuration.
// Lists are comma separated and an empty value restores the default.
func (s *SettingsService) Set(key, value string) error {
	kind, ok := settingKinds[key]
	if !ok {
		return fmt.Errorf("unknown setting %q: %w", key, domain.ErrInvalidInput)
	}

	var (
		typed any
		err   error
	)
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		// Empty restores the default
		typed = ""
	case kind == kindString:
		typed = value
	case kind == kindInt:
		typed, err = strconv.Atoi(value)
	case kind == kindFloat:
		typed, err = strconv.ParseFloat(value, 64)
	case kind == kindBool:
		typed, err = strconv.ParseBool(value)
	case kind == kindDuration:
		_, err = time.ParseDuration(value)
		typed = value
	case kind == kindList:
		typed = splitList(value)
	}
	if err != nil {
		return fmt.Errorf("setting %s: %w: %v", key, domain.ErrInvalidInput, err)
	}

	previous, existed := s.configStore.Get(key)
	if err := s.configStore.Set(key, typed); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	if _, err := s.Get(); err != nil {
		// An empty value reads as unset.
		if !existed {
			previous = ""
		}
		_ = s.configStore.Set(key, previous)
		return err
	}
	if err := s.configStore.Save(); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// Keys returns every recognised configuration key, sorted.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(settingKinds))
	for k := range settingKinds {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.EngineSettings {
	return domain.DefaultEngineSettings()
}

// Validate checks settings for values that cannot work.
//
//nolint:gocyclo // Flat list of independent checks
func (s *SettingsService) Validate(settings *domain.EngineSettings) error {
	switch {
	case settings.Ingest.Workers < 1:
		return fmt.Errorf("%s must be at least 1: %w", keyIngestWorkers, domain.ErrInvalidInput)
	case settings.Ingest.MaxMessageBytes < 0:
		return fmt.Errorf("%s must not be negative: %w", keyIngestMaxMessage, domain.ErrInvalidInput)
	case !settings.Ingest.DefaultChannel.IsValid():
		return fmt.Errorf("%s: unknown channel %q: %w", keyIngestChannel, settings.Ingest.DefaultChannel, domain.ErrInvalidInput)
	case settings.DedupWindow < 0:
		return fmt.Errorf("%s must not be negative: %w", keyDedupWindow, domain.ErrInvalidInput)
	case settings.GroupWeight < 0:
		return fmt.Errorf("%s must not be negative: %w", keyGroupWeight, domain.ErrInvalidInput)
	case settings.Tiers.Recurring > settings.Tiers.Core:
		return fmt.Errorf("%s must not exceed %s: %w", keyRecurringMin, keyCoreMin, domain.ErrInvalidInput)
	case settings.Burst.Threshold < 0:
		return fmt.Errorf("%s must not be negative: %w", keyBurstThreshold, domain.ErrInvalidInput)
	case settings.Burst.Window < 0, settings.Burst.MinHistory < 0, settings.Burst.MinCount < 0:
		return fmt.Errorf("burst window and minimums must not be negative: %w", domain.ErrInvalidInput)
	case settings.Segment.MaxGap < 0:
		return fmt.Errorf("%s must not be negative: %w", keySegmentMaxGap, domain.ErrInvalidInput)
	case settings.Segment.MinSimilarity < 0 || settings.Segment.MinSimilarity > 1:
		return fmt.Errorf("%s must be within [0,1]: %w", keySegmentSimilarity, domain.ErrInvalidInput)
	case settings.Segment.RepresentativeSize < 1:
		return fmt.Errorf("%s must be at least 1: %w", keySegmentRepSize, domain.ErrInvalidInput)
	}
	for _, pattern := range settings.Ingest.Include {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("%s: pattern %q: %w", keyIngestInclude, pattern, domain.ErrInvalidInput)
		}
	}
	return nil
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) isSet(key string) bool {
	val, exists := s.configStore.Get(key)
	return exists && val != nil && val != ""
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if !s.isSet(key) {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if !s.isSet(key) {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if !s.isSet(key) {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getList(key string, defaultVal []string) []string {
	if !s.isSet(key) {
		return slices.Clone(defaultVal)
	}
	if str := s.configStore.GetString(key); str != "" {
		return splitList(str)
	}
	return s.configStore.GetStringSlice(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	val := s.getString(key, "")
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func (s *SettingsService) getChannel(key string, defaultVal domain.Channel) domain.Channel {
	ch := domain.Channel(s.getString(key, string(defaultVal)))
	if !ch.IsValid() {
		return defaultVal
	}
	return ch
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
