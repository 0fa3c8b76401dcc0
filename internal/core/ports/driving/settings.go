package driving

import "github.com/custodia-labs/archeo/internal/core/domain"

// SettingsService manages engine settings.
type SettingsService interface {
	// Get retrieves current engine settings, with defaults filled in.
	Get() (*domain.EngineSettings, error)

	// Set updates a single setting by its configuration key and persists it.
	Set(key, value string) error

	// Keys returns every recognised configuration key.
	Keys() []string

	// GetDefaults returns default settings.
	GetDefaults() domain.EngineSettings

	// Validate checks settings for values that cannot work.
	Validate(settings *domain.EngineSettings) error
}
