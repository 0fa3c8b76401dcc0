// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// IngestService runs the pipeline from discovered files to a published
// store, QueryService answers questions against the published store and
// SettingsService maps configuration keys onto engine settings.
package services
