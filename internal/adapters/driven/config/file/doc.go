// Package file stores configuration in ~/.archeo/config.toml.
package file
