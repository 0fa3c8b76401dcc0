// Package memory provides in-memory implementations of driven port
// interfaces. They back tests and runs with the snapshot cache disabled.
package memory
