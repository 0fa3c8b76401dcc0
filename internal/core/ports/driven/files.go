package driven

import "context"

// FileDiscoverer expands input paths into the archive files to ingest.
type FileDiscoverer interface {
	// Discover returns the files under paths in a stable order. Directories
	// are walked recursively; explicitly named files are always included.
	Discover(ctx context.Context, paths []string) ([]string, error)
}

// FileChange reports a change to a watched archive file.
type FileChange struct {
	Path    string
	Removed bool
}

// FileWatcher reports changes to archive files under a set of paths.
type FileWatcher interface {
	// Watch streams changes until ctx is cancelled, then closes the channel.
	Watch(ctx context.Context, paths []string) (<-chan FileChange, error)
}
