package filesystem

import (
	"net/url"
	"path/filepath"
	"strings"
)

// ResolvePath converts an input argument to a local path.
// Handles file:// URIs and bare paths; "~/" expands to the home directory.
func ResolvePath(uri, home string) string {
	// Strip file:// prefix for local paths
	if strings.HasPrefix(uri, "file://") {
		rest := strings.TrimPrefix(uri, "file://")
		if unescaped, err := url.PathUnescape(rest); err == nil {
			rest = unescaped
		}
		return filepath.Clean(rest)
	}
	if home != "" && (uri == "~" || strings.HasPrefix(uri, "~/")) {
		return filepath.Join(home, strings.TrimPrefix(uri, "~"))
	}
	// Bare paths pass through unchanged
	return uri
}
