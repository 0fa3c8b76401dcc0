// Package filesystem finds archive files on local disk and watches them for
// changes.
package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"github.com/custodia-labs/archeo/internal/core/ports/driven"
)

// Ensure Discoverer implements the interface.
var _ driven.FileDiscoverer = (*Discoverer)(nil)

// Discoverer expands input paths into archive files.
type Discoverer struct {
	include []glob.Glob
	home    string
}

// NewDiscoverer creates a discoverer. Files found by walking a directory
// must match one of the include patterns by base name; with no patterns
// every regular file matches.
func NewDiscoverer(include []string) (*Discoverer, error) {
	globs, err := compilePatterns(include)
	if err != nil {
		return nil, err
	}
	home, _ := os.UserHomeDir()
	return &Discoverer{include: globs, home: home}, nil
}

func compilePatterns(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid include pattern %q: %w", pattern, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

func matchAny(globs []glob.Glob, name string) bool {
	if len(globs) == 0 {
		return true
	}
	for _, g := range globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

// Discover returns the files under paths. Explicitly named files are always
// included; directories are walked in lexical order, skipping hidden
// entries. A file reached twice is listed once.
func (d *Discoverer) Discover(ctx context.Context, paths []string) ([]string, error) {
	var (
		files []string
		seen  = make(map[string]bool)
	)
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, arg := range paths {
		path := ResolvePath(arg, d.home)
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("root path error: %w", err)
		}
		if !info.IsDir() {
			add(filepath.Clean(path))
			continue
		}

		err = filepath.WalkDir(path, func(p string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if p != path && isHidden(entry.Name()) {
				if entry.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if entry.Type().IsRegular() && matchAny(d.include, entry.Name()) {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", path, err)
		}
	}
	return files, nil
}
