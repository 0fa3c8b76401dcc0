package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"github.com/custodia-labs/archeo/internal/core/ports/driven"
	"github.com/custodia-labs/archeo/internal/logger"
)

// Ensure Watcher implements the interface.
var _ driven.FileWatcher = (*Watcher)(nil)

// ErrWatcherClosed is returned by Watch after Close.
var ErrWatcherClosed = errors.New("watcher is closed")

// Watcher reports changes to archive files using fsnotify.
type Watcher struct {
	include []glob.Glob
	home    string

	mu       sync.Mutex
	closed   bool
	sessions []*watchSession
}

// NewWatcher creates a watcher applying the same include patterns as the
// Discoverer.
func NewWatcher(include []string) (*Watcher, error) {
	globs, err := compilePatterns(include)
	if err != nil {
		return nil, err
	}
	home, _ := os.UserHomeDir()
	return &Watcher{include: globs, home: home}, nil
}

// watchSession is one Watch call.
type watchSession struct {
	fsw     *fsnotify.Watcher
	include []glob.Glob

	// explicit files are reported regardless of include patterns.
	explicit map[string]bool
	roots    []string
}

// Watch streams changes under paths until ctx is cancelled. Directories are
// watched recursively, including ones created later.
func (w *Watcher) Watch(ctx context.Context, paths []string) (<-chan driven.FileChange, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrWatcherClosed
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	s := &watchSession{fsw: fsw, include: w.include, explicit: make(map[string]bool)}

	for _, arg := range paths {
		path := ResolvePath(arg, w.home)
		info, err := os.Stat(path)
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("root path error: %w", err)
		}
		path = filepath.Clean(path)
		if info.IsDir() {
			s.roots = append(s.roots, path)
		} else {
			s.explicit[path] = true
			path = filepath.Dir(path)
		}
		if err := s.addRecursive(path); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	w.sessions = append(w.sessions, s)

	changes := make(chan driven.FileChange)
	go s.run(ctx, changes)
	return changes, nil
}

// Close stops every active watch. Close is idempotent.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	var errs []error
	for _, s := range w.sessions {
		errs = append(errs, s.fsw.Close())
	}
	w.sessions = nil
	return errors.Join(errs...)
}

func (s *watchSession) addRecursive(root string) error {
	return filepath.WalkDir(root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		if p != root && isHidden(entry.Name()) {
			return filepath.SkipDir
		}
		if err := s.fsw.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		return nil
	})
}

func (s *watchSession) run(ctx context.Context, out chan<- driven.FileChange) {
	defer close(out)
	defer s.fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-s.fsw.Events:
			if !ok {
				return
			}
			change := s.handleFsEvent(event)
			if change == nil {
				continue
			}
			select {
			case out <- *change:
			case <-ctx.Done():
				return
			}
		case err, ok := <-s.fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("watch error: %v", err)
		}
	}
}

// handleFsEvent converts an fsnotify event into a change, or nil when the
// event is not about a wanted archive file.
func (s *watchSession) handleFsEvent(event fsnotify.Event) *driven.FileChange {
	path := filepath.Clean(event.Name)
	if isHidden(filepath.Base(path)) {
		return nil
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		if !s.wanted(path) {
			return nil
		}
		return &driven.FileChange{Path: path, Removed: true}

	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if event.Has(fsnotify.Create) {
				if err := s.addRecursive(path); err != nil {
					logger.Warn("watch new directory %s: %v", path, err)
				}
			}
			return nil
		}
		if !info.Mode().IsRegular() || !s.wanted(path) {
			return nil
		}
		return &driven.FileChange{Path: path}
	}

	// Chmod alone does not change content.
	return nil
}

func (s *watchSession) wanted(path string) bool {
	if s.explicit[path] {
		return true
	}
	for _, root := range s.roots {
		if strings.HasPrefix(path, root+string(filepath.Separator)) {
			return matchAny(s.include, filepath.Base(path))
		}
	}
	return false
}
