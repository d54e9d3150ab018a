// Package assets loads compiled shaders and watches them for changes so the
// pipeline can be rebuilt without restarting.
package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// LoadSPIRV reads a compiled shader from disk and checks it looks like
// SPIR-V before handing it to device code.
func LoadSPIRV(path string) ([]byte, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read shader: %w", err)
	}
	if len(code) < 4 || len(code)%4 != 0 {
		return nil, fmt.Errorf("shader %s: %d bytes is not valid SPIR-V", path, len(code))
	}
	return code, nil
}

// ShaderWatcher reports when any of a set of shader files is rewritten on
// disk. Events arrive on Changes from a background goroutine.
type ShaderWatcher struct {
	log     *log.Logger
	watcher *fsnotify.Watcher
	watched map[string]bool
	changes chan string
	done    chan struct{}

	closeOnce sync.Once
}

// NewShaderWatcher watches the directories containing paths. Directory-level
// watches survive the delete-and-rename dance most compilers do on rewrite.
func NewShaderWatcher(logger *log.Logger, paths ...string) (*ShaderWatcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create shader watcher: %w", err)
	}

	sw := &ShaderWatcher{
		log:     logger,
		watcher: fsWatch,
		watched: make(map[string]bool, len(paths)),
		changes: make(chan string, 8),
		done:    make(chan struct{}),
	}

	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fsWatch.Close()
			return nil, err
		}
		sw.watched[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fsWatch.Add(dir); err != nil {
			fsWatch.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	go sw.run()
	return sw, nil
}

// Changes delivers the path of each watched shader that was rewritten.
func (sw *ShaderWatcher) Changes() <-chan string { return sw.changes }

func (sw *ShaderWatcher) run() {
	for {
		select {
		case e, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			abs, err := filepath.Abs(e.Name)
			if err != nil || !sw.watched[abs] {
				continue
			}
			sw.log.Debug("shader changed on disk", "path", abs)
			select {
			case sw.changes <- abs:
			default:
				// A rebuild is already pending; coalesce.
			}

		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			sw.log.Error("shader watcher", "err", err)

		case <-sw.done:
			return
		}
	}
}

func (sw *ShaderWatcher) Close() error {
	var err error
	sw.closeOnce.Do(func() {
		close(sw.done)
		err = sw.watcher.Close()
	})
	return err
}
