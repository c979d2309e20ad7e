// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports changes to template files under a directory tree.
//
// The callback runs on the watcher goroutine. Render code must not act on
// it directly; hand the change to the render thread instead (for example
// with framegraph.Engine.Publish) so that caches are only touched between
// frames.
type Watcher struct {
	w        *fsnotify.Watcher
	root     string
	onChange func(name string)
	done     chan struct{}
	wg       sync.WaitGroup
}

// Watch starts watching dir and its chunks/ subdirectory for .wgsl
// changes. onChange receives the template name, e.g. "forward" or
// "chunks/lighting".
func Watch(dir string, onChange func(name string)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("shader: create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("shader: watch %s: %w", dir, err)
	}
	// chunks/ is optional.
	_ = fw.Add(filepath.Join(dir, "chunks"))

	w := &Watcher{
		w:        fw,
		root:     dir,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.w.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
				!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			name, ok := w.templateName(ev.Name)
			if !ok {
				continue
			}
			slogger().Debug("shader: template changed", "template", name, "op", ev.Op.String())
			w.onChange(name)
		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}
			slogger().Warn("shader: watcher error", "err", err)
		}
	}
}

func (w *Watcher) templateName(path string) (string, bool) {
	if filepath.Ext(path) != ".wgsl" {
		return "", false
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return "", false
	}
	return strings.TrimSuffix(filepath.ToSlash(rel), ".wgsl"), true
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	close(w.done)
	err := w.w.Close()
	w.wg.Wait()
	return err
}
