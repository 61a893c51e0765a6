package vfs

import (
	"os"
	"path/filepath"
	"sync"
	"time"
)

// localWatcher produces file-modification events for a local mount (spec
// §4.1). The source engine uses a native platform watcher (inotify/
// ReadDirectoryChangesW/FSEvents); this rewrite uses a portable polling
// watcher so the behavior is identical across platforms without cgo, at the
// cost of sub-second latency — acceptable since the spec only requires
// "produces file-modification events", not a specific latency bound.
type localWatcher struct {
	root    string
	alias   string
	dispatch func(path string)

	stopCh chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	modTime map[string]time.Time
}

func newLocalWatcher(root, alias string, dispatch func(string)) (*localWatcher, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, err
	}
	w := &localWatcher{
		root:     root,
		alias:    alias,
		dispatch: dispatch,
		stopCh:   make(chan struct{}),
		modTime:  make(map[string]time.Time),
	}
	w.scan() // seed initial state so the first poll doesn't report every file as changed
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

func (w *localWatcher) loop() {
	defer w.wg.Done()
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.scan()
		case <-w.stopCh:
			return
		}
	}
}

func (w *localWatcher) scan() {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = filepath.Walk(w.root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		rel, rerr := filepath.Rel(w.root, path)
		if rerr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		prev, seen := w.modTime[rel]
		mt := info.ModTime()
		w.modTime[rel] = mt
		if seen && !mt.Equal(prev) {
			w.dispatch(w.alias + "/" + rel)
		}
		return nil
	})
}

func (w *localWatcher) stop() {
	close(w.stopCh)
	w.wg.Wait()
}
