package wakeword

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Loader constructs a Model from a wake-model file on disk (one of the
// neural scoring kernels the spec treats as an external, out-of-scope
// collaborator). Swappable for tests.
type Loader func(path string) (Model, error)

// Registry watches a directory of wake-model files and keeps a Scorer's
// active model set in sync, using fsnotify the way the rest of the corpus
// hot-reloads file-backed configuration.
type Registry struct {
	dir    string
	loader Loader
	scorer *Scorer
}

// NewRegistry constructs a Registry. loader is typically backed by a real
// ONNX-model wrapper; tests pass a stub.
func NewRegistry(dir string, loader Loader, scorer *Scorer) *Registry {
	return &Registry{dir: dir, loader: loader, scorer: scorer}
}

// Start performs an initial scan of dir and then watches it for changes
// until ctx is cancelled. Returns after the initial scan; watching runs in
// a background goroutine.
func (r *Registry) Start(ctx context.Context) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(r.dir); err != nil {
		watcher.Close()
		return err
	}

	r.reload(ctx)

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
					log.Printf("[wakeword] model directory changed (%s), reloading", ev.Name)
					r.reload(ctx)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[wakeword] watcher error: %v", err)
			}
		}
	}()

	return nil
}

func (r *Registry) reload(ctx context.Context) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		log.Printf("[wakeword] read %s: %v", r.dir, err)
		return
	}

	var models []Model
	for _, e := range entries {
		if e.IsDir() || !isModelFile(e.Name()) {
			continue
		}
		path := filepath.Join(r.dir, e.Name())
		m, err := r.loader(path)
		if err != nil {
			log.Printf("[wakeword] skipping %s: %v", path, err)
			continue
		}
		models = append(models, m)
	}

	if len(models) == 0 {
		log.Printf("[wakeword] no wake models found in %s, wake-word detection disabled", r.dir)
	}
	r.scorer.SetModels(ctx, models)
}

func isModelFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".onnx" || ext == ".tflite"
}
