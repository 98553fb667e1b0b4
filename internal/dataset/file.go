package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/fsnotify.v1"

	"fonreal/internal/backoff"
	"fonreal/internal/core"
	"fonreal/internal/log"
)

// FileSource reads the CSV from local disk.
type FileSource struct {
	path   string
	logger *log.Logger
}

// NewFileSource returns a source for path.
func NewFileSource(path string, logger *log.Logger) *FileSource {
	if logger == nil {
		logger = log.Default(log.ComponentDataset)
	}
	return &FileSource{path: path, logger: logger}
}

func (s *FileSource) Name() string { return "file" }

// Path returns the watched file.
func (s *FileSource) Path() string { return s.path }

func (s *FileSource) Fetch(ctx context.Context) (*core.Table, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, backoff.Permanent(fmt.Errorf("open dataset: %w", err))
		}
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	table, err := ParseCSV(f)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("%s: %w", s.path, err))
	}
	return table, nil
}

// Watch calls onChange whenever the file is written, created or replaced,
// until ctx ends. The parent directory is watched so editors that replace
// the file by rename are seen too.
func (s *FileSource) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching directory %s: %w", dir, err)
	}

	target := filepath.Clean(s.path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					s.logger.Info("Dataset file changed", log.FieldPath, event.Name, "op", event.Op.String())
					onChange()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("Dataset watcher error", log.FieldError, err)
			}
		}
	}()
	return nil
}
