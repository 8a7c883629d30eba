package dispatch

import (
	"fmt"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher watches the external command file for writes and dispatches
// its trimmed contents as a single pin:// command, the file-based equivalent of
// the menu-bar presenter invoking the dispatcher directly.
type Watcher struct {
	path       string
	dispatcher *Dispatcher
	logger     *zap.Logger
	fsw        *fsnotify.Watcher
}

// NewWatcher creates a Watcher for the command file at path. The file
// need not exist yet; its parent directory must.
func NewWatcher(path string, d *Dispatcher, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	dir := parentDir(path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching command directory: %w", err)
	}
	return &Watcher{path: path, dispatcher: d, logger: logger, fsw: fsw}, nil
}

// Run blocks, dispatching commands as they're written to the command
// file, until Close is called.
func (w *Watcher) Run() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.handleWrite()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("command file watcher error", zap.Error(err))
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) handleWrite() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		w.logger.Debug("reading command file failed", zap.Error(err))
		return
	}
	line := strings.TrimSpace(string(data))
	if line == "" {
		return
	}
	name, params, err := ParseCommand(line)
	if err != nil {
		w.logger.Warn("malformed command", zap.String("raw", line), zap.Error(err))
		return
	}
	w.dispatcher.Dispatch(name, params)
}

func parentDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[:i]
		}
	}
	return "."
}
