package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"stemset/core/upload"
	"stemset/logger"
)

// settleDelay is how long a file must stop growing before it is ingested.
// Copies into the watch folder arrive in chunks; reading too early truncates
// the audio.
const settleDelay = 2 * time.Second

// Watcher ingests audio files dropped into a local directory. Each new file
// is run through the upload pipeline under a fixed owner account.
type Watcher struct {
	Dir          string
	OwnerID      int64
	Orchestrator *upload.Orchestrator
}

// New builds a watcher over dir ingesting on behalf of ownerID.
func New(dir string, ownerID int64, orch *upload.Orchestrator) *Watcher {
	return &Watcher{Dir: dir, OwnerID: ownerID, Orchestrator: orch}
}

// Run watches the directory until ctx is cancelled. Files already present
// at startup are ingested first.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.Dir); err != nil {
		return err
	}
	logger.Info("watching ingest folder", logger.String("dir", w.Dir))

	entries, err := os.ReadDir(w.Dir)
	if err == nil {
		for _, e := range entries {
			if !e.IsDir() && isAudioFile(e.Name()) {
				w.ingest(ctx, filepath.Join(w.Dir, e.Name()))
			}
		}
	}

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(settleDelay / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !isAudioFile(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				pending[event.Name] = time.Now()
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("ingest watch error", logger.ErrorField(err))

		case <-ticker.C:
			now := time.Now()
			for name, last := range pending {
				if now.Sub(last) < settleDelay {
					continue
				}
				delete(pending, name)
				w.ingest(ctx, name)
			}
		}
	}
}

func (w *Watcher) ingest(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("failed to read ingest file",
			logger.String("path", path), logger.ErrorField(err))
		return
	}

	logger.Info("ingesting watched file",
		logger.String("path", path), logger.Int64("size", int64(len(data))))

	_, err = w.Orchestrator.Process(ctx, upload.Input{
		UserID:   w.OwnerID,
		FileName: filepath.Base(path),
		Data:     data,
	})
	if err != nil {
		logger.Error("watched file ingest failed",
			logger.String("path", path), logger.ErrorField(err))
		return
	}

	// Remove the source once it is safely in object storage.
	if err := os.Remove(path); err != nil {
		logger.Warn("failed to remove ingested file",
			logger.String("path", path), logger.ErrorField(err))
	}
}

func isAudioFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp3", ".wav", ".flac", ".m4a", ".ogg":
		return true
	}
	return false
}
