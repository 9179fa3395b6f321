package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"stemset/cache"
	"stemset/core/metadata"
	"stemset/core/separation"
	"stemset/logger"
	"stemset/model"
	"stemset/repository"
	"stemset/storage"
)

// Pipeline-level failures. ErrStorageUpload aborts the upload; persistence
// failures are retried on the save step alone because by then the audio and
// the separation work already exist and must not be redone.
var (
	ErrStorageUpload = errors.New("failed to store audio object")
	ErrPersistence   = errors.New("failed to persist song record")
)

const (
	// persistRetries bounds the save-step retry loop.
	persistRetries = 3
	persistBackoff = 500 * time.Millisecond
)

// SeparationTypeStems lists which stems each separation type produces.
var SeparationTypeStems = map[string][]string{
	"vocals-instrumental":     {model.StemVocals, model.StemInstrumental},
	"vocals-drums-bass-other": {model.StemVocals, model.StemDrums, model.StemBass, model.StemOther},
}

// Input describes one upload request.
type Input struct {
	UserID         int64
	FileName       string
	Data           []byte
	SeparationType string
	HiFi           bool
}

// Orchestrator runs the whole ingest pipeline: store the original, create
// the song record, drive the separation job, re-home the stems into our own
// storage, and persist the outcome.
type Orchestrator struct {
	Store    storage.ObjectStore
	Songs    repository.SongRepository
	Client   *separation.Client
	Poller   *separation.Poller
	Progress *cache.ProgressCache

	// Fetch pulls stem audio from backend-hosted URLs for re-upload.
	Fetch *http.Client
}

// NewOrchestrator wires the pipeline's collaborators.
func NewOrchestrator(store storage.ObjectStore, songs repository.SongRepository,
	client *separation.Client, poller *separation.Poller, progress *cache.ProgressCache) *Orchestrator {
	return &Orchestrator{
		Store:    store,
		Songs:    songs,
		Client:   client,
		Poller:   poller,
		Progress: progress,
		Fetch:    &http.Client{Timeout: 5 * time.Minute},
	}
}

// Process runs the full pipeline synchronously and returns the final song
// record. Callers that want async behavior run it in a goroutine and watch
// the progress cache.
func (o *Orchestrator) Process(ctx context.Context, in Input) (*model.Song, error) {
	if in.SeparationType == "" {
		in.SeparationType = "vocals-instrumental"
	}

	songID := uuid.NewString()

	// Store the original first. Without the original there is nothing to
	// separate and nothing to fall back to.
	key := storage.OriginalKey(in.UserID, in.FileName)
	originalURL, err := o.Store.Put(ctx, key, bytes.NewReader(in.Data), int64(len(in.Data)),
		storage.ContentTypeForExt(path.Ext(in.FileName)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUpload, err)
	}

	info := metadata.Extract(in.FileName, in.Data)
	song := &model.Song{
		ID:            songID,
		UserID:        in.UserID,
		Title:         info.Title,
		Artist:        info.Artist,
		Genre:         info.Genre,
		BPM:           120,
		Key:           "C",
		TimeSignature: "4/4",
		DurationSecs:  info.Duration,
		Duration:      model.FormatDuration(info.Duration),
		FileURL:       originalURL,
		FileName:      in.FileName,
		FileSize:      int64(len(in.Data)),
		Status:        model.StatusUploaded,
		UploadedAt:    time.Now(),
	}

	if err := o.persist(ctx, func() error { return o.Songs.CreateSong(ctx, song) }); err != nil {
		return nil, err
	}

	stems, degraded, sepErr := o.separate(ctx, song, in)
	if sepErr != nil && stems == nil {
		// No stems and no fallback: the record stays failed.
		if err := o.persist(ctx, func() error {
			return o.Songs.UpdateSongStatus(ctx, songID, model.StatusFailed)
		}); err != nil {
			logger.Error("failed to mark song failed",
				logger.String("songId", songID), logger.ErrorField(err))
		}
		o.publish(ctx, song, separation.TaskFailed, 0, sepErr.Error())
		return song, sepErr
	}

	if err := o.persist(ctx, func() error {
		return o.Songs.SetSongStems(ctx, songID, stems, model.StatusCompleted, degraded)
	}); err != nil {
		return song, err
	}
	song.Stems = stems
	song.Status = model.StatusCompleted
	song.Degraded = degraded

	o.publish(ctx, song, separation.TaskCompleted, 100, "")
	return song, nil
}

// separate runs the job and re-homes its stems. On job failure or stall it
// degrades: every requested stem falls back to the original file URL so the
// song is still playable, and the record says so.
func (o *Orchestrator) separate(ctx context.Context, song *model.Song, in Input) (model.StemMap, bool, error) {
	submit, err := o.Client.Separate(ctx, separation.Request{
		FileName:       in.FileName,
		File:           bytes.NewReader(in.Data),
		SeparationType: in.SeparationType,
		HiFi:           in.HiFi,
		SongID:         song.ID,
		UserID:         fmt.Sprintf("%d", in.UserID),
	})
	if err != nil {
		logger.Error("separation submit failed",
			logger.String("songId", song.ID), logger.ErrorField(err))
		return o.fallbackStems(song, in.SeparationType), true, nil
	}
	song.SeparationTaskID = submit.TaskID

	// The job is in flight now; the record leaves the uploaded state.
	if err := o.persist(ctx, func() error {
		return o.Songs.UpdateSongStatus(ctx, song.ID, model.StatusProcessing)
	}); err != nil {
		logger.Warn("failed to mark song processing",
			logger.String("songId", song.ID), logger.ErrorField(err))
	}
	song.Status = model.StatusProcessing

	poller := *o.Poller
	poller.OnProgress = func(status *separation.StatusResponse) {
		o.publish(ctx, song, status.Status, status.Progress, status.Error)
	}

	backendStems, err := poller.Wait(ctx, submit.TaskID)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, false, err
		}
		logger.Error("separation job did not complete",
			logger.String("songId", song.ID),
			logger.String("taskId", submit.TaskID),
			logger.ErrorField(err))
		return o.fallbackStems(song, in.SeparationType), true, nil
	}

	stems, degraded := o.rehomeStems(ctx, song, backendStems)
	return stems, degraded, nil
}

// rehomeStems copies each backend-hosted stem into our own storage so stem
// URLs outlive the backend's task cache. A stem that cannot be copied falls
// back to the original file URL and marks the record degraded.
func (o *Orchestrator) rehomeStems(ctx context.Context, song *model.Song, backendStems map[string]string) (model.StemMap, bool) {
	stems := make(model.StemMap, len(backendStems))
	degraded := false

	for name, url := range backendStems {
		stored, err := o.copyStem(ctx, song, name, url)
		if err != nil {
			logger.Warn("stem re-upload failed, falling back to original",
				logger.String("songId", song.ID),
				logger.String("stem", name),
				logger.ErrorField(err))
			stems[name] = song.FileURL
			degraded = true
			continue
		}
		stems[name] = stored
	}
	return stems, degraded
}

func (o *Orchestrator) copyStem(ctx context.Context, song *model.Song, name, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := o.Fetch.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("stem fetch returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	ext := strings.TrimPrefix(path.Ext(url), ".")
	if ext == "" {
		ext = "wav"
	}
	key := storage.StemKey(song.UserID, song.ID, name, ext)
	stored, err := o.Store.Put(ctx, key, bytes.NewReader(data), int64(len(data)),
		storage.ContentTypeForExt(ext))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageUpload, err)
	}
	return stored, nil
}

// fallbackStems maps every requested stem onto the original upload URL.
func (o *Orchestrator) fallbackStems(song *model.Song, separationType string) model.StemMap {
	names := SeparationTypeStems[separationType]
	if len(names) == 0 {
		names = []string{model.StemVocals, model.StemInstrumental}
	}
	stems := make(model.StemMap, len(names))
	for _, name := range names {
		stems[name] = song.FileURL
	}
	return stems
}

// persist retries only the save step. The surrounding work is never redone.
func (o *Orchestrator) persist(ctx context.Context, save func() error) error {
	var err error
	for i := 0; i < persistRetries; i++ {
		if err = save(); err == nil {
			return nil
		}
		logger.Warn("song persist failed, retrying",
			logger.Int("attempt", i+1), logger.ErrorField(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(persistBackoff):
		}
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}

func (o *Orchestrator) publish(ctx context.Context, song *model.Song, status string, progress int, msg string) {
	if o.Progress == nil {
		return
	}
	err := o.Progress.Publish(ctx, cache.JobProgress{
		SongID:   song.ID,
		TaskID:   song.SeparationTaskID,
		Status:   status,
		Progress: progress,
		Message:  msg,
	})
	if err != nil {
		logger.Debug("progress publish failed", logger.ErrorField(err))
	}
}

// DeleteSongAndFiles removes a song's storage objects and its record.
// Object deletes are best-effort: the record is removed even when storage
// cleanup fails, so the library never shows a song the user deleted.
func (o *Orchestrator) DeleteSongAndFiles(ctx context.Context, baseURL, songID string) error {
	song, err := o.Songs.GetSongByID(ctx, songID)
	if err != nil {
		return err
	}

	keys := make(map[string]struct{})
	if k := storage.KeyFromURL(baseURL, song.FileURL); k != "" {
		keys[k] = struct{}{}
	}
	for _, url := range song.Stems {
		if k := storage.KeyFromURL(baseURL, url); k != "" {
			keys[k] = struct{}{}
		}
	}

	for k := range keys {
		if err := o.Store.Delete(ctx, k); err != nil {
			logger.Warn("failed to delete audio object",
				logger.String("songId", songID),
				logger.String("key", k),
				logger.ErrorField(err))
		}
	}

	if o.Progress != nil {
		_ = o.Progress.Clear(ctx, songID)
	}
	return o.Songs.DeleteSong(ctx, songID)
}
