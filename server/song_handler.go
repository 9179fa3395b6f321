package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"stemset/core/upload"
	"stemset/logger"
	"stemset/model"
	"stemset/repository"
)

// maxUploadBytes bounds the multipart audio payload (100 MB).
const maxUploadBytes = 100 << 20

// GetSongsHandler lists the caller's songs, newest upload first.
func (h *APIHandler) GetSongsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	songs, err := h.songRepo.GetSongsByUserID(r.Context(), userID)
	if err != nil {
		logger.Error("failed to list songs", logger.Int64("userId", userID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to list songs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"songs": songs})
}

// GetSongHandler returns one song owned by the caller.
func (h *APIHandler) GetSongHandler(w http.ResponseWriter, r *http.Request) {
	song, ok := h.ownedSong(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, song)
}

// UploadSongHandler receives a multipart upload and runs the separation
// pipeline asynchronously. It answers immediately with the created record;
// clients follow progress via the status endpoint or WebSocket.
func (h *APIHandler) UploadSongHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read upload")
		return
	}

	hiFi, _ := strconv.ParseBool(r.FormValue("hi_fi"))
	in := upload.Input{
		UserID:         userID,
		FileName:       header.Filename,
		Data:           data,
		SeparationType: r.FormValue("separation_type"),
		HiFi:           hiFi,
	}

	// The pipeline outlives the request; detach it from the request context.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		song, err := h.orch.Process(ctx, in)
		if err != nil {
			logger.Error("upload pipeline failed",
				logger.Int64("userId", userID),
				logger.String("file", in.FileName),
				logger.ErrorField(err))
		}
		if song != nil {
			h.songHub.NotifyUser(song.UserID)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"message": "Upload accepted, separation in progress",
	})
	h.songHub.NotifyUser(userID)
}

// SongStatusHandler reports live separation progress for one song. While a
// job is in flight the progress cache is authoritative; afterwards the
// record itself is.
func (h *APIHandler) SongStatusHandler(w http.ResponseWriter, r *http.Request) {
	song, ok := h.ownedSong(w, r)
	if !ok {
		return
	}

	if p, err := h.progress.Get(r.Context(), song.ID); err == nil && p != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":   p.Status,
			"progress": p.Progress,
			"error":    p.Message,
			"stems":    song.Stems,
		})
		return
	}

	progress := 0
	if song.Status == model.StatusCompleted {
		progress = 100
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   song.Status,
		"progress": progress,
		"stems":    song.Stems,
		"degraded": song.Degraded,
	})
}

// DeleteSongHandler removes a song's audio objects and its record.
func (h *APIHandler) DeleteSongHandler(w http.ResponseWriter, r *http.Request) {
	song, ok := h.ownedSong(w, r)
	if !ok {
		return
	}

	if err := h.orch.DeleteSongAndFiles(r.Context(), h.cfg.AudioBaseURL, song.ID); err != nil {
		if errors.Is(err, repository.ErrSongNotFound) {
			writeError(w, http.StatusNotFound, "Song not found")
			return
		}
		logger.Error("failed to delete song", logger.String("songId", song.ID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to delete song")
		return
	}

	h.songHub.NotifyUser(song.UserID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Song deleted"})
}

// AnalyzeSongHandler runs chord/key analysis on the song's original audio
// and persists the detected key and tempo.
func (h *APIHandler) AnalyzeSongHandler(w http.ResponseWriter, r *http.Request) {
	song, ok := h.ownedSong(w, r)
	if !ok {
		return
	}

	result, err := h.analyzer.Analyze(r.Context(), song.FileURL)
	if err != nil {
		logger.Error("chord analysis failed", logger.String("songId", song.ID), logger.ErrorField(err))
		writeError(w, http.StatusBadGateway, "Analysis failed")
		return
	}

	if result.Key != "" {
		song.Key = result.Key
	}
	if result.BPM > 0 {
		song.BPM = int(result.BPM + 0.5)
	}
	if err := h.songRepo.UpdateSong(r.Context(), song); err != nil {
		logger.Warn("failed to persist analysis result",
			logger.String("songId", song.ID), logger.ErrorField(err))
	}

	writeJSON(w, http.StatusOK, result)
}

// ownedSong loads the {id} song and enforces ownership. Writes the error
// response itself when the song is unavailable.
func (h *APIHandler) ownedSong(w http.ResponseWriter, r *http.Request) (*model.Song, bool) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}

	songID := mux.Vars(r)["id"]
	song, err := h.songRepo.GetSongByID(r.Context(), songID)
	if err != nil {
		if errors.Is(err, repository.ErrSongNotFound) {
			writeError(w, http.StatusNotFound, "Song not found")
		} else {
			logger.Error("song lookup failed", logger.String("songId", songID), logger.ErrorField(err))
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return nil, false
	}
	if song.UserID != userID {
		// Do not leak existence of other users' songs.
		writeError(w, http.StatusNotFound, "Song not found")
		return nil, false
	}
	return song, true
}
