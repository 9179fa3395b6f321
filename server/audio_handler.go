package server

import (
	"net/http"
	"path"
	"strings"

	"stemset/logger"
	"stemset/storage"
)

// AudioProxyHandler streams stored audio to clients. Serving through the
// API keeps the object store private and gives the browser Range support,
// which seeking in the mixer depends on.
func (h *APIHandler) AudioProxyHandler(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/api/audio/")
	if key == "" || strings.Contains(key, "..") {
		writeError(w, http.StatusBadRequest, "Invalid object path")
		return
	}

	obj, err := h.store.Get(r.Context(), key)
	if err != nil {
		logger.Warn("audio object not found", logger.String("key", key), logger.ErrorField(err))
		writeError(w, http.StatusNotFound, "Audio not found")
		return
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		writeError(w, http.StatusNotFound, "Audio not found")
		return
	}

	contentType := info.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = storage.ContentTypeForExt(path.Ext(key))
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000")

	// ServeContent handles Range and conditional requests over the seekable
	// object.
	http.ServeContent(w, r, path.Base(key), info.LastModified, obj)
}
