package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// Object is a readable stored object. minio.Object satisfies this, and the
// Seek method is what lets the audio proxy honor Range requests.
type Object interface {
	io.Reader
	io.Seeker
	io.Closer
	Stat() (ObjectInfo, error)
}

// ObjectInfo carries the subset of object metadata the server needs.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// ObjectStore is the single upload-bytes-get-URL surface the rest of the
// application talks to. Every deployment picks exactly one implementation.
type ObjectStore interface {
	// Put stores the object and returns its publicly fetchable URL.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	// Get opens the object for streaming reads.
	Get(ctx context.Context, key string) (Object, error)
	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
	// URLFor returns the public URL for an already-stored key.
	URLFor(key string) string
}

// OriginalKey builds the storage key for an uploaded original:
// audio/{userID}/{timestamp}_{originalName}.
func OriginalKey(userID int64, originalName string) string {
	return fmt.Sprintf("audio/%d/%d_%s", userID, time.Now().UnixMilli(), sanitizeName(originalName))
}

// StemKey builds the storage key for a separated stem:
// audio/{userID}/stems/{songID}/{stem}.{ext}.
func StemKey(userID int64, songID, stemName, ext string) string {
	return fmt.Sprintf("audio/%d/stems/%s/%s.%s", userID, songID, stemName, strings.TrimPrefix(ext, "."))
}

// KeyFromURL recovers the storage key from a URL produced by URLFor, or ""
// when the URL does not point at this store's public prefix.
func KeyFromURL(baseURL, url string) string {
	base := strings.TrimSuffix(baseURL, "/") + "/"
	if !strings.HasPrefix(url, base) {
		return ""
	}
	return strings.TrimPrefix(url, base)
}

func sanitizeName(name string) string {
	name = path.Base(name)
	name = strings.ReplaceAll(name, " ", "_")
	return name
}

// ContentTypeForExt maps a stem/audio file extension to its MIME type.
func ContentTypeForExt(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "mp3":
		return "audio/mpeg"
	case "wav":
		return "audio/wav"
	case "flac":
		return "audio/flac"
	case "m4a":
		return "audio/mp4"
	case "ogg":
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}
