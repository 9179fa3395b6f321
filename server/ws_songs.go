package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"stemset/logger"
	"stemset/model"
	"stemset/repository"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// songListMessage is pushed to subscribers whenever the user's library
// changes. The full list is sent every time; clients just replace state.
type songListMessage struct {
	Type      string        `json:"type"`
	Songs     []*model.Song `json:"songs"`
	Timestamp int64         `json:"timestamp"`
}

type songSubscriber struct {
	conn *websocket.Conn
	send chan songListMessage
}

// SongHub fans song-library changes out to each user's open connections.
type SongHub struct {
	songRepo repository.SongRepository

	mu   sync.Mutex
	subs map[int64]map[*songSubscriber]struct{}
}

// NewSongHub builds a hub reading library state from songRepo.
func NewSongHub(songRepo repository.SongRepository) *SongHub {
	return &SongHub{
		songRepo: songRepo,
		subs:     make(map[int64]map[*songSubscriber]struct{}),
	}
}

// NotifyUser pushes the user's current song list to every subscription.
// Safe to call from any goroutine, including the upload pipeline.
func (hub *SongHub) NotifyUser(userID int64) {
	hub.mu.Lock()
	n := len(hub.subs[userID])
	hub.mu.Unlock()
	if n == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	songs, err := hub.songRepo.GetSongsByUserID(ctx, userID)
	if err != nil {
		logger.Warn("song list refresh failed", logger.Int64("userId", userID), logger.ErrorField(err))
		return
	}

	msg := songListMessage{Type: "songs", Songs: songs, Timestamp: time.Now().UnixMilli()}

	hub.mu.Lock()
	defer hub.mu.Unlock()
	for sub := range hub.subs[userID] {
		select {
		case sub.send <- msg:
		default:
			// Slow consumer; drop this update, the next one supersedes it.
		}
	}
}

func (hub *SongHub) add(userID int64, sub *songSubscriber) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	if hub.subs[userID] == nil {
		hub.subs[userID] = make(map[*songSubscriber]struct{})
	}
	hub.subs[userID][sub] = struct{}{}
}

func (hub *SongHub) remove(userID int64, sub *songSubscriber) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	delete(hub.subs[userID], sub)
	if len(hub.subs[userID]) == 0 {
		delete(hub.subs, userID)
	}
}

// SongsWebSocketHandler subscribes the caller to live library updates. The
// current list is sent immediately on connect.
func (h *APIHandler) SongsWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}

	sub := &songSubscriber{conn: conn, send: make(chan songListMessage, 4)}
	h.songHub.add(userID, sub)
	defer func() {
		h.songHub.remove(userID, sub)
		conn.Close()
	}()

	go h.songHub.NotifyUser(userID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			// Reads only serve to detect close and consume pings.
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case msg := <-sub.send:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}
