package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"stemset/core/mixer"
	"stemset/logger"
	"stemset/model"
)

// stemOrder fixes track registration order so transport operations and
// drift reference selection are deterministic across sessions. Stem names
// outside this list still register, sorted, after the known ones.
var stemOrder = []string{
	model.StemVocals,
	model.StemDrums,
	model.StemBass,
	model.StemOther,
	model.StemInstrumental,
}

// mixerCommand is one inbound control message.
type mixerCommand struct {
	Action  string  `json:"action"`
	TrackID string  `json:"trackId,omitempty"`
	Value   float64 `json:"value,omitempty"`
	On      bool    `json:"on,omitempty"`
}

// trackState is the per-track slice of a state snapshot.
type trackState struct {
	ID            string  `json:"id"`
	State         string  `json:"state"`
	Volume        float64 `json:"volume"`
	Pan           float64 `json:"pan"`
	Muted         bool    `json:"muted"`
	Solo          bool    `json:"solo"`
	EffectiveGain float64 `json:"effectiveGain"`
}

type mixerState struct {
	Type     string       `json:"type"`
	Playing  bool         `json:"playing"`
	Position float64      `json:"position"`
	Duration float64      `json:"duration"`
	Loaded   bool         `json:"loaded"`
	Tracks   []trackState `json:"tracks"`
}

type levelsMessage struct {
	Type     string             `json:"type"`
	Position float64            `json:"position"`
	Frames   []mixer.LevelFrame `json:"frames"`
}

type mixerError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// MixerWebSocketHandler runs one mixer session over a WebSocket. The song's
// stems are loaded into a fresh registry; the connection drives transport
// and mix state and receives state plus level frames until it closes.
func (h *APIHandler) MixerWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	song, ok := h.ownedSong(w, r)
	if !ok {
		return
	}
	if !song.HasStems() {
		writeError(w, http.StatusConflict, "Song has no stems yet")
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := mixer.NewRegistry(mixer.NewHTTPLoader())
	transport := mixer.NewTransport(registry, h.cfg.DriftTolerance, h.cfg.DriftCheckInterval)
	analyzer := mixer.NewAnalyzer(registry)

	defer func() {
		transport.Close()
		registry.DisposeAll()
	}()

	registry.LoadFromStems(ctx, stemOrder, song.Stems)
	logger.Info("mixer session opened",
		logger.String("songId", song.ID),
		logger.Int("stems", len(song.Stems)))

	// Writer loop owns the connection for writes; commands funnel through
	// the reader below.
	outbound := make(chan interface{}, 16)
	go func() {
		ticker := time.NewTicker(h.cfg.LevelFrameInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-outbound:
				conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
			case <-ticker.C:
				if !transport.Playing() {
					continue
				}
				conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				err := conn.WriteJSON(levelsMessage{
					Type:     "levels",
					Position: transport.CurrentTime(),
					Frames:   analyzer.Frames(),
				})
				if err != nil {
					cancel()
					return
				}
			}
		}
	}()

	sendState := func() {
		select {
		case outbound <- h.snapshotMixer(registry, transport):
		default:
		}
	}
	sendError := func(msg string) {
		select {
		case outbound <- mixerError{Type: "error", Message: msg}:
		default:
		}
	}
	sendState()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd mixerCommand
		if err := json.Unmarshal(raw, &cmd); err != nil {
			sendError("malformed command")
			continue
		}
		h.applyMixerCommand(registry, transport, cmd, sendError)
		sendState()
	}
}

func (h *APIHandler) applyMixerCommand(registry *mixer.Registry, transport *mixer.Transport,
	cmd mixerCommand, sendError func(string)) {
	switch cmd.Action {
	case "play":
		if err := transport.PlayAll(); err != nil {
			sendError("tracks are still loading")
		}
	case "pause":
		transport.PauseAll()
	case "stop":
		transport.StopAll()
	case "seek":
		transport.SeekAll(cmd.Value)
	case "volume":
		registry.SetVolume(cmd.TrackID, cmd.Value)
	case "pan":
		registry.SetPan(cmd.TrackID, cmd.Value)
	case "mute":
		registry.SetMuted(cmd.TrackID, cmd.On)
	case "solo":
		registry.SetSolo(cmd.TrackID, cmd.On)
	case "state":
		// State snapshot is sent after every command anyway.
	default:
		sendError("unknown action " + cmd.Action)
	}
}

func (h *APIHandler) snapshotMixer(registry *mixer.Registry, transport *mixer.Transport) mixerState {
	tracks := registry.Tracks()
	state := mixerState{
		Type:     "state",
		Playing:  transport.Playing(),
		Position: transport.CurrentTime(),
		Duration: transport.Duration(),
		Loaded:   registry.AllLoaded(),
		Tracks:   make([]trackState, 0, len(tracks)),
	}
	for _, t := range tracks {
		state.Tracks = append(state.Tracks, trackState{
			ID:            t.ID,
			State:         t.State().String(),
			Volume:        t.Volume(),
			Pan:           t.Pan(),
			Muted:         t.Muted(),
			Solo:          t.Solo(),
			EffectiveGain: t.EffectiveGain(),
		})
	}
	return state
}
