package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/partytrivia/go/internal/models"
)

// RoomStateResponse is the body of GET /api/rooms/{code}/state
type RoomStateResponse struct {
	State   models.GameState `json:"state"`
	Offline bool             `json:"offline"`
	JoinURL string           `json:"joinUrl"`
}

// RoomSummary describes one room served by this process
type RoomSummary struct {
	RoomCode string       `json:"roomCode"`
	Stage    models.Stage `json:"stage"`
	Mode     models.Mode  `json:"mode"`
	Round    int          `json:"round"`
	Players  int          `json:"players"`
	Offline  bool         `json:"offline"`
}

// StateHandler serves read-only room views over plain HTTP
type StateHandler struct {
	rooms     *Rooms
	publicURL string
	qrSize    int
}

func NewStateHandler(rooms *Rooms, publicURL string, qrSize int) *StateHandler {
	return &StateHandler{rooms: rooms, publicURL: publicURL, qrSize: qrSize}
}

func (h *StateHandler) HandleGetRoomState(w http.ResponseWriter, r *http.Request) {
	room, ok := h.openRoom(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, RoomStateResponse{
		State:   room.Sync.State(),
		Offline: room.Sync.Offline(),
		JoinURL: JoinURL(h.publicURL, room.Code),
	})
}

func (h *StateHandler) HandleGetRoomQR(w http.ResponseWriter, r *http.Request) {
	room, ok := h.openRoom(w, r)
	if !ok {
		return
	}
	png, err := JoinQR(h.publicURL, room.Code, h.qrSize)
	if err != nil {
		log.Error().Err(err).Str("room_code", room.Code).Msg("failed to render join qr")
		http.Error(w, "failed to render qr code", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(png); err != nil {
		log.Debug().Err(err).Msg("failed to write qr response")
	}
}

func (h *StateHandler) HandleGetActiveRooms(w http.ResponseWriter, r *http.Request) {
	codes := h.rooms.Codes()
	slices.Sort(codes)

	summaries := make([]RoomSummary, 0, len(codes))
	for _, code := range codes {
		room, err := h.rooms.Get(code)
		if err != nil {
			continue
		}
		state := room.Sync.State()
		summaries = append(summaries, RoomSummary{
			RoomCode: code,
			Stage:    state.Stage,
			Mode:     state.Mode,
			Round:    state.Round,
			Players:  len(state.Players),
			Offline:  room.Sync.Offline(),
		})
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/rooms/active", h.HandleGetActiveRooms)
	mux.HandleFunc("GET /api/rooms/{code}/state", h.HandleGetRoomState)
	mux.HandleFunc("GET /api/rooms/{code}/qr.png", h.HandleGetRoomQR)
}

func (h *StateHandler) openRoom(w http.ResponseWriter, r *http.Request) (*Room, bool) {
	room, err := h.rooms.Open(r.Context(), r.PathValue("code"))
	if errors.Is(err, ErrRoomNotFound) {
		http.Error(w, "room not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		log.Error().Err(err).Str("room_code", r.PathValue("code")).Msg("failed to open room")
		http.Error(w, "failed to open room", http.StatusInternalServerError)
		return nil, false
	}
	return room, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
