package gateway

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
)

// WebSocketHandler upgrades room watchers: the TV and every phone
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	rooms             *Rooms
}

func NewWebSocketHandler(cm *ConnectionManager, rooms *Rooms) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		rooms:             rooms,
	}
}

// HandleRoomConnection serves GET /ws/room?room=<code>&player_id=<id>
func (h *WebSocketHandler) HandleRoomConnection(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("room")
	if code == "" {
		http.Error(w, "room is required", http.StatusBadRequest)
		return
	}

	room, err := h.rooms.Open(r.Context(), code)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrRoomNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	// the host screen connects without a player id
	playerID := r.URL.Query().Get("player_id")

	state := room.Sync.State()
	initial := []*Envelope{
		stateEnvelope(state),
		syncEnvelope(room.Code, room.Sync.Offline(), ""),
	}
	if err := h.connectionManager.UpgradeConnection(w, r, playerID, room.Code, initial...); err != nil {
		// Upgrade has already replied to the client
		log.Error().
			Err(err).
			Str("room_code", room.Code).
			Str("player_id", playerID).
			Msg("failed to upgrade websocket connection")
	}
}

func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.connectionManager.GetConnectionStats())
}

func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/room", h.HandleRoomConnection)
	mux.HandleFunc("GET /ws/stats", h.HandleConnectionStats)
}
