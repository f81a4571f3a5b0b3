package gateway

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const joinPath = "/play"

var ErrNoRoomCode = errors.New("url has no room code")

// JoinURL is the address phones open to join roomCode
func JoinURL(publicURL, roomCode string) string {
	base := strings.TrimRight(publicURL, "/")
	return base + joinPath + "?" + url.Values{"room": {roomCode}}.Encode()
}

// RoomCodeFromURL extracts the room parameter from a join URL
func RoomCodeFromURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse join url: %w", err)
	}
	code := strings.ToUpper(strings.TrimSpace(u.Query().Get("room")))
	if code == "" {
		return "", ErrNoRoomCode
	}
	return code, nil
}
