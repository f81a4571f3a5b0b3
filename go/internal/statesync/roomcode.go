package statesync

import "math/rand/v2"

// Letters and digits that are hard to confuse when read off a TV screen.
const roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const roomCodeLength = 4

// NewRoomCode returns a fresh short room code. Collisions are possible and
// surface as roomstore.ErrRoomExists on create.
func NewRoomCode() string {
	b := make([]byte, roomCodeLength)
	for i := range b {
		b[i] = roomCodeAlphabet[rand.IntN(len(roomCodeAlphabet))]
	}
	return string(b)
}
