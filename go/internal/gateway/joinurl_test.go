package gateway

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "http://10.0.0.5:8080/play?room=AB12", JoinURL("http://10.0.0.5:8080/", "AB12"))
	assert.Equal(t, "https://trivia.example/play?room=XY9Z", JoinURL("https://trivia.example", "XY9Z"))
}

func TestRoomCodeFromURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr error
	}{
		{name: "join url", raw: "http://10.0.0.5:8080/play?room=AB12", want: "AB12"},
		{name: "lower case", raw: "https://trivia.example/play?room=ab12&x=1", want: "AB12"},
		{name: "missing", raw: "https://trivia.example/play", wantErr: ErrNoRoomCode},
		{name: "blank", raw: "https://trivia.example/play?room=%20", wantErr: ErrNoRoomCode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RoomCodeFromURL(tt.raw)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := RoomCodeFromURL("://bad")
	assert.Error(t, err)
}

func TestJoinURLRoundTrip(t *testing.T) {
	code, err := RoomCodeFromURL(JoinURL("http://host:8080", "K7PQ"))
	require.NoError(t, err)
	assert.Equal(t, "K7PQ", code)
}

func TestJoinQR(t *testing.T) {
	png, err := JoinQR("http://host:8080", "K7PQ", 0)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG\r\n\x1a\n")))
}
