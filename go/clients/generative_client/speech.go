package generative_client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Speech is synthesized narration audio.
type Speech struct {
	Audio       []byte
	ContentType string
}

type speechRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

// Synthesize turns text into audio.
func (c *GenerativeClient) Synthesize(ctx context.Context, text string) (Speech, error) {
	payload, err := json.Marshal(speechRequest{Text: text, Voice: c.voice})
	if err != nil {
		return Speech{}, fmt.Errorf("failed to marshal speech request: %w", err)
	}

	audio, header, err := c.MakeRequest(ctx, http.MethodPost, SpeechEndpoint, bytes.NewReader(payload))
	if err != nil {
		return Speech{}, fmt.Errorf("failed to synthesize speech: %w", err)
	}

	contentType := header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	return Speech{Audio: audio, ContentType: contentType}, nil
}
