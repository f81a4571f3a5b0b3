package generative_client

import (
	"time"

	"github.com/mcdev12/partytrivia/go/clients"
)

// GenerativeClient talks to the hosted content service. It implements
// game.ContentProvider and can synthesize narration audio.
type GenerativeClient struct {
	*clients.BaseClient
	voice string
}

func NewGenerativeClient(baseURL, apiKey string, timeout time.Duration) *GenerativeClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := &GenerativeClient{
		BaseClient: clients.NewBaseClient(baseURL),
		voice:      "host",
	}

	if apiKey != "" {
		client.SetHeader(AuthorizationHeader, "Bearer "+apiKey)
	}
	if timeout > 0 {
		client.SetTimeout(timeout)
	}

	return client
}

// SetVoice selects the speech voice.
func (c *GenerativeClient) SetVoice(voice string) {
	c.voice = voice
}
