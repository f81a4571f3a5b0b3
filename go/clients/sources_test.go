package clients

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseContentSources(t *testing.T) {
	got, err := ParseContentSources(" bank , generative,bank")
	require.NoError(t, err)
	assert.Equal(t, []ContentSource{ContentSourceGenerative, ContentSourceBank}, got)

	got, err = ParseContentSources("BANK")
	require.NoError(t, err)
	assert.Equal(t, []ContentSource{ContentSourceBank}, got)

	_, err = ParseContentSources("oracle")
	assert.Error(t, err)
	_, err = ParseContentSources(" , ")
	assert.Error(t, err)
}
