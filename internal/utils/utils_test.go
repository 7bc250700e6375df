package utils

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	sim, err := CosineSimilarity([]float32{1, 0}, []float32{1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-6)

	sim, err = CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, sim, 1e-6)

	sim, err = CosineSimilarity([]float32{0, 0}, []float32{1, 1})
	require.NoError(t, err)
	assert.Zero(t, sim)

	_, err = CosineSimilarity([]float32{1}, []float32{1, 2})
	assert.Error(t, err)
	_, err = CosineSimilarity(nil, []float32{1})
	assert.Error(t, err)
}

func TestParseDataURL(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("RIFF...."))

	d, err := ParseDataURL("data:audio/webm;base64,"+payload, "audio/")
	require.NoError(t, err)
	assert.Equal(t, "audio/webm", d.MIMEType)
	assert.Equal(t, []byte("RIFF...."), d.Data)

	_, err = ParseDataURL("data:image/png;base64,"+payload, "audio/")
	assert.EqualError(t, err, "invalid audio data URL format")

	_, err = ParseDataURL("https://example.com/a.mp3", "audio/")
	assert.Error(t, err)

	_, err = ParseDataURL("data:audio/webm;base64,%%%", "audio/")
	assert.Error(t, err)

	d, err = ParseDataURL("data:audio/webm;codecs=opus;base64,"+payload, "audio/")
	require.NoError(t, err)
	assert.Equal(t, "audio/webm;codecs=opus", d.MIMEType)

	d, err = ParseDataURL(EncodeDataURL("audio/ogg", []byte("OggS")), "audio/")
	require.NoError(t, err)
	assert.Equal(t, []byte("OggS"), d.Data)

	d, err = ParseDataURL("data:image/jpeg;base64,"+payload, "")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", d.MIMEType)
}

func TestImageReference(t *testing.T) {
	assert.Equal(t, "https://cdn/leaf.jpg", ImageReference(" https://cdn/leaf.jpg "))

	ref := ImageReference("data:image/png;base64,aGVsbG8=")
	assert.True(t, strings.HasPrefix(ref, "data:image/png;sha256="))
	assert.Len(t, strings.TrimPrefix(ref, "data:image/png;sha256="), 64)
}
