package storage

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoverKey(t *testing.T) {
	key := CoverKey(42, "png")
	assert.True(t, strings.HasPrefix(key, "covers/bracket-42-"))
	assert.True(t, strings.HasSuffix(key, ".png"))

	assert.NotEqual(t, key, CoverKey(42, ".png"), "keys must be unique per upload")
	assert.False(t, strings.HasSuffix(CoverKey(1, ""), "."))
}

func TestPublicURL(t *testing.T) {
	base, err := url.Parse("https://cdn.example.com/media/")
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.com/media/covers/a.png", publicURL(base, "covers/a.png"))
	assert.Equal(t, "https://cdn.example.com/media/covers/a.png", publicURL(base, "/covers/a.png"))
	assert.Empty(t, publicURL(base, ""))
	assert.Empty(t, publicURL(nil, "covers/a.png"))

	bare, err := url.Parse("https://cdn.example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/covers/a.png", publicURL(bare, "covers/a.png"))
}

func TestNewCloudflareR2Uploader_RequiresAllFields(t *testing.T) {
	_, err := NewCloudflareR2Uploader(t.Context(), CloudflareR2UploaderConfig{AccountID: "acc"}, nil)
	assert.Error(t, err)
}
