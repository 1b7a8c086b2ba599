package assets

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndGet(t *testing.T) {
	s := NewStore("/api/v1/sessions/abc/assets/")
	data := []byte("RIFF....WAVE")

	a := s.Register(data, "audio/wav", "wav")
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, ".wav", a.Extension)
	assert.Equal(t, "/api/v1/sessions/abc/assets/"+a.ID+".wav", a.Handle)
	assert.Equal(t, len(data), a.Size)

	got, b, err := s.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, a, got)
	assert.Equal(t, data, b)

	_, b, err = s.Get(a.ID + ".wav")
	require.NoError(t, err)
	assert.Equal(t, data, b)
}

func TestRegisterCopiesData(t *testing.T) {
	s := NewStore("/assets")
	data := []byte{1, 2, 3}
	a := s.Register(data, "application/octet-stream", "")
	data[0] = 42

	_, b, err := s.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, b)
}

func TestLookupByHandle(t *testing.T) {
	s := NewStore("/assets")
	a := s.Register([]byte{9}, "image/png", ".png")

	got, _, err := s.Lookup(a.Handle)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, _, err = s.Lookup("/elsewhere/" + a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRevoke(t *testing.T) {
	s := NewStore("/assets")
	a := s.Register([]byte{1, 2}, "audio/wav", ".wav")
	b := s.Register([]byte{3, 4}, "audio/wav", ".wav")

	require.NoError(t, s.Revoke(a.ID))
	_, _, err := s.Get(a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Revoke(a.ID), ErrNotFound)

	_, _, err = s.Get(b.ID)
	assert.NoError(t, err)

	st := s.Stats()
	assert.Equal(t, 1, st.Count)
	assert.Equal(t, int64(2), st.TotalBytes)
	assert.Equal(t, int64(1), st.Revoked)

	assert.Equal(t, 1, s.RevokeAll())
	assert.Equal(t, 0, s.Stats().Count)
}

func TestSupersededAssetsStayValid(t *testing.T) {
	s := NewStore("/assets")
	first := s.Register([]byte{1, 1}, "audio/wav", ".wav")
	second := s.Register([]byte{2, 2}, "audio/wav", ".wav")
	assert.NotEqual(t, first.Handle, second.Handle)

	_, _, err := s.Lookup(first.Handle)
	assert.NoError(t, err)
}

func TestDownloadName(t *testing.T) {
	ts := time.UnixMilli(1700000000123)
	assert.Equal(t, "story-audio-1700000000123.wav", DownloadName("story-audio", ".wav", ts))
	assert.Equal(t, "social-post-1700000000123.png", DownloadName("social-post", "png", ts))
	assert.True(t, strings.HasPrefix(DownloadName("x", "", ts), "x-"))
}
