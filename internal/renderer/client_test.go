package renderer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cuongbtq/courtbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderClip_SendsSpec(t *testing.T) {
	var got RenderSpec
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/render", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", time.Second, 0)
	frames := []domain.Frame{{SpeakerID: "u1", SpeakerName: "Phoenix", Text: "Objection!"}}

	err := c.RenderClip(context.Background(), frames, "/out/job.mp4", "tat")
	require.NoError(t, err)

	assert.Equal(t, "/out/job.mp4", got.OutputPath)
	assert.Equal(t, "tat", got.Music)
	assert.Equal(t, 2, got.ResolutionScale)
	assert.Equal(t, frames, got.Frames)
}

func TestRenderClip_EngineFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "ffmpeg exited with status 1", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second, 1)
	err := c.RenderClip(context.Background(), nil, "/out/job.mp4", "pwr")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "http 500")
	assert.Contains(t, err.Error(), "ffmpeg exited")
}

func TestRenderClip_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewHTTPClient(url, time.Second, 1)
	err := c.RenderClip(context.Background(), nil, "/out/job.mp4", "pwr")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "render engine unreachable")
}
