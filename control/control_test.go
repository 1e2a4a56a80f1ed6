package control

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"VisionTracker/config"
	"VisionTracker/platform"
	"VisionTracker/tracker"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) (*httptest.Server, *tracker.Tracker) {
	t.Helper()
	cfg := config.Default()
	plat := platform.Info{System: "linux", Arch: "amd64"}
	trk := tracker.New(cfg, plat, zap.NewNop(), nil, true)
	assert.NoError(t, trk.Initialize("", true, "", []string{"mock", "yolo"}))

	s := NewServer(trk, zap.NewNop())
	ts := httptest.NewServer(s.routes())
	t.Cleanup(func() {
		ts.Close()
		trk.Stop()
	})
	return ts, trk
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func postJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestControlAPI_All(t *testing.T) {
	ts, _ := newTestServer(t)

	t.Run("ping", func(t *testing.T) {
		var body map[string]string
		code := getJSON(t, ts.URL+"/api/ping", &body)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "pong", body["message"])
		assert.Equal(t, "stopped", body["state"])
	})

	t.Run("stats", func(t *testing.T) {
		var snap tracker.Snapshot
		code := getJSON(t, ts.URL+"/api/stats", &snap)
		assert.Equal(t, http.StatusOK, code)
		assert.True(t, snap.TestMode)
		assert.Equal(t, "mock", snap.CurrentBackend)
		assert.NotEmpty(t, snap.RunID)
	})

	t.Run("backends", func(t *testing.T) {
		var body struct {
			Available        []string `json:"available"`
			Current          string   `json:"current"`
			SwitchingEnabled bool     `json:"switchingEnabled"`
		}
		code := getJSON(t, ts.URL+"/api/backends", &body)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, []string{"mock"}, body.Available)
		assert.Equal(t, "mock", body.Current)
		assert.True(t, body.SwitchingEnabled)
	})

	t.Run("switch to loaded backend", func(t *testing.T) {
		var body map[string]any
		code := postJSON(t, ts.URL+"/api/backends/switch/mock", &body)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "mock", body["current"])
	})

	t.Run("switch to unknown backend", func(t *testing.T) {
		var body map[string]any
		code := postJSON(t, ts.URL+"/api/backends/switch/detectron2", &body)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Contains(t, body["error"], "detectron2")
	})

	t.Run("screenshot rejected while stopped", func(t *testing.T) {
		var body map[string]any
		code := postJSON(t, ts.URL+"/api/screenshot", &body)
		assert.Equal(t, http.StatusConflict, code)
	})

	t.Run("pause while stopped is rejected by the state machine", func(t *testing.T) {
		var body map[string]string
		code := postJSON(t, ts.URL+"/api/pause", &body)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "stopped", body["state"], "pause is only legal while running")
	})
}
