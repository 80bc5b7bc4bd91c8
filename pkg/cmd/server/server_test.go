package server

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	replayserver "github.com/mpapenbr/telemetry-replay/pkg/grpc/server/replay"
	"github.com/mpapenbr/telemetry-replay/pkg/model"
	"github.com/mpapenbr/telemetry-replay/pkg/replay"
)

func writeConfig(t *testing.T, content string) *viper.Viper {
	t.Helper()
	file := filepath.Join(t.TempDir(), "trs.yml")
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))
	v := viper.New()
	v.SetConfigFile(file)
	require.NoError(t, v.ReadInConfig())
	return v
}

func TestApplyPacingInterval(t *testing.T) {
	tests := []struct {
		name    string
		content string
		changed bool
		want    time.Duration
	}{
		{"changed", "pacing-interval: 250ms\n", true, 250 * time.Millisecond},
		{"same value", "pacing-interval: 100ms\n", false, 100 * time.Millisecond},
		{"not set", "log-level: debug\n", false, 100 * time.Millisecond},
		{"invalid", "pacing-interval: 0s\n", false, 100 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := replay.NewSession(nil, replay.WithInterval(100*time.Millisecond))
			v := writeConfig(t, tt.content)
			assert.Equal(t, tt.changed, applyPacingInterval(v, s))
			assert.Equal(t, tt.want, s.Interval())
		})
	}
}

func TestMuxRoutes(t *testing.T) {
	s := replay.NewSession(make([]model.DerivedSample, 1), replay.WithInterval(time.Millisecond))
	srv := httptest.NewServer(newMux(s))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/next_data")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	client := replayserver.NewClient(srv.Client(), srv.URL)
	_, err = client.Next(t.Context())
	assert.ErrorIs(t, err, replay.ErrExhausted)
}

func TestCORSPreflight(t *testing.T) {
	s := replay.NewSession(nil)
	h := newCORS().Handler(newMux(s))

	req := httptest.NewRequest(http.MethodOptions, "/next_data", http.NoBody)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "http://example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
