package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattwynharris/Meshcore-Dashboard/internal/config"
	"github.com/mattwynharris/Meshcore-Dashboard/internal/live"
	"github.com/mattwynharris/Meshcore-Dashboard/internal/models"
	"github.com/mattwynharris/Meshcore-Dashboard/internal/monitor"
	"github.com/mattwynharris/Meshcore-Dashboard/internal/storage"
	"github.com/mattwynharris/Meshcore-Dashboard/pkg/crypto"
	"github.com/mattwynharris/Meshcore-Dashboard/pkg/meshcore"
)

const (
	testKeyA = "a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f90"
	testKeyB = "0f1e2d3c4b5a69788796a5b4c3d2e1f00f1e2d3c4b5a69788796a5b4c3d2e1f0"
)

// stubGateway answers every probe instantly
type stubGateway struct {
	mu        sync.Mutex
	pingCalls int
}

func (g *stubGateway) Reconfigure(host string, port int)            {}
func (g *stubGateway) RefreshContacts(ctx context.Context) error    { return nil }
func (g *stubGateway) GetStatus(ctx context.Context, r config.RepeaterSettings) (*meshcore.Status, *meshcore.Contact, error) {
	return &meshcore.Status{}, nil, nil
}

func (g *stubGateway) SendPing(ctx context.Context, r config.RepeaterSettings) (time.Duration, error) {
	g.mu.Lock()
	g.pingCalls++
	g.mu.Unlock()
	return 25 * time.Millisecond, nil
}

type testServer struct {
	*RESTServer
	store *storage.MemoryStore
	table *monitor.StateTable
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	hash, err := crypto.HashPassword("hunter2")
	require.NoError(t, err)

	cfg := &config.Config{
		Server: config.ServerConfig{Name: "test", Version: "0.0.0"},
		JWT: config.JWTConfig{
			Secret:          "test-secret",
			AccessTokenTTL:  time.Hour,
			RefreshTokenTTL: time.Hour,
		},
		Admin: config.AdminConfig{
			Username:     "admin",
			PasswordHash: hash,
		},
		SettingsFile: filepath.Join(t.TempDir(), "settings.yml"),
		Settings:     config.DefaultSettings(),
	}
	cfg.Settings.CompanionHost = "127.0.0.1"
	cfg.Settings.Repeaters = []config.RepeaterSettings{
		{Name: "Alpha", PublicKey: testKeyA},
		{Name: "Bravo", PublicKey: testKeyB},
	}

	manager := config.NewManager(cfg)
	store := storage.NewMemoryStore()
	table := monitor.NewStateTable(15 * time.Minute)
	table.SyncConfigured(cfg.Settings.Repeaters)

	hub := live.NewHub()
	t.Cleanup(hub.Close)

	pings := monitor.NewPingCoordinator(manager, &stubGateway{}, table, hub)

	return &testServer{
		RESTServer: NewRESTServer(cfg, manager, store, table, pings, hub),
		store:      store,
		table:      table,
	}
}

func (s *testServer) request(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T) string {
	t.Helper()

	rec := s.request(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "admin",
		"password": "hunter2",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.AccessToken
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.request(t, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)

	t.Run("valid credentials", func(t *testing.T) {
		token := s.login(t)
		assert.NotEmpty(t, token)
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := s.request(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
			"username": "admin",
			"password": "wrong",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong username", func(t *testing.T) {
		rec := s.request(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
			"username": "root",
			"password": "hunter2",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestListRepeaters(t *testing.T) {
	s := newTestServer(t)

	hops := 1
	s.table.ApplySample(testKeyA, &models.TelemetrySample{
		PublicKey:         testKeyA,
		Timestamp:         time.Now().Unix(),
		BatteryMilliVolts: 4100,
	}, &hops, "4d")

	rec := s.request(t, http.MethodGet, "/api/v1/repeaters", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Repeaters []models.RepeaterState `json:"repeaters"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Repeaters, 2)

	assert.Equal(t, models.LivenessOnline, resp.Repeaters[0].Liveness)
	assert.Equal(t, models.LivenessUnknown, resp.Repeaters[1].Liveness)
}

func TestGetRepeater(t *testing.T) {
	s := newTestServer(t)

	t.Run("by prefix", func(t *testing.T) {
		rec := s.request(t, http.MethodGet, "/api/v1/repeaters/"+testKeyA[:12], "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var state models.RepeaterState
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
		assert.Equal(t, "Alpha", state.Name)
	})

	t.Run("unknown", func(t *testing.T) {
		rec := s.request(t, http.MethodGet, "/api/v1/repeaters/ffff", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestGetHistory(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	now := time.Now()
	for _, age := range []time.Duration{48 * time.Hour, 2 * time.Hour, time.Hour} {
		require.NoError(t, s.store.InsertTelemetry(ctx, &models.TelemetrySample{
			PublicKey: testKeyA,
			Timestamp: now.Add(-age).Unix(),
		}))
	}

	t.Run("default window", func(t *testing.T) {
		rec := s.request(t, http.MethodGet, "/api/v1/repeaters/"+testKeyA+"/history", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Hours   int                       `json:"hours"`
			Samples []*models.TelemetrySample `json:"samples"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 24, resp.Hours)
		// The 48h-old sample is outside the default window
		assert.Len(t, resp.Samples, 2)
	})

	t.Run("custom window", func(t *testing.T) {
		rec := s.request(t, http.MethodGet, "/api/v1/repeaters/"+testKeyA+"/history?hours=72", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Samples []*models.TelemetrySample `json:"samples"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp.Samples, 3)
	})

	t.Run("bad hours", func(t *testing.T) {
		rec := s.request(t, http.MethodGet, "/api/v1/repeaters/"+testKeyA+"/history?hours=zero", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown repeater", func(t *testing.T) {
		rec := s.request(t, http.MethodGet, "/api/v1/repeaters/ffff/history", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestPingEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := s.request(t, http.MethodPost, "/api/v1/repeaters/"+testKeyA+"/ping", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result models.PingResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.OK)
	assert.Equal(t, int64(25), result.LatencyMS)

	// Second ping inside the cooldown window
	rec = s.request(t, http.MethodPost, "/api/v1/repeaters/"+testKeyA+"/ping", "", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	var resp struct {
		Cooldown *models.CooldownStatus `json:"cooldown"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Cooldown)
	assert.Greater(t, resp.Cooldown.RemainingSeconds, 0)

	// A different repeater is not affected by the first one's cooldown
	rec = s.request(t, http.MethodPost, "/api/v1/repeaters/"+testKeyB+"/ping", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.request(t, http.MethodPost, "/api/v1/repeaters/ffff/ping", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListLogs(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, s.store.InsertActivityLog(ctx, &models.ActivityLog{
		Timestamp: time.Now().Unix(),
		Level:     models.LogLevelError,
		Source:    "monitor",
		Message:   "poll timeout",
	}))
	require.NoError(t, s.store.InsertActivityLog(ctx, &models.ActivityLog{
		Timestamp: time.Now().Unix(),
		Level:     models.LogLevelInfo,
		Source:    "monitor",
		Message:   "poll ok",
	}))

	t.Run("all", func(t *testing.T) {
		rec := s.request(t, http.MethodGet, "/api/v1/logs", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Logs []*models.ActivityLog `json:"logs"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp.Logs, 2)
	})

	t.Run("level filter", func(t *testing.T) {
		rec := s.request(t, http.MethodGet, "/api/v1/logs?level=error", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Logs []*models.ActivityLog `json:"logs"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Logs, 1)
		assert.Equal(t, "poll timeout", resp.Logs[0].Message)
	})

	t.Run("invalid level", func(t *testing.T) {
		rec := s.request(t, http.MethodGet, "/api/v1/logs?level=loud", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSettingsRequireAuth(t *testing.T) {
	s := newTestServer(t)

	rec := s.request(t, http.MethodGet, "/api/v1/settings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.request(t, http.MethodGet, "/api/v1/settings", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSettingsRoundTrip(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)

	rec := s.request(t, http.MethodGet, "/api/v1/settings", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var settings config.Settings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
	assert.Equal(t, 120, settings.PollIntervalSeconds)

	settings.PollIntervalSeconds = 300
	rec = s.request(t, http.MethodPut, "/api/v1/settings", token, settings)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.request(t, http.MethodGet, "/api/v1/settings", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
	assert.Equal(t, 300, settings.PollIntervalSeconds)
}

func TestSettingsUpdateRejectsInvalid(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)

	settings := config.DefaultSettings()
	settings.CompanionHost = "127.0.0.1"
	settings.PollIntervalSeconds = 5 // below the floor

	rec := s.request(t, http.MethodPut, "/api/v1/settings", token, settings)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
