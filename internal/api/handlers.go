package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/mattwynharris/Meshcore-Dashboard/internal/config"
	"github.com/mattwynharris/Meshcore-Dashboard/internal/models"
	"github.com/mattwynharris/Meshcore-Dashboard/internal/monitor"
	"github.com/mattwynharris/Meshcore-Dashboard/internal/storage"
)

const (
	defaultHistoryHours = 24
	defaultLogLimit     = 500
	maxLogLimit         = 5000
)

// ========== Auth handlers ==========

// HandleLogin handles operator login
func (s *RESTServer) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Username != s.config.Admin.Username ||
		!s.auth.VerifyPassword(req.Password, s.config.Admin.PasswordHash) {
		s.respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	accessToken, refreshToken, err := s.auth.GenerateTokenPair(req.Username)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to generate tokens")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"expires_in":    int(s.config.JWT.AccessTokenTTL.Seconds()),
		"token_type":    "Bearer",
	})
}

// HandleRefresh handles token refresh
func (s *RESTServer) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	accessToken, refreshToken, err := s.auth.RefreshToken(req.RefreshToken)
	if err != nil {
		s.respondError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"expires_in":    int(s.config.JWT.AccessTokenTTL.Seconds()),
		"token_type":    "Bearer",
	})
}

// ========== Repeater handlers ==========

// HandleListRepeaters returns the current state of every configured
// repeater. Liveness is computed at read time, so a repeater that went
// silent shows offline here even between poll cycles.
func (s *RESTServer) HandleListRepeaters(w http.ResponseWriter, r *http.Request) {
	snapshot := s.table.Snapshot()

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"taken_at":  snapshot.TakenAt,
		"repeaters": snapshot.Repeaters,
	})
}

// HandleGetRepeater returns one repeater's current state
func (s *RESTServer) HandleGetRepeater(w http.ResponseWriter, r *http.Request) {
	repeater, ok := s.resolveRepeater(chi.URLParam(r, "pubkey"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "unknown repeater")
		return
	}

	state, ok := s.table.Get(repeater.PublicKey)
	if !ok {
		s.respondError(w, http.StatusNotFound, "unknown repeater")
		return
	}

	s.respondJSON(w, http.StatusOK, state)
}

// HandleGetHistory returns the telemetry history for one repeater over
// the requested window (default 24h)
func (s *RESTServer) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	repeater, ok := s.resolveRepeater(chi.URLParam(r, "pubkey"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "unknown repeater")
		return
	}

	hours := defaultHistoryHours
	if h := r.URL.Query().Get("hours"); h != "" {
		parsed, err := strconv.Atoi(h)
		if err != nil || parsed < 1 {
			s.respondError(w, http.StatusBadRequest, "invalid hours parameter")
			return
		}
		hours = parsed
	}

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	samples, err := s.store.ListTelemetry(r.Context(), repeater.PublicKey, since)
	if err != nil {
		log.Error().Err(err).Str("pubkey", repeater.PublicKey).Msg("Failed to list telemetry")
		s.respondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"pubkey":  repeater.PublicKey,
		"name":    repeater.Name,
		"hours":   hours,
		"samples": samples,
	})
}

// HandlePing triggers an on-demand reachability probe. On an active
// cooldown the probe is not performed and 429 is returned with the
// remaining wait.
func (s *RESTServer) HandlePing(w http.ResponseWriter, r *http.Request) {
	repeater, ok := s.resolveRepeater(chi.URLParam(r, "pubkey"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "unknown repeater")
		return
	}

	result, cooldown, err := s.pings.Ping(r.Context(), repeater.PublicKey)
	if err != nil {
		if errors.Is(err, monitor.ErrUnknownRepeater) {
			s.respondError(w, http.StatusNotFound, "unknown repeater")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if cooldown != nil {
		s.respondJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"error":    "ping cooldown active",
			"cooldown": cooldown,
		})
		return
	}

	s.respondJSON(w, http.StatusOK, result)
}

// ========== Activity log handlers ==========

// HandleListLogs lists activity log entries, newest first
func (s *RESTServer) HandleListLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	hours := defaultHistoryHours
	if h := q.Get("hours"); h != "" {
		parsed, err := strconv.Atoi(h)
		if err != nil || parsed < 1 {
			s.respondError(w, http.StatusBadRequest, "invalid hours parameter")
			return
		}
		hours = parsed
	}

	limit := defaultLogLimit
	if l := q.Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			s.respondError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		limit = parsed
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}

	filters := storage.ActivityLogFilters{
		Since:  time.Now().Add(-time.Duration(hours) * time.Hour),
		Search: q.Get("search"),
	}

	if lvl := q.Get("level"); lvl != "" {
		level := models.LogLevel(strings.ToUpper(lvl))
		switch level {
		case models.LogLevelDebug, models.LogLevelInfo, models.LogLevelWarn, models.LogLevelError:
			filters.Level = &level
		default:
			s.respondError(w, http.StatusBadRequest, "invalid level parameter")
			return
		}
	}

	entries, err := s.store.ListActivityLogs(r.Context(), filters, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list activity logs")
		s.respondError(w, http.StatusInternalServerError, "failed to load logs")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"logs":  entries,
		"total": len(entries),
	})
}

// ========== Settings handlers ==========

// HandleGetSettings returns the current runtime settings
func (s *RESTServer) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.settings.Settings())
}

// HandleUpdateSettings replaces the runtime settings. The poll
// scheduler picks the new values up at its next cycle boundary.
func (s *RESTServer) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req config.Settings

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.settings.Update(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, s.settings.Settings())
}

// ========== System handlers ==========

// HandleHealth health check handler
func (s *RESTServer) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now(),
	})
}

// HandleRoot root handler
func (s *RESTServer) HandleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": s.config.Server.Name,
		"version": s.config.Server.Version,
		"health":  "/api/v1/health",
	})
}

// respondJSON responds with JSON
func (s *RESTServer) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

// respondError responds with error
func (s *RESTServer) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// resolveRepeater matches a pubkey or pubkey prefix from the URL
// against the configured repeater list
func (s *RESTServer) resolveRepeater(pubkey string) (config.RepeaterSettings, bool) {
	pubkey = strings.ToLower(pubkey)
	for _, r := range s.settings.Settings().Repeaters {
		configured := strings.ToLower(r.PublicKey)
		if strings.HasPrefix(configured, pubkey) || strings.HasPrefix(pubkey, configured) {
			return r, true
		}
	}
	return config.RepeaterSettings{}, false
}
