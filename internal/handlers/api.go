// internal/handlers/api.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/jason-s-yu/catchphrase/internal/database"
	"github.com/jason-s-yu/catchphrase/internal/game"
	"github.com/jason-s-yu/catchphrase/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// HistoryStore reads finished games. *database.Store satisfies it.
type HistoryStore interface {
	RecentGames(ctx context.Context, gid string, limit int) ([]models.GameRecord, error)
	GetGame(ctx context.Context, id uuid.UUID) (models.GameRecord, error)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// HealthHandler reports liveness.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// ListGroupsHandler lists live groups as {gid, count, in_game}.
func ListGroupsHandler(reg *game.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, reg.GroupSummaries())
	}
}

// ListHistoryHandler returns recent games, optionally for one group.
func ListHistoryHandler(logger *logrus.Logger, store HistoryStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			http.Error(w, "history is not enabled", http.StatusServiceUnavailable)
			return
		}
		limit := defaultHistoryLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = min(n, maxHistoryLimit)
		}

		recs, err := store.RecentGames(r.Context(), r.URL.Query().Get("group"), limit)
		if err != nil {
			logger.Errorf("list history: %v", err)
			http.Error(w, "failed to load history", http.StatusInternalServerError)
			return
		}
		if recs == nil {
			recs = []models.GameRecord{}
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

// GetHistoryHandler returns one game by id.
func GetHistoryHandler(logger *logrus.Logger, store HistoryStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			http.Error(w, "history is not enabled", http.StatusServiceUnavailable)
			return
		}
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			http.Error(w, "invalid game id", http.StatusBadRequest)
			return
		}

		rec, err := store.GetGame(r.Context(), id)
		if errors.Is(err, database.ErrGameNotFound) {
			http.Error(w, "game not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.Errorf("get game %s: %v", id, err)
			http.Error(w, "failed to load game", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}
