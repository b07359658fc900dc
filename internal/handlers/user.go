// internal/handlers/user.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/AndrioCelos/unobot/internal/models"
	"github.com/AndrioCelos/unobot/internal/stats"
)

type credentials struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// CreateUserHandler registers a named player so their stats persist across
// sessions.
func CreateUserHandler(logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var creds credentials
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		if creds.Name == "" || creds.Password == "" {
			http.Error(w, "name and password are required", http.StatusBadRequest)
			return
		}

		user := &models.User{Name: creds.Name, Password: creds.Password}
		if err := stats.CreateUser(r.Context(), user); err != nil {
			logger.WithError(err).WithField("name", creds.Name).Warn("user creation failed")
			http.Error(w, "could not create user", http.StatusConflict)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": user.ID.String(), "name": user.Name})
	}
}

// LoginHandler exchanges credentials for a session token.
func LoginHandler(logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var creds credentials
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}

		token, err := stats.AuthenticateUser(r.Context(), creds.Name, creds.Password)
		if err != nil {
			logger.WithField("name", creds.Name).Info("login rejected")
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"token": token})
	}
}

// LeaderboardHandler serves the lifetime points table.
func LeaderboardHandler(logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 10
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}
		entries, err := stats.Leaderboard(r.Context(), limit)
		if err != nil {
			logger.WithError(err).Error("leaderboard query failed")
			http.Error(w, "leaderboard unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entries)
	}
}
