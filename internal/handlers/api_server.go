// internal/handlers/api_server.go
package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/AndrioCelos/unobot/internal/middleware"
)

// PingHandler answers health checks.
func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

// NewAPIServer assembles the HTTP surface: user management, the
// leaderboard and the WebSocket gateway, all behind request logging.
func NewAPIServer(logger *logrus.Logger, gs *GameServer, hub *RoomHub) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", PingHandler)

	if gs.StatsEnabled {
		mux.Handle("/user/create", CreateUserHandler(logger))
		mux.Handle("/user/login", LoginHandler(logger))
		mux.Handle("/leaderboard", LeaderboardHandler(logger))
	}

	mux.Handle("/ws", WSHandler(logger, hub, gs))

	return middleware.LogMiddleware(logger)(mux)
}
