// internal/handlers/room_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/AndrioCelos/unobot/internal/auth"
	"github.com/AndrioCelos/unobot/internal/middleware"
)

// RoomHub tracks which WebSocket clients sit in which room and implements
// Narrator on top of them.
type RoomHub struct {
	mu     sync.Mutex
	rooms  map[string]map[*wsClient]bool
	logger *logrus.Logger
}

type wsClient struct {
	conn *websocket.Conn
	name string
	room string
}

func NewRoomHub(logger *logrus.Logger) *RoomHub {
	return &RoomHub{
		rooms:  make(map[string]map[*wsClient]bool),
		logger: logger,
	}
}

func (h *RoomHub) add(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.rooms[c.room]
	if !ok {
		clients = make(map[*wsClient]bool)
		h.rooms[c.room] = clients
	}
	clients[c] = true
}

func (h *RoomHub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.rooms[c.room]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.rooms, c.room)
		}
	}
}

// serverMessage is the wire format of everything the server pushes.
type serverMessage struct {
	Type string `json:"type"`
	Room string `json:"room,omitempty"`
	Text string `json:"text,omitempty"`
}

// SendToRoom fans a line of game narration out to every client in the
// room. Callers may hold game locks, so writes happen asynchronously.
func (h *RoomHub) SendToRoom(room, text string) {
	h.mu.Lock()
	targets := make([]*wsClient, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	h.write(targets, serverMessage{Type: "room", Room: room, Text: text})
}

// SendToUser delivers a private line to one player's connections in the
// room.
func (h *RoomHub) SendToUser(room, name, text string) {
	h.mu.Lock()
	var targets []*wsClient
	for c := range h.rooms[room] {
		if c.name == name {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	h.write(targets, serverMessage{Type: "private", Room: room, Text: text})
}

func (h *RoomHub) write(targets []*wsClient, msg serverMessage) {
	if len(targets) == 0 {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.WithError(err).Error("failed to marshal server message")
		return
	}
	go func() {
		for _, c := range targets {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
				h.logger.WithFields(logrus.Fields{"player": c.name, "room": c.room}).
					WithError(err).Warn("failed to write to websocket")
			}
			cancel()
		}
	}()
}

// clientMessage is the wire format of everything clients send.
type clientMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// WSHandler upgrades a connection into a room session. Players identify
// with a session token, or with a bare guest name carrying no stats.
func WSHandler(logger *logrus.Logger, hub *RoomHub, gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room := r.URL.Query().Get("room")
		if room == "" {
			http.Error(w, "missing room parameter", http.StatusBadRequest)
			return
		}

		name, err := identify(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"uno"},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			logger.WithError(err).Warn("websocket accept failed")
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler exit")

		if c.Subprotocol() != "uno" {
			c.Close(websocket.StatusPolicyViolation, "client must use the 'uno' subprotocol")
			return
		}
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		client := &wsClient{conn: c, name: name, room: room}
		hub.add(client)
		defer hub.remove(client)

		readErr := readMessages(r.Context(), c, client, hub, gs, logger)
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, readErr)
	}
}

// identify resolves the connecting player's name from a session token or a
// guest name.
func identify(r *http.Request) (string, error) {
	if token := r.URL.Query().Get("token"); token != "" {
		return auth.AuthenticateJWT(token)
	}
	if name := strings.TrimSpace(r.URL.Query().Get("name")); name != "" {
		return name, nil
	}
	return "", errMissingIdentity
}

var errMissingIdentity = &identityError{}

type identityError struct{}

func (*identityError) Error() string { return "provide a session token or a guest name" }

func readMessages(ctx context.Context, c *websocket.Conn, client *wsClient, hub *RoomHub, gs *GameServer, logger *logrus.Logger) error {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				return nil
			}
			return err
		}
		if msgType != websocket.MessageText {
			continue
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			hub.write([]*wsClient{client}, serverMessage{Type: "error", Text: "invalid JSON"})
			continue
		}

		switch msg.Type {
		case "command":
			reply, err := gs.HandleCommand(client.room, client.name, msg.Text)
			if err != nil {
				hub.write([]*wsClient{client}, serverMessage{Type: "error", Room: client.room, Text: err.Error()})
			} else if reply != "" {
				hub.write([]*wsClient{client}, serverMessage{Type: "private", Room: client.room, Text: reply})
			}
		case "chat":
			hub.SendToRoom(client.room, client.name+": "+msg.Text)
		case "ping":
			hub.write([]*wsClient{client}, serverMessage{Type: "pong"})
		default:
			logger.WithField("type", msg.Type).Debug("unknown client message type")
			hub.write([]*wsClient{client}, serverMessage{Type: "error", Text: "unknown message type"})
		}
	}
}
