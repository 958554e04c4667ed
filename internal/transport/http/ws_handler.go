package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"trivia-arena/internal/app"
	"trivia-arena/internal/domain"
)

// WSHandler upgrades HTTP requests to websockets and dispatches room
// commands to the game service.
type WSHandler struct {
	service  *app.GameService
	hub      *Hub
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService, hub *Hub, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		hub:     hub,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type createRoomPayload struct {
	QuizID   string `json:"quizId"`
	HostName string `json:"hostName"`
	Mode     string `json:"mode"`
}

type joinRoomPayload struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	ExternalID string `json:"externalId"`
}

type submitAnswerPayload struct {
	QuestionID string `json:"questionId"`
	OptionID   string `json:"optionId"`
	ElapsedMs  int64  `json:"elapsedMs"`
}

type joinedPayload struct {
	Room   app.RoomSnapshot `json:"room"`
	Player domain.Player    `json:"player"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS runs one connection. A connection is anonymous until its first
// room:create or room:join, which binds it to a player ID in the hub.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	c := newClient()
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range c.send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write error", "err", err)
				return
			}
		}
	}()

	var playerID, roomCode string
	isHost := false

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "room:create":
			var payload createRoomPayload
			if err := rawPayload(inbound.Payload, &payload); err != nil {
				c.enqueue(outboundMessage{Type: app.EventError, Payload: errorPayload{Message: "invalid payload"}})
				continue
			}
			result, err := h.service.CreateRoom(r.Context(), payload.QuizID, payload.HostName, domain.Mode(payload.Mode))
			if err != nil {
				c.enqueue(outboundMessage{Type: app.EventError, Payload: errorPayload{Message: err.Error()}})
				continue
			}
			playerID = result.Room.HostID
			roomCode = result.Room.Code
			isHost = true
			h.hub.Register(playerID, roomCode, c)
			c.enqueue(outboundMessage{Type: app.EventRoomCreated, Payload: result})

		case "room:join":
			var payload joinRoomPayload
			if err := rawPayload(inbound.Payload, &payload); err != nil {
				c.enqueue(outboundMessage{Type: app.EventError, Payload: errorPayload{Message: "invalid payload"}})
				continue
			}
			snapshot, player, err := h.service.JoinRoom(payload.Code, payload.Name, payload.ExternalID)
			if err != nil {
				c.enqueue(outboundMessage{Type: app.EventError, Payload: errorPayload{Message: err.Error()}})
				continue
			}
			playerID = player.ID
			roomCode = snapshot.Code
			h.hub.Register(playerID, roomCode, c)
			c.enqueue(outboundMessage{Type: app.EventPlayerJoined, Payload: joinedPayload{Room: snapshot, Player: player}})

		case "room:start":
			if roomCode == "" {
				c.enqueue(outboundMessage{Type: app.EventError, Payload: errorPayload{Message: "not in a room"}})
				continue
			}
			if _, err := h.service.StartRoom(r.Context(), roomCode, playerID); err != nil {
				c.enqueue(outboundMessage{Type: app.EventError, Payload: errorPayload{Message: err.Error()}})
			}

		case "answer:submit":
			var payload submitAnswerPayload
			if err := rawPayload(inbound.Payload, &payload); err != nil {
				c.enqueue(outboundMessage{Type: app.EventError, Payload: errorPayload{Message: "invalid payload"}})
				continue
			}
			if roomCode == "" {
				c.enqueue(outboundMessage{Type: app.EventError, Payload: errorPayload{Message: "not in a room"}})
				continue
			}
			answer, err := h.service.SubmitAnswer(roomCode, playerID, payload.QuestionID, payload.OptionID, payload.ElapsedMs)
			if err != nil {
				c.enqueue(outboundMessage{Type: app.EventError, Payload: errorPayload{Message: err.Error()}})
				continue
			}
			c.enqueue(outboundMessage{Type: app.EventAnswerAccepted, Payload: answer})

		case "room:advance":
			if err := h.service.AdvanceRoom(roomCode, playerID); err != nil {
				c.enqueue(outboundMessage{Type: app.EventError, Payload: errorPayload{Message: err.Error()}})
			}

		case "room:end":
			if err := h.service.EndRoom(roomCode, playerID); err != nil {
				c.enqueue(outboundMessage{Type: app.EventError, Payload: errorPayload{Message: err.Error()}})
			}

		case "room:leave":
			if roomCode != "" && !isHost {
				h.service.LeaveRoom(roomCode, playerID)
			}
			if playerID != "" {
				h.hub.Unregister(playerID, roomCode, c)
			}
			playerID, roomCode, isHost = "", "", false

		default:
			c.enqueue(outboundMessage{Type: app.EventError, Payload: errorPayload{Message: "unsupported message type"}})
		}
	}

	if playerID != "" {
		h.hub.Unregister(playerID, roomCode, c)
		if !isHost && roomCode != "" {
			h.service.LeaveRoom(roomCode, playerID)
		}
	}
	c.close()
	<-writerDone
}
