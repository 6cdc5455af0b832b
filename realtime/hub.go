package realtime

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
)

// Типы сообщений, рассылаемых в комнату события.
const (
	MessageScheduleGenerated  = "SCHEDULE_GENERATED"
	MessageBracketGenerated   = "BRACKET_GENERATED"
	MessageMatchResult        = "MATCH_RESULT"
	MessageLeaderboardUpdated = "LEADERBOARD_UPDATED"
	MessageEventFinished      = "EVENT_FINISHED"
)

// Message - конверт, уходящий подписчикам комнаты события.
type Message struct {
	Type    string      `json:"type"`
	EventID int         `json:"event_id"`
	Payload interface{} `json:"payload,omitempty"`
}

// Hub держит комнаты подписчиков по событиям и рассылает обновления
// сеток/результатов. Подключения read-only: входящие сообщения игнорируются.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	rooms      map[string]map[*Client]bool
	mu         sync.RWMutex
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
		logger:     logger,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if _, ok := h.rooms[client.room]; !ok {
				h.rooms[client.room] = make(map[*Client]bool)
			}
			h.rooms[client.room][client] = true
			h.logger.Info("websocket client registered",
				slog.String("room", client.room),
				slog.Int("room_size", len(h.rooms[client.room])))
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.room]; ok {
				if _, registered := clients[client]; registered {
					client.closeSend()
					delete(clients, client)
					if len(clients) == 0 {
						delete(h.rooms, client.room)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastEvent отправляет сообщение всем подписчикам комнаты события.
// Медленные клиенты пропускаются, рассылка никого не блокирует.
func (h *Hub) BroadcastEvent(eventID int, messageType string, payload interface{}) {
	room := eventRoom(eventID)

	data, err := json.Marshal(Message{Type: messageType, EventID: eventID, Payload: payload})
	if err != nil {
		h.logger.Error("failed to marshal websocket message",
			slog.String("room", room), slog.Any("error", err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[room] {
		select {
		case client.send <- data:
		default:
			h.logger.Warn("websocket client send buffer full, dropping message",
				slog.String("room", room))
		}
	}
}

func eventRoom(eventID int) string {
	return "event:" + strconv.Itoa(eventID)
}
