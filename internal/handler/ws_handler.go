package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"

	"github.com/yourusername/quizroom-api/internal/service"
	"github.com/yourusername/quizroom-api/internal/websocket"
	"github.com/yourusername/quizroom-api/pkg/auth"
)

// WSHandler обрабатывает WebSocket соединения
type WSHandler struct {
	hub         *websocket.ShardedHub
	wsManager   *websocket.Manager
	roomService *service.RoomService
	jwtService  *auth.JWTService

	upgrader gorillaws.Upgrader
}

// NewWSHandler создает новый обработчик WebSocket
func NewWSHandler(
	hub *websocket.ShardedHub,
	wsManager *websocket.Manager,
	roomService *service.RoomService,
	jwtService *auth.JWTService,
	allowedOrigins []string,
) *WSHandler {
	handler := &WSHandler{
		hub:         hub,
		wsManager:   wsManager,
		roomService: roomService,
		jwtService:  jwtService,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:    4096,
			WriteBufferSize:   4096,
			EnableCompression: true,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")

				// Пустой Origin - не браузерный клиент (мобильное приложение, curl)
				if origin == "" {
					return true
				}
				for _, allowed := range allowedOrigins {
					if origin == allowed {
						return true
					}
				}
				log.Printf("[WSHandler] Отклонен неразрешенный origin: %s", origin)
				return false
			},
		},
	}

	// Обработчики сообщений регистрируются один раз при создании
	handler.registerMessageHandlers()
	return handler
}

// HandleConnection обрабатывает входящее WebSocket соединение.
// Аутентификация по короткоживущему тикету (?ticket=...), не по access-токену.
// GET /ws
func (h *WSHandler) HandleConnection(c *gin.Context) {
	ticket := c.Query("ticket")
	// Тикет не логируем - это данные аутентификации
	if ticket == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing authentication ticket parameter"})
		return
	}

	claims, err := h.jwtService.ParseWSTicket(ticket)
	if err != nil {
		log.Printf("[WSHandler] Недействительный тикет: %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired ticket"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WSHandler] Ошибка апгрейда соединения: %v", err)
		return
	}

	client := websocket.NewClient(conn, formatUserID(claims.UserID))
	h.hub.RegisterClient(client)

	if err := client.StartPumps(h.wsManager.HandleMessage); err != nil {
		log.Printf("[WSHandler] Ошибка запуска насосов клиента %s: %v", client.ConnectionID, err)
		conn.Close()
		return
	}

	log.Printf("[WSHandler] Соединение установлено: user %d, connection %s", claims.UserID, client.ConnectionID)
}

// registerMessageHandlers регистрирует обработчики входящих типов сообщений
func (h *WSHandler) registerMessageHandlers() {
	// Вход в комнату и подписка на ее события
	h.wsManager.RegisterHandler("user:join_room", func(client *websocket.Client, data json.RawMessage) {
		var joinEvent struct {
			RoomCode string `json:"room_code"`
		}
		if err := json.Unmarshal(data, &joinEvent); err != nil {
			h.wsManager.SendErrorToClient(client, "invalid_format", "Failed to parse user:join_room event")
			return
		}

		userID, err := client.GetUserIDUint()
		if err != nil {
			h.wsManager.SendErrorToClient(client, "internal_error", "Invalid user ID format")
			return
		}

		if _, err := h.roomService.JoinRoom(contextOf(client), joinEvent.RoomCode, userID); err != nil {
			log.Printf("[WSHandler] Ошибка входа user %d в комнату %s: %v", userID, joinEvent.RoomCode, err)
			h.wsManager.SendErrorToClient(client, "join_error", err.Error())
			return
		}

		if err := h.wsManager.SubscribeClientToRoom(client, joinEvent.RoomCode); err != nil {
			h.wsManager.SendErrorToClient(client, "subscribe_error", err.Error())
		}
	})

	// Выход из комнаты (отписка от событий, членство сохраняется)
	h.wsManager.RegisterHandler("user:leave_room", func(client *websocket.Client, data json.RawMessage) {
		h.wsManager.UnsubscribeClientFromRoom(client)
	})

	// Ответ на текущий вопрос комнаты
	h.wsManager.RegisterHandler("user:answer", func(client *websocket.Client, data json.RawMessage) {
		var answerEvent struct {
			QuestionID uint   `json:"question_id"`
			Answer     string `json:"answer"`
		}
		if err := json.Unmarshal(data, &answerEvent); err != nil {
			h.wsManager.SendErrorToClient(client, "invalid_format", "Failed to parse user:answer event")
			return
		}

		code := client.GetRoomCode()
		if code == "" {
			h.wsManager.SendErrorToClient(client, "not_in_room", "Join a room before answering")
			return
		}

		userID, err := client.GetUserIDUint()
		if err != nil {
			h.wsManager.SendErrorToClient(client, "internal_error", "Invalid user ID format")
			return
		}

		// Личный результат уйдет через room:answer_result; здесь только ошибки
		if _, err := h.roomService.SubmitAnswer(contextOf(client), code, userID, answerEvent.QuestionID, answerEvent.Answer); err != nil {
			log.Printf("[WSHandler] Ошибка ответа user %d в комнате %s: %v", userID, code, err)
			h.wsManager.SendErrorToClient(client, "answer_error", err.Error())
		}
	})

	// Проверка соединения
	h.wsManager.RegisterHandler("user:heartbeat", func(client *websocket.Client, data json.RawMessage) {
		if err := h.wsManager.SendEventToUser(client.UserID, "server:heartbeat", map[string]interface{}{
			"timestamp": time.Now().UnixNano() / int64(time.Millisecond),
		}); err != nil {
			log.Printf("[WSHandler] WARNING: не удалось отправить server:heartbeat пользователю %s: %v", client.UserID, err)
		}
	})
}

// formatUserID переводит числовой UserID в строковый ключ клиента
func formatUserID(userID uint) string {
	return strconv.FormatUint(uint64(userID), 10)
}

// contextOf возвращает контекст для операций, инициированных сообщением
// клиента. Соединение не несет собственного контекста: операции движка
// комнат должны пережить обрыв соединения инициатора.
func contextOf(client *websocket.Client) context.Context {
	return context.Background()
}
