package websocket

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Время ожидания записи сообщения
	writeWait = 10 * time.Second

	// Время ожидания pong-сообщения от клиента
	pongWait = 60 * time.Second

	// Интервал отправки ping-сообщений (должен быть меньше pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер входящего сообщения
	maxMessageSize = 4096

	// Размер буфера исходящих сообщений клиента
	sendBufferSize = 64

	// Максимум предупреждений о переполнении буфера до отключения
	maxClientBufferWarnings = 3
)

// Client представляет одно WebSocket-соединение пользователя.
type Client struct {
	// UserID пользователя (строковое представление для карты userMap)
	UserID string

	// ConnectionID - уникальный идентификатор этого соединения
	ConnectionID string

	conn *websocket.Conn

	// Буферизованный канал исходящих сообщений
	send chan []byte

	// Защита от двойного закрытия канала send
	sendClosed atomic.Bool

	// Шард, которому принадлежит клиент
	shard *Shard

	// Подписки на типы событий
	subscriptions sync.Map

	// Код комнаты, на которую подписан клиент ("" - нет подписки)
	roomMu      sync.RWMutex
	currentRoom string

	// Счетчик предупреждений о переполнении буфера
	bufferWarnings atomic.Int32

	// Время последней активности (для очистки неактивных соединений)
	lastActivity atomic.Int64
}

// NewClient создает клиента для установленного соединения.
func NewClient(conn *websocket.Conn, userID string) *Client {
	c := &Client{
		UserID:       userID,
		ConnectionID: uuid.New().String(),
		conn:         conn,
		send:         make(chan []byte, sendBufferSize),
	}
	c.touch()
	return c
}

// touch обновляет отметку последней активности.
func (c *Client) touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

// LastActivity возвращает время последней активности клиента.
func (c *Client) LastActivity() time.Time {
	return time.Unix(0, c.lastActivity.Load())
}

// CloseSend безопасно закрывает канал отправки (ровно один раз).
func (c *Client) CloseSend() {
	if c.sendClosed.CompareAndSwap(false, true) {
		close(c.send)
	}
}

// Send кладет сообщение в буфер клиента.
// Возвращает false, если буфер переполнен или канал закрыт.
func (c *Client) Send(message []byte) bool {
	if c.sendClosed.Load() {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		warnings := c.bufferWarnings.Add(1)
		log.Printf("[WebSocket] Буфер клиента %s (user %s) переполнен, предупреждение %d/%d",
			c.ConnectionID, c.UserID, warnings, maxClientBufferWarnings)
		if warnings >= maxClientBufferWarnings {
			log.Printf("[WebSocket] Клиент %s отключается из-за переполнения буфера", c.ConnectionID)
			c.shard.unregister <- c
		}
		return false
	}
}

// Subscribe подписывает клиента на тип события.
func (c *Client) Subscribe(eventType string) {
	c.subscriptions.Store(eventType, true)
}

// Unsubscribe снимает подписку на тип события.
func (c *Client) Unsubscribe(eventType string) {
	c.subscriptions.Delete(eventType)
}

// IsSubscribed проверяет подписку на тип события.
func (c *Client) IsSubscribed(eventType string) bool {
	_, ok := c.subscriptions.Load(eventType)
	return ok
}

// SubscribeToRoomEvents подписывает клиента на все события игровой комнаты.
func (c *Client) SubscribeToRoomEvents() {
	for _, eventType := range []string{
		ROOM_UPDATED,
		QUESTION_OPENED,
		QUESTION_CLOSED,
		LEADERBOARD_UPDATED,
		ROOM_FINISHED,
		ROOM_CLOSED,
		ANSWER_RESULT,
	} {
		c.Subscribe(eventType)
	}
}

// SetRoomCode запоминает комнату, на которую подписан клиент.
func (c *Client) SetRoomCode(code string) {
	c.roomMu.Lock()
	c.currentRoom = code
	c.roomMu.Unlock()
}

// GetRoomCode возвращает код текущей комнаты клиента ("" - нет подписки).
func (c *Client) GetRoomCode() string {
	c.roomMu.RLock()
	defer c.roomMu.RUnlock()
	return c.currentRoom
}

// ClearRoomCode сбрасывает подписку клиента на комнату.
func (c *Client) ClearRoomCode() {
	c.SetRoomCode("")
}

// GetUserIDUint возвращает UserID клиента как uint.
func (c *Client) GetUserIDUint() (uint, error) {
	var id uint
	if _, err := fmt.Sscanf(c.UserID, "%d", &id); err != nil {
		return 0, fmt.Errorf("invalid user ID %q: %w", c.UserID, err)
	}
	return id, nil
}

// StartPumps регистрирует клиента в шарде и запускает насосы чтения/записи.
// Регистрация синхронная: насосы стартуют только после подтверждения шарда,
// иначе первое входящее сообщение может обогнать регистрацию.
func (c *Client) StartPumps(messageHandler func(*Client, []byte)) error {
	done := make(chan struct{})
	select {
	case c.shard.registerSync <- registration{client: c, done: done}:
	case <-time.After(5 * time.Second):
		return fmt.Errorf("shard %d: registration timed out", c.shard.id)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		return fmt.Errorf("shard %d: registration not confirmed", c.shard.id)
	}

	go c.writePump()
	go c.readPump(messageHandler)
	return nil
}

// readPump читает входящие сообщения и передает их обработчику.
func (c *Client) readPump(messageHandler func(*Client, []byte)) {
	defer func() {
		c.shard.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.touch()
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WebSocket] Неожиданное закрытие соединения %s: %v", c.ConnectionID, err)
			}
			break
		}
		c.touch()
		c.safeHandleMessage(messageHandler, message)
	}
}

// safeHandleMessage вызывает обработчик с перехватом паники,
// чтобы одно плохое сообщение не уронило весь насос чтения.
func (c *Client) safeHandleMessage(messageHandler func(*Client, []byte), message []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[WebSocket] Паника в обработчике сообщения от %s: %v", c.ConnectionID, r)
		}
	}()
	messageHandler(c, message)
}

// writePump пишет сообщения из буфера в соединение и шлет пинги.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Хаб закрыл канал
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// messageTypeFromBytes извлекает поле "type" из сырого JSON-сообщения.
func messageTypeFromBytes(message []byte) string {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(message, &envelope); err != nil {
		return ""
	}
	return envelope.Type
}
