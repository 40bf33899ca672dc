package websocket

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
)

// Event представляет сообщение, отправляемое клиентам.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// MessageHandler - обработчик входящего сообщения конкретного типа.
type MessageHandler func(client *Client, data json.RawMessage)

// Manager маршрутизирует входящие сообщения по зарегистрированным
// обработчикам и предоставляет высокоуровневые операции отправки.
type Manager struct {
	hub HubInterface

	mu       sync.RWMutex
	handlers map[string]MessageHandler
}

// NewManager создает менеджер поверх хаба.
func NewManager(hub HubInterface) *Manager {
	return &Manager{
		hub:      hub,
		handlers: make(map[string]MessageHandler),
	}
}

// RegisterHandler регистрирует обработчик для типа сообщения.
func (m *Manager) RegisterHandler(messageType string, handler MessageHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[messageType] = handler
	log.Printf("[WebSocketManager] Зарегистрирован обработчик для типа: %s", messageType)
}

// HandleMessage разбирает входящее сообщение и вызывает обработчик его типа.
func (m *Manager) HandleMessage(client *Client, message []byte) {
	var envelope struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(message, &envelope); err != nil {
		log.Printf("[WebSocketManager] Некорректное сообщение от %s: %v", client.ConnectionID, err)
		m.SendErrorToClient(client, "invalid_message", "Некорректный формат сообщения")
		return
	}
	if envelope.Type == "" {
		m.SendErrorToClient(client, "invalid_message", "Отсутствует тип сообщения")
		return
	}

	m.mu.RLock()
	handler, ok := m.handlers[envelope.Type]
	m.mu.RUnlock()
	if !ok {
		log.Printf("[WebSocketManager] Нет обработчика для типа %q от %s", envelope.Type, client.ConnectionID)
		m.SendErrorToClient(client, "unknown_type", fmt.Sprintf("Неизвестный тип сообщения: %s", envelope.Type))
		return
	}

	handler(client, envelope.Data)
}

// SendErrorToClient отправляет клиенту событие server:error.
func (m *Manager) SendErrorToClient(client *Client, code string, message string) {
	event := Event{
		Type: "server:error",
		Data: map[string]string{
			"code":    code,
			"message": message,
		},
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	client.Send(data)
}

// BroadcastEvent отправляет событие всем подключенным клиентам.
func (m *Manager) BroadcastEvent(eventType string, data interface{}) error {
	return m.hub.BroadcastJSON(Event{Type: eventType, Data: data})
}

// SendEventToUser отправляет событие конкретному пользователю.
func (m *Manager) SendEventToUser(userID string, eventType string, data interface{}) error {
	return m.hub.SendJSONToUser(userID, Event{Type: eventType, Data: data})
}

// BroadcastEventToRoom отправляет готовое событие всем подписчикам комнаты.
// Событие сериализуется как есть: вызывающая сторона сама формирует конверт.
func (m *Manager) BroadcastEventToRoom(roomCode string, event interface{}) error {
	sharded, ok := m.hub.(*ShardedHub)
	if !ok {
		return fmt.Errorf("hub does not support room broadcasts")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal room event: %w", err)
	}

	sent := sharded.BroadcastToRoom(roomCode, data)
	log.Printf("[WebSocketManager] Событие доставлено %d подписчикам комнаты %s", sent, roomCode)
	return nil
}

// SubscribeClientToRoom подписывает клиента на события комнаты.
func (m *Manager) SubscribeClientToRoom(client *Client, roomCode string) error {
	sharded, ok := m.hub.(*ShardedHub)
	if !ok {
		return fmt.Errorf("hub does not support room subscriptions")
	}
	sharded.SubscribeToRoom(client, roomCode)
	return nil
}

// UnsubscribeClientFromRoom снимает подписку клиента на его комнату.
func (m *Manager) UnsubscribeClientFromRoom(client *Client) {
	if sharded, ok := m.hub.(*ShardedHub); ok {
		sharded.UnsubscribeFromRoom(client)
	}
}

// GetRoomSubscribers возвращает UserID подписчиков комнаты.
func (m *Manager) GetRoomSubscribers(roomCode string) ([]uint, error) {
	return m.hub.GetRoomSubscribers(roomCode)
}

// GetMetrics возвращает метрики хаба.
func (m *Manager) GetMetrics() map[string]interface{} {
	return m.hub.GetMetrics()
}

// ClientCount возвращает число подключенных клиентов.
func (m *Manager) ClientCount() int {
	return m.hub.ClientCount()
}
