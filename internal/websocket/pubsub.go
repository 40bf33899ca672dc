package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Каналы pub/sub для межузлового обмена
const (
	channelBroadcast = "ws:broadcast"
	channelRoom      = "ws:room"
	channelDirect    = "ws:direct"
)

// PubSubProvider абстрагирует транспорт межузловых сообщений.
type PubSubProvider interface {
	// Publish публикует сообщение в канал
	Publish(channel string, message []byte) error

	// Subscribe подписывается на канал, сообщения приходят в handler
	Subscribe(channel string, handler func(message []byte)) error

	// Close освобождает ресурсы провайдера
	Close() error
}

// ClusterMessage - конверт межузлового сообщения.
type ClusterMessage struct {
	// NodeID узла-отправителя (свои сообщения игнорируются)
	NodeID string `json:"node_id"`

	// RoomCode заполняется для рассылок по комнате
	RoomCode string `json:"room_code,omitempty"`

	// UserID заполняется для личных сообщений
	UserID string `json:"user_id,omitempty"`

	// Payload - исходное сообщение для клиентов
	Payload json.RawMessage `json:"payload"`
}

// NoOpPubSub - заглушка для одноузловой конфигурации.
type NoOpPubSub struct{}

func NewNoOpPubSub() *NoOpPubSub { return &NoOpPubSub{} }

func (n *NoOpPubSub) Publish(channel string, message []byte) error { return nil }

func (n *NoOpPubSub) Subscribe(channel string, handler func(message []byte)) error { return nil }

func (n *NoOpPubSub) Close() error { return nil }

// RedisPubSub - провайдер на основе Redis Pub/Sub.
type RedisPubSub struct {
	client redis.UniversalClient

	mu   sync.Mutex
	subs []*redis.PubSub
}

// NewRedisPubSub создает провайдер поверх готового клиента Redis.
func NewRedisPubSub(client redis.UniversalClient) *RedisPubSub {
	return &RedisPubSub{client: client}
}

func (r *RedisPubSub) Publish(channel string, message []byte) error {
	if err := r.client.Publish(context.Background(), channel, message).Err(); err != nil {
		return fmt.Errorf("redis publish to %s: %w", channel, err)
	}
	return nil
}

func (r *RedisPubSub) Subscribe(channel string, handler func(message []byte)) error {
	sub := r.client.Subscribe(context.Background(), channel)

	// Дожидаемся подтверждения подписки, иначе можно потерять первые сообщения
	if _, err := sub.Receive(context.Background()); err != nil {
		sub.Close()
		return fmt.Errorf("redis subscribe to %s: %w", channel, err)
	}

	r.mu.Lock()
	r.subs = append(r.subs, sub)
	r.mu.Unlock()

	go func() {
		for msg := range sub.Channel() {
			handler([]byte(msg.Payload))
		}
	}()
	return nil
}

func (r *RedisPubSub) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sub := range r.subs {
		sub.Close()
	}
	r.subs = nil
	return nil
}

// ClusterHub связывает локальный ShardedHub с другими узлами через pub/sub.
// Свои собственные публикации отфильтровываются по NodeID, кроме канала
// общей рассылки: там сообщение доставляется локально именно через подписку,
// чтобы порядок доставки был одинаковым на всех узлах.
type ClusterHub struct {
	nodeID string
	hub    *ShardedHub
	pubsub PubSubProvider

	enabled bool
}

// NewClusterHub создает кластерный хаб. С NoOpPubSub кластер отключен.
func NewClusterHub(hub *ShardedHub, pubsub PubSubProvider) *ClusterHub {
	_, noop := pubsub.(*NoOpPubSub)
	return &ClusterHub{
		nodeID:  uuid.New().String(),
		hub:     hub,
		pubsub:  pubsub,
		enabled: !noop,
	}
}

// Enabled сообщает, участвует ли узел в кластерном обмене.
func (ch *ClusterHub) Enabled() bool {
	return ch.enabled
}

// Start подписывается на кластерные каналы.
func (ch *ClusterHub) Start() {
	if !ch.enabled {
		return
	}

	if err := ch.pubsub.Subscribe(channelBroadcast, ch.handleBroadcast); err != nil {
		log.Printf("[ClusterHub] Ошибка подписки на %s: %v", channelBroadcast, err)
	}
	if err := ch.pubsub.Subscribe(channelRoom, ch.handleRoomBroadcast); err != nil {
		log.Printf("[ClusterHub] Ошибка подписки на %s: %v", channelRoom, err)
	}
	if err := ch.pubsub.Subscribe(channelDirect, ch.handleDirect); err != nil {
		log.Printf("[ClusterHub] Ошибка подписки на %s: %v", channelDirect, err)
	}
	log.Printf("[ClusterHub] Узел %s подключен к кластеру", ch.nodeID)
}

// Stop закрывает провайдер pub/sub.
func (ch *ClusterHub) Stop() {
	if err := ch.pubsub.Close(); err != nil {
		log.Printf("[ClusterHub] Ошибка закрытия pub/sub: %v", err)
	}
}

// PublishBroadcast публикует общую рассылку в кластер.
func (ch *ClusterHub) PublishBroadcast(message []byte) error {
	return ch.publish(channelBroadcast, ClusterMessage{
		NodeID:  ch.nodeID,
		Payload: message,
	})
}

// PublishRoomBroadcast публикует рассылку по комнате для других узлов.
func (ch *ClusterHub) PublishRoomBroadcast(roomCode string, message []byte) error {
	return ch.publish(channelRoom, ClusterMessage{
		NodeID:   ch.nodeID,
		RoomCode: roomCode,
		Payload:  message,
	})
}

// PublishDirect публикует личное сообщение для пользователя на другом узле.
func (ch *ClusterHub) PublishDirect(userID string, message []byte) error {
	return ch.publish(channelDirect, ClusterMessage{
		NodeID:  ch.nodeID,
		UserID:  userID,
		Payload: message,
	})
}

func (ch *ClusterHub) publish(channel string, msg ClusterMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal cluster message: %w", err)
	}
	return ch.pubsub.Publish(channel, data)
}

func (ch *ClusterHub) handleBroadcast(message []byte) {
	msg, err := ch.decode(message)
	if err != nil {
		return
	}
	// Общая рассылка доставляется локально через подписку, включая свой узел
	ch.hub.broadcastLocal(msg.Payload)
}

func (ch *ClusterHub) handleRoomBroadcast(message []byte) {
	msg, err := ch.decode(message)
	if err != nil || msg.NodeID == ch.nodeID {
		return
	}
	ch.hub.broadcastToRoomLocal(msg.RoomCode, msg.Payload)
}

func (ch *ClusterHub) handleDirect(message []byte) {
	msg, err := ch.decode(message)
	if err != nil || msg.NodeID == ch.nodeID {
		return
	}
	for _, shard := range ch.hub.shards {
		if shard.SendToUser(msg.UserID, msg.Payload) {
			return
		}
	}
}

func (ch *ClusterHub) decode(message []byte) (*ClusterMessage, error) {
	var msg ClusterMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Printf("[ClusterHub] Некорректное кластерное сообщение: %v", err)
		return nil, err
	}
	return &msg, nil
}
