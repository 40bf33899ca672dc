package websocket

import (
	"log"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// Размер буфера канала широковещательной рассылки шарда
	shardBroadcastBuffer = 256

	// Интервал очистки неактивных соединений
	cleanupInterval = 5 * time.Minute

	// Соединение без активности дольше этого срока считается мертвым
	staleConnectionAge = 10 * time.Minute
)

// registration - запрос на синхронную регистрацию клиента в шарде.
type registration struct {
	client *Client
	done   chan struct{}
}

// Shard обслуживает часть клиентов хаба и владеет их жизненным циклом.
// Все изменения карт клиентов проходят через цикл Run - это единственный
// писатель, поэтому конкурентные Register/Unregister не гонятся между собой.
type Shard struct {
	id  int
	hub *ShardedHub

	// ConnectionID -> *Client
	clients sync.Map

	// UserID -> *Client (последнее соединение пользователя)
	userMap sync.Map

	// roomCode -> *sync.Map (ConnectionID -> *Client)
	roomSubscriptions sync.Map

	registerSync chan registration
	unregister   chan *Client
	broadcast    chan []byte

	clientCount   atomic.Int64
	messagesSent  atomic.Int64
	messageErrors atomic.Int64

	done chan struct{}
}

// NewShard создает шард с заданным идентификатором.
func NewShard(id int, hub *ShardedHub) *Shard {
	return &Shard{
		id:           id,
		hub:          hub,
		registerSync: make(chan registration),
		unregister:   make(chan *Client, 64),
		broadcast:    make(chan []byte, shardBroadcastBuffer),
		done:         make(chan struct{}),
	}
}

// Run запускает основной цикл шарда. Блокирует до вызова Close.
func (s *Shard) Run() {
	cleanupTicker := time.NewTicker(cleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case reg := <-s.registerSync:
			s.registerClient(reg.client)
			close(reg.done)

		case client := <-s.unregister:
			s.unregisterClient(client)

		case message := <-s.broadcast:
			s.broadcastLocal(message)

		case <-cleanupTicker.C:
			s.cleanupStaleClients()

		case <-s.done:
			s.closeAllClients()
			return
		}
	}
}

// Close останавливает цикл шарда и отключает всех клиентов.
func (s *Shard) Close() {
	close(s.done)
}

func (s *Shard) registerClient(client *Client) {
	client.shard = s

	// Пользователь мог переподключиться: вытесняем старое соединение
	if prev, ok := s.userMap.Load(client.UserID); ok {
		prevClient := prev.(*Client)
		if prevClient.ConnectionID != client.ConnectionID {
			log.Printf("[Shard %d] Пользователь %s переподключился, закрываем старое соединение %s",
				s.id, client.UserID, prevClient.ConnectionID)
			s.dropClient(prevClient)
		}
	}

	s.clients.Store(client.ConnectionID, client)
	s.userMap.Store(client.UserID, client)
	s.clientCount.Add(1)
	log.Printf("[Shard %d] Клиент %s (user %s) зарегистрирован, всего: %d",
		s.id, client.ConnectionID, client.UserID, s.clientCount.Load())
}

func (s *Shard) unregisterClient(client *Client) {
	if _, ok := s.clients.Load(client.ConnectionID); !ok {
		return
	}
	s.dropClient(client)
	log.Printf("[Shard %d] Клиент %s (user %s) отключен, всего: %d",
		s.id, client.ConnectionID, client.UserID, s.clientCount.Load())
}

// dropClient удаляет клиента из всех карт и закрывает его канал отправки.
func (s *Shard) dropClient(client *Client) {
	s.clients.Delete(client.ConnectionID)

	// Удаляем из userMap только если там лежит именно это соединение
	if cur, ok := s.userMap.Load(client.UserID); ok && cur.(*Client).ConnectionID == client.ConnectionID {
		s.userMap.Delete(client.UserID)
	}

	if code := client.GetRoomCode(); code != "" {
		s.removeRoomSubscription(client, code)
	}

	client.CloseSend()
	s.clientCount.Add(-1)
}

// SubscribeToRoom подписывает клиента на события комнаты.
// Клиент может быть подписан только на одну комнату за раз.
func (s *Shard) SubscribeToRoom(client *Client, roomCode string) {
	if prev := client.GetRoomCode(); prev != "" && prev != roomCode {
		s.removeRoomSubscription(client, prev)
	}

	subs, _ := s.roomSubscriptions.LoadOrStore(roomCode, &sync.Map{})
	subs.(*sync.Map).Store(client.ConnectionID, client)
	client.SetRoomCode(roomCode)
	client.SubscribeToRoomEvents()

	log.Printf("[Shard %d] Клиент %s (user %s) подписан на комнату %s",
		s.id, client.ConnectionID, client.UserID, roomCode)
}

// UnsubscribeFromRoom снимает подписку клиента на его текущую комнату.
func (s *Shard) UnsubscribeFromRoom(client *Client) {
	code := client.GetRoomCode()
	if code == "" {
		return
	}
	s.removeRoomSubscription(client, code)
	log.Printf("[Shard %d] Клиент %s отписан от комнаты %s", s.id, client.ConnectionID, code)
}

func (s *Shard) removeRoomSubscription(client *Client, roomCode string) {
	if subs, ok := s.roomSubscriptions.Load(roomCode); ok {
		subs.(*sync.Map).Delete(client.ConnectionID)
	}
	client.ClearRoomCode()
}

// BroadcastToRoom отправляет сообщение всем подписчикам комнаты в этом шарде.
// Возвращает число клиентов, получивших сообщение.
func (s *Shard) BroadcastToRoom(roomCode string, message []byte) int {
	subs, ok := s.roomSubscriptions.Load(roomCode)
	if !ok {
		return 0
	}

	sent := 0
	subs.(*sync.Map).Range(func(_, value interface{}) bool {
		client := value.(*Client)
		if client.Send(message) {
			sent++
			s.messagesSent.Add(1)
		} else {
			s.messageErrors.Add(1)
		}
		return true
	})
	return sent
}

// getRoomSubscribers возвращает UserID подписчиков комнаты в этом шарде.
func (s *Shard) getRoomSubscribers(roomCode string) []uint {
	subs, ok := s.roomSubscriptions.Load(roomCode)
	if !ok {
		return nil
	}

	var userIDs []uint
	subs.(*sync.Map).Range(func(_, value interface{}) bool {
		client := value.(*Client)
		if id, err := client.GetUserIDUint(); err == nil {
			userIDs = append(userIDs, id)
		}
		return true
	})
	return userIDs
}

// broadcastLocal рассылает сообщение всем клиентам шарда с учетом подписок.
func (s *Shard) broadcastLocal(message []byte) {
	messageType := messageTypeFromBytes(message)

	s.clients.Range(func(_, value interface{}) bool {
		client := value.(*Client)
		if messageType != "" && !client.IsSubscribed(messageType) {
			return true
		}
		if client.Send(message) {
			s.messagesSent.Add(1)
		} else {
			s.messageErrors.Add(1)
		}
		return true
	})
}

// SendToUser отправляет сообщение конкретному пользователю этого шарда.
func (s *Shard) SendToUser(userID string, message []byte) bool {
	value, ok := s.userMap.Load(userID)
	if !ok {
		return false
	}
	client := value.(*Client)
	if client.Send(message) {
		s.messagesSent.Add(1)
		return true
	}
	s.messageErrors.Add(1)
	return false
}

// cleanupStaleClients отключает соединения без активности.
func (s *Shard) cleanupStaleClients() {
	cutoff := time.Now().Add(-staleConnectionAge)
	var stale []*Client

	s.clients.Range(func(_, value interface{}) bool {
		client := value.(*Client)
		if client.LastActivity().Before(cutoff) {
			stale = append(stale, client)
		}
		return true
	})

	for _, client := range stale {
		log.Printf("[Shard %d] Очистка неактивного соединения %s (user %s)",
			s.id, client.ConnectionID, client.UserID)
		s.dropClient(client)
	}
}

func (s *Shard) closeAllClients() {
	s.clients.Range(func(_, value interface{}) bool {
		s.dropClient(value.(*Client))
		return true
	})
}

// ClientCount возвращает число клиентов шарда.
func (s *Shard) ClientCount() int {
	return int(s.clientCount.Load())
}

// GetMetrics возвращает метрики шарда.
func (s *Shard) GetMetrics() ShardMetrics {
	return ShardMetrics{
		ShardID:       s.id,
		Clients:       int(s.clientCount.Load()),
		MessagesSent:  s.messagesSent.Load(),
		MessageErrors: s.messageErrors.Load(),
	}
}
