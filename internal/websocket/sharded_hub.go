package websocket

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log"
	"sync"
	"time"
)

const (
	// Количество шардов по умолчанию
	defaultShardCount = 4

	// Размер пула воркеров для рассылок
	defaultWorkerCount = 8

	// Размер очереди задач пула воркеров
	workerQueueSize = 512

	// Интервал сбора метрик
	metricsInterval = 30 * time.Second

	// Доля клиентов в одном шарде, после которой шард считается горячим
	hotShardThreshold = 0.6
)

// WorkerPool выполняет задачи рассылки на фиксированном числе горутин.
type WorkerPool struct {
	tasks chan func()
	wg    sync.WaitGroup
	done  chan struct{}
}

// NewWorkerPool создает и запускает пул воркеров.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = defaultWorkerCount
	}
	p := &WorkerPool{
		tasks: make(chan func(), workerQueueSize),
		done:  make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case task := <-p.tasks:
			p.runTask(id, task)
		case <-p.done:
			return
		}
	}
}

// runTask выполняет задачу с перехватом паники, чтобы не терять воркера.
func (p *WorkerPool) runTask(id int, task func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[WorkerPool] Паника в воркере %d: %v", id, r)
		}
	}()
	task()
}

// Submit ставит задачу в очередь. Возвращает false при переполнении.
func (p *WorkerPool) Submit(task func()) bool {
	select {
	case p.tasks <- task:
		return true
	default:
		log.Printf("[WorkerPool] Очередь задач переполнена, задача отброшена")
		return false
	}
}

// Stop останавливает пул и дожидается завершения воркеров.
func (p *WorkerPool) Stop() {
	close(p.done)
	p.wg.Wait()
}

// ShardedHubConfig - настройки шардированного хаба.
type ShardedHubConfig struct {
	ShardCount  int
	WorkerCount int
}

// ShardedHub распределяет клиентов по шардам по хешу ConnectionID.
// Рассылки по комнатам веером уходят во все шарды через пул воркеров.
type ShardedHub struct {
	shards []*Shard
	pool   *WorkerPool

	// Кластерный хаб для межузловой рассылки (NoOp в одноузловой конфигурации)
	cluster *ClusterHub

	metricsMu sync.RWMutex
	metrics   HubMetrics

	done chan struct{}
}

// NewShardedHub создает хаб с заданной конфигурацией и провайдером pub/sub.
func NewShardedHub(config ShardedHubConfig, pubsub PubSubProvider) *ShardedHub {
	if config.ShardCount <= 0 {
		config.ShardCount = defaultShardCount
	}

	hub := &ShardedHub{
		shards: make([]*Shard, config.ShardCount),
		pool:   NewWorkerPool(config.WorkerCount),
		done:   make(chan struct{}),
	}
	for i := 0; i < config.ShardCount; i++ {
		hub.shards[i] = NewShard(i, hub)
	}
	hub.cluster = NewClusterHub(hub, pubsub)
	return hub
}

// Run запускает шарды, кластерный хаб и сбор метрик.
func (h *ShardedHub) Run() {
	for _, shard := range h.shards {
		go shard.Run()
	}
	h.cluster.Start()
	go h.collectMetrics()
	log.Printf("[ShardedHub] Запущен: %d шардов", len(h.shards))
}

// Close останавливает хаб и все его шарды.
func (h *ShardedHub) Close() {
	close(h.done)
	h.cluster.Stop()
	for _, shard := range h.shards {
		shard.Close()
	}
	h.pool.Stop()
}

// fnv32a - быстрый хеш для выбора шарда.
func fnv32a(s string) uint32 {
	hash := fnv.New32a()
	hash.Write([]byte(s))
	return hash.Sum32()
}

// shardFor возвращает шард для данного ConnectionID.
func (h *ShardedHub) shardFor(connectionID string) *Shard {
	return h.shards[fnv32a(connectionID)%uint32(len(h.shards))]
}

// RegisterClient привязывает клиента к его шарду (без регистрации в цикле).
// Сама регистрация происходит синхронно в Client.StartPumps.
func (h *ShardedHub) RegisterClient(client *Client) {
	client.shard = h.shardFor(client.ConnectionID)
}

// BroadcastJSON сериализует значение и рассылает всем клиентам узла и кластера.
func (h *ShardedHub) BroadcastJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal broadcast: %w", err)
	}
	h.BroadcastBytes(data)
	return nil
}

// BroadcastBytes рассылает байты всем клиентам. Если настроен кластер,
// сообщение сначала публикуется в него и возвращается на узел через подписку.
func (h *ShardedHub) BroadcastBytes(message []byte) {
	if h.cluster.Enabled() {
		if err := h.cluster.PublishBroadcast(message); err != nil {
			log.Printf("[ShardedHub] Ошибка публикации в кластер, локальная рассылка: %v", err)
			h.broadcastLocal(message)
		}
		return
	}
	h.broadcastLocal(message)
}

// broadcastLocal рассылает сообщение по всем шардам узла через пул воркеров.
func (h *ShardedHub) broadcastLocal(message []byte) {
	var wg sync.WaitGroup
	for _, shard := range h.shards {
		shard := shard
		wg.Add(1)
		if !h.pool.Submit(func() {
			defer wg.Done()
			select {
			case shard.broadcast <- message:
			default:
				log.Printf("[ShardedHub] Канал рассылки шарда %d переполнен", shard.id)
			}
		}) {
			wg.Done()
		}
	}
	wg.Wait()
}

// BroadcastToRoom рассылает сообщение подписчикам комнаты на всех шардах.
// Возвращает суммарное число получателей на этом узле.
func (h *ShardedHub) BroadcastToRoom(roomCode string, message []byte) int {
	if h.cluster.Enabled() {
		if err := h.cluster.PublishRoomBroadcast(roomCode, message); err != nil {
			log.Printf("[ShardedHub] Ошибка публикации комнаты %s в кластер: %v", roomCode, err)
		}
	}
	return h.broadcastToRoomLocal(roomCode, message)
}

// broadcastToRoomLocal рассылает сообщение подписчикам комнаты этого узла.
func (h *ShardedHub) broadcastToRoomLocal(roomCode string, message []byte) int {
	var (
		mu    sync.Mutex
		total int
		wg    sync.WaitGroup
	)
	for _, shard := range h.shards {
		shard := shard
		wg.Add(1)
		if !h.pool.Submit(func() {
			defer wg.Done()
			n := shard.BroadcastToRoom(roomCode, message)
			mu.Lock()
			total += n
			mu.Unlock()
		}) {
			wg.Done()
		}
	}
	wg.Wait()
	return total
}

// SubscribeToRoom подписывает клиента на комнату в его шарде.
func (h *ShardedHub) SubscribeToRoom(client *Client, roomCode string) {
	if client.shard == nil {
		client.shard = h.shardFor(client.ConnectionID)
	}
	client.shard.SubscribeToRoom(client, roomCode)
}

// UnsubscribeFromRoom снимает подписку клиента на его текущую комнату.
func (h *ShardedHub) UnsubscribeFromRoom(client *Client) {
	if client.shard != nil {
		client.shard.UnsubscribeFromRoom(client)
	}
}

// GetRoomSubscribers собирает UserID подписчиков комнаты со всех шардов узла.
func (h *ShardedHub) GetRoomSubscribers(roomCode string) ([]uint, error) {
	var userIDs []uint
	for _, shard := range h.shards {
		userIDs = append(userIDs, shard.getRoomSubscribers(roomCode)...)
	}
	return userIDs, nil
}

// SendToUser находит пользователя в шардах узла и отправляет ему сообщение.
// При кластерной конфигурации сообщение дополнительно публикуется для других узлов.
func (h *ShardedHub) SendToUser(userID string, message []byte) bool {
	for _, shard := range h.shards {
		if shard.SendToUser(userID, message) {
			return true
		}
	}
	if h.cluster.Enabled() {
		if err := h.cluster.PublishDirect(userID, message); err != nil {
			log.Printf("[ShardedHub] Ошибка публикации личного сообщения для %s: %v", userID, err)
			return false
		}
		return true
	}
	return false
}

// SendJSONToUser сериализует значение и отправляет его пользователю.
func (h *ShardedHub) SendJSONToUser(userID string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal direct message: %w", err)
	}
	if !h.SendToUser(userID, data) {
		return fmt.Errorf("user %s is not connected", userID)
	}
	return nil
}

// ClientCount возвращает число клиентов на всех шардах узла.
func (h *ShardedHub) ClientCount() int {
	total := 0
	for _, shard := range h.shards {
		total += shard.ClientCount()
	}
	return total
}

// collectMetrics периодически агрегирует метрики шардов
// и предупреждает о горячих шардах.
func (h *ShardedHub) collectMetrics() {
	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.updateMetrics()
		case <-h.done:
			return
		}
	}
}

func (h *ShardedHub) updateMetrics() {
	metrics := HubMetrics{
		ShardCount: len(h.shards),
		Shards:     make([]ShardMetrics, 0, len(h.shards)),
		UpdatedAt:  time.Now(),
	}
	for _, shard := range h.shards {
		sm := shard.GetMetrics()
		metrics.TotalClients += sm.Clients
		metrics.TotalMessagesSent += sm.MessagesSent
		metrics.TotalMessageErrors += sm.MessageErrors
		metrics.Shards = append(metrics.Shards, sm)
	}

	// Горячий шард - признак неудачного распределения соединений
	if metrics.TotalClients > 0 {
		for _, sm := range metrics.Shards {
			share := float64(sm.Clients) / float64(metrics.TotalClients)
			if share > hotShardThreshold && metrics.TotalClients > len(h.shards)*2 {
				log.Printf("[ShardedHub] ВНИМАНИЕ: шард %d держит %.0f%% клиентов (%d из %d)",
					sm.ShardID, share*100, sm.Clients, metrics.TotalClients)
			}
		}
	}

	h.metricsMu.Lock()
	h.metrics = metrics
	h.metricsMu.Unlock()
}

// GetMetrics возвращает агрегированные метрики хаба.
func (h *ShardedHub) GetMetrics() map[string]interface{} {
	h.metricsMu.RLock()
	snapshot := h.metrics
	h.metricsMu.RUnlock()

	return map[string]interface{}{
		"total_clients":        h.ClientCount(),
		"shard_count":          snapshot.ShardCount,
		"total_messages_sent":  snapshot.TotalMessagesSent,
		"total_message_errors": snapshot.TotalMessageErrors,
		"cluster_enabled":      h.cluster.Enabled(),
		"updated_at":           snapshot.UpdatedAt,
	}
}

// GetDetailedMetrics возвращает метрики с разбивкой по шардам.
func (h *ShardedHub) GetDetailedMetrics() map[string]interface{} {
	h.metricsMu.RLock()
	snapshot := h.metrics
	h.metricsMu.RUnlock()

	shards := make([]map[string]interface{}, 0, len(snapshot.Shards))
	for _, sm := range snapshot.Shards {
		shards = append(shards, map[string]interface{}{
			"shard_id":       sm.ShardID,
			"clients":        sm.Clients,
			"messages_sent":  sm.MessagesSent,
			"message_errors": sm.MessageErrors,
		})
	}

	metrics := h.GetMetrics()
	metrics["shards"] = shards
	return metrics
}
