package websocket

import (
	"time"
)

// ShardMetrics - счетчики одного шарда.
type ShardMetrics struct {
	ShardID       int   `json:"shard_id"`
	Clients       int   `json:"clients"`
	MessagesSent  int64 `json:"messages_sent"`
	MessageErrors int64 `json:"message_errors"`
}

// HubMetrics - агрегированные метрики хаба по всем шардам.
type HubMetrics struct {
	ShardCount         int            `json:"shard_count"`
	TotalClients       int            `json:"total_clients"`
	TotalMessagesSent  int64          `json:"total_messages_sent"`
	TotalMessageErrors int64          `json:"total_message_errors"`
	Shards             []ShardMetrics `json:"shards"`
	UpdatedAt          time.Time      `json:"updated_at"`
}
