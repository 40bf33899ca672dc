package roommanager

import (
	"sort"
)

// Standing - строка таблицы лидеров
type Standing struct {
	Rank           int   `json:"rank"`
	UserID         uint  `json:"user_id"`
	SessionID      uint  `json:"session_id,omitempty"`
	Score          int   `json:"score"`
	TotalLatencyMs int64 `json:"total_latency_ms"`
	JoinOrder      int   `json:"-"`
}

// ComputeLeaderboard строит таблицу лидеров по живым итогам участников.
// Чистая функция над снимком состояния: сортировка по убыванию счета,
// тай-брейк по меньшей суммарной задержке, затем по порядку вступления.
// Идемпотентна - одинаковый вход всегда дает одинаковый порядок.
func ComputeLeaderboard(members []*Member) []Standing {
	standings := make([]Standing, 0, len(members))
	for _, m := range members {
		standings = append(standings, Standing{
			UserID:         m.UserID,
			SessionID:      m.SessionID,
			Score:          m.Score,
			TotalLatencyMs: m.TotalLatencyMs,
			JoinOrder:      m.JoinOrder,
		})
	}

	sort.SliceStable(standings, func(i, j int) bool {
		if standings[i].Score != standings[j].Score {
			return standings[i].Score > standings[j].Score
		}
		if standings[i].TotalLatencyMs != standings[j].TotalLatencyMs {
			return standings[i].TotalLatencyMs < standings[j].TotalLatencyMs
		}
		return standings[i].JoinOrder < standings[j].JoinOrder
	})

	for i := range standings {
		standings[i].Rank = i + 1
	}
	return standings
}
