package roommanager

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeLeaderboard_OrdersByScore(t *testing.T) {
	members := []*Member{
		{UserID: 1, JoinOrder: 0, Score: 500},
		{UserID: 2, JoinOrder: 1, Score: 1500},
		{UserID: 3, JoinOrder: 2, Score: 1000},
	}

	standings := ComputeLeaderboard(members)

	assert.Equal(t, []uint{2, 3, 1}, userIDs(standings))
	assert.Equal(t, 1, standings[0].Rank)
	assert.Equal(t, 2, standings[1].Rank)
	assert.Equal(t, 3, standings[2].Rank)
}

func TestComputeLeaderboard_TieBreakByLatency(t *testing.T) {
	// Равный счет: выигрывает меньшая суммарная задержка
	members := []*Member{
		{UserID: 1, JoinOrder: 0, Score: 1000, TotalLatencyMs: 8000},
		{UserID: 2, JoinOrder: 1, Score: 1000, TotalLatencyMs: 3000},
	}

	standings := ComputeLeaderboard(members)

	assert.Equal(t, []uint{2, 1}, userIDs(standings))
}

func TestComputeLeaderboard_TieBreakByJoinOrder(t *testing.T) {
	// Равный счет и равная задержка: выигрывает вступивший раньше
	members := []*Member{
		{UserID: 5, JoinOrder: 2, Score: 1000, TotalLatencyMs: 3000},
		{UserID: 3, JoinOrder: 0, Score: 1000, TotalLatencyMs: 3000},
		{UserID: 4, JoinOrder: 1, Score: 1000, TotalLatencyMs: 3000},
	}

	standings := ComputeLeaderboard(members)

	assert.Equal(t, []uint{3, 4, 5}, userIDs(standings))
}

func TestComputeLeaderboard_Idempotent(t *testing.T) {
	members := []*Member{
		{UserID: 1, JoinOrder: 0, Score: 700, TotalLatencyMs: 4000},
		{UserID: 2, JoinOrder: 1, Score: 700, TotalLatencyMs: 4000},
		{UserID: 3, JoinOrder: 2, Score: 1200, TotalLatencyMs: 9000},
	}

	// Повторный пересчет одного снимка дает одинаковый порядок
	first := ComputeLeaderboard(members)
	second := ComputeLeaderboard(members)

	assert.Equal(t, first, second)
}

func TestComputeLeaderboard_Empty(t *testing.T) {
	standings := ComputeLeaderboard(nil)
	assert.Empty(t, standings)
}

func userIDs(standings []Standing) []uint {
	ids := make([]uint, 0, len(standings))
	for _, s := range standings {
		ids = append(ids, s.UserID)
	}
	return ids
}
