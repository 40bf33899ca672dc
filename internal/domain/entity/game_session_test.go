package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGameContext_Validate(t *testing.T) {
	roomID := uint(1)
	userID := uint(2)

	assert.NoError(t, MultiplayerContext(roomID).Validate())
	assert.NoError(t, SoloContext(userID).Validate())

	// Пустой контекст недопустим
	assert.Error(t, GameContext{}.Validate())

	// Оба поля сразу недопустимы
	assert.Error(t, GameContext{RoomID: &roomID, UserID: &userID}.Validate())
}

func TestNewGameSession(t *testing.T) {
	startedAt := time.Now()

	multiplayer, err := NewGameSession(2, MultiplayerContext(5), startedAt)
	assert.NoError(t, err)
	assert.Equal(t, uint(5), *multiplayer.RoomID)
	assert.Equal(t, uint(2), multiplayer.UserID)
	assert.Equal(t, startedAt, multiplayer.StartedAt)

	solo, err := NewGameSession(2, SoloContext(2), startedAt)
	assert.NoError(t, err)
	assert.Nil(t, solo.RoomID)
	assert.True(t, solo.Context().IsSolo())

	// Невалидный контекст не превращается в сессию
	_, err = NewGameSession(2, GameContext{}, startedAt)
	assert.Error(t, err)
}

func TestGameSession_Context(t *testing.T) {
	roomID := uint(5)

	multiplayer := GameSession{RoomID: &roomID, UserID: 1}
	assert.True(t, multiplayer.Context().IsMultiplayer())
	assert.False(t, multiplayer.Context().IsSolo())

	solo := GameSession{UserID: 1}
	assert.True(t, solo.Context().IsSolo())
	assert.False(t, solo.Context().IsMultiplayer())
}

func TestGameSession_Finish_Idempotent(t *testing.T) {
	session := GameSession{ID: 1, UserID: 1, StartedAt: time.Now()}
	assert.True(t, session.IsActive())

	firstEnd := time.Now()
	session.Finish(1500, firstEnd)

	assert.False(t, session.IsActive())
	assert.Equal(t, 1500, session.FinalScore)
	assert.Equal(t, firstEnd, *session.EndedAt)

	// Повторное завершение не перетирает зафиксированный итог
	session.Finish(9999, firstEnd.Add(time.Hour))

	assert.Equal(t, 1500, session.FinalScore)
	assert.Equal(t, firstEnd, *session.EndedAt)
}
