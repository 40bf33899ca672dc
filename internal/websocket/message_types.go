package websocket

// Типы событий игровой комнаты
const (
	// ROOM_UPDATED сообщает об изменении состава или статуса комнаты
	ROOM_UPDATED = "room:updated"

	// QUESTION_OPENED сообщает об открытии окна ответов нового вопроса
	QUESTION_OPENED = "room:question_opened"

	// QUESTION_CLOSED сообщает о закрытии окна и несет результаты вопроса
	QUESTION_CLOSED = "room:question_closed"

	// LEADERBOARD_UPDATED несет пересчитанную таблицу лидеров
	LEADERBOARD_UPDATED = "room:leaderboard"

	// ROOM_FINISHED сообщает о завершении игры с итоговой таблицей
	ROOM_FINISHED = "room:finished"

	// ROOM_CLOSED сообщает о досрочном закрытии комнаты владельцем
	ROOM_CLOSED = "room:closed"

	// ANSWER_RESULT - личный результат ответа игрока
	ANSWER_RESULT = "room:answer_result"
)
