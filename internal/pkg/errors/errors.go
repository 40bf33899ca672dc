package errors

import "errors"

// Общие ошибки приложения
var (
	// ErrNotFound используется, когда комната, вопрос или сессия не найдены.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthenticated используется, когда личность пользователя не удалось установить.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden используется, когда у пользователя недостаточно прав для действия
	// (например, не-владелец пытается запустить игру).
	ErrForbidden = errors.New("forbidden")

	// ErrValidation используется для ошибок валидации входных данных.
	ErrValidation = errors.New("validation failed")

	// ErrStorageUnavailable используется, когда хранилище временно недоступно.
	// Для нетерминальных операций поглощается с ретраем, для терминальных — возвращается наверх.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Ошибки игрового движка (комнаты, окна ответов, переходы состояний)
var (
	// ErrInvalidTransition используется при нарушении правил конечного автомата комнаты
	// (например, advance для завершенной комнаты).
	ErrInvalidTransition = errors.New("invalid room state transition")

	// ErrDuplicateAnswer используется при повторной отправке ответа на тот же вопрос.
	ErrDuplicateAnswer = errors.New("answer already submitted for this question")

	// ErrWindowClosed используется, когда ответ пришел после закрытия окна ответов.
	ErrWindowClosed = errors.New("answer window is closed")

	// ErrInsufficientPlayers используется при запуске игры без минимального числа игроков.
	ErrInsufficientPlayers = errors.New("not enough players to start")

	// ErrNoQuestions используется при запуске игры без единого вопроса.
	ErrNoQuestions = errors.New("room has no questions")

	// ErrCodeGenerationExhausted используется, когда не удалось сгенерировать
	// уникальный код комнаты за отведенное число попыток.
	ErrCodeGenerationExhausted = errors.New("room code generation exhausted")

	// ErrRoomClosed используется для операций над закрытой или завершенной комнатой
	// (в том числе для join при status != waiting).
	ErrRoomClosed = errors.New("room is closed")
)
