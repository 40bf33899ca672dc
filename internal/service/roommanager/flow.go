package roommanager

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/yourusername/quizroom-api/internal/domain/entity"
	apperrors "github.com/yourusername/quizroom-api/internal/pkg/errors"
)

// GameFlow управляет конечным автоматом комнаты:
// waiting → playing → finished, переходы монотонны.
// Все переходы выполняются под мьютексом комнаты.
type GameFlow struct {
	// Настройки
	config *Config

	// Зависимости
	deps *Dependencies

	registry  *Registry
	collector *AnswerCollector

	// Базовый контекст таймеров автоперехода. Таймер живет дольше
	// запроса, открывшего окно, и гаснет только при явной отмене
	// (advance/abort своего вопроса) или остановке движка.
	timersCtx  context.Context
	stopTimers context.CancelFunc

	// Функции отмены таймеров автоперехода, по коду комнаты
	advanceCancels sync.Map // map[string]context.CancelFunc
}

// NewGameFlow создает новый координатор игрового цикла
func NewGameFlow(config *Config, deps *Dependencies, registry *Registry, collector *AnswerCollector) *GameFlow {
	timersCtx, stopTimers := context.WithCancel(context.Background())
	return &GameFlow{
		config:     config,
		deps:       deps,
		registry:   registry,
		collector:  collector,
		timersCtx:  timersCtx,
		stopTimers: stopTimers,
	}
}

// Close останавливает все таймеры автоперехода. Вызывается при
// остановке приложения.
func (f *GameFlow) Close() {
	f.stopTimers()
}

// StartGame переводит комнату waiting → playing.
// Только владелец может запустить игру; требуется хотя бы один вопрос
// и не меньше MinPlayers игроков помимо владельца.
func (f *GameFlow) StartGame(ctx context.Context, state *RoomState, callerID uint) error {
	state.Mu.Lock()
	defer state.Mu.Unlock()

	if callerID != state.Room.OwnerID {
		return fmt.Errorf("%w: only the owner can start the game", apperrors.ErrForbidden)
	}
	if !state.Room.CanTransitionTo(entity.RoomStatusPlaying) {
		return fmt.Errorf("%w: room %s is %s", apperrors.ErrInvalidTransition,
			state.Room.Code, state.Room.Status)
	}

	// Вопросы загружаются при старте: до playing комната их не держит
	if len(state.Questions) == 0 {
		questions, err := f.deps.QuestionRepo.GetByRoomID(state.Room.ID)
		if err != nil && !errors.Is(err, apperrors.ErrStorageUnavailable) {
			return fmt.Errorf("failed to load questions for room %s: %w", state.Room.Code, err)
		}
		state.Questions = questions
	}
	if len(state.Questions) == 0 {
		return apperrors.ErrNoQuestions
	}
	if state.PlayerCount() < f.config.MinPlayers {
		return fmt.Errorf("%w: %d of %d required", apperrors.ErrInsufficientPlayers,
			state.PlayerCount(), f.config.MinPlayers)
	}

	// Создаем игровые сессии участников. Checkpoint нетерминальный:
	// недоступность хранилища поглощается, игра продолжается в памяти
	startedAt := time.Now()
	for _, member := range state.Members() {
		session, err := entity.NewGameSession(member.UserID, entity.MultiplayerContext(state.Room.ID), startedAt)
		if err != nil {
			log.Printf("[GameFlow] WARNING: сессия игрока #%d комнаты %s не создана: %v",
				member.UserID, state.Room.Code, err)
			continue
		}
		if err := f.persistWithRetry("create session", func() error {
			return f.deps.SessionRepo.CreateSession(session)
		}); err != nil {
			log.Printf("[GameFlow] WARNING: сессия игрока #%d комнаты %s не записана: %v",
				member.UserID, state.Room.Code, err)
			continue
		}
		member.SessionID = session.ID
	}

	state.Room.Status = entity.RoomStatusPlaying
	state.Room.CurrentQuestionIndex = 0
	if err := f.persistWithRetry("update status", func() error {
		return f.deps.RoomRepo.UpdateStatus(state.Room.ID, entity.RoomStatusPlaying)
	}); err != nil {
		log.Printf("[GameFlow] WARNING: статус playing комнаты %s не записан: %v", state.Room.Code, err)
	}

	log.Printf("[GameFlow] Комната %s: игра запущена владельцем #%d, %d вопросов, %d игроков",
		state.Room.Code, callerID, len(state.Questions), state.PlayerCount())

	f.broadcastRoomUpdated(state)
	f.openQuestion(state)
	return nil
}

// AdvanceQuestion закрывает окно текущего вопроса, начисляет "нет ответа",
// пересчитывает таблицу лидеров и открывает следующий вопрос либо
// завершает игру. Вызывается владельцем или таймером автоперехода.
func (f *GameFlow) AdvanceQuestion(ctx context.Context, state *RoomState, callerID uint) error {
	state.Mu.Lock()
	defer state.Mu.Unlock()
	return f.advanceLocked(state, callerID)
}

func (f *GameFlow) advanceLocked(state *RoomState, callerID uint) error {
	if callerID != state.Room.OwnerID {
		return fmt.Errorf("%w: only the owner can advance the question", apperrors.ErrForbidden)
	}
	if !state.Room.IsPlaying() {
		return fmt.Errorf("%w: cannot advance a %s room", apperrors.ErrInvalidTransition, state.Room.Status)
	}

	f.cancelAutoAdvance(state.Room.Code)
	f.closeQuestion(state)

	// Индекс двигается после успеха терминальной записи: повторная
	// попытка завершения после сбоя хранилища не уводит его за число
	// вопросов
	next := state.Room.CurrentQuestionIndex + 1
	if next >= len(state.Questions) {
		if err := f.finishLocked(state); err != nil {
			return err
		}
		state.Room.CurrentQuestionIndex = next
		return nil
	}

	state.Room.CurrentQuestionIndex = next
	if err := f.persistWithRetry("update question index", func() error {
		return f.deps.RoomRepo.UpdateQuestionIndex(state.Room.ID, state.Room.CurrentQuestionIndex)
	}); err != nil {
		log.Printf("[GameFlow] WARNING: индекс вопроса комнаты %s не записан: %v", state.Room.Code, err)
	}

	f.openQuestion(state)
	return nil
}

// Abort досрочно закрывает комнату по решению владельца.
// Допустим в любом состоянии до finished; окно ответов закрывается
// немедленно, код комнаты уходит в карантин.
func (f *GameFlow) Abort(ctx context.Context, state *RoomState, callerID uint) error {
	state.Mu.Lock()
	defer state.Mu.Unlock()

	if callerID != state.Room.OwnerID {
		return fmt.Errorf("%w: only the owner can abort the room", apperrors.ErrForbidden)
	}
	if state.Room.IsFinished() {
		return fmt.Errorf("%w: room %s is already finished", apperrors.ErrInvalidTransition, state.Room.Code)
	}

	f.cancelAutoAdvance(state.Room.Code)
	if state.Window() != nil {
		state.Window().Closed = true
	}

	state.Room.Status = entity.RoomStatusFinished
	if err := f.persistWithRetry("update status", func() error {
		return f.deps.RoomRepo.UpdateStatus(state.Room.ID, entity.RoomStatusFinished)
	}); err != nil {
		log.Printf("[GameFlow] WARNING: статус закрытой комнаты %s не записан: %v", state.Room.Code, err)
	}

	f.broadcastToRoom(state.Room.Code, "room:closed", map[string]interface{}{
		"room_code": state.Room.Code,
		"reason":    "aborted_by_owner",
	})

	f.registry.RemoveRoom(state.Room.Code)
	log.Printf("[GameFlow] Комната %s закрыта владельцем #%d", state.Room.Code, callerID)
	return nil
}

// SubmitAnswer принимает ответ игрока на текущий вопрос.
// Ответы закрытой комнаты отклоняются с ErrRoomClosed.
func (f *GameFlow) SubmitAnswer(
	ctx context.Context,
	state *RoomState,
	userID uint,
	questionID uint,
	selectedAnswer string,
) (*entity.PlayerAnswer, error) {
	state.Mu.Lock()
	defer state.Mu.Unlock()

	if state.Room.IsFinished() {
		return nil, apperrors.ErrRoomClosed
	}
	if !state.Room.IsPlaying() {
		return nil, fmt.Errorf("%w: room %s is not playing", apperrors.ErrInvalidTransition, state.Room.Code)
	}

	answer, err := f.collector.Submit(ctx, state, userID, questionID, selectedAnswer)
	if err != nil {
		return nil, err
	}

	// Принятый ответ пишется сразу, но нетерминально: недоступность
	// хранилища поглощается, запись уедет при закрытии окна
	if answer.SessionID != 0 {
		persisted := *answer
		if err := f.persistWithRetry("save answer", func() error {
			return f.deps.SessionRepo.SaveAnswer(&persisted)
		}); err != nil {
			log.Printf("[GameFlow] WARNING: ответ игрока #%d на вопрос #%d не записан: %v",
				userID, questionID, err)
		}
	}

	// Личный результат игроку (идемпотентен при повторной доставке)
	f.sendToUser(userID, "room:answer_result", map[string]interface{}{
		"room_code":         state.Room.Code,
		"question_id":       questionID,
		"your_answer":       selectedAnswer,
		"is_correct":        answer.IsCorrect,
		"points_earned":     answer.PointsEarned,
		"time_to_answer_ms": answer.TimeToAnswerMs,
	})

	return answer, nil
}

// openQuestion открывает окно ответов текущего вопроса.
// Вызывается под мьютексом комнаты.
func (f *GameFlow) openQuestion(state *RoomState) {
	question := state.CurrentQuestion()
	if question == nil {
		log.Printf("[GameFlow] CRITICAL: комната %s в playing без текущего вопроса (индекс %d)",
			state.Room.Code, state.Room.CurrentQuestionIndex)
		return
	}

	window := f.collector.OpenWindow(state, question, state.Room.CurrentQuestionIndex)

	f.broadcastToRoom(state.Room.Code, "room:question_opened", map[string]interface{}{
		"room_code":      state.Room.Code,
		"question_id":    question.ID,
		"question_index": window.Index,
		"question_text":  question.Text,
		"options":        question.Options(),
		"window_ms":      window.DurationMs,
		"opened_at_ms":   window.OpenedAtMs,
	})

	if f.config.AutoAdvance {
		f.scheduleAutoAdvance(state, question.ID)
	}
}

// closeQuestion закрывает окно, персистит записи окна и рассылает
// результаты вопроса вместе с обновленной таблицей лидеров.
// Вызывается под мьютексом комнаты.
func (f *GameFlow) closeQuestion(state *RoomState) {
	window := state.Window()
	if window == nil || window.Closed {
		return
	}

	results := f.collector.CloseWindow(state)

	// Записи "нет ответа" уходят в хранилище пачкой; принятые ответы
	// уже записаны по одному, конфликт дубликата там поглощается
	toPersist := make([]entity.PlayerAnswer, 0, len(results))
	for _, answer := range results {
		if answer.SessionID != 0 {
			toPersist = append(toPersist, answer)
		}
	}
	if err := f.persistWithRetry("save window answers", func() error {
		return f.deps.SessionRepo.SaveAnswers(toPersist)
	}); err != nil {
		log.Printf("[GameFlow] WARNING: записи окна вопроса #%d комнаты %s не сохранены: %v",
			window.Question.ID, state.Room.Code, err)
	}

	f.broadcastToRoom(state.Room.Code, "room:question_closed", map[string]interface{}{
		"room_code":      state.Room.Code,
		"question_id":    window.Question.ID,
		"question_index": window.Index,
		"correct_answer": window.Question.CorrectAnswer,
		"results":        results,
	})
	f.broadcastLeaderboard(state)
}

// finishLocked завершает игру: playing → finished.
// Терминальный факт: итоговые счета и статус должны быть подтверждены
// хранилищем ДО рассылки room:finished, чтобы сбой процесса не потерял
// объявленный клиентам результат.
func (f *GameFlow) finishLocked(state *RoomState) error {
	standings := ComputeLeaderboard(state.Members())
	endedAt := time.Now()

	for _, standing := range standings {
		if standing.SessionID == 0 {
			continue
		}
		if err := f.commitWithRetry("finish session", func() error {
			return f.deps.SessionRepo.FinishSession(standing.SessionID, standing.Score, endedAt)
		}); err != nil {
			return fmt.Errorf("terminal commit failed for room %s: %w", state.Room.Code, err)
		}
	}
	if err := f.commitWithRetry("update status", func() error {
		return f.deps.RoomRepo.UpdateStatus(state.Room.ID, entity.RoomStatusFinished)
	}); err != nil {
		return fmt.Errorf("terminal commit failed for room %s: %w", state.Room.Code, err)
	}

	state.Room.Status = entity.RoomStatusFinished

	// Итоги в профили игроков: не на терминальном пути, ошибки поглощаются
	for _, standing := range standings {
		score := standing.Score
		userID := standing.UserID
		if err := f.persistWithRetry("add game result", func() error {
			return f.deps.UserRepo.AddGameResult(userID, score)
		}); err != nil {
			log.Printf("[GameFlow] WARNING: итог игрока #%d не добавлен в профиль: %v", userID, err)
		}
	}

	f.broadcastToRoom(state.Room.Code, "room:finished", map[string]interface{}{
		"room_code":   state.Room.Code,
		"leaderboard": standings,
	})

	f.registry.RemoveRoom(state.Room.Code)
	log.Printf("[GameFlow] Комната %s завершена, %d участников", state.Room.Code, len(standings))
	return nil
}

// scheduleAutoAdvance запускает таймер автоперехода для открытого окна.
// Единственный источник неявного перехода по таймеру; отменяется
// явным advance, abort и остановкой движка. Контекст таймера растет
// из timersCtx, а не из контекста запроса: HTTP-запрос, открывший окно,
// завершается задолго до истечения окна. Запись в advanceCancels не
// чистится самим таймером: ее либо заменяет таймер следующего вопроса,
// либо снимает cancelAutoAdvance.
func (f *GameFlow) scheduleAutoAdvance(state *RoomState, questionID uint) {
	advanceCtx, cancel := context.WithCancel(f.timersCtx)
	f.advanceCancels.Store(state.Room.Code, cancel)

	go func() {
		select {
		case <-time.After(f.config.AnswerWindow):
			state.Mu.Lock()
			defer state.Mu.Unlock()
			window := state.Window()
			// Проверяем, что окно все еще наше: владелец мог успеть
			// сделать advance до срабатывания таймера
			if window == nil || window.Closed || window.Question.ID != questionID {
				return
			}
			log.Printf("[GameFlow] Комната %s: окно вопроса #%d истекло, автопереход",
				state.Room.Code, questionID)
			if err := f.advanceLocked(state, state.Room.OwnerID); err != nil {
				log.Printf("[GameFlow] Ошибка автоперехода комнаты %s: %v", state.Room.Code, err)
			}
		case <-advanceCtx.Done():
		}
	}()
}

// cancelAutoAdvance отменяет таймер автоперехода комнаты
func (f *GameFlow) cancelAutoAdvance(code string) {
	if cancel, ok := f.advanceCancels.LoadAndDelete(code); ok {
		cancel.(context.CancelFunc)()
	}
}

// broadcastRoomUpdated рассылает снимок комнаты (идемпотентен к повтору)
func (f *GameFlow) broadcastRoomUpdated(state *RoomState) {
	memberIDs := make([]uint, 0, state.MemberCount())
	for _, m := range state.Members() {
		memberIDs = append(memberIDs, m.UserID)
	}
	f.broadcastToRoom(state.Room.Code, "room:updated", map[string]interface{}{
		"room_code":      state.Room.Code,
		"status":         state.Room.Status,
		"owner_id":       state.Room.OwnerID,
		"question_index": state.Room.CurrentQuestionIndex,
		"question_count": len(state.Questions),
		"members":        memberIDs,
	})
}

// BroadcastRoomUpdated рассылает снимок комнаты под ее мьютексом
func (f *GameFlow) BroadcastRoomUpdated(state *RoomState) {
	state.Mu.Lock()
	defer state.Mu.Unlock()
	f.broadcastRoomUpdated(state)
}

// broadcastLeaderboard рассылает текущую таблицу лидеров
func (f *GameFlow) broadcastLeaderboard(state *RoomState) {
	f.broadcastToRoom(state.Room.Code, "room:leaderboard", map[string]interface{}{
		"room_code":   state.Room.Code,
		"leaderboard": ComputeLeaderboard(state.Members()),
	})
}

// Leaderboard возвращает таблицу лидеров комнаты под ее мьютексом
func (f *GameFlow) Leaderboard(state *RoomState) []Standing {
	state.Mu.Lock()
	defer state.Mu.Unlock()
	return ComputeLeaderboard(state.Members())
}

// broadcastToRoom отправляет событие всем подписчикам комнаты
func (f *GameFlow) broadcastToRoom(code string, eventType string, data map[string]interface{}) {
	fullEvent := map[string]interface{}{
		"type": eventType,
		"data": data,
	}
	if err := f.deps.Broadcaster.BroadcastEventToRoom(code, fullEvent); err != nil {
		log.Printf("[GameFlow] Ошибка рассылки события %s в комнату %s: %v", eventType, code, err)
	}
}

// sendToUser отправляет личное событие игроку
func (f *GameFlow) sendToUser(userID uint, eventType string, data map[string]interface{}) {
	if err := f.deps.Broadcaster.SendEventToUser(fmt.Sprintf("%d", userID), eventType, data); err != nil {
		log.Printf("[GameFlow] Ошибка отправки события %s игроку #%d: %v", eventType, userID, err)
	}
}

// persistWithRetry выполняет нетерминальную запись с ретраями.
// Недоступность хранилища поглощается вызывающим кодом: состояние
// продолжает жить в памяти, вернувшаяся ошибка только логируется.
func (f *GameFlow) persistWithRetry(op string, fn func() error) error {
	var err error
	for attempt := 0; attempt < f.config.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(f.config.RetryInterval * time.Duration(attempt))
		}
		err = fn()
		if err == nil {
			return nil
		}
		if !errors.Is(err, apperrors.ErrStorageUnavailable) {
			return err
		}
		log.Printf("[GameFlow] Хранилище недоступно (%s), попытка %d/%d", op, attempt+1, f.config.MaxRetries)
	}
	return err
}

// commitWithRetry выполняет терминальную запись с ретраями.
// В отличие от persistWithRetry итоговая ошибка всегда возвращается
// наверх: терминальные факты не объявляются без подтверждения хранилища.
func (f *GameFlow) commitWithRetry(op string, fn func() error) error {
	var err error
	for attempt := 0; attempt < f.config.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(f.config.RetryInterval * time.Duration(attempt))
		}
		err = fn()
		if err == nil {
			return nil
		}
		log.Printf("[GameFlow] Ошибка терминальной записи (%s), попытка %d/%d: %v",
			op, attempt+1, f.config.MaxRetries, err)
	}
	return err
}
