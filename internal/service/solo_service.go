package service

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/yourusername/quizroom-api/internal/domain/entity"
	"github.com/yourusername/quizroom-api/internal/domain/repository"
	apperrors "github.com/yourusername/quizroom-api/internal/pkg/errors"
	"github.com/yourusername/quizroom-api/internal/service/roommanager"
)

// soloRun - живое состояние одиночного прохождения.
// У пользователя может быть не больше одного активного прохождения.
type soloRun struct {
	mu sync.Mutex

	session   *entity.GameSession
	questions []entity.Question
	index     int

	openedAtMs     int64
	score          int
	totalLatencyMs int64
}

// current возвращает текущий вопрос прохождения (nil, если вопросы закончились)
func (r *soloRun) current() *entity.Question {
	if r.index < 0 || r.index >= len(r.questions) {
		return nil
	}
	return &r.questions[r.index]
}

// SoloService управляет одиночными прохождениями личных вопросов.
// Правила начисления очков те же, что в комнатах: общий калькулятор
// гарантирует одинаковый счет за одинаковую пару (правильность, задержка).
type SoloService struct {
	config       *roommanager.Config
	collector    *roommanager.AnswerCollector
	questionRepo repository.QuestionRepository
	sessionRepo  repository.SessionRepository
	userRepo     repository.UserRepository

	runs sync.Map // userID -> *soloRun
}

// NewSoloService создает новый сервис одиночных игр
func NewSoloService(
	config *roommanager.Config,
	questionRepo repository.QuestionRepository,
	sessionRepo repository.SessionRepository,
	userRepo repository.UserRepository,
) *SoloService {
	return &SoloService{
		config:       config,
		collector:    roommanager.NewAnswerCollector(config, &roommanager.Dependencies{}),
		questionRepo: questionRepo,
		sessionRepo:  sessionRepo,
		userRepo:     userRepo,
	}
}

// SoloQuestionView - вопрос, каким его видит игрок (без правильного ответа)
type SoloQuestionView struct {
	QuestionID uint     `json:"question_id"`
	Index      int      `json:"index"`
	Total      int      `json:"total"`
	Text       string   `json:"text"`
	Options    []string `json:"options"`
	WindowMs   int64    `json:"window_ms"`
}

// SoloAnswerResult - итог ответа в одиночном прохождении
type SoloAnswerResult struct {
	QuestionID     uint   `json:"question_id"`
	IsCorrect      bool   `json:"is_correct"`
	CorrectAnswer  string `json:"correct_answer"`
	PointsEarned   int    `json:"points_earned"`
	TimeToAnswerMs int64  `json:"time_to_answer_ms"`
	Score          int    `json:"score"`
	Finished       bool   `json:"finished"`
}

// StartSolo начинает одиночное прохождение личных вопросов пользователя.
// Повторный старт при активном прохождении возвращает его текущий вопрос.
func (s *SoloService) StartSolo(userID uint, questionCount int) (*SoloQuestionView, error) {
	if existing, ok := s.runs.Load(userID); ok {
		run := existing.(*soloRun)
		run.mu.Lock()
		defer run.mu.Unlock()
		if q := run.current(); q != nil {
			log.Printf("[SoloService] Пользователь #%d продолжает активное прохождение", userID)
			return s.viewFor(run, q), nil
		}
	}

	if questionCount < 1 || questionCount > 50 {
		questionCount = 10
	}
	questions, err := s.questionRepo.GetPersonal(userID, questionCount)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, apperrors.ErrNoQuestions
	}

	// Незавершенная одиночная сессия в хранилище без живого прохождения —
	// след рестарта процесса. Прогресс жил в памяти и не восстановим,
	// поэтому сессия закрывается с уже записанным счетом.
	if stale, err := s.sessionRepo.GetActiveSoloSession(userID); err == nil && stale != nil && stale.Context().IsSolo() {
		if err := s.sessionRepo.FinishSession(stale.ID, stale.FinalScore, time.Now()); err != nil {
			log.Printf("[SoloService] WARNING: зависшая сессия #%d пользователя #%d не закрыта: %v",
				stale.ID, userID, err)
		} else {
			log.Printf("[SoloService] Зависшая сессия #%d пользователя #%d закрыта", stale.ID, userID)
		}
	}

	session, err := entity.NewGameSession(userID, entity.SoloContext(userID), time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to create solo session: %w", err)
	}
	if err := s.sessionRepo.CreateSession(session); err != nil {
		return nil, fmt.Errorf("failed to create solo session: %w", err)
	}

	run := &soloRun{
		session:    session,
		questions:  questions,
		openedAtMs: nowMs(),
	}
	s.runs.Store(userID, run)

	log.Printf("[SoloService] Пользователь #%d начал одиночную игру: %d вопросов, сессия #%d",
		userID, len(questions), session.ID)
	return s.viewFor(run, run.current()), nil
}

// CurrentQuestion возвращает текущий вопрос активного прохождения
func (s *SoloService) CurrentQuestion(userID uint) (*SoloQuestionView, error) {
	run, err := s.activeRun(userID)
	if err != nil {
		return nil, err
	}
	run.mu.Lock()
	defer run.mu.Unlock()

	q := run.current()
	if q == nil {
		return nil, apperrors.ErrWindowClosed
	}
	return s.viewFor(run, q), nil
}

// SubmitAnswer принимает ответ на текущий вопрос прохождения.
// Ответ после истечения окна засчитывается как неправильный, а не
// отклоняется: в одиночной игре некому закрыть окно за игрока.
func (s *SoloService) SubmitAnswer(userID uint, questionID uint, selectedAnswer string) (*SoloAnswerResult, error) {
	run, err := s.activeRun(userID)
	if err != nil {
		return nil, err
	}
	run.mu.Lock()
	defer run.mu.Unlock()

	question := run.current()
	if question == nil {
		return nil, apperrors.ErrWindowClosed
	}
	if question.ID != questionID {
		return nil, fmt.Errorf("%w: question #%d is not the current question", apperrors.ErrWindowClosed, questionID)
	}

	latencyMs := nowMs() - run.openedAtMs
	if latencyMs < 0 {
		latencyMs = 0
	}

	windowMs := s.config.AnswerWindow.Milliseconds()
	isCorrect := question.IsCorrect(selectedAnswer) && latencyMs <= windowMs
	points := s.collector.CalculatePoints(isCorrect, latencyMs, windowMs)

	answer := &entity.PlayerAnswer{
		SessionID:      run.session.ID,
		QuestionID:     questionID,
		SelectedAnswer: selectedAnswer,
		IsCorrect:      isCorrect,
		PointsEarned:   points,
		TimeToAnswerMs: latencyMs,
	}
	if err := s.sessionRepo.SaveAnswer(answer); err != nil {
		log.Printf("[SoloService] WARNING: ответ сессии #%d на вопрос #%d не записан: %v",
			run.session.ID, questionID, err)
	}

	run.score += points
	if isCorrect {
		run.totalLatencyMs += latencyMs
	}
	run.index++
	run.openedAtMs = nowMs()

	result := &SoloAnswerResult{
		QuestionID:     questionID,
		IsCorrect:      isCorrect,
		CorrectAnswer:  question.CorrectAnswer,
		PointsEarned:   points,
		TimeToAnswerMs: latencyMs,
		Score:          run.score,
	}

	if run.current() == nil {
		result.Finished = true
		s.finishRun(userID, run)
	}
	return result, nil
}

// Abandon досрочно завершает прохождение с текущим счетом
func (s *SoloService) Abandon(userID uint) error {
	run, err := s.activeRun(userID)
	if err != nil {
		return err
	}
	run.mu.Lock()
	defer run.mu.Unlock()

	run.index = len(run.questions)
	s.finishRun(userID, run)
	return nil
}

// finishRun фиксирует итог прохождения. Вызывается под мьютексом run.
func (s *SoloService) finishRun(userID uint, run *soloRun) {
	endedAt := time.Now()
	if err := s.sessionRepo.FinishSession(run.session.ID, run.score, endedAt); err != nil {
		log.Printf("[SoloService] WARNING: сессия #%d не завершена в хранилище: %v", run.session.ID, err)
	}
	if err := s.userRepo.AddGameResult(userID, run.score); err != nil {
		log.Printf("[SoloService] WARNING: итог пользователя #%d не добавлен в профиль: %v", userID, err)
	}
	s.runs.Delete(userID)

	log.Printf("[SoloService] Пользователь #%d завершил одиночную игру: счет %d", userID, run.score)
}

func (s *SoloService) activeRun(userID uint) (*soloRun, error) {
	value, ok := s.runs.Load(userID)
	if !ok {
		return nil, fmt.Errorf("%w: no active solo game for user #%d", apperrors.ErrNotFound, userID)
	}
	return value.(*soloRun), nil
}

func (s *SoloService) viewFor(run *soloRun, q *entity.Question) *SoloQuestionView {
	return &SoloQuestionView{
		QuestionID: q.ID,
		Index:      run.index,
		Total:      len(run.questions),
		Text:       q.Text,
		Options:    q.Options(),
		WindowMs:   s.config.AnswerWindow.Milliseconds(),
	}
}

func nowMs() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}
