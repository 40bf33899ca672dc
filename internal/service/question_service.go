package service

import (
	"errors"
	"fmt"
	"log"

	"github.com/yourusername/quizroom-api/internal/domain/entity"
	"github.com/yourusername/quizroom-api/internal/domain/repository"
	apperrors "github.com/yourusername/quizroom-api/internal/pkg/errors"
)

// QuestionService предоставляет методы для работы с вопросами
type QuestionService struct {
	questionRepo repository.QuestionRepository
	roomRepo     repository.RoomRepository
}

// NewQuestionService создает новый сервис вопросов
func NewQuestionService(questionRepo repository.QuestionRepository, roomRepo repository.RoomRepository) *QuestionService {
	return &QuestionService{
		questionRepo: questionRepo,
		roomRepo:     roomRepo,
	}
}

// CreateRoomQuestion добавляет вопрос в комнату.
// Вопросы может добавлять только владелец и только до старта игры.
func (s *QuestionService) CreateRoomQuestion(
	code string,
	callerID uint,
	text, correctAnswer string,
	wrongAnswers []string,
) (*entity.Question, error) {
	room, err := s.roomRepo.GetByCode(code)
	if err != nil {
		return nil, err
	}
	if room.OwnerID != callerID {
		return nil, fmt.Errorf("%w: only the owner can add questions", apperrors.ErrForbidden)
	}
	if !room.IsWaiting() {
		return nil, fmt.Errorf("%w: questions can only be added to a waiting room", apperrors.ErrInvalidTransition)
	}

	question := &entity.Question{
		CreatedBy:     callerID,
		RoomID:        &room.ID,
		Text:          text,
		CorrectAnswer: correctAnswer,
		WrongAnswers:  wrongAnswers,
	}
	if err := question.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	if err := s.questionRepo.Create(question); err != nil {
		log.Printf("[QuestionService] Ошибка создания вопроса для комнаты %s: %v", code, err)
		return nil, fmt.Errorf("failed to create question: %w", err)
	}

	log.Printf("[QuestionService] Вопрос #%d добавлен в комнату %s", question.ID, code)
	return question, nil
}

// CreatePersonalQuestion добавляет личный вопрос пользователя (для solo-игр)
func (s *QuestionService) CreatePersonalQuestion(
	createdBy uint,
	text, correctAnswer string,
	wrongAnswers []string,
) (*entity.Question, error) {
	question := &entity.Question{
		CreatedBy:     createdBy,
		Text:          text,
		CorrectAnswer: correctAnswer,
		WrongAnswers:  wrongAnswers,
	}
	if err := question.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	if err := s.questionRepo.Create(question); err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}
	return question, nil
}

// GetRoomQuestions возвращает вопросы комнаты (только владельцу:
// в ответах виден правильный вариант)
func (s *QuestionService) GetRoomQuestions(code string, callerID uint) ([]entity.Question, error) {
	room, err := s.roomRepo.GetByCode(code)
	if err != nil {
		return nil, err
	}
	if room.OwnerID != callerID {
		return nil, fmt.Errorf("%w: only the owner can list room questions", apperrors.ErrForbidden)
	}
	return s.questionRepo.GetByRoomID(room.ID)
}

// GetPersonalQuestions возвращает личные вопросы пользователя
func (s *QuestionService) GetPersonalQuestions(userID uint, limit int) ([]entity.Question, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.questionRepo.GetPersonal(userID, limit)
}

// DeleteQuestion удаляет вопрос. Удалять может только его создатель,
// и только пока вопрос не закреплен за комнатой в игре.
func (s *QuestionService) DeleteQuestion(questionID uint, callerID uint) error {
	question, err := s.questionRepo.GetByID(questionID)
	if err != nil {
		return err
	}
	if question.CreatedBy != callerID {
		return fmt.Errorf("%w: only the author can delete a question", apperrors.ErrForbidden)
	}

	if question.IsShared() {
		room, err := s.roomRepo.GetByID(*question.RoomID)
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		if err == nil && !room.IsWaiting() {
			return fmt.Errorf("%w: cannot delete a question of a started room", apperrors.ErrInvalidTransition)
		}
	}

	return s.questionRepo.Delete(questionID)
}
