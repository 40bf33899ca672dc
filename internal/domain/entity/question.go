package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"math/rand"
	"time"
)

// WrongAnswersCount — обязательное число неправильных вариантов у вопроса
const WrongAnswersCount = 3

// StringArray - пользовательский тип для работы с JSONB
type StringArray []string

// Scan реализует интерфейс sql.Scanner для StringArray
// Используется GORM для чтения JSONB данных из базы
func (o *StringArray) Scan(value interface{}) error {
	// Обработка NULL значений из базы данных
	if value == nil {
		*o = StringArray{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal JSONB value: expected []byte")
	}

	// Обработка пустого массива байтов
	if len(bytes) == 0 {
		*o = StringArray{}
		return nil
	}

	return json.Unmarshal(bytes, o)
}

// Value реализует интерфейс driver.Valuer для StringArray
// Используется GORM для записи StringArray в JSONB в базе
func (o StringArray) Value() (driver.Value, error) {
	if len(o) == 0 {
		return []byte("[]"), nil // Возвращаем пустой JSON массив вместо null
	}
	return json.Marshal(o)
}

// Question представляет вопрос викторины.
// Вопрос принадлежит либо комнате (RoomID != nil, общий), либо только создателю
// (RoomID == nil, личный/solo). После создания вопрос неизменяем.
type Question struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	CreatedBy     uint        `gorm:"not null;index" json:"created_by"`
	RoomID        *uint       `gorm:"index" json:"room_id,omitempty"`
	Text          string      `gorm:"size:500;not null" json:"text"`
	CorrectAnswer string      `gorm:"size:255;not null" json:"-"` // Скрыто от клиента
	WrongAnswers  StringArray `gorm:"type:jsonb;not null" json:"-"`
	CreatedAt     time.Time   `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (Question) TableName() string {
	return "questions"
}

// IsCorrect проверяет ответ точным сравнением текста.
// Сравнение по тексту авторитетно: порядок вариантов на клиенте не фиксирован.
func (q *Question) IsCorrect(selectedAnswer string) bool {
	return selectedAnswer == q.CorrectAnswer
}

// Options возвращает все варианты ответа: правильный плюс дистракторы.
// Порядок перемешан детерминированно по ID вопроса: одинаков при повторной
// рассылке и переподключении, но позиция правильного ответа не фиксирована
// и клиенту по нему ничего не выдает.
func (q *Question) Options() []string {
	options := make([]string, 0, 1+len(q.WrongAnswers))
	options = append(options, q.CorrectAnswer)
	options = append(options, q.WrongAnswers...)

	rng := rand.New(rand.NewSource(int64(q.ID)))
	rng.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})
	return options
}

// Validate проверяет инварианты вопроса: непустой текст, непустой правильный ответ,
// ровно три непустых дистрактора, не совпадающих с правильным ответом.
func (q *Question) Validate() error {
	if q.Text == "" {
		return errors.New("question text is required")
	}
	if q.CorrectAnswer == "" {
		return errors.New("correct answer is required")
	}
	if len(q.WrongAnswers) != WrongAnswersCount {
		return errors.New("question requires exactly three wrong answers")
	}
	for _, w := range q.WrongAnswers {
		if w == "" {
			return errors.New("wrong answer cannot be empty")
		}
		if w == q.CorrectAnswer {
			return errors.New("wrong answer duplicates the correct answer")
		}
	}
	return nil
}

// IsShared проверяет, принадлежит ли вопрос комнате
func (q *Question) IsShared() bool {
	return q.RoomID != nil
}
