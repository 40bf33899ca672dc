package entity

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Роли пользователей
const (
	UserRoleUser  = "user"
	UserRoleAdmin = "admin"
)

// User представляет пользователя системы
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:50;not null;unique" json:"username"`
	Email        string    `gorm:"size:320;not null;unique" json:"email"`
	Password     string    `gorm:"size:100;not null" json:"-"` // Скрыто от клиента
	Role         string    `gorm:"size:20;not null;default:'user'" json:"role"`
	TotalScore   int       `gorm:"not null;default:0" json:"total_score"`
	GamesPlayed  int       `gorm:"not null;default:0" json:"games_played"`
	LastSignedIn time.Time `json:"last_signed_in"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (User) TableName() string {
	return "users"
}

// BeforeSave хеширует пароль перед сохранением, только если он не является bcrypt-хешем
func (u *User) BeforeSave(tx *gorm.DB) error {
	// Хешируем, только если пароль задан и еще не захеширован
	// (bcrypt-хеши начинаются с "$2a$", "$2b$" или "$2y$")
	if u.Password != "" && !strings.HasPrefix(u.Password, "$2") {
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		u.Password = string(hashedPassword)
	}
	return nil
}

// CheckPassword проверяет соответствие пароля хешу
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}

// IsAdmin проверяет, является ли пользователь администратором
func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

// ProfilePatch описывает входящие поля обновления профиля.
// Nil-поле означает "не менять" — никакого динамического построения update-set.
type ProfilePatch struct {
	Username     *string
	Email        *string
	LastSignedIn *time.Time
}

// MergeProfile применяет патч к пользователю по детерминированной политике слияния
// и возвращает копию с итоговыми полями для сохранения.
func MergeProfile(existing User, patch ProfilePatch) User {
	merged := existing
	if patch.Username != nil && *patch.Username != "" {
		merged.Username = *patch.Username
	}
	if patch.Email != nil && *patch.Email != "" {
		merged.Email = *patch.Email
	}
	if patch.LastSignedIn != nil {
		merged.LastSignedIn = *patch.LastSignedIn
	} else {
		merged.LastSignedIn = time.Now()
	}
	return merged
}
