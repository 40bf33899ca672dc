package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/yourusername/quizroom-api/internal/domain/entity"
	apperrors "github.com/yourusername/quizroom-api/internal/pkg/errors"
	"github.com/yourusername/quizroom-api/pkg/auth"
	"golang.org/x/crypto/bcrypt"
)

// MockUserRepoForAuth реализует repository.UserRepository
type MockUserRepoForAuth struct {
	mock.Mock
}

func (m *MockUserRepoForAuth) Create(user *entity.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUserRepoForAuth) GetByID(id uint) (*entity.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepoForAuth) GetByEmail(email string) (*entity.User, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepoForAuth) GetByUsername(username string) (*entity.User, error) {
	args := m.Called(username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepoForAuth) Update(user *entity.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUserRepoForAuth) AddGameResult(userID uint, score int) error { return nil }
func (m *MockUserRepoForAuth) GetTopPlayers(limit, offset int) ([]entity.User, int64, error) {
	return nil, 0, nil
}

func newAuthFixture(t *testing.T) (*AuthService, *MockUserRepoForAuth) {
	t.Helper()
	jwtService, err := auth.NewJWTService("test-secret-key", 1, 60)
	assert.NoError(t, err)
	userRepo := new(MockUserRepoForAuth)
	return NewAuthService(userRepo, jwtService), userRepo
}

func hashedUser(t *testing.T, password string) *entity.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	assert.NoError(t, err)
	return &entity.User{
		ID:       1,
		Username: "player",
		Email:    "player@example.com",
		Password: string(hash),
		Role:     entity.UserRoleUser,
	}
}

func TestAuthService_Register_Success(t *testing.T) {
	// Arrange
	service, userRepo := newAuthFixture(t)
	userRepo.On("GetByEmail", "new@example.com").Return(nil, apperrors.ErrNotFound)
	userRepo.On("GetByUsername", "newbie").Return(nil, apperrors.ErrNotFound)
	userRepo.On("Create", mock.AnythingOfType("*entity.User")).Run(func(args mock.Arguments) {
		args.Get(0).(*entity.User).ID = 7
	}).Return(nil)

	// Act
	user, err := service.Register("newbie", "new@example.com", "secret12")

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, uint(7), user.ID)
	assert.Equal(t, entity.UserRoleUser, user.Role)
	userRepo.AssertExpectations(t)
}

func TestAuthService_Register_EmailTaken(t *testing.T) {
	service, userRepo := newAuthFixture(t)
	userRepo.On("GetByEmail", "taken@example.com").Return(&entity.User{ID: 2}, nil)

	_, err := service.Register("newbie", "taken@example.com", "secret12")

	assert.ErrorIs(t, err, ErrEmailTaken)
	userRepo.AssertNotCalled(t, "Create", mock.Anything)
}

func TestAuthService_Register_UsernameTaken(t *testing.T) {
	service, userRepo := newAuthFixture(t)
	userRepo.On("GetByEmail", "new@example.com").Return(nil, apperrors.ErrNotFound)
	userRepo.On("GetByUsername", "taken").Return(&entity.User{ID: 2}, nil)

	_, err := service.Register("taken", "new@example.com", "secret12")

	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestAuthService_Login_Success(t *testing.T) {
	// Arrange
	service, userRepo := newAuthFixture(t)
	existing := hashedUser(t, "secret12")
	userRepo.On("GetByEmail", "player@example.com").Return(existing, nil)
	userRepo.On("Update", mock.AnythingOfType("*entity.User")).Return(nil)

	// Act
	user, token, err := service.Login("player@example.com", "secret12")

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, existing.ID, user.ID)
	assert.NotEmpty(t, token)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	service, userRepo := newAuthFixture(t)
	userRepo.On("GetByEmail", "player@example.com").Return(hashedUser(t, "secret12"), nil)

	_, _, err := service.Login("player@example.com", "wrong")

	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_Login_UnknownEmail(t *testing.T) {
	// Неизвестный email дает ту же ошибку, что и неверный пароль
	service, userRepo := newAuthFixture(t)
	userRepo.On("GetByEmail", "ghost@example.com").Return(nil, apperrors.ErrNotFound)

	_, _, err := service.Login("ghost@example.com", "secret12")

	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_UpdateProfile_UsernameTaken(t *testing.T) {
	service, userRepo := newAuthFixture(t)
	existing := hashedUser(t, "secret12")
	userRepo.On("GetByID", uint(1)).Return(existing, nil)
	userRepo.On("GetByUsername", "occupied").Return(&entity.User{ID: 2}, nil)

	occupied := "occupied"
	_, err := service.UpdateProfile(1, entity.ProfilePatch{Username: &occupied})

	assert.ErrorIs(t, err, ErrUsernameTaken)
	userRepo.AssertNotCalled(t, "Update", mock.Anything)
}

func TestAuthService_UpdateProfile_Success(t *testing.T) {
	// Arrange
	service, userRepo := newAuthFixture(t)
	existing := hashedUser(t, "secret12")
	userRepo.On("GetByID", uint(1)).Return(existing, nil)
	userRepo.On("GetByUsername", "renamed").Return(nil, apperrors.ErrNotFound)
	userRepo.On("Update", mock.AnythingOfType("*entity.User")).Return(nil)

	// Act
	renamed := "renamed"
	updated, err := service.UpdateProfile(1, entity.ProfilePatch{Username: &renamed})

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, "renamed", updated.Username)
	assert.Equal(t, existing.Email, updated.Email, "email не изменился")
}

func TestAuthService_Logout_InvalidatesTokens(t *testing.T) {
	// Arrange
	jwtService, err := auth.NewJWTService("test-secret-key", 1, 60)
	assert.NoError(t, err)
	userRepo := new(MockUserRepoForAuth)
	service := NewAuthService(userRepo, jwtService)

	user := hashedUser(t, "secret12")
	token, err := jwtService.GenerateToken(user)
	assert.NoError(t, err)

	// Act
	service.Logout(user.ID)

	// Assert: ранее выпущенный токен отклоняется
	_, err = jwtService.ParseToken(token)
	assert.ErrorIs(t, err, auth.ErrTokenInvalidated)
}
