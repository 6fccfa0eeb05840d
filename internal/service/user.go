package service

import (
	"CamKeeper/internal/model"
	"CamKeeper/internal/repo"
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrLoginTaken         = fmt.Errorf("login already taken: %w", ErrAlreadyExists)
	ErrInvalidCredentials = fmt.Errorf("invalid login or password: %w", ErrUnauthorized)
)

const (
	minLoginLen    = 3
	maxLoginLen    = 150
	minPasswordLen = 6
)

// UserService регистрация и вход пользователей.
type UserService struct {
	repo   repo.UserRepository
	admins map[string]struct{}
}

// NewUserService создаёт сервис. Логины из adminLogins получают is_superuser при регистрации.
func NewUserService(r repo.UserRepository, adminLogins ...string) *UserService {
	admins := make(map[string]struct{}, len(adminLogins))
	for _, l := range adminLogins {
		if l = strings.TrimSpace(l); l != "" {
			admins[l] = struct{}{}
		}
	}
	return &UserService{repo: r, admins: admins}
}

// Register создаёт пользователя с bcrypt-хэшем пароля.
func (s *UserService) Register(ctx context.Context, login, password string) (*model.User, error) {
	login = strings.TrimSpace(login)
	if l := len(login); l < minLoginLen || l > maxLoginLen {
		return nil, invalid("login", fmt.Sprintf("must be %d..%d characters", minLoginLen, maxLoginLen))
	}
	if len(password) < minPasswordLen {
		return nil, invalid("password", fmt.Sprintf("must be at least %d characters", minPasswordLen))
	}

	existing, err := s.repo.GetUserByLogin(ctx, login)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storeErr(err)
	}
	if existing != nil {
		return nil, ErrLoginTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	_, admin := s.admins[login]
	user, err := s.repo.CreateUser(ctx, &model.User{
		Login:       login,
		Password:    string(hash),
		IsSuperuser: admin,
	})
	if err != nil {
		// проигравший в гонке двух регистраций получает нарушение уникальности
		if taken, lookupErr := s.repo.GetUserByLogin(ctx, login); lookupErr == nil && taken != nil {
			return nil, ErrLoginTaken
		}
		return nil, storeErr(err)
	}
	return user, nil
}

// Login проверяет пару логин/пароль.
func (s *UserService) Login(ctx context.Context, login, password string) (*model.User, error) {
	user, err := s.repo.GetUserByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, storeErr(err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// GetByID возвращает пользователя по id.
func (s *UserService) GetByID(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	return user, nil
}
