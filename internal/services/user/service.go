// Package user handles registration. Creating a user provisions their single
// zero-balance account in the same atomic unit, so no user ever exists
// without an account.
package user

import (
	"errors"

	"github.com/mutalechilando/DigitalWalletBackend/internal/models"
	"github.com/mutalechilando/DigitalWalletBackend/internal/repositories"
	"github.com/mutalechilando/DigitalWalletBackend/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailTaken    = errors.New("email already registered")
	ErrUsernameTaken = errors.New("username already taken")
)

type Service interface {
	Register(input *models.CreateUserInput) (*models.User, *models.Account, error)
	GetByID(id uint) (*models.User, error)
}

type service struct {
	repo repositories.UserRepository
}

func NewService(repo repositories.UserRepository) Service {
	if repo == nil {
		panic("user repository is required")
	}
	return &service{repo: repo}
}

func (s *service) Register(input *models.CreateUserInput) (*models.User, *models.Account, error) {
	if err := validation.Email(input.Email); err != nil {
		return nil, nil, err
	}
	if err := validation.Username(input.Username); err != nil {
		return nil, nil, err
	}
	if err := validation.Password(input.Password); err != nil {
		return nil, nil, err
	}

	if existing, _ := s.repo.GetByEmail(input.Email); existing != nil {
		return nil, nil, ErrEmailTaken
	}
	if existing, _ := s.repo.GetByUsername(input.Username); existing != nil {
		return nil, nil, ErrUsernameTaken
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}

	user := &models.User{
		Username: input.Username,
		Email:    input.Email,
		Password: string(hashed),
	}
	account, err := s.repo.CreateWithAccount(user)
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicateUser) {
			return nil, nil, ErrEmailTaken
		}
		return nil, nil, err
	}
	return user, account, nil
}

func (s *service) GetByID(id uint) (*models.User, error) {
	return s.repo.GetByID(id)
}
