package repositories

import (
	"errors"
	"time"

	"github.com/mutalechilando/DigitalWalletBackend/internal/models"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("user already exists")
)

// UserRepository defines user and token-blacklist persistence.
type UserRepository interface {
	// CreateWithAccount creates the user and provisions their single
	// zero-balance account in one atomic unit.
	CreateWithAccount(user *models.User) (*models.Account, error)
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByUsername(username string) (*models.User, error)

	BlacklistToken(token string, expiresAt time.Time) error
	IsTokenBlacklisted(token string) (bool, error)
}
