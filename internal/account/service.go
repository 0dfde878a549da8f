// Package account implements registration, login and profile management.
package account

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"paper-trade-go/internal/config"
	"paper-trade-go/internal/models"
	"paper-trade-go/internal/validate"
)

// Service carries the dependencies for account operations.
type Service struct {
	logger *zap.Logger
	db     *gorm.DB
	cfg    *config.Trading
}

// NewService creates an account service.
func NewService(logger *zap.Logger, db *gorm.DB, cfg *config.Trading) *Service {
	return &Service{logger: logger, db: db, cfg: cfg}
}

// Register validates the submitted fields, creates the user with the
// starting cash balance and returns the stored record. Username and email
// are lower-cased before storage; duplicates fail with a conflict error
// backed by the unique indexes, not just the pre-check.
func (s *Service) Register(username, email, password string) (*models.User, error) {
	if err := validate.Username(username); err != nil {
		return nil, err
	}
	if err := validate.Email(strings.ToLower(email)); err != nil {
		return nil, err
	}
	if err := validate.Password(password); err != nil {
		return nil, err
	}

	username = strings.ToLower(username)
	email = strings.ToLower(email)

	// Friendly pre-checks so the user learns which field collided. The
	// unique indexes remain the actual guarantee against a concurrent
	// registration slipping past these.
	var count int64
	if err := s.db.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if count > 0 {
		return nil, ErrUsernameTaken
	}
	if err := s.db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		Username:            username,
		Email:               email,
		PasswordHash:        string(hash),
		Cash:                decimal.NewFromFloat(s.cfg.StartingCash),
		TotalSpendFees:      decimal.Zero,
		TotalIncomeBusiness: decimal.Zero,
	}
	if err := s.db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("Registered new user", zap.String("username", username))
	return &user, nil
}

// Login authenticates by lowered email and password. An unknown email and a
// wrong password return the same error.
func (s *Service) Login(email, password string) (*models.User, error) {
	email = strings.ToLower(email)
	if err := validate.Email(email); err != nil {
		return nil, err
	}
	if err := validate.Password(password); err != nil {
		return nil, err
	}

	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBadCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrBadCredentials
	}

	return &user, nil
}

// ProfileView is what the profile page renders.
type ProfileView struct {
	Username       string
	Email          string
	Cash           decimal.Decimal
	TotalSpendFees decimal.Decimal
	HouseIncome    decimal.Decimal
}

// Profile returns the user's balances plus the house account's cumulative
// fee income.
func (s *Service) Profile(username string) (*ProfileView, error) {
	user, err := s.byUsername(username)
	if err != nil {
		return nil, err
	}

	house, err := s.byUsername(s.cfg.HouseAccount)
	if err != nil {
		return nil, err
	}

	return &ProfileView{
		Username:       user.Username,
		Email:          user.Email,
		Cash:           user.Cash,
		TotalSpendFees: user.TotalSpendFees,
		HouseIncome:    house.TotalIncomeBusiness,
	}, nil
}

// UpdateProfile changes username and/or email. Submitting the current
// values is a no-op, reported through changed=false rather than an error.
// A collision with a different existing account is a conflict. Positions
// are keyed by username, so they are re-pointed in the same transaction.
func (s *Service) UpdateProfile(current, newUsername, newEmail string) (changed bool, err error) {
	if err := validate.Username(newUsername); err != nil {
		return false, err
	}
	newUsername = strings.ToLower(newUsername)
	newEmail = strings.ToLower(newEmail)
	if err := validate.Email(newEmail); err != nil {
		return false, err
	}

	user, err := s.byUsername(current)
	if err != nil {
		return false, err
	}

	if user.Username == newUsername && user.Email == newEmail {
		return false, nil
	}

	// Conflict check against *other* accounts: the user may keep one field
	// and change the other.
	var other models.User
	err = s.db.Where("username = ? AND id <> ?", newUsername, user.ID).First(&other).Error
	if err == nil {
		return false, ErrUsernameTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	err = s.db.Where("email = ? AND id <> ?", newEmail, user.ID).First(&other).Error
	if err == nil {
		return false, ErrEmailTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("failed to check email: %w", err)
	}

	oldUsername := user.Username
	err = s.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{"username": newUsername, "email": newEmail}
		if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		if err := tx.Model(&models.Position{}).Where("owner = ?", oldUsername).
			Update("owner", newUsername).Error; err != nil {
			return fmt.Errorf("failed to re-point positions: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, ErrUsernameTaken
		}
		return false, err
	}

	s.logger.Info("Profile updated",
		zap.String("old_username", oldUsername),
		zap.String("username", newUsername))
	return true, nil
}

func (s *Service) byUsername(username string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("username = ?", strings.ToLower(username)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up user %q: %w", username, err)
	}
	return &user, nil
}
