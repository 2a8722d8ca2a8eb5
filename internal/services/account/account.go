// Package account registers users and issues their access tokens.
package account

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/uaifestas/festas-go/internal/apperr"
	"github.com/uaifestas/festas-go/internal/auth"
	"github.com/uaifestas/festas-go/internal/authz"
	"github.com/uaifestas/festas-go/internal/config"
	"github.com/uaifestas/festas-go/internal/models"
	"github.com/uaifestas/festas-go/internal/store"
)

const minPasswordLength = 6

var errBadCredentials = apperr.Unauthorized("incorrect username or password")

type Service struct {
	config   *config.Config
	store    store.Store
	logger   *zap.Logger
	validate *validator.Validate
}

func NewService(cfg *config.Config, st store.Store, logger *zap.Logger) *Service {
	return &Service{
		config:   cfg,
		store:    st,
		logger:   logger,
		validate: validator.New(),
	}
}

type RegisterInput struct {
	Email    string
	Username string
	Password string
	Role     models.Role
}

// Session is the answer to a successful login.
type Session struct {
	Token     string       `json:"access_token"`
	TokenType string       `json:"token_type"`
	User      *models.User `json:"user"`
}

// Register creates a user. The role defaults to client.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, apperr.Validation("email", "must be a valid email address")
	}
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, apperr.Validation("username", "is required")
	}
	if len(in.Password) < minPasswordLength {
		return nil, apperr.Validation("password", "must have at least 6 characters")
	}
	role := in.Role
	if role == "" {
		role = models.RoleClient
	}
	if !role.Valid() {
		return nil, apperr.Validation("role", "must be one of admin, commissioner, client")
	}

	hashed, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Email:        email,
		Username:     username,
		PasswordHash: hashed,
		Role:         role,
	}
	err = s.store.Tx(ctx, func(tx store.Tx) error {
		return tx.CreateUser(&user)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", zap.Uint("user_id", user.ID), zap.String("role", string(user.Role)))
	return &user, nil
}

// Login checks the password of the user matching login by username or
// email and returns a signed token.
func (s *Service) Login(ctx context.Context, login, password string) (*Session, error) {
	var user *models.User
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		user, err = tx.GetUserByLogin(strings.TrimSpace(login))
		return err
	})
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, errBadCredentials
		}
		return nil, err
	}
	if !auth.VerifyPassword(password, user.PasswordHash) {
		return nil, errBadCredentials
	}

	token, err := auth.GenerateToken(s.config, user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, TokenType: "bearer", User: user}, nil
}

func (s *Service) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user *models.User
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		user, err = tx.GetUser(id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteUser removes the caller's own account. Sellers of record cannot be
// deleted.
func (s *Service) DeleteUser(ctx context.Context, id uint, p authz.Principal) error {
	if p.UserID != id {
		return apperr.Forbidden("you can only delete your own account")
	}

	err := s.store.Tx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetUser(id); err != nil {
			return err
		}
		n, err := tx.CountSalesBySeller(id)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.Conflict("user is the seller of record of existing sales")
		}
		return tx.DeleteUser(id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("user deleted", zap.Uint("user_id", id), zap.Uint("by", p.UserID))
	return nil
}
