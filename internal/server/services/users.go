// Package services contains server-side business logic: accounts and
// sessions in UserService, projects and their file trees in ProjectService.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/coderoom/internal/common"
	"github.com/dmitrijs2005/coderoom/internal/server/auth"
	"github.com/dmitrijs2005/coderoom/internal/server/config"
	"github.com/dmitrijs2005/coderoom/internal/server/models"
	"github.com/dmitrijs2005/coderoom/internal/server/repositories/repomanager"
	"golang.org/x/crypto/bcrypt"
)

// Revoker invalidates a session token before its natural expiry.
type Revoker interface {
	Revoke(ctx context.Context, token string, claims *auth.Claims) error
}

// RegisterInput is the body of a registration request.
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginInput is the body of a login request.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserService handles registration, login, logout and the user directory.
type UserService struct {
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	revoker       Revoker
	jwtSecret     []byte
	tokenValidity time.Duration
	hashCost      int
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, revoker Revoker, cfg *config.Config) *UserService {
	return &UserService{
		db:            db,
		repomanager:   m,
		revoker:       revoker,
		jwtSecret:     []byte(cfg.SecretKey),
		tokenValidity: cfg.TokenValidityDuration,
		hashCost:      bcrypt.DefaultCost,
	}
}

func (in RegisterInput) validate() error {
	v := &common.ValidationError{}
	if !minLen(in.Name, 3) {
		v.Add("name", "Name must be at least 3 characters long")
	}
	if !validEmail(in.Email) {
		v.Add("email", "Email must be a valid email address")
	}
	if !minLen(in.Password, 8) {
		v.Add("password", "password must be at least 8 characters long")
	}
	return v.OrNil()
}

func (in LoginInput) validate() error {
	v := &common.ValidationError{}
	if !validEmail(in.Email) {
		v.Add("email", "Email must be a valid email address")
	}
	if !minLen(in.Password, 3) {
		v.Add("password", "Password must be at least 3 characters long")
	}
	return v.OrNil()
}

// Register creates the account and returns it with a fresh session token.
// A taken email yields common.ErrorAlreadyExists.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, string, error) {
	in.Email = normalizeEmail(in.Email)
	if err := in.validate(); err != nil {
		return nil, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, "", fmt.Errorf("error hashing password: %w", err)
	}

	user := &models.User{Name: in.Name, Email: in.Email, PasswordHash: string(hash)}
	u, err := s.repomanager.Users(s.db).Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("error creating user: %w", err)
	}

	token, err := auth.GenerateToken(u.ID, u.Email, s.jwtSecret, s.tokenValidity)
	if err != nil {
		return nil, "", common.ErrorInternal
	}
	return u, token, nil
}

// Login verifies the password. Unknown emails and wrong passwords both
// yield common.ErrorUnauthorized.
func (s *UserService) Login(ctx context.Context, in LoginInput) (*models.User, string, error) {
	in.Email = normalizeEmail(in.Email)
	if err := in.validate(); err != nil {
		return nil, "", err
	}

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, "", common.ErrorUnauthorized
		}
		return nil, "", fmt.Errorf("error loading user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, "", common.ErrorUnauthorized
	}

	token, err := auth.GenerateToken(user.ID, user.Email, s.jwtSecret, s.tokenValidity)
	if err != nil {
		return nil, "", common.ErrorInternal
	}
	return user, token, nil
}

// Logout revokes the presented token for the rest of its validity.
func (s *UserService) Logout(ctx context.Context, token string, claims *auth.Claims) error {
	if err := s.revoker.Revoke(ctx, token, claims); err != nil {
		return fmt.Errorf("error revoking token: %w", err)
	}
	return nil
}

// Directory lists every user except the caller.
func (s *UserService) Directory(ctx context.Context, callerID string) ([]models.UserSummary, error) {
	users, err := s.repomanager.Users(s.db).ListExcept(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	return users, nil
}
