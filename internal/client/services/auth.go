// Package services contains application services for the coderoom client.
// This file defines the authentication service: register, login, session
// restore from the token file, and logout.
package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dmitrijs2005/coderoom/internal/client/client"
	"github.com/dmitrijs2005/coderoom/internal/client/models"
	"github.com/dmitrijs2005/coderoom/internal/common"
	"github.com/dmitrijs2005/coderoom/internal/filex"
)

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - Register / Login: authenticate against the server and persist the token.
//   - Restore: reuse a saved token if the server still accepts it.
//   - Logout: revoke the token server side and delete the saved copy.
//
// All methods must honor context cancellation/timeouts.
type AuthService interface {
	Register(ctx context.Context, name, email string, password []byte) (*models.User, error)
	Login(ctx context.Context, email string, password []byte) (*models.User, error)
	Restore(ctx context.Context) (*models.User, error)
	Logout(ctx context.Context) error
}

// authService is the concrete AuthService backed by a remote Client and a
// token file.
type authService struct {
	client    client.Client
	tokenFile string
}

// NewAuthService constructs an AuthService bound to the given API client
// and token file path.
func NewAuthService(c client.Client, tokenFile string) AuthService {
	return &authService{client: c, tokenFile: tokenFile}
}

func (a *authService) Register(ctx context.Context, name, email string, password []byte) (*models.User, error) {
	s, err := a.client.Register(ctx, name, email, string(password))
	if err != nil {
		return nil, fmt.Errorf("register error: %w", err)
	}
	if err := a.saveToken(s.Token); err != nil {
		return nil, err
	}
	return &s.User, nil
}

func (a *authService) Login(ctx context.Context, email string, password []byte) (*models.User, error) {
	s, err := a.client.Login(ctx, email, string(password))
	if err != nil {
		return nil, fmt.Errorf("login error: %w", err)
	}
	if err := a.saveToken(s.Token); err != nil {
		return nil, err
	}
	return &s.User, nil
}

// Restore loads the saved token and checks it with the profile route. A
// token the server rejects is deleted; no saved token yields
// client.ErrNotLoggedIn.
func (a *authService) Restore(ctx context.Context) (*models.User, error) {
	b, err := os.ReadFile(a.tokenFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, client.ErrNotLoggedIn
		}
		return nil, fmt.Errorf("token file: %w", err)
	}
	token := strings.TrimSpace(string(b))
	if token == "" {
		return nil, client.ErrNotLoggedIn
	}

	a.client.SetToken(token)
	u, err := a.client.Profile(ctx)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			a.client.SetToken("")
			_ = a.clearToken()
			return nil, client.ErrNotLoggedIn
		}
		return nil, err
	}
	return u, nil
}

// Logout always removes the saved token, even when the server call fails.
func (a *authService) Logout(ctx context.Context) error {
	err := a.client.Logout(ctx)
	if cerr := a.clearToken(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func (a *authService) saveToken(token string) error {
	if err := filex.WriteFile(a.tokenFile, []byte(token), 0o600); err != nil {
		return fmt.Errorf("token saving error: %w", err)
	}
	return nil
}

func (a *authService) clearToken() error {
	if err := os.Remove(a.tokenFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
