// Package gate validates session tokens for every protected HTTP route and
// realtime handshake.
package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/coderoom/internal/common"
	"github.com/dmitrijs2005/coderoom/internal/server/auth"
	"github.com/dmitrijs2005/coderoom/internal/server/models"
	"github.com/dmitrijs2005/coderoom/internal/server/revocation"
	"github.com/google/uuid"
)

// ProjectFinder resolves the project a realtime connection asks for.
type ProjectFinder interface {
	GetByID(ctx context.Context, id string) (*models.Project, error)
}

type Gate struct {
	secret      []byte
	revocations revocation.Cache
	now         func() time.Time
}

func New(secret []byte, revocations revocation.Cache) *Gate {
	return &Gate{secret: secret, revocations: revocations, now: time.Now}
}

// Authenticate checks presence, revocation, then signature and expiry.
func (g *Gate) Authenticate(ctx context.Context, token string) (*auth.Claims, error) {
	if token == "" {
		return nil, common.ErrTokenMissing
	}

	revoked, err := g.revocations.IsRevoked(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("revocation lookup: %w", err)
	}
	if revoked {
		return nil, common.ErrTokenRevoked
	}

	return auth.ParseToken(token, g.secret)
}

// ValidProjectID reports whether id has project id shape.
func ValidProjectID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// AuthenticateProject admits a realtime connection. The project id shape
// is checked before any lookup, and the project must exist before the token
// is looked at, so clients see the same rejection order as before.
func (g *Gate) AuthenticateProject(ctx context.Context, token, projectID string, projects ProjectFinder) (*auth.Claims, *models.Project, error) {
	if !ValidProjectID(projectID) {
		return nil, nil, common.ErrInvalidProjectID
	}

	project, err := projects.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil, common.ErrInvalidProjectID
		}
		return nil, nil, fmt.Errorf("project lookup: %w", err)
	}

	claims, err := g.Authenticate(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	return claims, project, nil
}

// Revoke blacklists token for the rest of its validity, capped at 24h.
func (g *Gate) Revoke(ctx context.Context, token string, claims *auth.Claims) error {
	ttl := revocation.MaxTTL
	if claims != nil {
		ttl = claims.Remaining(g.now())
	}
	return g.revocations.Revoke(ctx, token, ttl)
}

// IsAuthError reports whether err is one of the token rejections.
func IsAuthError(err error) bool {
	return errors.Is(err, common.ErrTokenMissing) ||
		errors.Is(err, common.ErrTokenRevoked) ||
		errors.Is(err, common.ErrInvalidToken) ||
		errors.Is(err, common.ErrTokenExpired) ||
		errors.Is(err, common.ErrorUnauthorized)
}
