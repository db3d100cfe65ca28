package client

import (
	"context"

	"github.com/dmitrijs2005/coderoom/internal/client/models"
	"github.com/dmitrijs2005/coderoom/internal/filetree"
)

// Client is the API surface the workspace and CLI use.
type Client interface {
	BaseURL() string
	Token() string
	SetToken(token string)

	Register(ctx context.Context, name, email, password string) (*models.Session, error)
	Login(ctx context.Context, email, password string) (*models.Session, error)
	Profile(ctx context.Context) (*models.User, error)
	Logout(ctx context.Context) error
	Users(ctx context.Context) ([]models.User, error)

	CreateProject(ctx context.Context, name string) (*models.Project, error)
	Projects(ctx context.Context) ([]models.Project, error)
	AddUsers(ctx context.Context, projectID string, userIDs []string) (*models.Project, error)
	Project(ctx context.Context, projectID string) (*models.Project, error)
	UpdateFileTree(ctx context.Context, projectID string, tree filetree.Tree) (*models.Project, error)
	DeleteProject(ctx context.Context, projectID string) error
	ExportURL(ctx context.Context, projectID string) (string, error)
	Download(ctx context.Context, url string) ([]byte, error)

	Generate(ctx context.Context, prompt string) (string, error)
}
