package projects

import (
	"context"

	"github.com/dmitrijs2005/coderoom/internal/filetree"
	"github.com/dmitrijs2005/coderoom/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, name string) (*models.Project, error)
	GetByID(ctx context.Context, id string) (*models.Project, error)
	ListByMember(ctx context.Context, userID string) ([]models.Project, error)
	ListMembers(ctx context.Context, projectID string) ([]models.User, error)
	IsMember(ctx context.Context, projectID, userID string) (bool, error)
	AddMember(ctx context.Context, projectID, userID string) error
	UpdateFileTree(ctx context.Context, id string, tree filetree.Tree) (*models.Project, error)
	Delete(ctx context.Context, id string) error
}
