package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/coderoom/internal/common"
	"github.com/dmitrijs2005/coderoom/internal/dbx"
	"github.com/dmitrijs2005/coderoom/internal/filetree"
	"github.com/dmitrijs2005/coderoom/internal/logging"
	"github.com/dmitrijs2005/coderoom/internal/server/models"
	"github.com/dmitrijs2005/coderoom/internal/server/repositories/repomanager"
)

// SnapshotStore keeps an exportable copy of each saved file tree.
type SnapshotStore interface {
	Put(ctx context.Context, projectID string, tree filetree.Tree) (string, error)
	PresignGet(ctx context.Context, projectID string) (string, error)
}

// ProjectService manages projects, their members and their file trees.
//
// File trees are replaced wholesale with no version check: concurrent
// savers race and the last write wins.
type ProjectService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	snapshots   SnapshotStore
	logger      logging.Logger
}

func NewProjectService(db *sql.DB, m repomanager.RepositoryManager, snapshots SnapshotStore, logger logging.Logger) *ProjectService {
	return &ProjectService{
		db:          db,
		repomanager: m,
		snapshots:   snapshots,
		logger:      logger.With("module", "projects"),
	}
}

func invalidProjectID() error {
	v := &common.ValidationError{}
	v.Add("projectId", "Invalid projectId")
	return v
}

// Create makes a project owned by callerID. Names are trimmed and keep
// their case; a taken name yields common.ErrorAlreadyExists.
func (s *ProjectService) Create(ctx context.Context, callerID, name string) (*models.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		v := &common.ValidationError{}
		v.Add("name", "Name is required")
		return nil, v
	}

	var project *models.Project
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Projects(tx)

		p, err := repo.Create(ctx, name)
		if err != nil {
			return err
		}
		if err := repo.AddMember(ctx, p.ID, callerID); err != nil {
			return err
		}
		p.Users = []string{callerID}
		project = p
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating project: %w", err)
	}

	s.logger.Info(ctx, "project created", "project", project.ID, "user", callerID)
	return project, nil
}

// All lists the projects callerID is a member of.
func (s *ProjectService) All(ctx context.Context, callerID string) ([]models.Project, error) {
	projects, err := s.repomanager.Projects(s.db).ListByMember(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("error listing projects: %w", err)
	}
	return projects, nil
}

// AddUsers adds userIDs to the project set-wise. The caller must already
// be a member, otherwise common.ErrNotProjectMember.
func (s *ProjectService) AddUsers(ctx context.Context, callerID, projectID string, userIDs []string) (*models.Project, error) {
	if !validID(projectID) {
		return nil, invalidProjectID()
	}
	if len(userIDs) == 0 {
		v := &common.ValidationError{}
		v.Add("users", "Users must be an array of strings")
		return nil, v
	}
	for _, id := range userIDs {
		if !validID(id) {
			v := &common.ValidationError{}
			v.Add("users", "Invalid userId(s) in users array")
			return nil, v
		}
	}

	var project *models.Project
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Projects(tx)

		member, err := repo.IsMember(ctx, projectID, callerID)
		if err != nil {
			return err
		}
		if !member {
			return common.ErrNotProjectMember
		}

		for _, id := range userIDs {
			if err := repo.AddMember(ctx, projectID, id); err != nil {
				return err
			}
		}

		project, err = repo.GetByID(ctx, projectID)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrNotProjectMember) || errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("error adding users: %w", err)
	}

	return project, nil
}

// GetByID returns the bare project. It is the lookup used by the realtime
// handshake.
func (s *ProjectService) GetByID(ctx context.Context, projectID string) (*models.Project, error) {
	if !validID(projectID) {
		return nil, invalidProjectID()
	}
	return s.repomanager.Projects(s.db).GetByID(ctx, projectID)
}

// Get returns the project with members resolved to user records.
func (s *ProjectService) Get(ctx context.Context, projectID string) (*models.ProjectDetails, error) {
	project, err := s.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	members, err := s.repomanager.Projects(s.db).ListMembers(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("error loading members: %w", err)
	}

	return &models.ProjectDetails{
		ID:       project.ID,
		Name:     project.Name,
		Users:    members,
		FileTree: project.FileTree,
	}, nil
}

// UpdateFileTree replaces the stored tree. When snapshots are enabled a copy
// is uploaded as well; a failed upload is logged and does not fail the save.
func (s *ProjectService) UpdateFileTree(ctx context.Context, projectID string, tree filetree.Tree) (*models.Project, error) {
	if !validID(projectID) {
		return nil, invalidProjectID()
	}
	if tree == nil {
		v := &common.ValidationError{}
		v.Add("fileTree", "File tree is required")
		return nil, v
	}
	if err := tree.Validate(); err != nil {
		v := &common.ValidationError{}
		v.Add("fileTree", err.Error())
		return nil, v
	}

	project, err := s.repomanager.Projects(s.db).UpdateFileTree(ctx, projectID, tree)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("error updating file tree: %w", err)
	}

	if key, err := s.snapshots.Put(ctx, projectID, tree); err != nil {
		s.logger.Warn(ctx, "snapshot upload failed", "project", projectID, "error", err)
	} else if key != "" {
		s.logger.Debug(ctx, "snapshot stored", "project", projectID, "key", key)
	}

	return project, nil
}

// Delete removes the project and its memberships.
func (s *ProjectService) Delete(ctx context.Context, projectID string) error {
	if !validID(projectID) {
		return invalidProjectID()
	}
	if err := s.repomanager.Projects(s.db).Delete(ctx, projectID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return err
		}
		return fmt.Errorf("error deleting project: %w", err)
	}
	s.logger.Info(ctx, "project deleted", "project", projectID)
	return nil
}

// ExportURL returns a short-lived download link for the latest snapshot.
func (s *ProjectService) ExportURL(ctx context.Context, projectID string) (string, error) {
	if _, err := s.GetByID(ctx, projectID); err != nil {
		return "", err
	}
	url, err := s.snapshots.PresignGet(ctx, projectID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", err
		}
		return "", fmt.Errorf("error presigning export: %w", err)
	}
	return url, nil
}
