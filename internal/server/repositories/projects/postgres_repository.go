// Package projects persists projects, their members and their file trees.
package projects

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/coderoom/internal/common"
	"github.com/dmitrijs2005/coderoom/internal/dbx"
	"github.com/dmitrijs2005/coderoom/internal/filetree"
	"github.com/dmitrijs2005/coderoom/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// memberIDs aggregates member ids in join order as one comma separated column.
const memberIDs = `COALESCE((SELECT string_agg(m.user_id::text, ',' ORDER BY m.added_at, m.user_id)
		   FROM project_members m WHERE m.project_id = p.id), '')`

// Create inserts an empty project. A taken name yields common.ErrorAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, name string) (*models.Project, error) {
	query :=
		`INSERT INTO projects (name)
		 VALUES ($1)
		 RETURNING id, name, file_tree, created_at, updated_at
		 `

	p := &models.Project{Users: []string{}}
	err := r.db.QueryRowContext(ctx, query, name).
		Scan(&p.ID, &p.Name, &p.FileTree, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return p, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	query :=
		`SELECT p.id, p.name, p.file_tree, p.created_at, p.updated_at, ` + memberIDs + `
		 FROM projects p
		 WHERE p.id = $1
		 `

	p, err := scanProject(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return p, nil
}

// ListByMember returns the projects userID belongs to, oldest first.
func (r *PostgresRepository) ListByMember(ctx context.Context, userID string) ([]models.Project, error) {
	query :=
		`SELECT p.id, p.name, p.file_tree, p.created_at, p.updated_at, ` + memberIDs + `
		 FROM projects p
		 JOIN project_members pm ON pm.project_id = p.id
		 WHERE pm.user_id = $1
		 ORDER BY p.created_at, p.id
		 `

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) ListMembers(ctx context.Context, projectID string) ([]models.User, error) {
	query :=
		`SELECT u.id, u.name, u.email
		 FROM project_members pm
		 JOIN users u ON u.id = pm.user_id
		 WHERE pm.project_id = $1
		 ORDER BY pm.added_at, u.id
		 `

	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.User, 0)
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) IsMember(ctx context.Context, projectID, userID string) (bool, error) {
	query :=
		`SELECT EXISTS (SELECT 1 FROM project_members WHERE project_id = $1 AND user_id = $2)`

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, projectID, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

// AddMember is idempotent. An unknown project or user yields common.ErrorNotFound.
func (r *PostgresRepository) AddMember(ctx context.Context, projectID, userID string) error {
	query :=
		`INSERT INTO project_members (project_id, user_id)
		 VALUES ($1, $2)
		 ON CONFLICT (project_id, user_id) DO NOTHING
		 `

	if _, err := r.db.ExecContext(ctx, query, projectID, userID); err != nil {
		if dbx.IsForeignKeyViolation(err) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// UpdateFileTree replaces the stored tree wholesale.
func (r *PostgresRepository) UpdateFileTree(ctx context.Context, id string, tree filetree.Tree) (*models.Project, error) {
	query :=
		`UPDATE projects p SET file_tree = $2, updated_at = now()
		 WHERE p.id = $1
		 RETURNING p.id, p.name, p.file_tree, p.created_at, p.updated_at, ` + memberIDs + `
		 `

	p, err := scanProject(r.db.QueryRowContext(ctx, query, id, tree))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return p, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(s scanner) (*models.Project, error) {
	p := &models.Project{}
	var members string
	if err := s.Scan(&p.ID, &p.Name, &p.FileTree, &p.CreatedAt, &p.UpdatedAt, &members); err != nil {
		return nil, err
	}
	p.Users = splitIDs(members)
	return p, nil
}

func splitIDs(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}
