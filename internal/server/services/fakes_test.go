package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/coderoom/internal/common"
	"github.com/dmitrijs2005/coderoom/internal/dbx"
	"github.com/dmitrijs2005/coderoom/internal/filetree"
	"github.com/dmitrijs2005/coderoom/internal/server/auth"
	"github.com/dmitrijs2005/coderoom/internal/server/models"
	"github.com/dmitrijs2005/coderoom/internal/server/repositories/projects"
	"github.com/dmitrijs2005/coderoom/internal/server/repositories/revocations"
	"github.com/dmitrijs2005/coderoom/internal/server/repositories/users"
	"github.com/google/uuid"
)

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

// store is an in-memory database shared by the fake repositories.
type store struct {
	mu       sync.Mutex
	users    map[string]*models.User
	projects map[string]*models.Project
	members  map[string][]string
	err      error
}

func newStore() *store {
	return &store{
		users:    map[string]*models.User{},
		projects: map[string]*models.Project{},
		members:  map[string][]string{},
	}
}

type fakeUsers struct{ s *store }

func (f fakeUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.err != nil {
		return nil, f.s.err
	}
	for _, existing := range f.s.users {
		if existing.Email == u.Email {
			return nil, common.ErrorAlreadyExists
		}
	}
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now()
	cp := *u
	f.s.users[u.ID] = &cp
	return u, nil
}

func (f fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.err != nil {
		return nil, f.s.err
	}
	for _, u := range f.s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	u, ok := f.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f fakeUsers) ListExcept(_ context.Context, id string) ([]models.UserSummary, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.err != nil {
		return nil, f.s.err
	}
	out := []models.UserSummary{}
	for _, u := range f.s.users {
		if u.ID != id {
			out = append(out, models.UserSummary{ID: u.ID, Email: u.Email})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

type fakeProjects struct{ s *store }

func (f fakeProjects) copyOf(p *models.Project) *models.Project {
	cp := *p
	cp.Users = append([]string{}, f.s.members[p.ID]...)
	return &cp
}

func (f fakeProjects) Create(_ context.Context, name string) (*models.Project, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.err != nil {
		return nil, f.s.err
	}
	for _, p := range f.s.projects {
		if p.Name == name {
			return nil, common.ErrorAlreadyExists
		}
	}
	p := &models.Project{ID: uuid.NewString(), Name: name, FileTree: filetree.Tree{}}
	f.s.projects[p.ID] = p
	return f.copyOf(p), nil
}

func (f fakeProjects) GetByID(_ context.Context, id string) (*models.Project, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	p, ok := f.s.projects[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return f.copyOf(p), nil
}

func (f fakeProjects) ListByMember(_ context.Context, userID string) ([]models.Project, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []models.Project{}
	for id, ms := range f.s.members {
		for _, m := range ms {
			if m == userID {
				out = append(out, *f.copyOf(f.s.projects[id]))
			}
		}
	}
	return out, nil
}

func (f fakeProjects) ListMembers(_ context.Context, projectID string) ([]models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := []models.User{}
	for _, id := range f.s.members[projectID] {
		if u, ok := f.s.users[id]; ok {
			out = append(out, models.User{ID: u.ID, Name: u.Name, Email: u.Email})
		}
	}
	return out, nil
}

func (f fakeProjects) IsMember(_ context.Context, projectID, userID string) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, m := range f.s.members[projectID] {
		if m == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeProjects) AddMember(_ context.Context, projectID, userID string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.projects[projectID]; !ok {
		return common.ErrorNotFound
	}
	for _, m := range f.s.members[projectID] {
		if m == userID {
			return nil
		}
	}
	f.s.members[projectID] = append(f.s.members[projectID], userID)
	return nil
}

func (f fakeProjects) UpdateFileTree(_ context.Context, id string, tree filetree.Tree) (*models.Project, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	p, ok := f.s.projects[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	b, _ := tree.Value()
	var stored filetree.Tree
	_ = stored.Scan(b)
	p.FileTree = stored
	return f.copyOf(p), nil
}

func (f fakeProjects) Delete(_ context.Context, id string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.projects[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.s.projects, id)
	delete(f.s.members, id)
	return nil
}

type fakeRepoManager struct{ s *store }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository              { return fakeUsers{m.s} }
func (m *fakeRepoManager) Projects(dbx.DBTX) projects.Repository        { return fakeProjects{m.s} }
func (m *fakeRepoManager) Revocations(dbx.DBTX) revocations.Repository  { return nil }

type fakeRevoker struct {
	tokens []string
	err    error
}

func (f *fakeRevoker) Revoke(_ context.Context, token string, _ *auth.Claims) error {
	if f.err != nil {
		return f.err
	}
	f.tokens = append(f.tokens, token)
	return nil
}

type fakeSnapshots struct {
	mu   sync.Mutex
	puts map[string]filetree.Tree
	err  error
	url  string
}

func (f *fakeSnapshots) Put(_ context.Context, id string, tree filetree.Tree) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if f.puts == nil {
		f.puts = map[string]filetree.Tree{}
	}
	f.puts[id] = tree
	return "projects/" + id + "/filetree.json", nil
}

func (f *fakeSnapshots) PresignGet(_ context.Context, id string) (string, error) {
	if f.url == "" {
		return "", common.ErrorNotFound
	}
	return f.url + id, nil
}
