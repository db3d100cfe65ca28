package httpapi

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/coderoom/internal/common"
	"github.com/dmitrijs2005/coderoom/internal/filetree"
	"github.com/dmitrijs2005/coderoom/internal/server/auth"
	"github.com/dmitrijs2005/coderoom/internal/server/models"
	"github.com/dmitrijs2005/coderoom/internal/server/services"
)

type revokeFunc func(ctx context.Context, token string, claims *auth.Claims) error

type fakeUsers struct {
	registerErr error
	loginErr    error
	revoke      revokeFunc
	directory   []models.UserSummary
	lastCaller  string
}

func (f *fakeUsers) Register(_ context.Context, in services.RegisterInput) (*models.User, string, error) {
	if f.registerErr != nil {
		return nil, "", f.registerErr
	}
	return &models.User{ID: "u-new", Name: in.Name, Email: in.Email}, "tok-new", nil
}

func (f *fakeUsers) Login(_ context.Context, in services.LoginInput) (*models.User, string, error) {
	if f.loginErr != nil {
		return nil, "", f.loginErr
	}
	return &models.User{ID: "u1", Email: in.Email}, "tok-login", nil
}

func (f *fakeUsers) Logout(ctx context.Context, token string, claims *auth.Claims) error {
	return f.revoke(ctx, token, claims)
}

func (f *fakeUsers) Directory(_ context.Context, callerID string) ([]models.UserSummary, error) {
	f.lastCaller = callerID
	return f.directory, nil
}

type fakeProjects struct {
	projects map[string]*models.Project
	members  map[string][]models.User
	exportOK bool
	failAll  bool
}

func newFakeProjects() *fakeProjects {
	return &fakeProjects{projects: map[string]*models.Project{}, members: map[string][]models.User{}}
}

func (f *fakeProjects) Create(_ context.Context, callerID, name string) (*models.Project, error) {
	if name == "" {
		v := &common.ValidationError{}
		v.Add("name", "Name is required")
		return nil, v
	}
	for _, p := range f.projects {
		if p.Name == name {
			return nil, common.ErrorAlreadyExists
		}
	}
	p := &models.Project{ID: projectID, Name: name, Users: []string{callerID}, FileTree: filetree.Tree{}}
	f.projects[p.ID] = p
	return p, nil
}

func (f *fakeProjects) All(_ context.Context, callerID string) ([]models.Project, error) {
	if f.failAll {
		return nil, errors.New("db error: connection reset")
	}
	out := []models.Project{}
	for _, p := range f.projects {
		for _, u := range p.Users {
			if u == callerID {
				out = append(out, *p)
			}
		}
	}
	return out, nil
}

func (f *fakeProjects) AddUsers(_ context.Context, callerID, id string, userIDs []string) (*models.Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	member := false
	for _, u := range p.Users {
		member = member || u == callerID
	}
	if !member {
		return nil, common.ErrNotProjectMember
	}
	p.Users = append(p.Users, userIDs...)
	return p, nil
}

func (f *fakeProjects) Get(_ context.Context, id string) (*models.ProjectDetails, error) {
	p, ok := f.projects[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &models.ProjectDetails{ID: p.ID, Name: p.Name, Users: f.members[id], FileTree: p.FileTree}, nil
}

func (f *fakeProjects) UpdateFileTree(_ context.Context, id string, tree filetree.Tree) (*models.Project, error) {
	if tree == nil {
		v := &common.ValidationError{}
		v.Add("fileTree", "File tree is required")
		return nil, v
	}
	p, ok := f.projects[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	p.FileTree = tree
	return p, nil
}

func (f *fakeProjects) Delete(_ context.Context, id string) error {
	if _, ok := f.projects[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.projects, id)
	return nil
}

func (f *fakeProjects) ExportURL(_ context.Context, id string) (string, error) {
	if _, ok := f.projects[id]; !ok || !f.exportOK {
		return "", common.ErrorNotFound
	}
	return "https://s3.example/projects/" + id + "/filetree.json?sig=1", nil
}

type fakeGenerator struct {
	out string
	err error
}

func (f fakeGenerator) Generate(context.Context, string) (string, error) { return f.out, f.err }
