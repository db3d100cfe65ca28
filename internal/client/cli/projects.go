package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/dmitrijs2005/coderoom/internal/aireply"
	"github.com/dmitrijs2005/coderoom/internal/client/models"
	"github.com/dmitrijs2005/coderoom/internal/client/sandbox"
	"github.com/dmitrijs2005/coderoom/internal/client/workspace"
)

func (a *App) table(header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(a.out)
	t.SetHeader(header)
	t.SetAutoWrapText(false)
	return t
}

func memberLabels(users []models.Member) string {
	labels := make([]string, 0, len(users))
	for _, u := range users {
		labels = append(labels, u.Label())
	}
	return strings.Join(labels, ", ")
}

// Projects lists the caller's projects.
func (a *App) Projects(ctx context.Context) error {
	projects, err := a.api.Projects(ctx)
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		printlnFn("No projects yet, try: create <name>")
		return nil
	}

	t := a.table("ID", "Name", "Members", "Files")
	for _, p := range projects {
		t.Append([]string{p.ID, p.Name, memberLabels(p.Users), strconv.Itoa(len(p.FileTree.Paths()))})
	}
	t.Render()
	return nil
}

// Users lists everyone else, so their ids can be passed to adduser.
func (a *App) Users(ctx context.Context) error {
	users, err := a.api.Users(ctx)
	if err != nil {
		return err
	}

	t := a.table("ID", "Email")
	for _, u := range users {
		t.Append([]string{u.ID, u.Email})
	}
	t.Render()
	return nil
}

func (a *App) Create(ctx context.Context, name string) error {
	p, err := a.api.CreateProject(ctx, name)
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("Created %q (%s)", p.Name, p.ID))
	return nil
}

func (a *App) Delete(ctx context.Context, projectID string) error {
	if ws := a.workspace(); ws != nil && ws.ProjectID() == projectID {
		a.closeProject()
	}
	if err := a.api.DeleteProject(ctx, projectID); err != nil {
		return err
	}
	printlnFn("Deleted", projectID)
	return nil
}

// Open loads the project, joins its room and prepares a sandbox directory
// under the configured work dir. A previously open project is closed.
func (a *App) Open(ctx context.Context, projectID string) error {
	p, err := a.api.Project(ctx, projectID)
	if err != nil {
		return err
	}

	runner, err := sandbox.New(filepath.Join(a.config.WorkDir, p.ID), a.out, a.logger)
	if err != nil {
		return err
	}

	room, err := dialRoom(ctx, a.api.BaseURL(), a.api.Token(), p.ID)
	if err != nil {
		return err
	}

	a.closeProject()

	ws := workspace.New(*p, a.api, runner, a.logger)
	listened := make(chan struct{})

	a.mu.Lock()
	a.ws = ws
	a.room = room
	a.runner = runner
	a.listened = listened
	a.mu.Unlock()

	go a.listen(room, ws, listened)

	printlnFn(fmt.Sprintf("Opened %q: %d files, members: %s", p.Name, len(p.FileTree.Paths()), memberLabels(p.Users)))
	return nil
}

// Leave closes the open project. Unsaved edits are dropped.
func (a *App) Leave(ctx context.Context) error {
	if ws := a.workspace(); ws != nil && ws.Dirty() {
		printlnFn("Discarding unsaved changes")
	}
	a.closeProject()
	return nil
}

func (a *App) closeProject() {
	a.mu.Lock()
	room, runner, listened := a.room, a.runner, a.listened
	a.ws, a.room, a.runner, a.listened = nil, nil, nil, nil
	a.mu.Unlock()

	if runner != nil {
		runner.Stop()
	}
	if room != nil {
		_ = room.Close()
		<-listened
	}
}

func (a *App) AddUsers(ctx context.Context, userIDs []string) error {
	ws := a.workspace()
	p, err := a.api.AddUsers(ctx, ws.ProjectID(), userIDs)
	if err != nil {
		return err
	}
	printlnFn("Members:", memberLabels(p.Users))
	return nil
}

// Ask sends a one-off prompt to the AI passthrough and prints the shaped
// answer. Nothing is posted to a room.
func (a *App) Ask(ctx context.Context, prompt string) error {
	raw, err := a.api.Generate(ctx, prompt)
	if err != nil {
		return err
	}
	a.printReply("AI", aireply.Shape(raw))
	return nil
}
