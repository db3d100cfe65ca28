// Package workspace keeps the client-side mirror of one project: its file
// tree, the file being edited and the run commands last suggested by the
// AI bot.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/coderoom/internal/aireply"
	"github.com/dmitrijs2005/coderoom/internal/client/models"
	"github.com/dmitrijs2005/coderoom/internal/client/realtime"
	"github.com/dmitrijs2005/coderoom/internal/filetree"
	"github.com/dmitrijs2005/coderoom/internal/logging"
)

var ErrNoFileOpen = errors.New("no file is open")

// Saver persists a whole tree.
type Saver interface {
	UpdateFileTree(ctx context.Context, projectID string, tree filetree.Tree) (*models.Project, error)
}

// Mounter receives every tree that replaces the local one.
type Mounter interface {
	Mount(tree filetree.Tree) error
}

// Workspace is safe for concurrent use; room messages are applied from
// the socket goroutine while the user edits.
type Workspace struct {
	projectID string
	saver     Saver
	sandbox   Mounter
	logger    logging.Logger

	mu      sync.Mutex
	project models.Project
	tree    filetree.Tree
	open    string
	dirty   bool
	build   *aireply.Command
	start   *aireply.Command
}

// New mirrors project. sandbox may be nil.
func New(project models.Project, saver Saver, sandbox Mounter, logger logging.Logger) *Workspace {
	tree := project.FileTree
	if tree == nil {
		tree = filetree.Tree{}
	}
	return &Workspace{
		projectID: project.ID,
		saver:     saver,
		sandbox:   sandbox,
		logger:    logger.With("module", "workspace", "project", project.ID),
		project:   project,
		tree:      tree,
	}
}

func (w *Workspace) ProjectID() string { return w.projectID }

// Project is the project as last loaded or saved.
func (w *Workspace) Project() models.Project {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.project
}

// Tree is the current tree. Trees are never mutated in place, so the
// result is safe to keep.
func (w *Workspace) Tree() filetree.Tree {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tree
}

// Dirty reports unsaved changes.
func (w *Workspace) Dirty() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dirty
}

// Open selects the file at path and returns its contents.
func (w *Workspace) Open(path string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, ok := w.tree.Get(path)
	if !ok {
		return "", fmt.Errorf("open %q: %w", path, filetree.ErrNotAFile)
	}
	w.open = path
	return f.Contents, nil
}

// Current is the open file path, "" when none.
func (w *Workspace) Current() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.open
}

// Edit replaces the contents of an existing file. Directories and
// missing paths are rejected with filetree.ErrNotAFile.
func (w *Workspace) Edit(path, contents string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	next, err := w.tree.Set(path, contents)
	if err != nil {
		return fmt.Errorf("edit %q: %w", path, err)
	}
	w.tree = next
	w.dirty = true
	return nil
}

// EditCurrent edits the open file.
func (w *Workspace) EditCurrent(contents string) error {
	path := w.Current()
	if path == "" {
		return ErrNoFileOpen
	}
	return w.Edit(path, contents)
}

// Save sends the complete tree to the server, replacing its copy.
func (w *Workspace) Save(ctx context.Context) error {
	tree := w.Tree()

	p, err := w.saver.UpdateFileTree(ctx, w.projectID, tree)
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.project.Name = p.Name
	if p.Users != nil {
		w.project.Users = p.Users
	}
	if w.tree.Equal(tree) {
		w.dirty = false
	}
	w.project.FileTree = tree
	return nil
}

// Apply folds a room message into the workspace and returns how it should
// be shown. Only AI messages are shaped; a tree they carry replaces the
// local one wholesale and is mounted into the sandbox. A mount failure is
// returned alongside the reply, the tree is replaced regardless.
func (w *Workspace) Apply(msg realtime.Message) (aireply.Reply, error) {
	if !msg.FromAI() {
		return aireply.Reply{Raw: msg.Text, Text: msg.Text}, nil
	}

	reply := aireply.Shape(msg.Text)

	w.mu.Lock()
	if reply.BuildCommand != nil {
		w.build = reply.BuildCommand
	}
	if reply.StartCommand != nil {
		w.start = reply.StartCommand
	}
	if reply.FileTree == nil {
		w.mu.Unlock()
		return reply, nil
	}
	w.tree = reply.FileTree
	w.dirty = true
	if _, ok := w.tree.Get(w.open); !ok {
		w.open = ""
	}
	tree := w.tree
	w.mu.Unlock()

	if w.sandbox == nil {
		return reply, nil
	}
	if err := w.sandbox.Mount(tree); err != nil {
		w.logger.Warn(context.Background(), "mount failed", "error", err)
		return reply, fmt.Errorf("mount: %w", err)
	}
	return reply, nil
}

// Mount pushes the current tree into the sandbox.
func (w *Workspace) Mount() error {
	if w.sandbox == nil {
		return nil
	}
	return w.sandbox.Mount(w.Tree())
}

// Commands returns the install and start argv last suggested by the AI;
// nil means the runner default.
func (w *Workspace) Commands() (install, start []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.build.Argv(), w.start.Argv()
}
