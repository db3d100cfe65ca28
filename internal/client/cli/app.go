package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/dmitrijs2005/coderoom/internal/client/client"
	"github.com/dmitrijs2005/coderoom/internal/client/config"
	"github.com/dmitrijs2005/coderoom/internal/client/models"
	"github.com/dmitrijs2005/coderoom/internal/client/realtime"
	"github.com/dmitrijs2005/coderoom/internal/client/sandbox"
	"github.com/dmitrijs2005/coderoom/internal/client/service"
	"github.com/dmitrijs2005/coderoom/internal/client/services"
	"github.com/dmitrijs2005/coderoom/internal/client/workspace"
	"github.com/dmitrijs2005/coderoom/internal/logging"
)

// roomConn is the part of *realtime.Conn the App uses.
type roomConn interface {
	Send(text string, sender realtime.Sender) error
	Messages() <-chan realtime.Message
	Close() error
}

// dialRoom is a test seam for realtime.Dial.
var dialRoom = func(ctx context.Context, serverURL, token, projectID string) (roomConn, error) {
	c, err := realtime.Dial(ctx, serverURL, token, projectID)
	if err != nil {
		return nil, err
	}
	return c, nil
}

var _ execIface = (*App)(nil)

type App struct {
	config *config.Config
	api    client.Client
	auth   services.AuthService
	health service.HealthService
	logger logging.Logger
	reader *bufio.Reader
	out    io.Writer

	mu       sync.Mutex
	user     *models.User
	ws       *workspace.Workspace
	room     roomConn
	runner   *sandbox.Runner
	listened chan struct{}
}

func NewApp(c *config.Config) (*App, error) {
	apiClient, err := client.NewHTTPClient(c.ServerURL)
	if err != nil {
		return nil, err
	}

	health, err := service.NewHealthClientService(c.HealthAddr)
	if err != nil {
		return nil, err
	}

	return &App{
		config: c,
		api:    apiClient,
		auth:   services.NewAuthService(apiClient, c.TokenFile),
		health: health,
		logger: logging.NewText(os.Stderr, slog.LevelWarn),
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}, nil
}

// Run restores a saved session if there is one and blocks in the REPL
// until the user exits or ctx ends.
func (a *App) Run(ctx context.Context) {
	defer a.closeProject()
	defer a.health.Close()

	printlnFn("Welcome to coderoom (type 'help' for commands)")

	u, err := a.auth.Restore(ctx)
	switch {
	case err == nil:
		a.setUser(u)
		printlnFn("Logged in as", u.Email)
	case errors.Is(err, client.ErrNotLoggedIn):
	default:
		printlnFn("Could not restore session:", err)
	}

	lines := make(chan struct{})
	go func() {
		defer close(lines)
		runREPL(ctx, a, a.getStatus, a.reader)
	}()

	select {
	case <-lines:
	case <-ctx.Done():
	}
}

func (a *App) isLoggedIn() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user != nil
}

func (a *App) inProject() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ws != nil
}

func (a *App) setUser(u *models.User) {
	a.mu.Lock()
	a.user = u
	a.mu.Unlock()
}

func (a *App) currentUser() *models.User {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user
}

func (a *App) workspace() *workspace.Workspace {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ws
}

func (a *App) getStatus() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := ""
	if a.user != nil {
		s = a.user.Email
	}
	if a.ws != nil {
		name := a.ws.Project().Name
		if name == "" {
			name = a.ws.ProjectID()
		}
		s = fmt.Sprintf("%s [%s]", s, name)
		if a.ws.Dirty() {
			s += "*"
		}
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// Status asks the gRPC health endpoint whether the server is serving.
func (a *App) Status(ctx context.Context) error {
	st, err := a.health.Check(ctx)
	if err != nil {
		return fmt.Errorf("server unreachable at %s: %w", a.config.HealthAddr, err)
	}
	printlnFn("Server:", st)
	return nil
}
