package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/coderoom/internal/client/client"
	"github.com/dmitrijs2005/coderoom/internal/client/config"
	"github.com/dmitrijs2005/coderoom/internal/client/models"
	"github.com/dmitrijs2005/coderoom/internal/client/realtime"
	"github.com/dmitrijs2005/coderoom/internal/common"
	"github.com/dmitrijs2005/coderoom/internal/filetree"
	"github.com/dmitrijs2005/coderoom/internal/logging"
)

// ------------ fakes ------------

type fakeAPI struct {
	client.Client

	projects []models.Project
	project  *models.Project
	users    []models.User
	saved    filetree.Tree
	added    []string
	deleted  string
	export   []byte
	genOut   string
	err      error
}

func (f *fakeAPI) BaseURL() string { return "http://server" }
func (f *fakeAPI) Token() string   { return "tok" }

func (f *fakeAPI) Projects(context.Context) ([]models.Project, error) { return f.projects, f.err }
func (f *fakeAPI) Users(context.Context) ([]models.User, error)       { return f.users, f.err }

func (f *fakeAPI) CreateProject(_ context.Context, name string) (*models.Project, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Project{ID: "p-new", Name: name}, nil
}

func (f *fakeAPI) Project(_ context.Context, id string) (*models.Project, error) {
	if f.err != nil {
		return nil, f.err
	}
	p := *f.project
	return &p, nil
}

func (f *fakeAPI) UpdateFileTree(_ context.Context, id string, tree filetree.Tree) (*models.Project, error) {
	f.saved = tree
	return &models.Project{ID: id, Name: f.project.Name, FileTree: tree}, nil
}

func (f *fakeAPI) AddUsers(_ context.Context, id string, ids []string) (*models.Project, error) {
	f.added = ids
	users := []models.Member{{User: models.User{ID: "u1"}}}
	for _, id := range ids {
		users = append(users, models.Member{User: models.User{ID: id}})
	}
	return &models.Project{ID: id, Users: users}, nil
}

func (f *fakeAPI) DeleteProject(_ context.Context, id string) error {
	f.deleted = id
	return f.err
}

func (f *fakeAPI) ExportURL(_ context.Context, id string) (string, error) {
	return "http://s3/coderoom/projects/" + id + "/filetree.json?X-Amz-Signature=x", nil
}

func (f *fakeAPI) Download(_ context.Context, url string) ([]byte, error) { return f.export, nil }

func (f *fakeAPI) Generate(_ context.Context, prompt string) (string, error) { return f.genOut, f.err }

type fakeAuth struct {
	user      *models.User
	err       error
	logoutErr error
	password  []byte
	loggedOut bool
}

func (f *fakeAuth) Register(_ context.Context, name, email string, pw []byte) (*models.User, error) {
	f.password = pw
	if f.err != nil {
		return nil, f.err
	}
	return &models.User{ID: "u1", Name: name, Email: email}, nil
}

func (f *fakeAuth) Login(_ context.Context, email string, pw []byte) (*models.User, error) {
	f.password = pw
	if f.err != nil {
		return nil, f.err
	}
	return &models.User{ID: "u1", Email: email}, nil
}

func (f *fakeAuth) Restore(context.Context) (*models.User, error) {
	if f.user == nil {
		return nil, client.ErrNotLoggedIn
	}
	return f.user, nil
}

func (f *fakeAuth) Logout(context.Context) error {
	f.loggedOut = true
	return f.logoutErr
}

type fakeHealth struct {
	status string
	err    error
	closed bool
}

func (f *fakeHealth) Check(context.Context) (string, error) { return f.status, f.err }

func (f *fakeHealth) Close() error {
	f.closed = true
	return nil
}

type fakeRoom struct {
	mu     sync.Mutex
	sent   []string
	sender realtime.Sender
	inbox  chan realtime.Message
	closed bool
	once   sync.Once
}

func newFakeRoom() *fakeRoom { return &fakeRoom{inbox: make(chan realtime.Message, 8)} }

func (f *fakeRoom) Send(text string, s realtime.Sender) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	f.sender = s
	return nil
}

func (f *fakeRoom) Messages() <-chan realtime.Message { return f.inbox }

func (f *fakeRoom) Close() error {
	f.once.Do(func() {
		f.mu.Lock()
		f.closed = true
		f.mu.Unlock()
		close(f.inbox)
	})
	return nil
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// ------------ helpers ------------

func readerFromLines(lines ...string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(strings.Join(lines, "\n") + "\n"))
}

func file(s string) filetree.Node { return filetree.Node{File: &filetree.File{Contents: s}} }

func newTestApp(t *testing.T, api *fakeAPI, auth *fakeAuth, in *bufio.Reader) (*App, *syncBuffer) {
	t.Helper()
	out := &syncBuffer{}
	if in == nil {
		in = readerFromLines()
	}
	a := &App{
		config: &config.Config{WorkDir: t.TempDir(), PreviewTimeout: 5 * time.Second, HealthAddr: "127.0.0.1:1"},
		api:    api,
		auth:   auth,
		health: &fakeHealth{status: "SERVING"},
		logger: logging.Nop{},
		reader: in,
		out:    out,
	}
	t.Cleanup(a.closeProject)
	return a, out
}

func stubDial(t *testing.T, room *fakeRoom) *string {
	t.Helper()
	var got string
	orig := dialRoom
	dialRoom = func(_ context.Context, serverURL, token, projectID string) (roomConn, error) {
		got = serverURL + "|" + token + "|" + projectID
		return room, nil
	}
	t.Cleanup(func() { dialRoom = orig })
	return &got
}

func stubInput(t *testing.T, password string) {
	t.Helper()
	orig := getPassword
	getPassword = func(w io.Writer) ([]byte, error) { return []byte(password), nil }
	t.Cleanup(func() { getPassword = orig })
}

func demoProject() *models.Project {
	return &models.Project{
		ID:    "p1",
		Name:  "demo",
		Users: []models.Member{{User: models.User{ID: "u1", Email: "a@x.io"}}},
		FileTree: filetree.Tree{
			"app.js": file("console.log(1)\n"),
			"src":    {Children: filetree.Tree{"lib.js": file("export {}\n")}},
		},
	}
}

func openDemo(t *testing.T, api *fakeAPI, in *bufio.Reader) (*App, *syncBuffer, *fakeRoom) {
	t.Helper()
	capturePrint(t)
	room := newFakeRoom()
	stubDial(t, room)
	a, out := newTestApp(t, api, &fakeAuth{}, in)
	a.setUser(&models.User{ID: "u1", Email: "a@x.io"})
	require.NoError(t, a.Open(context.Background(), "p1"))
	return a, out, room
}

// ------------ tests ------------

func TestLoginAndRegister(t *testing.T) {
	capturePrint(t)
	stubInput(t, "pw")

	auth := &fakeAuth{}
	a, _ := newTestApp(t, &fakeAPI{}, auth, readerFromLines("a@x.io"))
	require.NoError(t, a.Login(context.Background()))
	assert.True(t, a.isLoggedIn())
	assert.Equal(t, "(a@x.io)", a.getStatus())
	assert.Equal(t, make([]byte, 2), auth.password, "password wiped")

	a, _ = newTestApp(t, &fakeAPI{}, auth, readerFromLines("Ann", "ann@x.io"))
	require.NoError(t, a.Register(context.Background()))
	assert.Equal(t, "ann@x.io", a.currentUser().Email)
}

func TestLogin_Failure(t *testing.T) {
	capturePrint(t)
	stubInput(t, "pw")

	a, _ := newTestApp(t, &fakeAPI{}, &fakeAuth{err: common.ErrorUnauthorized}, readerFromLines("a@x.io"))
	assert.ErrorIs(t, a.Login(context.Background()), common.ErrorUnauthorized)
	assert.False(t, a.isLoggedIn())
}

func TestLogout_ClosesProjectAndForgetsUser(t *testing.T) {
	api := &fakeAPI{project: demoProject()}
	a, _, room := openDemo(t, api, nil)
	auth := a.auth.(*fakeAuth)

	require.NoError(t, a.Logout(context.Background()))
	assert.True(t, auth.loggedOut)
	assert.False(t, a.isLoggedIn())
	assert.False(t, a.inProject())
	assert.True(t, room.closed)
}

func TestProjects_Table(t *testing.T) {
	capturePrint(t)
	api := &fakeAPI{projects: []models.Project{*demoProject()}}
	a, out := newTestApp(t, api, &fakeAuth{}, nil)

	require.NoError(t, a.Projects(context.Background()))
	assert.Contains(t, out.String(), "demo")
	assert.Contains(t, out.String(), "a@x.io")
	assert.Contains(t, out.String(), "p1")
}

func TestProjects_Empty(t *testing.T) {
	lines := capturePrint(t)
	a, out := newTestApp(t, &fakeAPI{}, &fakeAuth{}, nil)

	require.NoError(t, a.Projects(context.Background()))
	assert.Empty(t, out.String())
	assert.Contains(t, *lines, "No projects yet, try: create <name>")
}

func TestUsersCreateDelete(t *testing.T) {
	lines := capturePrint(t)
	api := &fakeAPI{users: []models.User{{ID: "u2", Email: "b@x.io"}}}
	a, out := newTestApp(t, api, &fakeAuth{}, nil)

	require.NoError(t, a.Users(context.Background()))
	assert.Contains(t, out.String(), "b@x.io")

	require.NoError(t, a.Create(context.Background(), "New App"))
	assert.Contains(t, *lines, `Created "New App" (p-new)`)

	require.NoError(t, a.Delete(context.Background(), "p9"))
	assert.Equal(t, "p9", api.deleted)
}

func TestOpen_JoinsRoom(t *testing.T) {
	room := newFakeRoom()
	capturePrint(t)
	got := stubDial(t, room)

	a, _ := newTestApp(t, &fakeAPI{project: demoProject()}, &fakeAuth{}, nil)
	a.setUser(&models.User{ID: "u1", Email: "a@x.io"})

	require.NoError(t, a.Open(context.Background(), "p1"))
	assert.Equal(t, "http://server|tok|p1", *got)
	assert.True(t, a.inProject())
	assert.Equal(t, "(a@x.io [demo])", a.getStatus())
	assert.DirExists(t, filepath.Join(a.config.WorkDir, "p1"))

	require.NoError(t, a.Leave(context.Background()))
	assert.False(t, a.inProject())
	assert.True(t, room.closed)
}

func TestOpen_NotFound(t *testing.T) {
	capturePrint(t)
	a, _ := newTestApp(t, &fakeAPI{err: common.ErrorNotFound}, &fakeAuth{}, nil)

	assert.ErrorIs(t, a.Open(context.Background(), "nope"), common.ErrorNotFound)
	assert.False(t, a.inProject())
}

func TestSay_SendsAsCurrentUser(t *testing.T) {
	a, _, room := openDemo(t, &fakeAPI{project: demoProject()}, nil)

	require.NoError(t, a.Say(context.Background(), "@ai make a server"))
	assert.Equal(t, []string{"@ai make a server"}, room.sent)
	assert.Equal(t, "u1", room.sender.ID)
	assert.Equal(t, "a@x.io", room.sender.Email)
}

func TestListen_AppliesAIReply(t *testing.T) {
	a, out, room := openDemo(t, &fakeAPI{project: demoProject()}, nil)

	room.inbox <- realtime.Message{Text: "hi all", Sender: realtime.Sender{ID: "u2", Email: "b@x.io"}}
	room.inbox <- realtime.Message{
		Text:   `{"text":"Express app","fileTree":{"server.js":{"file":{"contents":"x"}}},"startCommand":{"mainItem":"node","commands":["server.js"]}}`,
		Sender: realtime.Sender{ID: common.AISenderID, Name: common.AISenderName},
	}

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "[AI] start: node server.js")
	}, 2*time.Second, 10*time.Millisecond)

	assert.Contains(t, out.String(), "[b@x.io] hi all")
	assert.Contains(t, out.String(), "[AI] Express app")
	assert.Contains(t, out.String(), "[AI] file tree replaced: server.js")

	ws := a.workspace()
	assert.Equal(t, []string{"server.js"}, ws.Tree().Paths())
	assert.FileExists(t, filepath.Join(a.config.WorkDir, "p1", "server.js"))
	_, start := ws.Commands()
	assert.Equal(t, []string{"node", "server.js"}, start)
}

func TestEditSaveFilesCat(t *testing.T) {
	api := &fakeAPI{project: demoProject()}
	a, out, _ := openDemo(t, api, readerFromLines("const x = 1", "", "console.log(x)", "."))

	require.NoError(t, a.Edit(context.Background(), "app.js"))
	assert.True(t, a.workspace().Dirty())
	assert.Equal(t, "(a@x.io [demo]*)", a.getStatus())

	require.NoError(t, a.Cat(context.Background(), "app.js"))
	assert.Contains(t, out.String(), "const x = 1\n\nconsole.log(x)\n")

	require.NoError(t, a.Files(context.Background()))
	assert.Contains(t, out.String(), "* app.js")
	assert.Contains(t, out.String(), "src/")

	require.NoError(t, a.Save(context.Background()))
	f, ok := api.saved.Get("app.js")
	require.True(t, ok)
	assert.Equal(t, "const x = 1\n\nconsole.log(x)\n", f.Contents)
	assert.ElementsMatch(t, []string{"app.js", "src/lib.js"}, api.saved.Paths())
	assert.False(t, a.workspace().Dirty())
}

func TestEdit_MissingFile(t *testing.T) {
	a, _, _ := openDemo(t, &fakeAPI{project: demoProject()}, nil)
	assert.ErrorIs(t, a.Edit(context.Background(), "nope.js"), filetree.ErrNotAFile)
	assert.ErrorIs(t, a.Edit(context.Background(), "src"), filetree.ErrNotAFile)
}

func TestAddUsers(t *testing.T) {
	api := &fakeAPI{project: demoProject()}
	a, _, _ := openDemo(t, api, nil)
	lines := capturePrint(t)

	require.NoError(t, a.AddUsers(context.Background(), []string{"u2"}))
	assert.Equal(t, []string{"u2"}, api.added)
	assert.Contains(t, *lines, "Members: u1, u2")
}

func TestExport(t *testing.T) {
	tree := filetree.Tree{"a.js": file("1")}
	body, err := json.Marshal(tree)
	require.NoError(t, err)

	api := &fakeAPI{project: demoProject(), export: body}
	a, _, _ := openDemo(t, api, nil)
	lines := capturePrint(t)

	require.NoError(t, a.Export(context.Background(), ""))
	assert.Contains(t, strings.Join(*lines, "\n"), "/projects/p1/filetree.json")

	dest := filepath.Join(t.TempDir(), "out", "tree.json")
	require.NoError(t, a.Export(context.Background(), dest))
	written, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.JSONEq(t, string(body), string(written))
}

func TestExport_InvalidSnapshot(t *testing.T) {
	api := &fakeAPI{project: demoProject(), export: []byte(`{"a.js":{"nope":1}}`)}
	a, _, _ := openDemo(t, api, nil)

	dest := filepath.Join(t.TempDir(), "tree.json")
	assert.ErrorIs(t, a.Export(context.Background(), dest), filetree.ErrInvalidTree)
	assert.NoFileExists(t, dest)
}

func TestAsk_PrintsShapedReply(t *testing.T) {
	capturePrint(t)
	a, out := newTestApp(t, &fakeAPI{genOut: "```json\n{\"text\":\"Use a map\"}\n```"}, &fakeAuth{}, nil)

	require.NoError(t, a.Ask(context.Background(), "how?"))
	assert.Equal(t, "[AI] Use a map\n", out.String())
}

func TestRunStop_InSandbox(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("needs a POSIX shell")
	}
	p := demoProject()
	a, _, room := openDemo(t, &fakeAPI{project: p}, nil)
	lines := capturePrint(t)

	room.inbox <- realtime.Message{
		Text:   `{"text":"ok","buildCommand":{"mainItem":"true","commands":[]}}`,
		Sender: realtime.Sender{ID: common.AISenderID},
	}
	assert.Eventually(t, func() bool {
		install, _ := a.workspace().Commands()
		return len(install) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, a.RunProject(context.Background(), `sh -c "echo listening on http://127.0.0.1:4000; exec sleep 30"`))
	assert.Contains(t, *lines, "Preview ready: http://127.0.0.1:4000")
	assert.FileExists(t, filepath.Join(a.config.WorkDir, "p1", "app.js"))

	require.NoError(t, a.Stop(context.Background()))
	assert.Contains(t, *lines, "Stopped")
	require.NoError(t, a.Stop(context.Background()))
	assert.Contains(t, *lines, "Nothing is running")
}

func TestRun_Restore(t *testing.T) {
	lines := capturePrint(t)
	auth := &fakeAuth{user: &models.User{ID: "u1", Email: "a@x.io"}}
	a, _ := newTestApp(t, &fakeAPI{}, auth, readerFromLines("exit"))

	a.Run(context.Background())
	assert.True(t, a.isLoggedIn())
	assert.True(t, a.health.(*fakeHealth).closed)
	assert.Contains(t, *lines, "Logged in as a@x.io")
	assert.Equal(t, "Bye!", (*lines)[len(*lines)-1])
}

func TestStatus(t *testing.T) {
	lines := capturePrint(t)
	a, _ := newTestApp(t, &fakeAPI{}, &fakeAuth{}, nil)

	require.NoError(t, a.Status(context.Background()))
	assert.Contains(t, *lines, "Server: SERVING")

	a.health = &fakeHealth{err: errors.New("connection refused")}
	err := a.Status(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "127.0.0.1:1")
}
