// Package httpapi exposes the REST surface: account routes under /users,
// project routes under /projects and the AI passthrough under /ai.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrijs2005/coderoom/internal/filetree"
	"github.com/dmitrijs2005/coderoom/internal/logging"
	"github.com/dmitrijs2005/coderoom/internal/server/auth"
	"github.com/dmitrijs2005/coderoom/internal/server/gate"
	"github.com/dmitrijs2005/coderoom/internal/server/genai"
	"github.com/dmitrijs2005/coderoom/internal/server/models"
	"github.com/dmitrijs2005/coderoom/internal/server/services"
)

type UserService interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.User, string, error)
	Login(ctx context.Context, in services.LoginInput) (*models.User, string, error)
	Logout(ctx context.Context, token string, claims *auth.Claims) error
	Directory(ctx context.Context, callerID string) ([]models.UserSummary, error)
}

type ProjectService interface {
	Create(ctx context.Context, callerID, name string) (*models.Project, error)
	All(ctx context.Context, callerID string) ([]models.Project, error)
	AddUsers(ctx context.Context, callerID, projectID string, userIDs []string) (*models.Project, error)
	Get(ctx context.Context, projectID string) (*models.ProjectDetails, error)
	UpdateFileTree(ctx context.Context, projectID string, tree filetree.Tree) (*models.Project, error)
	Delete(ctx context.Context, projectID string) error
	ExportURL(ctx context.Context, projectID string) (string, error)
}

// Deps is everything the router serves. Socket, Metrics and StaticDir are
// optional.
type Deps struct {
	Users        UserService
	Projects     ProjectService
	AI           genai.Generator
	Gate         *gate.Gate
	Logger       logging.Logger
	Socket       http.Handler
	Metrics      http.Handler
	CORSOrigin   string
	StaticDir    string
	CookieMaxAge int
}

type Handler struct {
	users        UserService
	projects     ProjectService
	ai           genai.Generator
	logger       logging.Logger
	cookieMaxAge int
}

func NewRouter(d Deps) http.Handler {
	logger := d.Logger.With("module", "http")
	h := &Handler{
		users:        d.Users,
		projects:     d.Projects,
		ai:           d.AI,
		logger:       logger,
		cookieMaxAge: d.CookieMaxAge,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(accessLog(logger))
	r.Use(isolationHeaders)
	r.Use(cors(d.CORSOrigin))

	r.Route("/users", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Group(func(r chi.Router) {
			r.Use(d.Gate.RequireAuth)
			r.Get("/profile", h.profile)
			r.Get("/logout", h.logout)
			r.Get("/all", h.allUsers)
		})
	})

	r.Route("/projects", func(r chi.Router) {
		r.Use(d.Gate.RequireAuth)
		r.Post("/create", h.createProject)
		r.Get("/all", h.allProjects)
		r.Put("/add-user", h.addUsers)
		r.Get("/get-project/{projectId}", h.getProject)
		r.Put("/update-file-tree", h.updateFileTree)
		r.Delete("/delete/{projectId}", h.deleteProject)
		r.Get("/export/{projectId}", h.exportProject)
	})

	r.With(d.Gate.RequireAuth).Get("/ai/get-result", h.aiResult)

	if d.Socket != nil {
		r.Handle("/socket", d.Socket)
	}
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}
	if spa := spaHandler(d.StaticDir); spa != nil {
		r.NotFound(spa)
	} else {
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			respondError(w, http.StatusNotFound, "not found")
		})
	}

	return r
}
