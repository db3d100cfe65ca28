package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/coderoom/internal/dbx"
	"github.com/dmitrijs2005/coderoom/internal/server/repositories/projects"
	"github.com/dmitrijs2005/coderoom/internal/server/repositories/revocations"
	"github.com/dmitrijs2005/coderoom/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so services can
// choose between the pool and a transaction per call.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Projects(db dbx.DBTX) projects.Repository
	Revocations(db dbx.DBTX) revocations.Repository
}
