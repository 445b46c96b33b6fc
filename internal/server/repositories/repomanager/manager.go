package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/cardkeeper/internal/dbx"
	"github.com/dmitrijs2005/cardkeeper/internal/server/repositories/cards"
	"github.com/dmitrijs2005/cardkeeper/internal/server/repositories/changelog"
	"github.com/dmitrijs2005/cardkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/cardkeeper/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so services can run
// several of them over one *sql.Tx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Cards(db dbx.DBTX) cards.Repository
	ChangeLog(db dbx.DBTX) changelog.Repository
}
