package cli

import (
	"context"
	"database/sql"
	"io"

	"github.com/dmitrijs2005/cardkeeper/internal/client/api"
	"github.com/dmitrijs2005/cardkeeper/internal/client/cache"
	"github.com/dmitrijs2005/cardkeeper/internal/client/config"
	"github.com/dmitrijs2005/cardkeeper/internal/client/repositories/cards"
	"github.com/dmitrijs2005/cardkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/cardkeeper/internal/client/syncer"
	"github.com/dmitrijs2005/cardkeeper/internal/logging"
)

type App struct {
	config *config.Config
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	logger logging.Logger

	db     *sql.DB
	api    *api.Client
	syncer *syncer.Syncer
}

func NewApp(c *config.Config, in io.Reader, out, errOut io.Writer) *App {
	return &App{
		config: c,
		in:     in,
		out:    out,
		errOut: errOut,
		logger: logging.New(logging.FormatText, errOut),
	}
}

// Execute runs the command line args and releases the cache afterwards.
func (a *App) Execute(ctx context.Context, args []string) error {
	root := NewRootCommand(a)
	root.SetArgs(args)
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)
	defer a.Close()
	return root.ExecuteContext(ctx)
}

// open prepares the cache and the API client. It runs after flags are
// parsed, so the final configuration is used.
func (a *App) open(ctx context.Context) error {
	if a.db != nil {
		return nil
	}

	db, err := cache.Open(ctx, a.config.CacheFile)
	if err != nil {
		a.logger.Error(ctx, "error opening cache", "file", a.config.CacheFile, "err", err)
		return err
	}
	a.db = db

	a.api = api.New(a.config.ServerURL, a.config.RequestTimeout)

	m := a.metadata()
	access, err := m.Get(ctx, metadata.KeyAccessToken)
	if err != nil {
		return err
	}
	refresh, err := m.Get(ctx, metadata.KeyRefreshToken)
	if err != nil {
		return err
	}
	a.api.SetTokens(api.TokenPair{AccessToken: access, RefreshToken: refresh})
	a.api.OnTokensRefreshed(func(tp api.TokenPair) {
		if err := a.saveTokens(context.Background(), tp); err != nil {
			a.logger.Warn(ctx, "error saving refreshed tokens", "err", err)
		}
	})

	a.syncer = syncer.New(a.api, db, a.logger)
	return nil
}

func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

func (a *App) metadata() metadata.Repository {
	return metadata.NewSQLiteRepository(a.db)
}

func (a *App) cards() cards.Repository {
	return cards.NewSQLiteRepository(a.db)
}

func (a *App) saveTokens(ctx context.Context, tp api.TokenPair) error {
	m := a.metadata()
	if err := m.Set(ctx, metadata.KeyAccessToken, tp.AccessToken); err != nil {
		return err
	}
	return m.Set(ctx, metadata.KeyRefreshToken, tp.RefreshToken)
}
