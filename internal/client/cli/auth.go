package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/cardkeeper/internal/client/api"
	"github.com/dmitrijs2005/cardkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/cardkeeper/internal/common"
	"github.com/dmitrijs2005/cardkeeper/internal/dbx"
	"github.com/spf13/cobra"
)

func newRegisterCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "register <username>",
		Short: "Create an account on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := a.getPassword()
			if err != nil {
				return err
			}
			defer common.WipeByteArray(password)

			id, err := a.api.Register(cmd.Context(), args[0], string(password))
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "registered %s (%s)\n", args[0], id)
			return nil
		},
	}
}

func newLoginCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "login <username>",
		Short: "Sign in and remember the tokens in the local cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			password, err := a.getPassword()
			if err != nil {
				return err
			}
			defer common.WipeByteArray(password)

			tp, err := a.api.Login(ctx, args[0], string(password))
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			if err := a.switchUser(ctx, args[0], tp); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "logged in as %s\n", args[0])
			return nil
		},
	}
}

// switchUser stores the session. A cache that belonged to another user is
// emptied first, since its cursor and cards are meaningless for this one.
func (a *App) switchUser(ctx context.Context, username string, tp api.TokenPair) error {
	previous, err := a.metadata().Get(ctx, metadata.KeyUsername)
	if err != nil {
		return err
	}

	return dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		m := metadata.NewSQLiteRepository(tx)
		if previous != "" && previous != username {
			if _, err := tx.ExecContext(ctx, `DELETE FROM cards`); err != nil {
				return err
			}
			if err := m.Clear(ctx); err != nil {
				return err
			}
		}
		if err := m.Set(ctx, metadata.KeyUsername, username); err != nil {
			return err
		}
		if err := m.Set(ctx, metadata.KeyAccessToken, tp.AccessToken); err != nil {
			return err
		}
		return m.Set(ctx, metadata.KeyRefreshToken, tp.RefreshToken)
	})
}

func newLogoutCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved tokens (cached cards are kept)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m := a.metadata()
			if err := m.Delete(ctx, metadata.KeyAccessToken); err != nil {
				return err
			}
			if err := m.Delete(ctx, metadata.KeyRefreshToken); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "logged out")
			return nil
		},
	}
}
