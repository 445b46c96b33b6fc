package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/cardkeeper/internal/common"
	"github.com/spf13/cobra"
)

const previewWidth = 48

func newListCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List cached cards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.cards().List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CID\tNUMBER\tVERSION\tUPDATED\tCONTENT")
			for _, c := range list {
				fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n", c.ID, c.Number, c.Version,
					c.UpdateTime.Local().Format(time.DateTime), firstLine(c.Content, previewWidth))
			}
			return w.Flush()
		},
	}
}

func newCatCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "cat <cid>",
		Short: "Print a cached card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCardID(args[0])
			if err != nil {
				return err
			}
			c, err := a.cards().Get(cmd.Context(), id)
			if errors.Is(err, common.ErrorNotFound) {
				return fmt.Errorf("card %d is not cached, try sync", id)
			}
			if err != nil {
				return err
			}
			fmt.Fprint(a.out, c.Content)
			return nil
		},
	}
}

func newNewCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "new [file]",
		Short: "Create a card from a file or standard input",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := a.readContent(args, 0)
			if err != nil {
				return err
			}
			c, err := a.syncer.Create(cmd.Context(), content)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "created card %d (%s)\n", c.ID, c.Number)
			return nil
		},
	}
}

func newEditCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <cid> [file]",
		Short: "Replace the content of a card",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCardID(args[0])
			if err != nil {
				return err
			}
			content, err := a.readContent(args, 1)
			if err != nil {
				return err
			}

			c, err := a.syncer.Edit(cmd.Context(), id, content)
			switch {
			case errors.Is(err, common.ErrVersionStale) && c != nil:
				fmt.Fprintf(a.out, "card %d was changed elsewhere and is now at version %d:\n%s\n", c.ID, c.Version, c.Content)
				return err
			case errors.Is(err, common.ErrVersionTooNew):
				fmt.Fprintln(a.out, "local cache was out of step and has been resynced, retry the edit")
				return err
			case err != nil:
				return err
			}
			fmt.Fprintf(a.out, "card %d is at version %d\n", c.ID, c.Version)
			return nil
		},
	}
}

func newRemoveCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <cid>",
		Short: "Delete a card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCardID(args[0])
			if err != nil {
				return err
			}
			if err := a.syncer.Remove(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "deleted card %d\n", id)
			return nil
		},
	}
}

func newHistoryCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "history <cid>",
		Short: "Show the recorded versions of a card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCardID(args[0])
			if err != nil {
				return err
			}
			h, err := a.api.History(cmd.Context(), id)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CLID\tVERSION\tUPDATED\tCONTENT")
			for _, e := range h.Entries {
				version := fmt.Sprint(e.Version)
				if e.Version < 0 {
					version = "deleted"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", e.Clid, version,
					e.UpdateTime.Local().Format(time.DateTime), firstLine(e.Content, previewWidth))
			}
			return w.Flush()
		},
	}
}
