package cli

import (
	"fmt"
	"os"

	"github.com/dmitrijs2005/cardkeeper/internal/netx"
	"github.com/spf13/cobra"
)

func newSyncCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Catch the local cache up with the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := a.syncer.Sync(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "synced to %d: %d updated, %d deleted\n", rep.Clid, rep.Fetched, rep.Removed)
			return nil
		},
	}
}

func newExportCommand(a *App) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all cards to object storage and print a download link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.api.Export(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "exported %s at %d\n%s\n", e.Key, e.Clid, e.URL)

			if output == "" {
				return nil
			}

			f, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
			if err != nil {
				return err
			}
			n, err := netx.DownloadPresignedURL(cmd.Context(), e.URL, f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return fmt.Errorf("error downloading export: %w", err)
			}
			fmt.Fprintf(a.out, "saved %d bytes to %s\n", n, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "also download the export to this file")
	return cmd
}
