package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ipsqlite/instapaper-to-sqlite/internal/ui"
)

var foldersCmd = &cobra.Command{
	Use:   "folders DB_PATH",
	Short: "Save folders",
	Long: `Download all folders into the folders table of DB_PATH.

The built-in archive, unread and starred folders are always added so that
the bookmarks command can export them too. The database is created if it
does not exist.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		syncer, database, err := openSyncer(cmd, args[0])
		if err != nil {
			return err
		}
		defer database.Close()

		n, err := syncer.SyncFolders(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s Saved %d folders to %s\n", ui.RenderPass("✓"), n, database.Path())
		return nil
	},
}

func init() {
	addAuthFlag(foldersCmd)
	rootCmd.AddCommand(foldersCmd)
}
