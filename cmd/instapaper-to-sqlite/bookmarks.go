package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ipsqlite/instapaper-to-sqlite/internal/ui"
)

var bookmarksCmd = &cobra.Command{
	Use:   "bookmarks DB_PATH",
	Short: "Save bookmarks",
	Long: `Download the bookmarks of every folder in DB_PATH into the bookmarks table.

Run the folders command first. Each folder is saved as soon as it has been
downloaded, so an interrupted run keeps the folders already done. Once all
folders are processed the bookmarks table is indexed by time and linked to
folders through folder_id.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		syncer, database, err := openSyncer(cmd, args[0])
		if err != nil {
			return err
		}
		defer database.Close()

		start := time.Now()
		n, err := syncer.SyncBookmarks(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s Saved %d bookmarks to %s in %v\n",
			ui.RenderPass("✓"), n, database.Path(), time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func init() {
	addAuthFlag(bookmarksCmd)
	rootCmd.AddCommand(bookmarksCmd)
}
