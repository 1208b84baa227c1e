package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ipsqlite/instapaper-to-sqlite/internal/store"
	"github.com/ipsqlite/instapaper-to-sqlite/internal/sync"
	"github.com/ipsqlite/instapaper-to-sqlite/internal/ui"
)

// statusReport is what the status command prints.
type statusReport struct {
	Path         string    `json:"path" yaml:"path"`
	SizeBytes    int64     `json:"size_bytes" yaml:"size_bytes"`
	Modified     time.Time `json:"modified" yaml:"modified"`
	sync.Summary `yaml:",inline"`
}

var statusCmd = &cobra.Command{
	Use:   "status DB_PATH",
	Short: "Show what an export database contains",
	Long: `Display the contents of an export database.

Shows:
  - Database file location, size and modification time
  - Number of folders and bookmarks
  - Number of bookmarks per folder`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		dbPath := args[0]

		format := cfg.GetString("format")
		switch format {
		case "text", "json", "yaml":
		default:
			return fmt.Errorf("unknown format %q (want text, json or yaml)", format)
		}

		info, err := os.Stat(dbPath)
		if errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(out, "\n%s Database not found at %s\n", ui.RenderWarn("⚠"), dbPath)
			fmt.Fprintf(out, "   Run 'instapaper-to-sqlite folders %s' to create it\n\n", dbPath)
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to stat database: %w", err)
		}

		database, err := store.Open(dbPath, newLogger("[store] "))
		if err != nil {
			return err
		}
		defer database.Close()

		summary, err := sync.Summarize(cmd.Context(), database)
		if err != nil {
			return err
		}

		report := statusReport{
			Path:      dbPath,
			SizeBytes: info.Size(),
			Modified:  info.ModTime(),
			Summary:   *summary,
		}

		switch format {
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		case "yaml":
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(report); err != nil {
				return fmt.Errorf("failed to encode status: %w", err)
			}
			return enc.Close()
		default:
			printStatus(out, report)
			return nil
		}
	},
}

func printStatus(out io.Writer, r statusReport) {
	fmt.Fprintf(out, "\n%s Instapaper Export Status\n\n", ui.RenderAccent("📊"))
	fmt.Fprintf(out, "   Database: %s\n", r.Path)
	fmt.Fprintf(out, "   Size: %s\n", humanize.Bytes(uint64(r.SizeBytes)))
	fmt.Fprintf(out, "   Modified: %s (%s)\n", r.Modified.Format("2006-01-02 15:04:05"), humanize.Time(r.Modified))
	fmt.Fprintf(out, "   Folders: %d\n", r.Folders)
	fmt.Fprintf(out, "   Bookmarks: %d\n", r.Bookmarks)

	if len(r.PerFolder) > 0 {
		fmt.Fprintf(out, "\n   Bookmarks per folder:\n")
		for _, f := range r.PerFolder {
			fmt.Fprintf(out, "     %s %s: %d\n", f.Title, ui.RenderMuted("("+f.FolderID+")"), f.Bookmarks)
		}
	}
	fmt.Fprintln(out)
}

func init() {
	statusCmd.Flags().StringP("format", "f", "text", "Output format: text, json or yaml")
	rootCmd.AddCommand(statusCmd)
}
