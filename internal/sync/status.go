package sync

import (
	"context"
	"fmt"

	"github.com/ipsqlite/instapaper-to-sqlite/internal/store"
)

// FolderCount is the number of bookmarks exported for one folder.
type FolderCount struct {
	FolderID  string `json:"folder_id" yaml:"folder_id"`
	Title     string `json:"title" yaml:"title"`
	Bookmarks int    `json:"bookmarks" yaml:"bookmarks"`
}

// Summary describes what an export database holds.
type Summary struct {
	Folders   int           `json:"folders" yaml:"folders"`
	Bookmarks int           `json:"bookmarks" yaml:"bookmarks"`
	PerFolder []FolderCount `json:"per_folder,omitempty" yaml:"per_folder,omitempty"`
}

// Summarize counts folders and bookmarks in database. Missing tables count
// as empty.
func Summarize(ctx context.Context, database *store.DB) (*Summary, error) {
	sum := &Summary{}

	hasFolders, err := database.TableExists(ctx, FoldersTable)
	if err != nil {
		return nil, err
	}
	if !hasFolders {
		return sum, nil
	}
	if sum.Folders, err = database.Count(ctx, FoldersTable); err != nil {
		return nil, err
	}

	hasBookmarks, err := database.TableExists(ctx, BookmarksTable)
	if err != nil {
		return nil, err
	}
	if !hasBookmarks {
		return sum, nil
	}
	if sum.Bookmarks, err = database.Count(ctx, BookmarksTable); err != nil {
		return nil, err
	}

	rows, err := database.Query(ctx, `
		SELECT f.folder_id AS folder_id, f.title AS title, COUNT(b.bookmark_id) AS bookmarks
		FROM folders f
		LEFT JOIN bookmarks b ON b.folder_id = f.folder_id
		GROUP BY f.folder_id, f.title
		ORDER BY MIN(f.rowid)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count bookmarks per folder: %w", err)
	}

	for _, r := range rows {
		n, _ := r["bookmarks"].(int64)
		sum.PerFolder = append(sum.PerFolder, FolderCount{
			FolderID:  fmt.Sprint(r["folder_id"]),
			Title:     fmt.Sprint(r["title"]),
			Bookmarks: int(n),
		})
	}

	return sum, nil
}
