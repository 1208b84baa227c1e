package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/ipsqlite/instapaper-to-sqlite/internal/credentials"
	"github.com/ipsqlite/instapaper-to-sqlite/internal/instapaper"
	"github.com/ipsqlite/instapaper-to-sqlite/internal/store"
)

// Table names and primary keys in the export database.
const (
	FoldersTable   = "folders"
	BookmarksTable = "bookmarks"

	FolderPK   = "folder_id"
	BookmarkPK = "bookmark_id"
)

// SyntheticFolders are the built-in Instapaper folders. The API never lists
// them, so they are added to every folder export.
var SyntheticFolders = []string{"archive", "unread", "starred"}

// ErrNoFolders is returned by SyncBookmarks when no folders have been
// exported yet.
var ErrNoFolders = errors.New("no folders in database")

// Config configures a Syncer.
type Config struct {
	// AuthPath is the credentials file. Defaults to credentials.DefaultPath.
	AuthPath string
	// Login opens an API session. Defaults to InstapaperLogin().
	Login LoginFunc
	// BookmarkLimit is the number of bookmarks requested per folder.
	// Defaults to instapaper.DefaultBookmarkLimit.
	BookmarkLimit int
	// Out receives user-facing progress lines. Nil discards them.
	Out io.Writer
	// Logger receives debug output. Nil discards it.
	Logger *log.Logger
}

// Syncer pulls data from Instapaper and upserts it into a store.DB.
//
// Every batch commits as soon as it is written. An interrupted run leaves
// the batches written so far in place, and re-running is always safe because
// all writes are keyed upserts.
type Syncer struct {
	db     *store.DB
	cfg    Config
	out    io.Writer
	logger *log.Logger
}

// New creates a Syncer writing into database.
//
// Example:
//
//	database, err := store.Open("instapaper.db", nil)
//	if err != nil {
//	    return err
//	}
//	defer database.Close()
//	syncer := sync.New(database, sync.Config{AuthPath: "auth.json", Out: os.Stdout})
//	n, err := syncer.SyncFolders(ctx)
func New(database *store.DB, cfg Config) *Syncer {
	if cfg.AuthPath == "" {
		cfg.AuthPath = credentials.DefaultPath
	}
	if cfg.Login == nil {
		cfg.Login = InstapaperLogin()
	}
	if cfg.BookmarkLimit <= 0 {
		cfg.BookmarkLimit = instapaper.DefaultBookmarkLimit
	}

	out := cfg.Out
	if out == nil {
		out = io.Discard
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	return &Syncer{
		db:     database,
		cfg:    cfg,
		out:    out,
		logger: logger,
	}
}

// login loads credentials and opens an API session. Errors match
// credentials.ErrMissingCredentials or instapaper.ErrAuth where applicable.
func (s *Syncer) login(ctx context.Context) (Session, error) {
	creds, err := credentials.Load(s.cfg.AuthPath)
	if err != nil {
		return nil, err
	}

	session, err := s.cfg.Login(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("failed to log in to Instapaper: %w", err)
	}

	s.logger.Printf("Authenticated as %s", creds.Email)
	return session, nil
}

// SyncFolders exports every folder plus the synthetic archive, unread and
// starred folders into the folders table. It returns the number of folder
// rows written.
func (s *Syncer) SyncFolders(ctx context.Context) (int, error) {
	session, err := s.login(ctx)
	if err != nil {
		return 0, err
	}

	fmt.Fprintln(s.out, "Fetching folders...")

	folders, err := session.ListFolders(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list folders: %w", err)
	}

	rows := make([]store.Row, 0, len(folders)+len(SyntheticFolders))
	for _, f := range folders {
		rows = append(rows, pick(f.Attributes(), instapaper.FolderAttributes))
	}
	rows = append(rows, syntheticFolderRows()...)

	fmt.Fprintf(s.out, "Downloaded %d folders\n", len(rows))

	if err := s.db.UpsertAll(ctx, FoldersTable, rows, store.UpsertOptions{PK: FolderPK, Alter: true}); err != nil {
		return 0, fmt.Errorf("failed to save folders: %w", err)
	}

	s.logger.Printf("Synced %d folders (%d from API)", len(rows), len(folders))
	return len(rows), nil
}

// SyncBookmarks exports the bookmarks of every folder already in the folders
// table. Each bookmark is stored under the folder it was fetched from. It
// returns the total number of bookmarks written.
//
// After all folders are processed the bookmarks table gets an index on time,
// a foreign key from folder_id to folders, and indexes for all foreign keys.
// A foreign key that cannot be declared is skipped.
func (s *Syncer) SyncBookmarks(ctx context.Context) (int, error) {
	session, err := s.login(ctx)
	if err != nil {
		return 0, err
	}

	folders, err := s.db.Rows(ctx, FoldersTable)
	if err != nil {
		if errors.Is(err, store.ErrNoSuchTable) {
			return 0, fmt.Errorf("%w: run the folders command first", ErrNoFolders)
		}
		return 0, fmt.Errorf("failed to read folders: %w", err)
	}
	if len(folders) == 0 {
		return 0, fmt.Errorf("%w: run the folders command first", ErrNoFolders)
	}

	total := 0
	for _, folder := range folders {
		n, err := s.syncFolderBookmarks(ctx, session, folder)
		if err != nil {
			return total, err
		}
		total += n
	}

	if err := s.finishBookmarks(ctx); err != nil {
		return total, err
	}

	s.logger.Printf("Synced %d bookmarks across %d folders", total, len(folders))
	return total, nil
}

func (s *Syncer) syncFolderBookmarks(ctx context.Context, session Session, folder store.Row) (int, error) {
	folderID := folder[FolderPK]
	title := folder["title"]
	if title == nil {
		title = folderID
	}

	fmt.Fprintf(s.out, "Fetching bookmarks of folder %v...\n", title)

	bookmarks, err := session.ListBookmarks(ctx, fmt.Sprint(folderID), s.cfg.BookmarkLimit)
	if err != nil {
		return 0, fmt.Errorf("failed to list bookmarks of folder %v: %w", title, err)
	}

	fmt.Fprintf(s.out, "Downloaded %d bookmarks from folder '%v'.\n", len(bookmarks), title)

	rows := make([]store.Row, 0, len(bookmarks))
	for _, b := range bookmarks {
		row := pick(b.Attributes(), instapaper.BookmarkAttributes)
		// The folder being exported wins over anything the API reported.
		row[FolderPK] = folderID
		rows = append(rows, row)
	}

	if err := s.db.UpsertAll(ctx, BookmarksTable, rows, store.UpsertOptions{PK: BookmarkPK, Alter: true}); err != nil {
		return 0, fmt.Errorf("failed to save bookmarks of folder %v: %w", title, err)
	}

	return len(rows), nil
}

// finishBookmarks adds the index on time and the folder foreign key.
func (s *Syncer) finishBookmarks(ctx context.Context) error {
	ok, err := s.db.TableExists(ctx, BookmarksTable)
	if err != nil {
		return err
	}
	if !ok {
		s.logger.Printf("No bookmarks written, skipping index maintenance")
		return nil
	}

	if err := s.db.CreateIndex(ctx, BookmarksTable, []string{"time"}, true); err != nil {
		return fmt.Errorf("failed to index bookmarks: %w", err)
	}

	if err := s.db.AddForeignKey(ctx, BookmarksTable, FolderPK, FoldersTable, FolderPK); err != nil {
		s.logger.Printf("Skipping foreign key on %s.%s: %v", BookmarksTable, FolderPK, err)
	}

	if err := s.db.IndexForeignKeys(ctx); err != nil {
		return fmt.Errorf("failed to index foreign keys: %w", err)
	}

	return nil
}

func syntheticFolderRows() []store.Row {
	rows := make([]store.Row, 0, len(SyntheticFolders))
	for _, name := range SyntheticFolders {
		rows = append(rows, store.Row{FolderPK: name, "title": name})
	}
	return rows
}

// pick copies the whitelisted attributes into a new row.
func pick(attrs map[string]any, whitelist []string) store.Row {
	row := make(store.Row, len(whitelist))
	for _, key := range whitelist {
		if v, ok := attrs[key]; ok {
			row[key] = v
		}
	}
	return row
}
