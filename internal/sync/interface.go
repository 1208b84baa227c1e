// Package sync exports Instapaper folders and bookmarks into the local
// database.
package sync

import (
	"context"

	"github.com/ipsqlite/instapaper-to-sqlite/internal/credentials"
	"github.com/ipsqlite/instapaper-to-sqlite/internal/instapaper"
)

// Session is the part of an authenticated API session the syncer reads from.
// *instapaper.Session satisfies it.
type Session interface {
	// ListFolders returns the folders created by the user. The built-in
	// archive, unread and starred folders are not included.
	ListFolders(ctx context.Context) ([]instapaper.Folder, error)

	// ListBookmarks returns up to limit bookmarks stored in folderID.
	ListBookmarks(ctx context.Context, folderID string, limit int) ([]instapaper.Bookmark, error)
}

// LoginFunc authenticates with creds and returns a ready session.
//
// Rejected credentials must be reported with an error matching
// instapaper.ErrAuth.
type LoginFunc func(ctx context.Context, creds *credentials.Credentials) (Session, error)

// InstapaperLogin returns a LoginFunc that performs the xAuth handshake
// against the Instapaper API. opts are passed to instapaper.NewClient.
func InstapaperLogin(opts ...instapaper.Option) LoginFunc {
	return func(ctx context.Context, creds *credentials.Credentials) (Session, error) {
		client := instapaper.NewClient(creds.ConsumerID, creds.ConsumerSecret, opts...)
		session, err := client.Login(ctx, creds.Email, creds.Password)
		if err != nil {
			return nil, err
		}
		return session, nil
	}
}
