package instapaper

// FolderAttributes lists the folder fields persisted by the exporter.
var FolderAttributes = []string{
	"folder_id",
	"title",
	"display_title",
	"sync_to_mobile",
	"position",
}

// BookmarkAttributes lists the bookmark fields persisted by the exporter.
var BookmarkAttributes = []string{
	"bookmark_id",
	"title",
	"description",
	"hash",
	"url",
	"progress",
	"progress_timestamp",
	"starred",
	"time",
}

// Folder is a user-created folder as returned by /folders/list.
type Folder struct {
	FolderID     Int   `json:"folder_id"`
	Title        Text  `json:"title"`
	DisplayTitle Text  `json:"display_title"`
	SyncToMobile Int   `json:"sync_to_mobile"`
	Position     Float `json:"position"`
}

// Attributes returns every known folder field keyed by its API name.
func (f Folder) Attributes() map[string]any {
	return map[string]any{
		"folder_id":      int64(f.FolderID),
		"title":          string(f.Title),
		"display_title":  string(f.DisplayTitle),
		"sync_to_mobile": int64(f.SyncToMobile),
		"position":       float64(f.Position),
	}
}

// Bookmark is a saved article as returned by /bookmarks/list.
type Bookmark struct {
	BookmarkID        Int   `json:"bookmark_id"`
	Title             Text  `json:"title"`
	Description       Text  `json:"description"`
	Hash              Text  `json:"hash"`
	URL               Text  `json:"url"`
	Progress          Float `json:"progress"`
	ProgressTimestamp Int   `json:"progress_timestamp"`
	Starred           Text  `json:"starred"`
	Time              Int   `json:"time"`
	PrivateSource     Text  `json:"private_source"`
}

// Attributes returns every known bookmark field keyed by its API name.
func (b Bookmark) Attributes() map[string]any {
	return map[string]any{
		"bookmark_id":        int64(b.BookmarkID),
		"title":              string(b.Title),
		"description":        string(b.Description),
		"hash":               string(b.Hash),
		"url":                string(b.URL),
		"progress":           float64(b.Progress),
		"progress_timestamp": int64(b.ProgressTimestamp),
		"starred":            string(b.Starred),
		"time":               int64(b.Time),
		"private_source":     string(b.PrivateSource),
	}
}

// User is the account a session is logged in as.
type User struct {
	UserID   Int  `json:"user_id"`
	Username Text `json:"username"`
}
