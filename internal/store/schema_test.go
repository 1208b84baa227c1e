package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// seedFoldersAndBookmarks writes a folders table and a bookmarks table whose
// folder_id values all exist in folders.
func seedFoldersAndBookmarks(t *testing.T, db *DB) {
	t.Helper()
	ctx := context.Background()

	folders := []Row{
		{"folder_id": 111, "title": "Tech"},
		{"folder_id": "unread", "title": "unread"},
	}
	if err := db.UpsertAll(ctx, "folders", folders, UpsertOptions{PK: "folder_id", Alter: true}); err != nil {
		t.Fatalf("failed to seed folders: %v", err)
	}

	bookmarks := []Row{
		{"bookmark_id": 1, "folder_id": "111", "time": 1700000000},
		{"bookmark_id": 2, "folder_id": "unread", "time": 1700000100},
	}
	if err := db.UpsertAll(ctx, "bookmarks", bookmarks, UpsertOptions{PK: "bookmark_id", Alter: true}); err != nil {
		t.Fatalf("failed to seed bookmarks: %v", err)
	}
}

func indexColumnSets(t *testing.T, db *DB, table string) map[string][]string {
	t.Helper()

	indexes, err := db.Indexes(context.Background(), table)
	if err != nil {
		t.Fatalf("Indexes() failed: %v", err)
	}
	got := make(map[string][]string, len(indexes))
	for _, idx := range indexes {
		got[idx.Name] = idx.Columns
	}
	return got
}

func TestCreateIndex_IfNotExists(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedFoldersAndBookmarks(t, db)

	for i := 0; i < 2; i++ {
		if err := db.CreateIndex(ctx, "bookmarks", []string{"time"}, true); err != nil {
			t.Fatalf("CreateIndex() run %d failed: %v", i+1, err)
		}
	}

	if err := db.CreateIndex(ctx, "bookmarks", []string{"time"}, false); err == nil {
		t.Error("CreateIndex() without ifNotExists should fail for an existing index")
	}

	got := indexColumnSets(t, db, "bookmarks")
	if diff := cmp.Diff([]string{"time"}, got["idx_bookmarks_time"]); diff != "" {
		t.Errorf("idx_bookmarks_time columns mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateIndex_NoSuchTable(t *testing.T) {
	db := openTestDB(t)

	err := db.CreateIndex(context.Background(), "bookmarks", []string{"time"}, true)
	if !errors.Is(err, ErrNoSuchTable) {
		t.Errorf("CreateIndex() error = %v, want ErrNoSuchTable", err)
	}
}

func TestAddForeignKey_GuessesTable(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedFoldersAndBookmarks(t, db)

	if err := db.CreateIndex(ctx, "bookmarks", []string{"time"}, true); err != nil {
		t.Fatalf("CreateIndex() failed: %v", err)
	}

	if err := db.AddForeignKey(ctx, "bookmarks", "folder_id", "", ""); err != nil {
		t.Fatalf("AddForeignKey() failed: %v", err)
	}

	fks, err := db.ForeignKeys(ctx, "bookmarks")
	if err != nil {
		t.Fatalf("ForeignKeys() failed: %v", err)
	}
	want := []ForeignKey{{Table: "bookmarks", Column: "folder_id", OtherTable: "folders", OtherColumn: "folder_id"}}
	if diff := cmp.Diff(want, fks); diff != "" {
		t.Errorf("foreign keys mismatch (-want +got):\n%s", diff)
	}

	// The rebuild keeps rows and indexes.
	count, err := db.Count(ctx, "bookmarks")
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if count != 2 {
		t.Errorf("bookmark count = %d, want 2", count)
	}
	if _, ok := indexColumnSets(t, db, "bookmarks")["idx_bookmarks_time"]; !ok {
		t.Error("idx_bookmarks_time lost during rebuild")
	}
}

func TestAddForeignKey_AlreadyExists(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedFoldersAndBookmarks(t, db)

	if err := db.AddForeignKey(ctx, "bookmarks", "folder_id", "folders", "folder_id"); err != nil {
		t.Fatalf("AddForeignKey() failed: %v", err)
	}

	err := db.AddForeignKey(ctx, "bookmarks", "folder_id", "folders", "folder_id")
	if !errors.Is(err, ErrForeignKeyExists) {
		t.Errorf("second AddForeignKey() error = %v, want ErrForeignKeyExists", err)
	}
}

func TestAddForeignKey_DanglingReference(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedFoldersAndBookmarks(t, db)

	orphan := []Row{{"bookmark_id": 3, "folder_id": "gone", "time": 1}}
	if err := db.UpsertAll(ctx, "bookmarks", orphan, UpsertOptions{PK: "bookmark_id"}); err != nil {
		t.Fatalf("UpsertAll() failed: %v", err)
	}

	if err := db.AddForeignKey(ctx, "bookmarks", "folder_id", "", ""); err == nil {
		t.Fatal("AddForeignKey() should fail when rows reference a missing folder")
	}

	fks, err := db.ForeignKeys(ctx, "bookmarks")
	if err != nil {
		t.Fatalf("ForeignKeys() failed: %v", err)
	}
	if len(fks) != 0 {
		t.Errorf("failed AddForeignKey() left foreign keys behind: %+v", fks)
	}
	count, err := db.Count(ctx, "bookmarks")
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if count != 3 {
		t.Errorf("bookmark count = %d, want 3", count)
	}
}

func TestAddForeignKey_NoReferencedTable(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	rows := []Row{{"bookmark_id": 1, "folder_id": "unread"}}
	if err := db.UpsertAll(ctx, "bookmarks", rows, UpsertOptions{PK: "bookmark_id"}); err != nil {
		t.Fatalf("UpsertAll() failed: %v", err)
	}

	err := db.AddForeignKey(ctx, "bookmarks", "folder_id", "", "")
	if !errors.Is(err, ErrNoSuchTable) {
		t.Errorf("AddForeignKey() error = %v, want ErrNoSuchTable", err)
	}
}

func TestAddForeignKey_NoSuchColumn(t *testing.T) {
	db := openTestDB(t)
	seedFoldersAndBookmarks(t, db)

	err := db.AddForeignKey(context.Background(), "bookmarks", "tag_id", "", "")
	if !errors.Is(err, ErrNoSuchColumn) {
		t.Errorf("AddForeignKey() error = %v, want ErrNoSuchColumn", err)
	}
}

func TestIndexForeignKeys(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedFoldersAndBookmarks(t, db)

	if err := db.AddForeignKey(ctx, "bookmarks", "folder_id", "", ""); err != nil {
		t.Fatalf("AddForeignKey() failed: %v", err)
	}

	// Running twice must not create a second index.
	for i := 0; i < 2; i++ {
		if err := db.IndexForeignKeys(ctx); err != nil {
			t.Fatalf("IndexForeignKeys() run %d failed: %v", i+1, err)
		}
	}

	got := indexColumnSets(t, db, "bookmarks")
	if diff := cmp.Diff([]string{"folder_id"}, got["idx_bookmarks_folder_id"]); diff != "" {
		t.Errorf("idx_bookmarks_folder_id columns mismatch (-want +got):\n%s", diff)
	}

	var fkIndexes int
	for _, cols := range got {
		if len(cols) > 0 && cols[0] == "folder_id" {
			fkIndexes++
		}
	}
	if fkIndexes != 1 {
		t.Errorf("found %d indexes leading with folder_id, want 1", fkIndexes)
	}
}

func TestTables(t *testing.T) {
	db := openTestDB(t)
	seedFoldersAndBookmarks(t, db)

	got, err := db.Tables(context.Background())
	if err != nil {
		t.Fatalf("Tables() failed: %v", err)
	}
	if diff := cmp.Diff([]string{"bookmarks", "folders"}, got); diff != "" {
		t.Errorf("tables mismatch (-want +got):\n%s", diff)
	}
}
