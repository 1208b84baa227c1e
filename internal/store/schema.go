package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// ForeignKey is a single-column reference from Table.Column to
// OtherTable.OtherColumn.
type ForeignKey struct {
	Table       string
	Column      string
	OtherTable  string
	OtherColumn string
}

// Index describes a named index and its columns.
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// Tables returns the names of all user tables.
func (db *DB) Tables(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}
	return names, nil
}

// CreateIndex creates an index named idx_<table>_<columns> on table.
// With ifNotExists set an existing index of that name is left alone.
func (db *DB) CreateIndex(ctx context.Context, table string, columns []string, ifNotExists bool) error {
	if len(columns) == 0 {
		return fmt.Errorf("create index on %s: no columns given", table)
	}
	if err := db.requireTable(ctx, table); err != nil {
		return err
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
	}

	name := "idx_" + table + "_" + strings.Join(columns, "_")
	stmt := "CREATE INDEX "
	if ifNotExists {
		stmt += "IF NOT EXISTS "
	}
	stmt += quoteIdent(name) + " ON " + quoteIdent(table) + " (" + strings.Join(quoted, ", ") + ")"

	if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create index %s: %w", name, err)
	}

	db.logger.Printf("Created index %s", name)
	return nil
}

// Indexes returns the indexes declared on table, including automatic ones.
func (db *DB) Indexes(ctx context.Context, table string) ([]Index, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT name, "unique" FROM pragma_index_list(?)`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexes of %s: %w", table, err)
	}

	var indexes []Index
	for rows.Next() {
		var idx Index
		var unique int
		if err := rows.Scan(&idx.Name, &unique); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan index of %s: %w", table, err)
		}
		idx.Unique = unique != 0
		indexes = append(indexes, idx)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating indexes of %s: %w", table, err)
	}
	rows.Close()

	for i := range indexes {
		cols, err := db.indexColumns(ctx, indexes[i].Name)
		if err != nil {
			return nil, err
		}
		indexes[i].Columns = cols
	}

	return indexes, nil
}

func (db *DB) indexColumns(ctx context.Context, index string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT name FROM pragma_index_info(?) ORDER BY seqno`, index)
	if err != nil {
		return nil, fmt.Errorf("failed to read index %s: %w", index, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		// Expression and rowid entries have no column name.
		var name sql.NullString
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan index column: %w", err)
		}
		cols = append(cols, name.String)
	}
	return cols, rows.Err()
}

// ForeignKeys returns the foreign keys declared on table.
func (db *DB) ForeignKeys(ctx context.Context, table string) ([]ForeignKey, error) {
	return foreignKeys(ctx, db.conn, table)
}

func foreignKeys(ctx context.Context, q queryer, table string) ([]ForeignKey, error) {
	rows, err := q.QueryContext(ctx, `SELECT "table", "from", "to" FROM pragma_foreign_key_list(?) ORDER BY id, seq`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to list foreign keys of %s: %w", table, err)
	}
	defer rows.Close()

	var fks []ForeignKey
	for rows.Next() {
		fk := ForeignKey{Table: table}
		if err := rows.Scan(&fk.OtherTable, &fk.Column, &fk.OtherColumn); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key of %s: %w", table, err)
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

// AddForeignKey declares table.column as a reference to
// otherTable.otherColumn.
//
// An empty otherTable is guessed from the column name: folder_id looks for a
// folder or folders table. An empty otherColumn means the primary key of
// otherTable.
//
// SQLite cannot add a constraint to an existing table, so the table is rebuilt
// with the constraint in place and its indexes are recreated. Existing rows
// must satisfy the new constraint or nothing changes.
func (db *DB) AddForeignKey(ctx context.Context, table, column, otherTable, otherColumn string) error {
	if err := db.requireTable(ctx, table); err != nil {
		return err
	}

	cols, err := db.Columns(ctx, table)
	if err != nil {
		return err
	}
	if !hasColumn(cols, column) {
		return fmt.Errorf("%w: %s.%s", ErrNoSuchColumn, table, column)
	}

	existing, err := db.ForeignKeys(ctx, table)
	if err != nil {
		return err
	}
	for _, fk := range existing {
		if fk.Column == column {
			return fmt.Errorf("%w: %s.%s -> %s.%s", ErrForeignKeyExists, table, column, fk.OtherTable, fk.OtherColumn)
		}
	}

	if otherTable == "" {
		otherTable, err = db.guessForeignTable(ctx, column)
		if err != nil {
			return err
		}
	}

	otherCols, err := db.Columns(ctx, otherTable)
	if err != nil {
		return err
	}
	if len(otherCols) == 0 {
		return fmt.Errorf("%w: %s", ErrNoSuchTable, otherTable)
	}
	if otherColumn == "" {
		otherColumn = primaryKey(otherCols)
		if otherColumn == "" {
			return fmt.Errorf("%w: %s has no primary key", ErrNoSuchColumn, otherTable)
		}
	} else if !hasColumn(otherCols, otherColumn) {
		return fmt.Errorf("%w: %s.%s", ErrNoSuchColumn, otherTable, otherColumn)
	}

	fk := ForeignKey{Table: table, Column: column, OtherTable: otherTable, OtherColumn: otherColumn}
	if err := db.rebuildWithForeignKeys(ctx, table, cols, append(existing, fk)); err != nil {
		return err
	}

	db.logger.Printf("Added foreign key %s.%s -> %s.%s", table, column, otherTable, otherColumn)
	return nil
}

// IndexForeignKeys creates an index for every foreign key column in the
// database that is not already the leading column of an index.
func (db *DB) IndexForeignKeys(ctx context.Context) error {
	tables, err := db.Tables(ctx)
	if err != nil {
		return err
	}

	for _, table := range tables {
		fks, err := db.ForeignKeys(ctx, table)
		if err != nil {
			return err
		}
		if len(fks) == 0 {
			continue
		}

		indexes, err := db.Indexes(ctx, table)
		if err != nil {
			return err
		}
		leading := make(map[string]bool, len(indexes))
		for _, idx := range indexes {
			if len(idx.Columns) > 0 {
				leading[idx.Columns[0]] = true
			}
		}

		for _, fk := range fks {
			if leading[fk.Column] {
				continue
			}
			if err := db.CreateIndex(ctx, table, []string{fk.Column}, true); err != nil {
				return err
			}
			leading[fk.Column] = true
		}
	}

	return nil
}

func (db *DB) guessForeignTable(ctx context.Context, column string) (string, error) {
	base := strings.TrimSuffix(column, "_id")
	for _, candidate := range []string{base, base + "s"} {
		ok, err := db.TableExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if ok {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: cannot guess table referenced by %s", ErrNoSuchTable, column)
}

// rebuildWithForeignKeys recreates table with the given foreign keys, copying
// rows and index definitions across in a single transaction.
func (db *DB) rebuildWithForeignKeys(ctx context.Context, table string, cols []Column, fks []ForeignKey) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT sql FROM sqlite_master WHERE type = 'index' AND tbl_name = ? AND sql IS NOT NULL`, table)
	if err != nil {
		return fmt.Errorf("failed to read indexes of %s: %w", table, err)
	}
	var indexSQL []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan index definition: %w", err)
		}
		indexSQL = append(indexSQL, s)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("error iterating index definitions: %w", err)
	}
	rows.Close()

	tmp := table + "_new_fk"
	if _, err := tx.ExecContext(ctx, createTableSQL(tmp, cols, fks)); err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = quoteIdent(c.Name)
	}
	list := strings.Join(names, ", ")
	copyStmt := "INSERT INTO " + quoteIdent(tmp) + " (" + list + ") SELECT " + list + " FROM " + quoteIdent(table)
	if _, err := tx.ExecContext(ctx, copyStmt); err != nil {
		return fmt.Errorf("failed to copy rows of %s: %w", table, err)
	}

	if _, err := tx.ExecContext(ctx, "DROP TABLE "+quoteIdent(table)); err != nil {
		return fmt.Errorf("failed to drop %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, "ALTER TABLE "+quoteIdent(tmp)+" RENAME TO "+quoteIdent(table)); err != nil {
		return fmt.Errorf("failed to rename %s: %w", tmp, err)
	}

	for _, s := range indexSQL {
		if _, err := tx.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("failed to recreate index on %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rebuild of %s: %w", table, err)
	}
	return nil
}

func createTableSQL(table string, cols []Column, fks []ForeignKey) string {
	var defs []string
	pkCount := 0
	for _, c := range cols {
		def := quoteIdent(c.Name)
		if c.Type != "" {
			def += " " + c.Type
		}
		if c.NotNull {
			def += " NOT NULL"
		}
		if c.Default.Valid {
			def += " DEFAULT " + c.Default.String
		}
		defs = append(defs, def)
		if c.PK > 0 {
			pkCount++
		}
	}

	if pkCount > 0 {
		ordered := make([]string, pkCount)
		for _, c := range cols {
			if c.PK > 0 && c.PK <= len(ordered) {
				ordered[c.PK-1] = quoteIdent(c.Name)
			}
		}
		defs = append(defs, "PRIMARY KEY ("+strings.Join(ordered, ", ")+")")
	}

	for _, fk := range fks {
		defs = append(defs, "FOREIGN KEY ("+quoteIdent(fk.Column)+") REFERENCES "+
			quoteIdent(fk.OtherTable)+"("+quoteIdent(fk.OtherColumn)+")")
	}

	return "CREATE TABLE " + quoteIdent(table) + " (\n\t" + strings.Join(defs, ",\n\t") + "\n)"
}

func hasColumn(cols []Column, name string) bool {
	for _, c := range cols {
		if c.Name == name {
			return true
		}
	}
	return false
}

func primaryKey(cols []Column) string {
	for _, c := range cols {
		if c.PK == 1 {
			return c.Name
		}
	}
	return ""
}
