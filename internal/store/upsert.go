package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// UpsertOptions configures UpsertAll.
type UpsertOptions struct {
	// PK is the primary key column. Rows sharing a PK value are updated
	// instead of duplicated.
	PK string
	// Alter adds columns for attributes the table has not seen before.
	// Without it such rows are rejected with ErrNoSuchColumn.
	Alter bool
}

// Column describes one table column as reported by SQLite.
type Column struct {
	Name    string
	Type    string
	NotNull bool
	Default sql.NullString
	PK      int // 1-based position in the primary key, 0 if not part of it
}

// UpsertAll inserts rows into table, updating existing rows that share the
// primary key. Only the columns present in a row are written, so values
// stored by earlier runs for other columns survive.
//
// The table is created on first use. All rows are written in one transaction
// which commits before UpsertAll returns.
func (db *DB) UpsertAll(ctx context.Context, table string, rows []Row, opts UpsertOptions) error {
	if len(rows) == 0 {
		return nil
	}
	if opts.PK == "" {
		return fmt.Errorf("upsert into %s: primary key column is required", table)
	}

	normalized := make([]Row, len(rows))
	for i, row := range rows {
		if _, ok := row[opts.PK]; !ok {
			return fmt.Errorf("upsert into %s: row %d has no %s value", table, i, opts.PK)
		}
		n := make(Row, len(row))
		for col, v := range row {
			nv, err := normalizeValue(v)
			if err != nil {
				return fmt.Errorf("upsert into %s: column %s: %w", table, col, err)
			}
			n[col] = nv
		}
		normalized[i] = n
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := ensureTable(ctx, tx, table, normalized, opts); err != nil {
		return err
	}

	for _, row := range normalized {
		if err := upsertRow(ctx, tx, table, opts.PK, row); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upsert into %s: %w", table, err)
	}

	db.logger.Printf("Upserted %d rows into %s", len(rows), table)
	return nil
}

// Columns returns the columns of table in declaration order.
func (db *DB) Columns(ctx context.Context, table string) ([]Column, error) {
	return tableColumns(ctx, db.conn, table)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type execQueryer interface {
	queryer
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func tableColumns(ctx context.Context, q queryer, table string) ([]Column, error) {
	rows, err := q.QueryContext(ctx, "SELECT name, type, \"notnull\", dflt_value, pk FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		var notNull int
		if err := rows.Scan(&c.Name, &c.Type, &notNull, &c.Default, &c.PK); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		c.NotNull = notNull != 0
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns of %s: %w", table, err)
	}
	return cols, nil
}

// ensureTable creates table or extends it so every column in rows exists.
func ensureTable(ctx context.Context, tx execQueryer, table string, rows []Row, opts UpsertOptions) error {
	order := columnOrder(rows, opts.PK)
	types := suggestColumnTypes(rows)

	existing, err := tableColumns(ctx, tx, table)
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		defs := make([]string, 0, len(order)+1)
		for _, col := range order {
			defs = append(defs, quoteIdent(col)+" "+types[col])
		}
		defs = append(defs, "PRIMARY KEY ("+quoteIdent(opts.PK)+")")

		stmt := "CREATE TABLE IF NOT EXISTS " + quoteIdent(table) + " (\n\t" + strings.Join(defs, ",\n\t") + "\n)"
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table %s: %w", table, err)
		}
		return nil
	}

	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[c.Name] = true
	}

	for _, col := range order {
		if have[col] {
			continue
		}
		if !opts.Alter {
			return fmt.Errorf("%w: %s.%s", ErrNoSuchColumn, table, col)
		}
		stmt := "ALTER TABLE " + quoteIdent(table) + " ADD COLUMN " + quoteIdent(col) + " " + types[col]
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to add column %s to %s: %w", col, table, err)
		}
	}

	return nil
}

func upsertRow(ctx context.Context, tx execQueryer, table, pk string, row Row) error {
	cols := sortedKeys(row, pk)

	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	var updates []string
	for i, col := range cols {
		quoted[i] = quoteIdent(col)
		placeholders[i] = "?"
		args[i] = row[col]
		if col != pk {
			updates = append(updates, quoted[i]+" = excluded."+quoted[i])
		}
	}

	query := "INSERT INTO " + quoteIdent(table) + " (" + strings.Join(quoted, ", ") + ")" +
		" VALUES (" + strings.Join(placeholders, ", ") + ")" +
		" ON CONFLICT(" + quoteIdent(pk) + ")"
	if len(updates) == 0 {
		query += " DO NOTHING"
	} else {
		query += " DO UPDATE SET " + strings.Join(updates, ", ")
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert %s=%v into %s: %w", pk, row[pk], table, err)
	}
	return nil
}

// columnOrder lists every column in rows: the primary key first, then the
// remaining names sorted.
func columnOrder(rows []Row, pk string) []string {
	seen := map[string]bool{pk: true}
	var rest []string
	for _, row := range rows {
		for col := range row {
			if !seen[col] {
				seen[col] = true
				rest = append(rest, col)
			}
		}
	}
	sort.Strings(rest)
	return append([]string{pk}, rest...)
}

func sortedKeys(row Row, pk string) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		if k != pk {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return append([]string{pk}, keys...)
}

// suggestColumnTypes picks a SQLite type per column from normalized values.
// Integers stay INTEGER, any float widens to FLOAT, anything else is TEXT.
func suggestColumnTypes(rows []Row) map[string]string {
	kinds := make(map[string]map[string]bool)
	for _, row := range rows {
		for col, v := range row {
			if kinds[col] == nil {
				kinds[col] = make(map[string]bool)
			}
			switch v.(type) {
			case nil:
			case int64:
				kinds[col]["INTEGER"] = true
			case float64:
				kinds[col]["FLOAT"] = true
			case []byte:
				kinds[col]["BLOB"] = true
			default:
				kinds[col]["TEXT"] = true
			}
		}
	}

	types := make(map[string]string, len(kinds))
	for col, k := range kinds {
		switch {
		case len(k) == 1 && k["INTEGER"]:
			types[col] = "INTEGER"
		case len(k) == 1 && k["BLOB"]:
			types[col] = "BLOB"
		case len(k) > 0 && !k["TEXT"] && !k["BLOB"]:
			types[col] = "FLOAT"
		default:
			types[col] = "TEXT"
		}
	}
	return types
}

// normalizeValue converts v into one of the types SQLite stores natively:
// nil, int64, float64, string or []byte.
func normalizeValue(v any) (any, error) {
	switch t := v.(type) {
	case nil, int64, float64, string, []byte:
		return t, nil
	case bool:
		if t {
			return int64(1), nil
		}
		return int64(0), nil
	case int:
		return int64(t), nil
	case int8:
		return int64(t), nil
	case int16:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case uint:
		return int64(t), nil
	case uint8:
		return int64(t), nil
	case uint16:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case uint64:
		return int64(t), nil
	case float32:
		return float64(t), nil
	case time.Time:
		return t.UTC().Format(time.RFC3339), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", t, err)
		}
		return f, nil
	case fmt.Stringer:
		return t.String(), nil
	default:
		// Nested values are stored as JSON text.
		data, err := json.Marshal(t)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %T: %w", v, err)
		}
		return string(data), nil
	}
}
