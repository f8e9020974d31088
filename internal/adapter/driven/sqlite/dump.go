package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// dumpSQL serializes the entire database reachable through db as portable
// SQL text: header comments, pragmas, DDL for every non-internal object with
// tables first, then one INSERT per row in table order, all inside one
// transaction. SQLite internal objects (sqlite_sequence and friends) are
// skipped; the sanitizer on the import side drops them again.
func dumpSQL(ctx context.Context, db *sql.DB) (string, error) {
	var b strings.Builder

	version, err := dumpUserVersion(ctx, db)
	if err != nil {
		return "", err
	}

	fmt.Fprintf(&b, "-- provswitch SQLite export\n-- Generated: %s\n-- user_version: %d\n",
		time.Now().UTC().Format("2006-01-02 15:04:05"), version)
	b.WriteString("PRAGMA foreign_keys=OFF;\n")
	fmt.Fprintf(&b, "PRAGMA user_version=%d;\n", version)
	b.WriteString("BEGIN TRANSACTION;\n")

	tables, err := dumpSchema(ctx, db, &b)
	if err != nil {
		return "", err
	}

	for _, table := range tables {
		if err := dumpTableRows(ctx, db, &b, table); err != nil {
			return "", err
		}
	}

	b.WriteString("COMMIT;\nPRAGMA foreign_keys=ON;\n")
	return b.String(), nil
}

func dumpUserVersion(ctx context.Context, db *sql.DB) (int64, error) {
	var version int64
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}
	return version, nil
}

// dumpSchema writes DDL for every non-internal object, tables before
// dependent objects, and returns the table names in dump order.
func dumpSchema(ctx context.Context, db *sql.DB, b *strings.Builder) ([]string, error) {
	const query = `SELECT type, name, sql FROM sqlite_master
		WHERE sql NOT NULL AND type IN ('table', 'index', 'trigger', 'view')
		ORDER BY type = 'table' DESC, name`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read schema objects: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var objType, name, ddl string
		if err := rows.Scan(&objType, &name, &ddl); err != nil {
			return nil, fmt.Errorf("scan schema object: %w", err)
		}
		if strings.HasPrefix(name, "sqlite_") {
			continue
		}

		b.WriteString(ddl)
		b.WriteString(";\n")
		if objType == "table" {
			tables = append(tables, name)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schema objects: %w", err)
	}
	return tables, nil
}

func dumpTableRows(ctx context.Context, db *sql.DB, b *strings.Builder, table string) error {
	columns, err := dumpTableColumns(ctx, db, table)
	if err != nil {
		return err
	}
	if len(columns) == 0 {
		return nil
	}

	quotedCols := make([]string, len(columns))
	for i, c := range columns {
		quotedCols[i] = `"` + c + `"`
	}
	insertPrefix := fmt.Sprintf(`INSERT INTO "%s" (%s) VALUES (`, table, strings.Join(quotedCols, ", "))

	rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM "%s"`, table))
	if err != nil {
		return fmt.Errorf("read rows of %s: %w", table, err)
	}
	defer rows.Close()

	values := make([]any, len(columns))
	dests := make([]any, len(columns))
	for i := range values {
		dests[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(dests...); err != nil {
			return fmt.Errorf("scan row of %s: %w", table, err)
		}

		literals := make([]string, len(values))
		for i, v := range values {
			lit, err := formatSQLValue(v)
			if err != nil {
				return fmt.Errorf("format %s.%s: %w", table, columns[i], err)
			}
			literals[i] = lit
		}

		b.WriteString(insertPrefix)
		b.WriteString(strings.Join(literals, ", "))
		b.WriteString(");\n")
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate rows of %s: %w", table, err)
	}
	return nil
}

func dumpTableColumns(ctx context.Context, db *sql.DB, table string) ([]string, error) {
	if err := validateIdentifier(table, "table name"); err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info("%s")`, table))
	if err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, colType    string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan column of %s: %w", table, err)
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns of %s: %w", table, err)
	}
	return columns, nil
}

// formatSQLValue renders a scanned value as an SQLite literal: bare numbers,
// quote-doubled text, hex blobs, NULL.
func formatSQLValue(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "NULL", nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), nil
	case bool:
		if val {
			return "1", nil
		}
		return "0", nil
	case string:
		return quoteSQLText(val), nil
	case []byte:
		var hex strings.Builder
		hex.WriteString("X'")
		for _, c := range val {
			fmt.Fprintf(&hex, "%02X", c)
		}
		hex.WriteString("'")
		return hex.String(), nil
	case time.Time:
		return quoteSQLText(val.UTC().Format(time.RFC3339Nano)), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}

// quoteSQLText wraps s in single quotes with quote-doubling escaping.
func quoteSQLText(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
