package storage

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"datachat/datastore"
)

// ErrUnknownDataset is returned when a dataset name is not in the catalog.
var ErrUnknownDataset = errors.New("unknown dataset")

// Column types as reported to pipelines and the model.
const (
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeString  = "string"
	TypeBoolean = "boolean"
	TypeUnknown = "unknown"
)

const catalogTable = "_datachat_datasets"

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type DatasetInfo struct {
	Name       string
	Columns    []datastore.Column
	Rows       int
	Source     string
	ImportedAt time.Time
}

// QueryResult is a page of rows from a read-only query.
type QueryResult struct {
	Columns []datastore.Column
	Rows    [][]any
}

// DatasetStore keeps imported datasets as SQLite tables plus a small catalog
// describing them.
type DatasetStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDatasetStore opens (creating if needed) the database at path. A
// relative path is resolved against dataDir.
func NewDatasetStore(dataDir, path string, logger *zap.Logger) (*DatasetStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path != ":memory:" && !filepath.IsAbs(path) {
		path = filepath.Join(dataDir, path)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	ds := &DatasetStore{db: db, logger: logger}
	if err := ds.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return ds, nil
}

func (ds *DatasetStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ` + catalogTable + ` (
		name TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		columns TEXT NOT NULL,
		row_count INTEGER NOT NULL,
		imported_at DATETIME NOT NULL
	);
	`
	_, err := ds.db.Exec(schema)
	return err
}

func (ds *DatasetStore) Close() error {
	return ds.db.Close()
}

// TableName derives a valid table name from a file name.
func TableName(file string) string {
	base := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	var b strings.Builder
	for _, r := range strings.ToLower(base) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	name := strings.Trim(b.String(), "_")
	if name == "" {
		return "dataset"
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "t_" + name
	}
	return name
}

// ImportCSV replaces the table name with the contents of r. The first record
// is the header. Column types are inferred from the values.
func (ds *DatasetStore) ImportCSV(ctx context.Context, name string, r io.Reader) (DatasetInfo, error) {
	if !tableNamePattern.MatchString(name) || name == catalogTable {
		return DatasetInfo{}, fmt.Errorf("invalid dataset name %q", name)
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return DatasetInfo{}, fmt.Errorf("failed to read csv: %w", err)
	}
	if len(records) == 0 {
		return DatasetInfo{}, errors.New("csv has no header")
	}

	header := records[0]
	body := records[1:]
	columns := make([]datastore.Column, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		columns[i] = datastore.Column{Name: h, Type: inferColumnType(body, i)}
	}

	tx, err := ds.db.BeginTx(ctx, nil)
	if err != nil {
		return DatasetInfo{}, fmt.Errorf("failed to begin import: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(name)); err != nil {
		return DatasetInfo{}, fmt.Errorf("failed to drop old table: %w", err)
	}

	defs := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = quoteIdent(col.Name) + " " + sqlType(col.Type)
		placeholders[i] = "?"
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(name), strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return DatasetInfo{}, fmt.Errorf("failed to create table: %w", err)
	}

	insert, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(name), strings.Join(placeholders, ", ")))
	if err != nil {
		return DatasetInfo{}, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer insert.Close()

	for n, rec := range body {
		args := make([]any, len(columns))
		for i, col := range columns {
			var raw string
			if i < len(rec) {
				raw = rec[i]
			}
			args[i] = convertCell(raw, col.Type)
		}
		if _, err := insert.ExecContext(ctx, args...); err != nil {
			return DatasetInfo{}, fmt.Errorf("failed to insert row %d: %w", n+1, err)
		}
	}

	colsJSON, err := json.Marshal(columns)
	if err != nil {
		return DatasetInfo{}, err
	}
	info := DatasetInfo{
		Name:       name,
		Columns:    columns,
		Rows:       len(body),
		Source:     "csv",
		ImportedAt: time.Now().UTC(),
	}
	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO `+catalogTable+` (name, source, columns, row_count, imported_at) VALUES (?, ?, ?, ?, ?)`,
		info.Name, info.Source, string(colsJSON), info.Rows, info.ImportedAt)
	if err != nil {
		return DatasetInfo{}, fmt.Errorf("failed to record dataset: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return DatasetInfo{}, fmt.Errorf("failed to commit import: %w", err)
	}
	ds.logger.Info("dataset imported", zap.String("dataset", name), zap.Int("rows", info.Rows), zap.Int("columns", len(columns)))
	return info, nil
}

// List returns the catalog sorted by name.
func (ds *DatasetStore) List(ctx context.Context) ([]DatasetInfo, error) {
	rows, err := ds.db.QueryContext(ctx,
		`SELECT name, source, columns, row_count, imported_at FROM `+catalogTable+` ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer rows.Close()

	var out []DatasetInfo
	for rows.Next() {
		info, err := scanInfo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Schema returns the catalog entry for name.
func (ds *DatasetStore) Schema(ctx context.Context, name string) (DatasetInfo, error) {
	row := ds.db.QueryRowContext(ctx,
		`SELECT name, source, columns, row_count, imported_at FROM `+catalogTable+` WHERE name = ?`, name)
	info, err := scanInfo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return DatasetInfo{}, fmt.Errorf("%w: %s", ErrUnknownDataset, name)
	}
	return info, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInfo(s scanner) (DatasetInfo, error) {
	var info DatasetInfo
	var cols string
	if err := s.Scan(&info.Name, &info.Source, &cols, &info.Rows, &info.ImportedAt); err != nil {
		return DatasetInfo{}, err
	}
	if err := json.Unmarshal([]byte(cols), &info.Columns); err != nil {
		return DatasetInfo{}, fmt.Errorf("corrupt column list for %s: %w", info.Name, err)
	}
	return info, nil
}

// Query runs a read-only statement and returns at most limit rows. A limit
// of zero or less means no limit.
func (ds *DatasetStore) Query(ctx context.Context, query string, limit int) (QueryResult, error) {
	query, err := ValidateReadOnly(query)
	if err != nil {
		return QueryResult{}, err
	}

	// Rows past limit are never read; running the statement unwrapped keeps
	// the declared column types visible to the driver.
	rows, err := ds.db.QueryContext(ctx, query)
	if err != nil {
		return QueryResult{}, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return QueryResult{}, err
	}
	result := QueryResult{Columns: make([]datastore.Column, len(colTypes)), Rows: [][]any{}}
	for i, ct := range colTypes {
		result.Columns[i] = datastore.Column{Name: ct.Name(), Type: normalizeType(ct.DatabaseTypeName())}
	}

	for (limit <= 0 || len(result.Rows) < limit) && rows.Next() {
		values := make([]any, len(colTypes))
		ptrs := make([]any, len(colTypes))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return QueryResult{}, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range values {
			values[i] = convertValue(v, result.Columns[i].Type)
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return QueryResult{}, fmt.Errorf("query failed: %w", err)
	}

	// expression columns carry no declared type
	for i, col := range result.Columns {
		if col.Type == TypeUnknown {
			result.Columns[i].Type = typeOfValues(result.Rows, i)
		}
	}
	return result, nil
}

// Count returns the number of rows query would produce without a limit.
func (ds *DatasetStore) Count(ctx context.Context, query string) (int, error) {
	query, err := ValidateReadOnly(query)
	if err != nil {
		return 0, err
	}
	var n int
	if err := ds.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ("+query+")").Scan(&n); err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}
	return n, nil
}

var writeKeyword = regexp.MustCompile(`(?i)\b(insert|update|delete|drop|alter|create|replace\s+into|attach|detach|pragma|vacuum|reindex|truncate)\b`)

// ValidateReadOnly accepts a single SELECT or WITH statement and returns it
// without a trailing semicolon. Keywords and semicolons inside string
// literals, quoted identifiers and comments are ignored.
func ValidateReadOnly(query string) (string, error) {
	q := strings.TrimSpace(query)
	q = strings.TrimSpace(strings.TrimRight(q, ";"))
	if q == "" {
		return "", errors.New("empty query")
	}
	code, clean := scanSQL(q)
	if strings.TrimSpace(code) == "" {
		return "", errors.New("empty query")
	}
	if strings.Contains(code, ";") {
		return "", errors.New("only a single statement is allowed")
	}
	first := strings.ToLower(strings.Fields(code)[0])
	if first != "select" && first != "with" {
		return "", fmt.Errorf("only SELECT queries are allowed, got %s", strings.ToUpper(first))
	}
	if kw := writeKeyword.FindString(code); kw != "" {
		return "", fmt.Errorf("query contains forbidden keyword %s", strings.ToUpper(strings.Fields(kw)[0]))
	}
	return strings.TrimSpace(clean), nil
}

// scanSQL returns q twice: code has the contents of string literals, quoted
// identifiers and comments blanked out, keeping the quote characters; clean
// has only the comments blanked. An unterminated literal runs to the end of
// the query.
func scanSQL(q string) (code, clean string) {
	out := []byte(q)
	stripped := []byte(q)
	blank := func(from, to int) {
		for i := from; i < to && i < len(out); i++ {
			out[i] = ' '
		}
	}
	comment := func(from, to int) {
		blank(from, to)
		for i := from; i < to && i < len(stripped); i++ {
			stripped[i] = ' '
		}
	}
	for i := 0; i < len(q); i++ {
		switch c := q[i]; {
		case c == '\'' || c == '"' || c == '`':
			j := i + 1
			for j < len(q) {
				if q[j] == c {
					if j+1 < len(q) && q[j+1] == c {
						j += 2
						continue
					}
					break
				}
				j++
			}
			blank(i+1, j)
			i = j
		case c == '[':
			j := strings.IndexByte(q[i:], ']')
			if j < 0 {
				j = len(q) - i
			}
			blank(i+1, i+j)
			i += j
		case c == '-' && strings.HasPrefix(q[i:], "--"):
			j := strings.IndexByte(q[i:], '\n')
			if j < 0 {
				j = len(q) - i
			}
			comment(i, i+j)
			i += j
		case c == '/' && strings.HasPrefix(q[i:], "/*"):
			j := strings.Index(q[i+2:], "*/")
			end := len(q)
			if j >= 0 {
				end = i + 2 + j + 2
			}
			comment(i, end)
			i = end - 1
		}
	}
	return string(out), string(stripped)
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func sqlType(typ string) string {
	switch typ {
	case TypeInteger:
		return "INTEGER"
	case TypeNumber:
		return "REAL"
	case TypeBoolean:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

func normalizeType(decl string) string {
	decl = strings.ToUpper(decl)
	switch {
	case decl == "":
		return TypeUnknown
	case strings.Contains(decl, "BOOL"):
		return TypeBoolean
	case strings.Contains(decl, "INT"):
		return TypeInteger
	case strings.Contains(decl, "REAL"), strings.Contains(decl, "FLOA"), strings.Contains(decl, "DOUB"),
		strings.Contains(decl, "NUM"), strings.Contains(decl, "DEC"):
		return TypeNumber
	case strings.Contains(decl, "CHAR"), strings.Contains(decl, "TEXT"), strings.Contains(decl, "CLOB"),
		strings.Contains(decl, "DATE"), strings.Contains(decl, "TIME"):
		return TypeString
	}
	return TypeUnknown
}

func inferColumnType(records [][]string, col int) string {
	typ := ""
	for _, rec := range records {
		if col >= len(rec) {
			continue
		}
		v := strings.TrimSpace(rec[col])
		if v == "" {
			continue
		}
		switch cell := cellType(v); {
		case typ == "":
			typ = cell
		case typ == cell:
		case typ == TypeInteger && cell == TypeNumber, typ == TypeNumber && cell == TypeInteger:
			typ = TypeNumber
		default:
			return TypeString
		}
	}
	if typ == "" {
		return TypeString
	}
	return typ
}

func cellType(v string) string {
	if _, err := strconv.ParseInt(v, 10, 64); err == nil {
		return TypeInteger
	}
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return TypeNumber
	}
	switch strings.ToLower(v) {
	case "true", "false":
		return TypeBoolean
	}
	return TypeString
}

func convertCell(raw, typ string) any {
	v := strings.TrimSpace(raw)
	if v == "" && typ != TypeString {
		return nil
	}
	switch typ {
	case TypeInteger:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case TypeNumber:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	case TypeBoolean:
		if strings.EqualFold(v, "true") {
			return int64(1)
		}
		return int64(0)
	}
	return raw
}

func convertValue(v any, typ string) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case int64:
		if typ == TypeBoolean {
			return val != 0
		}
	}
	return v
}

func typeOfValues(rows [][]any, col int) string {
	for _, row := range rows {
		switch row[col].(type) {
		case nil:
			continue
		case int64:
			return TypeInteger
		case float64:
			return TypeNumber
		case bool:
			return TypeBoolean
		default:
			return TypeString
		}
	}
	return TypeUnknown
}
