package api

import (
	"context"
	"database/sql"
	"slices"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// maxQueryRows caps the rows returned by /api/v1/query.
const maxQueryRows = 1000

// readOnly lists the statement keywords /api/v1/query accepts.
var readOnly = []string{"SELECT", "WITH", "SHOW", "DESCRIBE", "SUMMARIZE", "EXPLAIN", "FROM"}

// DBHandler exposes the DuckDB feature index.
type DBHandler struct {
	db *sql.DB
}

func NewDBHandler(db *sql.DB) *DBHandler {
	return &DBHandler{db: db}
}

func (h *DBHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/tables", h.ListTables, huma.OperationTags("db"))
	huma.Post(api, "/api/v1/query", h.Query, huma.OperationTags("db"))
}

type TablesBody struct {
	Tables []string `json:"tables" doc:"Table names"`
}

// ListTables lists the index tables.
func (h *DBHandler) ListTables(ctx context.Context, input *struct{}) (*struct{ Body TablesBody }, error) {
	if h.db == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}
	rows, err := h.db.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list tables", err)
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err == nil {
			tables = append(tables, name)
		}
	}
	return &struct{ Body TablesBody }{Body: TablesBody{Tables: tables}}, nil
}

type QueryInput struct {
	Body struct {
		Query string `json:"query" required:"true" minLength:"1" doc:"Read-only SQL" example:"SELECT dataset, count(*) AS n FROM joined_features GROUP BY dataset"`
	}
}

type QueryBody struct {
	Columns   []string         `json:"columns" doc:"Column names"`
	Rows      []map[string]any `json:"rows" doc:"Result rows"`
	Count     int              `json:"count" doc:"Rows returned"`
	Truncated bool             `json:"truncated,omitempty" doc:"More rows matched than were returned"`
}

// Query runs a read-only statement against the feature index.
func (h *DBHandler) Query(ctx context.Context, input *QueryInput) (*struct{ Body QueryBody }, error) {
	if h.db == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}
	if !isReadOnly(input.Body.Query) {
		return nil, huma.Error400BadRequest("Only read-only statements are allowed")
	}

	rows, err := h.db.QueryContext(ctx, input.Body.Query)
	if err != nil {
		return nil, huma.Error400BadRequest("Query failed: " + err.Error())
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to get columns", err)
	}

	out := QueryBody{Columns: columns, Rows: []map[string]any{}}
	for rows.Next() {
		if len(out.Rows) == maxQueryRows {
			out.Truncated = true
			break
		}
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, huma.Error500InternalServerError("Failed to read row", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out.Rows = append(out.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, huma.Error400BadRequest("Query failed: " + err.Error())
	}
	out.Count = len(out.Rows)
	return &struct{ Body QueryBody }{Body: out}, nil
}

// isReadOnly accepts a single statement starting with a read-only keyword.
func isReadOnly(q string) bool {
	q = strings.TrimSpace(q)
	q = strings.TrimSuffix(q, ";")
	if strings.Contains(q, ";") {
		return false
	}
	fields := strings.Fields(q)
	if len(fields) == 0 {
		return false
	}
	return slices.Contains(readOnly, strings.ToUpper(fields[0]))
}
