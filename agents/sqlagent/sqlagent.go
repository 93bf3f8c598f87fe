// Package sqlagent turns questions into SELECT queries over the student
// SQLite database and executes them.
package sqlagent

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Dagger77/tabdoc/engine/model"
	"github.com/Dagger77/tabdoc/orchestrator"
)

const (
	basicTable    = "student_info_basic"
	detailedTable = "student_info_detailed"
)

const dbSchema = `
CREATE TABLE student_info_detailed (
    Gender TEXT,
    EthnicGroup TEXT,
    ParentEduc TEXT,
    LunchType TEXT,
    TestPrep TEXT,
    ParentMaritalStatus TEXT,
    PracticeSport TEXT,
    IsFirstChild TEXT,
    NrSiblings INTEGER,
    TransportMeans TEXT,
    WklyStudyHours TEXT,
    MathScore INTEGER,
    ReadingScore INTEGER,
    WritingScore INTEGER
);

CREATE TABLE student_info_basic (
    Gender TEXT,
    EthnicGroup TEXT,
    ParentEduc TEXT,
    LunchType TEXT,
    TestPrep TEXT,
    MathScore INTEGER,
    ReadingScore INTEGER,
    WritingScore INTEGER
);
`

const sqlExamples = `
- request: average math score of students who completed test preparation
  response: SELECT AVG(MathScore) FROM student_info_detailed WHERE TestPrep = 'completed'
- request: how many students are first children
  response: SELECT COUNT(*) FROM student_info_detailed WHERE IsFirstChild = 'yes'
- request: list of students who scored above 90 in reading
  response: SELECT * FROM student_info_basic WHERE ReadingScore > 90
`

// categoricalColumns lists the columns whose distinct values are surfaced
// to the model so generated filters match the stored spellings.
var categoricalColumns = []struct {
	table   string
	columns []string
}{
	{basicTable, []string{"Gender", "EthnicGroup", "LunchType", "TestPrep", "ParentEduc"}},
	{detailedTable, []string{"ParentMaritalStatus", "PracticeSport", "IsFirstChild", "TransportMeans", "WklyStudyHours"}},
}

// maxFetchedRows bounds how much of a runaway SELECT is pulled into memory.
const maxFetchedRows = 100

// InvalidRequestError means the model judged the question unanswerable
// against the schema.
type InvalidRequestError struct {
	Message string
}

func (e *InvalidRequestError) Error() string { return e.Message }

// generation is the JSON shape the model is instructed to produce.
type generation struct {
	SQLQuery    string `json:"sql_query"`
	Explanation string `json:"explanation"`
	Error       string `json:"error"`
}

// Agent generates and executes SQL for natural-language questions.
type Agent struct {
	provider   model.Provider
	db         *sql.DB
	maxRetries int
}

// Option configures the agent.
type Option func(*Agent)

// WithMaxRetries sets how many times a rejected generation is retried
// with the validation error fed back to the model.
func WithMaxRetries(n int) Option {
	return func(a *Agent) { a.maxRetries = n }
}

// New creates a SQL agent over the given database handle.
func New(p model.Provider, db *sql.DB, opts ...Option) *Agent {
	a := &Agent{provider: p, db: db, maxRetries: 2}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Agent) systemPrompt(ctx context.Context) string {
	return fmt.Sprintf(`You are an assistant that translates user questions into SQL queries for a SQLite database.

Today's date is %s.

The database contains two related tables that may have overlapping or complementary data:
- student_info_detailed
- student_info_basic

If a question can be answered using data from both tables, generate two separate SELECT queries, one per table, separated by a semicolon; both will be run. Do not use UNION. Assume the tables contain distinct, possibly inconsistent data.

Refer to these distinct categorical values while forming the query:
%s

Here is the schema:
%s
Here are some examples:
%s
Respond with a single JSON object. On success use {"sql_query": "...", "explanation": "..."}; the query must consist of SELECT statements only. If the question cannot be answered from this schema, use {"error": "..."} instead.`,
		time.Now().Format("2006-01-02"), a.valueHints(ctx), dbSchema, sqlExamples)
}

// valueHints summarizes the distinct values of the categorical columns,
// one "- table.column: v1, v2" line each. Columns that cannot be read
// (missing table, renamed column) are skipped.
func (a *Agent) valueHints(ctx context.Context) string {
	var hints []string
	for _, group := range categoricalColumns {
		for _, col := range group.columns {
			values, err := a.distinctValues(ctx, group.table, col)
			if err != nil || len(values) == 0 {
				continue
			}
			hints = append(hints, fmt.Sprintf("- %s.%s: %s", group.table, col, strings.Join(values, ", ")))
		}
	}
	return strings.Join(hints, "\n")
}

func (a *Agent) distinctValues(ctx context.Context, table, column string) ([]string, error) {
	rows, err := a.db.QueryContext(ctx,
		fmt.Sprintf("SELECT DISTINCT %q FROM %q", column, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		if v == nil {
			continue
		}
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		values = append(values, fmt.Sprintf("%v", v))
	}
	sort.Strings(values)
	return values, rows.Err()
}

// Query generates SELECT statements for the question, validates them by
// executing them, and returns the merged result. Generations that fail
// validation are retried with the error fed back to the model.
func (a *Agent) Query(ctx context.Context, question string) (*orchestrator.SQLResult, error) {
	messages := []model.Message{
		{Role: model.RoleSystem, Content: a.systemPrompt(ctx)},
		{Role: model.RoleUser, Content: question},
	}

	var lastErr error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		resp, err := a.provider.Chat(ctx, &model.ChatRequest{
			Messages:       messages,
			ResponseFormat: "json_object",
		})
		if err != nil {
			return nil, fmt.Errorf("sql generation: %w", err)
		}

		result, feedback, err := a.validate(ctx, resp.Content)
		if err != nil {
			return nil, err
		}
		if feedback == "" {
			return result, nil
		}

		lastErr = fmt.Errorf("%s", feedback)
		messages = append(messages,
			model.Message{Role: model.RoleAssistant, Content: resp.Content},
			model.Message{Role: model.RoleUser, Content: feedback},
		)
	}
	return nil, fmt.Errorf("no valid query after %d attempts: %w", a.maxRetries+1, lastErr)
}

// validate parses a generation and runs it. A non-empty feedback string
// asks for another attempt; a non-nil error is terminal.
func (a *Agent) validate(ctx context.Context, content string) (*orchestrator.SQLResult, string, error) {
	var gen generation
	if err := json.Unmarshal([]byte(content), &gen); err != nil {
		return nil, "Respond with a single JSON object matching the requested shape.", nil
	}
	if gen.Error != "" {
		return nil, "", &InvalidRequestError{Message: gen.Error}
	}

	query := strings.TrimSpace(strings.ReplaceAll(gen.SQLQuery, `\`, ""))
	if !strings.HasPrefix(strings.ToUpper(query), "SELECT") {
		return nil, "Please generate a SELECT query.", nil
	}

	query, note := a.spanTables(ctx, query)
	stmts := splitStatements(query)
	columns, rows, failures, firstErr := a.executeAll(ctx, stmts)
	if len(failures) == len(stmts) {
		return nil, fmt.Sprintf("Invalid SQL query: %v", firstErr), nil
	}

	explanation := gen.Explanation + note
	if len(failures) > 0 {
		explanation += "\n\nSome queries failed:\n" + strings.Join(failures, "\n")
	}
	return &orchestrator.SQLResult{
		Query:       query,
		Explanation: explanation,
		Columns:     columns,
		Rows:        rows,
	}, "", nil
}

// spanTables widens a basic-table query so answers draw on both tables.
// A query using columns the basic table lacks is redirected to the
// detailed table; any remaining basic-table query is duplicated against
// the detailed table, with the rows of both merged by the caller.
func (a *Agent) spanTables(ctx context.Context, query string) (string, string) {
	lower := strings.ToLower(query)
	if !strings.Contains(lower, basicTable) {
		return query, ""
	}

	basicCols := a.tableColumns(ctx, basicTable)
	for col := range a.tableColumns(ctx, detailedTable) {
		if basicCols[col] || !strings.Contains(lower, col) {
			continue
		}
		note := "\n\nNote: some columns aren't in 'student_info_basic'. Switched to 'student_info_detailed'."
		return strings.ReplaceAll(query, basicTable, detailedTable), note
	}

	dup := strings.ReplaceAll(query, basicTable, detailedTable)
	return query + ";\n" + dup, ""
}

func (a *Agent) tableColumns(ctx context.Context, table string) map[string]bool {
	rows, err := a.db.QueryContext(ctx,
		"SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return nil
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return cols
		}
		cols[strings.ToLower(name)] = true
	}
	return cols
}

func splitStatements(query string) []string {
	var stmts []string
	for _, stmt := range strings.Split(query, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// executeAll runs each statement and merges the rows. Statement failures
// are collected rather than aborting, so one table answering is enough.
func (a *Agent) executeAll(ctx context.Context, stmts []string) ([]string, []map[string]any, []string, error) {
	var (
		columns  []string
		rows     []map[string]any
		failures []string
		firstErr error
	)
	for _, stmt := range stmts {
		cols, out, err := a.execute(ctx, stmt, maxFetchedRows-len(rows))
		if err != nil {
			failures = append(failures, fmt.Sprintf("Error for query `%s`: %v", stmt, err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if columns == nil {
			columns = cols
		}
		rows = append(rows, out...)
	}
	return columns, rows, failures, firstErr
}

func (a *Agent) execute(ctx context.Context, query string, limit int) ([]string, []map[string]any, error) {
	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var out []map[string]any
	for rows.Next() && len(out) < limit {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		record := make(map[string]any, len(columns))
		for i, col := range columns {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			record[col] = v
		}
		out = append(out, record)
	}
	return columns, out, rows.Err()
}
