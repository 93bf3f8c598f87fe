package orchestrator

import (
	"fmt"
	"strings"
)

// maxRenderedRows bounds the SQL payload handed to the summarizer.
const maxRenderedRows = 5

// FormatSQLOutput renders a SQL backend outcome as the display string the
// summarizer consumes. A backend failure becomes a visible error line.
func FormatSQLOutput(res *SQLResult, err error) string {
	if err != nil {
		return "Error: " + err.Error()
	}

	var parts []string
	if res.Query != "" {
		parts = append(parts, fmt.Sprintf("**Query:** `%s`", res.Query))
	}
	if res.Explanation != "" {
		parts = append(parts, "**Explanation:**\n"+res.Explanation)
	}
	if len(res.Rows) > 0 {
		n := len(res.Rows)
		if n > maxRenderedRows {
			n = maxRenderedRows
		}
		lines := make([]string, n)
		for i := 0; i < n; i++ {
			lines[i] = formatRow(res.Columns, res.Rows[i])
		}
		parts = append(parts, "**Answer:**\n"+strings.Join(lines, "\n"))
	} else {
		parts = append(parts, "**Answer:**\n_No rows returned._")
	}
	return strings.Join(parts, "\n\n")
}

func formatRow(columns []string, row map[string]any) string {
	if len(columns) == 0 {
		return fmt.Sprintf("%v", row)
	}
	pairs := make([]string, 0, len(columns))
	for _, col := range columns {
		pairs = append(pairs, fmt.Sprintf("%s: %v", col, row[col]))
	}
	return strings.Join(pairs, ", ")
}
