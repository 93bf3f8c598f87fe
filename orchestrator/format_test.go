package orchestrator

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatSQLOutputFull(t *testing.T) {
	out := FormatSQLOutput(&SQLResult{
		Query:       "SELECT COUNT(*) FROM student_info_detailed WHERE IsFirstChild = 'yes'",
		Explanation: "Counts first children.",
		Columns:     []string{"COUNT(*)"},
		Rows:        []map[string]any{{"COUNT(*)": 412}},
	}, nil)

	assert.True(t, strings.HasPrefix(out, "**Query:** `SELECT COUNT(*)"))
	assert.Contains(t, out, "**Explanation:**\nCounts first children.")
	assert.Contains(t, out, "**Answer:**\nCOUNT(*): 412")
}

func TestFormatSQLOutputNoRowsMarker(t *testing.T) {
	out := FormatSQLOutput(&SQLResult{Query: "SELECT 1 WHERE 0"}, nil)
	assert.Contains(t, out, "_No rows returned._")
}

func TestFormatSQLOutputError(t *testing.T) {
	out := FormatSQLOutput(nil, errors.New("no such table: pets"))
	assert.Equal(t, "Error: no such table: pets", out)
}

func TestFormatSQLOutputRowCap(t *testing.T) {
	res := &SQLResult{Query: "SELECT Gender FROM student_info_basic", Columns: []string{"Gender"}}
	for i := 0; i < 50; i++ {
		res.Rows = append(res.Rows, map[string]any{"Gender": "male"})
	}
	out := FormatSQLOutput(res, nil)
	assert.Equal(t, 5, strings.Count(out, "Gender: male"))
}

func TestFormatRowPreservesColumnOrder(t *testing.T) {
	row := map[string]any{"MathScore": 71, "Gender": "female", "LunchType": "standard"}
	got := formatRow([]string{"Gender", "LunchType", "MathScore"}, row)
	assert.Equal(t, "Gender: female, LunchType: standard, MathScore: 71", got)
}
