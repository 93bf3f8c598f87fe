package ingest

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const detailedCSV = `Idx,Gender,EthnicGroup,ParentEduc,LunchType,TestPrep,ParentMaritalStatus,PracticeSport,IsFirstChild,NrSiblings,TransportMeans,WklyStudyHours,MathScore,ReadingScore,WritingScore
0,female,group B,bachelor's degree,standard,none,married,regularly,yes,3,school_bus,< 5,71,71,74
1,female,group C,some college,standard,,married,sometimes,yes,0,,5 - 10,69,90,88
2,male,group A,master's degree,free/reduced,none,single,never,no,1,private,> 10,87,93,91
`

const basicCSV = `Idx,Gender,EthnicGroup,ParentEduc,LunchType,TestPrep,MathScore,ReadingScore,WritingScore
0,female,group B,bachelor's degree,standard,none,72,72,74
1,male,group C,some college,free/reduced,completed,69,90,88
`

func writeDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "Expanded_data_with_more_features.csv"), []byte(detailedCSV), 0o644))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "Original_data_with_more_rows.csv"), []byte(basicCSV), 0o644))
	return dir
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestLoadTables(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, LoadTables(ctx, db, writeDataDir(t)))

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM student_info_detailed").Scan(&n))
	assert.Equal(t, 3, n)
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM student_info_basic").Scan(&n))
	assert.Equal(t, 2, n)

	// Numeric columns get a numeric affinity so comparisons and aggregates
	// behave like the agent expects.
	var avg float64
	require.NoError(t, db.QueryRow("SELECT AVG(MathScore) FROM student_info_basic").Scan(&avg))
	assert.InDelta(t, 70.5, avg, 0.001)

	// The leading index column from the CSV is dropped.
	rows, err := db.Query("SELECT * FROM student_info_basic LIMIT 1")
	require.NoError(t, err)
	cols, err := rows.Columns()
	require.NoError(t, err)
	rows.Close()
	assert.Equal(t, []string{
		"Gender", "EthnicGroup", "ParentEduc", "LunchType", "TestPrep",
		"MathScore", "ReadingScore", "WritingScore",
	}, cols)
}

func TestLoadTablesReplacesExisting(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	dir := writeDataDir(t)

	require.NoError(t, LoadTables(ctx, db, dir))
	require.NoError(t, LoadTables(ctx, db, dir))

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM student_info_basic").Scan(&n))
	assert.Equal(t, 2, n, "reload should replace, not append")
}

func TestLoadTablesEmptyValuesAreNull(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, LoadTables(context.Background(), db, writeDataDir(t)))

	var n int
	require.NoError(t, db.QueryRow(
		"SELECT COUNT(*) FROM student_info_detailed WHERE TestPrep IS NULL").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestLoadTablesMissingFile(t *testing.T) {
	db := newTestDB(t)
	err := LoadTables(context.Background(), db, t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestTablesReady(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	ready, err := TablesReady(ctx, db)
	require.NoError(t, err)
	assert.False(t, ready, "empty database is not ready")

	require.NoError(t, LoadTables(ctx, db, writeDataDir(t)))

	ready, err = TablesReady(ctx, db)
	require.NoError(t, err)
	assert.True(t, ready)
}

func TestInferColumnTypes(t *testing.T) {
	cols := []string{"a", "b", "c", "d"}
	rows := [][]string{
		{"1", "1.5", "x", ""},
		{"", "2", "3", ""},
	}
	assert.Equal(t, []string{colInteger, colReal, colText, colText},
		inferColumnTypes(cols, rows))
}
