package sqlagent

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dagger77/tabdoc/engine/model"
)

// scriptedProvider replays canned completions in order.
type scriptedProvider struct {
	responses []string
	calls     int
	requests  []*model.ChatRequest
}

func (s *scriptedProvider) Chat(_ context.Context, req *model.ChatRequest) (*model.ChatResponse, error) {
	s.requests = append(s.requests, req)
	if s.calls >= len(s.responses) {
		return nil, errors.New("no scripted response left")
	}
	content := s.responses[s.calls]
	s.calls++
	return &model.ChatResponse{Content: content}, nil
}

func (s *scriptedProvider) StreamChat(context.Context, *model.ChatRequest) (<-chan *model.ChatResponse, error) {
	return nil, errors.New("not implemented")
}

func (s *scriptedProvider) Name() string  { return "scripted" }
func (s *scriptedProvider) Model() string { return "scripted" }

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE student_info_basic (
		Gender TEXT, EthnicGroup TEXT, ParentEduc TEXT, LunchType TEXT,
		TestPrep TEXT, MathScore INTEGER, ReadingScore INTEGER, WritingScore INTEGER
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO student_info_basic
		(Gender, EthnicGroup, ParentEduc, LunchType, TestPrep, MathScore, ReadingScore, WritingScore) VALUES
		('female', 'group B', 'bachelor''s degree', 'standard', 'none', 95, 88, 90),
		('female', 'group C', 'some college', 'free/reduced', 'completed', 91, 93, 95),
		('male', 'group A', 'high school', 'standard', 'none', 47, 55, 44)`)
	require.NoError(t, err)

	_, err = db.Exec(`CREATE TABLE student_info_detailed (
		Gender TEXT, EthnicGroup TEXT, ParentEduc TEXT, LunchType TEXT, TestPrep TEXT,
		ParentMaritalStatus TEXT, PracticeSport TEXT, IsFirstChild TEXT, NrSiblings INTEGER,
		TransportMeans TEXT, WklyStudyHours TEXT,
		MathScore INTEGER, ReadingScore INTEGER, WritingScore INTEGER
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO student_info_detailed
		(Gender, EthnicGroup, ParentEduc, LunchType, TestPrep, ParentMaritalStatus, PracticeSport,
		 IsFirstChild, NrSiblings, TransportMeans, WklyStudyHours, MathScore, ReadingScore, WritingScore) VALUES
		('female', 'group B', 'master''s degree', 'standard', 'completed', 'married', 'regularly', 'yes', 1, 'school_bus', '5 - 10', 96, 90, 92),
		('male', 'group C', 'some college', 'free/reduced', 'none', 'single', 'never', 'no', 0, 'private', '< 5', 60, 62, 58)`)
	require.NoError(t, err)
	return db
}

func TestQueryRunsAgainstBothTables(t *testing.T) {
	p := &scriptedProvider{responses: []string{
		`{"sql_query": "SELECT COUNT(*) AS n FROM student_info_basic WHERE Gender = 'female' AND MathScore > 90", "explanation": "Counts female students scoring above 90 in math."}`,
	}}
	agent := New(p, newTestDB(t))

	res, err := agent.Query(context.Background(), "How many female students scored above 90 in math?")
	require.NoError(t, err)

	// The basic-table query is duplicated against the detailed table and
	// the rows of both are merged.
	assert.Equal(t,
		"SELECT COUNT(*) AS n FROM student_info_basic WHERE Gender = 'female' AND MathScore > 90;\n"+
			"SELECT COUNT(*) AS n FROM student_info_detailed WHERE Gender = 'female' AND MathScore > 90",
		res.Query)
	assert.Equal(t, []string{"n"}, res.Columns)
	require.Len(t, res.Rows, 2)
	assert.EqualValues(t, 2, res.Rows[0]["n"])
	assert.EqualValues(t, 1, res.Rows[1]["n"])
	assert.Contains(t, res.Explanation, "female students")
	assert.Equal(t, 1, p.calls)
	assert.Equal(t, "json_object", p.requests[0].ResponseFormat)
}

func TestQueryDetailedOnlyIsNotDuplicated(t *testing.T) {
	p := &scriptedProvider{responses: []string{
		`{"sql_query": "SELECT Gender FROM student_info_detailed"}`,
	}}
	agent := New(p, newTestDB(t))

	res, err := agent.Query(context.Background(), "genders in the detailed survey")
	require.NoError(t, err)
	assert.Equal(t, "SELECT Gender FROM student_info_detailed", res.Query)
	assert.Len(t, res.Rows, 2)
}

func TestQueryRewritesColumnsMissingFromBasic(t *testing.T) {
	p := &scriptedProvider{responses: []string{
		`{"sql_query": "SELECT TransportMeans FROM student_info_basic", "explanation": "Lists transport means."}`,
	}}
	agent := New(p, newTestDB(t))

	res, err := agent.Query(context.Background(), "how do students get to school?")
	require.NoError(t, err)
	assert.Equal(t, "SELECT TransportMeans FROM student_info_detailed", res.Query)
	assert.Contains(t, res.Explanation, "Switched to 'student_info_detailed'")
	assert.Len(t, res.Rows, 2)
}

func TestQueryPartialFailureKeepsGoodRows(t *testing.T) {
	p := &scriptedProvider{responses: []string{
		`{"sql_query": "SELECT Gender FROM student_info_detailed; SELECT Nope FROM student_info_detailed", "explanation": "Two queries."}`,
	}}
	agent := New(p, newTestDB(t))

	res, err := agent.Query(context.Background(), "genders")
	require.NoError(t, err)
	assert.Len(t, res.Rows, 2, "rows from the statement that ran")
	assert.Contains(t, res.Explanation, "Some queries failed:")
	assert.Contains(t, res.Explanation, "Nope")
	assert.Equal(t, 1, p.calls, "partial failure is not retried")
}

func TestSystemPromptIncludesValueHints(t *testing.T) {
	p := &scriptedProvider{responses: []string{
		`{"sql_query": "SELECT Gender FROM student_info_detailed"}`,
	}}
	agent := New(p, newTestDB(t))

	_, err := agent.Query(context.Background(), "genders")
	require.NoError(t, err)

	system := p.requests[0].Messages[0].Content
	assert.Contains(t, system, "- student_info_basic.Gender: female, male")
	assert.Contains(t, system, "- student_info_basic.LunchType: free/reduced, standard")
	assert.Contains(t, system, "- student_info_detailed.TransportMeans: private, school_bus")
	assert.Contains(t, system, "Do not use UNION")
}

func TestQueryRetriesNonSelect(t *testing.T) {
	p := &scriptedProvider{responses: []string{
		`{"sql_query": "DELETE FROM student_info_basic"}`,
		`{"sql_query": "SELECT Gender FROM student_info_detailed"}`,
	}}
	agent := New(p, newTestDB(t))

	res, err := agent.Query(context.Background(), "wipe the table")
	require.NoError(t, err)
	assert.Equal(t, "SELECT Gender FROM student_info_detailed", res.Query)
	assert.Equal(t, 2, p.calls)

	// The rejection is fed back to the model as a user turn.
	last := p.requests[1].Messages
	assert.Equal(t, "Please generate a SELECT query.", last[len(last)-1].Content)
}

func TestQueryRetriesInvalidSQL(t *testing.T) {
	p := &scriptedProvider{responses: []string{
		`{"sql_query": "SELECT Pet FROM student_info_basic"}`,
		`{"sql_query": "SELECT MathScore FROM student_info_basic WHERE Gender = 'male'"}`,
	}}
	agent := New(p, newTestDB(t))

	res, err := agent.Query(context.Background(), "list pets")
	require.NoError(t, err)
	require.Len(t, res.Rows, 2, "one male per table")

	last := p.requests[1].Messages
	assert.Contains(t, last[len(last)-1].Content, "Invalid SQL query:")
}

func TestQueryInvalidRequestIsTerminal(t *testing.T) {
	p := &scriptedProvider{responses: []string{
		`{"error": "The schema has no pet ownership data."}`,
	}}
	agent := New(p, newTestDB(t))

	_, err := agent.Query(context.Background(), "How many students have a pet?")
	var reqErr *InvalidRequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "The schema has no pet ownership data.", reqErr.Message)
	assert.Equal(t, 1, p.calls, "invalid requests are not retried")
}

func TestQueryExhaustsRetries(t *testing.T) {
	p := &scriptedProvider{responses: []string{
		`{"sql_query": "DROP TABLE student_info_basic"}`,
		`{"sql_query": "UPDATE student_info_basic SET MathScore = 0"}`,
	}}
	agent := New(p, newTestDB(t), WithMaxRetries(1))

	_, err := agent.Query(context.Background(), "destroy everything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no valid query after 2 attempts")
}

func TestQueryStripsBackslashes(t *testing.T) {
	p := &scriptedProvider{responses: []string{
		`{"sql_query": "SELECT Gender FROM student\\_info\\_detailed"}`,
	}}
	agent := New(p, newTestDB(t))

	res, err := agent.Query(context.Background(), "genders")
	require.NoError(t, err)
	assert.Equal(t, "SELECT Gender FROM student_info_detailed", res.Query)
}
