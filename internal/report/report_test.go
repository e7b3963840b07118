package report

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"bookq/internal/book"
	"bookq/internal/runner"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func projectedFind() runner.Outcome {
	return runner.Outcome{
		Statement: "projection-title-author-price",
		Kind:      runner.KindFind,
		Command:   `db.books.find({}, { title: 1, author: 1, price: 1, _id: 0 })`,
		Duration:  1500 * time.Microsecond,
		Books: []book.Book{
			{ID: "1", Title: "Kintu", Author: "Jennifer Makumbi", Genre: "Fiction", Price: 18.5},
		},
		Columns: []book.Field{book.FieldTitle, book.FieldAuthor, book.FieldPrice},
	}
}

func TestWriter_Table(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, FormatTable)

	require.NoError(t, w.Write(projectedFind()))
	out := buf.String()

	assert.Contains(t, out, "projection-title-author-price db.books.find(")
	assert.Contains(t, out, "OK")
	assert.Contains(t, out, "1 documents")
	assert.Contains(t, out, "Kintu")
	assert.Contains(t, out, "18.50")
	assert.NotContains(t, out, "Fiction")
	assert.True(t, strings.HasSuffix(out, "---\n"))
}

func TestWriter_TableError(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, FormatTable)

	o := runner.Outcome{Statement: "top-author", Kind: runner.KindAggregate, Err: errors.New("connection refused")}
	require.NoError(t, w.Write(o))

	out := buf.String()
	assert.Contains(t, out, "ERROR")
	assert.Contains(t, out, "connection refused")
}

func TestWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, FormatJSON)

	require.NoError(t, w.Write(projectedFind()))
	require.NoError(t, w.Write(runner.Outcome{
		Statement: "update-ai-revolution-price",
		Kind:      runner.KindUpdate,
		Update:    &book.UpdateResult{Matched: 1, Modified: 1},
	}))

	sc := bufio.NewScanner(&buf)
	var lines []map[string]any
	for sc.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		lines = append(lines, rec)
	}
	require.Len(t, lines, 2)

	docs, ok := lines[0]["documents"].([]any)
	require.True(t, ok)
	require.Len(t, docs, 1)
	assert.Equal(t, map[string]any{"title": "Kintu", "author": "Jennifer Makumbi", "price": 18.5}, docs[0])
	assert.NotContains(t, lines[0], "error")

	assert.Equal(t, map[string]any{"matched_count": float64(1), "modified_count": float64(1)}, lines[1]["update"])
	assert.NotContains(t, lines[1], "documents")
}

func TestWriter_Summary(t *testing.T) {
	s := runner.Summary{RunID: "run-1", Total: 17, Succeeded: 16, Failed: 1, Duration: 42 * time.Millisecond}

	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf, FormatTable).Summary(s))
	assert.Contains(t, buf.String(), "run-1")
	assert.Contains(t, buf.String(), "42ms")

	buf.Reset()
	require.NoError(t, NewWriter(&buf, FormatJSON).Summary(s))
	assert.Contains(t, buf.String(), `"summary":{"run_id":"run-1","total":17`)
}

func TestWriter_Statements(t *testing.T) {
	statements := runner.Assignment()[:2]

	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf, FormatTable).Statements(statements, "books"))
	assert.Contains(t, buf.String(), "genre-science-fiction")
	assert.Contains(t, buf.String(), "Find books published after a certain year")

	buf.Reset()
	require.NoError(t, NewWriter(&buf, FormatJSON).Statements(statements, "library"))
	assert.Contains(t, buf.String(), `"command":"db.library.find({ published_year: { $gt: 2015 } })"`)
	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))
}

func TestResultRows(t *testing.T) {
	t.Run("genre averages sorted by genre", func(t *testing.T) {
		headers, rows := resultRows(runner.Outcome{
			Kind: runner.KindAggregate,
			GenreAverages: []book.GenreAverage{
				{Genre: "Technology", AveragePrice: 28.163},
				{Genre: "Business", AveragePrice: 27.8},
			},
		})
		assert.Equal(t, []string{"_id", "average_price"}, headers)
		assert.Equal(t, [][]string{{"Business", "27.80"}, {"Technology", "28.16"}}, rows)
	})

	t.Run("explain without index", func(t *testing.T) {
		_, rows := resultRows(runner.Outcome{
			Kind:    runner.KindExplain,
			Explain: &book.ExplainReport{Stats: book.ExecutionStats{PlanStage: "COLLSCAN", Returned: 1, DocsExamined: 15}},
		})
		require.Len(t, rows, 1)
		assert.Equal(t, []string{"COLLSCAN", "(none)", "1", "15", "0", "0s"}, rows[0])
	})

	t.Run("empty find has no table", func(t *testing.T) {
		headers, _ := resultRows(runner.Outcome{Kind: runner.KindFind})
		assert.Nil(t, headers)
	})
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("yaml")
	assert.Error(t, err)
}
