// Package report renders runner outcomes as terminal tables or newline-delimited JSON.
package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"bookq/internal/book"
	"bookq/internal/runner"

	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
	"github.com/olekukonko/tablewriter"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	colorOK   = color.New(color.FgGreen, color.Bold).SprintFunc()
	colorErr  = color.New(color.FgRed, color.Bold).SprintFunc()
	colorInfo = color.New(color.FgBlue).SprintFunc()
)

type Format int

const (
	FormatTable Format = iota
	FormatJSON
)

func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "table":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	}
	return FormatTable, fmt.Errorf("unknown output format %q", s)
}

// Writer implements runner.Sink.
type Writer struct {
	out    io.Writer
	format Format
}

func NewWriter(out io.Writer, format Format) *Writer {
	return &Writer{out: out, format: format}
}

func (w *Writer) Write(o runner.Outcome) error {
	if w.format == FormatJSON {
		return w.writeJSON(o)
	}
	return w.writeTable(o)
}

// Summary prints the totals of a finished run.
func (w *Writer) Summary(s runner.Summary) error {
	if w.format == FormatJSON {
		return json.NewEncoder(w.out).Encode(map[string]any{"summary": s})
	}
	table := tablewriter.NewWriter(w.out)
	table.SetHeader([]string{"Run", "Total", "Succeeded", "Failed", "Skipped", "Duration"})
	table.Append([]string{
		s.RunID,
		strconv.Itoa(s.Total),
		strconv.Itoa(s.Succeeded),
		strconv.Itoa(s.Failed),
		strconv.Itoa(s.Skipped),
		s.Duration.Round(time.Millisecond).String(),
	})
	table.Render()
	return nil
}

// Statements lists a script without running it.
func (w *Writer) Statements(statements []runner.Statement, collection string) error {
	if w.format == FormatJSON {
		enc := json.NewEncoder(w.out)
		for _, st := range statements {
			rec := map[string]string{
				"statement":   st.Name,
				"kind":        string(st.Op.Kind()),
				"description": st.Description,
				"command":     st.Op.Command(collection),
			}
			if err := enc.Encode(rec); err != nil {
				return err
			}
		}
		return nil
	}
	table := tablewriter.NewWriter(w.out)
	table.SetHeader([]string{"Statement", "Kind", "Description"})
	table.SetAutoWrapText(false)
	for _, st := range statements {
		table.Append([]string{st.Name, string(st.Op.Kind()), st.Description})
	}
	table.Render()
	return nil
}

type jsonOutcome struct {
	runner.Outcome
	Error     string           `json:"error,omitempty"`
	Documents []map[string]any `json:"documents,omitempty"`
}

func (w *Writer) writeJSON(o runner.Outcome) error {
	rec := jsonOutcome{Outcome: o}
	if o.Err != nil {
		rec.Error = o.Err.Error()
	}
	if o.Kind == runner.KindFind {
		rec.Documents = make([]map[string]any, len(o.Books))
		for i, b := range o.Books {
			rec.Documents[i] = book.Project(b, o.Columns)
		}
	}
	return json.NewEncoder(w.out).Encode(rec)
}

func (w *Writer) writeTable(o runner.Outcome) error {
	status := colorOK("OK")
	if o.Err != nil {
		status = colorErr("ERROR")
	}

	fmt.Fprintf(w.out, "%s %s\n", colorInfo(o.Statement), o.Command)
	table := tablewriter.NewWriter(w.out)
	table.SetHeader([]string{"Status", "Kind", "Duration", "Message"})
	table.SetAutoWrapText(false)
	table.Append([]string{status, string(o.Kind), o.Duration.Round(time.Microsecond).String(), message(o)})
	table.Render()

	if o.Err == nil {
		if headers, rows := resultRows(o); len(headers) > 0 {
			table := tablewriter.NewWriter(w.out)
			table.SetHeader(headers)
			table.SetAutoWrapText(false)
			table.AppendBulk(rows)
			table.Render()
		}
	}
	_, err := fmt.Fprintln(w.out, "---")
	return err
}

func message(o runner.Outcome) string {
	if o.Err != nil {
		return o.Err.Error()
	}
	switch {
	case o.Update != nil:
		return fmt.Sprintf("matched=%d modified=%d", o.Update.Matched, o.Update.Modified)
	case o.Delete != nil:
		return fmt.Sprintf("deleted=%d", o.Delete.Deleted)
	case o.Kind == runner.KindIndex:
		return "created index " + o.IndexName
	case o.Kind == runner.KindFind:
		return fmt.Sprintf("%d documents", len(o.Books))
	case o.Explain != nil:
		return "backend " + o.Explain.Backend
	}
	return ""
}

// resultRows lays out the result group of o as a table body.
func resultRows(o runner.Outcome) ([]string, [][]string) {
	switch {
	case o.Kind == runner.KindFind:
		if len(o.Books) == 0 {
			return nil, nil
		}
		headers := make([]string, len(o.Columns))
		for i, c := range o.Columns {
			headers[i] = string(c)
		}
		rows := make([][]string, len(o.Books))
		for i, b := range o.Books {
			row := make([]string, len(o.Columns))
			for j, c := range o.Columns {
				row[j] = formatValue(b.Value(c))
			}
			rows[i] = row
		}
		return headers, rows
	case o.GenreAverages != nil:
		rows := make([][]string, len(o.GenreAverages))
		for i, g := range o.GenreAverages {
			rows[i] = []string{g.Genre, strconv.FormatFloat(g.AveragePrice, 'f', 2, 64)}
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })
		return []string{"_id", "average_price"}, rows
	case o.AuthorCounts != nil:
		rows := make([][]string, len(o.AuthorCounts))
		for i, a := range o.AuthorCounts {
			rows[i] = []string{a.Author, strconv.FormatInt(a.BookCount, 10)}
		}
		return []string{"_id", "book_count"}, rows
	case o.DecadeCounts != nil:
		rows := make([][]string, len(o.DecadeCounts))
		for i, d := range o.DecadeCounts {
			rows[i] = []string{d.Decade, strconv.FormatInt(d.Count, 10)}
		}
		return []string{"_id", "count"}, rows
	case o.Explain != nil:
		s := o.Explain.Stats
		return []string{"Stage", "Index", "Returned", "Docs examined", "Keys examined", "Time"}, [][]string{{
			s.PlanStage,
			orNone(s.IndexName),
			strconv.FormatInt(s.Returned, 10),
			strconv.FormatInt(s.DocsExamined, 10),
			strconv.FormatInt(s.KeysExamined, 10),
			s.ExecutionTime.String(),
		}}
	}
	return nil, nil
}

func formatValue(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', 2, 64)
	case nil:
		return "(nil)"
	default:
		return fmt.Sprint(x)
	}
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
