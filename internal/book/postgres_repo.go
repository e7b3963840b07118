package book

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepo runs book statements against the books table created by db/migrations.
type PostgresRepo struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewPostgresRepo(db *pgxpool.Pool, timeout time.Duration) *PostgresRepo {
	return &PostgresRepo{db: db, timeout: timeout}
}

func (r *PostgresRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

var columnNames = map[Field]string{
	FieldID:            "id",
	FieldTitle:         "title",
	FieldAuthor:        "author",
	FieldGenre:         "genre",
	FieldPublishedYear: "published_year",
	FieldPrice:         "price",
	FieldInStock:       "in_stock",
}

func column(f Field) string {
	if c, ok := columnNames[f]; ok {
		return c
	}
	// Unknown fields never reach SQL text unquoted.
	return pgx.Identifier{string(f)}.Sanitize()
}

// buildWhere renders f as a WHERE clause whose placeholders start at $argn.
func buildWhere(f Filter, argn int) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if f.Title != nil {
		clauses = append(clauses, fmt.Sprintf("title = $%d", argn))
		args = append(args, *f.Title)
		argn++
	}
	if f.Author != nil {
		clauses = append(clauses, fmt.Sprintf("author = $%d", argn))
		args = append(args, *f.Author)
		argn++
	}
	if f.Genre != nil {
		clauses = append(clauses, fmt.Sprintf("genre = $%d", argn))
		args = append(args, *f.Genre)
		argn++
	}
	if f.InStock != nil {
		clauses = append(clauses, fmt.Sprintf("in_stock = $%d", argn))
		args = append(args, *f.InStock)
		argn++
	}
	if f.PublishedAfter != nil {
		clauses = append(clauses, fmt.Sprintf("published_year > $%d", argn))
		args = append(args, *f.PublishedAfter)
	}

	return "WHERE " + strings.Join(clauses, " AND "), args
}

func buildOrderBy(req FindRequest) string {
	if len(req.Sort) == 0 {
		if req.Paged() {
			return "ORDER BY id ASC"
		}
		return ""
	}
	keys := make([]string, 0, len(req.Sort)+1)
	for _, k := range req.Sort {
		order := "ASC"
		if k.Direction == Desc {
			order = "DESC"
		}
		keys = append(keys, column(k.Field)+" "+order)
	}
	keys = append(keys, "id ASC")
	return "ORDER BY " + strings.Join(keys, ", ")
}

// buildFind renders req as a SELECT over cols.
func buildFind(req FindRequest, cols []Field) (string, []any) {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = column(c)
	}
	where, args := buildWhere(req.Filter, 1)

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM books %s", strings.Join(names, ", "), where)
	if order := buildOrderBy(req); order != "" {
		sb.WriteString(" " + order)
	}
	if req.Limit > 0 {
		args = append(args, req.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if req.Skip > 0 {
		args = append(args, req.Skip)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}
	return sb.String(), args
}

// buildUpdateOne sets patch on the first row, in id order, that matches f. The statement
// returns the matched and modified counts.
func buildUpdateOne(f Filter, patch Patch) (string, []any) {
	where, args := buildWhere(f, 1)
	var sets, changed []string
	for _, a := range patch.Assignments() {
		args = append(args, a.Value)
		col := column(a.Field)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
		changed = append(changed, fmt.Sprintf("b.%s IS DISTINCT FROM $%d", col, len(args)))
	}
	sql := fmt.Sprintf(`
		WITH target AS (
			SELECT id FROM books %s ORDER BY id LIMIT 1 FOR UPDATE
		), updated AS (
			UPDATE books b SET %s
			FROM target t
			WHERE b.id = t.id AND (%s)
			RETURNING b.id
		)
		SELECT (SELECT COUNT(*) FROM target), (SELECT COUNT(*) FROM updated)`,
		where, strings.Join(sets, ", "), strings.Join(changed, " OR "))
	return sql, args
}

func buildDeleteOne(f Filter) (string, []any) {
	where, args := buildWhere(f, 1)
	return fmt.Sprintf("DELETE FROM books WHERE id = (SELECT id FROM books %s ORDER BY id LIMIT 1)", where), args
}

func buildCreateIndex(spec IndexSpec) (string, string) {
	name := "books_" + spec.Name()
	keys := make([]string, len(spec.Keys))
	for i, k := range spec.Keys {
		order := "ASC"
		if k.Direction == Desc {
			order = "DESC"
		}
		keys[i] = column(k.Field) + " " + order
	}
	return name, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON books (%s)",
		pgx.Identifier{name}.Sanitize(), strings.Join(keys, ", "))
}

func scanTargets(b *Book, id *int64, cols []Field) []any {
	dest := make([]any, len(cols))
	for i, c := range cols {
		switch c {
		case FieldID:
			dest[i] = id
		case FieldTitle:
			dest[i] = &b.Title
		case FieldAuthor:
			dest[i] = &b.Author
		case FieldGenre:
			dest[i] = &b.Genre
		case FieldPublishedYear:
			dest[i] = &b.PublishedYear
		case FieldPrice:
			dest[i] = &b.Price
		case FieldInStock:
			dest[i] = &b.InStock
		}
	}
	return dest
}

func (r *PostgresRepo) Find(ctx context.Context, req FindRequest) iter.Seq2[Book, error] {
	return func(yield func(Book, error) bool) {
		cols := req.Projection.Columns()
		query, args := buildFind(req, cols)

		timeoutCtx, cancel := r.withTimeout(ctx)
		defer cancel()
		rows, err := r.db.Query(timeoutCtx, query, args...)
		if err != nil {
			yield(Book{}, err)
			return
		}
		defer rows.Close()

		includeID := containsField(cols, FieldID)
		for rows.Next() {
			var b Book
			var id int64
			if err := rows.Scan(scanTargets(&b, &id, cols)...); err != nil {
				yield(Book{}, err)
				return
			}
			if includeID {
				b.ID = strconv.FormatInt(id, 10)
			}
			if !yield(b, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(Book{}, err)
		}
	}
}

func (r *PostgresRepo) UpdateOne(ctx context.Context, filter Filter, patch Patch) (UpdateResult, error) {
	if patch.IsEmpty() {
		return UpdateResult{}, ErrEmptyPatch
	}
	query, args := buildUpdateOne(filter, patch)

	var res UpdateResult
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.db.QueryRow(timeoutCtx, query, args...).Scan(&res.Matched, &res.Modified); err != nil {
		return UpdateResult{}, err
	}
	return res, nil
}

func (r *PostgresRepo) DeleteOne(ctx context.Context, filter Filter) (DeleteResult, error) {
	query, args := buildDeleteOne(filter)

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	tag, err := r.db.Exec(timeoutCtx, query, args...)
	if err != nil {
		return DeleteResult{}, err
	}
	return DeleteResult{Deleted: tag.RowsAffected()}, nil
}

const (
	genreAverageSQL = `SELECT genre, AVG(price)::float8 FROM books GROUP BY genre ORDER BY genre`

	topAuthorsSQL = `SELECT author, COUNT(*) AS book_count FROM books GROUP BY author ` +
		`ORDER BY book_count DESC, author ASC LIMIT $1`

	// decadeSQL labels each row floor(published_year / 10) * 10 followed by "s".
	decadeSQL = `SELECT (FLOOR(published_year / 10.0) * 10)::int::text || 's' AS decade, COUNT(*) ` +
		`FROM books GROUP BY decade ORDER BY decade ASC`
)

func (r *PostgresRepo) AveragePriceByGenre(ctx context.Context) ([]GenreAverage, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	rows, err := r.db.Query(timeoutCtx, genreAverageSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GenreAverage
	for rows.Next() {
		var g GenreAverage
		if err := rows.Scan(&g.Genre, &g.AveragePrice); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) TopAuthors(ctx context.Context, limit int) ([]AuthorCount, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	rows, err := r.db.Query(timeoutCtx, topAuthorsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuthorCount
	for rows.Next() {
		var a AuthorCount
		if err := rows.Scan(&a.Author, &a.BookCount); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) CountByDecade(ctx context.Context) ([]DecadeCount, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	rows, err := r.db.Query(timeoutCtx, decadeSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DecadeCount
	for rows.Next() {
		var d DecadeCount
		if err := rows.Scan(&d.Decade, &d.Count); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) CreateIndex(ctx context.Context, spec IndexSpec) (string, error) {
	if len(spec.Keys) == 0 {
		return "", fmt.Errorf("%w: index needs at least one key", ErrInvalidRequest)
	}
	name, ddl := buildCreateIndex(spec)

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	if _, err := r.db.Exec(timeoutCtx, ddl); err != nil {
		return "", err
	}
	return name, nil
}

func (r *PostgresRepo) Explain(ctx context.Context, req FindRequest) (ExplainReport, error) {
	query, args := buildFind(req, req.Projection.Columns())

	var plans []map[string]any
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.db.QueryRow(timeoutCtx, "EXPLAIN (ANALYZE, FORMAT JSON) "+query, args...).Scan(&plans); err != nil {
		return ExplainReport{}, err
	}
	if len(plans) == 0 {
		return ExplainReport{}, errors.New("explain returned no plan")
	}
	return ExplainReport{
		Backend: "postgres",
		Stats:   postgresStats(plans[0]),
		Raw:     plans[0],
	}, nil
}

// postgresStats folds an EXPLAIN ANALYZE plan tree into ExecutionStats.
func postgresStats(raw map[string]any) ExecutionStats {
	var stats ExecutionStats
	if ms, ok := raw["Execution Time"].(float64); ok {
		stats.ExecutionTime = time.Duration(ms * float64(time.Millisecond))
	}
	root, ok := raw["Plan"].(map[string]any)
	if !ok {
		return stats
	}
	stats.PlanStage, _ = root["Node Type"].(string)
	stats.Returned = int64(number(root["Actual Rows"]))

	var walk func(node map[string]any)
	walk = func(node map[string]any) {
		nodeType, _ := node["Node Type"].(string)
		rows := number(node["Actual Rows"]) * max(number(node["Actual Loops"]), 1)
		removed := number(node["Rows Removed by Filter"])
		switch {
		case strings.Contains(nodeType, "Index"):
			if stats.IndexName == "" {
				stats.IndexName, _ = node["Index Name"].(string)
			}
			stats.KeysExamined += int64(rows + removed)
			if nodeType != "Index Only Scan" {
				stats.DocsExamined += int64(rows + removed)
			}
		case nodeType == "Seq Scan":
			stats.DocsExamined += int64(rows + removed)
		}
		children, _ := node["Plans"].([]any)
		for _, c := range children {
			if child, ok := c.(map[string]any); ok {
				walk(child)
			}
		}
	}
	walk(root)
	return stats
}

func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}

func (r *PostgresRepo) InsertMany(ctx context.Context, books []Book) (int, error) {
	rows := make([][]any, len(books))
	for i, b := range books {
		rows[i] = []any{b.Title, b.Author, b.Genre, b.PublishedYear, b.Price, b.InStock, b.Pages, b.Publisher}
	}

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	n, err := r.db.CopyFrom(timeoutCtx,
		pgx.Identifier{"books"},
		[]string{"title", "author", "genre", "published_year", "price", "in_stock", "pages", "publisher"},
		pgx.CopyFromRows(rows),
	)
	return int(n), err
}

func (r *PostgresRepo) DeleteAll(ctx context.Context) (int64, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	tag, err := r.db.Exec(timeoutCtx, "DELETE FROM books")
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepo) Ping(ctx context.Context) error {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.db.Ping(timeoutCtx)
}

func (r *PostgresRepo) Close(context.Context) error {
	r.db.Close()
	return nil
}

func containsField(cols []Field, f Field) bool {
	for _, c := range cols {
		if c == f {
			return true
		}
	}
	return false
}
