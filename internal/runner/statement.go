package runner

import (
	"context"
	"time"

	"bookq/internal/book"
)

type Kind string

const (
	KindFind      Kind = "find"
	KindUpdate    Kind = "update"
	KindDelete    Kind = "delete"
	KindAggregate Kind = "aggregate"
	KindIndex     Kind = "index"
	KindExplain   Kind = "explain"
)

// Op is a single self-contained command. Run performs exactly one Store call.
type Op interface {
	Kind() Kind
	// Command renders the op in mongo shell syntax.
	Command(collection string) string
	Run(ctx context.Context, store book.Store, out *Outcome) error
}

// Statement is a named Op in a script.
type Statement struct {
	Name        string
	Description string
	Op          Op
}

// Outcome is what one statement produced. Exactly one result group is set, matching Kind.
type Outcome struct {
	Statement string        `json:"statement"`
	Kind      Kind          `json:"kind"`
	Command   string        `json:"command"`
	Duration  time.Duration `json:"duration"`
	Err       error         `json:"-"`

	Books   []book.Book  `json:"-"`
	Columns []book.Field `json:"-"`

	Update        *book.UpdateResult  `json:"update,omitempty"`
	Delete        *book.DeleteResult  `json:"delete,omitempty"`
	GenreAverages []book.GenreAverage `json:"genre_averages,omitempty"`
	AuthorCounts  []book.AuthorCount  `json:"author_counts,omitempty"`
	DecadeCounts  []book.DecadeCount  `json:"decade_counts,omitempty"`
	IndexName     string              `json:"index_name,omitempty"`
	Explain       *book.ExplainReport `json:"explain,omitempty"`
}

type FindOp struct {
	Req book.FindRequest
}

func (FindOp) Kind() Kind { return KindFind }

func (o FindOp) Run(ctx context.Context, store book.Store, out *Outcome) error {
	if err := book.Validate(o.Req); err != nil {
		return err
	}
	books, err := book.Collect(store.Find(ctx, o.Req))
	out.Books = books
	out.Columns = o.Req.Projection.Columns()
	return err
}

type UpdateOp struct {
	Filter book.Filter
	Patch  book.Patch
}

func (UpdateOp) Kind() Kind { return KindUpdate }

func (o UpdateOp) Run(ctx context.Context, store book.Store, out *Outcome) error {
	if err := book.ValidatePatch(o.Patch); err != nil {
		return err
	}
	res, err := store.UpdateOne(ctx, o.Filter, o.Patch)
	if err != nil {
		return err
	}
	out.Update = &res
	return nil
}

type DeleteOp struct {
	Filter book.Filter
}

func (DeleteOp) Kind() Kind { return KindDelete }

func (o DeleteOp) Run(ctx context.Context, store book.Store, out *Outcome) error {
	res, err := store.DeleteOne(ctx, o.Filter)
	if err != nil {
		return err
	}
	out.Delete = &res
	return nil
}

type AverageByGenreOp struct{}

func (AverageByGenreOp) Kind() Kind { return KindAggregate }

func (AverageByGenreOp) Run(ctx context.Context, store book.Store, out *Outcome) error {
	rows, err := store.AveragePriceByGenre(ctx)
	out.GenreAverages = rows
	return err
}

type TopAuthorOp struct {
	Limit int
}

func (TopAuthorOp) Kind() Kind { return KindAggregate }

func (o TopAuthorOp) Run(ctx context.Context, store book.Store, out *Outcome) error {
	rows, err := store.TopAuthors(ctx, o.Limit)
	out.AuthorCounts = rows
	return err
}

type DecadeOp struct{}

func (DecadeOp) Kind() Kind { return KindAggregate }

func (DecadeOp) Run(ctx context.Context, store book.Store, out *Outcome) error {
	rows, err := store.CountByDecade(ctx)
	out.DecadeCounts = rows
	return err
}

type CreateIndexOp struct {
	Spec book.IndexSpec
}

func (CreateIndexOp) Kind() Kind { return KindIndex }

func (o CreateIndexOp) Run(ctx context.Context, store book.Store, out *Outcome) error {
	name, err := store.CreateIndex(ctx, o.Spec)
	out.IndexName = name
	return err
}

type ExplainOp struct {
	Req book.FindRequest
}

func (ExplainOp) Kind() Kind { return KindExplain }

func (o ExplainOp) Run(ctx context.Context, store book.Store, out *Outcome) error {
	report, err := store.Explain(ctx, o.Req)
	if err != nil {
		return err
	}
	out.Explain = &report
	return nil
}
