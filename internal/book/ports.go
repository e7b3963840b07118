package book

import (
	"context"
	"iter"
)

//go:generate mockgen -source=ports.go -destination=mock_store.go -package=book

// Store is the contract every backend implements. Each method maps to exactly one
// database command; no validation or retry happens behind it.
type Store interface {
	// Find returns a lazy sequence; ranging over it again reissues the query.
	Find(ctx context.Context, req FindRequest) iter.Seq2[Book, error]
	UpdateOne(ctx context.Context, filter Filter, patch Patch) (UpdateResult, error)
	DeleteOne(ctx context.Context, filter Filter) (DeleteResult, error)
	AveragePriceByGenre(ctx context.Context) ([]GenreAverage, error)
	TopAuthors(ctx context.Context, limit int) ([]AuthorCount, error)
	CountByDecade(ctx context.Context) ([]DecadeCount, error)
	CreateIndex(ctx context.Context, spec IndexSpec) (string, error)
	Explain(ctx context.Context, req FindRequest) (ExplainReport, error)
	InsertMany(ctx context.Context, books []Book) (int, error)
	DeleteAll(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Collect drains seq into a slice, stopping at the first error.
func Collect(seq iter.Seq2[Book, error]) ([]Book, error) {
	var out []Book
	for b, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, b)
	}
	return out, nil
}
