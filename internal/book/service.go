package book

import (
	"context"
)

// Service validates caller-supplied requests before handing them to a Store.
type Service struct {
	store Store
}

// NewService creates a new book service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Find returns the books matching req.
func (s *Service) Find(ctx context.Context, req FindRequest) ([]Book, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	return Collect(s.store.Find(ctx, req))
}

// FindByTitle returns the first book with the given title.
func (s *Service) FindByTitle(ctx context.Context, title string) (Book, error) {
	books, err := Collect(s.store.Find(ctx, FindRequest{Filter: Filter{Title: &title}, Limit: 1}))
	if err != nil {
		return Book{}, err
	}
	if len(books) == 0 {
		return Book{}, ErrNotFound
	}
	return books[0], nil
}

// AveragePriceByGenre returns the mean price per genre.
func (s *Service) AveragePriceByGenre(ctx context.Context) ([]GenreAverage, error) {
	return s.store.AveragePriceByGenre(ctx)
}

// TopAuthors returns the n authors with the most books.
func (s *Service) TopAuthors(ctx context.Context, n int) ([]AuthorCount, error) {
	if n <= 0 {
		n = 1
	}
	return s.store.TopAuthors(ctx, n)
}

// CountByDecade returns the number of books per publication decade.
func (s *Service) CountByDecade(ctx context.Context) ([]DecadeCount, error) {
	return s.store.CountByDecade(ctx)
}

// ExplainTitle reports how the backend executes a title lookup.
func (s *Service) ExplainTitle(ctx context.Context, title string) (ExplainReport, error) {
	return s.store.Explain(ctx, FindRequest{Filter: Filter{Title: &title}})
}

// Ready pings the backing store.
func (s *Service) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}
