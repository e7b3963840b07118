package runner

import (
	"fmt"
	"strings"

	"bookq/internal/book"
)

// Assignment returns the bookstore statements in the order they are issued.
func Assignment() []Statement {
	return []Statement{
		// Basic CRUD
		{
			Name:        "genre-science-fiction",
			Description: "Find all books in a specific genre",
			Op:          FindOp{Req: book.FindRequest{Filter: book.Filter{Genre: book.Ptr("Science Fiction")}}},
		},
		{
			Name:        "published-after-2015",
			Description: "Find books published after a certain year",
			Op:          FindOp{Req: book.FindRequest{Filter: book.Filter{PublishedAfter: book.Ptr(2015)}}},
		},
		{
			Name:        "author-ngugi",
			Description: "Find books by a specific author",
			Op:          FindOp{Req: book.FindRequest{Filter: book.Filter{Author: book.Ptr("Ngugi wa Thiong'o")}}},
		},
		{
			Name:        "update-ai-revolution-price",
			Description: "Update the price of a specific book",
			Op: UpdateOp{
				Filter: book.Filter{Title: book.Ptr("The AI Revolution")},
				Patch:  book.Patch{Price: book.Ptr(24.99)},
			},
		},
		{
			Name:        "delete-voices-from-the-rift",
			Description: "Delete a book by its title",
			Op:          DeleteOp{Filter: book.Filter{Title: book.Ptr("Voices from the Rift")}},
		},

		// Advanced queries
		{
			Name:        "in-stock-after-2010",
			Description: "Find books that are in stock and published after 2010",
			Op: FindOp{Req: book.FindRequest{Filter: book.Filter{
				InStock:        book.Ptr(true),
				PublishedAfter: book.Ptr(2010),
			}}},
		},
		{
			Name:        "projection-title-author-price",
			Description: "Return only title, author, and price",
			Op: FindOp{Req: book.FindRequest{Projection: &book.Projection{
				Fields:    []book.Field{book.FieldTitle, book.FieldAuthor, book.FieldPrice},
				ExcludeID: true,
			}}},
		},
		{
			Name:        "sort-price-asc",
			Description: "Sort books by price ascending",
			Op:          FindOp{Req: book.FindRequest{Sort: []book.SortKey{{Field: book.FieldPrice, Direction: book.Asc}}}},
		},
		{
			Name:        "sort-price-desc",
			Description: "Sort books by price descending",
			Op:          FindOp{Req: book.FindRequest{Sort: []book.SortKey{{Field: book.FieldPrice, Direction: book.Desc}}}},
		},
		{
			Name:        "page-1",
			Description: "Pagination: first 5 books",
			Op:          FindOp{Req: book.FindRequest{Skip: 0, Limit: 5}},
		},
		{
			Name:        "page-2",
			Description: "Pagination: next 5 books",
			Op:          FindOp{Req: book.FindRequest{Skip: 5, Limit: 5}},
		},

		// Aggregation pipelines
		{
			Name:        "avg-price-by-genre",
			Description: "Average price of books by genre",
			Op:          AverageByGenreOp{},
		},
		{
			Name:        "top-author",
			Description: "Author with the most books",
			Op:          TopAuthorOp{Limit: 1},
		},
		{
			Name:        "books-by-decade",
			Description: "Group books by publication decade",
			Op:          DecadeOp{},
		},

		// Indexing
		{
			Name:        "index-title",
			Description: "Create index on title",
			Op:          CreateIndexOp{Spec: book.IndexSpec{Keys: []book.IndexKey{{Field: book.FieldTitle, Direction: book.Asc}}}},
		},
		{
			Name:        "index-author-year",
			Description: "Create compound index on author and published_year",
			Op: CreateIndexOp{Spec: book.IndexSpec{Keys: []book.IndexKey{
				{Field: book.FieldAuthor, Direction: book.Asc},
				{Field: book.FieldPublishedYear, Direction: book.Desc},
			}}},
		},
		{
			Name:        "explain-title",
			Description: "Explain query performance with index",
			Op:          ExplainOp{Req: book.FindRequest{Filter: book.Filter{Title: book.Ptr("The AI Revolution")}}},
		},
	}
}

// Select keeps the named statements, in script order. An empty names list keeps everything.
func Select(statements []Statement, names []string) ([]Statement, error) {
	if len(names) == 0 {
		return statements, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.TrimSpace(n)] = true
	}
	var out []Statement
	for _, s := range statements {
		if want[s.Name] {
			out = append(out, s)
			delete(want, s.Name)
		}
	}
	if len(want) > 0 {
		unknown := make([]string, 0, len(want))
		for n := range want {
			unknown = append(unknown, n)
		}
		return nil, fmt.Errorf("unknown statements: %s", strings.Join(unknown, ", "))
	}
	return out, nil
}
