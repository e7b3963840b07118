// Package seed holds the sample books collection the assignment statements run against.
package seed

import (
	"context"
	"fmt"
	"log"

	"bookq/internal/book"
)

// Books returns the sample dataset in insertion order.
func Books() []book.Book {
	return []book.Book{
		{Title: "The AI Revolution", Author: "Ada Mwangi", Genre: "Technology", PublishedYear: 2021, Price: 29.99, InStock: true, Pages: 312, Publisher: "East African Educational"},
		{Title: "Voices from the Rift", Author: "Wanjiru Kamau", Genre: "Non-Fiction", PublishedYear: 2014, Price: 18.50, InStock: false, Pages: 254, Publisher: "Kwani Trust"},
		{Title: "Stars over Kilimanjaro", Author: "Ada Mwangi", Genre: "Science Fiction", PublishedYear: 2018, Price: 15.75, InStock: true, Pages: 402, Publisher: "Jacaranda Press"},
		{Title: "Petals of Blood", Author: "Ngugi wa Thiong'o", Genre: "Fiction", PublishedYear: 1977, Price: 12.99, InStock: true, Pages: 345, Publisher: "Heinemann"},
		{Title: "Wizard of the Crow", Author: "Ngugi wa Thiong'o", Genre: "Fiction", PublishedYear: 2006, Price: 21.00, InStock: true, Pages: 766, Publisher: "Pantheon"},
		{Title: "Quantum Savanna", Author: "Ada Mwangi", Genre: "Science Fiction", PublishedYear: 2020, Price: 24.00, InStock: false, Pages: 288, Publisher: "Jacaranda Press"},
		{Title: "Data for the People", Author: "Otieno Ouma", Genre: "Technology", PublishedYear: 2016, Price: 32.40, InStock: true, Pages: 220, Publisher: "Nairobi Tech Books"},
		{Title: "The River Between", Author: "Ngugi wa Thiong'o", Genre: "Fiction", PublishedYear: 1965, Price: 9.99, InStock: false, Pages: 152, Publisher: "Heinemann"},
		{Title: "Orbit of Ashes", Author: "Lena Achieng", Genre: "Science Fiction", PublishedYear: 2012, Price: 14.25, InStock: true, Pages: 330, Publisher: "Kwani Trust"},
		{Title: "Markets and Machines", Author: "Otieno Ouma", Genre: "Business", PublishedYear: 2009, Price: 27.80, InStock: true, Pages: 198, Publisher: "Longhorn"},
		{Title: "Songs of the Highlands", Author: "Wanjiru Kamau", Genre: "Poetry", PublishedYear: 1999, Price: 11.20, InStock: true, Pages: 96, Publisher: "Longhorn"},
		{Title: "Neural Drums", Author: "Ada Mwangi", Genre: "Science Fiction", PublishedYear: 2023, Price: 19.99, InStock: true, Pages: 276, Publisher: "Jacaranda Press"},
		{Title: "A Grain of Wheat", Author: "Ngugi wa Thiong'o", Genre: "Fiction", PublishedYear: 1967, Price: 13.45, InStock: true, Pages: 247, Publisher: "Heinemann"},
		{Title: "Cloud Cities", Author: "Lena Achieng", Genre: "Science Fiction", PublishedYear: 2015, Price: 16.60, InStock: false, Pages: 318, Publisher: "Kwani Trust"},
		{Title: "Ledger of Light", Author: "Ada Mwangi", Genre: "Technology", PublishedYear: 2011, Price: 22.10, InStock: false, Pages: 205, Publisher: "Nairobi Tech Books"},
	}
}

// Load inserts the dataset into store, clearing the collection first when reset is set.
func Load(ctx context.Context, store book.Store, reset bool) (int, error) {
	if reset {
		n, err := store.DeleteAll(ctx)
		if err != nil {
			return 0, fmt.Errorf("reset collection: %w", err)
		}
		log.Printf("seed removed=%d", n)
	}
	n, err := store.InsertMany(ctx, Books())
	if err != nil {
		return n, fmt.Errorf("insert books: %w", err)
	}
	log.Printf("seed inserted=%d", n)
	return n, nil
}
