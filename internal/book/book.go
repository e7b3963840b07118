package book

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when no book matches a lookup.
	ErrNotFound = errors.New("book not found")
	// ErrEmptyPatch is returned when an update sets no fields.
	ErrEmptyPatch = errors.New("update sets no fields")
	// ErrInvalidRequest wraps request validation failures.
	ErrInvalidRequest = errors.New("invalid request")
)

// Book represents a document in the books collection.
type Book struct {
	ID            string  `json:"_id,omitempty" bson:"_id,omitempty"`
	Title         string  `json:"title" bson:"title"`
	Author        string  `json:"author" bson:"author"`
	Genre         string  `json:"genre" bson:"genre"`
	PublishedYear int     `json:"published_year" bson:"published_year"`
	Price         float64 `json:"price" bson:"price"`
	InStock       bool    `json:"in_stock" bson:"in_stock"`
	Pages         int     `json:"pages,omitempty" bson:"pages,omitempty"`
	Publisher     string  `json:"publisher,omitempty" bson:"publisher,omitempty"`
}

// Field names a document field.
type Field string

const (
	FieldID            Field = "_id"
	FieldTitle         Field = "title"
	FieldAuthor        Field = "author"
	FieldGenre         Field = "genre"
	FieldPublishedYear Field = "published_year"
	FieldPrice         Field = "price"
	FieldInStock       Field = "in_stock"
)

// AllFields lists the queryable fields in document order.
var AllFields = []Field{FieldID, FieldTitle, FieldAuthor, FieldGenre, FieldPublishedYear, FieldPrice, FieldInStock}

func (f Field) Valid() bool {
	for _, known := range AllFields {
		if f == known {
			return true
		}
	}
	return false
}

// ParseField accepts a field name as written in a query.
func ParseField(s string) (Field, error) {
	f := Field(strings.TrimSpace(s))
	if !f.Valid() {
		return "", fmt.Errorf("%w: unknown field %q", ErrInvalidRequest, s)
	}
	return f, nil
}

// Value returns the value of field f on b.
func (b Book) Value(f Field) any {
	switch f {
	case FieldID:
		return b.ID
	case FieldTitle:
		return b.Title
	case FieldAuthor:
		return b.Author
	case FieldGenre:
		return b.Genre
	case FieldPublishedYear:
		return b.PublishedYear
	case FieldPrice:
		return b.Price
	case FieldInStock:
		return b.InStock
	}
	return nil
}

// Project returns b restricted to cols, keyed by field name.
func Project(b Book, cols []Field) map[string]any {
	doc := make(map[string]any, len(cols))
	for _, c := range cols {
		doc[string(c)] = b.Value(c)
	}
	return doc
}

// Filter is a conjunction of optional predicates. The zero Filter matches every book.
type Filter struct {
	Title          *string `json:"title,omitempty"`
	Author         *string `json:"author,omitempty"`
	Genre          *string `json:"genre,omitempty"`
	InStock        *bool   `json:"in_stock,omitempty"`
	PublishedAfter *int    `json:"published_after,omitempty"`
}

func (f Filter) IsEmpty() bool {
	return f.Title == nil && f.Author == nil && f.Genre == nil && f.InStock == nil && f.PublishedAfter == nil
}

// Patch lists the fields an update sets.
type Patch struct {
	Title         *string  `json:"title,omitempty"`
	Author        *string  `json:"author,omitempty"`
	Genre         *string  `json:"genre,omitempty"`
	PublishedYear *int     `json:"published_year,omitempty"`
	Price         *float64 `json:"price,omitempty" validate:"omitempty,gte=0"`
	InStock       *bool    `json:"in_stock,omitempty"`
}

func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Author == nil && p.Genre == nil && p.PublishedYear == nil && p.Price == nil && p.InStock == nil
}

// Assignments returns the set fields in document order.
func (p Patch) Assignments() []Assignment {
	var out []Assignment
	if p.Title != nil {
		out = append(out, Assignment{FieldTitle, *p.Title})
	}
	if p.Author != nil {
		out = append(out, Assignment{FieldAuthor, *p.Author})
	}
	if p.Genre != nil {
		out = append(out, Assignment{FieldGenre, *p.Genre})
	}
	if p.PublishedYear != nil {
		out = append(out, Assignment{FieldPublishedYear, *p.PublishedYear})
	}
	if p.Price != nil {
		out = append(out, Assignment{FieldPrice, *p.Price})
	}
	if p.InStock != nil {
		out = append(out, Assignment{FieldInStock, *p.InStock})
	}
	return out
}

type Assignment struct {
	Field Field
	Value any
}

// Projection is an inclusion list. The identity field is returned unless ExcludeID is set.
// An empty Fields list keeps every field, so {ExcludeID: true} alone drops only the identity.
type Projection struct {
	Fields    []Field `json:"fields" validate:"dive,field"`
	ExcludeID bool    `json:"exclude_id,omitempty"`
}

// Columns returns the fields a projected document carries, in document order.
func (p *Projection) Columns() []Field {
	if p == nil {
		return AllFields
	}
	if len(p.Fields) == 0 {
		if p.ExcludeID {
			return AllFields[1:]
		}
		return AllFields
	}
	include := make(map[Field]bool, len(p.Fields)+1)
	for _, f := range p.Fields {
		include[f] = true
	}
	if !p.ExcludeID {
		include[FieldID] = true
	}
	var cols []Field
	for _, f := range AllFields {
		if include[f] {
			cols = append(cols, f)
		}
	}
	return cols
}

type Direction int

const (
	Asc  Direction = 1
	Desc Direction = -1
)

type SortKey struct {
	Field     Field     `json:"field" validate:"field"`
	Direction Direction `json:"direction" validate:"oneof=1 -1"`
}

// FindRequest is a read against the collection. Limit 0 means no limit.
type FindRequest struct {
	Filter     Filter      `json:"filter"`
	Projection *Projection `json:"projection,omitempty"`
	Sort       []SortKey   `json:"sort,omitempty" validate:"dive"`
	Skip       int64       `json:"skip,omitempty" validate:"gte=0"`
	Limit      int64       `json:"limit,omitempty" validate:"gte=0"`
}

// Paged reports whether the request skips or limits without an explicit sort.
func (r FindRequest) Paged() bool {
	return len(r.Sort) == 0 && (r.Skip > 0 || r.Limit > 0)
}

type UpdateResult struct {
	Matched  int64 `json:"matched_count"`
	Modified int64 `json:"modified_count"`
}

type DeleteResult struct {
	Deleted int64 `json:"deleted_count"`
}

type GenreAverage struct {
	Genre        string  `json:"_id" bson:"_id"`
	AveragePrice float64 `json:"average_price" bson:"average_price"`
}

type AuthorCount struct {
	Author    string `json:"_id" bson:"_id"`
	BookCount int64  `json:"book_count" bson:"book_count"`
}

type DecadeCount struct {
	Decade string `json:"_id" bson:"_id"`
	Count  int64  `json:"count" bson:"count"`
}

type IndexKey struct {
	Field     Field     `json:"field" validate:"field"`
	Direction Direction `json:"direction" validate:"oneof=1 -1"`
}

type IndexSpec struct {
	Keys []IndexKey `json:"keys" validate:"min=1,dive"`
}

// Name follows the default MongoDB naming, e.g. "author_1_published_year_-1".
func (s IndexSpec) Name() string {
	parts := make([]string, 0, len(s.Keys)*2)
	for _, k := range s.Keys {
		parts = append(parts, string(k.Field), fmt.Sprintf("%d", k.Direction))
	}
	return strings.Join(parts, "_")
}

// ExecutionStats is the backend-neutral part of an explain report.
type ExecutionStats struct {
	PlanStage     string        `json:"plan_stage"`
	IndexName     string        `json:"index_name,omitempty"`
	Returned      int64         `json:"returned"`
	DocsExamined  int64         `json:"docs_examined"`
	KeysExamined  int64         `json:"keys_examined"`
	ExecutionTime time.Duration `json:"execution_time"`
}

type ExplainReport struct {
	Backend string         `json:"backend"`
	Stats   ExecutionStats `json:"stats"`
	Raw     map[string]any `json:"raw,omitempty"`
}

// Ptr returns a pointer to v, for building filters and patches inline.
func Ptr[T any](v T) *T {
	return &v
}
