package runner

import (
	"fmt"
	"strconv"
	"strings"

	"bookq/internal/book"
)

func shellValue(v any) string {
	switch x := v.(type) {
	case string:
		return strconv.Quote(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func shellDoc(pairs ...string) string {
	if len(pairs) == 0 {
		return "{}"
	}
	return "{ " + strings.Join(pairs, ", ") + " }"
}

func shellFilter(f book.Filter) string {
	var pairs []string
	if f.Title != nil {
		pairs = append(pairs, "title: "+shellValue(*f.Title))
	}
	if f.Author != nil {
		pairs = append(pairs, "author: "+shellValue(*f.Author))
	}
	if f.Genre != nil {
		pairs = append(pairs, "genre: "+shellValue(*f.Genre))
	}
	if f.InStock != nil {
		pairs = append(pairs, "in_stock: "+shellValue(*f.InStock))
	}
	if f.PublishedAfter != nil {
		pairs = append(pairs, "published_year: "+shellDoc("$gt: "+shellValue(*f.PublishedAfter)))
	}
	return shellDoc(pairs...)
}

func shellProjection(p *book.Projection) string {
	pairs := make([]string, 0, len(p.Fields)+1)
	for _, f := range p.Fields {
		pairs = append(pairs, string(f)+": 1")
	}
	if p.ExcludeID {
		pairs = append(pairs, "_id: 0")
	}
	return shellDoc(pairs...)
}

func shellKeys[K book.SortKey | book.IndexKey](keys []K) string {
	pairs := make([]string, len(keys))
	for i, k := range keys {
		switch key := any(k).(type) {
		case book.SortKey:
			pairs[i] = fmt.Sprintf("%s: %d", key.Field, key.Direction)
		case book.IndexKey:
			pairs[i] = fmt.Sprintf("%s: %d", key.Field, key.Direction)
		}
	}
	return shellDoc(pairs...)
}

func shellFind(collection string, req book.FindRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "db.%s.find(", collection)
	switch {
	case req.Projection != nil:
		sb.WriteString(shellFilter(req.Filter) + ", " + shellProjection(req.Projection))
	case !req.Filter.IsEmpty():
		sb.WriteString(shellFilter(req.Filter))
	}
	sb.WriteString(")")
	if len(req.Sort) > 0 {
		sb.WriteString(".sort(" + shellKeys(req.Sort) + ")")
	}
	if req.Skip > 0 || req.Limit > 0 {
		fmt.Fprintf(&sb, ".skip(%d)", req.Skip)
	}
	if req.Limit > 0 {
		fmt.Fprintf(&sb, ".limit(%d)", req.Limit)
	}
	return sb.String()
}

func (o FindOp) Command(collection string) string {
	return shellFind(collection, o.Req)
}

func (o UpdateOp) Command(collection string) string {
	var sets []string
	for _, a := range o.Patch.Assignments() {
		sets = append(sets, string(a.Field)+": "+shellValue(a.Value))
	}
	return fmt.Sprintf("db.%s.updateOne(%s, %s)", collection, shellFilter(o.Filter), shellDoc("$set: "+shellDoc(sets...)))
}

func (o DeleteOp) Command(collection string) string {
	return fmt.Sprintf("db.%s.deleteOne(%s)", collection, shellFilter(o.Filter))
}

func (AverageByGenreOp) Command(collection string) string {
	return fmt.Sprintf(`db.%s.aggregate([{ $group: { _id: "$genre", average_price: { $avg: "$price" } } }])`, collection)
}

func (o TopAuthorOp) Command(collection string) string {
	return fmt.Sprintf(`db.%s.aggregate([{ $group: { _id: "$author", book_count: { $sum: 1 } } }, { $sort: { book_count: -1 } }, { $limit: %d }])`,
		collection, o.Limit)
}

func (DecadeOp) Command(collection string) string {
	return fmt.Sprintf(`db.%s.aggregate([{ $group: { _id: { $concat: [{ $toString: { $multiply: [{ $floor: { $divide: ["$published_year", 10] } }, 10] } }, "s"] }, count: { $sum: 1 } } }, { $sort: { _id: 1 } }])`,
		collection)
}

func (o CreateIndexOp) Command(collection string) string {
	return fmt.Sprintf("db.%s.createIndex(%s)", collection, shellKeys(o.Spec.Keys))
}

func (o ExplainOp) Command(collection string) string {
	return shellFind(collection, o.Req) + `.explain("executionStats")`
}
