package book

import (
	"context"
	"fmt"
	"iter"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MongoRepo issues book statements against a MongoDB collection.
type MongoRepo struct {
	client  *mongo.Client
	coll    *mongo.Collection
	timeout time.Duration
}

func NewMongoRepo(client *mongo.Client, database, collection string, timeout time.Duration) *MongoRepo {
	return &MongoRepo{
		client:  client,
		coll:    client.Database(database).Collection(collection),
		timeout: timeout,
	}
}

func (r *MongoRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

// mongoBook is the read shape; _id may be any BSON type when documents were inserted by hand.
type mongoBook struct {
	ID            any     `bson:"_id,omitempty"`
	Title         string  `bson:"title,omitempty"`
	Author        string  `bson:"author,omitempty"`
	Genre         string  `bson:"genre,omitempty"`
	PublishedYear int     `bson:"published_year,omitempty"`
	Price         float64 `bson:"price"`
	InStock       bool    `bson:"in_stock"`
	Pages         int     `bson:"pages,omitempty"`
	Publisher     string  `bson:"publisher,omitempty"`
}

// mongoInsert is the written shape. Core fields are always stored, even when zero.
type mongoInsert struct {
	Title         string  `bson:"title"`
	Author        string  `bson:"author"`
	Genre         string  `bson:"genre"`
	PublishedYear int     `bson:"published_year"`
	Price         float64 `bson:"price"`
	InStock       bool    `bson:"in_stock"`
	Pages         int     `bson:"pages,omitempty"`
	Publisher     string  `bson:"publisher,omitempty"`
}

func newMongoInsert(b Book) mongoInsert {
	return mongoInsert{
		Title:         b.Title,
		Author:        b.Author,
		Genre:         b.Genre,
		PublishedYear: b.PublishedYear,
		Price:         b.Price,
		InStock:       b.InStock,
		Pages:         b.Pages,
		Publisher:     b.Publisher,
	}
}

func (m mongoBook) book() Book {
	b := Book{
		Title:         m.Title,
		Author:        m.Author,
		Genre:         m.Genre,
		PublishedYear: m.PublishedYear,
		Price:         m.Price,
		InStock:       m.InStock,
		Pages:         m.Pages,
		Publisher:     m.Publisher,
	}
	switch id := m.ID.(type) {
	case nil:
	case bson.ObjectID:
		b.ID = id.Hex()
	default:
		b.ID = fmt.Sprint(id)
	}
	return b
}

// mongoFilter renders f as a query document, e.g. {in_stock: true, published_year: {$gt: 2010}}.
func mongoFilter(f Filter) bson.D {
	filter := bson.D{}
	if f.Title != nil {
		filter = append(filter, bson.E{Key: "title", Value: *f.Title})
	}
	if f.Author != nil {
		filter = append(filter, bson.E{Key: "author", Value: *f.Author})
	}
	if f.Genre != nil {
		filter = append(filter, bson.E{Key: "genre", Value: *f.Genre})
	}
	if f.InStock != nil {
		filter = append(filter, bson.E{Key: "in_stock", Value: *f.InStock})
	}
	if f.PublishedAfter != nil {
		filter = append(filter, bson.E{Key: "published_year", Value: bson.D{{Key: "$gt", Value: *f.PublishedAfter}}})
	}
	return filter
}

func mongoProjection(p *Projection) bson.D {
	if p == nil || (len(p.Fields) == 0 && !p.ExcludeID) {
		return nil
	}
	proj := bson.D{}
	for _, f := range p.Fields {
		proj = append(proj, bson.E{Key: string(f), Value: 1})
	}
	if p.ExcludeID {
		proj = append(proj, bson.E{Key: "_id", Value: 0})
	}
	return proj
}

func mongoSort(req FindRequest) bson.D {
	if len(req.Sort) == 0 {
		if req.Paged() {
			return bson.D{{Key: "_id", Value: 1}}
		}
		return nil
	}
	sort := bson.D{}
	for _, k := range req.Sort {
		sort = append(sort, bson.E{Key: string(k.Field), Value: int(k.Direction)})
	}
	return sort
}

func mongoSet(p Patch) bson.D {
	set := bson.D{}
	for _, a := range p.Assignments() {
		set = append(set, bson.E{Key: string(a.Field), Value: a.Value})
	}
	return bson.D{{Key: "$set", Value: set}}
}

func mongoIndexKeys(spec IndexSpec) bson.D {
	keys := bson.D{}
	for _, k := range spec.Keys {
		keys = append(keys, bson.E{Key: string(k.Field), Value: int(k.Direction)})
	}
	return keys
}

func genreAveragePipeline() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$genre"},
			{Key: "average_price", Value: bson.D{{Key: "$avg", Value: "$price"}}},
		}}},
	}
}

func topAuthorsPipeline(limit int) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$author"},
			{Key: "book_count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "book_count", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: limit}},
	}
}

// decadePipeline groups on floor(published_year / 10) * 10 followed by "s".
func decadePipeline() mongo.Pipeline {
	decade := bson.D{{Key: "$concat", Value: bson.A{
		bson.D{{Key: "$toString", Value: bson.D{{Key: "$multiply", Value: bson.A{
			bson.D{{Key: "$floor", Value: bson.D{{Key: "$divide", Value: bson.A{"$published_year", 10}}}}},
			10,
		}}}}},
		"s",
	}}}
	return mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: decade},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
}

func (r *MongoRepo) findOptions(req FindRequest) *options.FindOptionsBuilder {
	opts := options.Find()
	if proj := mongoProjection(req.Projection); proj != nil {
		opts.SetProjection(proj)
	}
	if sort := mongoSort(req); sort != nil {
		opts.SetSort(sort)
	}
	if req.Skip > 0 {
		opts.SetSkip(req.Skip)
	}
	if req.Limit > 0 {
		opts.SetLimit(req.Limit)
	}
	return opts
}

func (r *MongoRepo) Find(ctx context.Context, req FindRequest) iter.Seq2[Book, error] {
	return func(yield func(Book, error) bool) {
		timeoutCtx, cancel := r.withTimeout(ctx)
		defer cancel()

		cur, err := r.coll.Find(timeoutCtx, mongoFilter(req.Filter), r.findOptions(req))
		if err != nil {
			yield(Book{}, err)
			return
		}
		defer cur.Close(timeoutCtx)

		for cur.Next(timeoutCtx) {
			var m mongoBook
			if err := cur.Decode(&m); err != nil {
				yield(Book{}, err)
				return
			}
			if !yield(m.book(), nil) {
				return
			}
		}
		if err := cur.Err(); err != nil {
			yield(Book{}, err)
		}
	}
}

func (r *MongoRepo) UpdateOne(ctx context.Context, filter Filter, patch Patch) (UpdateResult, error) {
	if patch.IsEmpty() {
		return UpdateResult{}, ErrEmptyPatch
	}
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	res, err := r.coll.UpdateOne(timeoutCtx, mongoFilter(filter), mongoSet(patch))
	if err != nil {
		return UpdateResult{}, err
	}
	return UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

func (r *MongoRepo) DeleteOne(ctx context.Context, filter Filter) (DeleteResult, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	res, err := r.coll.DeleteOne(timeoutCtx, mongoFilter(filter))
	if err != nil {
		return DeleteResult{}, err
	}
	return DeleteResult{Deleted: res.DeletedCount}, nil
}

// aggregate runs pipeline and decodes every output document into out.
func (r *MongoRepo) aggregate(ctx context.Context, pipeline mongo.Pipeline, out any) error {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	cur, err := r.coll.Aggregate(timeoutCtx, pipeline)
	if err != nil {
		return err
	}
	return cur.All(timeoutCtx, out)
}

func (r *MongoRepo) AveragePriceByGenre(ctx context.Context) ([]GenreAverage, error) {
	var out []GenreAverage
	if err := r.aggregate(ctx, genreAveragePipeline(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepo) TopAuthors(ctx context.Context, limit int) ([]AuthorCount, error) {
	var out []AuthorCount
	if err := r.aggregate(ctx, topAuthorsPipeline(limit), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepo) CountByDecade(ctx context.Context) ([]DecadeCount, error) {
	var out []DecadeCount
	if err := r.aggregate(ctx, decadePipeline(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepo) CreateIndex(ctx context.Context, spec IndexSpec) (string, error) {
	if len(spec.Keys) == 0 {
		return "", fmt.Errorf("%w: index needs at least one key", ErrInvalidRequest)
	}
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.coll.Indexes().CreateOne(timeoutCtx, mongo.IndexModel{Keys: mongoIndexKeys(spec)})
}

func (r *MongoRepo) explainCommand(req FindRequest) bson.D {
	find := bson.D{
		{Key: "find", Value: r.coll.Name()},
		{Key: "filter", Value: mongoFilter(req.Filter)},
	}
	if proj := mongoProjection(req.Projection); proj != nil {
		find = append(find, bson.E{Key: "projection", Value: proj})
	}
	if sort := mongoSort(req); sort != nil {
		find = append(find, bson.E{Key: "sort", Value: sort})
	}
	if req.Skip > 0 {
		find = append(find, bson.E{Key: "skip", Value: req.Skip})
	}
	if req.Limit > 0 {
		find = append(find, bson.E{Key: "limit", Value: req.Limit})
	}
	return bson.D{
		{Key: "explain", Value: find},
		{Key: "verbosity", Value: "executionStats"},
	}
}

func (r *MongoRepo) Explain(ctx context.Context, req FindRequest) (ExplainReport, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	raw, err := r.coll.Database().RunCommand(timeoutCtx, r.explainCommand(req)).Raw()
	if err != nil {
		return ExplainReport{}, err
	}
	doc, err := rawToMap(raw)
	if err != nil {
		return ExplainReport{}, err
	}
	return ExplainReport{
		Backend: "mongo",
		Stats:   mongoStats(doc),
		Raw:     doc,
	}, nil
}

func rawToMap(raw bson.Raw) (map[string]any, error) {
	ext, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(ext, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// mongoStats reads executionStats and the winning plan out of an explain document.
func mongoStats(doc map[string]any) ExecutionStats {
	var stats ExecutionStats
	if es, ok := doc["executionStats"].(map[string]any); ok {
		stats.Returned = int64(number(es["nReturned"]))
		stats.DocsExamined = int64(number(es["totalDocsExamined"]))
		stats.KeysExamined = int64(number(es["totalKeysExamined"]))
		stats.ExecutionTime = time.Duration(number(es["executionTimeMillis"])) * time.Millisecond
	}
	if qp, ok := doc["queryPlanner"].(map[string]any); ok {
		if plan, ok := qp["winningPlan"].(map[string]any); ok {
			// Slot-based engine plans nest the classic tree under queryPlan.
			if inner, ok := plan["queryPlan"].(map[string]any); ok {
				plan = inner
			}
			stats.PlanStage, _ = plan["stage"].(string)
			stats.IndexName = findIndexName(plan)
		}
	}
	return stats
}

func findIndexName(stage map[string]any) string {
	if name, ok := stage["indexName"].(string); ok {
		return name
	}
	if input, ok := stage["inputStage"].(map[string]any); ok {
		return findIndexName(input)
	}
	if inputs, ok := stage["inputStages"].([]any); ok {
		for _, in := range inputs {
			if m, ok := in.(map[string]any); ok {
				if name := findIndexName(m); name != "" {
					return name
				}
			}
		}
	}
	return ""
}

func (r *MongoRepo) InsertMany(ctx context.Context, books []Book) (int, error) {
	if len(books) == 0 {
		return 0, nil
	}
	docs := make([]mongoInsert, len(books))
	for i, b := range books {
		docs[i] = newMongoInsert(b)
	}
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	res, err := r.coll.InsertMany(timeoutCtx, docs)
	if err != nil {
		return 0, err
	}
	return len(res.InsertedIDs), nil
}

func (r *MongoRepo) DeleteAll(ctx context.Context) (int64, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	res, err := r.coll.DeleteMany(timeoutCtx, bson.D{})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (r *MongoRepo) Ping(ctx context.Context) error {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.client.Ping(timeoutCtx, readpref.Primary())
}

func (r *MongoRepo) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
