package runner

import (
	"context"
	"errors"
	"testing"

	"bookq/internal/book"
	"bookq/internal/testutil"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	outcomes []Outcome
}

func (s *recordingSink) Write(o Outcome) error {
	s.outcomes = append(s.outcomes, o)
	return nil
}

func (s *recordingSink) names() []string {
	out := make([]string, len(s.outcomes))
	for i, o := range s.outcomes {
		out[i] = o.Statement
	}
	return out
}

type mockSink struct {
	mock.Mock
}

func (m *mockSink) Write(o Outcome) error {
	args := m.Called(o)
	return args.Error(0)
}

func threeStatements() []Statement {
	return []Statement{
		{Name: "avg", Op: AverageByGenreOp{}},
		{Name: "top", Op: TopAuthorOp{Limit: 1}},
		{Name: "decades", Op: DecadeOp{}},
	}
}

func TestRunner_AllSucceed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	store := book.NewMockStore(ctrl)
	sink := &recordingSink{}

	gomock.InOrder(
		store.EXPECT().AveragePriceByGenre(gomock.Any()).Return([]book.GenreAverage{{Genre: "Fiction", AveragePrice: 14.36}}, nil),
		store.EXPECT().TopAuthors(gomock.Any(), 1).Return([]book.AuthorCount{{Author: "Ada Mwangi", BookCount: 5}}, nil),
		store.EXPECT().CountByDecade(gomock.Any()).Return([]book.DecadeCount{{Decade: "2010s", Count: 6}}, nil),
	)

	summary, err := New(store, sink, PolicyHalt, "books").Run(context.Background(), threeStatements())
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Zero(t, summary.Failed)
	assert.Zero(t, summary.Skipped)

	assert.Equal(t, []string{"avg", "top", "decades"}, sink.names())
	assert.Equal(t, KindAggregate, sink.outcomes[1].Kind)
	assert.Equal(t, "Ada Mwangi", sink.outcomes[1].AuthorCounts[0].Author)
	assert.Contains(t, sink.outcomes[2].Command, "db.books.aggregate(")
}

func TestRunner_HaltStopsAtFirstFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	store := book.NewMockStore(ctrl)
	sink := &recordingSink{}
	boom := errors.New("connection reset")

	store.EXPECT().AveragePriceByGenre(gomock.Any()).Return(nil, nil)
	store.EXPECT().TopAuthors(gomock.Any(), 1).Return(nil, boom)

	summary, err := New(store, sink, PolicyHalt, "books").Run(context.Background(), threeStatements())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, `statement "top"`)

	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, []string{"avg", "top"}, sink.names())
	assert.ErrorIs(t, sink.outcomes[1].Err, boom)
}

func TestRunner_ContinueRecordsEveryFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	store := book.NewMockStore(ctrl)
	sink := &recordingSink{}
	errTop := errors.New("top failed")
	errDecades := errors.New("decades failed")

	store.EXPECT().AveragePriceByGenre(gomock.Any()).Return(nil, nil)
	store.EXPECT().TopAuthors(gomock.Any(), 1).Return(nil, errTop)
	store.EXPECT().CountByDecade(gomock.Any()).Return(nil, errDecades)

	summary, err := New(store, sink, PolicyContinue, "books").Run(context.Background(), threeStatements())
	assert.ErrorIs(t, err, errTop)
	assert.ErrorIs(t, err, errDecades)

	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 2, summary.Failed)
	assert.Zero(t, summary.Skipped)
	assert.Len(t, sink.outcomes, 3)
}

func TestRunner_CanceledContextSkipsRemaining(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	store := book.NewMockStore(ctrl)
	sink := &recordingSink{}

	ctx, cancel := context.WithCancel(context.Background())
	store.EXPECT().AveragePriceByGenre(gomock.Any()).DoAndReturn(func(context.Context) ([]book.GenreAverage, error) {
		cancel()
		return nil, nil
	})

	summary, err := New(store, sink, PolicyContinue, "books").Run(ctx, threeStatements())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 2, summary.Skipped)
	assert.Len(t, sink.outcomes, 1)
}

func TestRunner_SinkErrorAborts(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	store := book.NewMockStore(ctrl)
	sinkErr := errors.New("broken pipe")
	sink := new(mockSink)

	store.EXPECT().AveragePriceByGenre(gomock.Any()).Return(nil, nil)
	sink.On("Write", mock.MatchedBy(func(o Outcome) bool {
		return o.Statement == "avg" && o.Err == nil
	})).Return(sinkErr).Once()

	summary, err := New(store, sink, PolicyContinue, "books").Run(context.Background(), threeStatements())
	assert.ErrorIs(t, err, sinkErr)
	assert.ErrorContains(t, err, `write outcome of "avg"`)
	assert.Equal(t, 2, summary.Skipped)
	sink.AssertExpectations(t)
	sink.AssertNumberOfCalls(t, "Write", 1)
}

func TestOps_FillOutcome(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	store := book.NewMockStore(ctrl)
	ctx := context.Background()

	t.Run("find keeps projection columns", func(t *testing.T) {
		req := book.FindRequest{Projection: &book.Projection{Fields: []book.Field{book.FieldTitle}, ExcludeID: true}}
		store.EXPECT().Find(gomock.Any(), req).Return(testutil.Seq([]book.Book{{Title: "Kintu"}}))

		var out Outcome
		require.NoError(t, FindOp{Req: req}.Run(ctx, store, &out))
		assert.Equal(t, []book.Field{book.FieldTitle}, out.Columns)
		assert.Len(t, out.Books, 1)
	})

	t.Run("update", func(t *testing.T) {
		f := book.Filter{Title: book.Ptr("The AI Revolution")}
		p := book.Patch{Price: book.Ptr(24.99)}
		store.EXPECT().UpdateOne(gomock.Any(), f, p).Return(book.UpdateResult{Matched: 1, Modified: 1}, nil)

		var out Outcome
		require.NoError(t, UpdateOp{Filter: f, Patch: p}.Run(ctx, store, &out))
		assert.Equal(t, &book.UpdateResult{Matched: 1, Modified: 1}, out.Update)
	})

	t.Run("malformed statements never reach the store", func(t *testing.T) {
		var out Outcome
		err := UpdateOp{Filter: book.Filter{Title: book.Ptr("The AI Revolution")}, Patch: book.Patch{Price: book.Ptr(-1.0)}}.Run(ctx, store, &out)
		assert.ErrorIs(t, err, book.ErrInvalidRequest)
		assert.ErrorIs(t, UpdateOp{}.Run(ctx, store, &out), book.ErrEmptyPatch)
		assert.Nil(t, out.Update)

		bad := book.FindRequest{Sort: []book.SortKey{{Field: "isbn", Direction: book.Asc}}}
		assert.ErrorIs(t, FindOp{Req: bad}.Run(ctx, store, &out), book.ErrInvalidRequest)
	})

	t.Run("delete error leaves result unset", func(t *testing.T) {
		store.EXPECT().DeleteOne(gomock.Any(), gomock.Any()).Return(book.DeleteResult{}, context.DeadlineExceeded)

		var out Outcome
		assert.ErrorIs(t, DeleteOp{}.Run(ctx, store, &out), context.DeadlineExceeded)
		assert.Nil(t, out.Delete)
	})

	t.Run("index and explain", func(t *testing.T) {
		spec := book.IndexSpec{Keys: []book.IndexKey{{Field: book.FieldTitle, Direction: book.Asc}}}
		store.EXPECT().CreateIndex(gomock.Any(), spec).Return("title_1", nil)
		store.EXPECT().Explain(gomock.Any(), gomock.Any()).Return(book.ExplainReport{Backend: "mongo"}, nil)

		var out Outcome
		require.NoError(t, CreateIndexOp{Spec: spec}.Run(ctx, store, &out))
		assert.Equal(t, "title_1", out.IndexName)
		require.NoError(t, ExplainOp{}.Run(ctx, store, &out))
		assert.Equal(t, "mongo", out.Explain.Backend)
	})
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyHalt, p)

	p, err = ParsePolicy("continue")
	require.NoError(t, err)
	assert.Equal(t, PolicyContinue, p)
	assert.Equal(t, "continue", p.String())

	_, err = ParsePolicy("retry")
	assert.Error(t, err)
}
