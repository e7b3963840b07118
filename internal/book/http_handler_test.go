package book

import (
	"context"
	"iter"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"bookq/internal/testutil"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool             `json:"success"`
	Data    []map[string]any `json:"data"`
	Meta    map[string]any   `json:"meta"`
	Error   struct {
		Code string `json:"code"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestHTTPHandler_List(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockStore := NewMockStore(ctrl)
	handler := NewHTTPHandler(NewService(mockStore))

	testBook := Book{ID: "1", Title: "Kintu", Author: "Jennifer Makumbi", Genre: "Fiction", Price: 18.5}

	t.Run("success with projection", func(t *testing.T) {
		mockStore.EXPECT().Find(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req FindRequest) iter.Seq2[Book, error] {
				assert.Equal(t, "Fiction", *req.Filter.Genre)
				assert.Equal(t, int64(defaultPageLimit), req.Limit)
				return testutil.Seq([]Book{testBook})
			})

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/books?genre=Fiction&fields=title,price&exclude_id=true", nil)

		handler.List(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		env := decodeEnvelope(t, w)
		require.Len(t, env.Data, 1)
		assert.Equal(t, map[string]any{"title": "Kintu", "price": 18.5}, env.Data[0])
		assert.Equal(t, float64(1), env.Meta["count"])
	})

	t.Run("invalid query", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/books?limit=1000&sort=isbn", nil)

		handler.List(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_QUERY", decodeEnvelope(t, w).Error.Code)
	})

	t.Run("error", func(t *testing.T) {
		mockStore.EXPECT().Find(gomock.Any(), gomock.Any()).Return(testutil.ErrSeq[Book](context.DeadlineExceeded))

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/books", nil)

		handler.List(w, r)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestHTTPHandler_TopAuthors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockStore := NewMockStore(ctrl)
	handler := NewHTTPHandler(NewService(mockStore))

	t.Run("default limit", func(t *testing.T) {
		mockStore.EXPECT().TopAuthors(gomock.Any(), 1).Return([]AuthorCount{{Author: "Ada Mwangi", BookCount: 5}}, nil)

		w := httptest.NewRecorder()
		handler.TopAuthors(w, httptest.NewRequest(http.MethodGet, "/books/stats/top-authors", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		env := decodeEnvelope(t, w)
		require.Len(t, env.Data, 1)
		assert.Equal(t, "Ada Mwangi", env.Data[0]["_id"])
	})

	t.Run("bad limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.TopAuthors(w, httptest.NewRequest(http.MethodGet, "/books/stats/top-authors?limit=zero", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHTTPHandler_Explain(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockStore := NewMockStore(ctrl)
	handler := NewHTTPHandler(NewService(mockStore))

	t.Run("requires title", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.Explain(w, httptest.NewRequest(http.MethodGet, "/books/explain", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("success", func(t *testing.T) {
		mockStore.EXPECT().Explain(gomock.Any(), FindRequest{Filter: Filter{Title: Ptr("Kintu")}}).
			Return(ExplainReport{Backend: "mongo", Stats: ExecutionStats{PlanStage: "FETCH", IndexName: "title_1"}}, nil)

		w := httptest.NewRecorder()
		handler.Explain(w, httptest.NewRequest(http.MethodGet, "/books/explain?title=Kintu", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"index_name":"title_1"`)
	})
}

func TestHTTPHandler_Stats(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockStore := NewMockStore(ctrl)
	handler := NewHTTPHandler(NewService(mockStore))

	mockStore.EXPECT().AveragePriceByGenre(gomock.Any()).Return([]GenreAverage{{Genre: "Fantasy", AveragePrice: 12.5}}, nil)
	mockStore.EXPECT().CountByDecade(gomock.Any()).Return(nil, context.Canceled)

	w := httptest.NewRecorder()
	handler.GenreAverages(w, httptest.NewRequest(http.MethodGet, "/books/stats/genres", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"average_price":12.5`)

	w = httptest.NewRecorder()
	handler.Decades(w, httptest.NewRequest(http.MethodGet, "/books/stats/decades", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHTTPHandler_Register(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockStore := NewMockStore(ctrl)
	mux := http.NewServeMux()
	NewHTTPHandler(NewService(mockStore)).Register(mux)

	mockStore.EXPECT().CountByDecade(gomock.Any()).Return([]DecadeCount{{Decade: "2010s", Count: 4}}, nil)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/books/stats/decades", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/books", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHTTPHandler_Get(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockStore := NewMockStore(ctrl)
	mux := http.NewServeMux()
	NewHTTPHandler(NewService(mockStore)).Register(mux)

	byTitle := func(title string) FindRequest {
		return FindRequest{Filter: Filter{Title: Ptr(title)}, Limit: 1}
	}

	t.Run("found", func(t *testing.T) {
		mockStore.EXPECT().Find(gomock.Any(), byTitle("The AI Revolution")).
			Return(testutil.Seq([]Book{{ID: "7", Title: "The AI Revolution", Price: 24.99}}))

		resp := testutil.Serve(mux, http.MethodGet, "/books/The%20AI%20Revolution")
		testutil.AssertResponseCode(t, resp.Code, http.StatusOK)
		data, ok := resp.Body["data"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "7", data["_id"])
		assert.Equal(t, 24.99, data["price"])
	})

	t.Run("not found", func(t *testing.T) {
		mockStore.EXPECT().Find(gomock.Any(), byTitle("Missing")).Return(testutil.Seq[Book](nil))

		resp := testutil.Serve(mux, http.MethodGet, "/books/Missing")
		testutil.AssertResponseCode(t, resp.Code, http.StatusNotFound)
		assert.Equal(t, "NOT_FOUND", resp.ErrorCode())
	})

	t.Run("explain keeps its own route", func(t *testing.T) {
		resp := testutil.Serve(mux, http.MethodGet, "/books/explain")
		testutil.AssertResponseCode(t, resp.Code, http.StatusBadRequest)
	})
}

func TestParseFindRequest(t *testing.T) {
	q := url.Values{}
	q.Set("in_stock", "true")
	q.Set("published_after", "2010")
	q.Set("sort", "-price,title")
	q.Set("skip", "5")
	q.Set("limit", "5")

	req, details := ParseFindRequest(q)
	require.Empty(t, details)
	assert.True(t, *req.Filter.InStock)
	assert.Equal(t, 2010, *req.Filter.PublishedAfter)
	assert.Equal(t, []SortKey{{Field: FieldPrice, Direction: Desc}, {Field: FieldTitle, Direction: Asc}}, req.Sort)
	assert.Equal(t, int64(5), req.Skip)
	assert.Equal(t, int64(5), req.Limit)
	assert.Nil(t, req.Projection)

	_, details = ParseFindRequest(url.Values{"in_stock": {"maybe"}, "published_after": {"last year"}, "skip": {"-1"}})
	assert.Len(t, details, 3)
}
