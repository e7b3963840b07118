package book

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"bookq/internal/httpx"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

// Register mounts the read-only book routes on mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /books", h.List)
	mux.HandleFunc("GET /books/explain", h.Explain)
	mux.HandleFunc("GET /books/stats/genres", h.GenreAverages)
	mux.HandleFunc("GET /books/stats/top-authors", h.TopAuthors)
	mux.HandleFunc("GET /books/stats/decades", h.Decades)
	mux.HandleFunc("GET /books/{title}", h.Get)
}

// ParseFindRequest reads a FindRequest from query parameters such as
// ?genre=Science+Fiction&published_after=2015&fields=title,price&sort=-price&skip=5&limit=5.
func ParseFindRequest(q url.Values) (FindRequest, []httpx.ErrorDetail) {
	var (
		req     FindRequest
		details []httpx.ErrorDetail
	)
	bad := func(field, format string, args ...any) {
		details = append(details, httpx.ErrorDetail{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if q.Has("title") {
		req.Filter.Title = Ptr(q.Get("title"))
	}
	if q.Has("author") {
		req.Filter.Author = Ptr(q.Get("author"))
	}
	if q.Has("genre") {
		req.Filter.Genre = Ptr(q.Get("genre"))
	}
	if v := q.Get("in_stock"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			bad("in_stock", "must be true or false")
		} else {
			req.Filter.InStock = &b
		}
	}
	if v := q.Get("published_after"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			bad("published_after", "must be an integer year")
		} else {
			req.Filter.PublishedAfter = &year
		}
	}

	if v := q.Get("fields"); v != "" {
		proj := &Projection{ExcludeID: q.Get("exclude_id") == "true"}
		for _, name := range strings.Split(v, ",") {
			f, err := ParseField(name)
			if err != nil {
				bad("fields", "unknown field %q", name)
				continue
			}
			proj.Fields = append(proj.Fields, f)
		}
		req.Projection = proj
	}

	if v := q.Get("sort"); v != "" {
		for _, key := range strings.Split(v, ",") {
			dir := Asc
			if strings.HasPrefix(key, "-") {
				dir = Desc
				key = key[1:]
			}
			f, err := ParseField(key)
			if err != nil {
				bad("sort", "unknown field %q", key)
				continue
			}
			req.Sort = append(req.Sort, SortKey{Field: f, Direction: dir})
		}
	}

	req.Limit = defaultPageLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 || n > maxPageLimit {
			bad("limit", "must be between 1 and %d", maxPageLimit)
		} else {
			req.Limit = n
		}
	}
	if v := q.Get("skip"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			bad("skip", "must be a non-negative integer")
		} else {
			req.Skip = n
		}
	}

	return req, details
}

// List handles GET /books
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	req, details := ParseFindRequest(r.URL.Query())
	if len(details) > 0 {
		httpx.JSONError(w, r, http.StatusBadRequest, "INVALID_QUERY", "Invalid query parameters", details)
		return
	}

	books, err := h.service.Find(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httpx.JSONSuccess(w, r, projectAll(books, req.Projection), map[string]any{
		"skip":  req.Skip,
		"limit": req.Limit,
		"count": len(books),
	})
}

// Get handles GET /books/{title}
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.service.FindByTitle(r.Context(), r.PathValue("title"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, Project(b, AllFields), nil)
}

// Explain handles GET /books/explain?title=...
func (h *HTTPHandler) Explain(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	if title == "" {
		httpx.JSONError(w, r, http.StatusBadRequest, "INVALID_QUERY", "title is required",
			[]httpx.ErrorDetail{{Field: "title", Message: "title is required"}})
		return
	}
	report, err := h.service.ExplainTitle(r.Context(), title)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, report, nil)
}

// GenreAverages handles GET /books/stats/genres
func (h *HTTPHandler) GenreAverages(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.AveragePriceByGenre(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, rows, nil)
}

// TopAuthors handles GET /books/stats/top-authors?limit=n
func (h *HTTPHandler) TopAuthors(w http.ResponseWriter, r *http.Request) {
	n := 1
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 || parsed > maxPageLimit {
			httpx.JSONError(w, r, http.StatusBadRequest, "INVALID_QUERY", "Invalid query parameters",
				[]httpx.ErrorDetail{{Field: "limit", Message: fmt.Sprintf("must be between 1 and %d", maxPageLimit)}})
			return
		}
		n = parsed
	}
	rows, err := h.service.TopAuthors(r.Context(), n)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, rows, nil)
}

// Decades handles GET /books/stats/decades
func (h *HTTPHandler) Decades(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.CountByDecade(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, rows, nil)
}

func (h *HTTPHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		httpx.JSONError(w, r, http.StatusBadRequest, "INVALID_QUERY", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "Book not found", nil)
	default:
		httpx.JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
	}
}

func projectAll(books []Book, p *Projection) []map[string]any {
	cols := p.Columns()
	out := make([]map[string]any, len(books))
	for i, b := range books {
		out[i] = Project(b, cols)
	}
	return out
}
