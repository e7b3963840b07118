// Package testutil holds HTTP helpers and store stubs shared by handler, runner and routing tests.
package testutil

import (
	"io"
	"iter"
	"net/http"
	"net/http/httptest"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RecordResponse is a decoded response envelope.
type RecordResponse struct {
	Code   int
	Header http.Header
	Body   map[string]any
}

// Serve runs a request without a body through h.
func Serve(h http.Handler, method, target string) RecordResponse {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return RecordHTTPResponse(w)
}

// RecordHTTPResponse decodes a recorded response. Non-JSON bodies leave Body nil.
func RecordHTTPResponse(w *httptest.ResponseRecorder) RecordResponse {
	result := w.Result()
	defer result.Body.Close()

	bodyBytes, _ := io.ReadAll(result.Body)

	var bodyMap map[string]any
	if len(bodyBytes) > 0 {
		if err := json.Unmarshal(bodyBytes, &bodyMap); err != nil {
			bodyMap = nil
		}
	}

	return RecordResponse{
		Code:   result.StatusCode,
		Header: result.Header,
		Body:   bodyMap,
	}
}

// ErrorCode returns error.code from an error envelope, or "".
func (r RecordResponse) ErrorCode() string {
	errBody, _ := r.Body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

// AssertResponseCode checks if the response code matches expected
func AssertResponseCode(t interface {
	Errorf(format string, args ...any)
}, got, want int) {
	if got != want {
		t.Errorf("got status code %d, want %d", got, want)
	}
}

// Seq yields items in order with no error, standing in for a store cursor.
func Seq[T any](items []T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, item := range items {
			if !yield(item, nil) {
				return
			}
		}
	}
}

// ErrSeq yields a single error.
func ErrSeq[T any](err error) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		yield(zero, err)
	}
}
