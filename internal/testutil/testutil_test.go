package testutil

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServe_DecodesEnvelope(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"error":{"code":"NOT_FOUND","message":"Book not found"}}`))
	})

	resp := Serve(h, http.MethodGet, "/books/explain?title=missing")
	AssertResponseCode(t, resp.Code, http.StatusNotFound)
	assert.Equal(t, false, resp.Body["success"])
	assert.Equal(t, "NOT_FOUND", resp.ErrorCode())
}

func TestServe_PlainBody(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	resp := Serve(h, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Nil(t, resp.Body)
	assert.Empty(t, resp.ErrorCode())
}

func TestSeq_StopsWhenConsumerBreaks(t *testing.T) {
	var got []string
	for s, err := range Seq([]string{"a", "b", "c"}) {
		assert.NoError(t, err)
		got = append(got, s)
		if s == "b" {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestErrSeq(t *testing.T) {
	boom := errors.New("boom")
	n := 0
	for s, err := range ErrSeq[string](boom) {
		n++
		assert.Empty(t, s)
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, 1, n)
}
