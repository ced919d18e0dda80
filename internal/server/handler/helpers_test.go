package handler

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseListOpts(t *testing.T) {
	cases := []struct {
		url        string
		wantLimit  int
		wantOffset int
	}{
		{"/api/activity", 50, 0},
		{"/api/activity?limit=10&offset=20", 10, 20},
		{"/api/activity?limit=9999", 500, 0},
		{"/api/activity?limit=-5&offset=-1", 50, 0},
		{"/api/activity?limit=abc", 50, 0},
	}

	for _, c := range cases {
		r := httptest.NewRequest("GET", c.url, nil)
		opts := parseListOpts(r)
		assert.Equal(t, c.wantLimit, opts.Limit, c.url)
		assert.Equal(t, c.wantOffset, opts.Offset, c.url)
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, 404, "position not found")

	assert.Equal(t, 404, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"position not found"}`, w.Body.String())
}
