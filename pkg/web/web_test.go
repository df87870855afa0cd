package web

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.DiscardHandler)

func Test_SessionMiddleware(t *testing.T) {
	testCases := []struct {
		name         string
		header       string
		expectedCode int
		generated    bool
	}{
		{name: "existing session", header: "tab-1", expectedCode: http.StatusOK},
		{name: "new session", header: "", expectedCode: http.StatusOK, generated: true},
		{name: "oversized session", header: strings.Repeat("x", 129), expectedCode: http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			var seen string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = GetSessionID(r.Context())
			})
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set(XSessionId, tc.header)
			}
			rec := httptest.NewRecorder()

			// when
			SessionMiddleware(next).ServeHTTP(rec, req)

			// then
			require.Equal(t, tc.expectedCode, rec.Code)
			if tc.expectedCode != http.StatusOK {
				assert.Empty(t, seen)
				return
			}
			assert.Equal(t, seen, rec.Header().Get(XSessionId))
			if tc.generated {
				assert.Len(t, seen, 36)
			} else {
				assert.Equal(t, tc.header, seen)
			}
		})
	}
}

func Test_Recoverer(t *testing.T) {
	h := Recoverer(discard)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func Test_OptionalParams(t *testing.T) {
	testCases := []struct {
		name     string
		query    string
		parse    func(r *http.Request, w http.ResponseWriter) (any, bool)
		expected any
		ok       bool
	}{
		{
			name:  "int default",
			query: "",
			parse: func(r *http.Request, w http.ResponseWriter) (any, bool) {
				return OptionalIntGte(r, w, discard, "limit", 1, 20)
			},
			expected: 20, ok: true,
		},
		{
			name:  "int below bound",
			query: "limit=0",
			parse: func(r *http.Request, w http.ResponseWriter) (any, bool) {
				return OptionalIntGte(r, w, discard, "limit", 1, 20)
			},
			ok: false,
		},
		{
			name:  "negative int64",
			query: "minPrice=-5",
			parse: func(r *http.Request, w http.ResponseWriter) (any, bool) {
				v, ok := OptionalInt64(r, w, discard, "minPrice")
				if v == nil {
					return nil, ok
				}
				return *v, ok
			},
			expected: int64(-5), ok: true,
		},
		{
			name:  "float",
			query: "minRating=4.5",
			parse: func(r *http.Request, w http.ResponseWriter) (any, bool) {
				v, ok := OptionalFloat(r, w, discard, "minRating")
				if v == nil {
					return nil, ok
				}
				return *v, ok
			},
			expected: 4.5, ok: true,
		},
		{
			name:  "bool",
			query: "inStock=true",
			parse: func(r *http.Request, w http.ResponseWriter) (any, bool) {
				v, ok := OptionalBool(r, w, discard, "inStock")
				if v == nil {
					return nil, ok
				}
				return *v, ok
			},
			expected: true, ok: true,
		},
		{
			name:  "bad uuid",
			query: "category=abc",
			parse: func(r *http.Request, w http.ResponseWriter) (any, bool) {
				v, ok := OptionalUUID(r, w, discard, "category")
				if v == nil {
					return nil, ok
				}
				return *v, ok
			},
			ok: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			req := httptest.NewRequest(http.MethodGet, "/?"+tc.query, nil)
			rec := httptest.NewRecorder()

			// when
			v, ok := tc.parse(req, rec)

			// then
			require.Equal(t, tc.ok, ok)
			if !ok {
				assert.Equal(t, http.StatusBadRequest, rec.Code)
				return
			}
			assert.Equal(t, tc.expected, v)
		})
	}
}

func Test_DecodeValid(t *testing.T) {
	type request struct {
		Quantity int `json:"quantity" validate:"required,min=1"`
	}
	testCases := []struct {
		name         string
		body         string
		ok           bool
		expectedBody string
	}{
		{name: "valid", body: `{"quantity":2}`, ok: true},
		{name: "malformed", body: `{`, expectedBody: `{"error":"Invalid request body"}`},
		{name: "rule violated", body: `{"quantity":0}`, expectedBody: `{"validation_errors":{"Quantity":"failed on rule: required"}}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(tc.body))
			rec := httptest.NewRecorder()
			var dst request

			ok := DecodeValid(rec, req, discard, validator.New(), &dst)

			require.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, 2, dst.Quantity)
				return
			}
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, tc.expectedBody, rec.Body.String())
		})
	}
}
