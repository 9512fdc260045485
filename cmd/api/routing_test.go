package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"readingnook/internal/auth"
	"readingnook/internal/book"
	"readingnook/internal/catalog"
	"readingnook/internal/library"
	"readingnook/internal/preferences"
	"readingnook/internal/testutil"
)

const testSecret = "routing-secret"

func newTestRouter(t *testing.T, ready func(context.Context) error) http.Handler {
	t.Helper()
	log := zap.NewNop()

	repo := book.NewFileRepo(filepath.Join(t.TempDir(), "books.json"))
	require.NoError(t, repo.ReplaceAll(context.Background(), testutil.TestBooks()))

	prefs := preferences.NewService(preferences.NewMemoryStore())
	lib := library.NewService(book.NewStore(repo, nil, log), catalog.New(), library.Deps{Prefs: prefs}, log)
	lib.Load(context.Background())

	creds := auth.NewStaticCredentials(map[string]string{testutil.TestEditor: "pass"})

	return newRouter(routerDeps{
		library:     library.NewHTTPHandler(lib),
		auth:        auth.NewHTTPHandler(auth.NewService(testSecret, time.Hour, creds)),
		preferences: preferences.NewHTTPHandler(prefs),
		ready:       ready,
		jwtSecret:   testSecret,
		log:         log,
		corsOrigins: []string{"http://shelf.test"},
		maxBody:     1 << 20,
	})
}

func TestV1Routing(t *testing.T) {
	h := newTestRouter(t, nil)
	valid := testutil.GenerateTestToken(testSecret)
	expired := testutil.GenerateExpiredToken(testSecret)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		token      string
		wantStatus int
	}{
		{"healthz", http.MethodGet, "/healthz", "", "", http.StatusOK},
		{"readyz", http.MethodGet, "/readyz", "", "", http.StatusOK},
		{"browse", http.MethodGet, "/v1/books?status=finished", "", "", http.StatusOK},
		{"get book", http.MethodGet, "/v1/books/9780441013593", "", "", http.StatusOK},
		{"get missing book", http.MethodGet, "/v1/books/nope", "", "", http.StatusNotFound},
		{"filters", http.MethodGet, "/v1/filters", "", "", http.StatusOK},
		{"stats", http.MethodGet, "/v1/stats", "", "", http.StatusOK},
		{"preferences", http.MethodGet, "/v1/preferences", "", "", http.StatusOK},
		{"create requires token", http.MethodPost, "/v1/books", `{}`, "", http.StatusUnauthorized},
		{"delete requires token", http.MethodDelete, "/v1/books/9780441013593", "", "", http.StatusUnauthorized},
		{"enrich requires token", http.MethodPost, "/v1/books/9780441013593/enrich", "", "", http.StatusUnauthorized},
		{"preference write requires token", http.MethodPut, "/v1/preferences/grid", `{"page_size":10}`, "", http.StatusUnauthorized},
		{"preference write", http.MethodPut, "/v1/preferences/grid", `{"page_size":10}`, valid, http.StatusOK},
		{"expired token", http.MethodDelete, "/v1/books/9780547928227", "", expired, http.StatusUnauthorized},
		{"foreign signature", http.MethodDelete, "/v1/books/9780547928227", "", testutil.GenerateTestToken("other-secret"), http.StatusUnauthorized},
		{"delete with token", http.MethodDelete, "/v1/books/9780547928227", "", valid, http.StatusOK},
		{"unversioned path", http.MethodGet, "/books", "", "", http.StatusNotFound},
		{"wrong method", http.MethodPatch, "/v1/books", "", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body any
			if tt.body != "" {
				body = tt.body
			}
			req := testutil.NewRequestWithAuth(tt.method, tt.path, body, tt.token)
			w := httptest.NewRecorder()

			h.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
			assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		})
	}
}

func TestLoginThenCreate(t *testing.T) {
	h := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(`{"username":"reader","password":"pass"}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var login struct {
		Data auth.Token `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	require.NotEmpty(t, login.Data.AccessToken)

	in := book.Input{
		Title: "Piranesi", Author: "Susanna Clarke", Genre: "Fantasy", Publisher: "Bloomsbury",
		Synopsis: "A house of statues.", DatePublished: "2020-09-15", CoverURL: "https://example.com/p.jpg",
		Status: "reading", Formats: []string{"audio"}, PageCount: 272,
	}
	body, err := json.Marshal(in)
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodPost, "/v1/books", strings.NewReader(string(body)))
	req.Header.Set("Authorization", "Bearer "+login.Data.AccessToken)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var list struct {
		Data []book.Book    `json:"data"`
		Meta map[string]any `json:"meta"`
	}

	// Two seeded books are audio as well.
	req = httptest.NewRequest(http.MethodGet, "/v1/books?format=audio", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, float64(len(audioBooks(testutil.TestBooks()))+1), list.Meta["total"])

	req = httptest.NewRequest(http.MethodGet, "/v1/books?format=audio&q=piranesi", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, "Piranesi", list.Data[0].Title)
	assert.Equal(t, float64(1), list.Meta["total"])
}

func audioBooks(books []book.Book) []book.Book {
	var out []book.Book
	for _, b := range books {
		if b.HasFormat(book.FormatAudio) {
			out = append(out, b)
		}
	}
	return out
}

func TestReadyzReportsStorage(t *testing.T) {
	h := newTestRouter(t, func(context.Context) error { return errors.New("db down") })

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/v1/books", nil)
	req.Header.Set("Origin", "http://shelf.test")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://shelf.test", w.Header().Get("Access-Control-Allow-Origin"))
}
