// Package testutil holds fixtures shared by handler and router tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	"readingnook/internal/book"
	"readingnook/internal/platform/crypto"
)

// TestEditor is the subject placed in generated tokens.
const TestEditor = "reader"

// TestBooks returns a small normalized library covering every status, two
// genres and one series. Each call returns fresh copies.
func TestBooks() []book.Book {
	books := []book.Book{
		{
			ID: "9780441013593", Title: "Dune", Author: "Frank Herbert", Genre: "Science Fiction",
			Status: book.StatusFinished, UserRating: 5, Formats: []book.Format{book.FormatPhysical},
			PageCount: book.IntPtr(412), DateAdded: "2024-01-10", DateStarted: "2024-01-12", DateFinished: "2024-02-01",
			Series: &book.Series{Name: "Dune", Number: 1},
		},
		{
			ID: "9780547928227", Title: "The Hobbit", Author: "J.R.R. Tolkien", Genre: "Fantasy",
			Status: book.StatusToRead, Formats: []book.Format{book.FormatEbook},
			PageCount: book.IntPtr(300), DateAdded: "2024-03-05",
		},
		{
			ID: "9780765326355", Title: "The Way of Kings", Author: "Brandon Sanderson", Genre: "Fantasy",
			Status: book.StatusReading, Formats: []book.Format{book.FormatPhysical, book.FormatAudio},
			PageCount: book.IntPtr(1007), DateAdded: "2024-04-20", DateStarted: "2024-05-01",
			Series: &book.Series{Name: "The Stormlight Archive", Number: 1},
		},
		{
			ID: "9780316029186", Title: "The Last Wish", Author: "Andrzej Sapkowski", Genre: "Fantasy",
			Status: book.StatusAbandoned, UserRating: 2, Formats: []book.Format{book.FormatAudio},
			DateAdded: "2024-06-11",
		},
	}
	return book.NormalizeAll(books)
}

// GenerateTestToken signs a one hour token for TestEditor.
func GenerateTestToken(secret string) string {
	token, _, _, _ := crypto.GenerateToken(secret, TestEditor, time.Hour)
	return token
}

// GenerateExpiredToken signs a token that expired an hour ago.
func GenerateExpiredToken(secret string) string {
	token, _, _, _ := crypto.GenerateToken(secret, TestEditor, -time.Hour)
	return token
}

// NewRequest builds a request with body encoded as JSON when non-nil.
func NewRequest(method, path string, body any) *http.Request {
	if body == nil {
		return httptest.NewRequest(method, path, nil)
	}
	var raw []byte
	switch v := body.(type) {
	case string:
		raw = []byte(v)
	default:
		raw, _ = json.Marshal(body)
	}
	r := httptest.NewRequest(method, path, bytes.NewReader(raw))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// NewRequestWithAuth is NewRequest plus a bearer token.
func NewRequestWithAuth(method, path string, body any, token string) *http.Request {
	r := NewRequest(method, path, body)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

// Envelope mirrors the JSON response wrapper.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// RecordResponse is a decoded recorder result.
type RecordResponse struct {
	Code   int
	Header http.Header
	Body   Envelope
}

// RecordHTTPResponse decodes the envelope written to w.
func RecordHTTPResponse(w *httptest.ResponseRecorder) RecordResponse {
	result := w.Result()
	defer result.Body.Close()

	raw, _ := io.ReadAll(result.Body)
	var env Envelope
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &env)
	}
	return RecordResponse{Code: result.StatusCode, Header: result.Header, Body: env}
}

// DecodeData unmarshals the envelope data into v.
func (r RecordResponse) DecodeData(v any) error {
	return json.Unmarshal(r.Body.Data, v)
}
