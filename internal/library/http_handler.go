package library

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"readingnook/internal/book"
	"readingnook/internal/catalog"
	"readingnook/internal/httpx"
	"readingnook/internal/platform/googlebooks"
	"readingnook/internal/preferences"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

// List handles GET /v1/books
// @Summary Browse the library
// @Description Filter, sort and paginate books. Filter parameters may be repeated or comma separated.
// @Tags books
// @Produce json
// @Param q query string false "Search title, author, genre, id, series and formats"
// @Param status query []string false "to_read, reading, finished, abandoned"
// @Param format query []string false "physical, ebook, audio"
// @Param genre query []string false "Genre"
// @Param author query []string false "Author"
// @Param publisher query []string false "Publisher"
// @Param page_count query []string false "Page bucket such as 1-100 or 801+"
// @Param rating query []string false "Exact rating 1-5"
// @Param year_published query []string false "Publication year"
// @Param year_finished query []string false "Year finished"
// @Param series query []string false "Series name or standalone"
// @Param sort query string false "field or field-asc|desc" default(author_series)
// @Param density query string false "grid or list" default(grid)
// @Param page query int false "Page number"
// @Param page_size query int false "Page size (max 100)"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Router /v1/books [get]
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := BrowseQuery{Selection: ParseSelection(q, h.service.Categories()), Sort: catalog.DefaultSortKey}
	if raw := q.Get("sort"); raw != "" {
		key, ok := catalog.ParseSortKey(raw)
		if !ok {
			httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Unknown sort key", []httpx.ErrorDetail{
				{Field: "sort", Message: "unknown sort key " + strconv.Quote(raw)},
			})
			return
		}
		query.Sort = key
	}

	d, ok := densityParam(w, r)
	if !ok {
		return
	}
	query.Density = d

	var details []httpx.ErrorDetail
	query.Page, details = parseNonNegative(q, "page", details)
	query.PageSize, details = parseNonNegative(q, "page_size", details)
	if len(details) > 0 {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid pagination", details)
		return
	}

	res := h.service.Browse(r.Context(), query)
	meta := httpx.Meta{
		"page":        res.Page,
		"page_size":   res.PageSize,
		"total":       res.Total,
		"total_pages": res.TotalPages,
		"density":     res.Density,
		"sort":        res.Sort.String(),
	}
	if res.Warning != "" {
		meta["storage_warning"] = res.Warning
	}
	httpx.JSONSuccess(w, r, res.Books, meta)
}

// ParseSelection reads the search string and every category from query
// parameters. Repeated and comma separated values are both accepted.
func ParseSelection(q url.Values, cats []catalog.Category) catalog.Selection {
	sel := catalog.Selection{
		Search: strings.TrimSpace(q.Get("q")),
		Values: map[catalog.Category][]string{},
	}
	for _, c := range cats {
		var vals []string
		for _, raw := range q[string(c)] {
			for _, v := range strings.Split(raw, ",") {
				if v = strings.TrimSpace(v); v != "" {
					vals = append(vals, v)
				}
			}
		}
		if len(vals) > 0 {
			sel.Values[c] = vals
		}
	}
	return sel
}

func parseNonNegative(q url.Values, key string, details []httpx.ErrorDetail) (int, []httpx.ErrorDetail) {
	raw := q.Get(key)
	if raw == "" {
		return 0, details
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, append(details, httpx.ErrorDetail{Field: key, Message: key + " must be a positive integer"})
	}
	return n, details
}

// Get handles GET /v1/books/{id}
// @Summary Get a book
// @Tags books
// @Produce json
// @Param id path string true "Book id (ISBN or generated id)"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Router /v1/books/{id} [get]
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.service.Get(r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, b, nil)
}

// Filters handles GET /v1/filters
// @Summary Filter options
// @Description Options of every filter category derived from the current collection, with counts
// @Tags books
// @Produce json
// @Success 200 {object} httpx.SuccessResponse
// @Router /v1/filters [get]
func (h *HTTPHandler) Filters(w http.ResponseWriter, r *http.Request) {
	httpx.JSONSuccess(w, r, h.service.Filters(), nil)
}

// Stats handles GET /v1/stats
// @Summary Library statistics
// @Tags books
// @Produce json
// @Success 200 {object} httpx.SuccessResponse
// @Router /v1/stats [get]
func (h *HTTPHandler) Stats(w http.ResponseWriter, r *http.Request) {
	httpx.JSONSuccess(w, r, h.service.Stats(), nil)
}

// Create handles POST /v1/books
// @Summary Add a book
// @Tags books
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body book.Input true "Book"
// @Success 201 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 401 {object} httpx.ErrorResponse
// @Failure 409 {object} httpx.ErrorResponse
// @Router /v1/books [post]
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in book.Input
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body", nil)
		return
	}

	m, err := h.service.Add(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSONCreated(w, r, m.Book, mutationMeta(m))
}

// Update handles PUT /v1/books/{id}
// @Summary Edit a book
// @Description Replace the editable fields. The current page of the given density is kept.
// @Tags books
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Book id"
// @Param density query string false "Density the edit was made from (grid, list)"
// @Param request body book.Input true "Book"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 401 {object} httpx.ErrorResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Router /v1/books/{id} [put]
func (h *HTTPHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in book.Input
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body", nil)
		return
	}

	d, ok := densityParam(w, r)
	if !ok {
		return
	}

	m, err := h.service.Update(r.Context(), r.PathValue("id"), in, d)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, m.Book, mutationMeta(m))
}

// densityParam reads the density query parameter, grid when absent. It writes
// a 400 and returns false for unknown values.
func densityParam(w http.ResponseWriter, r *http.Request) (preferences.Density, bool) {
	raw := r.URL.Query().Get("density")
	if raw == "" {
		return preferences.Grid, true
	}
	d, err := preferences.ParseDensity(raw)
	if err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Unknown density", []httpx.ErrorDetail{
			{Field: "density", Message: "must be grid or list"},
		})
		return "", false
	}
	return d, true
}

// Delete handles DELETE /v1/books/{id}
// @Summary Delete a book
// @Tags books
// @Produce json
// @Security BearerAuth
// @Param id path string true "Book id"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 401 {object} httpx.ErrorResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Router /v1/books/{id} [delete]
func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, map[string]string{"id": m.Book.ID}, mutationMeta(m))
}

// Enrich handles POST /v1/books/{id}/enrich
// @Summary Enrich a book
// @Description Fill missing metadata from Google Books and mirror the cover
// @Tags books
// @Produce json
// @Security BearerAuth
// @Param id path string true "Book id"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 401 {object} httpx.ErrorResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Failure 502 {object} httpx.ErrorResponse
// @Router /v1/books/{id}/enrich [post]
func (h *HTTPHandler) Enrich(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.Enrich(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, book.ErrNotFound) || errors.Is(err, ErrNoEnricher) || errors.Is(err, googlebooks.ErrNotFound) {
			h.writeError(w, r, err)
			return
		}
		h.service.log.Warn("enrich failed", zap.String("book_id", r.PathValue("id")), zap.Error(err))
		httpx.JSONError(w, r, http.StatusBadGateway, "UPSTREAM_ERROR", "Metadata provider request failed", nil)
		return
	}
	httpx.JSONSuccess(w, r, m.Book, mutationMeta(m))
}

func mutationMeta(m Mutation) httpx.Meta {
	meta := httpx.Meta{"persisted": m.Persisted}
	if !m.Persisted {
		meta["storage_warning"] = "The change is kept in memory but could not be saved."
	}
	return meta
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *book.ValidationError
	switch {
	case errors.As(err, &verr):
		details := make([]httpx.ErrorDetail, len(verr.Fields))
		for i, f := range verr.Fields {
			details[i] = httpx.ErrorDetail{Field: f.Field, Message: f.Message}
		}
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid input", details)
	case errors.Is(err, book.ErrNotFound):
		httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "Book not found", nil)
	case errors.Is(err, ErrDuplicate):
		httpx.JSONError(w, r, http.StatusConflict, "DUPLICATE", "This book already exists in your library", nil)
	case errors.Is(err, ErrNoEnricher):
		httpx.JSONError(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", "Enrichment is not configured", nil)
	case errors.Is(err, googlebooks.ErrNotFound):
		httpx.JSONError(w, r, http.StatusNotFound, "NO_MATCH", "No matching volume found", nil)
	default:
		h.service.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		httpx.JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
	}
}
