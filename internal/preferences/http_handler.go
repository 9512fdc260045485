package preferences

import (
	"errors"
	"net/http"

	"readingnook/internal/httpx"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

type densityResponse struct {
	Density  Density `json:"density"`
	PageSize int     `json:"page_size"`
	Allowed  []int   `json:"allowed"`
}

// Get handles GET /v1/preferences
// @Summary Page size preferences
// @Description Page size currently used for each display density
// @Tags preferences
// @Produce json
// @Success 200 {object} httpx.SuccessResponse
// @Router /v1/preferences [get]
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	sizes := h.service.All(r.Context())
	out := make([]densityResponse, 0, len(sizes))
	for _, d := range Densities() {
		out = append(out, densityResponse{Density: d, PageSize: sizes[d], Allowed: d.AllowedSizes()})
	}
	httpx.JSONSuccess(w, r, out, nil)
}

type SetPageSizeReq struct {
	PageSize int `json:"page_size" validate:"required,min=1,max=100"`
}

// Set handles PUT /v1/preferences/{density}
// @Summary Set page size
// @Description Persist the page size for one display density
// @Tags preferences
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param density path string true "grid or list"
// @Param request body SetPageSizeReq true "Page size"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 401 {object} httpx.ErrorResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Router /v1/preferences/{density} [put]
func (h *HTTPHandler) Set(w http.ResponseWriter, r *http.Request) {
	d, err := ParseDensity(r.PathValue("density"))
	if err != nil {
		httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "Unknown density", nil)
		return
	}

	var req SetPageSizeReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body", nil)
		return
	}
	if validationErrors := httpx.ValidateStruct(req); len(validationErrors) > 0 {
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid input", validationErrors)
		return
	}

	if err := h.service.SetPageSize(r.Context(), d, req.PageSize); err != nil {
		if errors.Is(err, ErrInvalidSize) {
			httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid input", []httpx.ErrorDetail{
				{Field: "page_size", Message: err.Error()},
			})
			return
		}
		httpx.JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
		return
	}

	httpx.JSONSuccess(w, r, densityResponse{Density: d, PageSize: req.PageSize, Allowed: d.AllowedSizes()}, nil)
}
