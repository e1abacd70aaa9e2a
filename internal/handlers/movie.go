package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/cinevault/apiserver/internal/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// MovieHandler provides HTTP handlers for the movie catalog.
type MovieHandler struct {
	movies  *services.MovieService
	uploads *services.UploadService
	logger  *zap.Logger
}

func NewMovieHandler(movies *services.MovieService, uploads *services.UploadService, logger *zap.Logger) *MovieHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MovieHandler{movies: movies, uploads: uploads, logger: logger}
}

// MovieRouter registers movie routes. Every route requires authMiddleware.
func MovieRouter(r chi.Router, handler *MovieHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware)

	r.Get("/", handler.ListMovies)
	r.Post("/", handler.CreateMovie)
	r.Route("/{movieID}", func(r chi.Router) {
		r.Get("/", handler.GetMovie)
		r.Patch("/", handler.UpdateMovie)
		r.Delete("/", handler.DeleteMovie)
		r.Get("/images", handler.ListImages)
		r.Get("/poster", handler.Poster)
	})
}

// ListMovies serves GET /movies?page=&pageSize=&status=&search=&mine=.
func (h *MovieHandler) ListMovies(w http.ResponseWriter, r *http.Request) {
	page, pageSize, err := parsePagination(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	query := r.URL.Query()
	mine := false
	if raw := strings.TrimSpace(query.Get("mine")); raw != "" {
		mine, err = strconv.ParseBool(raw)
		if err != nil {
			writeServiceError(w, r, h.logger, queryError("mine", "must be a boolean"))
			return
		}
	}

	result, err := h.movies.List(r.Context(), requesterID(r), services.MovieQuery{
		Page:     page,
		PageSize: pageSize,
		Status:   query.Get("status"),
		Search:   query.Get("search"),
		Mine:     mine,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func (h *MovieHandler) CreateMovie(w http.ResponseWriter, r *http.Request) {
	var req services.MovieInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	movie, err := h.movies.Create(r.Context(), requesterID(r), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusCreated, movie)
}

func (h *MovieHandler) GetMovie(w http.ResponseWriter, r *http.Request) {
	movie, err := h.movies.Get(r.Context(), chi.URLParam(r, "movieID"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, movie)
}

func (h *MovieHandler) UpdateMovie(w http.ResponseWriter, r *http.Request) {
	movieID := chi.URLParam(r, "movieID")
	if err := h.movies.Authorize(r.Context(), requesterID(r), movieID); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	var req services.MovieInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	movie, err := h.movies.Update(r.Context(), requesterID(r), movieID, req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, movie)
}

func (h *MovieHandler) DeleteMovie(w http.ResponseWriter, r *http.Request) {
	result, err := h.movies.Remove(r.Context(), requesterID(r), chi.URLParam(r, "movieID"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func (h *MovieHandler) ListImages(w http.ResponseWriter, r *http.Request) {
	images, err := h.uploads.ListImages(r.Context(), chi.URLParam(r, "movieID"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, images)
}

// Poster returns a signed download URL for the movie's primary image.
func (h *MovieHandler) Poster(w http.ResponseWriter, r *http.Request) {
	presigned, err := h.uploads.PrimaryImageURL(r.Context(), chi.URLParam(r, "movieID"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, presigned)
}
