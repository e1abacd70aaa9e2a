package handlers

import (
	"net/http"

	"github.com/cinevault/apiserver/internal/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// StorageHandler exposes the presigned upload flow.
type StorageHandler struct {
	uploads *services.UploadService
	logger  *zap.Logger
}

func NewStorageHandler(uploads *services.UploadService, logger *zap.Logger) *StorageHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StorageHandler{uploads: uploads, logger: logger}
}

// StorageRouter registers storage routes. Every route requires authMiddleware.
func StorageRouter(r chi.Router, handler *StorageHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware)

	r.Post("/presign-upload", handler.PresignUpload)
	r.Post("/presign-download", handler.PresignDownload)
	r.Post("/movies/{movieID}/images/confirm", handler.ConfirmImage)
}

func (h *StorageHandler) PresignUpload(w http.ResponseWriter, r *http.Request) {
	var req services.PresignUploadInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	presigned, err := h.uploads.PresignUpload(r.Context(), requesterID(r), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, presigned)
}

func (h *StorageHandler) PresignDownload(w http.ResponseWriter, r *http.Request) {
	var req services.PresignDownloadInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	presigned, err := h.uploads.PresignDownload(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, presigned)
}

// ConfirmImage records an uploaded object as an image of the movie.
func (h *StorageHandler) ConfirmImage(w http.ResponseWriter, r *http.Request) {
	movieID := chi.URLParam(r, "movieID")
	if err := h.uploads.Authorize(r.Context(), requesterID(r), movieID); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	var req services.ConfirmImageInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	image, err := h.uploads.Confirm(r.Context(), requesterID(r), movieID, req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusCreated, image)
}
