package api

import (
	"errors"
	"io"
	"net/http"
	"slices"

	"github.com/ABNmmd/PFE-FSA/internal/document"
	"github.com/ABNmmd/PFE-FSA/internal/extract"
	"github.com/ABNmmd/PFE-FSA/pkg/logger"
)

type uploadResponse struct {
	*document.Document
	// Extractable is false for formats that will be compared as a
	// placeholder diagnostic rather than their text.
	Extractable bool `json:"extractable"`
}

// UploadDocument stores the "file" part of a multipart upload.
func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > h.maxUpload {
		h.writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		h.writeError(w, http.StatusBadRequest, "expected multipart/form-data with a file field")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "could not read upload")
		return
	}
	if len(content) == 0 {
		h.writeError(w, http.StatusBadRequest, "file is empty")
		return
	}

	ctx := r.Context()
	doc := document.New(UserID(ctx), header.Filename, content)
	if err := h.docs.Create(ctx, doc); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	logger.FromContext(ctx).Info("document uploaded",
		"document_id", doc.ID,
		"file_type", doc.FileType,
		"size", doc.Size,
	)
	h.writeJSON(w, http.StatusCreated, uploadResponse{
		Document:    doc,
		Extractable: slices.Contains(extract.Supported, doc.FileType),
	})
}

// ListDocuments returns the caller's documents without their content.
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.docs.ListByOwner(r.Context(), UserID(r.Context()))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
		"total":     len(docs),
	})
}
