// Package api exposes the report service over HTTP. Compare and check
// requests create a pending report and hand the run to a worker.Dispatcher;
// clients then poll the report until it completes or fails.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ABNmmd/PFE-FSA/internal/checker"
	"github.com/ABNmmd/PFE-FSA/internal/document"
	"github.com/ABNmmd/PFE-FSA/internal/report"
	"github.com/ABNmmd/PFE-FSA/internal/worker"
	apperrors "github.com/ABNmmd/PFE-FSA/pkg/errors"
	"github.com/ABNmmd/PFE-FSA/pkg/logger"
)

// DefaultMaxUploadBytes bounds multipart uploads when no limit is configured.
const DefaultMaxUploadBytes = 20 << 20

// Handler implements the report and document endpoints.
type Handler struct {
	docs       document.Store
	reports    report.Store
	checker    *checker.Checker
	dispatcher worker.Dispatcher
	maxUpload  int64
	logger     *slog.Logger
}

// New creates a Handler. maxUpload of zero or less means DefaultMaxUploadBytes.
func New(docs document.Store, reports report.Store, chk *checker.Checker, d worker.Dispatcher, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	return &Handler{
		docs:       docs,
		reports:    reports,
		checker:    chk,
		dispatcher: d,
		maxUpload:  maxUpload,
		logger:     logger.WithComponent("api"),
	}
}

// ownedDocument loads a document and checks that user owns it.
func (h *Handler) ownedDocument(ctx context.Context, user, id string) (*document.Document, error) {
	doc, err := h.docs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.UserID != user {
		return nil, apperrors.Newf(apperrors.ErrForbidden, http.StatusForbidden, "document %s belongs to another user", id)
	}
	return doc, nil
}

func (h *Handler) ownedReport(ctx context.Context, user, id string) (*report.Report, error) {
	rep, err := h.reports.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rep.UserID != user {
		return nil, apperrors.New(apperrors.ErrForbidden, http.StatusForbidden, "report belongs to another user")
	}
	return rep, nil
}

// dispatch hands job to the dispatcher. A refused job fails its report so
// clients polling it do not wait forever.
func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request, job checker.Job) bool {
	ctx := r.Context()
	if err := h.dispatcher.Dispatch(ctx, job); err != nil {
		logger.FromContext(ctx).Error("dispatch failed", "report_id", job.ReportID, "kind", job.Kind, "error", err)
		if ferr := h.reports.Fail(context.WithoutCancel(ctx), job.ReportID, "could not schedule run"); ferr != nil {
			logger.FromContext(ctx).Error("failing undispatched report", "report_id", job.ReportID, "error", ferr)
		}
		h.writeError(w, http.StatusServiceUnavailable, "background workers unavailable")
		return false
	}
	return true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid request body")
	}
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

// writeAppError maps err to its HTTP status. Internal failures are logged
// and reported without detail.
func (h *Handler) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
		h.writeError(w, status, http.StatusText(status))
		return
	}
	var appErr *apperrors.AppError
	if apperrors.As(err, &appErr) {
		h.writeError(w, status, appErr.Message)
		return
	}
	h.writeError(w, status, err.Error())
}
