package api

import (
	"net/http"
	"strconv"

	"github.com/ABNmmd/PFE-FSA/internal/checker"
	"github.com/ABNmmd/PFE-FSA/internal/compare"
	"github.com/ABNmmd/PFE-FSA/internal/report"
	"github.com/ABNmmd/PFE-FSA/internal/similarity"
	"github.com/ABNmmd/PFE-FSA/internal/sources"
	"github.com/ABNmmd/PFE-FSA/pkg/logger"
)

type compareRequest struct {
	Document1ID string `json:"document1_id"`
	Document2ID string `json:"document2_id"`
	Method      string `json:"method,omitempty"`
}

type checkRequest struct {
	DocumentID  string   `json:"document_id"`
	Sources     []string `json:"sources,omitempty"`
	Sensitivity string   `json:"sensitivity,omitempty"`
	Method      string   `json:"method,omitempty"`
}

type submitResponse struct {
	ReportID string        `json:"report_id"`
	Status   report.Status `json:"status"`
	Sources  []string      `json:"sources,omitempty"`
}

type statusResponse struct {
	ReportID        string                    `json:"report_id"`
	Status          report.Status             `json:"status"`
	Progress        float64                   `json:"progress"`
	SimilarityScore float64                   `json:"similarity_score"`
	SourcesChecked  []string                  `json:"sources_checked"`
	SourceResults   map[string]sources.Result `json:"source_results"`
	Error           string                    `json:"error,omitempty"`
}

type listResponse struct {
	Reports []*report.Report `json:"reports"`
	Total   int              `json:"total"`
	Page    int              `json:"page"`
	PerPage int              `json:"per_page"`
	Pages   int              `json:"pages"`
}

// method resolves a requested detection method to the comparator that will
// actually serve it.
func (h *Handler) method(requested string) (string, bool) {
	switch requested {
	case "", similarity.MethodTFIDF, similarity.MethodEmbeddings:
		return h.checker.Comparator(requested).Method(), true
	default:
		return "", false
	}
}

// CompareDocuments queues a two-document comparison.
func (h *Handler) CompareDocuments(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	if req.Document1ID == "" || req.Document2ID == "" {
		h.writeError(w, http.StatusBadRequest, "document1_id and document2_id are required")
		return
	}
	if req.Document1ID == req.Document2ID {
		h.writeError(w, http.StatusBadRequest, "cannot compare a document with itself")
		return
	}
	method, ok := h.method(req.Method)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "method must be tfidf or embeddings")
		return
	}

	ctx := r.Context()
	user := UserID(ctx)
	doc1, err := h.ownedDocument(ctx, user, req.Document1ID)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	doc2, err := h.ownedDocument(ctx, user, req.Document2ID)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	rep := report.NewComparison(user, doc1.Ref(), doc2.Ref(), method)
	if err := h.reports.Create(ctx, rep); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	job := checker.Job{
		Kind:        checker.KindComparison,
		ReportID:    rep.ID,
		UserID:      user,
		DocumentID:  doc1.ID,
		Document2ID: doc2.ID,
		Method:      method,
		RequestID:   logger.RequestID(ctx),
	}
	if !h.dispatch(w, r, job) {
		return
	}
	logger.FromContext(ctx).Info("comparison queued", "report_id", rep.ID, "method", method)
	h.writeJSON(w, http.StatusAccepted, submitResponse{ReportID: rep.ID, Status: rep.Status})
}

// CheckDocument queues a multi-source check. Unknown source names are
// dropped; an empty selection means the default sources.
func (h *Handler) CheckDocument(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	if req.DocumentID == "" {
		h.writeError(w, http.StatusBadRequest, "document_id is required")
		return
	}
	switch req.Sensitivity {
	case "", compare.SensitivityLow, compare.SensitivityMedium, compare.SensitivityHigh:
	default:
		h.writeError(w, http.StatusBadRequest, "sensitivity must be low, medium or high")
		return
	}
	method, ok := h.method(req.Method)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "method must be tfidf or embeddings")
		return
	}

	ctx := r.Context()
	user := UserID(ctx)
	doc, err := h.ownedDocument(ctx, user, req.DocumentID)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	opts := report.CheckOptions{Sources: req.Sources, Sensitivity: req.Sensitivity}
	if req.Sensitivity != "" {
		opts.Threshold = compare.SensitivityThreshold(req.Sensitivity)
	}
	rep := report.NewCheck(user, doc.Ref(), method, opts)
	if err := h.reports.Create(ctx, rep); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	job := checker.Job{
		Kind:       checker.KindCheck,
		ReportID:   rep.ID,
		UserID:     user,
		DocumentID: doc.ID,
		Method:     method,
		Threshold:  rep.CheckOptions.Threshold,
		Sources:    rep.CheckOptions.Sources,
		RequestID:  logger.RequestID(ctx),
	}
	if !h.dispatch(w, r, job) {
		return
	}
	logger.FromContext(ctx).Info("check queued",
		"report_id", rep.ID,
		"sources", rep.CheckOptions.Sources,
		"sensitivity", req.Sensitivity,
	)
	h.writeJSON(w, http.StatusAccepted, submitResponse{
		ReportID: rep.ID,
		Status:   rep.Status,
		Sources:  rep.CheckOptions.Sources,
	})
}

// CheckStatus reports a run's progress and the per-source results so far.
func (h *Handler) CheckStatus(w http.ResponseWriter, r *http.Request) {
	rep, err := h.ownedReport(r.Context(), UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, statusResponse{
		ReportID:        rep.ID,
		Status:          rep.Status,
		Progress:        rep.Progress,
		SimilarityScore: rep.SimilarityScore,
		SourcesChecked:  rep.SourcesChecked,
		SourceResults:   rep.SourceResults,
		Error:           rep.Error,
	})
}

// ListReports returns the caller's reports, newest first.
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 {
		perPage = report.DefaultPerPage
	}
	perPage = min(perPage, report.MaxPerPage)

	ctx := r.Context()
	user := UserID(ctx)
	total, err := h.reports.CountByUser(ctx, user)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	list, err := h.reports.ListByUser(ctx, user, page, perPage)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, listResponse{
		Reports: list,
		Total:   total,
		Page:    page,
		PerPage: perPage,
		Pages:   (total + perPage - 1) / perPage,
	})
}

// GetReport returns one report in full.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.ownedReport(r.Context(), UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rep)
}

// DeleteReport removes a report. A run still in flight stops at its next
// report update.
func (h *Handler) DeleteReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rep, err := h.ownedReport(ctx, UserID(ctx), r.PathValue("id"))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	if err := h.reports.Delete(ctx, rep.ID); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	logger.FromContext(ctx).Info("report deleted", "report_id", rep.ID)
	w.WriteHeader(http.StatusNoContent)
}

// DocumentReports lists the caller's reports involving a document.
func (h *Handler) DocumentReports(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := UserID(ctx)
	doc, err := h.ownedDocument(ctx, user, r.PathValue("docID"))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	list, err := h.reports.ListByDocument(ctx, user, doc.ID)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"document": doc.Ref(),
		"reports":  list,
		"total":    len(list),
	})
}

// ListSources describes the source categories and whether each is enabled.
func (h *Handler) ListSources(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"sources":  h.checker.Sources(),
		"defaults": sources.DefaultSources,
	})
}
