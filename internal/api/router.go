package api

import (
	"net/http"
	"time"

	"github.com/ABNmmd/PFE-FSA/internal/ratelimit"
	"github.com/ABNmmd/PFE-FSA/pkg/health"
	"github.com/ABNmmd/PFE-FSA/pkg/metrics"
	"github.com/ABNmmd/PFE-FSA/pkg/middleware"
)

// RouterOptions carries the optional pieces of the HTTP stack.
type RouterOptions struct {
	Health  *health.Checker
	Limiter *ratelimit.Limiter
	Metrics *metrics.Metrics
	// Timeout bounds each request; zero disables it.
	Timeout time.Duration
}

// NewRouter builds the service handler.
//
// Route table:
//
//	POST   /api/v1/documents                   → upload a document
//	GET    /api/v1/documents                   → list documents
//	POST   /api/v1/reports/compare             → queue a comparison (throttled)
//	POST   /api/v1/reports/check               → queue a multi-source check (throttled)
//	GET    /api/v1/reports/check/status/{id}   → run progress
//	GET    /api/v1/reports/sources             → source catalogue
//	GET    /api/v1/reports/document/{docID}    → reports involving a document
//	GET    /api/v1/reports                     → paginated reports
//	GET    /api/v1/reports/{id}                → one report
//	DELETE /api/v1/reports/{id}                → delete a report
//	GET    /health/live, /health/ready         → probes
//
// Middleware chain (outermost first):
//
//	RequestID → CORS → AccessLog → Metrics → Timeout → Identity → mux
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	mux := http.NewServeMux()

	hc := opts.Health
	if hc == nil {
		hc = health.NewChecker()
	}
	mux.HandleFunc("GET /health/live", hc.LiveHandler())
	mux.HandleFunc("GET /health/ready", hc.ReadyHandler())

	mux.HandleFunc("POST /api/v1/documents", h.UploadDocument)
	mux.HandleFunc("GET /api/v1/documents", h.ListDocuments)

	throttle := Throttle(opts.Limiter)
	mux.Handle("POST /api/v1/reports/compare", throttle(http.HandlerFunc(h.CompareDocuments)))
	mux.Handle("POST /api/v1/reports/check", throttle(http.HandlerFunc(h.CheckDocument)))
	mux.HandleFunc("GET /api/v1/reports/check/status/{id}", h.CheckStatus)
	mux.HandleFunc("GET /api/v1/reports/sources", h.ListSources)
	mux.HandleFunc("GET /api/v1/reports/document/{docID}", h.DocumentReports)
	mux.HandleFunc("GET /api/v1/reports", h.ListReports)
	mux.HandleFunc("GET /api/v1/reports/{id}", h.GetReport)
	mux.HandleFunc("DELETE /api/v1/reports/{id}", h.DeleteReport)

	mws := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.CORS(middleware.DefaultCORSConfig()),
		middleware.AccessLog,
	}
	if opts.Metrics != nil {
		mws = append(mws, middleware.Metrics(opts.Metrics))
	}
	if opts.Timeout > 0 {
		mws = append(mws, middleware.Timeout(opts.Timeout))
	}
	mws = append(mws, Identity)
	return middleware.Chain(mux, mws...)
}
