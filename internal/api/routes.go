package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Jobs
	mux.Handle("POST /api/v1/jobs", chain(http.HandlerFunc(h.CreateJob)))
	mux.Handle("GET /api/v1/jobs/{id}", chain(http.HandlerFunc(h.GetJob)))

	// Resumes
	mux.Handle("POST /api/v1/resumes", chain(http.HandlerFunc(h.UploadResume)))

	// Candidates
	mux.Handle("POST /api/v1/candidates", chain(http.HandlerFunc(h.SubmitCandidate)))
	mux.Handle("GET /api/v1/candidates/{id}", chain(http.HandlerFunc(h.GetCandidate)))
	mux.Handle("POST /api/v1/candidates/{id}/reprocess", chain(http.HandlerFunc(h.ReprocessCandidate)))
	mux.Handle("POST /api/v1/candidates/{id}/abort", chain(http.HandlerFunc(h.AbortCandidate)))
	mux.Handle("GET /api/v1/candidates/{id}/audit", chain(http.HandlerFunc(h.GetCandidateAudit)))
	mux.Handle("GET /api/v1/candidates/{id}/evaluation", chain(http.HandlerFunc(h.GetCandidateEvaluation)))

	// Feedback
	mux.Handle("POST /api/v1/feedback", chain(http.HandlerFunc(h.SubmitFeedback)))
	mux.Handle("GET /api/v1/candidates/{id}/feedback", chain(http.HandlerFunc(h.GetCandidateFeedback)))
	mux.Handle("GET /api/v1/candidates/{id}/feedback/aggregate", chain(http.HandlerFunc(h.GetFeedbackAggregate)))
}
