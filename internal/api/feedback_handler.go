package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shaiso/Kadra/internal/domain"
	"github.com/shaiso/Kadra/internal/feedback"
)

// SubmitFeedback принимает inbound feedback от провайдера сообщений (webhook).
// POST /api/v1/feedback
//
// Повторная доставка того же message_id — no-op: возвращается ранее
// записанный feedback с кодом 200 вместо 201.
func (h *Handler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var req SubmitFeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Token == "" || req.MessageID == "" || req.StakeholderID == "" {
		BadRequest(w, "token, message_id and stakeholder_id are required")
		return
	}

	fb, created, err := h.reconciler.Submit(r.Context(), feedback.Submission{
		Token:           req.Token,
		MessageID:       req.MessageID,
		StakeholderID:   req.StakeholderID,
		StakeholderName: req.StakeholderName,
		StakeholderRole: req.StakeholderRole,
		Decision:        domain.Decision(req.Decision),
		Comment:         req.Comment,
	})
	if err != nil {
		switch {
		case errors.Is(err, feedback.ErrInvalidDecision):
			BadRequest(w, err.Error())
		case errors.Is(err, feedback.ErrUnknownToken):
			NotFound(w, "unknown correlation token")
		case errors.Is(err, feedback.ErrTokenExpired):
			Gone(w, "correlation token expired")
		default:
			InternalError(w, h.logger, err)
		}
		return
	}

	// Повторная доставка отдаёт ранее записанный feedback с кодом 200
	if !created {
		Success(w, FeedbackFromDomain(fb))
		return
	}
	Created(w, FeedbackFromDomain(fb))
}

// GetCandidateFeedback возвращает историю feedback по кандидату.
// GET /api/v1/candidates/{id}/feedback
func (h *Handler) GetCandidateFeedback(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadCandidate(w, r)
	if !ok {
		return
	}

	records, err := h.reconciler.History(r.Context(), c.ID)
	if HandleStoreError(w, h.logger, err, "") {
		return
	}

	result := make([]FeedbackResponse, len(records))
	for i := range records {
		result[i] = FeedbackFromDomain(&records[i])
	}

	List(w, result, len(result))
}

// GetFeedbackAggregate возвращает итоговое решение по кандидату.
// GET /api/v1/candidates/{id}/feedback/aggregate?policy=most_recent
func (h *Handler) GetFeedbackAggregate(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadCandidate(w, r)
	if !ok {
		return
	}

	policy := feedback.Policy(r.URL.Query().Get("policy"))

	result, err := h.reconciler.Aggregate(r.Context(), c.ID, policy)
	if err != nil {
		switch {
		case errors.Is(err, feedback.ErrUnknownPolicy):
			BadRequest(w, err.Error())
		case errors.Is(err, feedback.ErrNoDecisions):
			NotFound(w, "no decisions recorded for candidate")
		default:
			InternalError(w, h.logger, err)
		}
		return
	}

	Success(w, result)
}
