package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Kadra/internal/domain"
	"github.com/shaiso/Kadra/internal/store"
)

// Максимальный размер загружаемого резюме.
const maxResumeSize = 10 << 20 // 10 MiB

// SubmitCandidate подаёт резюме в обработку.
// POST /api/v1/candidates
func (h *Handler) SubmitCandidate(w http.ResponseWriter, r *http.Request) {
	var req SubmitCandidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Name == "" || req.Email == "" || req.ResumeRef == "" {
		BadRequest(w, "name, email and resume_ref are required")
		return
	}
	if req.JobID == uuid.Nil {
		BadRequest(w, "job_id is required")
		return
	}

	// Вакансия должна существовать до постановки в очередь
	if _, err := h.jobs.Get(r.Context(), req.JobID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			BadRequest(w, "unknown job_id")
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	c := domain.NewCandidate(req.Name, req.Email, req.JobID, req.ResumeRef)
	c.WorkStatus = domain.WorkQueued

	if err := h.candidates.Create(r.Context(), c); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	h.publishSubmitted(r, c.ID, false)

	Created(w, CandidateFromDomain(c))
}

// UploadResume принимает документ резюме и кладёт его в хранилище.
// POST /api/v1/resumes (multipart/form-data, поле "file")
func (h *Handler) UploadResume(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxResumeSize); err != nil {
		BadRequest(w, "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		BadRequest(w, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxResumeSize))
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}
	if len(data) == 0 {
		BadRequest(w, "empty file")
		return
	}

	ref, err := h.documents.Put(r.Context(), header.Filename, data)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Created(w, map[string]any{
		"resume_ref": ref,
		"filename":   header.Filename,
		"bytes":      len(data),
	})
}

// GetCandidate возвращает текущее состояние кандидата.
// GET /api/v1/candidates/{id}
func (h *Handler) GetCandidate(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadCandidate(w, r)
	if !ok {
		return
	}

	Success(w, CandidateFromDomain(c))
}

// ReprocessCandidate запускает повторную обработку провалившегося кандидата.
// POST /api/v1/candidates/{id}/reprocess
func (h *Handler) ReprocessCandidate(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadCandidate(w, r)
	if !ok {
		return
	}

	var req ReprocessRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			BadRequest(w, "invalid request body")
			return
		}
	}

	if c.IsLeased(time.Now().UTC()) {
		Conflict(w, "candidate is currently being processed")
		return
	}

	if !c.ResetForReprocess() {
		InvalidState(w, "reprocess is only allowed from the FAILED state")
		return
	}
	c.WorkStatus = domain.WorkQueued

	if err := h.candidates.Update(r.Context(), c); err != nil {
		if HandleStoreError(w, h.logger, err, "candidate not found") {
			return
		}
	}

	h.publishSubmitted(r, c.ID, req.Force)

	Accepted(w, CandidateFromDomain(c))
}

// AbortCandidate запрашивает отмену обработки.
// POST /api/v1/candidates/{id}/abort
//
// Если воркер сейчас владеет кандидатом, текущая попытка стадии доработает,
// после чего конвейер завершит кандидата как FAILED. Если кандидат в очереди
// и никем не обрабатывается, он переводится в FAILED сразу.
func (h *Handler) AbortCandidate(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadCandidate(w, r)
	if !ok {
		return
	}

	if c.State.IsTerminal() {
		InvalidState(w, "candidate is already in a terminal state")
		return
	}

	if err := h.candidates.RequestCancel(r.Context(), c.ID); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	// Никто не владеет кандидатом — завершаем немедленно
	if !c.IsLeased(time.Now().UTC()) && c.WorkStatus != domain.WorkProcessing {
		fresh, err := h.candidates.Get(r.Context(), c.ID)
		if err == nil && fresh.MarkFailed("processing aborted by operator") {
			if err := h.candidates.Update(r.Context(), fresh); err != nil && !errors.Is(err, store.ErrConflict) {
				InternalError(w, h.logger, err)
				return
			}
			Success(w, CandidateFromDomain(fresh))
			return
		}
	}

	c.CancelRequested = true
	Accepted(w, CandidateFromDomain(c))
}

// GetCandidateAudit возвращает журнал попыток по кандидату.
// GET /api/v1/candidates/{id}/audit
func (h *Handler) GetCandidateAudit(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadCandidate(w, r)
	if !ok {
		return
	}

	entries, err := h.audit.History(r.Context(), c.ID)
	if HandleStoreError(w, h.logger, err, "") {
		return
	}

	result := make([]AuditEntryResponse, len(entries))
	for i, e := range entries {
		result[i] = AuditEntryFromDomain(e)
	}

	List(w, result, len(result))
}

// GetCandidateEvaluation возвращает AI-оценку кандидата.
// GET /api/v1/candidates/{id}/evaluation
func (h *Handler) GetCandidateEvaluation(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadCandidate(w, r)
	if !ok {
		return
	}

	ev, err := h.evaluations.GetByCandidate(r.Context(), c.ID)
	if HandleStoreError(w, h.logger, err, "candidate has no evaluation yet") {
		return
	}

	Success(w, EvaluationFromDomain(ev))
}

// loadCandidate парсит {id} и загружает кандидата, отвечая за ошибки.
func (h *Handler) loadCandidate(w http.ResponseWriter, r *http.Request) (*domain.Candidate, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid candidate id")
		return nil, false
	}

	c, err := h.candidates.Get(r.Context(), id)
	if HandleStoreError(w, h.logger, err, "candidate not found") {
		return nil, false
	}
	return c, true
}

// publishSubmitted публикует событие о кандидате; без MQ его подхватит polling.
func (h *Handler) publishSubmitted(r *http.Request, id uuid.UUID, force bool) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.PublishCandidateSubmitted(r.Context(), id, force); err != nil {
		h.logger.Warn("failed to publish candidate.submitted", "candidate_id", id, "error", err)
	}
}
