package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/shaiso/Kadra/internal/domain"
)

// CreateJob создаёт описание вакансии.
// POST /api/v1/jobs
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Title == "" || req.Description == "" {
		BadRequest(w, "title and description are required")
		return
	}
	if len(req.RequiredSkills) == 0 {
		BadRequest(w, "required_skills must not be empty")
		return
	}

	j := &domain.JobDescription{
		ID:               uuid.New(),
		Title:            req.Title,
		Description:      req.Description,
		RequiredSkills:   req.RequiredSkills,
		NiceToHaveSkills: req.NiceToHaveSkills,
		ExperienceYears:  req.ExperienceYears,
	}

	if err := h.jobs.Create(r.Context(), j); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Created(w, JobFromDomain(j))
}

// GetJob возвращает описание вакансии.
// GET /api/v1/jobs/{id}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid job id")
		return
	}

	j, err := h.jobs.Get(r.Context(), id)
	if HandleStoreError(w, h.logger, err, "job not found") {
		return
	}

	Success(w, JobFromDomain(j))
}
