package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Kadra/internal/domain"
)

// Memory — in-memory реализация всех интерфейсов хранилища.
//
// Семантика идентична durable-реализации: compare-and-swap по версии,
// append-only журналы, уникальность оценок и message id. Каждое чтение
// возвращает копию записи — состояние хранилища не разделяется с вызывающим.
//
// Доступ к интерфейсам через аксессоры: Candidates(), Audit(), Evaluations(),
// Tokens(), Feedback(), Jobs().
type Memory struct {
	mu sync.RWMutex

	candidates  map[uuid.UUID]*domain.Candidate
	audit       map[uuid.UUID][]domain.AuditEntry
	evaluations map[uuid.UUID]*domain.Evaluation // candidateID → evaluation
	tokens      map[string]*domain.CorrelationToken
	feedback    map[uuid.UUID][]domain.StakeholderFeedback
	byMessageID map[string]uuid.UUID // messageID → candidateID
	jobs        map[uuid.UUID]*domain.JobDescription
}

// NewMemory создаёт пустое in-memory хранилище.
func NewMemory() *Memory {
	return &Memory{
		candidates:  make(map[uuid.UUID]*domain.Candidate),
		audit:       make(map[uuid.UUID][]domain.AuditEntry),
		evaluations: make(map[uuid.UUID]*domain.Evaluation),
		tokens:      make(map[string]*domain.CorrelationToken),
		feedback:    make(map[uuid.UUID][]domain.StakeholderFeedback),
		byMessageID: make(map[string]uuid.UUID),
		jobs:        make(map[uuid.UUID]*domain.JobDescription),
	}
}

// Представления над общим состоянием. Каждый тип — это тот же *Memory,
// ограниченный одним интерфейсом хранилища.
type (
	memCandidates  Memory
	memAudit       Memory
	memEvaluations Memory
	memTokens      Memory
	memFeedback    Memory
	memJobs        Memory
)

// Candidates возвращает хранилище кандидатов.
func (m *Memory) Candidates() Candidates { return (*memCandidates)(m) }

// Audit возвращает журнал попыток.
func (m *Memory) Audit() AuditLog { return (*memAudit)(m) }

// Evaluations возвращает хранилище оценок.
func (m *Memory) Evaluations() Evaluations { return (*memEvaluations)(m) }

// Tokens возвращает хранилище correlation-токенов.
func (m *Memory) Tokens() Tokens { return (*memTokens)(m) }

// Feedback возвращает хранилище feedback.
func (m *Memory) Feedback() Feedback { return (*memFeedback)(m) }

// Jobs возвращает хранилище вакансий.
func (m *Memory) Jobs() Jobs { return (*memJobs)(m) }

// --- Candidates ---

func (m *memCandidates) Create(ctx context.Context, c *domain.Candidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.candidates[c.ID]; exists {
		return fmt.Errorf("candidate %s: %w", c.ID, ErrAlreadyExists)
	}

	cp := *c
	m.candidates[c.ID] = &cp
	return nil
}

func (m *memCandidates) Get(ctx context.Context, id uuid.UUID) (*domain.Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.candidates[id]
	if !ok {
		return nil, fmt.Errorf("candidate %s: %w", id, ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (m *memCandidates) Update(ctx context.Context, c *domain.Candidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.candidates[c.ID]
	if !ok {
		return fmt.Errorf("candidate %s: %w", c.ID, ErrNotFound)
	}
	if stored.Version != c.Version {
		return fmt.Errorf("candidate %s: version %d != %d: %w",
			c.ID, c.Version, stored.Version, ErrConflict)
	}

	c.Version++
	cp := *c
	m.candidates[c.ID] = &cp
	return nil
}

func (m *memCandidates) AcquireLease(ctx context.Context, id uuid.UUID, owner string, ttl time.Duration) (*domain.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.candidates[id]
	if !ok {
		return nil, fmt.Errorf("candidate %s: %w", id, ErrNotFound)
	}

	now := time.Now()
	if c.IsLeased(now) {
		return nil, fmt.Errorf("candidate %s leased by %s: %w", id, *c.LeaseOwner, ErrConflict)
	}

	expires := now.Add(ttl)
	c.LeaseOwner = &owner
	c.LeaseExpiresAt = &expires
	c.WorkStatus = domain.WorkQueued
	c.Version++
	c.UpdatedAt = now

	cp := *c
	return &cp, nil
}

func (m *memCandidates) ReleaseLease(ctx context.Context, id uuid.UUID, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.candidates[id]
	if !ok {
		return fmt.Errorf("candidate %s: %w", id, ErrNotFound)
	}
	if c.LeaseOwner == nil {
		// Лиза уже снята терминальным переходом
		return nil
	}
	if *c.LeaseOwner != owner {
		return fmt.Errorf("candidate %s not leased by %s: %w", id, owner, ErrConflict)
	}

	c.LeaseOwner = nil
	c.LeaseExpiresAt = nil
	c.WorkStatus = domain.WorkIdle
	c.Version++
	c.UpdatedAt = time.Now()
	return nil
}

func (m *memCandidates) RequestCancel(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.candidates[id]
	if !ok {
		return fmt.Errorf("candidate %s: %w", id, ErrNotFound)
	}

	c.CancelRequested = true
	c.Version++
	c.UpdatedAt = time.Now()
	return nil
}

func (m *memCandidates) ListQueued(ctx context.Context, limit int) ([]domain.Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.Candidate
	for _, c := range m.candidates {
		if c.WorkStatus == domain.WorkQueued {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memCandidates) ListExpiredLeases(ctx context.Context, now time.Time, limit int) ([]domain.Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.Candidate
	for _, c := range m.candidates {
		if c.LeaseOwner != nil && c.LeaseExpiresAt != nil && now.After(*c.LeaseExpiresAt) {
			out = append(out, *c)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- AuditLog ---

func (m *memAudit) Append(ctx context.Context, e *domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.audit[e.CandidateID] = append(m.audit[e.CandidateID], *e)
	return nil
}

func (m *memAudit) History(ctx context.Context, candidateID uuid.UUID) ([]domain.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.audit[candidateID]
	out := make([]domain.AuditEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func (m *memAudit) LastSuccess(ctx context.Context, candidateID uuid.UUID, stage domain.Stage, fingerprint string) (*domain.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.audit[candidateID]
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.Stage == stage && e.Outcome == domain.OutcomeSuccess && e.Fingerprint == fingerprint {
			return &e, nil
		}
	}
	return nil, fmt.Errorf("audit entry for %s/%s: %w", candidateID, stage, ErrNotFound)
}

// --- Evaluations ---

func (m *memEvaluations) Create(ctx context.Context, e *domain.Evaluation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.evaluations[e.CandidateID]; exists {
		return fmt.Errorf("evaluation for candidate %s: %w", e.CandidateID, ErrAlreadyExists)
	}

	cp := *e
	m.evaluations[e.CandidateID] = &cp
	return nil
}

func (m *memEvaluations) GetByCandidate(ctx context.Context, candidateID uuid.UUID) (*domain.Evaluation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.evaluations[candidateID]
	if !ok {
		return nil, fmt.Errorf("evaluation for candidate %s: %w", candidateID, ErrNotFound)
	}
	cp := *e
	return &cp, nil
}

func (m *memEvaluations) MarkNotified(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.evaluations {
		if e.ID == id {
			if e.NotificationSent {
				return fmt.Errorf("evaluation %s already notified: %w", id, ErrConflict)
			}
			e.NotificationSent = true
			return nil
		}
	}
	return fmt.Errorf("evaluation %s: %w", id, ErrNotFound)
}

func (m *memEvaluations) SetReportRef(ctx context.Context, id uuid.UUID, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.evaluations {
		if e.ID == id {
			e.ReportRef = ref
			return nil
		}
	}
	return fmt.Errorf("evaluation %s: %w", id, ErrNotFound)
}

// --- Tokens ---

func (m *memTokens) Bind(ctx context.Context, t *domain.CorrelationToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tokens[t.Token]; exists {
		return fmt.Errorf("token %s: %w", t.Token, ErrAlreadyExists)
	}

	cp := *t
	m.tokens[t.Token] = &cp
	return nil
}

func (m *memTokens) Resolve(ctx context.Context, token string) (*domain.CorrelationToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tokens[token]
	if !ok {
		return nil, fmt.Errorf("token: %w", ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (m *memTokens) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int
	for token, t := range m.tokens {
		if t.Expired(now) {
			delete(m.tokens, token)
			n++
		}
	}
	return n, nil
}

// --- Feedback ---

func (m *memFeedback) Append(ctx context.Context, f *domain.StakeholderFeedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byMessageID[f.MessageID]; exists {
		return fmt.Errorf("feedback message %s: %w", f.MessageID, ErrAlreadyExists)
	}

	m.feedback[f.CandidateID] = append(m.feedback[f.CandidateID], *f)
	m.byMessageID[f.MessageID] = f.CandidateID
	return nil
}

func (m *memFeedback) GetByMessageID(ctx context.Context, messageID string) (*domain.StakeholderFeedback, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	candidateID, ok := m.byMessageID[messageID]
	if !ok {
		return nil, fmt.Errorf("feedback message %s: %w", messageID, ErrNotFound)
	}
	for _, f := range m.feedback[candidateID] {
		if f.MessageID == messageID {
			cp := f
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("feedback message %s: %w", messageID, ErrNotFound)
}

func (m *memFeedback) History(ctx context.Context, candidateID uuid.UUID) ([]domain.StakeholderFeedback, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := m.feedback[candidateID]
	out := make([]domain.StakeholderFeedback, len(records))
	copy(out, records)
	return out, nil
}

// --- Jobs ---

func (m *memJobs) Create(ctx context.Context, j *domain.JobDescription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[j.ID]; exists {
		return fmt.Errorf("job %s: %w", j.ID, ErrAlreadyExists)
	}

	cp := *j
	m.jobs[j.ID] = &cp
	return nil
}

func (m *memJobs) Get(ctx context.Context, id uuid.UUID) (*domain.JobDescription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	cp := *j
	return &cp, nil
}
