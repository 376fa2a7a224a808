package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// JobResponse — вакансия из API.
type JobResponse struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	RequiredSkills   []string `json:"required_skills"`
	NiceToHaveSkills []string `json:"nice_to_have_skills,omitempty"`
	ExperienceYears  int      `json:"experience_years"`
}

// CandidateResponse — кандидат из API.
type CandidateResponse struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	JobID           string `json:"job_id"`
	ResumeRef       string `json:"resume_ref"`
	State           string `json:"state"`
	Stage           string `json:"stage,omitempty"`
	Attempt         int    `json:"attempt,omitempty"`
	WorkStatus      string `json:"work_status"`
	CancelRequested bool   `json:"cancel_requested,omitempty"`
	Error           string `json:"error,omitempty"`
	SubmittedAt     string `json:"submitted_at"`
	UpdatedAt       string `json:"updated_at"`
}

// AuditEntryResponse — запись журнала попыток из API.
type AuditEntryResponse struct {
	ID         string         `json:"id"`
	Stage      string         `json:"stage"`
	Attempt    int            `json:"attempt"`
	Outcome    string         `json:"outcome"`
	StartedAt  string         `json:"started_at"`
	FinishedAt string         `json:"finished_at"`
	DurationMS int64          `json:"duration_ms"`
	Error      string         `json:"error,omitempty"`
	Output     map[string]any `json:"output,omitempty"`
	Detail     string         `json:"detail,omitempty"`
}

// EvaluationResponse — AI-оценка из API.
type EvaluationResponse struct {
	ID               string         `json:"id"`
	CandidateID      string         `json:"candidate_id"`
	OverallScore     int            `json:"overall_score"`
	Recommendation   string         `json:"recommendation"`
	Analysis         map[string]any `json:"analysis,omitempty"`
	Degradations     []string       `json:"degradations,omitempty"`
	NotificationSent bool           `json:"notification_sent"`
	ReportRef        string         `json:"report_ref,omitempty"`
	Model            string         `json:"model,omitempty"`
	CreatedAt        string         `json:"created_at"`
}

// FeedbackResponse — запись feedback из API.
type FeedbackResponse struct {
	ID              string `json:"id"`
	CandidateID     string `json:"candidate_id"`
	StakeholderID   string `json:"stakeholder_id"`
	StakeholderName string `json:"stakeholder_name,omitempty"`
	StakeholderRole string `json:"stakeholder_role,omitempty"`
	Decision        string `json:"decision"`
	Comment         string `json:"comment,omitempty"`
	ReceivedAt      string `json:"received_at"`
	PostCompletion  bool   `json:"post_completion,omitempty"`
	Conflicting     bool   `json:"conflicting,omitempty"`
}

// AggregateResponse — итоговое решение из API.
type AggregateResponse struct {
	Decision    string           `json:"decision"`
	Policy      string           `json:"policy"`
	Decisive    FeedbackResponse `json:"decisive"`
	Total       int              `json:"total"`
	Conflicting bool             `json:"conflicting"`
}

// UploadResponse — результат загрузки резюме.
type UploadResponse struct {
	ResumeRef string `json:"resume_ref"`
	Filename  string `json:"filename"`
	Bytes     int    `json:"bytes"`
}

// --- Request types ---

// CreateJobRequest — создание вакансии.
type CreateJobRequest struct {
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	RequiredSkills   []string `json:"required_skills"`
	NiceToHaveSkills []string `json:"nice_to_have_skills,omitempty"`
	ExperienceYears  int      `json:"experience_years"`
}

// SubmitCandidateRequest — подача резюме.
type SubmitCandidateRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	JobID     string `json:"job_id"`
	ResumeRef string `json:"resume_ref"`
}

// SubmitFeedbackRequest — отправка feedback.
type SubmitFeedbackRequest struct {
	Token           string `json:"token"`
	MessageID       string `json:"message_id"`
	StakeholderID   string `json:"stakeholder_id"`
	StakeholderName string `json:"stakeholder_name,omitempty"`
	StakeholderRole string `json:"stakeholder_role,omitempty"`
	Decision        string `json:"decision"`
	Comment         string `json:"comment,omitempty"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Kadra API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Jobs ---

// CreateJob создаёт вакансию.
func (c *Client) CreateJob(req CreateJobRequest) (*JobResponse, error) {
	var job JobResponse
	err := c.post("/api/v1/jobs", req, &job)
	return &job, err
}

// GetJob возвращает вакансию по ID.
func (c *Client) GetJob(id string) (*JobResponse, error) {
	var job JobResponse
	err := c.get("/api/v1/jobs/"+id, &job)
	return &job, err
}

// --- Candidates ---

// UploadResume загружает файл резюме и возвращает ссылку на него.
func (c *Client) UploadResume(path string) (*UploadResponse, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read resume: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/v1/resumes", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return nil, err
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	var upload UploadResponse
	err = json.Unmarshal(dr.Data, &upload)
	return &upload, err
}

// SubmitCandidate подаёт резюме в обработку.
func (c *Client) SubmitCandidate(req SubmitCandidateRequest) (*CandidateResponse, error) {
	var cand CandidateResponse
	err := c.post("/api/v1/candidates", req, &cand)
	return &cand, err
}

// GetCandidate возвращает состояние кандидата.
func (c *Client) GetCandidate(id string) (*CandidateResponse, error) {
	var cand CandidateResponse
	err := c.get("/api/v1/candidates/"+id, &cand)
	return &cand, err
}

// ReprocessCandidate запускает повторную обработку.
func (c *Client) ReprocessCandidate(id string, force bool) (*CandidateResponse, error) {
	body := map[string]bool{"force": force}
	var cand CandidateResponse
	err := c.post("/api/v1/candidates/"+id+"/reprocess", body, &cand)
	return &cand, err
}

// AbortCandidate запрашивает отмену обработки.
func (c *Client) AbortCandidate(id string) (*CandidateResponse, error) {
	var cand CandidateResponse
	err := c.post("/api/v1/candidates/"+id+"/abort", nil, &cand)
	return &cand, err
}

// GetAudit возвращает журнал попыток по кандидату.
func (c *Client) GetAudit(candidateID string) ([]AuditEntryResponse, error) {
	var entries []AuditEntryResponse
	err := c.list("/api/v1/candidates/"+candidateID+"/audit", nil, &entries)
	return entries, err
}

// GetEvaluation возвращает AI-оценку кандидата.
func (c *Client) GetEvaluation(candidateID string) (*EvaluationResponse, error) {
	var ev EvaluationResponse
	err := c.get("/api/v1/candidates/"+candidateID+"/evaluation", &ev)
	return &ev, err
}

// --- Feedback ---

// SubmitFeedback отправляет feedback от заинтересованного лица.
func (c *Client) SubmitFeedback(req SubmitFeedbackRequest) (*FeedbackResponse, error) {
	var fb FeedbackResponse
	err := c.post("/api/v1/feedback", req, &fb)
	return &fb, err
}

// GetFeedback возвращает историю feedback по кандидату.
func (c *Client) GetFeedback(candidateID string) ([]FeedbackResponse, error) {
	var records []FeedbackResponse
	err := c.list("/api/v1/candidates/"+candidateID+"/feedback", nil, &records)
	return records, err
}

// GetAggregate возвращает итоговое решение по кандидату.
func (c *Client) GetAggregate(candidateID, policy string) (*AggregateResponse, error) {
	path := "/api/v1/candidates/" + candidateID + "/feedback/aggregate"
	if policy != "" {
		path += "?policy=" + url.QueryEscape(policy)
	}

	var agg AggregateResponse
	err := c.get(path, &agg)
	return &agg, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
