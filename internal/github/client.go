// Package github — клиент публичного API code-hosting площадки.
//
// Загружает профиль кандидата, его репозитории и считает сводные метрики.
// Недоступность профиля — деградируемая ошибка: скрининг продолжается
// без данных профиля. Rate-limit с известным временем сброса превращается
// во временную ошибку с подсказкой retry-after.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/shaiso/Kadra/internal/domain"
	"github.com/shaiso/Kadra/internal/stage"
)

const (
	defaultBaseURL = "https://api.github.com"
	defaultTimeout = 15 * time.Second

	// maxRepos — сколько репозиториев запрашивается для метрик.
	maxRepos = 100

	// activeWindow — окно, в котором push считается признаком
	// активного репозитория.
	activeWindow = 365 * 24 * time.Hour
)

// ErrProfileUnavailable — профиль не найден или площадка недоступна.
var ErrProfileUnavailable = errors.New("profile unavailable")

// Config — конфигурация клиента площадки.
type Config struct {
	// BaseURL — адрес API.
	BaseURL string

	// Token — токен доступа (пустой — анонимные запросы).
	Token string

	// Timeout — таймаут HTTP-запроса.
	Timeout time.Duration
}

// Client — HTTP-клиент площадки.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New создаёт клиент из конфигурации.
func New(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
	}
}

type userResponse struct {
	Login       string `json:"login"`
	Name        string `json:"name"`
	Bio         string `json:"bio"`
	Company     string `json:"company"`
	PublicRepos int    `json:"public_repos"`
	Followers   int    `json:"followers"`
	CreatedAt   string `json:"created_at"`
}

type repoResponse struct {
	Name     string `json:"name"`
	Language string `json:"language"`
	Stars    int    `json:"stargazers_count"`
	Forks    int    `json:"forks_count"`
	Fork     bool   `json:"fork"`
	PushedAt string `json:"pushed_at"`
}

// FetchProfile загружает профиль и метрики репозиториев.
func (c *Client) FetchProfile(ctx context.Context, login string) (map[string]any, error) {
	var user userResponse
	if err := c.get(ctx, "/users/"+login, &user); err != nil {
		return nil, err
	}

	var repos []repoResponse
	path := fmt.Sprintf("/users/%s/repos?per_page=%d&sort=pushed", login, maxRepos)
	if err := c.get(ctx, path, &repos); err != nil {
		return nil, err
	}

	return map[string]any{
		"login":        user.Login,
		"name":         user.Name,
		"bio":          user.Bio,
		"company":      user.Company,
		"public_repos": user.PublicRepos,
		"followers":    user.Followers,
		"created_at":   user.CreatedAt,
		"metrics":      computeMetrics(repos),
	}, nil
}

// get выполняет GET-запрос и классифицирует ошибки в таксономию конвейера.
func (c *Client) get(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Transient(fmt.Errorf("request %s: %w", path, err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return domain.Transient(fmt.Errorf("decode response %s: %w", path, err))
		}
		return nil

	case resp.StatusCode == http.StatusNotFound:
		return domain.Degraded(stage.DegradationProfileUnavailable,
			fmt.Errorf("%w: %s not found", ErrProfileUnavailable, path))

	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		if after, ok := rateLimitReset(resp); ok {
			return domain.TransientAfter(fmt.Errorf("rate limited on %s", path), after)
		}
		return domain.Transient(fmt.Errorf("rate limited on %s", path))

	case resp.StatusCode >= 500:
		return domain.Transient(fmt.Errorf("server error %d on %s", resp.StatusCode, path))

	default:
		return domain.Degraded(stage.DegradationProfileUnavailable,
			fmt.Errorf("%w: unexpected status %d on %s", ErrProfileUnavailable, resp.StatusCode, path))
	}
}

// rateLimitReset извлекает время сброса rate-limit из заголовков ответа.
func rateLimitReset(resp *http.Response) (time.Duration, bool) {
	raw := resp.Header.Get("X-RateLimit-Reset")
	if raw == "" {
		return 0, false
	}
	reset, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	after := time.Until(time.Unix(reset, 0))
	if after <= 0 {
		return 0, false
	}
	return after, true
}

// computeMetrics считает сводные метрики по репозиториям:
// топ языков, суммарные звёзды, количество активных репозиториев.
func computeMetrics(repos []repoResponse) map[string]any {
	languages := make(map[string]int)
	totalStars := 0
	active := 0
	original := 0

	cutoff := time.Now().Add(-activeWindow)
	for _, r := range repos {
		if r.Fork {
			continue
		}
		original++
		totalStars += r.Stars
		if r.Language != "" {
			languages[r.Language]++
		}
		if pushed, err := time.Parse(time.RFC3339, r.PushedAt); err == nil && pushed.After(cutoff) {
			active++
		}
	}

	type langCount struct {
		name  string
		count int
	}
	top := make([]langCount, 0, len(languages))
	for name, count := range languages {
		top = append(top, langCount{name, count})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].count != top[j].count {
			return top[i].count > top[j].count
		}
		return top[i].name < top[j].name
	})
	if len(top) > 5 {
		top = top[:5]
	}
	topNames := make([]string, len(top))
	for i, l := range top {
		topNames[i] = l.name
	}

	return map[string]any{
		"original_repos": original,
		"total_stars":    totalStars,
		"active_repos":   active,
		"top_languages":  topNames,
	}
}
