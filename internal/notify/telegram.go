// Package notify — доставка уведомлений заинтересованным лицам.
//
// Адаптер Telegram Bot API: одно сообщение в общий чат рекрутёров
// с вшитым correlation-токеном, по которому reconciler привяжет
// ответы к кандидату.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shaiso/Kadra/internal/domain"
)

const (
	defaultAPIURL  = "https://api.telegram.org"
	defaultTimeout = 15 * time.Second
)

// ErrSendRejected — провайдер отклонил сообщение.
var ErrSendRejected = errors.New("notification rejected by provider")

// Config — конфигурация Telegram-адаптера.
type Config struct {
	// APIURL — адрес Bot API.
	APIURL string

	// BotToken — токен бота.
	BotToken string

	// ChatID — идентификатор чата рекрутёров.
	ChatID string

	// Timeout — таймаут HTTP-запроса.
	Timeout time.Duration
}

// Telegram — отправитель уведомлений через Telegram Bot API.
type Telegram struct {
	apiURL string
	token  string
	chatID string
	http   *http.Client
}

// NewTelegram создаёт отправитель из конфигурации.
func NewTelegram(cfg Config) *Telegram {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Telegram{
		apiURL: apiURL,
		token:  cfg.BotToken,
		chatID: cfg.ChatID,
		http:   &http.Client{Timeout: timeout},
	}
}

type sendResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
	Parameters struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// Send доставляет сообщение и возвращает идентификатор доставки.
func (t *Telegram) Send(ctx context.Context, text, token string) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"chat_id": t.chatID,
		"text":    text,
	})
	if err != nil {
		return "", fmt.Errorf("encode notification: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(payload)))
	if err != nil {
		return "", fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return "", domain.Transient(fmt.Errorf("send notification: %w", err))
	}
	defer resp.Body.Close()

	var body sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", domain.Transient(fmt.Errorf("decode notification response: %w", err))
	}

	switch {
	case body.OK:
		return strconv.FormatInt(body.Result.MessageID, 10), nil

	case resp.StatusCode == http.StatusTooManyRequests:
		after := time.Duration(body.Parameters.RetryAfter) * time.Second
		return "", domain.TransientAfter(fmt.Errorf("notification rate limited: %s", body.Description), after)

	case resp.StatusCode >= 500:
		return "", domain.Transient(fmt.Errorf("notification provider error: %s", body.Description))

	default:
		return "", fmt.Errorf("%w: %s", ErrSendRejected, body.Description)
	}
}
