package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/shaiso/Kadra/internal/domain"
)

const defaultModel = openai.GPT4oMini

// Config — конфигурация клиента AI-сервиса.
type Config struct {
	// APIKey — ключ OpenAI-совместимого API.
	APIKey string

	// BaseURL — адрес API (пустой — значение по умолчанию провайдера).
	BaseURL string

	// Model — имя модели.
	Model string

	// Temperature — температура сэмплирования. Для воспроизводимых
	// оценок держится низкой.
	Temperature float32
}

// Client — адаптер OpenAI-совместимого API комплишенов.
//
// Реализует контракт Completer стадии ai_evaluation: один промпт,
// один JSON-ответ. Ошибки транспорта и rate-limit помечаются как
// временные, прочие ошибки API — постоянные.
type Client struct {
	api   *openai.Client
	model string
	temp  float32
}

// New создаёт клиент из конфигурации.
func New(cfg Config) *Client {
	c := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	return &Client{
		api:   openai.NewClientWithConfig(c),
		model: model,
		temp:  cfg.Temperature,
	}
}

// Model возвращает имя используемой модели.
func (c *Client) Model() string { return c.model }

// Complete выполняет один запрос к модели и возвращает сырой ответ.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temp,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", classify(err)
	}

	if len(resp.Choices) == 0 {
		return "", domain.Malformed(fmt.Errorf("%w: response has no choices", ErrMalformed))
	}
	return resp.Choices[0].Message.Content, nil
}

// classify переводит ошибку API в таксономию конвейера.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429:
			// Провайдер не сообщает точное время сброса, даём
			// консервативную подсказку
			return domain.TransientAfter(fmt.Errorf("ai rate limited: %w", err), 10*time.Second)
		case apiErr.HTTPStatusCode >= 500:
			return domain.Transient(fmt.Errorf("ai server error: %w", err))
		default:
			return fmt.Errorf("ai request rejected: %w", err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return domain.Transient(fmt.Errorf("ai transport error: %w", err))
	}
	return fmt.Errorf("ai request failed: %w", err)
}
