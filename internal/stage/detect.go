package stage

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/shaiso/Kadra/internal/domain"
)

// Паттерны поиска идентификатора профиля в тексте резюме.
// Имя пользователя: до 39 символов, буквы/цифры/дефисы,
// не начинается и не заканчивается дефисом.
var (
	profileURLPattern     = regexp.MustCompile(`(?i)github\.com/([a-zA-Z0-9][a-zA-Z0-9-]{0,38})`)
	profileMentionPattern = regexp.MustCompile(`(?i)github[^\n]{0,40}?@([a-zA-Z0-9][a-zA-Z0-9-]{0,38})`)
)

// DetectExecutor — executor стадии profile_detection.
//
// Ищет в тексте резюме ссылку или упоминание профиля на code-hosting
// площадке. Отсутствие профиля — НЕ ошибка: стадия завершается успехом
// с пометкой "не найдено", а стадия загрузки профиля будет пропущена.
//
// Outputs:
//   - found (bool): найден ли идентификатор
//   - login (string): имя пользователя (пустое при found=false)
type DetectExecutor struct{}

// Stage возвращает имя стадии.
func (e *DetectExecutor) Stage() domain.Stage { return domain.StageDetect }

// Policy возвращает политику retry стадии.
//
// Стадия чисто вычислительная, retry ей не нужен.
func (e *DetectExecutor) Policy() domain.RetryPolicy {
	return domain.RetryPolicy{MaxAttempts: 1, Timeout: 5 * time.Second}
}

// Fingerprint строится по тексту резюме.
func (e *DetectExecutor) Fingerprint(ec *ExecContext) string {
	return Fingerprint(e.Stage(), map[string]any{
		"text": ec.OutputString(domain.StageParse, "text"),
	})
}

// Execute ищет идентификатор профиля в тексте резюме.
func (e *DetectExecutor) Execute(ctx context.Context, ec *ExecContext) (*Result, error) {
	text := ec.OutputString(domain.StageParse, "text")
	if text == "" {
		return nil, ErrNoResumeText
	}

	login := detectLogin(text)
	if login == "" {
		return &Result{
			Outcome: domain.OutcomeSuccess,
			Output:  map[string]any{"found": false, "login": ""},
			Detail:  "no profile identifier found in resume",
		}, nil
	}

	return &Result{
		Outcome: domain.OutcomeSuccess,
		Output:  map[string]any{"found": true, "login": login},
		Detail:  "detected profile " + login,
	}, nil
}

// detectLogin извлекает имя пользователя из текста.
//
// Сначала ищется прямая ссылка вида github.com/username, затем
// упоминание @username рядом со словом "github". Имена, совпадающие
// со служебными путями площадки, отбрасываются.
func detectLogin(text string) string {
	reserved := map[string]bool{
		"features": true, "topics": true, "about": true, "pricing": true,
		"marketplace": true, "sponsors": true, "settings": true,
		"notifications": true, "explore": true, "orgs": true,
	}

	candidates := make([]string, 0, 2)
	if m := profileURLPattern.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, m[1])
	}
	if m := profileMentionPattern.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, m[1])
	}

	for _, c := range candidates {
		c = strings.TrimRight(c, "-")
		if c == "" || reserved[strings.ToLower(c)] {
			continue
		}
		return c
	}
	return ""
}
