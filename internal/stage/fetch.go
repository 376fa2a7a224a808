package stage

import (
	"context"
	"time"

	"github.com/shaiso/Kadra/internal/domain"
)

// DegradationProfileUnavailable — причина деградации стадии profile_fetch.
const DegradationProfileUnavailable = "profile_unavailable"

// FetchExecutor — executor стадии profile_fetch.
//
// Загружает публичный профиль кандидата и метрики его репозиториев.
// Стадия деградируемая: если профиль не найден или площадка недоступна
// после исчерпания retry, конвейер продолжается без данных профиля.
// Rate-limit с известным временем сброса — временная ошибка с подсказкой
// retry-after.
//
// Outputs:
//   - skipped (bool): профиль не был обнаружен на предыдущей стадии
//   - profile (map): профиль, репозитории и метрики (при успехе)
type FetchExecutor struct {
	Profiles ProfileFetcher
}

// Stage возвращает имя стадии.
func (e *FetchExecutor) Stage() domain.Stage { return domain.StageFetch }

// Policy возвращает политику retry стадии.
func (e *FetchExecutor) Policy() domain.RetryPolicy {
	return domain.RetryPolicy{
		MaxAttempts:  4,
		Backoff:      "exponential",
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Timeout:      20 * time.Second,
	}
}

// Fingerprint строится по обнаруженному логину.
func (e *FetchExecutor) Fingerprint(ec *ExecContext) string {
	return Fingerprint(e.Stage(), map[string]any{
		"login": ec.OutputString(domain.StageDetect, "login"),
	})
}

// Execute загружает профиль, если он был обнаружен.
func (e *FetchExecutor) Execute(ctx context.Context, ec *ExecContext) (*Result, error) {
	if !ec.OutputBool(domain.StageDetect, "found") {
		return &Result{
			Outcome: domain.OutcomeSuccess,
			Output:  map[string]any{"skipped": true},
			Detail:  "no profile to fetch, stage skipped",
		}, nil
	}

	login := ec.OutputString(domain.StageDetect, "login")
	profile, err := e.Profiles.FetchProfile(ctx, login)
	if err != nil {
		// Классификацию (transient с retry-after, degradable, permanent)
		// выполняет адаптер площадки; здесь ошибка лишь пробрасывается.
		return nil, err
	}

	return &Result{
		Outcome: domain.OutcomeSuccess,
		Output:  map[string]any{"skipped": false, "profile": profile},
		Detail:  "fetched profile " + login,
	}, nil
}
