package feedback

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/shaiso/Kadra/internal/domain"
)

// Policy — презентационная политика агрегации противоречивых решений.
//
// Агрегация никогда не мутирует историю: это вычисление поверх полного
// append-only набора записей.
type Policy string

const (
	// PolicyMostRecent — побеждает последнее по времени решение.
	PolicyMostRecent Policy = "most_recent"

	// PolicyRolePrecedence — побеждает решение старшей роли;
	// внутри роли — последнее по времени.
	PolicyRolePrecedence Policy = "role_precedence"

	// PolicyMajority — побеждает решение большинства;
	// при равенстве — последнее по времени.
	PolicyMajority Policy = "majority"
)

// ErrUnknownPolicy — неизвестная политика агрегации.
var ErrUnknownPolicy = errors.New("unknown aggregation policy")

// ErrNoDecisions — у кандидата нет записей с решением.
var ErrNoDecisions = errors.New("no decisions recorded")

// rolePrecedence — старшинство ролей для PolicyRolePrecedence.
// Неизвестная роль — младше всех известных.
var rolePrecedence = map[string]int{
	"hiring_manager": 3,
	"recruiter":      2,
	"interviewer":    1,
}

// AggregateResult — итог агрегации по политике.
type AggregateResult struct {
	// Decision — итоговое решение.
	Decision domain.Decision `json:"decision"`

	// Policy — применённая политика.
	Policy Policy `json:"policy"`

	// Decisive — запись, определившая итог.
	Decisive domain.StakeholderFeedback `json:"decisive"`

	// Total — количество записей с решением (comment не считается).
	Total int `json:"total"`

	// Conflicting — были ли в наборе противоречивые решения.
	Conflicting bool `json:"conflicting"`
}

// Aggregate вычисляет итоговое решение по кандидату согласно политике.
func (r *Reconciler) Aggregate(ctx context.Context, candidateID uuid.UUID, policy Policy) (*AggregateResult, error) {
	history, err := r.feedback.History(ctx, candidateID)
	if err != nil {
		return nil, err
	}

	// Комментарии не участвуют в агрегации решений
	decisions := make([]domain.StakeholderFeedback, 0, len(history))
	for _, f := range history {
		if f.Decision == domain.DecisionInterview || f.Decision == domain.DecisionDecline {
			decisions = append(decisions, f)
		}
	}
	if len(decisions) == 0 {
		return nil, ErrNoDecisions
	}

	sort.SliceStable(decisions, func(i, j int) bool {
		return decisions[i].ReceivedAt.Before(decisions[j].ReceivedAt)
	})

	var decisive domain.StakeholderFeedback
	switch policy {
	case PolicyMostRecent, "":
		decisive = decisions[len(decisions)-1]

	case PolicyRolePrecedence:
		decisive = decisions[0]
		for _, f := range decisions[1:] {
			if rolePrecedence[f.StakeholderRole] >= rolePrecedence[decisive.StakeholderRole] {
				decisive = f
			}
		}

	case PolicyMajority:
		counts := make(map[domain.Decision]int)
		for _, f := range decisions {
			counts[f.Decision]++
		}
		winner := decisions[len(decisions)-1].Decision
		if counts[domain.DecisionInterview] > counts[domain.DecisionDecline] {
			winner = domain.DecisionInterview
		} else if counts[domain.DecisionDecline] > counts[domain.DecisionInterview] {
			winner = domain.DecisionDecline
		}
		// Последняя запись с побеждающим решением
		for _, f := range decisions {
			if f.Decision == winner {
				decisive = f
			}
		}

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}

	conflicting := false
	for _, f := range decisions {
		if f.Decision != decisions[0].Decision {
			conflicting = true
			break
		}
	}

	appliedPolicy := policy
	if appliedPolicy == "" {
		appliedPolicy = PolicyMostRecent
	}

	return &AggregateResult{
		Decision:    decisive.Decision,
		Policy:      appliedPolicy,
		Decisive:    decisive,
		Total:       len(decisions),
		Conflicting: conflicting,
	}, nil
}
