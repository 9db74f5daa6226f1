package rules

import (
	"errors"
	"fmt"

	"github.com/khyo-labs/mutate/internal/domain"
)

// Ошибки движка правил.
var (
	// ErrUnknownRuleType — нет applier'а для данного типа правила.
	ErrUnknownRuleType = errors.New("unknown rule type")

	// ErrNoSheetMatched — selector не нашёл ни одного листа.
	ErrNoSheetMatched = errors.New("no sheet matched")

	// ErrColumnMismatch — количество колонок не совпало (onFailure=stop).
	ErrColumnMismatch = errors.New("column count mismatch")

	// ErrSourceSheetMissing — исходный лист для COMBINE_WORKSHEETS отсутствует.
	ErrSourceSheetMissing = errors.New("source sheet missing")
)

// TransformError — ошибка применения правила.
//
// Терминальна для job; частичный execution log сохраняется
// и возвращается вместе с ошибкой.
type TransformError struct {
	// RuleID — идентификатор упавшего правила.
	RuleID string

	// RuleType — тип упавшего правила.
	RuleType domain.RuleType

	// Reason — человекочитаемая причина.
	Reason string

	// Err — исходная ошибка.
	Err error
}

// Error реализует error.
func (e *TransformError) Error() string {
	if e.RuleID != "" {
		return fmt.Sprintf("rule %s (%s): %s", e.RuleID, e.RuleType, e.Reason)
	}
	return fmt.Sprintf("rule %s: %s", e.RuleType, e.Reason)
}

// Unwrap возвращает исходную ошибку.
func (e *TransformError) Unwrap() error {
	return e.Err
}

// newTransformError создаёт TransformError для правила.
func newTransformError(rule domain.Rule, err error) *TransformError {
	return &TransformError{
		RuleID:   rule.ID,
		RuleType: rule.Type,
		Reason:   err.Error(),
		Err:      err,
	}
}
