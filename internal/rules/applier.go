package rules

import (
	"context"
	"fmt"

	"github.com/khyo-labs/mutate/internal/domain"
	"github.com/khyo-labs/mutate/internal/workbook"
)

// Applier — интерфейс применения одного типа правила.
//
// Applier получает уже склонированное состояние и мутирует его.
// Движок принимает мутации только при успехе — предыдущее состояние
// остаётся нетронутым, aliasing между правилами исключён.
type Applier interface {
	Apply(ctx context.Context, state *workbook.State, rule domain.Rule, log *Log) error
}

// Registry — реестр applier'ов по типу правила.
type Registry struct {
	appliers map[domain.RuleType]Applier
}

// NewRegistry создаёт реестр со всеми поддерживаемыми правилами.
func NewRegistry() *Registry {
	r := &Registry{appliers: make(map[domain.RuleType]Applier)}
	r.Register(domain.RuleSelectWorksheet, &SelectWorksheetApplier{})
	r.Register(domain.RuleValidateColumns, &ValidateColumnsApplier{})
	r.Register(domain.RuleUnmergeAndFill, &UnmergeAndFillApplier{})
	r.Register(domain.RuleDeleteRows, &DeleteRowsApplier{})
	r.Register(domain.RuleDeleteColumns, &DeleteColumnsApplier{})
	r.Register(domain.RuleCombineWorksheets, &CombineWorksheetsApplier{})
	r.Register(domain.RuleEvaluateFormulas, &EvaluateFormulasApplier{})
	r.Register(domain.RuleReplaceCharacters, &ReplaceCharactersApplier{})
	return r
}

// Register добавляет applier для типа правила.
func (r *Registry) Register(ruleType domain.RuleType, applier Applier) {
	r.appliers[ruleType] = applier
}

// Get возвращает applier для типа правила.
func (r *Registry) Get(ruleType domain.RuleType) (Applier, error) {
	applier, ok := r.appliers[ruleType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRuleType, ruleType)
	}
	return applier, nil
}
