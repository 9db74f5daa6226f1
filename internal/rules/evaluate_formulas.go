package rules

import (
	"context"
	"fmt"

	"github.com/khyo-labs/mutate/internal/domain"
	"github.com/khyo-labs/mutate/internal/workbook"
)

// EvaluateFormulasApplier — applier правила EVALUATE_FORMULAS.
//
// Флаг потребляется читателем значений ячеек при декодировании файла;
// здесь правило только фиксирует намерение в metadata и логе,
// структурных изменений состояния нет.
type EvaluateFormulasApplier struct{}

// Apply фиксирует флаг вычисления формул.
func (a *EvaluateFormulasApplier) Apply(_ context.Context, state *workbook.State, rule domain.Rule, log *Log) error {
	params, ok := rule.Params.(*domain.EvaluateFormulasParams)
	if !ok {
		return fmt.Errorf("unexpected params type %T", rule.Params)
	}

	state.Metadata.EvaluateFormulas = params.Enabled
	log.Infof("EVALUATE_FORMULAS: enabled=%t", params.Enabled)
	return nil
}
