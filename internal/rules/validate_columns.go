package rules

import (
	"context"
	"fmt"

	"github.com/khyo-labs/mutate/internal/domain"
	"github.com/khyo-labs/mutate/internal/workbook"
)

// ValidateColumnsApplier — applier правила VALIDATE_COLUMNS.
//
// Сравнивает ожидаемое и фактическое количество колонок активного листа.
// stop проваливает весь job; notify/continue пишут warning/info и
// пропускают лист дальше без изменений.
type ValidateColumnsApplier struct{}

// Apply проверяет количество колонок.
func (a *ValidateColumnsApplier) Apply(_ context.Context, state *workbook.State, rule domain.Rule, log *Log) error {
	params, ok := rule.Params.(*domain.ValidateColumnsParams)
	if !ok {
		return fmt.Errorf("unexpected params type %T", rule.Params)
	}

	sheet, err := state.ActiveSheet()
	if err != nil {
		return err
	}

	actual := sheet.ColumnCount()
	if actual == params.NumOfColumns {
		log.Infof("VALIDATE_COLUMNS: column count ok (%d)", actual)
		return nil
	}

	switch params.OnFailure {
	case domain.FailureStop:
		return fmt.Errorf("%w: expected %d columns, got %d",
			ErrColumnMismatch, params.NumOfColumns, actual)

	case domain.FailureNotify:
		log.Warnf("VALIDATE_COLUMNS: expected %d columns, got %d, continuing",
			params.NumOfColumns, actual)
		return nil

	default: // continue
		log.Infof("VALIDATE_COLUMNS: expected %d columns, got %d, continuing",
			params.NumOfColumns, actual)
		return nil
	}
}
