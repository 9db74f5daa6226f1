package rules

import (
	"context"
	"fmt"

	"github.com/khyo-labs/mutate/internal/domain"
	"github.com/khyo-labs/mutate/internal/workbook"
)

// UnmergeAndFillApplier — applier правила UNMERGE_AND_FILL.
//
// Для каждой названной колонки один проход по диапазону строк
// в выбранном направлении: последнее непустое значение переносится
// в пустые ячейки (классический fill-down/fill-up поверх артефактов
// merged cells).
type UnmergeAndFillApplier struct{}

// Apply заполняет пустые ячейки.
func (a *UnmergeAndFillApplier) Apply(_ context.Context, state *workbook.State, rule domain.Rule, log *Log) error {
	params, ok := rule.Params.(*domain.UnmergeAndFillParams)
	if !ok {
		return fmt.Errorf("unexpected params type %T", rule.Params)
	}

	sheet, err := state.ActiveSheet()
	if err != nil {
		return err
	}

	totalFilled := 0
	for _, column := range params.Columns {
		colIdx, err := sheet.ColumnIndex(column)
		if err != nil {
			return err
		}

		filled := fillColumn(sheet, colIdx, params.FillDirection)
		totalFilled += filled
		log.Infof("UNMERGE_AND_FILL: column %q filled %d cells (%s)", column, filled, params.FillDirection)
	}

	state.Metadata.CellsFilled += totalFilled
	return nil
}

// fillColumn выполняет один проход заполнения по колонке.
// Header-строка (индекс 0) не участвует.
func fillColumn(sheet *workbook.Sheet, colIdx int, direction domain.FillDirection) int {
	filled := 0
	carry := ""

	scan := func(row int) {
		value := sheet.Cell(row, colIdx)
		if value != "" {
			carry = value
			return
		}
		if carry != "" {
			sheet.SetCell(row, colIdx, carry)
			filled++
		}
	}

	if direction == domain.FillUp {
		for row := sheet.RowCount() - 1; row >= 1; row-- {
			scan(row)
		}
	} else {
		for row := 1; row < sheet.RowCount(); row++ {
			scan(row)
		}
	}

	return filled
}
