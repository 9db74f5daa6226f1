package rules

import (
	"context"
	"fmt"
	"sort"

	"github.com/khyo-labs/mutate/internal/domain"
	"github.com/khyo-labs/mutate/internal/workbook"
)

// DeleteColumnsApplier — applier правила DELETE_COLUMNS.
//
// Колонки разрешаются по header name или букве колонки и
// удаляются из всех строк листа.
type DeleteColumnsApplier struct{}

// Apply удаляет колонки.
func (a *DeleteColumnsApplier) Apply(_ context.Context, state *workbook.State, rule domain.Rule, log *Log) error {
	params, ok := rule.Params.(*domain.DeleteColumnsParams)
	if !ok {
		return fmt.Errorf("unexpected params type %T", rule.Params)
	}

	sheet, err := state.ActiveSheet()
	if err != nil {
		return err
	}

	// Разрешаем все имена до удаления: индексы считаются
	// по исходному header'у, не по сдвинутому.
	indices := make([]int, 0, len(params.Columns))
	seen := make(map[int]bool, len(params.Columns))
	for _, column := range params.Columns {
		idx, err := sheet.ColumnIndex(column)
		if err != nil {
			return err
		}
		if !seen[idx] {
			seen[idx] = true
			indices = append(indices, idx)
		}
	}

	// Удаляем справа налево, чтобы индексы не сдвигались.
	sort.Sort(sort.Reverse(sort.IntSlice(indices)))
	for _, idx := range indices {
		removeColumn(sheet, idx)
	}

	log.Infof("DELETE_COLUMNS: deleted %d columns %v", len(indices), params.Columns)
	return nil
}

// removeColumn удаляет колонку по индексу из всех строк.
func removeColumn(sheet *workbook.Sheet, colIdx int) {
	for i, row := range sheet.Rows {
		if colIdx >= len(row) {
			continue
		}
		sheet.Rows[i] = append(row[:colIdx], row[colIdx+1:]...)
	}
}
