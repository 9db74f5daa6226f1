package rules

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/khyo-labs/mutate/internal/domain"
	"github.com/khyo-labs/mutate/internal/workbook"
)

// DeleteRowsApplier — applier правила DELETE_ROWS.
//
// method=rows удаляет явные 1-based номера строк;
// method=condition удаляет строки по условию contains/empty/pattern,
// опционально ограниченному одной колонкой.
type DeleteRowsApplier struct{}

// Apply удаляет строки.
func (a *DeleteRowsApplier) Apply(_ context.Context, state *workbook.State, rule domain.Rule, log *Log) error {
	params, ok := rule.Params.(*domain.DeleteRowsParams)
	if !ok {
		return fmt.Errorf("unexpected params type %T", rule.Params)
	}

	sheet, err := state.ActiveSheet()
	if err != nil {
		return err
	}

	var deleted int
	switch params.Method {
	case domain.DeleteByRows:
		deleted = deleteExplicitRows(sheet, params.Rows)
	case domain.DeleteByCondition:
		deleted, err = deleteByCondition(sheet, params.Condition)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown delete method: %q", params.Method)
	}

	state.Metadata.RowsDeleted += deleted
	log.Infof("DELETE_ROWS: deleted %d rows (%s)", deleted, params.Method)
	return nil
}

// deleteExplicitRows удаляет строки по 1-based номерам.
// Номера применяются к исходной нумерации, не к сдвинутой.
func deleteExplicitRows(sheet *workbook.Sheet, rows []int) int {
	toDelete := make(map[int]bool, len(rows))
	for _, row := range rows {
		toDelete[row-1] = true // 1-based → 0-based
	}

	return deleteRowsWhere(sheet, func(idx int, _ []string) bool {
		return toDelete[idx]
	})
}

// deleteByCondition удаляет строки, удовлетворяющие условию.
// Header-строка никогда не удаляется.
func deleteByCondition(sheet *workbook.Sheet, cond *domain.RowCondition) (int, error) {
	match, err := buildMatcher(sheet, cond)
	if err != nil {
		return 0, err
	}

	return deleteRowsWhere(sheet, func(idx int, row []string) bool {
		if idx == 0 {
			return false
		}
		return match(row)
	}), nil
}

// buildMatcher строит предикат строки для условия.
func buildMatcher(sheet *workbook.Sheet, cond *domain.RowCondition) (func([]string) bool, error) {
	colIdx := -1
	if cond.Column != "" {
		idx, err := sheet.ColumnIndex(cond.Column)
		if err != nil {
			return nil, err
		}
		colIdx = idx
	}

	cellMatch, err := buildCellMatcher(cond)
	if err != nil {
		return nil, err
	}

	return func(row []string) bool {
		if colIdx >= 0 {
			value := ""
			if colIdx < len(row) {
				value = row[colIdx]
			}
			return cellMatch(value)
		}

		// Условие по всей строке: empty — все ячейки пустые,
		// contains/pattern — хотя бы одна ячейка матчится.
		if cond.Type == domain.ConditionEmpty {
			for _, cell := range row {
				if strings.TrimSpace(cell) != "" {
					return false
				}
			}
			return true
		}
		for _, cell := range row {
			if cellMatch(cell) {
				return true
			}
		}
		return false
	}, nil
}

// buildCellMatcher строит предикат одной ячейки.
func buildCellMatcher(cond *domain.RowCondition) (func(string) bool, error) {
	switch cond.Type {
	case domain.ConditionContains:
		value := cond.Value
		return func(cell string) bool {
			return strings.Contains(cell, value)
		}, nil
	case domain.ConditionEmpty:
		return func(cell string) bool {
			return strings.TrimSpace(cell) == ""
		}, nil
	case domain.ConditionPattern:
		re, err := regexp.Compile(cond.Value)
		if err != nil {
			return nil, fmt.Errorf("compile pattern: %w", err)
		}
		return re.MatchString, nil
	default:
		return nil, fmt.Errorf("unknown condition type: %q", cond.Type)
	}
}

// deleteRowsWhere удаляет строки по предикату (индекс в исходной нумерации).
func deleteRowsWhere(sheet *workbook.Sheet, shouldDelete func(int, []string) bool) int {
	kept := sheet.Rows[:0]
	deleted := 0
	for idx, row := range sheet.Rows {
		if shouldDelete(idx, row) {
			deleted++
			continue
		}
		kept = append(kept, row)
	}
	sheet.Rows = kept
	return deleted
}
