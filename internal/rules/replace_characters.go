package rules

import (
	"context"
	"fmt"
	"strings"

	"github.com/khyo-labs/mutate/internal/domain"
	"github.com/khyo-labs/mutate/internal/workbook"
)

// ReplaceCharactersApplier — applier правила REPLACE_CHARACTERS.
//
// Литеральная замена подстрок (не pattern) в области all,
// specific_columns или specific_rows активного листа.
type ReplaceCharactersApplier struct{}

// Apply выполняет замены по порядку.
func (a *ReplaceCharactersApplier) Apply(_ context.Context, state *workbook.State, rule domain.Rule, log *Log) error {
	params, ok := rule.Params.(*domain.ReplaceCharactersParams)
	if !ok {
		return fmt.Errorf("unexpected params type %T", rule.Params)
	}

	sheet, err := state.ActiveSheet()
	if err != nil {
		return err
	}

	total := 0
	for _, repl := range params.Replacements {
		replaced, err := applyReplacement(sheet, repl)
		if err != nil {
			return err
		}
		total += replaced
		log.Infof("REPLACE_CHARACTERS: %q → %q replaced in %d cells (%s)",
			repl.Find, repl.Replace, replaced, repl.Scope)
	}

	state.Metadata.CellsReplaced += total
	return nil
}

// applyReplacement применяет одну замену к листу.
// Возвращает количество изменённых ячеек.
func applyReplacement(sheet *workbook.Sheet, repl domain.Replacement) (int, error) {
	inScope, err := buildScope(sheet, repl)
	if err != nil {
		return 0, err
	}

	replaced := 0
	for rowIdx, row := range sheet.Rows {
		for colIdx, cell := range row {
			if !inScope(rowIdx, colIdx) {
				continue
			}
			if !strings.Contains(cell, repl.Find) {
				continue
			}
			sheet.Rows[rowIdx][colIdx] = strings.ReplaceAll(cell, repl.Find, repl.Replace)
			replaced++
		}
	}
	return replaced, nil
}

// buildScope строит предикат принадлежности ячейки области замены.
func buildScope(sheet *workbook.Sheet, repl domain.Replacement) (func(row, col int) bool, error) {
	switch repl.Scope {
	case domain.ScopeAll:
		return func(int, int) bool { return true }, nil

	case domain.ScopeColumns:
		cols := make(map[int]bool, len(repl.Columns))
		for _, name := range repl.Columns {
			idx, err := sheet.ColumnIndex(name)
			if err != nil {
				return nil, err
			}
			cols[idx] = true
		}
		return func(_, col int) bool { return cols[col] }, nil

	case domain.ScopeRows:
		rows := make(map[int]bool, len(repl.Rows))
		for _, row := range repl.Rows {
			rows[row-1] = true // 1-based → 0-based
		}
		return func(row, _ int) bool { return rows[row] }, nil

	default:
		return nil, fmt.Errorf("unknown replace scope: %q", repl.Scope)
	}
}
