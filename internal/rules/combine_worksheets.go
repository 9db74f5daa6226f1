package rules

import (
	"context"
	"fmt"
	"strings"

	"github.com/khyo-labs/mutate/internal/domain"
	"github.com/khyo-labs/mutate/internal/workbook"
)

// Базовое имя листа-результата COMBINE_WORKSHEETS.
// При конфликте AddSheet добавляет числовой суффикс.
const combinedSheetName = "Combined"

// CombineWorksheetsApplier — applier правила COMBINE_WORKSHEETS.
//
// append складывает строки источников под header первого листа;
// merge объединяет headers всех источников, недостающие ячейки пустые.
// Результат пишется в новый уникально названный лист, который
// становится активным и попадает в history.
type CombineWorksheetsApplier struct{}

// Apply объединяет листы.
func (a *CombineWorksheetsApplier) Apply(_ context.Context, state *workbook.State, rule domain.Rule, log *Log) error {
	params, ok := rule.Params.(*domain.CombineWorksheetsParams)
	if !ok {
		return fmt.Errorf("unexpected params type %T", rule.Params)
	}

	sources := make([]*workbook.Sheet, 0, len(params.SourceSheets))
	for _, name := range params.SourceSheets {
		sheet, exists := state.Sheets[name]
		if !exists {
			return fmt.Errorf("%w: %q", ErrSourceSheetMissing, name)
		}
		sources = append(sources, sheet)
	}

	var combined *workbook.Sheet
	switch params.Operation {
	case domain.CombineAppend:
		combined = combineAppend(sources)
	case domain.CombineMerge:
		combined = combineMerge(sources)
	default:
		return fmt.Errorf("unknown combine operation: %q", params.Operation)
	}

	name := state.AddSheet(combinedSheetName, combined)
	if err := state.Select(name); err != nil {
		return err
	}

	log.Infof("COMBINE_WORKSHEETS: combined %d sheets into %q (%s, %d rows)",
		len(sources), name, params.Operation, combined.RowCount())
	return nil
}

// combineAppend складывает строки под header первого источника.
func combineAppend(sources []*workbook.Sheet) *workbook.Sheet {
	out := &workbook.Sheet{}
	if len(sources) == 0 {
		return out
	}

	header := sources[0].Header()
	out.Rows = append(out.Rows, cloneRow(header))

	for _, src := range sources {
		for i := 1; i < len(src.Rows); i++ {
			out.Rows = append(out.Rows, cloneRow(src.Rows[i]))
		}
	}
	return out
}

// combineMerge объединяет headers всех источников (union, в порядке
// первого появления) и перекладывает строки по именам колонок.
func combineMerge(sources []*workbook.Sheet) *workbook.Sheet {
	var merged []string
	position := make(map[string]int)

	for _, src := range sources {
		for _, h := range src.Header() {
			key := strings.ToLower(strings.TrimSpace(h))
			if _, exists := position[key]; !exists {
				position[key] = len(merged)
				merged = append(merged, h)
			}
		}
	}

	out := &workbook.Sheet{Rows: [][]string{cloneRow(merged)}}

	for _, src := range sources {
		header := src.Header()
		for i := 1; i < len(src.Rows); i++ {
			row := make([]string, len(merged))
			for j, h := range header {
				key := strings.ToLower(strings.TrimSpace(h))
				if pos, exists := position[key]; exists {
					row[pos] = src.Cell(i, j)
				}
			}
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

func cloneRow(row []string) []string {
	out := make([]string, len(row))
	copy(out, row)
	return out
}
