package rules

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/khyo-labs/mutate/internal/domain"
	"github.com/khyo-labs/mutate/internal/workbook"
)

// SelectWorksheetApplier — applier правила SELECT_WORKSHEET.
//
// Разрешает лист по точному имени, case-insensitive pattern
// или 0-based индексу и делает его активным.
type SelectWorksheetApplier struct{}

// Apply выбирает лист.
func (a *SelectWorksheetApplier) Apply(_ context.Context, state *workbook.State, rule domain.Rule, log *Log) error {
	params, ok := rule.Params.(*domain.SelectWorksheetParams)
	if !ok {
		return fmt.Errorf("unexpected params type %T", rule.Params)
	}

	name, err := resolveSheet(state, params)
	if err != nil {
		return err
	}

	if err := state.Select(name); err != nil {
		return err
	}

	log.Infof("SELECT_WORKSHEET: selected sheet %q (%s=%q)", name, params.Type, params.Value)
	return nil
}

// resolveSheet находит имя листа по selector'у.
func resolveSheet(state *workbook.State, params *domain.SelectWorksheetParams) (string, error) {
	names := state.SheetNames()

	switch params.Type {
	case domain.SelectorByName:
		for _, name := range names {
			if name == params.Value {
				return name, nil
			}
		}
		return "", fmt.Errorf("%w: no sheet named %q", ErrNoSheetMatched, params.Value)

	case domain.SelectorByPattern:
		re, err := regexp.Compile("(?i)" + params.Value)
		if err != nil {
			return "", fmt.Errorf("compile pattern: %w", err)
		}
		for _, name := range names {
			if re.MatchString(name) {
				return name, nil
			}
		}
		return "", fmt.Errorf("%w: no sheet matching pattern %q", ErrNoSheetMatched, params.Value)

	case domain.SelectorByIndex:
		idx, err := strconv.Atoi(params.Value)
		if err != nil {
			return "", fmt.Errorf("parse index: %w", err)
		}
		if idx < 0 || idx >= len(names) {
			return "", fmt.Errorf("%w: index %d out of range [0,%d)", ErrNoSheetMatched, idx, len(names))
		}
		return names[idx], nil

	default:
		return "", fmt.Errorf("unknown selector type: %q", params.Type)
	}
}
