package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// RuleType — тип правила трансформации.
type RuleType string

// Поддерживаемые типы правил.
const (
	RuleSelectWorksheet   RuleType = "SELECT_WORKSHEET"
	RuleValidateColumns   RuleType = "VALIDATE_COLUMNS"
	RuleUnmergeAndFill    RuleType = "UNMERGE_AND_FILL"
	RuleDeleteRows        RuleType = "DELETE_ROWS"
	RuleDeleteColumns     RuleType = "DELETE_COLUMNS"
	RuleCombineWorksheets RuleType = "COMBINE_WORKSHEETS"
	RuleEvaluateFormulas  RuleType = "EVALUATE_FORMULAS"
	RuleReplaceCharacters RuleType = "REPLACE_CHARACTERS"
)

// Ошибки декодирования правил.
var (
	// ErrUnknownRuleType — неизвестный тип правила.
	ErrUnknownRuleType = errors.New("unknown rule type")

	// ErrInvalidRuleParams — параметры правила не прошли валидацию.
	ErrInvalidRuleParams = errors.New("invalid rule params")
)

// Rule — одно типизированное правило трансформации.
//
// Rule — закрытый tagged variant: Params всегда конкретный struct,
// соответствующий Type. Невалидные или неизвестные параметры
// отклоняются при декодировании, а не внутри движка правил.
type Rule struct {
	// ID — идентификатор правила внутри конфигурации.
	ID string

	// Type — дискриминант варианта.
	Type RuleType

	// Params — типизированные параметры (конкретный *Params struct).
	Params RuleParams
}

// RuleParams — интерфейс-маркер для параметров правила.
type RuleParams interface {
	// Validate проверяет параметры. Вызывается при декодировании.
	Validate() error
}

// ruleEnvelope — wire-представление правила.
type ruleEnvelope struct {
	ID     string          `json:"id"`
	Type   RuleType        `json:"type"`
	Params json.RawMessage `json:"params"`
}

// UnmarshalJSON декодирует правило, выбирая конкретный Params struct
// по дискриминанту type и валидируя его.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var env ruleEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode rule envelope: %w", err)
	}

	params, err := newRuleParams(env.Type)
	if err != nil {
		return err
	}

	if len(env.Params) > 0 {
		dec := json.NewDecoder(bytes.NewReader(env.Params))
		dec.DisallowUnknownFields()
		if err := dec.Decode(params); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidRuleParams, env.Type, err)
		}
	}

	if err := params.Validate(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidRuleParams, env.Type, err)
	}

	r.ID = env.ID
	r.Type = env.Type
	r.Params = params
	return nil
}

// MarshalJSON кодирует правило в wire-представление.
func (r Rule) MarshalJSON() ([]byte, error) {
	paramsJSON, err := json.Marshal(r.Params)
	if err != nil {
		return nil, fmt.Errorf("marshal rule params: %w", err)
	}
	return json.Marshal(ruleEnvelope{
		ID:     r.ID,
		Type:   r.Type,
		Params: paramsJSON,
	})
}

// newRuleParams возвращает пустой Params struct для типа правила.
func newRuleParams(t RuleType) (RuleParams, error) {
	switch t {
	case RuleSelectWorksheet:
		return &SelectWorksheetParams{}, nil
	case RuleValidateColumns:
		return &ValidateColumnsParams{}, nil
	case RuleUnmergeAndFill:
		return &UnmergeAndFillParams{}, nil
	case RuleDeleteRows:
		return &DeleteRowsParams{}, nil
	case RuleDeleteColumns:
		return &DeleteColumnsParams{}, nil
	case RuleCombineWorksheets:
		return &CombineWorksheetsParams{}, nil
	case RuleEvaluateFormulas:
		return &EvaluateFormulasParams{}, nil
	case RuleReplaceCharacters:
		return &ReplaceCharactersParams{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRuleType, t)
	}
}

// --- SELECT_WORKSHEET ---

// SelectorType — способ выбора листа.
type SelectorType string

const (
	// SelectorByName — точное совпадение имени листа.
	SelectorByName SelectorType = "name"

	// SelectorByPattern — case-insensitive регулярное выражение.
	SelectorByPattern SelectorType = "pattern"

	// SelectorByIndex — 0-based индекс листа.
	SelectorByIndex SelectorType = "index"
)

// SelectWorksheetParams — параметры SELECT_WORKSHEET.
type SelectWorksheetParams struct {
	// Value — имя, pattern или индекс (строкой) в зависимости от Type.
	Value string `json:"value"`

	// Type — способ выбора: name, pattern или index.
	Type SelectorType `json:"type"`
}

// Validate проверяет параметры SELECT_WORKSHEET.
func (p *SelectWorksheetParams) Validate() error {
	if p.Value == "" {
		return errors.New("value is required")
	}
	switch p.Type {
	case SelectorByName:
		return nil
	case SelectorByPattern:
		if _, err := regexp.Compile("(?i)" + p.Value); err != nil {
			return fmt.Errorf("invalid pattern: %v", err)
		}
		return nil
	case SelectorByIndex:
		if _, err := strconv.Atoi(p.Value); err != nil {
			return fmt.Errorf("index must be an integer: %q", p.Value)
		}
		return nil
	default:
		return fmt.Errorf("unknown selector type: %q", p.Type)
	}
}

// --- VALIDATE_COLUMNS ---

// FailureAction — действие при несовпадении количества колонок.
type FailureAction string

const (
	// FailureStop — остановить job с ошибкой.
	FailureStop FailureAction = "stop"

	// FailureNotify — записать warning в лог и продолжить.
	FailureNotify FailureAction = "notify"

	// FailureContinue — записать info в лог и продолжить.
	FailureContinue FailureAction = "continue"
)

// ValidateColumnsParams — параметры VALIDATE_COLUMNS.
type ValidateColumnsParams struct {
	// NumOfColumns — ожидаемое количество колонок активного листа.
	NumOfColumns int `json:"numOfColumns"`

	// OnFailure — действие при несовпадении: stop, notify или continue.
	OnFailure FailureAction `json:"onFailure"`
}

// Validate проверяет параметры VALIDATE_COLUMNS.
func (p *ValidateColumnsParams) Validate() error {
	if p.NumOfColumns <= 0 {
		return errors.New("numOfColumns must be positive")
	}
	switch p.OnFailure {
	case FailureStop, FailureNotify, FailureContinue:
		return nil
	default:
		return fmt.Errorf("unknown onFailure action: %q", p.OnFailure)
	}
}

// --- UNMERGE_AND_FILL ---

// FillDirection — направление заполнения пустых ячеек.
type FillDirection string

const (
	// FillDown — значение переносится сверху вниз.
	FillDown FillDirection = "down"

	// FillUp — значение переносится снизу вверх.
	FillUp FillDirection = "up"
)

// UnmergeAndFillParams — параметры UNMERGE_AND_FILL.
type UnmergeAndFillParams struct {
	// Columns — имена колонок для заполнения.
	Columns []string `json:"columns"`

	// FillDirection — направление: down или up.
	FillDirection FillDirection `json:"fillDirection"`
}

// Validate проверяет параметры UNMERGE_AND_FILL.
func (p *UnmergeAndFillParams) Validate() error {
	if len(p.Columns) == 0 {
		return errors.New("columns is required")
	}
	switch p.FillDirection {
	case FillDown, FillUp:
		return nil
	default:
		return fmt.Errorf("unknown fillDirection: %q", p.FillDirection)
	}
}

// --- DELETE_ROWS ---

// DeleteRowsMethod — способ выбора удаляемых строк.
type DeleteRowsMethod string

const (
	// DeleteByRows — явный список 1-based номеров строк.
	DeleteByRows DeleteRowsMethod = "rows"

	// DeleteByCondition — строки, удовлетворяющие условию.
	DeleteByCondition DeleteRowsMethod = "condition"
)

// ConditionType — тип условия для DELETE_ROWS.
type ConditionType string

const (
	// ConditionContains — ячейка содержит подстроку.
	ConditionContains ConditionType = "contains"

	// ConditionEmpty — ячейка (или вся строка) пустая.
	ConditionEmpty ConditionType = "empty"

	// ConditionPattern — ячейка матчится регулярным выражением.
	ConditionPattern ConditionType = "pattern"
)

// RowCondition — условие удаления строки.
type RowCondition struct {
	// Type — тип условия: contains, empty или pattern.
	Type ConditionType `json:"type"`

	// Column — имя колонки для проверки. Пустое — условие
	// проверяется по всей строке.
	Column string `json:"column,omitempty"`

	// Value — подстрока или pattern (для contains и pattern).
	Value string `json:"value,omitempty"`
}

// DeleteRowsParams — параметры DELETE_ROWS.
type DeleteRowsParams struct {
	// Method — способ выбора: rows или condition.
	Method DeleteRowsMethod `json:"method"`

	// Rows — 1-based номера строк (для method=rows).
	Rows []int `json:"rows,omitempty"`

	// Condition — условие удаления (для method=condition).
	Condition *RowCondition `json:"condition,omitempty"`
}

// Validate проверяет параметры DELETE_ROWS.
func (p *DeleteRowsParams) Validate() error {
	switch p.Method {
	case DeleteByRows:
		if len(p.Rows) == 0 {
			return errors.New("rows is required for method=rows")
		}
		for _, row := range p.Rows {
			if row < 1 {
				return fmt.Errorf("row numbers are 1-based, got %d", row)
			}
		}
		return nil
	case DeleteByCondition:
		if p.Condition == nil {
			return errors.New("condition is required for method=condition")
		}
		return p.Condition.validate()
	default:
		return fmt.Errorf("unknown delete method: %q", p.Method)
	}
}

// validate проверяет условие удаления строки.
func (c *RowCondition) validate() error {
	switch c.Type {
	case ConditionContains:
		if c.Value == "" {
			return errors.New("value is required for contains condition")
		}
		return nil
	case ConditionEmpty:
		return nil
	case ConditionPattern:
		if c.Value == "" {
			return errors.New("value is required for pattern condition")
		}
		if _, err := regexp.Compile(c.Value); err != nil {
			return fmt.Errorf("invalid pattern: %v", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown condition type: %q", c.Type)
	}
}

// --- DELETE_COLUMNS ---

// DeleteColumnsParams — параметры DELETE_COLUMNS.
type DeleteColumnsParams struct {
	// Columns — имена колонок (header name или буква колонки).
	Columns []string `json:"columns"`
}

// Validate проверяет параметры DELETE_COLUMNS.
func (p *DeleteColumnsParams) Validate() error {
	if len(p.Columns) == 0 {
		return errors.New("columns is required")
	}
	return nil
}

// --- COMBINE_WORKSHEETS ---

// CombineOperation — способ объединения листов.
type CombineOperation string

const (
	// CombineAppend — строки источников складываются под header первого листа.
	CombineAppend CombineOperation = "append"

	// CombineMerge — объединение всех headers, недостающие ячейки пустые.
	CombineMerge CombineOperation = "merge"
)

// CombineWorksheetsParams — параметры COMBINE_WORKSHEETS.
type CombineWorksheetsParams struct {
	// SourceSheets — имена исходных листов.
	SourceSheets []string `json:"sourceSheets"`

	// Operation — append или merge.
	Operation CombineOperation `json:"operation"`
}

// Validate проверяет параметры COMBINE_WORKSHEETS.
func (p *CombineWorksheetsParams) Validate() error {
	if len(p.SourceSheets) == 0 {
		return errors.New("sourceSheets is required")
	}
	switch p.Operation {
	case CombineAppend, CombineMerge:
		return nil
	default:
		return fmt.Errorf("unknown combine operation: %q", p.Operation)
	}
}

// --- EVALUATE_FORMULAS ---

// EvaluateFormulasParams — параметры EVALUATE_FORMULAS.
//
// Флаг потребляется читателем значений ячеек при декодировании файла;
// само правило структурных изменений не делает.
type EvaluateFormulasParams struct {
	// Enabled — вычислять ли формулы при чтении значений.
	Enabled bool `json:"enabled"`
}

// Validate проверяет параметры EVALUATE_FORMULAS.
func (p *EvaluateFormulasParams) Validate() error {
	return nil
}

// --- REPLACE_CHARACTERS ---

// ReplaceScope — область применения замены.
type ReplaceScope string

const (
	// ScopeAll — все ячейки активного листа.
	ScopeAll ReplaceScope = "all"

	// ScopeColumns — только названные колонки.
	ScopeColumns ReplaceScope = "specific_columns"

	// ScopeRows — только названные строки (1-based).
	ScopeRows ReplaceScope = "specific_rows"
)

// Replacement — одна литеральная замена подстроки.
type Replacement struct {
	// Find — искомая подстрока (литерал, не pattern).
	Find string `json:"find"`

	// Replace — замена.
	Replace string `json:"replace"`

	// Scope — область: all, specific_columns или specific_rows.
	Scope ReplaceScope `json:"scope"`

	// Columns — имена колонок (для scope=specific_columns).
	Columns []string `json:"columns,omitempty"`

	// Rows — 1-based номера строк (для scope=specific_rows).
	Rows []int `json:"rows,omitempty"`
}

// ReplaceCharactersParams — параметры REPLACE_CHARACTERS.
type ReplaceCharactersParams struct {
	// Replacements — список замен, применяются по порядку.
	Replacements []Replacement `json:"replacements"`
}

// Validate проверяет параметры REPLACE_CHARACTERS.
func (p *ReplaceCharactersParams) Validate() error {
	if len(p.Replacements) == 0 {
		return errors.New("replacements is required")
	}
	for i, r := range p.Replacements {
		if r.Find == "" {
			return fmt.Errorf("replacement %d: find is required", i)
		}
		switch r.Scope {
		case ScopeAll:
		case ScopeColumns:
			if len(r.Columns) == 0 {
				return fmt.Errorf("replacement %d: columns is required for scope=specific_columns", i)
			}
		case ScopeRows:
			if len(r.Rows) == 0 {
				return fmt.Errorf("replacement %d: rows is required for scope=specific_rows", i)
			}
		default:
			return fmt.Errorf("replacement %d: unknown scope %q", i, r.Scope)
		}
	}
	return nil
}
