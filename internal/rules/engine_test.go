package rules

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/khyo-labs/mutate/internal/domain"
	"github.com/khyo-labs/mutate/internal/workbook"
)

// testState собирает workbook из пар имя/строки в порядке перечисления.
func testState(t *testing.T, sheets ...any) *workbook.State {
	t.Helper()
	if len(sheets)%2 != 0 {
		t.Fatal("testState: sheets must be name/rows pairs")
	}

	state := workbook.NewState()
	for i := 0; i < len(sheets); i += 2 {
		name := sheets[i].(string)
		rows := sheets[i+1].([][]string)
		state.AddSheet(name, &workbook.Sheet{Rows: rows})
	}
	return state
}

func fixedClock() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func newTestEngine() *Engine {
	return NewEngine(WithClock(fixedClock))
}

func rule(id string, t domain.RuleType, params domain.RuleParams) domain.Rule {
	return domain.Rule{ID: id, Type: t, Params: params}
}

// --- Engine Tests ---

func TestEngine_EmptyRuleList(t *testing.T) {
	state := testState(t, "Data", [][]string{{"a", "b"}, {"1", "2"}})

	result, log, err := newTestEngine().Apply(context.Background(), state, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil {
		t.Fatal("result should not be nil")
	}
	if len(log) == 0 {
		t.Error("log should contain start and finish lines")
	}
}

func TestEngine_Deterministic(t *testing.T) {
	rules := []domain.Rule{
		rule("r1", domain.RuleSelectWorksheet, &domain.SelectWorksheetParams{Value: "Data", Type: domain.SelectorByName}),
		rule("r2", domain.RuleReplaceCharacters, &domain.ReplaceCharactersParams{
			Replacements: []domain.Replacement{{Find: "$", Replace: "", Scope: domain.ScopeAll}},
		}),
	}

	build := func() *workbook.State {
		return testState(t, "Data", [][]string{
			{"name", "price"},
			{"widget", "$100"},
			{"gadget", "$250"},
		})
	}

	first, firstLog, err := newTestEngine().Apply(context.Background(), build(), rules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, secondLog, err := newTestEngine().Apply(context.Background(), build(), rules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fs, _ := first.ActiveSheet()
	ss, _ := second.ActiveSheet()
	for i := range fs.Rows {
		for j := range fs.Rows[i] {
			if fs.Rows[i][j] != ss.Rows[i][j] {
				t.Errorf("cell (%d,%d) differs: %q vs %q", i, j, fs.Rows[i][j], ss.Rows[i][j])
			}
		}
	}
	if len(firstLog) != len(secondLog) {
		t.Errorf("log length differs: %d vs %d", len(firstLog), len(secondLog))
	}
}

func TestEngine_InputStateNotMutated(t *testing.T) {
	state := testState(t, "Data", [][]string{
		{"name", "price"},
		{"widget", "$100"},
	})

	rules := []domain.Rule{
		rule("r1", domain.RuleReplaceCharacters, &domain.ReplaceCharactersParams{
			Replacements: []domain.Replacement{{Find: "$", Replace: "", Scope: domain.ScopeAll}},
		}),
	}

	result, _, err := newTestEngine().Apply(context.Background(), state, rules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Исходное состояние не затронуто
	if state.Sheets["Data"].Rows[1][1] != "$100" {
		t.Errorf("input state mutated: %q", state.Sheets["Data"].Rows[1][1])
	}
	rs, _ := result.ActiveSheet()
	if rs.Rows[1][1] != "100" {
		t.Errorf("expected replaced value, got %q", rs.Rows[1][1])
	}
}

func TestEngine_FailedRuleDiscardsPartialState(t *testing.T) {
	state := testState(t,
		"First", [][]string{{"a", "b"}, {"1", "2"}},
		"Second", [][]string{{"x"}, {"9"}},
	)

	rules := []domain.Rule{
		rule("r1", domain.RuleSelectWorksheet, &domain.SelectWorksheetParams{Value: "Second", Type: domain.SelectorByName}),
		// Второй rule падает: активный лист Second имеет 1 колонку
		rule("r2", domain.RuleValidateColumns, &domain.ValidateColumnsParams{NumOfColumns: 5, OnFailure: domain.FailureStop}),
	}

	_, log, err := newTestEngine().Apply(context.Background(), state, rules)
	if err == nil {
		t.Fatal("expected error")
	}

	var te *TransformError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransformError, got %T", err)
	}
	if te.RuleID != "r2" {
		t.Errorf("expected failing rule r2, got %s", te.RuleID)
	}
	if !strings.Contains(err.Error(), "expected 5 columns, got 1") {
		t.Errorf("error should name both counts: %v", err)
	}
	if len(log) == 0 {
		t.Error("partial log should be returned")
	}
}

func TestEngine_ContextCancelled(t *testing.T) {
	state := testState(t, "Data", [][]string{{"a"}, {"1"}})
	rules := []domain.Rule{
		rule("r1", domain.RuleSelectWorksheet, &domain.SelectWorksheetParams{Value: "Data", Type: domain.SelectorByName}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := newTestEngine().Apply(ctx, state, rules)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// --- SELECT_WORKSHEET ---

func TestSelectWorksheet_ByName(t *testing.T) {
	state := testState(t,
		"Alpha", [][]string{{"a"}},
		"Beta", [][]string{{"b"}},
	)

	rules := []domain.Rule{
		rule("r1", domain.RuleSelectWorksheet, &domain.SelectWorksheetParams{Value: "Beta", Type: domain.SelectorByName}),
	}

	result, _, err := newTestEngine().Apply(context.Background(), state, rules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	name, _ := result.ActiveSheetName()
	if name != "Beta" {
		t.Errorf("expected Beta, got %s", name)
	}
}

func TestSelectWorksheet_ByPatternCaseInsensitive(t *testing.T) {
	state := testState(t,
		"Summary", [][]string{{"a"}},
		"Raw Data 2024", [][]string{{"b"}},
	)

	rules := []domain.Rule{
		rule("r1", domain.RuleSelectWorksheet, &domain.SelectWorksheetParams{Value: "raw data", Type: domain.SelectorByPattern}),
	}

	result, _, err := newTestEngine().Apply(context.Background(), state, rules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	name, _ := result.ActiveSheetName()
	if name != "Raw Data 2024" {
		t.Errorf("expected Raw Data 2024, got %s", name)
	}
}

func TestSelectWorksheet_ByIndex(t *testing.T) {
	state := testState(t,
		"First", [][]string{{"a"}},
		"Second", [][]string{{"b"}},
		"Third", [][]string{{"c"}},
	)

	// Каждый существующий индекс находит лист
	for i, want := range []string{"First", "Second", "Third"} {
		rules := []domain.Rule{
			rule("r1", domain.RuleSelectWorksheet, &domain.SelectWorksheetParams{
				Value: []string{"0", "1", "2"}[i],
				Type:  domain.SelectorByIndex,
			}),
		}

		result, _, err := newTestEngine().Apply(context.Background(), state, rules)
		if err != nil {
			t.Fatalf("index %d: unexpected error: %v", i, err)
		}
		name, _ := result.ActiveSheetName()
		if name != want {
			t.Errorf("index %d: expected %s, got %s", i, want, name)
		}
	}
}

func TestSelectWorksheet_NoMatch(t *testing.T) {
	state := testState(t, "Data", [][]string{{"a"}})

	cases := []struct {
		name   string
		params *domain.SelectWorksheetParams
	}{
		{"name miss", &domain.SelectWorksheetParams{Value: "Missing", Type: domain.SelectorByName}},
		{"pattern miss", &domain.SelectWorksheetParams{Value: "^nope$", Type: domain.SelectorByPattern}},
		{"index out of range", &domain.SelectWorksheetParams{Value: "5", Type: domain.SelectorByIndex}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rules := []domain.Rule{rule("r1", domain.RuleSelectWorksheet, tc.params)}
			_, _, err := newTestEngine().Apply(context.Background(), state, rules)
			if err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

// --- VALIDATE_COLUMNS ---

func TestValidateColumns_NotifyAndContinue(t *testing.T) {
	for _, action := range []domain.FailureAction{domain.FailureNotify, domain.FailureContinue} {
		state := testState(t, "Data", [][]string{{"a", "b", "c"}, {"1", "2", "3"}})

		rules := []domain.Rule{
			rule("r1", domain.RuleValidateColumns, &domain.ValidateColumnsParams{NumOfColumns: 5, OnFailure: action}),
		}

		_, log, err := newTestEngine().Apply(context.Background(), state, rules)
		if err != nil {
			t.Fatalf("%s: mismatch should not fail job: %v", action, err)
		}

		found := false
		for _, line := range log {
			if strings.Contains(line, "expected 5") {
				found = true
			}
		}
		if !found {
			t.Errorf("%s: log should mention the mismatch", action)
		}
	}
}

func TestValidateColumns_Match(t *testing.T) {
	state := testState(t, "Data", [][]string{{"a", "b", "c"}, {"1", "2", "3"}})

	rules := []domain.Rule{
		rule("r1", domain.RuleValidateColumns, &domain.ValidateColumnsParams{NumOfColumns: 3, OnFailure: domain.FailureStop}),
	}

	if _, _, err := newTestEngine().Apply(context.Background(), state, rules); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// --- UNMERGE_AND_FILL ---

func TestUnmergeAndFill_Down(t *testing.T) {
	state := testState(t, "Data", [][]string{
		{"region", "sales"},
		{"North", "100"},
		{"", "200"},
		{"", "300"},
		{"South", "50"},
		{"", "75"},
	})

	rules := []domain.Rule{
		rule("r1", domain.RuleUnmergeAndFill, &domain.UnmergeAndFillParams{
			Columns:       []string{"region"},
			FillDirection: domain.FillDown,
		}),
	}

	result, _, err := newTestEngine().Apply(context.Background(), state, rules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sheet, _ := result.ActiveSheet()
	want := []string{"region", "North", "North", "North", "South", "South"}
	for i, w := range want {
		if sheet.Rows[i][0] != w {
			t.Errorf("row %d: expected %q, got %q", i, w, sheet.Rows[i][0])
		}
	}

	// После заполнения не остаётся пустых ячеек
	// между непустыми значениями колонки
	if result.Metadata.CellsFilled != 3 {
		t.Errorf("expected 3 filled cells, got %d", result.Metadata.CellsFilled)
	}
}

func TestUnmergeAndFill_Up(t *testing.T) {
	state := testState(t, "Data", [][]string{
		{"label"},
		{""},
		{"total"},
	})

	rules := []domain.Rule{
		rule("r1", domain.RuleUnmergeAndFill, &domain.UnmergeAndFillParams{
			Columns:       []string{"label"},
			FillDirection: domain.FillUp,
		}),
	}

	result, _, err := newTestEngine().Apply(context.Background(), state, rules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sheet, _ := result.ActiveSheet()
	if sheet.Rows[1][0] != "total" {
		t.Errorf("expected total filled up, got %q", sheet.Rows[1][0])
	}
	// Header не заполняется
	if sheet.Rows[0][0] != "label" {
		t.Errorf("header must stay, got %q", sheet.Rows[0][0])
	}
}

func TestUnmergeAndFill_UnknownColumn(t *testing.T) {
	state := testState(t, "Data", [][]string{{"a"}, {"1"}})

	rules := []domain.Rule{
		rule("r1", domain.RuleUnmergeAndFill, &domain.UnmergeAndFillParams{
			Columns:       []string{"missing"},
			FillDirection: domain.FillDown,
		}),
	}

	_, _, err := newTestEngine().Apply(context.Background(), state, rules)
	if err == nil {
		t.Fatal("expected error for unknown column")
	}
}

// --- DELETE_ROWS ---

func TestDeleteRows_Explicit(t *testing.T) {
	state := testState(t, "Data", [][]string{
		{"id"},
		{"1"},
		{"2"},
		{"3"},
		{"4"},
	})

	rules := []domain.Rule{
		rule("r1", domain.RuleDeleteRows, &domain.DeleteRowsParams{
			Method: domain.DeleteByRows,
			// 1-based номера строк листа: header — строка 1
			Rows: []int{2, 4},
		}),
	}

	result, _, err := newTestEngine().Apply(context.Background(), state, rules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sheet, _ := result.ActiveSheet()
	if sheet.RowCount() != 3 {
		t.Fatalf("expected 3 rows (header + 2 data), got %d", sheet.RowCount())
	}
	if sheet.Rows[1][0] != "2" || sheet.Rows[2][0] != "4" {
		t.Errorf("wrong rows survived: %v", sheet.Rows)
	}
	if result.Metadata.RowsDeleted != 2 {
		t.Errorf("expected RowsDeleted=2, got %d", result.Metadata.RowsDeleted)
	}
}

func TestDeleteRows_ConditionContains(t *testing.T) {
	state := testState(t, "Data", [][]string{
		{"name", "status"},
		{"one", "active"},
		{"two", "deleted"},
		{"three", "active"},
	})

	rules := []domain.Rule{
		rule("r1", domain.RuleDeleteRows, &domain.DeleteRowsParams{
			Method:    domain.DeleteByCondition,
			Condition: &domain.RowCondition{Type: domain.ConditionContains, Column: "status", Value: "deleted"},
		}),
	}

	result, _, err := newTestEngine().Apply(context.Background(), state, rules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sheet, _ := result.ActiveSheet()
	if sheet.RowCount() != 3 {
		t.Errorf("expected 3 rows (header + 2 data), got %d", sheet.RowCount())
	}
}

func TestDeleteRows_ConditionEmptyWholeRow(t *testing.T) {
	state := testState(t, "Data", [][]string{
		{"a", "b"},
		{"1", "2"},
		{"", ""},
		{"3", ""},
	})

	rules := []domain.Rule{
		rule("r1", domain.RuleDeleteRows, &domain.DeleteRowsParams{
			Method:    domain.DeleteByCondition,
			Condition: &domain.RowCondition{Type: domain.ConditionEmpty},
		}),
	}

	result, _, err := newTestEngine().Apply(context.Background(), state, rules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Только полностью пустая строка удалена
	sheet, _ := result.ActiveSheet()
	if sheet.RowCount() != 3 {
		t.Errorf("expected 3 rows (header + 2 data), got %d", sheet.RowCount())
	}
}

func TestDeleteRows_HeaderNeverDeleted(t *testing.T) {
	state := testState(t, "Data", [][]string{
		{"contains nope"},
		{"contains nope"},
	})

	rules := []domain.Rule{
		rule("r1", domain.RuleDeleteRows, &domain.DeleteRowsParams{
			Method:    domain.DeleteByCondition,
			Condition: &domain.RowCondition{Type: domain.ConditionContains, Value: "nope"},
		}),
	}

	result, _, err := newTestEngine().Apply(context.Background(), state, rules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sheet, _ := result.ActiveSheet()
	if len(sheet.Rows) != 1 {
		t.Fatalf("expected header only, got %d rows", len(sheet.Rows))
	}
	if sheet.Rows[0][0] != "contains nope" {
		t.Error("header row must survive even when it matches the condition")
	}
}

// --- DELETE_COLUMNS ---

func TestDeleteColumns_ByHeaderName(t *testing.T) {
	state := testState(t, "Data", [][]string{
		{"keep", "drop", "also"},
		{"1", "x", "2"},
	})

	rules := []domain.Rule{
		rule("r1", domain.RuleDeleteColumns, &domain.DeleteColumnsParams{Columns: []string{"drop"}}),
	}

	result, _, err := newTestEngine().Apply(context.Background(), state, rules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sheet, _ := result.ActiveSheet()
	if sheet.ColumnCount() != 2 {
		t.Fatalf("expected 2 columns, got %d", sheet.ColumnCount())
	}
	if sheet.Rows[0][0] != "keep" || sheet.Rows[0][1] != "also" {
		t.Errorf("wrong columns survived: %v", sheet.Rows[0])
	}
	if sheet.Rows[1][1] != "2" {
		t.Errorf("data shifted incorrectly: %v", sheet.Rows[1])
	}
}

func TestDeleteColumns_ByLetter(t *testing.T) {
	// Колонка "B" без header'а с таким именем трактуется как буква
	state := testState(t, "Data", [][]string{
		{"first", "second", "third"},
		{"1", "2", "3"},
	})

	rules := []domain.Rule{
		rule("r1", domain.RuleDeleteColumns, &domain.DeleteColumnsParams{Columns: []string{"B"}}),
	}

	result, _, err := newTestEngine().Apply(context.Background(), state, rules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sheet, _ := result.ActiveSheet()
	if sheet.Rows[0][0] != "first" || sheet.Rows[0][1] != "third" {
		t.Errorf("expected second column removed, got %v", sheet.Rows[0])
	}
}

func TestDeleteColumns_IndicesResolvedBeforeRemoval(t *testing.T) {
	// Оба имени резолвятся по исходному header'у: удаление одной
	// колонки не сдвигает индекс другой
	state := testState(t, "Data", [][]string{
		{"a", "b", "c", "d"},
		{"1", "2", "3", "4"},
	})

	rules := []domain.Rule{
		rule("r1", domain.RuleDeleteColumns, &domain.DeleteColumnsParams{Columns: []string{"a", "c"}}),
	}

	result, _, err := newTestEngine().Apply(context.Background(), state, rules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sheet, _ := result.ActiveSheet()
	if sheet.Rows[0][0] != "b" || sheet.Rows[0][1] != "d" {
		t.Errorf("expected [b d], got %v", sheet.Rows[0])
	}
	if sheet.Rows[1][0] != "2" || sheet.Rows[1][1] != "4" {
		t.Errorf("expected [2 4], got %v", sheet.Rows[1])
	}
}

// --- COMBINE_WORKSHEETS ---

func TestCombineWorksheets_Append(t *testing.T) {
	state := testState(t,
		"Jan", [][]string{{"id", "amount"}, {"1", "10"}},
		"Feb", [][]string{{"id", "amount"}, {"2", "20"}, {"3", "30"}},
	)

	rules := []domain.Rule{
		rule("r1", domain.RuleCombineWorksheets, &domain.CombineWorksheetsParams{
			SourceSheets: []string{"Jan", "Feb"},
			Operation:    domain.CombineAppend,
		}),
	}

	result, _, err := newTestEngine().Apply(context.Background(), state, rules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Комбинированный лист становится активным
	sheet, err := result.ActiveSheet()
	if err != nil {
		t.Fatal(err)
	}
	if sheet.RowCount() != 4 {
		t.Errorf("expected 4 rows (header + 3 data), got %d", sheet.RowCount())
	}
	// Исходные листы не тронуты
	if len(result.Sheets["Jan"].Rows) != 2 {
		t.Error("source sheet Jan should be intact")
	}
}

func TestCombineWorksheets_MergeUnionHeaders(t *testing.T) {
	state := testState(t,
		"A", [][]string{{"id", "name"}, {"1", "one"}},
		"B", [][]string{{"id", "price"}, {"2", "9.99"}},
	)

	rules := []domain.Rule{
		rule("r1", domain.RuleCombineWorksheets, &domain.CombineWorksheetsParams{
			SourceSheets: []string{"A", "B"},
			Operation:    domain.CombineMerge,
		}),
	}

	result, _, err := newTestEngine().Apply(context.Background(), state, rules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sheet, _ := result.ActiveSheet()
	header := sheet.Header()
	if len(header) != 3 {
		t.Fatalf("expected union of 3 headers, got %v", header)
	}
	// Порядок первого появления: id, name, price
	if header[0] != "id" || header[1] != "name" || header[2] != "price" {
		t.Errorf("wrong header order: %v", header)
	}
	// Недостающие ячейки пустые
	if sheet.Rows[1][2] != "" {
		t.Errorf("row from A should have empty price, got %q", sheet.Rows[1][2])
	}
	if sheet.Rows[2][1] != "" {
		t.Errorf("row from B should have empty name, got %q", sheet.Rows[2][1])
	}
}

func TestCombineWorksheets_MissingSource(t *testing.T) {
	state := testState(t, "Only", [][]string{{"a"}})

	rules := []domain.Rule{
		rule("r1", domain.RuleCombineWorksheets, &domain.CombineWorksheetsParams{
			SourceSheets: []string{"Only", "Missing"},
			Operation:    domain.CombineAppend,
		}),
	}

	_, _, err := newTestEngine().Apply(context.Background(), state, rules)
	if !errors.Is(err, ErrSourceSheetMissing) {
		t.Errorf("expected ErrSourceSheetMissing, got %v", err)
	}
}

// --- REPLACE_CHARACTERS ---

func TestReplaceCharacters_ScopeColumns(t *testing.T) {
	state := testState(t, "Data", [][]string{
		{"price", "note"},
		{"$100", "$ kept"},
	})

	rules := []domain.Rule{
		rule("r1", domain.RuleReplaceCharacters, &domain.ReplaceCharactersParams{
			Replacements: []domain.Replacement{
				{Find: "$", Replace: "", Scope: domain.ScopeColumns, Columns: []string{"price"}},
			},
		}),
	}

	result, _, err := newTestEngine().Apply(context.Background(), state, rules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sheet, _ := result.ActiveSheet()
	if sheet.Rows[1][0] != "100" {
		t.Errorf("price should be replaced, got %q", sheet.Rows[1][0])
	}
	if sheet.Rows[1][1] != "$ kept" {
		t.Errorf("note should be untouched, got %q", sheet.Rows[1][1])
	}
}

func TestReplaceCharacters_ScopeRows(t *testing.T) {
	state := testState(t, "Data", [][]string{
		{"v"},
		{"x-1"},
		{"x-2"},
	})

	rules := []domain.Rule{
		rule("r1", domain.RuleReplaceCharacters, &domain.ReplaceCharactersParams{
			Replacements: []domain.Replacement{
				// 1-based номер строки листа: header — строка 1,
				// строка 2 — первая строка данных ("x-1")
				{Find: "x", Replace: "y", Scope: domain.ScopeRows, Rows: []int{2}},
			},
		}),
	}

	result, _, err := newTestEngine().Apply(context.Background(), state, rules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sheet, _ := result.ActiveSheet()
	if sheet.Rows[1][0] != "y-1" {
		t.Errorf("sheet row 2 should be replaced, got %q", sheet.Rows[1][0])
	}
	if sheet.Rows[2][0] != "x-2" {
		t.Errorf("sheet row 3 should be untouched, got %q", sheet.Rows[2][0])
	}
}

func TestReplaceCharacters_LiteralNotRegex(t *testing.T) {
	state := testState(t, "Data", [][]string{
		{"v"},
		{"a.c"},
		{"abc"},
	})

	rules := []domain.Rule{
		rule("r1", domain.RuleReplaceCharacters, &domain.ReplaceCharactersParams{
			Replacements: []domain.Replacement{
				{Find: "a.c", Replace: "X", Scope: domain.ScopeAll},
			},
		}),
	}

	result, _, err := newTestEngine().Apply(context.Background(), state, rules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sheet, _ := result.ActiveSheet()
	if sheet.Rows[1][0] != "X" {
		t.Errorf("literal match should be replaced, got %q", sheet.Rows[1][0])
	}
	if sheet.Rows[2][0] != "abc" {
		t.Errorf("find is literal, not regex: got %q", sheet.Rows[2][0])
	}
}

// --- EVALUATE_FORMULAS ---

func TestEvaluateFormulas_SetsFlag(t *testing.T) {
	state := testState(t, "Data", [][]string{{"a"}, {"1"}})

	rules := []domain.Rule{
		rule("r1", domain.RuleEvaluateFormulas, &domain.EvaluateFormulasParams{Enabled: true}),
	}

	result, _, err := newTestEngine().Apply(context.Background(), state, rules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Metadata.EvaluateFormulas {
		t.Error("EvaluateFormulas flag should be set")
	}
	if result.Metadata.RulesApplied != 1 {
		t.Errorf("expected RulesApplied=1, got %d", result.Metadata.RulesApplied)
	}
}

// --- Full pipeline scenario ---

func TestEngine_FullScenario(t *testing.T) {
	state := testState(t,
		"Summary", [][]string{{"ignore"}},
		"Sales", [][]string{
			{"region", "product", "amount", "internal"},
			{"North", "widget", "$1,000", "x"},
			{"", "gadget", "$2,500", "x"},
			{"South", "widget", "$500", "x"},
			{"", "", "", ""},
		},
	)

	rules := []domain.Rule{
		rule("r1", domain.RuleSelectWorksheet, &domain.SelectWorksheetParams{Value: "Sales", Type: domain.SelectorByName}),
		rule("r2", domain.RuleValidateColumns, &domain.ValidateColumnsParams{NumOfColumns: 4, OnFailure: domain.FailureStop}),
		rule("r3", domain.RuleUnmergeAndFill, &domain.UnmergeAndFillParams{Columns: []string{"region"}, FillDirection: domain.FillDown}),
		rule("r4", domain.RuleDeleteRows, &domain.DeleteRowsParams{
			Method:    domain.DeleteByCondition,
			Condition: &domain.RowCondition{Type: domain.ConditionEmpty, Column: "product"},
		}),
		rule("r5", domain.RuleDeleteColumns, &domain.DeleteColumnsParams{Columns: []string{"internal"}}),
		rule("r6", domain.RuleReplaceCharacters, &domain.ReplaceCharactersParams{
			Replacements: []domain.Replacement{
				{Find: "$", Replace: "", Scope: domain.ScopeColumns, Columns: []string{"amount"}},
				{Find: ",", Replace: "", Scope: domain.ScopeColumns, Columns: []string{"amount"}},
			},
		}),
	}

	result, log, err := newTestEngine().Apply(context.Background(), state, rules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sheet, _ := result.ActiveSheet()
	if sheet.ColumnCount() != 3 {
		t.Errorf("expected 3 columns after delete, got %d", sheet.ColumnCount())
	}
	if sheet.RowCount() != 4 {
		t.Errorf("expected 4 rows (header + 3 data), got %d", sheet.RowCount())
	}
	if sheet.Rows[2][0] != "North" {
		t.Errorf("fill-down lost: %v", sheet.Rows[2])
	}
	if sheet.Rows[1][2] != "1000" {
		t.Errorf("amount not cleaned: %q", sheet.Rows[1][2])
	}
	if result.Metadata.RulesApplied != 6 {
		t.Errorf("expected 6 rules applied, got %d", result.Metadata.RulesApplied)
	}
	if len(log) < 8 {
		t.Errorf("log should trace every rule, got %d lines", len(log))
	}
}
