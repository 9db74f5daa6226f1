// Package workbook содержит in-memory представление spreadsheet-документа
// и кодеки для входных/выходных форматов.
package workbook

import (
	"fmt"
	"strings"

	"github.com/tiendc/go-deepcopy"
)

// Sheet — один лист: 2D grid ячеек.
// Первая строка (если есть) трактуется как header.
type Sheet struct {
	// Rows — строки листа. Rows[0] — header.
	Rows [][]string `json:"rows"`
}

// Metadata — счётчики действий, выполненных над workbook.
type Metadata struct {
	RulesApplied     int  `json:"rules_applied"`
	RowsDeleted      int  `json:"rows_deleted"`
	CellsFilled      int  `json:"cells_filled"`
	CellsReplaced    int  `json:"cells_replaced"`
	EvaluateFormulas bool `json:"evaluate_formulas"`
}

// State — состояние workbook, протягиваемое через fold правил.
//
// Инварианты:
//   - SelectedSheet, если установлен, существует в Sheets
//   - History только растёт (append-only)
//
// Правила никогда не мутируют полученный State — каждое правило
// работает с копией (Clone) и возвращает новое состояние. Это
// исключает aliasing между правилами.
type State struct {
	// Sheets — листы по имени.
	Sheets map[string]*Sheet `json:"sheets"`

	// Order — имена листов в порядке исходного файла.
	// "Первый лист" в семантике правил — Order[0].
	Order []string `json:"order"`

	// SelectedSheet — активный лист. Пустая строка — не выбран.
	SelectedSheet string `json:"selected_sheet,omitempty"`

	// History — упорядоченный список имён листов, которых касались правила.
	History []string `json:"history,omitempty"`

	// Metadata — счётчики действий.
	Metadata Metadata `json:"metadata"`
}

// NewState создаёт пустое состояние.
func NewState() *State {
	return &State{Sheets: make(map[string]*Sheet)}
}

// Clone возвращает глубокую копию состояния.
func (s *State) Clone() *State {
	var out State
	if err := deepcopy.Copy(&out, s); err != nil {
		panic(fmt.Sprintf("workbook: clone state: %v", err))
	}
	if out.Sheets == nil {
		out.Sheets = make(map[string]*Sheet)
	}
	return &out
}

// Select устанавливает активный лист и фиксирует его в history.
func (s *State) Select(name string) error {
	if _, ok := s.Sheets[name]; !ok {
		return fmt.Errorf("%w: %q", ErrSheetNotFound, name)
	}
	s.SelectedSheet = name
	s.History = append(s.History, name)
	return nil
}

// ActiveSheetName возвращает имя активного листа.
// Если лист не выбирался — первый лист исходного файла.
func (s *State) ActiveSheetName() (string, error) {
	if s.SelectedSheet != "" {
		return s.SelectedSheet, nil
	}
	names := s.SheetNames()
	if len(names) == 0 {
		return "", ErrEmptyWorkbook
	}
	return names[0], nil
}

// ActiveSheet возвращает активный лист.
func (s *State) ActiveSheet() (*Sheet, error) {
	name, err := s.ActiveSheetName()
	if err != nil {
		return nil, err
	}
	sheet, ok := s.Sheets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, name)
	}
	return sheet, nil
}

// SheetNames возвращает имена листов в порядке исходного файла.
func (s *State) SheetNames() []string {
	names := make([]string, len(s.Order))
	copy(names, s.Order)
	return names
}

// AddSheet добавляет лист под уникальным именем.
// При конфликте к базовому имени добавляется числовой суффикс.
// Возвращает фактическое имя.
func (s *State) AddSheet(baseName string, sheet *Sheet) string {
	name := baseName
	for i := 2; ; i++ {
		if _, exists := s.Sheets[name]; !exists {
			break
		}
		name = fmt.Sprintf("%s_%d", baseName, i)
	}
	s.Sheets[name] = sheet
	s.Order = append(s.Order, name)
	return name
}

// Header возвращает header-строку листа (nil для пустого листа).
func (sh *Sheet) Header() []string {
	if len(sh.Rows) == 0 {
		return nil
	}
	return sh.Rows[0]
}

// ColumnCount возвращает количество колонок (по header-строке).
func (sh *Sheet) ColumnCount() int {
	return len(sh.Header())
}

// RowCount возвращает количество строк, включая header.
func (sh *Sheet) RowCount() int {
	return len(sh.Rows)
}

// Cell возвращает значение ячейки или пустую строку за границами grid'а.
func (sh *Sheet) Cell(row, col int) string {
	if row < 0 || row >= len(sh.Rows) {
		return ""
	}
	if col < 0 || col >= len(sh.Rows[row]) {
		return ""
	}
	return sh.Rows[row][col]
}

// SetCell записывает значение, расширяя строку при необходимости.
func (sh *Sheet) SetCell(row, col int, value string) {
	if row < 0 || row >= len(sh.Rows) || col < 0 {
		return
	}
	for len(sh.Rows[row]) <= col {
		sh.Rows[row] = append(sh.Rows[row], "")
	}
	sh.Rows[row][col] = value
}

// ColumnIndex разрешает имя колонки в 0-based индекс.
//
// Сначала ищется case-insensitive совпадение с header,
// затем имя трактуется как буква колонки (A, B, ..., AA).
func (sh *Sheet) ColumnIndex(name string) (int, error) {
	header := sh.Header()
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), strings.TrimSpace(name)) {
			return i, nil
		}
	}

	if idx, ok := letterToIndex(name); ok && idx < len(header) {
		return idx, nil
	}

	return 0, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
}

// letterToIndex конвертирует букву колонки (A=0, B=1, ..., AA=26) в индекс.
func letterToIndex(name string) (int, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return 0, false
	}
	idx := 0
	for _, r := range name {
		if r < 'A' || r > 'Z' {
			return 0, false
		}
		idx = idx*26 + int(r-'A') + 1
	}
	return idx - 1, true
}
