package workbook

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Decode декодирует входной файл в State.
//
// Поддерживаются .xlsx/.xlsm (excelize) и .csv.
// evaluateFormulas — вычислять ли формулы при чтении значений ячеек
// (флаг приходит из правила EVALUATE_FORMULAS, применённого API-слоем
// к конфигурации, либо из options сообщения очереди).
func Decode(data []byte, fileName string, evaluateFormulas bool) (*State, error) {
	switch ext := strings.ToLower(filepath.Ext(fileName)); ext {
	case ".xlsx", ".xlsm":
		return decodeExcel(data, evaluateFormulas)
	case ".csv":
		return decodeCSV(data, fileName)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// decodeExcel читает xlsx через excelize, лист за листом.
func decodeExcel(data []byte, evaluateFormulas bool) (*State, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	state := NewState()
	state.Metadata.EvaluateFormulas = evaluateFormulas

	for _, sheetName := range f.GetSheetList() {
		rows, err := readSheet(f, sheetName, evaluateFormulas)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheetName, err)
		}
		state.AddSheet(sheetName, &Sheet{Rows: rows})
	}

	if len(state.Sheets) == 0 {
		return nil, ErrEmptyWorkbook
	}
	return state, nil
}

// readSheet читает все строки листа.
// Строки выравниваются по ширине header'а, чтобы grid был прямоугольным.
func readSheet(f *excelize.File, sheetName string, evaluateFormulas bool) ([][]string, error) {
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, err
	}

	width := 0
	if len(rows) > 0 {
		width = len(rows[0])
	}

	out := make([][]string, len(rows))
	for i, row := range rows {
		padded := make([]string, max(width, len(row)))
		copy(padded, row)
		out[i] = padded
	}

	if evaluateFormulas {
		if err := evaluateSheetFormulas(f, sheetName, out); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// evaluateSheetFormulas заменяет значения formula-ячеек на вычисленные.
func evaluateSheetFormulas(f *excelize.File, sheetName string, rows [][]string) error {
	for rowIdx := range rows {
		for colIdx := range rows[rowIdx] {
			cellName, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+1)
			if err != nil {
				return err
			}
			formula, err := f.GetCellFormula(sheetName, cellName)
			if err != nil || formula == "" {
				continue
			}
			value, err := f.CalcCellValue(sheetName, cellName)
			if err != nil {
				// Невычислимая формула — оставляем raw-значение
				continue
			}
			rows[rowIdx][colIdx] = value
		}
	}
	return nil
}

// decodeCSV читает CSV как workbook с единственным листом.
// Имя листа — базовое имя файла без расширения.
func decodeCSV(data []byte, fileName string) (*State, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1 // разрешаем рваные строки, выравниваем сами

	var rows [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		rows = append(rows, record)
	}

	width := 0
	if len(rows) > 0 {
		width = len(rows[0])
	}
	for i, row := range rows {
		if len(row) < width {
			padded := make([]string, width)
			copy(padded, row)
			rows[i] = padded
		}
	}

	sheetName := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	if sheetName == "" {
		sheetName = "Sheet1"
	}

	state := NewState()
	state.AddSheet(sheetName, &Sheet{Rows: rows})
	return state, nil
}
