package workbook

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/khyo-labs/mutate/internal/domain"
)

// Encode сериализует активный лист состояния в указанный формат.
//
// Сериализуется лист, названный SelectedSheet, либо первый лист,
// если ни одно правило лист не выбирало.
func Encode(state *State, format domain.OutputFormat) ([]byte, error) {
	sheet, err := state.ActiveSheet()
	if err != nil {
		return nil, err
	}

	switch format {
	case domain.OutputFormatCSV:
		return encodeCSV(sheet)
	case domain.OutputFormatJSON:
		return encodeJSON(sheet)
	case domain.OutputFormatXLSX:
		name, _ := state.ActiveSheetName()
		return encodeXLSX(sheet, name)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// ContentType возвращает MIME-тип для формата.
func ContentType(format domain.OutputFormat) string {
	switch format {
	case domain.OutputFormatCSV:
		return "text/csv"
	case domain.OutputFormatJSON:
		return "application/json"
	case domain.OutputFormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

// Extension возвращает расширение файла для формата.
func Extension(format domain.OutputFormat) string {
	switch format {
	case domain.OutputFormatCSV:
		return ".csv"
	case domain.OutputFormatJSON:
		return ".json"
	case domain.OutputFormatXLSX:
		return ".xlsx"
	default:
		return ".bin"
	}
}

func encodeCSV(sheet *Sheet) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, row := range sheet.Rows {
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// encodeJSON кодирует лист как массив объектов, ключи — header-строка.
func encodeJSON(sheet *Sheet) ([]byte, error) {
	header := sheet.Header()
	records := make([]map[string]string, 0, max(0, len(sheet.Rows)-1))

	for i := 1; i < len(sheet.Rows); i++ {
		record := make(map[string]string, len(header))
		for j, key := range header {
			record[key] = sheet.Cell(i, j)
		}
		records = append(records, record)
	}

	return json.MarshalIndent(records, "", "  ")
}

func encodeXLSX(sheet *Sheet, sheetName string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if sheetName == "" {
		sheetName = "Sheet1"
	}

	// Переименовываем дефолтный лист
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("set sheet name: %w", err)
	}

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return nil, fmt.Errorf("new stream writer: %w", err)
	}

	for i, row := range sheet.Rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := sw.SetRow(cellName, values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return nil, fmt.Errorf("flush stream writer: %w", err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
