package workbook

import "errors"

// Ошибки пакета workbook.
var (
	// ErrEmptyWorkbook — в workbook нет ни одного листа.
	ErrEmptyWorkbook = errors.New("workbook has no sheets")

	// ErrSheetNotFound — лист не найден.
	ErrSheetNotFound = errors.New("sheet not found")

	// ErrColumnNotFound — колонка не найдена ни по header, ни по букве.
	ErrColumnNotFound = errors.New("column not found")

	// ErrUnsupportedFormat — формат файла не поддерживается.
	ErrUnsupportedFormat = errors.New("unsupported file format")
)
