package workbook

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/khyo-labs/mutate/internal/domain"
)

// --- Decode Tests ---

func TestDecode_CSV(t *testing.T) {
	data := []byte("id,name,amount\n1,alpha,100\n2,beta,200\n")

	state, err := Decode(data, "report.csv", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(state.Order) != 1 || state.Order[0] != "report" {
		t.Errorf("sheet should be named from file base, got %v", state.Order)
	}
	sheet := state.Sheets["report"]
	if sheet.RowCount() != 3 {
		t.Fatalf("rows = %d", sheet.RowCount())
	}
	if sheet.Cell(2, 1) != "beta" {
		t.Errorf("cell(2,1) = %q", sheet.Cell(2, 1))
	}
}

func TestDecode_CSVRaggedRowsPadded(t *testing.T) {
	data := []byte("a,b,c\n1\n2,3\n")

	state, err := Decode(data, "ragged.csv", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sheet := state.Sheets["ragged"]
	for i, row := range sheet.Rows {
		if len(row) != 3 {
			t.Errorf("row %d not padded to header width: %v", i, row)
		}
	}
}

func TestDecode_UnsupportedExtension(t *testing.T) {
	_, err := Decode([]byte("data"), "doc.pdf", false)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestDecode_XLSXRoundTrip(t *testing.T) {
	original := NewState()
	original.AddSheet("Orders", &Sheet{Rows: [][]string{
		{"id", "total"},
		{"1", "10.50"},
		{"2", "99"},
	}})

	data, err := Encode(original, domain.OutputFormatXLSX)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := Decode(data, "orders.xlsx", false)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(decoded.Order) != 1 || decoded.Order[0] != "Orders" {
		t.Fatalf("sheets = %v", decoded.Order)
	}
	sheet := decoded.Sheets["Orders"]
	if sheet.RowCount() != 3 {
		t.Fatalf("rows = %d: %v", sheet.RowCount(), sheet.Rows)
	}
	if sheet.Cell(1, 1) != "10.50" || sheet.Cell(2, 0) != "2" {
		t.Errorf("cells lost in round trip: %v", sheet.Rows)
	}
}

// --- Encode Tests ---

func TestEncode_CSV(t *testing.T) {
	state := NewState()
	state.AddSheet("Data", &Sheet{Rows: [][]string{
		{"a", "b"},
		{"1", "two, with comma"},
	}})

	data, err := Encode(state, domain.OutputFormatCSV)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := string(data)
	if !strings.Contains(got, `"two, with comma"`) {
		t.Errorf("comma not quoted: %q", got)
	}
	if !strings.HasPrefix(got, "a,b\n") {
		t.Errorf("header missing: %q", got)
	}
}

func TestEncode_JSON(t *testing.T) {
	state := NewState()
	state.AddSheet("Data", &Sheet{Rows: [][]string{
		{"id", "name"},
		{"1", "alpha"},
		{"2", "beta"},
	}})

	data, err := Encode(state, domain.OutputFormatJSON)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var records []map[string]string
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("output is not valid json: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d", len(records))
	}
	if records[0]["id"] != "1" || records[1]["name"] != "beta" {
		t.Errorf("records = %v", records)
	}
}

func TestEncode_JSONHeaderOnly(t *testing.T) {
	state := NewState()
	state.AddSheet("Data", &Sheet{Rows: [][]string{{"id", "name"}}})

	data, err := Encode(state, domain.OutputFormatJSON)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(string(data)) != "[]" {
		t.Errorf("header-only sheet should encode as empty array, got %q", data)
	}
}

func TestEncode_UsesSelectedSheet(t *testing.T) {
	state := NewState()
	state.AddSheet("First", &Sheet{Rows: [][]string{{"a"}, {"1"}}})
	state.AddSheet("Second", &Sheet{Rows: [][]string{{"b"}, {"2"}}})
	if err := state.Select("Second"); err != nil {
		t.Fatal(err)
	}

	data, err := Encode(state, domain.OutputFormatCSV)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(string(data), "b\n") {
		t.Errorf("selected sheet not encoded: %q", data)
	}
}

func TestEncode_EmptyWorkbook(t *testing.T) {
	if _, err := Encode(NewState(), domain.OutputFormatCSV); !errors.Is(err, ErrEmptyWorkbook) {
		t.Errorf("expected ErrEmptyWorkbook, got %v", err)
	}
}

func TestContentTypeAndExtension(t *testing.T) {
	if got := ContentType(domain.OutputFormatCSV); got != "text/csv" {
		t.Errorf("csv content type = %q", got)
	}
	if got := Extension(domain.OutputFormatXLSX); got != ".xlsx" {
		t.Errorf("xlsx extension = %q", got)
	}
	if got := ContentType("weird"); got != "application/octet-stream" {
		t.Errorf("unknown content type = %q", got)
	}
}
