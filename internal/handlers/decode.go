package handlers

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"catalog-import-service/internal/models"
)

// preferredSheet is used when a workbook has it; otherwise the first sheet
const preferredSheet = "Catalog"

var (
	errEmptyFile   = errors.New("file has no header row")
	errNoDataRows  = errors.New("file must have a header row and at least one data row")
	errTooManyRows = errors.New("file exceeds the maximum number of rows")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodedSheet is a spreadsheet reduced to headers and raw rows. Row indexes
// are spreadsheet line numbers, so the header is line 1 and data starts at 2.
type DecodedSheet struct {
	Format    models.ImportFormat
	SheetName string
	Headers   []string
	Rows      []models.RawRow
}

// DecodeCSV reads a CSV upload. encoding is "utf-8", "windows-1252" or
// "auto"; auto falls back to Windows-1252 only when the bytes are not valid
// UTF-8. The delimiter is ';' when the header line has more semicolons than
// commas.
func DecodeCSV(r io.Reader, encoding string, maxRows int) (*DecodedSheet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	useLatin := encoding == "windows-1252" || (encoding != "utf-8" && !utf8.Valid(data))
	if useLatin {
		decoded, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode Windows-1252 CSV: %w", err)
		}
		data = decoded
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = detectDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	// csv.Reader skips empty lines and joins quoted multi-line cells, so the
	// record position is not the line number
	var records [][]string
	var lines []int
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV: %w", err)
		}
		line, _ := reader.FieldPos(0)
		records = append(records, record)
		lines = append(lines, line)
	}

	sheet, err := buildSheet(records, lines, maxRows)
	if err != nil {
		return nil, err
	}
	sheet.Format = models.ImportFormatCSV
	return sheet, nil
}

// DecodeXLSX reads a workbook. sheetName selects a sheet explicitly; when
// empty the "Catalog" sheet is preferred, then the first one. Cells are read
// raw so dates arrive as Excel serials rather than locale-formatted text.
func DecodeXLSX(r io.Reader, sheetName string, maxRows int) (*DecodedSheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets found in Excel file")
	}

	selected := ""
	if sheetName != "" {
		for _, name := range sheets {
			if strings.EqualFold(name, sheetName) {
				selected = name
				break
			}
		}
		if selected == "" {
			return nil, fmt.Errorf("sheet %q not found", sheetName)
		}
	} else {
		selected = sheets[0]
		for _, name := range sheets {
			if strings.EqualFold(name, preferredSheet) {
				selected = name
				break
			}
		}
	}

	records, err := f.GetRows(selected, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}

	// GetRows keeps empty rows inside the used range, so position is the row number
	lines := make([]int, len(records))
	for i := range records {
		lines[i] = i + 1
	}

	sheet, err := buildSheet(records, lines, maxRows)
	if err != nil {
		return nil, err
	}
	sheet.Format = models.ImportFormatXLSX
	sheet.SheetName = selected
	return sheet, nil
}

func detectDelimiter(data []byte) rune {
	firstLine := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		firstLine = data[:i]
	}
	if bytes.Count(firstLine, []byte{';'}) > bytes.Count(firstLine, []byte{','}) {
		return ';'
	}
	return ','
}

// buildSheet turns records into headers and rows. lines[i] is the line on
// which records[i] starts. Blank records are skipped; cells beyond the header
// width are dropped.
func buildSheet(records [][]string, lines []int, maxRows int) (*DecodedSheet, error) {
	if len(records) == 0 {
		return nil, errEmptyFile
	}

	headers := normalizeHeaders(records[0])
	if len(headers) == 0 {
		return nil, errEmptyFile
	}

	rows := make([]models.RawRow, 0, len(records)-1)
	for i, record := range records[1:] {
		if isBlank(record) {
			continue
		}
		if maxRows > 0 && len(rows) >= maxRows {
			return nil, fmt.Errorf("%w (%d)", errTooManyRows, maxRows)
		}

		data := make(map[string]any, len(headers))
		for col, header := range headers {
			if col < len(record) {
				data[header] = strings.TrimSpace(record[col])
			} else {
				data[header] = nil
			}
		}
		rows = append(rows, models.RawRow{RowIndex: lines[i+1], RawData: data})
	}
	if len(rows) == 0 {
		return nil, errNoDataRows
	}

	return &DecodedSheet{Headers: headers, Rows: rows}, nil
}

// normalizeHeaders trims header cells, names blank ones after their column
// letter and suffixes repeats so every header is a unique key
func normalizeHeaders(raw []string) []string {
	last := len(raw)
	for last > 0 && strings.TrimSpace(raw[last-1]) == "" {
		last--
	}

	headers := make([]string, 0, last)
	used := make(map[string]bool, last)
	for i := 0; i < last; i++ {
		h := strings.TrimSpace(raw[i])
		if h == "" {
			col, _ := excelize.ColumnNumberToName(i + 1)
			h = "Column " + col
		}
		name := h
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("%s (%d)", h, n)
		}
		used[name] = true
		headers = append(headers, name)
	}
	return headers
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
