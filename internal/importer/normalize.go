// Package importer holds the pure, storage-free steps of a catalog import:
// value cleaning, column mapping and consolidation of duplicate lot rows.
package importer

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/unicode/norm"
)

// ISODate is the canonical layout for normalized dates
const ISODate = "2006-01-02"

// Day-first numeric layouts come before month-name layouts. No two-digit years.
var dateLayouts = []string{
	ISODate,
	"2006/01/02",
	"2006.01.02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"02.01.2006",
	"2.1.2006",
	"20060102",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02/01/2006 15:04:05",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// Excel stores dates as days since 1899-12-30. Serials below 1950-01-01 are
// read as plain numbers, not dates; anything past 9999-12-31 is not a date.
const (
	minExcelSerial = 18264
	maxExcelSerial = 2958465
)

var (
	priceStrip       = regexp.MustCompile(`[^0-9.,]`)
	thousandsGrouped = regexp.MustCompile(`^\d{1,3}([.,]\d{3})+$`)
	leadingInt       = regexp.MustCompile(`^[+-]?\d+`)
	excelSerial      = regexp.MustCompile(`^\d{1,7}(\.\d+)?$`)
)

// CleanPrice turns a free-form price cell into a non-negative number.
// Everything except digits, '.' and ',' is dropped. When both separators are
// present the right-most one is the decimal mark; a lone ',' followed by one
// or two digits is a decimal comma. Unparseable input yields 0.
func CleanPrice(raw string) float64 {
	s := priceStrip.ReplaceAllString(raw, "")
	if s == "" {
		return 0
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		s = normalizeSingleSeparator(s, ",")
	case lastDot >= 0 && strings.Count(s, ".") > 1:
		s = normalizeSingleSeparator(s, ".")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// normalizeSingleSeparator handles strings that only use sep. Thousands
// grouping ("1,234" or "1.234.567") is removed; a single sep with a short
// fraction becomes a decimal point.
func normalizeSingleSeparator(s, sep string) string {
	if strings.Count(s, sep) > 1 {
		if thousandsGrouped.MatchString(s) {
			return strings.ReplaceAll(s, sep, "")
		}
		return s
	}
	frac := len(s) - strings.Index(s, sep) - 1
	if sep == "," && frac >= 1 && frac <= 2 {
		return strings.Replace(s, ",", ".", 1)
	}
	if frac == 3 && thousandsGrouped.MatchString(s) {
		return strings.ReplaceAll(s, sep, "")
	}
	if sep == "," {
		return strings.Replace(s, ",", ".", 1)
	}
	return s
}

// NormalizeDate parses an expiry cell and returns it as YYYY-MM-DD, or nil
// when the cell is empty or not a real calendar date.
func NormalizeDate(raw string) *string {
	t, ok := ParseDate(raw)
	if !ok {
		return nil
	}
	iso := t.Format(ISODate)
	return &iso
}

// ParseDate is NormalizeDate without the formatting step
func ParseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return dateOnly(t), true
		}
	}

	if excelSerial.MatchString(s) {
		serial, err := strconv.ParseFloat(s, 64)
		if err == nil && serial >= minExcelSerial && serial <= maxExcelSerial {
			if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
				return dateOnly(t), true
			}
		}
	}

	return time.Time{}, false
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseQuantity reads the leading integer of a quantity cell ("12 cajas" is 12,
// "3.7" is 3). Separators follow CleanPrice: a lone '.' is a decimal point
// ("1.500" is 1), while "1,500" and "1.234.567" are thousands grouping.
// Anything else is 0.
func ParseQuantity(raw string) int {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}
	if thousandsGrouped.MatchString(s) && !loneDot(s) {
		s = strings.NewReplacer(",", "", ".", "").Replace(s)
	}
	m := leadingInt.FindString(s)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

func loneDot(s string) bool {
	return strings.Count(s, ".") == 1 && !strings.Contains(s, ",")
}

// CleanText trims a free-text cell, collapses inner whitespace and applies
// Unicode NFC so that composed and decomposed accents compare equal.
func CleanText(raw string) string {
	return norm.NFC.String(strings.Join(strings.Fields(raw), " "))
}
