// Package workbook writes the view statistics spreadsheets.
package workbook

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"finnastats/internal/matomo"
)

const (
	// CoverSheet is the first sheet, holding the metric documentation.
	CoverSheet = "General"
	// GlossaryNote closes the documentation table.
	GlossaryNote = "For more info see: https://glossary.matomo.org/"

	// infoRows are reserved above every table for the report heading.
	infoRows    = 4
	valueFormat = "# ### ##0"
	maxColWidth = 80
)

var (
	numberPattern   = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
	sheetNameEscape = strings.NewReplacer(":", "_", `\`, "_", "/", "_", "?", "_", "*", "_", "[", "(", "]", ")")
)

// Workbook is an XLSX document with a cover sheet followed by one sheet per
// statistic.
type Workbook struct {
	file *excelize.File

	bold      int
	value     int
	boldValue int
}

// New creates a workbook whose only sheet is the empty cover sheet.
func New() (*Workbook, error) {
	file := excelize.NewFile()
	w := &Workbook{file: file}

	if err := file.SetSheetName(file.GetSheetName(0), CoverSheet); err != nil {
		file.Close()
		return nil, err
	}

	numFmt := valueFormat
	var err error
	if w.bold, err = file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		file.Close()
		return nil, err
	}
	if w.value, err = file.NewStyle(&excelize.Style{
		Alignment:    &excelize.Alignment{Horizontal: "right"},
		CustomNumFmt: &numFmt,
	}); err != nil {
		file.Close()
		return nil, err
	}
	if w.boldValue, err = file.NewStyle(&excelize.Style{
		Font:         &excelize.Font{Bold: true},
		Alignment:    &excelize.Alignment{Horizontal: "right"},
		CustomNumFmt: &numFmt,
	}); err != nil {
		file.Close()
		return nil, err
	}

	return w, nil
}

// AddCover writes the heading and, when there is any, the metric
// documentation to the cover sheet.
func (w *Workbook) AddCover(info string, docs []matomo.Entry) error {
	if err := w.addInfo(CoverSheet, info); err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}

	row := infoRows + 1
	if err := w.setRow(CoverSheet, row, []any{"Variable name", "Description"}); err != nil {
		return err
	}
	if err := w.style(CoverSheet, 1, row, 2, row, w.bold); err != nil {
		return err
	}

	row += 2
	widthA, widthB := len("Variable name"), len("Description")
	for _, doc := range docs {
		if err := w.setRow(CoverSheet, row, []any{doc.Name, doc.Description}); err != nil {
			return err
		}
		if err := w.style(CoverSheet, 1, row, 1, row, w.bold); err != nil {
			return err
		}
		widthA = max(widthA, utf8.RuneCountInString(doc.Name))
		widthB = max(widthB, utf8.RuneCountInString(doc.Description))
		row++
	}

	if err := w.setRow(CoverSheet, row+2, []any{GlossaryNote}); err != nil {
		return err
	}
	if err := w.width(CoverSheet, 1, widthA); err != nil {
		return err
	}
	return w.width(CoverSheet, 2, widthB)
}

// AddStatistic adds a sheet holding rows, the first of which is the header.
// A flipped statistic is transposed and its header is not emphasised.
// Value columns are right-aligned with a thousands format.
func (w *Workbook) AddStatistic(name string, rows [][]string, info string, flip bool) (string, error) {
	sheet := w.sheetName(name)
	if _, err := w.file.NewSheet(sheet); err != nil {
		return "", err
	}

	if flip {
		rows = transpose(rows)
	}

	cols := 0
	widths := map[int]int{}
	for i, record := range rows {
		cols = max(cols, len(record))
		values := make([]any, len(record))
		for j, cell := range record {
			values[j] = typed(cell)
			widths[j] = max(widths[j], utf8.RuneCountInString(cell))
		}
		if err := w.setRow(sheet, infoRows+1+i, values); err != nil {
			return "", err
		}
	}

	if err := w.addInfo(sheet, info); err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return sheet, nil
	}

	first, last := infoRows+1, infoRows+len(rows)
	if cols > 1 {
		if err := w.style(sheet, 2, first, cols, last, w.value); err != nil {
			return "", err
		}
	}
	if !flip {
		if err := w.style(sheet, 1, first, 1, first, w.bold); err != nil {
			return "", err
		}
		if cols > 1 {
			if err := w.style(sheet, 2, first, cols, first, w.boldValue); err != nil {
				return "", err
			}
		}
	}

	for col := 1; col <= cols; col++ {
		if err := w.width(sheet, col, widths[col-1]); err != nil {
			return "", err
		}
	}
	return sheet, nil
}

// Sheets lists the sheet names in order.
func (w *Workbook) Sheets() []string {
	return w.file.GetSheetList()
}

// Save writes the workbook to path with the cover sheet active.
func (w *Workbook) Save(path string) error {
	w.file.SetActiveSheet(0)
	return w.file.SaveAs(path)
}

// Close releases the workbook's temporary resources.
func (w *Workbook) Close() error {
	return w.file.Close()
}

// addInfo writes the heading into the merged first row.
func (w *Workbook) addInfo(sheet, info string) error {
	if err := w.file.SetCellValue(sheet, "A1", info); err != nil {
		return err
	}
	if err := w.file.MergeCell(sheet, "A1", "Z1"); err != nil {
		return err
	}
	return w.file.SetCellStyle(sheet, "A1", "A1", w.bold)
}

func (w *Workbook) setRow(sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return w.file.SetSheetRow(sheet, cell, &values)
}

func (w *Workbook) style(sheet string, fromCol, fromRow, toCol, toRow, style int) error {
	from, err := excelize.CoordinatesToCellName(fromCol, fromRow)
	if err != nil {
		return err
	}
	to, err := excelize.CoordinatesToCellName(toCol, toRow)
	if err != nil {
		return err
	}
	return w.file.SetCellStyle(sheet, from, to, style)
}

func (w *Workbook) width(sheet string, col, chars int) error {
	name, err := excelize.ColumnNumberToName(col)
	if err != nil {
		return err
	}
	return w.file.SetColWidth(sheet, name, name, float64(min(max(chars+2, 10), maxColWidth)))
}

// sheetName makes name a valid, unused sheet title of at most 31 characters.
func (w *Workbook) sheetName(name string) string {
	base := truncate(sheetNameEscape.Replace(strings.TrimSpace(name)), 31)
	if base == "" {
		base = "Sheet"
	}

	taken := func(name string) bool {
		for _, existing := range w.file.GetSheetList() {
			if strings.EqualFold(existing, name) {
				return true
			}
		}
		return false
	}

	candidate := base
	for n := 2; ; n++ {
		if !taken(candidate) {
			return candidate
		}
		suffix := fmt.Sprintf(" (%d)", n)
		candidate = truncate(base, 31-len(suffix)) + suffix
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// typed stores plain integers and decimals as numbers.
func typed(cell string) any {
	if !numberPattern.MatchString(cell) {
		return cell
	}
	if i, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil {
		return f
	}
	return cell
}

func transpose(rows [][]string) [][]string {
	cols := 0
	for _, r := range rows {
		cols = max(cols, len(r))
	}
	out := make([][]string, cols)
	for c := range out {
		out[c] = make([]string, len(rows))
		for r, record := range rows {
			if c < len(record) {
				out[c][r] = record[c]
			}
		}
	}
	return out
}
