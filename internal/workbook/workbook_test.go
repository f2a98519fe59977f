package workbook_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"finnastats/internal/matomo"
	"finnastats/internal/workbook"
)

const info = "Statistics for view helmet.finna.fi/kirjasto, period:  1.1.2024 - 31.1.2024"

func saveAndOpen(t *testing.T, wb *workbook.Workbook) *excelize.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "statistics-helmet-kirjasto.xlsx")
	require.NoError(t, wb.Save(path))
	require.NoError(t, wb.Close())

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func cell(t *testing.T, f *excelize.File, sheet, ref string) string {
	t.Helper()
	v, err := f.GetCellValue(sheet, ref)
	require.NoError(t, err)
	return v
}

func bold(t *testing.T, f *excelize.File, sheet, ref string) bool {
	t.Helper()
	id, err := f.GetCellStyle(sheet, ref)
	require.NoError(t, err)
	style, err := f.GetStyle(id)
	require.NoError(t, err)
	return style.Font != nil && style.Font.Bold
}

func TestWorkbook(t *testing.T) {
	wb, err := workbook.New()
	require.NoError(t, err)

	require.NoError(t, wb.AddCover(info, []matomo.Entry{
		{Name: "nb_visits", Description: "Visits"},
		{Name: "bounce_rate", Description: "Bounces"},
	}))

	pages, err := wb.AddStatistic("Pages", [][]string{
		{"label", "nb_hits", "avg_time_on_page"},
		{"/search", "1234", "00:01:02"},
		{"/record", "56.5", "00:00:10"},
	}, info, false)
	require.NoError(t, err)
	assert.Equal(t, "Pages", pages)

	visits, err := wb.AddStatistic("Visits: summary / overview of everything", [][]string{
		{"nb_visits", "nb_actions"},
		{"10", "42"},
	}, info, true)
	require.NoError(t, err)
	assert.Equal(t, "Visits_ summary _ overview of e", visits)

	again, err := wb.AddStatistic("pages", [][]string{{"label"}}, info, false)
	require.NoError(t, err)
	assert.Equal(t, "pages (2)", again)

	assert.Equal(t, []string{workbook.CoverSheet, "Pages", visits, "pages (2)"}, wb.Sheets())

	f := saveAndOpen(t, wb)
	assert.Equal(t, 0, f.GetActiveSheetIndex())

	t.Run("cover", func(t *testing.T) {
		assert.Equal(t, info, cell(t, f, workbook.CoverSheet, "A1"))
		assert.True(t, bold(t, f, workbook.CoverSheet, "A1"))
		assert.Equal(t, "Variable name", cell(t, f, workbook.CoverSheet, "A5"))
		assert.Equal(t, "Description", cell(t, f, workbook.CoverSheet, "B5"))
		assert.Empty(t, cell(t, f, workbook.CoverSheet, "A6"))
		assert.Equal(t, "nb_visits", cell(t, f, workbook.CoverSheet, "A7"))
		assert.True(t, bold(t, f, workbook.CoverSheet, "A7"))
		assert.Equal(t, "Bounces", cell(t, f, workbook.CoverSheet, "B8"))
		assert.Equal(t, workbook.GlossaryNote, cell(t, f, workbook.CoverSheet, "A11"))

		merged, err := f.GetMergeCells(workbook.CoverSheet)
		require.NoError(t, err)
		require.Len(t, merged, 1)
		assert.Equal(t, "A1", merged[0].GetStartAxis())
		assert.Equal(t, "Z1", merged[0].GetEndAxis())
	})

	t.Run("statistic", func(t *testing.T) {
		assert.Equal(t, info, cell(t, f, "Pages", "A1"))
		assert.Empty(t, cell(t, f, "Pages", "A4"))
		assert.Equal(t, "label", cell(t, f, "Pages", "A5"))
		assert.True(t, bold(t, f, "Pages", "A5"))
		assert.True(t, bold(t, f, "Pages", "C5"))
		assert.False(t, bold(t, f, "Pages", "A6"))
		assert.Equal(t, "00:01:02", cell(t, f, "Pages", "C6"))

		raw, err := f.GetCellValue("Pages", "B6", excelize.Options{RawCellValue: true})
		require.NoError(t, err)
		assert.Equal(t, "1234", raw)

		id, err := f.GetCellStyle("Pages", "B7")
		require.NoError(t, err)
		style, err := f.GetStyle(id)
		require.NoError(t, err)
		require.NotNil(t, style.Alignment)
		assert.Equal(t, "right", style.Alignment.Horizontal)
		require.NotNil(t, style.CustomNumFmt)
		assert.Equal(t, "# ### ##0", *style.CustomNumFmt)
	})

	t.Run("flipped statistic", func(t *testing.T) {
		assert.Equal(t, "nb_visits", cell(t, f, visits, "A5"))
		assert.Equal(t, "nb_actions", cell(t, f, visits, "A6"))
		raw, err := f.GetCellValue(visits, "B6", excelize.Options{RawCellValue: true})
		require.NoError(t, err)
		assert.Equal(t, "42", raw)
		assert.False(t, bold(t, f, visits, "A5"))
	})
}

func TestCoverWithoutDocumentation(t *testing.T) {
	wb, err := workbook.New()
	require.NoError(t, err)
	require.NoError(t, wb.AddCover(info, nil))

	f := saveAndOpen(t, wb)
	rows, err := f.GetRows(workbook.CoverSheet)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, strings.HasPrefix(rows[0][0], "Statistics for view"))
}
