package export

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/John-Robertt/quizcarry/internal/domain"
)

func TestWriteXLSX_Rows(t *testing.T) {
	text := "Paris"
	id, checked := int64(11), true
	actual, max := 1.5, 3.0
	legacy := -1.0
	records := []domain.Record{
		{ID: 1, Type: domain.TypeBlanks, AnswerInfos: []domain.AnswerRecord{{Text: &text}}, ActualMarks: &actual, MaxMarks: &max},
		{ID: 2, Type: domain.TypeChoices, AnswerInfos: []domain.AnswerRecord{{ID: &id, Checked: &checked}}, ActualMarks: &legacy, MaxMarks: &legacy},
		{ID: 3, Type: domain.TypeChoices},
	}

	path := filepath.Join(t.TempDir(), "out", "snapshot.xlsx")
	require.NoError(t, WriteXLSX(path, records))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, headers, rows[0])
	assert.Equal(t, []string{"1", "blanks", "1", "Paris", "", "", "1.5", "3"}, rows[1])
	assert.Equal(t, []string{"2", "choices", "1", "", "11", "TRUE"}, rows[2])
	assert.Equal(t, []string{"3", "choices"}, rows[3])
}

func TestWorkbook_Empty(t *testing.T) {
	f, err := Workbook(nil)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
