package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Algebra I Gradebook",
		Headers: []string{"Student", "Percentage", "Letter"},
		Rows: []map[string]string{
			{"Student": "Ada Lovelace", "Percentage": "93", "Letter": "A"},
			{"Student": "Alan, Turing", "Percentage": "81", "Letter": "B"},
		},
		Footer: []string{"Class average: 87"},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	expected := "Student,Percentage,Letter\n" +
		"Ada Lovelace,93,A\n" +
		"\"Alan, Turing\",81,B\n" +
		"\n" +
		"Class average: 87\n"
	assert.Equal(t, expected, string(out))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestPDFExporterWideTableAndPaging(t *testing.T) {
	data := Dataset{Headers: []string{"Student", "HW", "Quiz", "Lab", "Exam", "Project", "Percentage", "Letter"}}
	for i := 0; i < 120; i++ {
		data.Rows = append(data.Rows, map[string]string{"Student": "Student", "Percentage": "70", "Letter": "C"})
	}
	out, err := NewPDFExporter().Render(data)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestColumnWidths(t *testing.T) {
	widths := columnWidths(100, 4)
	require.Len(t, widths, 4)
	assert.InDelta(t, 40, widths[0], 1e-9)
	assert.InDelta(t, 20, widths[3], 1e-9)
	assert.Equal(t, []float64{50}, columnWidths(50, 1))
}
