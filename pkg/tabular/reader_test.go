package tabular

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReadCSV(t *testing.T) {
	src := "Name,Email\nAda,ada@example.com\n,\nGrace,grace@example.com\n"
	doc, err := ReadCSV(strings.NewReader(src))
	require.NoError(t, err)

	assert.Equal(t, []string{"Name", "Email"}, doc.Headers)
	require.Len(t, doc.Rows, 2)
	assert.Equal(t, 1, doc.Rows[0].Number)
	assert.Equal(t, 3, doc.Rows[1].Number)

	record := doc.Record(doc.Rows[1])
	assert.Equal(t, "Grace", record["Name"])
	assert.Equal(t, "grace@example.com", record["Email"])
}

func TestReadCSVShortRow(t *testing.T) {
	doc, err := ReadCSV(strings.NewReader("Name,Email\nAda\n"))
	require.NoError(t, err)
	require.Len(t, doc.Rows, 1)

	record := doc.Record(doc.Rows[0])
	assert.Equal(t, "Ada", record["Name"])
	assert.Equal(t, "", record["Email"])
}

func TestReadXLSX(t *testing.T) {
	file := excelize.NewFile()
	require.NoError(t, file.SetSheetRow("Sheet1", "A1", &[]string{"Name", "Email"}))
	require.NoError(t, file.SetSheetRow("Sheet1", "A2", &[]string{"Ada", "ada@example.com"}))
	buf, err := file.WriteToBuffer()
	require.NoError(t, err)

	doc, err := ReadXLSX(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Email"}, doc.Headers)
	require.Len(t, doc.Rows, 1)
	assert.Equal(t, "ada@example.com", doc.Record(doc.Rows[0])["Email"])
}

func TestReadUnsupportedFormat(t *testing.T) {
	_, err := Read(strings.NewReader(""), "grades.pdf")
	assert.Error(t, err)
}
